// Package lichess publishes finished chapters to a Lichess study via
// the import-pgn endpoint. It is an opaque consumer: one create-chapter
// call per chapter, no list/update/delete semantics.
package lichess

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultBaseURL is the Lichess API root.
const DefaultBaseURL = "https://lichess.org"

// Client uploads study chapters.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.httpClient = client }
}

// WithBaseURL overrides the API root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithLogger sets the logger. If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client authenticated with the given token.
// The token needs the study:write scope.
func New(token string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    DefaultBaseURL,
		token:      token,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ImportChapter adds one chapter to the study from the given PGN text.
// The PGN's blank Site tag lets Lichess fill in the chapter URL.
func (c *Client) ImportChapter(ctx context.Context, studyID, name, pgn string) error {
	endpoint := fmt.Sprintf("%s/api/study/%s/import-pgn", c.baseURL, studyID)

	form := url.Values{}
	form.Set("name", name)
	form.Set("pgn", pgn)

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting chapter: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2000))
		return fmt.Errorf("import-pgn %s: %s: %s", studyID, resp.Status, strings.TrimSpace(string(body)))
	}

	c.logger.Info("chapter imported",
		zap.String("study", studyID),
		zap.String("name", name),
	)
	return nil
}
