// Package chesscom fetches a player's recent games from the published
// Chess.com API. It is an opaque producer for the analysis pipeline:
// network failures here are fatal to the run and are never retried.
package chesscom

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/notnil/chess"
	"go.uber.org/zap"

	"github.com/discochess/blunderlab"
)

// DefaultBaseURL is the public Chess.com API root.
const DefaultBaseURL = "https://api.chess.com/pub"

// DefaultUserAgent identifies the client; Chess.com rejects anonymous
// user agents.
const DefaultUserAgent = "blunderlab/1.0 (chess study pipeline)"

// Client fetches games over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.httpClient = client }
}

// WithBaseURL overrides the API root.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(url, "/") }
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithLogger sets the logger. If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client with sensible transport timeouts.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				ResponseHeaderTimeout: 30 * time.Second,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
			},
		},
		baseURL:   DefaultBaseURL,
		userAgent: DefaultUserAgent,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// archiveIndex is the response of /player/{user}/games/archives.
type archiveIndex struct {
	Archives []string `json:"archives"`
}

// monthlyGames is the response of one monthly archive.
type monthlyGames struct {
	Games []apiGame `json:"games"`
}

type apiGame struct {
	URL         string  `json:"url"`
	PGN         string  `json:"pgn"`
	TimeControl string  `json:"time_control"`
	EndTime     int64   `json:"end_time"`
	White       apiSide `json:"white"`
	Black       apiSide `json:"black"`
	Accuracies  *struct {
		White float64 `json:"white"`
		Black float64 `json:"black"`
	} `json:"accuracies"`
}

type apiSide struct {
	Username string `json:"username"`
	Rating   int    `json:"rating"`
	Result   string `json:"result"`
}

// RecentGames returns up to max of the player's most recent games,
// newest first, with moves in algebraic notation.
func (c *Client) RecentGames(ctx context.Context, username string, max int) ([]blunderlab.Game, error) {
	var index archiveIndex
	url := fmt.Sprintf("%s/player/%s/games/archives", c.baseURL, strings.ToLower(username))
	if err := c.getJSON(ctx, url, &index); err != nil {
		return nil, fmt.Errorf("listing archives for %s: %w", username, err)
	}

	var games []blunderlab.Game
	// Walk monthly archives newest first; within a month the API
	// returns games oldest first.
	for i := len(index.Archives) - 1; i >= 0 && len(games) < max; i-- {
		var month monthlyGames
		if err := c.getJSON(ctx, index.Archives[i], &month); err != nil {
			return nil, fmt.Errorf("fetching archive %s: %w", index.Archives[i], err)
		}
		for j := len(month.Games) - 1; j >= 0 && len(games) < max; j-- {
			g, err := convertGame(month.Games[j], username)
			if err != nil {
				c.logger.Warn("skipping unparseable game",
					zap.String("url", month.Games[j].URL),
					zap.Error(err),
				)
				continue
			}
			games = append(games, g)
		}
	}

	c.logger.Info("fetched games",
		zap.String("username", username),
		zap.Int("count", len(games)),
	)
	return games, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("requesting: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// convertGame turns one API record into a pipeline Game, extracting the
// move list from the embedded PGN.
func convertGame(g apiGame, username string) (blunderlab.Game, error) {
	var color blunderlab.Color
	var opponent apiSide
	switch {
	case strings.EqualFold(g.White.Username, username):
		color, opponent = blunderlab.White, g.Black
	case strings.EqualFold(g.Black.Username, username):
		color, opponent = blunderlab.Black, g.White
	default:
		return blunderlab.Game{}, fmt.Errorf("player %s not in game", username)
	}

	moves, result, err := movesFromPGN(g.PGN)
	if err != nil {
		return blunderlab.Game{}, fmt.Errorf("parsing PGN: %w", err)
	}

	out := blunderlab.Game{
		ID:             g.URL,
		Color:          color,
		Opponent:       opponent.Username,
		OpponentRating: opponent.Rating,
		TimeControl:    g.TimeControl,
		Result:         result,
		EndTime:        time.Unix(g.EndTime, 0).UTC(),
		Moves:          moves,
	}
	if g.Accuracies != nil {
		acc := g.Accuracies.White
		if color == blunderlab.Black {
			acc = g.Accuracies.Black
		}
		out.Accuracy = &acc
	}
	return out, nil
}

// movesFromPGN extracts the SAN move list and result from a PGN game.
func movesFromPGN(pgn string) ([]string, string, error) {
	scanner := chess.NewScanner(strings.NewReader(pgn))
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("empty PGN")
	}
	game := scanner.Next()

	positions := game.Positions()
	moves := game.Moves()
	sans := make([]string, 0, len(moves))
	for i, m := range moves {
		sans = append(sans, chess.AlgebraicNotation{}.Encode(positions[i], m))
	}

	result := "*"
	if tag := game.GetTagPair("Result"); tag != nil {
		result = tag.Value
	}
	return sans, result, nil
}
