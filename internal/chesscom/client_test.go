package chesscom

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/discochess/blunderlab"
)

const scholarsMate = `[Event "Live Chess"]
[Site "Chess.com"]
[White "hustler"]
[Black "magnus"]
[Result "1-0"]

1. e4 e5 2. Bc4 Nc6 3. Qh5 Nf6 4. Qxf7# 1-0
`

const shortDraw = `[Event "Live Chess"]
[Site "Chess.com"]
[White "magnus"]
[Black "someone"]
[Result "1/2-1/2"]

1. Nf3 Nf6 1/2-1/2
`

func apiGameJSON(url, pgn, white, black string, endTime int64) map[string]any {
	return map[string]any{
		"url":          url,
		"pgn":          pgn,
		"time_control": "600",
		"end_time":     endTime,
		"white":        map[string]any{"username": white, "rating": 1500, "result": "win"},
		"black":        map[string]any{"username": black, "rating": 1600, "result": "checkmated"},
		"accuracies":   map[string]any{"white": 55.2, "black": 91.7},
	}
}

func TestClient_RecentGames(t *testing.T) {
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/player/magnus/games/archives", func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "blunderlab/") {
			t.Errorf("User-Agent = %q", ua)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"archives": []string{
				server.URL + "/player/magnus/games/2026/02",
				server.URL + "/player/magnus/games/2026/03",
			},
		})
	})
	mux.HandleFunc("/player/magnus/games/2026/02", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"games": []any{
				apiGameJSON("https://example.org/g0", shortDraw, "magnus", "someone", 1000),
			},
		})
	})
	mux.HandleFunc("/player/magnus/games/2026/03", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"games": []any{
				apiGameJSON("https://example.org/g1", shortDraw, "magnus", "someone", 2000),
				apiGameJSON("https://example.org/g2", scholarsMate, "hustler", "magnus", 3000),
			},
		})
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	c := New(WithBaseURL(server.URL))
	games, err := c.RecentGames(context.Background(), "Magnus", 2)
	if err != nil {
		t.Fatalf("RecentGames() error = %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("got %d games, want 2", len(games))
	}

	// Newest first: the last game of the newest archive comes first,
	// and the cap stops before the older archive.
	g := games[0]
	if g.ID != "https://example.org/g2" {
		t.Errorf("first game = %q, want newest", g.ID)
	}
	if g.Color != blunderlab.Black {
		t.Errorf("color = %q, want black", g.Color)
	}
	if g.Opponent != "hustler" || g.OpponentRating != 1500 {
		t.Errorf("opponent = %q (%d)", g.Opponent, g.OpponentRating)
	}
	if g.Result != "1-0" {
		t.Errorf("result = %q, want 1-0", g.Result)
	}
	if g.Accuracy == nil || *g.Accuracy != 91.7 {
		t.Errorf("accuracy = %v, want black's 91.7", g.Accuracy)
	}
	wantMoves := []string{"e4", "e5", "Bc4", "Nc6", "Qh5", "Nf6", "Qxf7#"}
	if len(g.Moves) != len(wantMoves) {
		t.Fatalf("moves = %v, want %v", g.Moves, wantMoves)
	}
	for i, m := range wantMoves {
		if g.Moves[i] != m {
			t.Errorf("move %d = %q, want %q", i, g.Moves[i], m)
		}
	}

	if games[1].ID != "https://example.org/g1" {
		t.Errorf("second game = %q, want g1", games[1].ID)
	}
}

func TestClient_SkipsUnparseableGames(t *testing.T) {
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/player/magnus/games/archives", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"archives": []string{server.URL + "/player/magnus/games/2026/03"},
		})
	})
	mux.HandleFunc("/player/magnus/games/2026/03", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"games": []any{
				apiGameJSON("https://example.org/bad", "", "magnus", "x", 1000),
				apiGameJSON("https://example.org/ok", shortDraw, "magnus", "someone", 2000),
			},
		})
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	games, err := New(WithBaseURL(server.URL)).RecentGames(context.Background(), "magnus", 10)
	if err != nil {
		t.Fatalf("RecentGames() error = %v", err)
	}
	if len(games) != 1 || games[0].ID != "https://example.org/ok" {
		t.Errorf("games = %+v, want the parseable game only", games)
	}
}

func TestClient_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "redirected", http.StatusGone)
	}))
	defer server.Close()

	_, err := New(WithBaseURL(server.URL)).RecentGames(context.Background(), "magnus", 5)
	if err == nil || !strings.Contains(err.Error(), "410") {
		t.Fatalf("RecentGames() error = %v, want status error", err)
	}
}

func TestConvertGame_PlayerNotInGame(t *testing.T) {
	var g apiGame
	data := fmt.Sprintf(`{"url":"u","pgn":%q,"white":{"username":"a"},"black":{"username":"b"}}`, shortDraw)
	if err := json.Unmarshal([]byte(data), &g); err != nil {
		t.Fatal(err)
	}
	if _, err := convertGame(g, "magnus"); err == nil {
		t.Error("convertGame() = nil error, want player-not-in-game error")
	}
}
