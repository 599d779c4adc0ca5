package dashboard

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/KataNusa/NusaBot/internal/db"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	d, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	d.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = d.Close() })

	if err := db.Migrate(d); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(d, "test-secret", "hunter22")
}

func login(t *testing.T, s *Server) string {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"password":"hunter22"}`))
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Token == "" {
		t.Fatalf("login body: %v %s", err, rec.Body.String())
	}
	return body.Token
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"password":"nope"}`))
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	s := testServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/settings"},
		{http.MethodPut, "/api/settings"},
		{http.MethodGet, "/api/stats"},
	} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(tc.method, tc.path, nil)
		s.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s without token = %d, want 401", tc.method, tc.path, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token = %d, want 401", rec.Code)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	s := testServer(t)
	token := login(t, s)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/settings",
		strings.NewReader(`{"wordchain.turn_seconds":"45","wordchain.difficulty":"hard"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("put: %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: %d", rec.Code)
	}

	var got map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["wordchain.turn_seconds"] != "45" || got["wordchain.difficulty"] != "hard" {
		t.Fatalf("settings = %v", got)
	}
}

func TestSettingsRejectUnknownKey(t *testing.T) {
	s := testServer(t)
	token := login(t, s)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/settings",
		strings.NewReader(`{"evil.key":"1"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown key = %d, want 400", rec.Code)
	}
}

func TestStats(t *testing.T) {
	s := testServer(t)
	token := login(t, s)

	if _, err := s.database.Exec(
		`INSERT INTO wordchain_stats (user_id, username, games, wins, points, last_played_at)
		 VALUES ('u1', 'Alice', 3, 2, 120, 0), ('u2', 'Bob', 3, 1, 80, 0);`,
	); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := s.database.Exec(
		`INSERT INTO economy_balances (user_id, username, coins) VALUES ('u1', 'Alice', 150);`,
	); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: %d %s", rec.Code, rec.Body.String())
	}

	var got statsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.WordChain.Players != 2 || got.WordChain.TotalPoints != 200 {
		t.Fatalf("wordchain stats = %+v", got.WordChain)
	}
	if got.Economy.Holders != 1 || got.Economy.TotalCoins != 150 {
		t.Fatalf("economy stats = %+v", got.Economy)
	}
	if len(got.WordChain.Top) != 2 || got.WordChain.Top[0].UserID != "u1" {
		t.Fatalf("wordchain top = %+v", got.WordChain.Top)
	}
	if len(got.Economy.Top) != 1 || got.Economy.Top[0].Coins != 150 {
		t.Fatalf("economy top = %+v", got.Economy.Top)
	}
}

func TestHealthIsPublic(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("health = %d, want 200", rec.Code)
	}
}
