// HTTP dashboard for NusaBot.
// Responsibilities:
//   - Router + middleware (JSON, panic recovery, timeouts, request IDs).
//   - POST /api/login: password -> short-lived JWT.
//   - GET/PUT /api/settings: the whitelisted guild_settings keys.
//   - GET /api/stats: word-chain and economy aggregates.
package dashboard

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/KataNusa/NusaBot/internal/db"
)

const tokenTTL = 12 * time.Hour

// Server bundles the router, the DB handle and the auth material.
type Server struct {
	r        *chi.Mux
	database *sql.DB
	secret   []byte
	password string
}

func New(database *sql.DB, secret, password string) *Server {
	s := &Server{
		r:        chi.NewRouter(),
		database: database,
		secret:   []byte(secret),
		password: password,
	}

	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(chimw.Recoverer)
	s.r.Use(chimw.Timeout(10 * time.Second))
	s.r.Use(jsonContentType)

	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	s.r.Post("/api/login", s.handleLogin)

	s.r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/api/settings", s.handleGetSettings)
		r.Put("/api/settings", s.handlePutSettings)
		r.Get("/api/stats", s.handleStats)
	})

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
	})

	return s
}

// Start blocks serving HTTP until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("dashboard listening")
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := bearerToken(r)
		if tokenStr == "" {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, jwt.ErrSignatureInvalid
			}
			return s.secret, nil
		})
		if err != nil || !token.Valid {
			http.Error(w, `{"error":"invalid_token"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	a := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	return ""
}

// ----------------------------- auth ----------------------------------------

type loginReq struct {
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_request"}`, http.StatusBadRequest)
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.password)) != 1 {
		log.Warn().Str("ip", r.RemoteAddr).Msg("dashboard login rejected")
		http.Error(w, `{"error":"wrong_password"}`, http.StatusUnauthorized)
		return
	}

	exp := time.Now().Add(tokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "dashboard",
		"exp": exp.Unix(),
		"iat": time.Now().Unix(),
	})
	ss, err := token.SignedString(s.secret)
	if err != nil {
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"token":     ss,
		"expiresAt": exp.UTC().Format(time.RFC3339),
	})
}

// ----------------------------- settings ------------------------------------

// editableKeys is the closed set the dashboard may touch. Anything else in
// guild_settings stays bot-internal.
var editableKeys = []string{
	db.SettingWordChainTurnSeconds,
	db.SettingWordChainDifficulty,
	db.SettingWordChainMaxRolls,
	db.SettingWordChainBotOpponent,
	db.SettingEconomyEnabled,
}

func isEditableKey(key string) bool {
	for _, k := range editableKeys {
		if k == key {
			return true
		}
	}
	return false
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]string, len(editableKeys))
	for _, key := range editableKeys {
		v, found, err := db.GetSetting(s.database, key)
		if err != nil {
			log.Error().Err(err).Str("key", key).Msg("settings read failed")
			http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
			return
		}
		if found {
			out[key] = v
		}
	}
	_ = json.NewEncoder(w).Encode(out)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var patch map[string]string
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, `{"error":"bad_request"}`, http.StatusBadRequest)
		return
	}

	for key := range patch {
		if !isEditableKey(key) {
			http.Error(w, `{"error":"unknown_key","key":"`+key+`"}`, http.StatusBadRequest)
			return
		}
	}
	for key, value := range patch {
		if err := db.SetSetting(s.database, key, strings.TrimSpace(value)); err != nil {
			log.Error().Err(err).Str("key", key).Msg("settings write failed")
			http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
			return
		}
	}

	log.Info().Int("keys", len(patch)).Msg("dashboard settings updated")
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// ----------------------------- stats ----------------------------------------

type wordChainRow struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Wins     int64  `json:"wins"`
	Points   int64  `json:"points"`
}

type economyRow struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Coins    int64  `json:"coins"`
}

type statsResponse struct {
	WordChain struct {
		Players     int64          `json:"players"`
		GamesPlayed int64          `json:"gamesPlayed"`
		TotalPoints int64          `json:"totalPoints"`
		Top         []wordChainRow `json:"top"`
	} `json:"wordChain"`
	Economy struct {
		Holders    int64        `json:"holders"`
		TotalCoins int64        `json:"totalCoins"`
		Purchases  int64        `json:"purchases"`
		Top        []economyRow `json:"top"`
	} `json:"economy"`
	Confessions int64 `json:"confessions"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var resp statsResponse

	err := s.database.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(games), 0), COALESCE(SUM(points), 0) FROM wordchain_stats`,
	).Scan(&resp.WordChain.Players, &resp.WordChain.GamesPlayed, &resp.WordChain.TotalPoints)
	if err == nil {
		err = s.database.QueryRow(
			`SELECT COUNT(*), COALESCE(SUM(coins), 0) FROM economy_balances`,
		).Scan(&resp.Economy.Holders, &resp.Economy.TotalCoins)
	}
	if err == nil {
		err = s.database.QueryRow(`SELECT COUNT(*) FROM shop_purchases`).Scan(&resp.Economy.Purchases)
	}
	if err == nil {
		err = s.database.QueryRow(`SELECT COUNT(*) FROM confessions`).Scan(&resp.Confessions)
	}
	if err == nil {
		resp.WordChain.Top, err = s.topWordChain(10)
	}
	if err == nil {
		resp.Economy.Top, err = s.topEconomy(10)
	}
	if err != nil {
		log.Error().Err(err).Msg("stats query failed")
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
		return
	}

	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) topWordChain(limit int) ([]wordChainRow, error) {
	rows, err := s.database.Query(
		`SELECT user_id, username, wins, points
		 FROM wordchain_stats
		 ORDER BY wins DESC, points DESC
		 LIMIT ?;`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []wordChainRow{}
	for rows.Next() {
		var r wordChainRow
		if err := rows.Scan(&r.UserID, &r.Username, &r.Wins, &r.Points); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Server) topEconomy(limit int) ([]economyRow, error) {
	rows, err := s.database.Query(
		`SELECT user_id, username, coins
		 FROM economy_balances
		 ORDER BY coins DESC
		 LIMIT ?;`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []economyRow{}
	for rows.Next() {
		var r economyRow
		if err := rows.Scan(&r.UserID, &r.Username, &r.Coins); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
