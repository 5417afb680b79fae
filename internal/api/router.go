package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ndhoang/mafia-agents/internal/agents"
	"github.com/ndhoang/mafia-agents/internal/config"
	"github.com/ndhoang/mafia-agents/internal/db"
	"github.com/ndhoang/mafia-agents/internal/game"
	mw "github.com/ndhoang/mafia-agents/internal/middleware"
	"github.com/ndhoang/mafia-agents/internal/rules"
	"github.com/ndhoang/mafia-agents/internal/validation"
)

const (
	guestTokenTTL = 12 * time.Hour
	// maxRequestBody caps request bodies; every mutating payload here is a
	// handful of fields.
	maxRequestBody = 1 << 20
)

// Server exposes the game control surface: start a game, advance one step,
// read the current snapshot, fetch the persisted transcript.
type Server struct {
	router chi.Router
	db     *db.DB
	oracle agents.Provider
	policy *rules.Policy
	cfg    config.Config
	log    zerolog.Logger

	games   map[string]*game.Engine
	gamesMu sync.RWMutex

	rateLimiter *mw.RateLimiter
}

// NewServer wires the router. The policy comes pre-compiled so bad condition
// expressions fail at startup, not mid-request.
func NewServer(cfg config.Config, database *db.DB, oracle agents.Provider, policy *rules.Policy, log zerolog.Logger) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		db:          database,
		oracle:      oracle,
		policy:      policy,
		cfg:         cfg,
		log:         log.With().Str("component", "api").Logger(),
		games:       make(map[string]*game.Engine),
		rateLimiter: mw.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestSize(maxRequestBody))
	s.router.Use(middleware.SetHeader("Content-Type", "application/json"))
	s.router.Use(s.rateLimiter.Middleware)

	s.router.Get("/api/games", s.listGames)
	s.router.Get("/api/games/{id}", s.getGame)
	s.router.Get("/api/games/{id}/transcript", s.getTranscript)

	if s.cfg.AuthSecret != "" {
		s.router.Post("/api/auth/guest", s.guestToken)
		s.router.Group(func(r chi.Router) {
			r.Use(mw.Auth(s.cfg.AuthSecret))
			r.Post("/api/games", s.createGame)
			r.Post("/api/games/{id}/step", s.stepGame)
		})
	} else {
		s.router.Post("/api/games", s.createGame)
		s.router.Post("/api/games/{id}/step", s.stepGame)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response wraps API responses.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	if status >= 500 {
		message = "internal server error"
	}
	writeJSON(w, status, Response{Success: false, Error: message})
}

// createGame starts a new game and returns its initial snapshot.
func (s *Server) createGame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NumAgents int   `json:"num_agents"`
		Seed      int64 `json:"seed,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	gameID := uuid.New().String()
	engine, err := game.NewEngine(gameID, game.Config{
		NumAgents:     req.NumAgents,
		Seed:          req.Seed,
		OracleTimeout: s.cfg.OracleTimeout,
	}, s.oracle, s.policy, s.log)
	if err != nil {
		if errors.Is(err, game.ErrConfiguration) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error().Err(err).Msg("failed to create game")
		writeError(w, http.StatusInternalServerError, "failed to create game")
		return
	}

	s.gamesMu.Lock()
	s.games[gameID] = engine
	s.gamesMu.Unlock()

	s.log.Info().Str("game", gameID).Int("agents", req.NumAgents).Msg("game created")
	writeJSON(w, http.StatusCreated, Response{
		Success: true,
		Data: map[string]interface{}{
			"id":    gameID,
			"state": engine.GetSnapshot(),
		},
	})
}

// listGames returns live game ids plus persisted transcript ids.
func (s *Server) listGames(w http.ResponseWriter, r *http.Request) {
	s.gamesMu.RLock()
	live := make([]string, 0, len(s.games))
	for id := range s.games {
		live = append(live, id)
	}
	s.gamesMu.RUnlock()

	stored, err := s.db.ListGames()
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list stored games")
		writeError(w, http.StatusInternalServerError, "failed to list games")
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]interface{}{
			"live":   live,
			"stored": stored,
		},
	})
}

// getGame returns the current snapshot without advancing the game.
func (s *Server) getGame(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.lookupGame(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: engine.GetSnapshot()})
}

// stepGame advances the game by exactly one sub-phase. Once ended it returns
// the unchanged terminal snapshot.
func (s *Server) stepGame(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.lookupGame(w, r)
	if !ok {
		return
	}

	snap, err := engine.Step(r.Context())
	if err != nil {
		if errors.Is(err, game.ErrState) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.log.Error().Err(err).Str("game", engine.ID).Msg("step failed")
		writeError(w, http.StatusInternalServerError, "step failed")
		return
	}

	// Persist the transcript whenever a game reaches its end; re-saving an
	// already-ended game is a cheap replace.
	if snap.Phase == game.PhaseEnd {
		if err := s.db.SaveTranscript(engine.ID, snap); err != nil {
			s.log.Error().Err(err).Str("game", engine.ID).Msg("failed to persist transcript")
		}
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Data: snap})
}

// getTranscript returns the persisted transcript for a game session.
func (s *Server) getTranscript(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")
	if err := validation.ValidateGameID(gameID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid game ID")
		return
	}

	snap, err := s.db.LoadTranscript(gameID)
	if err != nil {
		writeError(w, http.StatusNotFound, "transcript not found")
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: snap})
}

// guestToken issues a short-lived token for the protected routes.
func (s *Server) guestToken(w http.ResponseWriter, r *http.Request) {
	token, err := mw.IssueToken(s.cfg.AuthSecret, "guest-"+uuid.NewString(), guestTokenTTL)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to issue token")
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: map[string]string{"token": token}})
}

func (s *Server) lookupGame(w http.ResponseWriter, r *http.Request) (*game.Engine, bool) {
	gameID := chi.URLParam(r, "id")
	if err := validation.ValidateGameID(gameID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid game ID")
		return nil, false
	}

	s.gamesMu.RLock()
	engine, ok := s.games[gameID]
	s.gamesMu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, "game not found")
		return nil, false
	}
	return engine, true
}
