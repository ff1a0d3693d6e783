// Package api serves the chat surface over HTTP. The conversation snapshot
// lives in the client's cookie; the server only keeps per-process caches.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	orchestratorx "github.com/tanpawarit/bitebot/agent/agents/orchestrator"
	bookingx "github.com/tanpawarit/bitebot/agent/booking"
	contractx "github.com/tanpawarit/bitebot/agent/contract"
)

type Config struct {
	Addr           string        `envconfig:"ADDR" default:":8080"`
	CookieHashKey  string        `split_words:"true"`
	CookieBlockKey string        `split_words:"true"`
	CookieSecure   bool          `split_words:"true" default:"false"`
	RequestTimeout time.Duration `split_words:"true" default:"90s"`
	MaxBodyBytes   int64         `split_words:"true" default:"65536"`
}

// TurnHandler is the conversation engine behind the HTTP surface.
type TurnHandler interface {
	HandleTurn(ctx context.Context, req orchestratorx.TurnRequest) (orchestratorx.TurnResult, error)
	Reset(ctx context.Context, sessionID string, snap orchestratorx.Snapshot) (orchestratorx.Snapshot, error)
}

type Server struct {
	turns   TurnHandler
	cookies *CookieStore
	cfg     Config
	now     func() time.Time
}

func NewServer(turns TurnHandler, cookies *CookieStore, cfg Config) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}
	return &Server{turns: turns, cookies: cookies, cfg: cfg, now: time.Now}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	if s.cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	}

	r.Get("/health", s.Health)
	r.Group(func(r chi.Router) {
		r.Use(BodyLimit(s.cfg.MaxBodyBytes))
		r.Post("/chat", s.Chat)
		r.Post("/reset", s.Reset)
	})
	r.Get("/reservations", s.Reservations)

	return r
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Message      string                 `json:"message"`
	Agent        contractx.AgentType    `json:"agent,omitempty"`
	Reservations []bookingx.Reservation `json:"reservations"`
	Committed    []bookingx.Reservation `json:"committed,omitempty"`
}

type errorResponse struct {
	Error     string                 `json:"error"`
	Committed []bookingx.Reservation `json:"committed,omitempty"`
}

// GET /health
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "healthy",
		"agent_initialized": s.turns != nil,
		"timestamp":         s.now().Format(time.RFC3339),
	})
}

// POST /chat
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	if s.turns == nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Agent not initialized. Please check your configuration."})
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Empty message"})
		return
	}

	st := s.cookies.Load(r)
	if st.SessionID == "" {
		st.SessionID = uuid.NewString()
	}

	result, err := s.turns.HandleTurn(r.Context(), orchestratorx.TurnRequest{
		SessionID: st.SessionID,
		Message:   message,
		Snapshot:  st.Snapshot,
	})
	if err != nil {
		if errors.Is(err, contractx.ErrInvalidMessage) || errors.Is(err, contractx.ErrInvalidSession) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		log.Error().Err(err).Str("session_id", st.SessionID).Msg("chat turn failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "An error occurred while handling the message"})
		return
	}

	st.Snapshot = result.Snapshot
	st.Snapshot.Reservations = bookingx.MergeReservations(st.Snapshot.Reservations, result.Committed...)
	if err := s.cookies.Save(w, st); err != nil {
		log.Error().Err(err).Str("session_id", st.SessionID).Int("reservations", len(st.Snapshot.Reservations)).Msg("failed to write session cookie")
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:     "Your session could not be saved. Please reset the conversation.",
			Committed: result.Committed,
		})
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Message:      result.Reply,
		Agent:        result.Route.Agent,
		Reservations: nonNil(st.Snapshot.Reservations),
		Committed:    result.Committed,
	})
}

// POST /reset
func (s *Server) Reset(w http.ResponseWriter, r *http.Request) {
	st := s.cookies.Load(r)
	if st.SessionID == "" {
		st.SessionID = uuid.NewString()
	}

	fresh := orchestratorx.Snapshot{ThreadID: uuid.NewString()}
	if s.turns != nil {
		snap, err := s.turns.Reset(r.Context(), st.SessionID, st.Snapshot)
		if err != nil {
			log.Warn().Err(err).Str("session_id", st.SessionID).Msg("reset left stale history behind")
		}
		if snap.ThreadID != "" {
			fresh = snap
		}
	}

	if err := s.cookies.Save(w, cookieState{SessionID: st.SessionID, Snapshot: fresh}); err != nil {
		log.Error().Err(err).Str("session_id", st.SessionID).Msg("failed to write session cookie")
		s.cookies.Clear(w)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /reservations
func (s *Server) Reservations(w http.ResponseWriter, r *http.Request) {
	st := s.cookies.Load(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"reservations": nonNil(st.Snapshot.Reservations),
	})
}

// Start serves handler until ctx is cancelled.
func Start(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().Msg("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func nonNil(list []bookingx.Reservation) []bookingx.Reservation {
	if list == nil {
		return []bookingx.Reservation{}
	}
	return list
}
