// Package server exposes the board over HTTP and websockets. Online mode
// serves seated players through the pvp Manager; local mode serves a single
// shared board without authentication.
package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/swapboard/internal/adapter/boardpresenter"
	"github.com/park285/swapboard/internal/board"
	"github.com/park285/swapboard/internal/config"
	"github.com/park285/swapboard/internal/obslog"
	"github.com/park285/swapboard/internal/pvp"
	"github.com/park285/swapboard/internal/rules"
)

const maxBody = 64 << 10

type Server struct {
	mode    string
	mgr     *pvp.Manager
	local   *localTable
	format  *boardpresenter.Formatter
	origins []string
}

type Option func(*Server)

func WithManager(m *pvp.Manager) Option { return func(s *Server) { s.mgr = m } }

func WithFormatter(f *boardpresenter.Formatter) Option {
	return func(s *Server) { s.format = f }
}

// New builds the server for cfg.Mode. Online mode requires WithManager.
func New(cfg *config.AppConfig, opts ...Option) (*Server, error) {
	s := &Server{mode: cfg.Mode, origins: cfg.AllowedOrigins}
	for _, opt := range opts {
		opt(s)
	}
	if s.format == nil {
		s.format = boardpresenter.NewFormatter(nil)
	}
	switch s.mode {
	case config.ModeLocal:
		rs, err := rules.ByName(cfg.Ruleset)
		if err != nil {
			return nil, err
		}
		s.local = newLocalTable(rs)
	case config.ModeOnline:
		if s.mgr == nil {
			return nil, fmt.Errorf("online mode needs a session manager")
		}
	default:
		return nil, fmt.Errorf("unknown mode %q", s.mode)
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.local != nil {
		mux.HandleFunc("POST /local/session", s.localSession)
		mux.HandleFunc("POST /local/select", s.localSelect)
		mux.HandleFunc("POST /local/move", s.localMove)
		mux.HandleFunc("POST /local/undo", s.localUndo)
		mux.HandleFunc("POST /local/new_game", s.localNewGame)
		mux.HandleFunc("GET /local/log", s.localLog)
	}
	if s.mgr != nil {
		mux.HandleFunc("POST /api/login", s.login)
		mux.HandleFunc("GET /api/log", s.downloadLog)
		mux.HandleFunc("GET /ws", s.serveWS)
	}
	return accessLog(cors(s.origins, mux))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		obslog.L().Warn("response_write_error", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error, seat board.Color) {
	status, de := s.domainError(err, seat)
	writeJSON(w, status, de)
}

// decode reads a JSON body; an empty body leaves dst untouched.
func decode(r *http.Request, dst any) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// seatToken reads the token from the Authorization header or the token
// query parameter.
func seatToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if t, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(t)
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func cors(allow []string, next http.Handler) http.Handler {
	allowSet := map[string]struct{}{}
	for _, a := range allow {
		if a != "" {
			allowSet[a] = struct{}{}
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			if _, ok := allowSet[origin]; ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
		}
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets the websocket upgrade reach the underlying hijacker.
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		obslog.L().Debug("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
