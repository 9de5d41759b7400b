// Package backoffice is the HTTP system of record the tills replicate to.
//
// It applies each operation id at most once. A resubmitted id is
// acknowledged as a duplicate without touching state; an id reused for a
// different payload, or a mutation that contradicts current state (a
// second active selling session for a store and date), is a conflict.
package backoffice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/roach88/possync/internal/apperr"
	"github.com/roach88/possync/internal/ops"
	"github.com/roach88/possync/internal/report"
	"github.com/roach88/possync/internal/session"
	"github.com/roach88/possync/internal/store"
)

// maxBodyBytes bounds an operation envelope.
const maxBodyBytes = 1 << 20

// Server serves the back-office API.
type Server struct {
	store  *store.Store
	secret []byte
	router chi.Router
}

// New creates a server on st. Requests must carry a Bearer token signed
// with secret.
func New(st *store.Store, secret []byte) *Server {
	s := &Server{store: st, secret: secret}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/v1/operations", s.handleOperation)
		r.Get("/v1/stores/{storeID}/transactions", s.handleTransactions)
	})

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("back-office listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleOperation(w http.ResponseWriter, r *http.Request) {
	var env ops.Envelope
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&env); err != nil {
		writeError(w, http.StatusBadRequest, apperr.Validation("malformed envelope: %v", err))
		return
	}
	entry, err := env.Entry()
	if err != nil {
		writeError(w, http.StatusBadRequest, apperr.Validation("%v", err))
		return
	}

	user := userFrom(r.Context())
	if action, storeID := ops.ActionOf(entry.Payload), ops.StoreOf(entry.Payload); !user.Can(action, storeID) {
		writeError(w, http.StatusForbidden, apperr.Forbidden(string(user.Role), fmt.Sprintf("%s (%s)", action, entry.Kind)))
		return
	}

	duplicate, err := Apply(r.Context(), s.store, entry)
	logger := log.With().Str("op_id", entry.ID).Str("op_kind", string(entry.Kind)).Logger()
	switch {
	case apperr.IsConflict(err):
		logger.Warn().Err(err).Msg("operation conflict")
		writeError(w, http.StatusConflict, err)
	case err != nil:
		logger.Error().Err(err).Msg("apply operation")
		writeError(w, http.StatusInternalServerError, err)
	case duplicate:
		logger.Debug().Msg("duplicate operation acknowledged")
		writeJSON(w, http.StatusOK, ops.Ack{ID: entry.ID, Status: ops.AckDuplicate, Duplicate: true})
	default:
		logger.Info().Msg("operation applied")
		writeJSON(w, http.StatusOK, ops.Ack{ID: entry.ID, Status: ops.AckApplied})
	}
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")
	user := userFrom(r.Context())
	if !user.Can(session.ActionCheckout, storeID) {
		writeError(w, http.StatusForbidden, apperr.Forbidden(string(user.Role), "read store "+storeID))
		return
	}

	txns, err := report.Transactions(r.Context(), s.store, storeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, txns)
}

type userKey struct{}

func userFrom(ctx context.Context) session.Context {
	u, _ := ctx.Value(userKey{}).(session.Context)
	return u
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, apperr.New(apperr.CodeForbidden, "missing bearer token"))
			return
		}
		user, err := session.Parse(token, s.secret)
		if err != nil {
			writeError(w, http.StatusUnauthorized, apperr.Wrap(apperr.CodeForbidden, "invalid bearer token", err))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	code := string(apperr.CodeOf(err))
	if apperr.IsConflict(err) {
		code = string(apperr.CodeConflict)
	}
	writeJSON(w, status, ops.WireError{Code: code, Message: err.Error()})
}
