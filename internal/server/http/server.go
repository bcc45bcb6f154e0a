package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ChitLaq/ChitLaq-sub005/internal/runtime"
	eventsvc "github.com/ChitLaq/ChitLaq-sub005/internal/services/events"
	subsvc "github.com/ChitLaq/ChitLaq-sub005/internal/services/subscriptions"
	"github.com/ChitLaq/ChitLaq-sub005/internal/social"
	"github.com/ChitLaq/ChitLaq-sub005/internal/store"
	logpkg "github.com/ChitLaq/ChitLaq-sub005/pkg/log"
)

type Server struct {
	rt     *runtime.Runtime
	auth   *JWTAuth
	logger logpkg.Logger
	srv    *http.Server
	lis    net.Listener
}

func New(rt *runtime.Runtime, logger logpkg.Logger) *Server {
	if logger == nil {
		logger = logpkg.NewNop()
	}
	mux := http.NewServeMux()
	s := &Server{
		rt:     rt,
		auth:   NewJWTAuth(rt.Config().JWTSecret),
		logger: logger.With(logpkg.Component("http")),
		srv:    &http.Server{Handler: cors(mux)},
	}
	mux.HandleFunc("/v1/healthz", s.handleHealth)
	mux.HandleFunc("/v1/connect", s.handleConnect)
	mux.HandleFunc("/v1/disconnect", s.handleDisconnect)
	mux.HandleFunc("/v1/subscribe", s.handleSubscribe)
	mux.HandleFunc("/v1/unsubscribe", s.handleUnsubscribe)
	mux.HandleFunc("/v1/stream", s.handleStreamSSE)
	mux.HandleFunc("/v1/events/publish", s.handlePublish)
	mux.HandleFunc("/v1/events/get", s.handleEventGet)
	mux.HandleFunc("/v1/users/events", s.handleUserEvents)
	return s
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.logger.Info("http listening", logpkg.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ErrNotAuthenticated marks an operation whose connectionId does not map to
// an established identity, either unknown or expired.
var ErrNotAuthenticated = errors.New("http: connection not authenticated")

// writeDomainErr maps service errors onto the HTTP error taxonomy.
func writeDomainErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		writeErr(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, social.ErrValidation):
		writeErr(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, subsvc.ErrTooManySubscriptions):
		writeErr(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, eventsvc.ErrPublishFailed):
		writeErr(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeErr(w, http.StatusNotFound, "not found")
	default:
		writeErr(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.CheckHealth(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_serving"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type connectReq struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req connectReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "malformed request body")
		return
	}
	userID := req.UserID
	if !s.auth.Trusted() {
		claims, err := s.auth.ValidateToken(req.Token)
		if err != nil {
			writeErr(w, http.StatusUnauthorized, "invalid token")
			return
		}
		userID = claims.UserID
	}
	if userID == "" {
		writeErr(w, http.StatusBadRequest, "userId is required")
		return
	}
	connID := uuid.NewString()
	if err := s.rt.Store().PutConnection(r.Context(), connID, userID, s.rt.Config().ConnectionTTL()); err != nil {
		writeErr(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"connectionId": connID, "userId": userID})
}

type disconnectReq struct {
	ConnectionID string `json:"connectionId"`
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req disconnectReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "malformed request body")
		return
	}
	userID, err := s.resolveConnection(r.Context(), req.ConnectionID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	// disconnect withdraws the push channels tied to the live connection
	if err := s.rt.Subscriptions().CleanupForUser(r.Context(), userID,
		[]social.ChannelKind{social.ChannelLivePush, social.ChannelStreamPush}); err != nil {
		writeDomainErr(w, err)
		return
	}
	if err := s.rt.Store().DeleteConnection(r.Context(), req.ConnectionID); err != nil {
		writeDomainErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type subscribeReq struct {
	ConnectionID string               `json:"connectionId"`
	EventTypes   []string             `json:"eventTypes"`
	Channels     []social.ChannelKind `json:"channels"`
	Filters      map[string]any       `json:"filters"`
	FilterExpr   string               `json:"filterExpr"`
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req subscribeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "malformed request body")
		return
	}
	userID, err := s.resolveConnection(r.Context(), req.ConnectionID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	sub, err := s.rt.Subscriptions().Subscribe(r.Context(), userID, req.EventTypes, req.Channels, req.Filters, req.FilterExpr)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

type unsubscribeReq struct {
	ConnectionID string               `json:"connectionId"`
	EventTypes   []string             `json:"eventTypes"`
	Channels     []social.ChannelKind `json:"channels"`
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req unsubscribeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "malformed request body")
		return
	}
	userID, err := s.resolveConnection(r.Context(), req.ConnectionID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if err := s.rt.Subscriptions().Unsubscribe(r.Context(), userID, req.EventTypes, req.Channels); err != nil {
		writeDomainErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type publishReq struct {
	Type         string               `json:"type"`
	OriginUserID string               `json:"originUserId"`
	TargetUserID string               `json:"targetUserId"`
	Payload      map[string]any       `json:"payload"`
	Priority     social.Priority      `json:"priority"`
	Channels     []social.ChannelKind `json:"channels"`
	TTLSeconds   int                  `json:"ttlSeconds"`
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req publishReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "malformed request body")
		return
	}
	ev, err := s.rt.Events().Publish(r.Context(), eventsvc.PublishInput{
		Type:         req.Type,
		OriginUserID: req.OriginUserID,
		TargetUserID: req.TargetUserID,
		Payload:      req.Payload,
		Priority:     req.Priority,
		Channels:     req.Channels,
		TTLSeconds:   req.TTLSeconds,
	})
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": ev.ID})
}

func (s *Server) handleEventGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		writeErr(w, http.StatusBadRequest, "id is required")
		return
	}
	ev, err := s.rt.Events().Get(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleUserEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeErr(w, http.StatusBadRequest, "userId is required")
		return
	}
	events, err := s.rt.Events().UserHistory(r.Context(), userID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if events == nil {
		events = []*social.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"userId": userID, "events": events})
}

// resolveConnection maps a connectionId to its bound userId. An unknown or
// expired binding means the caller never established identity for this
// connection, so it surfaces as ErrNotAuthenticated rather than a plain
// missing record.
func (s *Server) resolveConnection(ctx context.Context, connID string) (string, error) {
	if connID == "" {
		return "", fmt.Errorf("%w: connectionId is required", social.ErrValidation)
	}
	userID, err := s.rt.Store().GetConnection(ctx, connID)
	if errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("%w: unknown connectionId %q", ErrNotAuthenticated, connID)
	}
	return userID, err
}
