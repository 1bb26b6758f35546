// Package http implements the HTTP server for razorwire: the publish
// API, the stream endpoints (SSE and WebSocket), and introspection.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/codewired/razorwire/internal/domain"
	"github.com/codewired/razorwire/internal/domain/ports"
	"github.com/codewired/razorwire/internal/server/http/middleware"
)

// maxPayloadBytes bounds the publish request body. Fragments are small;
// anything larger is a misbehaving producer.
const maxPayloadBytes = 1 << 20

// Server is the HTTP server.
type Server struct {
	server *http.Server
	router *mux.Router
	addr   string

	hub          ports.StreamHub
	publishToken string
	rateLimiter  *middleware.RateLimiter

	startTime time.Time
}

// New creates a new HTTP server. streamHandler and wsHandler serve the
// subscription endpoints; publishToken, when non-empty, is required as
// a bearer token on publish calls; a nil rateLimiter disables limiting.
func New(host string, port int, hub ports.StreamHub, streamHandler, wsHandler http.Handler, publishToken string, rateLimiter *middleware.RateLimiter) *Server {
	s := &Server{
		addr:         fmt.Sprintf("%s:%d", host, port),
		router:       mux.NewRouter(),
		hub:          hub,
		publishToken: publishToken,
		rateLimiter:  rateLimiter,
		startTime:    time.Now(),
	}

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)

	var publish http.Handler = http.HandlerFunc(s.handlePublish)
	if rateLimiter != nil {
		// Limit per bearer token when one is sent, per client IP otherwise.
		keyExtractor := middleware.HeaderKeyExtractor("Authorization")
		publish = middleware.RateLimitMiddleware(rateLimiter, keyExtractor)(publish)
	}
	s.router.Handle("/streams/{channel}", publish).Methods(http.MethodPost)

	if streamHandler != nil {
		s.router.Handle("/streams/{channel}", streamHandler).Methods(http.MethodGet)
	}
	if wsHandler != nil {
		s.router.Handle("/streams/{channel}/ws", wsHandler).Methods(http.MethodGet)
	}

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.router,
		// No ReadTimeout/WriteTimeout: the stream endpoints hold
		// responses open indefinitely and manage their own liveness.
	}

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Info().Str("addr", s.addr).Msg("http server starting")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server error")
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	log.Info().Msg("http server stopping")
	return s.server.Shutdown(ctx)
}

// Router returns the underlying router, for mounting in tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// handlePublish accepts a message body and fans it out to the channel's
// subscribers.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	channel := mux.Vars(r)["channel"]
	if channel == "" {
		writeJSONError(w, domain.ErrCodeEmptyChannel, domain.ErrEmptyChannel.Error(), http.StatusBadRequest)
		return
	}

	if s.publishToken != "" {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token != s.publishToken {
			writeJSONError(w, domain.ErrCodeChannelForbidden, "invalid publish token", http.StatusUnauthorized)
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes+1))
	if err != nil {
		writeJSONError(w, domain.ErrCodeInvalidPayload, "failed to read request body", http.StatusBadRequest)
		return
	}
	if len(body) > maxPayloadBytes {
		writeJSONError(w, domain.ErrCodeInvalidPayload, "payload too large", http.StatusRequestEntityTooLarge)
		return
	}

	if err := s.hub.Publish(channel, string(body)); err != nil {
		log.Error().Err(err).Str("channel", channel).Msg("publish failed")
		writeJSONError(w, domain.ErrCodeInternalError, "publish failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// StatusResponse is the response body for /api/status.
type StatusResponse struct {
	UptimeSeconds int64          `json:"uptime_seconds"`
	ChannelCount  int            `json:"channel_count"`
	Channels      map[string]int `json:"channels"` // name -> subscriber count
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	names := s.hub.Channels()
	sort.Strings(names)

	channels := make(map[string]int, len(names))
	for _, name := range names {
		channels[name] = s.hub.SubscriberCount(name)
	}

	resp := StatusResponse{
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		ChannelCount:  s.hub.ChannelCount(),
		Channels:      channels,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}
