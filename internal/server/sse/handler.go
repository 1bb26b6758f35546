// Package sse implements the server-sent-events transport for stream
// subscriptions.
//
// Each request subscribes to the channel named in the URL, then loops
// forwarding messages to the client as event-stream frames until the
// client disconnects or the subscription completes. Periodic comment
// heartbeats keep intermediaries from idling the connection out.
package sse

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/codewired/razorwire/internal/domain"
	"github.com/codewired/razorwire/internal/domain/ports"
)

// DefaultHeartbeat is the interval between heartbeat comments.
const DefaultHeartbeat = 30 * time.Second

// Handler serves a channel's stream as text/event-stream.
type Handler struct {
	hub        ports.StreamHub
	authorizer ports.ChannelAuthorizer
	heartbeat  time.Duration
}

// NewHandler creates an SSE handler. A nil authorizer permits every
// subscription; a non-positive heartbeat falls back to the default.
func NewHandler(hub ports.StreamHub, authorizer ports.ChannelAuthorizer, heartbeat time.Duration) *Handler {
	if authorizer == nil {
		authorizer = ports.AllowAll()
	}
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &Handler{
		hub:        hub,
		authorizer: authorizer,
		heartbeat:  heartbeat,
	}
}

// ServeHTTP streams messages for the channel in the request path.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	channel := mux.Vars(r)["channel"]

	if !h.authorizer.CanSubscribe(r.Context(), channel) {
		log.Warn().Str("channel", channel).Str("remote_addr", r.RemoteAddr).Msg("subscription denied")
		http.Error(w, domain.ErrChannelForbidden.Error(), http.StatusForbidden)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, domain.ErrStreamUnsupported.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := h.hub.Subscribe(channel)
	defer h.hub.Unsubscribe(channel, sub)

	// Open the stream so clients and proxies see headers immediately.
	_, _ = io.WriteString(w, ": ok\n\n")
	flusher.Flush()

	log.Debug().
		Str("channel", channel).
		Str("subscription_id", sub.ID()).
		Str("remote_addr", r.RemoteAddr).
		Msg("stream opened")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Debug().
				Str("channel", channel).
				Str("subscription_id", sub.ID()).
				Msg("client disconnected")
			return

		case msg, ok := <-sub.Messages():
			if !ok {
				// Subscription completed hub-side.
				return
			}
			if _, err := io.WriteString(w, formatEvent(msg)); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// formatEvent frames a message as an event-stream data event. The
// format is line oriented, so multi-line payloads get one data: line
// per line and reassemble client-side.
func formatEvent(msg string) string {
	var b strings.Builder
	for _, line := range strings.Split(msg, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.String()
}
