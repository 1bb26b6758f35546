// Package websocket provides the WebSocket transport for stream
// subscriptions. It is one-way: each connection drains a single
// subscription and forwards every message as a text frame, with
// ping/pong liveness handled by the pumps.
package websocket

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/codewired/razorwire/internal/domain"
	"github.com/codewired/razorwire/internal/domain/ports"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Streams carry server-rendered fragments only; origin policy
		// is left to the deployment's proxy.
		return true
	},
}

// Handler upgrades requests and bridges the connection to a
// subscription on the channel named in the URL.
type Handler struct {
	hub        ports.StreamHub
	authorizer ports.ChannelAuthorizer
}

// NewHandler creates a WebSocket handler. A nil authorizer permits
// every subscription.
func NewHandler(hub ports.StreamHub, authorizer ports.ChannelAuthorizer) *Handler {
	if authorizer == nil {
		authorizer = ports.AllowAll()
	}
	return &Handler{hub: hub, authorizer: authorizer}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	channel := mux.Vars(r)["channel"]

	if !h.authorizer.CanSubscribe(r.Context(), channel) {
		log.Warn().Str("channel", channel).Str("remote_addr", r.RemoteAddr).Msg("subscription denied")
		http.Error(w, domain.ErrChannelForbidden.Error(), http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	sub := h.hub.Subscribe(channel)
	c := newClient(conn, sub, func() {
		h.hub.Unsubscribe(channel, sub)
	})

	log.Info().
		Str("channel", channel).
		Str("subscription_id", sub.ID()).
		Str("remote_addr", conn.RemoteAddr().String()).
		Msg("client connected")

	c.start()
}
