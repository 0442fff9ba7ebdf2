package realtime

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/easelbid/easelbid/pkg/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checks belong to the gateway in front of this service.
		return true
	},
}

// Handler upgrades HTTP requests into hub subscriptions.
type Handler struct {
	hub      *Hub
	verifier *auth.Verifier
	logger   *slog.Logger
}

func NewHandler(hub *Hub, verifier *auth.Verifier, logger *slog.Logger) *Handler {
	return &Handler{hub: hub, verifier: verifier, logger: logger}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/ws/lots/{lotID}", h.subscribe("lot"))
	r.Get("/ws/auctions/{auctionID}", h.subscribe("auction"))
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(h.verifier))
		r.Get("/ws/users/{userID}", h.subscribeUser)
	})
	r.Get("/health", h.health)
	return r
}

func (h *Handler) subscribe(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, kind+"ID"))
		if err != nil {
			http.Error(w, "invalid "+kind+" id", http.StatusBadRequest)
			return
		}
		h.serve(w, r, fmt.Sprintf("%s:%s", kind, id))
	}
}

// subscribeUser streams per-user notifications. A principal may only watch
// its own channel.
func (h *Handler) subscribeUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	principal := auth.MustGetPrincipal(r.Context())
	if principal.UserID != id {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	h.serve(w, r, fmt.Sprintf("user:%s", id))
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, topic string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		topic: topic,
		conn:  conn,
		send:  make(chan []byte, 256),
	}
	h.hub.register <- client

	go client.writePump()
	go client.readPump(h.hub.unregister)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"status":"ok"}`)
}
