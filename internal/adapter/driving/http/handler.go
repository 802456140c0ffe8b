package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"github.com/Wyydra/safemeet/internal/adapter/driven/gateway/ws"
	"github.com/Wyydra/safemeet/internal/core/service"
)

// RelayLimits bounds every relay connection.
type RelayLimits struct {
	WriteTimeout    time.Duration
	MaxMessageBytes int64
	PingInterval    time.Duration
}

var DefaultRelayLimits = RelayLimits{
	WriteTimeout:    5 * time.Second,
	MaxMessageBytes: 64 * 1024,
	PingInterval:    30 * time.Second,
}

type Handler struct {
	Meets  *service.MeetService
	Relay  *service.RelayService
	Hub    *ws.Hub
	Limits RelayLimits

	validate *validator.Validate
	upgrader websocket.Upgrader
}

func NewHandler(meets *service.MeetService, relay *service.RelayService, hub *ws.Hub, limits RelayLimits) *Handler {
	return &Handler{
		Meets:    meets,
		Relay:    relay,
		Hub:      hub,
		Limits:   limits,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browsers connect from whatever origin serves the UI.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Health)

	r.Route("/meets", func(r chi.Router) {
		r.Post("/", h.CreateMeet)
		r.Get("/{meetCode}", h.GetMeet)
		r.Post("/{meetCode}/join", h.JoinMeet)
		r.Patch("/{id}/end", h.EndMeet)
	})

	r.Get("/ws", h.ServeWS)

	return r
}
