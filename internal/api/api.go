package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"whatsapp-relay/internal/config"
	"whatsapp-relay/internal/history"
	"whatsapp-relay/internal/relay"
)

// Sender relays an outbound text message.
type Sender interface {
	Send(ctx context.Context, to, text string) (*relay.SendResult, error)
}

// WebhookHandler serves the platform callback endpoints.
type WebhookHandler interface {
	Verify(w http.ResponseWriter, r *http.Request)
	Receive(w http.ResponseWriter, r *http.Request)
}

type API struct {
	Routers *chi.Mux
	History *history.Store
	Relay   Sender
	Webhook WebhookHandler
	Cfg     *config.Config
	Logger  zerolog.Logger

	startedAt time.Time
}

func NewAPI(store *history.Store, sender Sender, hook WebhookHandler, cfg *config.Config, logger zerolog.Logger) *API {
	a := &API{
		Routers:   chi.NewRouter(),
		History:   store,
		Relay:     sender,
		Webhook:   hook,
		Cfg:       cfg,
		Logger:    logger,
		startedAt: time.Now(),
	}
	a.routes()
	return a
}
