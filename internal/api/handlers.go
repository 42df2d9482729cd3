package api

import (
	_ "embed"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "whatsapp-relay/docs"
	"whatsapp-relay/internal/metrics"
	"whatsapp-relay/internal/model"
	"whatsapp-relay/internal/relay"
)

//go:embed static/index.html
var dashboardHTML []byte

const (
	notConfigured    = "Not configured"
	tokenPrefixLen   = 20
	missingFieldsMsg = `Missing required fields: "to" and "message"`
	notConfiguredMsg = "Server not configured. Missing WHATSAPP_TOKEN or PHONE_NUMBER_ID"
)

// SendMessageRequest is the body of POST /api/send-message.
type SendMessageRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type SendMessageResponse struct {
	Success   bool            `json:"success"`
	MessageID string          `json:"messageId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
}

type MessagesResponse struct {
	Success  bool            `json:"success"`
	Count    int             `json:"count"`
	Messages []model.Message `json:"messages"`
}

type SettingsResponse struct {
	WebhookURL    string `json:"webhook_url"`
	VerifyToken   string `json:"verify_token"`
	PhoneNumberID string `json:"phone_number_id"`
	WhatsAppToken string `json:"whatsapp_token"`
	ServerStatus  string `json:"server_status"`
	Port          int    `json:"port"`
}

type HealthResponse struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
	Uptime    float64 `json:"uptime"`
}

func (a *API) Router() http.Handler {
	return a.Routers
}

func (a *API) routes() {
	r := a.Routers
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(a.Logger))
	r.Use(middleware.Recoverer)

	r.NotFound(a.NotFound)
	r.MethodNotAllowed(a.NotFound)

	r.Get("/", a.Dashboard)

	// Meta webhook
	r.Get("/webhook", a.Webhook.Verify)
	r.Post("/webhook", a.Webhook.Receive)

	r.Route("/api", func(r chi.Router) {
		r.Post("/send-message", a.SendMessage)
		r.Get("/settings", a.Settings)
		r.Get("/messages", a.ListMessages)
	})

	r.Get("/health", a.Health)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}

func (a *API) Dashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(dashboardHTML)
}

// @Summary Send a text message
// @Tags Messages
// @Accept json
// @Produce json
// @Param body body SendMessageRequest true "Recipient and text"
// @Success 200 {object} SendMessageResponse
// @Failure 400 {object} SendMessageResponse
// @Failure 500 {object} SendMessageResponse
// @Router /api/send-message [post]
func (a *API) SendMessage(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSendRequest(w, r)
	if err != nil || req.To == "" || req.Message == "" {
		writeJSON(w, http.StatusBadRequest, SendMessageResponse{Error: missingFieldsMsg})
		return
	}

	if !a.Cfg.OutboundEnabled() {
		metrics.OutboundSends.WithLabelValues("not_configured").Inc()
		writeJSON(w, http.StatusInternalServerError, SendMessageResponse{Error: notConfiguredMsg})
		return
	}

	res, err := a.Relay.Send(r.Context(), req.To, req.Message)
	if err != nil {
		metrics.OutboundSends.WithLabelValues("error").Inc()
		resp := SendMessageResponse{Error: err.Error()}
		var apiErr *relay.APIError
		if errors.As(err, &apiErr) {
			resp.Details = apiErr.Details
		}
		if errors.Is(err, relay.ErrNotConfigured) {
			resp.Error = notConfiguredMsg
		}
		a.Logger.Error().Str("to", req.To).Str("error", resp.Error).Msg("failed to send message")
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}

	metrics.OutboundSends.WithLabelValues("success").Inc()
	a.Logger.Info().Str("to", req.To).Str("message_id", res.MessageID).Msg("message sent")
	writeJSON(w, http.StatusOK, SendMessageResponse{
		Success:   true,
		MessageID: res.MessageID,
		Data:      res.Data,
	})
}

// @Summary Show non-secret configuration
// @Tags Settings
// @Produce json
// @Success 200 {object} SettingsResponse
// @Router /api/settings [get]
func (a *API) Settings(w http.ResponseWriter, r *http.Request) {
	wa := a.Cfg.WhatsApp
	writeJSON(w, http.StatusOK, SettingsResponse{
		WebhookURL:    webhookURL(r),
		VerifyToken:   orNotConfigured(wa.VerifyToken),
		PhoneNumberID: orNotConfigured(wa.PhoneNumberID),
		WhatsAppToken: maskToken(wa.AccessToken),
		ServerStatus:  "Running",
		Port:          a.Cfg.Server.Port,
	})
}

// @Summary List received messages, newest first
// @Tags Messages
// @Produce json
// @Success 200 {object} MessagesResponse
// @Router /api/messages [get]
func (a *API) ListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, count := a.History.List()
	writeJSON(w, http.StatusOK, MessagesResponse{
		Success:  true,
		Count:    count,
		Messages: msgs,
	})
}

// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "OK",
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Uptime:    time.Since(a.startedAt).Seconds(),
	})
}

func (a *API) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
}

// decodeSendRequest accepts a JSON or form-encoded body.
func decodeSendRequest(w http.ResponseWriter, r *http.Request) (SendMessageRequest, error) {
	var req SendMessageRequest
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return req, err
		}
		req.To = r.PostForm.Get("to")
		req.Message = r.PostForm.Get("message")
		return req, nil
	}

	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req)
	return req, err
}

func webhookURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	return scheme + "://" + r.Host + "/webhook"
}

// maskToken shows at most tokenPrefixLen characters, and never more than half
// of the token.
func maskToken(token string) string {
	if token == "" {
		return notConfigured
	}
	n := min(tokenPrefixLen, len(token)/2)
	return token[:n] + "..."
}

func orNotConfigured(v string) string {
	if v == "" {
		return notConfigured
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
