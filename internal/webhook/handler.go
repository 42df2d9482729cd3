// Package webhook receives WhatsApp Cloud API callbacks: the subscription
// verification handshake (GET) and event notifications (POST).
package webhook

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"whatsapp-relay/internal/metrics"
	"whatsapp-relay/internal/model"
)

const maxBodySize = 1 << 20

var errStructure = errors.New("malformed webhook envelope")

// Recorder stores normalized messages.
type Recorder interface {
	Append(m model.Message)
}

// Publisher receives every stored message. Failures are logged and ignored.
type Publisher interface {
	PublishMessage(m model.Message) error
}

type Config struct {
	VerifyToken string
	Store       Recorder
	Publisher   Publisher
	Logger      zerolog.Logger
}

type Handler struct {
	verifyToken string
	store       Recorder
	publisher   Publisher
	logger      zerolog.Logger
}

func NewHandler(cfg Config) *Handler {
	return &Handler{
		verifyToken: cfg.VerifyToken,
		store:       cfg.Store,
		publisher:   cfg.Publisher,
		logger:      cfg.Logger,
	}
}

// Verify answers the hub.challenge handshake Meta performs when the webhook
// URL is registered.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	h.logger.Info().
		Str("mode", mode).
		Bool("token_present", token != "").
		Msg("webhook verification attempt")

	if mode != "subscribe" || !h.tokenMatches(token) {
		h.logger.Warn().Str("mode", mode).Msg("webhook verification failed")
		w.WriteHeader(http.StatusForbidden)
		return
	}

	h.logger.Info().Msg("webhook verified")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, challenge)
}

func (h *Handler) tokenMatches(token string) bool {
	if h.verifyToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.verifyToken)) == 1
}

// Receive ingests an event notification.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	var env waEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		h.logger.Warn().Err(err).Msg("webhook body is not valid JSON")
		metrics.WebhookRejected.WithLabelValues("invalid_json").Inc()
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	if env.Object != businessAccountObject {
		h.logger.Warn().Str("object", env.Object).Msg("not a whatsapp business account webhook")
		metrics.WebhookRejected.WithLabelValues("object").Inc()
		w.WriteHeader(http.StatusNotFound)
		return
	}

	entries, err := decodeEntries(env.Entry)
	if err != nil {
		h.logger.Error().Err(err).Msg("error processing webhook")
		metrics.WebhookRejected.WithLabelValues("structure").Inc()
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	for _, entry := range entries {
		for _, change := range entry.Changes {
			h.ingestMessages(entry.ID, change.Value.Messages)
			h.observeStatuses(entry.ID, change.Value.Statuses)
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "EVENT_RECEIVED")
}

func (h *Handler) ingestMessages(entryID string, raw json.RawMessage) {
	messages, err := items(raw)
	if err != nil {
		h.logger.Warn().Err(err).Str("entry", entryID).Msg("messages field is not a list")
		metrics.WebhookRejected.WithLabelValues("message").Inc()
		return
	}

	for i, item := range messages {
		m, err := normalize(item)
		if err != nil {
			h.logger.Warn().Err(err).Str("entry", entryID).Int("index", i).Msg("skipping message")
			metrics.WebhookRejected.WithLabelValues("message").Inc()
			continue
		}
		h.record(m)
	}
}

func (h *Handler) record(m model.Message) {
	h.store.Append(m)
	metrics.WebhookMessages.WithLabelValues(string(m.Type)).Inc()

	h.logger.Info().
		Str("from", m.From).
		Str("type", string(m.Type)).
		Str("text", m.Text).
		Str("time", m.Timestamp).
		Msg("whatsapp message received")

	if h.publisher == nil {
		return
	}
	if err := h.publisher.PublishMessage(m); err != nil {
		h.logger.Error().Err(err).Str("id", m.ID).Msg("failed to publish message event")
	}
}

// observeStatuses logs delivery/read receipts. They are never stored.
func (h *Handler) observeStatuses(entryID string, raw json.RawMessage) {
	statuses, err := items(raw)
	if err != nil {
		h.logger.Warn().Err(err).Str("entry", entryID).Msg("statuses field is not a list")
		metrics.WebhookRejected.WithLabelValues("statuses").Inc()
		return
	}

	for _, item := range statuses {
		var st waStatus
		if err := json.Unmarshal(item, &st); err != nil || st.Status == "" {
			continue
		}
		metrics.WebhookStatuses.WithLabelValues(st.Status).Inc()
		h.logger.Info().Str("status", st.Status).Str("id", st.ID).Msg("message status")
	}
}

// decodeEntries checks the entry/changes/value skeleton before anything is
// stored, so a structural fault leaves the history untouched.
func decodeEntries(raw json.RawMessage) ([]waEntry, error) {
	if isAbsent(raw) {
		return nil, fmt.Errorf("%w: missing entry", errStructure)
	}

	var entries []waEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", errStructure, err)
	}

	for i, entry := range entries {
		if entry.Changes == nil {
			return nil, fmt.Errorf("%w: entry %d has no changes", errStructure, i)
		}
		for j, change := range entry.Changes {
			if change.Value == nil {
				return nil, fmt.Errorf("%w: entry %d change %d has no value", errStructure, i, j)
			}
		}
	}
	return entries, nil
}

// normalize turns one platform message into a history record.
func normalize(raw json.RawMessage) (model.Message, error) {
	var msg waMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return model.Message{}, fmt.Errorf("decode message: %w", err)
	}
	if msg.Type == "" {
		return model.Message{}, errors.New("message has no type")
	}

	kind := model.MessageType(msg.Type)
	text := kind.Placeholder()
	if kind == model.TextMessage {
		if msg.Text == nil || msg.Text.Body == nil {
			return model.Message{}, errors.New("text message has no body")
		}
		text = *msg.Text.Body
	}

	return model.Message{
		ID:        msg.ID,
		From:      msg.From,
		Text:      text,
		Type:      kind,
		Timestamp: msg.Timestamp.String(),
		Raw:       append(json.RawMessage(nil), raw...),
	}, nil
}
