package webhook

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

const businessAccountObject = "whatsapp_business_account"

// Envelope fields are decoded lazily so that a malformed message only fails
// itself, not the whole callback.

type waEnvelope struct {
	Object string          `json:"object"`
	Entry  json.RawMessage `json:"entry"`
}

type waEntry struct {
	ID      string     `json:"id"`
	Changes []waChange `json:"changes"`
}

type waChange struct {
	Field string   `json:"field"`
	Value *waValue `json:"value"`
}

type waValue struct {
	MessagingProduct string          `json:"messaging_product"`
	Messages         json.RawMessage `json:"messages"`
	Statuses         json.RawMessage `json:"statuses"`
}

type waMessage struct {
	ID        string       `json:"id"`
	From      string       `json:"from"`
	Type      string       `json:"type"`
	Timestamp epochSeconds `json:"timestamp"`
	Text      *waText      `json:"text,omitempty"`
}

type waText struct {
	Body *string `json:"body"`
}

type waStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	RecipientID string `json:"recipient_id"`
}

// epochSeconds accepts the platform timestamp as a quoted or bare integer.
// Anything else leaves it unset instead of failing the message.
type epochSeconds struct {
	t     time.Time
	valid bool
}

func (e *epochSeconds) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(b, `"`))
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	e.t, e.valid = time.Unix(n, 0), true
	return nil
}

const displayLayout = "1/2/2006, 3:04:05 PM"

func (e epochSeconds) String() string {
	if !e.valid {
		return ""
	}
	return e.t.Local().Format(displayLayout)
}

// items splits an optional JSON list into its elements. An absent or null
// field yields no elements.
func items(raw json.RawMessage) ([]json.RawMessage, error) {
	if isAbsent(raw) {
		return nil, nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
