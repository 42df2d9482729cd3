// internal/model/message.go
package model

import "encoding/json"

type MessageType string

const (
	TextMessage     MessageType = "text"
	ImageMessage    MessageType = "image"
	VideoMessage    MessageType = "video"
	AudioMessage    MessageType = "audio"
	DocumentMessage MessageType = "document"
)

// Message is one inbound WhatsApp message as kept in the history.
type Message struct {
	ID        string          `json:"id"`
	From      string          `json:"from"`
	Text      string          `json:"text"`
	Type      MessageType     `json:"type"`
	Timestamp string          `json:"timestamp"`
	Raw       json.RawMessage `json:"raw"`
}

// Placeholder returns the label stored in place of non-text content.
func (t MessageType) Placeholder() string {
	switch t {
	case ImageMessage:
		return "[Image]"
	case VideoMessage:
		return "[Video]"
	case AudioMessage:
		return "[Audio]"
	case DocumentMessage:
		return "[Document]"
	default:
		return "[" + string(t) + "]"
	}
}
