// Package relay forwards outbound text messages to the WhatsApp Cloud API.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"whatsapp-relay/internal/metrics"
)

var ErrNotConfigured = errors.New("whatsapp access token or phone number id not configured")

// APIError is a failed send. Details holds the upstream JSON body, if any.
type APIError struct {
	StatusCode int
	Message    string
	Details    json.RawMessage
}

func (e *APIError) Error() string { return e.Message }

type Config struct {
	BaseURL       string
	AccessToken   string
	PhoneNumberID string
	Timeout       time.Duration
	Logger        zerolog.Logger
}

// Client sends messages on behalf of one WhatsApp business phone number.
type Client struct {
	baseURL       string
	accessToken   string
	phoneNumberID string
	http          *http.Client
	logger        zerolog.Logger
}

// SendResult is the Graph API answer to a successful send.
type SendResult struct {
	MessageID string
	Data      json.RawMessage
}

type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	Body string `json:"body"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type graphError struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		accessToken:   cfg.AccessToken,
		phoneNumberID: cfg.PhoneNumberID,
		http:          &http.Client{Timeout: cfg.Timeout},
		logger:        cfg.Logger,
	}
}

func (c *Client) Configured() bool {
	return c.accessToken != "" && c.phoneNumberID != ""
}

// Send posts a text message to the recipient. It never retries.
func (c *Client) Send(ctx context.Context, to, text string) (*SendResult, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(sendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             textBody{Body: text},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal send request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.OutboundLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, &APIError{Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, upstreamError(resp.StatusCode, respBody)
	}

	var parsed sendResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil || len(parsed.Messages) == 0 || parsed.Messages[0].ID == "" {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    "unexpected response: missing message id",
			Details:    jsonOrNil(respBody),
		}
	}

	c.logger.Debug().Str("to", to).Str("message_id", parsed.Messages[0].ID).Msg("graph api accepted message")
	return &SendResult{MessageID: parsed.Messages[0].ID, Data: respBody}, nil
}

// upstreamError prefers the Graph API's error.message over the generic status text.
func upstreamError(status int, body []byte) *APIError {
	e := &APIError{
		StatusCode: status,
		Message:    fmt.Sprintf("Request failed with status code %d", status),
		Details:    jsonOrNil(body),
	}
	var ge graphError
	if json.Unmarshal(body, &ge) == nil && ge.Error != nil && ge.Error.Message != "" {
		e.Message = ge.Error.Message
	}
	return e
}

func jsonOrNil(b []byte) json.RawMessage {
	if len(b) == 0 || !json.Valid(b) {
		return nil
	}
	return json.RawMessage(b)
}
