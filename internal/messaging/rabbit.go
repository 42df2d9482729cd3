// internal/messaging/rabbit.go
package messaging

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	"whatsapp-relay/internal/model"
)

// RabbitClient fans out every stored inbound message to a durable queue.
type RabbitClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	logger  zerolog.Logger
	URL     string

	mu sync.Mutex
}

func NewRabbitClient(url, queue string, logger zerolog.Logger) (*RabbitClient, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	r := &RabbitClient{
		conn:    conn,
		channel: ch,
		queue:   queue,
		logger:  logger,
		URL:     url,
	}
	if err := r.DeclareQueue(queue); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *RabbitClient) GetChannel() *amqp.Channel {
	return r.channel
}

// DeclareQueue creates a durable queue
func (r *RabbitClient) DeclareQueue(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.channel.QueueDeclare(
		name,
		true, false, false, false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}

	r.logger.Info().Str("queue", name).Msg("rabbitmq queue declared")
	return nil
}

// Publish sends a raw JSON body to the named queue
func (r *RabbitClient) Publish(queue string, body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.channel.Publish(
		"",    // default exchange
		queue, // routing key (queue name)
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now(),
			Type:         "whatsapp.message.received",
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to queue %s: %w", queue, err)
	}
	return nil
}

// PublishMessage sends a stored message record to the configured queue.
func (r *RabbitClient) PublishMessage(m model.Message) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal message %s: %w", m.ID, err)
	}
	return r.Publish(r.queue, body)
}

// Close cleans up connection and channel
func (r *RabbitClient) Close() error {
	if err := r.channel.Close(); err != nil {
		return err
	}
	if err := r.conn.Close(); err != nil {
		return err
	}
	return nil
}
