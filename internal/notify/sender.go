package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// LogSender writes notices to the log instead of delivering them.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, n Notice) error {
	s.logger.InfoContext(ctx, "notice", "kind", n.Kind, "to", n.Recipient.Email, "subject", n.Subject)
	return nil
}

// AMQPSender publishes notices as persistent JSON messages on a durable queue
// for the mail service to consume.
type AMQPSender struct {
	conn    *amqp.Connection
	mu      sync.Mutex
	channel *amqp.Channel
	queue   amqp.Queue
}

func NewAMQPSender(url, queue string) (*AMQPSender, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}

	return &AMQPSender{conn: conn, channel: ch, queue: q}, nil
}

func (s *AMQPSender) Send(ctx context.Context, n Notice) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}

	// channels are not safe for concurrent publishing
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.channel.PublishWithContext(ctx, "", s.queue.Name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         string(n.Kind),
		Body:         body,
	})
}

func (s *AMQPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.channel.Close(); err != nil {
		_ = s.conn.Close()
		return err
	}
	return s.conn.Close()
}
