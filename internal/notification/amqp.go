package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Exchange is the topic exchange notifications are published to. The message
// kind is the routing key.
const Exchange = "food_voucher.events"

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// AMQPNotifier publishes notifications as JSON to a RabbitMQ topic exchange.
type AMQPNotifier struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	pub      publisher
	exchange string
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	if !strings.HasSuffix(clean, "/") {
		clean += "/"
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewAMQPNotifier dials the broker and declares the exchange.
func NewAMQPNotifier(amqpURL string) (*AMQPNotifier, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}
	conn, err := amqp091.Dial(cleanURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := channel.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPNotifier{conn: conn, channel: channel, pub: channel, exchange: Exchange}, nil
}

// Send publishes message with its kind as routing key.
func (n *AMQPNotifier) Send(ctx context.Context, message Message) error {
	if message.OccurredAt.IsZero() {
		message.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return n.pub.PublishWithContext(ctx, n.exchange, message.Kind, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    message.OccurredAt,
		Body:         body,
	})
}

// Close closes the channel and connection.
func (n *AMQPNotifier) Close() {
	if n.channel != nil {
		n.channel.Close()
	}
	if n.conn != nil {
		n.conn.Close()
	}
}
