package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"guardian_relay/internal/domain"
)

// RabbitMQ is a Broker backed by an AMQP 0-9-1 server. It holds a single
// channel and is meant for use from one goroutine.
type RabbitMQ struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	returns  chan amqp.Return
	uri      amqp.URI
	exchange string
	logger   *slog.Logger
}

type RabbitMQConfig struct {
	URL string
	// Exchange is optional. When set, queues are bound to it with their
	// own name as routing key and messages go through it.
	Exchange string
}

func NewRabbitMQ(cfg RabbitMQConfig, logger *slog.Logger) (*RabbitMQ, error) {
	uri, err := amqp.ParseURI(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse rabbitmq url: %w", err)
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	r := &RabbitMQ{
		conn:     conn,
		uri:      uri,
		exchange: cfg.Exchange,
		logger:   logger,
	}

	ch, err := r.openChannel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if cfg.Exchange != "" {
		err = ch.ExchangeDeclare(
			cfg.Exchange,
			"direct",
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("declare exchange: %w", err)
		}
	}

	logger.Info("connected to rabbitmq",
		"host", uri.Host,
		"vhost", uri.Vhost,
		"exchange", cfg.Exchange,
	)

	return r, nil
}

// Ensure declares a durable queue whose messages expire after retention.
// Redeclaring with the same arguments returns the existing queue.
func (r *RabbitMQ) Ensure(_ context.Context, name string, retention time.Duration) (domain.QueueHandle, error) {
	ch, err := r.openChannel()
	if err != nil {
		return domain.QueueHandle{}, err
	}

	q, err := ch.QueueDeclare(
		name,
		true,
		false,
		false,
		false,
		amqp.Table{"x-message-ttl": retention.Milliseconds()},
	)
	if err != nil {
		return domain.QueueHandle{}, fmt.Errorf("declare queue: %w", err)
	}

	if r.exchange != "" {
		if err := ch.QueueBind(q.Name, q.Name, r.exchange, false, nil); err != nil {
			return domain.QueueHandle{}, fmt.Errorf("bind queue: %w", err)
		}
	}

	return domain.QueueHandle{Name: q.Name, URL: r.queueURL(q.Name)}, nil
}

// Send publishes as mandatory on a confirm-mode channel and waits for the
// broker's ack. A returned (unroutable) or nacked message is an error.
func (r *RabbitMQ) Send(ctx context.Context, queue domain.QueueHandle, body []byte) error {
	ch, err := r.openChannel()
	if err != nil {
		return err
	}
	r.drainReturns()

	messageID := uuid.NewString()
	confirm, err := ch.PublishWithDeferredConfirmWithContext(
		ctx,
		r.exchange,
		queue.Name,
		true,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    messageID,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("wait for confirm: %w", err)
	}

	// basic.return arrives before the ack for the same message
	select {
	case ret := <-r.returns:
		return returnedError(ret)
	default:
	}

	if !acked {
		return fmt.Errorf("publish message: broker nacked message %s", messageID)
	}

	r.logger.Debug("published message", "queue", queue.Name, "message_id", messageID)
	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// openChannel replaces the channel after the server closed it, which it
// does on any failed declare. New channels are put in confirm mode with a
// listener for returned messages.
func (r *RabbitMQ) openChannel() (*amqp.Channel, error) {
	if r.channel != nil && !r.channel.IsClosed() {
		return r.channel, nil
	}
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}
	r.returns = ch.NotifyReturn(make(chan amqp.Return, 1))
	r.channel = ch
	return ch, nil
}

func (r *RabbitMQ) drainReturns() {
	for {
		select {
		case <-r.returns:
		default:
			return
		}
	}
}

func returnedError(ret amqp.Return) error {
	return fmt.Errorf("message returned by broker: %d %s (exchange %q, routing key %q)",
		ret.ReplyCode, ret.ReplyText, ret.Exchange, ret.RoutingKey)
}

// queueURL renders a credential-free address for the queue.
func (r *RabbitMQ) queueURL(name string) string {
	return fmt.Sprintf("%s://%s:%d/%s/%s",
		r.uri.Scheme, r.uri.Host, r.uri.Port, url.PathEscape(r.uri.Vhost), url.PathEscape(name))
}
