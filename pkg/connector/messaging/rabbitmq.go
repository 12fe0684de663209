package messaging

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/connector/base"
	"github.com/fincore/gateway/pkg/errors"
	"github.com/fincore/gateway/pkg/models"
	"github.com/fincore/gateway/pkg/oplog"
)

const (
	defaultRabbitMaxMessages = 10
	rabbitConfirmTimeout     = 10 * time.Second
	defaultRabbitTestQueue   = "test-queue"
)

// amqpSession is the set of AMQP channel calls the connector makes.
type amqpSession interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Get(queue string, autoAck bool) (amqp.Delivery, bool, error)
	// Publish sends msg and reports whether the broker acknowledged it.
	Publish(ctx context.Context, exchange, key string, msg amqp.Publishing) (bool, error)
	IsClosed() bool
	Close() error
}

type amqpDialer func(url string, cfg amqp.Config) (amqpSession, error)

// RabbitMQConnector consumes queues with basic.get polling and publishes
// persistent messages with publisher confirms.
type RabbitMQConnector struct {
	*Broker
	rabbit *rabbitTransport
}

// NewRabbitMQConnector creates a RabbitMQ connector.
func NewRabbitMQConnector(name string, cfg config.Values, rec *oplog.Recorder) *RabbitMQConnector {
	t := &rabbitTransport{cfg: cfg, dial: dialAMQP}
	b := newBroker(base.Options{
		Name:        name,
		DefaultName: "RabbitMQConnector",
		Type:        "rabbitmq",
		Display:     "RabbitMQ server",
		Required:    append(append([]string(nil), commonRequired...), "username", "password"),
		Config:      cfg,
		Recorder:    rec,
	}, "queue", t)
	t.logger = b.Logger()
	return &RabbitMQConnector{Broker: b, rabbit: t}
}

type rabbitTransport struct {
	cfg     config.Values
	dial    amqpDialer
	session amqpSession
	logger  *zap.Logger
}

func (t *rabbitTransport) url() string {
	scheme := "amqp"
	if t.cfg.Bool("tls", false) {
		scheme = "amqps"
	}
	return amqp.URI{
		Scheme:   scheme,
		Host:     t.cfg.String("host", "localhost"),
		Port:     t.cfg.Int("port", 5672),
		Username: t.cfg.String("username", "guest"),
		Password: t.cfg.String("password", "guest"),
		Vhost:    t.cfg.String("vhost", t.cfg.String("virtual_host", "/")),
	}.String()
}

func (t *rabbitTransport) open(context.Context) error {
	ac := amqp.Config{
		Heartbeat: t.cfg.Duration("heartbeat_ms", 10*time.Second),
		Locale:    "en_US",
	}
	if t.cfg.Bool("tls", false) {
		ac.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	session, err := t.dial(t.url(), ac)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "Failed to connect to RabbitMQ")
	}
	t.session = session
	t.logger.Info("connected to RabbitMQ", zap.String("host", t.cfg.String("host", "")))
	return nil
}

func (t *rabbitTransport) close(context.Context) error {
	if t.session == nil {
		return nil
	}
	var err error
	if !t.session.IsClosed() {
		err = t.session.Close()
	}
	t.session = nil
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "Failed to disconnect from RabbitMQ")
	}
	return nil
}

func (t *rabbitTransport) probe(context.Context) (string, error) {
	queue := t.cfg.String("test_queue", defaultRabbitTestQueue)
	if _, err := t.session.QueueDeclare(queue, false, true, false, false, nil); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeConnection, "RabbitMQ connection test failed")
	}
	return "RabbitMQ connection test successful", nil
}

func (t *rabbitTransport) poll(ctx context.Context, dataType string, filters config.Values) (string, []models.Message, error) {
	queue := filters.String("queue", dataType)
	max := filters.Int("max_messages", defaultRabbitMaxMessages)

	if _, err := t.session.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return queue, nil, errors.Wrap(err, errors.ErrorTypeConnection, "Failed to declare queue "+queue)
	}

	var msgs []models.Message
	for len(msgs) < max {
		if ctx.Err() != nil {
			break
		}
		d, ok, err := t.session.Get(queue, true)
		if err != nil {
			return queue, msgs, errors.Wrap(err, errors.ErrorTypeConnection, "Failed to consume messages")
		}
		if !ok {
			break
		}
		ts := d.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		msgs = append(msgs, models.Message{
			Queue:       queue,
			Exchange:    d.Exchange,
			RoutingKey:  d.RoutingKey,
			DeliveryTag: d.DeliveryTag,
			MessageID:   d.MessageId,
			Value:       decodeValue(d.Body),
			Timestamp:   ts,
		})
	}
	return queue, msgs, nil
}

func (t *rabbitTransport) publish(ctx context.Context, payload models.Record, dataType string) (base.Receipt, error) {
	queue := payload.String("queue")
	if queue == "" {
		queue = dataType
	}
	exchange := payload.String("exchange")
	routingKey := payload.String("routing_key")
	if routingKey == "" {
		routingKey = queue
	}

	body, err := messageBody(payload)
	if err != nil {
		return base.Receipt{}, err
	}
	if exchange == "" {
		if _, err := t.session.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return base.Receipt{}, errors.Wrap(err, errors.ErrorTypeConnection, "Failed to declare queue "+queue)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, rabbitConfirmTimeout)
	defer cancel()

	acked, err := t.session.Publish(ctx, exchange, routingKey, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return base.Receipt{}, errors.Wrap(err, errors.ErrorTypeConnection, "Failed to send message")
	}
	if !acked {
		return base.Receipt{}, errors.New(errors.ErrorTypeConnection, "Broker rejected message for queue "+queue)
	}

	return base.Receipt{
		Message: "Message sent to queue " + queue,
		Details: map[string]any{"queue": queue, "exchange": exchange, "routing_key": routingKey},
	}, nil
}

// amqpChannel owns both the connection and its single channel.
type amqpChannel struct {
	*amqp.Channel
	conn *amqp.Connection
}

func dialAMQP(url string, cfg amqp.Config) (amqpSession, error) {
	conn, err := amqp.DialConfig(url, cfg)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &amqpChannel{Channel: ch, conn: conn}, nil
}

func (c *amqpChannel) Publish(ctx context.Context, exchange, key string, msg amqp.Publishing) (bool, error) {
	dc, err := c.Channel.PublishWithDeferredConfirmWithContext(ctx, exchange, key, false, false, msg)
	if err != nil {
		return false, err
	}
	if dc == nil {
		return true, nil
	}
	return dc.WaitContext(ctx)
}

func (c *amqpChannel) IsClosed() bool {
	return c.conn.IsClosed()
}

func (c *amqpChannel) Close() error {
	chErr := c.Channel.Close()
	if stderrors.Is(chErr, amqp.ErrClosed) {
		chErr = nil
	}
	return stderrors.Join(chErr, c.conn.Close())
}
