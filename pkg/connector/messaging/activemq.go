package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/go-stomp/stomp/v3"
	"github.com/go-stomp/stomp/v3/frame"
	"go.uber.org/zap"

	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/connector/base"
	"github.com/fincore/gateway/pkg/errors"
	"github.com/fincore/gateway/pkg/models"
	"github.com/fincore/gateway/pkg/oplog"
)

const (
	defaultStompMaxMessages = 10
	stompReceiptTimeout     = 10 * time.Second
)

// stompSession is the set of STOMP calls the connector makes.
type stompSession interface {
	// Send publishes body and waits for the broker receipt.
	Send(destination string, body []byte, headers map[string]string) error
	// Drain subscribes to destination and collects up to max messages
	// until timeout, then unsubscribes.
	Drain(ctx context.Context, destination string, max int, timeout time.Duration) ([]*stomp.Message, error)
	Disconnect() error
}

type stompDialer func(addr string, opts ...func(*stomp.Conn) error) (stompSession, error)

// ActiveMQConnector talks STOMP to ActiveMQ.
type ActiveMQConnector struct {
	*Broker
	stomp *stompTransport
}

// NewActiveMQConnector creates an ActiveMQ connector.
func NewActiveMQConnector(name string, cfg config.Values, rec *oplog.Recorder) *ActiveMQConnector {
	t := &stompTransport{cfg: cfg, dial: dialStomp, receiptTimeout: stompReceiptTimeout}
	b := newBroker(base.Options{
		Name:        name,
		DefaultName: "ActiveMQConnector",
		Type:        "activemq",
		Display:     "ActiveMQ server",
		Required:    append([]string(nil), commonRequired...),
		Config:      cfg,
		Recorder:    rec,
	}, "destination", t)
	t.logger = b.Logger()
	return &ActiveMQConnector{Broker: b, stomp: t}
}

type stompTransport struct {
	cfg            config.Values
	dial           stompDialer
	session        stompSession
	receiptTimeout time.Duration
	logger         *zap.Logger
}

func (t *stompTransport) open(context.Context) error {
	opts := []func(*stomp.Conn) error{
		stomp.ConnOpt.Host(t.cfg.String("host", "localhost")),
	}
	// login only when both credentials are configured
	if t.cfg.Has("username") && t.cfg.Has("password") {
		opts = append(opts, stomp.ConnOpt.Login(t.cfg.String("username", ""), t.cfg.String("password", "")))
	}

	session, err := t.dial(address(t.cfg), opts...)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "Failed to connect to ActiveMQ")
	}
	t.session = session
	t.logger.Info("connected to ActiveMQ", zap.String("addr", address(t.cfg)))
	return nil
}

func (t *stompTransport) close(context.Context) error {
	if t.session == nil {
		return nil
	}
	err := t.session.Disconnect()
	t.session = nil
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "Failed to disconnect from ActiveMQ")
	}
	return nil
}

func (t *stompTransport) probe(context.Context) (string, error) {
	return "ActiveMQ connection test successful", nil
}

func (t *stompTransport) poll(ctx context.Context, dataType string, filters config.Values) (string, []models.Message, error) {
	dest := filters.String("destination", "/queue/"+dataType)
	max := filters.Int("max_messages", defaultStompMaxMessages)
	timeout := filters.Duration("timeout", defaultPollTimeout)

	received, err := t.session.Drain(ctx, dest, max, timeout)
	if err != nil {
		return dest, nil, errors.Wrap(err, errors.ErrorTypeConnection, "Failed to consume messages")
	}

	msgs := make([]models.Message, 0, len(received))
	for _, m := range received {
		msg := models.Message{
			Destination: m.Destination,
			Value:       decodeValue(m.Body),
			Timestamp:   time.Now().UTC(),
		}
		if msg.Destination == "" {
			msg.Destination = dest
		}
		if m.Header != nil {
			msg.MessageID = m.Header.Get(frame.MessageId)
			msg.Headers = make(map[string]string, m.Header.Len())
			for i := 0; i < m.Header.Len(); i++ {
				k, v := m.Header.GetAt(i)
				msg.Headers[k] = v
			}
		}
		msgs = append(msgs, msg)
	}
	return dest, msgs, nil
}

func (t *stompTransport) publish(ctx context.Context, payload models.Record, dataType string) (base.Receipt, error) {
	dest := payload.String("destination")
	if dest == "" {
		dest = "/queue/" + dataType
	}
	headers := map[string]string{}
	for k, v := range payload.Map("headers") {
		headers[k] = fmt.Sprint(v)
	}

	body, err := messageBody(payload)
	if err != nil {
		return base.Receipt{}, err
	}
	if err := t.send(ctx, dest, body, headers); err != nil {
		return base.Receipt{}, err
	}

	return base.Receipt{
		Message: "Message sent to destination " + dest,
		Details: map[string]any{"destination": dest, "headers": headers},
	}, nil
}

// send waits at most receiptTimeout for the broker receipt. A send that
// times out is abandoned; disconnecting the session releases it.
func (t *stompTransport) send(ctx context.Context, dest string, body []byte, headers map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, t.receiptTimeout)
	defer cancel()

	session := t.session
	done := make(chan error, 1)
	go func() { done <- session.Send(dest, body, headers) }()

	select {
	case err := <-done:
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConnection, "Failed to send message")
		}
		return nil
	case <-ctx.Done():
		return errors.Newf(errors.ErrorTypeTimeout, "no receipt from broker for %s after %s", dest, t.receiptTimeout)
	}
}

type stompConn struct {
	conn *stomp.Conn
}

func dialStomp(addr string, opts ...func(*stomp.Conn) error) (stompSession, error) {
	conn, err := stomp.Dial("tcp", addr, opts...)
	if err != nil {
		return nil, err
	}
	return &stompConn{conn: conn}, nil
}

func (c *stompConn) Send(destination string, body []byte, headers map[string]string) error {
	opts := []func(*frame.Frame) error{stomp.SendOpt.Receipt}
	for k, v := range headers {
		opts = append(opts, stomp.SendOpt.Header(k, v))
	}
	return c.conn.Send(destination, "application/json", body, opts...)
}

func (c *stompConn) Drain(ctx context.Context, destination string, max int, timeout time.Duration) ([]*stomp.Message, error) {
	sub, err := c.conn.Subscribe(destination, stomp.AckAuto)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sub.Unsubscribe() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var out []*stomp.Message
	for len(out) < max {
		select {
		case m, ok := <-sub.C:
			if !ok {
				return out, nil
			}
			if m.Err != nil {
				return out, m.Err
			}
			out = append(out, m)
		case <-timer.C:
			return out, nil
		case <-ctx.Done():
			return out, nil
		}
	}
	return out, nil
}

func (c *stompConn) Disconnect() error {
	return c.conn.Disconnect()
}
