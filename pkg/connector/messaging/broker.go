// Package messaging provides the message broker connectors: Kafka, RabbitMQ
// and ActiveMQ. The three share a Broker base that adapts a broker transport
// to the connector lifecycle and keeps a destination-to-handler table.
//
// Sync is always a bounded poll. It stops when the timeout elapses or the
// maximum message count is reached, whichever comes first. Consumed messages
// can optionally be dispatched to registered handlers:
//
//	k := messaging.NewKafkaConnector(cfg, rec)
//	k.RegisterHandler("payments.*", func(ctx context.Context, m models.Message) error {
//	    return process(m.Value)
//	})
//	res := k.SyncData(ctx, "payments.cad", map[string]any{"dispatch": true})
package messaging

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/connector/base"
	"github.com/fincore/gateway/pkg/errors"
	"github.com/fincore/gateway/pkg/models"
)

// Handler processes one consumed message.
type Handler func(ctx context.Context, msg models.Message) error

// commonRequired are the fields every broker connector needs.
var commonRequired = []string{"host", "port", "messaging_type"}

// transport is the broker-specific half of a Broker.
type transport interface {
	open(ctx context.Context) error
	close(ctx context.Context) error
	probe(ctx context.Context) (string, error)
	// poll returns the resolved destination and the consumed messages.
	poll(ctx context.Context, dataType string, filters config.Values) (string, []models.Message, error)
	publish(ctx context.Context, payload models.Record, dataType string) (base.Receipt, error)
}

type handlerEntry struct {
	pattern string
	fn      Handler
}

// Broker is the shared messaging connector. It implements base.Driver on top
// of a transport.
type Broker struct {
	*base.Connector

	display   string
	destLabel string
	transport transport

	mu       sync.RWMutex
	handlers []handlerEntry
}

func newBroker(opts base.Options, destLabel string, t transport) *Broker {
	b := &Broker{display: opts.Display, destLabel: destLabel, transport: t}
	b.Connector = base.New(opts, b)
	return b
}

// RegisterHandler registers fn for destinations matching pattern. The pattern
// is an exact topic, queue or destination name, or a path.Match glob.
func (b *Broker) RegisterHandler(pattern string, fn Handler) error {
	if pattern == "" || fn == nil {
		return errors.New(errors.ErrorTypeValidation, "handler pattern and function are required")
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return errors.Wrap(err, errors.ErrorTypeValidation, fmt.Sprintf("invalid handler pattern %q", pattern))
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handlerEntry{pattern: pattern, fn: fn})
	return nil
}

// Handlers returns the registered patterns in registration order.
func (b *Broker) Handlers() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.handlers))
	for _, h := range b.handlers {
		out = append(out, h.pattern)
	}
	return out
}

// Dispatch invokes every handler whose pattern matches the message's
// destination and returns how many ran. Handler errors are collected; a
// failing handler does not stop the others.
func (b *Broker) Dispatch(ctx context.Context, msg models.Message) (int, error) {
	dest := destinationOf(msg)

	b.mu.RLock()
	handlers := append([]handlerEntry(nil), b.handlers...)
	b.mu.RUnlock()

	var (
		invoked int
		errs    []string
	)
	for _, h := range handlers {
		if !matches(h.pattern, dest) {
			continue
		}
		invoked++
		if err := callHandler(ctx, h.fn, msg); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return invoked, errors.Newf(errors.ErrorTypeInternal, "%d handler(s) failed for %s: %s", len(errs), dest, strings.Join(errs, "; "))
	}
	return invoked, nil
}

func callHandler(ctx context.Context, fn Handler, msg models.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return fn(ctx, msg)
}

func matches(pattern, dest string) bool {
	if pattern == dest {
		return true
	}
	ok, err := path.Match(pattern, dest)
	return err == nil && ok
}

func destinationOf(msg models.Message) string {
	switch {
	case msg.Topic != "":
		return msg.Topic
	case msg.Queue != "":
		return msg.Queue
	default:
		return msg.Destination
	}
}

// Open implements base.Driver.
func (b *Broker) Open(ctx context.Context) (string, error) {
	if err := b.transport.open(ctx); err != nil {
		return "", err
	}
	return "Connected to " + b.display, nil
}

// Close implements base.Driver.
func (b *Broker) Close(ctx context.Context) error {
	return b.transport.close(ctx)
}

// Probe implements base.Driver.
func (b *Broker) Probe(ctx context.Context) (string, error) {
	return b.transport.probe(ctx)
}

// Pull implements base.Driver.
func (b *Broker) Pull(ctx context.Context, dataType string, filters map[string]any) (base.Batch, error) {
	f := config.Values(filters)
	dest, msgs, err := b.transport.poll(ctx, dataType, f)
	if err != nil {
		return base.Batch{}, err
	}

	records := make([]models.Record, 0, len(msgs))
	for _, m := range msgs {
		records = append(records, m.Record())
	}
	details := map[string]any{b.destLabel: dest}

	if f.Bool("dispatch", false) {
		dispatched, failed := 0, 0
		for _, m := range msgs {
			n, err := b.Dispatch(ctx, m)
			dispatched += n
			if err != nil {
				failed++
				b.Logger().Warn("message dispatch failed", zap.String(b.destLabel, dest), zap.Error(err))
			}
		}
		details["dispatched"] = dispatched
		details["dispatch_failures"] = failed
	}

	return base.Batch{
		Records: records,
		Message: fmt.Sprintf("Consumed %d messages from %s %s", len(records), b.destLabel, dest),
		Details: details,
	}, nil
}

// Push implements base.Driver.
func (b *Broker) Push(ctx context.Context, payload models.Record, dataType string) (base.Receipt, error) {
	return b.transport.publish(ctx, payload, dataType)
}

// messageBody returns the payload's "message" field, or the whole payload.
func messageBody(payload models.Record) ([]byte, error) {
	var body any = payload
	if m, ok := payload["message"]; ok {
		body = m
	}
	if s, ok := body.(string); ok {
		return []byte(s), nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeTransformation, "failed to encode message")
	}
	return data, nil
}

// decodeValue decodes a JSON body, falling back to the raw string.
func decodeValue(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return string(body)
	}
	return v
}

func address(cfg config.Values) string {
	return fmt.Sprintf("%s:%d", cfg.String("host", "localhost"), cfg.Int("port", 0))
}
