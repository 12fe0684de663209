package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/go-stomp/stomp/v3"
	"github.com/go-stomp/stomp/v3/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/connector/core"
	"github.com/fincore/gateway/pkg/models"
)

type sentFrame struct {
	destination string
	body        []byte
	headers     map[string]string
}

type fakeStomp struct {
	queued       []*stomp.Message
	sent         []sentFrame
	drainedDest  string
	drainTimeout time.Duration
	disconnects  int
	// withhold, when set, blocks Send until it is closed.
	withhold chan struct{}
}

func (f *fakeStomp) Send(destination string, body []byte, headers map[string]string) error {
	if f.withhold != nil {
		<-f.withhold
		return nil
	}
	f.sent = append(f.sent, sentFrame{destination, body, headers})
	return nil
}

func (f *fakeStomp) Drain(_ context.Context, destination string, max int, timeout time.Duration) ([]*stomp.Message, error) {
	f.drainedDest, f.drainTimeout = destination, timeout
	out := f.queued
	if len(out) > max {
		out = out[:max]
	}
	return out, nil
}

func (f *fakeStomp) Disconnect() error {
	f.disconnects++
	return nil
}

var activeCfg = config.Values{"host": "amq", "port": 61613, "messaging_type": "activemq"}

func newFakeActiveMQ(t *testing.T, cfg config.Values) (*ActiveMQConnector, *fakeStomp, *int) {
	t.Helper()
	fake := &fakeStomp{}
	optCount := new(int)
	a := NewActiveMQConnector("amq", cfg, nil)
	a.stomp.dial = func(addr string, opts ...func(*stomp.Conn) error) (stompSession, error) {
		assert.Equal(t, "amq:61613", addr)
		*optCount = len(opts)
		return fake, nil
	}
	return a, fake, optCount
}

func TestActiveMQLoginOnlyWithCredentials(t *testing.T) {
	a, _, opts := newFakeActiveMQ(t, activeCfg)
	require.True(t, a.Connect(context.Background()).OK())
	assert.Equal(t, 1, *opts)

	cfg := activeCfg.Clone()
	cfg["username"], cfg["password"] = "admin", "admin"
	b, _, opts := newFakeActiveMQ(t, cfg)
	require.True(t, b.Connect(context.Background()).OK())
	assert.Equal(t, 2, *opts)
}

func TestActiveMQSyncDrainsDestination(t *testing.T) {
	a, fake, _ := newFakeActiveMQ(t, activeCfg)
	fake.queued = []*stomp.Message{
		{Destination: "/queue/orders", Body: []byte(`{"order":"O-1"}`), Header: frame.NewHeader(frame.MessageId, "ID:1", "priority", "4")},
		{Body: []byte("raw")},
	}

	res := a.SyncData(context.Background(), "orders", map[string]any{"timeout": "2s"})

	require.Equal(t, core.StatusSuccess, res.Status, res.Message)
	assert.Equal(t, "/queue/orders", fake.drainedDest)
	assert.Equal(t, 2*time.Second, fake.drainTimeout)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, "ID:1", res.Data[0]["message_id"])
	assert.Equal(t, map[string]string{"message-id": "ID:1", "priority": "4"}, res.Data[0]["headers"])
	assert.Equal(t, "/queue/orders", res.Data[1]["destination"])
	assert.Equal(t, "raw", res.Data[1]["value"])
	assert.Equal(t, "/queue/orders", res.Details["destination"])
}

func TestActiveMQSendWithHeaders(t *testing.T) {
	a, fake, _ := newFakeActiveMQ(t, activeCfg)

	res := a.SendData(context.Background(), models.Record{
		"destination": "/topic/rates",
		"headers":     map[string]any{"persistent": true},
		"message":     map[string]any{"cad": "1.35"},
	}, "rates")

	require.Equal(t, core.StatusSuccess, res.Status, res.Message)
	require.Len(t, fake.sent, 1)
	assert.Equal(t, "/topic/rates", fake.sent[0].destination)
	assert.Equal(t, map[string]string{"persistent": "true"}, fake.sent[0].headers)
	assert.JSONEq(t, `{"cad":"1.35"}`, string(fake.sent[0].body))
	assert.Equal(t, "/topic/rates", res.Details["destination"])
}

func TestActiveMQSendDefaultDestination(t *testing.T) {
	a, fake, _ := newFakeActiveMQ(t, activeCfg)
	a.SendData(context.Background(), models.Record{"id": 1}, "payments")
	assert.Equal(t, "/queue/payments", fake.sent[0].destination)

	a.Disconnect(context.Background())
	a.Disconnect(context.Background())
	assert.Equal(t, 1, fake.disconnects)
}

func TestActiveMQSendTimesOutWithoutReceipt(t *testing.T) {
	a, fake, _ := newFakeActiveMQ(t, activeCfg)
	fake.withhold = make(chan struct{})
	t.Cleanup(func() { close(fake.withhold) })
	a.stomp.receiptTimeout = 20 * time.Millisecond

	start := time.Now()
	res := a.SendData(context.Background(), models.Record{"destination": "/queue/payments", "amount": "1.00"}, "payments")
	assert.Equal(t, core.StatusError, res.Status)
	assert.Contains(t, res.Message, "no receipt from broker for /queue/payments")
	assert.Less(t, time.Since(start), 5*time.Second)
}
