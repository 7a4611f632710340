package mqtt

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/session"
)

// =============================================================================
// Fakes
// =============================================================================

// fakeToken is an already-completed paho token.
type fakeToken struct {
	err     error
	timeout bool
}

func (t *fakeToken) Wait() bool { return !t.timeout }

func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (t *fakeToken) Error() error { return t.err }

type publishCall struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakePaho records calls made by Client.
type fakePaho struct {
	mu sync.Mutex

	opts      *pahomqtt.ClientOptions
	connected bool
	connects  int
	quiesce   uint

	published    []publishCall
	subscribed   map[string]pahomqtt.MessageHandler
	unsubscribed []string

	publishErr     error
	subscribeErr   error
	unsubscribeErr error
	timeout        bool
}

func newFakePaho() *fakePaho {
	return &fakePaho{subscribed: make(map[string]pahomqtt.MessageHandler)}
}

func (f *fakePaho) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakePaho) IsConnectionOpen() bool { return f.IsConnected() }

func (f *fakePaho) Connect() pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	return &fakeToken{}
}

func (f *fakePaho) Disconnect(quiesce uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.quiesce = quiesce
}

func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()

	var body []byte
	switch p := payload.(type) {
	case []byte:
		body = p
	case string:
		body = []byte(p)
	}
	f.published = append(f.published, publishCall{topic: topic, qos: qos, retained: retained, payload: body})
	return &fakeToken{err: f.publishErr, timeout: f.timeout}
}

func (f *fakePaho) Subscribe(topic string, _ byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr == nil && !f.timeout {
		f.subscribed[topic] = callback
	}
	return &fakeToken{err: f.subscribeErr, timeout: f.timeout}
}

func (f *fakePaho) SubscribeMultiple(map[string]byte, pahomqtt.MessageHandler) pahomqtt.Token {
	return &fakeToken{}
}

func (f *fakePaho) Unsubscribe(topics ...string) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = append(f.unsubscribed, topics...)
	for _, t := range topics {
		delete(f.subscribed, t)
	}
	return &fakeToken{err: f.unsubscribeErr, timeout: f.timeout}
}

func (f *fakePaho) AddRoute(string, pahomqtt.MessageHandler) {}

func (f *fakePaho) OptionsReader() pahomqtt.ClientOptionsReader {
	return pahomqtt.NewOptionsReader(f.opts)
}

func (f *fakePaho) setConnected(v bool) {
	f.mu.Lock()
	f.connected = v
	f.mu.Unlock()
}

func (f *fakePaho) handlerFor(topic string) pahomqtt.MessageHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribed[topic]
}

func (f *fakePaho) publishes() []publishCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publishCall(nil), f.published...)
}

// fakeMessage is an inbound paho message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// recordingHandler is a session.EventHandler that records events.
type recordingHandler struct {
	mu           sync.Mutex
	connected    int
	disconnected []error
	data         map[string]string
	panicOnData  bool
}

func (h *recordingHandler) HandleConnected() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connected++
}

func (h *recordingHandler) HandleDisconnected(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnected = append(h.disconnected, err)
}

func (h *recordingHandler) HandleData(topic string, payload []byte) {
	if h.panicOnData {
		panic("handler exploded")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.data == nil {
		h.data = make(map[string]string)
	}
	h.data[topic] = string(payload)
}

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "graynode-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// startedClient returns a client started against a fake paho client that
// reports itself connected.
func startedClient(t *testing.T) (*Client, *fakePaho, *recordingHandler) {
	t.Helper()

	fake := newFakePaho()
	c := New(testConfig(), Options{
		WillTopic: "status/node-01",
		NewClient: func(opts *pahomqtt.ClientOptions) pahomqtt.Client {
			fake.opts = opts
			return fake
		},
	})
	h := &recordingHandler{}
	c.Register(h)

	require.NoError(t, c.Start(session.BufferSizes{Inbound: 1024, Outbound: 512}))
	fake.setConnected(true)
	return c, fake, h
}

// =============================================================================
// Options Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "node", Password: "secret"}
	cfg.KeepAlive = 30

	opts := buildClientOptions(cfg)

	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "tcp://127.0.0.1:1883", opts.Servers[0].String())
	assert.Equal(t, "graynode-test", opts.ClientID)
	assert.Equal(t, "node", opts.Username)
	assert.Equal(t, "secret", opts.Password)
	assert.True(t, opts.CleanSession)
	assert.False(t, opts.Order)
	assert.True(t, opts.AutoReconnect)
	assert.Equal(t, int64(30), opts.KeepAlive)
	assert.Equal(t, 5*time.Second, opts.MaxReconnectInterval)
	assert.Nil(t, opts.TLSConfig)
}

func TestBuildClientOptions_DefaultKeepAlive(t *testing.T) {
	opts := buildClientOptions(testConfig())
	assert.Equal(t, int64(defaultKeepAlive/time.Second), opts.KeepAlive)
}

func TestConfigureLWT(t *testing.T) {
	opts := pahomqtt.NewClientOptions()
	configureLWT(opts, "status/node-01")

	assert.True(t, opts.WillEnabled)
	assert.Equal(t, "status/node-01", opts.WillTopic)
	assert.Equal(t, disconnectedPayload, string(opts.WillPayload))
	assert.Equal(t, byte(1), opts.WillQos)
	assert.False(t, opts.WillRetained)
}

func TestConfigureLWT_EmptyTopic(t *testing.T) {
	opts := pahomqtt.NewClientOptions()
	configureLWT(opts, "")
	assert.False(t, opts.WillEnabled)
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestStart_ConnectsAsync(t *testing.T) {
	c, fake, h := startedClient(t)

	assert.Equal(t, 1, fake.connects)
	assert.Equal(t, "status/node-01", fake.opts.WillTopic)
	assert.Equal(t, 0, h.connected, "connected is delivered by the on-connect callback")
	assert.True(t, c.IsConnected())
}

func TestStart_Twice(t *testing.T) {
	c, _, _ := startedClient(t)
	err := c.Start(session.BufferSizes{Inbound: 1024, Outbound: 512})
	require.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestStart_AfterDestroy(t *testing.T) {
	c, _, _ := startedClient(t)
	require.NoError(t, c.Destroy())

	err := c.Start(session.BufferSizes{Inbound: 1024, Outbound: 512})
	require.ErrorIs(t, err, ErrNotStarted)
}

func TestOnConnect_RestoresSubscriptionsThenNotifies(t *testing.T) {
	c, fake, h := startedClient(t)
	require.NoError(t, c.Subscribe("control/node-01", 0))

	// Simulate a reconnect: the broker forgot the session.
	fake.mu.Lock()
	fake.subscribed = make(map[string]pahomqtt.MessageHandler)
	fake.mu.Unlock()

	fake.opts.OnConnect(fake)

	assert.NotNil(t, fake.handlerFor("control/node-01"))
	assert.Equal(t, 1, h.connected)
}

func TestConnectionLost_NotifiesHandler(t *testing.T) {
	_, fake, h := startedClient(t)
	lost := errors.New("broker went away")

	fake.opts.OnConnectionLost(fake, lost)

	require.Len(t, h.disconnected, 1)
	assert.ErrorIs(t, h.disconnected[0], lost)
}

func TestUnregister_DropsEvents(t *testing.T) {
	c, fake, h := startedClient(t)
	c.Unregister()

	fake.opts.OnConnect(fake)
	fake.opts.OnConnectionLost(fake, errors.New("x"))

	assert.Equal(t, 0, h.connected)
	assert.Empty(t, h.disconnected)
}

func TestStop_PublishesDisconnected(t *testing.T) {
	c, fake, _ := startedClient(t)

	require.NoError(t, c.Stop())

	pubs := fake.publishes()
	require.Len(t, pubs, 1)
	assert.Equal(t, "status/node-01", pubs[0].topic)
	assert.Equal(t, disconnectedPayload, string(pubs[0].payload))
	assert.Equal(t, uint(defaultDisconnectQuiesce), fake.quiesce)
	assert.False(t, c.IsConnected())
}

func TestStop_NotStarted(t *testing.T) {
	c := New(testConfig(), Options{})
	assert.NoError(t, c.Stop())
}

func TestReconnect(t *testing.T) {
	c, fake, _ := startedClient(t)

	require.NoError(t, c.Reconnect())
	assert.Equal(t, 1, fake.connects, "no new attempt while connected")

	fake.setConnected(false)
	require.NoError(t, c.Reconnect())
	assert.Equal(t, 2, fake.connects)
}

func TestReconnect_NotStarted(t *testing.T) {
	c := New(testConfig(), Options{})
	require.ErrorIs(t, c.Reconnect(), ErrNotStarted)
}

func TestHealthCheck(t *testing.T) {
	c, fake, _ := startedClient(t)
	assert.NoError(t, c.HealthCheck(context.Background()))

	fake.setConnected(false)
	assert.ErrorIs(t, c.HealthCheck(context.Background()), ErrNotConnected)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.HealthCheck(ctx), context.Canceled)
}

// =============================================================================
// Publish Tests
// =============================================================================

func TestPublish(t *testing.T) {
	c, fake, _ := startedClient(t)

	buf := []byte(`{"k":"v"}`)
	require.NoError(t, c.Publish("status/node-01", buf, 1, false))

	// The caller reuses its buffer immediately.
	copy(buf, `XXXXXXXXX`)

	pubs := fake.publishes()
	require.Len(t, pubs, 1)
	assert.Equal(t, `{"k":"v"}`, string(pubs[0].payload))
	assert.Equal(t, byte(1), pubs[0].qos)
	assert.False(t, pubs[0].retained)
}

func TestPublish_Validation(t *testing.T) {
	c, _, _ := startedClient(t)

	require.ErrorIs(t, c.Publish("", []byte("x"), 1, false), ErrInvalidTopic)
	require.ErrorIs(t, c.Publish("t", []byte("x"), 3, false), ErrInvalidQoS)
	require.ErrorIs(t, c.Publish("t", []byte(strings.Repeat("x", 513)), 1, false), ErrPayloadTooLarge)
}

func TestPublish_Disconnected(t *testing.T) {
	c, fake, _ := startedClient(t)
	fake.setConnected(false)
	require.ErrorIs(t, c.Publish("t", []byte("x"), 1, false), ErrNotConnected)
}

func TestPublish_BrokerError(t *testing.T) {
	c, fake, _ := startedClient(t)
	brokerErr := errors.New("not authorized")
	fake.publishErr = brokerErr

	err := c.Publish("t", []byte("x"), 1, false)
	require.ErrorIs(t, err, ErrPublishFailed)
	require.ErrorIs(t, err, brokerErr)
}

func TestPublish_Timeout(t *testing.T) {
	c, fake, _ := startedClient(t)
	fake.timeout = true

	err := c.Publish("t", []byte("x"), 1, false)
	require.ErrorIs(t, err, ErrPublishFailed)
}

// =============================================================================
// Subscribe Tests
// =============================================================================

func TestSubscribe_DeliversToHandler(t *testing.T) {
	c, fake, h := startedClient(t)

	require.NoError(t, c.Subscribe("control/node-01", 0))
	assert.Equal(t, []string{"control/node-01"}, c.Subscriptions())

	cb := fake.handlerFor("control/node-01")
	require.NotNil(t, cb)
	cb(fake, fakeMessage{topic: "control/node-01", payload: []byte(`{"action":"reconfigure"}`)})

	assert.Equal(t, `{"action":"reconfigure"}`, h.data["control/node-01"])
}

func TestSubscribe_HandlerPanicRecovered(t *testing.T) {
	c, fake, h := startedClient(t)
	h.panicOnData = true

	require.NoError(t, c.Subscribe("a", 0))
	cb := fake.handlerFor("a")

	assert.NotPanics(t, func() {
		cb(fake, fakeMessage{topic: "a", payload: []byte("{}")})
	})
}

func TestSubscribe_Validation(t *testing.T) {
	c, fake, _ := startedClient(t)

	require.ErrorIs(t, c.Subscribe("", 0), ErrInvalidTopic)
	require.ErrorIs(t, c.Subscribe("a", 3), ErrInvalidQoS)

	fake.setConnected(false)
	require.ErrorIs(t, c.Subscribe("a", 0), ErrNotConnected)
}

func TestSubscribe_BrokerError(t *testing.T) {
	c, fake, _ := startedClient(t)
	fake.subscribeErr = errors.New("rejected")

	err := c.Subscribe("a", 0)
	require.ErrorIs(t, err, ErrSubscribeFailed)
	assert.Empty(t, c.Subscriptions(), "failed subscriptions are not tracked")
}

func TestUnsubscribe(t *testing.T) {
	c, fake, _ := startedClient(t)
	require.NoError(t, c.Subscribe("a", 0))
	require.NoError(t, c.Subscribe("b", 0))

	require.NoError(t, c.Unsubscribe("a"))

	assert.Equal(t, []string{"b"}, c.Subscriptions())
	assert.Equal(t, []string{"a"}, fake.unsubscribed)
}

func TestUnsubscribe_Errors(t *testing.T) {
	c, fake, _ := startedClient(t)

	require.ErrorIs(t, c.Unsubscribe(""), ErrInvalidTopic)

	fake.unsubscribeErr = errors.New("rejected")
	require.ErrorIs(t, c.Unsubscribe("a"), ErrUnsubscribeFailed)

	fake.setConnected(false)
	require.ErrorIs(t, c.Unsubscribe("a"), ErrNotConnected)
}

func TestUnsubscribe_FailureKeepsTracking(t *testing.T) {
	tests := []struct {
		name   string
		inject func(*fakePaho)
	}{
		{name: "broker error", inject: func(f *fakePaho) { f.unsubscribeErr = errors.New("rejected") }},
		{name: "timeout", inject: func(f *fakePaho) { f.timeout = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, fake, _ := startedClient(t)
			require.NoError(t, c.Subscribe("control/node-01", 1))

			fake.mu.Lock()
			tt.inject(fake)
			fake.mu.Unlock()
			require.ErrorIs(t, c.Unsubscribe("control/node-01"), ErrUnsubscribeFailed)
			assert.Equal(t, []string{"control/node-01"}, c.Subscriptions())

			// The topic is restored on the next connect.
			fake.mu.Lock()
			fake.unsubscribeErr = nil
			fake.timeout = false
			fake.subscribed = make(map[string]pahomqtt.MessageHandler)
			fake.mu.Unlock()

			fake.opts.OnConnect(fake)
			assert.NotNil(t, fake.handlerFor("control/node-01"))
		})
	}
}

func TestDestroy_ForgetsSubscriptions(t *testing.T) {
	c, _, _ := startedClient(t)
	require.NoError(t, c.Subscribe("a", 0))

	require.NoError(t, c.Destroy())

	assert.Empty(t, c.Subscriptions())
	assert.False(t, c.IsConnected())
}
