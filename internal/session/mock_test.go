package session

import (
	"context"
	"sync"

	"github.com/nerrad567/gray-logic-node/internal/gpio"
)

// MockTransport implements Transport for testing.
type MockTransport struct {
	mu            sync.Mutex
	handler       EventHandler
	registered    int
	unregistered  int
	started       bool
	sizes         BufferSizes
	published     []mockPublish
	subscriptions []mockSubscription
	unsubscribed  []string
	reconnects    int
	stopped       bool
	destroyed     bool

	startErr       error
	subscribeErr   error
	unsubscribeErr error
	publishErr     error
	reconnectErr   error
	stopErr        error

	// stopBlock, when set, holds Stop until it is closed.
	stopBlock chan struct{}
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

type mockSubscription struct {
	Topic string
	QoS   byte
}

func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

func (m *MockTransport) Register(h EventHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
	m.registered++
}

func (m *MockTransport) Unregister() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = nil
	m.unregistered++
}

func (m *MockTransport) Start(sizes BufferSizes) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.started = true
	m.sizes = sizes
	return nil
}

func (m *MockTransport) Subscribe(topic string, qos byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribeErr != nil {
		return m.subscribeErr
	}
	m.subscriptions = append(m.subscriptions, mockSubscription{Topic: topic, QoS: qos})
	return nil
}

func (m *MockTransport) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unsubscribeErr != nil {
		return m.unsubscribeErr
	}
	m.unsubscribed = append(m.unsubscribed, topic)
	return nil
}

func (m *MockTransport) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, mockPublish{
		Topic:    topic,
		Payload:  append([]byte(nil), payload...),
		QoS:      qos,
		Retained: retained,
	})
	return nil
}

func (m *MockTransport) Reconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconnects++
	return m.reconnectErr
}

func (m *MockTransport) Stop() error {
	m.mu.Lock()
	block := m.stopBlock
	m.mu.Unlock()

	if block != nil {
		<-block
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return m.stopErr
}

func (m *MockTransport) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destroyed = true
	return nil
}

func (m *MockTransport) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockPublish(nil), m.published...)
}

func (m *MockTransport) GetSubscriptions() []mockSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockSubscription(nil), m.subscriptions...)
}

func (m *MockTransport) ClearPublished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = nil
}

func (m *MockTransport) currentHandler() EventHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handler
}

// SimulateConnect delivers a connected event to the registered handler.
func (m *MockTransport) SimulateConnect() {
	if h := m.currentHandler(); h != nil {
		h.HandleConnected()
	}
}

// SimulateDisconnect delivers a disconnected event to the registered handler.
func (m *MockTransport) SimulateDisconnect(err error) {
	if h := m.currentHandler(); h != nil {
		h.HandleDisconnected(err)
	}
}

// SimulateMessage delivers a data event to the registered handler.
func (m *MockTransport) SimulateMessage(topic string, payload []byte) {
	if h := m.currentHandler(); h != nil {
		h.HandleData(topic, payload)
	}
}

// MockGPIO implements gpio.Driver for testing.
type MockGPIO struct {
	mu         sync.Mutex
	configured []gpioCall
	levels     []gpioCall
	err        error
}

type gpioCall struct {
	Pin   int
	Mode  gpio.Mode
	Level gpio.Level
}

func (m *MockGPIO) Configure(_ context.Context, pin int, mode gpio.Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.configured = append(m.configured, gpioCall{Pin: pin, Mode: mode})
	return nil
}

func (m *MockGPIO) SetLevel(_ context.Context, pin int, level gpio.Level) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.levels = append(m.levels, gpioCall{Pin: pin, Level: level})
	return nil
}

func (m *MockGPIO) Configured() []gpioCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]gpioCall(nil), m.configured...)
}

func (m *MockGPIO) Levels() []gpioCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]gpioCall(nil), m.levels...)
}

// MockOTA implements ota.Trigger for testing.
type MockOTA struct {
	mu      sync.Mutex
	sources []string
}

func (m *MockOTA) Trigger(_ context.Context, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources = append(m.sources, source)
	return nil
}

func (m *MockOTA) Sources() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sources...)
}

// MockRecorder implements Recorder for testing.
type MockRecorder struct {
	mu      sync.Mutex
	records []Record
}

func (m *MockRecorder) RecordDispatch(rec Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
}

func (m *MockRecorder) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...)
}
