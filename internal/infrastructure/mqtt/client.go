package mqtt

import (
	"context"
	"fmt"
	"slices"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/session"
)

// Logger is the logging interface used by the client.
// It is satisfied by *logging.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configure a Client beyond the MQTT config section.
type Options struct {
	// WillTopic receives the Last Will and the clean-shutdown status.
	WillTopic string

	// Logger receives connection and handler logs.
	Logger Logger

	// NewClient creates the paho client. Tests replace it.
	NewClient func(*pahomqtt.ClientOptions) pahomqtt.Client
}

// Client is a paho-backed session.Transport.
//
// All methods are safe for concurrent use.
type Client struct {
	cfg       config.MQTTConfig
	willTopic string
	logger    Logger
	newClient func(*pahomqtt.ClientOptions) pahomqtt.Client

	mu        sync.RWMutex
	client    pahomqtt.Client
	handler   session.EventHandler
	sizes     session.BufferSizes
	destroyed bool

	// subscriptions are restored after every reconnect.
	subMu         sync.RWMutex
	subscriptions map[string]byte
}

// New creates an unstarted client.
func New(cfg config.MQTTConfig, opts Options) *Client {
	c := &Client{
		cfg:           cfg,
		willTopic:     opts.WillTopic,
		logger:        opts.Logger,
		newClient:     opts.NewClient,
		subscriptions: make(map[string]byte),
	}
	if c.logger == nil {
		c.logger = noopLogger{}
	}
	if c.newClient == nil {
		c.newClient = pahomqtt.NewClient
	}
	return c
}

// Register sets the event handler.
func (c *Client) Register(h session.EventHandler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// Unregister removes the event handler. Later callbacks are dropped.
func (c *Client) Unregister() {
	c.mu.Lock()
	c.handler = nil
	c.mu.Unlock()
}

func (c *Client) eventHandler() session.EventHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handler
}

func (c *Client) pahoClient() pahomqtt.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

// Start builds the paho client and begins connecting in the background.
// The connected event is delivered once the broker accepts the session.
//
// Parameters:
//   - sizes: Effective buffer sizes; Outbound caps published payloads
//
// Returns:
//   - error: ErrAlreadyStarted, or ErrNotStarted after Destroy
func (c *Client) Start(sizes session.BufferSizes) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return ErrNotStarted
	}
	if c.client != nil {
		return ErrAlreadyStarted
	}

	opts := buildClientOptions(c.cfg)
	configureLWT(opts, c.willTopic)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleConnectionLost(err)
	})
	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		c.logger.Info("reconnecting to MQTT broker", "broker", c.cfg.BrokerURL())
	})

	c.sizes = sizes
	c.client = c.newClient(opts)

	token := c.client.Connect()
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			c.logger.Error("MQTT connect failed", "broker", c.cfg.BrokerURL(), "error", err)
		}
	}()

	c.logger.Info("connecting to MQTT broker", "broker", c.cfg.BrokerURL(), "client_id", c.cfg.Broker.ClientID)
	return nil
}

// handleConnect restores subscriptions, then notifies the handler.
func (c *Client) handleConnect() {
	c.logger.Info("connected to MQTT broker", "broker", c.cfg.BrokerURL())
	c.restoreSubscriptions()

	if h := c.eventHandler(); h != nil {
		h.HandleConnected()
	}
}

func (c *Client) handleConnectionLost(err error) {
	c.logger.Warn("MQTT connection lost", "error", err)
	if h := c.eventHandler(); h != nil {
		h.HandleDisconnected(err)
	}
}

// handleMessage forwards a delivery to the handler. A panicking handler is
// logged rather than taking down paho's delivery goroutine.
func (c *Client) handleMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
		}
	}()

	if h := c.eventHandler(); h != nil {
		h.HandleData(msg.Topic(), msg.Payload())
	}
}

func (c *Client) restoreSubscriptions() {
	client := c.pahoClient()
	if client == nil {
		return
	}

	c.subMu.RLock()
	defer c.subMu.RUnlock()
	for topic, qos := range c.subscriptions {
		token := client.Subscribe(topic, qos, c.handleMessage)
		if !token.WaitTimeout(defaultOperationTimeout) || token.Error() != nil {
			c.logger.Warn("failed to restore subscription", "topic", topic, "error", token.Error())
		}
	}
}

// Reconnect requests a new connection. While paho's auto-reconnect is
// running this is a no-op.
func (c *Client) Reconnect() error {
	client := c.pahoClient()
	if client == nil {
		return ErrNotStarted
	}
	if client.IsConnectionOpen() || client.IsConnected() {
		return nil
	}

	token := client.Connect()
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			c.logger.Error("MQTT reconnect failed", "error", err)
		}
	}()
	return nil
}

// Stop publishes the disconnected status and closes the connection.
func (c *Client) Stop() error {
	client := c.pahoClient()
	if client == nil {
		return nil
	}

	if client.IsConnectionOpen() && c.willTopic != "" {
		token := client.Publish(c.willTopic, 1, false, disconnectedPayload)
		if !token.WaitTimeout(defaultOperationTimeout) || token.Error() != nil {
			c.logger.Warn("failed to publish disconnected status", "error", token.Error())
		}
	}

	client.Disconnect(defaultDisconnectQuiesce)
	c.logger.Info("disconnected from MQTT broker")
	return nil
}

// Destroy releases the paho client and forgets subscriptions.
func (c *Client) Destroy() error {
	c.mu.Lock()
	c.client = nil
	c.handler = nil
	c.destroyed = true
	c.mu.Unlock()

	c.subMu.Lock()
	clear(c.subscriptions)
	c.subMu.Unlock()
	return nil
}

// IsConnected reports whether the connection is currently open.
func (c *Client) IsConnected() bool {
	client := c.pahoClient()
	return client != nil && client.IsConnectionOpen()
}

// HealthCheck reports ErrNotConnected while the connection is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Subscriptions returns the tracked topics in lexical order.
func (c *Client) Subscriptions() []string {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	topics := make([]string, 0, len(c.subscriptions))
	for t := range c.subscriptions {
		topics = append(topics, t)
	}
	slices.Sort(topics)
	return topics
}
