package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/eco-green-group4/evmarket-web/internal/infrastructure/config"
)

// Logger is the subset of logging.Logger the client writes to.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Error(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}

// Client is a paho client bound to one device's topic space.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Subscriptions survive reconnects.
type Client struct {
	client   pahomqtt.Client
	clientID string
	defQoS   byte
	topics   Topics

	mu           sync.RWMutex
	connected    bool
	onConnect    func()
	onDisconnect func(err error)
	logger       Logger

	subMu         sync.RWMutex
	subscriptions map[string]subscription
}

func newClient(cfg config.MQTTConfig) *Client {
	return &Client{
		clientID:      cfg.Broker.ClientID,
		defQoS:        byte(cfg.QoS), // #nosec G115 -- config validates 0..2
		topics:        Topics{Prefix: cfg.TopicPrefix},
		logger:        nopLogger{},
		subscriptions: make(map[string]subscription),
	}
}

// Connect dials the broker and waits for the first connection. Once
// connected, and after every reconnect, the client replays its
// subscriptions and publishes a retained online status. A retained offline
// status is registered as the will.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := newClient(cfg)

	opts := buildClientOptions(cfg)
	configureLWT(opts, c.topics, c.clientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.connectionUp() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.connectionDown(err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		c.log().Warn("mqtt reconnecting", "broker", brokerURL(cfg))
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The connect handler runs asynchronously; mark the state now so
	// callers can subscribe straight away.
	c.setConnected(true)
	return c, nil
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

func (c *Client) connectionUp() {
	c.setConnected(true)
	c.resubscribe()
	c.client.Publish(c.topics.SystemStatus(), c.defQoS, true, statusPayload(StatusOnline, c.clientID, ""))

	c.mu.RLock()
	cb := c.onConnect
	c.mu.RUnlock()
	if cb != nil {
		cb()
	}
}

func (c *Client) connectionDown(err error) {
	c.mu.Lock()
	c.connected = false
	cb := c.onDisconnect
	c.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

// Close publishes a graceful offline status and disconnects. Closing a
// client that never connected is a no-op.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	if c.IsConnected() {
		c.client.Publish(c.topics.SystemStatus(), c.defQoS, true, statusPayload(StatusOffline, c.clientID, ReasonShutdown)).
			WaitTimeout(operationTimeout)
	}
	c.client.Disconnect(quiesceMillis)
	c.setConnected(false)
	return nil
}

// HealthCheck fails when ctx is done or the connection is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports the last known connection state.
func (c *Client) IsConnected() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

// Topics returns the topic builder for the configured prefix.
func (c *Client) Topics() Topics {
	return c.topics
}

func (c *Client) qos() byte {
	return c.defQoS
}

// SetOnConnect registers cb for the first connect and every reconnect.
func (c *Client) SetOnConnect(cb func()) {
	c.mu.Lock()
	c.onConnect = cb
	c.mu.Unlock()
}

// SetOnDisconnect registers cb for lost connections.
func (c *Client) SetOnDisconnect(cb func(err error)) {
	c.mu.Lock()
	c.onDisconnect = cb
	c.mu.Unlock()
}

// SetLogger routes handler errors and reconnect notices to logger.
func (c *Client) SetLogger(logger Logger) {
	if logger == nil {
		logger = nopLogger{}
	}
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) log() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}
