package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/castbridge/internal/infrastructure/config"
)

// Logger receives connection and handler diagnostics.
// *logging.Logger satisfies it.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MessageHandler processes one message delivered on a subscribed filter.
// topic is the concrete topic, never the wildcard filter. A returned error
// is logged; the message is acknowledged either way.
type MessageHandler func(topic string, payload []byte) error

// Client is the bridge's session with the host broker.
//
// The bridge announces itself on castbridge/status/{client_id}: "online" on
// every (re)connect, "offline" with reason graceful_shutdown on Close, and
// the broker publishes the Last Will with reason unexpected_disconnect when
// the process dies. Subscriptions survive reconnects because the session is
// clean and the client replays its route table.
//
// All methods are safe for concurrent use.
type Client struct {
	paho pahomqtt.Client
	cfg  config.MQTTConfig

	live   atomic.Bool
	routes routeTable

	hookMu       sync.RWMutex
	onConnect    func()
	onDisconnect func(error)
	logger       Logger
}

// Connect dials the broker and blocks until the first CONNACK or until
// defaultConnectTimeout passes. Once connected, paho owns reconnection with
// the backoff from cfg.Reconnect.
//
// Returns:
//   - *Client: a connected client
//   - error: ErrConnectionFailed wrapping the timeout or broker refusal
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{cfg: cfg}

	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.brokerUp() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.brokerDown(err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		if l := c.log(); l != nil {
			l.Warn("reconnecting to MQTT broker", "host", cfg.Broker.Host, "port", cfg.Broker.Port)
		}
	})

	c.paho = pahomqtt.NewClient(opts)
	if err := await(c.paho.Connect(), defaultConnectTimeout, ErrConnectionFailed); err != nil {
		// Stops the connect-retry loop.
		c.paho.Disconnect(0)
		return nil, err
	}

	// brokerUp runs on a paho goroutine and may not have fired yet.
	c.live.Store(true)
	return c, nil
}

// brokerUp replays the route table and announces the bridge online.
func (c *Client) brokerUp() {
	c.live.Store(true)

	for _, r := range c.routes.all() {
		// Not awaited: paho reports failures through the next reconnect.
		c.paho.Subscribe(r.filter, r.qos, c.dispatch(r.handler))
	}
	c.announce(StatusOnline, "")

	if l := c.log(); l != nil {
		l.Info("connected to MQTT broker", "host", c.cfg.Broker.Host, "routes", c.routes.len())
	}

	c.hookMu.RLock()
	hook := c.onConnect
	c.hookMu.RUnlock()
	if hook != nil {
		hook()
	}
}

func (c *Client) brokerDown(err error) {
	c.live.Store(false)

	c.hookMu.RLock()
	hook := c.onDisconnect
	c.hookMu.RUnlock()
	if hook != nil {
		hook(err)
	}
}

// announce publishes the retained bridge status document.
func (c *Client) announce(status, reason string) pahomqtt.Token {
	id := c.cfg.Broker.ClientID
	return c.paho.Publish(Topics{}.Status(id), byte(c.cfg.QoS), true, buildStatusPayload(id, status, reason))
}

// Close announces a graceful shutdown, then disconnects. Calling Close on a
// client that never connected is a no-op.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}

	if c.IsConnected() {
		c.announce(StatusOffline, reasonGraceful).WaitTimeout(defaultPublishTimeout)
	}
	c.paho.Disconnect(defaultDisconnectQuiesce)
	c.live.Store(false)
	return nil
}

// HealthCheck reports ErrNotConnected while the broker session is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether both our view and paho's agree the session
// is up.
func (c *Client) IsConnected() bool {
	return c.paho != nil && c.live.Load() && c.paho.IsConnected()
}

// SetOnConnect registers fn to run after every successful (re)connect,
// once subscriptions have been replayed.
func (c *Client) SetOnConnect(fn func()) {
	c.hookMu.Lock()
	c.onConnect = fn
	c.hookMu.Unlock()
}

// SetOnDisconnect registers fn to run when the session drops.
func (c *Client) SetOnDisconnect(fn func(err error)) {
	c.hookMu.Lock()
	c.onDisconnect = fn
	c.hookMu.Unlock()
}

// SetLogger sets the diagnostics logger. Without one, handler errors and
// recovered panics are dropped.
func (c *Client) SetLogger(l Logger) {
	c.hookMu.Lock()
	c.logger = l
	c.hookMu.Unlock()
}

func (c *Client) log() Logger {
	c.hookMu.RLock()
	defer c.hookMu.RUnlock()
	return c.logger
}

// dispatch adapts a MessageHandler to paho, isolating the router goroutine
// from handler panics.
func (c *Client) dispatch(h MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if l := c.log(); l != nil {
					l.Error("mqtt handler panicked", "topic", msg.Topic(), "panic", r)
				}
			}
		}()

		if err := h(msg.Topic(), msg.Payload()); err != nil {
			if l := c.log(); l != nil {
				l.Warn("mqtt handler failed", "topic", msg.Topic(), "error", err)
			}
		}
	}
}
