package samsung

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

// Defaults for the legacy remote protocol.
const (
	// DefaultPort is the TV's remote-control port.
	DefaultPort = 55000

	// DefaultTimeout bounds each connect and each exchange with the TV.
	// It stays under the 2 s state poll so an unanswered dial reads as off.
	DefaultTimeout = time.Second

	// DefaultControllerName is shown in the TV's "allow remote" prompt.
	DefaultControllerName = "castbridge"

	defaultControllerIP  = "127.0.0.1"
	defaultControllerMAC = "00:00:00:00"
)

// Config holds the TV connection settings.
type Config struct {
	// IP is the TV's address.
	IP string

	// Port is the remote-control port.
	// Default: 55000.
	Port int

	// Timeout bounds the connect and every read or write.
	// Default: 5 seconds.
	Timeout time.Duration

	// ControllerIP, ControllerMAC and ControllerName identify this controller
	// to the TV. The TV remembers an allowed controller by these values.
	ControllerIP   string
	ControllerMAC  string
	ControllerName string
}

// Address returns the TV's host:port.
func (c Config) Address() string {
	return net.JoinHostPort(c.IP, strconv.Itoa(c.Port))
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Client sends key presses to a legacy Samsung TV.
//
// Thread Safety: All methods are safe for concurrent use. Every call opens
// its own connection.
type Client struct {
	cfg    Config
	dialer net.Dialer

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a client for the TV described by cfg. No connection is made.
func New(cfg Config) *Client {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ControllerIP == "" {
		cfg.ControllerIP = defaultControllerIP
	}
	if cfg.ControllerMAC == "" {
		cfg.ControllerMAC = defaultControllerMAC
	}
	if cfg.ControllerName == "" {
		cfg.ControllerName = DefaultControllerName
	}
	return &Client{cfg: cfg}
}

// SetLogger sets the logger for debug output.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// IsAlive reports whether the TV accepts connections on its remote port.
// A TV in standby does not.
func (c *Client) IsAlive(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	return conn.Close()
}

// Send presses key (for example "KEY_VOLUP") once. It returns nil only after
// the TV acknowledged the key frame.
func (c *Client) Send(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Abort blocking I/O when ctx ends.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now()) //nolint:errcheck // Unblocks pending I/O
	})
	defer stop()

	if err := c.exchange(conn, AuthFrame(c.cfg.ControllerIP, c.cfg.ControllerMAC, c.cfg.ControllerName), authResult); err != nil {
		return c.ctxErr(ctx, fmt.Errorf("authenticate: %w", err))
	}

	if err := c.exchange(conn, KeyFrame(key), keyResult); err != nil {
		return c.ctxErr(ctx, fmt.Errorf("send %s: %w", key, err))
	}

	c.logDebug("key sent", "key", key, "address", c.cfg.Address())
	return nil
}

// exchange writes one frame and interprets the single frame sent in reply.
func (c *Client) exchange(conn net.Conn, out Frame, check func([]byte) error) error {
	if err := conn.SetDeadline(time.Now().Add(c.cfg.Timeout)); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}
	if _, err := conn.Write(out.Encode()); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	in, err := ReadFrame(conn)
	if err != nil {
		return err
	}
	return check(in.Payload)
}

// keyResult accepts any key acknowledgement except an explicit denial.
func keyResult(payload []byte) error {
	if err := authResult(payload); errors.Is(err, ErrAccessDenied) {
		return err
	}
	return nil
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	conn, err := c.dialer.DialContext(dialCtx, "tcp", c.cfg.Address())
	if err != nil {
		c.logDebug("tv not reachable", "address", c.cfg.Address(), "error", err)
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	return conn, nil
}

// ctxErr prefers the context's error when ctx ended the exchange.
func (c *Client) ctxErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	return err
}

func (c *Client) logDebug(msg string, keysAndValues ...any) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()
	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
