package accessory

import (
	"context"
	"fmt"
	"math"
	"sync"
)

// Device roles used in errors and log fields.
const (
	RolePrimary   = "primary"
	RoleSecondary = "secondary"
)

// RemoteTransport is the stateless remote-control protocol spoken by the
// primary device. It is implemented by samsung.Client.
type RemoteTransport interface {
	// IsAlive returns nil if the device answered within its timeout.
	IsAlive(ctx context.Context) error

	// Send delivers one key and returns nil only on protocol acknowledgement.
	Send(ctx context.Context, key string) error
}

// ReceiverTransport is the stateful session protocol spoken by the secondary
// device. It is implemented by cast.Client.
type ReceiverTransport interface {
	// Connect opens the session. It returns once the transport reports the
	// connection as established or failed.
	Connect(ctx context.Context, address string) error

	// Launch foregrounds the named receiver application.
	Launch(ctx context.Context, appID string) error

	// Volume returns the receiver level in [0.0, 1.0].
	Volume(ctx context.Context) (float64, error)

	// SetVolume requests a level in [0.0, 1.0] and returns the level the
	// receiver confirmed.
	SetVolume(ctx context.Context, level float64) (float64, error)

	// SetOnError registers the callback fired on transport error events after
	// the session was established.
	SetOnError(fn func(error))

	// Close tears the session down. Safe to call more than once.
	Close() error
}

// SimpleRemoteLink adapts a RemoteTransport into the primary device link.
// It never retries; retry policy belongs to its callers.
type SimpleRemoteLink struct {
	transport RemoteTransport
	logger    Logger
}

// NewSimpleRemoteLink creates the primary link.
func NewSimpleRemoteLink(transport RemoteTransport, logger Logger) *SimpleRemoteLink {
	return &SimpleRemoteLink{
		transport: transport,
		logger:    orNop(logger),
	}
}

// CheckAlive reports whether the device answered. Transport errors are
// interpreted as "not alive" and never returned.
func (l *SimpleRemoteLink) CheckAlive(ctx context.Context) bool {
	if err := l.transport.IsAlive(ctx); err != nil {
		l.logger.Debug("primary device is offline", "error", err)
		return false
	}
	l.logger.Debug("primary device is alive")
	return true
}

// SendKey sends a single key to the device.
//
// Returns:
//   - error: nil on acknowledgement, *TransportError otherwise
func (l *SimpleRemoteLink) SendKey(ctx context.Context, key string) error {
	if err := l.transport.Send(ctx, key); err != nil {
		l.logger.Debug("could not send key", "key", key, "error", err)
		return &TransportError{Device: RolePrimary, Op: "send_key", Key: key, Err: err}
	}
	l.logger.Debug("key sent", "key", key)
	return nil
}

// PowerOn sends the power-on key.
func (l *SimpleRemoteLink) PowerOn(ctx context.Context) error {
	return l.SendKey(ctx, KeyPowerOn)
}

// PowerOff sends the power-off key.
func (l *SimpleRemoteLink) PowerOff(ctx context.Context) error {
	return l.SendKey(ctx, KeyPowerOff)
}

// ConnectionState is the session state of a SessionedLink.
type ConnectionState int

const (
	// Disconnected is the initial state and the state after any error.
	Disconnected ConnectionState = iota

	// Connecting means a connect attempt is in flight.
	Connecting

	// Connected means volume and launch operations are allowed.
	Connected
)

// String returns the lowercase state name used in logs and state messages.
func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// SessionedLink adapts a ReceiverTransport into the secondary device link and
// owns its ConnectionState.
//
// Thread Safety: All methods are safe for concurrent use.
type SessionedLink struct {
	transport ReceiverTransport
	logger    Logger

	state ConnectionState
	mu    sync.RWMutex
}

// NewSessionedLink creates the secondary link in the Disconnected state.
func NewSessionedLink(transport ReceiverTransport, logger Logger) *SessionedLink {
	l := &SessionedLink{
		transport: transport,
		logger:    orNop(logger),
	}
	transport.SetOnError(l.handleTransportError)
	return l
}

// State returns the current connection state.
func (l *SessionedLink) State() ConnectionState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// IsConnected reports whether State() == Connected.
func (l *SessionedLink) IsConnected() bool {
	return l.State() == Connected
}

// Connect opens the session to the receiver at address.
//
// Transitions Disconnected→Connecting, then Connecting→Connected on success or
// Connecting→Disconnected on failure (the transport is closed). Calling while
// Connected is a no-op; calling while Connecting returns ErrConnectInProgress.
func (l *SessionedLink) Connect(ctx context.Context, address string) error {
	l.mu.Lock()
	switch l.state {
	case Connected:
		l.mu.Unlock()
		return nil
	case Connecting:
		l.mu.Unlock()
		return ErrConnectInProgress
	}
	l.state = Connecting
	l.mu.Unlock()

	l.logger.Debug("connecting to secondary device", "address", address)

	if err := l.transport.Connect(ctx, address); err != nil {
		l.logger.Debug("secondary connect failed", "address", address, "error", err)
		_ = l.transport.Close() //nolint:errcheck // Best effort cleanup on error path
		l.setState(Disconnected)
		return fmt.Errorf("%w: %w", ErrConnectFailed, &TransportError{Device: RoleSecondary, Op: "connect", Err: err})
	}

	l.setState(Connected)
	l.logger.Debug("connected to secondary device", "address", address)
	return nil
}

// handleTransportError is the transport's error event: the session is gone.
func (l *SessionedLink) handleTransportError(err error) {
	l.logger.Debug("secondary transport error", "error", err)
	_ = l.transport.Close() //nolint:errcheck // Session already failed
	l.setState(Disconnected)
}

func (l *SessionedLink) setState(s ConnectionState) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// Launch requests that the receiver foreground the application appID.
func (l *SessionedLink) Launch(ctx context.Context, appID string) error {
	if !l.IsConnected() {
		return ErrNotConnected
	}

	l.logger.Debug("launching receiver application", "app_id", appID)
	if err := l.transport.Launch(ctx, appID); err != nil {
		return fmt.Errorf("%w: %w", ErrLaunchFailed, &TransportError{Device: RoleSecondary, Op: "launch", Err: err})
	}
	return nil
}

// Volume returns the receiver volume as a percentage.
func (l *SessionedLink) Volume(ctx context.Context) (int, error) {
	if !l.IsConnected() {
		return 0, ErrNotConnected
	}

	level, err := l.transport.Volume(ctx)
	if err != nil {
		return 0, &TransportError{Device: RoleSecondary, Op: "get_volume", Err: err}
	}

	pct := levelToPercent(level)
	l.logger.Debug("secondary volume", "volume", pct)
	return pct, nil
}

// SetVolume sets the receiver volume and returns the confirmed percentage,
// which may differ from pct because of device-side quantisation.
func (l *SessionedLink) SetVolume(ctx context.Context, pct int) (int, error) {
	if !l.IsConnected() {
		return 0, ErrNotConnected
	}
	if pct < 0 || pct > 100 {
		return 0, ErrInvalidVolume
	}

	confirmed, err := l.transport.SetVolume(ctx, float64(pct)/100)
	if err != nil {
		return 0, &TransportError{Device: RoleSecondary, Op: "set_volume", Err: err}
	}

	got := levelToPercent(confirmed)
	l.logger.Debug("secondary volume set", "requested", pct, "confirmed", got)
	return got, nil
}

// Close closes the transport and marks the link Disconnected.
func (l *SessionedLink) Close() error {
	l.setState(Disconnected)
	return l.transport.Close()
}

// levelToPercent converts a receiver level in [0, 1] to a clamped percentage.
func levelToPercent(level float64) int {
	pct := int(math.Round(level * 100))
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}
