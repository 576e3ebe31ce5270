package cast

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Defaults for Cast v2 sessions.
const (
	// DefaultPort is the receiver's Cast v2 TLS port.
	DefaultPort = 8009

	// DefaultConnectTimeout bounds dialling and the opening status request.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultRequestTimeout bounds a request whose context has no deadline.
	DefaultRequestTimeout = 5 * time.Second

	// DefaultHeartbeatInterval is the PING period.
	DefaultHeartbeatInterval = 5 * time.Second

	// missedHeartbeats is how many silent intervals end the session.
	missedHeartbeats = 3
)

// DialFunc opens the byte stream to a receiver.
type DialFunc func(ctx context.Context, address string) (net.Conn, error)

// Config holds Cast client settings. Zero values select defaults.
type Config struct {
	ConnectTimeout    time.Duration
	RequestTimeout    time.Duration
	HeartbeatInterval time.Duration

	// Dial opens the connection. Default: TLS over TCP without certificate
	// verification (receivers present self-signed certificates).
	Dial DialFunc
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Address joins a receiver host and port. A zero port selects DefaultPort.
func Address(host string, port int) string {
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// Client is a Cast v2 sender holding at most one receiver session.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - The error callback is invoked on its own goroutine, once per session.
type Client struct {
	cfg Config

	sess   *session
	sessMu sync.Mutex

	onError func(error)
	errMu   sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex

	status atomic.Pointer[ReceiverStatus]
}

// NewClient creates a disconnected client.
func NewClient(cfg Config) *Client {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.Dial == nil {
		cfg.Dial = dialTLS
	}
	return &Client{cfg: cfg}
}

func dialTLS(ctx context.Context, address string) (net.Conn, error) {
	d := tls.Dialer{Config: &tls.Config{InsecureSkipVerify: true}} //nolint:gosec // Receivers use self-signed certificates
	return d.DialContext(ctx, "tcp", address)
}

// SetLogger sets the logger for debug output.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// SetOnError registers fn to be told when an established session fails
// (read error, receiver close or heartbeat timeout). The session is already
// gone when fn runs.
func (c *Client) SetOnError(fn func(error)) {
	c.errMu.Lock()
	c.onError = fn
	c.errMu.Unlock()
}

// IsConnected reports whether a session is open.
func (c *Client) IsConnected() bool {
	return c.current() != nil
}

// LastStatus returns the most recent receiver status seen on any session.
func (c *Client) LastStatus() (ReceiverStatus, bool) {
	if s := c.status.Load(); s != nil {
		return *s, true
	}
	return ReceiverStatus{}, false
}

// Connect opens a session to the receiver at address (host:port).
//
// The session is confirmed with a status request before Connect returns.
// Calling Connect while connected is a no-op.
func (c *Client) Connect(ctx context.Context, address string) error {
	if c.IsConnected() {
		return nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	conn, err := c.cfg.Dial(connectCtx, address)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %w", ErrConnectionFailed, address, err)
	}

	s := newSession(conn, c.cfg.HeartbeatInterval, c.log())
	s.onStatus = func(st ReceiverStatus) { c.status.Store(&st) }
	s.onFail = func(err error) { c.sessionFailed(s, err) }

	if err := s.send(NamespaceConnection, header{Type: typeConnect}); err != nil {
		conn.Close()
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	s.start()

	if _, err := s.request(connectCtx, &header{Type: typeGetStatus}); err != nil {
		s.close()
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c.sessMu.Lock()
	old := c.sess
	c.sess = s
	c.sessMu.Unlock()
	if old != nil {
		old.close()
	}

	c.log().Debug("cast session open", "address", address)
	return nil
}

// Close ends the current session, if any.
func (c *Client) Close() error {
	c.sessMu.Lock()
	s := c.sess
	c.sess = nil
	c.sessMu.Unlock()

	if s != nil {
		s.close()
	}
	return nil
}

// Status requests the receiver status.
func (c *Client) Status(ctx context.Context) (ReceiverStatus, error) {
	resp, err := c.do(ctx, &header{Type: typeGetStatus})
	if err != nil {
		return ReceiverStatus{}, err
	}
	return resp.Status, nil
}

// Volume returns the receiver volume level in [0, 1].
func (c *Client) Volume(ctx context.Context) (float64, error) {
	st, err := c.Status(ctx)
	if err != nil {
		return 0, err
	}
	return volumeLevel(st)
}

// SetVolume sets the receiver volume level in [0, 1] and returns the level
// the receiver reports afterwards.
func (c *Client) SetVolume(ctx context.Context, level float64) (float64, error) {
	req := &setVolumeRequest{
		header: header{Type: typeSetVolume},
		Volume: Volume{Level: &level},
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return 0, err
	}
	return volumeLevel(resp.Status)
}

// Launch starts the receiver application appID.
func (c *Client) Launch(ctx context.Context, appID string) error {
	_, err := c.do(ctx, &launchRequest{
		header: header{Type: typeLaunch},
		AppID:  appID,
	})
	return err
}

func (c *Client) do(ctx context.Context, req requestPayload) (receiverResponse, error) {
	s := c.current()
	if s == nil {
		return receiverResponse{}, ErrNotConnected
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}
	return s.request(ctx, req)
}

func (c *Client) current() *session {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()
	return c.sess
}

// sessionFailed drops s if it is still current and reports err.
func (c *Client) sessionFailed(s *session, err error) {
	c.sessMu.Lock()
	wasCurrent := c.sess == s
	if wasCurrent {
		c.sess = nil
	}
	c.sessMu.Unlock()

	if !wasCurrent {
		return
	}

	c.log().Warn("cast session lost", "error", err)

	c.errMu.RLock()
	fn := c.onError
	c.errMu.RUnlock()
	if fn != nil {
		go fn(err)
	}
}

func (c *Client) log() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	if c.logger == nil {
		return nopLogger{}
	}
	return c.logger
}

func volumeLevel(st ReceiverStatus) (float64, error) {
	if st.Volume.Level == nil {
		return 0, fmt.Errorf("%w: status without volume level", ErrInvalidMessage)
	}
	return *st.Volume.Level, nil
}

// requestPayload is a receiver request that takes a request ID.
type requestPayload interface {
	setRequestID(id int64)
	messageType() string
}

func (h *header) setRequestID(id int64) { h.RequestID = id }
func (h *header) messageType() string    { return h.Type }

// session is one connection to a receiver.
type session struct {
	conn      net.Conn
	framer    *framer
	heartbeat time.Duration
	logger    Logger

	onStatus func(ReceiverStatus)
	onFail   func(error)

	nextID    atomic.Int64
	pending   map[int64]chan receiverResponse
	pendingMu sync.Mutex

	lastSeen atomic.Int64 // unix nanoseconds of the last inbound message

	closing atomic.Bool
	done    chan struct{}
	endOnce sync.Once
	wg      sync.WaitGroup
}

func newSession(conn net.Conn, heartbeat time.Duration, logger Logger) *session {
	s := &session{
		conn:      conn,
		framer:    newFramer(conn),
		heartbeat: heartbeat,
		logger:    logger,
		pending:   make(map[int64]chan receiverResponse),
		done:      make(chan struct{}),
	}
	s.lastSeen.Store(time.Now().UnixNano())
	return s
}

func (s *session) start() {
	s.wg.Add(2)
	go s.readLoop()
	go s.heartbeatLoop()
}

// send marshals v as JSON and writes it on namespace.
func (s *session) send(namespace string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return s.framer.WriteMessage(NewMessage(namespace, string(b)))
}

// request sends req on the receiver namespace and waits for the reply with
// the same request ID.
func (s *session) request(ctx context.Context, req requestPayload) (receiverResponse, error) {
	id := s.nextID.Add(1)
	req.setRequestID(id)

	ch := make(chan receiverResponse, 1)
	s.pendingMu.Lock()
	s.pending[id] = ch
	s.pendingMu.Unlock()

	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
	}()

	if err := s.send(NamespaceReceiver, req); err != nil {
		return receiverResponse{}, err
	}

	select {
	case resp := <-ch:
		switch resp.Type {
		case typeLaunchError:
			return resp, fmt.Errorf("%w: %s", ErrLaunchFailed, resp.Reason)
		case typeInvalidRequest:
			return resp, fmt.Errorf("%w: %s: %s", ErrInvalidRequest, req.messageType(), resp.Reason)
		}
		return resp, nil
	case <-ctx.Done():
		return receiverResponse{}, ctx.Err()
	case <-s.done:
		return receiverResponse{}, ErrSessionClosed
	}
}

func (s *session) readLoop() {
	defer s.wg.Done()

	for {
		msg, err := s.framer.ReadMessage()
		if err != nil {
			if errors.Is(err, ErrInvalidMessage) {
				s.logger.Debug("dropping undecodable cast message", "error", err)
				continue
			}
			s.end(err)
			return
		}
		s.lastSeen.Store(time.Now().UnixNano())
		s.dispatch(msg)
	}
}

func (s *session) dispatch(msg *CastMessage) {
	var h header
	if err := json.Unmarshal([]byte(msg.PayloadUTF8), &h); err != nil {
		s.logger.Debug("dropping non-JSON cast payload", "namespace", msg.Namespace, "error", err)
		return
	}

	switch msg.Namespace {
	case NamespaceHeartbeat:
		if h.Type == typePing {
			if err := s.send(NamespaceHeartbeat, header{Type: typePong}); err != nil {
				s.logger.Debug("pong failed", "error", err)
			}
		}

	case NamespaceConnection:
		if h.Type == typeClose {
			s.end(ErrSessionClosed)
		}

	case NamespaceReceiver:
		var resp receiverResponse
		if err := json.Unmarshal([]byte(msg.PayloadUTF8), &resp); err != nil {
			s.logger.Debug("dropping malformed receiver message", "error", err)
			return
		}
		if resp.Type == typeReceiverStatus && s.onStatus != nil {
			s.onStatus(resp.Status)
		}
		if resp.RequestID == 0 {
			return
		}

		s.pendingMu.Lock()
		ch, ok := s.pending[resp.RequestID]
		s.pendingMu.Unlock()
		if ok {
			select {
			case ch <- resp:
			default:
			}
		}
	}
}

func (s *session) heartbeatLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	limit := time.Duration(missedHeartbeats) * s.heartbeat

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		if time.Since(time.Unix(0, s.lastSeen.Load())) > limit {
			s.end(ErrHeartbeatTimeout)
			return
		}
		if err := s.send(NamespaceHeartbeat, header{Type: typePing}); err != nil {
			s.end(err)
			return
		}
	}
}

// end tears the session down after a failure and reports it unless the
// session was closed deliberately.
func (s *session) end(err error) {
	s.endOnce.Do(func() {
		close(s.done)
		s.conn.Close()
		if !s.closing.Load() && s.onFail != nil {
			s.onFail(err)
		}
	})
}

// close ends the session deliberately and waits for its goroutines.
func (s *session) close() {
	if s.closing.Swap(true) {
		return
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(time.Second)) //nolint:errcheck // Best effort goodbye
	if err := s.send(NamespaceConnection, header{Type: typeClose}); err != nil {
		s.logger.Debug("cast close message failed", "error", err)
	}
	s.end(ErrSessionClosed)
	s.wg.Wait()
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
