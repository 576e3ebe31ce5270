package cast

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReceiver answers Cast requests over one end of a net.Pipe.
type fakeReceiver struct {
	conn   net.Conn
	framer *framer
	out    chan *CastMessage

	mu          sync.Mutex
	level       float64
	quantum     float64
	launchError string
	silent      bool // ignore receiver requests
	received    []string
	launched    []string
}

type fakeRequest struct {
	Type      string `json:"type"`
	RequestID int64  `json:"requestId"`
	AppID     string `json:"appId"`
	Volume    struct {
		Level *float64 `json:"level"`
	} `json:"volume"`
}

func newFakeReceiver(conn net.Conn) *fakeReceiver {
	r := &fakeReceiver{
		conn:   conn,
		framer: newFramer(conn),
		out:    make(chan *CastMessage, 32),
		level:  0.5,
	}
	go r.readLoop()
	go r.writeLoop()
	return r
}

func (r *fakeReceiver) readLoop() {
	defer close(r.out)
	for {
		msg, err := r.framer.ReadMessage()
		if err != nil {
			return
		}
		var req fakeRequest
		_ = json.Unmarshal([]byte(msg.PayloadUTF8), &req)

		r.mu.Lock()
		r.received = append(r.received, msg.Namespace+" "+req.Type)
		r.mu.Unlock()

		if msg.Namespace == NamespaceReceiver {
			if reply := r.handle(req); reply != nil {
				r.out <- reply
			}
		}
	}
}

func (r *fakeReceiver) writeLoop() {
	for msg := range r.out {
		msg.SourceID, msg.DestinationID = DefaultDestinationID, DefaultSourceID
		if err := r.framer.WriteMessage(msg); err != nil {
			return
		}
	}
}

func (r *fakeReceiver) handle(req fakeRequest) *CastMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.silent {
		return nil
	}

	switch req.Type {
	case typeSetVolume:
		if req.Volume.Level != nil {
			r.level = math.Min(1, *req.Volume.Level+r.quantum)
		}
	case typeLaunch:
		if r.launchError != "" {
			return r.reply(map[string]any{"type": typeLaunchError, "requestId": req.RequestID, "reason": r.launchError})
		}
		r.launched = append(r.launched, req.AppID)
	case typeGetStatus:
	default:
		return r.reply(map[string]any{"type": typeInvalidRequest, "requestId": req.RequestID, "reason": "INVALID_COMMAND"})
	}

	return r.reply(map[string]any{
		"type":      typeReceiverStatus,
		"requestId": req.RequestID,
		"status":    map[string]any{"volume": map[string]any{"level": r.level, "muted": false}},
	})
}

func (r *fakeReceiver) reply(v any) *CastMessage {
	b, _ := json.Marshal(v)
	return NewMessage(NamespaceReceiver, string(b))
}

// push sends an unsolicited message to the client.
func (r *fakeReceiver) push(namespace, payload string) {
	r.out <- NewMessage(namespace, payload)
}

func (r *fakeReceiver) set(fn func(r *fakeReceiver)) {
	r.mu.Lock()
	fn(r)
	r.mu.Unlock()
}

func (r *fakeReceiver) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.received...)
}

// pipeClient returns a client whose Dial yields a pipe to a fake receiver.
func pipeClient(t *testing.T, cfg Config) (*Client, func() *fakeReceiver) {
	t.Helper()
	var (
		mu   sync.Mutex
		fake *fakeReceiver
	)
	cfg.Dial = func(ctx context.Context, address string) (net.Conn, error) {
		client, server := net.Pipe()
		mu.Lock()
		fake = newFakeReceiver(server)
		mu.Unlock()
		t.Cleanup(func() { server.Close() })
		return client, nil
	}
	c := NewClient(cfg)
	t.Cleanup(func() { c.Close() })
	return c, func() *fakeReceiver {
		mu.Lock()
		defer mu.Unlock()
		return fake
	}
}

func TestClient_Connect(t *testing.T) {
	c, fake := pipeClient(t, Config{})
	require.NoError(t, c.Connect(context.Background(), "10.0.0.2:8009"))
	assert.True(t, c.IsConnected())

	msgs := fake().messages()
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, NamespaceConnection+" "+typeConnect, msgs[0])
	assert.Equal(t, NamespaceReceiver+" "+typeGetStatus, msgs[1])

	st, ok := c.LastStatus()
	require.True(t, ok)
	require.NotNil(t, st.Volume.Level)
	assert.InDelta(t, 0.5, *st.Volume.Level, 1e-9)

	// Connected: no second dial.
	first := fake()
	require.NoError(t, c.Connect(context.Background(), "10.0.0.2:8009"))
	assert.Same(t, first, fake())
}

func TestClient_Connect_DialFailure(t *testing.T) {
	c := NewClient(Config{Dial: func(ctx context.Context, address string) (net.Conn, error) {
		return nil, errors.New("no route to host")
	}})

	err := c.Connect(context.Background(), "10.0.0.2:8009")
	assert.ErrorIs(t, err, ErrConnectionFailed)
	assert.False(t, c.IsConnected())
}

func TestClient_Connect_NoStatus(t *testing.T) {
	var fake *fakeReceiver
	c := NewClient(Config{
		ConnectTimeout: 50 * time.Millisecond,
		Dial: func(ctx context.Context, address string) (net.Conn, error) {
			client, server := net.Pipe()
			fake = newFakeReceiver(server)
			fake.set(func(r *fakeReceiver) { r.silent = true })
			t.Cleanup(func() { server.Close() })
			return client, nil
		},
	})

	err := c.Connect(context.Background(), "10.0.0.2:8009")
	assert.ErrorIs(t, err, ErrConnectionFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, c.IsConnected())
}

func TestClient_NotConnected(t *testing.T) {
	c := NewClient(Config{})

	_, err := c.Volume(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = c.SetVolume(context.Background(), 0.2)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, c.Launch(context.Background(), "CC1AD845"), ErrNotConnected)
	assert.NoError(t, c.Close())
}

func TestClient_Volume(t *testing.T) {
	c, fake := pipeClient(t, Config{})
	require.NoError(t, c.Connect(context.Background(), "10.0.0.2:8009"))
	fake().set(func(r *fakeReceiver) { r.level = 0.37 })

	level, err := c.Volume(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.37, level, 1e-9)
}

func TestClient_SetVolume_ReturnsConfirmedLevel(t *testing.T) {
	c, fake := pipeClient(t, Config{})
	require.NoError(t, c.Connect(context.Background(), "10.0.0.2:8009"))
	fake().set(func(r *fakeReceiver) { r.quantum = 0.02 })

	level, err := c.SetVolume(context.Background(), 0.4)
	require.NoError(t, err)
	assert.InDelta(t, 0.42, level, 1e-9)
}

func TestClient_ConcurrentRequests(t *testing.T) {
	c, _ := pipeClient(t, Config{})
	require.NoError(t, c.Connect(context.Background(), "10.0.0.2:8009"))

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Volume(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestClient_Launch(t *testing.T) {
	c, fake := pipeClient(t, Config{})
	require.NoError(t, c.Connect(context.Background(), "10.0.0.2:8009"))

	require.NoError(t, c.Launch(context.Background(), "CC1AD845"))
	fake().mu.Lock()
	assert.Equal(t, []string{"CC1AD845"}, fake().launched)
	fake().mu.Unlock()

	fake().set(func(r *fakeReceiver) { r.launchError = "NOT_FOUND" })
	err := c.Launch(context.Background(), "DEADBEEF")
	assert.ErrorIs(t, err, ErrLaunchFailed)
	assert.Contains(t, err.Error(), "NOT_FOUND")
}

func TestClient_RequestTimeout(t *testing.T) {
	c, fake := pipeClient(t, Config{RequestTimeout: 30 * time.Millisecond})
	require.NoError(t, c.Connect(context.Background(), "10.0.0.2:8009"))
	fake().set(func(r *fakeReceiver) { r.silent = true })

	_, err := c.Volume(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, c.IsConnected(), "an unanswered request does not end the session")
}

func TestClient_OnErrorWhenReceiverDisconnects(t *testing.T) {
	c, fake := pipeClient(t, Config{})
	errCh := make(chan error, 1)
	c.SetOnError(func(err error) { errCh <- err })
	require.NoError(t, c.Connect(context.Background(), "10.0.0.2:8009"))

	fake().conn.Close()

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("error callback not invoked")
	}
	assert.False(t, c.IsConnected())

	_, err := c.Volume(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClient_ReceiverClose(t *testing.T) {
	c, fake := pipeClient(t, Config{})
	errCh := make(chan error, 1)
	c.SetOnError(func(err error) { errCh <- err })
	require.NoError(t, c.Connect(context.Background(), "10.0.0.2:8009"))

	fake().push(NamespaceConnection, `{"type":"CLOSE"}`)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrSessionClosed)
	case <-time.After(time.Second):
		t.Fatal("error callback not invoked")
	}
}

func TestClient_HeartbeatTimeout(t *testing.T) {
	c, _ := pipeClient(t, Config{HeartbeatInterval: 20 * time.Millisecond})
	errCh := make(chan error, 1)
	c.SetOnError(func(err error) { errCh <- err })
	require.NoError(t, c.Connect(context.Background(), "10.0.0.2:8009"))

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrHeartbeatTimeout)
	case <-time.After(time.Second):
		t.Fatal("heartbeat timeout not reported")
	}
	assert.False(t, c.IsConnected())
}

func TestClient_AnswersPing(t *testing.T) {
	c, fake := pipeClient(t, Config{})
	require.NoError(t, c.Connect(context.Background(), "10.0.0.2:8009"))

	fake().push(NamespaceHeartbeat, `{"type":"PING"}`)

	require.Eventually(t, func() bool {
		for _, m := range fake().messages() {
			if m == NamespaceHeartbeat+" "+typePong {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestClient_CloseIsSilent(t *testing.T) {
	c, fake := pipeClient(t, Config{})
	called := make(chan struct{}, 1)
	c.SetOnError(func(error) { called <- struct{}{} })
	require.NoError(t, c.Connect(context.Background(), "10.0.0.2:8009"))

	require.NoError(t, c.Close())
	assert.False(t, c.IsConnected())

	require.Eventually(t, func() bool {
		msgs := fake().messages()
		return len(msgs) > 0 && msgs[len(msgs)-1] == NamespaceConnection+" "+typeClose
	}, time.Second, 5*time.Millisecond)

	select {
	case <-called:
		t.Fatal("deliberate close must not fire the error callback")
	case <-time.After(50 * time.Millisecond):
	}

	// A closed client can reconnect.
	require.NoError(t, c.Connect(context.Background(), "10.0.0.2:8009"))
	assert.True(t, c.IsConnected())
}

func TestAddress(t *testing.T) {
	assert.Equal(t, "10.0.0.2:8009", Address("10.0.0.2", 0))
	assert.Equal(t, "10.0.0.2:9000", Address("10.0.0.2", 9000))
}
