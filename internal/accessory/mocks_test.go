package accessory

import (
	"context"
	"sync"
	"time"
)

// mockRemote implements RemoteTransport for testing.
type mockRemote struct {
	mu       sync.Mutex
	alive    error
	sent     []sentKey
	sendErr  map[string]error // per-key failures
	failAll  error
	block    chan struct{} // when set, Send waits on it
	started  chan string   // when set, receives each key as Send begins
	aliveHit int

	// aliveDelay holds IsAlive back, like a dial waiting out its timeout.
	aliveDelay time.Duration
}

type sentKey struct {
	Key string
	At  time.Time
}

func newMockRemote() *mockRemote {
	return &mockRemote{sendErr: make(map[string]error)}
}

func (m *mockRemote) IsAlive(ctx context.Context) error {
	m.mu.Lock()
	m.aliveHit++
	err := m.alive
	delay := m.aliveDelay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (m *mockRemote) Send(ctx context.Context, key string) error {
	m.mu.Lock()
	block := m.block
	started := m.started
	m.mu.Unlock()

	if started != nil {
		started <- key
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return m.failAll
	}
	if err := m.sendErr[key]; err != nil {
		return err
	}
	m.sent = append(m.sent, sentKey{Key: key, At: time.Now()})
	return nil
}

func (m *mockRemote) setAlive(err error) {
	m.mu.Lock()
	m.alive = err
	m.mu.Unlock()
}

func (m *mockRemote) setSendError(key string, err error) {
	m.mu.Lock()
	m.sendErr[key] = err
	m.mu.Unlock()
}

func (m *mockRemote) clearSendError(key string) {
	m.mu.Lock()
	delete(m.sendErr, key)
	m.mu.Unlock()
}

func (m *mockRemote) setFailAll(err error) {
	m.mu.Lock()
	m.failAll = err
	m.mu.Unlock()
}

func (m *mockRemote) aliveCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.aliveHit
}

func (m *mockRemote) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	for i, s := range m.sent {
		out[i] = s.Key
	}
	return out
}

func (m *mockRemote) sentKeys() []sentKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentKey, len(m.sent))
	copy(out, m.sent)
	return out
}

// mockReceiver implements ReceiverTransport for testing.
type mockReceiver struct {
	mu         sync.Mutex
	connectErr error
	launchErr  error
	level      float64
	volumeErr  error
	volumeWait bool // Volume blocks until ctx is done
	quantum    float64
	onError    func(error)

	connects  int
	launches  []string
	setLevels []float64
	volumes   int
	closes    int
}

func newMockReceiver() *mockReceiver {
	return &mockReceiver{level: 0.25}
}

func (m *mockReceiver) Connect(ctx context.Context, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connects++
	return m.connectErr
}

func (m *mockReceiver) Launch(ctx context.Context, appID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.launches = append(m.launches, appID)
	return m.launchErr
}

func (m *mockReceiver) Volume(ctx context.Context) (float64, error) {
	m.mu.Lock()
	m.volumes++
	wait := m.volumeWait
	level, err := m.level, m.volumeErr
	m.mu.Unlock()

	if wait {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return level, err
}

func (m *mockReceiver) SetVolume(ctx context.Context, level float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLevels = append(m.setLevels, level)
	if m.volumeErr != nil {
		return 0, m.volumeErr
	}
	m.level = level + m.quantum
	return m.level, nil
}

func (m *mockReceiver) SetOnError(fn func(error)) {
	m.mu.Lock()
	m.onError = fn
	m.mu.Unlock()
}

func (m *mockReceiver) Close() error {
	m.mu.Lock()
	m.closes++
	m.mu.Unlock()
	return nil
}

// simulateError fires the transport error event.
func (m *mockReceiver) simulateError(err error) {
	m.mu.Lock()
	fn := m.onError
	m.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (m *mockReceiver) calls() (connects, volumes, closes int, setLevels []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connects, m.volumes, m.closes, append([]float64(nil), m.setLevels...)
}

func (m *mockReceiver) launched() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.launches...)
}
