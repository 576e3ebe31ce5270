package hostbus

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nerrad567/castbridge/internal/accessory"
	"github.com/nerrad567/castbridge/internal/audit"
	"github.com/nerrad567/castbridge/internal/infrastructure/mqtt"
)

// published is one recorded Publish call.
type published struct {
	topic    string
	payload  []byte
	retained bool
}

// mockMQTT records publishes and captures the command handler.
type mockMQTT struct {
	mu           sync.Mutex
	messages     []published
	handlers     map[string]mqtt.MessageHandler
	unsubscribed []string
	connected    bool
	subscribeErr error
}

func newMockMQTT() *mockMQTT {
	return &mockMQTT{handlers: make(map[string]mqtt.MessageHandler), connected: true}
}

func (m *mockMQTT) Publish(topic string, payload []byte, _ byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, published{topic: topic, payload: append([]byte(nil), payload...), retained: retained})
	return nil
}

func (m *mockMQTT) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribeErr != nil {
		return m.subscribeErr
	}
	m.handlers[topic] = handler
	return nil
}

func (m *mockMQTT) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	m.unsubscribed = append(m.unsubscribed, topic)
	return nil
}

func (m *mockMQTT) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// deliver invokes the handler subscribed to topic, as the broker would.
func (m *mockMQTT) deliver(t *testing.T, topic string, payload string) error {
	t.Helper()
	m.mu.Lock()
	h := m.handlers[topic]
	m.mu.Unlock()
	require.NotNil(t, h, "no handler for %s", topic)
	return h(topic, []byte(payload))
}

func (m *mockMQTT) on(topic string) []published {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []published
	for _, p := range m.messages {
		if p.topic == topic {
			out = append(out, p)
		}
	}
	return out
}

func (m *mockMQTT) acks(t *testing.T, accessoryName string) []AckMessage {
	t.Helper()
	var acks []AckMessage
	for _, p := range m.on(mqtt.Topics{}.Ack(accessoryName)) {
		var ack AckMessage
		require.NoError(t, json.Unmarshal(p.payload, &ack))
		acks = append(acks, ack)
	}
	return acks
}

func (m *mockMQTT) states(t *testing.T, accessoryName string) []StateMessage {
	t.Helper()
	var states []StateMessage
	for _, p := range m.on(mqtt.Topics{}.State(accessoryName)) {
		require.True(t, p.retained, "state must be retained")
		var s StateMessage
		require.NoError(t, json.Unmarshal(p.payload, &s))
		states = append(states, s)
	}
	return states
}

// finalAck waits for the completed or failed ack of commandID.
func (m *mockMQTT) finalAck(t *testing.T, accessoryName, commandID string) AckMessage {
	t.Helper()
	var final AckMessage
	require.Eventually(t, func() bool {
		for _, ack := range m.acks(t, accessoryName) {
			if ack.CommandID == commandID && ack.Status != AckAccepted {
				final = ack
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond, "no final ack for %s", commandID)
	return final
}

// mockAccessory records calls and returns configured errors.
type mockAccessory struct {
	mu        sync.Mutex
	snapshot  accessory.Snapshot
	observers []func(accessory.State)
	calls     []string
	err       error
	volume    int // confirmed by SetVolume

	// block, when set, holds SetChannel until closed.
	block chan struct{}
}

func newMockAccessory(name string) *mockAccessory {
	return &mockAccessory{
		snapshot: accessory.Snapshot{
			Name:      name,
			State:     accessory.State{PowerOn: true, VolumePercent: 30},
			Channel:   accessory.DefaultChannel,
			Key:       accessory.DefaultKey,
			Secondary: accessory.Connected.String(),
		},
	}
}

func (a *mockAccessory) Name() string { return a.Snapshot().Name }

func (a *mockAccessory) Snapshot() accessory.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot
}

func (a *mockAccessory) setSnapshot(fn func(*accessory.Snapshot)) {
	a.mu.Lock()
	fn(&a.snapshot)
	observers := append([]func(accessory.State){}, a.observers...)
	state := a.snapshot.State
	a.mu.Unlock()

	for _, fn := range observers {
		fn(state)
	}
}

func (a *mockAccessory) setErr(err error) {
	a.mu.Lock()
	a.err = err
	a.mu.Unlock()
}

func (a *mockAccessory) OnUpdate(fn func(accessory.State)) {
	a.mu.Lock()
	a.observers = append(a.observers, fn)
	a.mu.Unlock()
}

func (a *mockAccessory) record(call string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, call)
	return a.err
}

func (a *mockAccessory) getCalls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

func (a *mockAccessory) SetPower(_ context.Context, on bool) error {
	if on {
		return a.record("power:on")
	}
	return a.record("power:off")
}

func (a *mockAccessory) SetVolume(_ context.Context, pct int) (int, error) {
	if err := a.record("volume:" + strconv.Itoa(pct)); err != nil {
		return 0, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.volume != 0 {
		return a.volume, nil
	}
	return pct, nil
}

func (a *mockAccessory) StepVolume(_ context.Context, step int) error {
	return a.record("step:" + strconv.Itoa(step))
}

func (a *mockAccessory) ToggleMute(context.Context) error {
	return a.record("mute")
}

func (a *mockAccessory) SetChannel(ctx context.Context, channel string) error {
	a.mu.Lock()
	block := a.block
	a.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return a.record("channel:" + channel)
}

func (a *mockAccessory) SetKey(_ context.Context, name string) error {
	return a.record("key:" + name)
}

// mockAudit records audit entries.
type mockAudit struct {
	mu      sync.Mutex
	entries []audit.CommandLog
}

func (m *mockAudit) Create(_ context.Context, entry *audit.CommandLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockAudit) all() []audit.CommandLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]audit.CommandLog(nil), m.entries...)
}

// mockTelemetry counts writes.
type mockTelemetry struct {
	mu       sync.Mutex
	states   int
	commands []string
}

func (m *mockTelemetry) WriteAccessoryState(string, bool, *int, string) {
	m.mu.Lock()
	m.states++
	m.mu.Unlock()
}

func (m *mockTelemetry) WriteCommand(_ string, command string, ok bool, _ time.Duration) {
	m.mu.Lock()
	status := "ok"
	if !ok {
		status = "failed"
	}
	m.commands = append(m.commands, command+":"+status)
	m.mu.Unlock()
}

func (m *mockTelemetry) snapshot() (int, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states, append([]string(nil), m.commands...)
}
