//go:build integration

package mqtt

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Broker tests. They need a broker on 127.0.0.1:1883:
//
//	go test -tags=integration -count=1 ./internal/infrastructure/mqtt/...

func connectBroker(t *testing.T, clientID string) *Client {
	t.Helper()
	cfg := testConfig()
	cfg.Broker.ClientID = clientID

	c, err := Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// firstMessage subscribes to filter and returns the delivered messages.
func firstMessage(t *testing.T, c *Client, filter string) <-chan [2]string {
	t.Helper()
	ch := make(chan [2]string, 8)
	require.NoError(t, c.Subscribe(filter, 1, func(topic string, payload []byte) error {
		ch <- [2]string{topic, string(payload)}
		return nil
	}))
	return ch
}

func TestIntegration_CommandRoundtrip(t *testing.T) {
	host := connectBroker(t, "castbridge-int-host")
	bridge := connectBroker(t, "castbridge-int-bridge")

	msgs := firstMessage(t, bridge, Topics{}.AllCommands())
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, host.Publish(Topics{}.Command("int-tv"), []byte(`{"id":"1","command":"read"}`), 1, false))

	select {
	case m := <-msgs:
		assert.Equal(t, "castbridge/command/int-tv", m[0])
		assert.JSONEq(t, `{"id":"1","command":"read"}`, m[1])
	case <-time.After(5 * time.Second):
		t.Fatal("command not delivered")
	}
}

func TestIntegration_RetainedStateSeenByLateSubscriber(t *testing.T) {
	bridge := connectBroker(t, "castbridge-int-state")
	topic := Topics{}.State("int-retained-tv")

	require.NoError(t, bridge.Publish(topic, []byte(`{"power":true}`), 1, true))
	t.Cleanup(func() { bridge.Publish(topic, nil, 1, true) })

	late := connectBroker(t, "castbridge-int-late")
	msgs := firstMessage(t, late, topic)

	select {
	case m := <-msgs:
		assert.JSONEq(t, `{"power":true}`, m[1])
	case <-time.After(5 * time.Second):
		t.Fatal("retained state not delivered")
	}
}

func TestIntegration_StatusTopic(t *testing.T) {
	watcher := connectBroker(t, "castbridge-int-watcher")

	cfg := testConfig()
	cfg.Broker.ClientID = "castbridge-int-status"
	bridge, err := Connect(cfg)
	require.NoError(t, err)
	// Let the online announcement replace any retained status from an
	// earlier run.
	time.Sleep(200 * time.Millisecond)

	msgs := firstMessage(t, watcher, Topics{}.Status(cfg.Broker.ClientID))

	want := []string{StatusOnline, StatusOffline}
	var got []string
	closed := false
	deadline := time.After(5 * time.Second)
	for len(got) < len(want) {
		select {
		case m := <-msgs:
			var s StatusPayload
			require.NoError(t, json.Unmarshal([]byte(m[1]), &s))
			got = append(got, s.Status)
			if !closed {
				closed = true
				require.NoError(t, bridge.Close())
			}
		case <-deadline:
			t.Fatalf("status sequence = %v, want %v", got, want)
		}
	}
	assert.Equal(t, want, got)
}
