package accessory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNetwork = errors.New("connection refused")

func TestSimpleRemoteLink_CheckAlive(t *testing.T) {
	remote := newMockRemote()
	link := NewSimpleRemoteLink(remote, nil)

	assert.True(t, link.CheckAlive(context.Background()))

	remote.setAlive(errNetwork)
	assert.False(t, link.CheckAlive(context.Background()), "transport errors must read as not alive")
}

func TestSimpleRemoteLink_CheckAlive_Idempotent(t *testing.T) {
	remote := newMockRemote()
	link := NewSimpleRemoteLink(remote, nil)
	ctx := context.Background()

	assert.Equal(t, link.CheckAlive(ctx), link.CheckAlive(ctx))

	remote.setAlive(errNetwork)
	assert.Equal(t, link.CheckAlive(ctx), link.CheckAlive(ctx))
}

func TestSimpleRemoteLink_SendKey(t *testing.T) {
	remote := newMockRemote()
	link := NewSimpleRemoteLink(remote, nil)

	require.NoError(t, link.SendKey(context.Background(), KeyMute))
	assert.Equal(t, []string{KeyMute}, remote.keys())
}

func TestSimpleRemoteLink_SendKeyTransportError(t *testing.T) {
	remote := newMockRemote()
	remote.setSendError(KeyPowerOn, errNetwork)
	link := NewSimpleRemoteLink(remote, nil)

	err := link.PowerOn(context.Background())
	require.Error(t, err)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, RolePrimary, te.Device)
	assert.Equal(t, KeyPowerOn, te.Key)
	assert.ErrorIs(t, err, errNetwork, "cause must be attached")
	assert.True(t, IsTransportError(err))
}

func TestSessionedLink_StartsDisconnected(t *testing.T) {
	link := NewSessionedLink(newMockReceiver(), nil)
	assert.Equal(t, Disconnected, link.State())
	assert.False(t, link.IsConnected())
}

func TestSessionedLink_ConnectSuccess(t *testing.T) {
	rx := newMockReceiver()
	link := NewSessionedLink(rx, nil)

	require.NoError(t, link.Connect(context.Background(), "10.0.0.2:8009"))
	assert.Equal(t, Connected, link.State())

	// Connecting again while connected is a no-op.
	require.NoError(t, link.Connect(context.Background(), "10.0.0.2:8009"))
	connects, _, _, _ := rx.calls()
	assert.Equal(t, 1, connects)
}

func TestSessionedLink_ConnectFailure(t *testing.T) {
	rx := newMockReceiver()
	rx.connectErr = errNetwork
	link := NewSessionedLink(rx, nil)

	err := link.Connect(context.Background(), "10.0.0.2:8009")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectFailed)
	assert.ErrorIs(t, err, errNetwork)
	assert.Equal(t, Disconnected, link.State())

	_, _, closes, _ := rx.calls()
	assert.Equal(t, 1, closes, "transport must be closed on connect error")
}

func TestSessionedLink_ConnectWhileConnecting(t *testing.T) {
	link := NewSessionedLink(newMockReceiver(), nil)
	link.setState(Connecting)

	err := link.Connect(context.Background(), "10.0.0.2:8009")
	assert.ErrorIs(t, err, ErrConnectInProgress)
}

func TestSessionedLink_TransportErrorDisconnects(t *testing.T) {
	rx := newMockReceiver()
	link := NewSessionedLink(rx, nil)
	require.NoError(t, link.Connect(context.Background(), "10.0.0.2:8009"))

	rx.simulateError(errors.New("socket closed"))

	assert.Equal(t, Disconnected, link.State())
	_, _, closes, _ := rx.calls()
	assert.Equal(t, 1, closes)
}

func TestSessionedLink_NotConnectedFailsFast(t *testing.T) {
	rx := newMockReceiver()
	link := NewSessionedLink(rx, nil)
	ctx := context.Background()

	for _, state := range []ConnectionState{Disconnected, Connecting} {
		t.Run(state.String(), func(t *testing.T) {
			link.setState(state)

			_, err := link.Volume(ctx)
			assert.ErrorIs(t, err, ErrNotConnected)

			_, err = link.SetVolume(ctx, 40)
			assert.ErrorIs(t, err, ErrNotConnected)

			assert.ErrorIs(t, link.Launch(ctx, DefaultReceiverApp), ErrNotConnected)
		})
	}

	_, volumes, _, setLevels := rx.calls()
	assert.Zero(t, volumes, "transport must not be called")
	assert.Empty(t, setLevels, "transport must not be called")
	assert.Empty(t, rx.launched(), "transport must not be called")
}

func TestSessionedLink_Volume(t *testing.T) {
	rx := newMockReceiver()
	rx.level = 0.37
	link := NewSessionedLink(rx, nil)
	require.NoError(t, link.Connect(context.Background(), "rx"))

	pct, err := link.Volume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 37, pct)
}

func TestSessionedLink_SetVolumeReturnsConfirmedLevel(t *testing.T) {
	rx := newMockReceiver()
	rx.quantum = 0.02 // device rounds up to its own step size
	link := NewSessionedLink(rx, nil)
	require.NoError(t, link.Connect(context.Background(), "rx"))

	got, err := link.SetVolume(context.Background(), 40)
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	_, _, _, setLevels := rx.calls()
	assert.InDelta(t, 0.40, setLevels[0], 1e-9)
}

func TestSessionedLink_SetVolumeOutOfRange(t *testing.T) {
	rx := newMockReceiver()
	link := NewSessionedLink(rx, nil)
	require.NoError(t, link.Connect(context.Background(), "rx"))

	for _, pct := range []int{-1, 101} {
		_, err := link.SetVolume(context.Background(), pct)
		assert.ErrorIs(t, err, ErrInvalidVolume)
		assert.ErrorIs(t, err, ErrValidation)
	}
}

func TestSessionedLink_VolumeTransportError(t *testing.T) {
	rx := newMockReceiver()
	link := NewSessionedLink(rx, nil)
	require.NoError(t, link.Connect(context.Background(), "rx"))
	rx.volumeErr = errNetwork

	_, err := link.Volume(context.Background())
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, RoleSecondary, te.Device)
	assert.Equal(t, "get_volume", te.Op)
}

func TestSessionedLink_LaunchError(t *testing.T) {
	rx := newMockReceiver()
	rx.launchErr = errNetwork
	link := NewSessionedLink(rx, nil)
	require.NoError(t, link.Connect(context.Background(), "rx"))

	err := link.Launch(context.Background(), DefaultReceiverApp)
	assert.ErrorIs(t, err, ErrLaunchFailed)
	assert.ErrorIs(t, err, errNetwork)
}

func TestLevelToPercent(t *testing.T) {
	tests := []struct {
		level float64
		want  int
	}{
		{0, 0},
		{0.004, 0},
		{0.005, 1},
		{0.5, 50},
		{1, 100},
		{1.2, 100},
		{-0.1, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, levelToPercent(tt.level), "level %v", tt.level)
	}
}

func TestConnectionState_String(t *testing.T) {
	assert.Equal(t, "disconnected", Disconnected.String())
	assert.Equal(t, "connecting", Connecting.String())
	assert.Equal(t, "connected", Connected.String())
	assert.Equal(t, "unknown(7)", ConnectionState(7).String())
}
