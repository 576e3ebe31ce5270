package accessory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// connectedReceiver returns a SessionedLink already in the Connected state.
func connectedReceiver(t *testing.T, rx *mockReceiver) *SessionedLink {
	t.Helper()
	link := NewSessionedLink(rx, nil)
	require.NoError(t, link.Connect(context.Background(), "10.0.0.2:8009"))
	return link
}

func TestPowerController_OnViaPrimary(t *testing.T) {
	remote := newMockRemote()
	rx := newMockReceiver()
	pc := NewPowerController(NewSimpleRemoteLink(remote, nil), connectedReceiver(t, rx), "", nil)

	require.NoError(t, pc.SetPower(context.Background(), true))
	assert.Equal(t, []string{KeyPowerOn}, remote.keys())
	assert.Empty(t, rx.launched(), "fallback must not run when primary succeeds")
}

func TestPowerController_OnFallsBackToSecondary(t *testing.T) {
	remote := newMockRemote()
	remote.setSendError(KeyPowerOn, errNetwork)
	rx := newMockReceiver()
	pc := NewPowerController(NewSimpleRemoteLink(remote, nil), connectedReceiver(t, rx), "", nil)

	require.NoError(t, pc.SetPower(context.Background(), true),
		"fallback success hides the primary failure")
	assert.Equal(t, []string{DefaultReceiverApp}, rx.launched())
}

func TestPowerController_FallbackErrorIsAuthoritative(t *testing.T) {
	remote := newMockRemote()
	remote.setSendError(KeyPowerOn, errNetwork)
	rx := newMockReceiver()
	errLaunch := errors.New("launch refused")
	rx.launchErr = errLaunch
	pc := NewPowerController(NewSimpleRemoteLink(remote, nil), connectedReceiver(t, rx), "", nil)

	err := pc.SetPower(context.Background(), true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLaunchFailed)
	assert.ErrorIs(t, err, errLaunch)
	assert.NotErrorIs(t, err, errNetwork)
}

func TestPowerController_FallbackNotConnected(t *testing.T) {
	remote := newMockRemote()
	remote.setSendError(KeyPowerOn, errNetwork)
	rx := newMockReceiver()
	pc := NewPowerController(NewSimpleRemoteLink(remote, nil), NewSessionedLink(rx, nil), "", nil)

	err := pc.SetPower(context.Background(), true)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Empty(t, rx.launched())
}

func TestPowerController_OffNeverFallsBack(t *testing.T) {
	remote := newMockRemote()
	remote.setSendError(KeyPowerOff, errNetwork)
	rx := newMockReceiver()
	pc := NewPowerController(NewSimpleRemoteLink(remote, nil), connectedReceiver(t, rx), "", nil)

	err := pc.SetPower(context.Background(), false)
	assert.ErrorIs(t, err, errNetwork)
	assert.True(t, IsTransportError(err))
	assert.Empty(t, rx.launched())

	remote.clearSendError(KeyPowerOff)
	require.NoError(t, pc.SetPower(context.Background(), false))
	assert.Equal(t, []string{KeyPowerOff}, remote.keys())
}

func TestPowerController_CustomApp(t *testing.T) {
	remote := newMockRemote()
	remote.setFailAll(errNetwork)
	rx := newMockReceiver()
	pc := NewPowerController(NewSimpleRemoteLink(remote, nil), connectedReceiver(t, rx), "233637DE", nil)

	require.NoError(t, pc.SetPower(context.Background(), true))
	assert.Equal(t, []string{"233637DE"}, rx.launched())
}

func TestPowerController_Power(t *testing.T) {
	remote := newMockRemote()
	pc := NewPowerController(NewSimpleRemoteLink(remote, nil), NewSessionedLink(newMockReceiver(), nil), "", nil)

	assert.True(t, pc.Power(context.Background()))
	remote.setAlive(errNetwork)
	assert.False(t, pc.Power(context.Background()))
}
