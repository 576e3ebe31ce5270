package accessory

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Default values for characteristics that cannot be read back from devices.
const (
	// DefaultChannel is reported until a channel has been set successfully.
	// The device offers no way to read its channel, so changes made with the
	// physical remote are not reflected.
	DefaultChannel = "1"

	// DefaultKey is reported until a key has been sent successfully.
	DefaultKey = "TV"
)

// Config holds the accessory settings.
type Config struct {
	// Name is the accessory display name.
	Name string

	// ReceiverAddress is the secondary device's host:port.
	ReceiverAddress string

	// ReceiverApp is launched on the secondary as the power-on fallback.
	// Default: DefaultReceiverApp.
	ReceiverApp string

	// SendDelay is the pause between keys of a sequence.
	// Default: DefaultSendDelay.
	SendDelay time.Duration

	// PollInterval is the reconciliation period and tick deadline.
	// Default: DefaultPollInterval.
	PollInterval time.Duration
}

// Snapshot is the full host-visible state of the accessory.
type Snapshot struct {
	Name      string `json:"name"`
	State            // power and volume, from CachedState
	Channel   string `json:"channel"`
	Key       string `json:"key"`
	Secondary string `json:"secondary"`
}

// Accessory is the unified power/volume/channel/key surface over the primary
// and secondary devices. It is the composition root of the core: reads are
// served from cached state, writes go through the PowerController, the
// KeySequencer or the secondary link.
//
// Thread Safety: All methods are safe for concurrent use.
type Accessory struct {
	cfg Config

	remote     *SimpleRemoteLink
	receiver   *SessionedLink
	power      *PowerController
	sequencer  *KeySequencer
	reconciler *Reconciler
	logger     Logger

	// Last successfully set values (not readable from the device).
	channel string
	key     string
	valueMu sync.RWMutex

	wg sync.WaitGroup
}

// New builds an accessory over the two device transports.
// Call Start to connect the secondary and begin polling.
func New(cfg Config, remote RemoteTransport, receiver ReceiverTransport, logger Logger) *Accessory {
	logger = orNop(logger)
	if cfg.SendDelay <= 0 {
		cfg.SendDelay = DefaultSendDelay
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ReceiverApp == "" {
		cfg.ReceiverApp = DefaultReceiverApp
	}

	remoteLink := NewSimpleRemoteLink(remote, logger)
	receiverLink := NewSessionedLink(receiver, logger)

	return &Accessory{
		cfg:       cfg,
		remote:    remoteLink,
		receiver:  receiverLink,
		power:     NewPowerController(remoteLink, receiverLink, cfg.ReceiverApp, logger),
		sequencer: NewKeySequencer(remoteLink, logger),
		reconciler: NewReconciler(ReconcilerConfig{
			Primary:   remoteLink,
			Secondary: receiverLink,
			Cache:     NewCachedState(State{}),
			Interval:  cfg.PollInterval,
			Logger:    logger,
		}),
		logger:  logger,
		channel: DefaultChannel,
		key:     DefaultKey,
	}
}

// Name returns the accessory name.
func (a *Accessory) Name() string {
	return a.cfg.Name
}

// Start connects the secondary device in the background and starts the
// reconciliation loop. Polling does not wait for the connection; volume is
// simply not queried until the secondary is connected.
func (a *Accessory) Start(ctx context.Context) {
	if a.cfg.ReceiverAddress != "" {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.receiver.Connect(ctx, a.cfg.ReceiverAddress); err != nil {
				a.logger.Error("could not connect to secondary device",
					"address", a.cfg.ReceiverAddress,
					"error", err)
			}
		}()
	}
	a.reconciler.Start(ctx)
}

// Connect connects the secondary device synchronously.
func (a *Accessory) Connect(ctx context.Context) error {
	return a.receiver.Connect(ctx, a.cfg.ReceiverAddress)
}

// Stop ends polling and closes the secondary session.
func (a *Accessory) Stop() {
	a.reconciler.Stop()
	a.wg.Wait()
	if err := a.receiver.Close(); err != nil {
		a.logger.Debug("error closing secondary device", "error", err)
	}
}

// OnUpdate registers fn to receive every state snapshot stored by the
// reconciliation loop.
func (a *Accessory) OnUpdate(fn func(State)) {
	a.reconciler.OnUpdate(fn)
}

// Refresh runs one reconciliation tick immediately.
func (a *Accessory) Refresh(ctx context.Context) error {
	return a.reconciler.Tick(ctx)
}

// SecondaryState returns the secondary's connection state.
func (a *Accessory) SecondaryState() ConnectionState {
	return a.receiver.State()
}

// Snapshot returns the complete host-visible state.
func (a *Accessory) Snapshot() Snapshot {
	a.valueMu.RLock()
	defer a.valueMu.RUnlock()
	return Snapshot{
		Name:      a.cfg.Name,
		State:     a.reconciler.Cache().Load(),
		Channel:   a.channel,
		Key:       a.key,
		Secondary: a.receiver.State().String(),
	}
}

// Power returns the cached power state. It never fails.
func (a *Accessory) Power() bool {
	return a.reconciler.Cache().Load().PowerOn
}

// CheckPower queries the primary device directly. It never fails.
func (a *Accessory) CheckPower(ctx context.Context) bool {
	return a.power.Power(ctx)
}

// SetPower switches the accessory on or off (see PowerController.SetPower).
func (a *Accessory) SetPower(ctx context.Context, on bool) error {
	a.logger.Debug("set power", "on", on)
	return a.power.SetPower(ctx, on)
}

// Volume returns the cached volume percentage, or ErrNotConnected while the
// secondary device is not connected.
func (a *Accessory) Volume() (int, error) {
	if !a.receiver.IsConnected() {
		return 0, ErrNotConnected
	}
	return a.reconciler.Cache().Load().VolumePercent, nil
}

// SetVolume sets the absolute volume on the secondary and returns the level
// the device confirmed.
func (a *Accessory) SetVolume(ctx context.Context, pct int) (int, error) {
	a.logger.Debug("set volume", "volume", pct)
	got, err := a.receiver.SetVolume(ctx, pct)
	if err != nil {
		a.logger.Error("could not set volume", "volume", pct, "error", err)
		return 0, err
	}
	return got, nil
}

// StepVolume nudges the primary's volume by step key presses. A zero step
// toggles mute.
func (a *Accessory) StepVolume(ctx context.Context, step int) error {
	seq, err := VolumeStepSequence(step, a.cfg.SendDelay)
	if err != nil {
		a.logger.Error("invalid volume step", "step", step, "error", err)
		return err
	}

	a.logger.Debug("changing volume", "step", step)
	return a.sequencer.Send(ctx, seq)
}

// ToggleMute sends the mute key under the sequence guard.
func (a *Accessory) ToggleMute(ctx context.Context) error {
	return a.sequencer.SendKey(ctx, KeyMute)
}

// Channel returns the last successfully set channel.
func (a *Accessory) Channel() string {
	a.valueMu.RLock()
	defer a.valueMu.RUnlock()
	return a.channel
}

// SetChannel enters channel digit by digit followed by enter. The channel is
// validated before the guard is touched or any key is sent.
func (a *Accessory) SetChannel(ctx context.Context, channel string) error {
	n, err := ParseChannel(channel)
	if err != nil {
		a.logger.Error("invalid channel", "channel", channel)
		return err
	}
	// Stored in canonical form: " 042" reads back as "42".
	canonical := strconv.Itoa(n)
	seq, err := ChannelSequence(canonical, a.cfg.SendDelay)
	if err != nil {
		return err
	}

	a.logger.Debug("sending channel", "channel", canonical)
	if err := a.sequencer.Send(ctx, seq); err != nil {
		return err
	}

	a.valueMu.Lock()
	a.channel = canonical
	a.valueMu.Unlock()
	a.logger.Debug("finished sending channel", "channel", canonical)
	return nil
}

// Key returns the last successfully sent key name.
func (a *Accessory) Key() string {
	a.valueMu.RLock()
	defer a.valueMu.RUnlock()
	return a.key
}

// SetKey sends a named remote key such as "MENU" under the sequence guard.
func (a *Accessory) SetKey(ctx context.Context, name string) error {
	key, err := NamedKey(name)
	if err != nil {
		return err
	}

	a.logger.Debug("sending key", "key", name)
	if err := a.sequencer.SendKey(ctx, key); err != nil {
		return err
	}

	a.valueMu.Lock()
	a.key = name
	a.valueMu.Unlock()
	return nil
}

// Characteristics returns the descriptors of the host-visible values.
func (a *Accessory) Characteristics() []DeviceCharacteristic {
	return Characteristics()
}
