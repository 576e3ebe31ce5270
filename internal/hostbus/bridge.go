package hostbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/castbridge/internal/accessory"
	"github.com/nerrad567/castbridge/internal/audit"
	"github.com/nerrad567/castbridge/internal/infrastructure/mqtt"
)

const (
	// commandTimeout bounds a single command, including every key of a
	// sequence and the inter-key delays.
	commandTimeout = 30 * time.Second

	// auditTimeout bounds the audit insert that follows each command.
	auditTimeout = 2 * time.Second

	// qos is used for every host bus message.
	qos = 1
)

// Accessory is the accessory surface driven by the bridge.
// It is implemented by *accessory.Accessory.
type Accessory interface {
	Name() string
	Snapshot() accessory.Snapshot
	OnUpdate(fn func(accessory.State))
	SetPower(ctx context.Context, on bool) error
	SetVolume(ctx context.Context, pct int) (int, error)
	StepVolume(ctx context.Context, step int) error
	ToggleMute(ctx context.Context) error
	SetChannel(ctx context.Context, channel string) error
	SetKey(ctx context.Context, name string) error
}

// MQTTClient is the subset of the MQTT client used by the bridge.
// This allows mocking in tests.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// AuditRecorder stores the outcome of every command. Implemented by
// audit.SQLiteRepository.
type AuditRecorder interface {
	Create(ctx context.Context, entry *audit.CommandLog) error
}

// Telemetry receives every published state and command outcome.
// Implemented by influxdb.Client.
type Telemetry interface {
	WriteAccessoryState(accessory string, powerOn bool, volume *int, secondary string)
	WriteCommand(accessory, command string, ok bool, duration time.Duration)
}

// Logger is the structured logger used by the bridge.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// BridgeOptions configures a Bridge.
type BridgeOptions struct {
	// Accessory is the accessory exposed on the bus. Required.
	Accessory Accessory

	// MQTT is the connected broker client. Required.
	MQTT MQTTClient

	// Version is reported in health messages.
	Version string

	// HealthInterval is how often health is published.
	// Default: 30 seconds.
	HealthInterval time.Duration

	// Audit records command outcomes. Optional.
	Audit AuditRecorder

	// Telemetry receives published states and command outcomes. Optional.
	Telemetry Telemetry

	// Logger is optional.
	Logger Logger
}

// Bridge connects one accessory to the MQTT host bus.
//
// It handles:
//   - Parsing host commands and dispatching them to the accessory
//   - Publishing accepted/completed/failed acknowledgements
//   - Publishing retained state when the snapshot changes
//   - Health reporting and graceful shutdown
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	acc       Accessory
	mqtt      MQTTClient
	health    *HealthReporter
	audit     AuditRecorder
	telemetry Telemetry
	name      string
	topics    mqtt.Topics

	// Last published state for change detection
	lastState   *StateMessage
	lastStateMu sync.Mutex

	// stateDirty is signalled by reconciler updates; the publish loop
	// drains it so observers never block the reconciler.
	stateDirty chan struct{}

	// Counters reported in health messages
	stats   Statistics
	statsMu sync.Mutex

	// Shutdown coordination
	ctx       context.Context
	ctxCancel context.CancelFunc
	wg        sync.WaitGroup
	stopOnce  sync.Once
	startOnce sync.Once
	stopped   bool
	stateMu   sync.Mutex

	logger   Logger
	loggerMu sync.RWMutex
}

// NewBridge creates a bridge. Call Start to subscribe and begin publishing.
//
// Returns:
//   - *Bridge: Ready to start
//   - error: ErrMissingDependency if the accessory or MQTT client is nil
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Accessory == nil || opts.MQTT == nil {
		return nil, ErrMissingDependency
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		acc:        opts.Accessory,
		mqtt:       opts.MQTT,
		audit:      opts.Audit,
		telemetry:  opts.Telemetry,
		name:       opts.Accessory.Name(),
		stateDirty: make(chan struct{}, 1),
		ctx:        ctx,
		ctxCancel:  cancel,
		logger:     opts.Logger,
	}
	b.health = NewHealthReporter(HealthReporterConfig{
		Accessory: b.name,
		Version:   opts.Version,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTT,
		Secondary: func() string { return b.acc.Snapshot().Secondary },
		Stats:     b.Statistics,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}
	return b, nil
}

// Start subscribes to the accessory's command topic, publishes the current
// state and starts health reporting.
//
// Parameters:
//   - ctx: Context for cancellation; cancelling it has the same effect as Stop
func (b *Bridge) Start(ctx context.Context) error {
	b.stateMu.Lock()
	stopped := b.stopped
	b.stateMu.Unlock()
	if stopped {
		return ErrStopped
	}

	var err error
	b.startOnce.Do(func() {
		topic := b.topics.Command(b.name)
		if err = b.mqtt.Subscribe(topic, qos, b.handleMessage); err != nil {
			err = fmt.Errorf("subscribing to %s: %w", topic, err)
			return
		}

		b.acc.OnUpdate(func(accessory.State) { b.markDirty() })

		b.wg.Add(1)
		go b.publishLoop(ctx)

		if pubErr := b.health.PublishStarting(); pubErr != nil {
			b.logError("failed to publish starting health", pubErr)
		}
		b.health.Start(ctx)

		b.logInfo("host bus started", "accessory", b.name, "topic", topic)
	})
	if err != nil {
		return err
	}

	b.publishState(true)
	return nil
}

// Stop unsubscribes, waits for in-flight commands and stops health
// reporting. Safe to call multiple times.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.stateMu.Lock()
		b.stopped = true
		b.stateMu.Unlock()

		if err := b.mqtt.Unsubscribe(b.topics.Command(b.name)); err != nil {
			b.logDebug("unsubscribe failed", "error", err)
		}

		b.ctxCancel()
		b.wg.Wait()
		b.health.Stop()
		b.logInfo("host bus stopped", "accessory", b.name)
	})
}

// handleMessage is the MQTT handler for the command topic.
func (b *Bridge) handleMessage(_ string, payload []byte) error {
	cmd, err := ParseCommand(payload)
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	if err != nil {
		b.countCommand(false)
		b.publishAck(NewAckError(b.name, cmd, err))
		b.record(cmd, time.Now(), err)
		return err
	}

	b.logDebug("received command",
		"command_id", cmd.ID,
		"command", cmd.Command,
		"source", cmd.Source)

	b.stateMu.Lock()
	if b.stopped {
		b.stateMu.Unlock()
		return ErrStopped
	}
	b.wg.Add(1)
	b.stateMu.Unlock()

	b.publishAck(NewAckMessage(b.name, cmd, AckAccepted, nil))
	go b.runCommand(cmd)
	return nil
}

// runCommand executes cmd and publishes its final acknowledgement.
func (b *Bridge) runCommand(cmd CommandMessage) {
	defer b.wg.Done()

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	start := time.Now()
	value, err := b.execute(ctx, cmd)
	b.record(cmd, start, err)
	if b.telemetry != nil {
		b.telemetry.WriteCommand(b.name, cmd.Command, err == nil, time.Since(start))
	}

	if err != nil {
		b.countCommand(false)
		b.logError("command failed", err)
		b.publishAck(NewAckError(b.name, cmd, err))
		return
	}

	b.countCommand(true)
	b.publishAck(NewAckMessage(b.name, cmd, AckCompleted, value))
	if cmd.Command != CommandRead {
		b.publishState(true)
	}
}

// execute dispatches one command to the accessory.
func (b *Bridge) execute(ctx context.Context, cmd CommandMessage) (any, error) {
	return Execute(ctx, b.acc, cmd)
}

// Execute runs one parsed command against acc. The returned value is the
// one carried in a completed ack: the confirmed level for set_volume, the
// state document for read and the requested value otherwise.
func Execute(ctx context.Context, acc Accessory, cmd CommandMessage) (any, error) {
	switch cmd.Command {
	case CommandSetPower:
		on, err := cmd.boolValue()
		if err != nil {
			return nil, err
		}
		return on, acc.SetPower(ctx, on)

	case CommandSetVolume:
		pct, err := cmd.intValue()
		if err != nil {
			return nil, err
		}
		got, err := acc.SetVolume(ctx, pct)
		if err != nil {
			return nil, err
		}
		return got, nil

	case CommandStepVolume:
		step, err := cmd.intValue()
		if err != nil {
			return nil, err
		}
		return step, acc.StepVolume(ctx, step)

	case CommandToggleMute:
		return nil, acc.ToggleMute(ctx)

	case CommandSetChannel:
		channel, err := cmd.stringValue()
		if err != nil {
			return nil, err
		}
		return channel, acc.SetChannel(ctx, channel)

	case CommandSetKey:
		key, err := cmd.stringValue()
		if err != nil {
			return nil, err
		}
		return key, acc.SetKey(ctx, key)

	case CommandRead:
		return NewStateMessage(acc.Snapshot()), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Command)
	}
}

// markDirty signals the publish loop without blocking.
func (b *Bridge) markDirty() {
	select {
	case b.stateDirty <- struct{}{}:
	default:
	}
}

// publishLoop publishes state after reconciler updates.
func (b *Bridge) publishLoop(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.ctx.Done():
			return
		case <-b.stateDirty:
			b.publishState(false)
		}
	}
}

// publishState publishes the retained state. Unless force is set, nothing
// is published when the state is unchanged since the last publish.
func (b *Bridge) publishState(force bool) {
	msg := NewStateMessage(b.acc.Snapshot())

	b.lastStateMu.Lock()
	if !force && b.lastState != nil && b.lastState.Equal(msg) {
		b.lastStateMu.Unlock()
		return
	}
	secondaryChanged := b.lastState != nil && b.lastState.Secondary != msg.Secondary
	b.lastState = &msg
	b.lastStateMu.Unlock()

	if secondaryChanged {
		b.health.Trigger()
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal state", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.State(b.name), payload, qos, true); err != nil {
		b.logError("failed to publish state", err)
		return
	}

	if b.telemetry != nil {
		b.telemetry.WriteAccessoryState(b.name, msg.Power, msg.Volume, msg.Secondary)
	}
}

// publishAck publishes a command acknowledgement.
func (b *Bridge) publishAck(ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("failed to marshal ack", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.Ack(b.name), payload, qos, false); err != nil {
		b.logError("failed to publish ack", err)
	}
}

// record writes the command outcome to the audit trail, if configured.
func (b *Bridge) record(cmd CommandMessage, start time.Time, cmdErr error) {
	if b.audit == nil {
		return
	}

	entry := &audit.CommandLog{
		Accessory: b.name,
		CommandID: cmd.ID,
		Command:   cmd.Command,
		Value:     string(cmd.Value),
		Source:    cmd.Source,
		Status:    string(AckCompleted),
		Duration:  time.Since(start),
	}
	if cmdErr != nil {
		entry.Status = string(AckFailed)
		entry.ErrorCode = ErrorCode(cmdErr)
		entry.Error = cmdErr.Error()
	}

	// The bridge context may already be cancelled during shutdown; the
	// outcome is still recorded.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(b.ctx), auditTimeout)
	defer cancel()
	if err := b.audit.Create(ctx, entry); err != nil {
		b.logError("failed to record command", err)
	}
}

func (b *Bridge) countCommand(ok bool) {
	b.statsMu.Lock()
	b.stats.CommandsReceived++
	if !ok {
		b.stats.CommandsFailed++
	}
	b.statsMu.Unlock()
}

// Statistics returns the command counters.
func (b *Bridge) Statistics() Statistics {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	return b.stats
}

// SetLogger sets the logger for the bridge and its health reporter.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	b.health.SetLogger(logger)
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, "accessory", b.name, "error", err)
	}
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
