package hostbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nerrad567/castbridge/internal/accessory"
)

// Command names accepted on the command topic.
const (
	CommandSetPower   = "set_power"
	CommandSetVolume  = "set_volume"
	CommandStepVolume = "step_volume"
	CommandToggleMute = "toggle_mute"
	CommandSetChannel = "set_channel"
	CommandSetKey     = "set_key"
	CommandRead       = "read"
)

// CommandMessage is sent from the host to execute an accessory command.
// Topic: castbridge/command/{accessory}
type CommandMessage struct {
	// ID correlates the command with its acknowledgements. A UUID is
	// assigned when the host leaves it empty.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, RFC 3339).
	Timestamp time.Time `json:"timestamp"`

	// Command is one of the Command* names.
	Command string `json:"command"`

	// Value is the command argument. Its JSON type depends on Command:
	//   set_power: bool, set_volume/step_volume: number,
	//   set_channel: string or number, set_key: string.
	Value json.RawMessage `json:"value,omitempty"`

	// Source indicates where the command originated (e.g. "homekit", "cli").
	Source string `json:"source,omitempty"`
}

// AckStatus represents the acknowledgement status of a command.
type AckStatus string

const (
	// AckAccepted indicates the command was parsed and handed to the accessory.
	AckAccepted AckStatus = "accepted"

	// AckCompleted indicates the accessory finished the command successfully.
	AckCompleted AckStatus = "completed"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"
)

// AckMessage acknowledges a command.
// Topic: castbridge/ack/{accessory}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	Accessory string    `json:"accessory"`
	Command   string    `json:"command,omitempty"`
	Status    AckStatus `json:"status"`

	// Value is the result of a completed command, e.g. the confirmed volume
	// of set_volume or the snapshot of read.
	Value any `json:"value,omitempty"`

	// Error contains details if status is "failed".
	Error *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for command failures.
const (
	ErrCodeValidation        = "VALIDATION"
	ErrCodeBusy              = "BUSY"
	ErrCodeNotConnected      = "NOT_CONNECTED"
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
)

// ErrorCode maps an error returned by the accessory or by command parsing to
// an ack error code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidPayload), errors.Is(err, ErrUnknownCommand):
		return ErrCodeInvalidCommand
	case errors.Is(err, ErrInvalidValue), errors.Is(err, accessory.ErrValidation):
		return ErrCodeValidation
	case errors.Is(err, accessory.ErrBusy):
		return ErrCodeBusy
	case errors.Is(err, accessory.ErrNotConnected), errors.Is(err, accessory.ErrConnectInProgress):
		return ErrCodeNotConnected
	case errors.Is(err, accessory.ErrConnectFailed),
		errors.Is(err, accessory.ErrLaunchFailed),
		accessory.IsTransportError(err):
		return ErrCodeDeviceUnreachable
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	default:
		return ErrCodeBridgeError
	}
}

// StateMessage is the retained accessory state.
// Topic: castbridge/state/{accessory}
// QoS: 1, Retained: Yes
type StateMessage struct {
	Accessory string    `json:"accessory"`
	Timestamp time.Time `json:"timestamp"`
	Power     bool      `json:"power"`

	// Volume is omitted while the secondary device is not connected.
	Volume *int `json:"volume,omitempty"`

	Channel   string `json:"channel"`
	Key       string `json:"key"`
	Secondary string `json:"secondary"`
}

// NewStateMessage builds the state message for a snapshot.
func NewStateMessage(snap accessory.Snapshot) StateMessage {
	msg := StateMessage{
		Accessory: snap.Name,
		Timestamp: time.Now().UTC(),
		Power:     snap.PowerOn,
		Channel:   snap.Channel,
		Key:       snap.Key,
		Secondary: snap.Secondary,
	}
	if snap.Secondary == accessory.Connected.String() {
		v := snap.VolumePercent
		msg.Volume = &v
	}
	return msg
}

// Equal reports whether m and o differ at most in timestamp.
func (m StateMessage) Equal(o StateMessage) bool {
	if m.Accessory != o.Accessory || m.Power != o.Power ||
		m.Channel != o.Channel || m.Key != o.Key || m.Secondary != o.Secondary {
		return false
	}
	if (m.Volume == nil) != (o.Volume == nil) {
		return false
	}
	return m.Volume == nil || *m.Volume == *o.Volume
}

// NewAckMessage creates an acknowledgement for a command.
func NewAckMessage(accessoryName string, cmd CommandMessage, status AckStatus, value any) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		Accessory: accessoryName,
		Command:   cmd.Command,
		Status:    status,
		Value:     value,
	}
}

// NewAckError creates a failed acknowledgement from err.
func NewAckError(accessoryName string, cmd CommandMessage, err error) AckMessage {
	ack := NewAckMessage(accessoryName, cmd, AckFailed, nil)
	ack.Error = &AckError{
		Code:    ErrorCode(err),
		Message: err.Error(),
	}
	return ack
}

// ParseCommand decodes a command payload. Unknown commands are reported
// here, before any ack other than "failed" is sent.
func ParseCommand(payload []byte) (CommandMessage, error) {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return cmd, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	switch cmd.Command {
	case CommandSetPower, CommandSetVolume, CommandStepVolume, CommandToggleMute,
		CommandSetChannel, CommandSetKey, CommandRead:
		return cmd, nil
	case "":
		return cmd, fmt.Errorf("%w: command field is empty", ErrInvalidPayload)
	default:
		return cmd, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Command)
	}
}

// boolValue decodes a boolean command value.
func (m CommandMessage) boolValue() (bool, error) {
	var v bool
	if err := json.Unmarshal(m.Value, &v); err != nil {
		return false, fmt.Errorf("%w: %s expects a boolean", ErrInvalidValue, m.Command)
	}
	return v, nil
}

// intValue decodes an integral command value.
func (m CommandMessage) intValue() (int, error) {
	var v int
	if err := json.Unmarshal(m.Value, &v); err != nil {
		return 0, fmt.Errorf("%w: %s expects an integer", ErrInvalidValue, m.Command)
	}
	return v, nil
}

// stringValue decodes a string command value. Numbers are accepted and
// formatted in decimal so a host may send channels either way.
func (m CommandMessage) stringValue() (string, error) {
	var s string
	if err := json.Unmarshal(m.Value, &s); err == nil {
		return s, nil
	}
	var n int
	if err := json.Unmarshal(m.Value, &n); err == nil {
		return strconv.Itoa(n), nil
	}
	return "", fmt.Errorf("%w: %s expects a string", ErrInvalidValue, m.Command)
}
