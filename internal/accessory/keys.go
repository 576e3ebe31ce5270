package accessory

import (
	"strconv"
	"strings"
	"time"
)

// Remote-control key identifiers understood by the primary device.
const (
	KeyPowerOn  = "KEY_POWERON"
	KeyPowerOff = "KEY_POWEROFF"
	KeyMute     = "KEY_MUTE"
	KeyVolumeUp = "KEY_VOLUP"
	KeyVolDown  = "KEY_VOLDOWN"
	KeyEnter    = "KEY_ENTER"

	// keyPrefix is prepended to host-supplied key names ("MENU" → "KEY_MENU").
	keyPrefix = "KEY_"
)

// Channel and volume-step bounds.
const (
	MinChannel    = 1
	MaxChannel    = 9999
	MinVolumeStep = -10
	MaxVolumeStep = 10
)

// KeySequence is an ordered list of keys sent with a fixed delay between them.
// It is immutable once built.
type KeySequence struct {
	keys  []string
	delay time.Duration
}

// NewKeySequence builds a sequence from keys. The slice is copied.
func NewKeySequence(delay time.Duration, keys ...string) KeySequence {
	k := make([]string, len(keys))
	copy(k, keys)
	return KeySequence{keys: k, delay: delay}
}

// Keys returns a copy of the keys in send order.
func (s KeySequence) Keys() []string {
	k := make([]string, len(s.keys))
	copy(k, s.keys)
	return k
}

// Delay returns the pause inserted after each successfully sent key.
func (s KeySequence) Delay() time.Duration {
	return s.delay
}

// Len returns the number of keys.
func (s KeySequence) Len() int {
	return len(s.keys)
}

// ParseChannel validates a channel string and returns its integer value.
func ParseChannel(channel string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(channel))
	if err != nil || n < MinChannel || n > MaxChannel {
		return 0, ErrInvalidChannel
	}
	return n, nil
}

// ChannelSequence builds the digit-by-digit entry for channel followed by
// KEY_ENTER. "42" becomes KEY_4, KEY_2, KEY_ENTER.
func ChannelSequence(channel string, delay time.Duration) (KeySequence, error) {
	n, err := ParseChannel(channel)
	if err != nil {
		return KeySequence{}, err
	}

	digits := strconv.Itoa(n)
	keys := make([]string, 0, len(digits)+1)
	for _, d := range digits {
		keys = append(keys, keyPrefix+string(d))
	}
	keys = append(keys, KeyEnter)

	return KeySequence{keys: keys, delay: delay}, nil
}

// VolumeStepSequence builds |step| repetitions of the volume up or down key.
// A zero step toggles mute instead.
func VolumeStepSequence(step int, delay time.Duration) (KeySequence, error) {
	if step < MinVolumeStep || step > MaxVolumeStep {
		return KeySequence{}, ErrInvalidVolumeStep
	}
	if step == 0 {
		return KeySequence{keys: []string{KeyMute}, delay: delay}, nil
	}

	key := KeyVolumeUp
	if step < 0 {
		key = KeyVolDown
		step = -step
	}

	keys := make([]string, step)
	for i := range keys {
		keys[i] = key
	}
	return KeySequence{keys: keys, delay: delay}, nil
}

// NamedKey converts a host key name such as "menu" or "KEY_MENU" into the
// device key identifier "KEY_MENU".
func NamedKey(name string) (string, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	name = strings.TrimPrefix(name, keyPrefix)
	if name == "" {
		return "", ErrInvalidKey
	}
	return keyPrefix + name, nil
}
