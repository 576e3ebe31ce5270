package accessory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelSequence(t *testing.T) {
	tests := []struct {
		channel string
		want    []string
	}{
		{"42", []string{"KEY_4", "KEY_2", KeyEnter}},
		{"1", []string{"KEY_1", KeyEnter}},
		{"9999", []string{"KEY_9", "KEY_9", "KEY_9", "KEY_9", KeyEnter}},
		{" 7 ", []string{"KEY_7", KeyEnter}},
		{"007", []string{"KEY_7", KeyEnter}},
	}

	for _, tt := range tests {
		t.Run(tt.channel, func(t *testing.T) {
			seq, err := ChannelSequence(tt.channel, 10*time.Millisecond)
			require.NoError(t, err)
			assert.Equal(t, tt.want, seq.Keys())
			assert.Equal(t, 10*time.Millisecond, seq.Delay())
		})
	}
}

func TestChannelSequence_Invalid(t *testing.T) {
	for _, ch := range []string{"", "0", "10000", "-5", "abc", "4a", "1.5"} {
		t.Run(ch, func(t *testing.T) {
			_, err := ChannelSequence(ch, 0)
			assert.ErrorIs(t, err, ErrInvalidChannel)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestVolumeStepSequence(t *testing.T) {
	seq, err := VolumeStepSequence(3, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{KeyVolumeUp, KeyVolumeUp, KeyVolumeUp}, seq.Keys())

	seq, err = VolumeStepSequence(-2, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{KeyVolDown, KeyVolDown}, seq.Keys())
}

func TestVolumeStepSequence_ZeroIsMute(t *testing.T) {
	seq, err := VolumeStepSequence(0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{KeyMute}, seq.Keys())
}

func TestVolumeStepSequence_OutOfRange(t *testing.T) {
	for _, step := range []int{MinVolumeStep - 1, MaxVolumeStep + 1} {
		_, err := VolumeStepSequence(step, 0)
		assert.ErrorIs(t, err, ErrInvalidVolumeStep)
	}
}

func TestNamedKey(t *testing.T) {
	key, err := NamedKey("menu")
	require.NoError(t, err)
	assert.Equal(t, "KEY_MENU", key)

	key, err = NamedKey("key_source")
	require.NoError(t, err)
	assert.Equal(t, "KEY_SOURCE", key)

	_, err = NamedKey("  ")
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = NamedKey("KEY_")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestKeySequence_IsImmutable(t *testing.T) {
	keys := []string{"KEY_1", KeyEnter}
	seq := NewKeySequence(0, keys...)
	keys[0] = "KEY_9"

	got := seq.Keys()
	got[1] = "KEY_EXIT"

	assert.Equal(t, []string{"KEY_1", KeyEnter}, seq.Keys())
}
