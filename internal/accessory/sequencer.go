package accessory

import (
	"context"
	"sync/atomic"
	"time"
)

// DefaultSendDelay is the pause between keys of a multi-key sequence.
const DefaultSendDelay = 400 * time.Millisecond

// KeySender delivers one key to a device. *SimpleRemoteLink satisfies it.
type KeySender interface {
	SendKey(ctx context.Context, key string) error
}

// KeySequencer serialises key sequences to one device.
//
// At most one sequence runs at a time. A request arriving while the guard is
// held fails immediately with ErrBusy; requests are never queued, and a
// rejected caller has no guarantee it will ever run.
//
// Thread Safety: All methods are safe for concurrent use.
type KeySequencer struct {
	sender KeySender
	logger Logger

	// busy is the sequence guard.
	busy atomic.Bool
}

// NewKeySequencer creates a sequencer sending through sender.
func NewKeySequencer(sender KeySender, logger Logger) *KeySequencer {
	return &KeySequencer{
		sender: sender,
		logger: orNop(logger),
	}
}

// Busy reports whether a sequence currently holds the guard.
func (s *KeySequencer) Busy() bool {
	return s.busy.Load()
}

// acquire takes the guard without blocking.
func (s *KeySequencer) acquire() bool {
	return s.busy.CompareAndSwap(false, true)
}

func (s *KeySequencer) release() {
	s.busy.Store(false)
}

// Send executes seq strictly in order. Each key must be acknowledged before
// the delay elapses and the next key starts. The first failing key aborts the
// sequence and its error is returned; keys after it are never sent and the
// keys already sent are not rolled back.
//
// Returns:
//   - ErrBusy if another sequence is running
//   - ErrEmptySequence if seq has no keys
//   - the failing key's error (typically *TransportError)
//   - ctx.Err() if ctx ends during an inter-key delay
func (s *KeySequencer) Send(ctx context.Context, seq KeySequence) error {
	if seq.Len() == 0 {
		return ErrEmptySequence
	}
	if !s.acquire() {
		s.logger.Debug("rejecting key sequence while another is running", "keys", seq.Len())
		return ErrBusy
	}
	defer s.release()

	for i, key := range seq.keys {
		s.logger.Debug("sending sequence key", "key", key, "index", i, "total", seq.Len())
		if err := s.sender.SendKey(ctx, key); err != nil {
			s.logger.Error("could not send sequence key", "key", key, "index", i, "error", err)
			return err
		}
		if err := sleep(ctx, seq.delay); err != nil {
			return err
		}
	}

	s.logger.Debug("finished sending key sequence", "keys", seq.Len())
	return nil
}

// SendKey sends one key under the same guard as Send, without a delay.
func (s *KeySequencer) SendKey(ctx context.Context, key string) error {
	if !s.acquire() {
		s.logger.Debug("rejecting key while a sequence is running", "key", key)
		return ErrBusy
	}
	defer s.release()

	if err := s.sender.SendKey(ctx, key); err != nil {
		s.logger.Error("could not send key", "key", key, "error", err)
		return err
	}
	return nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
