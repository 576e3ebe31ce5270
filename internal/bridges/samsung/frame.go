package samsung

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
)

// Application strings carried in frame headers.
const (
	// authAppString identifies the controller in authentication frames.
	authAppString = "iphone.iapp.samsung"

	// keyAppString identifies the controller in key frames.
	keyAppString = "iphone..iapp.samsung"
)

// Payload markers.
const (
	authMarker byte = 0x64
	keyMarker  byte = 0x00

	// authStatusWaiting is the first payload byte while the TV shows the
	// "allow remote" prompt.
	authStatusWaiting byte = 0x0a

	// authStatusTimeout is the first payload byte when the prompt expired.
	authStatusTimeout byte = 0x65
)

// maxFieldLen bounds any length field read from the TV.
const maxFieldLen = 4096

// Frame is one protocol frame.
type Frame struct {
	App     string
	Payload []byte
}

// Encode returns the wire representation of f.
func (f Frame) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteByte(0x00)
	writeField(&buf, []byte(f.App))
	writeField(&buf, f.Payload)
	return buf.Bytes()
}

// ReadFrame reads one frame from r.
func ReadFrame(r io.Reader) (Frame, error) {
	var lead [1]byte
	if _, err := io.ReadFull(r, lead[:]); err != nil {
		return Frame{}, fmt.Errorf("read frame type: %w", err)
	}

	app, err := readField(r)
	if err != nil {
		return Frame{}, fmt.Errorf("read app string: %w", err)
	}
	payload, err := readField(r)
	if err != nil {
		return Frame{}, fmt.Errorf("read payload: %w", err)
	}

	return Frame{App: string(app), Payload: payload}, nil
}

// AuthFrame builds the controller announcement. ip and mac identify the
// controller, name is shown in the TV's "allow remote" prompt.
func AuthFrame(ip, mac, name string) Frame {
	var payload bytes.Buffer
	payload.WriteByte(authMarker)
	payload.WriteByte(0x00)
	writeB64(&payload, ip)
	writeB64(&payload, mac)
	writeB64(&payload, name)
	return Frame{App: authAppString, Payload: payload.Bytes()}
}

// KeyFrame builds a key press frame for a key code such as "KEY_MUTE".
func KeyFrame(key string) Frame {
	var payload bytes.Buffer
	payload.Write([]byte{keyMarker, 0x00, 0x00})
	writeB64(&payload, key)
	return Frame{App: keyAppString, Payload: payload.Bytes()}
}

// authResult interprets the TV's answer to an authentication frame.
func authResult(payload []byte) error {
	switch {
	case bytes.Equal(payload, []byte{authMarker, 0x00, 0x01, 0x00}):
		return nil
	case bytes.Equal(payload, []byte{authMarker, 0x00, 0x00, 0x00}):
		return ErrAccessDenied
	case len(payload) > 0 && payload[0] == authStatusWaiting:
		return ErrAuthPending
	case len(payload) > 0 && payload[0] == authStatusTimeout:
		return ErrAuthTimeout
	default:
		return fmt.Errorf("%w: unexpected auth response % x", ErrInvalidFrame, payload)
	}
}

func writeField(buf *bytes.Buffer, b []byte) {
	var n [2]byte
	binary.LittleEndian.PutUint16(n[:], uint16(len(b)))
	buf.Write(n[:])
	buf.Write(b)
}

func writeB64(buf *bytes.Buffer, s string) {
	writeField(buf, []byte(base64.StdEncoding.EncodeToString([]byte(s))))
}

func readField(r io.Reader) ([]byte, error) {
	var n [2]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return nil, err
	}
	size := int(binary.LittleEndian.Uint16(n[:]))
	if size > maxFieldLen {
		return nil, fmt.Errorf("%w: field length %d", ErrInvalidFrame, size)
	}
	b := make([]byte, size)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
