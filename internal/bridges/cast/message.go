package cast

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Namespaces used by the sender.
const (
	NamespaceConnection = "urn:x-cast:com.google.cast.tp.connection"
	NamespaceHeartbeat  = "urn:x-cast:com.google.cast.tp.heartbeat"
	NamespaceReceiver   = "urn:x-cast:com.google.cast.receiver"
)

// Default endpoint identifiers of the platform channel.
const (
	DefaultSourceID      = "sender-0"
	DefaultDestinationID = "receiver-0"
)

// PayloadType selects which payload field of a CastMessage is set.
type PayloadType int32

// Payload types.
const (
	PayloadString PayloadType = 0
	PayloadBinary PayloadType = 1
)

// CastMessage field numbers (cast_channel.proto).
const (
	fieldProtocolVersion protowire.Number = 1
	fieldSourceID        protowire.Number = 2
	fieldDestinationID   protowire.Number = 3
	fieldNamespace       protowire.Number = 4
	fieldPayloadType     protowire.Number = 5
	fieldPayloadUTF8     protowire.Number = 6
	fieldPayloadBinary   protowire.Number = 7
)

// protocolVersion is CASTV2_1_0, the only version in use.
const protocolVersion = 0

// CastMessage is the protobuf envelope of every Cast v2 message.
type CastMessage struct {
	SourceID      string
	DestinationID string
	Namespace     string
	PayloadType   PayloadType
	PayloadUTF8   string
	PayloadBinary []byte
}

// NewMessage builds a string-payload message on the platform channel.
func NewMessage(namespace, payload string) *CastMessage {
	return &CastMessage{
		SourceID:      DefaultSourceID,
		DestinationID: DefaultDestinationID,
		Namespace:     namespace,
		PayloadType:   PayloadString,
		PayloadUTF8:   payload,
	}
}

// Marshal encodes m in protobuf wire format.
func (m *CastMessage) Marshal() []byte {
	b := make([]byte, 0, 64+len(m.Namespace)+len(m.PayloadUTF8)+len(m.PayloadBinary))

	b = protowire.AppendTag(b, fieldProtocolVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, protocolVersion)
	b = protowire.AppendTag(b, fieldSourceID, protowire.BytesType)
	b = protowire.AppendString(b, m.SourceID)
	b = protowire.AppendTag(b, fieldDestinationID, protowire.BytesType)
	b = protowire.AppendString(b, m.DestinationID)
	b = protowire.AppendTag(b, fieldNamespace, protowire.BytesType)
	b = protowire.AppendString(b, m.Namespace)
	b = protowire.AppendTag(b, fieldPayloadType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.PayloadType))

	if m.PayloadType == PayloadBinary {
		b = protowire.AppendTag(b, fieldPayloadBinary, protowire.BytesType)
		b = protowire.AppendBytes(b, m.PayloadBinary)
	} else {
		b = protowire.AppendTag(b, fieldPayloadUTF8, protowire.BytesType)
		b = protowire.AppendString(b, m.PayloadUTF8)
	}
	return b
}

// UnmarshalMessage decodes a CastMessage. Unknown fields are skipped.
func UnmarshalMessage(b []byte) (*CastMessage, error) {
	m := &CastMessage{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case typ == protowire.BytesType && isStringField(num):
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %w", ErrInvalidMessage, num, protowire.ParseError(n))
			}
			m.setBytes(num, v)
			b = b[n:]

		case typ == protowire.VarintType && num == fieldPayloadType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %w", ErrInvalidMessage, num, protowire.ParseError(n))
			}
			m.PayloadType = PayloadType(v)
			b = b[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %w", ErrInvalidMessage, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	if m.Namespace == "" {
		return nil, fmt.Errorf("%w: missing namespace", ErrInvalidMessage)
	}
	return m, nil
}

func isStringField(num protowire.Number) bool {
	switch num {
	case fieldSourceID, fieldDestinationID, fieldNamespace, fieldPayloadUTF8, fieldPayloadBinary:
		return true
	}
	return false
}

func (m *CastMessage) setBytes(num protowire.Number, v []byte) {
	switch num {
	case fieldSourceID:
		m.SourceID = string(v)
	case fieldDestinationID:
		m.DestinationID = string(v)
	case fieldNamespace:
		m.Namespace = string(v)
	case fieldPayloadUTF8:
		m.PayloadUTF8 = string(v)
	case fieldPayloadBinary:
		m.PayloadBinary = append([]byte(nil), v...)
	}
}
