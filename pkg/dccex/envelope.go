package dccex

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"
)

// MaxPayloadSize is the maximum payload length in bytes.
// Both stations must agree on it.
const MaxPayloadSize = 128

// ProtocolTag classifies the dialect of a payload.
type ProtocolTag int

// Protocol tags.
const (
	// TagDCCEX is a <...> encoded DCC-EX command.
	TagDCCEX ProtocolTag = iota
	// TagWiThrottle is a WiThrottle command.
	TagWiThrottle
	// TagControl is a #-prefixed command managing the command station link.
	TagControl
	// TagReply is a message coming back from the command station.
	TagReply
	// TagUnknown is never produced by valid input.
	TagUnknown
)

var protocolTagNames = [...]string{"DCCEX", "WTH", "CTRL", "REPLY", "UNKNOWN"}

// IsValid indicates the tag is one of the known protocols.
func (t ProtocolTag) IsValid() bool {
	return t >= TagDCCEX && t < TagUnknown
}

// String implements fmt.Stringer.
func (t ProtocolTag) String() string {
	if t < 0 || int(t) >= len(protocolTagNames) {
		return protocolTagNames[TagUnknown]
	}
	return protocolTagNames[t]
}

// LookupProtocolTag converts an integer into a ProtocolTag.
func LookupProtocolTag(tag int) (ProtocolTag, error) {
	if tag < int(TagDCCEX) || tag > int(TagUnknown) {
		return TagUnknown, &InvalidTagError{Tag: tag}
	}
	return ProtocolTag(tag), nil
}

// DecodeProtocolTag returns the name of tag. It never fails: a tag out
// of range is reported and named "UNKNOWN".
func DecodeProtocolTag(tag ProtocolTag) string {
	if _, err := LookupProtocolTag(int(tag)); err != nil {
		glog.Errorf("cannot decode protocol tag %d, returning %s", int(tag), TagUnknown)
		return TagUnknown.String()
	}
	return tag.String()
}

// ClassifyPayload guesses the protocol of a command from a client.
func ClassifyPayload(payload string) ProtocolTag {
	s := strings.TrimSpace(payload)
	switch {
	case s == "":
		return TagUnknown
	case s[0] == '<':
		return TagDCCEX
	case s[0] == '#':
		return TagControl
	default:
		return TagWiThrottle
	}
}

// Envelope is the unit sent over the link.
type Envelope struct {
	// Seq is assigned by the Channel which queued the envelope.
	Seq uint64
	// Client identifies the connection the command came from.
	Client int32
	Tag    ProtocolTag
	// Payload is at most MaxPayloadSize bytes.
	Payload string
}

// NewEnvelope creates an Envelope, truncating payload to MaxPayloadSize.
func NewEnvelope(client int32, tag ProtocolTag, payload string) Envelope {
	return Envelope{Client: client, Tag: tag, Payload: truncate(payload)}
}

// truncate never splits a UTF-8 sequence.
func truncate(payload string) string {
	if len(payload) <= MaxPayloadSize {
		return payload
	}
	n := MaxPayloadSize
	for n > 0 && !utf8.RuneStart(payload[n]) {
		n--
	}
	return payload[:n]
}

// String implements fmt.Stringer.
func (e Envelope) String() string {
	return fmt.Sprintf("[%d:%d:%s]: %s", e.Seq, e.Client, e.Tag, e.Payload)
}

// MarshalBinary encodes the fields in order: seq, client, tag, payload.
func (e Envelope) MarshalBinary() ([]byte, error) {
	buf := proto.NewBuffer(make([]byte, 0, 16+len(e.Payload)))
	if err := buf.EncodeVarint(e.Seq); err != nil {
		return nil, err
	}
	if err := buf.EncodeZigzag64(uint64(int64(e.Client))); err != nil {
		return nil, err
	}
	if err := buf.EncodeZigzag64(uint64(int64(e.Tag))); err != nil {
		return nil, err
	}
	if err := buf.EncodeStringBytes(truncate(e.Payload)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes bytes produced by MarshalBinary.
func (e *Envelope) UnmarshalBinary(data []byte) error {
	buf := proto.NewBuffer(data)
	seq, err := buf.DecodeVarint()
	if err != nil {
		return fmt.Errorf("decode seq: %w", err)
	}
	client, err := buf.DecodeZigzag64()
	if err != nil {
		return fmt.Errorf("decode client: %w", err)
	}
	tag, err := buf.DecodeZigzag64()
	if err != nil {
		return fmt.Errorf("decode tag: %w", err)
	}
	payload, err := buf.DecodeRawBytes(false)
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if len(payload) > MaxPayloadSize {
		return ErrPayloadTooLong
	}
	clientID := int64(client)
	if clientID < math.MinInt32 || clientID > math.MaxInt32 {
		return fmt.Errorf("client id %d out of range", clientID)
	}
	if _, err := LookupProtocolTag(int(int64(tag))); err != nil {
		return err
	}
	decoded := Envelope{
		Seq:     seq,
		Client:  int32(clientID),
		Tag:     ProtocolTag(int64(tag)),
		Payload: string(payload),
	}
	// encoding is canonical, anything longer carries trailing bytes
	if canonical, err := decoded.MarshalBinary(); err != nil || len(canonical) != len(data) {
		return fmt.Errorf("malformed envelope: %d bytes, expected %d", len(data), len(canonical))
	}
	*e = decoded
	return nil
}
