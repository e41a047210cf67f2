package wire

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// Message codes of the proxy datagram protocol.
const (
	CodeDiscover  uint16 = 1
	CodeIAM       uint16 = 2
	CodeKeepAlive uint16 = 3
	CodeAudio     uint16 = 4
	CodeMetadata  uint16 = 6
)

const (
	// HeaderSize is the fixed prefix of every frame: a 16-bit message
	// code followed by a 16-bit payload length, both little-endian.
	HeaderSize = 4
	// MaxDatagram is the largest datagram the protocol carries; a single
	// receive buffer of this size fits any frame.
	MaxDatagram = 65535
)

// Incoming is a message received from a radio proxy.
type Incoming interface {
	incoming()
}

// Audio is a chunk of the proxy's raw audio stream.
type Audio []byte

// IAM is the proxy's name announcement.
type IAM string

// Metadata is stream metadata, usually ICY text with a StreamTitle field.
type Metadata []byte

func (Audio) incoming()    {}
func (IAM) incoming()      {}
func (Metadata) incoming() {}

// Outgoing is a message addressed to a radio proxy.
type Outgoing interface {
	outgoing()
}

// Discover solicits IAM responses from every proxy on the broadcast domain.
type Discover struct{}

// KeepAlive sustains a proxy's liveness window.
type KeepAlive struct{}

func (Discover) outgoing()  {}
func (KeepAlive) outgoing() {}

// Encode builds a frame carrying content under the given code. The
// content length must fit the 16-bit length field.
func Encode(code uint16, content []byte) ([]byte, error) {
	if len(content) > MaxDatagram {
		return nil, fmt.Errorf("content length %d does not fit in u16", len(content))
	}
	frame := make([]byte, HeaderSize+len(content))
	binary.LittleEndian.PutUint16(frame[0:2], code)
	binary.LittleEndian.PutUint16(frame[2:4], uint16(len(content)))
	copy(frame[HeaderSize:], content)
	return frame, nil
}

// EncodeOutgoing builds the frame for an outgoing message.
func EncodeOutgoing(msg Outgoing) ([]byte, error) {
	switch msg.(type) {
	case Discover:
		return Encode(CodeDiscover, nil)
	case KeepAlive:
		return Encode(CodeKeepAlive, nil)
	}
	return nil, fmt.Errorf("unknown outgoing message %T", msg)
}

// Decode parses one datagram into an incoming message. The payload is
// copied out of the datagram so the caller may reuse its buffer. Frames
// with a short header, a length that overruns the datagram, an
// unrecognized code, or an IAM payload that is not UTF-8 are rejected.
func Decode(datagram []byte) (Incoming, error) {
	if len(datagram) < HeaderSize {
		return nil, fmt.Errorf("message too short: %d bytes", len(datagram))
	}
	code := binary.LittleEndian.Uint16(datagram[0:2])
	length := int(binary.LittleEndian.Uint16(datagram[2:4]))
	if length > len(datagram)-HeaderSize {
		return nil, fmt.Errorf("declared length %d exceeds datagram size %d", length, len(datagram))
	}
	content := datagram[HeaderSize : HeaderSize+length]
	switch code {
	case CodeIAM:
		if !utf8.Valid(content) {
			return nil, fmt.Errorf("IAM payload is not valid UTF-8")
		}
		return IAM(content), nil
	case CodeAudio:
		return Audio(append([]byte(nil), content...)), nil
	case CodeMetadata:
		return Metadata(append([]byte(nil), content...)), nil
	}
	return nil, fmt.Errorf("invalid message code: %d", code)
}
