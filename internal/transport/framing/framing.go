// Package framing packs and unpacks the versioned binary websocket frames
// exchanged with a gateway. Version 1 frames are raw audio. Versions 2 and 3
// prefix the payload with a header carrying its kind and size.
package framing

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	// Version1 uses raw audio payload frames.
	Version1 = 1
	// Version2 uses a 16 byte header with kind, timestamp and size.
	Version2 = 2
	// Version3 uses a 4 byte header with kind and size.
	Version3 = 3

	headerSizeV2 = 16
	headerSizeV3 = 4
)

// Kind describes the payload category carried by a frame.
type Kind int

const (
	// KindAudio indicates audio bytes.
	KindAudio Kind = iota
	// KindText indicates a JSON text message.
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	// ErrShortFrame is returned when a frame is smaller than its header.
	ErrShortFrame = errors.New("framing: frame too short")
	// ErrPayloadSize is returned when the header size exceeds the frame.
	ErrPayloadSize = errors.New("framing: invalid payload size")
	// ErrUnknownKind is returned for an unrecognized payload kind.
	ErrUnknownKind = errors.New("framing: unsupported payload kind")
	// ErrPayloadTooLarge is returned when a payload does not fit the header.
	ErrPayloadTooLarge = errors.New("framing: payload too large")
)

// NormalizeVersion returns a supported protocol version.
func NormalizeVersion(version int) int {
	switch version {
	case Version2, Version3:
		return version
	default:
		return Version1
	}
}

// Decode parses a binary frame according to protocol version.
func Decode(version int, frame []byte) ([]byte, Kind, error) {
	switch NormalizeVersion(version) {
	case Version2:
		return decodeV2(frame)
	case Version3:
		return decodeV3(frame)
	default:
		return frame, KindAudio, nil
	}
}

// Pack frames an audio payload according to protocol version.
func Pack(version int, payload []byte) []byte {
	frame, _ := PackKind(version, KindAudio, payload)
	return frame
}

// PackKind frames payload with an explicit kind. Version 1 frames carry no
// header, so only audio can be sent that way.
func PackKind(version int, kind Kind, payload []byte) ([]byte, error) {
	if kind != KindAudio && kind != KindText {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	switch NormalizeVersion(version) {
	case Version2:
		return packV2(kind, payload, time.Now()), nil
	case Version3:
		if len(payload) > 0xFFFF {
			return nil, fmt.Errorf("%w: %d bytes for v3", ErrPayloadTooLarge, len(payload))
		}
		return packV3(kind, payload), nil
	default:
		if kind != KindAudio {
			return nil, fmt.Errorf("%w: %s in v1", ErrUnknownKind, kind)
		}
		return payload, nil
	}
}

func kindOf(raw uint16) (Kind, error) {
	switch raw {
	case uint16(KindAudio):
		return KindAudio, nil
	case uint16(KindText):
		return KindText, nil
	default:
		return KindAudio, fmt.Errorf("%w: %d", ErrUnknownKind, raw)
	}
}

func decodeV2(frame []byte) ([]byte, Kind, error) {
	if len(frame) < headerSizeV2 {
		return nil, KindAudio, fmt.Errorf("%w: v2 needs %d bytes, got %d", ErrShortFrame, headerSizeV2, len(frame))
	}
	kind, err := kindOf(binary.BigEndian.Uint16(frame[2:4]))
	if err != nil {
		return nil, KindAudio, err
	}
	size := binary.BigEndian.Uint32(frame[12:16])
	if int(size) > len(frame)-headerSizeV2 {
		return nil, KindAudio, fmt.Errorf("%w: v2 header says %d", ErrPayloadSize, size)
	}
	return frame[headerSizeV2 : headerSizeV2+int(size)], kind, nil
}

func decodeV3(frame []byte) ([]byte, Kind, error) {
	if len(frame) < headerSizeV3 {
		return nil, KindAudio, fmt.Errorf("%w: v3 needs %d bytes, got %d", ErrShortFrame, headerSizeV3, len(frame))
	}
	kind, err := kindOf(uint16(frame[0]))
	if err != nil {
		return nil, KindAudio, err
	}
	size := binary.BigEndian.Uint16(frame[2:4])
	if int(size) > len(frame)-headerSizeV3 {
		return nil, KindAudio, fmt.Errorf("%w: v3 header says %d", ErrPayloadSize, size)
	}
	return frame[headerSizeV3 : headerSizeV3+int(size)], kind, nil
}

func packV2(kind Kind, payload []byte, now time.Time) []byte {
	frame := make([]byte, headerSizeV2, headerSizeV2+len(payload))
	binary.BigEndian.PutUint16(frame[0:2], Version2)
	binary.BigEndian.PutUint16(frame[2:4], uint16(kind))
	binary.BigEndian.PutUint32(frame[8:12], uint32(now.UnixMilli()))
	binary.BigEndian.PutUint32(frame[12:16], uint32(len(payload)))
	return append(frame, payload...)
}

func packV3(kind Kind, payload []byte) []byte {
	frame := make([]byte, headerSizeV3, headerSizeV3+len(payload))
	frame[0] = byte(kind)
	binary.BigEndian.PutUint16(frame[2:4], uint16(len(payload)))
	return append(frame, payload...)
}
