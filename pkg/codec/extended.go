package codec

import (
	"fmt"

	"github.com/saker-ai/devlink/pkg/protocol"
)

// extendedEncoderOverrides holds the handlers where the extended dialect
// departs from baseline. It currently departs nowhere.
func extendedEncoderOverrides() EncoderTable {
	return EncoderTable{}
}

// extendedDecoderOverrides replaces frame routing: extended framing has not
// been defined, so every frame fails with ErrNotImplemented.
func extendedDecoderOverrides() DecoderTable {
	return DecoderTable{
		Root: func(string) (protocol.Response, error) {
			return nil, fmt.Errorf("%w: %s decoding", protocol.ErrNotImplemented, protocol.DialectExtended)
		},
	}
}

// NewExtendedEncoder returns the extended dialect encoder.
func NewExtendedEncoder() *DialectEncoder {
	return NewDialectEncoder(protocol.DialectExtended, BaselineEncoderTable().With(extendedEncoderOverrides()))
}

// NewExtendedDecoder returns the extended dialect decoder.
func NewExtendedDecoder() *DialectDecoder {
	return NewDialectDecoder(protocol.DialectExtended, BaselineDecoderTable().With(extendedDecoderOverrides()))
}
