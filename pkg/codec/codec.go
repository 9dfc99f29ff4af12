// Package codec turns protocol messages into wire text and back.
//
// Each dialect is a DialectEncoder/DialectDecoder pair built from a handler
// table. Dialects derive from the baseline tables by overriding individual
// handlers (see EncoderTable.With), and are selected through a Registry.
//
// Branch selection follows a fixed priority: structural markers are tested
// before the nominal "type" field. See discriminators.
package codec

import (
	"github.com/saker-ai/devlink/pkg/protocol"
)

// Encoder serializes requests for one dialect.
type Encoder interface {
	Dialect() protocol.Dialect
	Encode(req protocol.Request) (string, error)
}

// Decoder parses inbound wire text for one dialect.
type Decoder interface {
	Dialect() protocol.Dialect
	Decode(text string) (protocol.Response, error)
}
