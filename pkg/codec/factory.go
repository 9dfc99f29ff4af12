package codec

import (
	"fmt"
	"slices"
	"sync"

	"github.com/saker-ai/devlink/pkg/protocol"
)

// EncoderFunc constructs an encoder.
type EncoderFunc func() Encoder

// DecoderFunc constructs a decoder.
type DecoderFunc func() Decoder

// Registry maps dialects to codec constructors. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	encoders map[protocol.Dialect]EncoderFunc
	decoders map[protocol.Dialect]DecoderFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		encoders: make(map[protocol.Dialect]EncoderFunc),
		decoders: make(map[protocol.Dialect]DecoderFunc),
	}
}

// NewDefaultRegistry returns a registry with the baseline and extended
// dialects registered.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(protocol.DialectBaseline,
		func() Encoder { return NewBaselineEncoder() },
		func() Decoder { return NewBaselineDecoder() },
	)
	r.Register(protocol.DialectExtended,
		func() Encoder { return NewExtendedEncoder() },
		func() Decoder { return NewExtendedDecoder() },
	)
	return r
}

// Default is the registry used by the package level constructors.
var Default = NewDefaultRegistry()

// Register adds or replaces the constructors for dialect. A nil constructor
// leaves that side unregistered.
func (r *Registry) Register(dialect protocol.Dialect, enc EncoderFunc, dec DecoderFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if enc != nil {
		r.encoders[dialect] = enc
	}
	if dec != nil {
		r.decoders[dialect] = dec
	}
}

// NewEncoder returns a new encoder for dialect.
func (r *Registry) NewEncoder(dialect protocol.Dialect) (Encoder, error) {
	r.mu.RLock()
	ctor, ok := r.encoders[dialect]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no encoder registered for %q", protocol.ErrUnsupportedDialect, dialect)
	}
	return ctor(), nil
}

// NewDecoder returns a new decoder for dialect.
func (r *Registry) NewDecoder(dialect protocol.Dialect) (Decoder, error) {
	r.mu.RLock()
	ctor, ok := r.decoders[dialect]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no decoder registered for %q", protocol.ErrUnsupportedDialect, dialect)
	}
	return ctor(), nil
}

// Dialects lists the dialects with an encoder or decoder, sorted.
func (r *Registry) Dialects() []protocol.Dialect {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]protocol.Dialect, 0, len(r.encoders))
	for dialect := range r.encoders {
		out = append(out, dialect)
	}
	for dialect := range r.decoders {
		if _, ok := r.encoders[dialect]; !ok {
			out = append(out, dialect)
		}
	}
	slices.Sort(out)
	return out
}

// NewEncoder returns an encoder from the Default registry.
func NewEncoder(dialect protocol.Dialect) (Encoder, error) {
	return Default.NewEncoder(dialect)
}

// NewDecoder returns a decoder from the Default registry.
func NewDecoder(dialect protocol.Dialect) (Decoder, error) {
	return Default.NewDecoder(dialect)
}
