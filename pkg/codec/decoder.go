package codec

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/saker-ai/devlink/pkg/protocol"
)

// DecodeFunc decodes a frame whose nominal type selected it. obj is the
// already parsed frame, raw its bytes.
type DecodeFunc func(raw []byte, obj protocol.Object) (protocol.Response, error)

// EventDecodeFunc decodes one event kind. ev holds the common event fields
// and, for known kinds, the sub-payload; raw is the frame.
type EventDecodeFunc func(raw []byte, ev protocol.Event) (protocol.Response, error)

// RootDecodeFunc replaces frame routing entirely.
type RootDecodeFunc func(text string) (protocol.Response, error)

// DecoderTable maps nominal types and event kinds to handlers. Types absent
// from the table are passed through as Object. When Root is set it handles
// every frame.
type DecoderTable struct {
	Root   RootDecodeFunc
	Types  map[string]DecodeFunc
	Events map[protocol.EventKind]EventDecodeFunc
}

// With returns a copy of t with every handler present in overrides applied.
func (t DecoderTable) With(overrides DecoderTable) DecoderTable {
	merged := DecoderTable{
		Root:   t.Root,
		Types:  maps.Clone(t.Types),
		Events: maps.Clone(t.Events),
	}
	if merged.Types == nil {
		merged.Types = map[string]DecodeFunc{}
	}
	if merged.Events == nil {
		merged.Events = map[protocol.EventKind]EventDecodeFunc{}
	}
	if overrides.Root != nil {
		merged.Root = overrides.Root
	}
	maps.Copy(merged.Types, overrides.Types)
	maps.Copy(merged.Events, overrides.Events)
	return merged
}

// BaselineDecoderTable returns a fresh copy of the baseline handlers.
func BaselineDecoderTable() DecoderTable {
	return DecoderTable{
		Types: map[string]DecodeFunc{
			protocol.TypeTts: decodeTts,
		},
		Events: map[protocol.EventKind]EventDecodeFunc{
			protocol.EventAbort:  decodeEventFields,
			protocol.EventListen: decodeEventFields,
		},
	}
}

// DialectDecoder decodes frames with a dialect handler table.
type DialectDecoder struct {
	dialect protocol.Dialect
	table   DecoderTable
}

// NewDialectDecoder builds a decoder for dialect from table.
func NewDialectDecoder(dialect protocol.Dialect, table DecoderTable) *DialectDecoder {
	return &DialectDecoder{dialect: dialect, table: table.With(DecoderTable{})}
}

// NewBaselineDecoder returns the baseline dialect decoder.
func NewBaselineDecoder() *DialectDecoder {
	return NewDialectDecoder(protocol.DialectBaseline, BaselineDecoderTable())
}

func (d *DialectDecoder) Dialect() protocol.Dialect { return d.dialect }

// Decode parses text and routes it: event marker first, then the nominal
// type, then passthrough for types the table does not know.
func (d *DialectDecoder) Decode(text string) (protocol.Response, error) {
	if d.table.Root != nil {
		return d.table.Root(text)
	}
	raw := []byte(text)
	obj, err := parseObject(raw)
	if err != nil {
		return nil, err
	}
	p := objectShape(obj)
	switch resolve(p) {
	case branchEvent:
		return d.decodeEvent(raw, p)
	default:
		if handler, ok := d.table.Types[p.typ]; ok {
			return handler(raw, obj)
		}
		return obj, nil
	}
}

func (d *DialectDecoder) decodeEvent(raw []byte, p shape) (protocol.Response, error) {
	var w eventWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: event frame: %v", protocol.ErrDecode, err)
	}
	handler, ok := d.table.Events[p.eventKind]
	if !ok {
		return nil, fmt.Errorf("%w: %s event kind %q", protocol.ErrNotImplemented, d.dialect, p.eventKind)
	}
	return handler(raw, eventFromWire(w))
}

func decodeEventFields(_ []byte, ev protocol.Event) (protocol.Response, error) {
	ev.Version = versionOrDefault(ev.Version)
	return ev, nil
}

func decodeTts(raw []byte, _ protocol.Object) (protocol.Response, error) {
	var w ttsWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: tts frame: %v", protocol.ErrDecode, err)
	}
	if w.State == "" {
		return nil, fmt.Errorf("%w: tts frame without state", protocol.ErrDecode)
	}
	return protocol.Tts{
		SessionID:   w.SessionID,
		State:       w.State,
		Text:        w.Text,
		Audio:       w.AudioParams,
		EndOfStream: w.State == protocol.TtsStop,
	}, nil
}
