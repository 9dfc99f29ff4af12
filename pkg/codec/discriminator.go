package codec

import (
	"github.com/saker-ai/devlink/pkg/protocol"
)

const eventKindField = "event_kind"

type branch int

const (
	branchNominal branch = iota
	branchEvent
)

// shape is the discriminator view of a message: its nominal type and the
// structural markers it carries.
type shape struct {
	typ       string
	eventKind protocol.EventKind
	hasEvent  bool
}

type discriminator struct {
	name   string
	branch branch
	match  func(shape) bool
}

// discriminators are evaluated in order, before the nominal type switch.
// An object carrying an event_kind field is an event whatever its "type"
// says, including when "type" is empty or names another message. Keep the
// event marker first when adding entries.
var discriminators = []discriminator{
	{
		name:   eventKindField,
		branch: branchEvent,
		match:  func(p shape) bool { return p.hasEvent },
	},
}

func resolve(p shape) branch {
	for _, d := range discriminators {
		if d.match(p) {
			return d.branch
		}
	}
	return branchNominal
}

func requestShape(req protocol.Request) shape {
	switch r := req.(type) {
	case protocol.Event:
		return shape{typ: r.RequestType(), eventKind: r.Kind, hasEvent: true}
	case protocol.Generic:
		return objectShape(map[string]any(r))
	default:
		return shape{typ: req.RequestType()}
	}
}

func objectShape(obj map[string]any) shape {
	p := shape{}
	p.typ, _ = obj["type"].(string)
	if raw, ok := obj[eventKindField]; ok {
		p.hasEvent = true
		kind, _ := raw.(string)
		p.eventKind = protocol.EventKind(kind)
	}
	return p
}
