package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/saker-ai/devlink/pkg/protocol"
)

// BaseEncoder serializes any request structurally, adding its "type" when
// the serialized form has none. Dialect encoders use it for the final write.
type BaseEncoder struct{}

// NewBaseEncoder returns the structural fallback encoder.
func NewBaseEncoder() BaseEncoder {
	return BaseEncoder{}
}

func (BaseEncoder) Dialect() protocol.Dialect { return "" }

// Encode marshals req as a JSON object.
func (BaseEncoder) Encode(req protocol.Request) (string, error) {
	if req == nil {
		return "", fmt.Errorf("%w: nil request", protocol.ErrInvalidMessage)
	}
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", req.RequestType(), err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return string(data), nil
	}
	if _, ok := fields["type"]; !ok && req.RequestType() != "" {
		fields["type"] = req.RequestType()
	}
	return marshalText(fields)
}

// BaseDecoder parses wire text into an untyped Object.
type BaseDecoder struct{}

// NewBaseDecoder returns the structural fallback decoder.
func NewBaseDecoder() BaseDecoder {
	return BaseDecoder{}
}

func (BaseDecoder) Dialect() protocol.Dialect { return "" }

// Decode parses text into an Object. Anything other than a JSON object is a
// decode error.
func (BaseDecoder) Decode(text string) (protocol.Response, error) {
	obj, err := parseObject([]byte(text))
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func parseObject(raw []byte) (protocol.Object, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty frame", protocol.ErrDecode)
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: frame is not a json object", protocol.ErrDecode)
	}
	var obj protocol.Object
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", protocol.ErrDecode, err)
	}
	return obj, nil
}

func marshalText(payload any) (string, error) {
	var buf strings.Builder
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
