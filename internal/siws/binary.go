package siws

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Shape identifies how a wallet serialized a byte string into JSON
type Shape int

const (
	ShapeUnknown  Shape = iota
	ShapeSequence       // [1,2,3]
	ShapeBuffer         // {"type":"Buffer","data":[1,2,3]}
	ShapeIndexed        // {"0":1,"1":2,"2":3}
)

func (s Shape) String() string {
	switch s {
	case ShapeSequence:
		return "sequence"
	case ShapeBuffer:
		return "buffer"
	case ShapeIndexed:
		return "indexed"
	default:
		return "unknown"
	}
}

// DetectShape classifies raw without decoding its elements
func DetectShape(raw json.RawMessage) Shape {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ShapeUnknown
	}

	switch trimmed[0] {
	case '[':
		return ShapeSequence
	case '{':
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err != nil {
			return ShapeUnknown
		}
		if _, ok := probe["type"]; ok {
			return ShapeBuffer
		}
		return ShapeIndexed
	default:
		return ShapeUnknown
	}
}

// Normalize decodes any accepted shape into the byte sequence it represents.
// Unrecognized shapes are rejected with ErrUnsupportedShape.
func Normalize(raw json.RawMessage) ([]byte, error) {
	switch DetectShape(raw) {
	case ShapeSequence:
		return decodeSequence(raw)
	case ShapeBuffer:
		return decodeBuffer(raw)
	case ShapeIndexed:
		return decodeIndexed(raw)
	default:
		return nil, ErrUnsupportedShape
	}
}

func decodeSequence(raw json.RawMessage) ([]byte, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBytes, err)
	}
	return decodeElements(elems)
}

func decodeBuffer(raw json.RawMessage) ([]byte, error) {
	var buf struct {
		Type string            `json:"type"`
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBytes, err)
	}
	if buf.Type != "Buffer" {
		return nil, fmt.Errorf("%w: buffer type %q", ErrUnsupportedShape, buf.Type)
	}
	if buf.Data == nil {
		return nil, fmt.Errorf("%w: buffer without data", ErrMalformedBytes)
	}
	return decodeElements(buf.Data)
}

// decodeIndexed requires keys to be exactly the canonical decimal indexes 0..n-1
func decodeIndexed(raw json.RawMessage) ([]byte, error) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBytes, err)
	}

	out := make([]byte, len(entries))
	for key, value := range entries {
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(entries) || strconv.Itoa(idx) != key {
			return nil, fmt.Errorf("%w: index %q", ErrMalformedBytes, key)
		}
		b, err := decodeByte(value)
		if err != nil {
			return nil, err
		}
		out[idx] = b
	}
	return out, nil
}

func decodeElements(elems []json.RawMessage) ([]byte, error) {
	out := make([]byte, len(elems))
	for i, elem := range elems {
		b, err := decodeByte(elem)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

func decodeByte(raw json.RawMessage) (byte, error) {
	var n *int
	if err := json.Unmarshal(raw, &n); err != nil || n == nil {
		return 0, fmt.Errorf("%w: element %s", ErrMalformedBytes, string(raw))
	}
	if *n < 0 || *n > 255 {
		return 0, fmt.Errorf("%w: element %d out of range", ErrMalformedBytes, *n)
	}
	return byte(*n), nil
}

// Binary is a byte-bearing JSON field kept in its wire form until decoded
type Binary struct {
	raw json.RawMessage
}

// NewBinary encodes p as a raw sequence
func NewBinary(p []byte) Binary {
	parts := make([]string, len(p))
	for i, b := range p {
		parts[i] = strconv.Itoa(int(b))
	}
	return Binary{raw: json.RawMessage("[" + strings.Join(parts, ",") + "]")}
}

// RawBinary wraps an already serialized value of any shape
func RawBinary(raw json.RawMessage) Binary {
	return Binary{raw: append(json.RawMessage(nil), raw...)}
}

// Bytes normalizes the field
func (b Binary) Bytes() ([]byte, error) {
	return Normalize(b.raw)
}

// Shape reports the serialization shape of the field
func (b Binary) Shape() Shape {
	return DetectShape(b.raw)
}

func (b *Binary) UnmarshalJSON(data []byte) error {
	b.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (b Binary) MarshalJSON() ([]byte, error) {
	if len(b.raw) == 0 {
		return []byte("null"), nil
	}
	return b.raw, nil
}
