package value

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/agentstation/curator/pkg/errors"
)

// Encode returns the canonical JSON encoding of v: object keys sorted,
// no insignificant whitespace. Equal values always encode identically.
func Encode(v Value) ([]byte, error) {
	if _, err := fromAny(v, 0); err != nil {
		return nil, err
	}
	data, err := json.Marshal(ToAny(v))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrSerialization, err)
	}
	return data, nil
}

// Parse decodes JSON into a Value.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrSerialization, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after JSON value", errors.ErrSerialization)
	}
	return fromAny(raw, 0)
}

// Checksum returns a content hash of v's canonical encoding together with
// the encoded size in bytes. It is fast and stable, not cryptographic.
func Checksum(v Value) (string, int, error) {
	data, err := Encode(v)
	if err != nil {
		return "", 0, err
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data)), len(data), nil
}

// Format renders v as canonical JSON, or a placeholder when it cannot be encoded.
func Format(v Value) string {
	if v == nil {
		return "<absent>"
	}
	data, err := Encode(v)
	if err != nil {
		return "<invalid>"
	}
	return string(data)
}
