package vectorstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/creastat/vecstore"
)

// reserved is the character the Redis query parser treats as an operator.
const reserved = "-"

// EncodeVector returns the raw little-endian float32 bytes of v.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: vector blob length %d is not a multiple of 4", vecstore.ErrInvalidInput, len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// Escape prefixes every reserved character with a backslash.
func Escape(s string) string {
	return strings.ReplaceAll(s, reserved, `\`+reserved)
}

// Unescape reverses Escape.
func Unescape(s string) string {
	return strings.ReplaceAll(s, `\`+reserved, reserved)
}

// EncodeMetadata serializes metadata to escaped JSON. Nil metadata is stored as {}.
func EncodeMetadata(md map[string]any) (string, error) {
	if md == nil {
		md = map[string]any{}
	}
	b, err := json.Marshal(md)
	if err != nil {
		return "", fmt.Errorf("%w: %w", vecstore.ErrMalformedMetadata, err)
	}
	return Escape(string(b)), nil
}

// DecodeMetadata parses escaped JSON produced by EncodeMetadata.
func DecodeMetadata(s string) (map[string]any, error) {
	md := map[string]any{}
	if s == "" {
		return md, nil
	}
	if err := json.Unmarshal([]byte(Unescape(s)), &md); err != nil {
		return nil, fmt.Errorf("%w: %w", vecstore.ErrMalformedMetadata, err)
	}
	return md, nil
}
