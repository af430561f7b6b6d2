package codec

// Fixed-length text stored in consecutive registers.

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// lookupEncoding resolves an IANA charset name. An empty name, or any UTF-8
// alias, yields nil: strings are already UTF-8 in memory.
func lookupEncoding(name string) (encoding.Encoding, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
		return nil, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("unknown string encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported string encoding %q", name)
	}
	if enc == unicode.UTF8 {
		return nil, nil
	}
	return enc, nil
}

// EncodeString converts s to the named charset and lays it out in exactly
// registers*2 bytes: zero padded on the right, truncated when too long.
func EncodeString(s string, registers int, charset string) ([]byte, error) {
	if registers < 1 {
		return nil, fmt.Errorf("string needs at least one register, got %d", registers)
	}
	enc, err := lookupEncoding(charset)
	if err != nil {
		return nil, err
	}
	raw := []byte(s)
	if enc != nil {
		raw, err = enc.NewEncoder().Bytes(raw)
		if err != nil {
			return nil, fmt.Errorf("encode string to %s: %w", charset, err)
		}
	}
	out := make([]byte, registers*2)
	copy(out, raw)
	return out, nil
}

// DecodeString reads text up to the first NUL byte and converts it from the
// named charset to UTF-8.
func DecodeString(b []byte, charset string) (string, error) {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	enc, err := lookupEncoding(charset)
	if err != nil {
		return "", err
	}
	if enc == nil {
		return string(b), nil
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decode string from %s: %w", charset, err)
	}
	return string(out), nil
}
