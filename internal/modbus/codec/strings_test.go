package codec

import (
	"bytes"
	"testing"
)

func TestEncodeString(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		registers int
		charset   string
		want      []byte
	}{
		{"padded", "hello", 5, "", []byte{'h', 'e', 'l', 'l', 'o', 0, 0, 0, 0, 0}},
		{"exact fit", "ab", 1, "", []byte{'a', 'b'}},
		{"truncated", "abcdef", 2, "", []byte{'a', 'b', 'c', 'd'}},
		{"latin1", "é", 1, "ISO-8859-1", []byte{0xE9, 0x00}},
		{"utf8 name", "é", 1, "UTF-8", []byte{0xC3, 0xA9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeString(tt.in, tt.registers, tt.charset)
			if err != nil {
				t.Fatalf("EncodeString: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("EncodeString() = % X, want % X", got, tt.want)
			}
		})
	}
}

func TestEncodeStringErrors(t *testing.T) {
	if _, err := EncodeString("x", 0, ""); err == nil {
		t.Error("expected error for zero registers")
	}
	if _, err := EncodeString("x", 1, "klingon-1"); err == nil {
		t.Error("expected error for unknown charset")
	}
}

func TestDecodeString(t *testing.T) {
	got, err := DecodeString([]byte{'h', 'i', 0, 0}, "")
	if err != nil || got != "hi" {
		t.Errorf("DecodeString() = %q, %v", got, err)
	}
	got, err = DecodeString([]byte{0xE9, 0x00}, "ISO-8859-1")
	if err != nil || got != "é" {
		t.Errorf("DecodeString(latin1) = %q, %v", got, err)
	}
}
