package codec

import (
	"bytes"
	"math/bits"
	"testing"
)

func TestBoolsToBytes(t *testing.T) {
	tests := []struct {
		name string
		in   []bool
		want []byte
	}{
		{"empty", nil, []byte{}},
		{"first is bit 0", []bool{true}, []byte{0x01}},
		{"coils 0,2,7", []bool{true, false, true, false, false, false, false, true}, []byte{0x85}},
		{"spills into second byte", []bool{false, false, false, false, false, false, false, false, true, true}, []byte{0x00, 0x03}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BoolsToBytes(tt.in)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("BoolsToBytes() = % X, want % X", got, tt.want)
			}
		})
	}
}

func TestBoolBytesInverse(t *testing.T) {
	in := []bool{true, true, false, true, false, false, true, false, false, true, false, false, false, false, false, true}
	got := BytesToBools(BoolsToBytes(in))
	if len(got) != len(in) {
		t.Fatalf("len = %d, want %d", len(got), len(in))
	}
	for i := range in {
		if got[i] != in[i] {
			t.Errorf("bit %d = %v, want %v", i, got[i], in[i])
		}
	}
}

func TestBoolBytesPadsToByteBoundary(t *testing.T) {
	in := []bool{true, false, true}
	got := BytesToBools(BoolsToBytes(in))
	if len(got) != 8 {
		t.Fatalf("len = %d, want 8", len(got))
	}
	want := []bool{true, false, true, false, false, false, false, false}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bit %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestIsBitSet(t *testing.T) {
	buf := []byte{0x01, 0x01}
	tests := []struct {
		bit  int
		want bool
	}{
		{0, true},  // LSB of first byte
		{1, false},
		{7, false}, // MSB of first byte
		{8, true},  // LSB of second byte
		{9, false},
	}
	for _, tt := range tests {
		got, err := IsBitSet(buf, tt.bit)
		if err != nil {
			t.Fatalf("IsBitSet(%d): %v", tt.bit, err)
		}
		if got != tt.want {
			t.Errorf("IsBitSet(%d) = %v, want %v", tt.bit, got, tt.want)
		}
	}

	if _, err := IsBitSet(buf, 16); err == nil {
		t.Error("expected out of range error for bit 16 of 2 bytes")
	}
	if _, err := IsBitSet(buf, -1); err == nil {
		t.Error("expected out of range error for negative bit")
	}
}

func TestIsBitSetUint(t *testing.T) {
	ok, err := IsBitSetUint(0x8, 3)
	if err != nil || !ok {
		t.Errorf("IsBitSetUint(0x8, 3) = %v, %v", ok, err)
	}
	ok, err = IsBitSetUint(1<<(bits.UintSize-1), bits.UintSize-1)
	if err != nil || !ok {
		t.Errorf("top bit = %v, %v", ok, err)
	}
	if _, err := IsBitSetUint(1, bits.UintSize); err == nil {
		t.Errorf("expected out of range error for bit %d", bits.UintSize)
	}
}

func TestCheckBit16(t *testing.T) {
	ok, err := CheckBit16(0x8000, 15)
	if err != nil || !ok {
		t.Errorf("CheckBit16(0x8000, 15) = %v, %v", ok, err)
	}
	ok, _ = CheckBit16(0x8000, 14)
	if ok {
		t.Error("CheckBit16(0x8000, 14) = true")
	}
	if _, err := CheckBit16(0, 16); err == nil {
		t.Error("expected out of range error for bit 16")
	}
}
