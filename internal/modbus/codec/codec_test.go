package codec

import (
	"bytes"
	"math"
	"testing"
)

var allEndianness = []Endianness{
	BigEndian,
	LittleEndian,
	BigEndianLowWordFirst,
	LittleEndianLowWordFirst,
}

func TestPutUint32Layouts(t *testing.T) {
	tests := []struct {
		name string
		e    Endianness
		want []byte
	}{
		{"big endian", BigEndian, []byte{0x01, 0x02, 0x03, 0x04}},
		{"big endian low word first", BigEndianLowWordFirst, []byte{0x03, 0x04, 0x01, 0x02}},
		{"little endian", LittleEndian, []byte{0x02, 0x01, 0x04, 0x03}},
		{"little endian low word first", LittleEndianLowWordFirst, []byte{0x04, 0x03, 0x02, 0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, 4)
			PutUint32(buf, 0x01020304, tt.e)
			if !bytes.Equal(buf, tt.want) {
				t.Errorf("PutUint32() = % X, want % X", buf, tt.want)
			}
		})
	}
}

func TestPutUint64Layouts(t *testing.T) {
	tests := []struct {
		name string
		e    Endianness
		want []byte
	}{
		{"big endian", BigEndian, []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}},
		{"big endian low word first", BigEndianLowWordFirst, []byte{0x07, 0x08, 0x05, 0x06, 0x03, 0x04, 0x01, 0x02}},
		{"little endian", LittleEndian, []byte{0x02, 0x01, 0x04, 0x03, 0x06, 0x05, 0x08, 0x07}},
		{"little endian low word first", LittleEndianLowWordFirst, []byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, 8)
			PutUint64(buf, 0x0102030405060708, tt.e)
			if !bytes.Equal(buf, tt.want) {
				t.Errorf("PutUint64() = % X, want % X", buf, tt.want)
			}
		})
	}
}

func TestPutUint16IgnoresWordOrder(t *testing.T) {
	buf := make([]byte, 2)
	PutUint16(buf, 0x0102, BigEndianLowWordFirst)
	if !bytes.Equal(buf, []byte{0x01, 0x02}) {
		t.Errorf("big endian = % X, want 01 02", buf)
	}
	PutUint16(buf, 0x0102, LittleEndianLowWordFirst)
	if !bytes.Equal(buf, []byte{0x02, 0x01}) {
		t.Errorf("little endian = % X, want 02 01", buf)
	}
}

func TestIntegerRoundTrip(t *testing.T) {
	for _, e := range allEndianness {
		t.Run(e.String(), func(t *testing.T) {
			for _, v := range []int16{0, 1, -1, math.MinInt16, math.MaxInt16, 0x1234} {
				buf := make([]byte, 2)
				PutInt16(buf, v, e)
				got, err := Int16(buf, e)
				if err != nil || got != v {
					t.Errorf("int16 %d: got %d, err %v", v, got, err)
				}
			}
			for _, v := range []uint16{0, 1, math.MaxUint16, 0xABCD} {
				buf := make([]byte, 2)
				PutUint16(buf, v, e)
				got, err := Uint16(buf, e)
				if err != nil || got != v {
					t.Errorf("uint16 %d: got %d, err %v", v, got, err)
				}
			}
			for _, v := range []int32{0, -1, math.MinInt32, math.MaxInt32, -123456} {
				buf := make([]byte, 4)
				PutInt32(buf, v, e)
				got, err := Int32(buf, e)
				if err != nil || got != v {
					t.Errorf("int32 %d: got %d, err %v", v, got, err)
				}
			}
			for _, v := range []uint32{0, 1, math.MaxUint32, 0xDEADBEEF} {
				buf := make([]byte, 4)
				PutUint32(buf, v, e)
				got, err := Uint32(buf, e)
				if err != nil || got != v {
					t.Errorf("uint32 %d: got %d, err %v", v, got, err)
				}
			}
			for _, v := range []int64{0, -1, math.MinInt64, math.MaxInt64, -9876543210} {
				buf := make([]byte, 8)
				PutInt64(buf, v, e)
				got, err := Int64(buf, e)
				if err != nil || got != v {
					t.Errorf("int64 %d: got %d, err %v", v, got, err)
				}
			}
			for _, v := range []uint64{0, 1, math.MaxUint64, 0x0102030405060708} {
				buf := make([]byte, 8)
				PutUint64(buf, v, e)
				got, err := Uint64(buf, e)
				if err != nil || got != v {
					t.Errorf("uint64 %d: got %d, err %v", v, got, err)
				}
			}
		})
	}
}

func TestFloatRoundTrip(t *testing.T) {
	for _, e := range allEndianness {
		buf := make([]byte, 4)
		PutFloat32(buf, 3.14159, e)
		got, err := Float32(buf, e)
		if err != nil || got != float32(3.14159) {
			t.Errorf("%s: Float32() = %v, err %v", e, got, err)
		}

		buf = make([]byte, 8)
		PutFloat64(buf, -2.718281828459045, e)
		got64, err := Float64(buf, e)
		if err != nil || got64 != -2.718281828459045 {
			t.Errorf("%s: Float64() = %v, err %v", e, got64, err)
		}
	}
}

func TestFloat32Layout(t *testing.T) {
	// 1.0 = 0x3F800000
	buf := make([]byte, 4)
	PutFloat32(buf, 1.0, BigEndianLowWordFirst)
	want := []byte{0x00, 0x00, 0x3F, 0x80}
	if !bytes.Equal(buf, want) {
		t.Errorf("PutFloat32() = % X, want % X", buf, want)
	}
}

func TestDecodeTooShort(t *testing.T) {
	if _, err := Uint16([]byte{0x01}, BigEndian); err == nil {
		t.Error("Uint16: expected error for 1 byte")
	}
	if _, err := Uint32([]byte{0x01, 0x02}, BigEndian); err == nil {
		t.Error("Uint32: expected error for 2 bytes")
	}
	if _, err := Float64(make([]byte, 7), BigEndian); err == nil {
		t.Error("Float64: expected error for 7 bytes")
	}
}

func TestAppendUint(t *testing.T) {
	got := AppendUint16([]byte{0xAA}, 0x0102, BigEndian)
	if !bytes.Equal(got, []byte{0xAA, 0x01, 0x02}) {
		t.Errorf("AppendUint16() = % X", got)
	}
	got = AppendUint32(nil, 0x01020304, BigEndianLowWordFirst)
	if !bytes.Equal(got, []byte{0x03, 0x04, 0x01, 0x02}) {
		t.Errorf("AppendUint32() = % X", got)
	}
	got = AppendUint64(nil, 1, BigEndian)
	if !bytes.Equal(got, []byte{0, 0, 0, 0, 0, 0, 0, 1}) {
		t.Errorf("AppendUint64() = % X", got)
	}
}

func TestRegisterWord(t *testing.T) {
	b := []byte{0x00, 0x03, 0x12, 0x34}
	w, err := RegisterWord(b, 1)
	if err != nil {
		t.Fatal(err)
	}
	if w != 0x1234 {
		t.Errorf("RegisterWord(1) = 0x%04X, want 0x1234", w)
	}
	if _, err := RegisterWord(b, 2); err == nil {
		t.Error("expected error past end of data")
	}
}

func TestEncodeDecodeTypes(t *testing.T) {
	tests := []struct {
		name  string
		typ   Type
		value any
		want  any
	}{
		{"int16 from int", TypeInt16, -5, int16(-5)},
		{"uint16 from float64", TypeUint16, float64(65535), uint16(65535)},
		{"int32", TypeInt32, int32(-70000), int32(-70000)},
		{"uint32 from uint", TypeUint32, uint(4000000000), uint32(4000000000)},
		{"int64", TypeInt64, int64(-1), int64(-1)},
		{"uint64", TypeUint64, uint64(math.MaxUint64), uint64(math.MaxUint64)},
		{"float from int", TypeFloat, 2, float32(2)},
		{"double", TypeDouble, 1.5, float64(1.5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Encode(tt.value, tt.typ, BigEndianLowWordFirst)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if len(b) != 2*tt.typ.Registers() {
				t.Fatalf("len = %d, want %d", len(b), 2*tt.typ.Registers())
			}
			got, err := Decode(b, tt.typ, BigEndianLowWordFirst)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode() = %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}

func TestEncodeRejects(t *testing.T) {
	tests := []struct {
		name  string
		typ   Type
		value any
	}{
		{"int16 overflow", TypeInt16, 40000},
		{"uint16 negative", TypeUint16, -1},
		{"uint32 overflow", TypeUint32, int64(math.MaxUint32) + 1},
		{"int32 fractional", TypeInt32, 1.5},
		{"float overflow", TypeFloat, math.MaxFloat64},
		{"string value for int", TypeInt16, "12"},
		{"bit type", TypeBit, true},
		{"byte type", TypeByte, 1},
		{"string type", TypeString, "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Encode(tt.value, tt.typ, BigEndian); err == nil {
				t.Errorf("Encode(%v, %s) expected error", tt.value, tt.typ)
			}
		})
	}
}

func TestParseType(t *testing.T) {
	tests := map[string]Type{
		"uint16":  TypeUint16,
		" Float ": TypeFloat,
		"float32": TypeFloat,
		"float64": TypeDouble,
		"string":  TypeString,
		"bool":    TypeBit,
	}
	for in, want := range tests {
		got, err := ParseType(in)
		if err != nil || got != want {
			t.Errorf("ParseType(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseType("decimal"); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestRegistersForType(t *testing.T) {
	tests := []struct {
		typ  Type
		want int
	}{
		{TypeBit, 1}, {TypeByte, 1}, {TypeInt16, 1}, {TypeUint16, 1},
		{TypeInt32, 2}, {TypeUint32, 2}, {TypeFloat, 2},
		{TypeInt64, 4}, {TypeUint64, 4}, {TypeDouble, 4},
		{TypeString, 0},
	}
	for _, tt := range tests {
		if got := tt.typ.Registers(); got != tt.want {
			t.Errorf("%s.Registers() = %d, want %d", tt.typ, got, tt.want)
		}
	}
	if StringRegisters(0) != 1 || StringRegisters(1) != 1 || StringRegisters(10) != 5 || StringRegisters(11) != 6 {
		t.Error("StringRegisters rounding is wrong")
	}
}
