package codec

// Fixed-width integer and IEEE-754 encoding across 16-bit registers.

import (
	"encoding/binary"
	"fmt"
	"math"
)

// errTooShort returns a standardised validation error for short buffers.
func errTooShort(what string, got, need int) error {
	return fmt.Errorf("%s too short: %d bytes (minimum %d)", what, got, need)
}

// putWords writes the low words*16 bits of v as consecutive registers.
func putWords(dst []byte, v uint64, words int, e Endianness) {
	e = CurrentEndianness(e)
	order := e.byteOrder()
	for i := 0; i < words; i++ {
		w := uint16(v >> (16 * uint(words-1-i)))
		pos := i
		if e.lowWordFirst() {
			pos = words - 1 - i
		}
		order.PutUint16(dst[pos*2:], w)
	}
}

// readWords is the inverse of putWords.
func readWords(src []byte, words int, e Endianness) uint64 {
	e = CurrentEndianness(e)
	order := e.byteOrder()
	var v uint64
	for i := 0; i < words; i++ {
		pos := i
		if e.lowWordFirst() {
			pos = words - 1 - i
		}
		v = v<<16 | uint64(order.Uint16(src[pos*2:]))
	}
	return v
}

// PutUint16 writes value into dst[0:2]. Only the byte-order flag of e applies.
func PutUint16(dst []byte, value uint16, e Endianness) {
	putWords(dst, uint64(value), 1, e)
}

// PutInt16 writes value into dst[0:2] as two's complement.
func PutInt16(dst []byte, value int16, e Endianness) {
	PutUint16(dst, uint16(value), e)
}

// PutUint32 writes value into dst[0:4].
func PutUint32(dst []byte, value uint32, e Endianness) {
	putWords(dst, uint64(value), 2, e)
}

// PutInt32 writes value into dst[0:4] as two's complement.
func PutInt32(dst []byte, value int32, e Endianness) {
	PutUint32(dst, uint32(value), e)
}

// PutUint64 writes value into dst[0:8].
func PutUint64(dst []byte, value uint64, e Endianness) {
	putWords(dst, value, 4, e)
}

// PutInt64 writes value into dst[0:8] as two's complement.
func PutInt64(dst []byte, value int64, e Endianness) {
	PutUint64(dst, uint64(value), e)
}

// PutFloat32 writes the IEEE-754 bit pattern of value into dst[0:4].
func PutFloat32(dst []byte, value float32, e Endianness) {
	PutUint32(dst, math.Float32bits(value), e)
}

// PutFloat64 writes the IEEE-754 bit pattern of value into dst[0:8].
func PutFloat64(dst []byte, value float64, e Endianness) {
	PutUint64(dst, math.Float64bits(value), e)
}

// AppendUint16 appends a uint16 to dst.
func AppendUint16(dst []byte, value uint16, e Endianness) []byte {
	var buf [2]byte
	PutUint16(buf[:], value, e)
	return append(dst, buf[:]...)
}

// AppendUint32 appends a uint32 to dst.
func AppendUint32(dst []byte, value uint32, e Endianness) []byte {
	var buf [4]byte
	PutUint32(buf[:], value, e)
	return append(dst, buf[:]...)
}

// AppendUint64 appends a uint64 to dst.
func AppendUint64(dst []byte, value uint64, e Endianness) []byte {
	var buf [8]byte
	PutUint64(buf[:], value, e)
	return append(dst, buf[:]...)
}

// Uint16 decodes the first register of b.
func Uint16(b []byte, e Endianness) (uint16, error) {
	if len(b) < 2 {
		return 0, errTooShort("uint16", len(b), 2)
	}
	return uint16(readWords(b, 1, e)), nil
}

// Int16 decodes the first register of b as two's complement.
func Int16(b []byte, e Endianness) (int16, error) {
	v, err := Uint16(b, e)
	return int16(v), err
}

// Uint32 decodes the first two registers of b.
func Uint32(b []byte, e Endianness) (uint32, error) {
	if len(b) < 4 {
		return 0, errTooShort("uint32", len(b), 4)
	}
	return uint32(readWords(b, 2, e)), nil
}

// Int32 decodes the first two registers of b as two's complement.
func Int32(b []byte, e Endianness) (int32, error) {
	v, err := Uint32(b, e)
	return int32(v), err
}

// Uint64 decodes the first four registers of b.
func Uint64(b []byte, e Endianness) (uint64, error) {
	if len(b) < 8 {
		return 0, errTooShort("uint64", len(b), 8)
	}
	return readWords(b, 4, e), nil
}

// Int64 decodes the first four registers of b as two's complement.
func Int64(b []byte, e Endianness) (int64, error) {
	v, err := Uint64(b, e)
	return int64(v), err
}

// Float32 decodes an IEEE-754 single from the first two registers of b.
func Float32(b []byte, e Endianness) (float32, error) {
	v, err := Uint32(b, e)
	return math.Float32frombits(v), err
}

// Float64 decodes an IEEE-754 double from the first four registers of b.
func Float64(b []byte, e Endianness) (float64, error) {
	v, err := Uint64(b, e)
	return math.Float64frombits(v), err
}

// RegisterWord returns register i of b as the big-endian word it is on the wire.
func RegisterWord(b []byte, i int) (uint16, error) {
	if i < 0 || len(b) < 2*i+2 {
		return 0, errTooShort("register data", len(b), 2*i+2)
	}
	return binary.BigEndian.Uint16(b[2*i:]), nil
}
