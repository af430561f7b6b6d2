package codec

// Coil bit packing. Modbus packs coils LSB first: coil n of a response is
// bit n%8 of byte n/8.

import (
	"fmt"
	"math/bits"
)

// BoolsToBytes packs values LSB first. The last byte is zero padded.
func BoolsToBytes(values []bool) []byte {
	out := make([]byte, (len(values)+7)/8)
	for i, v := range values {
		if v {
			out[i/8] |= 1 << (uint(i) % 8)
		}
	}
	return out
}

// BytesToBools unpacks every bit of b, LSB first. The result always holds
// 8*len(b) values.
func BytesToBools(b []byte) []bool {
	out := make([]bool, 8*len(b))
	for i := range out {
		out[i] = b[i/8]&(1<<(uint(i)%8)) != 0
	}
	return out
}

// IsBitSet reports whether bit is set in buf, counting from the least
// significant bit of buf[0].
func IsBitSet(buf []byte, bit int) (bool, error) {
	if bit < 0 || bit >= 8*len(buf) {
		return false, fmt.Errorf("bit %d out of range for %d byte(s)", bit, len(buf))
	}
	return buf[bit/8]&(1<<(uint(bit)%8)) != 0, nil
}

// IsBitSetUint reports whether bit is set in v. The addressable width is the
// host word size, so bit 32 and above fail on 32-bit platforms.
func IsBitSetUint(v uint, bit int) (bool, error) {
	if bit < 0 || bit >= bits.UintSize {
		return false, fmt.Errorf("bit %d out of range for %d-bit integer", bit, bits.UintSize)
	}
	return v&(1<<uint(bit)) != 0, nil
}

// CheckBit16 reports whether bit (0-15) of a register word is set.
func CheckBit16(word uint16, bit int) (bool, error) {
	if bit < 0 || bit > 15 {
		return false, fmt.Errorf("bit %d out of range for a register (0-15)", bit)
	}
	return word&(1<<uint(bit)) != 0, nil
}
