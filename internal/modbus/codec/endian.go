package codec

// Endianness policy for multi-byte register values.
//
// Modbus only fixes the byte order of a single 16-bit register (big-endian).
// Devices disagree on how wider values are laid out across registers, so the
// codec takes an Endianness for every multi-byte operation.

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync/atomic"
)

// Endianness is a set of layout flags for values spanning one or more registers.
type Endianness uint8

const (
	// Auto resolves to the process default (see DefaultEndianness).
	Auto Endianness = 0

	BigEndian    Endianness = 1 << 0 // bytes within a word: high byte first
	LittleEndian Endianness = 1 << 1 // bytes within a word: low byte first
	LowWordFirst Endianness = 1 << 2 // words: least significant word first

	BigEndianLowWordFirst    = BigEndian | LowWordFirst
	LittleEndianLowWordFirst = LittleEndian | LowWordFirst
)

var defaultEndianness atomic.Uint32

func init() {
	defaultEndianness.Store(uint32(BigEndianLowWordFirst))
}

// DefaultEndianness returns the process-wide default.
func DefaultEndianness() Endianness {
	return Endianness(defaultEndianness.Load())
}

// SetDefaultEndianness replaces the process-wide default. Passing Auto
// restores BigEndianLowWordFirst. An invalid flag combination leaves the
// default unchanged.
func SetDefaultEndianness(e Endianness) error {
	if !e.Valid() {
		return fmt.Errorf("invalid endianness %#x", uint8(e))
	}
	if e == Auto {
		e = BigEndianLowWordFirst
	}
	defaultEndianness.Store(uint32(e))
	return nil
}

// CurrentEndianness returns override unless it is Auto, in which case the
// process default is returned.
func CurrentEndianness(override Endianness) Endianness {
	if override == Auto {
		return DefaultEndianness()
	}
	return override
}

// byteOrder returns the intra-word byte order for e.
func (e Endianness) byteOrder() binary.ByteOrder {
	if e&LittleEndian != 0 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// lowWordFirst reports whether the least significant word is written first.
func (e Endianness) lowWordFirst() bool {
	return e&LowWordFirst != 0
}

// Valid reports whether e names exactly one byte order.
func (e Endianness) Valid() bool {
	if e == Auto {
		return true
	}
	if e&^(BigEndian|LittleEndian|LowWordFirst) != 0 {
		return false
	}
	hasBig := e&BigEndian != 0
	hasLittle := e&LittleEndian != 0
	return hasBig != hasLittle
}

// String returns the canonical name of e.
func (e Endianness) String() string {
	switch e {
	case Auto:
		return "auto"
	case BigEndian:
		return "big_endian"
	case LittleEndian:
		return "little_endian"
	case BigEndianLowWordFirst:
		return "big_endian_low_word_first"
	case LittleEndianLowWordFirst:
		return "little_endian_low_word_first"
	default:
		return fmt.Sprintf("Endianness(%d)", uint8(e))
	}
}

// ParseEndianness parses a canonical name or a byte-position alias
// (ABCD, CDAB, BADC, DCBA) as used by device register maps.
func ParseEndianness(s string) (Endianness, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return Auto, nil
	case "big_endian", "big", "abcd":
		return BigEndian, nil
	case "big_endian_low_word_first", "cdab":
		return BigEndianLowWordFirst, nil
	case "little_endian", "little", "badc":
		return LittleEndian, nil
	case "little_endian_low_word_first", "dcba":
		return LittleEndianLowWordFirst, nil
	default:
		return Auto, fmt.Errorf("unknown endianness %q", s)
	}
}
