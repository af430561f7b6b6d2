package codec

// Slot is one entry of a register array: nil reserves an empty register, a
// single byte occupies the low half of a register, and anything longer is a
// pre-encoded value spanning len/2 registers (rounded up).
type Slot []byte

// RegisterSlots is an ordered, heterogeneous register array.
type RegisterSlots []Slot

// ByteSize returns the number of bytes the slots serialize to.
func (s RegisterSlots) ByteSize() int {
	n := 0
	for _, slot := range s {
		n += slot.byteSize()
	}
	return n
}

// Registers returns the number of registers the slots occupy.
func (s RegisterSlots) Registers() int {
	return s.ByteSize() / 2
}

// Bytes concatenates all slots, widening single bytes and empty slots to a
// full register.
func (s RegisterSlots) Bytes() []byte {
	out := make([]byte, 0, s.ByteSize())
	for _, slot := range s {
		switch len(slot) {
		case 0:
			out = append(out, 0, 0)
		case 1:
			out = append(out, 0, slot[0])
		default:
			out = append(out, slot...)
			if len(slot)%2 != 0 {
				out = append(out, 0)
			}
		}
	}
	return out
}

func (s Slot) byteSize() int {
	if len(s) <= 1 {
		return 2
	}
	return len(s) + len(s)%2
}
