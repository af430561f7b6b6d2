package compose

import (
	"github.com/tturner/mbcompose/internal/modbus"
)

// chunk is a run of addresses that fits in one request.
type chunk[A Address] struct {
	start     uint16
	end       int // exclusive
	addresses []A
}

func (c chunk[A]) quantity() int { return c.end - int(c.start) }

// splitter walks sorted addresses and cuts them into chunks. Reads allow
// overlapping addresses inside a chunk; writes reject them.
type splitter[A Address] struct {
	fc           modbus.FunctionCode
	max          int
	checkOverlap bool
}

func (s splitter[A]) split(t Target, addrs []A) ([]chunk[A], error) {
	var (
		chunks []chunk[A]
		cur    *chunk[A]
		prev   A
	)
	for i, a := range addrs {
		size, start := a.Size(), int(a.Address())
		if size > s.max {
			return nil, configError("%s at %d spans %d, above the %s limit of %d", a.Name(), start, size, s.fc, s.max)
		}
		if start+size > 0x10000 {
			return nil, configError("%s at %d (%d wide) runs past the end of the address space", a.Name(), start, size)
		}
		end := start + size

		if i > 0 {
			split, err := s.shouldSplit(t, cur, prev, a)
			if err != nil {
				return nil, err
			}
			if split {
				chunks = append(chunks, *cur)
				cur = nil
			}
		}
		if cur == nil {
			cur = &chunk[A]{start: a.Address(), end: end}
		}
		cur.end = max(cur.end, end)
		cur.addresses = append(cur.addresses, a)
		prev = a
	}
	if cur != nil {
		chunks = append(chunks, *cur)
	}
	return chunks, nil
}

func (s splitter[A]) shouldSplit(t Target, cur *chunk[A], prev, a A) (bool, error) {
	start := int(a.Address())
	if s.checkOverlap && start < int(prev.Address())+prev.Size() {
		return false, &OverlapError{Target: t, First: prev, Second: a}
	}
	if max(cur.end, start+a.Size())-int(cur.start) > s.max {
		return true, nil
	}
	return start > cur.end, nil
}
