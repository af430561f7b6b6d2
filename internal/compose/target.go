// Package compose packs named, typed Modbus addresses into the minimum
// number of protocol-legal requests and maps responses back to names.
//
// Callers describe what they want (a float at 100, a bit of register 7, a
// string at 300) through a builder. Build groups the addresses per target,
// sorts them, merges neighbours up to the per-function quantity cap and
// returns one composed request per resulting chunk. Each composed request
// can parse the device's response frame into a name → value map.
package compose

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/tturner/mbcompose/internal/modbus"
)

// targetSeparator joins URI and unit id in a target's string form.
const targetSeparator = "||unitId="

// Target is one device: a connection URI plus a unit id on that connection.
type Target struct {
	URI    string
	UnitID uint8
}

func (t Target) String() string {
	return t.URI + targetSeparator + strconv.Itoa(int(t.UnitID))
}

func (t Target) validate() error {
	if t.URI == "" {
		return fmt.Errorf("%w: target URI is empty", modbus.ErrConfiguration)
	}
	return nil
}

func compareTargets(a, b Target) int {
	if c := cmp.Compare(a.URI, b.URI); c != 0 {
		return c
	}
	return cmp.Compare(a.UnitID, b.UnitID)
}

// group accumulates addresses per target. Re-adding a key replaces the
// earlier entry.
type group[K comparable, A Address] struct {
	entries map[Target]map[K]A
}

func newGroup[K comparable, A Address]() group[K, A] {
	return group[K, A]{entries: make(map[Target]map[K]A)}
}

func (g group[K, A]) put(t Target, key K, a A) {
	m, ok := g.entries[t]
	if !ok {
		m = make(map[K]A)
		g.entries[t] = m
	}
	m[key] = a
}

// targets returns the targets in ascending order.
func (g group[K, A]) targets() []Target {
	return slices.SortedFunc(maps.Keys(g.entries), compareTargets)
}

// addresses returns the entries of t sorted by address, then size, then name.
func (g group[K, A]) addresses(t Target) []A {
	out := slices.Collect(maps.Values(g.entries[t]))
	slices.SortFunc(out, compareAddresses[A])
	return out
}

func compareAddresses[A Address](a, b A) int {
	if c := cmp.Compare(a.Address(), b.Address()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Size(), b.Size()); c != 0 {
		return c
	}
	return cmp.Compare(a.Name(), b.Name())
}
