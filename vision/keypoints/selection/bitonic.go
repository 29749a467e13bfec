// Package selection reduces a tile's raw corner candidates to its bounded best set: non-maximal
// suppression, a bitonic top-K and a compacting clean pass.
package selection

import (
	"math"
	"sync"

	"github.com/ajroetker/go-highway/hwy"
	"github.com/pkg/errors"

	"go.viam.com/stereoorb/utils"
)

const (
	// GroupLanes is the number of 16-bit entries in one group.
	GroupLanes = 64
	// MaxGroups is the largest group count a network is built for.
	MaxGroups = 16
	// MaxEntries is the most entries one sort accepts.
	MaxEntries = MaxGroups * GroupLanes
)

// Order is the direction of a sort.
type Order int

// The two sort directions.
const (
	Ascending Order = iota
	Descending
)

// stage is one layer of the network. After it runs, slot lo[x] holds the smaller of the pair
// (lo[x], hi[x]).
type stage struct {
	lo, hi []uint16
}

// Network is the compare-exchange schedule sorting groups*GroupLanes entries. The schedule spans
// the next power of two; the slots past the real entries hold pads.
type Network struct {
	groups int
	size   int
	stages []stage
}

// Groups returns the group count the network sorts.
func (n *Network) Groups() int {
	return n.groups
}

// Size returns the padded number of slots the network runs over.
func (n *Network) Size() int {
	return n.size
}

func buildNetwork(groups int) *Network {
	size := utils.NextPowerOfTwo(groups * GroupLanes)
	net := &Network{groups: groups, size: size}
	for k := 2; k <= size; k <<= 1 {
		for j := k >> 1; j > 0; j >>= 1 {
			st := stage{lo: make([]uint16, 0, size/2), hi: make([]uint16, 0, size/2)}
			for i := 0; i < size; i++ {
				l := i ^ j
				if l <= i {
					continue
				}
				if i&k == 0 {
					st.lo, st.hi = append(st.lo, uint16(i)), append(st.hi, uint16(l))
				} else {
					st.lo, st.hi = append(st.lo, uint16(l)), append(st.hi, uint16(i))
				}
			}
			net.stages = append(net.stages, st)
		}
	}
	return net
}

var (
	networksOnce sync.Once
	networks     [MaxGroups + 1]*Network
)

// NetworkFor returns the precomputed network for the given group count.
func NetworkFor(groups int) (*Network, error) {
	if groups < 1 || groups > MaxGroups {
		return nil, errors.Errorf("bitonic network supports 1 to %d groups, got %d", MaxGroups, groups)
	}
	networksOnce.Do(func() {
		for g := 1; g <= MaxGroups; g++ {
			networks[g] = buildNetwork(g)
		}
	})
	return networks[groups], nil
}

// padEntry ranks after every real entry. A real entry with the same bits is indistinguishable
// from it, so which of the two lands inside the first n slots does not show in the output.
const padEntry = math.MaxUint32

// Sorter sorts (key, payload) pairs of up to MaxEntries entries with the bitonic networks. It
// holds scratch and is not safe for concurrent use.
type Sorter struct {
	entries []uint32
	a, b    []uint32
}

// NewSorter returns a sorter with scratch for the largest network.
func NewSorter() *Sorter {
	size := utils.NextPowerOfTwo(MaxEntries)
	return &Sorter{
		entries: make([]uint32, size),
		a:       make([]uint32, size/2),
		b:       make([]uint32, size/2),
	}
}

// Entries are sorted ascending as key<<16|payload, with the key flipped for descending order.
func packEntry(key, val uint16, order Order) uint32 {
	if order == Descending {
		key = math.MaxUint16 - key
	}
	return uint32(key)<<16 | uint32(val)
}

func unpackEntry(e uint32, order Order) (key, val uint16) {
	key, val = uint16(e>>16), uint16(e)
	if order == Descending {
		key = math.MaxUint16 - key
	}
	return key, val
}

// Sort orders keys in place and moves vals with them. Among equal keys the smaller payload comes
// first, in both orders, so the result does not depend on the group count the network was built
// for.
func (s *Sorter) Sort(keys, vals []uint16, order Order) error {
	n := len(keys)
	if len(vals) != n {
		return errors.Errorf("sort has %d keys but %d payloads", n, len(vals))
	}
	if n < 2 {
		return nil
	}
	if n > MaxEntries {
		return utils.NewCapacityError("bitonic sort", n, MaxEntries)
	}
	net, err := NetworkFor(utils.CeilDiv(n, GroupLanes))
	if err != nil {
		return err
	}

	entries := s.entries[:net.size]
	for i := range entries {
		if i < n {
			entries[i] = packEntry(keys[i], vals[i], order)
		} else {
			entries[i] = padEntry
		}
	}
	for _, st := range net.stages {
		s.exchange(entries, st)
	}
	for i := 0; i < n; i++ {
		keys[i], vals[i] = unpackEntry(entries[i], order)
	}
	return nil
}

// exchange gathers the stage's pairs into two lane arrays, takes lane-wise min and max and
// scatters them back.
func (s *Sorter) exchange(entries []uint32, st stage) {
	a, b := s.a[:len(st.lo)], s.b[:len(st.hi)]
	for x, i := range st.lo {
		a[x] = entries[i]
	}
	for x, i := range st.hi {
		b[x] = entries[i]
	}
	hwy.ProcessWithTail[uint32](len(a),
		func(offset int) {
			va, vb := hwy.Load(a[offset:]), hwy.Load(b[offset:])
			hwy.Store(hwy.Min(va, vb), a[offset:])
			hwy.Store(hwy.Max(va, vb), b[offset:])
		},
		func(offset, count int) {
			mask := hwy.TailMask[uint32](count)
			va, vb := hwy.MaskLoad(mask, a[offset:]), hwy.MaskLoad(mask, b[offset:])
			hwy.MaskStore(mask, hwy.Min(va, vb), a[offset:])
			hwy.MaskStore(mask, hwy.Max(va, vb), b[offset:])
		},
	)
	for x, i := range st.lo {
		entries[i] = a[x]
	}
	for x, i := range st.hi {
		entries[i] = b[x]
	}
}
