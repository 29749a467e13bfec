// Package matchcache keeps the stereo match results of the last few frames for consumers that read
// them after the frame call has returned.
package matchcache

import (
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/stereoorb/utils"
)

// DefaultSize is the number of frames kept.
const DefaultSize = 3

// ErrStaleSlot is returned when the frame's slot already holds a newer frame.
var ErrStaleSlot = errors.New("match slot was overwritten by a newer frame")

// ErrNotPublished is returned when no frame has reached the slot yet.
var ErrNotPublished = errors.New("match slot holds no frame yet")

// Slot holds the k=2 results of one frame. Indices[i] is the nearest right stereo point of left
// stereo point i.
type Slot struct {
	FrameID    uint64
	Indices    []uint16
	Distances1 []uint16
	Distances2 []uint16
	Count      int

	valid bool
}

// Ring is a fixed ring of match slots. Producer and consumers both map a frame to its slot with
// SlotFor.
type Ring struct {
	mu       sync.RWMutex
	slots    []Slot
	capacity int
}

// NewRing returns a ring of size slots, each holding up to capacity matches.
func NewRing(size, capacity int) (*Ring, error) {
	if size < 1 {
		return nil, errors.Errorf("ring size must be positive, got %d", size)
	}
	r := &Ring{slots: make([]Slot, size), capacity: capacity}
	for i := range r.slots {
		r.slots[i] = Slot{
			Indices:    make([]uint16, capacity),
			Distances1: make([]uint16, capacity),
			Distances2: make([]uint16, capacity),
		}
	}
	return r, nil
}

// Size is the number of slots.
func (r *Ring) Size() int {
	return len(r.slots)
}

// SlotFor maps a frame id to its slot.
func (r *Ring) SlotFor(frameID uint64) int {
	return int(frameID % uint64(len(r.slots)))
}

// Publish stores a frame's results in its slot, replacing whatever frame was there.
func (r *Ring) Publish(frameID uint64, indices, dist1, dist2 []uint16) error {
	n := len(indices)
	if len(dist1) != n || len(dist2) != n {
		return errors.Errorf("match arrays differ in length: %d, %d, %d", n, len(dist1), len(dist2))
	}
	if n > r.capacity {
		return utils.NewCapacityError("match slot", n, r.capacity)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	s := &r.slots[r.SlotFor(frameID)]
	s.FrameID = frameID
	s.Count = n
	copy(s.Indices, indices)
	copy(s.Distances1, dist1)
	copy(s.Distances2, dist2)
	s.valid = true
	return nil
}

// ReadMatchSlot returns a copy of the frame's results.
func (r *Ring) ReadMatchSlot(frameID uint64) (Slot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := &r.slots[r.SlotFor(frameID)]
	if !s.valid || s.FrameID < frameID {
		return Slot{}, ErrNotPublished
	}
	if s.FrameID != frameID {
		return Slot{}, errors.Wrapf(ErrStaleSlot, "frame %d, slot holds frame %d", frameID, s.FrameID)
	}
	return Slot{
		FrameID:    s.FrameID,
		Indices:    append([]uint16(nil), s.Indices[:s.Count]...),
		Distances1: append([]uint16(nil), s.Distances1[:s.Count]...),
		Distances2: append([]uint16(nil), s.Distances2[:s.Count]...),
		Count:      s.Count,
		valid:      true,
	}, nil
}
