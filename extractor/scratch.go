package extractor

import (
	"go.viam.com/stereoorb/utils"
	"go.viam.com/stereoorb/vision/keypoints"
)

// matchBuffers holds one frame's k=2 results. Each eye worker writes a disjoint range.
type matchBuffers struct {
	indices []uint16
	dist1   []uint16
	dist2   []uint16
	count   int
}

// matched is the number of queries that have results, at most the buffer length.
func (m *matchBuffers) matched() int {
	return min(m.count, len(m.indices))
}

func newMatchBuffers() *matchBuffers {
	return &matchBuffers{
		indices: make([]uint16, keypoints.MaxMatch),
		dist1:   make([]uint16, keypoints.MaxMatch),
		dist2:   make([]uint16, keypoints.MaxMatch),
	}
}

// scratchPool is a fixed set of per-frame reservations. acquire never blocks: an empty pool
// means every reservation is held by a frame in flight.
type scratchPool struct {
	free chan *matchBuffers
}

func newScratchPool(slots int) *scratchPool {
	p := &scratchPool{free: make(chan *matchBuffers, slots)}
	for i := 0; i < slots; i++ {
		p.free <- newMatchBuffers()
	}
	return p
}

func (p *scratchPool) acquire() (*matchBuffers, error) {
	select {
	case m := <-p.free:
		m.count = 0
		return m, nil
	default:
		return nil, utils.ErrScratchExhausted
	}
}

func (p *scratchPool) release(m *matchBuffers) {
	p.free <- m
}

// drain takes back every reservation. It is only called once the workers are stopped.
func (p *scratchPool) drain() {
	for {
		select {
		case <-p.free:
		default:
			return
		}
	}
}
