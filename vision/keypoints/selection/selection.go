package selection

import (
	"go.viam.com/stereoorb/utils"
	"go.viam.com/stereoorb/vision/keypoints"
)

// Params bounds one tile's selection.
type Params struct {
	// MaxFeatures is K, the most entries kept per tile.
	MaxFeatures int
	// MinScore is the score an entry must exceed to be kept.
	MinScore uint16
}

// Selector runs selection for one eye. Its scratch is reused from tile to tile, so it is not safe
// for concurrent use.
type Selector struct {
	sorter *Sorter
	pos    []uint16
	scores []uint16
	prev   []uint16
}

// NewSelector allocates scratch for the largest tile a network accepts.
func NewSelector() *Selector {
	return &Selector{
		sorter: NewSorter(),
		pos:    make([]uint16, MaxEntries),
		scores: make([]uint16, MaxEntries),
		prev:   make([]uint16, MaxEntries),
	}
}

// TopK sorts entries by descending score and returns how many of them fall within k.
func (s *Selector) TopK(pos, scores []uint16, k int) (int, error) {
	if err := s.sorter.Sort(scores, pos, Descending); err != nil {
		return 0, err
	}
	return min(k, len(pos)), nil
}

// Select reduces one tile's raw candidates to its final set, in descending score order, written
// into dst. The result is padded to a whole group with zero score entries at InvalidPosition; the
// second return is the number of real entries. dst needs room for MaxFeatures rounded up to
// GroupLanes.
func (s *Selector) Select(cands []keypoints.Candidate, params Params, dst []keypoints.Candidate) ([]keypoints.Candidate, int, error) {
	n := len(cands)
	if n == 0 {
		return dst[:0], 0, nil
	}
	if n > MaxEntries {
		return nil, 0, utils.NewCapacityError("tile selection", n, MaxEntries)
	}
	padded := utils.RoundUp(params.MaxFeatures, GroupLanes)
	if len(dst) < padded {
		return nil, 0, utils.NewCapacityError("selection output", padded, len(dst))
	}

	pos, scores := s.pos[:n], s.scores[:n]
	for i, c := range cands {
		pos[i] = uint16(c.Pos)
		scores[i] = c.Score
	}

	if err := s.Suppress(pos, scores); err != nil {
		return nil, 0, err
	}
	k, err := s.TopK(pos, scores, params.MaxFeatures)
	if err != nil {
		return nil, 0, err
	}

	// Clean may pad up to the group boundary past k.
	end := min(utils.RoundUp(k, GroupLanes), MaxEntries)
	kept := Clean(s.pos[:end], s.scores[:end], k, params.MinScore, k)

	out := dst[:utils.RoundUp(kept, GroupLanes)]
	for i := range out {
		out[i] = keypoints.Candidate{Pos: keypoints.Position(s.pos[i]), Score: s.scores[i]}
	}
	return out, kept, nil
}
