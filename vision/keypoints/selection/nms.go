package selection

import (
	"go.viam.com/stereoorb/vision/keypoints"
)

// SuppressPass zeroes the score of every entry whose array neighbour sits at position ±1 with a
// strictly greater score. All entries are judged against the scores as they were before the pass.
// prev is scratch of at least len(scores).
func SuppressPass(pos, scores, prev []uint16) {
	n := len(pos)
	prev = prev[:n]
	copy(prev, scores)
	for i := 0; i < n; i++ {
		if i > 0 && pos[i-1]+1 == pos[i] && prev[i-1] > prev[i] {
			scores[i] = 0
			continue
		}
		if i+1 < n && pos[i+1]-1 == pos[i] && prev[i+1] > prev[i] {
			scores[i] = 0
		}
	}
}

// TransposePositions swaps the row and column fields of every packed position. It is its own
// inverse, and sorting by transposed positions orders entries column by column, so SuppressPass
// then compares vertical neighbours.
func TransposePositions(pos []uint16) {
	for i, p := range pos {
		pos[i] = uint16(keypoints.Position(p).Transpose())
	}
}

// Suppress runs two dimensional non-maximal suppression over one tile's entries: a raster-ordered
// horizontal pass, then the same pass in transposed order. Positions come back in row-major form,
// sorted column-major; suppressed entries keep their slot with a zero score.
func (s *Selector) Suppress(pos, scores []uint16) error {
	if len(pos) == 0 {
		return nil
	}
	if err := s.sorter.Sort(pos, scores, Ascending); err != nil {
		return err
	}
	SuppressPass(pos, scores, s.prev)

	TransposePositions(pos)
	if err := s.sorter.Sort(pos, scores, Ascending); err != nil {
		return err
	}
	SuppressPass(pos, scores, s.prev)
	TransposePositions(pos)
	return nil
}
