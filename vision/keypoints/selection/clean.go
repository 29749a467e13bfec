package selection

import (
	"github.com/ajroetker/go-highway/hwy"

	"go.viam.com/stereoorb/utils"
	"go.viam.com/stereoorb/vision/keypoints"
)

// Clean compacts the first n entries scoring above minScore to the front, keeping their order, and
// stops once limit entries are kept. Positions and scores are compressed under the same keep mask.
// The rest of the last kept group, as far as the slices reach, is filled with score 0 at
// InvalidPosition. It returns the kept count.
func Clean(pos, scores []uint16, n int, minScore uint16, limit int) int {
	n = min(n, len(pos), len(scores))
	limit = max(min(limit, n), 0)
	kept := 0
	threshold := hwy.Set(minScore)
	compress := func(keep hwy.Mask[uint16], vp, vs hwy.Vec[uint16]) {
		// kept never passes the read offset, so the compacted lanes land behind unread entries.
		stored := hwy.CompressBlendedStore(vs, keep, scores[kept:limit])
		hwy.CompressBlendedStore(vp, keep, pos[kept:limit])
		kept = min(kept+stored, limit)
	}
	hwy.ProcessWithTail[uint16](n,
		func(offset int) {
			if kept >= limit {
				return
			}
			vs, vp := hwy.Load(scores[offset:]), hwy.Load(pos[offset:])
			compress(hwy.GreaterThan(vs, threshold), vp, vs)
		},
		func(offset, count int) {
			if kept >= limit {
				return
			}
			tail := hwy.TailMask[uint16](count)
			vs, vp := hwy.MaskLoad(tail, scores[offset:]), hwy.MaskLoad(tail, pos[offset:])
			compress(hwy.MaskAnd(tail, hwy.GreaterThan(vs, threshold)), vp, vs)
		},
	)

	padEnd := min(utils.RoundUp(kept, GroupLanes), len(pos), len(scores))
	for i := kept; i < padEnd; i++ {
		pos[i] = uint16(keypoints.InvalidPosition)
		scores[i] = 0
	}
	return kept
}
