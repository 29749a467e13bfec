package keypoints

import (
	"encoding/binary"

	"github.com/ajroetker/go-highway/hwy"
	"gonum.org/v1/gonum/floats"

	"go.viam.com/stereoorb/utils"
)

const (
	// MaxMatch bounds both sides of one matching call.
	MaxMatch = 8196
	// MatchBatch is the number of candidates scanned per step.
	MatchBatch = 64
	// noMatchDistance is larger than any possible Hamming distance between two descriptors.
	noMatchDistance = 2 * PatternPairs
)

// descriptorLanes is the number of 64-bit words in a descriptor.
const descriptorLanes = DescriptorBytes / 8

// transposed holds candidate descriptors word-major: word w of candidate j is words[w][j], so one
// vector load reads the same word of consecutive candidates.
type transposed struct {
	words [descriptorLanes][]uint64
}

func transpose(descs []Descriptor) *transposed {
	t := &transposed{}
	for w := range t.words {
		t.words[w] = make([]uint64, len(descs))
	}
	for j := range descs {
		for w := range t.words {
			t.words[w][j] = binary.LittleEndian.Uint64(descs[j][8*w:])
		}
	}
	return t
}

// distances writes the Hamming distances from query to candidates [start, start+len(dist)).
func (t *transposed) distances(query *[descriptorLanes]hwy.Vec[uint64], start int, dist []uint64) {
	hwy.ProcessWithTail[uint64](len(dist),
		func(offset int) {
			acc := hwy.Zero[uint64]()
			for w, q := range query {
				acc = hwy.Add(acc, hwy.PopCount(hwy.Xor(hwy.Load(t.words[w][start+offset:]), q)))
			}
			hwy.Store(acc, dist[offset:])
		},
		func(offset, count int) {
			mask := hwy.TailMask[uint64](count)
			acc := hwy.Zero[uint64]()
			for w, q := range query {
				acc = hwy.Add(acc, hwy.PopCount(hwy.Xor(hwy.MaskLoad(mask, t.words[w][start+offset:]), q)))
			}
			hwy.MaskStore(mask, acc, dist[offset:])
		},
	)
}

// KnnMatch2 finds, for every query, the nearest and second nearest candidate by Hamming distance.
// indices[i] is the nearest candidate of queries[i]; dist1 and dist2 hold the two distances.
// A strictly smaller distance is needed to displace the current best, so among equal distances
// the lowest candidate index wins. With no candidates every query reports index 0 and distance
// 512 twice.
func KnnMatch2(queries, candidates []Descriptor, indices, dist1, dist2 []uint16) error {
	if len(queries) > MaxMatch {
		return utils.NewCapacityError("match queries", len(queries), MaxMatch)
	}
	if len(candidates) > MaxMatch {
		return utils.NewCapacityError("match candidates", len(candidates), MaxMatch)
	}
	if len(indices) < len(queries) || len(dist1) < len(queries) || len(dist2) < len(queries) {
		return utils.NewCapacityError("match output", len(queries), min(len(indices), len(dist1), len(dist2)))
	}

	cands := transpose(candidates)
	var batch [MatchBatch]uint64
	var query [descriptorLanes]hwy.Vec[uint64]
	for q := range queries {
		for w := range query {
			query[w] = hwy.Set(binary.LittleEndian.Uint64(queries[q][8*w:]))
		}
		best1, best2, bestIdx := noMatchDistance, noMatchDistance, 0
		for start := 0; start < len(candidates); start += MatchBatch {
			dist := batch[:min(MatchBatch, len(candidates)-start)]
			cands.distances(&query, start, dist)
			for j, d64 := range dist {
				d := int(d64)
				if d < best1 {
					best2 = best1
					best1 = d
					bestIdx = start + j
				} else if d < best2 {
					best2 = d
				}
			}
		}
		indices[q] = uint16(bestIdx)
		dist1[q] = uint16(best1)
		dist2[q] = uint16(best2)
	}
	return nil
}

// MatchingConfig contains the parameters for filtering k=2 matches.
type MatchingConfig struct {
	// MaxDist rejects matches at or beyond this distance when positive.
	MaxDist int `json:"max_dist"`
	// Ratio rejects matches whose best distance is not below Ratio times the second best when
	// positive.
	Ratio float64 `json:"ratio"`
}

// DescriptorMatch contains the index of a match in the query and candidate sets.
type DescriptorMatch struct {
	Idx1     int
	Idx2     int
	Distance int
}

// FilterMatches keeps the k=2 results passing cfg and returns them sorted by distance.
func FilterMatches(indices, dist1, dist2 []uint16, cfg MatchingConfig) []DescriptorMatch {
	kept := make([]DescriptorMatch, 0, len(indices))
	for i := range indices {
		d1, d2 := int(dist1[i]), int(dist2[i])
		if d1 >= noMatchDistance {
			continue
		}
		if cfg.MaxDist > 0 && d1 >= cfg.MaxDist {
			continue
		}
		if cfg.Ratio > 0 && float64(d1) >= cfg.Ratio*float64(d2) {
			continue
		}
		kept = append(kept, DescriptorMatch{Idx1: i, Idx2: int(indices[i]), Distance: d1})
	}

	dists := make([]float64, len(kept))
	for i, m := range kept {
		dists[i] = float64(m.Distance)
	}
	order := make([]int, len(kept))
	floats.Argsort(dists, order)
	sorted := make([]DescriptorMatch, len(kept))
	for i, idx := range order {
		sorted[i] = kept[idx]
	}
	return sorted
}
