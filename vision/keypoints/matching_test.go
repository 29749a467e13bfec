package keypoints

import (
	"math/rand/v2"
	"sort"
	"testing"

	"go.viam.com/test"
)

func randomDescriptors(rng *rand.Rand, n int) []Descriptor {
	descs := make([]Descriptor, n)
	for i := range descs {
		for j := range descs[i] {
			descs[i][j] = uint8(rng.IntN(256))
		}
	}
	return descs
}

// bruteForce2 is the reference: first index of the minimal distance and second smallest of the
// multiset of distances.
func bruteForce2(q *Descriptor, cands []Descriptor) (int, int, int) {
	if len(cands) == 0 {
		return 0, noMatchDistance, noMatchDistance
	}
	dists := make([]int, len(cands))
	best := 0
	for i := range cands {
		dists[i] = HammingDistance(q, &cands[i])
		if dists[i] < dists[best] {
			best = i
		}
	}
	d1 := dists[best]
	sort.Ints(dists)
	d2 := noMatchDistance
	if len(dists) > 1 {
		d2 = dists[1]
	}
	return best, d1, d2
}

func TestKnnMatch2AgainstBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))
	for _, tc := range []struct{ queries, cands int }{
		{4, 8},
		{5, 1},
		{3, 64},
		{3, 65},
		{2, 127},
		{17, 200},
	} {
		queries := randomDescriptors(rng, tc.queries)
		cands := randomDescriptors(rng, tc.cands)
		// a planted near duplicate
		cands[len(cands)/2] = queries[0]
		cands[len(cands)/2][3] ^= 0x11

		idx := make([]uint16, tc.queries)
		d1 := make([]uint16, tc.queries)
		d2 := make([]uint16, tc.queries)
		test.That(t, KnnMatch2(queries, cands, idx, d1, d2), test.ShouldBeNil)
		for i := range queries {
			best, want1, want2 := bruteForce2(&queries[i], cands)
			test.That(t, int(idx[i]), test.ShouldEqual, best)
			test.That(t, int(d1[i]), test.ShouldEqual, want1)
			test.That(t, int(d2[i]), test.ShouldEqual, want2)
			test.That(t, d1[i], test.ShouldBeLessThanOrEqualTo, d2[i])
		}
		test.That(t, idx[0], test.ShouldEqual, uint16(len(cands)/2))
		test.That(t, d1[0], test.ShouldEqual, uint16(2))
	}
}

func TestKnnMatch2Ties(t *testing.T) {
	var q, far Descriptor
	far[0] = 0xFF
	near := q
	near[5] = 0x01
	// candidates 1, 3 and 70 are equally near; 70 sits in the second batch
	cands := make([]Descriptor, 80)
	for i := range cands {
		cands[i] = far
	}
	cands[3] = near
	cands[1] = near
	cands[70] = near

	idx, d1, d2 := make([]uint16, 1), make([]uint16, 1), make([]uint16, 1)
	test.That(t, KnnMatch2([]Descriptor{q}, cands, idx, d1, d2), test.ShouldBeNil)
	test.That(t, idx[0], test.ShouldEqual, uint16(1))
	test.That(t, d1[0], test.ShouldEqual, uint16(1))
	test.That(t, d2[0], test.ShouldEqual, uint16(1))
}

func TestKnnMatch2Empty(t *testing.T) {
	queries := randomDescriptors(rand.New(rand.NewPCG(1, 1)), 3)
	idx := []uint16{9, 9, 9}
	d1 := make([]uint16, 3)
	d2 := make([]uint16, 3)
	test.That(t, KnnMatch2(queries, nil, idx, d1, d2), test.ShouldBeNil)
	test.That(t, idx, test.ShouldResemble, []uint16{0, 0, 0})
	test.That(t, d1, test.ShouldResemble, []uint16{512, 512, 512})
	test.That(t, d2, test.ShouldResemble, []uint16{512, 512, 512})

	// nothing to do for no queries
	test.That(t, KnnMatch2(nil, queries, nil, nil, nil), test.ShouldBeNil)
}

func TestKnnMatch2Capacity(t *testing.T) {
	big := make([]Descriptor, MaxMatch+1)
	small := make([]Descriptor, 2)
	out := make([]uint16, MaxMatch+1)

	err := KnnMatch2(big, small, out, out, out)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "match queries")

	err = KnnMatch2(small, big, out, out, out)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "match candidates")

	err = KnnMatch2(small, small, out[:1], out, out)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "match output")

	test.That(t, KnnMatch2(big[:MaxMatch], small, out, make([]uint16, MaxMatch), make([]uint16, MaxMatch)), test.ShouldBeNil)
}

func TestFilterMatches(t *testing.T) {
	indices := []uint16{4, 7, 1, 0, 2}
	dist1 := []uint16{30, 10, 90, 512, 20}
	dist2 := []uint16{100, 12, 200, 512, 80}

	all := FilterMatches(indices, dist1, dist2, MatchingConfig{})
	test.That(t, all, test.ShouldResemble, []DescriptorMatch{
		{Idx1: 1, Idx2: 7, Distance: 10},
		{Idx1: 4, Idx2: 2, Distance: 20},
		{Idx1: 0, Idx2: 4, Distance: 30},
		{Idx1: 2, Idx2: 1, Distance: 90},
	})

	ratio := FilterMatches(indices, dist1, dist2, MatchingConfig{Ratio: 0.5})
	test.That(t, ratio, test.ShouldResemble, []DescriptorMatch{
		{Idx1: 4, Idx2: 2, Distance: 20},
		{Idx1: 0, Idx2: 4, Distance: 30},
		{Idx1: 2, Idx2: 1, Distance: 90},
	})

	both := FilterMatches(indices, dist1, dist2, MatchingConfig{Ratio: 0.5, MaxDist: 30})
	test.That(t, both, test.ShouldResemble, []DescriptorMatch{{Idx1: 4, Idx2: 2, Distance: 20}})

	test.That(t, FilterMatches(nil, nil, nil, MatchingConfig{}), test.ShouldBeEmpty)
}
