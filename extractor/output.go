package extractor

import (
	"go.viam.com/stereoorb/vision/keypoints"
)

// Status is the result code of ExtractFeatures. Anything but StatusOK means the outputs were not
// written.
type Status int

// Status codes.
const (
	StatusOK Status = iota
	StatusScratchExhausted
	StatusInvalidInput
	StatusClosed
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusScratchExhausted:
		return "scratch exhausted"
	case StatusInvalidInput:
		return "invalid input"
	case StatusClosed:
		return "closed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// EyeOutput receives one eye's points. The slices are allocated by the caller; their lengths are
// the capacities and nothing is written past them. Descriptors holds 32 bytes per point.
type EyeOutput struct {
	X           []int32
	Y           []int32
	Angle       []int32
	Level       []int32
	Descriptors []byte

	// Total and Mono are the true counts, even when the slices were too short for them.
	Total int
	Mono  int
}

// Stereo is the number of stereo points, stored from index Mono to Total-1.
func (eo *EyeOutput) Stereo() int {
	return eo.Total - eo.Mono
}

// Capacity is the number of points the slices can hold.
func (eo *EyeOutput) Capacity() int {
	return min(len(eo.X), len(eo.Y), len(eo.Angle), len(eo.Level), len(eo.Descriptors)/keypoints.DescriptorBytes)
}

// Truncated reports whether some points did not fit.
func (eo *EyeOutput) Truncated() bool {
	return eo.Total > eo.Capacity()
}

// KeyPoint returns point i as written.
func (eo *EyeOutput) KeyPoint(i int) keypoints.KeyPoint {
	kp := keypoints.KeyPoint{
		X:     int(eo.X[i]),
		Y:     int(eo.Y[i]),
		Angle: keypoints.Angle(eo.Angle[i]),
		Level: int(eo.Level[i]),
	}
	copy(kp.Descriptor[:], eo.Descriptors[i*keypoints.DescriptorBytes:])
	return kp
}

// KeyPoints returns every written point.
func (eo *EyeOutput) KeyPoints() []keypoints.KeyPoint {
	n := min(eo.Total, eo.Capacity())
	kps := make([]keypoints.KeyPoint, n)
	for i := range kps {
		kps[i] = eo.KeyPoint(i)
	}
	return kps
}

// Output receives the results of one frame.
type Output struct {
	Left  EyeOutput
	Right EyeOutput

	// Match i belongs to left stereo point Left.Mono+i; Indices[i] counts from Right.Mono.
	Indices    []uint16
	Distances1 []uint16
	Distances2 []uint16
	// Matches is the true number of left stereo points. Only the first keypoints.MaxMatch of them
	// are matched; the slices are filled up to that or their capacity, whichever is smaller.
	Matches int

	// FrameID is the id the matches were published under in the match cache.
	FrameID uint64
}

// NewEyeOutput allocates room for n points.
func NewEyeOutput(n int) EyeOutput {
	return EyeOutput{
		X:           make([]int32, n),
		Y:           make([]int32, n),
		Angle:       make([]int32, n),
		Level:       make([]int32, n),
		Descriptors: make([]byte, n*keypoints.DescriptorBytes),
	}
}

// NewOutput allocates an Output with room for points per eye and matches queries.
func NewOutput(points, matches int) *Output {
	return &Output{
		Left:       NewEyeOutput(points),
		Right:      NewEyeOutput(points),
		Indices:    make([]uint16, matches),
		Distances1: make([]uint16, matches),
		Distances2: make([]uint16, matches),
	}
}

// MatchCapacity is the number of matches the slices can hold.
func (o *Output) MatchCapacity() int {
	return min(len(o.Indices), len(o.Distances1), len(o.Distances2))
}

// Written is the number of match results present in the slices.
func (o *Output) Written() int {
	return min(o.Matches, keypoints.MaxMatch, o.MatchCapacity())
}

// write copies the eye's flat arrays into the caller's slices, clipped to their capacity.
func (eo *EyeOutput) write(eye *eyeContext) {
	eo.Total = eye.total
	eo.Mono = eye.mono
	n := min(eye.total, eo.Capacity())
	for i := 0; i < n; i++ {
		eo.X[i] = eye.x[i]
		eo.Y[i] = eye.y[i]
		eo.Angle[i] = int32(eye.angle[i])
		eo.Level[i] = eye.level[i]
		copy(eo.Descriptors[i*keypoints.DescriptorBytes:], eye.desc[i][:])
	}
}

// writeMatches copies the frame's match arrays, clipped to their capacity.
func (o *Output) writeMatches(m *matchBuffers) {
	o.Matches = m.count
	n := min(m.matched(), o.MatchCapacity())
	copy(o.Indices, m.indices[:n])
	copy(o.Distances1, m.dist1[:n])
	copy(o.Distances2, m.dist2[:n])
}
