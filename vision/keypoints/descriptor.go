package keypoints

import (
	"encoding/binary"
	"encoding/hex"
	"math/bits"

	"go.viam.com/stereoorb/utils"
)

const (
	// DescriptorBytes is the size of one descriptor.
	DescriptorBytes = 32
	// DescriptorWords is the number of 16-bit words a descriptor is assembled from.
	DescriptorWords = DescriptorBytes / 2
	// PatternPairs is the number of intensity comparisons, one per descriptor bit.
	PatternPairs = DescriptorBytes * 8
	// PatternRadius bounds both coordinates of every unrotated sample point.
	PatternRadius = 13
)

// Descriptor is a 256-bit binary descriptor: 16 little-endian 16-bit words where bit j of word w
// holds comparison 16w+j.
type Descriptor [DescriptorBytes]byte

// IsZero reports whether no bit is set.
func (d *Descriptor) IsZero() bool {
	return *d == Descriptor{}
}

func (d Descriptor) String() string {
	return hex.EncodeToString(d[:])
}

// HammingDistance counts the differing bits of two descriptors.
func HammingDistance(a, b *Descriptor) int {
	dist := 0
	for i := 0; i < DescriptorBytes; i += 8 {
		dist += bits.OnesCount64(binary.LittleEndian.Uint64(a[i:]) ^ binary.LittleEndian.Uint64(b[i:]))
	}
	return dist
}

// PatternPair is one comparison of the BRIEF test: bit set when I(P0) < I(P1).
type PatternPair struct {
	X0, Y0, X1, Y1 int8
}

// Pattern holds the sample pairs of every descriptor bit.
type Pattern [PatternPairs]PatternPair

// DefaultPattern is the pattern every extractor uses.
var DefaultPattern = &orbPattern

// rotate applies the fixed-point rotation of angle to (px, py).
func rotate(px, py int, angle Angle) (int, int) {
	c, s := int(angle.Cos()), int(angle.Sin())
	return utils.RShiftRound(px*c-py*s, angleShift), utils.RShiftRound(px*s+py*c, angleShift)
}

// ComputeDescriptor fills out with the descriptor of the point at window-relative (x, y) of the
// staged tile, with the pattern rotated by angle.
func ComputeDescriptor(tc *TileCache, pattern *Pattern, x, y int, angle Angle, out *Descriptor) {
	for w := 0; w < DescriptorWords; w++ {
		var word uint16
		for j := 0; j < 16; j++ {
			pair := pattern[16*w+j]
			x0, y0 := rotate(int(pair.X0), int(pair.Y0), angle)
			x1, y1 := rotate(int(pair.X1), int(pair.Y1), angle)
			if tc.At(x+x0, y+y0) < tc.At(x+x1, y+y1) {
				word |= 1 << j
			}
		}
		binary.LittleEndian.PutUint16(out[2*w:], word)
	}
}
