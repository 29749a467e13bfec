package keypoints

import (
	"math"
	"math/bits"

	"go.viam.com/stereoorb/rimage/pyramid"
	"go.viam.com/stereoorb/utils"
)

// Angle is a quantized orientation packed as uint8(sin)<<8 | uint8(cos), with cos and sin scaled
// by 64. The zero Angle never comes out of a real moment and marks a discarded candidate.
type Angle uint16

// DiscardAngle marks padding and zero-moment candidates.
const DiscardAngle Angle = 0

// angleScale is the fixed-point scale of cos and sin; rotation results shift right by
// angleShift.
const (
	angleScale = 64
	angleShift = 6
)

// PackAngle packs a (cos, sin) pair.
func PackAngle(cos, sin int8) Angle {
	return Angle(uint16(uint8(sin))<<8 | uint16(uint8(cos)))
}

// Cos is the signed, 64-scaled cosine.
func (a Angle) Cos() int8 {
	return int8(uint8(a))
}

// Sin is the signed, 64-scaled sine.
func (a Angle) Sin() int8 {
	return int8(uint8(a >> 8))
}

// Radians converts the quantized direction back to an angle in (-pi, pi].
func (a Angle) Radians() float64 {
	return math.Atan2(float64(a.Sin()), float64(a.Cos()))
}

type cosSin struct {
	Cos, Sin int8
}

// AngleTable maps a moment direction, quantized to 4 bits per axis magnitude, to (cos, sin).
// Index is mx<<4 | my; only the first quadrant is stored, signs are applied by Encode.
type AngleTable [256]cosSin

// NewAngleTable builds the lookup table.
func NewAngleTable() *AngleTable {
	var t AngleTable
	for idx := range t {
		mx, my := idx>>4, idx&0xF
		theta := math.Atan2(float64(my), float64(mx))
		t[idx] = cosSin{
			Cos: int8(math.Round(angleScale * math.Cos(theta))),
			Sin: int8(math.Round(angleScale * math.Sin(theta))),
		}
	}
	return &t
}

// Encode quantizes the direction of (m10, m01). Both magnitudes are shifted right together until
// the larger fits in 4 bits, the table is indexed with the result, then the quadrant signs are
// applied. A zero moment returns DiscardAngle.
func (t *AngleTable) Encode(m10, m01 int) Angle {
	if m10 == 0 && m01 == 0 {
		return DiscardAngle
	}
	ax, ay := utils.AbsInt(m10), utils.AbsInt(m01)
	shift := bits.Len(uint(max(ax, ay))) - 4
	if shift < 0 {
		shift = 0
	}
	mx, my := ax>>shift, ay>>shift

	e := t[mx<<4|my]
	cos, sin := e.Cos, e.Sin
	if m10 <= 0 && mx != 0 {
		cos = -cos
	}
	if m01 <= 0 && my != 0 {
		sin = -sin
	}
	return PackAngle(cos, sin)
}

// EncodeAngle quantizes a real angle the same way a moment pointing at theta would be.
func (t *AngleTable) EncodeAngle(theta float64) Angle {
	const magnitude = 1 << 16
	theta = math.Remainder(theta, 2*math.Pi)
	return t.Encode(int(math.Round(magnitude*math.Cos(theta))), int(math.Round(magnitude*math.Sin(theta))))
}

// UMax returns the half-width of every row of the circular orientation patch, symmetric under
// transposition so the disc looks the same rotated by 90 degrees.
func UMax() [pyramid.HalfPatchSize + 1]int {
	const hp = pyramid.HalfPatchSize
	var umax [hp + 1]int
	vmax := int(math.Floor(hp*math.Sqrt2/2 + 1))
	vmin := int(math.Ceil(hp * math.Sqrt2 / 2))
	for v := 0; v <= vmax; v++ {
		umax[v] = int(math.Round(math.Sqrt(float64(hp*hp - v*v))))
	}
	for v, v0 := hp, 0; v >= vmin; v-- {
		for umax[v0] == umax[v0+1] {
			v0++
		}
		umax[v] = v0
		v0++
	}
	return umax
}

// Moments returns the intensity centroid moments of the disc around window-relative (x, y):
// m10 = sum u*I and m01 = sum v*I, with v accumulated as the difference of mirrored rows.
func Moments(tc *TileCache, umax *[pyramid.HalfPatchSize + 1]int, x, y int) (m10, m01 int) {
	const hp = pyramid.HalfPatchSize
	for u := -hp; u <= hp; u++ {
		m10 += u * int(tc.At(x+u, y))
	}
	for v := 1; v <= hp; v++ {
		vSum := 0
		d := umax[v]
		for u := -d; u <= d; u++ {
			below, above := int(tc.At(x+u, y+v)), int(tc.At(x+u, y-v))
			vSum += below - above
			m10 += u * (below + above)
		}
		m01 += v * vSum
	}
	return m10, m01
}
