package pyramid

import "math"

// Coefficients hold, per output column of one level, the two source columns of the level above
// and the 8-bit weight of the right one.
type Coefficients struct {
	Left   []uint16
	Right  []uint16
	Weight []uint8
}

// CoefficientTable holds the horizontal coefficients for every level pair. Entry i resamples
// level i into level i+1. It is computed once and only read afterwards.
type CoefficientTable [NumLevels - 1]Coefficients

// NewCoefficientTable computes coefficients for every level pair.
func NewCoefficientTable() *CoefficientTable {
	var table CoefficientTable
	for i := range table {
		table[i] = ComputeCoefficients(Levels[i].Width, Levels[i+1].Width)
	}
	return &table
}

// ComputeCoefficients maps each of nextW output columns to a position x*prevW/nextW in the
// source row.
func ComputeCoefficients(prevW, nextW int) Coefficients {
	c := Coefficients{
		Left:   make([]uint16, nextW),
		Right:  make([]uint16, nextW),
		Weight: make([]uint8, nextW),
	}
	for x := 0; x < nextW; x++ {
		left, w := samplePosition(x, prevW, nextW)
		right := left + 1
		if right > prevW-1 {
			right = prevW - 1
		}
		c.Left[x] = uint16(left)
		c.Right[x] = uint16(right)
		c.Weight[x] = w
	}
	return c
}

// samplePosition returns floor(i*in/out) and the fractional part scaled to 256.
func samplePosition(i, in, out int) (int, uint8) {
	pos := float64(i) * float64(in) / float64(out)
	whole := math.Floor(pos)
	return int(whole), uint8((pos - whole) * 256)
}

// blend mixes a and b with b's weight w out of 256, rounding to nearest.
func blend(a, b, w uint8) uint8 {
	return uint8((uint32(a)*(256-uint32(w)) + uint32(b)*uint32(w) + 128) >> 8)
}
