package utils

import (
	"math/bits"
)

// AbsInt returns |n|.
func AbsInt(n int) int {
	if n < 0 {
		return -1 * n
	}
	return n
}

// ClampInt limits n to [lo, hi].
func ClampInt(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// CeilDiv returns ceil(a/b) for positive integers.
func CeilDiv(a, b int) int {
	return (a + b - 1) / b
}

// RoundUp rounds n up to the next multiple of m.
func RoundUp(n, m int) int {
	return CeilDiv(n, m) * m
}

// NextPowerOfTwo returns the smallest power of two >= n. Zero maps to 1.
func NextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// RShiftRound divides v by 2^shift, rounding half away from zero.
func RShiftRound(v, shift int) int {
	half := 1 << (shift - 1)
	if v < 0 {
		return -((-v + half) >> shift)
	}
	return (v + half) >> shift
}

// SaturateUint8 clamps v to [0, 255].
func SaturateUint8(v int) uint8 {
	return uint8(ClampInt(v, 0, 255))
}
