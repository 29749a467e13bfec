package pyramid

import (
	"github.com/pkg/errors"

	"go.viam.com/stereoorb/rimage"
)

// Pyramid is one eye's set of level planes. Its planes are reused frame after frame.
type Pyramid struct {
	Planes [NumLevels]*rimage.Plane

	// rows stages the horizontally resampled top and bottom source rows.
	rows [2][]uint8
}

// New allocates every level plane at its table geometry.
func New() *Pyramid {
	p := &Pyramid{}
	for i, l := range Levels {
		p.Planes[i] = rimage.NewPlane(l.Width, l.Height, l.Stride)
	}
	p.rows[0] = make([]uint8, Levels[0].Width)
	p.rows[1] = make([]uint8, Levels[0].Width)
	return p
}

// Level returns the plane of one level.
func (p *Pyramid) Level(level int) *rimage.Plane {
	return p.Planes[level]
}

// SetBase copies one eye of the frame into level 0.
func (p *Pyramid) SetBase(frame *rimage.StereoFrame, eye rimage.Eye) {
	frame.CopyEye(eye, p.Planes[0])
}

// BuildLevel computes level from level-1. Level 0 is rejected; it comes from SetBase.
func (p *Pyramid) BuildLevel(table *CoefficientTable, level int) error {
	if level < 1 || level >= NumLevels {
		return errors.Errorf("cannot build pyramid level %d", level)
	}
	p.resample(p.Planes[level-1], p.Planes[level], table[level-1])
	return nil
}

// Build computes levels 1..7 in order.
func (p *Pyramid) Build(table *CoefficientTable) {
	for level := 1; level < NumLevels; level++ {
		p.resample(p.Planes[level-1], p.Planes[level], table[level-1])
	}
}

// resample is a separable bilinear downscale with 8-bit fixed-point weights. Each output row
// blends two horizontally resampled source rows, so a constant source stays constant.
func (p *Pyramid) resample(src, dst *rimage.Plane, c Coefficients) {
	top, bottom := p.rows[0][:dst.Width], p.rows[1][:dst.Width]
	for y := 0; y < dst.Height; y++ {
		srcTop, wy := samplePosition(y, src.Height, dst.Height)
		srcBottom := srcTop + 1
		if srcBottom > src.Height-1 {
			srcBottom = src.Height - 1
		}

		horizontal(src.Row(srcTop), top, c)
		horizontal(src.Row(srcBottom), bottom, c)

		out := dst.Row(y)
		for x := range out {
			out[x] = blend(top[x], bottom[x], wy)
		}
	}
}

func horizontal(src, dst []uint8, c Coefficients) {
	for x := range dst {
		dst[x] = blend(src[c.Left[x]], src[c.Right[x]], c.Weight[x])
	}
}
