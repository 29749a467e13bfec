package rimage

import (
	"image"

	"go.viam.com/stereoorb/utils"
)

// Fixed stereo geometry: two 640x400 eyes side by side.
const (
	EyeWidth     = 640
	EyeHeight    = 400
	StereoWidth  = 2 * EyeWidth
	StereoHeight = EyeHeight
)

// Eye selects one half of a stereo frame.
type Eye int

const (
	// LeftEye is the first EyeWidth bytes of every row.
	LeftEye Eye = iota
	// RightEye is the second EyeWidth bytes of every row.
	RightEye
)

func (e Eye) String() string {
	if e == RightEye {
		return "right"
	}
	return "left"
}

// StereoFrame is a side-by-side gray frame. Row y holds the left eye's pixels followed by the
// right eye's.
type StereoFrame struct {
	Pix    []uint8
	Width  int
	Height int
	Stride int
}

// NewStereoFrame returns a zeroed frame with the fixed geometry.
func NewStereoFrame() *StereoFrame {
	return &StereoFrame{
		Pix:    make([]uint8, StereoWidth*StereoHeight),
		Width:  StereoWidth,
		Height: StereoHeight,
		Stride: StereoWidth,
	}
}

// StereoFrameFromGray wraps a side-by-side image.Gray without copying.
func StereoFrameFromGray(img *image.Gray) (*StereoFrame, error) {
	b := img.Bounds()
	f := &StereoFrame{Pix: img.Pix[img.PixOffset(b.Min.X, b.Min.Y):], Width: b.Dx(), Height: b.Dy(), Stride: img.Stride}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks the frame against the fixed geometry.
func (f *StereoFrame) Validate() error {
	if f.Width != StereoWidth || f.Height != StereoHeight || f.Stride < StereoWidth ||
		len(f.Pix) < (f.Height-1)*f.Stride+f.Width {
		return utils.NewUnexpectedFrameSizeError(f.Width, f.Height, f.Stride, StereoWidth, StereoHeight)
	}
	return nil
}

// CopyEye de-interleaves one eye into dst, which must be at least EyeWidth x EyeHeight.
func (f *StereoFrame) CopyEye(eye Eye, dst *Plane) {
	offset := 0
	if eye == RightEye {
		offset = EyeWidth
	}
	for y := 0; y < EyeHeight; y++ {
		start := y*f.Stride + offset
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+EyeWidth], f.Pix[start:start+EyeWidth])
	}
}

// EyeImage returns one eye as an image.Gray, mostly for plotting.
func (f *StereoFrame) EyeImage(eye Eye) *image.Gray {
	p := NewPlane(EyeWidth, EyeHeight, EyeWidth)
	f.CopyEye(eye, p)
	return p.ToGray()
}

// ToGray copies the whole frame into an image.Gray.
func (f *StereoFrame) ToGray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+f.Width], f.Pix[y*f.Stride:y*f.Stride+f.Width])
	}
	return img
}
