// Package rimage holds the 8-bit planes the pipeline works on, the side-by-side stereo frame
// they are cut from, and helpers to load frames from disk and plot results.
package rimage

import (
	"image"

	"github.com/pkg/errors"
)

// Plane is an 8-bit gray plane with an explicit row stride. Bytes between Width and Stride are
// padding and stay zero.
type Plane struct {
	Pix    []uint8
	Width  int
	Height int
	Stride int
}

// NewPlane allocates a zeroed plane.
func NewPlane(width, height, stride int) *Plane {
	if stride < width {
		stride = width
	}
	return &Plane{
		Pix:    make([]uint8, stride*height),
		Width:  width,
		Height: height,
		Stride: stride,
	}
}

// PlaneFromGray copies an image.Gray into a plane of the same size with the given stride.
func PlaneFromGray(img *image.Gray, stride int) *Plane {
	b := img.Bounds()
	p := NewPlane(b.Dx(), b.Dy(), stride)
	for y := 0; y < p.Height; y++ {
		start := img.PixOffset(b.Min.X, b.Min.Y+y)
		copy(p.Row(y), img.Pix[start:start+p.Width])
	}
	return p
}

// Bounds returns the plane's rectangle.
func (p *Plane) Bounds() image.Rectangle {
	return image.Rect(0, 0, p.Width, p.Height)
}

// At returns the pixel at (x, y). No bounds checking beyond the slice's own.
func (p *Plane) At(x, y int) uint8 {
	return p.Pix[y*p.Stride+x]
}

// Set writes the pixel at (x, y).
func (p *Plane) Set(x, y int, v uint8) {
	p.Pix[y*p.Stride+x] = v
}

// Row returns the Width visible bytes of row y.
func (p *Plane) Row(y int) []uint8 {
	start := y * p.Stride
	return p.Pix[start : start+p.Width]
}

// Fill sets every visible pixel to v.
func (p *Plane) Fill(v uint8) {
	for y := 0; y < p.Height; y++ {
		row := p.Row(y)
		for x := range row {
			row[x] = v
		}
	}
}

// Clear zeroes the whole buffer, padding included.
func (p *Plane) Clear() {
	clear(p.Pix)
}

// Validate checks that the buffer covers the declared geometry.
func (p *Plane) Validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return errors.Errorf("plane must have positive size, got %dx%d", p.Width, p.Height)
	}
	if p.Stride < p.Width {
		return errors.Errorf("plane stride %d is less than width %d", p.Stride, p.Width)
	}
	if len(p.Pix) < (p.Height-1)*p.Stride+p.Width {
		return errors.Errorf("plane buffer of %d bytes is too small for %dx%d stride %d",
			len(p.Pix), p.Width, p.Height, p.Stride)
	}
	return nil
}

// ToGray copies the visible part of the plane into an image.Gray.
func (p *Plane) ToGray() *image.Gray {
	img := image.NewGray(p.Bounds())
	for y := 0; y < p.Height; y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+p.Width], p.Row(y))
	}
	return img
}
