package keypoints

import (
	"image"

	"go.viam.com/stereoorb/rimage"
	"go.viam.com/stereoorb/rimage/pyramid"
)

// CacheBorder is the margin kept around a staged tile window. It covers the orientation patch
// radius and the rotated descriptor pattern.
const CacheBorder = 32

const (
	maxWindowWidth  = pyramid.TileWidth
	maxWindowHeight = pyramid.TileHeight + 2*pyramid.HalfPatchSize
	cacheStride     = maxWindowWidth + 2*CacheBorder
	cacheRows       = maxWindowHeight + 2*CacheBorder
)

// TileCache is a local copy of one tile's detection window plus CacheBorder pixels on every side.
// Pixels outside the level repeat the nearest edge pixel. Coordinates are relative to the
// window's top-left corner, so a Position's row and column index it directly.
type TileCache struct {
	Pix    []uint8
	Window image.Rectangle
	Stride int
}

// NewTileCache allocates a cache large enough for any tile.
func NewTileCache() *TileCache {
	return &TileCache{
		Pix:    make([]uint8, cacheStride*cacheRows),
		Stride: cacheStride,
	}
}

// Load stages window of plane into the cache.
func (tc *TileCache) Load(plane *rimage.Plane, window image.Rectangle) {
	tc.Window = window
	rows := window.Dy() + 2*CacheBorder
	cols := window.Dx() + 2*CacheBorder
	for cy := 0; cy < rows; cy++ {
		sy := clampCoord(window.Min.Y+cy-CacheBorder, plane.Height)
		srcRow := plane.Row(sy)
		dst := tc.Pix[cy*tc.Stride : cy*tc.Stride+cols]

		x0 := window.Min.X - CacheBorder
		for cx := range dst {
			dst[cx] = srcRow[clampCoord(x0+cx, plane.Width)]
		}
	}
}

// At returns the pixel at window-relative (x, y). Valid for -CacheBorder <= x,y < size+CacheBorder.
func (tc *TileCache) At(x, y int) uint8 {
	return tc.Pix[(y+CacheBorder)*tc.Stride+x+CacheBorder]
}

func clampCoord(v, size int) int {
	if v < 0 {
		return 0
	}
	if v >= size {
		return size - 1
	}
	return v
}
