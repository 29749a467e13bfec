// Package pyramid builds the fixed 8-level image pyramid of one eye and describes the tile grid
// laid over each level.
package pyramid

import (
	"image"

	"go.viam.com/stereoorb/utils"
)

const (
	// NumLevels is the number of pyramid levels built per eye.
	NumLevels = 8
	// ActiveLevels is the number of levels that go through detection. The last level is built but
	// never read.
	ActiveLevels = 7
	// VLEN is the lane width in bytes. Level strides and tile widths are multiples of it.
	VLEN = 128
	// Lanes is the number of 16-bit lanes in one VLEN vector.
	Lanes = VLEN / 2
	// TileWidth is one vector of pixels.
	TileWidth = VLEN
	// TileHeight is the height of the row band covered by one tile.
	TileHeight = 80
	// HalfPatchSize is the radius of the orientation patch. Detection windows reach this far above
	// every tile except the first row.
	HalfPatchSize = 15
	// TotalTiles is the number of tile slots over all levels.
	TotalTiles = 72
)

// Level describes one pyramid level.
type Level struct {
	Index      int
	Width      int
	Height     int
	Stride     int
	Tiles      int // tiles per side; the grid is square
	TileOffset int // flat index of the level's first tile
	Scale      float64
}

// Levels is the fixed level table. Scale maps a level coordinate back to level 0.
var Levels = [NumLevels]Level{
	{Index: 0, Width: 640, Height: 400, Stride: 640, Tiles: 5, TileOffset: 0, Scale: 1},
	{Index: 1, Width: 512, Height: 320, Stride: 512, Tiles: 4, TileOffset: 25, Scale: 5.0 / 4},
	{Index: 2, Width: 384, Height: 240, Stride: 384, Tiles: 3, TileOffset: 41, Scale: 5.0 / 3},
	{Index: 3, Width: 314, Height: 196, Stride: 384, Tiles: 3, TileOffset: 50, Scale: 5.0 / 2.44948974278},
	{Index: 4, Width: 256, Height: 160, Stride: 256, Tiles: 2, TileOffset: 59, Scale: 5.0 / 2},
	{Index: 5, Width: 203, Height: 127, Stride: 256, Tiles: 2, TileOffset: 63, Scale: 5.0 / 1.58740105197},
	{Index: 6, Width: 161, Height: 101, Stride: 256, Tiles: 2, TileOffset: 67, Scale: 5.0 / 1.25992104989},
	{Index: 7, Width: 128, Height: 80, Stride: 128, Tiles: 1, TileOffset: 71, Scale: 5},
}

// Tile identifies one tile of one level.
type Tile struct {
	Level int
	Col   int
	Row   int
}

// FlatIndex is the tile's slot in every per-tile table. Tiles are column-major inside a level.
func (t Tile) FlatIndex() int {
	l := Levels[t.Level]
	return l.TileOffset + t.Col*l.Tiles + t.Row
}

// Rect is the tile proper, clipped to the level.
func (t Tile) Rect() image.Rectangle {
	l := Levels[t.Level]
	r := image.Rect(t.Col*TileWidth, t.Row*TileHeight, (t.Col+1)*TileWidth, (t.Row+1)*TileHeight)
	return r.Intersect(image.Rect(0, 0, l.Width, l.Height))
}

// WindowTop is the first level row of the detection window. Candidate rows are relative to it.
func (t Tile) WindowTop() int {
	if t.Row > 0 {
		return t.Row*TileHeight - HalfPatchSize
	}
	return 0
}

// Window is the detection window: the tile proper plus HalfPatchSize rows above (except on the
// first row) and below, clipped to the level.
func (t Tile) Window() image.Rectangle {
	l := Levels[t.Level]
	r := t.Rect()
	r.Min.Y = t.WindowTop()
	r.Max.Y = utils.ClampInt(r.Max.Y+HalfPatchSize, 0, l.Height)
	return r
}

// TileFromFlat inverts FlatIndex.
func TileFromFlat(flat int) Tile {
	for lvl := NumLevels - 1; lvl >= 0; lvl-- {
		l := Levels[lvl]
		if flat >= l.TileOffset {
			local := flat - l.TileOffset
			return Tile{Level: lvl, Col: local / l.Tiles, Row: local % l.Tiles}
		}
	}
	return Tile{}
}

// LevelTiles lists a level's tiles in flat index order.
func LevelTiles(level int) []Tile {
	n := Levels[level].Tiles
	tiles := make([]Tile, 0, n*n)
	for col := 0; col < n; col++ {
		for row := 0; row < n; row++ {
			tiles = append(tiles, Tile{Level: level, Col: col, Row: row})
		}
	}
	return tiles
}
