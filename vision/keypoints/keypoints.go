// Package keypoints contains the per-tile feature stages of the stereo ORB pipeline:
// - the asynchronous corner detector contract and a software FAST detector
// - intensity-centroid orientation quantized through a 256 entry cos/sin table
// - rotated 256-bit BRIEF descriptors
// - k=2 Hamming matching
package keypoints

import (
	"fmt"
	"image"
)

// Position is a candidate's location inside its tile's detection window, packed as row<<8 | col.
// Sorting positions ascending is raster order.
type Position uint16

// InvalidPosition pads selection groups past the last real candidate.
const InvalidPosition Position = 0xFFFF

// PackPosition packs a window-relative row and column. Both must be below 256.
func PackPosition(row, col int) Position {
	return Position(uint16(row)<<8 | uint16(col))
}

// Row is the row relative to the detection window top.
func (p Position) Row() int {
	return int(p >> 8)
}

// Col is the column relative to the tile's left edge.
func (p Position) Col() int {
	return int(p & 0xFF)
}

// Transpose swaps the row and column bit fields. Sorting transposed positions groups candidates
// by column, so vertical neighbours become adjacent. Transposing twice is the identity.
func (p Position) Transpose() Position {
	return p<<8 | p>>8
}

func (p Position) String() string {
	return fmt.Sprintf("(r%d,c%d)", p.Row(), p.Col())
}

// Candidate is a raw corner with its detector score.
type Candidate struct {
	Pos   Position
	Score uint16
}

// KeyPoint is a fully processed feature, in level 0 coordinates of its eye.
type KeyPoint struct {
	X, Y       int
	Angle      Angle
	Level      int
	Descriptor Descriptor
}

// Point returns the keypoint as an image.Point, for plotting.
func (kp KeyPoint) Point() image.Point {
	return image.Point{kp.X, kp.Y}
}

// Points converts keypoints for plotting.
func Points(kps []KeyPoint) []image.Point {
	pts := make([]image.Point, len(kps))
	for i, kp := range kps {
		pts[i] = kp.Point()
	}
	return pts
}
