package keypoints

import (
	"context"
	"image"
	"slices"

	goutils "go.viam.com/utils"

	"go.viam.com/stereoorb/logging"
	"go.viam.com/stereoorb/rimage/pyramid"
	"go.viam.com/stereoorb/utils"
)

// CircleIdx is the 16 pixel Bresenham circle of radius 3 around a FAST candidate, clockwise from
// the top.
var CircleIdx = []image.Point{
	{0, -3}, {1, -3}, {2, -2}, {3, -1}, {3, 0}, {3, 1}, {2, 2}, {1, 3},
	{0, 3}, {-1, 3}, {-2, 2}, {-3, 1}, {-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
}

const (
	// ArcLength is the number of contiguous circle pixels that must all be brighter or all be
	// darker than the center.
	ArcLength = 9
	// FASTBorder keeps the circle inside the level.
	FASTBorder = 3
)

// FASTDetector is a software corner detector behind the asynchronous Detector contract. Each
// request runs on its own goroutine; the tiles of a level are split across a worker group.
type FASTDetector struct {
	logger logging.Logger
}

// NewFASTDetector returns a software FAST-9 detector.
func NewFASTDetector(logger logging.Logger) *FASTDetector {
	return &FASTDetector{logger: logger}
}

type fastHandle struct {
	done   chan struct{}
	result *LevelCandidates
	err    error
}

// DetectAsync starts detecting req's level and returns immediately.
func (fd *FASTDetector) DetectAsync(ctx context.Context, req DetectRequest) (DetectHandle, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	h := &fastHandle{done: make(chan struct{})}
	goutils.PanicCapturingGo(func() {
		defer close(h.done)
		h.result, h.err = fd.detectLevel(ctx, req)
	})
	return h, nil
}

// Wait blocks until the detection finishes or ctx ends.
func (h *fastHandle) Wait(ctx context.Context) (*LevelCandidates, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.done:
		return h.result, h.err
	}
}

func (fd *FASTDetector) detectLevel(ctx context.Context, req DetectRequest) (*LevelCandidates, error) {
	tiles := pyramid.LevelTiles(req.Level)
	out := &LevelCandidates{Level: req.Level, Tiles: make([][]Candidate, len(tiles))}
	if err := utils.ParallelFor(ctx, len(tiles), func(i int) {
		out.Tiles[i] = DetectTile(req, tiles[i])
	}); err != nil {
		return nil, err
	}
	if fd.logger != nil {
		fd.logger.Debugw("fast level done", "level", req.Level, "right", req.RightEye, "candidates", out.Count())
	}
	return out, nil
}

// DetectTile runs the segment test over the rows of the tile proper. Positions are relative to
// the tile's detection window. When more than req.MaxPerTile corners pass, the strongest are
// kept; the result is in raster order either way.
func DetectTile(req DetectRequest, tile pyramid.Tile) []Candidate {
	r := tile.Rect().Intersect(image.Rect(FASTBorder, FASTBorder, req.Width-FASTBorder, req.Height-FASTBorder))
	if r.Empty() {
		return nil
	}
	top := tile.WindowTop()
	left := tile.Rect().Min.X

	offsets := circleOffsets(req.Stride)
	var found []Candidate
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			center := y*req.Stride + x
			score := CornerScore(req.Plane.Pix, center, offsets, req.Threshold)
			if score > req.Threshold {
				found = append(found, Candidate{Pos: PackPosition(y-top, x-left), Score: uint16(score)})
			}
		}
	}

	if len(found) > req.MaxPerTile {
		slices.SortStableFunc(found, func(a, b Candidate) int { return int(b.Score) - int(a.Score) })
		found = found[:req.MaxPerTile]
		slices.SortFunc(found, func(a, b Candidate) int { return int(a.Pos) - int(b.Pos) })
	}
	return found
}

func circleOffsets(stride int) [16]int {
	var offsets [16]int
	for i, p := range CircleIdx {
		offsets[i] = p.Y*stride + p.X
	}
	return offsets
}

// CornerScore returns the largest t for which the pixel at center is still a FAST-9 corner: the
// maximum over every 9-arc and both polarities of the smallest difference along the arc. Pixels
// that cannot beat threshold return 0 early. Scores saturate at 255.
func CornerScore(pix []uint8, center int, offsets [16]int, threshold int) int {
	c := int(pix[center])
	var diff [16]int
	for i, off := range offsets {
		diff[i] = int(pix[center+off]) - c
	}

	// Any 9-arc covers at least two of the four compass pixels.
	brightCompass, darkCompass := 0, 0
	for i := 0; i < 16; i += 4 {
		if diff[i] > threshold {
			brightCompass++
		} else if -diff[i] > threshold {
			darkCompass++
		}
	}
	if brightCompass < 2 && darkCompass < 2 {
		return 0
	}

	best := 0
	for start := 0; start < 16; start++ {
		minBright, minDark := 255, 255
		for k := 0; k < ArcLength; k++ {
			d := diff[(start+k)&15]
			if d < minBright {
				minBright = d
			}
			if -d < minDark {
				minDark = -d
			}
		}
		if minBright > best {
			best = minBright
		}
		if minDark > best {
			best = minDark
		}
	}
	return int(utils.SaturateUint8(best))
}
