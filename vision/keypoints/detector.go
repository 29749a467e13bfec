package keypoints

import (
	"context"

	"github.com/pkg/errors"

	"go.viam.com/stereoorb/rimage"
	"go.viam.com/stereoorb/rimage/pyramid"
)

// DetectRequest asks for the corner candidates of every tile of one pyramid level.
type DetectRequest struct {
	Plane    *rimage.Plane
	Level    int
	ThreadID int
	RightEye bool

	Width  int
	Height int
	Stride int

	// Threshold is the minimum intensity difference along the arc.
	Threshold int
	// MaxPerTile caps the candidates returned for one tile.
	MaxPerTile int
}

// Validate checks the request against the level table.
func (req *DetectRequest) Validate() error {
	if req.Level < 0 || req.Level >= pyramid.ActiveLevels {
		return errors.Errorf("level %d does not take detection", req.Level)
	}
	l := pyramid.Levels[req.Level]
	if req.Plane == nil {
		return errors.New("detect request has no plane")
	}
	if req.Width != l.Width || req.Height != l.Height || req.Stride != l.Stride {
		return errors.Errorf("level %d must be %dx%d stride %d, got %dx%d stride %d",
			req.Level, l.Width, l.Height, l.Stride, req.Width, req.Height, req.Stride)
	}
	if req.MaxPerTile <= 0 {
		return errors.Errorf("max candidates per tile must be positive, got %d", req.MaxPerTile)
	}
	return nil
}

// LevelCandidates holds a level's candidates. Tiles is indexed by the tile's flat index minus
// the level's tile offset, so Tiles[col*n+row].
type LevelCandidates struct {
	Level int
	Tiles [][]Candidate
}

// Count is the number of candidates over all tiles.
func (lc *LevelCandidates) Count() int {
	n := 0
	for _, tile := range lc.Tiles {
		n += len(tile)
	}
	return n
}

// A Detector produces per-tile corner candidates. DetectAsync must return without waiting for
// the detection itself so the caller can build the next pyramid level meanwhile. The plane must
// not be modified until Wait returns.
type Detector interface {
	DetectAsync(ctx context.Context, req DetectRequest) (DetectHandle, error)
}

// DetectHandle is a pending detection.
type DetectHandle interface {
	Wait(ctx context.Context) (*LevelCandidates, error)
}
