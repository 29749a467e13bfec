package extractor

import (
	"context"

	"github.com/pkg/errors"

	"go.viam.com/stereoorb/rimage"
	"go.viam.com/stereoorb/rimage/pyramid"
	"go.viam.com/stereoorb/vision/keypoints"
	"go.viam.com/stereoorb/vision/keypoints/selection"
)

// extract runs one eye through pyramid construction, detection, selection, orientation and
// description. Detection of level L runs while level L+1 is built; the results of a level are
// only waited for when its tiles are needed.
func (e *eyeContext) extract(
	ctx context.Context,
	frame *rimage.StereoFrame,
	det keypoints.Detector,
	coeffs *pyramid.CoefficientTable,
	cfg *Config,
) error {
	e.reset()
	right := e.eye == rimage.RightEye
	active := cfg.ActiveLevels

	var handles [pyramid.ActiveLevels]keypoints.DetectHandle
	// Outstanding detections read the planes, so they are waited out before any early return.
	drain := func(from int) {
		for lvl := from; lvl < active; lvl++ {
			if handles[lvl] != nil {
				_, _ = handles[lvl].Wait(ctx)
			}
		}
	}
	submit := func(level int) error {
		h, err := det.DetectAsync(ctx, cfg.detectRequest(e.pyr.Level(level), level, right))
		if err != nil {
			drain(0)
			return errors.Wrapf(err, "%s eye level %d detection", e.eye, level)
		}
		handles[level] = h
		return nil
	}

	e.pyr.SetBase(frame, e.eye)
	if err := submit(0); err != nil {
		return err
	}
	for level := 1; level < pyramid.NumLevels; level++ {
		if err := e.pyr.BuildLevel(coeffs, level); err != nil {
			drain(0)
			return err
		}
		if level < active {
			if err := submit(level); err != nil {
				return err
			}
		}
	}

	params := cfg.selectionParams()
	for level := 0; level < active; level++ {
		lc, err := handles[level].Wait(ctx)
		if err != nil {
			drain(level + 1)
			return errors.Wrapf(err, "%s eye level %d detection", e.eye, level)
		}
		if err := e.processLevel(level, lc, params); err != nil {
			drain(level + 1)
			return err
		}
	}

	e.logger.CDebugw(ctx, "extracted", "levels", e.levelCounts)
	return nil
}

// processLevel selects, orients and describes every tile of a level.
func (e *eyeContext) processLevel(level int, lc *keypoints.LevelCandidates, params selection.Params) error {
	tiles := pyramid.LevelTiles(level)
	if lc == nil || len(lc.Tiles) != len(tiles) {
		return errors.Errorf("level %d detection returned the wrong number of tiles", level)
	}
	plane := e.pyr.Level(level)
	for i, tile := range tiles {
		flat := tile.FlatIndex()
		out, kept, err := e.selector.Select(lc.Tiles[i], params, e.selected[flat][:cap(e.selected[flat])])
		if err != nil {
			return errors.Wrapf(err, "%s eye tile %d", e.eye, flat)
		}
		e.selected[flat] = out
		e.kept[flat] = kept
		if kept == 0 {
			continue
		}
		e.levelCounts[level] += kept

		e.engine.LoadTile(plane, tile)
		e.engine.Orient(out, e.angles[flat][:len(out)])
		e.engine.Describe(out, e.angles[flat][:len(out)], e.descs[flat][:len(out)])
	}
	return nil
}
