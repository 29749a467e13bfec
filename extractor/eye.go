package extractor

import (
	"go.viam.com/stereoorb/logging"
	"go.viam.com/stereoorb/rimage"
	"go.viam.com/stereoorb/rimage/pyramid"
	"go.viam.com/stereoorb/utils"
	"go.viam.com/stereoorb/vision/keypoints"
	"go.viam.com/stereoorb/vision/keypoints/selection"
)

// eyeContext is everything one eye worker owns. Nothing in it is shared with the other eye except
// the flat arrays, which the other worker only reads after the barrier.
type eyeContext struct {
	eye    rimage.Eye
	logger logging.Logger

	pyr      *pyramid.Pyramid
	engine   *keypoints.Engine
	selector *selection.Selector

	// Per tile, indexed by flat tile index. selected is padded to whole groups; kept counts the
	// real entries at its front.
	selected [pyramid.TotalTiles][]keypoints.Candidate
	kept     [pyramid.TotalTiles]int
	angles   [pyramid.TotalTiles][]keypoints.Angle
	descs    [pyramid.TotalTiles][]keypoints.Descriptor

	// Flat per-eye arrays: mono points grow from 0, stereo points from total-1 downwards.
	x, y, level []int32
	angle       []keypoints.Angle
	desc        []keypoints.Descriptor
	total, mono int

	levelCounts [pyramid.ActiveLevels]int
}

func newEyeContext(eye rimage.Eye, cfg *Config, table *keypoints.AngleTable, logger logging.Logger) *eyeContext {
	e := &eyeContext{
		eye:      eye,
		logger:   logger.Sublogger(eye.String()),
		pyr:      pyramid.New(),
		engine:   keypoints.NewEngine(table, keypoints.DefaultPattern),
		selector: selection.NewSelector(),
	}
	perTile := utils.RoundUp(cfg.MaxFeatures, selection.GroupLanes)
	for i := range e.selected {
		e.selected[i] = make([]keypoints.Candidate, 0, perTile)
		e.angles[i] = make([]keypoints.Angle, perTile)
		e.descs[i] = make([]keypoints.Descriptor, perTile)
	}
	n := cfg.MaxPointsPerEye()
	e.x = make([]int32, n)
	e.y = make([]int32, n)
	e.level = make([]int32, n)
	e.angle = make([]keypoints.Angle, n)
	e.desc = make([]keypoints.Descriptor, n)
	return e
}

// reset forgets the previous frame's results.
func (e *eyeContext) reset() {
	for i := range e.selected {
		e.selected[i] = e.selected[i][:0]
		e.kept[i] = 0
	}
	e.total, e.mono = 0, 0
	e.levelCounts = [pyramid.ActiveLevels]int{}
}

// stereo returns the descriptors of the stereo range.
func (e *eyeContext) stereo() []keypoints.Descriptor {
	return e.desc[e.mono:e.total]
}
