package extractor

import (
	"go.viam.com/stereoorb/rimage"
	"go.viam.com/stereoorb/rimage/pyramid"
	"go.viam.com/stereoorb/vision/keypoints"
)

// levelPoint maps a window-relative candidate of tile back to level 0 coordinates.
func levelPoint(tile pyramid.Tile, pos keypoints.Position) (int, int) {
	scale := float32(pyramid.Levels[tile.Level].Scale)
	x := int(float32(tile.Col*pyramid.TileWidth+pos.Col()) * scale)
	y := int(float32(tile.WindowTop()+pos.Row()) * scale)
	return x, y
}

// aggregate flattens the oriented tile results into the eye's arrays, level by level and tile by
// tile. Points outside the lapping range are mono and fill the array from the front; the rest are
// stereo and fill it from the back, so the stereo range ends up in reverse discovery order.
func (e *eyeContext) aggregate(lap Lapping, active int) {
	total := 0
	for level := 0; level < active; level++ {
		for _, tile := range pyramid.LevelTiles(level) {
			flat := tile.FlatIndex()
			for j := range e.selected[flat] {
				if e.angles[flat][j] != keypoints.DiscardAngle {
					total++
				}
			}
		}
	}

	monoIdx, stereoIdx := 0, total-1
	nullStereo := 0
	for level := 0; level < active; level++ {
		for _, tile := range pyramid.LevelTiles(level) {
			flat := tile.FlatIndex()
			for j, c := range e.selected[flat] {
				angle := e.angles[flat][j]
				if angle == keypoints.DiscardAngle {
					continue
				}
				x, y := levelPoint(tile, c.Pos)

				var idx int
				stereo := lap.Contains(x)
				if stereo {
					idx = stereoIdx
					stereoIdx--
				} else {
					idx = monoIdx
					monoIdx++
				}
				e.x[idx] = int32(x)
				e.y[idx] = int32(y)
				e.angle[idx] = angle
				e.level[idx] = int32(level)
				e.desc[idx] = e.descs[flat][j]

				if stereo && e.eye == rimage.RightEye && e.desc[idx].IsZero() {
					nullStereo++
					e.logger.Warnw("null stereo descriptor", "x", x, "y", y, "angle", angle, "level", level, "tile", flat, "entry", j)
				}
			}
		}
	}
	e.total = total
	e.mono = monoIdx
	if nullStereo > 0 {
		e.logger.Debugw("null stereo descriptors passed through", "count", nullStereo)
	}
}
