package keypoints

import (
	"go.viam.com/stereoorb/rimage"
	"go.viam.com/stereoorb/rimage/pyramid"
)

// Engine computes orientations and descriptors tile by tile. It owns a tile cache, so each eye
// needs its own Engine; the tables are shared and read-only.
type Engine struct {
	table   *AngleTable
	pattern *Pattern
	umax    [pyramid.HalfPatchSize + 1]int
	cache   *TileCache
}

// NewEngine returns an engine using the given lookup table and sampling pattern.
func NewEngine(table *AngleTable, pattern *Pattern) *Engine {
	return &Engine{
		table:   table,
		pattern: pattern,
		umax:    UMax(),
		cache:   NewTileCache(),
	}
}

// LoadTile stages tile's detection window of plane. Later calls read only the cache.
func (e *Engine) LoadTile(plane *rimage.Plane, tile pyramid.Tile) {
	e.cache.Load(plane, tile.Window())
}

// Orient writes the quantized orientation of every candidate of the staged tile into angles.
// Padding and suppressed entries (score 0) get DiscardAngle.
func (e *Engine) Orient(cands []Candidate, angles []Angle) {
	for i, c := range cands {
		if c.Score == 0 || c.Pos == InvalidPosition {
			angles[i] = DiscardAngle
			continue
		}
		m10, m01 := Moments(e.cache, &e.umax, c.Pos.Col(), c.Pos.Row())
		angles[i] = e.table.Encode(m10, m01)
	}
}

// Describe writes the descriptor of every oriented candidate of the staged tile. Entries with
// DiscardAngle are left untouched.
func (e *Engine) Describe(cands []Candidate, angles []Angle, descs []Descriptor) {
	for i, c := range cands {
		if angles[i] == DiscardAngle {
			continue
		}
		ComputeDescriptor(e.cache, e.pattern, c.Pos.Col(), c.Pos.Row(), angles[i], &descs[i])
	}
}

// Table returns the engine's angle table.
func (e *Engine) Table() *AngleTable {
	return e.table
}
