package keypoints

import (
	"math"
	"testing"

	"go.viam.com/test"

	"go.viam.com/stereoorb/rimage"
	"go.viam.com/stereoorb/rimage/pyramid"
)

func TestUMax(t *testing.T) {
	umax := UMax()
	test.That(t, umax[:], test.ShouldResemble, []int{15, 15, 15, 15, 14, 14, 14, 13, 13, 12, 11, 10, 9, 8, 6, 3})
}

func TestAnglePacking(t *testing.T) {
	a := PackAngle(-45, 45)
	test.That(t, a.Cos(), test.ShouldEqual, int8(-45))
	test.That(t, a.Sin(), test.ShouldEqual, int8(45))
	test.That(t, a.Radians(), test.ShouldAlmostEqual, 3*math.Pi/4, 1e-9)
	test.That(t, uint16(PackAngle(64, 0)), test.ShouldEqual, uint16(0x0040))
	test.That(t, uint16(PackAngle(0, -64)), test.ShouldEqual, uint16(0xC000))
}

func TestAngleTableEncode(t *testing.T) {
	table := NewAngleTable()
	for _, tc := range []struct {
		m10, m01 int
		cos, sin int8
	}{
		{1000, 0, 64, 0},
		{-1000, 0, -64, 0},
		{0, 5, 0, 64},
		{0, -5, 0, -64},
		{100, 100, 45, 45},
		{-100, -100, -45, -45},
		{-100, 100, -45, 45},
		// 3:4 ratio survives the 4-bit shift
		{300, 400, 38, 51},
	} {
		a := table.Encode(tc.m10, tc.m01)
		test.That(t, a.Cos(), test.ShouldEqual, tc.cos)
		test.That(t, a.Sin(), test.ShouldEqual, tc.sin)
		test.That(t, a, test.ShouldNotEqual, DiscardAngle)
	}
	test.That(t, table.Encode(0, 0), test.ShouldEqual, DiscardAngle)

	// No real moment packs to the sentinel.
	for m10 := -40; m10 <= 40; m10++ {
		for m01 := -40; m01 <= 40; m01++ {
			if m10 != 0 || m01 != 0 {
				test.That(t, table.Encode(m10, m01), test.ShouldNotEqual, DiscardAngle)
			}
		}
	}
}

func TestEncodeAngleTracksTheta(t *testing.T) {
	table := NewAngleTable()
	for deg := -180.0; deg < 540; deg += 7.5 {
		theta := deg * math.Pi / 180
		a := table.EncodeAngle(theta)
		test.That(t, a, test.ShouldEqual, table.EncodeAngle(theta+2*math.Pi))
		diff := math.Remainder(a.Radians()-theta, 2*math.Pi)
		test.That(t, math.Abs(diff), test.ShouldBeLessThan, 0.2)
	}
}

func rampPlane(f func(x, y int) uint8) *rimage.Plane {
	l := pyramid.Levels[0]
	p := rimage.NewPlane(l.Width, l.Height, l.Stride)
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			p.Set(x, y, f(x, y))
		}
	}
	return p
}

func TestMomentsFollowGradient(t *testing.T) {
	table := NewAngleTable()
	engine := NewEngine(table, DefaultPattern)
	tile := pyramid.Tile{Level: 0, Col: 1, Row: 1}
	cands := []Candidate{
		{Pos: PackPosition(50, 60), Score: 30},
		{Pos: InvalidPosition, Score: 0},
		{Pos: PackPosition(20, 20), Score: 0},
	}
	angles := make([]Angle, len(cands))

	// brighter to the right
	engine.LoadTile(rampPlane(func(x, y int) uint8 { return uint8(x / 4) }), tile)
	engine.Orient(cands, angles)
	test.That(t, angles[0].Cos(), test.ShouldEqual, int8(64))
	test.That(t, angles[0].Sin(), test.ShouldEqual, int8(0))
	test.That(t, angles[1], test.ShouldEqual, DiscardAngle)
	test.That(t, angles[2], test.ShouldEqual, DiscardAngle)

	// brighter downwards
	engine.LoadTile(rampPlane(func(x, y int) uint8 { return uint8(y / 2) }), tile)
	engine.Orient(cands, angles)
	test.That(t, angles[0].Cos(), test.ShouldEqual, int8(0))
	test.That(t, angles[0].Sin(), test.ShouldEqual, int8(64))

	// brighter up and to the left
	engine.LoadTile(rampPlane(func(x, y int) uint8 { return uint8(255 - x/4 - y/4) }), tile)
	engine.Orient(cands, angles)
	test.That(t, angles[0].Radians(), test.ShouldAlmostEqual, -3*math.Pi/4, 0.15)

	// flat patches have no direction
	engine.LoadTile(rampPlane(func(x, y int) uint8 { return 77 }), tile)
	engine.Orient(cands, angles)
	test.That(t, angles[0], test.ShouldEqual, DiscardAngle)
}

func TestTileCacheReplicatesEdges(t *testing.T) {
	p := rampPlane(func(x, y int) uint8 { return uint8((x + 3*y) % 251) })
	tc := NewTileCache()

	tile := pyramid.Tile{Level: 0, Col: 0, Row: 0}
	tc.Load(p, tile.Window())
	test.That(t, tc.Window, test.ShouldResemble, tile.Window())
	test.That(t, tc.At(0, 0), test.ShouldEqual, p.At(0, 0))
	test.That(t, tc.At(-5, -5), test.ShouldEqual, p.At(0, 0))
	test.That(t, tc.At(-1, 10), test.ShouldEqual, p.At(0, 10))
	test.That(t, tc.At(130, 10), test.ShouldEqual, p.At(130, 10))
	test.That(t, tc.At(127+CacheBorder, 94+CacheBorder), test.ShouldEqual, p.At(127+CacheBorder, 94+CacheBorder))

	tile = pyramid.Tile{Level: 0, Col: 4, Row: 4}
	tc.Load(p, tile.Window())
	w := tile.Window()
	test.That(t, w.Min.Y, test.ShouldEqual, 4*80-15)
	test.That(t, tc.At(0, 0), test.ShouldEqual, p.At(512, 305))
	test.That(t, tc.At(w.Dx()+10, w.Dy()+10), test.ShouldEqual, p.At(639, 399))
	test.That(t, tc.At(-CacheBorder, -CacheBorder), test.ShouldEqual, p.At(512-CacheBorder, 305-CacheBorder))
}
