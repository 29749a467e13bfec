package keypoints

import (
	"math"
	"math/rand/v2"
	"testing"

	"go.viam.com/test"

	"go.viam.com/stereoorb/rimage/pyramid"
)

func TestDefaultPattern(t *testing.T) {
	// first and last tests of the standard 31x31 set, bits 0 and 255
	test.That(t, DefaultPattern[0], test.ShouldResemble, PatternPair{X0: 8, Y0: -3, X1: 9, Y1: 5})
	test.That(t, DefaultPattern[1], test.ShouldResemble, PatternPair{X0: 4, Y0: 2, X1: 7, Y1: -12})
	test.That(t, DefaultPattern[PatternPairs-1], test.ShouldResemble, PatternPair{X0: -1, Y0: -6, X1: 0, Y1: -11})

	for _, pair := range DefaultPattern {
		for _, c := range []int8{pair.X0, pair.Y0, pair.X1, pair.Y1} {
			test.That(t, int(c), test.ShouldBeBetweenOrEqual, -PatternRadius, PatternRadius)
		}
		test.That(t, pair.X0 != pair.X1 || pair.Y0 != pair.Y1, test.ShouldBeTrue)
		// rotated samples stay inside the staged border
		r2 := max(int(pair.X0)*int(pair.X0)+int(pair.Y0)*int(pair.Y0), int(pair.X1)*int(pair.X1)+int(pair.Y1)*int(pair.Y1))
		test.That(t, r2, test.ShouldBeLessThan, CacheBorder*CacheBorder)
	}
}

func TestRotate(t *testing.T) {
	identity := PackAngle(64, 0)
	quarter := PackAngle(0, 64)
	half := PackAngle(-64, 0)
	for _, pt := range [][2]int{{0, 0}, {13, 0}, {-7, 5}, {3, -12}} {
		x, y := rotate(pt[0], pt[1], identity)
		test.That(t, [2]int{x, y}, test.ShouldResemble, pt)
		x, y = rotate(pt[0], pt[1], quarter)
		test.That(t, [2]int{x, y}, test.ShouldResemble, [2]int{-pt[1], pt[0]})
		x, y = rotate(pt[0], pt[1], half)
		test.That(t, [2]int{x, y}, test.ShouldResemble, [2]int{-pt[0], -pt[1]})
	}

	// 45 degrees is (45, 45)/64; 10*45/64 = 7.03 and -7.03 round away from zero symmetrically
	x, y := rotate(10, 0, PackAngle(45, 45))
	test.That(t, [2]int{x, y}, test.ShouldResemble, [2]int{7, 7})
	x, y = rotate(-10, 0, PackAngle(45, 45))
	test.That(t, [2]int{x, y}, test.ShouldResemble, [2]int{-7, -7})
}

func noisyEngine(t *testing.T, seed uint64) (*Engine, pyramid.Tile) {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, 7))
	p := rampPlane(func(x, y int) uint8 { return uint8(rng.IntN(256)) })
	engine := NewEngine(NewAngleTable(), DefaultPattern)
	tile := pyramid.Tile{Level: 0, Col: 2, Row: 3}
	engine.LoadTile(p, tile)
	return engine, tile
}

func TestDescriptorFullTurn(t *testing.T) {
	engine, _ := noisyEngine(t, 3)
	table := engine.Table()

	cands := []Candidate{{Pos: PackPosition(40, 64), Score: 50}}
	for deg := 0.0; deg < 360; deg += 11.25 {
		theta := deg * math.Pi / 180
		a := []Angle{table.EncodeAngle(theta)}
		b := []Angle{table.EncodeAngle(theta + 2*math.Pi)}

		da := make([]Descriptor, 1)
		db := make([]Descriptor, 1)
		engine.Describe(cands, a, da)
		engine.Describe(cands, b, db)
		test.That(t, da[0], test.ShouldResemble, db[0])
		test.That(t, da[0].IsZero(), test.ShouldBeFalse)
	}
}

func TestDescriptorRotationChangesBits(t *testing.T) {
	engine, _ := noisyEngine(t, 4)
	cands := []Candidate{{Pos: PackPosition(40, 64), Score: 50}}
	descs := make([]Descriptor, 2)
	engine.Describe(cands, []Angle{PackAngle(64, 0)}, descs[:1])
	engine.Describe(cands, []Angle{PackAngle(0, 64)}, descs[1:])
	// Noise decorrelates a quarter turn: roughly half of the bits flip.
	test.That(t, HammingDistance(&descs[0], &descs[1]), test.ShouldBeBetween, 64, 192)
}

func TestDescriptorOfFlatPatch(t *testing.T) {
	engine := NewEngine(NewAngleTable(), DefaultPattern)
	engine.LoadTile(rampPlane(func(x, y int) uint8 { return 128 }), pyramid.Tile{Level: 0, Col: 0, Row: 0})

	cands := []Candidate{{Pos: PackPosition(40, 40), Score: 20}, {Pos: PackPosition(41, 40), Score: 20}}
	angles := []Angle{PackAngle(64, 0), DiscardAngle}
	descs := []Descriptor{{}, {1, 2, 3}}
	engine.Describe(cands, angles, descs)
	test.That(t, descs[0].IsZero(), test.ShouldBeTrue)
	// discarded entries are left alone
	test.That(t, descs[1][0], test.ShouldEqual, byte(1))
}

func TestDescriptorBitLayout(t *testing.T) {
	// A plane that only gets brighter to the right: with no rotation each bit compares the two
	// sample columns.
	p := rampPlane(func(x, y int) uint8 { return uint8(x / 3) })
	engine := NewEngine(NewAngleTable(), DefaultPattern)
	tile := pyramid.Tile{Level: 0, Col: 1, Row: 0}
	engine.LoadTile(p, tile)

	var d Descriptor
	ComputeDescriptor(engine.cache, DefaultPattern, 60, 40, PackAngle(64, 0), &d)
	for i, pair := range DefaultPattern {
		lx, rx := 128+60+int(pair.X0), 128+60+int(pair.X1)
		want := lx/3 < rx/3
		got := d[2*(i/16)+(i%16)/8]&(1<<(i%8)) != 0
		test.That(t, got, test.ShouldEqual, want)
	}
}

func TestHammingDistance(t *testing.T) {
	var zero, ones, one Descriptor
	for i := range ones {
		ones[i] = 0xFF
	}
	one[31] = 0x80
	test.That(t, HammingDistance(&zero, &ones), test.ShouldEqual, 256)
	test.That(t, HammingDistance(&ones, &ones), test.ShouldEqual, 0)
	test.That(t, HammingDistance(&zero, &one), test.ShouldEqual, 1)
	test.That(t, zero.IsZero(), test.ShouldBeTrue)
	test.That(t, one.IsZero(), test.ShouldBeFalse)
	test.That(t, one.String()[62:], test.ShouldEqual, "80")
}
