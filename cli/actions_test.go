package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"go.viam.com/stereoorb/rimage"
)

// writeStereoImage saves a frame with a few bright blocks, mirrored in both eyes.
func writeStereoImage(t *testing.T) string {
	t.Helper()
	f := rimage.NewStereoFrame()
	for i := 0; i < 12; i++ {
		x0, y0 := 40+i*45, 40+(i%4)*80
		for y := y0; y < y0+30; y++ {
			for x := x0; x < x0+25; x++ {
				f.Pix[y*f.Stride+x] = 220
				f.Pix[y*f.Stride+rimage.EyeWidth+x] = 220
			}
		}
	}
	path := filepath.Join(t.TempDir(), "frame.png")
	test.That(t, rimage.SaveGray(f.ToGray(), path), test.ShouldBeNil)
	return path
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := NewApp(&out, &errOut).Run(append([]string{"stereoorb"}, args...))
	return out.String(), err
}

func TestSchemaAction(t *testing.T) {
	out, err := runApp(t, "schema")
	test.That(t, err, test.ShouldBeNil)
	var schema map[string]interface{}
	test.That(t, json.Unmarshal([]byte(out), &schema), test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "max_features_per_tile")
}

func TestExtractAction(t *testing.T) {
	img := writeStereoImage(t)
	dump := filepath.Join(t.TempDir(), "frame.json")

	out, err := runApp(t, "extract", "--out", dump, img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "left: ")
	test.That(t, out, test.ShouldContainSubstring, "matches: ")

	data, err := os.ReadFile(dump)
	test.That(t, err, test.ShouldBeNil)
	var frame frameJSON
	test.That(t, json.Unmarshal(data, &frame), test.ShouldBeNil)
	test.That(t, len(frame.Left.KeyPoints), test.ShouldBeGreaterThan, 0)
	test.That(t, len(frame.Left.KeyPoints), test.ShouldEqual, len(frame.Right.KeyPoints))
	test.That(t, len(frame.Matches), test.ShouldEqual, frame.Left.Stereo)
	for _, m := range frame.Matches {
		test.That(t, m.Distance1, test.ShouldEqual, 0)
		test.That(t, frame.Right.KeyPoints[m.Right].Descriptor, test.ShouldEqual, frame.Left.KeyPoints[m.Left].Descriptor)
	}

	_, err = runApp(t, "extract")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestExtractActionWithConfig(t *testing.T) {
	img := writeStereoImage(t)
	cfg := filepath.Join(t.TempDir(), "orb.yaml")
	test.That(t, os.WriteFile(cfg, []byte("lapping_left: [320, 639]\n"), 0o600), test.ShouldBeNil)
	out, err := runApp(t, "--config", cfg, "extract", img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "mono")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	test.That(t, os.WriteFile(bad, []byte("fast_threshold: 0\n"), 0o600), test.ShouldBeNil)
	_, err = runApp(t, "-c", bad, "extract", img)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestBenchAction(t *testing.T) {
	img := writeStereoImage(t)
	out, err := runApp(t, "bench", "--frames", "6", "--callers", "2", img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "6 frames")

	_, err = runApp(t, "bench", "--callers", "0", img)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPlotAction(t *testing.T) {
	img := writeStereoImage(t)
	dir := t.TempDir()
	_, err := runApp(t, "plot", "--out", dir, "--grid", img)
	test.That(t, err, test.ShouldBeNil)
	for _, name := range []string{"left.png", "right.png", "matches.png"} {
		_, err := os.Stat(filepath.Join(dir, name))
		test.That(t, err, test.ShouldBeNil)
	}
}
