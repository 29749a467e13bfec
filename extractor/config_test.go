package extractor

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/multierr"
	"go.viam.com/test"

	"go.viam.com/stereoorb/rimage/pyramid"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	test.That(t, os.WriteFile(path, []byte(content), 0o600), test.ShouldBeNil)
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	test.That(t, cfg.Validate("default"), test.ShouldBeNil)
	test.That(t, cfg.ActiveLevels, test.ShouldEqual, pyramid.ActiveLevels)
	// 25+16+9+9+4+4+4 tiles of 16 features
	test.That(t, cfg.MaxPointsPerEye(), test.ShouldEqual, 71*16)
	test.That(t, cfg.LappingLeft.Contains(0), test.ShouldBeTrue)
	test.That(t, cfg.LappingLeft.Contains(639), test.ShouldBeTrue)
	test.That(t, cfg.LappingLeft.Contains(640), test.ShouldBeFalse)
}

func TestLoadConfig(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		path := writeConfig(t, "orb.json", `{
			"fast_threshold": 20,
			"max_features_per_tile": 32,
			"lapping_left": [100, 639]
		}`)
		cfg, err := LoadConfig(path)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, cfg.FASTThreshold, test.ShouldEqual, 20)
		test.That(t, cfg.MaxFeatures, test.ShouldEqual, 32)
		test.That(t, cfg.LappingLeft, test.ShouldResemble, Lapping{100, 639})
		// unset fields keep their defaults
		test.That(t, cfg.MaxCandidates, test.ShouldEqual, DefaultMaxCandidates)
		test.That(t, cfg.LappingRight, test.ShouldResemble, Lapping{0, 639})
	})

	t.Run("yaml", func(t *testing.T) {
		path := writeConfig(t, "orb.yaml", "final_score_threshold: 40\nring_size: 5\nlapping_right: [0, 500]\n")
		cfg, err := LoadConfig(path)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, cfg.FinalScoreThreshold, test.ShouldEqual, 40)
		test.That(t, cfg.RingSize, test.ShouldEqual, 5)
		test.That(t, cfg.LappingRight, test.ShouldResemble, Lapping{0, 500})
	})

	t.Run("invalid values", func(t *testing.T) {
		path := writeConfig(t, "bad.json", `{"fast_threshold": 0, "active_levels": 9}`)
		_, err := LoadConfig(path)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "fast_threshold")
		test.That(t, err.Error(), test.ShouldContainSubstring, "active_levels")
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := writeConfig(t, "orb.toml", "")
		_, err := LoadConfig(path)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "unsupported")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
		test.That(t, err, test.ShouldNotBeNil)
	})
}

func TestConfigValidateReportsEverything(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FASTThreshold = 255
	cfg.MaxCandidates = 8
	cfg.MaxFeatures = 9
	cfg.LappingLeft = Lapping{300, 200}
	cfg.LappingRight = Lapping{0, 640}
	cfg.RingSize = 0
	cfg.ScratchSlots = 0

	err := cfg.Validate("extractor")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, len(multierr.Errors(err)), test.ShouldEqual, 6)
	test.That(t, err.Error(), test.ShouldContainSubstring, "lapping_left")
	test.That(t, err.Error(), test.ShouldContainSubstring, "lapping_right")
	test.That(t, err.Error(), test.ShouldContainSubstring, "ring_size")
}

func TestConfigFromAttributes(t *testing.T) {
	cfg, err := ConfigFromAttributes(map[string]interface{}{
		"fast_threshold":          25.0,
		"max_candidates_per_tile": 128,
		"lapping_right":           []interface{}{10, 600},
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.FASTThreshold, test.ShouldEqual, 25)
	test.That(t, cfg.MaxCandidates, test.ShouldEqual, 128)
	test.That(t, cfg.LappingRight, test.ShouldResemble, Lapping{10, 600})
	test.That(t, cfg.Validate("attributes"), test.ShouldBeNil)

	_, err = ConfigFromAttributes(map[string]interface{}{"fast_threshold": "high"})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestConfigSchema(t *testing.T) {
	schema := ConfigSchema()
	test.That(t, schema, test.ShouldNotBeNil)
	data, err := schema.MarshalJSON()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldContainSubstring, "fast_threshold")
	test.That(t, string(data), test.ShouldContainSubstring, "lapping_left")
}

func TestFrameParams(t *testing.T) {
	params := DefaultConfig().FrameParams()
	test.That(t, params.Validate(), test.ShouldBeNil)
	params.LappingLeft = Lapping{-1, 10}
	test.That(t, params.Validate(), test.ShouldNotBeNil)
	params = DefaultConfig().FrameParams()
	params.FASTThreshold = 0
	test.That(t, params.Validate(), test.ShouldNotBeNil)
}
