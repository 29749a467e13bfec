package extractor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"go.viam.com/stereoorb/rimage"
	"go.viam.com/stereoorb/rimage/pyramid"
	"go.viam.com/stereoorb/vision/keypoints"
	"go.viam.com/stereoorb/vision/keypoints/selection"
)

// Defaults for a Config.
const (
	DefaultFASTThreshold       = 17
	DefaultFinalScoreThreshold = 17
	DefaultMaxCandidates       = 256
	DefaultMaxFeatures         = 16
	DefaultRingSize            = 3
	DefaultScratchSlots        = 1
)

// Lapping is the inclusive column range, in level 0 coordinates, that both eyes see. Points inside
// it are stereo, the rest are mono.
type Lapping [2]int

// Contains reports whether x is inside the range.
func (l Lapping) Contains(x int) bool {
	return x >= l[0] && x <= l[1]
}

// Config holds the extractor parameters.
type Config struct {
	FASTThreshold       int     `json:"fast_threshold" yaml:"fast_threshold" jsonschema:"minimum=1,maximum=254"`
	FinalScoreThreshold int     `json:"final_score_threshold" yaml:"final_score_threshold" jsonschema:"minimum=0,maximum=255"`
	MaxCandidates       int     `json:"max_candidates_per_tile" yaml:"max_candidates_per_tile" jsonschema:"minimum=1,maximum=1024"`
	MaxFeatures         int     `json:"max_features_per_tile" yaml:"max_features_per_tile" jsonschema:"minimum=1,maximum=1024"`
	LappingLeft         Lapping `json:"lapping_left" yaml:"lapping_left"`
	LappingRight        Lapping `json:"lapping_right" yaml:"lapping_right"`
	RingSize            int     `json:"ring_size" yaml:"ring_size" jsonschema:"minimum=1"`
	ScratchSlots        int     `json:"scratch_slots" yaml:"scratch_slots" jsonschema:"minimum=1"`
	ActiveLevels        int     `json:"active_levels" yaml:"active_levels" jsonschema:"minimum=1,maximum=7"`
}

// DefaultConfig returns the stock parameters. The lapping ranges cover the whole eye.
func DefaultConfig() *Config {
	return &Config{
		FASTThreshold:       DefaultFASTThreshold,
		FinalScoreThreshold: DefaultFinalScoreThreshold,
		MaxCandidates:       DefaultMaxCandidates,
		MaxFeatures:         DefaultMaxFeatures,
		LappingLeft:         Lapping{0, rimage.EyeWidth - 1},
		LappingRight:        Lapping{0, rimage.EyeWidth - 1},
		RingSize:            DefaultRingSize,
		ScratchSlots:        DefaultScratchSlots,
		ActiveLevels:        pyramid.ActiveLevels,
	}
}

// LoadConfig reads a JSON or YAML config file over the defaults and validates it.
func LoadConfig(file string) (*Config, error) {
	path := filepath.Clean(file)
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".json":
		err = json.Unmarshal(data, cfg)
	default:
		return nil, errors.Errorf("unsupported config file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "cannot parse %s", path)
	}
	if err := cfg.Validate(file); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConfigFromAttributes decodes a loosely typed attribute map, as found inside a larger JSON
// document, over the defaults.
func ConfigFromAttributes(attributes map[string]interface{}) (*Config, error) {
	cfg := DefaultConfig()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "json", Result: cfg})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConfigSchema returns the JSON schema of Config.
func ConfigSchema() *jsonschema.Schema {
	return jsonschema.Reflect(&Config{})
}

func validateLapping(path, name string, l Lapping) error {
	if l[0] < 0 || l[1] >= rimage.EyeWidth || l[0] > l[1] {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("%s must be an ordered column range inside [0, %d], got %v", name, rimage.EyeWidth-1, l))
	}
	return nil
}

// Validate ensures all parts of the config are valid. Every problem found is reported.
func (cfg *Config) Validate(path string) error {
	var err error
	if cfg.FASTThreshold < 1 || cfg.FASTThreshold > 254 {
		err = multierr.Append(err, goutils.NewConfigValidationError(path,
			errors.Errorf("fast_threshold should be in [1, 254], got %d", cfg.FASTThreshold)))
	}
	if cfg.FinalScoreThreshold < 0 || cfg.FinalScoreThreshold > 255 {
		err = multierr.Append(err, goutils.NewConfigValidationError(path,
			errors.Errorf("final_score_threshold should be in [0, 255], got %d", cfg.FinalScoreThreshold)))
	}
	if cfg.MaxCandidates < 1 || cfg.MaxCandidates > selection.MaxEntries {
		err = multierr.Append(err, goutils.NewConfigValidationError(path,
			errors.Errorf("max_candidates_per_tile should be in [1, %d], got %d", selection.MaxEntries, cfg.MaxCandidates)))
	}
	if cfg.MaxFeatures < 1 || cfg.MaxFeatures > cfg.MaxCandidates {
		err = multierr.Append(err, goutils.NewConfigValidationError(path,
			errors.Errorf("max_features_per_tile should be in [1, max_candidates_per_tile], got %d", cfg.MaxFeatures)))
	}
	err = multierr.Append(err, validateLapping(path, "lapping_left", cfg.LappingLeft))
	err = multierr.Append(err, validateLapping(path, "lapping_right", cfg.LappingRight))
	if cfg.RingSize < 1 {
		err = multierr.Append(err, goutils.NewConfigValidationFieldRequiredError(path, "ring_size"))
	}
	if cfg.ScratchSlots < 1 {
		err = multierr.Append(err, goutils.NewConfigValidationFieldRequiredError(path, "scratch_slots"))
	}
	if cfg.ActiveLevels < 1 || cfg.ActiveLevels > pyramid.ActiveLevels {
		err = multierr.Append(err, goutils.NewConfigValidationError(path,
			errors.Errorf("active_levels should be in [1, %d], got %d", pyramid.ActiveLevels, cfg.ActiveLevels)))
	}
	return err
}

// MaxPointsPerEye bounds the aggregated points of one eye under cfg.
func (cfg *Config) MaxPointsPerEye() int {
	n := 0
	for lvl := 0; lvl < cfg.ActiveLevels; lvl++ {
		tiles := pyramid.Levels[lvl].Tiles
		n += tiles * tiles * cfg.MaxFeatures
	}
	return n
}

func (cfg *Config) selectionParams() selection.Params {
	return selection.Params{MaxFeatures: cfg.MaxFeatures, MinScore: uint16(cfg.FinalScoreThreshold)}
}

func (cfg *Config) detectRequest(plane *rimage.Plane, level int, right bool) keypoints.DetectRequest {
	l := pyramid.Levels[level]
	thread := 0
	if right {
		thread = 1
	}
	return keypoints.DetectRequest{
		Plane:      plane,
		Level:      level,
		ThreadID:   thread,
		RightEye:   right,
		Width:      l.Width,
		Height:     l.Height,
		Stride:     l.Stride,
		Threshold:  cfg.FASTThreshold,
		MaxPerTile: cfg.MaxCandidates,
	}
}
