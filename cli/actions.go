package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"go.viam.com/stereoorb/extractor"
	"go.viam.com/stereoorb/logging"
	"go.viam.com/stereoorb/rimage"
	"go.viam.com/stereoorb/rimage/pyramid"
	"go.viam.com/stereoorb/vision/keypoints"
)

func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// newLogger logs to the app's error writer at the --log-level level, or debug with --debug.
func newLogger(c *cli.Context) (logging.Logger, error) {
	level, err := logging.LevelFromString(c.String(logLevelFlag))
	if err != nil {
		return nil, err
	}
	if c.Bool(debugFlag) {
		level = logging.DEBUG
	}
	return logging.NewWriterLogger("stereoorb", c.App.ErrWriter, level), nil
}

func loadConfig(c *cli.Context) (*extractor.Config, error) {
	path := c.String(configFlag)
	if path == "" {
		return extractor.DefaultConfig(), nil
	}
	return extractor.LoadConfig(path)
}

func frameArg(c *cli.Context) (*rimage.StereoFrame, error) {
	if c.NArg() != 1 {
		return nil, errors.New("expected exactly one image argument")
	}
	return rimage.LoadStereoFrame(c.Args().First())
}

// runOnce opens an extractor, runs one frame through it and closes it again.
func runOnce(c *cli.Context, frame *rimage.StereoFrame) (*extractor.Output, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(c)
	if err != nil {
		return nil, err
	}
	e, err := extractor.Open(c.Context, cfg, nil, logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		//nolint:errcheck
		e.Close(context.Background())
	}()

	ctx := c.Context
	if c.Bool(traceFlag) {
		ctx = logging.EnableDebugMode(ctx, "")
	}
	out := extractor.NewOutput(cfg.MaxPointsPerEye(), keypoints.MaxMatch)
	status, err := e.ExtractFeatures(ctx, frame, cfg.FrameParams(), out)
	if err != nil {
		return nil, errors.Wrapf(err, "extraction failed (%s)", status)
	}
	return out, nil
}

type keypointJSON struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Angle      float64 `json:"angle"`
	Level      int     `json:"level"`
	Descriptor string  `json:"descriptor"`
}

type eyeJSON struct {
	Mono      int            `json:"mono"`
	Stereo    int            `json:"stereo"`
	KeyPoints []keypointJSON `json:"keypoints"`
}

type matchJSON struct {
	Left      int `json:"left"`
	Right     int `json:"right"`
	Distance1 int `json:"distance1"`
	Distance2 int `json:"distance2"`
}

type frameJSON struct {
	Left    eyeJSON     `json:"left"`
	Right   eyeJSON     `json:"right"`
	Matches []matchJSON `json:"matches"`
}

func eyeToJSON(eo *extractor.EyeOutput) eyeJSON {
	ej := eyeJSON{Mono: eo.Mono, Stereo: eo.Stereo()}
	for _, kp := range eo.KeyPoints() {
		ej.KeyPoints = append(ej.KeyPoints, keypointJSON{
			X:          kp.X,
			Y:          kp.Y,
			Angle:      kp.Angle.Radians(),
			Level:      kp.Level,
			Descriptor: fmt.Sprintf("%x", kp.Descriptor[:]),
		})
	}
	return ej
}

func frameToJSON(out *extractor.Output) frameJSON {
	fj := frameJSON{Left: eyeToJSON(&out.Left), Right: eyeToJSON(&out.Right)}
	n := out.Written()
	for i := 0; i < n; i++ {
		fj.Matches = append(fj.Matches, matchJSON{
			Left:      out.Left.Mono + i,
			Right:     out.Right.Mono + int(out.Indices[i]),
			Distance1: int(out.Distances1[i]),
			Distance2: int(out.Distances2[i]),
		})
	}
	return fj
}

// ExtractAction runs one frame and prints its counts, optionally dumping everything as JSON.
func ExtractAction(c *cli.Context) error {
	frame, err := frameArg(c)
	if err != nil {
		return err
	}
	out, err := runOnce(c, frame)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "left: %d points (%d mono, %d stereo)", out.Left.Total, out.Left.Mono, out.Left.Stereo())
	printf(c.App.Writer, "right: %d points (%d mono, %d stereo)", out.Right.Total, out.Right.Mono, out.Right.Stereo())
	printf(c.App.Writer, "matches: %d", out.Matches)

	if path := c.String(outFlag); path != "" {
		data, err := json.MarshalIndent(frameToJSON(out), "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Clean(path), data, 0o600); err != nil {
			return errors.Wrapf(err, "cannot write %s", path)
		}
	}
	return nil
}

// BenchAction pushes frames through a single extractor from several goroutines and prints the
// frame statistics.
func BenchAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("expected at least one image argument")
	}
	frames := make([]*rimage.StereoFrame, 0, c.NArg())
	for _, path := range c.Args().Slice() {
		f, err := rimage.LoadStereoFrame(path)
		if err != nil {
			return err
		}
		frames = append(frames, f)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	callers := c.Int(callersFlag)
	if callers < 1 {
		return errors.Errorf("--%s must be positive", callersFlag)
	}
	cfg.ScratchSlots = max(cfg.ScratchSlots, callers)
	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	e, err := extractor.Open(c.Context, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer func() {
		//nolint:errcheck
		e.Close(context.Background())
	}()

	total := c.Int(framesFlag)
	g, ctx := errgroup.WithContext(c.Context)
	for caller := 0; caller < callers; caller++ {
		g.Go(func() error {
			out := extractor.NewOutput(cfg.MaxPointsPerEye(), keypoints.MaxMatch)
			for i := caller; i < total; i += callers {
				if status, err := e.ExtractFeatures(ctx, frames[i%len(frames)], cfg.FrameParams(), out); err != nil {
					return errors.Wrapf(err, "frame %d (%s)", i, status)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	summary, err := e.Stats().Summary()
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", summary)
	return nil
}

// PlotAction draws both eyes' keypoints and the ratio-filtered stereo matches into PNG files.
func PlotAction(c *cli.Context) error {
	frame, err := frameArg(c)
	if err != nil {
		return err
	}
	out, err := runOnce(c, frame)
	if err != nil {
		return err
	}
	dir := c.String(outFlag)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	var grid image.Point
	if c.Bool(gridFlag) {
		grid = image.Pt(pyramid.TileWidth, pyramid.TileHeight)
	}
	leftImg, rightImg := frame.EyeImage(rimage.LeftEye), frame.EyeImage(rimage.RightEye)
	leftPts := keypoints.Points(out.Left.KeyPoints())
	rightPts := keypoints.Points(out.Right.KeyPoints())
	if err := rimage.PlotKeypoints(leftImg, leftPts, grid, filepath.Join(dir, "left.png")); err != nil {
		return err
	}
	if err := rimage.PlotKeypoints(rightImg, rightPts, grid, filepath.Join(dir, "right.png")); err != nil {
		return err
	}

	n := out.Written()
	kept := keypoints.FilterMatches(out.Indices[:n], out.Distances1[:n], out.Distances2[:n],
		keypoints.MatchingConfig{MaxDist: 64, Ratio: 0.8})
	pairs := make([][2]int, 0, len(kept))
	for _, m := range kept {
		pairs = append(pairs, [2]int{out.Left.Mono + m.Idx1, out.Right.Mono + m.Idx2})
	}
	if err := rimage.PlotMatches(leftImg, rightImg, leftPts, rightPts, pairs, filepath.Join(dir, "matches.png")); err != nil {
		return err
	}
	printf(c.App.Writer, "%d of %d matches drawn to %s", len(pairs), out.Matches, dir)
	return nil
}

// SchemaAction prints the configuration's JSON schema.
func SchemaAction(c *cli.Context) error {
	data, err := json.MarshalIndent(extractor.ConfigSchema(), "", "  ")
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", data)
	return nil
}

// VersionAction prints the module version this binary was built from.
func VersionAction(c *cli.Context) error {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return errors.New("error reading build info")
	}
	if c.Bool(debugFlag) {
		printf(c.App.Writer, "%s", info.String())
	}
	version := "?"
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && len(setting.Value) >= 8 {
			version = setting.Value[:8]
		}
	}
	printf(c.App.Writer, "Version %s Git=%s", info.Main.Version, version)
	return nil
}
