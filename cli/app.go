// Package cli contains the stereoorb command line tool.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	configFlag   = "config"
	debugFlag    = "debug"
	logLevelFlag = "log-level"
	traceFlag    = "trace"
	outFlag      = "out"
	framesFlag   = "frames"
	callersFlag  = "callers"
	gridFlag     = "grid"
)

var app = &cli.App{
	Name:            "stereoorb",
	Usage:           "extract and match ORB features from side-by-side stereo frames",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    configFlag,
			Aliases: []string{"c"},
			Usage:   "load extractor configuration from `FILE` (json or yaml)",
		},
		&cli.BoolFlag{
			Name:    debugFlag,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
		&cli.StringFlag{
			Name:  logLevelFlag,
			Value: "info",
			Usage: "log `LEVEL`: debug, info, warn or error",
		},
		&cli.BoolFlag{
			Name:  traceFlag,
			Usage: "log the debug lines of the extracted frame whatever the level",
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "extract",
			Usage:     "extract features from one stereo frame and print the counts",
			ArgsUsage: "<image>",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  outFlag,
					Usage: "write every keypoint and match as JSON to `FILE`",
				},
			},
			Action: ExtractAction,
		},
		{
			Name:      "bench",
			Usage:     "run frames through one extractor and print latency and count statistics",
			ArgsUsage: "<image>...",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  framesFlag,
					Value: 100,
					Usage: "number of frames to run",
				},
				&cli.IntFlag{
					Name:  callersFlag,
					Value: 1,
					Usage: "number of goroutines calling ExtractFeatures concurrently",
				},
			},
			Action: BenchAction,
		},
		{
			Name:      "plot",
			Usage:     "draw the keypoints and stereo matches of one frame",
			ArgsUsage: "<image>",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     outFlag,
					Required: true,
					Usage:    "output `DIR` for left.png, right.png and matches.png",
				},
				&cli.BoolFlag{
					Name:  gridFlag,
					Usage: "outline the level 0 tile grid",
				},
			},
			Action: PlotAction,
		},
		{
			Name:   "schema",
			Usage:  "print the JSON schema of the extractor configuration",
			Action: SchemaAction,
		},
		{
			Name:   "version",
			Usage:  "print version info for this program",
			Action: VersionAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
