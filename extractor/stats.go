package extractor

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// FrameStats records per-frame latency and feature counts.
type FrameStats struct {
	clock clock.Clock

	mu        sync.Mutex
	latencies stats.Float64Data // milliseconds
	left      []float64
	right     []float64
	matches   []float64
}

// NewFrameStats measures time with clk; nil means the wall clock.
func NewFrameStats(clk clock.Clock) *FrameStats {
	if clk == nil {
		clk = clock.New()
	}
	return &FrameStats{clock: clk}
}

// Start returns the time to pass to Record once the frame is done.
func (fs *FrameStats) Start() time.Time {
	return fs.clock.Now()
}

// Record adds one finished frame.
func (fs *FrameStats) Record(start time.Time, left, right, matches int) {
	elapsed := fs.clock.Since(start)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.latencies = append(fs.latencies, float64(elapsed)/float64(time.Millisecond))
	fs.left = append(fs.left, float64(left))
	fs.right = append(fs.right, float64(right))
	fs.matches = append(fs.matches, float64(matches))
}

// Frames is the number of frames recorded.
func (fs *FrameStats) Frames() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.latencies)
}

// Summary aggregates the recorded frames.
type Summary struct {
	Frames int

	MeanLatency time.Duration
	P50Latency  time.Duration
	P95Latency  time.Duration

	MeanLeft, StdLeft   float64
	MeanRight, StdRight float64
	MeanMatches         float64
}

func (s Summary) String() string {
	return fmt.Sprintf("%d frames, latency mean %v p50 %v p95 %v, left %.1f±%.1f, right %.1f±%.1f, matches %.1f",
		s.Frames, s.MeanLatency, s.P50Latency, s.P95Latency, s.MeanLeft, s.StdLeft, s.MeanRight, s.StdRight, s.MeanMatches)
}

func millis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// Summary computes latency percentiles and count moments over every recorded frame.
func (fs *FrameStats) Summary() (Summary, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if len(fs.latencies) == 0 {
		return Summary{}, errors.New("no frames recorded")
	}
	s := Summary{Frames: len(fs.latencies)}

	mean, err := stats.Mean(fs.latencies)
	if err != nil {
		return Summary{}, err
	}
	p50, err := stats.PercentileNearestRank(fs.latencies, 50)
	if err != nil {
		return Summary{}, err
	}
	p95, err := stats.PercentileNearestRank(fs.latencies, 95)
	if err != nil {
		return Summary{}, err
	}
	s.MeanLatency, s.P50Latency, s.P95Latency = millis(mean), millis(p50), millis(p95)

	s.MeanLeft, s.StdLeft = stat.MeanStdDev(fs.left, nil)
	s.MeanRight, s.StdRight = stat.MeanStdDev(fs.right, nil)
	s.MeanMatches = stat.Mean(fs.matches, nil)
	return s, nil
}
