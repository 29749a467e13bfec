// Package extractor runs the stereo ORB pipeline: two persistent eye workers that each build a
// pyramid, detect, select, orient and describe, then meet at a barrier to split the stereo
// matching between them.
package extractor

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"go.viam.com/stereoorb/logging"
	"go.viam.com/stereoorb/matchcache"
	"go.viam.com/stereoorb/rimage"
	"go.viam.com/stereoorb/rimage/pyramid"
	"go.viam.com/stereoorb/utils"
	"go.viam.com/stereoorb/vision/keypoints"
)

// FrameParams are the per-frame inputs besides the image.
type FrameParams struct {
	FASTThreshold int
	LappingLeft   Lapping
	LappingRight  Lapping
}

// FrameParams returns the config's values as per-frame parameters.
func (cfg *Config) FrameParams() FrameParams {
	return FrameParams{
		FASTThreshold: cfg.FASTThreshold,
		LappingLeft:   cfg.LappingLeft,
		LappingRight:  cfg.LappingRight,
	}
}

// Validate checks the parameters the same way Config.Validate does.
func (p FrameParams) Validate() error {
	cfg := DefaultConfig()
	cfg.FASTThreshold = p.FASTThreshold
	cfg.LappingLeft = p.LappingLeft
	cfg.LappingRight = p.LappingRight
	return cfg.Validate("frame params")
}

// frameJob is handed to both eye workers for one frame.
type frameJob struct {
	ctx     context.Context
	frame   *rimage.StereoFrame
	cfg     *Config
	matches *matchBuffers
	done    chan error
}

// Option configures an Extractor at Open.
type Option func(*Extractor)

// WithClock measures frame latency with clk.
func WithClock(clk clock.Clock) Option {
	return func(e *Extractor) {
		e.stats = NewFrameStats(clk)
	}
}

// Extractor owns the two eye workers and everything they share. ExtractFeatures may be called
// from several goroutines; frames are processed one at a time.
type Extractor struct {
	cfg      *Config
	logger   logging.Logger
	session  uuid.UUID
	detector keypoints.Detector
	coeffs   *pyramid.CoefficientTable

	eyes    [2]*eyeContext
	barrier *Barrier
	scratch *scratchPool
	ring    *matchcache.Ring
	stats   *FrameStats

	jobs    [2]chan *frameJob
	workers *utils.StoppableWorkers

	// mu serializes frames, and Close against a frame in flight.
	mu      sync.Mutex
	closed  atomic.Bool
	frameID atomic.Uint64
}

// Open validates cfg, allocates both eye contexts and every table, and starts the eye workers.
// A nil cfg means DefaultConfig and a nil detector means the software FAST detector.
func Open(ctx context.Context, cfg *Config, detector keypoints.Detector, logger logging.Logger, opts ...Option) (*Extractor, error) {
	_, span := trace.StartSpan(ctx, "extractor::Open")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate("extractor"); err != nil {
		return nil, errors.Wrap(err, "invalid extractor config")
	}

	session := uuid.New()
	logger = logger.Sublogger("extractor").WithFields("session", session.String())
	if detector == nil {
		detector = keypoints.NewFASTDetector(logger.Sublogger("fast"))
	}
	ring, err := matchcache.NewRing(cfg.RingSize, keypoints.MaxMatch)
	if err != nil {
		return nil, errors.Wrap(err, "cannot allocate match cache")
	}

	table := keypoints.NewAngleTable()
	e := &Extractor{
		cfg:      cfg,
		logger:   logger,
		session:  session,
		detector: detector,
		coeffs:   pyramid.NewCoefficientTable(),
		barrier:  NewBarrier(2),
		scratch:  newScratchPool(cfg.ScratchSlots),
		ring:     ring,
		stats:    NewFrameStats(nil),
	}
	for _, opt := range opts {
		opt(e)
	}
	for _, eye := range []rimage.Eye{rimage.LeftEye, rimage.RightEye} {
		e.eyes[eye] = newEyeContext(eye, cfg, table, logger)
		e.jobs[eye] = make(chan *frameJob)
	}
	e.workers = utils.NewStoppableWorkers(e.worker(rimage.LeftEye), e.worker(rimage.RightEye))

	logger.Infow("opened", "max_points_per_eye", cfg.MaxPointsPerEye(), "active_levels", cfg.ActiveLevels)
	return e, nil
}

// Close stops and joins the workers, waiting out a frame in flight, and releases the scratch
// reservations. It always returns nil and may be called more than once.
func (e *Extractor) Close(ctx context.Context) error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.workers.Stop()
	e.scratch.drain()
	if err := e.logger.Sync(); err != nil {
		e.logger.CDebugw(ctx, "log sync failed", "error", err)
	}
	e.logger.Info("closed")
	return nil
}

// Session identifies this extractor in its logs.
func (e *Extractor) Session() uuid.UUID {
	return e.session
}

// Config returns the validated config the extractor was opened with.
func (e *Extractor) Config() *Config {
	return e.cfg
}

// MatchCache is where every frame's matches are published, under the frame id.
func (e *Extractor) MatchCache() *matchcache.Ring {
	return e.ring
}

// Stats returns the per-frame statistics recorded so far.
func (e *Extractor) Stats() *FrameStats {
	return e.stats
}

// ExtractFeatures runs one frame through both eyes and the stereo matcher and writes the results
// into out, clipped to its capacities; the true counts are always reported. The call blocks until
// the frame is done. ctx is only checked before the frame starts.
func (e *Extractor) ExtractFeatures(ctx context.Context, frame *rimage.StereoFrame, params FrameParams, out *Output) (Status, error) {
	ctx, span := trace.StartSpan(ctx, "extractor::ExtractFeatures")
	defer span.End()

	if e.closed.Load() {
		return StatusClosed, utils.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return StatusFailed, err
	}
	if frame == nil || out == nil {
		return StatusInvalidInput, errors.New("frame and output are required")
	}
	if err := frame.Validate(); err != nil {
		return StatusInvalidInput, err
	}
	if err := params.Validate(); err != nil {
		return StatusInvalidInput, err
	}

	matches, err := e.scratch.acquire()
	if err != nil {
		return StatusScratchExhausted, err
	}
	defer e.scratch.release(matches)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Load() {
		return StatusClosed, utils.ErrClosed
	}

	start := e.stats.Start()
	id := e.frameID.Inc() - 1

	cfg := *e.cfg
	cfg.FASTThreshold = params.FASTThreshold
	cfg.LappingLeft = params.LappingLeft
	cfg.LappingRight = params.LappingRight
	job := &frameJob{
		// The frame runs to completion once started.
		ctx:     context.WithoutCancel(ctx),
		frame:   frame,
		cfg:     &cfg,
		matches: matches,
		done:    make(chan error, 2),
	}
	e.jobs[rimage.LeftEye] <- job
	e.jobs[rimage.RightEye] <- job
	err = multierr.Combine(<-job.done, <-job.done)
	if err != nil {
		span.SetStatus(trace.Status{Code: trace.StatusCodeInternal, Message: err.Error()})
		return StatusFailed, errors.Wrapf(err, "frame %d", id)
	}

	left, right := e.eyes[rimage.LeftEye], e.eyes[rimage.RightEye]
	matches.count = left.total - left.mono
	out.Left.write(left)
	out.Right.write(right)
	out.writeMatches(matches)
	out.FrameID = id
	if out.Left.Truncated() || out.Right.Truncated() || matches.matched() > out.MatchCapacity() {
		e.logger.Warnw("output truncated", "frame", id,
			"left", out.Left.Total, "right", out.Right.Total, "matches", out.Matches,
			"point_capacity", min(out.Left.Capacity(), out.Right.Capacity()), "match_capacity", out.MatchCapacity())
	}

	n := matches.matched()
	if err := e.ring.Publish(id, matches.indices[:n], matches.dist1[:n], matches.dist2[:n]); err != nil {
		return StatusFailed, errors.Wrapf(err, "frame %d", id)
	}
	e.stats.Record(start, left.total, right.total, n)
	e.logger.CDebugw(ctx, "frame done", "frame", id, "left", left.total, "left_mono", left.mono,
		"right", right.total, "right_mono", right.mono, "matches", n)
	return StatusOK, nil
}

// worker parks until a frame arrives and runs one eye on it, until the workers are stopped.
func (e *Extractor) worker(eye rimage.Eye) func(context.Context) {
	return func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case job := <-e.jobs[eye]:
				job.done <- e.runEye(job, eye)
			}
		}
	}
}

// runEye is one eye's share of a frame. Both eyes always reach the barrier, even after an error,
// so a failing eye cannot leave the other parked there.
func (e *Extractor) runEye(job *frameJob, eye rimage.Eye) error {
	ctx, span := trace.StartSpan(job.ctx, "extractor::eye")
	span.AddAttributes(trace.StringAttribute("eye", eye.String()))
	ec := e.eyes[eye]
	lap := job.cfg.LappingLeft
	if eye == rimage.RightEye {
		lap = job.cfg.LappingRight
	}
	err := ec.extract(ctx, job.frame, e.detector, e.coeffs, job.cfg)
	if err == nil {
		ec.aggregate(lap, job.cfg.ActiveLevels)
	} else {
		ec.reset()
	}
	span.End()

	e.barrier.Wait()
	return multierr.Combine(err, e.matchHalf(job.ctx, eye, job.matches))
}

// matchHalf matches this worker's half of the left stereo descriptors against every right stereo
// descriptor. The split point is a whole number of match batches. Only the first MaxMatch points
// of either side take part; the rest are counted but left unmatched.
func (e *Extractor) matchHalf(ctx context.Context, eye rimage.Eye, m *matchBuffers) error {
	_, span := trace.StartSpan(ctx, "extractor::match")
	defer span.End()

	queries := e.eyes[rimage.LeftEye].stereo()
	candidates := e.eyes[rimage.RightEye].stereo()
	if len(queries) > keypoints.MaxMatch || len(candidates) > keypoints.MaxMatch {
		if eye == rimage.LeftEye {
			e.logger.Warnw("stereo points past match capacity are not matched",
				"left_stereo", len(queries), "right_stereo", len(candidates), "capacity", keypoints.MaxMatch)
		}
		queries = queries[:min(len(queries), keypoints.MaxMatch)]
		candidates = candidates[:min(len(candidates), keypoints.MaxMatch)]
	}

	firstHalf := (len(queries) / keypoints.MatchBatch / 2) * keypoints.MatchBatch
	lo, hi := 0, firstHalf
	if eye == rimage.RightEye {
		lo, hi = firstHalf, len(queries)
	}
	span.AddAttributes(trace.Int64Attribute("queries", int64(hi-lo)), trace.Int64Attribute("candidates", int64(len(candidates))))
	return keypoints.KnnMatch2(queries[lo:hi], candidates, m.indices[lo:hi], m.dist1[lo:hi], m.dist2[lo:hi])
}
