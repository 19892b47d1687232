// Stereo processing pipeline: prefilters, matching and evaluation
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"

	"stereo-disparity/internal/algorithms"
	"stereo-disparity/internal/core"
	"stereo-disparity/internal/disparity"
	"stereo-disparity/internal/io"
	"stereo-disparity/internal/metrics"
)

var ErrStepIndex = errors.New("pipeline: step index out of range")

// ProcessingStep represents a sequential prefilter step applied to both images
type ProcessingStep struct {
	Algorithm  string
	Parameters map[string]interface{}
	Enabled    bool
}

// Output is the product of one pipeline run
type Output struct {
	Disparity disparity.Result
	Metrics   map[string]float64
	Elapsed   time.Duration
}

// StereoPipeline prefilters a rectified pair, matches it and evaluates the
// result. Configuration methods may be called concurrently with Process;
// each run works on a snapshot.
type StereoPipeline struct {
	mu          sync.RWMutex
	loader      *io.ImageLoader
	metricsEval *metrics.Evaluator
	debugger    *PipelineDebugger
	logger      *logrus.Logger

	steps         []ProcessingStep
	matcher       string
	matcherParams map[string]interface{}
	kind          core.Kind
	workers       int
}

func NewStereoPipeline(logger *logrus.Logger) *StereoPipeline {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &StereoPipeline{
		loader:        io.NewImageLoader(logger),
		metricsEval:   metrics.NewEvaluator(),
		debugger:      NewPipelineDebugger(logger),
		logger:        logger,
		steps:         make([]ProcessingStep, 0),
		matcher:       "region_wta",
		matcherParams: map[string]interface{}{},
		kind:          core.KindU8,
	}
}

// Loader returns the loader used by ProcessFiles
func (sp *StereoPipeline) Loader() *io.ImageLoader {
	return sp.loader
}

// Debugger returns the operation history of past runs
func (sp *StereoPipeline) Debugger() *PipelineDebugger {
	return sp.debugger
}

// AddStep appends a prefilter applied to both images
func (sp *StereoPipeline) AddStep(algorithm string, parameters map[string]interface{}) error {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if _, ok := algorithms.GetFilter(algorithm); !ok {
		return fmt.Errorf("%w: prefilter %s", algorithms.ErrUnknownAlgorithm, algorithm)
	}

	if err := algorithms.ValidateParameters(algorithm, parameters); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}

	step := ProcessingStep{
		Algorithm:  algorithm,
		Parameters: parameters,
		Enabled:    true,
	}

	sp.steps = append(sp.steps, step)
	sp.logger.WithField("algorithm", algorithm).Debug("Added prefilter step")

	return nil
}

// SetStepEnabled toggles a step without removing it
func (sp *StereoPipeline) SetStepEnabled(index int, enabled bool) error {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if index < 0 || index >= len(sp.steps) {
		return fmt.Errorf("%w: %d of %d", ErrStepIndex, index, len(sp.steps))
	}
	sp.steps[index].Enabled = enabled
	return nil
}

func (sp *StereoPipeline) ClearSteps() {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.steps = sp.steps[:0]
}

// GetSteps returns a copy of the configured steps
func (sp *StereoPipeline) GetSteps() []ProcessingStep {
	sp.mu.RLock()
	defer sp.mu.RUnlock()

	steps := make([]ProcessingStep, len(sp.steps))
	copy(steps, sp.steps)
	return steps
}

// SetMatcher selects the matching algorithm and its parameters
func (sp *StereoPipeline) SetMatcher(name string, params map[string]interface{}) error {
	if _, ok := algorithms.GetMatcher(name); !ok {
		return fmt.Errorf("%w: matcher %s", algorithms.ErrUnknownAlgorithm, name)
	}
	if err := algorithms.ValidateParameters(name, params); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}

	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.matcher = name
	sp.matcherParams = params
	return nil
}

// SetSampleKind selects the sample type the pair is matched in. Prefilters
// producing floating point output always switch matching to KindF32.
func (sp *StereoPipeline) SetSampleKind(kind core.Kind) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.kind = kind
}

// SetWorkers bounds the matcher's concurrency, zero meaning one per CPU
func (sp *StereoPipeline) SetWorkers(n int) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.workers = n
}

type snapshot struct {
	steps         []ProcessingStep
	matcher       string
	matcherParams map[string]interface{}
	kind          core.Kind
	workers       int
}

func (sp *StereoPipeline) snapshot() snapshot {
	sp.mu.RLock()
	defer sp.mu.RUnlock()

	steps := make([]ProcessingStep, len(sp.steps))
	copy(steps, sp.steps)
	return snapshot{
		steps:         steps,
		matcher:       sp.matcher,
		matcherParams: sp.matcherParams,
		kind:          sp.kind,
		workers:       sp.workers,
	}
}

// ProcessFiles loads a pair, and optionally ground truth, and processes it.
// truthPath may be empty.
func (sp *StereoPipeline) ProcessFiles(ctx context.Context, leftPath, rightPath, truthPath string, truthScale float64) (*Output, error) {
	left, err := sp.loader.LoadGrayscale(leftPath)
	if err != nil {
		return nil, fmt.Errorf("left: %w", err)
	}
	defer left.Close()

	right, err := sp.loader.LoadGrayscale(rightPath)
	if err != nil {
		return nil, fmt.Errorf("right: %w", err)
	}
	defer right.Close()

	var truth *core.Gray[float32]
	if truthPath != "" {
		truth, err = sp.loader.LoadTruth(truthPath, truthScale)
		if err != nil {
			return nil, fmt.Errorf("ground truth: %w", err)
		}
	}

	return sp.Process(ctx, left, right, truth)
}

// Process runs the prefilters on both images, matches them and evaluates the
// map. truth may be nil. The input Mats are not modified.
func (sp *StereoPipeline) Process(ctx context.Context, left, right gocv.Mat, truth *core.Gray[float32]) (*Output, error) {
	start := time.Now()
	cfg := sp.snapshot()
	log := sp.logger.WithFields(logrus.Fields{
		"matcher": cfg.matcher,
		"steps":   len(cfg.steps),
	})
	log.Debug("Processing stereo pair")

	if left.Empty() || right.Empty() {
		return nil, fmt.Errorf("%w: empty input", algorithms.ErrEmptyInput)
	}

	stepStart := time.Now()
	var filteredLeft, filteredRight gocv.Mat
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		filteredLeft, err = sp.processSequential(gctx, cfg.steps, left)
		return err
	})
	g.Go(func() error {
		var err error
		filteredRight, err = sp.processSequential(gctx, cfg.steps, right)
		return err
	})
	err := g.Wait()
	defer filteredLeft.Close()
	defer filteredRight.Close()
	sp.debugger.LogOperation(OpPrefilter, time.Since(stepStart), map[string]interface{}{"steps": len(cfg.steps)}, err)
	if err != nil {
		return nil, err
	}

	kind := cfg.kind
	if filteredLeft.Type() == gocv.MatTypeCV32FC1 || filteredRight.Type() == gocv.MatTypeCV32FC1 {
		kind = core.KindF32
	}
	stepStart = time.Now()
	l, r, err := convertPair(filteredLeft, filteredRight, kind)
	sp.debugger.LogOperation(OpConversion, time.Since(stepStart), map[string]interface{}{"kind": kind.String()}, err)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := []disparity.Option{disparity.WithLogger(log)}
	if cfg.workers > 0 {
		opts = append(opts, disparity.WithWorkers(cfg.workers))
	}
	stepStart = time.Now()
	result, err := algorithms.Match(cfg.matcher, l, r, cfg.matcherParams, opts...)
	sp.debugger.LogOperation(OpMatch, time.Since(stepStart), map[string]interface{}{"matcher": cfg.matcher}, err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.matcher, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stepStart = time.Now()
	scores := sp.metricsEval.CalculateAll(result, truth)
	sp.debugger.LogOperation(OpMetrics, time.Since(stepStart), map[string]interface{}{"truth": truth != nil}, nil)

	out := &Output{
		Disparity: result,
		Metrics:   scores,
		Elapsed:   time.Since(start),
	}

	fields := logrus.Fields{
		"width":   result.Width(),
		"height":  result.Height(),
		"kind":    kind.String(),
		"invalid": result.InvalidCount(),
		"elapsed": out.Elapsed,
	}
	for name, value := range out.Metrics {
		fields[name] = value
	}
	log.WithFields(fields).Info("Disparity map computed")

	return out, nil
}

func convertPair(left, right gocv.Mat, kind core.Kind) (core.Image, core.Image, error) {
	l, err := io.MatToImage(left, kind)
	if err != nil {
		return nil, nil, fmt.Errorf("left: %w", err)
	}
	r, err := io.MatToImage(right, kind)
	if err != nil {
		return nil, nil, fmt.Errorf("right: %w", err)
	}
	return l, r, nil
}

// processSequential applies the enabled steps in order. The result is a new
// Mat owned by the caller, even when no step is enabled.
func (sp *StereoPipeline) processSequential(ctx context.Context, steps []ProcessingStep, input gocv.Mat) (gocv.Mat, error) {
	current := input.Clone()

	for i, step := range steps {
		select {
		case <-ctx.Done():
			current.Close()
			return gocv.NewMat(), ctx.Err()
		default:
		}

		if !step.Enabled {
			sp.logger.WithFields(logrus.Fields{"step": i, "algorithm": step.Algorithm}).Debug("Skipping disabled step")
			continue
		}

		result, err := algorithms.ApplyFilter(step.Algorithm, current, step.Parameters)
		current.Close()
		if err != nil {
			sp.logger.WithFields(logrus.Fields{
				"step":      i,
				"algorithm": step.Algorithm,
				"error":     err,
			}).Error("Prefilter step failed")
			result.Close()
			return gocv.NewMat(), fmt.Errorf("step %d (%s): %w", i, step.Algorithm, err)
		}
		current = result
	}

	return current, nil
}
