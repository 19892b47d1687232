// Region block matching engine
package disparity

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"stereo-disparity/internal/core"
)

// Reference selects the image whose pixels the output map is indexed by
type Reference int

const (
	ReferenceLeft Reference = iota
	ReferenceRight
)

func (r Reference) String() string {
	if r == ReferenceRight {
		return "right"
	}
	return "left"
}

type options struct {
	workers   int
	reference Reference
	logger    *logrus.Entry
}

// Option customises an Engine
type Option func(*options)

// WithWorkers sets how many row bands are matched concurrently
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithReference selects the reference image of the output map. With
// ReferenceRight, cell x holds d such that right pixel x matches left x+d.
func WithReference(r Reference) Option {
	return func(o *options) {
		o.reference = r
	}
}

// WithLogger routes debug output to the given entry
func WithLogger(l *logrus.Entry) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Engine computes dense disparity maps by SAD block matching. S is the image
// sample type, A the cost accumulator and D the output disparity type; all
// three are fixed by the constructor. An Engine holds no per-call state and
// may be used from several goroutines.
type Engine[S core.Sample, A accumulator, D Disparity] struct {
	cfg     Config
	ceiling float64
	winner  func(*candidate[A], int) D
	opts    options
}

func newEngine[S core.Sample, A accumulator, D Disparity](cfg Config, winner func(*candidate[A], int) D, opts []Option) (*Engine[S, A, D], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{
		workers: runtime.GOMAXPROCS(0),
		logger:  logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Engine[S, A, D]{
		cfg:     cfg,
		ceiling: cfg.MaxError(),
		winner:  winner,
		opts:    o,
	}, nil
}

// NewRegionWTAU8 matches 8-bit images and reports integer disparities
func NewRegionWTAU8(cfg Config, opts ...Option) (*Engine[uint8, int32, int32], error) {
	if err := cfg.checkIntegerWindow(); err != nil {
		return nil, err
	}
	return newEngine[uint8](cfg, integerWinner[int32], opts)
}

// NewRegionWTAF32 matches floating point images and reports integer disparities
func NewRegionWTAF32(cfg Config, opts ...Option) (*Engine[float32, float64, int32], error) {
	return newEngine[float32](cfg, integerWinner[float64], opts)
}

// NewRegionSubpixelWTAU8 matches 8-bit images and refines winners to
// sub-pixel precision
func NewRegionSubpixelWTAU8(cfg Config, opts ...Option) (*Engine[uint8, int32, float32], error) {
	if err := cfg.checkIntegerWindow(); err != nil {
		return nil, err
	}
	return newEngine[uint8](cfg, subpixelWinner[int32], opts)
}

// NewRegionSubpixelWTAF32 matches floating point images and refines winners
// to sub-pixel precision
func NewRegionSubpixelWTAF32(cfg Config, opts ...Option) (*Engine[float32, float64, float32], error) {
	return newEngine[float32](cfg, subpixelWinner[float64], opts)
}

func (e *Engine[S, A, D]) Config() Config { return e.cfg }

// Process matches left against right and returns a freshly allocated map of
// the reference image's size. Argument errors are reported before any work
// is done; unmatched pixels are marked with the map's Invalid value.
func (e *Engine[S, A, D]) Process(left, right *core.Gray[S]) (*Map[D], error) {
	if left == nil || right == nil {
		return nil, ErrNilImage
	}
	if err := core.ValidateImage(left); err != nil {
		return nil, fmt.Errorf("left: %w", err)
	}
	if err := core.ValidateImage(right); err != nil {
		return nil, fmt.Errorf("right: %w", err)
	}
	if err := checkFinite(left); err != nil {
		return nil, fmt.Errorf("left: %w", err)
	}
	if err := checkFinite(right); err != nil {
		return nil, fmt.Errorf("right: %w", err)
	}
	if !left.SameSize(right) {
		return nil, fmt.Errorf("%w: %dx%d vs %dx%d", ErrSizeMismatch, left.W, left.H, right.W, right.H)
	}
	if err := e.cfg.fits(left.W, left.H); err != nil {
		return nil, err
	}

	start := time.Now()
	out := newMap[D](left.W, left.H, e.cfg.MaxDisparity)

	y0, y1 := e.cfg.RegionRadiusY, left.H-e.cfg.RegionRadiusY
	bands := e.opts.workers
	if rows := y1 - y0; bands > rows {
		bands = rows
	}

	var wg sync.WaitGroup
	step := (y1 - y0 + bands - 1) / bands
	for b0 := y0; b0 < y1; b0 += step {
		b1 := min(b0+step, y1)
		wg.Add(1)
		go func(b0, b1 int) {
			defer wg.Done()
			e.processBand(left, right, out, b0, b1)
		}(b0, b1)
	}
	wg.Wait()

	e.opts.logger.WithFields(logrus.Fields{
		"width":         left.W,
		"height":        left.H,
		"max_disparity": e.cfg.MaxDisparity,
		"region":        fmt.Sprintf("%dx%d", e.cfg.RegionWidth(), e.cfg.RegionHeight()),
		"reference":     e.opts.reference.String(),
		"bands":         bands,
		"invalid":       out.InvalidCount(),
		"elapsed":       time.Since(start),
	}).Debug("Disparity computed")

	return out, nil
}

// processBand matches rows y0 <= y < y1 and writes them to out. Each band
// owns its planes and selection state, so bands never share memory except
// for disjoint rows of out.
func (e *Engine[S, A, D]) processBand(left, right *core.Gray[S], out *Map[D], y0, y1 int) {
	w := left.W
	rows := y1 - y0
	lo, hi := e.cfg.RegionRadiusX, w-1-e.cfg.RegionRadiusX
	last := min(e.cfg.MaxDisparity, hi-lo)
	validate := e.cfg.ValidateRtoL > 0

	var fromLeft, fromRight []candidate[A]
	if e.opts.reference == ReferenceLeft || validate {
		fromLeft = newCandidates[A](rows * w)
	}
	if e.opts.reference == ReferenceRight || validate {
		fromRight = newCandidates[A](rows * w)
	}

	agg := newCostAggregator[S, A](left, right, e.cfg.RegionRadiusX, e.cfg.RegionRadiusY)
	cur, prev := make([]A, rows*w), make([]A, rows*w)

	// one extra pass after the last disparity flushes the pending folds
	for d := 0; d <= last+1; d++ {
		computed := d <= last
		if computed {
			agg.compute(d, y0, y1, cur)
		}
		for r := 0; r < rows; r++ {
			var rowCur, rowPrev []A
			if computed {
				rowCur = cur[r*w : (r+1)*w]
			}
			if d > 0 {
				rowPrev = prev[r*w : (r+1)*w]
			}
			if fromLeft != nil {
				accumulateRow(fromLeft[r*w:(r+1)*w], rowCur, rowPrev, d, 0, lo, hi)
			}
			if fromRight != nil {
				accumulateRow(fromRight[r*w:(r+1)*w], rowCur, rowPrev, d, 1, lo, hi)
			}
		}
		cur, prev = prev, cur
	}

	primary, secondary, direction := fromLeft, fromRight, -1
	if e.opts.reference == ReferenceRight {
		primary, secondary, direction = fromRight, fromLeft, 1
	}

	winners := make([]int32, w)
	others := make([]int32, w)
	keep := make([]bool, w)
	for r := 0; r < rows; r++ {
		states := primary[r*w : (r+1)*w]
		for x := range states {
			s := &states[x]
			winners[x] = s.bestD
			keep[x] = s.bestD >= 0 &&
				!exceedsCeiling(s.best, e.ceiling) &&
				!textureAmbiguous(s.best, s.second, e.cfg.Texture)
		}
		if validate {
			for x, s := range secondary[r*w : (r+1)*w] {
				others[x] = s.bestD
			}
			validateRightToLeft(winners, others, e.cfg.ValidateRtoL, direction, keep)
		}

		dst := out.Data[(y0+r)*w : (y0+r+1)*w]
		for x := lo; x <= hi; x++ {
			if keep[x] {
				dst[x] = e.winner(&states[x], e.cfg.MaxDisparity)
			}
		}
	}
}
