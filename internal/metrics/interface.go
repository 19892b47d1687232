// Disparity quality metrics against ground truth
package metrics

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"stereo-disparity/internal/core"
	"stereo-disparity/internal/disparity"
)

var (
	ErrUnknownMetric = errors.New("metrics: unknown metric")
	ErrSizeMismatch  = errors.New("metrics: disparity map and ground truth sizes differ")
	ErrNoTruth       = errors.New("metrics: ground truth required")
	ErrNoOverlap     = errors.New("metrics: no pixel has both an estimate and ground truth")
)

// Metric defines the interface for disparity quality metrics. Ground truth
// holds disparities in pixels, 0 marking pixels without truth.
type Metric interface {
	// Calculate computes the metric value
	Calculate(result disparity.Result, truth *core.Gray[float32]) (float64, error)

	GetName() string
	GetDescription() string

	// GetRange returns the value range (min, max)
	GetRange() (float64, float64)

	// IsHigherBetter returns true if higher values indicate better quality
	IsHigherBetter() bool
}

// Evaluator manages and calculates multiple metrics
type Evaluator struct {
	metrics map[string]Metric
}

// NewEvaluator creates a new metrics evaluator
func NewEvaluator() *Evaluator {
	e := &Evaluator{
		metrics: make(map[string]Metric),
	}

	e.RegisterDefaultMetrics()

	return e
}

// RegisterDefaultMetrics registers all default metrics
func (e *Evaluator) RegisterDefaultMetrics() {
	e.Register("coverage", NewCoverage())
	e.Register("bad_1", NewBadPixel(1))
	e.Register("bad_2", NewBadPixel(2))
	e.Register("mae", NewMAE())
	e.Register("rmse", NewRMSE())
}

func (e *Evaluator) Register(name string, metric Metric) {
	e.metrics[name] = metric
}

// Names lists registered metrics in order
func (e *Evaluator) Names() []string {
	names := make([]string, 0, len(e.metrics))
	for name := range e.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Calculate calculates a specific metric
func (e *Evaluator) Calculate(name string, result disparity.Result, truth *core.Gray[float32]) (float64, error) {
	metric, exists := e.metrics[name]
	if !exists {
		return 0, fmt.Errorf("%w: %s", ErrUnknownMetric, name)
	}

	return metric.Calculate(result, truth)
}

// CalculateAll calculates every registered metric, leaving out those that
// cannot be computed for this input
func (e *Evaluator) CalculateAll(result disparity.Result, truth *core.Gray[float32]) map[string]float64 {
	results := make(map[string]float64)

	for name, metric := range e.metrics {
		if value, err := metric.Calculate(result, truth); err == nil {
			results[name] = value
		}
	}

	return results
}

// GetMetricInfo returns information about all metrics
func (e *Evaluator) GetMetricInfo() map[string]MetricInfo {
	info := make(map[string]MetricInfo)

	for name, metric := range e.metrics {
		lo, hi := metric.GetRange()
		info[name] = MetricInfo{
			Name:         metric.GetName(),
			Description:  metric.GetDescription(),
			Range:        [2]float64{lo, hi},
			HigherBetter: metric.IsHigherBetter(),
		}
	}

	return info
}

// MetricInfo provides metadata about a metric
type MetricInfo struct {
	Name         string
	Description  string
	Range        [2]float64 // [min, max]
	HigherBetter bool
}

// Report summarises one disparity map
type Report struct {
	Width     int                `json:"width"`
	Height    int                `json:"height"`
	Invalid   int                `json:"invalid"`
	Metrics   map[string]float64 `json:"metrics"`
	Timestamp string             `json:"timestamp"`
}

// GenerateReport computes every metric that applies. truth may be nil, in
// which case only truth-free metrics are reported.
func (e *Evaluator) GenerateReport(result disparity.Result, truth *core.Gray[float32]) Report {
	return Report{
		Width:     result.Width(),
		Height:    result.Height(),
		Invalid:   result.InvalidCount(),
		Metrics:   e.CalculateAll(result, truth),
		Timestamp: time.Now().Format("2006-01-02 15:04:05"),
	}
}
