// Pipeline operation tracking and timing statistics
package pipeline

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Operation names recorded by the pipeline
const (
	OpPrefilter  = "prefilter"
	OpConversion = "mat_conversion"
	OpMatch      = "match"
	OpMetrics    = "calculate_metrics"
)

// maxOperations bounds the retained history
const maxOperations = 256

// PipelineOperation tracks individual pipeline operations
type PipelineOperation struct {
	Timestamp time.Time
	Operation string
	Success   bool
	Duration  time.Duration
	Details   map[string]interface{}
	Error     string
}

// PipelineDebugger records operations and keeps per-operation timings
type PipelineDebugger struct {
	mu     sync.Mutex
	logger *logrus.Logger

	operations []PipelineOperation
	total      int
	succeeded  int
	durations  map[string][]time.Duration
}

func NewPipelineDebugger(logger *logrus.Logger) *PipelineDebugger {
	return &PipelineDebugger{
		logger:     logger,
		operations: make([]PipelineOperation, 0),
		durations:  make(map[string][]time.Duration),
	}
}

// LogOperation records one operation. Failures are logged at error level,
// everything else at debug.
func (pd *PipelineDebugger) LogOperation(operation string, duration time.Duration, details map[string]interface{}, err error) {
	errorStr := ""
	if err != nil {
		errorStr = err.Error()
	}

	op := PipelineOperation{
		Timestamp: time.Now(),
		Operation: operation,
		Success:   err == nil,
		Duration:  duration,
		Details:   details,
		Error:     errorStr,
	}

	pd.mu.Lock()
	pd.operations = append(pd.operations, op)
	if len(pd.operations) > maxOperations {
		pd.operations = pd.operations[len(pd.operations)-maxOperations:]
	}
	pd.total++
	if op.Success {
		pd.succeeded++
		pd.durations[operation] = append(pd.durations[operation], duration)
	}
	pd.mu.Unlock()

	entry := pd.logger.WithFields(logrus.Fields{
		"operation":   operation,
		"success":     op.Success,
		"duration_ms": duration.Milliseconds(),
	}).WithFields(details)
	if err != nil {
		entry.WithError(err).Error("Pipeline operation failed")
		return
	}
	entry.Debug("Pipeline operation")
}

// Recent returns up to n of the latest operations, oldest first
func (pd *PipelineDebugger) Recent(n int) []PipelineOperation {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	if n > len(pd.operations) {
		n = len(pd.operations)
	}
	recent := make([]PipelineOperation, n)
	copy(recent, pd.operations[len(pd.operations)-n:])
	return recent
}

// GetStats summarises the recorded operations
func (pd *PipelineDebugger) GetStats() map[string]interface{} {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	stats := map[string]interface{}{
		"total_operations": pd.total,
	}
	if pd.total > 0 {
		stats["success_rate"] = float64(pd.succeeded) / float64(pd.total)
	}
	for name, durations := range pd.durations {
		stats["avg_"+name+"_time"] = averageDuration(durations)
	}
	return stats
}

func averageDuration(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var total time.Duration
	for _, d := range durations {
		total += d
	}

	return total / time.Duration(len(durations))
}
