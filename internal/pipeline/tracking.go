package pipeline

import (
	"fmt"
	"sync"
	"time"

	"go-tweet-pipeline/internal/model"
	"go-tweet-pipeline/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Stage names outside the cleaning steps
const (
	StageIngestion  = "ingestion"
	StageExtraction = "extraction"
	StageValidation = "validation"
	StageExport     = "export"
)

// ProgressRecorder persists run progress. *store.DB implements it.
type ProgressRecorder interface {
	SaveStageProgress(runID string, stage model.StageMetrics) error
	SaveRunError(runID, stage string, err error) error
	UpdateRunStatus(runID string, status string) error
}

// RunTracker records stage progress of one run in memory, in the logs, in
// a Prometheus registry and, when set, in a ProgressRecorder.
type RunTracker struct {
	RunID    string
	metrics  model.RunMetrics
	mu       sync.Mutex
	logger   *zap.Logger
	recorder ProgressRecorder

	registry      *prometheus.Registry
	rowsIn        *prometheus.GaugeVec
	rowsOut       *prometheus.GaugeVec
	stageDuration *prometheus.GaugeVec
	errorsTotal   *prometheus.CounterVec
}

// NewRunTracker creates a tracker. recorder may be nil.
func NewRunTracker(runID string, recorder ProgressRecorder, log *zap.Logger) *RunTracker {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	labels := prometheus.Labels{"run_id": runID}

	return &RunTracker{
		RunID: runID,
		metrics: model.RunMetrics{
			RunID:     runID,
			Status:    "running",
			StartTime: time.Now(),
		},
		logger:   logger.OrNop(log).Named("tracker").With(zap.String("run_id", runID)),
		recorder: recorder,
		registry: reg,
		rowsIn: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "tweet_pipeline_stage_rows_in",
			Help:        "Rows entering a pipeline stage.",
			ConstLabels: labels,
		}, []string{"stage"}),
		rowsOut: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "tweet_pipeline_stage_rows_out",
			Help:        "Rows leaving a pipeline stage.",
			ConstLabels: labels,
		}, []string{"stage"}),
		stageDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "tweet_pipeline_stage_duration_seconds",
			Help:        "Wall time spent in a pipeline stage.",
			ConstLabels: labels,
		}, []string{"stage"}),
		errorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "tweet_pipeline_errors_total",
			Help:        "Errors raised by pipeline stages.",
			ConstLabels: labels,
		}, []string{"stage"}),
	}
}

// Registry exposes the run's metrics.
func (rt *RunTracker) Registry() *prometheus.Registry {
	return rt.registry
}

// StartStage marks the start of a pipeline stage
func (rt *RunTracker) StartStage(stage string, rowsIn int) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	rt.metrics.Stages = append(rt.metrics.Stages, model.StageMetrics{
		StageName: stage,
		StartTime: time.Now(),
		RowsIn:    rowsIn,
		Status:    "running",
	})
	rt.rowsIn.WithLabelValues(stage).Set(float64(rowsIn))
	rt.logger.Debug("stage started", zap.String("stage", stage), zap.Int("rows_in", rowsIn))
}

// current returns the latest entry for stage. Callers hold rt.mu.
func (rt *RunTracker) current(stage string) *model.StageMetrics {
	for i := len(rt.metrics.Stages) - 1; i >= 0; i-- {
		if rt.metrics.Stages[i].StageName == stage {
			return &rt.metrics.Stages[i]
		}
	}
	rt.metrics.Stages = append(rt.metrics.Stages, model.StageMetrics{StageName: stage, StartTime: time.Now()})
	return &rt.metrics.Stages[len(rt.metrics.Stages)-1]
}

// EndStage marks the end of a pipeline stage
func (rt *RunTracker) EndStage(stage string, rowsOut int) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	s := rt.current(stage)
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
	s.RowsOut = rowsOut
	s.Status = "completed"

	rt.rowsOut.WithLabelValues(stage).Set(float64(rowsOut))
	rt.stageDuration.WithLabelValues(stage).Set(s.Duration.Seconds())
	rt.logger.Info("stage completed",
		zap.String("stage", stage),
		zap.Int("rows_in", s.RowsIn),
		zap.Int("rows_out", rowsOut),
		zap.Duration("duration", s.Duration))

	rt.persist(*s)
}

// FailStage marks a stage as failed and records the error
func (rt *RunTracker) FailStage(stage string, err error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	s := rt.current(stage)
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
	s.Status = "failed"
	rt.metrics.Errors = append(rt.metrics.Errors, model.ErrorDetail{
		Stage:     stage,
		Message:   err.Error(),
		Timestamp: s.EndTime,
	})

	rt.errorsTotal.WithLabelValues(stage).Inc()
	rt.logger.Error("stage failed", zap.String("stage", stage), zap.Error(err))

	rt.persist(*s)
	if rt.recorder != nil {
		if rerr := rt.recorder.SaveRunError(rt.RunID, stage, err); rerr != nil {
			rt.logger.Warn("failed to save run error", zap.Error(rerr))
		}
	}
}

func (rt *RunTracker) persist(s model.StageMetrics) {
	if rt.recorder == nil {
		return
	}
	if err := rt.recorder.SaveStageProgress(rt.RunID, s); err != nil {
		rt.logger.Warn("failed to save stage progress", zap.String("stage", s.StageName), zap.Error(err))
	}
}

// SetStatus updates the run status in memory and in the recorder
func (rt *RunTracker) SetStatus(status string) {
	rt.mu.Lock()
	rt.metrics.Status = status
	rt.mu.Unlock()

	if rt.recorder == nil {
		return
	}
	if err := rt.recorder.UpdateRunStatus(rt.RunID, status); err != nil {
		rt.logger.Warn("failed to update run status", zap.String("status", status), zap.Error(err))
	}
}

// Complete marks the run as completed
func (rt *RunTracker) Complete() {
	rt.finish("completed")
}

// Fail marks the run as failed
func (rt *RunTracker) Fail() {
	rt.finish("failed")
}

func (rt *RunTracker) finish(status string) {
	rt.mu.Lock()
	rt.metrics.EndTime = time.Now()
	rt.metrics.Duration = rt.metrics.EndTime.Sub(rt.metrics.StartTime)
	duration := rt.metrics.Duration
	rt.mu.Unlock()

	rt.SetStatus(status)
	rt.logger.Info("run finished", zap.String("status", status), zap.Duration("duration", duration))
}

// GetMetrics returns a copy of the current run metrics
func (rt *RunTracker) GetMetrics() model.RunMetrics {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	metrics := rt.metrics
	metrics.Stages = append([]model.StageMetrics(nil), rt.metrics.Stages...)
	metrics.Errors = append([]model.ErrorDetail(nil), rt.metrics.Errors...)
	return metrics
}

// WriteMetrics writes the run's metrics in the Prometheus text format, for
// the node exporter textfile collector.
func (rt *RunTracker) WriteMetrics(path string) error {
	if err := prometheus.WriteToTextfile(path, rt.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
