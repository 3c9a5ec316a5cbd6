package governance

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/ErikG1776/syntropiq/domain"
)

// Threshold bounds. Mutation never moves a threshold outside these.
const (
	trustFloor       = 0.55
	trustCap         = 0.95
	suppressionFloor = 0.78
	suppressionCap   = 0.95
	driftFloor       = 0.05
	driftCap         = 0.2

	// safetyMargin is the minimum gap the suppression threshold must keep
	// above the trust threshold.
	safetyMargin = 0.05

	// materialDelta is how far realized success may stray from the target
	// before a full-strength mutation kicks in.
	materialDelta = 0.05
)

// MutationStore is the slice of the persistence port the mutation engine
// needs for durability and warm-start. Satisfied by store.Store.
type MutationStore interface {
	RecordMutationEvent(ctx context.Context, record domain.MutationRecord) error
	GetMutationHistory(ctx context.Context, limit int) ([]domain.MutationRecord, error)
	GetLatestThresholds(ctx context.Context) (*domain.Thresholds, error)
}

// MutationEngineParams configures a MutationEngine.
type MutationEngineParams struct {
	Initial           domain.Thresholds
	MutationRate      float64
	TargetSuccessRate float64
	HistoryWindow     int
	Store             MutationStore
	Logger            *zap.Logger
}

// MutationEngine is the closed-loop controller that retunes the governance
// thresholds once per cycle from the realized success rate. Every evaluation
// appends a MutationRecord; on restart the engine warm-starts from the most
// recent persisted thresholds so the control loop keeps its memory.
type MutationEngine struct {
	thresholds        domain.Thresholds
	mutationRate      float64
	targetSuccessRate float64
	historyWindow     int

	successRates []float64
	history      []domain.MutationRecord

	store  MutationStore
	logger *zap.Logger
}

// NewMutationEngine creates the controller and warm-starts it from storage
// when a store is supplied.
func NewMutationEngine(ctx context.Context, p MutationEngineParams) (*MutationEngine, error) {
	if p.MutationRate <= 0 {
		p.MutationRate = 0.05
	}
	if p.TargetSuccessRate <= 0 {
		p.TargetSuccessRate = 0.85
	}
	if p.HistoryWindow <= 0 {
		p.HistoryWindow = 100
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}

	m := &MutationEngine{
		thresholds:        p.Initial,
		mutationRate:      p.MutationRate,
		targetSuccessRate: p.TargetSuccessRate,
		historyWindow:     p.HistoryWindow,
		store:             p.Store,
		logger:            p.Logger,
	}

	if m.store != nil {
		latest, err := m.store.GetLatestThresholds(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load latest thresholds: %w", err)
		}
		if latest != nil {
			m.thresholds = *latest
			m.logger.Info("warm-started thresholds from storage",
				zap.Float64("trust", latest.Trust),
				zap.Float64("suppression", latest.Suppression),
				zap.Float64("drift_delta", latest.DriftDelta))
		}

		history, err := m.store.GetMutationHistory(ctx, m.historyWindow)
		if err != nil {
			return nil, fmt.Errorf("failed to load mutation history: %w", err)
		}
		m.history = history
		for _, record := range history {
			m.successRates = append(m.successRates, record.SuccessRate)
		}
	}

	return m, nil
}

// Thresholds returns the current threshold triple.
func (m *MutationEngine) Thresholds() domain.Thresholds {
	return m.thresholds
}

// EvaluateAndMutate adjusts the thresholds from the cycle's realized success
// rate. Materially under target tightens, materially over target loosens,
// and near-target performance gets a half-strength nudge. The safety band
// (suppression >= trust + margin) is re-enforced after every adjustment.
// An empty result set leaves the thresholds untouched and records nothing.
func (m *MutationEngine) EvaluateAndMutate(ctx context.Context, results []domain.ExecutionResult, cycleID string) (domain.Thresholds, error) {
	if len(results) == 0 {
		return m.thresholds, nil
	}

	successes := 0
	for _, r := range results {
		if r.Success {
			successes++
		}
	}
	successRate := float64(successes) / float64(len(results))
	m.successRates = append(m.successRates, successRate)

	old := m.thresholds
	delta := successRate - m.targetSuccessRate

	var action domain.MutationAction
	switch {
	case delta < -materialDelta:
		// Materially underperforming: become more conservative.
		m.thresholds.Trust = math.Min(trustCap, m.thresholds.Trust+m.mutationRate)
		m.thresholds.Suppression = math.Min(suppressionCap, m.thresholds.Suppression+m.mutationRate)
		m.thresholds.DriftDelta = math.Min(driftCap, m.thresholds.DriftDelta+0.02)
		action = domain.MutationTighten
	case delta > materialDelta:
		// Materially outperforming: take more risk.
		m.thresholds.Trust = math.Max(trustFloor, m.thresholds.Trust-m.mutationRate)
		m.thresholds.Suppression = math.Max(suppressionFloor, m.thresholds.Suppression-m.mutationRate)
		m.thresholds.DriftDelta = math.Max(driftFloor, m.thresholds.DriftDelta-0.02)
		action = domain.MutationLoosen
	case delta < 0:
		m.thresholds.Trust = math.Min(trustCap, m.thresholds.Trust+m.mutationRate*0.5)
		action = domain.MutationMinorTighten
	default:
		m.thresholds.Trust = math.Max(trustFloor, m.thresholds.Trust-m.mutationRate*0.5)
		action = domain.MutationMinorLoosen
	}

	// Safety band invariant: suppression >= trust + margin.
	if required := m.thresholds.Trust + safetyMargin; m.thresholds.Suppression < required {
		if required <= suppressionCap {
			m.thresholds.Suppression = required
		} else {
			m.thresholds.Suppression = suppressionCap
			m.thresholds.Trust = math.Min(m.thresholds.Trust, m.thresholds.Suppression-safetyMargin)
		}
	}

	record := domain.MutationRecord{
		CycleID:              cycleID,
		SuccessRate:          successRate,
		Action:               action,
		TrustThreshold:       domain.ThresholdChange{Old: old.Trust, New: m.thresholds.Trust},
		SuppressionThreshold: domain.ThresholdChange{Old: old.Suppression, New: m.thresholds.Suppression},
		DriftDelta:           domain.ThresholdChange{Old: old.DriftDelta, New: m.thresholds.DriftDelta},
	}
	m.history = append(m.history, record)

	if m.store != nil {
		if err := m.store.RecordMutationEvent(ctx, record); err != nil {
			return m.thresholds, fmt.Errorf("failed to record mutation event: %w", err)
		}
	}

	m.logger.Info("mutation evaluated",
		zap.String("cycle_id", cycleID),
		zap.Float64("success_rate", successRate),
		zap.String("action", string(action)),
		zap.Float64("trust_threshold", m.thresholds.Trust),
		zap.Float64("suppression_threshold", m.thresholds.Suppression),
		zap.Float64("drift_delta", m.thresholds.DriftDelta))

	return m.thresholds, nil
}

// History returns the most recent mutation records, preferring the durable
// log when a store is attached.
func (m *MutationEngine) History(ctx context.Context, limit int) ([]domain.MutationRecord, error) {
	if m.store != nil {
		return m.store.GetMutationHistory(ctx, limit)
	}
	if limit > len(m.history) {
		limit = len(m.history)
	}
	return m.history[len(m.history)-limit:], nil
}

// PerformanceTrend summarizes the recent success-rate trajectory.
type PerformanceTrend struct {
	AvgSuccessRate float64 `json:"avg_success_rate"`
	Trend          string  `json:"trend"`
	CyclesTracked  int     `json:"cycles_tracked"`
}

// Trend reports the average and direction of the last ten cycles.
func (m *MutationEngine) Trend() PerformanceTrend {
	if len(m.successRates) == 0 {
		return PerformanceTrend{Trend: "unknown"}
	}

	recent := m.successRates
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}

	sum := 0.0
	for _, r := range recent {
		sum += r
	}
	avg := sum / float64(len(recent))

	trend := "stable"
	if len(recent) >= 2 {
		half := len(recent) / 2
		firstSum, secondSum := 0.0, 0.0
		for _, r := range recent[:half] {
			firstSum += r
		}
		for _, r := range recent[half:] {
			secondSum += r
		}
		if secondSum/float64(len(recent)-half) > firstSum/float64(half) {
			trend = "improving"
		} else {
			trend = "declining"
		}
	}

	return PerformanceTrend{
		AvgSuccessRate: math.Round(avg*1000) / 1000,
		Trend:          trend,
		CyclesTracked:  len(m.successRates),
	}
}
