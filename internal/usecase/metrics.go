package usecase

import (
	"sync"

	"github.com/example/cardio-risk/internal/model"
)

// MetricsSummary represents aggregated assessment insights since start-up.
type MetricsSummary struct {
	TotalRequests             int64   `json:"total_requests"`
	HighRiskRequests          int64   `json:"high_risk_requests"`
	HighRiskRate              float64 `json:"high_risk_rate"`
	CacheHits                 int64   `json:"cache_hits"`
	Failures                  int64   `json:"failures"`
	AverageDiseaseProbability float64 `json:"average_disease_probability"`
}

type metrics struct {
	mu             sync.Mutex
	total          int64
	highRisk       int64
	cacheHits      int64
	failures       int64
	diseaseProbSum float64
}

func (m *metrics) observe(p model.Prediction, cached bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total++
	if p.Class == model.ClassDisease {
		m.highRisk++
	}
	if cached {
		m.cacheHits++
	}
	m.diseaseProbSum += p.Probabilities[model.ClassDisease]
}

func (m *metrics) failure() {
	m.mu.Lock()
	m.failures++
	m.mu.Unlock()
}

// GetMetricsSummary aggregates the counters of completed assessments.
func (uc *PredictionUseCase) GetMetricsSummary() *MetricsSummary {
	m := &uc.metrics
	m.mu.Lock()
	defer m.mu.Unlock()

	summary := &MetricsSummary{
		TotalRequests:    m.total,
		HighRiskRequests: m.highRisk,
		CacheHits:        m.cacheHits,
		Failures:         m.failures,
	}
	if m.total > 0 {
		summary.HighRiskRate = float64(m.highRisk) / float64(m.total)
		summary.AverageDiseaseProbability = m.diseaseProbSum / float64(m.total)
	}
	return summary
}
