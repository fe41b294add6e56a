package model

import (
	"fmt"
	"math"
)

// Classifier is a fitted binary model.
type Classifier interface {
	NumFeatures() int
	// PredictProba returns [p(class 0), p(class 1)] for a scaled vector.
	PredictProba(x []float64) ([2]float64, error)
}

// LogisticRegression is a fitted binary logistic model.
type LogisticRegression struct {
	coef      []float64
	intercept float64
}

// NewLogisticRegression validates the weights.
func NewLogisticRegression(coef []float64, intercept float64) (*LogisticRegression, error) {
	if len(coef) == 0 {
		return nil, fmt.Errorf("%w: logistic regression has no coefficients", ErrArtifactLoad)
	}
	for i, w := range coef {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("%w: coef[%d] is not finite", ErrArtifactLoad, i)
		}
	}
	if math.IsNaN(intercept) || math.IsInf(intercept, 0) {
		return nil, fmt.Errorf("%w: intercept is not finite", ErrArtifactLoad)
	}
	return &LogisticRegression{coef: append([]float64(nil), coef...), intercept: intercept}, nil
}

func (m *LogisticRegression) NumFeatures() int {
	return len(m.coef)
}

func (m *LogisticRegression) PredictProba(x []float64) ([2]float64, error) {
	if len(x) != len(m.coef) {
		return [2]float64{}, fmt.Errorf("%w: classifier expects %d features, got %d", ErrSchemaMismatch, len(m.coef), len(x))
	}
	z := m.intercept
	for i, w := range m.coef {
		z += w * x[i]
	}
	p1 := sigmoid(z)
	return [2]float64{1 - p1, p1}, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
