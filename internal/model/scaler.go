// Package model loads the fitted scaler and classifier and runs inference.
package model

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrArtifactLoad reports a missing, unreadable, or corrupt artifact.
	ErrArtifactLoad = errors.New("artifact load failure")
	// ErrSchemaMismatch reports a feature count or order the artifacts were not fitted on.
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// Scaler is a fitted standard scaler.
type Scaler struct {
	featureNames []string
	mean         []float64
	scale        []float64
}

type scalerExport struct {
	Type         string    `json:"type"`
	FeatureNames []string  `json:"feature_names"`
	Mean         []float64 `json:"mean"`
	Scale        []float64 `json:"scale"`
}

// NewScaler validates the learned statistics. featureNames may be nil when the
// scaler was fitted on an unnamed array.
func NewScaler(featureNames []string, mean, scale []float64) (*Scaler, error) {
	if len(mean) == 0 {
		return nil, fmt.Errorf("%w: scaler has no features", ErrArtifactLoad)
	}
	if len(mean) != len(scale) {
		return nil, fmt.Errorf("%w: scaler mean has %d entries, scale has %d", ErrArtifactLoad, len(mean), len(scale))
	}
	if featureNames != nil && len(featureNames) != len(mean) {
		return nil, fmt.Errorf("%w: scaler names %d features, statistics cover %d", ErrArtifactLoad, len(featureNames), len(mean))
	}
	for i := range mean {
		if math.IsNaN(mean[i]) || math.IsInf(mean[i], 0) {
			return nil, fmt.Errorf("%w: scaler mean[%d] is not finite", ErrArtifactLoad, i)
		}
		if !(scale[i] > 0) || math.IsInf(scale[i], 0) {
			return nil, fmt.Errorf("%w: scaler scale[%d]=%v must be positive", ErrArtifactLoad, i, scale[i])
		}
	}
	return &Scaler{
		featureNames: append([]string(nil), featureNames...),
		mean:         append([]float64(nil), mean...),
		scale:        append([]float64(nil), scale...),
	}, nil
}

// NumFeatures is the width the scaler was fitted on.
func (s *Scaler) NumFeatures() int {
	return len(s.mean)
}

// FeatureNames returns the fitted column names, or nil if unknown.
func (s *Scaler) FeatureNames() []string {
	if len(s.featureNames) == 0 {
		return nil
	}
	return append([]string(nil), s.featureNames...)
}

// Transform standardises x. The input is left untouched.
func (s *Scaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.mean) {
		return nil, fmt.Errorf("%w: scaler expects %d features, got %d", ErrSchemaMismatch, len(s.mean), len(x))
	}
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = (v - s.mean[i]) / s.scale[i]
	}
	return out, nil
}
