package model

import (
	"fmt"
	"math"
)

// Class labels produced by the classifier.
const (
	ClassHealthy = 0
	ClassDisease = 1
)

// Prediction is the classifier output for one record.
type Prediction struct {
	Class         int        `json:"predicted_class"`
	Probabilities [2]float64 `json:"probabilities"`
}

// Label is the machine label of the predicted class.
func (p Prediction) Label() string {
	if p.Class == ClassDisease {
		return "high"
	}
	return "low"
}

// RiskLabel is the label shown on the form.
func (p Prediction) RiskLabel() string {
	if p.Class == ClassDisease {
		return "Risque élevé"
	}
	return "Risque faible"
}

// Predict scales x and runs the classifier. The width is checked before any
// arithmetic so a short record can never be silently mispredicted.
func Predict(a *Artifacts, x []float64) (Prediction, error) {
	if a == nil {
		return Prediction{}, fmt.Errorf("%w: artifacts not loaded", ErrArtifactLoad)
	}
	if len(x) != a.scaler.NumFeatures() {
		return Prediction{}, fmt.Errorf("%w: record has %d features, artifacts expect %d", ErrSchemaMismatch, len(x), a.scaler.NumFeatures())
	}

	scaled, err := a.scaler.Transform(x)
	if err != nil {
		return Prediction{}, err
	}
	proba, err := a.classifier.PredictProba(scaled)
	if err != nil {
		return Prediction{}, err
	}
	if math.IsNaN(proba[0]) || math.IsNaN(proba[1]) {
		return Prediction{}, fmt.Errorf("%w: classifier produced NaN probabilities", ErrArtifactLoad)
	}

	class := ClassHealthy
	if proba[1] > proba[0] {
		class = ClassDisease
	}
	return Prediction{Class: class, Probabilities: proba}, nil
}
