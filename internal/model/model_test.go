package model

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/cardio-risk/internal/patient"
)

var scenarioVector = []float64{50, 1, 3, 120, 200, 0, 0, 150, 0, 1.0, 1, 0, 3}

func loadTestArtifacts(t *testing.T, modelFile string) *Artifacts {
	t.Helper()
	a, err := LoadArtifacts(context.Background(), FileSource{
		ScalerPath: filepath.Join("testdata", "scaler.json"),
		ModelPath:  filepath.Join("testdata", modelFile),
	})
	require.NoError(t, err)
	return a
}

func TestPredictLogisticScenario(t *testing.T) {
	a := loadTestArtifacts(t, "logistic.json")

	got, err := Predict(a, scenarioVector)
	require.NoError(t, err)
	assert.Equal(t, ClassDisease, got.Class)
	assert.InDelta(t, 0.8130070695725286, got.Probabilities[1], 1e-9)
	assert.InDelta(t, 1.0, got.Probabilities[0]+got.Probabilities[1], 1e-12)
	assert.Equal(t, "high", got.Label())
	assert.Equal(t, "Risque élevé", got.RiskLabel())

	again, err := Predict(a, scenarioVector)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestPredictForestScenario(t *testing.T) {
	a := loadTestArtifacts(t, "forest.json")

	got, err := Predict(a, scenarioVector)
	require.NoError(t, err)
	assert.Equal(t, ClassDisease, got.Class)
	assert.InDelta(t, 0.775, got.Probabilities[1], 1e-12)
	assert.InDelta(t, 0.225, got.Probabilities[0], 1e-12)
}

func TestPredictProbabilitiesAreDistributions(t *testing.T) {
	for _, file := range []string{"logistic.json", "forest.json"} {
		a := loadTestArtifacts(t, file)
		for age := patient.Bounds.Age.Min; age <= patient.Bounds.Age.Max; age += 10 {
			for _, cp := range patient.ChestPainTypes() {
				for _, sex := range []patient.Sex{patient.Female, patient.Male} {
					rec := patient.Assemble(patient.Input{Age: age, Sex: sex, ChestPain: cp, RestingBloodPressure: 140, Cholesterol: 300})
					got, err := Predict(a, rec.Vector())
					require.NoError(t, err)
					p := got.Probabilities
					assert.InDelta(t, 1.0, p[0]+p[1], 1e-9)
					assert.GreaterOrEqual(t, p[0], 0.0)
					assert.GreaterOrEqual(t, p[1], 0.0)
					if p[1] > p[0] {
						assert.Equal(t, ClassDisease, got.Class)
					} else {
						assert.Equal(t, ClassHealthy, got.Class)
					}
				}
			}
		}
	}
}

func TestPredictRejectsShortRecord(t *testing.T) {
	a := loadTestArtifacts(t, "logistic.json")

	_, err := Predict(a, scenarioVector[:12])
	assert.ErrorIs(t, err, ErrSchemaMismatch)

	_, err = Predict(a, append(append([]float64(nil), scenarioVector...), 0))
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestPredictWithoutArtifacts(t *testing.T) {
	_, err := Predict(nil, scenarioVector)
	assert.ErrorIs(t, err, ErrArtifactLoad)
}

func TestPredictConcurrentReads(t *testing.T) {
	a := loadTestArtifacts(t, "forest.json")
	want, err := Predict(a, scenarioVector)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]Prediction, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = Predict(a, scenarioVector)
		}(i)
	}
	wg.Wait()
	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

func TestLoadArtifactsFingerprintIsStable(t *testing.T) {
	a := loadTestArtifacts(t, "logistic.json")
	b := loadTestArtifacts(t, "logistic.json")
	c := loadTestArtifacts(t, "forest.json")
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	assert.Len(t, a.Fingerprint(), 16)
}

func TestLoadArtifactsMissingFile(t *testing.T) {
	_, err := LoadArtifacts(context.Background(), FileSource{
		ScalerPath: filepath.Join("testdata", "missing.json"),
		ModelPath:  filepath.Join("testdata", "logistic.json"),
	})
	assert.ErrorIs(t, err, ErrArtifactLoad)
	assert.True(t, errors.Is(err, ErrArtifactLoad))
}

func TestLoadArtifactsCorruptBlobs(t *testing.T) {
	dir := t.TempDir()
	scalerPath := filepath.Join(dir, "scaler.json")
	modelPath := filepath.Join(dir, "model.json")
	good, err := os.ReadFile(filepath.Join("testdata", "scaler.json"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		scaler string
		model  string
		want   error
	}{
		{name: "truncated scaler", scaler: `{"mean": [1,2`, model: `{}`, want: ErrArtifactLoad},
		{name: "trailing scaler data", scaler: string(good) + `{"mean":[1,2`, model: `{}`, want: ErrArtifactLoad},
		{name: "trailing model bytes", scaler: string(good), model: `{"type":"logistic_regression","coef":[1,1,1,1,1,1,1,1,1,1,1,1,1]}` + "\x00\xffgarbage", want: ErrArtifactLoad},
		{name: "unknown model type", scaler: string(good), model: `{"type":"svm"}`, want: ErrArtifactLoad},
		{name: "unknown field", scaler: string(good), model: `{"type":"logistic_regression","coef":[1],"weights":[1]}`, want: ErrArtifactLoad},
		{name: "zero scale", scaler: `{"mean":[0,0],"scale":[1,0]}`, model: `{}`, want: ErrArtifactLoad},
		{name: "narrow scaler", scaler: `{"mean":[0,0],"scale":[1,1]}`, model: `{"type":"logistic_regression","coef":[1,1]}`, want: ErrSchemaMismatch},
		{name: "narrow classifier", scaler: string(good), model: `{"type":"logistic_regression","coef":[1,1,1]}`, want: ErrSchemaMismatch},
		{name: "multiclass", scaler: string(good), model: `{"type":"logistic_regression","classes":[0,1,2],"coef":[1]}`, want: ErrSchemaMismatch},
		{name: "bad tree", scaler: string(good), model: `{"type":"decision_tree","n_features":13,"nodes":[{"feature":0,"threshold":0,"left":0,"right":5}]}`, want: ErrArtifactLoad},
		{name: "empty forest", scaler: string(good), model: `{"type":"random_forest","n_features":13,"trees":[]}`, want: ErrArtifactLoad},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, os.WriteFile(scalerPath, []byte(tc.scaler), 0o600))
			require.NoError(t, os.WriteFile(modelPath, []byte(tc.model), 0o600))
			_, err := LoadArtifacts(context.Background(), FileSource{ScalerPath: scalerPath, ModelPath: modelPath})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestNewArtifactsRejectsReorderedScaler(t *testing.T) {
	names := patient.FeatureNames()
	names[0], names[1] = names[1], names[0]
	ones := make([]float64, patient.NumFeatures)
	for i := range ones {
		ones[i] = 1
	}
	scaler, err := NewScaler(names, make([]float64, patient.NumFeatures), ones)
	require.NoError(t, err)
	clf, err := NewLogisticRegression(ones, 0)
	require.NoError(t, err)

	_, err = NewArtifacts(scaler, clf, "")
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestScalerTransform(t *testing.T) {
	s, err := NewScaler(nil, []float64{10, 0}, []float64{2, 0.5})
	require.NoError(t, err)
	x := []float64{14, 1}
	got, err := s.Transform(x)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2}, got)
	assert.Equal(t, []float64{14, 1}, x)
	assert.Nil(t, s.FeatureNames())

	_, err = s.Transform([]float64{1})
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestSigmoidIsStable(t *testing.T) {
	assert.InDelta(t, 0.5, sigmoid(0), 1e-15)
	assert.False(t, math.IsNaN(sigmoid(-1000)))
	assert.False(t, math.IsNaN(sigmoid(1000)))
	assert.InDelta(t, 1.0, sigmoid(40)+sigmoid(-40), 1e-12)
}

func TestPredictTieFavoursHealthy(t *testing.T) {
	ones := make([]float64, patient.NumFeatures)
	for i := range ones {
		ones[i] = 1
	}
	scaler, err := NewScaler(nil, make([]float64, patient.NumFeatures), ones)
	require.NoError(t, err)
	clf, err := NewLogisticRegression(make([]float64, patient.NumFeatures), 0)
	require.NoError(t, err)
	a, err := NewArtifacts(scaler, clf, "tie")
	require.NoError(t, err)

	got, err := Predict(a, scenarioVector)
	require.NoError(t, err)
	assert.Equal(t, ClassHealthy, got.Class)
	assert.Equal(t, [2]float64{0.5, 0.5}, got.Probabilities)
}
