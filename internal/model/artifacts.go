package model

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/example/cardio-risk/internal/patient"
)

// ArtifactKind identifies one of the two fitted artifacts.
type ArtifactKind string

const (
	KindScaler     ArtifactKind = "scaler"
	KindClassifier ArtifactKind = "classifier"
)

// Model types accepted in the classifier export.
const (
	TypeLogisticRegression = "logistic_regression"
	TypeDecisionTree       = "decision_tree"
	TypeRandomForest       = "random_forest"
	TypeStandardScaler     = "standard_scaler"
)

// Source fetches raw artifact blobs.
type Source interface {
	Fetch(ctx context.Context, kind ArtifactKind) ([]byte, error)
}

// FileSource reads the artifacts from the filesystem.
type FileSource struct {
	ScalerPath string
	ModelPath  string
}

// Fetch implements Source.
func (s FileSource) Fetch(ctx context.Context, kind ArtifactKind) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var path string
	switch kind {
	case KindScaler:
		path = s.ScalerPath
	case KindClassifier:
		path = s.ModelPath
	default:
		return nil, fmt.Errorf("unknown artifact kind %q", kind)
	}
	return os.ReadFile(path)
}

// Artifacts is the immutable pair of fitted objects shared by every request.
type Artifacts struct {
	scaler      *Scaler
	classifier  Classifier
	fingerprint string
}

// Scaler returns the fitted scaler.
func (a *Artifacts) Scaler() *Scaler { return a.scaler }

// Classifier returns the fitted classifier.
func (a *Artifacts) Classifier() Classifier { return a.classifier }

// Fingerprint identifies the artifact pair. Two handles loaded from the same
// blobs share a fingerprint.
func (a *Artifacts) Fingerprint() string { return a.fingerprint }

// NewArtifacts checks that scaler and classifier agree with the patient record
// schema.
func NewArtifacts(scaler *Scaler, classifier Classifier, fingerprint string) (*Artifacts, error) {
	if scaler == nil || classifier == nil {
		return nil, fmt.Errorf("%w: scaler and classifier are both required", ErrArtifactLoad)
	}
	if scaler.NumFeatures() != patient.NumFeatures {
		return nil, fmt.Errorf("%w: scaler fitted on %d features, record has %d", ErrSchemaMismatch, scaler.NumFeatures(), patient.NumFeatures)
	}
	if names := scaler.FeatureNames(); names != nil && !slices.Equal(names, patient.FeatureNames()) {
		return nil, fmt.Errorf("%w: scaler feature order %v differs from record order %v", ErrSchemaMismatch, names, patient.FeatureNames())
	}
	if classifier.NumFeatures() != scaler.NumFeatures() {
		return nil, fmt.Errorf("%w: classifier fitted on %d features, scaler on %d", ErrSchemaMismatch, classifier.NumFeatures(), scaler.NumFeatures())
	}
	return &Artifacts{scaler: scaler, classifier: classifier, fingerprint: fingerprint}, nil
}

// LoadArtifacts fetches and decodes both artifacts. Every failure is fatal for
// the caller; nothing is retried here.
func LoadArtifacts(ctx context.Context, src Source) (*Artifacts, error) {
	scalerBlob, err := src.Fetch(ctx, KindScaler)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch scaler: %v", ErrArtifactLoad, err)
	}
	modelBlob, err := src.Fetch(ctx, KindClassifier)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch classifier: %v", ErrArtifactLoad, err)
	}

	scaler, err := ParseScaler(scalerBlob)
	if err != nil {
		return nil, err
	}
	classifier, err := ParseClassifier(modelBlob)
	if err != nil {
		return nil, err
	}
	return NewArtifacts(scaler, classifier, fingerprint(scalerBlob, modelBlob))
}

// ParseScaler decodes a standard scaler export.
func ParseScaler(blob []byte) (*Scaler, error) {
	var export scalerExport
	if err := decodeStrict(blob, &export); err != nil {
		return nil, fmt.Errorf("%w: decode scaler: %v", ErrArtifactLoad, err)
	}
	if export.Type != "" && export.Type != TypeStandardScaler {
		return nil, fmt.Errorf("%w: unsupported scaler type %q", ErrArtifactLoad, export.Type)
	}
	return NewScaler(export.FeatureNames, export.Mean, export.Scale)
}

type classifierExport struct {
	Type         string     `json:"type"`
	Classes      []int      `json:"classes"`
	FeatureNames []string   `json:"feature_names"`
	Coef         []float64  `json:"coef"`
	Intercept    float64    `json:"intercept"`
	NFeatures    int        `json:"n_features"`
	Nodes        []TreeNode `json:"nodes"`
	Trees        []Tree     `json:"trees"`
}

// ParseClassifier decodes a classifier export and picks the implementation
// from its type.
func ParseClassifier(blob []byte) (Classifier, error) {
	var export classifierExport
	if err := decodeStrict(blob, &export); err != nil {
		return nil, fmt.Errorf("%w: decode classifier: %v", ErrArtifactLoad, err)
	}
	if export.Classes != nil && !slices.Equal(export.Classes, []int{0, 1}) {
		return nil, fmt.Errorf("%w: classifier classes %v, want [0 1]", ErrSchemaMismatch, export.Classes)
	}

	var (
		clf Classifier
		err error
	)
	switch export.Type {
	case TypeLogisticRegression:
		clf, err = NewLogisticRegression(export.Coef, export.Intercept)
	case TypeDecisionTree:
		clf, err = NewForest([]Tree{{Nodes: export.Nodes}}, export.NFeatures)
	case TypeRandomForest:
		clf, err = NewForest(export.Trees, export.NFeatures)
	default:
		return nil, fmt.Errorf("%w: unsupported classifier type %q", ErrArtifactLoad, export.Type)
	}
	if err != nil {
		return nil, err
	}

	if export.FeatureNames != nil && !slices.Equal(export.FeatureNames, patient.FeatureNames()) {
		return nil, fmt.Errorf("%w: classifier feature order %v differs from record order", ErrSchemaMismatch, export.FeatureNames)
	}
	return clf, nil
}

func decodeStrict(blob []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(blob))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("unexpected data after the export document")
	}
	return nil
}

func fingerprint(blobs ...[]byte) string {
	h := sha256.New()
	for _, b := range blobs {
		h.Write(b)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
