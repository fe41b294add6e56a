package handlers

import (
	"fmt"
	"html/template"

	"github.com/example/cardio-risk/internal/model"
	"github.com/example/cardio-risk/internal/patient"
)

var templateFuncs = template.FuncMap{
	"percent": func(p float64) string { return fmt.Sprintf("%.1f%%", p*100) },
}

type option struct {
	Value    string
	Selected bool
}

type formView struct {
	Request    PredictRequest
	Bounds     patient.InputBounds
	Sexes      []option
	ChestPains []option
	Fields     []patient.Field
	Result     *model.Prediction
	Error      string
}

func newFormView(req PredictRequest) formView {
	view := formView{Request: req, Bounds: patient.Bounds}
	selectedSex, _ := patient.ParseSex(req.Sex)
	for _, s := range []patient.Sex{patient.Female, patient.Male} {
		view.Sexes = append(view.Sexes, option{Value: s.String(), Selected: s == selectedSex})
	}
	selectedCP, _ := patient.ParseChestPainType(req.ChestPainType)
	for _, cp := range patient.ChestPainTypes() {
		view.ChestPains = append(view.ChestPains, option{Value: cp.Label(), Selected: cp == selectedCP})
	}
	return view
}

// DiseaseProbability is the headline metric of the result.
func (v formView) DiseaseProbability() float64 {
	if v.Result == nil {
		return 0
	}
	return v.Result.Probabilities[model.ClassDisease]
}

// HealthyProbability mirrors DiseaseProbability for class 0.
func (v formView) HealthyProbability() float64 {
	if v.Result == nil {
		return 0
	}
	return v.Result.Probabilities[model.ClassHealthy]
}

type labeledCode struct {
	Code  int    `json:"code"`
	Label string `json:"label"`
	Slug  string `json:"slug"`
}

type schemaResponse struct {
	FeatureNames   []string            `json:"feature_names"`
	Constants      map[string]float64  `json:"constants"`
	Sexes          []labeledCode       `json:"sexes"`
	ChestPainTypes []labeledCode       `json:"chest_pain_types"`
	Bounds         patient.InputBounds `json:"bounds"`
	Artifacts      string              `json:"artifacts,omitempty"`
}

func newSchema(a *model.Artifacts) schemaResponse {
	resp := schemaResponse{
		FeatureNames: patient.FeatureNames(),
		Constants: map[string]float64{
			"fbs":     patient.DefaultFastingBloodSugar,
			"restecg": patient.DefaultRestECG,
			"thalach": patient.DefaultMaxHeartRate,
			"exang":   patient.DefaultExerciseAngina,
			"oldpeak": patient.DefaultOldpeak,
			"slope":   patient.DefaultSlope,
			"ca":      patient.DefaultVessels,
			"thal":    patient.DefaultThal,
		},
		Sexes: []labeledCode{
			{Code: int(patient.Female), Label: patient.Female.String(), Slug: "female"},
			{Code: int(patient.Male), Label: patient.Male.String(), Slug: "male"},
		},
		Bounds: patient.Bounds,
	}
	for _, cp := range patient.ChestPainTypes() {
		resp.ChestPainTypes = append(resp.ChestPainTypes, labeledCode{Code: int(cp), Label: cp.Label(), Slug: cp.Slug()})
	}
	if a != nil {
		resp.Artifacts = a.Fingerprint()
	}
	return resp
}
