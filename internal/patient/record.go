package patient

import "fmt"

// Field positions inside the record. The scaler and classifier were fitted on
// this order, so it must never change.
const (
	idxAge = iota
	idxSex
	idxChestPain
	idxRestingBP
	idxCholesterol
	idxFastingBloodSugar
	idxRestECG
	idxMaxHeartRate
	idxExerciseAngina
	idxOldpeak
	idxSlope
	idxVessels
	idxThal

	// NumFeatures is the width of the feature vector.
	NumFeatures
)

var featureNames = [NumFeatures]string{
	idxAge:               "age",
	idxSex:               "sex",
	idxChestPain:         "cp",
	idxRestingBP:         "trestbps",
	idxCholesterol:       "chol",
	idxFastingBloodSugar: "fbs",
	idxRestECG:           "restecg",
	idxMaxHeartRate:      "thalach",
	idxExerciseAngina:    "exang",
	idxOldpeak:           "oldpeak",
	idxSlope:             "slope",
	idxVessels:           "ca",
	idxThal:              "thal",
}

// continuousFeatures marks the columns holding real values; every other
// column is a category or an integer measurement.
var continuousFeatures = [NumFeatures]bool{
	idxOldpeak: true,
}

// FeatureNames returns the column names in fitted order.
func FeatureNames() []string {
	names := make([]string, NumFeatures)
	copy(names, featureNames[:])
	return names
}

// Record is the fixed-schema patient feature record consumed by the model.
type Record struct {
	Age                  int     `json:"age"`
	Sex                  Sex     `json:"sex"`
	ChestPain            int     `json:"cp"`
	RestingBloodPressure int     `json:"trestbps"`
	Cholesterol          int     `json:"chol"`
	FastingBloodSugar    int     `json:"fbs"`
	RestECG              int     `json:"restecg"`
	MaxHeartRate         int     `json:"thalach"`
	ExerciseAngina       int     `json:"exang"`
	Oldpeak              float64 `json:"oldpeak"`
	Slope                int     `json:"slope"`
	Vessels              int     `json:"ca"`
	Thal                 int     `json:"thal"`
}

// Field is a single named value of a record, used for display.
type Field struct {
	Index int
	Name  string
	Value float64
}

// String renders continuous columns with one decimal and the rest as integers.
func (f Field) String() string {
	if f.Index >= 0 && f.Index < NumFeatures && !continuousFeatures[f.Index] {
		return fmt.Sprintf("%d", int64(f.Value))
	}
	return fmt.Sprintf("%.1f", f.Value)
}

// Vector returns the record as a positional float vector.
func (r Record) Vector() []float64 {
	v := make([]float64, NumFeatures)
	v[idxAge] = float64(r.Age)
	v[idxSex] = float64(r.Sex)
	v[idxChestPain] = float64(r.ChestPain)
	v[idxRestingBP] = float64(r.RestingBloodPressure)
	v[idxCholesterol] = float64(r.Cholesterol)
	v[idxFastingBloodSugar] = float64(r.FastingBloodSugar)
	v[idxRestECG] = float64(r.RestECG)
	v[idxMaxHeartRate] = float64(r.MaxHeartRate)
	v[idxExerciseAngina] = float64(r.ExerciseAngina)
	v[idxOldpeak] = r.Oldpeak
	v[idxSlope] = float64(r.Slope)
	v[idxVessels] = float64(r.Vessels)
	v[idxThal] = float64(r.Thal)
	return v
}

// Fields pairs every value with its column name.
func (r Record) Fields() []Field {
	v := r.Vector()
	fields := make([]Field, NumFeatures)
	for i := range v {
		fields[i] = Field{Index: i, Name: featureNames[i], Value: v[i]}
	}
	return fields
}
