// Package patient builds the fixed-schema feature record fed to the risk model.
package patient

// Constant values for the eight features the form does not collect.
const (
	DefaultFastingBloodSugar = 0
	DefaultRestECG           = 0
	DefaultMaxHeartRate      = 150
	DefaultExerciseAngina    = 0
	DefaultOldpeak           = 1.0
	DefaultSlope             = 1
	DefaultVessels           = 0
	DefaultThal              = 3
)

// Input holds the five user-controlled attributes.
type Input struct {
	Age                  int
	Sex                  Sex
	ChestPain            ChestPainType
	RestingBloodPressure int
	Cholesterol          int
}

// Range is an inclusive integer bound with the value the form starts at.
type Range struct {
	Min     int `json:"min"`
	Max     int `json:"max"`
	Default int `json:"default"`
}

// Contains reports whether v lies within the bound.
func (r Range) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

// InputBounds are enforced by the input surfaces, never by Assemble.
type InputBounds struct {
	Age                  Range `json:"age"`
	RestingBloodPressure Range `json:"resting_blood_pressure"`
	Cholesterol          Range `json:"cholesterol"`
}

// Bounds mirrors the ranges of the form widgets.
var Bounds = InputBounds{
	Age:                  Range{Min: 20, Max: 100, Default: 50},
	RestingBloodPressure: Range{Min: 80, Max: 200, Default: 120},
	Cholesterol:          Range{Min: 100, Max: 600, Default: 200},
}

// DefaultInput is the state of a freshly opened form.
func DefaultInput() Input {
	return Input{
		Age:                  Bounds.Age.Default,
		Sex:                  Female,
		ChestPain:            TypicalAngina,
		RestingBloodPressure: Bounds.RestingBloodPressure.Default,
		Cholesterol:          Bounds.Cholesterol.Default,
	}
}

// Assemble produces the 13-field record from the user input, filling the
// uncollected features with their constants.
func Assemble(in Input) Record {
	return Record{
		Age:                  in.Age,
		Sex:                  in.Sex,
		ChestPain:            int(in.ChestPain),
		RestingBloodPressure: in.RestingBloodPressure,
		Cholesterol:          in.Cholesterol,
		FastingBloodSugar:    DefaultFastingBloodSugar,
		RestECG:              DefaultRestECG,
		MaxHeartRate:         DefaultMaxHeartRate,
		ExerciseAngina:       DefaultExerciseAngina,
		Oldpeak:              DefaultOldpeak,
		Slope:                DefaultSlope,
		Vessels:              DefaultVessels,
		Thal:                 DefaultThal,
	}
}
