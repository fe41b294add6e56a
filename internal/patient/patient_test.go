package patient

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleScenario(t *testing.T) {
	in := Input{
		Age:                  50,
		Sex:                  Male,
		ChestPain:            Asymptomatic,
		RestingBloodPressure: 120,
		Cholesterol:          200,
	}

	got := Assemble(in).Vector()
	want := []float64{50, 1, 3, 120, 200, 0, 0, 150, 0, 1.0, 1, 0, 3}
	assert.Equal(t, want, got)
}

func TestAssembleProducesThirteenOrderedFields(t *testing.T) {
	for _, age := range []int{Bounds.Age.Min, Bounds.Age.Default, Bounds.Age.Max} {
		for _, cp := range ChestPainTypes() {
			rec := Assemble(Input{Age: age, Sex: Female, ChestPain: cp, RestingBloodPressure: 80, Cholesterol: 600})
			fields := rec.Fields()
			require.Len(t, fields, NumFeatures)
			require.Len(t, rec.Vector(), NumFeatures)
			for i, f := range fields {
				assert.Equal(t, FeatureNames()[i], f.Name)
			}
			assert.Equal(t, float64(age), fields[0].Value)
			assert.Equal(t, float64(cp), fields[2].Value)
		}
	}
}

func TestFeatureNamesOrder(t *testing.T) {
	assert.Equal(t, []string{
		"age", "sex", "cp", "trestbps", "chol", "fbs", "restecg",
		"thalach", "exang", "oldpeak", "slope", "ca", "thal",
	}, FeatureNames())

	names := FeatureNames()
	names[0] = "mutated"
	assert.Equal(t, "age", FeatureNames()[0], "FeatureNames must return a copy")
}

func TestParseChestPainType(t *testing.T) {
	cases := map[string]ChestPainType{
		"Typique angine":        TypicalAngina,
		"angine ATYPIQUE":       AtypicalAngina,
		"Douleur non-angineuse": NonAnginalPain,
		"  Asymptomatique ":     Asymptomatic,
		"asymptomatic":          Asymptomatic,
		"non_anginal_pain":      NonAnginalPain,
	}
	for input, want := range cases {
		got, err := ParseChestPainType(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseChestPainType("crushing")
	assert.True(t, errors.Is(err, ErrUnknownChestPainType))
}

func TestChestPainTableIsComplete(t *testing.T) {
	for _, cp := range ChestPainTypes() {
		assert.NotEmpty(t, cp.Label())
		assert.NotEmpty(t, cp.Slug())
		parsed, err := ParseChestPainType(cp.Label())
		require.NoError(t, err)
		assert.Equal(t, cp, parsed)
	}
	assert.Empty(t, ChestPainType(7).Label())
}

func TestParseSex(t *testing.T) {
	for _, in := range []string{"male", "Homme", "HOMME", "m"} {
		got, err := ParseSex(in)
		require.NoError(t, err, in)
		assert.Equal(t, Male, got)
	}
	for _, in := range []string{"female", "Femme", "F"} {
		got, err := ParseSex(in)
		require.NoError(t, err, in)
		assert.Equal(t, Female, got)
	}
	_, err := ParseSex("other")
	assert.ErrorIs(t, err, ErrUnknownSex)
}

func TestDefaultInputWithinBounds(t *testing.T) {
	in := DefaultInput()
	assert.True(t, Bounds.Age.Contains(in.Age))
	assert.True(t, Bounds.RestingBloodPressure.Contains(in.RestingBloodPressure))
	assert.True(t, Bounds.Cholesterol.Contains(in.Cholesterol))
	assert.False(t, Bounds.Age.Contains(101))
}

func TestFieldString(t *testing.T) {
	rec := Assemble(DefaultInput())
	fields := rec.Fields()
	assert.Equal(t, "50", fields[0].String())
	assert.Equal(t, "1.0", fields[9].String())

	rec.Oldpeak = 2
	assert.Equal(t, "2.0", rec.Fields()[idxOldpeak].String())
	assert.Equal(t, "3", Field{Index: idxThal, Name: "oldpeak", Value: 3}.String())
}
