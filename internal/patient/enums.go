package patient

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrUnknownSex           = errors.New("unknown sex")
	ErrUnknownChestPainType = errors.New("unknown chest pain type")
)

// Sex is encoded as 0 for female and 1 for male.
type Sex int

const (
	Female Sex = 0
	Male   Sex = 1
)

// String returns the form label.
func (s Sex) String() string {
	if s == Male {
		return "Homme"
	}
	return "Femme"
}

// ParseSex accepts the English slugs and the form labels.
func ParseSex(value string) (Sex, error) {
	switch normalizeLabel(value) {
	case "female", "femme", "f", "0":
		return Female, nil
	case "male", "homme", "m", "1":
		return Male, nil
	}
	return Female, fmt.Errorf("%w: %q", ErrUnknownSex, value)
}

// ChestPainType is the categorical cp feature.
type ChestPainType int

const (
	TypicalAngina ChestPainType = iota
	AtypicalAngina
	NonAnginalPain
	Asymptomatic

	numChestPainTypes
)

type chestPainEntry struct {
	label string
	slug  string
}

var chestPainTable = [numChestPainTypes]chestPainEntry{
	TypicalAngina:  {label: "Typique angine", slug: "typical_angina"},
	AtypicalAngina: {label: "Angine atypique", slug: "atypical_angina"},
	NonAnginalPain: {label: "Douleur non-angineuse", slug: "non_anginal_pain"},
	Asymptomatic:   {label: "Asymptomatique", slug: "asymptomatic"},
}

// ChestPainTypes lists every chest pain type in code order.
func ChestPainTypes() []ChestPainType {
	types := make([]ChestPainType, numChestPainTypes)
	for i := range types {
		types[i] = ChestPainType(i)
	}
	return types
}

// Label returns the form label.
func (c ChestPainType) Label() string {
	if c < 0 || c >= numChestPainTypes {
		return ""
	}
	return chestPainTable[c].label
}

// Slug returns the machine name used by the JSON API.
func (c ChestPainType) Slug() string {
	if c < 0 || c >= numChestPainTypes {
		return ""
	}
	return chestPainTable[c].slug
}

func (c ChestPainType) String() string {
	return c.Label()
}

// ParseChestPainType resolves a form label or slug.
func ParseChestPainType(value string) (ChestPainType, error) {
	key := normalizeLabel(value)
	for i, entry := range chestPainTable {
		if key == normalizeLabel(entry.label) || key == entry.slug {
			return ChestPainType(i), nil
		}
	}
	return TypicalAngina, fmt.Errorf("%w: %q", ErrUnknownChestPainType, value)
}

// normalizeLabel composes accents and folds case. Casers are stateful, so a
// fresh one is built per call.
func normalizeLabel(value string) string {
	normed := norm.NFC.String(strings.TrimSpace(value))
	return cases.Fold().String(normed)
}
