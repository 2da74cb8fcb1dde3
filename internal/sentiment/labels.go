// Package sentiment defines the sentiment classes, the label table shown to
// users, the Predictor contract implemented by the inference engines, and the
// Analyzer that chains normalization, prediction and labelling.
package sentiment

import (
	"fmt"

	"github.com/spacesedan/sentimen/internal/errs"
)

type Class int

const (
	Negative Class = 0
	Neutral  Class = 1
	Positive Class = 2
)

func (c Class) String() string {
	switch c {
	case Negative:
		return "negative"
	case Neutral:
		return "neutral"
	case Positive:
		return "positive"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Scheme is the set of class indices a model can emit.
type Scheme int

const (
	// SchemeThreeClass: 0 negative, 1 neutral, 2 positive.
	SchemeThreeClass Scheme = iota
	// SchemeBinary: 0 negative, 1 positive.
	SchemeBinary
)

var schemeClasses = map[Scheme][]Class{
	SchemeThreeClass: {Negative, Neutral, Positive},
	SchemeBinary:     {Negative, Positive},
}

func (s Scheme) String() string {
	switch s {
	case SchemeThreeClass:
		return "three_class"
	case SchemeBinary:
		return "binary"
	default:
		return fmt.Sprintf("scheme(%d)", int(s))
	}
}

// Size is the number of class indices in the scheme.
func (s Scheme) Size() int { return len(schemeClasses[s]) }

// ClassAt resolves a model's class index. Indices outside the scheme mean
// the model and this binary disagree about the label layout.
func (s Scheme) ClassAt(index int) (Class, error) {
	classes, ok := schemeClasses[s]
	if !ok {
		return 0, errs.SchemaMismatch("unknown label scheme %d", int(s))
	}
	if index < 0 || index >= len(classes) {
		return 0, errs.SchemaMismatch("class index %d outside %s scheme [0,%d]", index, s, len(classes)-1)
	}
	return classes[index], nil
}

// Label is what the presentation layer renders for a class.
type Label struct {
	Class    Class  `json:"-"`
	Display  string `json:"display"`
	Category string `json:"category"`
	Emoji    string `json:"emoji"`
	Note     string `json:"note"`
}

var labels = map[Class]Label{
	Negative: {
		Class:    Negative,
		Display:  "NEGATIF",
		Category: Negative.String(),
		Emoji:    "😡",
		Note:     "Ulasan ini mengandung keluhan, kekecewaan, atau kemarahan.",
	},
	Neutral: {
		Class:    Neutral,
		Display:  "NETRAL",
		Category: Neutral.String(),
		Emoji:    "😐",
		Note:     "Ulasan ini cenderung biasa saja, standar, atau memiliki sentimen campuran.",
	},
	Positive: {
		Class:    Positive,
		Display:  "POSITIF",
		Category: Positive.String(),
		Emoji:    "😊",
		Note:     "Ulasan ini mengandung nada kepuasan atau pujian.",
	},
}

// MapClass returns the label for a class index under scheme. It never falls
// back to a default label.
func MapClass(scheme Scheme, index int) (Label, error) {
	class, err := scheme.ClassAt(index)
	if err != nil {
		return Label{}, err
	}
	return labels[class], nil
}

// LabelOf returns the label for a class.
func LabelOf(c Class) (Label, error) {
	l, ok := labels[c]
	if !ok {
		return Label{}, errs.SchemaMismatch("unknown class %d", int(c))
	}
	return l, nil
}
