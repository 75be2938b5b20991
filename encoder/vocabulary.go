package encoder

import (
	"golang.org/x/exp/slices"

	"github.com/samber/lo"
)

// Unseen is the code of a value that was not part of the fitted vocabulary.
const Unseen = -1

// Vocabulary assigns integer codes to the distinct values of one
// categorical column. Codes are indexes into the sorted class list.
type Vocabulary struct {
	Classes []string `json:"classes"`
	Unknown string   `json:"unknown_token"`

	index map[string]int
}

// Fit builds a vocabulary from values. The unknown token is always part of
// it, so the fallback used for empty values has a code.
func Fit(values []string, unknown string) Vocabulary {
	classes := lo.Uniq(append(lo.Filter(values, func(v string, _ int) bool {
		return v != ""
	}), unknown))
	slices.Sort(classes)
	return newVocabulary(classes, unknown)
}

func newVocabulary(classes []string, unknown string) Vocabulary {
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	return Vocabulary{
		Classes: classes,
		Unknown: unknown,
		index:   index,
	}
}

// Transform returns the code of value, or Unseen.
func (v Vocabulary) Transform(value string) int {
	if value == "" {
		value = v.Unknown
	}
	if code, ok := v.index[value]; ok {
		return code
	}
	return Unseen
}

func (v Vocabulary) Len() int {
	return len(v.Classes)
}
