package sequence

import (
	"math"
)

// AlignmentHit is one HSP reported by a sequence search, flattened with the
// identifier of the database sequence it belongs to
type AlignmentHit struct {
	SubjectID   string
	Description string
	Sequence    string // ungapped subject residues covered by the HSP
	Identities  int
	AlignLength int
	QueryLength int
}

// Identity is identical positions over alignment length, in percent
func (h AlignmentHit) Identity() float64 {
	if h.AlignLength <= 0 {
		return math.NaN()
	}
	return float64(h.Identities) / float64(h.AlignLength) * 100
}

// Coverage is alignment length over query length, in percent
func (h AlignmentHit) Coverage() float64 {
	if h.AlignLength <= 0 || h.QueryLength <= 0 {
		return math.NaN()
	}
	return float64(h.AlignLength) / float64(h.QueryLength) * 100
}

// Valid reports whether the hit carries everything the filter needs.
// Records failing this are skipped rather than treated as errors.
func (h AlignmentHit) Valid() bool {
	return h.SubjectID != "" &&
		h.Sequence != "" &&
		h.AlignLength > 0 &&
		h.QueryLength > 0 &&
		h.Identities >= 0 &&
		h.Identities <= h.AlignLength
}
