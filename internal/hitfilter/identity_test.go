package hitfilter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlignmentScore(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "MKV", 0},
		{"MKV", "MKV", 3},
		{"ACGT", "AGT", 3},
		{"MKVLAAGW", "MKLAGW", 6},
		{"WWWW", "MKVL", 0},
		{"ABCBDAB", "BDCABA", 4},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, alignmentScore(tc.a, tc.b), "%s vs %s", tc.a, tc.b)
		assert.Equal(t, tc.want, alignmentScore(tc.b, tc.a), "%s vs %s (swapped)", tc.b, tc.a)
	}
}

func TestPairwiseIdentityIsRelativeToReference(t *testing.T) {
	short := "MKVL"
	long := "MKVLAAAAAA"

	// every residue of the short reference is matched
	assert.InDelta(t, 100.0, PairwiseIdentity(long, short), 1e-9)
	// only 4 of 10 residues of the long reference are matched
	assert.InDelta(t, 40.0, PairwiseIdentity(short, long), 1e-9)
	assert.Equal(t, 0.0, PairwiseIdentity("MKV", ""))
}

func TestPairwiseIdentitySingleSubstitution(t *testing.T) {
	ref := strings.Repeat("ACDEFGHIKL", 5)
	cand := ref[:49] + "W"
	assert.InDelta(t, 98.0, PairwiseIdentity(cand, ref), 1e-9)
}
