package sequence

import (
	"fmt"
	"strings"
)

// TrimToQuery keeps only the alignment columns in which the query record has
// a residue, so every row is laid out against the query's own coordinates.
// All rows must have the same aligned length.
func TrimToQuery(aligned FastaRecords, queryHeader string) (FastaRecords, error) {
	qi := -1
	for i, r := range aligned {
		if r.Header == queryHeader {
			qi = i
			break
		}
	}
	if qi < 0 {
		return nil, fmt.Errorf("query %q not present in alignment", queryHeader)
	}

	width := len(aligned[qi].Sequence)
	keep := make([]int, 0, width)
	for col := 0; col < width; col++ {
		if !isGap(aligned[qi].Sequence[col]) {
			keep = append(keep, col)
		}
	}

	out := make(FastaRecords, len(aligned))
	for i, r := range aligned {
		if len(r.Sequence) != width {
			return nil, fmt.Errorf("record %q has aligned length %d, query has %d", r.Header, len(r.Sequence), width)
		}
		var sb strings.Builder
		sb.Grow(len(keep))
		for _, col := range keep {
			sb.WriteByte(r.Sequence[col])
		}
		out[i] = FastaRecord{Header: r.Header, Sequence: sb.String()}
	}
	return out, nil
}

func isGap(b byte) bool {
	return b == '-' || b == '.'
}
