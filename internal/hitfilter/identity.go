package hitfilter

// alignmentScore is the score of a global alignment that awards 1 per
// matching residue and nothing for mismatches or gaps. Under that scoring the
// optimum equals the length of the longest common subsequence, which is what
// this computes with two rolling rows.
func alignmentScore(a, b string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) > len(a) {
		a, b = b, a
	}
	prev := make([]int32, len(b)+1)
	curr := make([]int32, len(b)+1)
	for i := 0; i < len(a); i++ {
		ai := a[i]
		for j := 0; j < len(b); j++ {
			switch {
			case ai == b[j]:
				curr[j+1] = prev[j] + 1
			case prev[j+1] >= curr[j]:
				curr[j+1] = prev[j+1]
			default:
				curr[j+1] = curr[j]
			}
		}
		prev, curr = curr, prev
	}
	return int(prev[len(b)])
}

// PairwiseIdentity is the alignment score relative to the reference
// sequence's length, in percent. The reference is the already accepted
// sequence, so the measure is not symmetric.
func PairwiseIdentity(candidate, reference string) float64 {
	if len(reference) == 0 {
		return 0
	}
	return float64(alignmentScore(candidate, reference)) / float64(len(reference)) * 100
}
