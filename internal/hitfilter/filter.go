// Package hitfilter selects a bounded, mutually dissimilar set of search hits
// and renders them as FASTA with the query first.
package hitfilter

import (
	"context"
	"fmt"
	"iter"

	"curiesuite/domain/sequence"
	"curiesuite/internal/errors"
)

// Criteria are the thresholds a hit must satisfy to be kept
type Criteria struct {
	MaxHits     int
	MinIdentity float64
	MaxIdentity float64
	MinCoverage float64
}

// DefaultCriteria mirrors the dashboard form defaults
func DefaultCriteria() Criteria {
	return Criteria{
		MaxHits:     1000,
		MinIdentity: 30,
		MaxIdentity: 100,
		MinCoverage: 70,
	}
}

// Validate fails fast on impossible threshold combinations
func (c Criteria) Validate() error {
	switch {
	case c.MaxHits < 1:
		return errors.InvalidInputf("max hits must be at least 1, got %d", c.MaxHits)
	case c.MinIdentity < 0 || c.MinIdentity > 100:
		return errors.InvalidInputf("min identity must be within 0..100, got %g", c.MinIdentity)
	case c.MaxIdentity < 0 || c.MaxIdentity > 100:
		return errors.InvalidInputf("max identity must be within 0..100, got %g", c.MaxIdentity)
	case c.MinIdentity > c.MaxIdentity:
		return errors.InvalidInputf("min identity %g exceeds max identity %g", c.MinIdentity, c.MaxIdentity)
	case c.MinCoverage < 0 || c.MinCoverage > 100:
		return errors.InvalidInputf("min coverage must be within 0..100, got %g", c.MinCoverage)
	}
	return nil
}

// passes applies the identity window and coverage floor to one hit
func (c Criteria) passes(hit sequence.AlignmentHit) bool {
	identity := hit.Identity()
	return identity >= c.MinIdentity &&
		identity <= c.MaxIdentity &&
		hit.Coverage() >= c.MinCoverage
}

// Result is the FASTA output plus counters describing what happened to
// every hit the filter looked at
type Result struct {
	Records    sequence.FastaRecords
	Examined   int
	Malformed  int
	OutOfRange int
	Redundant  int
}

// Accepted is the number of hits kept, excluding the query
func (r *Result) Accepted() int {
	if len(r.Records) == 0 {
		return 0
	}
	return len(r.Records) - 1
}

// Filter walks hits in the order supplied and keeps those within the identity
// window and above the coverage floor whose identity to every previously kept
// sequence does not exceed MaxIdentity. It stops pulling from hits as soon as
// MaxHits are kept. Any error yielded by the stream aborts the run and no
// records are returned.
func Filter(ctx context.Context, query sequence.FastaRecord, hits iter.Seq2[sequence.AlignmentHit, error], c Criteria) (*Result, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if query.Sequence == "" {
		return nil, errors.InvalidInput("query sequence is empty")
	}
	if query.Header == "" {
		query.Header = "query"
	}

	res := &Result{Records: sequence.FastaRecords{query}}
	headers := map[string]int{query.Header: 1}
	var accepted []string

	for hit, err := range hits {
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "hit filtering cancelled")
		}
		res.Examined++

		if !hit.Valid() {
			res.Malformed++
			continue
		}
		if !c.passes(hit) {
			res.OutOfRange++
			continue
		}
		if tooSimilar(hit.Sequence, accepted, c.MaxIdentity) {
			res.Redundant++
			continue
		}

		res.Records = append(res.Records, sequence.FastaRecord{
			Header:   uniqueHeader(headers, hit.SubjectID),
			Sequence: hit.Sequence,
		})
		accepted = append(accepted, hit.Sequence)
		if len(accepted) >= c.MaxHits {
			break
		}
	}
	return res, nil
}

// tooSimilar reports whether candidate exceeds maxIdentity against any kept
// sequence
func tooSimilar(candidate string, accepted []string, maxIdentity float64) bool {
	for _, seq := range accepted {
		if PairwiseIdentity(candidate, seq) > maxIdentity {
			return true
		}
	}
	return false
}

// uniqueHeader suffixes repeated identifiers with _2, _3, ...
func uniqueHeader(seen map[string]int, id string) string {
	seen[id]++
	if seen[id] == 1 {
		return id
	}
	for {
		candidate := fmt.Sprintf("%s_%d", id, seen[id])
		if seen[candidate] == 0 {
			seen[candidate] = 1
			return candidate
		}
		seen[id]++
	}
}
