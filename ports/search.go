package ports

import (
	"context"
	"iter"

	"curiesuite/domain/sequence"
)

// SearchOptions select the remote search program and database
type SearchOptions struct {
	Program     string
	Database    string
	HitlistSize int
}

// HitStream yields alignment hits lazily while the search report is read.
// Close releases the underlying response and is safe to call twice.
type HitStream interface {
	Hits() iter.Seq2[sequence.AlignmentHit, error]
	QueryLength() int
	Close() error
}

// SearchClient runs a remote sequence similarity search
type SearchClient interface {
	Search(ctx context.Context, query string, opts SearchOptions) (HitStream, error)
}

// Aligner submits sequences to a remote multiple sequence alignment tool and
// returns the aligned FASTA text as produced by the service. Name is the
// tool identifier used in requests, Label its display name.
type Aligner interface {
	Name() string
	Label() string
	Align(ctx context.Context, fasta string, title string) (string, error)
}
