package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"curiesuite/domain/run"
	"curiesuite/domain/sequence"
	"curiesuite/internal/errors"
	"curiesuite/internal/hitfilter"
	"curiesuite/ports"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// AlignNone skips the multiple sequence alignment step
const AlignNone = "none"

// queryHeader is the FASTA header given to the submitted sequence
const queryHeader = "query"

// BlastRequest is one submission of the BLAST tab. Exactly one of Sequence
// and FASTA must be set.
type BlastRequest struct {
	Name      string             `json:"name"`
	Sequence  string             `json:"sequence,omitempty"`
	FASTA     string             `json:"fasta,omitempty"`
	Criteria  hitfilter.Criteria `json:"criteria"`
	Alignment string             `json:"alignment"`
	Trim      bool               `json:"trim"`
}

// BlastResult carries the filtered hits, the optional alignment and the
// recorded run
type BlastResult struct {
	Run       *run.Run
	Filter    *hitfilter.Result
	Alignment sequence.FastaRecords
}

// BlastService runs a remote search, filters the hits and optionally aligns
// them. Remote work is bounded per process by a weighted semaphore.
type BlastService struct {
	search   ports.SearchClient
	aligners map[string]ports.Aligner
	choices  []AlignerOption
	runs     ports.RunRepository
	slots    *semaphore.Weighted
	options  ports.SearchOptions
	log      zerolog.Logger
}

// NewBlastService wires the search client, aligners and run store
func NewBlastService(search ports.SearchClient, runs ports.RunRepository, maxInFlight int64, options ports.SearchOptions, log zerolog.Logger, aligners ...ports.Aligner) *BlastService {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	s := &BlastService{
		search:   search,
		aligners: make(map[string]ports.Aligner, len(aligners)),
		runs:     runs,
		slots:    semaphore.NewWeighted(maxInFlight),
		options:  options,
		log:      log.With().Str("component", "blast_service").Logger(),
	}
	for _, a := range aligners {
		s.aligners[a.Name()] = a
		s.choices = append(s.choices, AlignerOption{Name: a.Name(), Label: a.Label()})
	}
	return s
}

// AlignerOption is one choice offered for the alignment step
type AlignerOption struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// Aligners lists the configured alignment tools in registration order
func (s *BlastService) Aligners() []AlignerOption {
	return s.choices
}

// Run executes the search, filter and alignment steps and saves the run
func (s *BlastService) Run(ctx context.Context, req BlastRequest) (*BlastResult, error) {
	query, err := req.query()
	if err != nil {
		return nil, err
	}
	if err := req.Criteria.Validate(); err != nil {
		return nil, err
	}
	aligner, err := s.aligner(req.Alignment)
	if err != nil {
		return nil, err
	}
	name := FileStem(req.Name, "query")

	if !s.slots.TryAcquire(1) {
		return nil, errors.Busy("too many searches in flight, try again shortly")
	}
	defer s.slots.Release(1)

	start := time.Now()
	opts := s.options
	opts.HitlistSize = req.Criteria.MaxHits

	stream, err := s.search.Search(ctx, query.Sequence, opts)
	if err != nil {
		return nil, errors.Wrap(err, "blast search failed")
	}
	filtered, err := hitfilter.Filter(ctx, query, stream.Hits(), req.Criteria)
	closeErr := stream.Close()
	if err != nil {
		return nil, errors.Wrap(err, "hit filtering failed")
	}
	if closeErr != nil {
		s.log.Warn().Err(closeErr).Msg("closing search report")
	}

	s.log.Info().
		Str("name", name).
		Int("examined", filtered.Examined).
		Int("accepted", filtered.Accepted()).
		Int("malformed", filtered.Malformed).
		Int("out_of_range", filtered.OutOfRange).
		Int("redundant", filtered.Redundant).
		Msg("hits filtered")

	r, err := run.New(run.KindBlast, name, req.params())
	if err != nil {
		return nil, errors.Wrap(err, "record run")
	}
	r.Summary = append(r.Summary, fmt.Sprintf("Accepted %d of %d hits (%d malformed, %d outside thresholds, %d redundant)",
		filtered.Accepted(), filtered.Examined, filtered.Malformed, filtered.OutOfRange, filtered.Redundant))
	r.Attach(run.Text(name+"_BLAST.fasta", run.MediaFASTA, filtered.Records.String()))

	res := &BlastResult{Run: r, Filter: filtered}
	if aligner != nil && filtered.Accepted() == 0 {
		s.log.Info().Str("name", name).Str("aligner", aligner.Name()).Msg("no hits to align, alignment skipped")
		r.Summary = append(r.Summary, fmt.Sprintf("%s alignment skipped: no hits passed the filter", aligner.Label()))
		aligner = nil
	}
	if aligner != nil {
		aligned, err := s.align(ctx, aligner, filtered.Records, name, req.Trim)
		if err != nil {
			return nil, err
		}
		res.Alignment = aligned
		r.Summary = append(r.Summary, fmt.Sprintf("%s alignment of %d sequences", aligner.Label(), len(aligned)))
		r.Attach(run.Text(name+"_align.fasta", run.MediaFASTA, aligned.String()))
	}

	r.Elapsed = time.Since(start)
	if err := s.runs.Save(ctx, r); err != nil {
		return nil, errors.Wrap(err, "save blast run")
	}
	return res, nil
}

func (s *BlastService) align(ctx context.Context, aligner ports.Aligner, records sequence.FastaRecords, title string, trim bool) (sequence.FastaRecords, error) {
	text, err := aligner.Align(ctx, records.String(), title)
	if err != nil {
		return nil, errors.Wrapf(err, "%s alignment failed", aligner.Label())
	}
	aligned, err := sequence.ParseFASTA(strings.NewReader(text))
	if err != nil {
		return nil, errors.Wrap(errors.ExternalServiceError(aligner.Name(), err), "alignment output is not FASTA")
	}
	if !trim {
		return aligned, nil
	}
	trimmed, err := sequence.TrimToQuery(aligned, queryHeader)
	if err != nil {
		return nil, errors.Wrap(errors.ExternalServiceError(aligner.Name(), err), "trim alignment")
	}
	return trimmed, nil
}

func (s *BlastService) aligner(name string) (ports.Aligner, error) {
	if name == "" || name == AlignNone {
		return nil, nil
	}
	a, ok := s.aligners[name]
	if !ok {
		return nil, errors.InvalidInputf("unknown alignment tool %q", name)
	}
	return a, nil
}

// query resolves the sequence to search from either pasted text or an
// uploaded FASTA file, never both
func (req BlastRequest) query() (sequence.FastaRecord, error) {
	hasSeq := strings.TrimSpace(req.Sequence) != ""
	hasFile := strings.TrimSpace(req.FASTA) != ""
	switch {
	case hasSeq && hasFile:
		return sequence.FastaRecord{}, errors.InvalidInput("provide either a sequence or a FASTA file, not both")
	case !hasSeq && !hasFile:
		return sequence.FastaRecord{}, errors.InvalidInput("provide a sequence or a FASTA file")
	}

	raw := req.Sequence
	if hasFile {
		records, err := sequence.ParseFASTA(strings.NewReader(req.FASTA))
		if err != nil {
			return sequence.FastaRecord{}, errors.InvalidInputf("FASTA file: %v", err)
		}
		if len(records) == 0 {
			return sequence.FastaRecord{}, errors.InvalidInput("FASTA file has no records")
		}
		raw = records[0].Sequence
	} else if strings.HasPrefix(strings.TrimSpace(raw), ">") {
		records, err := sequence.ParseFASTA(strings.NewReader(raw))
		if err != nil || len(records) == 0 {
			return sequence.FastaRecord{}, errors.InvalidInput("pasted FASTA could not be read")
		}
		raw = records[0].Sequence
	}

	seq, err := sequence.NormalizeProtein(raw)
	if err != nil {
		return sequence.FastaRecord{}, errors.InvalidInput(err.Error())
	}
	return sequence.FastaRecord{Header: queryHeader, Sequence: seq}, nil
}

func (req BlastRequest) params() map[string]interface{} {
	return map[string]interface{}{
		"name":         req.Name,
		"max_hits":     req.Criteria.MaxHits,
		"min_identity": req.Criteria.MinIdentity,
		"max_identity": req.Criteria.MaxIdentity,
		"min_coverage": req.Criteria.MinCoverage,
		"alignment":    req.Alignment,
		"trim":         req.Trim,
	}
}
