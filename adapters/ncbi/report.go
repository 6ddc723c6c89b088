package ncbi

import (
	"encoding/xml"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"
	"sync"

	"curiesuite/domain/sequence"
	"curiesuite/internal/errors"
)

// Numeric fields are kept as text so one malformed HSP yields an invalid hit
// instead of aborting the whole report.
type xmlHit struct {
	XMLName xml.Name `xml:"Hit"`
	ID      string   `xml:"Hit_id"`
	Def     string   `xml:"Hit_def"`
	Hsps    []xmlHsp `xml:"Hit_hsps>Hsp"`
}

type xmlHsp struct {
	Identity string `xml:"Hsp_identity"`
	AlignLen string `xml:"Hsp_align-len"`
	HitSeq   string `xml:"Hsp_hseq"`
}

func (h xmlHsp) toHit(hit xmlHit, queryLen int) sequence.AlignmentHit {
	return sequence.AlignmentHit{
		SubjectID:   strings.TrimSpace(hit.ID),
		Description: strings.TrimSpace(hit.Def),
		Sequence:    ungap(h.HitSeq),
		Identities:  atoi(h.Identity),
		AlignLength: atoi(h.AlignLen),
		QueryLength: queryLen,
	}
}

// reportStream decodes a BLAST XML report one <Hit> element at a time
type reportStream struct {
	body     io.ReadCloser
	dec      *xml.Decoder
	queryLen int
	once     sync.Once
	closeErr error
}

func newReportStream(body io.ReadCloser) *reportStream {
	dec := xml.NewDecoder(body)
	dec.Strict = false
	return &reportStream{body: body, dec: dec}
}

// QueryLength is known once the report header has been read, i.e. after the
// first hit has been yielded
func (s *reportStream) QueryLength() int { return s.queryLen }

func (s *reportStream) Close() error {
	s.once.Do(func() { s.closeErr = s.body.Close() })
	return s.closeErr
}

// Hits yields one AlignmentHit per HSP in report order. Decoding errors end
// the sequence with an EXTERNAL_SERVICE_ERROR. The body is closed when the
// sequence ends, whether exhausted or abandoned.
func (s *reportStream) Hits() iter.Seq2[sequence.AlignmentHit, error] {
	return func(yield func(sequence.AlignmentHit, error) bool) {
		defer s.Close()
		for {
			tok, err := s.dec.Token()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(sequence.AlignmentHit{}, errors.ExternalServiceError("ncbi", fmt.Errorf("decode BLAST XML: %w", err)))
				return
			}
			start, ok := tok.(xml.StartElement)
			if !ok {
				continue
			}
			switch start.Name.Local {
			case "BlastOutput_query-len", "Iteration_query-len":
				var text string
				if err := s.dec.DecodeElement(&text, &start); err != nil {
					yield(sequence.AlignmentHit{}, errors.ExternalServiceError("ncbi", fmt.Errorf("decode query length: %w", err)))
					return
				}
				if n := atoi(text); n > 0 {
					s.queryLen = n
				}
			case "Hit":
				var hit xmlHit
				if err := s.dec.DecodeElement(&hit, &start); err != nil {
					yield(sequence.AlignmentHit{}, errors.ExternalServiceError("ncbi", fmt.Errorf("decode hit: %w", err)))
					return
				}
				for _, hsp := range hit.Hsps {
					if !yield(hsp.toHit(hit, s.queryLen), nil) {
						return
					}
				}
			}
		}
	}
}

// emptyStream stands in for a finished search without hits
type emptyStream struct{}

func (emptyStream) Hits() iter.Seq2[sequence.AlignmentHit, error] {
	return func(func(sequence.AlignmentHit, error) bool) {}
}
func (emptyStream) QueryLength() int { return 0 }
func (emptyStream) Close() error     { return nil }

func ungap(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', '.', ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return -1
	}
	return n
}
