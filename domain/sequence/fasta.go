package sequence

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"curiesuite/domain/core"
)

// FastaRecord is a single named sequence
type FastaRecord struct {
	Header   string
	Sequence string
}

// FastaRecords is an ordered FASTA document
type FastaRecords []FastaRecord

// WriteTo writes the records as ">header\nsequence\n" blocks
func (rs FastaRecords) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, r := range rs {
		n, err := fmt.Fprintf(w, ">%s\n%s\n", r.Header, r.Sequence)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// String renders the records as FASTA text
func (rs FastaRecords) String() string {
	var sb strings.Builder
	_, _ = rs.WriteTo(&sb)
	return sb.String()
}

// Headers returns the record headers in order
func (rs FastaRecords) Headers() []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Header
	}
	return out
}

// ParseFASTA reads FASTA records. Sequence lines are concatenated and
// whitespace is dropped. Text before the first header is rejected.
func ParseFASTA(r io.Reader) (FastaRecords, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var records FastaRecords
	var current *FastaRecord
	var body strings.Builder
	flush := func() {
		if current != nil {
			current.Sequence = body.String()
			records = append(records, *current)
			body.Reset()
		}
	}

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "" || strings.HasPrefix(line, ";"):
			continue
		case strings.HasPrefix(line, ">"):
			flush()
			current = &FastaRecord{Header: strings.TrimSpace(line[1:])}
		default:
			if current == nil {
				return nil, fmt.Errorf("line %d: sequence data before first header", lineNo)
			}
			body.WriteString(strings.Join(strings.Fields(line), ""))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	return records, nil
}

// proteinAlphabet is the IUPAC amino-acid alphabet plus selenocysteine,
// pyrrolysine, ambiguity codes and the stop symbol
const proteinAlphabet = "ACDEFGHIKLMNPQRSTVWYBZXJUO*"

// NormalizeProtein uppercases a pasted protein sequence, drops whitespace and
// digits, and checks the remaining characters against the amino-acid
// alphabet.
func NormalizeProtein(raw string) (string, error) {
	var sb strings.Builder
	sb.Grow(len(raw))
	for i, r := range raw {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || (r >= '0' && r <= '9'):
			continue
		case r >= 'a' && r <= 'z':
			r -= 'a' - 'A'
		}
		if !strings.ContainsRune(proteinAlphabet, r) {
			return "", fmt.Errorf("%w: unexpected character %q at offset %d", core.ErrInvalidSequence, r, i)
		}
		sb.WriteRune(r)
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: sequence is empty", core.ErrInvalidSequence)
	}
	return sb.String(), nil
}
