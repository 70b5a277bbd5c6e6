package fasta

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// maxLineSize bounds the length of one line, i.e. of a whole sequence in a
// single-line FASTA.
const maxLineSize = 1024 * 1024 * 300 // 300 MB

// Record is one named sequence.
type Record struct {
	Name string
	Seq  string
}

// Scanner reads FASTA records one at a time. Typical use:
//
//   sc := fasta.NewScanner(r)
//   for sc.Scan() {
//     rec := sc.Record()
//     ...
//   }
//   if err := sc.Err(); err != nil { ... }
type Scanner struct {
	sc      *bufio.Scanner
	rec     Record
	next    string // name of the record whose header was consumed last
	started bool
	done    bool
	err     error
	seq     strings.Builder
}

// NewScanner creates a Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, maxLineSize)
	return &Scanner{sc: sc}
}

// Scan advances to the next record. It returns false at the end of input or on
// error; Err distinguishes the two.
func (s *Scanner) Scan() bool {
	if s.done {
		return false
	}
	for s.sc.Scan() {
		line := strings.TrimRight(s.sc.Text(), "\r")
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' { // Start a new sequence.
			name := seqName(line)
			if !s.started {
				s.started = true
				s.next = name
				continue
			}
			s.rec = Record{Name: s.next, Seq: s.seq.String()}
			s.seq.Reset()
			s.next = name
			return true
		}
		if !s.started {
			s.err = errors.Errorf("malformed FASTA file: sequence data before the first header")
			s.done = true
			return false
		}
		s.seq.WriteString(line)
	}
	s.done = true
	if err := s.sc.Err(); err != nil {
		s.err = errors.Wrap(err, "couldn't read FASTA data")
		return false
	}
	if !s.started {
		return false
	}
	s.rec = Record{Name: s.next, Seq: s.seq.String()}
	s.seq.Reset()
	return true
}

// Record returns the record read by the last successful Scan.
func (s *Scanner) Record() Record { return s.rec }

// Err returns the first error encountered by Scan.
func (s *Scanner) Err() error { return s.err }

// ReadAll reads every record from r. An input holding no records yields an
// empty slice and no error.
func ReadAll(r io.Reader) ([]Record, error) {
	var recs []Record
	sc := NewScanner(r)
	for sc.Scan() {
		recs = append(recs, sc.Record())
	}
	return recs, sc.Err()
}

func seqName(header string) string {
	return strings.Split(header[1:], " ")[0]
}
