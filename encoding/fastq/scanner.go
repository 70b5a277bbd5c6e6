// Package fastq reads and writes the paired-end FASTQ files ARIBA consumes.
package fastq

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
)

// A Read is one FASTQ record. ID is the header line without the leading '@'.
type Read struct {
	ID, Seq, Qual string
}

// Name returns the read name shared by both mates: the ID up to the first
// whitespace, without a trailing /1 or /2.
func (r *Read) Name() string {
	name := r.ID
	if i := strings.IndexAny(name, " \t"); i >= 0 {
		name = name[:i]
	}
	if n := len(name); n > 2 && name[n-2] == '/' && (name[n-1] == '1' || name[n-1] == '2') {
		name = name[:n-2]
	}
	return name
}

const maxLineSize = 1 << 20

// Scanner reads FASTQ records. It checks that each record has the four-line
// layout, that the header starts with '@', the separator with '+', and that
// the sequence and quality have the same length. Scanners are not
// threadsafe.
type Scanner struct {
	b    *bufio.Scanner
	line int
	err  error
	done bool
}

// NewScanner creates a Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	b := bufio.NewScanner(r)
	b.Buffer(make([]byte, 64<<10), maxLineSize)
	return &Scanner{b: b}
}

// Scan reads the next record into read. It returns false at the end of the
// input or on error; Err tells them apart.
func (s *Scanner) Scan(read *Read) bool {
	if s.err != nil || s.done {
		return false
	}
	if !s.b.Scan() {
		s.done = true
		s.err = s.b.Err()
		return false
	}
	s.line++
	id := s.b.Text()
	if !strings.HasPrefix(id, "@") {
		return s.fail("header does not start with '@'")
	}
	read.ID = id[1:]
	if !s.next() {
		return false
	}
	read.Seq = s.b.Text()
	if !s.next() {
		return false
	}
	if !strings.HasPrefix(s.b.Text(), "+") {
		return s.fail("separator does not start with '+'")
	}
	if !s.next() {
		return false
	}
	read.Qual = s.b.Text()
	if len(read.Qual) != len(read.Seq) {
		return s.fail(fmt.Sprintf("quality length %d differs from sequence length %d", len(read.Qual), len(read.Seq)))
	}
	return true
}

func (s *Scanner) next() bool {
	if !s.b.Scan() {
		if s.err = s.b.Err(); s.err == nil {
			s.err = errors.E(errors.Invalid, fmt.Sprintf("fastq line %d: truncated record", s.line))
		}
		return false
	}
	s.line++
	return true
}

func (s *Scanner) fail(msg string) bool {
	s.err = errors.E(errors.Invalid, fmt.Sprintf("fastq line %d: %s", s.line, msg))
	return false
}

// Err returns the first error met by Scan, or nil at a clean end of input.
func (s *Scanner) Err() error {
	return s.err
}

// PairScanner reads the two mate files of a paired-end run in step.
type PairScanner struct {
	r1, r2 *Scanner
	n      int
	err    error
}

// NewPairScanner creates a PairScanner over the first and second mates.
func NewPairScanner(r1, r2 io.Reader) *PairScanner {
	return &PairScanner{r1: NewScanner(r1), r2: NewScanner(r2)}
}

// Scan reads the next pair. The mates must carry the same read name and both
// files must end together.
func (p *PairScanner) Scan(r1, r2 *Read) bool {
	if p.err != nil {
		return false
	}
	ok1 := p.r1.Scan(r1)
	ok2 := p.r2.Scan(r2)
	switch {
	case ok1 && ok2:
		p.n++
		if r1.Name() != r2.Name() {
			p.err = errors.E(errors.Integrity, fmt.Sprintf("fastq pair %d: mate names differ: %s, %s", p.n, r1.Name(), r2.Name()))
			return false
		}
		return true
	case ok1 != ok2 && p.r1.Err() == nil && p.r2.Err() == nil:
		p.err = errors.E(errors.Integrity, fmt.Sprintf("fastq pair %d: mate files have different lengths", p.n+1))
	}
	return false
}

// Err returns the first error met by Scan.
func (p *PairScanner) Err() error {
	if err := p.r1.Err(); err != nil {
		return errors.E(err, "mate 1")
	}
	if err := p.r2.Err(); err != nil {
		return errors.E(err, "mate 2")
	}
	return p.err
}
