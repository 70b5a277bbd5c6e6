package detect

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/espw/allele"
	"github.com/grailbio/espw/encoding/fasta"
	"github.com/grailbio/espw/tool"
)

// AssembledSeqs is the ARIBA output file holding the locally assembled
// fragments.
const AssembledSeqs = "assembled_seqs.fa.gz"

// Secondary detects espW by assembling it from reads with ARIBA.
//
// All Detect calls share one ARIBA reference database. Prepare builds it and
// must return before the first Detect call; Detect never builds it.
type Secondary struct {
	opts     Opts
	run      tool.Runner
	db       string
	prepared bool
}

// NewSecondary creates a Secondary whose reference database will live at db.
func NewSecondary(opts Opts, db string, run tool.Runner) *Secondary {
	return &Secondary{opts: opts, run: run, db: db}
}

// DB returns the path of the ARIBA reference database.
func (s *Secondary) DB() string { return s.db }

// Prepare builds the ARIBA reference database from the allele references,
// replacing any database left at the same path by an earlier run. It is not
// safe to call concurrently with Detect.
func (s *Secondary) Prepare(ctx context.Context) error {
	if err := os.RemoveAll(s.db); err != nil {
		return errors.E(err, "secondary: remove stale database", s.db)
	}
	if err := os.MkdirAll(filepath.Dir(s.db), 0755); err != nil {
		return errors.E(err, "secondary", s.db)
	}
	if err := s.run.Run(ctx, s.opts.Tools.Ariba,
		"prepareref",
		"--all_coding", "no",
		"-f", s.opts.Alleles,
		s.db); err != nil {
		return errors.E(err, "secondary: prepareref")
	}
	s.prepared = true
	log.Printf("secondary: built ARIBA database %s", s.db)
	return nil
}

// Detect runs ARIBA on the read pair and classifies the assembled fragments.
// outDir must not be shared with another call; ARIBA refuses to write into an
// existing directory, so one left by an earlier run is removed first. The call
// never carries a contig. A conflict between fragments is returned as an
// error.
func (s *Secondary) Detect(ctx context.Context, key string, reads [2]string, outDir string) (allele.Call, error) {
	call := allele.Call{Key: key}
	if !s.prepared {
		return call, errors.E(errors.Precondition, "secondary", key, "ARIBA database not prepared")
	}
	if err := os.RemoveAll(outDir); err != nil {
		return call, errors.E(err, "secondary", key)
	}
	if err := os.MkdirAll(filepath.Dir(outDir), 0755); err != nil {
		return call, errors.E(err, "secondary", key)
	}
	if err := s.run.Run(ctx, s.opts.Tools.Ariba,
		"run",
		"--threads", strconv.Itoa(s.opts.Threads),
		s.db,
		reads[0], reads[1],
		outDir); err != nil {
		return call, errors.E(err, "secondary", key)
	}
	path := filepath.Join(outDir, AssembledSeqs)
	recs, err := fasta.ReadFile(ctx, path)
	if err != nil {
		return call, errors.E(err, "secondary", key)
	}
	frags := make([]string, len(recs))
	for i, rec := range recs {
		frags[i] = rec.Seq
	}
	if call.Allele, err = allele.Classify(frags); err != nil {
		return call, errors.E(errors.Integrity, "secondary", key, err)
	}
	log.Debug.Printf("%s: %d assembled fragments: %v", key, len(frags), call.Allele)
	return call, nil
}
