// Package detect runs the two espW detection strategies for a single genome:
// a fast blastn search of the allele references against an assembly, and a
// slower ARIBA local assembly from reads used when blastn finds nothing.
package detect

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/espw/allele"
	"github.com/grailbio/espw/hit"
	"github.com/grailbio/espw/tool"
)

// Opts configures both detectors.
type Opts struct {
	// Alleles is the FASTA of espW allele reference sequences. Its sequence
	// names must parse with allele.Parse.
	Alleles string
	// Threads is passed to blastn and ARIBA.
	Threads int
	Tools   tool.Paths
}

// DefaultOpts holds the default detector options. Alleles has no default.
var DefaultOpts = Opts{
	Threads: 1,
	Tools:   tool.DefaultPaths,
}

// blastn thresholds.
const (
	minPercIdentity = "90"
	minQueryCovHSP  = "35"
	maxTargetSeqs   = "10000"
)

// Primary detects espW with blastn.
type Primary struct {
	opts Opts
	run  tool.Runner
}

// NewPrimary creates a Primary that runs its tools through run.
func NewPrimary(opts Opts, run tool.Runner) *Primary {
	return &Primary{opts: opts, run: run}
}

// BlastDBPrefix is the database prefix makeblastdb writes for key under dir.
func BlastDBPrefix(dir, key string) string {
	return filepath.Join(dir, "db", key)
}

// BlastTablePath is the blastn output path for key under dir.
func BlastTablePath(dir, key string) string {
	return filepath.Join(dir, key+"_vs_espW.blastn")
}

// Detect indexes the assembly with makeblastdb, searches the allele
// references against it and returns the allele of the best hit along with the
// contig it lies on. When blastn reports no hit the call is allele.Absent with
// no contig, which tells the caller to fall back to the secondary strategy.
//
// dir is private to this call; it is created if needed.
func (p *Primary) Detect(ctx context.Context, key, assembly, dir string) (allele.Call, error) {
	call := allele.Call{Key: key}
	if err := os.MkdirAll(filepath.Join(dir, "db"), 0755); err != nil {
		return call, errors.E(err, "primary", key)
	}
	db := BlastDBPrefix(dir, key)
	if err := p.run.Run(ctx, p.opts.Tools.MakeBlastDB,
		"-dbtype", "nucl",
		"-out", db,
		"-in", assembly); err != nil {
		return call, errors.E(err, "primary", key)
	}
	table := BlastTablePath(dir, key)
	if err := p.run.Run(ctx, p.opts.Tools.Blastn,
		"-ungapped",
		"-perc_identity", minPercIdentity,
		"-qcov_hsp_perc", minQueryCovHSP,
		"-max_target_seqs", maxTargetSeqs,
		"-outfmt", hit.OutFmt,
		"-query", p.opts.Alleles,
		"-db", db,
		"-num_threads", strconv.Itoa(p.opts.Threads),
		"-out", table); err != nil {
		return call, errors.E(err, "primary", key)
	}
	hits, err := readTable(ctx, table)
	if err != nil {
		return call, errors.E(err, "primary", key)
	}
	best, ok := hit.Best(hits)
	if !ok {
		call.Allele = allele.Absent
		log.Debug.Printf("%s: no blastn hits", key)
		return call, nil
	}
	log.Debug.Printf("%s: best of %d hits: %v", key, len(hits), best)
	if call.Allele, err = allele.Parse(best.Query); err != nil {
		return call, errors.E(err, "primary", key, table)
	}
	call.Contig = best.Subject
	return call, nil
}

func readTable(ctx context.Context, path string) (hits []hit.Hit, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	if hits, err = hit.ReadTable(in.Reader(ctx)); err != nil {
		return nil, errors.E(err, path)
	}
	return hits, nil
}
