package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/espw/accession"
	"github.com/grailbio/espw/allele"
	"github.com/grailbio/espw/encoding/fasta"
	"github.com/grailbio/espw/encoding/fastq"
)

// ParseReads splits a comma-separated pair of read files and checks that both
// exist.
func ParseReads(s string) ([2]string, error) {
	var reads [2]string
	parts := strings.Split(s, ",")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return reads, errors.E(errors.Invalid, "reads must be two comma-separated files:", s)
	}
	for i, p := range parts {
		info, err := os.Stat(p)
		if err != nil {
			return reads, errors.E(errors.NotExist, "reads", err)
		}
		if info.IsDir() {
			return reads, errors.E(errors.Invalid, "reads", p, "is a directory")
		}
		reads[i] = p
	}
	return reads, nil
}

// GenomeKey names a genome after its assembly file.
func GenomeKey(assembly string) string {
	base := filepath.Base(assembly)
	for _, ext := range []string{".gz", ".fna", ".fasta", ".fa"} {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

// CallGenome calls a single genome: blastn against the assembly first, then
// ARIBA on the reads when blastn finds nothing. Intermediate files go to
// p.Opts.WorkDir and are removed on success unless KeepIntermediates is set.
func (p *Pipeline) CallGenome(ctx context.Context, assembly string, reads [2]string) (allele.Call, error) {
	if err := ValidateAlleles(ctx, p.Opts.Detect.Alleles); err != nil {
		return allele.Call{}, err
	}
	recs, err := fasta.ReadFile(ctx, assembly)
	if err != nil {
		return allele.Call{}, errors.E(errors.Invalid, "assembly", err)
	}
	if len(recs) == 0 {
		return allele.Call{}, errors.E(errors.Invalid, "assembly", assembly, "has no sequences")
	}
	if _, err := fastq.CheckPair(ctx, reads[0], reads[1], accession.CheckReads); err != nil {
		return allele.Call{}, errors.E(errors.Invalid, "reads", err)
	}
	key := GenomeKey(assembly)
	call, err := p.Primary.Detect(ctx, key, assembly, p.Opts.blastDir(key))
	if err != nil {
		return call, err
	}
	if call.Allele == allele.Absent {
		log.Printf("%s: no blastn hit, assembling espW from reads", key)
		if err := p.Secondary.Prepare(ctx); err != nil {
			return call, err
		}
		if call, err = p.Secondary.Detect(ctx, key, reads, p.Opts.aribaDir(key)); err != nil {
			return call, err
		}
	}
	if !p.Opts.KeepIntermediates {
		for _, path := range []string{p.Opts.blastDir(""), p.Opts.aribaDir(""), p.Opts.aribaDB()} {
			if err := os.RemoveAll(path); err != nil {
				return call, errors.E(err, "cleanup", path)
			}
		}
		_ = os.Remove(p.Opts.WorkDir)
	}
	return call, nil
}
