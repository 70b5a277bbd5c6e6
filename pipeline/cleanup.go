package pipeline

import (
	"os"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/espw/accession"
)

// cleanup removes the files the run leaves behind. The detectors' working
// files go unless KeepIntermediates is set. The assemblies of every genome
// and the reads of the genomes that needed them go only when RemoveDownloads
// is set. Files that were never created are ignored.
func (p *Pipeline) cleanup(genomes []Genome, fallback []string, byKey map[string]Genome) error {
	var paths []string
	if !p.Opts.KeepIntermediates {
		paths = append(paths, p.Opts.blastDir(""), p.Opts.aribaDir(""), p.Opts.aribaDB())
	}
	if p.Opts.RemoveDownloads {
		for _, g := range genomes {
			paths = append(paths, accession.AssemblyPath(p.Opts.GenomeDir, g.Key))
		}
		for _, k := range fallback {
			r := accession.ReadPaths(p.Opts.ReadsDir, byKey[k].Reads)
			paths = append(paths, r[0], r[1])
		}
	}
	for _, path := range paths {
		if err := os.RemoveAll(path); err != nil {
			return errors.E(err, "cleanup", path)
		}
	}
	if !p.Opts.KeepIntermediates {
		// Only succeeds when the work directory is now empty.
		_ = os.Remove(p.Opts.WorkDir)
	}
	log.Printf("pipeline: removed %d paths", len(paths))
	return nil
}
