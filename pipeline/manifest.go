package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
)

// Genome is one row of the input manifest.
type Genome struct {
	// Key names the genome in the report. It is also used in file names.
	Key string
	// Assembly is the NCBI assembly accession.
	Assembly string
	// Reads is the SRA run holding the genome's paired reads.
	Reads string
}

// ReadManifest reads the manifest at path. The file may be compressed.
func ReadManifest(ctx context.Context, path string) (genomes []Genome, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, in.Name()); u != nil {
		r = u
	}
	if genomes, err = ParseManifest(r); err != nil {
		return nil, errors.E(err, path)
	}
	return genomes, nil
}

// ParseManifest parses a manifest: one genome per line, three tab-separated
// fields (key, assembly accession, SRA run), no header. Blank lines and lines
// starting with '#' are ignored. Every field is required and keys must be
// unique.
func ParseManifest(r io.Reader) ([]Genome, error) {
	tr := tsv.NewReader(bufio.NewReader(r))
	tr.Comment = '#'
	tr.FieldsPerRecord = 3
	var (
		genomes []Genome
		seen    = map[string]bool{}
	)
	for {
		var g Genome
		if err := tr.Read(&g); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.E(errors.Invalid, "manifest", err)
		}
		line := fmt.Sprintf("manifest row %d:", len(genomes)+1)
		g.Key = strings.TrimSpace(g.Key)
		g.Assembly = strings.TrimSpace(g.Assembly)
		g.Reads = strings.TrimSpace(g.Reads)
		switch {
		case g.Key == "" || g.Assembly == "" || g.Reads == "":
			return nil, errors.E(errors.Invalid, line, "empty field")
		case !validKey(g.Key):
			return nil, errors.E(errors.Invalid, line, "key cannot be used as a file name:", g.Key)
		case seen[g.Key]:
			return nil, errors.E(errors.Invalid, line, "duplicate key", g.Key)
		}
		seen[g.Key] = true
		genomes = append(genomes, g)
	}
	if len(genomes) == 0 {
		return nil, errors.E(errors.Invalid, "manifest has no genomes")
	}
	return genomes, nil
}

func validKey(key string) bool {
	return key != "." && key != ".." && !strings.ContainsAny(key, `/\`) && !strings.HasPrefix(key, ".")
}
