package accession

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/espw/encoding/fastq"
	"github.com/grailbio/espw/tool"
	"github.com/klauspost/compress/zip"
)

// AssemblyFetcher downloads genome assemblies from NCBI with the datasets
// CLI. Each target becomes dir/<key>.fna. A target that fails to download is
// logged and skipped; the Resolver reports it as missing so the genome can be
// routed to read-based detection.
type AssemblyFetcher struct {
	// Datasets is the path of the NCBI datasets program.
	Datasets string
	Run      tool.Runner
}

// Download implements Downloader.
func (f AssemblyFetcher) Download(ctx context.Context, dir string, targets []Target) error {
	var failed int
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f.fetch(ctx, dir, t); err != nil {
			failed++
			log.Error.Printf("assembly %s (%s): %v", t.Key, t.Accession, err)
			continue
		}
		log.Debug.Printf("assembly %s (%s): downloaded", t.Key, t.Accession)
	}
	log.Printf("assemblies: downloaded %d of %d", len(targets)-failed, len(targets))
	return nil
}

func (f AssemblyFetcher) fetch(ctx context.Context, dir string, t Target) error {
	archive := filepath.Join(dir, "."+t.Key+".zip")
	defer os.Remove(archive) // nolint: errcheck
	if err := f.Run.Run(ctx, f.Datasets,
		"download", "genome", "accession", t.Accession,
		"--include", "genome",
		"--filename", archive); err != nil {
		return err
	}
	return extractGenome(archive, AssemblyPath(dir, t.Key))
}

// extractGenome copies the first genomic FASTA of a datasets archive to dst.
// The copy is written under a temporary name and renamed into place, so dst
// either holds a complete assembly or does not exist.
func extractGenome(archive, dst string) (err error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return errors.E(errors.Invalid, "open archive", archive, err)
	}
	defer zr.Close() // nolint: errcheck
	var src *zip.File
	for _, zf := range zr.File {
		if isGenomeFASTA(zf.Name) {
			src = zf
			break
		}
	}
	if src == nil {
		return errors.E(errors.NotExist, "no genomic FASTA in", archive)
	}
	in, err := src.Open()
	if err != nil {
		return errors.E(err, archive, src.Name)
	}
	defer in.Close() // nolint: errcheck
	return writeAtomic(dst, in)
}

func isGenomeFASTA(name string) bool {
	if !strings.HasPrefix(name, "ncbi_dataset/data/") {
		return false
	}
	switch path.Ext(name) {
	case ".fna", ".fa", ".fasta":
		return true
	}
	return false
}

func writeAtomic(dst string, r io.Reader) (err error) {
	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()
	if _, err = io.Copy(out, r); err != nil {
		_ = out.Close()
		return errors.E(err, "write", tmp)
	}
	if err = out.Close(); err != nil {
		return errors.E(err, "close", tmp)
	}
	return os.Rename(tmp, dst)
}

// CheckReads is the number of leading read pairs checked for concordance
// before a pair of FASTQ files is accepted.
const CheckReads = 1000

// ReadsFetcher downloads paired-end reads from the SRA with fasterq-dump.
// Each run accession becomes dir/<run>_1.fastq and dir/<run>_2.fastq. Targets
// sharing a run accession are fetched once. Any failure aborts the download.
type ReadsFetcher struct {
	// FasterqDump is the path of the fasterq-dump program.
	FasterqDump string
	Run         tool.Runner
}

// Download implements Downloader.
func (f ReadsFetcher) Download(ctx context.Context, dir string, targets []Target) error {
	done := make(map[string]bool, len(targets))
	for _, t := range targets {
		if done[t.Accession] {
			continue
		}
		done[t.Accession] = true
		if err := f.fetch(ctx, dir, t.Accession); err != nil {
			return errors.E(err, "reads", t.Key, t.Accession)
		}
		log.Debug.Printf("reads %s (%s): downloaded", t.Key, t.Accession)
	}
	log.Printf("reads: downloaded %d runs", len(done))
	return nil
}

// fetch dumps a run into a private directory and moves the mates into dir
// only once both exist and agree.
func (f ReadsFetcher) fetch(ctx context.Context, dir, run string) error {
	tmp := filepath.Join(dir, "."+run+".tmp")
	if err := os.RemoveAll(tmp); err != nil {
		return err
	}
	defer os.RemoveAll(tmp) // nolint: errcheck
	if err := os.MkdirAll(tmp, 0755); err != nil {
		return err
	}
	if err := f.Run.Run(ctx, f.FasterqDump,
		"--split-files",
		"--outdir", tmp,
		run); err != nil {
		return err
	}
	src, dst := ReadPaths(tmp, run), ReadPaths(dir, run)
	for i := range src {
		if _, err := os.Stat(src[i]); err != nil {
			return errors.E(errors.NotExist, "fasterq-dump did not write", src[i], err)
		}
	}
	if _, err := fastq.CheckPair(ctx, src[0], src[1], CheckReads); err != nil {
		return err
	}
	for i := range src {
		if err := os.Rename(src[i], dst[i]); err != nil {
			return err
		}
	}
	return nil
}
