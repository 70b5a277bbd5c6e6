package accession_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/espw/accession"
	"github.com/grailbio/espw/encoding/fastq"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/zip"
)

// fakeTools stands in for datasets and fasterq-dump.
type fakeTools struct {
	mu   sync.Mutex
	runs []string // accessions, in call order
	// unavailable accessions make the tool fail.
	unavailable map[string]bool
}

func (f *fakeTools) Run(ctx context.Context, name string, args ...string) error {
	acc := ""
	switch name {
	case "datasets":
		acc = args[3]
	case "fasterq-dump":
		acc = args[len(args)-1]
	default:
		return fmt.Errorf("unexpected program %s", name)
	}
	f.mu.Lock()
	f.runs = append(f.runs, acc)
	f.mu.Unlock()
	if f.unavailable[acc] {
		return fmt.Errorf("%s: %s not found", name, acc)
	}
	if name == "datasets" {
		return writeArchive(args[len(args)-1], acc)
	}
	outDir := args[2]
	for mate := 1; mate <= 2; mate++ {
		out, err := os.Create(filepath.Join(outDir, fmt.Sprintf("%s_%d.fastq", acc, mate)))
		if err != nil {
			return err
		}
		w := fastq.NewWriter(out)
		for i := 1; i <= 3; i++ {
			r := fastq.Read{ID: fmt.Sprintf("%s.%d %d length=4", acc, i, i), Seq: "ACGT", Qual: "IIII"}
			if err := w.Write(&r); err != nil {
				return err
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if err := out.Close(); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeTools) accessions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.runs...)
}

func writeArchive(path, acc string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(out)
	for _, e := range []struct{ name, body string }{
		{"README.md", "NCBI Datasets\n"},
		{"ncbi_dataset/data/assembly_data_report.jsonl", "{}\n"},
		{"ncbi_dataset/data/" + acc + "/" + acc + "_genomic.fna", ">contig_1 " + acc + "\nACGTACGT\n"},
	} {
		w, err := zw.Create(e.name)
		if err != nil {
			return err
		}
		if _, err := w.Write([]byte(e.body)); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return out.Close()
}

func keys(targets []accession.Target) []string {
	var k []string
	for _, t := range targets {
		k = append(k, t.Key)
	}
	return k
}

func TestPartition(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	assert.NoError(t, os.WriteFile(accession.AssemblyPath(tmpdir, "A"), []byte(">c\nACGT\n"), 0644))
	assert.NoError(t, os.WriteFile(accession.AssemblyPath(tmpdir, "C"), nil, 0644))
	r := accession.Resolver{Dir: tmpdir, Layout: accession.AssemblyLayout}
	targets := []accession.Target{{"C", "GCA_3"}, {"A", "GCA_1"}, {"B", "GCA_2"}}
	present, needed, err := r.Partition(ctx, targets)
	assert.NoError(t, err)
	expect.EQ(t, keys(present), []string{"A"})
	// An empty file is not a download.
	expect.EQ(t, keys(needed), []string{"C", "B"})

	// Reads need both mates.
	reads := accession.ReadPaths(tmpdir, "SRR1")
	assert.NoError(t, os.WriteFile(reads[0], []byte("@r\nA\n+\nI\n"), 0644))
	r = accession.Resolver{Dir: tmpdir, Layout: accession.ReadsLayout}
	missing, err := r.Missing(ctx, []accession.Target{{"A", "SRR1"}})
	assert.NoError(t, err)
	expect.EQ(t, keys(missing), []string{"A"})
	assert.NoError(t, os.WriteFile(reads[1], []byte("@r\nA\n+\nI\n"), 0644))
	missing, err = r.Missing(ctx, []accession.Target{{"A", "SRR1"}})
	assert.NoError(t, err)
	expect.EQ(t, len(missing), 0)
}

func TestResolveAssemblies(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	dir := filepath.Join(tmpdir, "genomes")
	tools := &fakeTools{unavailable: map[string]bool{"GCA_bad": true}}
	f := accession.AssemblyFetcher{Datasets: "datasets", Run: tools}
	r := accession.Resolver{Dir: dir, Layout: accession.AssemblyLayout}
	targets := []accession.Target{{"A", "GCA_1"}, {"B", "GCA_bad"}, {"C", "GCA_3"}}

	present, missing, err := r.Resolve(ctx, targets, f)
	assert.NoError(t, err)
	expect.EQ(t, keys(present), []string{"A", "C"})
	expect.EQ(t, keys(missing), []string{"B"})
	b, err := os.ReadFile(accession.AssemblyPath(dir, "C"))
	assert.NoError(t, err)
	expect.EQ(t, string(b), ">contig_1 GCA_3\nACGTACGT\n")

	// Only the assemblies and nothing else are left in the directory.
	ents, err := os.ReadDir(dir)
	assert.NoError(t, err)
	var names []string
	for _, e := range ents {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	expect.EQ(t, names, []string{"A.fna", "C.fna"})

	// A second run downloads only what is still missing.
	present, missing, err = r.Resolve(ctx, targets, f)
	assert.NoError(t, err)
	expect.EQ(t, keys(present), []string{"A", "C"})
	expect.EQ(t, keys(missing), []string{"B"})
	expect.EQ(t, tools.accessions(), []string{"GCA_1", "GCA_bad", "GCA_3", "GCA_bad"})
}

func TestResolveNothingNeeded(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)

	assert.NoError(t, os.WriteFile(accession.AssemblyPath(tmpdir, "A"), []byte(">c\nACGT\n"), 0644))
	tools := &fakeTools{}
	r := accession.Resolver{Dir: tmpdir, Layout: accession.AssemblyLayout}
	present, missing, err := r.Resolve(vcontext.Background(),
		[]accession.Target{{"A", "GCA_1"}}, accession.AssemblyFetcher{Datasets: "datasets", Run: tools})
	assert.NoError(t, err)
	expect.EQ(t, keys(present), []string{"A"})
	expect.EQ(t, len(missing), 0)
	expect.EQ(t, len(tools.accessions()), 0)
}

func TestResolveReads(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	dir := filepath.Join(tmpdir, "reads")
	tools := &fakeTools{}
	f := accession.ReadsFetcher{FasterqDump: "fasterq-dump", Run: tools}
	r := accession.Resolver{Dir: dir, Layout: accession.ReadsLayout}
	// Two genomes sequenced in the same run share one download.
	targets := []accession.Target{{"A", "SRR1"}, {"B", "SRR2"}, {"C", "SRR1"}}
	present, missing, err := r.Resolve(ctx, targets, f)
	assert.NoError(t, err)
	expect.EQ(t, keys(present), []string{"A", "B", "C"})
	expect.EQ(t, len(missing), 0)
	expect.EQ(t, tools.accessions(), []string{"SRR1", "SRR2"})
	for _, p := range accession.ReadPaths(dir, "SRR2") {
		_, err := os.Stat(p)
		expect.NoError(t, err)
	}

	_, _, err = r.Resolve(ctx, targets, f)
	assert.NoError(t, err)
	expect.EQ(t, tools.accessions(), []string{"SRR1", "SRR2"})
}

func TestResolveReadsFailure(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)

	tools := &fakeTools{unavailable: map[string]bool{"SRR9": true}}
	f := accession.ReadsFetcher{FasterqDump: "fasterq-dump", Run: tools}
	r := accession.Resolver{Dir: tmpdir, Layout: accession.ReadsLayout}
	_, _, err := r.Resolve(vcontext.Background(), []accession.Target{{"A", "SRR9"}}, f)
	assert.True(t, err != nil)
	expect.HasSubstr(t, err.Error(), "SRR9")
	_, err = os.Stat(accession.ReadPaths(tmpdir, "SRR9")[0])
	expect.True(t, os.IsNotExist(err))
}
