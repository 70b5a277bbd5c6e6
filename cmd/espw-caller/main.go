// Copyright 2023 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

/*
espw-caller determines which espW allele (full length, insertion, deletion,
ambiguous or absent) each genome carries.

Batch mode reads a manifest of genomes (key, assembly accession, SRA run),
downloads what is missing, searches every assembly with blastn, falls back to
ARIBA on the reads of the genomes blastn could not call, and writes one line
per genome:

  key<TAB>allele[<TAB>contig]

Single-genome mode (-fasta and -reads) calls one local genome and prints
allele[<TAB>contig] to stdout.
*/

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/espw/pipeline"
	"github.com/grailbio/espw/tool"
)

const version = "1.0.0"

var (
	manifest        = flag.String("manifest", "", "Tab-separated manifest of genomes: key, assembly accession, SRA run")
	out             = flag.String("out", pipeline.DefaultOpts.Output, "Report path")
	alleles         = flag.String("alleles", "", "FASTA of espW allele reference sequences; sequence names must be allele labels")
	genomeDir       = flag.String("genome-dir", pipeline.DefaultOpts.GenomeDir, "Directory holding (or receiving) the assemblies")
	readsDir        = flag.String("reads-dir", pipeline.DefaultOpts.ReadsDir, "Directory holding (or receiving) the paired reads")
	workDir         = flag.String("work-dir", pipeline.DefaultOpts.WorkDir, "Directory for intermediate files")
	parallelism     = flag.Int("parallelism", 0, "Maximum number of genomes processed at once; 0 = runtime.NumCPU()")
	threads         = flag.Int("threads", pipeline.DefaultOpts.Detect.Threads, "Threads given to each blastn and ARIBA process")
	saveFiles       = flag.Bool("save-files", false, "Keep intermediate files")
	removeDownloads = flag.Bool("remove-downloads", false, "Delete the downloaded assemblies and reads after a successful run")
	fastaPath       = flag.String("fasta", "", "Single-genome mode: assembly FASTA")
	readsFlag       = flag.String("reads", "", "Single-genome mode: paired reads as r1,r2")
	blastDir        = flag.String("blast-dir", "", "Directory containing makeblastdb and blastn; default $PATH")
	ariba           = flag.String("ariba", tool.DefaultPaths.Ariba, "ARIBA executable")
	datasets        = flag.String("datasets", tool.DefaultPaths.Datasets, "NCBI datasets executable")
	fasterqDump     = flag.String("fasterq-dump", tool.DefaultPaths.FasterqDump, "SRA toolkit fasterq-dump executable")
	showVersion     = flag.Bool("version", false, "Print the version and exit")
	checkEnv        = flag.Bool("check-env", false, "Report where each external tool resolves and exit")
)

func espwUsage() {
	fmt.Printf("Usage:\n")
	fmt.Printf("  %s -manifest manifest.tsv -alleles espW_alleles.fna [OPTIONS]\n", os.Args[0])
	fmt.Printf("  %s -fasta genome.fna -reads r1.fastq,r2.fastq -alleles espW_alleles.fna [OPTIONS]\n", os.Args[0])
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
}

func toolPaths() tool.Paths {
	p := tool.DefaultPaths.WithBlastDir(*blastDir)
	p.Ariba = *ariba
	p.Datasets = *datasets
	p.FasterqDump = *fasterqDump
	return p
}

// printEnv writes one line per tool and reports whether all were found.
func printEnv(w io.Writer, statuses []tool.Status) bool {
	ok := true
	for _, s := range statuses {
		if s.Err != nil {
			ok = false
			fmt.Fprintf(w, "%s\tNOT FOUND\t%v\n", s.Name, s.Err)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\n", s.Name, s.Path)
	}
	return ok
}

func main() {
	flag.Usage = espwUsage
	shutdown := grail.Init()
	defer shutdown()

	if *showVersion {
		fmt.Printf("espw-caller %s\n", version)
		return
	}
	if *checkEnv {
		if !printEnv(os.Stdout, tool.Check(toolPaths())) {
			log.Fatalf("some external tools are missing")
		}
		return
	}
	if flag.NArg() != 0 {
		log.Fatalf("unexpected positional arguments: %v", flag.Args())
	}
	single := *fastaPath != "" || *readsFlag != ""
	switch {
	case *alleles == "":
		log.Fatalf("-alleles is required")
	case single && *manifest != "":
		log.Fatalf("-manifest cannot be combined with -fasta/-reads")
	case single && (*fastaPath == "" || *readsFlag == ""):
		log.Fatalf("single-genome mode needs both -fasta and -reads")
	case !single && *manifest == "":
		log.Fatalf("either -manifest or -fasta and -reads is required")
	}

	opts := pipeline.DefaultOpts
	opts.Manifest = *manifest
	opts.Output = *out
	opts.GenomeDir = *genomeDir
	opts.ReadsDir = *readsDir
	opts.WorkDir = *workDir
	opts.Parallelism = *parallelism
	opts.KeepIntermediates = *saveFiles
	opts.RemoveDownloads = *removeDownloads
	opts.Detect.Alleles = *alleles
	opts.Detect.Threads = *threads
	opts.Detect.Tools = toolPaths()

	ctx := vcontext.Background()
	p := pipeline.New(opts, tool.Exec{})
	if single {
		reads, err := pipeline.ParseReads(*readsFlag)
		if err != nil {
			log.Fatalf("%v", err)
		}
		call, err := p.CallGenome(ctx, *fastaPath, reads)
		if err != nil {
			log.Fatalf("%v", err)
		}
		if err := pipeline.WriteCall(os.Stdout, call); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}
	if err := p.Run(ctx); err != nil {
		log.Fatalf("%s: %v", p.Stage(), err)
	}
	log.Debug.Printf("exiting")
}
