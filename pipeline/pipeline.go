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

// Package pipeline calls the espW allele of every genome in a manifest.
//
// Each genome is first searched with blastn against its assembly. Genomes
// without a hit, and genomes whose assembly could not be obtained, fall back
// to ARIBA local assembly from reads. The secondary call replaces the primary
// one, and the merged calls are written as a report in manifest order.
package pipeline

import (
	"context"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/espw/accession"
	"github.com/grailbio/espw/allele"
	"github.com/grailbio/espw/detect"
	"github.com/grailbio/espw/encoding/fasta"
	"github.com/grailbio/espw/tool"
)

// PrimaryDetector calls a genome from its assembly. An allele.Absent call
// means the genome needs the secondary strategy.
type PrimaryDetector interface {
	Detect(ctx context.Context, key, assembly, dir string) (allele.Call, error)
}

// SecondaryDetector calls a genome from its paired reads. Prepare is called
// once, before any Detect call.
type SecondaryDetector interface {
	Prepare(ctx context.Context) error
	Detect(ctx context.Context, key string, reads [2]string, outDir string) (allele.Call, error)
}

// PrimaryItem is the unit of work of the primary fan-out.
type PrimaryItem struct {
	Key      string
	Assembly string
	Dir      string
}

// SecondaryItem is the unit of work of the secondary fan-out.
type SecondaryItem struct {
	Key   string
	Reads [2]string
	Dir   string
}

// Pipeline runs a batch.
type Pipeline struct {
	Opts       Opts
	Primary    PrimaryDetector
	Secondary  SecondaryDetector
	Assemblies accession.Downloader
	Reads      accession.Downloader

	stage Stage
}

// New creates a Pipeline whose detectors and downloaders run the external
// tools named in opts.Detect.Tools through run.
func New(opts Opts, run tool.Runner) *Pipeline {
	tools := opts.Detect.Tools
	return &Pipeline{
		Opts:       opts,
		Primary:    detect.NewPrimary(opts.Detect, run),
		Secondary:  detect.NewSecondary(opts.Detect, opts.aribaDB(), run),
		Assemblies: accession.AssemblyFetcher{Datasets: tools.Datasets, Run: run},
		Reads:      accession.ReadsFetcher{FasterqDump: tools.FasterqDump, Run: run},
	}
}

// Stage returns the stage the pipeline is in, or the one it failed in.
func (p *Pipeline) Stage() Stage { return p.stage }

func (p *Pipeline) enter(s Stage) {
	p.stage = s
	log.Printf("pipeline: %v", s)
}

func (p *Pipeline) parallelism() int {
	if p.Opts.Parallelism <= 0 {
		return runtime.NumCPU()
	}
	return p.Opts.Parallelism
}

// Run calls every genome of the manifest and writes the report. It stops at
// the first error; no report is written in that case and intermediate files
// are left in place.
func (p *Pipeline) Run(ctx context.Context) error {
	p.enter(StageParseInput)
	genomes, err := ReadManifest(ctx, p.Opts.Manifest)
	if err != nil {
		return err
	}
	if err := ValidateAlleles(ctx, p.Opts.Detect.Alleles); err != nil {
		return err
	}
	order := make([]string, len(genomes))
	byKey := make(map[string]Genome, len(genomes))
	for i, g := range genomes {
		order[i] = g.Key
		byKey[g.Key] = g
	}
	log.Printf("pipeline: %d genomes", len(genomes))

	p.enter(StageResolveAccessions)
	targets := make([]accession.Target, len(genomes))
	for i, g := range genomes {
		targets[i] = accession.Target{Key: g.Key, Accession: g.Assembly}
	}
	assemblies := accession.Resolver{Dir: p.Opts.GenomeDir, Layout: accession.AssemblyLayout}
	present, missing, err := assemblies.Resolve(ctx, targets, p.Assemblies)
	if err != nil {
		return err
	}

	p.enter(StagePrimaryFanout)
	primaryItems := make([]PrimaryItem, len(present))
	for i, t := range present {
		primaryItems[i] = PrimaryItem{
			Key:      t.Key,
			Assembly: accession.AssemblyPath(p.Opts.GenomeDir, t.Key),
			Dir:      p.Opts.blastDir(t.Key),
		}
	}
	primary, err := fanOut(ctx, p.parallelism(), primaryItems, func(ctx context.Context, it PrimaryItem) (allele.Call, error) {
		c, err := p.Primary.Detect(ctx, it.Key, it.Assembly, it.Dir)
		if err == nil {
			log.Debug.Printf("%s: primary: %v", it.Key, c.Allele)
		}
		return c, err
	})
	if err != nil {
		return err
	}

	p.enter(StageDetermineFallbackSet)
	fallback := FallbackSet(order, primary, missing)
	log.Printf("pipeline: %d of %d genomes need read-based detection", len(fallback), len(genomes))

	var secondary []allele.Call
	if len(fallback) > 0 {
		p.enter(StageSecondaryFanout)
		if secondary, err = p.runSecondary(ctx, fallback, byKey); err != nil {
			return err
		}
	}

	p.enter(StageMerge)
	res, err := MergeCalls(order, primary, secondary)
	if err != nil {
		return err
	}

	p.enter(StageWriteReport)
	if err := WriteReport(ctx, p.Opts.Output, order, res); err != nil {
		return err
	}

	p.enter(StageCleanup)
	if err := p.cleanup(genomes, fallback, byKey); err != nil {
		return err
	}
	p.enter(StageDone)
	return nil
}

func (p *Pipeline) runSecondary(ctx context.Context, keys []string, byKey map[string]Genome) ([]allele.Call, error) {
	targets := make([]accession.Target, len(keys))
	for i, k := range keys {
		targets[i] = accession.Target{Key: k, Accession: byKey[k].Reads}
	}
	reads := accession.Resolver{Dir: p.Opts.ReadsDir, Layout: accession.ReadsLayout}
	_, missing, err := reads.Resolve(ctx, targets, p.Reads)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		var names []string
		for _, t := range missing {
			names = append(names, t.Key+" ("+t.Accession+")")
		}
		return nil, errors.E(errors.Precondition, "reads missing for", strings.Join(names, ", "))
	}
	if err := p.Secondary.Prepare(ctx); err != nil {
		return nil, err
	}
	items := make([]SecondaryItem, len(keys))
	for i, k := range keys {
		items[i] = SecondaryItem{
			Key:   k,
			Reads: accession.ReadPaths(p.Opts.ReadsDir, byKey[k].Reads),
			Dir:   p.Opts.aribaDir(k),
		}
	}
	return fanOut(ctx, p.parallelism(), items, func(ctx context.Context, it SecondaryItem) (allele.Call, error) {
		c, err := p.Secondary.Detect(ctx, it.Key, it.Reads, it.Dir)
		if err == nil {
			log.Debug.Printf("%s: secondary: %v", it.Key, c.Allele)
		}
		return c, err
	})
}

// FallbackSet returns, in manifest order, the keys whose primary call is
// absent together with the keys whose assembly is missing.
func FallbackSet(order []string, primary []allele.Call, missing []accession.Target) []string {
	need := make(map[string]bool, len(missing))
	for _, t := range missing {
		need[t.Key] = true
	}
	for _, c := range primary {
		if c.Allele == allele.Absent {
			need[c.Key] = true
		}
	}
	var keys []string
	for _, k := range order {
		if need[k] {
			keys = append(keys, k)
		}
	}
	return keys
}

// fanOut applies fn to every item with at most parallelism calls in flight.
// Each call writes its result to its own slot. The first failure cancels the
// context of the calls still running, stops new calls from starting and is
// the error returned.
func fanOut[T any](ctx context.Context, parallelism int, items []T, fn func(context.Context, T) (allele.Call, error)) ([]allele.Call, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var (
		calls = make([]allele.Call, len(items))
		errs  = make([]error, len(items))
		first = int32(-1)
	)
	_ = traverse.Limit(parallelism).Each(len(items), func(i int) error {
		if ctx.Err() != nil {
			return nil
		}
		calls[i], errs[i] = fn(ctx, items[i])
		if errs[i] != nil {
			atomic.CompareAndSwapInt32(&first, -1, int32(i))
			cancel()
		}
		return errs[i]
	})
	if first >= 0 {
		return nil, errs[first]
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return calls, nil
}

// ValidateAlleles checks the allele reference FASTA: it must hold at least
// one sequence, names must be unique allele labels and no sequence may be
// empty.
func ValidateAlleles(ctx context.Context, path string) (err error) {
	if path == "" {
		return errors.E(errors.Invalid, "no allele reference FASTA")
	}
	in, err := fasta.Open(ctx, path)
	if err != nil {
		return errors.E(errors.Invalid, "alleles", err)
	}
	defer func() {
		if e := in.Close(); e != nil && err == nil {
			err = e
		}
	}()
	fa, err := fasta.New(in)
	if err != nil {
		return errors.E(errors.Invalid, "alleles", path, err)
	}
	for _, name := range fa.SeqNames() {
		if _, err := allele.Parse(name); err != nil {
			return errors.E(err, "alleles", path)
		}
		if n, err := fa.Len(name); err != nil || n == 0 {
			return errors.E(errors.Invalid, "alleles", path, "empty sequence", name)
		}
	}
	return nil
}
