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

// Package accession locates the sequence data of each genome in a local
// download directory and fetches what is not there yet.
//
// Resolution is two-phase. Before downloading, targets whose files already
// exist are skipped, so a rerun after a partial run never fetches a file
// twice. After downloading, the directory is scanned again and the targets
// whose files are still absent are reported as missing instead of being
// dropped.
package accession

import (
	"context"
	"os"
	"path/filepath"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
)

// Target is one genome whose data may need downloading.
type Target struct {
	// Key identifies the genome in the input manifest.
	Key string
	// Accession is the external identifier to download, e.g. an NCBI assembly
	// accession or an SRA run.
	Accession string
}

// Layout lists the files, under dir, that must all exist for t to be present.
type Layout func(dir string, t Target) []string

// AssemblyPath is where the assembly of the genome named key is stored.
func AssemblyPath(dir, key string) string {
	return filepath.Join(dir, key+".fna")
}

// ReadPaths is where the paired reads of an SRA run are stored.
func ReadPaths(dir, run string) [2]string {
	return [2]string{
		filepath.Join(dir, run+"_1.fastq"),
		filepath.Join(dir, run+"_2.fastq"),
	}
}

// AssemblyLayout stores one FASTA per genome key.
func AssemblyLayout(dir string, t Target) []string {
	return []string{AssemblyPath(dir, t.Key)}
}

// ReadsLayout stores one pair of FASTQ files per run accession.
func ReadsLayout(dir string, t Target) []string {
	p := ReadPaths(dir, t.Accession)
	return p[:]
}

// Downloader fetches the data of targets into dir. It is called once for a
// whole set of targets. An implementation may leave some targets undownloaded
// and still return nil; the Resolver reports those as missing.
type Downloader interface {
	Download(ctx context.Context, dir string, targets []Target) error
}

// Resolver finds target data in Dir.
type Resolver struct {
	Dir    string
	Layout Layout
}

// Partition splits targets into those whose files are all present and those
// that need downloading. Both slices keep the input order.
func (r Resolver) Partition(ctx context.Context, targets []Target) (present, needed []Target, err error) {
	for _, t := range targets {
		ok, err := r.present(ctx, t)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			present = append(present, t)
		} else {
			needed = append(needed, t)
		}
	}
	return present, needed, nil
}

// Missing returns the targets whose files are not all present, in input
// order.
func (r Resolver) Missing(ctx context.Context, targets []Target) ([]Target, error) {
	_, missing, err := r.Partition(ctx, targets)
	return missing, err
}

// Resolve downloads whatever Partition reports as needed and rescans. It
// returns the targets that are present afterwards and those that are still
// missing, each in input order. The downloader is not called when nothing is
// needed.
func (r Resolver) Resolve(ctx context.Context, targets []Target, d Downloader) (present, missing []Target, err error) {
	_, needed, err := r.Partition(ctx, targets)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("resolve %s: %d of %d targets already present", r.Dir, len(targets)-len(needed), len(targets))
	if len(needed) > 0 {
		if err := os.MkdirAll(r.Dir, 0755); err != nil {
			return nil, nil, errors.E(err, "resolve", r.Dir)
		}
		if err := d.Download(ctx, r.Dir, needed); err != nil {
			return nil, nil, err
		}
	}
	if missing, err = r.Missing(ctx, needed); err != nil {
		return nil, nil, err
	}
	isMissing := make(map[string]bool, len(missing))
	for _, t := range missing {
		isMissing[t.Key] = true
	}
	for _, t := range targets {
		if !isMissing[t.Key] {
			present = append(present, t)
		}
	}
	if len(missing) > 0 {
		log.Printf("resolve %s: %d targets still missing after download", r.Dir, len(missing))
	}
	return present, missing, nil
}

func (r Resolver) present(ctx context.Context, t Target) (bool, error) {
	for _, path := range r.Layout(r.Dir, t) {
		ok, err := exists(ctx, path)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// exists reports whether path is a non-empty file. A zero-length file is
// treated as absent.
func exists(ctx context.Context, path string) (bool, error) {
	info, err := file.Stat(ctx, path)
	if err != nil {
		if errors.Is(errors.NotExist, err) || os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.E(err, "stat", path)
	}
	return info.Size() > 0, nil
}
