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

package pipeline

import (
	"path/filepath"

	"github.com/grailbio/espw/detect"
)

// Opts configures a batch run.
type Opts struct {
	// Manifest is the tab-separated list of genomes to call.
	Manifest string
	// Output is the path of the report.
	Output string
	// GenomeDir holds the assemblies, one <key>.fna per genome. Missing ones
	// are downloaded into it.
	GenomeDir string
	// ReadsDir holds the paired reads, <run>_1.fastq and <run>_2.fastq per SRA
	// run. Missing ones are downloaded into it.
	ReadsDir string
	// WorkDir holds the intermediate files of the detectors.
	WorkDir string
	// Parallelism bounds the number of genomes processed at once.
	Parallelism int
	// KeepIntermediates leaves WorkDir in place after a successful run.
	KeepIntermediates bool
	// RemoveDownloads deletes the assemblies and reads of the manifest's
	// genomes after a successful run.
	RemoveDownloads bool
	Detect          detect.Opts
}

// DefaultOpts holds the default batch options.
var DefaultOpts = Opts{
	Output:      "espw_alleles.tsv",
	GenomeDir:   "genomes",
	ReadsDir:    "reads",
	WorkDir:     "espw_work",
	Parallelism: 1,
	Detect:      detect.DefaultOpts,
}

func (o *Opts) blastDir(key string) string {
	return filepath.Join(o.WorkDir, "blastn", key)
}

func (o *Opts) aribaDir(key string) string {
	return filepath.Join(o.WorkDir, "ariba", key)
}

func (o *Opts) aribaDB() string {
	return filepath.Join(o.WorkDir, "ariba_db")
}
