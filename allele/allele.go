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

// Package allele defines the espW allele labels, the per-genome call, and the
// classifier that interprets ARIBA-assembled fragments.
package allele

import (
	"strings"

	"github.com/grailbio/base/errors"
)

// Allele is one of the structural variants of espW that the caller
// distinguishes.
type Allele uint8

const (
	// Unknown is the zero value; it is never reported.
	Unknown Allele = iota
	// FullLength is the intact gene.
	FullLength
	// Insertion carries a one-base insertion in the poly-A run.
	Insertion
	// Deletion carries a one-base deletion in the poly-A run.
	Deletion
	// Ambiguous means the gene was assembled but none of the markers matched.
	Ambiguous
	// Absent means no evidence of the gene was found.
	Absent
)

var names = [...]string{
	Unknown:    "unknown",
	FullLength: "full length",
	Insertion:  "insertion",
	Deletion:   "deletion",
	Ambiguous:  "ambiguous",
	Absent:     "absent",
}

// String returns the label written to reports.
func (a Allele) String() string {
	if int(a) < len(names) {
		return names[a]
	}
	return "unknown"
}

// Parse maps a label, or a blastn query id naming an allele reference
// sequence, to an Allele. Matching ignores case, and underscores and hyphens
// are read as spaces, so "full_length" and "Full length" both yield
// FullLength.
func Parse(s string) (Allele, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", " ", "-", " ").Replace(norm)
	for a := FullLength; a <= Absent; a++ {
		if names[a] == norm {
			return a, nil
		}
	}
	return Unknown, errors.E(errors.Invalid, "unrecognized allele label:", s)
}

// Call is the outcome for one genome.
type Call struct {
	// Key identifies the genome in the input manifest.
	Key    string
	Allele Allele
	// Contig is the subject sequence of the supporting blastn hit. It is empty
	// unless the call came from the primary strategy with a concrete hit.
	Contig string
}
