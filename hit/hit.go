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

// Package hit holds blastn alignment hits and picks the best one for a genome.
package hit

import (
	"fmt"
	"slices"
)

// Hit is one row of blastn tabular output. The query is an allele reference
// sequence; the subject is a contig of the genome being typed.
type Hit struct {
	Query   string
	Subject string
	Length  int
	// Coverage is qcovhsp, the percentage of the query covered by the HSP.
	Coverage float64
	// Identity is pident.
	Identity     float64
	QueryStart   int
	QueryEnd     int
	SubjectStart int
	SubjectEnd   int
}

// String returns a multi-line human-readable dump of the hit.
func (h Hit) String() string {
	return fmt.Sprintf("%s vs %s\n  len:  %d\n  cov:  %g\n  pid:  %g",
		h.Query, h.Subject, h.Length, h.Coverage, h.Identity)
}

// Compare orders hits by coverage, then by percent identity. Identity is only
// consulted when the coverages are exactly equal. Length and coordinates never
// affect the order. It returns -1 if a ranks below b, +1 if a ranks above b,
// and 0 if they tie on both keys.
func Compare(a, b Hit) int {
	switch {
	case a.Coverage < b.Coverage:
		return -1
	case a.Coverage > b.Coverage:
		return 1
	case a.Identity < b.Identity:
		return -1
	case a.Identity > b.Identity:
		return 1
	}
	return 0
}

// Best returns the highest-ranked hit under Compare. When several hits tie on
// both keys, which of them is returned is unspecified. The second return value
// is false iff hits is empty.
func Best(hits []Hit) (Hit, bool) {
	if len(hits) == 0 {
		return Hit{}, false
	}
	return slices.MaxFunc(hits, Compare), true
}
