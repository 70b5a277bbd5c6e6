package allele

import (
	"sort"
	"strings"
)

// Markers distinguishing the alleles. The full-length and deletion markers
// differ by one base of the poly-A run, and the insertion marker is one base
// longer than full length, so each fragment is tested in the fixed order below
// and takes the first marker it contains.
const (
	InsertionMarker  = "gaaaaaaaaag"
	FullLengthMarker = "gaaaaaaaag"
	DeletionMarker   = "gaaaaaaag"
)

var markers = []struct {
	seq    string
	allele Allele
}{
	{InsertionMarker, Insertion},
	{FullLengthMarker, FullLength},
	{DeletionMarker, Deletion},
}

// ClassifyFragment labels one assembled fragment. Matching is
// case-insensitive. A fragment containing none of the markers is Ambiguous.
func ClassifyFragment(seq string) Allele {
	seq = strings.ToLower(seq)
	for _, m := range markers {
		if strings.Contains(seq, m.seq) {
			return m.allele
		}
	}
	return Ambiguous
}

// ConflictError reports that fragments of one genome support more than one
// concrete allele.
type ConflictError struct {
	// Alleles lists the conflicting labels in ascending order.
	Alleles []Allele
}

// Error implements error.
func (e *ConflictError) Error() string {
	labels := make([]string, len(e.Alleles))
	for i, a := range e.Alleles {
		labels[i] = a.String()
	}
	return "conflicting alleles detected: " + strings.Join(labels, ", ")
}

// Classify reduces the labels of all fragments assembled for one genome to a
// single allele:
//
//   - no fragments: Absent.
//   - one distinct label: that label.
//   - several labels including Ambiguous: Ambiguous is dropped and the rest is
//     re-evaluated.
//   - several concrete labels: *ConflictError.
//
// Ambiguous is only ever dropped; it never decides between concrete labels.
func Classify(fragments []string) (Allele, error) {
	if len(fragments) == 0 {
		return Absent, nil
	}
	seen := map[Allele]bool{}
	for _, f := range fragments {
		seen[ClassifyFragment(f)] = true
	}
	if len(seen) > 1 {
		delete(seen, Ambiguous)
	}
	var found []Allele
	for a := range seen {
		found = append(found, a)
	}
	if len(found) == 1 {
		return found[0], nil
	}
	sort.Slice(found, func(i, j int) bool { return found[i] < found[j] })
	return Unknown, &ConflictError{Alleles: found}
}
