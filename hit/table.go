package hit

import (
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/tsv"
)

// OutFmt is the blastn -outfmt value whose output ReadTable understands.
const OutFmt = "6 qseqid sseqid length qstart qend sstart send qcovhsp pident"

// nField is the number of columns requested by OutFmt.
const nField = 9

// tableRow lists the OutFmt columns in order; tsv.Reader fills fields
// positionally.
type tableRow struct {
	Query        string
	Subject      string
	Length       int
	QueryStart   int
	QueryEnd     int
	SubjectStart int
	SubjectEnd   int
	Coverage     float64
	Identity     float64
}

// ReadTable parses blastn tabular output produced with OutFmt. An empty input
// yields no hits. A row with the wrong number of fields, or a numeric field
// that does not parse, is an error.
func ReadTable(r io.Reader) ([]Hit, error) {
	tr := tsv.NewReader(r)
	tr.FieldsPerRecord = nField
	tr.LazyQuotes = true

	var (
		hits []Hit
		row  tableRow
	)
	for n := 1; ; n++ {
		if err := tr.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.E(errors.Invalid, fmt.Sprintf("blastn table: row %d", n), err)
		}
		if row.Length < 0 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("blastn table: row %d: negative alignment length %d", n, row.Length))
		}
		hits = append(hits, Hit{
			Query:        row.Query,
			Subject:      row.Subject,
			Length:       row.Length,
			Coverage:     row.Coverage,
			Identity:     row.Identity,
			QueryStart:   row.QueryStart,
			QueryEnd:     row.QueryEnd,
			SubjectStart: row.SubjectStart,
			SubjectEnd:   row.SubjectEnd,
		})
	}
	return hits, nil
}
