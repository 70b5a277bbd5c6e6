package pipeline

import (
	"context"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/espw/allele"
)

// Result maps each genome key to its final call.
type Result map[string]allele.Call

// MergeCalls combines the primary calls with the secondary ones. A secondary
// call replaces the primary call for the same key. Every key in order must
// end up with exactly one call, and no call may name a key outside order.
func MergeCalls(order []string, primary, secondary []allele.Call) (Result, error) {
	want := make(map[string]bool, len(order))
	for _, k := range order {
		want[k] = true
	}
	res := make(Result, len(order))
	for _, calls := range [][]allele.Call{primary, secondary} {
		for _, c := range calls {
			if !want[c.Key] {
				return nil, errors.E(errors.Integrity, "merge: call for unknown genome", c.Key)
			}
			res[c.Key] = c
		}
	}
	for _, k := range order {
		if _, ok := res[k]; !ok {
			return nil, errors.E(errors.Integrity, "merge: no call for genome", k)
		}
	}
	return res, nil
}

// WriteReportTo writes one line per key in order: the key, the allele label
// and, when known, the contig carrying the allele, separated by tabs.
func WriteReportTo(w io.Writer, order []string, res Result) error {
	out := tsv.NewWriter(w)
	for _, k := range order {
		c, ok := res[k]
		if !ok {
			return errors.E(errors.Integrity, "report: no call for genome", k)
		}
		out.WriteString(k)
		out.WriteString(c.Allele.String())
		if c.Contig != "" {
			out.WriteString(c.Contig)
		}
		if err := out.EndLine(); err != nil {
			return err
		}
	}
	return out.Flush()
}

// WriteCall writes a single call without its key, as printed in
// single-genome mode.
func WriteCall(w io.Writer, c allele.Call) error {
	out := tsv.NewWriter(w)
	out.WriteString(c.Allele.String())
	if c.Contig != "" {
		out.WriteString(c.Contig)
	}
	if err := out.EndLine(); err != nil {
		return err
	}
	return out.Flush()
}

// WriteReport writes the report to path. No report is left behind when
// writing fails.
func WriteReport(ctx context.Context, path string, order []string, res Result) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "report", path)
	}
	if err = WriteReportTo(out.Writer(ctx), order, res); err != nil {
		_ = out.Close(ctx)
		_ = file.Remove(ctx, path)
		return errors.E(err, "report", path)
	}
	if err = out.Close(ctx); err != nil {
		return errors.E(err, "report", path)
	}
	return nil
}
