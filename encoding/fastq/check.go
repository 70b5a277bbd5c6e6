package fastq

import (
	"context"
	"io"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
)

// CheckPair reads up to limit pairs (all when limit <= 0) from the mate files
// at path1 and path2 and returns how many it read. It fails when either file
// is malformed, when the mates disagree, or when there are no reads.
// Compressed files are decompressed based on their names.
func CheckPair(ctx context.Context, path1, path2 string, limit int) (n int, err error) {
	var r [2]io.Reader
	for i, path := range []string{path1, path2} {
		in, err := file.Open(ctx, path)
		if err != nil {
			return 0, err
		}
		defer in.Close(ctx) // nolint: errcheck
		r[i] = in.Reader(ctx)
		if u := compress.NewReaderPath(r[i], in.Name()); u != nil {
			r[i] = u
		}
	}
	var (
		s      = NewPairScanner(r[0], r[1])
		r1, r2 Read
	)
	for (limit <= 0 || n < limit) && s.Scan(&r1, &r2) {
		n++
	}
	if err := s.Err(); err != nil {
		return n, errors.E(err, path1, path2)
	}
	if n == 0 {
		return 0, errors.E(errors.Invalid, path1, path2, "no reads")
	}
	return n, nil
}
