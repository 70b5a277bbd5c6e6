package fasta

import (
	"bufio"
	"context"
	"io"

	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

var gzipMagic = []byte{0x1f, 0x8b}

type reader struct {
	io.Reader
	ctx context.Context
	in  file.File
	gz  *gzip.Reader
}

func (r *reader) Close() error {
	var err error
	if r.gz != nil {
		err = r.gz.Close()
	}
	if e := r.in.Close(r.ctx); e != nil && err == nil {
		err = e
	}
	return err
}

// Open opens the FASTA file at path for reading. Gzip-compressed input is
// detected from its magic number and decompressed transparently, whatever the
// file is named. The caller must close the returned reader.
func Open(ctx context.Context, path string) (io.ReadCloser, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	r := &reader{ctx: ctx, in: in}
	br := bufio.NewReader(in.Reader(ctx))
	r.Reader = br
	magic, err := br.Peek(len(gzipMagic))
	if err != nil && err != io.EOF {
		_ = in.Close(ctx)
		return nil, errors.Wrapf(err, "read %s", path)
	}
	if len(magic) == len(gzipMagic) && magic[0] == gzipMagic[0] && magic[1] == gzipMagic[1] {
		if r.gz, err = gzip.NewReader(br); err != nil {
			_ = in.Close(ctx)
			return nil, errors.Wrapf(err, "gunzip %s", path)
		}
		r.Reader = r.gz
	}
	return r, nil
}

// ReadFile reads every record of the (optionally gzipped) FASTA file at path.
func ReadFile(ctx context.Context, path string) (recs []Record, err error) {
	in, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if e := in.Close(); e != nil && err == nil {
			err = e
		}
	}()
	if recs, err = ReadAll(in); err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return recs, nil
}
