package fastq

import (
	"bufio"
	"io"
)

// Writer writes FASTQ records.
type Writer struct {
	w   *bufio.Writer
	err error
}

// NewWriter creates a Writer. Flush must be called once all reads are
// written.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write writes r with a bare '+' separator line.
func (w *Writer) Write(r *Read) error {
	for _, s := range []string{"@", r.ID, "\n", r.Seq, "\n+\n", r.Qual, "\n"} {
		if w.err != nil {
			break
		}
		_, w.err = w.w.WriteString(s)
	}
	return w.err
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	return w.w.Flush()
}
