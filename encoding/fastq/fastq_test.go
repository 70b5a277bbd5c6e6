package fastq

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
)

const r1 = `@SRR5163127.1 1 length=151
ATACAGGCCTGANCCACTGTGCCCAGNCTANNTNATTANTGAANANAGAATNGTT
+SRR5163127.1 1 length=151
AAAAAEEEEEEE#EEAEEEEEEEEEE#EEE##E#EEEE#EEEE#E#EEEEE#EEE
@SRR5163127.2 2 length=151
CTCAACTCTGAGNCAGACAGAAATACNTTTNNTNTGAGTTACANCNTTCTTTTTC
+
AAAAAEEEEEEE#EEEEEEEEEEEEE#EEE##E#EEEEEEEEE#E#EEEEEEEEE
@SRR5163127.3 3 length=151
GAGTAACCACGT
+
AAAAAEEEEEEE
`

const r2 = `@SRR5163127.1 1 length=151
GATCGGAAGAGCNCACGTCTGAACTCNAGTNNCNTCCCGATCTNGNATGCCGTCT
+SRR5163127.1 1 length=151
AAAAAEEEEEEE#EEEEEEEEEEEEE#AEE##E#A////6AE<#E#EEEEEEEEA
@SRR5163127.2 2 length=151
CAAGCAACTTACNTTACTTTAGGCTG
+
AAAAAEEEEEEE#EEAEEEEEEEEEE
@SRR5163127.3 3 length=151
TCAATTTCAGAA
+
AAAAAEEEEEEE
`

func scanAll(s string) ([]Read, error) {
	sc := NewScanner(strings.NewReader(s))
	var (
		reads []Read
		r     Read
	)
	for sc.Scan(&r) {
		reads = append(reads, r)
	}
	return reads, sc.Err()
}

func TestScanner(t *testing.T) {
	reads, err := scanAll(r1)
	assert.NoError(t, err)
	assert.EQ(t, len(reads), 3)
	expect.EQ(t, reads[2], Read{ID: "SRR5163127.3 3 length=151", Seq: "GAGTAACCACGT", Qual: "AAAAAEEEEEEE"})
	expect.EQ(t, reads[0].Name(), "SRR5163127.1")

	reads, err = scanAll("")
	expect.NoError(t, err)
	expect.EQ(t, len(reads), 0)
}

func TestBadFASTQ(t *testing.T) {
	for _, tt := range []struct {
		in, want string
	}{
		{"12312#\n", "line 1: header"},
		{"@1234\nACGT\n", "line 2: truncated"},
		{"@1234\nACGT\n-\nIIII\n", "line 3: separator"},
		{"@1234\nACGT\n+\nIII\n", "line 4: quality length 3"},
		{"@1\nA\n+\nI\n@2\nACG\n", "line 6: truncated"},
	} {
		_, err := scanAll(tt.in)
		assert.True(t, err != nil, tt.in)
		expect.HasSubstr(t, err.Error(), tt.want, tt.in)
	}
}

func TestName(t *testing.T) {
	for id, want := range map[string]string{
		"SRR1.7 7 length=100": "SRR1.7",
		"read/1":              "read",
		"read/2 extra":        "read",
		"read/3":              "read/3",
		"/1":                  "/1",
		"HWI:1:2\t1:N:0":      "HWI:1:2",
	} {
		r := Read{ID: id}
		expect.EQ(t, r.Name(), want, id)
	}
}

func TestPairScanner(t *testing.T) {
	s := NewPairScanner(strings.NewReader(r1), strings.NewReader(r2))
	var a, b Read
	var n int
	for s.Scan(&a, &b) {
		n++
	}
	expect.NoError(t, s.Err())
	expect.EQ(t, n, 3)

	short := r2[:strings.Index(r2, "@SRR5163127.3")]
	s = NewPairScanner(strings.NewReader(r1), strings.NewReader(short))
	for s.Scan(&a, &b) {
	}
	assert.True(t, s.Err() != nil)
	expect.HasSubstr(t, s.Err().Error(), "pair 3: mate files have different lengths")

	swapped := strings.Replace(r2, "SRR5163127.2 2", "SRR5163127.9 9", 1)
	s = NewPairScanner(strings.NewReader(r1), strings.NewReader(swapped))
	for s.Scan(&a, &b) {
	}
	assert.True(t, s.Err() != nil)
	expect.HasSubstr(t, s.Err().Error(), "mate names differ")

	s = NewPairScanner(strings.NewReader(r1), strings.NewReader("@x\nA\n"))
	for s.Scan(&a, &b) {
	}
	assert.True(t, s.Err() != nil)
	expect.HasSubstr(t, s.Err().Error(), "mate 2")
}

func TestWriter(t *testing.T) {
	reads, err := scanAll(r1)
	assert.NoError(t, err)
	var b bytes.Buffer
	w := NewWriter(&b)
	for i := range reads {
		assert.NoError(t, w.Write(&reads[i]))
	}
	assert.NoError(t, w.Flush())
	again, err := scanAll(b.String())
	assert.NoError(t, err)
	expect.EQ(t, again, reads)
	expect.True(t, strings.HasPrefix(b.String(), "@SRR5163127.1 1 length=151\nATACAGG"))
}

func TestCheckPair(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	p1 := filepath.Join(tmpdir, "SRR5163127_1.fastq")
	p2 := filepath.Join(tmpdir, "SRR5163127_2.fastq.gz")
	assert.NoError(t, os.WriteFile(p1, []byte(r1), 0644))
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write([]byte(r2))
	assert.NoError(t, err)
	assert.NoError(t, zw.Close())
	assert.NoError(t, os.WriteFile(p2, gz.Bytes(), 0644))

	n, err := CheckPair(ctx, p1, p2, 0)
	assert.NoError(t, err)
	expect.EQ(t, n, 3)
	n, err = CheckPair(ctx, p1, p2, 2)
	assert.NoError(t, err)
	expect.EQ(t, n, 2)

	empty := filepath.Join(tmpdir, "empty.fastq")
	assert.NoError(t, os.WriteFile(empty, nil, 0644))
	_, err = CheckPair(ctx, empty, empty, 0)
	assert.True(t, err != nil)
	expect.HasSubstr(t, err.Error(), "no reads")

	_, err = CheckPair(ctx, p1, filepath.Join(tmpdir, "missing.fastq"), 0)
	expect.True(t, err != nil)
}
