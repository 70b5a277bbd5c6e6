package hit_test

import (
	"strings"
	"testing"

	"github.com/grailbio/espw/hit"
	"github.com/stretchr/testify/require"
)

func TestReadTable(t *testing.T) {
	in := "full_length\tNODE_1\t312\t1\t312\t1000\t1311\t100\t100.000\n" +
		"insertion\tNODE_1\t313\t1\t313\t1000\t1312\t100\t99.681\n" +
		"deletion\tNODE_4\t200\t12\t211\t5000\t4801\t64\t97.5\n"
	hits, err := hit.ReadTable(strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, []hit.Hit{
		{Query: "full_length", Subject: "NODE_1", Length: 312, Coverage: 100, Identity: 100,
			QueryStart: 1, QueryEnd: 312, SubjectStart: 1000, SubjectEnd: 1311},
		{Query: "insertion", Subject: "NODE_1", Length: 313, Coverage: 100, Identity: 99.681,
			QueryStart: 1, QueryEnd: 313, SubjectStart: 1000, SubjectEnd: 1312},
		{Query: "deletion", Subject: "NODE_4", Length: 200, Coverage: 64, Identity: 97.5,
			QueryStart: 12, QueryEnd: 211, SubjectStart: 5000, SubjectEnd: 4801},
	}, hits)

	best, ok := hit.Best(hits)
	require.True(t, ok)
	require.Equal(t, "full_length", best.Query)
	require.Equal(t, "NODE_1", best.Subject)
}

func TestReadTableEmpty(t *testing.T) {
	hits, err := hit.ReadTable(strings.NewReader(""))
	require.NoError(t, err)
	require.Len(t, hits, 0)
}

func TestReadTableNoTrailingNewline(t *testing.T) {
	hits, err := hit.ReadTable(strings.NewReader("insertion\tc1\t10\t1\t10\t1\t10\t100\t100"))
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestReadTableMalformed(t *testing.T) {
	for _, in := range []string{
		"insertion\tc1\t10\t1\t10\t1\t10\t100\n",                  // 8 fields
		"insertion\tc1\t10\t1\t10\t1\t10\t100\t100\textra\n",      // 10 fields
		"insertion\tc1\tten\t1\t10\t1\t10\t100\t100\n",            // non-numeric length
		"insertion\tc1\t10\t1\t10\t1\t10\tall\t100\n",             // non-numeric coverage
		"insertion\tc1\t10\t1\t10\t1\t10\t100\t100\nbad\trow\n",   // second row short
		"insertion\tc1\t-10\t1\t10\t1\t10\t100\t100\n",            // negative length
	} {
		_, err := hit.ReadTable(strings.NewReader(in))
		require.Error(t, err, in)
	}
}
