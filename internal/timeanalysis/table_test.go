package timeanalysis

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// step returns n scores that are lo for the first k frames and hi after.
func step(k, n int, lo, hi float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i < k {
			out[i] = lo
		} else {
			out[i] = hi
		}
	}
	return out
}

func TestWriteTable_SingleFile(t *testing.T) {
	a, err := New(
		[]Record{rec("r1", 0.4, 0.4, 0.9, 0.9, 0.9)},
		[]Record{rec("a1", repeat(0.1, 5)...)},
		0.5)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, a.WriteTable(&buf, Instantaneous))

	want := "" +
		"======= ========= ===== ======= ===== ========\n" +
		" Frame     FRR     #FR    FAR    #FA    HTER  \n" +
		"======= ========= ===== ======= ===== ========\n" +
		"     0   100.00%     1   0.00%     0   50.00% \n" +
		"  ...      ...     ...    ...    ...    ...   \n" +
		"     2     0.00%     0   0.00%     0    0.00% \n" +
		"  ...      ...     ...    ...    ...    ...   \n" +
		"======= ========= ===== ======= ===== ========\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteTable_CollapsesRuns(t *testing.T) {
	const n = 12
	real := []Record{
		rec("real/client001", step(6, n, 0.1, 0.9)...),
		rec("real/client002", step(2, n, 0.1, 0.9)...),
	}
	attack := []Record{
		rec("attack/client001", step(3, n, 0.9, 0.1)...),
		rec("attack/client002", step(7, n, 0.9, 0.1)...),
		rec("attack/client003", step(9, n, 0.9, 0.1)...),
	}
	a, err := New(real, attack, 0.5, WithWindow(20, 10))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, a.WriteTable(&buf, Instantaneous))

	want := "" +
		"======= ========= ===== ========= ===== =========\n" +
		" Frame     FRR     #FR     FAR     #FA     HTER  \n" +
		"======= ========= ===== ========= ===== =========\n" +
		"    20   100.00%     2   100.00%     3   100.00% \n" +
		"  ...      ...     ...     ...     ...     ...   \n" +
		"    40    50.00%     1   100.00%     3    75.00% \n" +
		"    50    50.00%     1    66.67%     2    58.33% \n" +
		"  ...      ...     ...     ...     ...     ...   \n" +
		"    80     0.00%     0    66.67%     2    33.33% \n" +
		"    90     0.00%     0    33.33%     1    16.67% \n" +
		"  ...      ...     ...     ...     ...     ...   \n" +
		"   110     0.00%     0     0.00%     0     0.00% \n" +
		"  ...      ...     ...     ...     ...     ...   \n" +
		"======= ========= ===== ========= ===== =========\n"
	assert.Equal(t, want, buf.String())

	// every step is still queryable
	assert.Len(t, a.Entries(Instantaneous), n)
	e, ok := a.Entry(Instantaneous, 60)
	require.True(t, ok)
	assert.Equal(t, []string{"real/client001"}, e.FalseRejections)
}

func TestWriteTable_Idempotent(t *testing.T) {
	a, err := New(
		[]Record{rec("r1", 0.4, nan, 0.9), rec("r2", 0.6, 0.3, 0.2)},
		[]Record{rec("a1", nan, 0.7, 0.1)},
		0.5)
	require.NoError(t, err)

	for _, m := range []Mode{Instantaneous, Cumulative} {
		var first, second bytes.Buffer
		require.NoError(t, a.WriteTable(&first, m))
		require.NoError(t, a.WriteTable(&second, m))
		assert.Equal(t, first.Bytes(), second.Bytes(), "mode %s", m)

		first.Reset()
		second.Reset()
		require.NoError(t, a.WriteMisclassified(&first, m, LastStep))
		require.NoError(t, a.WriteMisclassified(&second, m, LastStep))
		assert.Equal(t, first.Bytes(), second.Bytes(), "mode %s", m)
	}
}

func TestWriteMisclassified(t *testing.T) {
	a, err := New(
		[]Record{rec("real/client001", 0.4, 0.4, 0.9), rec("real/client002", 0.3, 0.9, 0.2)},
		[]Record{rec("attack/client003", 0.8, 0.1, 0.7), rec("attack/client004", 0.1, 0.1, 0.1)},
		0.5)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, a.WriteMisclassified(&buf, Instantaneous, 0))
	assert.Equal(t, ""+
		"Misclassified Real-Accesses (FR) at frame 0\n"+
		"real/client001\n"+
		"real/client002\n"+
		"\n"+
		"Misclassified Attacks (FA) at frame 0\n"+
		"attack/client003\n", buf.String())

	buf.Reset()
	require.NoError(t, a.WriteMisclassified(&buf, Instantaneous, LastStep))
	assert.Equal(t, ""+
		"Misclassified Real-Accesses (FR) at frame 2\n"+
		"real/client002\n"+
		"\n"+
		"Misclassified Attacks (FA) at frame 2\n"+
		"attack/client003\n", buf.String())

	buf.Reset()
	err = a.WriteMisclassified(&buf, Instantaneous, 220)
	assert.True(t, errors.Is(err, ErrNoSuchStep))
	assert.Empty(t, buf.String())
}

func TestWriteMisclassified_EmptyReport(t *testing.T) {
	a, err := New(
		[]Record{rec("r1", nan)},
		[]Record{rec("a1", nan)},
		0.5)
	require.NoError(t, err)
	assert.Empty(t, a.Entries(Instantaneous))

	var buf bytes.Buffer
	err = a.WriteMisclassified(&buf, Cumulative, LastStep)
	assert.True(t, errors.Is(err, ErrNoSuchStep))

	// an empty report still renders its frame
	require.NoError(t, a.WriteTable(&buf, Instantaneous))
	assert.Equal(t, ""+
		"======= ===== ===== ===== ===== ======\n"+
		" Frame   FRR   #FR   FAR   #FA   HTER \n"+
		"======= ===== ===== ===== ===== ======\n"+
		"======= ===== ===== ===== ===== ======\n", buf.String())
}

func TestCenter(t *testing.T) {
	testCases := []struct {
		s     string
		width int
		want  string
	}{
		{"FRR", 9, "   FRR   "},
		{"Frame", 7, " Frame "},
		{"HTER", 8, "  HTER  "},
		{"ab", 5, "  ab "},
		{"abc", 6, " abc  "},
		{"toolong", 3, "toolong"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, center(tc.s, tc.width), "center(%q, %d)", tc.s, tc.width)
	}
}
