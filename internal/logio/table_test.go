package logio

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReadCSV(t *testing.T) {
	t.Parallel()

	t.Run("parses numeric and text columns", func(t *testing.T) {
		t.Parallel()
		path := writeTempCSV(t, "log.csv",
			"timestamp,value,label\n"+
				"100,1.5,a\n"+
				"200,2.5,b\n"+
				"350,-0.5,c\n")
		tbl, err := ReadCSV(path, []string{"timestamp", "value"})
		require.NoError(t, err)

		assert.Equal(t, 3, tbl.Len())
		assert.Equal(t, int64(100), tbl.StartTimestamp())
		assert.Equal(t, int64(350), tbl.EndTimestamp())

		if diff := cmp.Diff([]string{"timestamp", "value", "label"}, tbl.Header()); diff != "" {
			t.Errorf("header mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]int64{100, 200, 350}, tbl.Timestamps()); diff != "" {
			t.Errorf("timestamps mismatch (-want +got):\n%s", diff)
		}

		vals, err := tbl.Float("value")
		require.NoError(t, err)
		assert.Equal(t, []float64{1.5, 2.5, -0.5}, vals)

		labels, err := tbl.Strings("label")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, labels)
	})

	t.Run("demotes numeric-first mixed column to text", func(t *testing.T) {
		t.Parallel()
		path := writeTempCSV(t, "log.csv",
			"timestamp,value,message\n"+
				"100,1.5,90\n"+
				"200,2.5,bar on\n"+
				"350,-0.5,45\n")
		tbl, err := ReadCSV(path, []string{"timestamp", "value"})
		require.NoError(t, err)

		msgs, err := tbl.Strings("message")
		require.NoError(t, err)
		assert.Equal(t, []string{"90", "bar on", "45"}, msgs)

		_, err = tbl.Float("message")
		assert.Error(t, err)

		// The all-numeric column is untouched by the demotion.
		vals, err := tbl.Float("value")
		require.NoError(t, err)
		assert.Equal(t, []float64{1.5, 2.5, -0.5}, vals)
	})

	t.Run("rejects missing required column", func(t *testing.T) {
		t.Parallel()
		path := writeTempCSV(t, "log.csv", "timestamp,value\n100,1\n")
		_, err := ReadCSV(path, []string{"timestamp", "absent"})
		assert.Error(t, err)
	})

	t.Run("rejects decreasing timestamps", func(t *testing.T) {
		t.Parallel()
		path := writeTempCSV(t, "log.csv", "timestamp,value\n200,1\n100,2\n")
		_, err := ReadCSV(path, []string{"timestamp"})
		assert.Error(t, err)
	})

	t.Run("keeps duplicate timestamps", func(t *testing.T) {
		t.Parallel()
		path := writeTempCSV(t, "log.csv", "timestamp,value\n100,1\n100,2\n")
		tbl, err := ReadCSV(path, []string{"timestamp"})
		require.NoError(t, err)
		assert.Equal(t, 2, tbl.Len())
	})

	t.Run("rejects wrong extension", func(t *testing.T) {
		t.Parallel()
		path := writeTempCSV(t, "log.txt", "timestamp\n100\n")
		_, err := ReadCSV(path, nil)
		assert.Error(t, err)
	})

	t.Run("rejects empty table", func(t *testing.T) {
		t.Parallel()
		path := writeTempCSV(t, "log.csv", "timestamp,value\n")
		_, err := ReadCSV(path, []string{"timestamp"})
		assert.ErrorIs(t, err, ErrEmptyTable)
	})
}

func TestValid(t *testing.T) {
	t.Parallel()

	path := writeTempCSV(t, "log.csv", "timestamp,a,b\n1,2,3\n")
	assert.True(t, Valid(path, []string{"timestamp", "a"}))
	assert.False(t, Valid(path, []string{"timestamp", "missing"}))
	assert.False(t, Valid(filepath.Join(t.TempDir(), "nope.csv"), nil))
}

func TestDTSeconds(t *testing.T) {
	t.Parallel()

	path := writeTempCSV(t, "log.csv",
		"timestamp,v\n1000000000,0\n1500000000,0\n1500000000,0\n")
	tbl, err := ReadCSV(path, nil)
	require.NoError(t, err)

	dt := tbl.DTSeconds()
	require.Len(t, dt, 3)
	assert.True(t, math.IsNaN(dt[0]))
	assert.InDelta(t, 0.5, dt[1], 1e-12)
	assert.Equal(t, 0.0, dt[2]) // duplicate timestamp: zero dt, kept as-is
}

func TestSearchTimestamp(t *testing.T) {
	t.Parallel()

	path := writeTempCSV(t, "log.csv", "timestamp\n100\n200\n300\n")
	tbl, err := ReadCSV(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, tbl.SearchTimestamp(50))
	assert.Equal(t, 1, tbl.SearchTimestamp(150))
	assert.Equal(t, 1, tbl.SearchTimestamp(200))
	assert.Equal(t, 3, tbl.SearchTimestamp(301))
}

func TestProbeStartAndEnd(t *testing.T) {
	t.Parallel()

	t.Run("reads first and last timestamps only", func(t *testing.T) {
		t.Parallel()
		path := writeTempCSV(t, "log.csv",
			"timestamp,v\n100,1\n250,2\n990,3\n")
		start, end, err := ProbeStartAndEnd(path)
		require.NoError(t, err)
		assert.Equal(t, int64(100), start)
		assert.Equal(t, int64(990), end)
	})

	t.Run("handles file without trailing newline", func(t *testing.T) {
		t.Parallel()
		path := writeTempCSV(t, "log.csv", "timestamp,v\n100,1\n250,2")
		start, end, err := ProbeStartAndEnd(path)
		require.NoError(t, err)
		assert.Equal(t, int64(100), start)
		assert.Equal(t, int64(250), end)
	})
}
