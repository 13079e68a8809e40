package fictrac

import (
	"math/cmplx"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/treadmill.report/internal/trajectory"
)

// syntheticLog writes a treadmill CSV whose integrated columns are
// consistent with the given per-frame deltas, loads it through the
// real parser, and returns its interpreter.
func syntheticLog(t *testing.T, deltas *mat.Dense, timestamps []int64) *Interpreter {
	t.Helper()

	n, c := deltas.Dims()
	require.Equal(t, 3, c)
	require.Equal(t, n, len(timestamps))

	path, err := trajectory.FromDeltas(deltas)
	require.NoError(t, err)
	pos := path.Positions()

	var sb strings.Builder
	sb.WriteString(strings.Join(Columns, ","))
	sb.WriteByte('\n')
	for i := 0; i < n; i++ {
		speed := 0.0
		if i > 0 {
			speed = cmplx.Abs(pos[i] - pos[i-1])
		}
		fields := []string{
			strconv.FormatInt(timestamps[i], 10), // timestamp
			strconv.Itoa(i),                      // frame_id
			strconv.Itoa(i),                      // frame_counter
			"0", "0", "0", // delta_rotation_cam_*
			"0", // delta_rotation_error
			fmtF(deltas.At(i, 0)),
			fmtF(deltas.At(i, 1)),
			fmtF(deltas.At(i, 2)),
			"0", "0", "0", // absolute_rotation_cam_*
			"0", "0", "0", // absolute_rotation_lab_*
			fmtF(real(pos[i])),
			fmtF(imag(pos[i])),
			fmtF(path.Heading[i]),
			"0", // animal_movement_direction_lab
			fmtF(speed),
			"0", "0", // integrated_motion_*
			strconv.Itoa(i), // sequence_counter
		}
		sb.WriteString(strings.Join(fields, ","))
		sb.WriteByte('\n')
	}

	file := filepath.Join(t.TempDir(), "treadmill.csv")
	require.NoError(t, os.WriteFile(file, []byte(sb.String()), 0644))

	itp, err := Open(file)
	require.NoError(t, err)
	return itp
}

func fmtF(v float64) string {
	return strconv.FormatFloat(v, 'g', 17, 64)
}

// uniformTimestamps returns n nanosecond stamps at 100 Hz.
func uniformTimestamps(n int) []int64 {
	const base = int64(1_700_000_000_000_000_000)
	const step = int64(10_000_000) // 10 ms
	out := make([]int64, n)
	for i := range out {
		out[i] = base + int64(i)*step
	}
	return out
}

// walkDeltas builds n frames of plausible forward walking with gentle
// turning and no true sideslip.
func walkDeltas(n int) *mat.Dense {
	d := mat.NewDense(n, 3, nil)
	for i := 0; i < n; i++ {
		f := 0.02 + 0.01*float64(i%5)/5.0
		d.Set(i, 1, f)
		d.Set(i, 2, 0.002*float64((i%9)-4)/4.0)
	}
	return d
}
