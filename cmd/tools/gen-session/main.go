// Command gen-session generates a synthetic recording session
// directory for testing the analysis pipeline end to end: a treadmill
// log with a known rotation bias, a matching VR position log, a
// projector bar specification, and an events log with one bar jump.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/cmplx"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/treadmill.report/internal/fictrac"
	"github.com/banshee-data/treadmill.report/internal/geom"
	"github.com/banshee-data/treadmill.report/internal/trajectory"
	"github.com/banshee-data/treadmill.report/internal/vr"
)

func main() {
	output := flag.String("o", "sample-session", "output session directory")
	frames := flag.Int("n", 2000, "number of frames")
	bias := flag.Float64("bias", 0.05, "heading-axis rotation bias injected into the deltas")
	rate := flag.Int("hz", 100, "frame rate")
	flag.Parse()

	if err := os.MkdirAll(*output, 0755); err != nil {
		log.Fatalf("create output directory: %v", err)
	}

	stamps := make([]int64, *frames)
	const base = int64(1_700_000_000_000_000_000)
	step := int64(1_000_000_000) / int64(*rate)
	for i := range stamps {
		stamps[i] = base + int64(i)*step
	}

	deltas := walkDeltas(*frames, geom.Vec3{0, 0, *bias})
	path, err := trajectory.FromDeltas(deltas)
	if err != nil {
		log.Fatalf("integrate deltas: %v", err)
	}

	if err := writeTreadmillLog(filepath.Join(*output, "treadmill.csv"), stamps, deltas, path); err != nil {
		log.Fatalf("write treadmill log: %v", err)
	}
	if err := writeVRLog(filepath.Join(*output, "vr_position.csv"), stamps, path); err != nil {
		log.Fatalf("write VR position log: %v", err)
	}
	if err := writeEventsLog(filepath.Join(*output, "events.csv"), stamps); err != nil {
		log.Fatalf("write events log: %v", err)
	}
	spec := filepath.Join(*output, "projector_bar_specifications_synthetic.yaml")
	if err := os.WriteFile(spec, []byte("start_bar_in_front: 0.0\n"), 0644); err != nil {
		log.Fatalf("write projector spec: %v", err)
	}

	log.Printf("✓ Created: %s (%d frames, heading bias %.4f)", *output, *frames, *bias)
}

// walkDeltas builds n frames of forward walking with gentle turning,
// then applies the bias rotation so the fit has something to recover.
func walkDeltas(n int, bias geom.Vec3) *mat.Dense {
	d := mat.NewDense(n, 3, nil)
	for i := 0; i < n; i++ {
		d.Set(i, 1, 0.02+0.01*math.Sin(float64(i)/40))
		d.Set(i, 2, 0.003*math.Sin(float64(i)/70))
	}
	rotated, err := geom.RotateByAxisAngle(d, bias)
	if err != nil {
		log.Fatalf("apply bias rotation: %v", err)
	}
	return rotated
}

func writeTreadmillLog(path string, stamps []int64, deltas *mat.Dense, traj *trajectory.Path) error {
	pos := traj.Positions()
	var sb strings.Builder
	sb.WriteString(strings.Join(fictrac.Columns, ","))
	sb.WriteByte('\n')
	for i := range stamps {
		speed := 0.0
		if i > 0 {
			speed = cmplx.Abs(pos[i] - pos[i-1])
		}
		fields := []string{
			strconv.FormatInt(stamps[i], 10),
			strconv.Itoa(i), // frame_id
			strconv.Itoa(i), // frame_counter
			"0", "0", "0", // delta_rotation_cam_*
			"0", // delta_rotation_error
			fmtF(deltas.At(i, 0)),
			fmtF(deltas.At(i, 1)),
			fmtF(deltas.At(i, 2)),
			"0", "0", "0", // absolute_rotation_cam_*
			"0", "0", "0", // absolute_rotation_lab_*
			fmtF(real(pos[i])),
			fmtF(imag(pos[i])),
			fmtF(traj.Heading[i]),
			"0", // animal_movement_direction_lab
			fmtF(speed),
			"0", "0", // integrated_motion_*
			strconv.Itoa(i), // sequence_counter
		}
		sb.WriteString(strings.Join(fields, ","))
		sb.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(sb.String()), 0644)
}

func writeVRLog(path string, stamps []int64, traj *trajectory.Path) error {
	pos := traj.Positions()
	var sb strings.Builder
	sb.WriteString(strings.Join(vr.Columns, ","))
	sb.WriteByte('\n')
	for i := range stamps {
		// The VR node logs raw unscaled positions; the stored complex
		// view reads them back as i*(x - i*y).
		fields := []string{
			strconv.FormatInt(stamps[i], 10),
			strconv.Itoa(i),
			"0", "0",
			fmtF(traj.Heading[i]),
			fmtF(imag(pos[i])), // position_x
			fmtF(real(pos[i])), // position_y
			"0",
		}
		sb.WriteString(strings.Join(fields, ","))
		sb.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(sb.String()), 0644)
}

func writeEventsLog(path string, stamps []int64) error {
	var sb strings.Builder
	sb.WriteString("timestamp,Event type,Event message\n")
	sb.WriteString(fmt.Sprintf("%d,BarSet,bar on\n", stamps[0]))
	mid := stamps[len(stamps)/2]
	sb.WriteString(fmt.Sprintf("%d,JumpOffsetDegrees,90\n", mid))
	return os.WriteFile(path, []byte(sb.String()), 0644)
}

func fmtF(v float64) string {
	return strconv.FormatFloat(v, 'g', 17, 64)
}
