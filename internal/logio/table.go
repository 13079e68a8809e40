package logio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// TimestampColumn is the required nanosecond-epoch column present in
// every log schema handled by this layer.
const TimestampColumn = "timestamp"

// ErrEmptyTable is returned when a log file contains a header but no
// data rows.
var ErrEmptyTable = errors.New("log table has no rows")

// Table is an ordered, timestamp-indexed set of columns parsed from a
// CSV log. Numeric columns are held as float64, everything else as
// strings. Row order is timestamp order; timestamps are validated to
// be non-decreasing at load. Duplicate timestamps are a data-quality
// defect in the producer and are deliberately kept, not deduplicated;
// downstream velocity computations surface them as NaN.
type Table struct {
	path       string
	timestamps []int64
	floats     map[string][]float64
	strings    map[string][]string
	header     []string
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.timestamps) }

// Path returns the file the table was loaded from.
func (t *Table) Path() string { return t.path }

// Header returns the column names in file order.
func (t *Table) Header() []string { return t.header }

// Timestamps returns the nanosecond-epoch timestamp column.
func (t *Table) Timestamps() []int64 { return t.timestamps }

// StartTimestamp returns the first timestamp in nanoseconds.
func (t *Table) StartTimestamp() int64 { return t.timestamps[0] }

// EndTimestamp returns the last timestamp in nanoseconds.
func (t *Table) EndTimestamp() int64 { return t.timestamps[len(t.timestamps)-1] }

// HasColumn reports whether the named column was present in the file.
func (t *Table) HasColumn(name string) bool {
	if name == TimestampColumn {
		return true
	}
	if _, ok := t.floats[name]; ok {
		return true
	}
	_, ok := t.strings[name]
	return ok
}

// Float returns the named numeric column.
func (t *Table) Float(name string) ([]float64, error) {
	col, ok := t.floats[name]
	if !ok {
		return nil, fmt.Errorf("no numeric column %q in %s", name, t.path)
	}
	return col, nil
}

// Strings returns the named text column.
func (t *Table) Strings(name string) ([]string, error) {
	col, ok := t.strings[name]
	if !ok {
		return nil, fmt.Errorf("no text column %q in %s", name, t.path)
	}
	return col, nil
}

// DTSeconds returns the per-row time difference in seconds. The first
// element is NaN (there is no preceding sample), mirroring the length
// of the source rows.
func (t *Table) DTSeconds() []float64 {
	out := make([]float64, len(t.timestamps))
	if len(out) == 0 {
		return out
	}
	out[0] = math.NaN()
	for i := 1; i < len(out); i++ {
		out[i] = float64(t.timestamps[i]-t.timestamps[i-1]) / 1e9
	}
	return out
}

// SearchTimestamp returns the insertion index for ts in the sorted
// timestamp column: the first index whose timestamp is >= ts. The
// result is Len() when ts is past the end of the recording.
func (t *Table) SearchTimestamp(ts int64) int {
	return sort.Search(len(t.timestamps), func(i int) bool {
		return t.timestamps[i] >= ts
	})
}

// Valid reports whether path looks like a CSV log carrying at least
// the required columns. Only the header row is read.
func Valid(path string, required []string) bool {
	if filepath.Ext(path) != ".csv" {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return false
	}
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[strings.TrimSpace(h)] = true
	}
	for _, want := range required {
		if !have[want] {
			return false
		}
	}
	return true
}

// ReadCSV loads a CSV log into a Table, validating that every required
// column is present and that the timestamp column is integer-valued
// and non-decreasing. Columns that parse as float64 on the first data
// row start out numeric; a later unparseable value demotes the column
// to text, keeping the earlier rows as rendered numbers.
func ReadCSV(path string, required []string) (*Table, error) {
	if filepath.Ext(path) != ".csv" {
		return nil, fmt.Errorf("log file %s does not have a .csv extension", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // validated row by row below
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read log header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}

	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		colIdx[h] = i
	}
	for _, want := range required {
		if _, ok := colIdx[want]; !ok {
			return nil, fmt.Errorf("log %s is missing required column %q", path, want)
		}
	}
	tsIdx, ok := colIdx[TimestampColumn]
	if !ok {
		return nil, fmt.Errorf("log %s has no %q column", path, TimestampColumn)
	}

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read log rows: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyTable)
	}

	t := &Table{
		path:       path,
		timestamps: make([]int64, 0, len(records)),
		floats:     make(map[string][]float64),
		strings:    make(map[string][]string),
		header:     header,
	}

	// Sniff numeric columns from the first data row.
	numeric := make([]bool, len(header))
	for i := range header {
		if i == tsIdx || i >= len(records[0]) {
			continue
		}
		if _, err := strconv.ParseFloat(strings.TrimSpace(records[0][i]), 64); err == nil {
			numeric[i] = true
		}
	}

	var prev int64
	for rowNum, rec := range records {
		if len(rec) != len(header) {
			return nil, fmt.Errorf("log %s row %d has %d fields, header has %d",
				path, rowNum+2, len(rec), len(header))
		}
		ts, err := strconv.ParseInt(strings.TrimSpace(rec[tsIdx]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("log %s row %d: bad timestamp %q: %w",
				path, rowNum+2, rec[tsIdx], err)
		}
		if rowNum > 0 && ts < prev {
			return nil, fmt.Errorf("log %s row %d: timestamp %d decreases from %d",
				path, rowNum+2, ts, prev)
		}
		prev = ts
		t.timestamps = append(t.timestamps, ts)

		for i, name := range header {
			if i == tsIdx {
				continue
			}
			if numeric[i] {
				v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
				if err != nil {
					// Mixed column: earlier rows parsed as numbers but
					// this one is text. Demote the whole column,
					// re-rendering the values already parsed.
					demoted := make([]string, 0, rowNum+1)
					for _, f := range t.floats[name] {
						demoted = append(demoted, strconv.FormatFloat(f, 'g', -1, 64))
					}
					delete(t.floats, name)
					t.strings[name] = append(demoted, rec[i])
					numeric[i] = false
					continue
				}
				t.floats[name] = append(t.floats[name], v)
			} else {
				t.strings[name] = append(t.strings[name], rec[i])
			}
		}
	}

	return t, nil
}

// ProbeStartAndEnd returns the first and last timestamp of a CSV log
// in nanoseconds without parsing the whole file: it reads the header
// plus first data row from the front, and scans backwards from the end
// for the final line.
func ProbeStartAndEnd(path string) (start, end int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("read header: %w", err)
	}
	tsIdx := -1
	for i, h := range header {
		if strings.TrimSpace(h) == TimestampColumn {
			tsIdx = i
			break
		}
	}
	if tsIdx < 0 {
		return 0, 0, fmt.Errorf("log %s has no %q column", path, TimestampColumn)
	}

	first, err := r.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("read first row: %w", err)
	}
	start, err = strconv.ParseInt(strings.TrimSpace(first[tsIdx]), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse first timestamp: %w", err)
	}

	lastLine, err := readLastLine(f)
	if err != nil {
		return 0, 0, err
	}
	fields := strings.Split(lastLine, ",")
	if tsIdx >= len(fields) {
		return 0, 0, fmt.Errorf("last line of %s has only %d fields", path, len(fields))
	}
	end, err = strconv.ParseInt(strings.TrimSpace(fields[tsIdx]), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse last timestamp: %w", err)
	}
	return start, end, nil
}

// readLastLine seeks backwards from the end of f for the final
// non-empty line.
func readLastLine(f *os.File) (string, error) {
	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	size := info.Size()
	if size == 0 {
		return "", errors.New("empty file")
	}

	const chunk = 4096
	var line []byte
	offset := size
	for offset > 0 {
		readFrom := offset - chunk
		if readFrom < 0 {
			readFrom = 0
		}
		buf := make([]byte, offset-readFrom)
		if _, err := f.ReadAt(buf, readFrom); err != nil {
			return "", err
		}
		line = append(buf, line...)
		trimmed := strings.TrimRight(string(line), "\r\n")
		if i := strings.LastIndexByte(trimmed, '\n'); i >= 0 {
			return strings.TrimSpace(trimmed[i+1:]), nil
		}
		offset = readFrom
	}
	return strings.TrimSpace(strings.TrimRight(string(line), "\r\n")), nil
}
