package session

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/treadmill.report/internal/logio"
)

// EventColumns is the required schema of an experiment events log.
var EventColumns = []string{
	"timestamp",
	"Event type",
	"Event message",
}

// Event types emitted by the bar experiment logic.
const (
	EventBarSet     = "BarSet"
	EventBarJumpDeg = "JumpOffsetDegrees"
)

// Event is one timestamped experiment event.
type Event struct {
	Timestamp int64
	Type      string
	Message   string
}

// EventsLog is a loaded experiment event stream.
type EventsLog struct {
	Table  *logio.Table
	Events []Event
}

// ValidEventsLog reports whether path looks like an events log.
func ValidEventsLog(path string) bool {
	return logio.Valid(path, EventColumns)
}

// OpenEventsLog loads and validates an events log.
func OpenEventsLog(path string) (*EventsLog, error) {
	tbl, err := logio.ReadCSV(path, EventColumns)
	if err != nil {
		return nil, fmt.Errorf("open events log: %w", err)
	}
	types, err := tbl.Strings("Event type")
	if err != nil {
		return nil, err
	}
	messages, err := tbl.Strings("Event message")
	if err != nil {
		// A log whose messages all parse as numbers is still valid;
		// fall back to the numeric column rendered as text.
		nums, numErr := tbl.Float("Event message")
		if numErr != nil {
			return nil, err
		}
		messages = make([]string, len(nums))
		for i, v := range nums {
			messages[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
	}

	ts := tbl.Timestamps()
	events := make([]Event, tbl.Len())
	for i := range events {
		events[i] = Event{
			Timestamp: ts[i],
			Type:      strings.TrimSpace(types[i]),
			Message:   strings.TrimSpace(messages[i]),
		}
	}
	return &EventsLog{Table: tbl, Events: events}, nil
}

// BarJump is a discrete reorientation of the reference bar.
type BarJump struct {
	Timestamp int64
	AngleRad  float64
}

// BarJumps extracts the bar-jump events, converting the logged degree
// offsets to radians.
func (l *EventsLog) BarJumps() ([]BarJump, error) {
	var out []BarJump
	for _, ev := range l.Events {
		if ev.Type != EventBarJumpDeg {
			continue
		}
		deg, err := strconv.ParseFloat(ev.Message, 64)
		if err != nil {
			return nil, fmt.Errorf("bar jump at %d has non-numeric offset %q: %w",
				ev.Timestamp, ev.Message, err)
		}
		out = append(out, BarJump{
			Timestamp: ev.Timestamp,
			AngleRad:  deg * math.Pi / 180,
		})
	}
	return out, nil
}
