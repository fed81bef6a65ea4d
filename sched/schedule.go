// Package sched turns a batch of beat-timed events into per-block node
// dispatches. Schedules are built on the control thread and swapped into the
// dispatcher atomically; the audio thread consumes them one block at a time.
package sched

import (
	"encoding/json"
	"fmt"
	"sort"
)

// EventType identifies what a scheduled event does to its target node.
type EventType uint8

const (
	NoteOn EventType = iota
	NoteOff
	Program // pitch = program, velocity = bank
	Volume  // pitch = volume
	Bend    // 14-bit value = pitch | velocity<<7, 8192 = center
	Control // value = normalized 0..1, delivered via PushControl
)

// Event is one scheduled event addressed to a node.
type Event struct {
	Beat     float64
	Type     EventType
	NodeID   string
	Channel  uint8
	Pitch    uint8
	Velocity uint8
	Value    float32
}

// Schedule is an immutable, sorted event stream plus the arrangement length
// in beats.
type Schedule struct {
	events      []Event
	totalLength float64
}

// Events returns the sorted event list.
func (s *Schedule) Events() []Event { return s.events }

// TotalLengthBeats is the largest event beat in the schedule.
func (s *Schedule) TotalLengthBeats() float64 { return s.totalLength }

var eventTypes = map[string]EventType{
	"note_on":  NoteOn,
	"note_off": NoteOff,
	"program":  Program,
	"volume":   Volume,
	"bend":     Bend,
	"control":  Control,
}

// typePriority orders events at equal beats: offs and state changes fire
// before note-ons so a retriggered note never gets cut by its own off.
func typePriority(t EventType) int {
	switch t {
	case NoteOff:
		return 0
	case NoteOn:
		return 2
	default:
		return 1
	}
}

// Parse builds a schedule from a JSON event batch. Setup events with a
// negative beat are clamped to 0 so they fire at the start of the
// arrangement instead of being skipped. An unknown event type rejects the
// whole batch.
func Parse(data []byte) (*Schedule, error) {
	var raw struct {
		Events []struct {
			Beat     float64 `json:"beat"`
			Type     string  `json:"type"`
			NodeID   string  `json:"node_id"`
			Channel  int     `json:"channel"`
			Pitch    int     `json:"pitch"`
			Velocity int     `json:"velocity"`
			Value    float64 `json:"value"`
		} `json:"events"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("event batch: %w", err)
	}

	s := &Schedule{}
	for _, je := range raw.Events {
		typ, ok := eventTypes[je.Type]
		if !ok {
			return nil, fmt.Errorf("unknown event type: %s", je.Type)
		}
		beat := je.Beat
		if beat < 0 {
			beat = 0
		}
		s.events = append(s.events, Event{
			Beat:     beat,
			Type:     typ,
			NodeID:   je.NodeID,
			Channel:  uint8(je.Channel),
			Pitch:    uint8(je.Pitch),
			Velocity: uint8(je.Velocity),
			Value:    float32(je.Value),
		})
		if beat > s.totalLength {
			s.totalLength = beat
		}
	}

	sort.SliceStable(s.events, func(i, j int) bool {
		a, b := s.events[i], s.events[j]
		if a.Beat != b.Beat {
			return a.Beat < b.Beat
		}
		return typePriority(a.Type) < typePriority(b.Type)
	})

	return s, nil
}
