package danmaku

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const minPositionFields = 4

// Modes match exactly, so "01" and "+1" are rejected even though they parse as 1.
var placementByMode = map[string]Placement{
	"1": PlacementScrolling,
	"4": PlacementBottom,
	"5": PlacementTop,
}

// DecodeRecord validates r and converts it to an Event.
// The second return value is false when the position field is malformed:
// fewer than four fields, an unparsable time or color, or an unknown mode.
// Fields after the fourth are ignored.
func DecodeRecord(r Record) (Event, bool) {
	fields := strings.Split(r.P, ",")
	if len(fields) < minPositionFields {
		return Event{}, false
	}

	seconds, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || seconds < 0 || math.IsInf(seconds, 0) || math.IsNaN(seconds) {
		return Event{}, false
	}

	color, err := strconv.ParseInt(fields[2], 10, 32)
	if err != nil {
		return Event{}, false
	}

	placement, ok := placementByMode[fields[1]]
	if !ok {
		return Event{}, false
	}

	return Event{
		ID:        strconv.FormatInt(r.CID, 10),
		ServiceID: ServiceDandanplay,
		SenderID:  fields[3],
		Content: Content{
			PlayTimeMillis: secondsToMillis(seconds),
			Color:          int32(color),
			Text:           r.M,
			Placement:      placement,
		},
	}, true
}

// secondsToMillis truncates toward zero and saturates at math.MaxInt64.
// seconds must be finite and non-negative.
func secondsToMillis(seconds float64) int64 {
	ms := seconds * 1000
	if ms >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(ms)
}

// DecodeBatch decodes records in order, dropping the ones that fail.
func DecodeBatch(records []Record) []Event {
	out := make([]Event, 0, len(records))
	for _, r := range records {
		if ev, ok := DecodeRecord(r); ok {
			out = append(out, ev)
		}
	}
	return out
}

// DecodeBatchParallel is DecodeBatch spread over at most workers goroutines.
// Results keep the relative order of their source records.
func DecodeBatchParallel(ctx context.Context, records []Record, workers int) ([]Event, error) {
	if workers <= 1 || len(records) < 2 {
		return DecodeBatch(records), ctx.Err()
	}
	if workers > len(records) {
		workers = len(records)
	}

	type slot struct {
		ev Event
		ok bool
	}
	slots := make([]slot, len(records))
	chunk := (len(records) + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(records); start += chunk {
		end := min(start+chunk, len(records))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				ev, ok := DecodeRecord(records[i])
				slots[i] = slot{ev: ev, ok: ok}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Event, 0, len(records))
	for _, s := range slots {
		if s.ok {
			out = append(out, s.ev)
		}
	}
	return out, nil
}

// Decode decodes the envelope's comments and reports how many were rejected.
func (l ListResponse) Decode() (events []Event, rejected int) {
	events = DecodeBatch(l.Comments)
	return events, len(l.Comments) - len(events)
}

// ApplyShift returns a copy of events with every play time moved by shift.
// Play times are clamped to the range [0, math.MaxInt64].
func ApplyShift(events []Event, shift time.Duration) []Event {
	out := make([]Event, len(events))
	delta := shift.Milliseconds()
	for i, ev := range events {
		ev.Content.PlayTimeMillis = shiftMillis(ev.Content.PlayTimeMillis, delta)
		out[i] = ev
	}
	return out
}

func shiftMillis(t, delta int64) int64 {
	switch {
	case delta > 0 && t > math.MaxInt64-delta:
		return math.MaxInt64
	case delta < 0 && t < math.MinInt64-delta:
		return 0
	}
	return max(t+delta, 0)
}
