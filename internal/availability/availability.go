// Package availability decides whether a time interval touches the months,
// weekdays and time-of-day windows an event is allowed to occupy.
package availability

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	appLog "schedcal/internal/log"
	"schedcal/internal/model"
)

// maxScanDays bounds the day walk for very long intervals.
const maxScanDays = 3660

// TimeFrame is an allowed time-of-day window. Start and End are offsets
// from midnight; End is inclusive to the last nanosecond of its minute.
type TimeFrame struct {
	Start time.Duration
	End   time.Duration
}

// FullDay is the frame "00:00-23:59".
var FullDay = TimeFrame{Start: 0, End: 24*time.Hour - 1}

// ParseTimeFrame parses "HH:MM-HH:MM". A frame whose end is before its
// start wraps past midnight and is returned as two frames.
func ParseTimeFrame(s string) ([]TimeFrame, error) {
	from, to, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return nil, fmt.Errorf("time frame %q: missing '-'", s)
	}
	start, err := parseClock(from)
	if err != nil {
		return nil, fmt.Errorf("time frame %q: %w", s, err)
	}
	end, err := parseClock(to)
	if err != nil {
		return nil, fmt.Errorf("time frame %q: %w", s, err)
	}
	end += time.Minute - 1

	if end < start {
		return []TimeFrame{
			{Start: start, End: FullDay.End},
			{Start: 0, End: end},
		}, nil
	}
	return []TimeFrame{{Start: start, End: end}}, nil
}

func parseClock(s string) (time.Duration, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("clock %q: expected HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("clock %q: invalid hour", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock %q: invalid minute", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// Rules is a parsed availability policy. Empty fields allow everything.
type Rules struct {
	months   [13]bool
	weekdays [8]bool
	frames   []TimeFrame

	anyMonth   bool
	anyWeekday bool
}

// NewRules parses an availability policy. Months are 1..12, weekdays
// 0..7 with both 0 and 7 meaning Sunday. Out-of-range entries and
// unparsable frames are logged and ignored; if nothing valid remains for a
// dimension that dimension allows nothing.
func NewRules(months, weekdays []int, frames []string) Rules {
	var r Rules

	r.anyMonth = len(months) == 0
	for _, m := range months {
		if m < 1 || m > 12 {
			appLog.Debug("availability: ignoring month", "month", m)
			continue
		}
		r.months[m] = true
	}

	r.anyWeekday = len(weekdays) == 0
	for _, d := range weekdays {
		n := model.NormalizeWeekday(d)
		if n < 0 {
			appLog.Debug("availability: ignoring weekday", "weekday", d)
			continue
		}
		r.weekdays[n] = true
	}

	if len(frames) == 0 {
		r.frames = []TimeFrame{FullDay}
	}
	for _, f := range frames {
		parsed, err := ParseTimeFrame(f)
		if err != nil {
			appLog.Error("availability: invalid time frame", err, "frame", f)
			continue
		}
		r.frames = append(r.frames, parsed...)
	}
	return r
}

// DefaultRules allows every month, weekday and time of day.
func DefaultRules() Rules {
	return NewRules(nil, nil, nil)
}

func (r *Rules) monthAllowed(m time.Month) bool {
	return r.anyMonth || r.months[m]
}

func (r *Rules) weekdayAllowed(t time.Time) bool {
	return r.anyWeekday || r.weekdays[model.ISOWeekday(t)]
}

// IsAllowed reports whether [start, end) overlaps at least one allowed
// month, weekday and time frame at once. The interval is first widened to
// the cells of header, so a day-granularity scheduler only needs day-level
// overlap. A zero-length interval is treated as a point in time.
func IsAllowed(start, end time.Time, rules Rules, header model.Header) bool {
	if end.Before(start) {
		return false
	}
	if len(rules.frames) == 0 {
		return false
	}
	start, end = widen(start, end, header)
	point := start.Equal(end)

	day := model.StartOfDay(start)
	for i := 0; i < maxScanDays && !day.After(end); i++ {
		next := day.AddDate(0, 0, 1)
		if rules.monthAllowed(day.Month()) && rules.weekdayAllowed(day) {
			segStart := latest(day, start)
			segEnd := earliest(next, end)
			for _, f := range rules.frames {
				fs := day.Add(f.Start)
				fe := day.Add(f.End)
				if point {
					if !segStart.Before(fs) && !segStart.After(fe) {
						return true
					}
					continue
				}
				if segStart.After(fe) || !fs.Before(segEnd) {
					continue
				}
				return true
			}
		}
		day = next
	}
	return false
}

// widen expands [start, end) to whole cells of header.
func widen(start, end time.Time, h model.Header) (time.Time, time.Time) {
	span := h.Span
	if span < 1 {
		span = 1
	}
	switch h.Unit {
	case model.UnitMinute, model.UnitHour:
		cell := time.Duration(span) * time.Minute
		if h.Unit == model.UnitHour {
			cell = time.Duration(span) * time.Hour
		}
		if cell >= 24*time.Hour {
			return model.StartOfDay(start), model.EndOfDay(end)
		}
		s := snapDown(start, cell)
		e := snapDown(end, cell)
		if e.Before(end) {
			e = e.Add(cell)
		}
		return s, e
	case model.UnitWeek:
		s := model.StartOfDay(start)
		s = s.AddDate(0, 0, 1-model.ISOWeekday(s))
		e := model.StartOfDay(end)
		e = model.EndOfDay(e.AddDate(0, 0, 7-model.ISOWeekday(e)))
		return s, e
	case model.UnitMonth:
		s := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, start.Location())
		e := time.Date(end.Year(), end.Month()+1, 1, 0, 0, 0, 0, end.Location()).Add(-time.Millisecond)
		return s, e
	case model.UnitYear:
		s := time.Date(start.Year(), time.January, 1, 0, 0, 0, 0, start.Location())
		e := time.Date(end.Year()+1, time.January, 1, 0, 0, 0, 0, end.Location()).Add(-time.Millisecond)
		return s, e
	case model.UnitDay:
		return model.StartOfDay(start), model.EndOfDay(end)
	default:
		return start, end
	}
}

// snapDown truncates t to a multiple of cell counted from t's midnight.
func snapDown(t time.Time, cell time.Duration) time.Time {
	day := model.StartOfDay(t)
	off := t.Sub(day)
	return day.Add(off - off%cell)
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
