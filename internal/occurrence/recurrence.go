package occurrence

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/teambition/rrule-go"

	"schedcal/internal/model"
)

// byTimeWeekday maps time.Weekday (Sunday = 0) to rrule weekdays.
var byTimeWeekday = [7]rrule.Weekday{
	rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA,
}

// byISOWeekday maps Monday = 1 ... Sunday = 7 to rrule weekdays.
var byISOWeekday = [8]rrule.Weekday{
	1: rrule.MO, 2: rrule.TU, 3: rrule.WE, 4: rrule.TH, 5: rrule.FR, 6: rrule.SA, 7: rrule.SU,
}

// expand walks the recurrence of b.spec and adds one occurrence per
// generated date. Generation stops after count dates (0 = unbounded), past
// the earlier of the recurrence end date and the window end, or at the
// safety cap maxDates, which sets b.truncated. Only dates reaching into the
// window count toward maxDates.
func (b *builder) expand(count, maxDates int) error {
	opt, err := recurrenceOption(b.spec, b.from, count)
	if err != nil {
		return err
	}
	r, err := rrule.NewRRule(opt)
	if err != nil {
		return fmt.Errorf("build rrule: %w", err)
	}

	// The day offset of from->to is carried forward by "same weekday of
	// month" recurrences, whose instances may land on any date.
	var dayOffset int
	sameWeek := b.spec.Recurrence == model.RecurrenceMonthly && b.spec.RecurrenceAttributes.SameDaySameWeek
	if sameWeek {
		dayOffset = daysBetween(b.from, b.to)
	}

	next := r.Iterator()
	for {
		date, ok := next()
		if !ok {
			return nil
		}
		// rrule truncates to whole seconds; restore the original sub-second
		// part so all-day instances keep their exact bounds.
		date = date.Add(time.Duration(b.from.Nanosecond()))

		var end time.Time
		if sameWeek {
			end = model.AtClock(date.AddDate(0, 0, dayOffset), b.to)
		} else {
			end = b.computeOccurrenceEnd(date)
		}
		// Dates that end before the window still consume the count but not
		// the cap.
		if start := b.spec.SchedulerStart; !start.IsZero() && end.Before(start) {
			continue
		}
		if b.generated >= maxDates {
			b.truncated = true
			return nil
		}
		b.generated++
		b.addRecurring(date, end)
	}
}

// recurrenceOption translates the spec's recurrence into rrule options
// anchored at from.
//
//   - daily:   FREQ=DAILY;INTERVAL=n
//   - weekly:  FREQ=WEEKLY;INTERVAL=n, BYDAY from the weekday set if given
//     (Monday-first weeks), otherwise the start weekday
//   - monthly: BYMONTHDAY pinned to the start day, or BYDAY=+N<weekday> for
//     "same weekday of the same week" where N is the start's week of month
//   - yearly:  BYMONTH/BYMONTHDAY pinned to the start date
func recurrenceOption(spec *model.EventSpec, from time.Time, count int) (rrule.ROption, error) {
	opt := rrule.ROption{
		Dtstart:  from,
		Interval: max(spec.RecurrenceAttributes.Interval, 1),
		Wkst:     rrule.MO,
		Count:    count,
		Until:    recurrenceUntil(spec),
	}

	switch spec.Recurrence {
	case model.RecurrenceDaily:
		opt.Freq = rrule.DAILY

	case model.RecurrenceWeekly:
		opt.Freq = rrule.WEEKLY
		if len(spec.RecurrenceAttributes.Weekdays) > 0 {
			days := sortedWeekdays(spec.RecurrenceAttributes.Weekdays)
			if len(days) == 0 {
				return opt, errors.New("weekly recurrence: no valid weekdays")
			}
			for _, d := range days {
				opt.Byweekday = append(opt.Byweekday, byISOWeekday[d])
			}
			// rrule counts intervals from the start's own week. A start past
			// the last listed weekday belongs to the following week.
			if wd := model.ISOWeekday(from); days[len(days)-1] < wd {
				opt.Dtstart = from.AddDate(0, 0, 7-wd+days[0])
			}
		} else {
			opt.Byweekday = []rrule.Weekday{byTimeWeekday[from.Weekday()]}
		}

	case model.RecurrenceMonthly:
		opt.Freq = rrule.MONTHLY
		if spec.RecurrenceAttributes.SameDaySameWeek {
			wd := byTimeWeekday[from.Weekday()]
			opt.Byweekday = []rrule.Weekday{wd.Nth(weekOfMonth(from))}
		} else {
			opt.Bymonthday = []int{from.Day()}
		}

	case model.RecurrenceYearly:
		opt.Freq = rrule.YEARLY
		opt.Bymonth = []int{int(from.Month())}
		opt.Bymonthday = []int{from.Day()}

	default:
		return opt, fmt.Errorf("unknown recurrence %q", spec.Recurrence)
	}
	return opt, nil
}

// recurrenceUntil returns the earlier of the recurrence end date and the
// window end. A recurrence end date at midnight is a date-only value and
// covers that whole day. Zero means unbounded.
func recurrenceUntil(spec *model.EventSpec) time.Time {
	end := spec.RecurrenceEndDate
	if !end.IsZero() && model.ClockOf(end) == 0 {
		end = model.EndOfDay(end)
	}
	if w := spec.SchedulerEnd; !w.IsZero() && (end.IsZero() || w.Before(end)) {
		end = w
	}
	return end
}

// sortedWeekdays normalizes a weekday set to Monday = 1 ... Sunday = 7,
// sorted and without duplicates. Invalid entries are dropped.
func sortedWeekdays(days []int) []int {
	out := make([]int, 0, len(days))
	for _, d := range days {
		if n := model.NormalizeWeekday(d); n > 0 {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// weekOfMonth returns the ordinal of t's weekday within its month: 1 for
// the first such weekday, 2 for the second, ...
func weekOfMonth(t time.Time) int {
	return (t.Day()-1)/7 + 1
}

// daysBetween counts calendar days from a's date to b's date.
func daysBetween(a, b time.Time) int {
	d := model.StartOfDay(b).Sub(model.StartOfDay(a)).Hours() / 24
	return int(math.Round(d))
}
