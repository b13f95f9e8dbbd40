package occurrence

import (
	"testing"
	"time"

	"schedcal/internal/config"
	"schedcal/internal/model"
)

var halfHour = model.Header{Unit: model.UnitMinute, Span: 30}

func date(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}

func newGen() *Generator {
	return NewGenerator(config.DefaultSchedulerDefaults())
}

func baseSpec(from, to time.Time) model.EventSpec {
	return model.EventSpec{
		Name:           "standup",
		Title:          "Standup",
		From:           from,
		To:             to,
		ResourceNames:  []string{"r1"},
		SmallestHeader: halfHour,
	}
}

func starts(occs []model.Occurrence) []time.Time {
	out := make([]time.Time, len(occs))
	for i, o := range occs {
		out[i] = o.From
	}
	return out
}

func TestGenerate_DailyCount(t *testing.T) {
	t.Parallel()

	spec := baseSpec(date(2024, 1, 1, 9, 0), date(2024, 1, 1, 10, 0))
	spec.Recurrence = model.RecurrenceDaily
	spec.RecurrenceCount = 3

	res := newGen().Generate(spec)
	if res.Status != StatusOK {
		t.Fatalf("unexpected status %v", res.Status)
	}
	if len(res.Occurrences) != 3 {
		t.Fatalf("expected 3 occurrences, got %d", len(res.Occurrences))
	}
	for i, occ := range res.Occurrences {
		wantFrom := date(2024, 1, 1+i, 9, 0)
		wantTo := date(2024, 1, 1+i, 10, 0)
		if !occ.From.Equal(wantFrom) || !occ.To.Equal(wantTo) {
			t.Errorf("occurrence %d: got %v-%v, want %v-%v", i, occ.From, occ.To, wantFrom, wantTo)
		}
	}
}

func TestGenerate_WeeklyWeekdaysStartingOnSunday(t *testing.T) {
	t.Parallel()

	// 2024-01-07 is a Sunday.
	spec := baseSpec(date(2024, 1, 7, 9, 0), date(2024, 1, 7, 10, 0))
	spec.Recurrence = model.RecurrenceWeekly
	spec.RecurrenceAttributes.Weekdays = []int{3, 1}
	spec.RecurrenceCount = 4

	occs := newGen().Generate(spec).Occurrences
	want := []time.Time{
		date(2024, 1, 8, 9, 0),
		date(2024, 1, 10, 9, 0),
		date(2024, 1, 15, 9, 0),
		date(2024, 1, 17, 9, 0),
	}
	if len(occs) != len(want) {
		t.Fatalf("expected %d occurrences, got %v", len(want), starts(occs))
	}
	for i, w := range want {
		if !occs[i].From.Equal(w) {
			t.Errorf("occurrence %d: got %v, want %v", i, occs[i].From, w)
		}
		if !occs[i].To.Equal(w.Add(time.Hour)) {
			t.Errorf("occurrence %d: unexpected end %v", i, occs[i].To)
		}
	}
}

func TestGenerate_WeeklyIntervalWithSundayAsSeven(t *testing.T) {
	t.Parallel()

	// Monday 2024-01-01, every second week on Monday and Sunday.
	spec := baseSpec(date(2024, 1, 1, 9, 0), date(2024, 1, 1, 10, 0))
	spec.Recurrence = model.RecurrenceWeekly
	spec.RecurrenceAttributes = model.RecurrenceAttributes{Interval: 2, Weekdays: []int{0, 1}}
	spec.RecurrenceCount = 4

	occs := newGen().Generate(spec).Occurrences
	want := []time.Time{
		date(2024, 1, 1, 9, 0),
		date(2024, 1, 7, 9, 0),
		date(2024, 1, 15, 9, 0),
		date(2024, 1, 21, 9, 0),
	}
	if len(occs) != len(want) {
		t.Fatalf("expected %d occurrences, got %v", len(want), starts(occs))
	}
	for i, w := range want {
		if !occs[i].From.Equal(w) {
			t.Errorf("occurrence %d: got %v, want %v", i, occs[i].From, w)
		}
	}
}

func TestGenerate_WeeklyIntervalWrapsToNextWeek(t *testing.T) {
	t.Parallel()

	// Saturday 2024-01-06 is past Monday, so the series opens the week after.
	spec := baseSpec(date(2024, 1, 6, 9, 0), date(2024, 1, 6, 10, 0))
	spec.Recurrence = model.RecurrenceWeekly
	spec.RecurrenceAttributes = model.RecurrenceAttributes{Interval: 2, Weekdays: []int{1}}
	spec.RecurrenceCount = 2

	occs := newGen().Generate(spec).Occurrences
	want := []time.Time{date(2024, 1, 8, 9, 0), date(2024, 1, 22, 9, 0)}
	if len(occs) != len(want) {
		t.Fatalf("expected %d occurrences, got %v", len(want), starts(occs))
	}
	for i, w := range want {
		if !occs[i].From.Equal(w) || !occs[i].To.Equal(w.Add(time.Hour)) {
			t.Errorf("occurrence %d: got %v-%v, want start %v", i, occs[i].From, occs[i].To, w)
		}
	}
}

func TestGenerate_WeeklyIntervalStartMidWeek(t *testing.T) {
	t.Parallel()

	// Wednesday 2024-01-03 with Monday and Friday: Friday is still ahead.
	spec := baseSpec(date(2024, 1, 3, 9, 0), date(2024, 1, 3, 10, 0))
	spec.Recurrence = model.RecurrenceWeekly
	spec.RecurrenceAttributes = model.RecurrenceAttributes{Interval: 2, Weekdays: []int{1, 5}}
	spec.RecurrenceCount = 3

	occs := newGen().Generate(spec).Occurrences
	want := []time.Time{date(2024, 1, 5, 9, 0), date(2024, 1, 15, 9, 0), date(2024, 1, 19, 9, 0)}
	if len(occs) != len(want) {
		t.Fatalf("expected %d occurrences, got %v", len(want), starts(occs))
	}
	for i, w := range want {
		if !occs[i].From.Equal(w) {
			t.Errorf("occurrence %d: got %v, want %v", i, occs[i].From, w)
		}
	}
}

func TestGenerate_AllDay(t *testing.T) {
	t.Parallel()

	at := date(2024, 6, 15, 14, 0)
	spec := baseSpec(at, at)
	spec.AllDay = true

	occs := newGen().Generate(spec).Occurrences
	if len(occs) != 1 {
		t.Fatalf("expected 1 occurrence, got %d", len(occs))
	}
	wantFrom := date(2024, 6, 15, 0, 0)
	wantTo := time.Date(2024, 6, 15, 23, 59, 59, 999_000_000, time.UTC)
	if !occs[0].From.Equal(wantFrom) || !occs[0].To.Equal(wantTo) {
		t.Fatalf("got %v-%v, want %v-%v", occs[0].From, occs[0].To, wantFrom, wantTo)
	}
}

func TestGenerate_ResourceFanOut(t *testing.T) {
	t.Parallel()

	spec := baseSpec(date(2024, 3, 4, 9, 0), date(2024, 3, 4, 11, 0))
	spec.ResourceNames = []string{"r1", "r2", "r3"}

	occs := newGen().Generate(spec).Occurrences
	if len(occs) != len(spec.ResourceNames) {
		t.Fatalf("expected %d occurrences, got %d", len(spec.ResourceNames), len(occs))
	}
	keys := map[string]bool{}
	for i, occ := range occs {
		if occ.ResourceName != spec.ResourceNames[i] {
			t.Errorf("occurrence %d: resource %q, want %q", i, occ.ResourceName, spec.ResourceNames[i])
		}
		if !occ.From.Equal(spec.From) || !occ.To.Equal(spec.To) {
			t.Errorf("occurrence %d: interval %v-%v differs from spec", i, occ.From, occ.To)
		}
		if keys[occ.Key] {
			t.Errorf("duplicate key %q", occ.Key)
		}
		keys[occ.Key] = true
	}
}

func TestGenerate_AvailabilityExcludesSaturday(t *testing.T) {
	t.Parallel()

	// 2024-06-15 is a Saturday.
	spec := baseSpec(date(2024, 6, 15, 10, 0), date(2024, 6, 15, 12, 0))
	spec.AvailableDaysOfTheWeek = []int{1, 2, 3, 4, 5}

	res := newGen().Generate(spec)
	if res.Status != StatusOK {
		t.Fatalf("unexpected status %v", res.Status)
	}
	if len(res.Occurrences) != 0 {
		t.Fatalf("expected no occurrences, got %d", len(res.Occurrences))
	}
}

func TestGenerate_AvailabilityFiltersRecurringInstances(t *testing.T) {
	t.Parallel()

	// Daily from Friday 2024-01-05, weekdays only.
	spec := baseSpec(date(2024, 1, 5, 9, 0), date(2024, 1, 5, 10, 0))
	spec.Recurrence = model.RecurrenceDaily
	spec.RecurrenceCount = 4
	spec.AvailableDaysOfTheWeek = []int{1, 2, 3, 4, 5}

	occs := newGen().Generate(spec).Occurrences
	// Fri, (Sat), (Sun), Mon: the count covers generated dates.
	if len(occs) != 2 {
		t.Fatalf("expected 2 occurrences, got %v", starts(occs))
	}
	if !occs[1].From.Equal(date(2024, 1, 8, 9, 0)) {
		t.Errorf("unexpected second occurrence %v", occs[1].From)
	}

	spec.AvailableDaysOfTheWeek = nil
	spec.AvailableTimeFrames = []string{"12:00-13:00"}
	if occs := newGen().Generate(spec).Occurrences; len(occs) != 0 {
		t.Fatalf("time frame must exclude all instances, got %v", starts(occs))
	}
}

func TestGenerate_MonthlySameDaySameWeek(t *testing.T) {
	t.Parallel()

	// 2024-01-16 is the third Tuesday of January.
	spec := baseSpec(date(2024, 1, 16, 14, 0), date(2024, 1, 16, 15, 30))
	spec.Recurrence = model.RecurrenceMonthly
	spec.RecurrenceAttributes.SameDaySameWeek = true
	spec.RecurrenceCount = 3

	occs := newGen().Generate(spec).Occurrences
	want := []time.Time{
		date(2024, 1, 16, 14, 0),
		date(2024, 2, 20, 14, 0),
		date(2024, 3, 19, 14, 0),
	}
	if len(occs) != len(want) {
		t.Fatalf("expected %d occurrences, got %v", len(want), starts(occs))
	}
	for i, w := range want {
		if !occs[i].From.Equal(w) {
			t.Errorf("occurrence %d: got %v, want %v", i, occs[i].From, w)
		}
		if occs[i].From.Weekday() != time.Tuesday {
			t.Errorf("occurrence %d is not a tuesday", i)
		}
		if !occs[i].To.Equal(w.Add(90 * time.Minute)) {
			t.Errorf("occurrence %d: unexpected end %v", i, occs[i].To)
		}
	}
}

func TestGenerate_MonthlyPinnedDaySkipsShortMonths(t *testing.T) {
	t.Parallel()

	spec := baseSpec(date(2024, 1, 31, 9, 0), date(2024, 1, 31, 10, 0))
	spec.Recurrence = model.RecurrenceMonthly
	spec.RecurrenceCount = 2

	occs := newGen().Generate(spec).Occurrences
	if len(occs) != 2 {
		t.Fatalf("expected 2 occurrences, got %v", starts(occs))
	}
	if !occs[1].From.Equal(date(2024, 3, 31, 9, 0)) {
		t.Errorf("expected february to be skipped, got %v", occs[1].From)
	}
}

func TestGenerate_YearlyWithInterval(t *testing.T) {
	t.Parallel()

	spec := baseSpec(date(2024, 5, 20, 8, 0), date(2024, 5, 20, 9, 0))
	spec.Recurrence = model.RecurrenceYearly
	spec.RecurrenceAttributes.Interval = 2
	spec.RecurrenceCount = 3

	occs := newGen().Generate(spec).Occurrences
	want := []int{2024, 2026, 2028}
	if len(occs) != len(want) {
		t.Fatalf("expected %d occurrences, got %v", len(want), starts(occs))
	}
	for i, y := range want {
		if !occs[i].From.Equal(date(y, 5, 20, 8, 0)) {
			t.Errorf("occurrence %d: got %v", i, occs[i].From)
		}
	}
}

func TestGenerate_RecurrenceBounds(t *testing.T) {
	t.Parallel()

	spec := baseSpec(date(2024, 1, 1, 9, 0), date(2024, 1, 1, 10, 0))
	spec.Recurrence = model.RecurrenceDaily

	t.Run("end date covers its whole day", func(t *testing.T) {
		s := spec
		s.RecurrenceEndDate = date(2024, 1, 3, 0, 0)
		s.RecurrenceCount = 10
		if occs := newGen().Generate(s).Occurrences; len(occs) != 3 {
			t.Fatalf("expected 3 occurrences, got %v", starts(occs))
		}
	})

	t.Run("count reached first", func(t *testing.T) {
		s := spec
		s.RecurrenceEndDate = date(2024, 2, 1, 0, 0)
		s.RecurrenceCount = 2
		if occs := newGen().Generate(s).Occurrences; len(occs) != 2 {
			t.Fatalf("expected 2 occurrences, got %v", starts(occs))
		}
	})

	t.Run("window end earlier than end date", func(t *testing.T) {
		s := spec
		s.RecurrenceEndDate = date(2024, 2, 1, 0, 0)
		s.SchedulerEnd = date(2024, 1, 5, 0, 0)
		occs := newGen().Generate(s).Occurrences
		if len(occs) != 4 {
			t.Fatalf("expected 4 occurrences, got %v", starts(occs))
		}
		for _, occ := range occs {
			if occ.From.After(s.SchedulerEnd) {
				t.Errorf("occurrence %v after window end", occ.From)
			}
		}
	})
}

func TestGenerate_RecurringClampedPerOccurrence(t *testing.T) {
	t.Parallel()

	spec := baseSpec(date(2024, 1, 1, 9, 0), date(2024, 1, 1, 10, 0))
	spec.Recurrence = model.RecurrenceDaily
	spec.SchedulerStart = date(2024, 1, 3, 0, 0)
	spec.SchedulerEnd = time.Date(2024, 1, 4, 23, 59, 59, 0, time.UTC)

	occs := newGen().Generate(spec).Occurrences
	if len(occs) != 2 {
		t.Fatalf("expected 2 occurrences, got %v", starts(occs))
	}
	if !occs[0].From.Equal(date(2024, 1, 3, 9, 0)) {
		t.Errorf("unexpected first occurrence %v", occs[0].From)
	}
}

func TestGenerate_MonotonicStepping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		rec   model.Recurrence
		attrs model.RecurrenceAttributes
	}{
		{model.RecurrenceDaily, model.RecurrenceAttributes{Interval: 3}},
		{model.RecurrenceWeekly, model.RecurrenceAttributes{}},
		{model.RecurrenceWeekly, model.RecurrenceAttributes{Weekdays: []int{5, 2, 0}}},
		{model.RecurrenceMonthly, model.RecurrenceAttributes{}},
		{model.RecurrenceMonthly, model.RecurrenceAttributes{SameDaySameWeek: true}},
		{model.RecurrenceYearly, model.RecurrenceAttributes{}},
	}

	for _, tc := range cases {
		spec := baseSpec(date(2024, 2, 13, 9, 0), date(2024, 2, 13, 10, 0))
		spec.Recurrence = tc.rec
		spec.RecurrenceAttributes = tc.attrs
		spec.RecurrenceCount = 12

		occs := newGen().Generate(spec).Occurrences
		if len(occs) == 0 || len(occs) > 12 {
			t.Errorf("%s %+v: unexpected count %d", tc.rec, tc.attrs, len(occs))
			continue
		}
		for i := 1; i < len(occs); i++ {
			if !occs[i].From.After(occs[i-1].From) {
				t.Errorf("%s %+v: occurrence %d (%v) not after %v", tc.rec, tc.attrs, i, occs[i].From, occs[i-1].From)
			}
		}
	}
}

func TestGenerate_MidnightCrossingClampsToDayEnd(t *testing.T) {
	t.Parallel()

	spec := baseSpec(date(2024, 1, 1, 22, 0), date(2024, 1, 2, 2, 0))
	spec.Recurrence = model.RecurrenceDaily
	spec.RecurrenceCount = 2

	occs := newGen().Generate(spec).Occurrences
	if len(occs) != 2 {
		t.Fatalf("expected 2 occurrences, got %d", len(occs))
	}
	for i, occ := range occs {
		want := time.Date(2024, 1, 1+i, 23, 59, 59, 0, time.UTC)
		if !occ.To.Equal(want) {
			t.Errorf("occurrence %d: end %v, want %v", i, occ.To, want)
		}
	}
}

func TestGenerate_WeeklyWithoutWeekdaysKeepsMultiDaySpan(t *testing.T) {
	t.Parallel()

	// Friday 22:00 to Sunday 10:00.
	spec := baseSpec(date(2024, 1, 5, 22, 0), date(2024, 1, 7, 10, 0))
	spec.Recurrence = model.RecurrenceWeekly
	spec.RecurrenceCount = 2

	occs := newGen().Generate(spec).Occurrences
	if len(occs) != 2 {
		t.Fatalf("expected 2 occurrences, got %d", len(occs))
	}
	if !occs[1].From.Equal(date(2024, 1, 12, 22, 0)) || !occs[1].To.Equal(date(2024, 1, 14, 10, 0)) {
		t.Fatalf("unexpected second occurrence %v-%v", occs[1].From, occs[1].To)
	}
}

func TestGenerate_NonRecurringWindowClamp(t *testing.T) {
	t.Parallel()

	spec := baseSpec(date(2024, 1, 1, 9, 0), date(2024, 1, 3, 10, 0))
	spec.SchedulerStart = date(2024, 1, 2, 0, 0)
	spec.SchedulerEnd = date(2024, 1, 2, 23, 0)

	occs := newGen().Generate(spec).Occurrences
	if len(occs) != 1 {
		t.Fatalf("expected 1 occurrence, got %d", len(occs))
	}
	if !occs[0].From.Equal(spec.SchedulerStart) || !occs[0].To.Equal(spec.SchedulerEnd) {
		t.Errorf("not clamped: %v-%v", occs[0].From, occs[0].To)
	}
	if !occs[0].OriginalFrom.Equal(spec.From) {
		t.Errorf("original start lost: %v", occs[0].OriginalFrom)
	}

	spec.SchedulerStart = date(2024, 2, 1, 0, 0)
	spec.SchedulerEnd = date(2024, 2, 7, 0, 0)
	if occs := newGen().Generate(spec).Occurrences; len(occs) != 0 {
		t.Fatalf("event outside the window must be discarded, got %d", len(occs))
	}
}

func TestGenerate_EndBeforeStartCollapses(t *testing.T) {
	t.Parallel()

	spec := baseSpec(date(2024, 1, 1, 9, 0), date(2023, 12, 31, 9, 0))
	occs := newGen().Generate(spec).Occurrences
	if len(occs) != 1 {
		t.Fatalf("expected 1 occurrence, got %d", len(occs))
	}
	if want := model.EndOfDay(spec.From); !occs[0].To.Equal(want) {
		t.Fatalf("end %v, want %v", occs[0].To, want)
	}
}

func TestGenerate_MissingPreconditions(t *testing.T) {
	t.Parallel()

	ok := baseSpec(date(2024, 1, 1, 9, 0), date(2024, 1, 1, 10, 0))

	noStart := ok
	noStart.From = time.Time{}
	noEnd := ok
	noEnd.To = time.Time{}
	noHeader := ok
	noHeader.SmallestHeader = model.Header{}

	cases := []struct {
		name string
		spec model.EventSpec
		want Status
	}{
		{"start", noStart, StatusMissingStart},
		{"end", noEnd, StatusMissingEnd},
		{"header", noHeader, StatusMissingHeader},
	}
	for _, tc := range cases {
		res := newGen().Generate(tc.spec)
		if res.Status != tc.want {
			t.Errorf("%s: status %v, want %v", tc.name, res.Status, tc.want)
		}
		if len(res.Occurrences) != 0 {
			t.Errorf("%s: expected no occurrences", tc.name)
		}
	}
}

func TestGenerate_UnknownRecurrenceFallsBackToSingle(t *testing.T) {
	t.Parallel()

	spec := baseSpec(date(2024, 1, 1, 9, 0), date(2024, 1, 1, 10, 0))
	spec.Recurrence = "hourly"

	occs := newGen().Generate(spec).Occurrences
	if len(occs) != 1 {
		t.Fatalf("expected single occurrence, got %d", len(occs))
	}
}

func TestGenerate_ReferenceLine(t *testing.T) {
	t.Parallel()

	at := date(2024, 1, 1, 12, 0)
	spec := baseSpec(at, at)
	spec.ReferenceLine = true
	spec.Title = "now"
	spec.ResourceNames = []string{"r1", "r2"}

	occs := newGen().Generate(spec).Occurrences
	if len(occs) != 1 {
		t.Fatalf("expected 1 reference line, got %d", len(occs))
	}
	if occs[0].Key != "now-0" || occs[0].ResourceName != "" || !occs[0].ReferenceLine {
		t.Fatalf("unexpected reference line %+v", occs[0])
	}
}

func TestGenerate_Truncation(t *testing.T) {
	t.Parallel()

	defaults := config.DefaultSchedulerDefaults()
	defaults.MaxOccurrencesPerEvent = 10
	g := NewGenerator(defaults)

	spec := baseSpec(date(2024, 1, 1, 9, 0), date(2024, 1, 1, 10, 0))
	spec.Recurrence = model.RecurrenceDaily

	res := g.Generate(spec)
	if !res.Truncated {
		t.Fatal("expected truncation")
	}
	if len(res.Occurrences) != 10 {
		t.Fatalf("expected 10 occurrences, got %d", len(res.Occurrences))
	}
}

func TestGenerate_LongRunningSeriesReachesWindow(t *testing.T) {
	t.Parallel()

	spec := baseSpec(date(2005, 1, 1, 9, 0), date(2005, 1, 1, 10, 0))
	spec.Recurrence = model.RecurrenceDaily
	spec.SchedulerStart = date(2024, 3, 1, 0, 0)
	spec.SchedulerEnd = model.EndOfDay(date(2024, 3, 8, 0, 0))

	res := newGen().Generate(spec)
	if res.Truncated {
		t.Fatal("dates before the window must not count toward the cap")
	}
	if len(res.Occurrences) != 8 {
		t.Fatalf("expected 8 occurrences, got %v", starts(res.Occurrences))
	}
	for i, occ := range res.Occurrences {
		if want := date(2024, 3, 1+i, 9, 0); !occ.From.Equal(want) {
			t.Errorf("occurrence %d: got %v, want %v", i, occ.From, want)
		}
	}
}

func TestGenerate_CountIncludesDatesBeforeWindow(t *testing.T) {
	t.Parallel()

	defaults := config.DefaultSchedulerDefaults()
	defaults.MaxOccurrencesPerEvent = 3
	g := NewGenerator(defaults)

	// Ten dates from Jan 1; the window opens on Jan 8, leaving three.
	spec := baseSpec(date(2024, 1, 1, 9, 0), date(2024, 1, 1, 10, 0))
	spec.Recurrence = model.RecurrenceDaily
	spec.RecurrenceCount = 10
	spec.SchedulerStart = date(2024, 1, 8, 0, 0)

	res := g.Generate(spec)
	if res.Truncated {
		t.Fatal("unexpected truncation")
	}
	want := []time.Time{date(2024, 1, 8, 9, 0), date(2024, 1, 9, 9, 0), date(2024, 1, 10, 9, 0)}
	if len(res.Occurrences) != len(want) {
		t.Fatalf("expected %d occurrences, got %v", len(want), starts(res.Occurrences))
	}
	for i, w := range want {
		if !res.Occurrences[i].From.Equal(w) {
			t.Errorf("occurrence %d: got %v, want %v", i, res.Occurrences[i].From, w)
		}
	}
}

func TestGenerate_Idempotent(t *testing.T) {
	t.Parallel()

	spec := baseSpec(date(2024, 1, 1, 9, 0), date(2024, 1, 1, 10, 0))
	spec.ResourceNames = []string{"r1", "r2"}
	spec.Recurrence = model.RecurrenceWeekly
	spec.RecurrenceAttributes.Weekdays = []int{1, 4}
	spec.RecurrenceCount = 6

	g := newGen()
	a := g.Generate(spec).Occurrences
	b := g.Generate(spec).Occurrences
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if !a[i].From.Equal(b[i].From) || !a[i].To.Equal(b[i].To) || a[i].ResourceName != b[i].ResourceName {
			t.Errorf("occurrence %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestGenerate_Overrides(t *testing.T) {
	t.Parallel()

	spec := baseSpec(date(2024, 1, 1, 9, 0), date(2024, 1, 1, 10, 0))
	spec.Recurrence = model.RecurrenceDaily
	spec.RecurrenceCount = 3
	spec.Overrides = []model.OccurrenceOverride{
		{ResourceName: "r1", OriginalFrom: date(2024, 1, 2, 9, 0), Deleted: true},
		{
			ResourceName: "r1",
			OriginalFrom: date(2024, 1, 3, 9, 0),
			From:         date(2024, 1, 3, 13, 0),
			To:           date(2024, 1, 3, 14, 0),
			Fields:       map[string]string{"color": "red", "location": "Room 4"},
		},
		{
			ResourceName: "r2",
			OriginalFrom: date(2024, 1, 3, 9, 0),
			Added:        true,
			Key:          "standup/r2/clone",
			From:         date(2024, 1, 3, 13, 0),
			To:           date(2024, 1, 3, 14, 0),
		},
	}

	occs := newGen().Generate(spec).Occurrences
	if len(occs) != 3 {
		t.Fatalf("expected 3 occurrences, got %+v", occs)
	}
	if !occs[0].From.Equal(date(2024, 1, 1, 9, 0)) || occs[0].Overridden {
		t.Errorf("first occurrence should be untouched: %+v", occs[0])
	}
	moved := occs[1]
	if !moved.From.Equal(date(2024, 1, 3, 13, 0)) || moved.Color != "red" || !moved.Overridden {
		t.Errorf("override not applied: %+v", moved)
	}
	if moved.Fields["location"] != "Room 4" || moved.Fields["color"] != "" {
		t.Errorf("unexpected extra fields %v", moved.Fields)
	}
	if occs[0].Fields != nil {
		t.Errorf("untouched occurrence has fields %v", occs[0].Fields)
	}
	if moved.Key != OccurrenceKey("standup", "r1", date(2024, 1, 3, 9, 0)) {
		t.Errorf("override must keep the series key, got %q", moved.Key)
	}
	if occs[2].ResourceName != "r2" || occs[2].Key != "standup/r2/clone" {
		t.Errorf("added occurrence missing: %+v", occs[2])
	}
}

func TestNormalize_Defaults(t *testing.T) {
	t.Parallel()

	g := newGen()
	var spec model.EventSpec
	spec.Recurrence = "fortnightly"
	g.Normalize(&spec)

	if spec.Name != DefaultEventName {
		t.Errorf("name = %q", spec.Name)
	}
	if spec.Recurrence != model.RecurrenceNone {
		t.Errorf("recurrence = %q", spec.Recurrence)
	}
	if spec.RecurrenceAttributes.Interval != 1 {
		t.Errorf("interval = %d", spec.RecurrenceAttributes.Interval)
	}
	if len(spec.AvailableMonths) != 12 || len(spec.AvailableDaysOfTheWeek) != 7 || len(spec.AvailableTimeFrames) != 1 {
		t.Errorf("availability defaults not applied: %+v", spec)
	}

	disabled := model.EventSpec{Disabled: true}
	g.Normalize(&disabled)
	if disabled.Name != DefaultDisabledName {
		t.Errorf("disabled name = %q", disabled.Name)
	}
}
