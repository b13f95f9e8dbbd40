package ics

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"

	"schedcal/internal/config"
	"schedcal/internal/model"
	"schedcal/internal/occurrence"
)

const feed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:standup@example.com
DTSTAMP:20240101T000000Z
DTSTART:20240101T090000Z
DTEND:20240101T093000Z
SUMMARY:Standup
RRULE:FREQ=WEEKLY;BYDAY=MO,WE;COUNT=4
EXDATE:20240103T090000Z
END:VEVENT
BEGIN:VEVENT
UID:standup@example.com
DTSTAMP:20240101T000000Z
RECURRENCE-ID:20240108T090000Z
DTSTART:20240108T100000Z
DTEND:20240108T103000Z
SUMMARY:Standup (moved)
END:VEVENT
BEGIN:VEVENT
UID:holiday@example.com
DTSTAMP:20240101T000000Z
DTSTART;VALUE=DATE:20240115
DTEND;VALUE=DATE:20240116
SUMMARY:Holiday
CATEGORIES:off
END:VEVENT
BEGIN:VEVENT
UID:review@example.com
DTSTAMP:20240101T000000Z
DTSTART:20240116T140000Z
DTEND:20240116T150000Z
SUMMARY:Review
RRULE:FREQ=MONTHLY;BYDAY=3TU;COUNT=3
END:VEVENT
BEGIN:VEVENT
UID:hourly@example.com
DTSTAMP:20240101T000000Z
DTSTART:20240101T120000Z
DTEND:20240101T130000Z
SUMMARY:Hourly
RRULE:FREQ=HOURLY;COUNT=3
END:VEVENT
BEGIN:VEVENT
DTSTART:20240101T120000Z
SUMMARY:No UID
END:VEVENT
END:VCALENDAR
`

var testSource = Source{ID: "team", URL: "https://example.com/private/team.ics?token=secret"}

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func parseFeed(t *testing.T) []ParsedEvent {
	t.Helper()
	events, err := ParseICS(testSource, crlf(feed), time.UTC)
	if err != nil {
		t.Fatalf("ParseICS: %v", err)
	}
	return events
}

func TestParseICS(t *testing.T) {
	t.Parallel()

	events := parseFeed(t)
	if len(events) != 5 {
		t.Fatalf("expected 5 events (one without UID skipped), got %d", len(events))
	}

	base := events[0]
	if base.UID != "standup@example.com" || base.RawRRule == "" || len(base.ExDates) != 1 {
		t.Fatalf("unexpected series %+v", base)
	}
	if !base.ExDates[0].Equal(time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected EXDATE %v", base.ExDates[0])
	}
	if !events[1].IsOverride() || !events[1].RecurrenceID.Equal(time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("override not detected: %+v", events[1])
	}

	holiday := events[2]
	if !holiday.AllDay {
		t.Fatal("holiday must be all-day")
	}
	if !holiday.Start.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) || !holiday.End.Equal(model.EndOfDay(holiday.Start)) {
		t.Errorf("all-day bounds %v-%v", holiday.Start, holiday.End)
	}
	if len(holiday.Categories) != 1 || holiday.Categories[0] != "off" {
		t.Errorf("categories = %v", holiday.Categories)
	}
}

func TestParseICS_Empty(t *testing.T) {
	t.Parallel()

	if _, err := ParseICS(testSource, nil, time.UTC); err == nil {
		t.Fatal("expected error for empty body")
	}
}

func TestToSpecs(t *testing.T) {
	t.Parallel()

	specs := ToSpecs(parseFeed(t), ImportOptions{Resource: "team", Location: time.UTC})
	if len(specs) != 4 {
		t.Fatalf("expected 4 specs, got %d", len(specs))
	}

	standup := specs[0]
	if standup.Name != SpecName("team", "standup@example.com") {
		t.Errorf("name = %q", standup.Name)
	}
	if standup.Recurrence != model.RecurrenceWeekly || standup.RecurrenceCount != 4 {
		t.Errorf("recurrence not mapped: %+v", standup)
	}
	if got := standup.RecurrenceAttributes.Weekdays; len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("weekdays = %v", got)
	}
	if len(standup.Overrides) != 2 || !standup.Overrides[0].Deleted || standup.Overrides[1].Title != "Standup (moved)" {
		t.Errorf("overrides = %+v", standup.Overrides)
	}

	if !specs[1].AllDay || len(specs[1].Labels) != 1 || specs[1].ResourceNames[0] != "team" {
		t.Errorf("holiday = %+v", specs[1])
	}
	if specs[2].Recurrence != model.RecurrenceMonthly || !specs[2].RecurrenceAttributes.SameDaySameWeek {
		t.Errorf("review = %+v", specs[2])
	}
	if specs[3].Recurrence != model.RecurrenceNone {
		t.Errorf("unsupported rule must fall back to a single event: %+v", specs[3])
	}

	for _, s := range specs {
		if !IsImported(&s) {
			t.Errorf("%s not marked as imported", s.Name)
		}
	}
	if IsImported(&model.EventSpec{Name: "local", Data: map[string]any{"uid": "x"}}) {
		t.Error("local spec reported as imported")
	}
}

func TestToSpecs_ExpandsThroughGenerator(t *testing.T) {
	t.Parallel()

	specs := ToSpecs(parseFeed(t), ImportOptions{Resource: "team", Location: time.UTC})
	spec := specs[0]
	spec.SmallestHeader = model.Header{Unit: model.UnitMinute, Span: 30}

	occs := occurrence.NewGenerator(config.DefaultSchedulerDefaults()).Generate(spec).Occurrences
	want := []time.Time{
		time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC),
	}
	if len(occs) != len(want) {
		t.Fatalf("expected %d occurrences, got %d", len(want), len(occs))
	}
	for i, w := range want {
		if !occs[i].From.Equal(w) {
			t.Errorf("occurrence %d: %v, want %v", i, occs[i].From, w)
		}
	}
	if occs[1].Title != "Standup (moved)" {
		t.Errorf("override title = %q", occs[1].Title)
	}
}

func TestExport(t *testing.T) {
	t.Parallel()

	from := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	occs := []model.Occurrence{
		{Key: "standup/r1/1", EventName: "standup", ResourceName: "r1", Title: "Standup", From: from, To: from.Add(time.Hour), Color: "#ff0000"},
		{Key: "now-0", Title: "now", From: from, To: from, ReferenceLine: true},
	}

	var buf bytes.Buffer
	if err := Export(&buf, occs, ExportOptions{Name: "Team", Now: from}); err != nil {
		t.Fatalf("Export: %v", err)
	}

	cal, err := ical.ParseCalendar(&buf)
	if err != nil {
		t.Fatalf("re-parse exported calendar: %v", err)
	}
	events := cal.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 VEVENT, got %d", len(events))
	}
	ev := events[0]
	if ev.Id() != "standup/r1/1@schedcal" {
		t.Errorf("uid = %q", ev.Id())
	}
	if start, err := ev.GetStartAt(); err != nil || !start.Equal(from) {
		t.Errorf("start = %v (%v)", start, err)
	}
	if p := ev.GetProperty(ical.ComponentPropertyResources); p == nil || p.Value != "r1" {
		t.Errorf("resources = %+v", p)
	}
}

func TestFetcher_CachesAndFallsBack(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	var failing atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if failing.Load() {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write(crlf(feed))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	src := Source{ID: "team", URL: srv.URL + "/team.ics"}

	first, err := f.FetchOne(context.Background(), src)
	if err != nil || first.FromCache || len(first.Body) == 0 {
		t.Fatalf("first fetch: %+v, %v", first, err)
	}

	second, err := f.FetchOne(context.Background(), src)
	if err != nil || !second.FromCache || !bytes.Equal(second.Body, first.Body) {
		t.Fatalf("second fetch should be served from cache: %v", err)
	}

	failing.Store(true)
	third, err := f.FetchOne(context.Background(), src)
	if err != nil || !third.FromCache {
		t.Fatalf("server error should fall back to cache: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 requests, got %d", calls.Load())
	}

	_, errs := f.FetchAll(context.Background(), []Source{{ID: "other", URL: srv.URL + "/other.ics"}})
	if len(errs) != 1 {
		t.Fatalf("uncached source with failing server must error, got %v", errs)
	}
}

func TestRedactURL(t *testing.T) {
	t.Parallel()

	if got := redactURL(testSource.URL); got != "https://example.com/...(redacted)" {
		t.Errorf("redactURL = %q", got)
	}
	if got := redactURL("not a url"); got != "ics://...(redacted)" {
		t.Errorf("redactURL = %q", got)
	}
}
