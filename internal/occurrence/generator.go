// Package occurrence expands event specs into the concrete occurrences a
// scheduler renders: one per resource and date inside the visible window.
package occurrence

import (
	"errors"
	"fmt"
	"time"

	"schedcal/internal/availability"
	"schedcal/internal/config"
	appLog "schedcal/internal/log"
	"schedcal/internal/model"
)

// Default names given to specs that arrive without one.
const (
	DefaultEventName    = "new-event"
	DefaultDisabledName = "disabled"
)

// Status tells why a generation produced what it did. A spec that simply
// has nothing inside the window is StatusOK with no occurrences.
type Status int

const (
	StatusOK Status = iota
	StatusMissingStart
	StatusMissingEnd
	StatusMissingHeader
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusMissingStart:
		return "missing start"
	case StatusMissingEnd:
		return "missing end"
	case StatusMissingHeader:
		return "missing smallest header"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result wraps the generated occurrences.
type Result struct {
	Occurrences []model.Occurrence
	Status      Status
	// Truncated is set when the series hit MaxOccurrencesPerEvent.
	Truncated bool
}

// Generator turns event specs into occurrences using a fixed set of
// scheduler defaults.
type Generator struct {
	defaults config.SchedulerDefaults
}

// NewGenerator returns a Generator. Empty fields of defaults are filled
// from config.DefaultSchedulerDefaults.
func NewGenerator(defaults config.SchedulerDefaults) *Generator {
	defaults.Normalize()
	return &Generator{defaults: defaults}
}

// Normalize fills the defaults onto spec in place: a missing name, an
// unknown recurrence, a non-positive interval and empty availability lists.
func (g *Generator) Normalize(spec *model.EventSpec) {
	if spec.Name == "" {
		if spec.Disabled {
			spec.Name = DefaultDisabledName
		} else {
			spec.Name = DefaultEventName
		}
	}
	spec.Recurrence = model.ParseRecurrence(string(spec.Recurrence))
	if spec.RecurrenceAttributes.Interval < 1 {
		spec.RecurrenceAttributes.Interval = 1
	}
	if spec.RecurrenceCount < 0 {
		spec.RecurrenceCount = 0
	}
	if len(spec.AvailableMonths) == 0 {
		spec.AvailableMonths = append([]int(nil), g.defaults.AvailableMonths...)
	}
	if len(spec.AvailableDaysOfTheWeek) == 0 {
		spec.AvailableDaysOfTheWeek = append([]int(nil), g.defaults.AvailableWeekdays...)
	}
	if len(spec.AvailableTimeFrames) == 0 {
		spec.AvailableTimeFrames = append([]string(nil), g.defaults.AvailableTimeFrames...)
	}
}

// Generate computes the occurrences of spec. It never fails: missing
// preconditions produce an empty result whose Status names the problem.
//
//   - Non-recurring specs are clamped into the window and produce one
//     occurrence per resource (or one reference line).
//   - Recurring specs are expanded date by date (see recurrence.go) and
//     each instance is clamped into the window on its own.
//   - Overrides recorded on the spec are applied last.
func (g *Generator) Generate(spec model.EventSpec) Result {
	var res Result

	if spec.From.IsZero() {
		res.Status = StatusMissingStart
		return res
	}
	if !spec.SmallestHeader.Unit.Valid() {
		res.Status = StatusMissingHeader
		return res
	}
	if spec.To.IsZero() && !spec.AllDay {
		res.Status = StatusMissingEnd
		return res
	}

	spec.Recurrence = model.ParseRecurrence(string(spec.Recurrence))

	b := &builder{
		spec: &spec,
		rules: availability.NewRules(
			orDefault(spec.AvailableMonths, g.defaults.AvailableMonths),
			orDefault(spec.AvailableDaysOfTheWeek, g.defaults.AvailableWeekdays),
			orDefaultStrings(spec.AvailableTimeFrames, g.defaults.AvailableTimeFrames),
		),
		out: make([]model.Occurrence, 0, len(spec.ResourceNames)),
	}
	b.from = computeFrom(&spec)
	b.to = computeTo(&spec, b.from)

	if spec.IsRecurring() {
		count := spec.RecurrenceCount
		if count == 0 {
			count = g.defaults.RecurrenceCount
		}
		if err := b.expand(count, g.defaults.MaxOccurrencesPerEvent); err != nil {
			// Malformed recurrence: fall back to a single occurrence.
			appLog.Error("occurrence: recurrence expansion failed; using single occurrence", err,
				"event", spec.Name, "recurrence", spec.Recurrence)
			spec.Recurrence = model.RecurrenceNone
			b.out = b.out[:0]
			b.refLines = 0
			b.from = computeFrom(&spec)
			b.to = computeTo(&spec, b.from)
			b.addSingle()
		}
		if b.truncated {
			res.Truncated = true
			appLog.Error("occurrence: truncated series due to cap",
				errors.New("max occurrences reached"),
				"event", spec.Name,
				"cap", g.defaults.MaxOccurrencesPerEvent,
			)
		}
	} else {
		b.addSingle()
	}

	res.Occurrences = applyOverrides(b.out, &spec)
	return res
}

// computeFrom returns the spec's effective start: day start for all-day
// events, never earlier than the window start unless the spec recurs.
func computeFrom(spec *model.EventSpec) time.Time {
	from := spec.From
	if spec.AllDay {
		from = model.StartOfDay(from)
	}
	if !spec.IsRecurring() && !spec.SchedulerStart.IsZero() && from.Before(spec.SchedulerStart) {
		from = spec.SchedulerStart
	}
	return from
}

// computeTo mirrors computeFrom for the end. An end before the start
// collapses to the start's day end.
func computeTo(spec *model.EventSpec, from time.Time) time.Time {
	to := spec.To
	if to.IsZero() {
		to = spec.From
	}
	if spec.AllDay {
		to = model.EndOfDay(to)
	}
	if to.Before(from) {
		to = model.EndOfDay(from)
	}
	if !spec.IsRecurring() && !spec.SchedulerEnd.IsZero() && to.After(spec.SchedulerEnd) {
		to = spec.SchedulerEnd
		if to.Before(from) {
			// Entirely after the window; addOccurrence discards it.
			to = from
		}
	}
	return to
}

// builder accumulates the occurrences of one generation run.
type builder struct {
	spec  *model.EventSpec
	rules availability.Rules

	from time.Time
	to   time.Time

	out       []model.Occurrence
	refLines  int
	generated int
	truncated bool
}

func (b *builder) addSingle() {
	s := b.spec
	// Entirely outside the window. The window test uses the unclamped
	// bounds so that clamping cannot turn "outside" into "touching".
	to := s.To
	if s.AllDay || to.IsZero() || to.Before(s.From) {
		to = b.to
	}
	if !s.SchedulerStart.IsZero() && to.Before(s.SchedulerStart) {
		return
	}
	if !s.SchedulerEnd.IsZero() && b.from.After(s.SchedulerEnd) {
		return
	}
	origin := s.From
	if s.AllDay {
		origin = model.StartOfDay(origin)
	}
	b.addOccurrence(origin, b.from, b.to)
}

// addRecurring materializes one generated date. end is the explicit
// occurrence end, or zero to derive it with computeOccurrenceEnd.
func (b *builder) addRecurring(date, end time.Time) {
	if end.IsZero() {
		end = b.computeOccurrenceEnd(date)
	}
	s := b.spec
	if !s.SchedulerStart.IsZero() && end.Before(s.SchedulerStart) {
		return
	}
	if !s.SchedulerEnd.IsZero() && date.After(s.SchedulerEnd) {
		return
	}
	from, to := date, end
	if !s.SchedulerStart.IsZero() && from.Before(s.SchedulerStart) {
		from = s.SchedulerStart
	}
	if !s.SchedulerEnd.IsZero() && to.After(s.SchedulerEnd) {
		to = s.SchedulerEnd
	}
	b.addOccurrence(date, from, to)
}

// addOccurrence runs the availability filter and fans the interval out to
// one occurrence per resource, or a single reference line.
func (b *builder) addOccurrence(origin, from, to time.Time) {
	if to.Before(from) {
		to = from
	}
	if !availability.IsAllowed(from, to, b.rules, b.spec.SmallestHeader) {
		return
	}

	s := b.spec
	base := model.Occurrence{
		EventName:     s.Name,
		From:          from,
		To:            to,
		OriginalFrom:  origin,
		Title:         s.Title,
		Disabled:      s.Disabled,
		ReferenceLine: s.ReferenceLine,
		Theme:         s.Theme,
		Color:         s.Color,
		IconName:      s.IconName,
	}

	if s.ReferenceLine {
		base.Key = fmt.Sprintf("%s-%d", s.Title, b.refLines)
		b.refLines++
		b.out = append(b.out, base)
		return
	}

	for _, res := range s.ResourceNames {
		occ := base
		occ.ResourceName = res
		occ.Key = OccurrenceKey(s.Name, res, origin)
		b.out = append(b.out, occ)
	}
}

// computeOccurrenceEnd derives the end of a recurring instance starting at
// date from the spec's original from/to time of day.
//
// Recurring instances never span past their own day: when the original end
// time of day is earlier than the original start time of day (the event
// crosses midnight) the end is clamped to 23:59:59 of the instance's day
// instead of wrapping. The one exception is a weekly recurrence without a
// weekday set, whose end moves to the original end's weekday so multi-day
// instances are kept.
func (b *builder) computeOccurrenceEnd(date time.Time) time.Time {
	s := b.spec
	if s.Recurrence == model.RecurrenceWeekly && len(s.RecurrenceAttributes.Weekdays) == 0 {
		dayDiff := (model.ISOWeekday(b.to) - model.ISOWeekday(b.from) + 7) % 7
		end := model.AtClock(date.AddDate(0, 0, dayDiff), b.to)
		if end.Before(date) {
			return endOfDayClamp(date)
		}
		return end
	}
	if model.ClockOf(b.to) < model.ClockOf(b.from) {
		return endOfDayClamp(date)
	}
	return model.AtClock(date, b.to)
}

func endOfDayClamp(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}

// OccurrenceKey builds the key of a resource-bound occurrence.
func OccurrenceKey(eventName, resource string, start time.Time) string {
	return fmt.Sprintf("%s/%s/%d", eventName, resource, start.UnixMilli())
}

// applyOverrides returns a new list with the spec's per-instance overrides
// applied: deleted instances dropped, edited ones patched, added ones
// appended.
func applyOverrides(list []model.Occurrence, spec *model.EventSpec) []model.Occurrence {
	if len(spec.Overrides) == 0 {
		return list
	}

	out := make([]model.Occurrence, 0, len(list))
	for _, occ := range list {
		ov := findOverride(spec.Overrides, occ.ResourceName, occ.OriginalFrom)
		if ov == nil {
			out = append(out, occ)
			continue
		}
		if ov.Deleted {
			continue
		}
		patchOccurrence(&occ, ov)
		if inWindow(spec, occ.From, occ.To) {
			out = append(out, occ)
		}
	}

	for i := range spec.Overrides {
		ov := &spec.Overrides[i]
		if !ov.Added || ov.Deleted {
			continue
		}
		occ := model.Occurrence{
			Key:          ov.Key,
			EventName:    spec.Name,
			ResourceName: ov.ResourceName,
			OriginalFrom: ov.OriginalFrom,
			From:         ov.From,
			To:           ov.To,
			Title:        spec.Title,
			Disabled:     spec.Disabled,
			Theme:        spec.Theme,
			Color:        spec.Color,
			IconName:     spec.IconName,
			Overridden:   true,
		}
		if occ.Key == "" {
			occ.Key = OccurrenceKey(spec.Name, ov.ResourceName, ov.OriginalFrom)
		}
		patchOccurrence(&occ, ov)
		if inWindow(spec, occ.From, occ.To) {
			out = append(out, occ)
		}
	}
	return out
}

func findOverride(overrides []model.OccurrenceOverride, resource string, originalFrom time.Time) *model.OccurrenceOverride {
	for i := range overrides {
		ov := &overrides[i]
		if ov.Added {
			continue
		}
		if ov.Matches(resource, originalFrom) {
			return ov
		}
	}
	return nil
}

func patchOccurrence(occ *model.Occurrence, ov *model.OccurrenceOverride) {
	occ.Overridden = true
	if !ov.From.IsZero() {
		occ.From = ov.From
	}
	if !ov.To.IsZero() {
		occ.To = ov.To
	}
	if occ.To.Before(occ.From) {
		occ.To = occ.From
	}
	if ov.Title != "" {
		occ.Title = ov.Title
	}
	for k, v := range ov.Fields {
		switch k {
		case "title":
			occ.Title = v
		case "color":
			occ.Color = v
		case "theme":
			occ.Theme = v
		case "iconName":
			occ.IconName = v
		default:
			if occ.Fields == nil {
				occ.Fields = make(map[string]string, len(ov.Fields))
			}
			occ.Fields[k] = v
		}
	}
}

func inWindow(spec *model.EventSpec, from, to time.Time) bool {
	if !spec.SchedulerStart.IsZero() && to.Before(spec.SchedulerStart) {
		return false
	}
	if !spec.SchedulerEnd.IsZero() && from.After(spec.SchedulerEnd) {
		return false
	}
	return true
}

func orDefault(v, def []int) []int {
	if len(v) == 0 {
		return def
	}
	return v
}

func orDefaultStrings(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}
