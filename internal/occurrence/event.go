package occurrence

import (
	"slices"
	"time"

	"schedcal/internal/model"
)

// Event pairs an event spec with its derived occurrences. Occurrences are
// recomputed in full whenever the spec changes; every recompute swaps in a
// new slice, so a slice returned earlier is never modified.
type Event struct {
	gen    *Generator
	spec   model.EventSpec
	result Result
}

// NewEvent normalizes spec and computes its occurrences.
func (g *Generator) NewEvent(spec model.EventSpec) *Event {
	spec = spec.Clone()
	g.Normalize(&spec)
	e := &Event{gen: g, spec: spec}
	e.recompute()
	return e
}

func (e *Event) Name() string {
	return e.spec.Name
}

// Spec returns a copy of the current spec.
func (e *Event) Spec() model.EventSpec {
	return e.spec.Clone()
}

// Occurrences returns the current occurrences.
func (e *Event) Occurrences() []model.Occurrence {
	return slices.Clone(e.result.Occurrences)
}

// Status reports whether the last recompute had its preconditions met.
func (e *Event) Status() Status {
	return e.result.Status
}

// Truncated reports whether the last recompute hit the occurrence cap.
func (e *Event) Truncated() bool {
	return e.result.Truncated
}

// Occurrence looks up an occurrence by key.
func (e *Event) Occurrence(key string) (model.Occurrence, bool) {
	for _, occ := range e.result.Occurrences {
		if occ.Key == key {
			return occ, true
		}
	}
	return model.Occurrence{}, false
}

// Update applies a batch of changes to a copy of the spec, normalizes it
// and recomputes the occurrences once.
func (e *Event) Update(fn func(spec *model.EventSpec)) {
	next := e.spec.Clone()
	fn(&next)
	e.gen.Normalize(&next)
	e.spec = next
	e.recompute()
}

// SetWindow moves the visible window and re-derives the occurrences.
func (e *Event) SetWindow(start, end time.Time, header model.Header) {
	e.Update(func(s *model.EventSpec) {
		s.SchedulerStart = start
		s.SchedulerEnd = end
		s.SmallestHeader = header
	})
}

// RemoveOccurrence drops the occurrence with key from the current list.
// The removal lasts until the next recompute; persist it on the spec with
// an override to keep it.
func (e *Event) RemoveOccurrence(key string) bool {
	idx := slices.IndexFunc(e.result.Occurrences, func(o model.Occurrence) bool {
		return o.Key == key
	})
	if idx < 0 {
		return false
	}
	next := make([]model.Occurrence, 0, len(e.result.Occurrences)-1)
	next = append(next, e.result.Occurrences[:idx]...)
	next = append(next, e.result.Occurrences[idx+1:]...)
	e.result.Occurrences = next
	return true
}

// Detach applies fn, which must record the removal of the instance with
// key, to a copy of the spec and splices that instance out of the current
// list without regenerating the series.
func (e *Event) Detach(key string, fn func(spec *model.EventSpec)) bool {
	if _, ok := e.Occurrence(key); !ok {
		return false
	}
	next := e.spec.Clone()
	fn(&next)
	e.spec = next
	return e.RemoveOccurrence(key)
}

// Recompute re-derives the occurrences from the unchanged spec.
func (e *Event) Recompute() {
	e.recompute()
}

func (e *Event) recompute() {
	e.result = e.gen.Generate(e.spec)
}
