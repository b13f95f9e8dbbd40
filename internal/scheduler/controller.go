// Package scheduler owns the event collection and the single active
// selection, and turns create, edit, delete, drag and resize interactions
// into spec changes and notifications.
package scheduler

import (
	"slices"
	"time"

	"github.com/google/uuid"

	appLog "schedcal/internal/log"
	"schedcal/internal/model"
	"schedcal/internal/occurrence"
)

// Controller is not safe for concurrent use.
//
// Every change swaps in a new event slice; slices returned by Events and
// Occurrences are never modified afterwards.
type Controller struct {
	gen    *occurrence.Generator
	events []*occurrence.Event
	window Window
	sel    Selection

	notifier Notifier
	focuser  Focuser
	resolver CellResolver
	newKey   func() string
}

type Option func(*Controller)

func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

func WithFocuser(f Focuser) Option {
	return func(c *Controller) { c.focuser = f }
}

func WithCellResolver(r CellResolver) Option {
	return func(c *Controller) { c.resolver = r }
}

// WithKeyFunc replaces the generator of fresh keys (random UUIDs).
func WithKeyFunc(fn func() string) Option {
	return func(c *Controller) { c.newKey = fn }
}

func New(gen *occurrence.Generator, window Window, opts ...Option) *Controller {
	c := &Controller{
		gen:      gen,
		window:   window,
		notifier: nopNotifier{},
		newKey:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) location() *time.Location {
	if !c.window.Start.IsZero() {
		return c.window.Start.Location()
	}
	return time.UTC
}

// Window returns the visible window.
func (c *Controller) Window() Window {
	return c.window
}

// Selection returns a copy of the active selection.
func (c *Controller) Selection() Selection {
	s := c.sel
	if s.DraftValues != nil {
		s.DraftValues = cloneDraft(s.DraftValues)
	}
	return s
}

// Events returns copies of all event specs, in collection order.
func (c *Controller) Events() []model.EventSpec {
	out := make([]model.EventSpec, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev.Spec())
	}
	return out
}

// Event returns a copy of the named event spec.
func (c *Controller) Event(name string) (model.EventSpec, bool) {
	if _, ev := c.find(name); ev != nil {
		return ev.Spec(), true
	}
	return model.EventSpec{}, false
}

// Occurrences returns the occurrences of all events. While a drag or resize
// is in progress the moved occurrence is reported at its current position.
func (c *Controller) Occurrences() []model.Occurrence {
	var out []model.Occurrence
	moving := c.sel.State == StateDragging || c.sel.State == StateResizing
	for _, ev := range c.events {
		for _, occ := range ev.Occurrences() {
			if moving && occ.Key == c.sel.current.Key {
				occ = c.sel.current
			}
			out = append(out, occ)
		}
	}
	return out
}

// OccurrencesIn computes the occurrences of every event for w. The
// controller's own window and derived lists are left as they are.
func (c *Controller) OccurrencesIn(w Window) []model.Occurrence {
	var out []model.Occurrence
	for _, ev := range c.events {
		spec := ev.Spec()
		spec.SchedulerStart = w.Start
		spec.SchedulerEnd = w.End
		spec.SmallestHeader = w.Header
		out = append(out, c.gen.Generate(spec).Occurrences...)
	}
	return out
}

// EventOccurrences returns the occurrences of one event.
func (c *Controller) EventOccurrences(name string) ([]model.Occurrence, bool) {
	if _, ev := c.find(name); ev != nil {
		return ev.Occurrences(), true
	}
	return nil, false
}

// SetWindow moves the visible window and re-derives every event.
func (c *Controller) SetWindow(w Window) {
	c.window = w
	for _, ev := range c.events {
		ev.SetWindow(w.Start, w.End, w.Header)
	}
	c.sel.draft.SchedulerStart = w.Start
	c.sel.draft.SchedulerEnd = w.End
	c.sel.draft.SmallestHeader = w.Header
	c.events = slices.Clone(c.events)
}

// ReplaceEvents swaps the whole collection without notifications. Used to
// load persisted or imported events.
func (c *Controller) ReplaceEvents(specs []model.EventSpec) {
	next := make([]*occurrence.Event, 0, len(specs))
	for _, spec := range specs {
		next = append(next, c.newEvent(spec))
	}
	c.events = next
	c.sel = Selection{}
}

// CreateEvent normalizes spec, adds it to the collection and returns the
// name it was stored under.
func (c *Controller) CreateEvent(spec model.EventSpec) string {
	ev := c.newEvent(spec)
	c.events = append(slices.Clone(c.events), ev)
	appLog.Debug("scheduler: event created", "event", ev.Name())
	return ev.Name()
}

// DeleteEvent removes the named event, or the selected one when name is
// empty. It reports whether an event was removed.
func (c *Controller) DeleteEvent(name string) bool {
	var idx int
	if name == "" {
		if c.sel.pending != nil {
			idx = slices.Index(c.events, c.sel.pending)
		} else {
			idx, _ = c.find(c.sel.EventName)
		}
	} else {
		idx, _ = c.find(name)
	}
	if idx < 0 {
		return false
	}

	removed := c.events[idx]
	c.events = slices.Delete(slices.Clone(c.events), idx, idx+1)
	c.sel = Selection{}
	appLog.Debug("scheduler: event deleted", "event", removed.Name())
	c.notifier.Notify(Notification{Type: EventDelete, Name: removed.Name()})
	return true
}

// NewEvent starts a new event on the cell under the pointer. It reports
// false when the coordinates do not resolve to a cell.
func (c *Controller) NewEvent(x, y float64, showDialog bool) bool {
	if c.resolver == nil {
		return false
	}
	cell, ok := c.resolver.Resolve(x, y)
	if !ok {
		return false
	}
	return c.NewEventAt(cell, showDialog)
}

// NewEventAt starts a new event on cell. The provisional event becomes the
// selection; with showDialog it is also added to the collection right away
// so that it renders while being edited.
func (c *Controller) NewEventAt(cell Cell, showDialog bool) bool {
	if cell.RowKey == "" || cell.End < cell.Start {
		return false
	}
	c.dropPending()

	from, to := cell.Times(c.location())
	spec := model.EventSpec{
		From:           from,
		To:             to,
		ResourceNames:  []string{cell.RowKey},
		SchedulerStart: c.window.Start,
		SchedulerEnd:   c.window.End,
		SmallestHeader: c.window.Header,
	}
	c.gen.Normalize(&spec)

	c.sel = Selection{
		State:       StateSelecting,
		NewEvent:    true,
		EventName:   spec.Name,
		DraftValues: map[string]any{},
		draft:       spec,
	}
	if showDialog {
		ev := c.gen.NewEvent(spec)
		c.events = append(slices.Clone(c.events), ev)
		c.sel.pending = ev
		c.sel.State = StateEditing
	}
	return true
}

// Hover selects an event without opening it.
func (c *Controller) Hover(name, key string) bool {
	if c.sel.State != StateIdle && c.sel.State != StateSelecting {
		return false
	}
	if _, ev := c.find(name); ev == nil {
		return false
	}
	c.sel = Selection{State: StateSelecting, EventName: name, OccurrenceKey: key}
	return true
}

// Leave clears a hover selection.
func (c *Controller) Leave() {
	if c.sel.State == StateSelecting && !c.sel.NewEvent {
		c.sel = Selection{}
	}
}

// Edit opens the named event for editing; key optionally narrows the edit
// to one occurrence for SaveOccurrence. An empty name continues with the
// pending new event.
func (c *Controller) Edit(name, key string) bool {
	if name == "" {
		if !c.sel.NewEvent {
			return false
		}
		c.sel.State = StateEditing
		if c.sel.DraftValues == nil {
			c.sel.DraftValues = map[string]any{}
		}
		return true
	}
	if _, ev := c.find(name); ev == nil {
		return false
	}
	c.dropPending()
	c.sel = Selection{
		State:         StateEditing,
		EventName:     name,
		OccurrenceKey: key,
		DraftValues:   map[string]any{},
	}
	return true
}

// SetDraftValue records one edited field of the selection.
func (c *Controller) SetDraftValue(key string, value any) bool {
	if c.sel.State != StateEditing {
		return false
	}
	if c.sel.DraftValues == nil {
		c.sel.DraftValues = map[string]any{}
	}
	c.sel.DraftValues[key] = value
	return true
}

// SetDraftValues records several edited fields at once.
func (c *Controller) SetDraftValues(values map[string]any) bool {
	if c.sel.State != StateEditing {
		return false
	}
	for k, v := range values {
		c.SetDraftValue(k, v)
	}
	return true
}

// Cancel abandons the selection. A drag or resize is rolled back and a
// materialized new event is removed again.
func (c *Controller) Cancel() {
	switch c.sel.State {
	case StateDragging, StateResizing:
		c.CancelDrag()
		return
	}
	c.dropPending()
	c.sel = Selection{}
}

// SaveEvent merges the draft values onto the selected event. A new event
// gets its final name from its title and a fresh key and is announced with
// eventcreate; an existing one with eventchange.
func (c *Controller) SaveEvent() bool {
	if c.sel.State != StateEditing {
		return false
	}
	draft := c.sel.DraftValues
	loc := c.location()

	if c.sel.NewEvent {
		spec := c.sel.draft
		if c.sel.pending != nil {
			spec = c.sel.pending.Spec()
		}
		applyDraft(&spec, draft, loc)
		spec.Name = c.newEventName(spec.Title)

		ev := c.newEvent(spec)
		next := slices.Clone(c.events)
		if i := slices.Index(next, c.sel.pending); i >= 0 {
			next[i] = ev
		} else {
			next = append(next, ev)
		}
		c.events = next
		c.sel = Selection{}

		saved := ev.Spec()
		appLog.Debug("scheduler: new event saved", "event", saved.Name)
		c.notifier.Notify(Notification{
			Type:  EventCreate,
			Name:  saved.Name,
			Event: &saved,
			From:  saved.From.Format(time.RFC3339),
			To:    saved.To.Format(time.RFC3339),
		})
		return true
	}

	_, ev := c.find(c.sel.EventName)
	if ev == nil {
		c.sel = Selection{}
		return false
	}
	ev.Update(func(s *model.EventSpec) { applyDraft(s, draft, loc) })
	c.events = slices.Clone(c.events)
	c.sel = Selection{}

	c.notifier.Notify(Notification{
		Type:            EventChange,
		Name:            ev.Name(),
		DraftValues:     draft,
		RecurrenceDates: recurrenceDates(ev),
	})
	return true
}

// SaveOccurrence applies the draft values to the selected occurrence only.
// The series' own fields and recurrence rule are left untouched; the edit
// is stored as an override on the spec.
func (c *Controller) SaveOccurrence() bool {
	if c.sel.State != StateEditing || c.sel.OccurrenceKey == "" {
		return false
	}
	draft := c.sel.DraftValues
	_, ev := c.find(c.sel.EventName)
	if ev == nil {
		c.sel = Selection{}
		return false
	}
	occ, ok := ev.Occurrence(c.sel.OccurrenceKey)
	if !ok {
		c.sel = Selection{}
		return false
	}

	c.overrideOccurrence(ev, occ, draft)
	c.sel = Selection{}
	return true
}

// FocusEvent hands focus to the named event's element.
func (c *Controller) FocusEvent(name string) bool {
	if _, ev := c.find(name); ev == nil || c.focuser == nil {
		return false
	}
	c.focuser.Focus(name)
	return true
}

func (c *Controller) overrideOccurrence(ev *occurrence.Event, occ model.Occurrence, draft map[string]any) {
	if detachesOnly(draft) {
		ev.Detach(occ.Key, func(s *model.EventSpec) {
			removeInstance(s, occ.ResourceName, occ.OriginalFrom)
		})
	} else {
		loc := c.location()
		ev.Update(func(s *model.EventSpec) {
			applyOccurrenceDraft(s, occ, draft, loc, c.newKey)
		})
	}
	c.events = slices.Clone(c.events)

	appLog.Debug("scheduler: occurrence saved", "event", ev.Name(), "key", occ.Key)
	c.notifier.Notify(Notification{
		Type:            EventChange,
		Name:            ev.Name(),
		DraftValues:     draft,
		RecurrenceDates: []time.Time{occ.OriginalFrom},
	})
}

func (c *Controller) newEvent(spec model.EventSpec) *occurrence.Event {
	spec.SchedulerStart = c.window.Start
	spec.SchedulerEnd = c.window.End
	spec.SmallestHeader = c.window.Header
	return c.gen.NewEvent(spec)
}

func (c *Controller) newEventName(title string) string {
	slug := Slugify(title)
	if slug == "" {
		slug = occurrence.DefaultEventName
	}
	key := c.newKey()
	if len(key) > 8 {
		key = key[:8]
	}
	return slug + "-" + key
}

// dropPending removes a materialized but unsaved new event.
func (c *Controller) dropPending() {
	if c.sel.pending == nil {
		return
	}
	if i := slices.Index(c.events, c.sel.pending); i >= 0 {
		c.events = slices.Delete(slices.Clone(c.events), i, i+1)
	}
	c.sel.pending = nil
}

func (c *Controller) find(name string) (int, *occurrence.Event) {
	if name == "" {
		return -1, nil
	}
	for i, ev := range c.events {
		if ev.Name() == name {
			return i, ev
		}
	}
	return -1, nil
}

// findOccurrence locates an occurrence by key across all events.
func (c *Controller) findOccurrence(key string) (*occurrence.Event, model.Occurrence, bool) {
	for _, ev := range c.events {
		if occ, ok := ev.Occurrence(key); ok {
			return ev, occ, true
		}
	}
	return nil, model.Occurrence{}, false
}

// recurrenceDates lists the distinct series dates of a recurring event.
func recurrenceDates(ev *occurrence.Event) []time.Time {
	spec := ev.Spec()
	if !spec.IsRecurring() {
		return nil
	}
	var out []time.Time
	for _, occ := range ev.Occurrences() {
		if !slices.ContainsFunc(out, occ.OriginalFrom.Equal) {
			out = append(out, occ.OriginalFrom)
		}
	}
	return out
}

func cloneDraft(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
