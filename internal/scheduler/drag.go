package scheduler

import (
	"slices"
	"time"

	appLog "schedcal/internal/log"
	"schedcal/internal/model"
)

// StartDrag picks up the occurrence with key. Reference lines cannot be
// moved.
func (c *Controller) StartDrag(key string) bool {
	return c.startMove(key, StateDragging, EdgeEnd)
}

// StartResize grabs one edge of the occurrence with key.
func (c *Controller) StartResize(key string, edge Edge) bool {
	return c.startMove(key, StateResizing, edge)
}

func (c *Controller) startMove(key string, state State, edge Edge) bool {
	if c.sel.State == StateDragging || c.sel.State == StateResizing {
		return false
	}
	ev, occ, ok := c.findOccurrence(key)
	if !ok || occ.ReferenceLine {
		return false
	}

	next := Selection{
		State:         state,
		EventName:     ev.Name(),
		OccurrenceKey: key,
		origin:        occ,
		current:       occ,
		edge:          edge,
		event:         ev,
	}
	if c.sel.pending != nil && c.sel.pending == ev {
		next.NewEvent = true
		next.pending = c.sel.pending
		next.draft = c.sel.draft
		next.DraftValues = c.sel.DraftValues
	} else {
		c.dropPending()
	}
	c.sel = next
	return true
}

// DragTo moves the dragged occurrence so that it starts at cell, keeping
// its duration. Positions outside the window are clamped to its edges.
func (c *Controller) DragTo(cell Cell) (model.Occurrence, bool) {
	if c.sel.State != StateDragging || cell.End < cell.Start {
		return c.sel.current, false
	}
	dur := c.sel.origin.To.Sub(c.sel.origin.From)
	from, _ := cell.Times(c.location())
	to := from.Add(dur)

	if start := c.window.Start; !start.IsZero() && from.Before(start) {
		from, to = start, start.Add(dur)
	}
	if end := c.window.End; !end.IsZero() && to.After(end) {
		from, to = end.Add(-dur), end
		if start := c.window.Start; !start.IsZero() && from.Before(start) {
			from = start
		}
	}

	c.sel.current.From = from
	c.sel.current.To = to
	if cell.RowKey != "" {
		c.sel.current.ResourceName = cell.RowKey
	}
	return c.sel.current, true
}

// ResizeTo moves the grabbed edge to cell. An edge that would cross the
// other one stays at its last valid position.
func (c *Controller) ResizeTo(cell Cell) (model.Occurrence, bool) {
	if c.sel.State != StateResizing || cell.End < cell.Start {
		return c.sel.current, false
	}
	start, end := cell.Times(c.location())
	cur := &c.sel.current

	switch c.sel.edge {
	case EdgeStart:
		if w := c.window.Start; !w.IsZero() && start.Before(w) {
			start = w
		}
		if !start.Before(cur.To) {
			return *cur, false
		}
		cur.From = start
	default:
		if w := c.window.End; !w.IsZero() && end.After(w) {
			end = w
		}
		if !end.After(cur.From) {
			return *cur, false
		}
		cur.To = end
	}
	return *cur, true
}

// EndDrag commits the drag. A single event moves as a whole; one instance
// of a series is stored as an override.
func (c *Controller) EndDrag() bool {
	if c.sel.State != StateDragging {
		return false
	}
	return c.commitMove()
}

// EndResize commits the resize like EndDrag.
func (c *Controller) EndResize() bool {
	if c.sel.State != StateResizing {
		return false
	}
	return c.commitMove()
}

// CancelDrag rolls a drag or resize back to where it started.
func (c *Controller) CancelDrag() {
	if c.sel.State != StateDragging && c.sel.State != StateResizing {
		return
	}
	appLog.Debug("scheduler: move cancelled", "key", c.sel.origin.Key)
	c.restoreAfterMove()
}

func (c *Controller) commitMove() bool {
	origin, cur, ev := c.sel.origin, c.sel.current, c.sel.event
	isNew := c.sel.NewEvent
	if origin.From.Equal(cur.From) && origin.To.Equal(cur.To) && origin.ResourceName == cur.ResourceName {
		c.restoreAfterMove()
		return false
	}
	if !slices.Contains(c.events, ev) {
		c.sel = Selection{}
		return false
	}

	loc := c.location()
	draft := map[string]any{
		DraftFrom:      cur.From.In(loc).Format(time.RFC3339),
		DraftTo:        cur.To.In(loc).Format(time.RFC3339),
		DraftKeyFields: []string{cur.ResourceName},
	}

	spec := ev.Spec()
	if spec.IsRecurring() && !isNew {
		c.restoreAfterMove()
		c.overrideOccurrence(ev, origin, draft)
		return true
	}

	fromDelta := cur.From.Sub(origin.From)
	toDelta := cur.To.Sub(origin.To)
	ev.Update(func(s *model.EventSpec) {
		if s.To.IsZero() {
			s.To = s.From
		}
		s.From = s.From.Add(fromDelta)
		s.To = s.To.Add(toDelta)
		s.ResourceNames = moveResource(s.ResourceNames, origin.ResourceName, cur.ResourceName)
	})
	c.events = slices.Clone(c.events)
	c.restoreAfterMove()

	if isNew {
		return true
	}
	c.notifier.Notify(Notification{
		Type:        EventChange,
		Name:        ev.Name(),
		DraftValues: draft,
	})
	return true
}

// restoreAfterMove leaves the move state. A new event goes back to being
// edited; anything else returns to idle.
func (c *Controller) restoreAfterMove() {
	if c.sel.NewEvent && c.sel.pending != nil {
		c.sel = Selection{
			State:       StateEditing,
			EventName:   c.sel.pending.Name(),
			NewEvent:    true,
			DraftValues: c.sel.DraftValues,
			draft:       c.sel.draft,
			pending:     c.sel.pending,
		}
		return
	}
	c.sel = Selection{}
}

// moveResource replaces from with to in list, keeping list free of
// duplicates.
func moveResource(list []string, from, to string) []string {
	if from == to || to == "" {
		return list
	}
	out := make([]string, 0, len(list))
	for _, r := range list {
		if r == from {
			r = to
		}
		if !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out
}
