package scheduler

import (
	"time"

	"schedcal/internal/model"
	"schedcal/internal/occurrence"
)

// State is the controller's interaction state.
type State string

const (
	StateIdle      State = ""
	StateSelecting State = "selecting"
	StateEditing   State = "editing"
	StateDragging  State = "dragging"
	StateResizing  State = "resizing"
)

// Edge selects which end of an occurrence a resize moves.
type Edge int

const (
	EdgeEnd Edge = iota
	EdgeStart
)

// Selection is the single active event or occurrence.
type Selection struct {
	State         State
	EventName     string
	OccurrenceKey string
	// NewEvent marks an event that has not been saved yet.
	NewEvent bool
	// DraftValues accumulates edits until SaveEvent or SaveOccurrence.
	DraftValues map[string]any

	// draft is the provisional spec of a new event; pending is set once
	// it has been materialized into the collection.
	draft   model.EventSpec
	pending *occurrence.Event

	// origin is the occurrence as it was when the drag or resize began;
	// current is where it is now.
	origin  model.Occurrence
	current model.Occurrence
	edge    Edge
	event   *occurrence.Event
}

// Window is the visible part of the timeline.
type Window struct {
	Start  time.Time
	End    time.Time
	Header model.Header
}

// Cell is one resolved grid cell: a row key and a millisecond interval.
type Cell struct {
	RowKey string `json:"rowKey"`
	Start  int64  `json:"start"`
	End    int64  `json:"end"`
}

// Times returns the cell bounds in loc.
func (c Cell) Times(loc *time.Location) (time.Time, time.Time) {
	return time.UnixMilli(c.Start).In(loc), time.UnixMilli(c.End).In(loc)
}

// CellResolver maps pixel coordinates to a grid cell.
type CellResolver interface {
	Resolve(x, y float64) (Cell, bool)
}

// Focuser moves input focus to the element rendering an event.
type Focuser interface {
	Focus(name string)
}

// GridResolver resolves cells on a uniform grid: one row per RowKeys entry,
// one column per CellDuration starting at Origin.
type GridResolver struct {
	Origin       time.Time
	CellDuration time.Duration
	CellWidth    float64
	RowHeight    float64
	RowKeys      []string
	Columns      int
}

func (g GridResolver) Resolve(x, y float64) (Cell, bool) {
	if x < 0 || y < 0 || g.CellWidth <= 0 || g.RowHeight <= 0 || g.CellDuration <= 0 {
		return Cell{}, false
	}
	col := int(x / g.CellWidth)
	row := int(y / g.RowHeight)
	if row >= len(g.RowKeys) || (g.Columns > 0 && col >= g.Columns) {
		return Cell{}, false
	}
	start := g.Origin.Add(time.Duration(col) * g.CellDuration)
	return Cell{
		RowKey: g.RowKeys[row],
		Start:  start.UnixMilli(),
		End:    start.Add(g.CellDuration).UnixMilli(),
	}, true
}
