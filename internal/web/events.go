package web

import (
	"bytes"
	"net/http"
	"time"

	"schedcal/internal/ics"
	"schedcal/internal/layout"
	appLog "schedcal/internal/log"
	"schedcal/internal/model"
	"schedcal/internal/scheduler"
)

// occurrencesResponse is the JSON response shape for /api/occurrences.
type occurrencesResponse struct {
	RangeStart  time.Time          `json:"rangeStart"`
	RangeEnd    time.Time          `json:"rangeEnd"`
	TimeZone    string             `json:"timeZone"`
	Occurrences []model.Occurrence `json:"occurrences"`
	Rows        []layout.Row       `json:"rows"`
}

// eventResponse is one event spec with its current occurrences.
type eventResponse struct {
	Event       model.EventSpec    `json:"event"`
	Occurrences []model.Occurrence `json:"occurrences"`
}

type eventsResponse struct {
	Events []model.EventSpec `json:"events"`
}

// editRequest carries draft values for a series or occurrence edit.
type editRequest struct {
	DraftValues map[string]any `json:"draftValues"`
}

// cellRequest creates an event on a grid cell.
type cellRequest struct {
	Cell        scheduler.Cell `json:"cell"`
	DraftValues map[string]any `json:"draftValues"`
}

// moveRequest drags or resizes one occurrence onto a cell.
type moveRequest struct {
	Key  string         `json:"key"`
	Edge string         `json:"edge,omitempty"`
	Cell scheduler.Cell `json:"cell"`
}

// handleOccurrences returns the laid-out occurrences of the visible window.
//
// GET /api/occurrences?start=2024-01-01T00:00:00Z&end=2024-01-08T00:00:00Z
//   - start, end: RFC 3339. When given, occurrences are computed for that
//     range instead of the visible window, which stays where it is. Both or
//     neither must be set.
func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rawStart, rawEnd := q.Get("start"), q.Get("end")
	if (rawStart == "") != (rawEnd == "") {
		writeError(w, http.StatusBadRequest, "start and end must be given together")
		return
	}

	var start, end time.Time
	if rawStart != "" {
		var err error
		if start, err = time.Parse(time.RFC3339, rawStart); err != nil {
			writeError(w, http.StatusBadRequest, "invalid start")
			return
		}
		if end, err = time.Parse(time.RFC3339, rawEnd); err != nil {
			writeError(w, http.StatusBadRequest, "invalid end")
			return
		}
		if end.Before(start) {
			writeError(w, http.StatusBadRequest, "end before start")
			return
		}
	}

	s.ctrlMu.Lock()
	window := s.ctrl.Window()
	var occs []model.Occurrence
	if rawStart != "" {
		window.Start = start.In(s.loc)
		window.End = end.In(s.loc)
		occs = s.ctrl.OccurrencesIn(window)
	} else {
		occs = s.ctrl.Occurrences()
	}
	s.ctrlMu.Unlock()

	lay := layout.Assign(occs, layout.Options{LaneHeight: s.cfg.LaneHeight})
	resp := occurrencesResponse{
		RangeStart:  window.Start,
		RangeEnd:    window.End,
		TimeZone:    s.loc.String(),
		Occurrences: lay.Occurrences,
		Rows:        lay.Rows,
	}
	if resp.Occurrences == nil {
		resp.Occurrences = []model.Occurrence{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListEvents(w http.ResponseWriter, _ *http.Request) {
	s.ctrlMu.Lock()
	specs := s.ctrl.Events()
	s.ctrlMu.Unlock()

	writeJSON(w, http.StatusOK, eventsResponse{Events: specs})
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	s.ctrlMu.Lock()
	defer s.ctrlMu.Unlock()
	s.writeEvent(w, http.StatusOK, r.PathValue("name"))
}

// handleCreateEvent stores a complete event spec.
//
// POST /api/events with an EventSpec body. The name is required and must
// not be taken.
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var spec model.EventSpec
	if err := decodeJSON(w, r, &spec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if spec.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	s.ctrlMu.Lock()
	defer s.ctrlMu.Unlock()
	if _, ok := s.ctrl.Event(spec.Name); ok {
		writeError(w, http.StatusConflict, "event already exists")
		return
	}
	s.ctrl.Cancel()
	name := s.ctrl.CreateEvent(spec)
	s.changed()
	s.writeEvent(w, http.StatusCreated, name)
}

// handleCreateAtCell runs the new-event flow: select a cell, fill in the
// draft and save. The event is named after its title.
func (s *Server) handleCreateAtCell(w http.ResponseWriter, r *http.Request) {
	var req cellRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.ctrlMu.Lock()
	defer s.ctrlMu.Unlock()
	s.ctrl.Cancel()
	if !s.ctrl.NewEventAt(req.Cell, false) {
		writeError(w, http.StatusBadRequest, "invalid cell")
		return
	}
	s.ctrl.Edit("", "")
	s.ctrl.SetDraftValues(req.DraftValues)
	if !s.ctrl.SaveEvent() {
		s.ctrl.Cancel()
		writeError(w, http.StatusInternalServerError, "failed to save event")
		return
	}

	// SaveEvent appends a new event that was never materialized.
	events := s.ctrl.Events()
	s.changed()
	s.writeEvent(w, http.StatusCreated, events[len(events)-1].Name)
}

// handleSaveEvent applies draft values to the whole series.
//
// PUT /api/events/{name} with {"draftValues": {...}}.
func (s *Server) handleSaveEvent(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var req editRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.ctrlMu.Lock()
	defer s.ctrlMu.Unlock()
	if s.readOnly(name) {
		writeError(w, http.StatusForbidden, "imported events are read-only")
		return
	}
	s.ctrl.Cancel()
	if !s.ctrl.Edit(name, "") {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	s.ctrl.SetDraftValues(req.DraftValues)
	if !s.ctrl.SaveEvent() {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	s.changed()
	s.writeEvent(w, http.StatusOK, name)
}

// handleSaveOccurrence applies draft values to one occurrence only.
//
// PUT /api/events/{name}/occurrences/{key} with {"draftValues": {...}}.
func (s *Server) handleSaveOccurrence(w http.ResponseWriter, r *http.Request) {
	name, key := r.PathValue("name"), r.PathValue("key")
	var req editRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.ctrlMu.Lock()
	defer s.ctrlMu.Unlock()
	if s.readOnly(name) {
		writeError(w, http.StatusForbidden, "imported events are read-only")
		return
	}
	s.ctrl.Cancel()
	if !s.ctrl.Edit(name, key) {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	s.ctrl.SetDraftValues(req.DraftValues)
	if !s.ctrl.SaveOccurrence() {
		writeError(w, http.StatusNotFound, "occurrence not found")
		return
	}
	s.changed()
	s.writeEvent(w, http.StatusOK, name)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	s.ctrlMu.Lock()
	defer s.ctrlMu.Unlock()
	if s.readOnly(name) {
		writeError(w, http.StatusForbidden, "imported events are read-only")
		return
	}
	s.ctrl.Cancel()
	if !s.ctrl.DeleteEvent(name) {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	s.changed()
	w.WriteHeader(http.StatusNoContent)
}

// handleDrag moves an occurrence so that it starts at the given cell. A
// drop on the original position is a no-op.
func (s *Server) handleDrag(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.ctrlMu.Lock()
	defer s.ctrlMu.Unlock()
	s.ctrl.Cancel()
	if !s.ctrl.StartDrag(req.Key) {
		writeError(w, http.StatusNotFound, "occurrence not found")
		return
	}
	name := s.ctrl.Selection().EventName
	if s.readOnly(name) {
		s.ctrl.Cancel()
		writeError(w, http.StatusForbidden, "imported events are read-only")
		return
	}
	if _, ok := s.ctrl.DragTo(req.Cell); !ok {
		s.ctrl.Cancel()
		writeError(w, http.StatusBadRequest, "invalid cell")
		return
	}
	if s.ctrl.EndDrag() {
		s.changed()
	}
	s.writeEvent(w, http.StatusOK, name)
}

// handleResize moves one edge of an occurrence. edge is "start" or "end"
// (default). For a start resize the cell start is used, otherwise its end.
func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	var edge scheduler.Edge
	switch req.Edge {
	case "", "end":
		edge = scheduler.EdgeEnd
	case "start":
		edge = scheduler.EdgeStart
	default:
		writeError(w, http.StatusBadRequest, "edge must be start or end")
		return
	}

	s.ctrlMu.Lock()
	defer s.ctrlMu.Unlock()
	s.ctrl.Cancel()
	if !s.ctrl.StartResize(req.Key, edge) {
		writeError(w, http.StatusNotFound, "occurrence not found")
		return
	}
	name := s.ctrl.Selection().EventName
	if s.readOnly(name) {
		s.ctrl.Cancel()
		writeError(w, http.StatusForbidden, "imported events are read-only")
		return
	}
	if _, ok := s.ctrl.ResizeTo(req.Cell); !ok {
		s.ctrl.Cancel()
		writeError(w, http.StatusBadRequest, "resize would cross the other edge")
		return
	}
	if s.ctrl.EndResize() {
		s.changed()
	}
	s.writeEvent(w, http.StatusOK, name)
}

// handleCalendar exports every occurrence of the visible window as an
// iCalendar feed.
func (s *Server) handleCalendar(w http.ResponseWriter, _ *http.Request) {
	s.ctrlMu.Lock()
	occs := s.ctrl.Occurrences()
	s.ctrlMu.Unlock()

	var buf bytes.Buffer
	if err := ics.Export(&buf, occs, ics.ExportOptions{Name: "schedcal"}); err != nil {
		appLog.Error("ics export failed", err)
		writeError(w, http.StatusInternalServerError, "failed to export calendar")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="schedcal.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// writeEvent writes the named event and its occurrences. Callers hold
// ctrlMu.
func (s *Server) writeEvent(w http.ResponseWriter, status int, name string) {
	spec, ok := s.ctrl.Event(name)
	if !ok {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	occs, _ := s.ctrl.EventOccurrences(name)
	if occs == nil {
		occs = []model.Occurrence{}
	}
	writeJSON(w, status, eventResponse{Event: spec, Occurrences: occs})
}
