package ics

import (
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"schedcal/internal/model"
)

// ExportOptions describe the generated calendar.
type ExportOptions struct {
	Name string
	// Now stamps DTSTAMP; zero means time.Now.
	Now time.Time
}

// Export writes occurrences as a PUBLISH calendar with one VEVENT per
// occurrence. Reference lines are skipped.
func Export(w io.Writer, occs []model.Occurrence, opts ExportOptions) error {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	cal := ical.NewCalendarFor("schedcal")
	cal.SetMethod(ical.MethodPublish)
	if opts.Name != "" {
		cal.SetName(opts.Name)
		cal.SetXWRCalName(opts.Name)
	}

	for _, occ := range occs {
		if occ.ReferenceLine {
			continue
		}
		ev := cal.AddEvent(occ.Key + "@schedcal")
		ev.SetDtStampTime(now)
		ev.SetStartAt(occ.From)
		ev.SetEndAt(occ.To)
		ev.SetSummary(occ.Title)
		ev.AddCategory(occ.EventName)
		if occ.ResourceName != "" {
			ev.SetResources(occ.ResourceName)
		}
		if occ.Color != "" {
			ev.SetColor(occ.Color)
		}
		if occ.Disabled {
			ev.SetStatus(ical.ObjectStatusCancelled)
		}
	}
	return cal.SerializeTo(w)
}
