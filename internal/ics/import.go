package ics

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	appLog "schedcal/internal/log"
	"schedcal/internal/model"
)

// ImportOptions control how parsed VEVENTs become event specs.
type ImportOptions struct {
	// Resource is the row every imported event renders on.
	Resource string
	// Location is used for RRULE values without a zone.
	Location *time.Location
}

// ToSpecs turns parsed VEVENTs into event specs. Events sharing a UID are
// merged: the series VEVENT carries the recurrence, EXDATEs become deleted
// instances and RECURRENCE-ID VEVENTs become instance overrides. A
// recurrence rule that cannot be expressed is logged and the series is
// imported as its first instance.
func ToSpecs(events []ParsedEvent, opts ImportOptions) []model.EventSpec {
	if opts.Location == nil {
		opts.Location = time.Local
	}

	var order []string
	base := make(map[string]ParsedEvent)
	overrides := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if !slices.Contains(order, ev.UID) {
			order = append(order, ev.UID)
		}
		if ev.IsOverride() {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		// Keep the highest SEQUENCE when a UID repeats.
		if prev, ok := base[ev.UID]; !ok || ev.Seq >= prev.Seq {
			base[ev.UID] = ev
		}
	}

	out := make([]model.EventSpec, 0, len(base))
	for _, uid := range order {
		ev, ok := base[uid]
		if !ok {
			// Overrides whose series is not in the feed stand alone.
			for _, ov := range overrides[uid] {
				spec := specFromEvent(ov, opts)
				spec.Name = SpecName(ov.Source.ID, uid+"@"+ov.RecurrenceID.UTC().Format(time.RFC3339))
				out = append(out, spec)
			}
			continue
		}

		spec := specFromEvent(ev, opts)
		if ev.RawRRule != "" {
			if err := applyRRule(&spec, ev.RawRRule, opts.Location); err != nil {
				appLog.Error("ics: unsupported RRULE; importing first instance only", err,
					"uid", uid, "rrule", ev.RawRRule)
			}
		}
		if spec.IsRecurring() {
			for _, ex := range ev.ExDates {
				spec.Overrides = append(spec.Overrides, model.OccurrenceOverride{
					ResourceName: opts.Resource,
					OriginalFrom: ex,
					Deleted:      true,
				})
			}
			for _, ov := range overrides[uid] {
				spec.Overrides = append(spec.Overrides, model.OccurrenceOverride{
					ResourceName: opts.Resource,
					OriginalFrom: *ov.RecurrenceID,
					From:         ov.Start,
					To:           ov.End,
					Title:        ov.Summary,
				})
			}
		}
		out = append(out, spec)
	}
	return out
}

// SpecName derives a URL-safe, stable event name from a source id and UID.
func SpecName(sourceID, uid string) string {
	sum := sha256.Sum256([]byte(uid))
	return fmt.Sprintf("ics-%s-%s", sanitize(sourceID), hex.EncodeToString(sum[:6]))
}

// IsImported reports whether spec was created by ToSpecs. Imported specs
// are rebuilt from their feed on every refresh and are not persisted.
func IsImported(spec *model.EventSpec) bool {
	if _, ok := spec.Data["uid"]; !ok {
		return false
	}
	_, ok := spec.Data["source"]
	return ok
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, s)
}

func specFromEvent(ev ParsedEvent, opts ImportOptions) model.EventSpec {
	spec := model.EventSpec{
		Name:   SpecName(ev.Source.ID, ev.UID),
		Title:  ev.Summary,
		From:   ev.Start,
		To:     ev.End,
		AllDay: ev.AllDay,
		Color:  ev.Color,
		Data: map[string]any{
			"uid":    ev.UID,
			"source": ev.Source.ID,
		},
	}
	if opts.Resource != "" {
		spec.ResourceNames = []string{opts.Resource}
	}
	if ev.Description != "" {
		spec.Data["description"] = ev.Description
	}
	if ev.Location != "" {
		spec.Data["location"] = ev.Location
	}
	for _, c := range ev.Categories {
		spec.Labels = append(spec.Labels, model.Label{Label: c})
	}
	return spec
}

// applyRRule maps an RRULE onto the spec's recurrence fields. Rules using
// parts the recurrence model has no equivalent for are rejected and leave
// the spec non-recurring.
func applyRRule(spec *model.EventSpec, raw string, loc *time.Location) error {
	opt, err := rrule.StrToROptionInLocation(strings.TrimPrefix(raw, "RRULE:"), loc)
	if err != nil {
		return fmt.Errorf("parse rrule: %w", err)
	}
	if len(opt.Bysetpos) > 0 || len(opt.Byyearday) > 0 || len(opt.Byweekno) > 0 ||
		len(opt.Byhour) > 0 || len(opt.Byminute) > 0 || len(opt.Bysecond) > 0 || len(opt.Byeaster) > 0 {
		return errors.New("rrule uses unsupported BY* parts")
	}

	attrs := model.RecurrenceAttributes{Interval: max(opt.Interval, 1)}
	var rec model.Recurrence

	switch opt.Freq {
	case rrule.DAILY:
		rec = model.RecurrenceDaily
	case rrule.WEEKLY:
		rec = model.RecurrenceWeekly
		for _, wd := range opt.Byweekday {
			if wd.N() != 0 {
				return errors.New("weekly rrule with ordinal BYDAY")
			}
			attrs.Weekdays = append(attrs.Weekdays, wd.Day()+1)
		}
	case rrule.MONTHLY:
		rec = model.RecurrenceMonthly
		switch {
		case len(opt.Byweekday) == 1 && opt.Byweekday[0].N() > 0:
			wd := opt.Byweekday[0]
			if wd.Day()+1 != model.ISOWeekday(spec.From) || wd.N() != (spec.From.Day()-1)/7+1 {
				return errors.New("monthly BYDAY does not match DTSTART")
			}
			attrs.SameDaySameWeek = true
		case len(opt.Byweekday) > 0:
			return errors.New("monthly rrule with several BYDAY values")
		case len(opt.Bymonthday) > 1 || (len(opt.Bymonthday) == 1 && opt.Bymonthday[0] != spec.From.Day()):
			return errors.New("monthly BYMONTHDAY does not match DTSTART")
		}
	case rrule.YEARLY:
		rec = model.RecurrenceYearly
		if len(opt.Byweekday) > 0 || len(opt.Bymonth) > 1 || len(opt.Bymonthday) > 1 {
			return errors.New("yearly rrule with BY* expansion")
		}
	default:
		return fmt.Errorf("unsupported frequency %s", opt.Freq)
	}

	spec.Recurrence = rec
	spec.RecurrenceAttributes = attrs
	spec.RecurrenceCount = opt.Count
	if !opt.Until.IsZero() {
		spec.RecurrenceEndDate = opt.Until.In(loc)
	}
	return nil
}
