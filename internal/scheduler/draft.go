package scheduler

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	appLog "schedcal/internal/log"
	"schedcal/internal/model"
)

// Draft value keys with a dedicated meaning. Any other key is copied into
// EventSpec.Data (series edits) or OccurrenceOverride.Fields (instance edits).
const (
	DraftTitle             = "title"
	DraftFrom              = "from"
	DraftTo                = "to"
	DraftAllDay            = "allDay"
	DraftKeyFields         = "keyFields"
	DraftColor             = "color"
	DraftTheme             = "theme"
	DraftIconName          = "iconName"
	DraftDisabled          = "disabled"
	DraftRecurrence        = "recurrence"
	DraftRecurrenceCount   = "recurrenceCount"
	DraftRecurrenceEndDate = "recurrenceEndDate"
	DraftInterval          = "interval"
	DraftWeekdays          = "weekdays"
	DraftSameDaySameWeek   = "sameDaySameWeek"
)

// Slugify turns a title into a lowercase ASCII name fragment:
// "Café Meeting!" becomes "cafe-meeting".
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// applyDraft merges series-level draft values onto spec. Values that do not
// parse are logged and skipped.
func applyDraft(spec *model.EventSpec, draft map[string]any, loc *time.Location) {
	for k, v := range draft {
		switch k {
		case DraftTitle:
			spec.Title = asString(v)
		case DraftFrom:
			if t, ok := parseTime(v, loc); ok {
				spec.From = t
			} else {
				badDraft(k, v)
			}
		case DraftTo:
			if t, ok := parseTime(v, loc); ok {
				spec.To = t
			} else {
				badDraft(k, v)
			}
		case DraftAllDay:
			spec.AllDay = asBool(v)
		case DraftKeyFields, "resourceNames":
			if list, ok := stringList(v); ok {
				spec.ResourceNames = list
			} else {
				badDraft(k, v)
			}
		case DraftColor:
			spec.Color = asString(v)
		case DraftTheme:
			spec.Theme = asString(v)
		case DraftIconName:
			spec.IconName = asString(v)
		case DraftDisabled:
			spec.Disabled = asBool(v)
		case DraftRecurrence:
			spec.Recurrence = model.ParseRecurrence(asString(v))
		case DraftRecurrenceCount:
			if n, ok := asInt(v); ok {
				spec.RecurrenceCount = n
			} else {
				badDraft(k, v)
			}
		case DraftRecurrenceEndDate:
			if v == nil || asString(v) == "" {
				spec.RecurrenceEndDate = time.Time{}
			} else if t, ok := parseTime(v, loc); ok {
				spec.RecurrenceEndDate = t
			} else {
				badDraft(k, v)
			}
		case DraftInterval:
			if n, ok := asInt(v); ok {
				spec.RecurrenceAttributes.Interval = n
			} else {
				badDraft(k, v)
			}
		case DraftWeekdays:
			if list, ok := intList(v); ok {
				spec.RecurrenceAttributes.Weekdays = list
			} else {
				badDraft(k, v)
			}
		case DraftSameDaySameWeek:
			spec.RecurrenceAttributes.SameDaySameWeek = asBool(v)
		case "name":
			// Names are stable once assigned.
		default:
			if spec.Data == nil {
				spec.Data = map[string]any{}
			}
			spec.Data[k] = v
		}
	}
}

// instancePatch is the instance-level part of a draft.
type instancePatch struct {
	from   time.Time
	to     time.Time
	title  string
	fields map[string]string
}

func patchFromDraft(draft map[string]any, loc *time.Location) instancePatch {
	var p instancePatch
	for k, v := range draft {
		switch k {
		case DraftKeyFields:
		case DraftFrom:
			if t, ok := parseTime(v, loc); ok {
				p.from = t
			} else {
				badDraft(k, v)
			}
		case DraftTo:
			if t, ok := parseTime(v, loc); ok {
				p.to = t
			} else {
				badDraft(k, v)
			}
		case DraftTitle:
			p.title = asString(v)
		default:
			if p.fields == nil {
				p.fields = map[string]string{}
			}
			p.fields[k] = asString(v)
		}
	}
	return p
}

// applyOccurrenceDraft edits one instance of a series without touching the
// series itself. keyFields lists the resources the instance should render
// on after the edit:
//
//   - the instance's own resource missing from the list removes it;
//   - a resource that already has this instance gets the field overwrites;
//   - a resource new to the instance gets a clone with a fresh key.
//
// Without keyFields the instance stays on its resource.
func applyOccurrenceDraft(spec *model.EventSpec, occ model.Occurrence, draft map[string]any, loc *time.Location, newKey func() string) {
	resources, ok := stringList(draft[DraftKeyFields])
	if !ok {
		resources = []string{occ.ResourceName}
	}
	patch := patchFromDraft(draft, loc)

	if !slices.Contains(resources, occ.ResourceName) {
		removeInstance(spec, occ.ResourceName, occ.OriginalFrom)
	}
	for _, res := range dedupe(resources) {
		if res == occ.ResourceName || hasInstance(spec, res, occ.OriginalFrom) {
			patchInstance(spec, res, occ.OriginalFrom, patch)
			continue
		}
		clone := model.OccurrenceOverride{
			ResourceName: res,
			OriginalFrom: occ.OriginalFrom,
			Added:        true,
			Key:          fmt.Sprintf("%s/%s/%s", spec.Name, res, newKey()),
			From:         occ.From,
			To:           occ.To,
		}
		mergePatch(&clone, patch)
		spec.Overrides = append(spec.Overrides, clone)
	}
}

// detachesOnly reports whether draft takes the instance off every resource,
// leaving nothing to patch or clone.
func detachesOnly(draft map[string]any) bool {
	resources, ok := stringList(draft[DraftKeyFields])
	return ok && len(resources) == 0
}

// hasInstance reports whether the series currently renders the instance
// at originalFrom on resource res.
func hasInstance(spec *model.EventSpec, res string, originalFrom time.Time) bool {
	if slices.Contains(spec.ResourceNames, res) {
		i := overrideIndex(spec, res, originalFrom, false)
		return i < 0 || !spec.Overrides[i].Deleted
	}
	return overrideIndex(spec, res, originalFrom, true) >= 0
}

func removeInstance(spec *model.EventSpec, res string, originalFrom time.Time) {
	if !slices.Contains(spec.ResourceNames, res) {
		if i := overrideIndex(spec, res, originalFrom, true); i >= 0 {
			spec.Overrides = slices.Delete(slices.Clone(spec.Overrides), i, i+1)
		}
		return
	}
	ov := model.OccurrenceOverride{ResourceName: res, OriginalFrom: originalFrom, Deleted: true}
	if i := overrideIndex(spec, res, originalFrom, false); i >= 0 {
		spec.Overrides[i] = ov
		return
	}
	spec.Overrides = append(spec.Overrides, ov)
}

func patchInstance(spec *model.EventSpec, res string, originalFrom time.Time, p instancePatch) {
	added := !slices.Contains(spec.ResourceNames, res)
	if i := overrideIndex(spec, res, originalFrom, added); i >= 0 {
		spec.Overrides[i].Deleted = false
		mergePatch(&spec.Overrides[i], p)
		return
	}
	ov := model.OccurrenceOverride{ResourceName: res, OriginalFrom: originalFrom}
	mergePatch(&ov, p)
	spec.Overrides = append(spec.Overrides, ov)
}

func overrideIndex(spec *model.EventSpec, res string, originalFrom time.Time, added bool) int {
	return slices.IndexFunc(spec.Overrides, func(o model.OccurrenceOverride) bool {
		return o.Added == added && o.Matches(res, originalFrom)
	})
}

func mergePatch(ov *model.OccurrenceOverride, p instancePatch) {
	if !p.from.IsZero() {
		ov.From = p.from
	}
	if !p.to.IsZero() {
		ov.To = p.to
	}
	if p.title != "" {
		ov.Title = p.title
	}
	if len(p.fields) > 0 {
		if ov.Fields == nil {
			ov.Fields = make(map[string]string, len(p.fields))
		}
		maps.Copy(ov.Fields, p.fields)
	}
}

func dedupe(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

func badDraft(key string, v any) {
	appLog.Debug("scheduler: ignoring draft value", "key", key, "value", v)
}

func parseTime(v any, loc *time.Location) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.In(loc), !t.IsZero()
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04", time.DateOnly} {
			var (
				parsed time.Time
				err    error
			)
			if layout == time.RFC3339Nano {
				parsed, err = time.Parse(layout, t)
			} else {
				parsed, err = time.ParseInLocation(layout, t, loc)
			}
			if err == nil {
				return parsed.In(loc), true
			}
		}
	case int64:
		return time.UnixMilli(t).In(loc), true
	case float64:
		return time.UnixMilli(int64(t)).In(loc), true
	}
	return time.Time{}, false
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

func asBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		ok, _ := strconv.ParseBool(b)
		return ok
	}
	return false
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

func intList(v any) ([]int, bool) {
	switch l := v.(type) {
	case []int:
		return slices.Clone(l), true
	case []any:
		out := make([]int, 0, len(l))
		for _, e := range l {
			n, ok := asInt(e)
			if !ok {
				return nil, false
			}
			out = append(out, n)
		}
		return out, true
	}
	return nil, false
}

func stringList(v any) ([]string, bool) {
	switch l := v.(type) {
	case []string:
		return slices.Clone(l), true
	case []any:
		out := make([]string, 0, len(l))
		for _, e := range l {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	case string:
		if l == "" {
			return []string{}, true
		}
		return strings.Split(l, ","), true
	}
	return nil, false
}
