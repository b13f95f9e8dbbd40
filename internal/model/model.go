package model

import (
	"strings"
	"time"
)

// Recurrence names the frequency of a repeating event. The zero value means
// the event does not repeat.
type Recurrence string

const (
	RecurrenceNone    Recurrence = ""
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
	RecurrenceYearly  Recurrence = "yearly"
)

// ParseRecurrence normalizes a recurrence name. Unknown names map to
// RecurrenceNone so that the event falls back to a single occurrence.
func ParseRecurrence(s string) Recurrence {
	switch r := Recurrence(strings.ToLower(strings.TrimSpace(s))); r {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceYearly:
		return r
	default:
		return RecurrenceNone
	}
}

// RecurrenceAttributes tune how a recurrence steps from one date to the next.
type RecurrenceAttributes struct {
	// Interval is the step between generated dates in units of the
	// recurrence frequency. Values below 1 are treated as 1.
	Interval int `yaml:"interval,omitempty" json:"interval,omitempty"`

	// Weekdays restricts weekly recurrences to the listed days:
	// 0 or 7 = Sunday, 1 = Monday ... 6 = Saturday.
	Weekdays []int `yaml:"weekdays,omitempty" json:"weekdays,omitempty"`

	// SameDaySameWeek makes monthly recurrences repeat on the same
	// "Nth weekday of the month" (e.g. third Tuesday) instead of the same
	// day of month.
	SameDaySameWeek bool `yaml:"same_day_same_week,omitempty" json:"sameDaySameWeek,omitempty"`
}

// TimeUnit is the unit of the scheduler's finest header row.
type TimeUnit string

const (
	UnitMinute TimeUnit = "minute"
	UnitHour   TimeUnit = "hour"
	UnitDay    TimeUnit = "day"
	UnitWeek   TimeUnit = "week"
	UnitMonth  TimeUnit = "month"
	UnitYear   TimeUnit = "year"
)

// Valid reports whether u is one of the known units.
func (u TimeUnit) Valid() bool {
	switch u {
	case UnitMinute, UnitHour, UnitDay, UnitWeek, UnitMonth, UnitYear:
		return true
	}
	return false
}

// SubDay reports whether cells of this unit are shorter than a day.
func (u TimeUnit) SubDay() bool {
	return u == UnitMinute || u == UnitHour
}

// Header describes the smallest header of the scheduler grid, e.g.
// {Unit: minute, Span: 30} for half-hour cells.
type Header struct {
	Unit TimeUnit `yaml:"unit" json:"unit"`
	Span int      `yaml:"span" json:"span"`
}

// IsZero reports whether no header has been configured.
func (h Header) IsZero() bool {
	return h.Unit == "" && h.Span == 0
}

// Label is a presentation-only tag attached to an event.
type Label struct {
	Label string `yaml:"label" json:"label"`
	Color string `yaml:"color,omitempty" json:"color,omitempty"`
}

// EventSpec is the declarative definition of a schedulable event, before
// it is expanded into per-resource, per-date occurrences.
type EventSpec struct {
	Name string `yaml:"name" json:"name"`

	From   time.Time `yaml:"from" json:"from"`
	To     time.Time `yaml:"to,omitempty" json:"to,omitempty"`
	AllDay bool      `yaml:"all_day,omitempty" json:"allDay,omitempty"`

	ResourceNames []string `yaml:"resource_names,omitempty" json:"resourceNames,omitempty"`

	Recurrence           Recurrence           `yaml:"recurrence,omitempty" json:"recurrence,omitempty"`
	RecurrenceAttributes RecurrenceAttributes `yaml:"recurrence_attributes,omitempty" json:"recurrenceAttributes,omitempty"`
	// RecurrenceCount caps the number of generated dates; 0 means unbounded.
	RecurrenceCount int `yaml:"recurrence_count,omitempty" json:"recurrenceCount,omitempty"`
	// RecurrenceEndDate is the last date a recurrence may start on; zero
	// means no end date.
	RecurrenceEndDate time.Time `yaml:"recurrence_end_date,omitempty" json:"recurrenceEndDate,omitempty"`

	AvailableMonths        []int    `yaml:"available_months,omitempty" json:"availableMonths,omitempty"`
	AvailableDaysOfTheWeek []int    `yaml:"available_days_of_the_week,omitempty" json:"availableDaysOfTheWeek,omitempty"`
	AvailableTimeFrames    []string `yaml:"available_time_frames,omitempty" json:"availableTimeFrames,omitempty"`

	Disabled      bool `yaml:"disabled,omitempty" json:"disabled,omitempty"`
	ReferenceLine bool `yaml:"reference_line,omitempty" json:"referenceLine,omitempty"`

	// SchedulerStart / SchedulerEnd are the currently visible window. A zero
	// value leaves that side unbounded.
	SchedulerStart time.Time `yaml:"-" json:"schedulerStart,omitempty"`
	SchedulerEnd   time.Time `yaml:"-" json:"schedulerEnd,omitempty"`
	SmallestHeader Header    `yaml:"-" json:"smallestHeader,omitempty"`

	Theme    string         `yaml:"theme,omitempty" json:"theme,omitempty"`
	Color    string         `yaml:"color,omitempty" json:"color,omitempty"`
	Title    string         `yaml:"title,omitempty" json:"title,omitempty"`
	IconName string         `yaml:"icon_name,omitempty" json:"iconName,omitempty"`
	Labels   []Label        `yaml:"labels,omitempty" json:"labels,omitempty"`
	Data     map[string]any `yaml:"data,omitempty" json:"data,omitempty"`

	// Overrides hold per-instance edits of a series. They are applied after
	// generation so they survive every recompute.
	Overrides []OccurrenceOverride `yaml:"overrides,omitempty" json:"overrides,omitempty"`
}

// IsRecurring reports whether the spec expands through the recurrence path.
func (s *EventSpec) IsRecurring() bool {
	return s.Recurrence != RecurrenceNone
}

// Clone returns a deep copy of the slices and maps of s so that the copy
// can be mutated without affecting s.
func (s EventSpec) Clone() EventSpec {
	out := s
	out.ResourceNames = append([]string(nil), s.ResourceNames...)
	out.RecurrenceAttributes.Weekdays = append([]int(nil), s.RecurrenceAttributes.Weekdays...)
	out.AvailableMonths = append([]int(nil), s.AvailableMonths...)
	out.AvailableDaysOfTheWeek = append([]int(nil), s.AvailableDaysOfTheWeek...)
	out.AvailableTimeFrames = append([]string(nil), s.AvailableTimeFrames...)
	out.Labels = append([]Label(nil), s.Labels...)
	if s.Data != nil {
		out.Data = make(map[string]any, len(s.Data))
		for k, v := range s.Data {
			out.Data[k] = v
		}
	}
	if s.Overrides != nil {
		out.Overrides = make([]OccurrenceOverride, len(s.Overrides))
		for i, o := range s.Overrides {
			out.Overrides[i] = o.Clone()
		}
	}
	return out
}

// OccurrenceOverride records how one generated instance diverges from its
// series. An instance is identified by the resource it renders under and
// the start time the series generated for it.
type OccurrenceOverride struct {
	ResourceName string    `yaml:"resource_name" json:"resourceName"`
	OriginalFrom time.Time `yaml:"original_from" json:"originalFrom"`

	// Deleted drops the instance.
	Deleted bool `yaml:"deleted,omitempty" json:"deleted,omitempty"`

	// Added marks an instance that does not exist in the series itself but
	// was cloned onto ResourceName; Key is its stable key.
	Added bool   `yaml:"added,omitempty" json:"added,omitempty"`
	Key   string `yaml:"key,omitempty" json:"key,omitempty"`

	From   time.Time         `yaml:"from,omitempty" json:"from,omitempty"`
	To     time.Time         `yaml:"to,omitempty" json:"to,omitempty"`
	Title  string            `yaml:"title,omitempty" json:"title,omitempty"`
	Fields map[string]string `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// Matches reports whether the override targets the instance generated for
// resource at originalFrom.
func (o *OccurrenceOverride) Matches(resource string, originalFrom time.Time) bool {
	return o.ResourceName == resource && o.OriginalFrom.Equal(originalFrom)
}

// Clone returns a copy of o with its own Fields map.
func (o OccurrenceOverride) Clone() OccurrenceOverride {
	out := o
	if o.Fields != nil {
		out.Fields = make(map[string]string, len(o.Fields))
		for k, v := range o.Fields {
			out.Fields[k] = v
		}
	}
	return out
}

// Occurrence represents a single concrete instance of an event for one
// resource (after recurrence expansion and availability filtering).
type Occurrence struct {
	// Key uniquely identifies the occurrence: event name + resource + start
	// timestamp, or title + index for reference lines.
	Key       string `json:"key"`
	EventName string `json:"eventName"`

	// ResourceName is the row this occurrence renders under. Empty for
	// reference lines.
	ResourceName string `json:"resourceName,omitempty"`

	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	// OriginalFrom is the start the series generated for this instance,
	// before any override moved it.
	OriginalFrom time.Time `json:"originalFrom"`
	Overridden   bool      `json:"overridden,omitempty"`

	Title         string `json:"title,omitempty"`
	Disabled      bool   `json:"disabled,omitempty"`
	ReferenceLine bool   `json:"referenceLine,omitempty"`
	Theme         string `json:"theme,omitempty"`
	Color         string `json:"color,omitempty"`
	IconName      string `json:"iconName,omitempty"`

	// Fields holds per-instance override values that have no dedicated
	// field above.
	Fields map[string]string `json:"fields,omitempty"`

	// OffsetTop is layout-only and is set by the row layout assigner.
	OffsetTop float64 `json:"offsetTop"`
}

// RowKey returns the key of the row this occurrence renders in.
func (o *Occurrence) RowKey() string {
	return o.ResourceName
}
