// Package layout stacks overlapping occurrences of the same row into lanes.
package layout

import (
	"cmp"
	"slices"
	"time"

	"github.com/rdleal/intervalst/interval"

	appLog "schedcal/internal/log"
	"schedcal/internal/model"
)

// DefaultLaneHeight is used when Options.LaneHeight is not positive.
const DefaultLaneHeight = 32

// Options tune the layout.
type Options struct {
	// LaneHeight is the vertical distance between two stacked lanes.
	LaneHeight float64
}

// Row summarizes one resource row after layout.
type Row struct {
	Key    string  `json:"key"`
	Lanes  int     `json:"lanes"`
	Height float64 `json:"height"`
}

// Layout is the result of Assign.
type Layout struct {
	// Occurrences is a copy of the input, in input order, with OffsetTop set.
	Occurrences []model.Occurrence `json:"occurrences"`
	// Rows lists every row in order of first appearance.
	Rows []Row `json:"rows"`
}

// laneTree indexes the occurrences already placed in one lane. Intervals in
// a lane never overlap, so their starts are unique.
type laneTree = interval.SearchTree[int, time.Time]

func newLaneTree() *laneTree {
	return interval.NewSearchTree[int](func(x, y time.Time) int { return x.Compare(y) })
}

// Assign gives every occurrence the lowest lane of its row that holds no
// overlapping occurrence. Occurrences are placed longest-first among equal
// starts so that long bars stay on top. Touching intervals (one ends where
// the next starts) share a lane. Reference lines are not stacked.
func Assign(occs []model.Occurrence, opts Options) Layout {
	if opts.LaneHeight <= 0 {
		opts.LaneHeight = DefaultLaneHeight
	}

	out := slices.Clone(occs)
	order := make([]int, 0, len(out))
	var rowKeys []string
	seen := map[string]bool{}
	for i := range out {
		out[i].OffsetTop = 0
		if out[i].ReferenceLine {
			continue
		}
		order = append(order, i)
		if key := out[i].RowKey(); !seen[key] {
			seen[key] = true
			rowKeys = append(rowKeys, key)
		}
	}
	slices.SortStableFunc(order, func(a, b int) int {
		if c := out[a].From.Compare(out[b].From); c != 0 {
			return c
		}
		return cmp.Compare(out[b].To.Sub(out[b].From), out[a].To.Sub(out[a].From))
	})

	lanes := map[string][]*laneTree{}
	for _, idx := range order {
		occ := &out[idx]
		key := occ.RowKey()
		lane := place(lanes, key, out, idx)
		occ.OffsetTop = float64(lane) * opts.LaneHeight
	}

	rows := make([]Row, 0, len(rowKeys))
	for _, key := range rowKeys {
		n := max(len(lanes[key]), 1)
		rows = append(rows, Row{Key: key, Lanes: n, Height: float64(n) * opts.LaneHeight})
	}
	return Layout{Occurrences: out, Rows: rows}
}

// place finds the lane for out[idx] in row key and records it there.
func place(lanes map[string][]*laneTree, key string, out []model.Occurrence, idx int) int {
	occ := out[idx]
	// Zero-length occurrences never overlap anything.
	if !occ.To.After(occ.From) {
		if len(lanes[key]) == 0 {
			lanes[key] = append(lanes[key], newLaneTree())
		}
		return 0
	}

	rowLanes := lanes[key]
	for lane, tree := range rowLanes {
		if overlapsAny(tree, out, occ) {
			continue
		}
		insert(tree, occ, idx)
		return lane
	}

	tree := newLaneTree()
	insert(tree, occ, idx)
	lanes[key] = append(rowLanes, tree)
	return len(rowLanes)
}

// overlapsAny reports whether occ strictly overlaps an interval in tree.
// The tree searches closed intervals, so touching neighbours are filtered
// out here.
func overlapsAny(tree *laneTree, out []model.Occurrence, occ model.Occurrence) bool {
	hits, ok := tree.AllIntersections(occ.From, occ.To)
	if !ok {
		return false
	}
	for _, j := range hits {
		other := out[j]
		if other.From.Before(occ.To) && occ.From.Before(other.To) {
			return true
		}
	}
	return false
}

func insert(tree *laneTree, occ model.Occurrence, idx int) {
	if err := tree.Insert(occ.From, occ.To, idx); err != nil {
		appLog.Error("layout: insert interval failed", err, "key", occ.Key)
	}
}

// Overlaps reports whether two occurrences of the same row share any time.
func Overlaps(a, b model.Occurrence) bool {
	return a.RowKey() == b.RowKey() && a.From.Before(b.To) && b.From.Before(a.To)
}
