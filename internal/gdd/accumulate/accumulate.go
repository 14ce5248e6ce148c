// Package accumulate computes growing degree days for one ledger segment.
// It performs no I/O; the engine feeds it weather and parameters and
// persists the points it returns.
package accumulate

import (
	"math"
	"sort"
	"time"

	gdddomain "github.com/smallbiznis/turfkeeper/internal/gdd/domain"
)

// Reading is one day of temperatures already expressed in the model's unit.
type Reading struct {
	Date     time.Time
	Max      *float64
	Min      *float64
	Forecast bool
}

type Segment struct {
	Start time.Time
	Run   int
	// OpenedByThreshold marks a segment started by a threshold reset; the
	// running total is forced to zero on its first day.
	OpenedByThreshold bool
	// Open marks the last segment, the only one where crossings are detected.
	Open bool
}

type Point struct {
	Date       time.Time
	Daily      *float64
	Cumulative *float64
	Forecast   bool
	Run        int
}

type Result struct {
	Points []Point
	// Crossing is the first date whose cumulative reached the threshold.
	// The next segment starts the day after.
	Crossing *time.Time
	// Cumulative is the running total after the last complete day.
	Cumulative float64
}

// Resolver returns the parameters in effect on a date.
type Resolver interface {
	At(date time.Time) gdddomain.Parameters
}

// Daily is max(0, mean - base).
func Daily(tmax, tmin, base float64) float64 {
	return math.Max(0, (tmax+tmin)/2-base)
}

// Run accumulates readings, which must be ascending and inside the segment.
func Run(seg Segment, readings []Reading, params Resolver) Result {
	res := Result{Points: make([]Point, 0, len(readings))}
	cumulative := 0.0

	for _, r := range readings {
		point := Point{Date: r.Date, Forecast: r.Forecast, Run: seg.Run}
		if r.Max == nil || r.Min == nil {
			res.Points = append(res.Points, point)
			continue
		}

		eff := params.At(r.Date)
		daily := Daily(*r.Max, *r.Min, eff.BaseTemp)
		if seg.OpenedByThreshold && r.Date.Equal(seg.Start) {
			cumulative = 0
		}
		cumulative += daily

		if seg.Open && res.Crossing == nil && eff.ResetOnThreshold && cumulative >= eff.Threshold {
			crossed := r.Date
			res.Crossing = &crossed
		}

		total := cumulative
		point.Daily = &daily
		point.Cumulative = &total
		res.Points = append(res.Points, point)
	}

	res.Cumulative = cumulative
	return res
}

// History resolves parameters from dated entries, falling back to the live
// model fields before the first entry.
type History struct {
	entries  []gdddomain.ParameterHistory
	fallback gdddomain.Parameters
}

func NewHistory(entries []gdddomain.ParameterHistory, fallback gdddomain.Parameters) *History {
	sorted := make([]gdddomain.ParameterHistory, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EffectiveFrom.Before(sorted[j].EffectiveFrom)
	})
	return &History{entries: sorted, fallback: fallback}
}

func (h *History) At(date time.Time) gdddomain.Parameters {
	// first entry strictly after date; the one before it is in effect
	idx := sort.Search(len(h.entries), func(i int) bool {
		return h.entries[i].EffectiveFrom.After(date)
	})
	if idx == 0 {
		return h.fallback
	}
	return h.entries[idx-1].Parameters()
}

// Segments turns an ascending ledger into segment descriptors.
func Segments(resets []gdddomain.Reset) []Segment {
	segments := make([]Segment, 0, len(resets))
	for i, r := range resets {
		segments = append(segments, Segment{
			Start:             r.ResetDate,
			Run:               r.RunNumber,
			OpenedByThreshold: r.ResetType == gdddomain.ResetTypeThreshold,
			Open:              i == len(resets)-1,
		})
	}
	return segments
}
