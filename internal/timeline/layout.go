// Package timeline maps dated posts to positions on the constellation canvas.
//
// Both axes are percentages of the canvas. X is chronological: the earliest
// post sits at 5 and the latest at 95. Y is the weekday band, Sunday at the
// top (10) and Saturday at the bottom (90), nudged down by up to 10 points
// depending on the time of day.
package timeline

import (
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/0x0BSoD/constellation/internal/model"
)

const (
	MinX = 5.0
	MaxX = 95.0

	MinY = 10.0
	// MaxY is the bottom of the Saturday band. Late Saturday posts can
	// reach MaxY + TimeOfDaySpan, Y is not clamped.
	MaxY = 90.0

	TimeOfDaySpan = 10.0

	minutesPerDay = 24 * 60
)

// PlottedPost is a post with its position on the canvas.
type PlottedPost struct {
	model.Post
	X float64
	Y float64
}

// Engine computes layouts. Weekdays, hours and years are read in the
// engine's location.
type Engine struct {
	loc *time.Location
}

// New returns an engine for loc. A nil loc means time.Local.
func New(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{loc: loc}
}

func (e *Engine) Location() *time.Location {
	return e.loc
}

// ComputeLayout sorts a copy of posts chronologically and plots every one of
// them. The input slice is left untouched. Posts with the same timestamp
// keep their input order.
func (e *Engine) ComputeLayout(posts []model.Post) []PlottedPost {
	if len(posts) == 0 {
		return []PlottedPost{}
	}

	sorted := slices.Clone(posts)
	slices.SortStableFunc(sorted, func(a, b model.Post) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	minTime, maxTime := timeBounds(sorted)
	timeRange := maxTime - minTime
	if timeRange == 0 {
		timeRange = 1
	}

	return lo.Map(sorted, func(post model.Post, _ int) PlottedPost {
		t := float64(post.CreatedAt.UnixMilli())

		return PlottedPost{
			Post: post,
			X:    MinX + ((t-minTime)/timeRange)*(MaxX-MinX),
			Y:    e.y(post.CreatedAt),
		}
	})
}

// y depends on the post's own timestamp only.
func (e *Engine) y(createdAt time.Time) float64 {
	local := createdAt.In(e.loc)

	dayBase := MinY + float64(local.Weekday())*((MaxY-MinY)/6)
	timeOfDay := float64(local.Hour()*60+local.Minute()) / minutesPerDay

	return dayBase + timeOfDay*TimeOfDaySpan
}

// EstimateYearAtPosition returns the calendar year found at fraction of the
// canvas width, interpolating linearly between the earliest and the latest
// post. It is a display hint, fraction is not clamped. ok is false when
// posts is empty.
func (e *Engine) EstimateYearAtPosition(posts []model.Post, fraction float64) (year int, ok bool) {
	if len(posts) == 0 {
		return 0, false
	}

	minTime, maxTime := timeBounds(posts)
	if minTime == maxTime {
		return time.UnixMilli(int64(minTime)).In(e.loc).Year(), true
	}

	estimated := minTime + fraction*(maxTime-minTime)

	return time.UnixMilli(int64(estimated)).In(e.loc).Year(), true
}

// timeBounds returns the earliest and latest timestamps in milliseconds.
func timeBounds(posts []model.Post) (float64, float64) {
	times := lo.Map(posts, func(post model.Post, _ int) float64 {
		return float64(post.CreatedAt.UnixMilli())
	})

	return lo.Min(times), lo.Max(times)
}
