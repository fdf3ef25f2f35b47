package solar

import (
	"errors"
	"fmt"
	"time"
)

// DefaultInterval is the spacing between samples in a day's time grid
const DefaultInterval = 10 * time.Minute

// ErrNoSamples is returned when a time grid would contain no samples
var ErrNoSamples = errors.New("time grid contains no samples")

// TimeGrid is the ordered set of sample instants covering one local calendar day.
// Start is local midnight, End is the following local midnight (exclusive).
type TimeGrid struct {
	Start    time.Time
	End      time.Time
	Interval time.Duration
	Times    []time.Time
}

// Len returns the number of samples in the grid
func (g TimeGrid) Len() int {
	return len(g.Times)
}

// naiveLayouts are the timestamp forms without a zone that ParseDate accepts
var naiveLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

// ParseDate resolves a date string to local midnight in tz.  A bare date
// (2006-01-02) or naive timestamp is taken to be in tz; a timestamp that
// carries an offset is converted to tz first.
func ParseDate(date string, tz *time.Location) (time.Time, error) {
	var t time.Time
	var err error

	switch {
	case len(date) == len("2006-01-02"):
		t, err = time.ParseInLocation("2006-01-02", date, tz)
	default:
		t, err = time.Parse(time.RFC3339, date)
		if err == nil {
			t = t.In(tz)
			break
		}
		for _, layout := range naiveLayouts {
			if t, err = time.ParseInLocation(layout, date, tz); err == nil {
				break
			}
		}
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}

	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, tz), nil
}

// NewTimeGrid builds the grid from local midnight start to the next local
// midnight.  Samples are spaced by interval in absolute time, so a day with a
// daylight-saving transition has an hour more or less of samples.
func NewTimeGrid(start time.Time, interval time.Duration) (TimeGrid, error) {
	if interval <= 0 {
		return TimeGrid{}, ErrNoSamples
	}

	y, m, d := start.Date()
	end := time.Date(y, m, d+1, 0, 0, 0, 0, start.Location())

	g := TimeGrid{
		Start:    start,
		End:      end,
		Interval: interval,
		Times:    make([]time.Time, 0, int(end.Sub(start)/interval)+1),
	}
	for t := start; t.Before(end); t = t.Add(interval) {
		g.Times = append(g.Times, t)
	}

	if len(g.Times) == 0 {
		return TimeGrid{}, ErrNoSamples
	}
	return g, nil
}

// DayGrid parses date in the location's time zone and builds its time grid
func DayGrid(date string, loc Location, interval time.Duration) (TimeGrid, error) {
	tz, err := loc.TZ()
	if err != nil {
		return TimeGrid{}, err
	}
	start, err := ParseDate(date, tz)
	if err != nil {
		return TimeGrid{}, err
	}
	return NewTimeGrid(start, interval)
}
