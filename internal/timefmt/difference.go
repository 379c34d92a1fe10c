// Package timefmt renders the signed difference between a Unix timestamp and
// the current time as a short human-readable string, e.g. "2時間30分後" for a
// token that expires later or "1分40秒前" for one that expired earlier.
//
// Past and future differences follow different cascade rules:
//
//   - Future: days, hours, minutes and seconds, at most two adjacent units
//     ("1日2時間後", "3時間後", "5分10秒後").
//   - Past: years through seconds. Starting at the most significant non-zero
//     unit, every non-zero unit is included. Minutes always carry seconds, and
//     a unit included after a skipped zero unit carries its successor. This
//     yields strings such as "1年2時間0分5秒前" or "3日5秒前".
//
// The two rules are not symmetric. That is existing product behavior and is
// kept as is.
package timefmt

import (
	"math"
	"strconv"
	"strings"
)

// Breakdown is a duration split into fixed-length buckets.
type Breakdown struct {
	Years   int64
	Days    int64
	Hours   int64
	Minutes int64
	Seconds int64
}

// Total converts the breakdown back to seconds.
func (b Breakdown) Total() int64 {
	return b.Years*Year.Seconds() +
		b.Days*Day.Seconds() +
		b.Hours*Hour.Seconds() +
		b.Minutes*Minute.Seconds() +
		b.Seconds
}

// Value returns the component for a unit.
func (b Breakdown) Value(u Unit) int64 {
	switch u {
	case Year:
		return b.Years
	case Day:
		return b.Days
	case Hour:
		return b.Hours
	case Minute:
		return b.Minutes
	default:
		return b.Seconds
	}
}

// Decompose splits a non-negative number of seconds into units. When
// withYears is false, days are left unbounded.
func Decompose(seconds int64, withYears bool) Breakdown {
	if seconds == math.MinInt64 {
		seconds = math.MaxInt64
	} else if seconds < 0 {
		seconds = -seconds
	}
	var b Breakdown
	if withYears {
		b.Years = seconds / Year.Seconds()
		seconds %= Year.Seconds()
	}
	b.Days = seconds / Day.Seconds()
	seconds %= Day.Seconds()
	b.Hours = seconds / Hour.Seconds()
	seconds %= Hour.Seconds()
	b.Minutes = seconds / Minute.Seconds()
	b.Seconds = seconds % Minute.Seconds()
	return b
}

// cascadeStep is one row of the past-difference unit table.
type cascadeStep struct {
	unit Unit
	// carries forces the next unit to be shown once this one is shown.
	carries bool
}

var pastCascade = []cascadeStep{
	{unit: Year},
	{unit: Day},
	{unit: Hour},
	{unit: Minute, carries: true},
	{unit: Second},
}

var futureCascade = []Unit{Day, Hour, Minute, Second}

// pastUnits selects the units rendered for an elapsed duration.
func pastUnits(b Breakdown) []Unit {
	start := -1
	for i, step := range pastCascade {
		if b.Value(step.unit) > 0 {
			start = i
			break
		}
	}
	if start < 0 {
		return []Unit{Second}
	}

	units := []Unit{pastCascade[start].unit}
	forced := pastCascade[start].carries
	skipped := false
	for _, step := range pastCascade[start+1:] {
		if b.Value(step.unit) == 0 && !forced {
			skipped = true
			continue
		}
		units = append(units, step.unit)
		forced = step.carries || skipped
		skipped = false
	}
	return units
}

// futureUnits selects at most two adjacent units for a remaining duration.
func futureUnits(b Breakdown) []Unit {
	for i, u := range futureCascade {
		if b.Value(u) == 0 {
			continue
		}
		if i+1 < len(futureCascade) && b.Value(futureCascade[i+1]) > 0 {
			return []Unit{u, futureCascade[i+1]}
		}
		return []Unit{u}
	}
	return []Unit{Second}
}

func render(b Breakdown, units []Unit, labels Labels, suffix string) string {
	var sb strings.Builder
	for i, u := range units {
		if i > 0 {
			sb.WriteString(labels.Separator)
		}
		sb.WriteString(strconv.FormatInt(b.Value(u), 10))
		sb.WriteString(labels.Units[u])
	}
	sb.WriteString(suffix)
	return sb.String()
}

// DifferenceAt formats timestamp relative to now. Both are Unix seconds.
// A negative difference renders as the Expired literal unless isPast is set,
// in which case the elapsed time is shown.
func DifferenceAt(timestamp, now int64, isPast bool, labels Labels) string {
	diff := Diff(timestamp, now)

	switch {
	case diff < 0 && !isPast:
		return labels.Expired
	case diff < 0:
		b := Decompose(-diff, true)
		return render(b, pastUnits(b), labels, labels.Ago)
	case diff == 0:
		return labels.Now
	default:
		b := Decompose(diff, false)
		return render(b, futureUnits(b), labels, labels.Later)
	}
}

// Diff returns timestamp-now, saturating instead of wrapping. The lower bound
// is -MaxInt64 so the result can always be negated.
func Diff(timestamp, now int64) int64 {
	d := timestamp - now
	switch {
	case now < 0 && d < timestamp:
		return math.MaxInt64
	case now > 0 && d > timestamp:
		return -math.MaxInt64
	case d == math.MinInt64:
		return -math.MaxInt64
	}
	return d
}

// Formatter formats differences against an injected clock.
type Formatter struct {
	clock  Clock
	labels Labels
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithClock sets the clock used as "now".
func WithClock(c Clock) Option {
	return func(f *Formatter) {
		f.clock = c
	}
}

// WithLabels sets the label table.
func WithLabels(l Labels) Option {
	return func(f *Formatter) {
		f.labels = l
	}
}

// New returns a Formatter using the system clock and Japanese labels unless
// overridden.
func New(opts ...Option) *Formatter {
	f := &Formatter{
		clock:  SystemClock{},
		labels: Japanese,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Difference formats timestamp relative to the formatter's clock.
func (f *Formatter) Difference(timestamp int64, isPast bool) string {
	return DifferenceAt(timestamp, CurrentTimestamp(f.clock), isPast, f.labels)
}

// Now returns the formatter's current Unix time.
func (f *Formatter) Now() int64 {
	return CurrentTimestamp(f.clock)
}

// Labels returns the formatter's label table.
func (f *Formatter) Labels() Labels {
	return f.labels
}
