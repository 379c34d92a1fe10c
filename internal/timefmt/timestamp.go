package timefmt

import (
	"fmt"
	"time"
)

// TimestampLayout matches the ja-JP two-digit date/time rendering.
const TimestampLayout = "2006/01/02 15:04:05"

// FormatTimestamp renders a Unix timestamp as "2024/01/01 12:00:00" in loc.
// A nil loc means time.Local.
func FormatTimestamp(ts int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.Unix(ts, 0).In(loc).Format(TimestampLayout)
}

// FormatDate renders the calendar date of t as "2024年1月1日".
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%d年%d月%d日", t.Year(), int(t.Month()), t.Day())
}

// LoadLocation resolves a timezone name, returning time.Local for "".
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return loc, nil
}
