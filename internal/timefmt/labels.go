package timefmt

import "strings"

// Unit is one bucket of the fixed-length decomposition.
type Unit int

const (
	Year Unit = iota
	Day
	Hour
	Minute
	Second
)

// Seconds returns the fixed length of the unit. Years are 365 days.
func (u Unit) Seconds() int64 {
	switch u {
	case Year:
		return 365 * 86400
	case Day:
		return 86400
	case Hour:
		return 3600
	case Minute:
		return 60
	default:
		return 1
	}
}

// String returns the English name of the unit.
func (u Unit) String() string {
	switch u {
	case Year:
		return "year"
	case Day:
		return "day"
	case Hour:
		return "hour"
	case Minute:
		return "minute"
	case Second:
		return "second"
	default:
		return "unknown"
	}
}

// Labels holds the locale-specific strings used when rendering a difference.
// The decomposition never looks at these, so a new locale is only a new table.
type Labels struct {
	Units     map[Unit]string
	Separator string // between components
	Later     string // appended to future differences
	Ago       string // appended to past differences
	Expired   string
	Now       string
}

// Japanese is the default label table.
var Japanese = Labels{
	Units: map[Unit]string{
		Year:   "年",
		Day:    "日",
		Hour:   "時間",
		Minute: "分",
		Second: "秒",
	},
	Later:   "後",
	Ago:     "前",
	Expired: "有効期限切れ",
	Now:     "今",
}

// English renders compact labels such as "1m 30s later".
var English = Labels{
	Units: map[Unit]string{
		Year:   "y",
		Day:    "d",
		Hour:   "h",
		Minute: "m",
		Second: "s",
	},
	Separator: " ",
	Later:     " later",
	Ago:       " ago",
	Expired:   "expired",
	Now:       "now",
}

// LabelsFor returns the label table for a locale tag. Unknown tags fall back
// to Japanese.
func LabelsFor(locale string) Labels {
	switch strings.ToLower(strings.TrimSpace(locale)) {
	case "en", "en-us", "en-gb", "english":
		return English
	default:
		return Japanese
	}
}

// IsSupportedLocale reports whether LabelsFor knows the locale tag.
func IsSupportedLocale(locale string) bool {
	switch strings.ToLower(strings.TrimSpace(locale)) {
	case "", "ja", "ja-jp", "japanese", "en", "en-us", "en-gb", "english":
		return true
	default:
		return false
	}
}
