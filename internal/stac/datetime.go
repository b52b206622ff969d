package stac

import (
	"fmt"
	"strings"
	"time"
)

// FormatDatetime rewrites a date, datetime or "start/end" range into the
// RFC3339 form STAC servers expect. Bare dates start at midnight; a bare end
// date of a range runs to 23:59:59. Open ends ("..") are kept.
func FormatDatetime(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if start, end, ok := strings.Cut(s, "/"); ok {
		return formatBound(start, "T00:00:00Z") + "/" + formatBound(end, "T23:59:59Z")
	}
	return formatBound(s, "T00:00:00Z")
}

// FormatTime renders t in UTC with second precision.
func FormatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func formatBound(s, dayTail string) string {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || s == "..":
		return s
	case !strings.Contains(s, "T"):
		return s + dayTail
	case strings.HasSuffix(s, "Z") || hasOffset(s):
		return s
	default:
		return s + "Z"
	}
}

func hasOffset(s string) bool {
	i := strings.Index(s, "T")
	tail := s[i+1:]
	return strings.ContainsAny(tail, "+-")
}

// ParseRange parses a closed "start/end" range. Open or single instants
// return ok=false.
func ParseRange(s string) (start, end time.Time, ok bool) {
	a, b, found := strings.Cut(FormatDatetime(s), "/")
	if !found || a == "" || b == "" || a == ".." || b == ".." {
		return time.Time{}, time.Time{}, false
	}
	start, err := time.Parse(time.RFC3339Nano, a)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err = time.Parse(time.RFC3339Nano, b)
	if err != nil || end.Before(start) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// formatRange keeps sub-second precision so adjacent windows leave no gap.
func formatRange(start, end time.Time) string {
	return fmt.Sprintf("%s/%s", start.UTC().Format(time.RFC3339Nano), end.UTC().Format(time.RFC3339Nano))
}
