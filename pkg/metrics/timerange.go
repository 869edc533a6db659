package metrics

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// DefaultTimeRange is used when a range parameter is missing or
// malformed. A bad range degrades to the default rather than erroring.
const DefaultTimeRange = 24 * time.Hour

// DefaultBucketInterval is the time-series bucket width used when the
// interval parameter is missing or malformed.
const DefaultBucketInterval = time.Hour

var (
	timeRangePattern = regexp.MustCompile(`^(\d+)([hdw])$`)
	intervalPattern  = regexp.MustCompile(`^(\d+)\s*(m|minutes?|h|hours?|d|days?)$`)
)

// ParseTimeRange parses a "<n><unit>" range like "6h", "7d" or "2w".
func ParseTimeRange(s string) time.Duration {
	m := timeRangePattern.FindStringSubmatch(s)
	if m == nil {
		return DefaultTimeRange
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n == 0 {
		return DefaultTimeRange
	}
	switch m[2] {
	case "h":
		return time.Duration(n) * time.Hour
	case "d":
		return time.Duration(n) * 24 * time.Hour
	default: // w
		return time.Duration(n) * 7 * 24 * time.Hour
	}
}

// ParseInterval parses a bucket interval in either the shorthand form
// ("30m", "6h") or the spelled-out form ("1 hour", "30 minutes",
// "1 day"). Anything else degrades to one hour.
func ParseInterval(s string) time.Duration {
	m := intervalPattern.FindStringSubmatch(s)
	if m == nil {
		return DefaultBucketInterval
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n == 0 {
		return DefaultBucketInterval
	}
	switch m[2][0] {
	case 'm':
		return time.Duration(n) * time.Minute
	case 'h':
		return time.Duration(n) * time.Hour
	default: // d
		return time.Duration(n) * 24 * time.Hour
	}
}

// rangeInterval renders a duration as a Postgres interval literal
// suitable for a bind parameter cast with ::interval.
func rangeInterval(d time.Duration) string {
	return fmt.Sprintf("%d seconds", int64(d.Seconds()))
}
