package security

import (
	"strconv"
	"strings"
	"time"
)

// DefaultMaxRequestAge is the replay window for v3 signed requests.
const DefaultMaxRequestAge = 300000 * time.Millisecond

// IsFresh reports whether the millisecond epoch timestamp is no older than
// maxAge relative to now. Future timestamps are fresh. An unparseable
// timestamp is never fresh.
func IsFresh(timestamp string, now time.Time, maxAge time.Duration) bool {
	ts, err := strconv.ParseInt(strings.TrimSpace(timestamp), 10, 64)
	if err != nil {
		return false
	}
	return now.UnixMilli()-ts <= maxAge.Milliseconds()
}
