package pipeline

import (
	"fmt"
	"time"
)

// ISOWeek formats t's ISO-8601 week as "YYYY-WW". The year is the ISO year
// owning the week's Thursday, so dates near January 1 may carry the
// neighboring year.
func ISOWeek(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-%02d", year, week)
}
