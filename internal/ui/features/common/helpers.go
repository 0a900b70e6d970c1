package common

import (
	"strconv"
	"time"

	"github.com/leapstack-labs/leaplineage/internal/harvest"
)

// OrDash renders an empty optional column as a dash.
func OrDash(o harvest.Optional) string {
	if o.IsNull() {
		return "-"
	}
	return o.String()
}

// CountLabel formats a count with a singular or plural noun.
func CountLabel(n int, singular, plural string) string {
	if n == 1 {
		return "1 " + singular
	}
	return strconv.Itoa(n) + " " + plural
}

// FormatTime renders a run timestamp for tables.
func FormatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
