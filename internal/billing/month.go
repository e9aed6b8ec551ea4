package billing

import "time"

// monthKeyLayout renders a date as the short month-year token used as
// the log table's uniqueness partition, e.g. "Aug-26".
const monthKeyLayout = "Jan-06"

// MonthKey derives the month token for a selected date.
func MonthKey(t time.Time) string {
	return t.Format(monthKeyLayout)
}

// MonthStart returns midnight UTC on the first day of t's month,
// stored alongside the token so entries sort chronologically.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
