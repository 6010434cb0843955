package pawn

import "time"

// =============================================================================
// DATE ARITHMETIC
// =============================================================================

// NextDueDate returns the reference date plus one calendar month, per Go's
// AddDate normalization: 2025-01-31 + 1 month is 2025-03-03 (February 31st
// normalized forward), not a clamp to month end.
func NextDueDate(reference time.Time) time.Time {
	return reference.AddDate(0, 1, 0)
}

// DefaultFinalDate returns the initial pawn due date: start + 30 days.
func DefaultFinalDate(start time.Time) time.Time {
	return start.AddDate(0, 0, InitialTermDays)
}

// DateOnly truncates a timestamp to midnight UTC, the granularity contract
// dates are stored at.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
