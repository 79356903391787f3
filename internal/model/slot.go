package model

import "time"

// TimeSlot is a fixed-length candidate appointment window.
type TimeSlot struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Formatted string    `json:"formatted"`
}

// DaySlots groups candidate slots by calendar date. Days with no remaining
// slots are still emitted so callers can render an empty day.
type DaySlots struct {
	Date        string     `json:"date"`
	DisplayDate string     `json:"display_date"`
	Slots       []TimeSlot `json:"slots"`
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) share a
// non-zero-width intersection. Boundary-touching intervals do not overlap.
// Slot filtering and booking validation must agree on this predicate.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
