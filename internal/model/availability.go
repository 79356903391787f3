package model

import (
	"time"

	"github.com/google/uuid"
)

type AvailabilityStatus string

const (
	AvailabilityStatusAvailable AvailabilityStatus = "AVAILABLE"
)

// Availability is a doctor-declared window from which bookable slots are
// derived. At most one window exists per calendar date per doctor; windows
// are replaced by delete+create, never mutated in place.
type Availability struct {
	Base
	DoctorID  uuid.UUID          `json:"doctor_id" db:"doctor_id"`
	StartTime time.Time          `json:"start_time" db:"start_time"`
	EndTime   time.Time          `json:"end_time" db:"end_time"`
	Status    AvailabilityStatus `json:"status" db:"status"`
}

type SetAvailabilityRequest struct {
	StartTime time.Time `json:"start_time" binding:"required"`
	EndTime   time.Time `json:"end_time" binding:"required"`
}
