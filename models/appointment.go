package models

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AppointmentStatus enumerates the lifecycle states of an appointment.
type AppointmentStatus string

// Appointment lifecycle states. RESCHEDULED behaves like PENDING: the doctor
// must confirm the new slot before a consultation can start.
const (
	AppointmentPending     AppointmentStatus = "PENDING"
	AppointmentConfirmed   AppointmentStatus = "CONFIRMED"
	AppointmentInProgress  AppointmentStatus = "IN_PROGRESS"
	AppointmentCompleted   AppointmentStatus = "COMPLETED"
	AppointmentCancelled   AppointmentStatus = "CANCELLED"
	AppointmentRescheduled AppointmentStatus = "RESCHEDULED"
)

// appointmentTransitions is the single source of truth for legal status
// transitions. Every handler that mutates appointment status goes through
// CanTransition; there is no scattered status-string checking.
var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentPending:     {AppointmentConfirmed, AppointmentCancelled, AppointmentRescheduled},
	AppointmentConfirmed:   {AppointmentInProgress, AppointmentCancelled, AppointmentRescheduled},
	AppointmentRescheduled: {AppointmentConfirmed, AppointmentCancelled},
	AppointmentInProgress:  {AppointmentCompleted},
	AppointmentCompleted:   {},
	AppointmentCancelled:   {},
}

// Valid reports whether s is a known appointment status.
func (s AppointmentStatus) Valid() bool {
	_, ok := appointmentTransitions[s]
	return ok
}

// Terminal reports whether no further transitions are possible from s.
func (s AppointmentStatus) Terminal() bool {
	return len(appointmentTransitions[s]) == 0 && s.Valid()
}

// CanTransition reports whether moving from s to next is legal.
func (s AppointmentStatus) CanTransition(next AppointmentStatus) bool {
	for _, t := range appointmentTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Transition validates and returns the next status, or an error describing
// why the transition is illegal. The current status is never mutated on error.
func (s AppointmentStatus) Transition(next AppointmentStatus) (AppointmentStatus, error) {
	if !s.Valid() {
		return s, fmt.Errorf("unknown appointment status %q", string(s))
	}
	if !next.Valid() {
		return s, fmt.Errorf("unknown target status %q", string(next))
	}
	if !s.CanTransition(next) {
		return s, fmt.Errorf("illegal transition %s -> %s", string(s), string(next))
	}
	return next, nil
}

// Appointment holds the structure for the appointments collection in mongo
type Appointment struct {
	ID                 primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	PatientID          string             `json:"patientID" bson:"patientID"`
	DoctorID           string             `json:"doctorID" bson:"doctorID"`
	AppointmentDate    primitive.DateTime `json:"appointmentDate" bson:"appointmentDate"`
	DurationMinutes    int                `json:"durationMinutes" bson:"durationMinutes"`
	Status             AppointmentStatus  `json:"status" bson:"status"`
	Reason             string             `json:"reason" bson:"reason"`
	Notes              string             `json:"notes" bson:"notes"`
	CancellationReason string             `json:"cancellationReason,omitempty" bson:"cancellationReason,omitempty"`
	ReminderSentAt     interface{}        `json:"reminderSentAt,omitempty" bson:"reminderSentAt,omitempty"`
	CreatedAt          primitive.DateTime `json:"createdAt" bson:"createdAt"`
	UpdatedAt          primitive.DateTime `json:"updatedAt" bson:"updatedAt"`
}

// AppointmentRequest is the body accepted when a patient books an appointment
type AppointmentRequest struct {
	PatientID       string             `json:"patientID"`
	DoctorID        string             `json:"doctorID"`
	AppointmentDate primitive.DateTime `json:"appointmentDate"`
	DurationMinutes int                `json:"durationMinutes"`
	Reason          string             `json:"reason"`
	Notes           string             `json:"notes"`
}
