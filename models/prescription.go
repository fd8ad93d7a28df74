package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Prescription statuses.
const (
	PrescriptionActive    = "ACTIVE"
	PrescriptionExpired   = "EXPIRED"
	PrescriptionCancelled = "CANCELLED"
)

// Prescription holds the structure for the prescriptions collection in mongo.
// In the common flow there is at most one prescription per completed
// consultation, though the data model does not hard-enforce it.
type Prescription struct {
	ID             primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	ConsultationID string             `json:"consultationID" bson:"consultationID"`
	PatientID      string             `json:"patientID" bson:"patientID"`
	DoctorID       string             `json:"doctorID" bson:"doctorID"`
	Diagnosis      string             `json:"diagnosis" bson:"diagnosis"`
	Medications    []Medication       `json:"medications" bson:"medications"`
	ValidUntil     primitive.DateTime `json:"validUntil" bson:"validUntil"`
	Status         string             `json:"status" bson:"status"`
	CreatedAt      primitive.DateTime `json:"createdAt" bson:"createdAt"`
	UpdatedAt      primitive.DateTime `json:"updatedAt" bson:"updatedAt"`
}

// Medication is a single entry on a prescription.
type Medication struct {
	Name         string `json:"name" bson:"name"`
	Dosage       string `json:"dosage" bson:"dosage"`
	Frequency    string `json:"frequency" bson:"frequency"`
	DurationDays int    `json:"durationDays" bson:"durationDays"`
	Instructions string `json:"instructions" bson:"instructions"`
	SideEffects  string `json:"sideEffects" bson:"sideEffects"`
}
