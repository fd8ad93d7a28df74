package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ConsultationStatus enumerates the lifecycle states of a consultation.
type ConsultationStatus string

// Consultation lifecycle states. A consultation is created already
// IN_PROGRESS; COMPLETED, CANCELLED and NO_SHOW are terminal.
const (
	ConsultationInProgress ConsultationStatus = "IN_PROGRESS"
	ConsultationCompleted  ConsultationStatus = "COMPLETED"
	ConsultationCancelled  ConsultationStatus = "CANCELLED"
	ConsultationNoShow     ConsultationStatus = "NO_SHOW"
)

// Active reports whether the consultation still accepts notes and chat
// messages.
func (s ConsultationStatus) Active() bool {
	return s == ConsultationInProgress
}

// Consultation holds the structure for the consultations collection in mongo.
// At most one consultation exists per appointment; the unique appointmentID
// index plus the check in StartConsultationHandler enforce it.
type Consultation struct {
	ID                     primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	AppointmentID          string             `json:"appointmentID" bson:"appointmentID"`
	PatientID              string             `json:"patientID" bson:"patientID"`
	DoctorID               string             `json:"doctorID" bson:"doctorID"`
	ChiefComplaint         string             `json:"chiefComplaint" bson:"chiefComplaint"`
	Notes                  string             `json:"notes" bson:"notes"`
	Diagnosis              string             `json:"diagnosis" bson:"diagnosis"`
	Treatment              string             `json:"treatment" bson:"treatment"`
	FollowUpInstructions   string             `json:"followUpInstructions" bson:"followUpInstructions"`
	Status                 ConsultationStatus `json:"status" bson:"status"`
	StartTime              primitive.DateTime `json:"startTime" bson:"startTime"`
	EndTime                interface{}        `json:"endTime,omitempty" bson:"endTime,omitempty"`
}

// ConsultationMessage is one persisted chat line exchanged during a
// consultation. The relay keeps its own ephemeral copy for late joiners;
// this is the durable record.
type ConsultationMessage struct {
	ID             primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	ConsultationID string             `json:"consultationID" bson:"consultationID"`
	SenderID       string             `json:"senderID" bson:"senderID"`
	SenderRole     string             `json:"senderRole" bson:"senderRole"`
	Content        string             `json:"content" bson:"content"`
	SentAt         primitive.DateTime `json:"sentAt" bson:"sentAt"`
}

// StartConsultationRequest is the body accepted when a doctor starts a
// consultation from a confirmed appointment.
type StartConsultationRequest struct {
	AppointmentID  string `json:"appointmentID"`
	ChiefComplaint string `json:"chiefComplaint"`
}

// CompleteConsultationRequest carries the clinical outcome of a consultation.
type CompleteConsultationRequest struct {
	Diagnosis            string `json:"diagnosis"`
	Treatment            string `json:"treatment"`
	Notes                string `json:"notes"`
	FollowUpInstructions string `json:"followUpInstructions"`
}
