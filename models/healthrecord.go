package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// HealthRecord holds the structure for the healthRecords collection in mongo
type HealthRecord struct {
	ID         primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	PatientID  string             `json:"patientID" bson:"patientID"`
	RecordedAt primitive.DateTime `json:"recordedAt" bson:"recordedAt"`
	Vitals     Vitals             `json:"vitals" bson:"vitals"`
	Symptoms   []Symptom          `json:"symptoms" bson:"symptoms"`
	Notes      string             `json:"notes" bson:"notes"`
	// AttachmentURL points at an uploaded document (lab result, scan) if any.
	AttachmentURL string             `json:"attachmentURL,omitempty" bson:"attachmentURL,omitempty"`
	CreatedAt     primitive.DateTime `json:"createdAt" bson:"createdAt"`
}

// Vitals carries a point-in-time measurement set.
type Vitals struct {
	HeartRate        int     `json:"heartRate" bson:"heartRate"`
	BloodPressureSys int     `json:"bloodPressureSys" bson:"bloodPressureSys"`
	BloodPressureDia int     `json:"bloodPressureDia" bson:"bloodPressureDia"`
	Temperature      float64 `json:"temperature" bson:"temperature"`
	Weight           float64 `json:"weight" bson:"weight"`
	OxygenSaturation int     `json:"oxygenSaturation" bson:"oxygenSaturation"`
}

// Abnormal flags measurements outside the screening thresholds used by the
// patient and doctor dashboards. Zero values are treated as "not measured".
func (v Vitals) Abnormal() bool {
	if v.HeartRate != 0 && (v.HeartRate < 50 || v.HeartRate > 110) {
		return true
	}
	if v.BloodPressureSys != 0 && (v.BloodPressureSys < 90 || v.BloodPressureSys > 140) {
		return true
	}
	if v.Temperature != 0 && (v.Temperature < 35.0 || v.Temperature > 38.0) {
		return true
	}
	if v.OxygenSaturation != 0 && v.OxygenSaturation < 92 {
		return true
	}
	return false
}

// Symptom severities accepted by Symptom.Severity.
const (
	SeverityMild     = "MILD"
	SeverityModerate = "MODERATE"
	SeveritySevere   = "SEVERE"
)

// ValidSeverity reports whether s is a known symptom severity.
func ValidSeverity(s string) bool {
	return s == SeverityMild || s == SeverityModerate || s == SeveritySevere
}

// Symptom is a patient-reported symptom attached to a health record.
type Symptom struct {
	Name     string `json:"name" bson:"name"`
	Severity string `json:"severity" bson:"severity"`
	Duration string `json:"duration" bson:"duration"`
	Notes    string `json:"notes" bson:"notes"`
}

// HealthRecordResponse decorates a record with the derived abnormal flag for
// list endpoints.
type HealthRecordResponse struct {
	HealthRecord `bson:",inline"`
	Flagged      bool `json:"flagged"`
}
