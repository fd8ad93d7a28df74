// Package docs eTelemed API.
//
// Documentation of the eTelemed telemedicine API.
//
//     Schemes: https
//     BasePath: /
//     Version: 1.0.0
//     Host: https://api.etelemed.example.com
//
//     Consumes:
//     - application/json
//
//     Produces:
//     - application/json
//
//     Security:
//     - basic
//
//    SecurityDefinitions:
//    basic:
//      type: basic
//
// swagger:meta
package docs

import (
	"github.com/etelemed/etelemed-api/models"
)

// swagger:route GET /health health healthEndpointID
// Reports whether the web service api is alive.
// responses:
//   200: healthResponse

// Shows the current health of the api. true means it is alive, false means it is not.
// swagger:response healthResponse
type healthResponseWrapper struct {
	// in:body
	Body models.HealthCheckResponse
}

// swagger:route GET /api/v1/user/{user_id} user userByID
// Gets a single user by ID.
// responses:
//   200: userByIDResponse

// Shows a single user by the given {user_id}
// swagger:response userByIDResponse
type userByIDResponseWrapper struct {
	// in:body
	Body models.User
}

// swagger:route GET /api/v1/appointment/{appointment_id} appointment appointmentByID
// Gets a single appointment by ID.
// responses:
//   200: appointmentByIDResponse

// Shows a single appointment by the given {appointment_id}
// swagger:response appointmentByIDResponse
type appointmentByIDResponseWrapper struct {
	// in:body
	Body models.Appointment
}

// swagger:route GET /api/v1/appointments/patient/{patient_id} appointment appointmentsByPatientID
// Lists appointments for a patient, optionally filtered by status.
// responses:
//   200: appointmentListResponse

// A list of appointments
// swagger:response appointmentListResponse
type appointmentListResponseWrapper struct {
	// in:body
	Body []models.Appointment
}

// swagger:route GET /api/v1/consultation/{consultation_id} consultation consultationByID
// Gets a single consultation by ID.
// responses:
//   200: consultationByIDResponse

// Shows a single consultation by the given {consultation_id}
// swagger:response consultationByIDResponse
type consultationByIDResponseWrapper struct {
	// in:body
	Body models.Consultation
}

// swagger:route GET /api/v1/consultation/{consultation_id}/messages consultation consultationMessages
// Lists the chat transcript of a consultation.
// responses:
//   200: consultationMessagesResponse

// A list of consultation chat messages
// swagger:response consultationMessagesResponse
type consultationMessagesResponseWrapper struct {
	// in:body
	Body []models.ConsultationMessage
}

// swagger:route GET /api/v1/prescription/{prescription_id} prescription prescriptionByID
// Gets a single prescription by ID.
// responses:
//   200: prescriptionByIDResponse

// Shows a single prescription by the given {prescription_id}
// swagger:response prescriptionByIDResponse
type prescriptionByIDResponseWrapper struct {
	// in:body
	Body models.Prescription
}

// swagger:route GET /api/v1/health-record/{record_id} healthRecord healthRecordByID
// Gets a single health record by ID.
// responses:
//   200: healthRecordByIDResponse

// Shows a single health record, flagged when its vitals are abnormal
// swagger:response healthRecordByIDResponse
type healthRecordByIDResponseWrapper struct {
	// in:body
	Body models.HealthRecordResponse
}

// swagger:route GET /api/v1/notifications/user/{user_id} notification notificationsByUserID
// Lists notifications for a user, optionally filtered to unread.
// responses:
//   200: notificationListResponse

// A list of notifications
// swagger:response notificationListResponse
type notificationListResponseWrapper struct {
	// in:body
	Body []models.Notification
}

// swagger:response errorMessageResponse
type errorMessageResponseWrapper struct {
	// in:body
	Body models.ErrorMessageResponse
}
