package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/etelemed/etelemed-api/api"
	"github.com/etelemed/etelemed-api/config"
	"github.com/etelemed/etelemed-api/databases"
	"github.com/etelemed/etelemed-api/models"
)

// Appointment exported for testing purposes
type Appointment struct {
	DB       databases.AppointmentDatabase
	UDB      databases.UserDatabase
	Notifier *Notifier
}

// CreateAppointmentHandler books a new appointment for a patient. The slot is
// rejected when it lies in the past or overlaps another active appointment of
// the same doctor.
func (a Appointment) CreateAppointmentHandler(w http.ResponseWriter, r *http.Request) {
	var req models.AppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if req.PatientID == "" || req.DoctorID == "" {
		config.ErrorStatus("patientID and doctorID are required", http.StatusBadRequest, w, fmt.Errorf("missing participant id"))
		return
	}
	if req.DurationMinutes <= 0 {
		req.DurationMinutes = 30
	}
	start := req.AppointmentDate.Time()
	if start.Before(time.Now()) {
		config.ErrorStatus("appointment date must be in the future", http.StatusBadRequest, w, fmt.Errorf("date %v is in the past", start))
		return
	}

	dID, err := primitive.ObjectIDFromHex(req.DoctorID)
	if err != nil {
		config.ErrorStatus("invalid doctor ID", http.StatusBadRequest, w, err)
		return
	}
	doctor, err := a.UDB.FindOne(context.Background(), bson.M{"_id": dID, "role": models.RoleDoctor})
	if err != nil {
		config.ErrorStatus("doctor not found", http.StatusNotFound, w, err)
		return
	}

	conflict, err := a.hasConflict(r.Context(), req.DoctorID, start, req.DurationMinutes)
	if err != nil {
		config.ErrorStatus("failed to check doctor availability", http.StatusInternalServerError, w, err)
		return
	}
	if conflict {
		config.ErrorStatus("doctor is not available at that time", http.StatusConflict, w, fmt.Errorf("overlapping appointment for doctor %v", req.DoctorID))
		return
	}

	appointment := models.Appointment{
		ID:              primitive.NewObjectID(),
		PatientID:       req.PatientID,
		DoctorID:        req.DoctorID,
		AppointmentDate: req.AppointmentDate,
		DurationMinutes: req.DurationMinutes,
		Status:          models.AppointmentPending,
		Reason:          req.Reason,
		Notes:           req.Notes,
		CreatedAt:       primitive.NewDateTimeFromTime(time.Now()),
		UpdatedAt:       primitive.NewDateTimeFromTime(time.Now()),
	}
	_, err = a.DB.InsertOne(context.Background(), appointment)
	if err != nil {
		config.ErrorStatus("failed to create appointment", http.StatusInternalServerError, w, err)
		return
	}

	go a.Notifier.Notify(req.DoctorID, NotifyAppointmentBooked, "New appointment request",
		fmt.Sprintf("A patient requested an appointment on %s", start.Format(time.RFC1123)))
	zap.S().Debugf("appointment %v booked with doctor %v", appointment.ID.Hex(), doctor.ID.Hex())

	b, err := json.Marshal(appointment)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// hasConflict reports whether the doctor already has a PENDING, CONFIRMED or
// IN_PROGRESS appointment overlapping [start, start+duration).
func (a Appointment) hasConflict(ctx context.Context, doctorID string, start time.Time, durationMinutes int) (bool, error) {
	end := start.Add(time.Duration(durationMinutes) * time.Minute)

	// An existing slot overlaps when it starts before our end and its own
	// end falls after our start. Durations are small, so the window check
	// fetches candidates around the slot and compares in process.
	windowStart := primitive.NewDateTimeFromTime(start.Add(-24 * time.Hour))
	windowEnd := primitive.NewDateTimeFromTime(end)
	existing, err := a.DB.Find(ctx, bson.M{
		"doctorID": doctorID,
		"status":   bson.M{"$in": []models.AppointmentStatus{models.AppointmentPending, models.AppointmentConfirmed, models.AppointmentInProgress}},
		"appointmentDate": bson.M{
			"$gte": windowStart,
			"$lt":  windowEnd,
		},
	})
	if err != nil {
		return false, err
	}
	for _, appt := range existing {
		existingStart := appt.AppointmentDate.Time()
		existingEnd := existingStart.Add(time.Duration(appt.DurationMinutes) * time.Minute)
		if existingStart.Before(end) && existingEnd.After(start) {
			return true, nil
		}
	}
	return false, nil
}

// AppointmentByIDHandler returns an appointment by ID
func (a Appointment) AppointmentByIDHandler(w http.ResponseWriter, r *http.Request) {
	appointmentID := mux.Vars(r)["appointment_id"]

	aID, err := primitive.ObjectIDFromHex(appointmentID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	dbResp, err := a.DB.FindOne(context.Background(), bson.M{"_id": aID})
	if err != nil {
		config.ErrorStatus("failed to get appointment by ID", http.StatusNotFound, w, err)
		return
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// AppointmentsByPatientIDHandler returns all appointments for a patient,
// newest first. Supports limit/page query params and an optional status
// filter.
func (a Appointment) AppointmentsByPatientIDHandler(w http.ResponseWriter, r *http.Request) {
	patientID := mux.Vars(r)["patient_id"]
	a.listAppointments(w, r, bson.M{"patientID": patientID})
}

// AppointmentsByDoctorIDHandler returns all appointments for a doctor, newest
// first.
func (a Appointment) AppointmentsByDoctorIDHandler(w http.ResponseWriter, r *http.Request) {
	doctorID := mux.Vars(r)["doctor_id"]
	a.listAppointments(w, r, bson.M{"doctorID": doctorID})
}

func (a Appointment) listAppointments(w http.ResponseWriter, r *http.Request, filter bson.M) {
	Limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		zap.S().Warnf(fmt.Sprintf("limit not set, using default of %v, err: %v", Limit|10, err))
		Limit = 10
	}
	Page = getPage(Page, r)

	if status := r.URL.Query().Get("status"); status != "" {
		if !models.AppointmentStatus(status).Valid() {
			config.ErrorStatus("invalid status value", http.StatusBadRequest, w, fmt.Errorf("unknown status %q", status))
			return
		}
		filter["status"] = models.AppointmentStatus(status)
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	dbResp, err := a.DB.Find(ctx, filter, databases.PaginatedOpts(Limit, Page, "appointmentDate", true))
	if err != nil {
		config.ErrorStatus("failed to get appointments", http.StatusNotFound, w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.Appointment{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// ConfirmAppointmentHandler moves an appointment to CONFIRMED. Only PENDING
// and RESCHEDULED appointments can be confirmed.
func (a Appointment) ConfirmAppointmentHandler(w http.ResponseWriter, r *http.Request) {
	appointment, ok := a.transition(w, r, models.AppointmentConfirmed, nil)
	if !ok {
		return
	}
	go a.Notifier.Notify(appointment.PatientID, NotifyAppointmentConfirmed, "Appointment confirmed",
		fmt.Sprintf("Your appointment on %s was confirmed", appointment.AppointmentDate.Time().Format(time.RFC1123)))
	go a.Notifier.NotifyEmail(appointment.PatientID, NotifyAppointmentConfirmed, "Appointment confirmed",
		fmt.Sprintf("Your appointment on %s was confirmed by the doctor.", appointment.AppointmentDate.Time().Format(time.RFC1123)))

	writeAppointment(w, appointment)
}

// CancelAppointmentHandler moves an appointment to CANCELLED. A non-empty
// reason is required. Completed and already-cancelled appointments cannot be
// cancelled.
func (a Appointment) CancelAppointmentHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if body.Reason == "" {
		config.ErrorStatus("cancellation reason is required", http.StatusBadRequest, w, fmt.Errorf("empty reason"))
		return
	}

	appointment, ok := a.transition(w, r, models.AppointmentCancelled, bson.M{"cancellationReason": body.Reason})
	if !ok {
		return
	}
	go a.Notifier.Notify(appointment.PatientID, NotifyAppointmentCancelled, "Appointment cancelled",
		fmt.Sprintf("Your appointment on %s was cancelled", appointment.AppointmentDate.Time().Format(time.RFC1123)))
	go a.Notifier.Notify(appointment.DoctorID, NotifyAppointmentCancelled, "Appointment cancelled",
		fmt.Sprintf("The appointment on %s was cancelled", appointment.AppointmentDate.Time().Format(time.RFC1123)))

	writeAppointment(w, appointment)
}

// RescheduleAppointmentHandler moves an appointment to a new slot. The
// appointment returns to RESCHEDULED and must be confirmed again by the
// doctor; the new slot is conflict-checked like a fresh booking.
func (a Appointment) RescheduleAppointmentHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AppointmentDate primitive.DateTime `json:"appointmentDate"`
		DurationMinutes int                `json:"durationMinutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	newStart := body.AppointmentDate.Time()
	if newStart.Before(time.Now()) {
		config.ErrorStatus("appointment date must be in the future", http.StatusBadRequest, w, fmt.Errorf("date %v is in the past", newStart))
		return
	}

	appointmentID := mux.Vars(r)["appointment_id"]
	aID, err := primitive.ObjectIDFromHex(appointmentID)
	if err != nil {
		config.ErrorStatus("invalid appointment ID", http.StatusBadRequest, w, err)
		return
	}
	current, err := a.DB.FindOne(context.Background(), bson.M{"_id": aID})
	if err != nil {
		config.ErrorStatus("failed to get appointment by ID", http.StatusNotFound, w, err)
		return
	}
	if _, err := current.Status.Transition(models.AppointmentRescheduled); err != nil {
		config.ErrorStatus("appointment cannot be rescheduled", http.StatusConflict, w, err)
		return
	}

	duration := body.DurationMinutes
	if duration <= 0 {
		duration = current.DurationMinutes
	}
	conflict, err := a.hasConflict(r.Context(), current.DoctorID, newStart, duration)
	if err != nil {
		config.ErrorStatus("failed to check doctor availability", http.StatusInternalServerError, w, err)
		return
	}
	if conflict {
		config.ErrorStatus("doctor is not available at that time", http.StatusConflict, w, fmt.Errorf("overlapping appointment for doctor %v", current.DoctorID))
		return
	}

	update := bson.M{"$set": bson.M{
		"status":          models.AppointmentRescheduled,
		"appointmentDate": body.AppointmentDate,
		"durationMinutes": duration,
		"updatedAt":       primitive.NewDateTimeFromTime(time.Now()),
	}}
	updated, err := a.DB.UpdateOne(context.Background(), bson.M{"_id": aID}, update)
	if err != nil {
		config.ErrorStatus("failed to reschedule appointment", http.StatusInternalServerError, w, err)
		return
	}

	go a.Notifier.Notify(updated.DoctorID, NotifyAppointmentRescheduled, "Appointment rescheduled",
		fmt.Sprintf("An appointment was moved to %s and needs your confirmation", newStart.Format(time.RFC1123)))

	writeAppointment(w, updated)
}

// transition loads the appointment from the path, validates the status
// change against the lifecycle table and persists it together with any extra
// fields. On failure it writes the error response and returns ok=false.
func (a Appointment) transition(w http.ResponseWriter, r *http.Request, next models.AppointmentStatus, extra bson.M) (*models.Appointment, bool) {
	appointmentID := mux.Vars(r)["appointment_id"]
	aID, err := primitive.ObjectIDFromHex(appointmentID)
	if err != nil {
		config.ErrorStatus("invalid appointment ID", http.StatusBadRequest, w, err)
		return nil, false
	}

	current, err := a.DB.FindOne(context.Background(), bson.M{"_id": aID})
	if err != nil {
		config.ErrorStatus("failed to get appointment by ID", http.StatusNotFound, w, err)
		return nil, false
	}

	newStatus, err := current.Status.Transition(next)
	if err != nil {
		config.ErrorStatus("illegal status transition", http.StatusConflict, w, err)
		return nil, false
	}

	set := bson.M{
		"status":    newStatus,
		"updatedAt": primitive.NewDateTimeFromTime(time.Now()),
	}
	for k, v := range extra {
		set[k] = v
	}
	updated, err := a.DB.UpdateOne(context.Background(), bson.M{"_id": aID}, bson.M{"$set": set})
	if err != nil {
		config.ErrorStatus("failed to update appointment", http.StatusInternalServerError, w, err)
		return nil, false
	}
	return updated, true
}

func writeAppointment(w http.ResponseWriter, appointment *models.Appointment) {
	b, err := json.Marshal(appointment)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
