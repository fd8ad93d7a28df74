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
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/etelemed/etelemed-api/api"
	"github.com/etelemed/etelemed-api/config"
	"github.com/etelemed/etelemed-api/databases"
	"github.com/etelemed/etelemed-api/models"
)

// Consultation exported for testing purposes
type Consultation struct {
	DB       databases.ConsultationDatabase
	ADB      databases.AppointmentDatabase
	MDB      databases.ConsultationMessageDatabase
	Notifier *Notifier
}

// StartConsultationHandler opens a consultation from a confirmed appointment.
// Starting is idempotent: if a consultation already exists for the
// appointment the existing one is returned with 200 instead of an error, so
// a doctor double-clicking "start" or two portal tabs cannot fork the visit.
func (c Consultation) StartConsultationHandler(w http.ResponseWriter, r *http.Request) {
	var req models.StartConsultationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	aID, err := primitive.ObjectIDFromHex(req.AppointmentID)
	if err != nil {
		config.ErrorStatus("invalid appointment ID", http.StatusBadRequest, w, err)
		return
	}
	appointment, err := c.ADB.FindOne(context.Background(), bson.M{"_id": aID})
	if err != nil {
		config.ErrorStatus("failed to get appointment by ID", http.StatusNotFound, w, err)
		return
	}

	if existing, err := c.DB.FindOne(context.Background(), bson.M{"appointmentID": req.AppointmentID}); err == nil {
		b, _ := json.Marshal(existing)
		w.WriteHeader(http.StatusOK)
		w.Write(b)
		return
	} else if err != mongo.ErrNoDocuments {
		config.ErrorStatus("failed to check for existing consultation", http.StatusInternalServerError, w, err)
		return
	}

	if appointment.Status != models.AppointmentConfirmed {
		config.ErrorStatus("appointment must be confirmed before starting", http.StatusConflict, w,
			fmt.Errorf("appointment status is %v", appointment.Status))
		return
	}
	if time.Now().Before(appointment.AppointmentDate.Time()) {
		config.ErrorStatus("consultation cannot start before the scheduled time", http.StatusConflict, w,
			fmt.Errorf("appointment scheduled for %v", appointment.AppointmentDate.Time()))
		return
	}

	consultation := models.Consultation{
		ID:             primitive.NewObjectID(),
		AppointmentID:  req.AppointmentID,
		PatientID:      appointment.PatientID,
		DoctorID:       appointment.DoctorID,
		ChiefComplaint: req.ChiefComplaint,
		Status:         models.ConsultationInProgress,
		StartTime:      primitive.NewDateTimeFromTime(time.Now()),
	}
	_, err = c.DB.InsertOne(context.Background(), consultation)
	if err != nil {
		config.ErrorStatus("failed to create consultation", http.StatusInternalServerError, w, err)
		return
	}

	_, err = c.ADB.UpdateOne(context.Background(), bson.M{"_id": aID}, bson.M{"$set": bson.M{
		"status":    models.AppointmentInProgress,
		"updatedAt": primitive.NewDateTimeFromTime(time.Now()),
	}})
	if err != nil {
		config.ErrorStatus("failed to update appointment status", http.StatusInternalServerError, w, err)
		return
	}
	zap.S().Debugf("consultation %v started for appointment %v", consultation.ID.Hex(), req.AppointmentID)

	b, err := json.Marshal(consultation)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// CompleteConsultationHandler closes an in-progress consultation with its
// clinical outcome. A diagnosis is mandatory; the linked appointment moves to
// COMPLETED.
func (c Consultation) CompleteConsultationHandler(w http.ResponseWriter, r *http.Request) {
	consultationID := mux.Vars(r)["consultation_id"]

	var req models.CompleteConsultationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if req.Diagnosis == "" {
		config.ErrorStatus("diagnosis is required to complete a consultation", http.StatusBadRequest, w,
			fmt.Errorf("empty diagnosis"))
		return
	}

	cID, err := primitive.ObjectIDFromHex(consultationID)
	if err != nil {
		config.ErrorStatus("invalid consultation ID", http.StatusBadRequest, w, err)
		return
	}
	consultation, err := c.DB.FindOne(context.Background(), bson.M{"_id": cID})
	if err != nil {
		config.ErrorStatus("failed to get consultation by ID", http.StatusNotFound, w, err)
		return
	}
	if consultation.Status != models.ConsultationInProgress {
		config.ErrorStatus("only in-progress consultations can be completed", http.StatusConflict, w,
			fmt.Errorf("consultation status is %v", consultation.Status))
		return
	}

	set := bson.M{
		"status":               models.ConsultationCompleted,
		"diagnosis":            req.Diagnosis,
		"treatment":            req.Treatment,
		"followUpInstructions": req.FollowUpInstructions,
		"endTime":              primitive.NewDateTimeFromTime(time.Now()),
	}
	if req.Notes != "" {
		set["notes"] = req.Notes
	}
	updated, err := c.DB.UpdateOne(context.Background(), bson.M{"_id": cID}, bson.M{"$set": set})
	if err != nil {
		config.ErrorStatus("failed to complete consultation", http.StatusInternalServerError, w, err)
		return
	}

	aID, err := primitive.ObjectIDFromHex(consultation.AppointmentID)
	if err == nil {
		_, err = c.ADB.UpdateOne(context.Background(), bson.M{"_id": aID}, bson.M{"$set": bson.M{
			"status":    models.AppointmentCompleted,
			"updatedAt": primitive.NewDateTimeFromTime(time.Now()),
		}})
	}
	if err != nil {
		zap.S().Errorw("failed to complete linked appointment", "error", err, "consultationId", consultationID)
	}

	go c.Notifier.Notify(consultation.PatientID, NotifyConsultationCompleted, "Consultation completed",
		"Your doctor has completed the consultation. The summary is available in your portal.")

	b, err := json.Marshal(updated)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// UpdateConsultationNotesHandler replaces the working notes on an in-progress
// consultation.
func (c Consultation) UpdateConsultationNotesHandler(w http.ResponseWriter, r *http.Request) {
	consultationID := mux.Vars(r)["consultation_id"]

	var body struct {
		Notes string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	cID, err := primitive.ObjectIDFromHex(consultationID)
	if err != nil {
		config.ErrorStatus("invalid consultation ID", http.StatusBadRequest, w, err)
		return
	}
	consultation, err := c.DB.FindOne(context.Background(), bson.M{"_id": cID})
	if err != nil {
		config.ErrorStatus("failed to get consultation by ID", http.StatusNotFound, w, err)
		return
	}
	if !consultation.Status.Active() {
		config.ErrorStatus("consultation is closed", http.StatusConflict, w,
			fmt.Errorf("consultation status is %v", consultation.Status))
		return
	}

	updated, err := c.DB.UpdateOne(context.Background(), bson.M{"_id": cID}, bson.M{"$set": bson.M{
		"notes": body.Notes,
	}})
	if err != nil {
		config.ErrorStatus("failed to update consultation notes", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(updated)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// ConsultationByIDHandler returns a consultation by ID
func (c Consultation) ConsultationByIDHandler(w http.ResponseWriter, r *http.Request) {
	consultationID := mux.Vars(r)["consultation_id"]

	cID, err := primitive.ObjectIDFromHex(consultationID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}
	dbResp, err := c.DB.FindOne(context.Background(), bson.M{"_id": cID})
	if err != nil {
		config.ErrorStatus("failed to get consultation by ID", http.StatusNotFound, w, err)
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

// ConsultationByAppointmentIDHandler returns the consultation linked to an
// appointment, if one exists.
func (c Consultation) ConsultationByAppointmentIDHandler(w http.ResponseWriter, r *http.Request) {
	appointmentID := mux.Vars(r)["appointment_id"]

	dbResp, err := c.DB.FindOne(context.Background(), bson.M{"appointmentID": appointmentID})
	if err != nil {
		config.ErrorStatus("failed to get consultation by appointment ID", http.StatusNotFound, w, err)
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

// ConsultationsByPatientIDHandler returns all consultations for a patient,
// newest first.
func (c Consultation) ConsultationsByPatientIDHandler(w http.ResponseWriter, r *http.Request) {
	patientID := mux.Vars(r)["patient_id"]

	Limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		zap.S().Warnf(fmt.Sprintf("limit not set, using default of %v, err: %v", Limit|10, err))
		Limit = 10
	}
	Page = getPage(Page, r)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	dbResp, err := c.DB.Find(ctx, bson.M{"patientID": patientID}, databases.PaginatedOpts(Limit, Page, "startTime", true))
	if err != nil {
		config.ErrorStatus("failed to get consultations", http.StatusNotFound, w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.Consultation{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// AddConsultationMessageHandler persists one chat line for a consultation.
// The relay delivers messages live; this endpoint is the durable record and
// only accepts messages while the consultation is in progress.
func (c Consultation) AddConsultationMessageHandler(w http.ResponseWriter, r *http.Request) {
	consultationID := mux.Vars(r)["consultation_id"]

	var msg models.ConsultationMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if msg.Content == "" {
		config.ErrorStatus("message content is required", http.StatusBadRequest, w, fmt.Errorf("empty content"))
		return
	}

	cID, err := primitive.ObjectIDFromHex(consultationID)
	if err != nil {
		config.ErrorStatus("invalid consultation ID", http.StatusBadRequest, w, err)
		return
	}
	consultation, err := c.DB.FindOne(context.Background(), bson.M{"_id": cID})
	if err != nil {
		config.ErrorStatus("failed to get consultation by ID", http.StatusNotFound, w, err)
		return
	}
	if !consultation.Status.Active() {
		config.ErrorStatus("consultation is closed", http.StatusConflict, w,
			fmt.Errorf("consultation status is %v", consultation.Status))
		return
	}

	msg.ID = primitive.NewObjectID()
	msg.ConsultationID = consultationID
	msg.SentAt = primitive.NewDateTimeFromTime(time.Now())

	_, err = c.MDB.InsertOne(context.Background(), msg)
	if err != nil {
		config.ErrorStatus("failed to store message", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(msg)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// ConsultationMessagesHandler returns the persisted chat transcript of a
// consultation in send order.
func (c Consultation) ConsultationMessagesHandler(w http.ResponseWriter, r *http.Request) {
	consultationID := mux.Vars(r)["consultation_id"]

	Limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		zap.S().Warnf(fmt.Sprintf("limit not set, using default of %v, err: %v", Limit|10, err))
		Limit = 100
	}
	Page = getPage(Page, r)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	dbResp, err := c.MDB.Find(ctx, bson.M{"consultationID": consultationID}, databases.PaginatedOpts(Limit, Page, "sentAt", false))
	if err != nil {
		config.ErrorStatus("failed to get messages", http.StatusNotFound, w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.ConsultationMessage{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
