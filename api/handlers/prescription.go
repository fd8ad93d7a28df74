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

// Prescription exported for testing purposes
type Prescription struct {
	DB       databases.PrescriptionDatabase
	CDB      databases.ConsultationDatabase
	Notifier *Notifier
}

// CreatePrescriptionHandler issues a prescription against a completed
// consultation. Every medication entry needs a name and dosage.
func (p Prescription) CreatePrescriptionHandler(w http.ResponseWriter, r *http.Request) {
	var req models.Prescription
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if len(req.Medications) == 0 {
		config.ErrorStatus("at least one medication is required", http.StatusBadRequest, w, fmt.Errorf("empty medications"))
		return
	}
	for i, med := range req.Medications {
		if med.Name == "" || med.Dosage == "" {
			config.ErrorStatus("medication name and dosage are required", http.StatusBadRequest, w,
				fmt.Errorf("medication at index %d is incomplete", i))
			return
		}
	}

	cID, err := primitive.ObjectIDFromHex(req.ConsultationID)
	if err != nil {
		config.ErrorStatus("invalid consultation ID", http.StatusBadRequest, w, err)
		return
	}
	consultation, err := p.CDB.FindOne(context.Background(), bson.M{"_id": cID})
	if err != nil {
		config.ErrorStatus("failed to get consultation by ID", http.StatusNotFound, w, err)
		return
	}
	if consultation.Status != models.ConsultationCompleted {
		config.ErrorStatus("prescriptions can only be issued for completed consultations", http.StatusConflict, w,
			fmt.Errorf("consultation status is %v", consultation.Status))
		return
	}

	req.ID = primitive.NewObjectID()
	req.PatientID = consultation.PatientID
	req.DoctorID = consultation.DoctorID
	if req.Diagnosis == "" {
		req.Diagnosis = consultation.Diagnosis
	}
	if req.ValidUntil.Time().Before(time.Now()) {
		req.ValidUntil = primitive.NewDateTimeFromTime(time.Now().AddDate(0, 1, 0))
	}
	req.Status = models.PrescriptionActive
	req.CreatedAt = primitive.NewDateTimeFromTime(time.Now())
	req.UpdatedAt = primitive.NewDateTimeFromTime(time.Now())

	_, err = p.DB.InsertOne(context.Background(), req)
	if err != nil {
		config.ErrorStatus("failed to create prescription", http.StatusInternalServerError, w, err)
		return
	}

	go p.Notifier.Notify(req.PatientID, NotifyPrescriptionIssued, "New prescription",
		"Your doctor issued a new prescription. Check your portal for details.")
	zap.S().Debugf("prescription %v issued for consultation %v", req.ID.Hex(), req.ConsultationID)

	b, err := json.Marshal(req)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// PrescriptionByIDHandler returns a prescription by ID
func (p Prescription) PrescriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	prescriptionID := mux.Vars(r)["prescription_id"]

	pID, err := primitive.ObjectIDFromHex(prescriptionID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}
	dbResp, err := p.DB.FindOne(context.Background(), bson.M{"_id": pID})
	if err != nil {
		config.ErrorStatus("failed to get prescription by ID", http.StatusNotFound, w, err)
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

// PrescriptionsByPatientIDHandler returns all prescriptions for a patient,
// newest first.
func (p Prescription) PrescriptionsByPatientIDHandler(w http.ResponseWriter, r *http.Request) {
	patientID := mux.Vars(r)["patient_id"]

	Limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		zap.S().Warnf(fmt.Sprintf("limit not set, using default of %v, err: %v", Limit|10, err))
		Limit = 10
	}
	Page = getPage(Page, r)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	dbResp, err := p.DB.Find(ctx, bson.M{"patientID": patientID}, databases.PaginatedOpts(Limit, Page, "createdAt", true))
	if err != nil {
		config.ErrorStatus("failed to get prescriptions", http.StatusNotFound, w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.Prescription{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// PrescriptionsByConsultationIDHandler returns the prescriptions issued for a
// consultation.
func (p Prescription) PrescriptionsByConsultationIDHandler(w http.ResponseWriter, r *http.Request) {
	consultationID := mux.Vars(r)["consultation_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	dbResp, err := p.DB.Find(ctx, bson.M{"consultationID": consultationID})
	if err != nil {
		config.ErrorStatus("failed to get prescriptions", http.StatusNotFound, w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.Prescription{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// CancelPrescriptionHandler revokes an active prescription.
func (p Prescription) CancelPrescriptionHandler(w http.ResponseWriter, r *http.Request) {
	prescriptionID := mux.Vars(r)["prescription_id"]

	pID, err := primitive.ObjectIDFromHex(prescriptionID)
	if err != nil {
		config.ErrorStatus("invalid prescription ID", http.StatusBadRequest, w, err)
		return
	}
	prescription, err := p.DB.FindOne(context.Background(), bson.M{"_id": pID})
	if err != nil {
		config.ErrorStatus("failed to get prescription by ID", http.StatusNotFound, w, err)
		return
	}
	if prescription.Status != models.PrescriptionActive {
		config.ErrorStatus("only active prescriptions can be cancelled", http.StatusConflict, w,
			fmt.Errorf("prescription status is %v", prescription.Status))
		return
	}

	updated, err := p.DB.UpdateOne(context.Background(), bson.M{"_id": pID}, bson.M{"$set": bson.M{
		"status":    models.PrescriptionCancelled,
		"updatedAt": primitive.NewDateTimeFromTime(time.Now()),
	}})
	if err != nil {
		config.ErrorStatus("failed to cancel prescription", http.StatusInternalServerError, w, err)
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
