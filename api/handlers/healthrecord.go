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

// HealthRecord exported for testing purposes
type HealthRecord struct {
	DB databases.HealthRecordDatabase
}

// CreateHealthRecordHandler stores a self-reported measurement set for a
// patient.
func (h HealthRecord) CreateHealthRecordHandler(w http.ResponseWriter, r *http.Request) {
	var record models.HealthRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if record.PatientID == "" {
		config.ErrorStatus("patientID is required", http.StatusBadRequest, w, fmt.Errorf("missing patientID"))
		return
	}
	for i, symptom := range record.Symptoms {
		if symptom.Name == "" {
			config.ErrorStatus("symptom name is required", http.StatusBadRequest, w,
				fmt.Errorf("symptom at index %d has no name", i))
			return
		}
		if symptom.Severity != "" && !models.ValidSeverity(symptom.Severity) {
			config.ErrorStatus("invalid symptom severity", http.StatusBadRequest, w,
				fmt.Errorf("unknown severity %q", symptom.Severity))
			return
		}
	}

	record.ID = primitive.NewObjectID()
	if record.RecordedAt.Time().Unix() <= 0 {
		record.RecordedAt = primitive.NewDateTimeFromTime(time.Now())
	}
	record.CreatedAt = primitive.NewDateTimeFromTime(time.Now())

	_, err := h.DB.InsertOne(context.Background(), record)
	if err != nil {
		config.ErrorStatus("failed to create health record", http.StatusInternalServerError, w, err)
		return
	}
	if record.Vitals.Abnormal() {
		zap.S().Infow("abnormal vitals recorded", "patientId", record.PatientID, "recordId", record.ID.Hex())
	}

	b, err := json.Marshal(models.HealthRecordResponse{HealthRecord: record, Flagged: record.Vitals.Abnormal()})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// HealthRecordByIDHandler returns a health record by ID
func (h HealthRecord) HealthRecordByIDHandler(w http.ResponseWriter, r *http.Request) {
	recordID := mux.Vars(r)["record_id"]

	rID, err := primitive.ObjectIDFromHex(recordID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}
	dbResp, err := h.DB.FindOne(context.Background(), bson.M{"_id": rID})
	if err != nil {
		config.ErrorStatus("failed to get health record by ID", http.StatusNotFound, w, err)
		return
	}

	b, err := json.Marshal(models.HealthRecordResponse{HealthRecord: *dbResp, Flagged: dbResp.Vitals.Abnormal()})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// HealthRecordsByPatientIDHandler returns a patient's health records, newest
// first, each decorated with the abnormal-vitals flag.
func (h HealthRecord) HealthRecordsByPatientIDHandler(w http.ResponseWriter, r *http.Request) {
	patientID := mux.Vars(r)["patient_id"]

	Limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		zap.S().Warnf(fmt.Sprintf("limit not set, using default of %v, err: %v", Limit|10, err))
		Limit = 10
	}
	Page = getPage(Page, r)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	dbResp, err := h.DB.Find(ctx, bson.M{"patientID": patientID}, databases.PaginatedOpts(Limit, Page, "recordedAt", true))
	if err != nil {
		config.ErrorStatus("failed to get health records", http.StatusNotFound, w, err)
		return
	}

	out := make([]models.HealthRecordResponse, 0, len(dbResp))
	for _, record := range dbResp {
		out = append(out, models.HealthRecordResponse{HealthRecord: record, Flagged: record.Vitals.Abnormal()})
	}
	b, err := json.Marshal(out)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
