package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/etelemed/etelemed-api/api"
	"github.com/etelemed/etelemed-api/config"
	"github.com/etelemed/etelemed-api/databases"
	"github.com/etelemed/etelemed-api/models"
)

// CallToken exported for testing purposes
type CallToken struct {
	ADB databases.AppointmentDatabase
}

type callTokenRequest struct {
	UserID        string `json:"userID"`
	AppointmentID string `json:"appointmentID"`
}

// IssueCallTokenHandler mints a short-lived room-scoped token for the
// signaling websocket. The room ID is the appointment ID; only the two
// participants of the appointment can obtain a token, and only while the
// appointment is CONFIRMED or IN_PROGRESS.
func (c CallToken) IssueCallTokenHandler(w http.ResponseWriter, r *http.Request) {
	var req callTokenRequest
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

	var role string
	switch req.UserID {
	case appointment.PatientID:
		role = models.RolePatient
	case appointment.DoctorID:
		role = models.RoleDoctor
	default:
		config.ErrorStatus("user is not a participant of this appointment", http.StatusForbidden, w,
			fmt.Errorf("user %v not on appointment %v", req.UserID, req.AppointmentID))
		return
	}

	if appointment.Status != models.AppointmentConfirmed && appointment.Status != models.AppointmentInProgress {
		config.ErrorStatus("appointment is not ready for a call", http.StatusConflict, w,
			fmt.Errorf("appointment status is %v", appointment.Status))
		return
	}

	token, err := api.NewCallToken(req.UserID, role, req.AppointmentID)
	if err != nil {
		config.ErrorStatus("failed to create call token", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"token":  token,
		"roomID": req.AppointmentID,
		"role":   role,
	})
}
