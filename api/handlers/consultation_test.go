package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/etelemed/etelemed-api/api/handlers"
	"github.com/etelemed/etelemed-api/databases"
	"github.com/etelemed/etelemed-api/databases/mocks"
	"github.com/etelemed/etelemed-api/models"
)

func TestConsultation_ConsultationByIDHandler(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/v1/consultation/1234", nil)
	if err != nil {
		t.Fatal(err)
	}

	req = mux.SetURLVars(req, map[string]string{"consultation_id": "1234"})
	req.Header.Set("Authorization", "Bearer abc123")

	db := &MockDatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	singleResultHelper := &mocks.SingleResultHelper{}

	singleResultHelper.On("Decode", mock.Anything).Return(errors.New("mocked-error"))
	conn.On("FindOne", mock.Anything, mock.Anything).Return(singleResultHelper)
	db.On("Collection", "consultations").Return(conn)

	c := handlers.Consultation{
		DB: databases.NewConsultationDatabase(db),
	}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(c.ConsultationByIDHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusBadRequest {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusBadRequest)
	}

	expected := models.ErrorMessageResponse{Response: models.MessageError{Message: "failed to get objectID from Hex", Error: "the provided hex string is not a valid ObjectID"}}
	b, _ := json.Marshal(expected)
	if rr.Body.String() != string(b) {
		t.Errorf("handler returned unexpected body: \ngot: %v \nwant: %v", rr.Body.String(), expected)
	}
}

func TestConsultation_StartConsultationHandlerNotConfirmed(t *testing.T) {
	body, _ := json.Marshal(models.StartConsultationRequest{
		AppointmentID: "608cafe595eb9dc05379b7f4",
	})
	req, err := http.NewRequest("POST", "/api/v1/consultation/start", bytes.NewBuffer(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer abc123")

	db := &MockDatabaseHelper{}
	apptConn := &mocks.CollectionHelper{}
	consultConn := &mocks.CollectionHelper{}
	apptResult := &mocks.SingleResultHelper{}
	consultResult := &mocks.SingleResultHelper{}

	apptResult.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Appointment)
		(*arg).Status = models.AppointmentPending
	})
	apptConn.On("FindOne", mock.Anything, mock.Anything).Return(apptResult)

	consultResult.On("Decode", mock.Anything).Return(mongo.ErrNoDocuments)
	consultConn.On("FindOne", mock.Anything, mock.Anything).Return(consultResult)

	db.On("Collection", "appointments").Return(apptConn)
	db.On("Collection", "consultations").Return(consultConn)

	c := handlers.Consultation{
		DB:  databases.NewConsultationDatabase(db),
		ADB: databases.NewAppointmentDatabase(db),
	}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(c.StartConsultationHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusConflict {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusConflict)
	}
}

func TestConsultation_StartConsultationHandlerIdempotent(t *testing.T) {
	body, _ := json.Marshal(models.StartConsultationRequest{
		AppointmentID: "608cafe595eb9dc05379b7f4",
	})
	req, err := http.NewRequest("POST", "/api/v1/consultation/start", bytes.NewBuffer(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer abc123")

	db := &MockDatabaseHelper{}
	apptConn := &mocks.CollectionHelper{}
	consultConn := &mocks.CollectionHelper{}
	apptResult := &mocks.SingleResultHelper{}
	consultResult := &mocks.SingleResultHelper{}

	apptResult.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Appointment)
		(*arg).Status = models.AppointmentInProgress
	})
	apptConn.On("FindOne", mock.Anything, mock.Anything).Return(apptResult)

	// A consultation already exists for this appointment, so "start" hands
	// back the existing one instead of forking the visit.
	consultResult.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Consultation)
		(*arg).AppointmentID = "608cafe595eb9dc05379b7f4"
		(*arg).Status = models.ConsultationInProgress
	})
	consultConn.On("FindOne", mock.Anything, mock.Anything).Return(consultResult)

	db.On("Collection", "appointments").Return(apptConn)
	db.On("Collection", "consultations").Return(consultConn)

	c := handlers.Consultation{
		DB:  databases.NewConsultationDatabase(db),
		ADB: databases.NewAppointmentDatabase(db),
	}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(c.StartConsultationHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}

	var got models.Consultation
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if got.AppointmentID != "608cafe595eb9dc05379b7f4" {
		t.Errorf("handler returned unexpected consultation: %v", rr.Body.String())
	}
}

func TestConsultation_StartConsultationHandlerSuccess(t *testing.T) {
	body, _ := json.Marshal(models.StartConsultationRequest{
		AppointmentID:  "608cafe595eb9dc05379b7f4",
		ChiefComplaint: "persistent cough",
	})
	req, err := http.NewRequest("POST", "/api/v1/consultation/start", bytes.NewBuffer(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer abc123")

	db := &MockDatabaseHelper{}
	apptConn := &mocks.CollectionHelper{}
	consultConn := &mocks.CollectionHelper{}
	apptResult := &mocks.SingleResultHelper{}
	consultResult := &mocks.SingleResultHelper{}

	apptResult.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Appointment)
		(*arg).Status = models.AppointmentConfirmed
		(*arg).PatientID = "608cafd695eb9dc05379b7f3"
		(*arg).DoctorID = "608cafd695eb9dc05379b7f2"
		(*arg).AppointmentDate = primitive.NewDateTimeFromTime(time.Now().Add(-5 * time.Minute))
	})
	apptConn.On("FindOne", mock.Anything, mock.Anything).Return(apptResult)
	apptConn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{ModifiedCount: 1}, nil)

	consultResult.On("Decode", mock.Anything).Return(mongo.ErrNoDocuments)
	consultConn.On("FindOne", mock.Anything, mock.Anything).Return(consultResult)
	consultConn.On("InsertOne", mock.Anything, mock.Anything).Return(nil, nil)

	db.On("Collection", "appointments").Return(apptConn)
	db.On("Collection", "consultations").Return(consultConn)

	c := handlers.Consultation{
		DB:  databases.NewConsultationDatabase(db),
		ADB: databases.NewAppointmentDatabase(db),
	}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(c.StartConsultationHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusCreated {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusCreated)
	}

	var got models.Consultation
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if got.Status != models.ConsultationInProgress {
		t.Errorf("new consultation should be IN_PROGRESS, got %v", got.Status)
	}
	if got.PatientID != "608cafd695eb9dc05379b7f3" {
		t.Errorf("consultation should inherit the appointment's patient, got %v", got.PatientID)
	}
}

func TestConsultation_CompleteConsultationHandlerMissingDiagnosis(t *testing.T) {
	body, _ := json.Marshal(models.CompleteConsultationRequest{
		Treatment: "rest and fluids",
	})
	req, err := http.NewRequest("PUT", "/api/v1/consultation/608cafe595eb9dc05379b7f4/complete", bytes.NewBuffer(body))
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"consultation_id": "608cafe595eb9dc05379b7f4"})
	req.Header.Set("Authorization", "Bearer abc123")

	c := handlers.Consultation{}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(c.CompleteConsultationHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusBadRequest {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusBadRequest)
	}

	expected := models.ErrorMessageResponse{Response: models.MessageError{Message: "diagnosis is required to complete a consultation", Error: "empty diagnosis"}}
	b, _ := json.Marshal(expected)
	if rr.Body.String() != string(b) {
		t.Errorf("handler returned unexpected body: \ngot: %v \nwant: %v", rr.Body.String(), expected)
	}
}

func TestConsultation_CompleteConsultationHandlerAlreadyCompleted(t *testing.T) {
	body, _ := json.Marshal(models.CompleteConsultationRequest{
		Diagnosis: "acute bronchitis",
	})
	req, err := http.NewRequest("PUT", "/api/v1/consultation/608cafe595eb9dc05379b7f4/complete", bytes.NewBuffer(body))
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"consultation_id": "608cafe595eb9dc05379b7f4"})
	req.Header.Set("Authorization", "Bearer abc123")

	db := &MockDatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	singleResultHelper := &mocks.SingleResultHelper{}

	singleResultHelper.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Consultation)
		(*arg).Status = models.ConsultationCompleted
	})
	conn.On("FindOne", mock.Anything, mock.Anything).Return(singleResultHelper)
	db.On("Collection", "consultations").Return(conn)

	c := handlers.Consultation{
		DB: databases.NewConsultationDatabase(db),
	}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(c.CompleteConsultationHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusConflict {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusConflict)
	}
}

func TestConsultation_AddConsultationMessageHandlerClosed(t *testing.T) {
	body, _ := json.Marshal(models.ConsultationMessage{
		SenderID: "608cafd695eb9dc05379b7f3",
		Content:  "hello doctor",
	})
	req, err := http.NewRequest("POST", "/api/v1/consultation/608cafe595eb9dc05379b7f4/messages", bytes.NewBuffer(body))
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"consultation_id": "608cafe595eb9dc05379b7f4"})
	req.Header.Set("Authorization", "Bearer abc123")

	db := &MockDatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	singleResultHelper := &mocks.SingleResultHelper{}

	singleResultHelper.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Consultation)
		(*arg).Status = models.ConsultationCancelled
	})
	conn.On("FindOne", mock.Anything, mock.Anything).Return(singleResultHelper)
	db.On("Collection", "consultations").Return(conn)

	c := handlers.Consultation{
		DB: databases.NewConsultationDatabase(db),
	}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(c.AddConsultationMessageHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusConflict {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusConflict)
	}
}

func TestConsultation_AddConsultationMessageHandlerEmptyContent(t *testing.T) {
	body, _ := json.Marshal(models.ConsultationMessage{
		SenderID: "608cafd695eb9dc05379b7f3",
	})
	req, err := http.NewRequest("POST", "/api/v1/consultation/608cafe595eb9dc05379b7f4/messages", bytes.NewBuffer(body))
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"consultation_id": "608cafe595eb9dc05379b7f4"})
	req.Header.Set("Authorization", "Bearer abc123")

	c := handlers.Consultation{}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(c.AddConsultationMessageHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusBadRequest {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusBadRequest)
	}
}

func TestConsultation_ConsultationMessagesHandlerEmpty(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/v1/consultation/608cafe595eb9dc05379b7f4/messages", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"consultation_id": "608cafe595eb9dc05379b7f4"})
	req.Header.Set("Authorization", "Bearer abc123")

	db := &MockDatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	cursorHelper := &mocks.CursorHelper{}

	cursorHelper.On("Decode", mock.Anything).Return(nil)
	conn.On("Find", mock.Anything, mock.Anything, mock.Anything).Return(cursorHelper)
	db.On("Collection", "consultationMessages").Return(conn)

	c := handlers.Consultation{
		MDB: databases.NewConsultationMessageDatabase(db),
	}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(c.ConsultationMessagesHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}
	if rr.Body.String() != "[]" {
		t.Errorf("handler returned unexpected body: got %v want []", rr.Body.String())
	}
}
