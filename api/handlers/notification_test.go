package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/etelemed/etelemed-api/api/handlers"
	"github.com/etelemed/etelemed-api/databases"
	"github.com/etelemed/etelemed-api/databases/mocks"
	"github.com/etelemed/etelemed-api/models"
)

func TestNotificationAPI_GetUserNotificationsHandlerInvalidUnread(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/v1/user/608cafd695eb9dc05379b7f3/notifications?unread=banana", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"user_id": "608cafd695eb9dc05379b7f3"})
	req.Header.Set("Authorization", "Bearer abc123")

	n := handlers.NotificationAPI{}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(n.GetUserNotificationsHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusBadRequest {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusBadRequest)
	}
}

func TestNotificationAPI_GetUserNotificationsHandlerEmpty(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/v1/user/608cafd695eb9dc05379b7f3/notifications", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"user_id": "608cafd695eb9dc05379b7f3"})
	req.Header.Set("Authorization", "Bearer abc123")

	db := &MockDatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	cursorHelper := &mocks.CursorHelper{}

	cursorHelper.On("Decode", mock.Anything).Return(nil)
	conn.On("Find", mock.Anything, mock.Anything, mock.Anything).Return(cursorHelper)
	db.On("Collection", "notifications").Return(conn)

	n := handlers.NotificationAPI{
		DB: databases.NewNotificationDatabase(db),
	}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(n.GetUserNotificationsHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}
	if rr.Body.String() != "[]" {
		t.Errorf("handler returned unexpected body: got %v want []", rr.Body.String())
	}
}

func TestNotificationAPI_MarkNotificationAsReadHandlerInvalidID(t *testing.T) {
	req, err := http.NewRequest("PUT", "/api/v1/user/608cafd695eb9dc05379b7f3/notifications/1234/read", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{
		"user_id":         "608cafd695eb9dc05379b7f3",
		"notification_id": "1234",
	})
	req.Header.Set("Authorization", "Bearer abc123")

	n := handlers.NotificationAPI{}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(n.MarkNotificationAsReadHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusBadRequest {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusBadRequest)
	}

	expected := models.ErrorMessageResponse{Response: models.MessageError{Message: "invalid notification ID", Error: "the provided hex string is not a valid ObjectID"}}
	b, _ := json.Marshal(expected)
	if rr.Body.String() != string(b) {
		t.Errorf("handler returned unexpected body: \ngot: %v \nwant: %v", rr.Body.String(), expected)
	}
}

func TestNotificationAPI_DeleteNotificationHandler(t *testing.T) {
	req, err := http.NewRequest("DELETE", "/api/v1/user/608cafd695eb9dc05379b7f3/notifications/608cafe595eb9dc05379b7f4", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{
		"user_id":         "608cafd695eb9dc05379b7f3",
		"notification_id": "608cafe595eb9dc05379b7f4",
	})
	req.Header.Set("Authorization", "Bearer abc123")

	db := &MockDatabaseHelper{}
	conn := &mocks.CollectionHelper{}

	conn.On("DeleteOne", mock.Anything, mock.Anything).Return(nil)
	db.On("Collection", "notifications").Return(conn)

	n := handlers.NotificationAPI{
		DB: databases.NewNotificationDatabase(db),
	}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(n.DeleteNotificationHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}
	if !strings.Contains(rr.Body.String(), "Notification deleted successfully") {
		t.Errorf("handler returned unexpected body: %v", rr.Body.String())
	}
}

func TestDispatchPendingEmails(t *testing.T) {
	db := &MockDatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	cursorHelper := &mocks.CursorHelper{}

	cursorHelper.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*[]models.Notification)
		*arg = []models.Notification{
			{
				UserID:  "608cafd695eb9dc05379b7f3",
				Title:   "Appointment reminder",
				Message: "You have an appointment tomorrow.",
				Channel: models.ChannelEmail,
				Status:  models.NotificationPending,
				Email:   "patient@example.com",
			},
			{
				UserID:  "608cafd695eb9dc05379b7f2",
				Title:   "Appointment reminder",
				Message: "You have an appointment tomorrow.",
				Channel: models.ChannelEmail,
				Status:  models.NotificationPending,
				Email:   "bounce@example.com",
			},
		}
	})
	conn.On("Find", mock.Anything, mock.Anything).Return(cursorHelper)
	conn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{ModifiedCount: 1}, nil)

	// The post-update read inside UpdateOne.
	singleResultHelper := &mocks.SingleResultHelper{}
	singleResultHelper.On("Decode", mock.Anything).Return(nil)
	conn.On("FindOne", mock.Anything, mock.Anything).Return(singleResultHelper)

	db.On("Collection", "notifications").Return(conn)

	var sent []string
	send := func(toEmail, toName, subject, htmlContent, plainText string) error {
		sent = append(sent, toEmail)
		if toEmail == "bounce@example.com" {
			return errors.New("mocked-error")
		}
		return nil
	}

	processed := handlers.DispatchPendingEmails(databases.NewNotificationDatabase(db), send)

	if processed != 2 {
		t.Errorf("expected 2 processed notifications, got %v", processed)
	}
	if len(sent) != 2 || sent[0] != "patient@example.com" {
		t.Errorf("unexpected send calls: %v", sent)
	}
}
