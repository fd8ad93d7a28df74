package handlers

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/etelemed/etelemed-api/databases"
	"github.com/etelemed/etelemed-api/models"
	templates "github.com/etelemed/etelemed-api/templates/html"
)

func renderNotificationEmail(n models.Notification) string {
	return templates.RenderGenericEmail(n.Title, n.Message)
}

// Notification types emitted by the appointment and consultation handlers.
const (
	NotifyAppointmentBooked      = "APPOINTMENT_BOOKED"
	NotifyAppointmentConfirmed   = "APPOINTMENT_CONFIRMED"
	NotifyAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	NotifyAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	NotifyAppointmentReminder    = "APPOINTMENT_REMINDER"
	NotifyConsultationCompleted  = "CONSULTATION_COMPLETED"
	NotifyPrescriptionIssued     = "PRESCRIPTION_ISSUED"
)

// Notifier persists notifications and pushes them to connected portals.
// IN_APP notifications go out over the notifications websocket immediately;
// EMAIL notifications are stored PENDING and picked up by the scheduler's
// dispatch job.
type Notifier struct {
	DB  databases.NotificationDatabase
	UDB databases.UserDatabase
	Hub *NotificationHub
}

// Notify records a notification for userID and pushes it in-app. It is safe
// to call from a request handler; failures are logged, never surfaced to the
// caller, so a broken notification pipeline cannot fail a booking.
func (n *Notifier) Notify(userID, notifType, title, message string) {
	notification := models.Notification{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		Type:      notifType,
		Title:     title,
		Message:   message,
		Channel:   models.ChannelInApp,
		Status:    models.NotificationSent,
		CreatedAt: primitive.NewDateTimeFromTime(time.Now()),
		SentAt:    primitive.NewDateTimeFromTime(time.Now()),
	}

	_, err := n.DB.InsertOne(context.Background(), notification)
	if err != nil {
		zap.S().Errorw("failed to store notification", "error", err, "userId", userID, "type", notifType)
		return
	}
	if n.Hub != nil {
		n.Hub.Push(userID, notification)
	}
}

// NotifyEmail queues an email notification for the scheduler to dispatch.
// The recipient address is resolved now so the dispatch job does not need a
// user lookup per pending row.
func (n *Notifier) NotifyEmail(userID, notifType, title, message string) {
	uID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		zap.S().Errorw("invalid user id for email notification", "error", err, "userId", userID)
		return
	}
	user, err := n.UDB.FindOne(context.Background(), bson.M{"_id": uID})
	if err != nil {
		zap.S().Errorw("failed to resolve email recipient", "error", err, "userId", userID)
		return
	}
	if user.Email == "" {
		zap.S().Warnw("user has no email, skipping email notification", "userId", userID)
		return
	}

	notification := models.Notification{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		Type:      notifType,
		Title:     title,
		Message:   message,
		Channel:   models.ChannelEmail,
		Status:    models.NotificationPending,
		Email:     user.Email,
		CreatedAt: primitive.NewDateTimeFromTime(time.Now()),
	}
	_, err = n.DB.InsertOne(context.Background(), notification)
	if err != nil {
		zap.S().Errorw("failed to queue email notification", "error", err, "userId", userID, "type", notifType)
	}
}

// SendEmail delivers one email through SendGrid.
func SendEmail(toEmail, toName, subject, htmlContent, plainText string) error {
	from := mail.NewEmail("eTelemed", "no-reply@etelemed.example.com")
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, plainText, htmlContent)
	client := sendgrid.NewSendClient(os.Getenv("SENDGRID_API_KEY"))
	response, err := client.Send(message)
	if err != nil {
		zap.S().Errorw("failed to send email", "error", err, "to", toEmail)
		return err
	}
	if response.StatusCode >= 400 {
		zap.S().Errorw("sendgrid returned error status", "status", response.StatusCode, "body", response.Body, "to", toEmail)
		return fmt.Errorf("sendgrid error: status %d", response.StatusCode)
	}
	zap.S().Infow("email sent successfully", "to", toEmail, "subject", subject)
	return nil
}
