package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/etelemed/etelemed-api/api/handlers"
	"github.com/etelemed/etelemed-api/databases"
	"github.com/etelemed/etelemed-api/models"
	templates "github.com/etelemed/etelemed-api/templates/html"
)

const (
	appointmentReminderJob = "appointment_reminder_job"
	prescriptionExpiryJob  = "prescription_expiry_job"
)

// RoomEvictor is the slice of the signaling hub the scheduler needs.
type RoomEvictor interface {
	EvictIdleRooms() int
}

// Scheduler handles periodic background jobs: appointment reminders, pending
// email dispatch, prescription expiry and signaling room eviction.
type Scheduler struct {
	cron       *cron.Cron
	ADB        databases.AppointmentDatabase
	PDB        databases.PrescriptionDatabase
	NDB        databases.NotificationDatabase
	UDB        databases.UserDatabase
	LockDB     databases.SchedulerLockDatabase
	Hub        RoomEvictor
	instanceID string
}

// NewScheduler creates a new scheduler instance
func NewScheduler(
	aDB databases.AppointmentDatabase,
	pDB databases.PrescriptionDatabase,
	nDB databases.NotificationDatabase,
	uDB databases.UserDatabase,
	lockDB databases.SchedulerLockDatabase,
	hub RoomEvictor,
) *Scheduler {
	// Generate a unique instance ID for this pod
	instanceID := os.Getenv("DYNO") // Heroku sets this to "web.1", "web.2", etc.
	if instanceID == "" {
		instanceID = fmt.Sprintf("instance-%d", time.Now().UnixNano())
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		ADB:        aDB,
		PDB:        pDB,
		NDB:        nDB,
		UDB:        uDB,
		LockDB:     lockDB,
		Hub:        hub,
		instanceID: instanceID,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	// Remind patients of confirmed appointments starting within 24 hours
	_, err := s.cron.AddFunc("0 * * * *", s.sendAppointmentReminders)
	if err != nil {
		zap.S().Errorw("failed to register appointment reminder job", "error", err)
	}

	// Dispatch queued email notifications
	_, err = s.cron.AddFunc("*/5 * * * *", s.dispatchPendingEmails)
	if err != nil {
		zap.S().Errorw("failed to register email dispatch job", "error", err)
	}

	// Expire prescriptions past their validity date daily at 1 AM UTC
	_, err = s.cron.AddFunc("0 1 * * *", s.expirePrescriptions)
	if err != nil {
		zap.S().Errorw("failed to register prescription expiry job", "error", err)
	}

	// Reclaim idle signaling rooms
	_, err = s.cron.AddFunc("30 * * * *", s.evictIdleRooms)
	if err != nil {
		zap.S().Errorw("failed to register room eviction job", "error", err)
	}

	s.cron.Start()
	zap.S().Info("background scheduler started")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("background scheduler stopped")
}

// sendAppointmentReminders emails and pushes a reminder for every CONFIRMED
// appointment starting in the next 24 hours that has not been reminded yet.
func (s *Scheduler) sendAppointmentReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	acquired, err := s.LockDB.TryAcquireLock(ctx, appointmentReminderJob, s.instanceID, 10*time.Minute)
	if err != nil {
		zap.S().Errorw("failed to acquire lock for reminder job", "error", err)
		return
	}
	if !acquired {
		zap.S().Debug("reminder job already running on another instance, skipping")
		return
	}
	defer s.LockDB.ReleaseLock(ctx, appointmentReminderJob, s.instanceID)

	now := time.Now()
	filter := bson.M{
		"status": models.AppointmentConfirmed,
		"appointmentDate": bson.M{
			"$gt": primitive.NewDateTimeFromTime(now),
			"$lt": primitive.NewDateTimeFromTime(now.Add(24 * time.Hour)),
		},
		"reminderSentAt": nil,
	}
	appointments, err := s.ADB.Find(ctx, filter)
	if err != nil {
		zap.S().Errorw("failed to find appointments needing reminders", "error", err)
		return
	}

	for _, appt := range appointments {
		s.remindAppointment(ctx, appt)
	}
	if len(appointments) > 0 {
		zap.S().Infow("appointment reminders processed", "count", len(appointments))
	}
}

func (s *Scheduler) remindAppointment(ctx context.Context, appt models.Appointment) {
	patient, doctor := s.lookupParticipants(ctx, appt)
	if patient == nil {
		zap.S().Warnw("skipping reminder, patient not found", "appointmentId", appt.ID.Hex())
		return
	}

	doctorName := "your doctor"
	if doctor != nil {
		doctorName = doctor.DisplayName()
	}
	when := appt.AppointmentDate.Time()

	if patient.Email != "" {
		subject := "Appointment reminder"
		htmlContent := templates.RenderAppointmentReminderEmail(patient.DisplayName(), doctorName, when)
		plainText := fmt.Sprintf("Reminder: your appointment with %s is on %s.", doctorName, when.Format(time.RFC1123))
		if err := handlers.SendEmail(patient.Email, patient.DisplayName(), subject, htmlContent, plainText); err != nil {
			zap.S().Errorw("failed to send reminder email", "error", err, "appointmentId", appt.ID.Hex())
			return
		}
	}

	_, err := s.ADB.UpdateOne(ctx, bson.M{"_id": appt.ID}, bson.M{"$set": bson.M{
		"reminderSentAt": primitive.NewDateTimeFromTime(time.Now()),
	}})
	if err != nil {
		zap.S().Errorw("failed to mark reminder as sent", "error", err, "appointmentId", appt.ID.Hex())
	}
}

func (s *Scheduler) lookupParticipants(ctx context.Context, appt models.Appointment) (patient, doctor *models.User) {
	if pID, err := primitive.ObjectIDFromHex(appt.PatientID); err == nil {
		patient, _ = s.UDB.FindOne(ctx, bson.M{"_id": pID})
	}
	if dID, err := primitive.ObjectIDFromHex(appt.DoctorID); err == nil {
		doctor, _ = s.UDB.FindOne(ctx, bson.M{"_id": dID})
	}
	return patient, doctor
}

func (s *Scheduler) dispatchPendingEmails() {
	processed := handlers.DispatchPendingEmails(s.NDB, handlers.SendEmail)
	if processed > 0 {
		zap.S().Infow("pending email dispatch complete", "processed", processed)
	}
}

// expirePrescriptions flips ACTIVE prescriptions past their validUntil date
// to EXPIRED.
func (s *Scheduler) expirePrescriptions() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	acquired, err := s.LockDB.TryAcquireLock(ctx, prescriptionExpiryJob, s.instanceID, 10*time.Minute)
	if err != nil {
		zap.S().Errorw("failed to acquire lock for prescription expiry job", "error", err)
		return
	}
	if !acquired {
		zap.S().Debug("prescription expiry job already running on another instance, skipping")
		return
	}
	defer s.LockDB.ReleaseLock(ctx, prescriptionExpiryJob, s.instanceID)

	stale, err := s.PDB.Find(ctx, bson.M{
		"status":     models.PrescriptionActive,
		"validUntil": bson.M{"$lt": primitive.NewDateTimeFromTime(time.Now())},
	})
	if err != nil {
		zap.S().Errorw("failed to find expired prescriptions", "error", err)
		return
	}

	for _, prescription := range stale {
		_, err := s.PDB.UpdateOne(ctx, bson.M{"_id": prescription.ID}, bson.M{"$set": bson.M{
			"status":    models.PrescriptionExpired,
			"updatedAt": primitive.NewDateTimeFromTime(time.Now()),
		}})
		if err != nil {
			zap.S().Errorw("failed to expire prescription", "error", err, "prescriptionId", prescription.ID.Hex())
		}
	}
	if len(stale) > 0 {
		zap.S().Infow("expired prescriptions", "count", len(stale))
	}
}

func (s *Scheduler) evictIdleRooms() {
	if s.Hub == nil {
		return
	}
	s.Hub.EvictIdleRooms()
}
