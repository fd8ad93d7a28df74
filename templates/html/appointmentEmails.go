package templates

import (
	"fmt"
	"html"
	"time"
)

// RenderAppointmentConfirmedEmail generates the email sent to a patient when
// the doctor confirms an appointment.
func RenderAppointmentConfirmedEmail(patientName, doctorName string, when time.Time) string {
	body := fmt.Sprintf("Hi %s,\n\nYour appointment with Dr. %s on %s has been confirmed.\n\nYou can join the video consultation from your portal a few minutes before the scheduled time.",
		html.EscapeString(patientName), html.EscapeString(doctorName), when.Format(time.RFC1123))
	return RenderGenericEmail("Appointment confirmed", body)
}

// RenderAppointmentReminderEmail generates the 24-hour reminder email.
func RenderAppointmentReminderEmail(patientName, doctorName string, when time.Time) string {
	body := fmt.Sprintf("Hi %s,\n\nThis is a reminder that your appointment with Dr. %s is coming up on %s.",
		html.EscapeString(patientName), html.EscapeString(doctorName), when.Format(time.RFC1123))
	return RenderGenericEmail("Appointment reminder", body)
}

// RenderAppointmentCancelledEmail generates the email sent when an
// appointment is cancelled. The reason may be empty.
func RenderAppointmentCancelledEmail(recipientName string, when time.Time, reason string) string {
	body := fmt.Sprintf("Hi %s,\n\nThe appointment scheduled for %s has been cancelled.",
		html.EscapeString(recipientName), when.Format(time.RFC1123))
	if reason != "" {
		body += fmt.Sprintf("\n\nReason: %s", html.EscapeString(reason))
	}
	return RenderGenericEmail("Appointment cancelled", body)
}
