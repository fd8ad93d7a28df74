package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/etelemed/etelemed-api/api"
	"github.com/etelemed/etelemed-api/config"
	"github.com/etelemed/etelemed-api/databases"
	"github.com/etelemed/etelemed-api/models"
)

// App stores the router, db connection and hubs, so it can be reused
type App struct {
	Router    *mux.Router
	DB        databases.CollectionHelper
	Config    config.Config
	Signaling *SignalingHub
	Notify    *NotificationHub
	Metrics   *api.MetricsCollector
	dbHelper  databases.DatabaseHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	// setup go-guardian for middleware
	m := api.MiddlewareDB{DB: databases.NewUserDatabase(a.dbHelper)}
	m.SetupGoGuardian()

	if a.Signaling == nil {
		a.Signaling = NewSignalingHub()
	}
	if a.Notify == nil {
		a.Notify = NewNotificationHub()
	}
	if a.Metrics == nil {
		a.Metrics = api.NewMetricsCollector()
	}

	r := mux.NewRouter()

	notifier := &Notifier{
		DB:  databases.NewNotificationDatabase(a.dbHelper),
		UDB: databases.NewUserDatabase(a.dbHelper),
		Hub: a.Notify,
	}

	u := User{DB: databases.NewUserDatabase(a.dbHelper)}
	appt := Appointment{DB: databases.NewAppointmentDatabase(a.dbHelper), UDB: databases.NewUserDatabase(a.dbHelper), Notifier: notifier}
	cons := Consultation{
		DB:       databases.NewConsultationDatabase(a.dbHelper),
		ADB:      databases.NewAppointmentDatabase(a.dbHelper),
		MDB:      databases.NewConsultationMessageDatabase(a.dbHelper),
		Notifier: notifier,
	}
	rx := Prescription{DB: databases.NewPrescriptionDatabase(a.dbHelper), CDB: databases.NewConsultationDatabase(a.dbHelper), Notifier: notifier}
	hr := HealthRecord{DB: databases.NewHealthRecordDatabase(a.dbHelper)}
	notif := NotificationAPI{DB: databases.NewNotificationDatabase(a.dbHelper)}
	callToken := CallToken{ADB: databases.NewAppointmentDatabase(a.dbHelper)}
	cloudinaryHandler := CloudinaryHandler{}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	r.Use(a.Metrics.MetricsMiddleware)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	apiCreate.Use(api.TimeoutMiddleware(30 * time.Second))

	apiCreate.Handle("/auth/token", api.Middleware(http.HandlerFunc(m.CreateToken))).Methods("POST")
	apiCreate.Handle("/auth/logout", api.Middleware(http.HandlerFunc(api.RevokeToken))).Methods("DELETE")
	apiCreate.Handle("/auth/call-token", api.Middleware(http.HandlerFunc(callToken.IssueCallTokenHandler))).Methods("POST")

	apiCreate.Handle("/user/create-user", http.HandlerFunc(u.UserCreateHandler)).Methods("POST")
	apiCreate.Handle("/user/check-user", http.HandlerFunc(u.UserCheckEmailHandler)).Methods("POST")
	apiCreate.Handle("/user/{user_id}", api.Middleware(http.HandlerFunc(u.UserHandler))).Methods("GET")
	apiCreate.Handle("/user/{user_id}", api.Middleware(http.HandlerFunc(u.UpdateUserByIDHandler))).Methods("PUT")
	apiCreate.Handle("/user/{user_id}/deactivate", api.Middleware(http.HandlerFunc(u.DeactivateUserHandler))).Methods("PUT")
	apiCreate.Handle("/doctors", api.Middleware(http.HandlerFunc(u.DoctorsHandler))).Methods("GET")

	apiCreate.Handle("/appointment", api.Middleware(http.HandlerFunc(appt.CreateAppointmentHandler))).Methods("POST")
	apiCreate.Handle("/appointment/{appointment_id}", api.Middleware(http.HandlerFunc(appt.AppointmentByIDHandler))).Methods("GET")
	apiCreate.Handle("/appointment/{appointment_id}/confirm", api.Middleware(http.HandlerFunc(appt.ConfirmAppointmentHandler))).Methods("PUT")
	apiCreate.Handle("/appointment/{appointment_id}/cancel", api.Middleware(http.HandlerFunc(appt.CancelAppointmentHandler))).Methods("PUT")
	apiCreate.Handle("/appointment/{appointment_id}/reschedule", api.Middleware(http.HandlerFunc(appt.RescheduleAppointmentHandler))).Methods("PUT")
	apiCreate.Handle("/appointments/patient/{patient_id}", api.Middleware(http.HandlerFunc(appt.AppointmentsByPatientIDHandler))).Methods("GET")
	apiCreate.Handle("/appointments/doctor/{doctor_id}", api.Middleware(http.HandlerFunc(appt.AppointmentsByDoctorIDHandler))).Methods("GET")

	apiCreate.Handle("/consultation/start", api.Middleware(http.HandlerFunc(cons.StartConsultationHandler))).Methods("POST")
	apiCreate.Handle("/consultation/{consultation_id}", api.Middleware(http.HandlerFunc(cons.ConsultationByIDHandler))).Methods("GET")
	apiCreate.Handle("/consultation/{consultation_id}/complete", api.Middleware(http.HandlerFunc(cons.CompleteConsultationHandler))).Methods("PUT")
	apiCreate.Handle("/consultation/{consultation_id}/notes", api.Middleware(http.HandlerFunc(cons.UpdateConsultationNotesHandler))).Methods("PATCH")
	apiCreate.Handle("/consultation/{consultation_id}/messages", api.Middleware(http.HandlerFunc(cons.ConsultationMessagesHandler))).Methods("GET")
	apiCreate.Handle("/consultation/{consultation_id}/messages", api.Middleware(http.HandlerFunc(cons.AddConsultationMessageHandler))).Methods("POST")
	apiCreate.Handle("/consultation/appointment/{appointment_id}", api.Middleware(http.HandlerFunc(cons.ConsultationByAppointmentIDHandler))).Methods("GET")
	apiCreate.Handle("/consultations/patient/{patient_id}", api.Middleware(http.HandlerFunc(cons.ConsultationsByPatientIDHandler))).Methods("GET")

	apiCreate.Handle("/prescription", api.Middleware(http.HandlerFunc(rx.CreatePrescriptionHandler))).Methods("POST")
	apiCreate.Handle("/prescription/{prescription_id}", api.Middleware(http.HandlerFunc(rx.PrescriptionByIDHandler))).Methods("GET")
	apiCreate.Handle("/prescription/{prescription_id}/cancel", api.Middleware(http.HandlerFunc(rx.CancelPrescriptionHandler))).Methods("PUT")
	apiCreate.Handle("/prescriptions/patient/{patient_id}", api.Middleware(http.HandlerFunc(rx.PrescriptionsByPatientIDHandler))).Methods("GET")
	apiCreate.Handle("/prescriptions/consultation/{consultation_id}", api.Middleware(http.HandlerFunc(rx.PrescriptionsByConsultationIDHandler))).Methods("GET")

	apiCreate.Handle("/health-record", api.Middleware(http.HandlerFunc(hr.CreateHealthRecordHandler))).Methods("POST")
	apiCreate.Handle("/health-record/{record_id}", api.Middleware(http.HandlerFunc(hr.HealthRecordByIDHandler))).Methods("GET")
	apiCreate.Handle("/health-records/patient/{patient_id}", api.Middleware(http.HandlerFunc(hr.HealthRecordsByPatientIDHandler))).Methods("GET")

	apiCreate.Handle("/user/{user_id}/notifications", api.Middleware(http.HandlerFunc(notif.GetUserNotificationsHandler))).Methods("GET")
	apiCreate.Handle("/user/{user_id}/notifications/{notification_id}/read", api.Middleware(http.HandlerFunc(notif.MarkNotificationAsReadHandler))).Methods("PUT")
	apiCreate.Handle("/user/{user_id}/notifications/{notification_id}", api.Middleware(http.HandlerFunc(notif.DeleteNotificationHandler))).Methods("DELETE")

	apiCreate.Handle("/generate-signature", api.Middleware(http.HandlerFunc(cloudinaryHandler.GenerateSignature))).Methods("POST")
	apiCreate.Handle("/attachments/destroy", api.Middleware(http.HandlerFunc(cloudinaryHandler.DestroyAttachmentHandler))).Methods("POST")

	apiCreate.Handle("/metrics", api.Middleware(http.HandlerFunc(a.metricsHandler))).Methods("GET")

	r.HandleFunc("/ws/notifications", a.Notify.ServeWS)
	r.HandleFunc("/ws/signaling", a.Signaling.ServeWS)

	// swagger docs hosted at "/"
	r.PathPrefix("/").Handler(http.StripPrefix("/", http.FileServer(http.Dir("./docs/"))))
	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("etelemed-api has connected to the database")

	// initialize api router
	a.initializeRoutes()
	return nil

}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

// Database exposes the connected database helper for wiring background jobs.
func (a *App) Database() databases.DatabaseHelper {
	return a.dbHelper
}

func (a *App) metricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(a.Metrics.Snapshot())
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
