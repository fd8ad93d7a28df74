package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/etelemed/etelemed-api/api/handlers"
	"github.com/etelemed/etelemed-api/api/scheduler"
	"github.com/etelemed/etelemed-api/config"
	"github.com/etelemed/etelemed-api/databases"
)

func main() {
	a := handlers.App{}
	a.Config = *config.New()

	if err := a.Initialize(); err != nil { //initialize database and router
		log.Fatal(err)
	}

	dbHelper := a.Database()
	s := scheduler.NewScheduler(
		databases.NewAppointmentDatabase(dbHelper),
		databases.NewPrescriptionDatabase(dbHelper),
		databases.NewNotificationDatabase(dbHelper),
		databases.NewUserDatabase(dbHelper),
		databases.NewSchedulerLockDatabase(dbHelper),
		a.Signaling,
	)
	s.Start()
	defer s.Stop()

	port := os.Getenv("PORT")
	baseURL := os.Getenv("BASE_URL")
	zap.S().Infow("etelemed-api is up and running",
		"port", port,
		"url", baseURL,
	)
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%v", port), a.Router))
}
