// Command createsuperuser adds an administrator account.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"attendancecontrol/internal/attendance"
	"attendancecontrol/internal/config"
	"attendancecontrol/internal/store"
)

func main() {
	email := flag.String("email", "", "email address of the new superuser")
	password := flag.String("password", os.Getenv("SUPERUSER_PASSWORD"), "password (defaults to $SUPERUSER_PASSWORD)")
	first := flag.String("first-name", "", "first name")
	last := flag.String("last-name", "", "last name")
	flag.Parse()

	cfg := config.Load()
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	if cfg.AutoMigrate {
		if err := store.Migrate(db.SQL); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	users := attendance.NewUserManager(attendance.NewRepository(db.Client))
	u, err := users.CreateSuperuser(ctx, *email, *password, attendance.UserFields{FirstName: *first, LastName: *last})
	if err != nil {
		log.Fatalf("create superuser: %v", err)
	}
	log.Printf("superuser %s created (id %d)", u, u.ID)
}
