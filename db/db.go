package db

import (
	"Gin_postgres_redis_equipment_tool/models"
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func ConnectDB(dsn string) *gorm.DB {
	var (
		conn *gorm.DB
		err  error
	)
	const maxAttempts = 10
	for i := 1; i <= maxAttempts; i++ {
		conn, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err == nil {
			break
		}
		log.Printf("db: connect attempt %d/%d failed: %v", i, maxAttempts, err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		log.Fatalf("db: connect: %v", err)
	}

	if err := Migrate(conn); err != nil {
		log.Fatalf("db: migrate: %v", err)
	}
	log.Println("Database connected")
	return conn
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Equipment{}, &models.Request{}, &models.ConditionLog{}); err != nil {
		return err
	}

	// A unit has at most one approved, unreturned request.
	if err := db.Exec(fmt.Sprintf(`
	  CREATE UNIQUE INDEX IF NOT EXISTS %s_one_open_per_equipment
	  ON %s (equipment_id)
	  WHERE status = 'approved' AND returned_at IS NULL;
	`, models.RequestTable, models.RequestTable)).Error; err != nil {
		return err
	}

	// Overdue scan.
	if err := db.Exec(fmt.Sprintf(`
	  CREATE INDEX IF NOT EXISTS %s_open_due
	  ON %s (due_date)
	  WHERE status = 'approved' AND returned_at IS NULL;
	`, models.RequestTable, models.RequestTable)).Error; err != nil {
		return err
	}

	return nil
}
