package main

import (
	"log"

	"court-advisor-be/internal/config"
	"court-advisor-be/internal/model"
	"court-advisor-be/pkg/database"
)

func main() {
	// 1. Load Configuration (.env + environment)
	cfg := config.Load()

	// 2. Connect to Database using existing GORM helpers
	db, err := database.NewGormDB(database.GormConfig{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.Connection,
	})
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	// 3. AutoMigrate creates chat_logs or adds the nullable columns an older
	// table lacks. Existing rows are never rewritten.
	log.Printf("Running AutoMigrate for chat_logs (%s)...", cfg.Database.Driver)
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("Error: Migration failed: %v", err)
	}

	var count int64
	if err := db.Model(&model.ChatLog{}).Count(&count).Error; err != nil {
		log.Fatalf("Error: Failed to count chat logs: %v", err)
	}
	log.Printf("Migration complete. chat_logs holds %d records.", count)
}
