package database

import (
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"concierge-gateway/internal/config"
	"concierge-gateway/internal/models"
	pkgmodels "concierge-gateway/pkg/models"
)

var DB *gorm.DB

// InitDB opens sqlite at DBPath, or postgres when DB_DSN is set.
func InitDB(cfg *config.Config) {
	var dialector gorm.Dialector
	if cfg.DBDSN != "" {
		dialector = postgres.Open(cfg.DBDSN)
	} else {
		dialector = sqlite.Open(cfg.DBPath)
	}

	var err error
	DB, err = gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	err = DB.AutoMigrate(
		&models.Lead{},
		&models.ChatLogEntry{},
	)
	if err != nil {
		log.Fatalf("Failed to run auto-migration: %v", err)
	}

	log.Println("Database migration completed")
}

// MessageRecorder copies widget messages into the audit log. Implements the
// chat engine's Recorder.
type MessageRecorder struct {
	DB *gorm.DB
}

func (r *MessageRecorder) RecordMessage(sessionID string, msg pkgmodels.Message) {
	if r == nil || r.DB == nil {
		return
	}
	entry := models.ChatLogEntry{
		SessionID: sessionID,
		MessageID: msg.ID,
		Sender:    msg.Sender,
		Content:   msg.Content,
	}
	if err := r.DB.Create(&entry).Error; err != nil {
		log.Printf("Error recording chat message: %v", err)
	}
}

// SaveLead persists one lead submission.
func SaveLead(db *gorm.DB, lead *models.Lead) {
	if db == nil {
		return
	}
	if err := db.Create(lead).Error; err != nil {
		log.Printf("Error saving lead: %v", err)
	}
}
