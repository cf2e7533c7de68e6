package model

import (
	"time"

	"gorm.io/datatypes"
)

// ChatLog is one completed turn awaiting (or holding) a satisfaction rating.
// Columns after AiResponse were added over time and stay nullable so
// AutoMigrate can add them to an existing table in place.
type ChatLog struct {
	Id              uint           `gorm:"primaryKey;autoIncrement"`
	Timestamp       time.Time      `gorm:"index"`
	UserQuestion    string         `gorm:"type:text"`
	AiResponse      string         `gorm:"type:text"`
	Rating          *int           `gorm:"type:integer"`
	FeedbackComment *string        `gorm:"type:text"`
	SessionId       *string        `gorm:"type:text;index"`
	Reasoning       *string        `gorm:"type:text"`
	Citations       datatypes.JSON `gorm:"type:json"`
}

func (ChatLog) TableName() string {
	return "chat_logs"
}
