package entity

import (
	"time"

	"court-advisor-be/pkg/chatstream"
)

type ChatLog struct {
	Id              uint
	Timestamp       time.Time
	UserQuestion    string
	AiResponse      string
	Rating          *int
	FeedbackComment *string
	SessionId       string
	Reasoning       string
	Citations       []chatstream.Citation
}
