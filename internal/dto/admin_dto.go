package dto

import "time"

type AdminLoginRequest struct {
	Password string `json:"password" validate:"required"`
}

type AdminLoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ChatLogResponse struct {
	Id              uint      `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	UserQuestion    string    `json:"user_question"`
	AiResponse      string    `json:"ai_response"`
	Rating          *int      `json:"rating"`
	FeedbackComment *string   `json:"feedback_comment"`
	SessionId       string    `json:"session_id"`
}

// ChatLogFilter narrows a record listing. Limit 0 means no paging.
type ChatLogFilter struct {
	SessionId string
	RatedOnly bool
	Page      int
	Limit     int
}

type ChatLogStatsResponse struct {
	Total         int64                `json:"total"`
	Rated         int64                `json:"rated"`
	AverageRating *float64             `json:"average_rating"` // null when nothing is rated
	Daily         []DailyCountResponse `json:"daily"`
}

type DailyCountResponse struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// --- System Log DTOs ---

type LogListResponse struct {
	Id        string `json:"id"` // MD5 hash of the raw line
	Level     string `json:"level"`
	Module    string `json:"module"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type LogDetailResponse struct {
	LogListResponse
	Details map[string]interface{} `json:"details"`
}
