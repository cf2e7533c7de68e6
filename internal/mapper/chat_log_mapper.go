package mapper

import (
	"encoding/json"

	"court-advisor-be/internal/entity"
	"court-advisor-be/internal/model"
	"court-advisor-be/pkg/chatstream"

	"gorm.io/datatypes"
)

type ChatLogMapper struct{}

func NewChatLogMapper() *ChatLogMapper {
	return &ChatLogMapper{}
}

func (m *ChatLogMapper) ToEntity(l *model.ChatLog) *entity.ChatLog {
	if l == nil {
		return nil
	}

	var sessionId, reasoning string
	if l.SessionId != nil {
		sessionId = *l.SessionId
	}
	if l.Reasoning != nil {
		reasoning = *l.Reasoning
	}

	citations := []chatstream.Citation{}
	if len(l.Citations) > 0 {
		// Rows written before the column existed hold NULL; bad JSON is treated the same.
		_ = json.Unmarshal(l.Citations, &citations)
	}

	return &entity.ChatLog{
		Id:              l.Id,
		Timestamp:       l.Timestamp,
		UserQuestion:    l.UserQuestion,
		AiResponse:      l.AiResponse,
		Rating:          l.Rating,
		FeedbackComment: l.FeedbackComment,
		SessionId:       sessionId,
		Reasoning:       reasoning,
		Citations:       citations,
	}
}

func (m *ChatLogMapper) ToModel(l *entity.ChatLog) *model.ChatLog {
	if l == nil {
		return nil
	}

	var citations datatypes.JSON
	if len(l.Citations) > 0 {
		if raw, err := json.Marshal(l.Citations); err == nil {
			citations = raw
		}
	}

	return &model.ChatLog{
		Id:              l.Id,
		Timestamp:       l.Timestamp,
		UserQuestion:    l.UserQuestion,
		AiResponse:      l.AiResponse,
		Rating:          l.Rating,
		FeedbackComment: l.FeedbackComment,
		SessionId:       optional(l.SessionId),
		Reasoning:       optional(l.Reasoning),
		Citations:       citations,
	}
}

func (m *ChatLogMapper) ToEntities(logs []*model.ChatLog) []*entity.ChatLog {
	entities := make([]*entity.ChatLog, len(logs))
	for i, l := range logs {
		entities[i] = m.ToEntity(l)
	}
	return entities
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
