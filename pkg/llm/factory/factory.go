package factory

import (
	"fmt"
	"time"

	"court-advisor-be/internal/pkg/logger"
	"court-advisor-be/pkg/llm"
	"court-advisor-be/pkg/llm/dify"
	"court-advisor-be/pkg/llm/ollama"
)

type Settings struct {
	Provider          string // "dify" or "ollama"
	BaseURL           string
	APIKey            string
	Model             string
	ReadTimeout       time.Duration
	SuggestionTimeout time.Duration
}

func NewConversationProvider(s Settings, log logger.ILogger) (llm.ConversationProvider, error) {
	switch s.Provider {
	case "", "dify":
		return dify.NewDifyProvider(dify.Config{
			BaseURL:           s.BaseURL,
			APIKey:            s.APIKey,
			ReadTimeout:       s.ReadTimeout,
			SuggestionTimeout: s.SuggestionTimeout,
		}, log), nil
	case "ollama":
		return ollama.NewOllamaProvider(s.BaseURL, s.Model, s.ReadTimeout, log), nil
	default:
		return nil, fmt.Errorf("unsupported conversation provider: %s", s.Provider)
	}
}
