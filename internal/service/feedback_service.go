package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"court-advisor-be/internal/dto"
	"court-advisor-be/internal/entity"
	"court-advisor-be/internal/pkg/logger"
	"court-advisor-be/internal/repository/specification"
	"court-advisor-be/internal/repository/unitofwork"
	"court-advisor-be/pkg/conversation"
	"court-advisor-be/pkg/events"
)

const feedbackModule = "FEEDBACK"

var (
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
	ErrChatLogNotFound = errors.New("chat log not found")
)

// utf8BOM lets spreadsheet tools detect the encoding of Thai text.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var csvHeader = []string{"id", "timestamp", "user_question", "ai_response", "rating", "feedback_comment", "session_id"}

type IFeedbackService interface {
	conversation.Recorder
	Rate(ctx context.Context, logId uint, score int, comment string) error
	ListAll(ctx context.Context) ([]*dto.ChatLogResponse, error)
	Search(ctx context.Context, filter dto.ChatLogFilter) ([]*dto.ChatLogResponse, error)
	Get(ctx context.Context, logId uint) (*dto.ChatLogResponse, error)
	Stats(ctx context.Context) (*dto.ChatLogStatsResponse, error)
	ExportCSV(ctx context.Context, w io.Writer) error
}

type feedbackService struct {
	uowFactory unitofwork.RepositoryFactory
	publisher  events.Publisher
	logger     logger.ILogger
}

func NewFeedbackService(uowFactory unitofwork.RepositoryFactory, publisher events.Publisher, logger logger.ILogger) IFeedbackService {
	return &feedbackService{
		uowFactory: uowFactory,
		publisher:  publisher,
		logger:     logger,
	}
}

func (s *feedbackService) Record(ctx context.Context, entry conversation.LogEntry) (uint, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	log := &entity.ChatLog{
		Timestamp:    entry.Timestamp,
		UserQuestion: entry.Question,
		AiResponse:   entry.Answer,
		SessionId:    entry.SessionUserID,
		Reasoning:    entry.Reasoning,
		Citations:    entry.Citations,
	}
	if err := uow.ChatLogRepository().Create(ctx, log); err != nil {
		return 0, fmt.Errorf("failed to record chat log: %w", err)
	}

	s.logger.Debug(feedbackModule, "Chat log recorded", map[string]interface{}{
		"log_id":     log.Id,
		"session_id": entry.SessionUserID,
	})
	return log.Id, nil
}

// Rate sets the rating of a record. Rating an unknown id succeeds without
// effect. The comment is only written when non-empty, so an earlier comment
// cannot be cleared this way.
func (s *feedbackService) Rate(ctx context.Context, logId uint, score int, comment string) error {
	if score < 1 || score > 5 {
		return ErrInvalidRating
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	repo := uow.ChatLogRepository()
	found, err := repo.UpdateRating(ctx, logId, score, comment)
	if err != nil {
		s.logger.Error(feedbackModule, "Failed to save rating", map[string]interface{}{
			"log_id": logId,
			"error":  err.Error(),
		})
		return fmt.Errorf("failed to save rating: %w", err)
	}
	if !found {
		s.logger.Warn(feedbackModule, "Rating for unknown chat log ignored", map[string]interface{}{"log_id": logId})
		return nil
	}

	// Read back in the same transaction so the event names the session that
	// owns the record.
	record, err := repo.FindOne(ctx, specification.ByID{ID: logId})
	if err != nil {
		return fmt.Errorf("failed to load rated chat log: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit rating: %w", err)
	}

	sessionId := ""
	if record != nil {
		sessionId = record.SessionId
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.FeedbackRated(logId, sessionId, score, comment != "")); err != nil {
			s.logger.Warn(feedbackModule, "Failed to publish FEEDBACK_RATED event", map[string]interface{}{"error": err.Error()})
		}
	}
	return nil
}

func (s *feedbackService) ListAll(ctx context.Context) ([]*dto.ChatLogResponse, error) {
	return s.Search(ctx, dto.ChatLogFilter{})
}

// Search lists records newest first. A zero Limit returns every match.
func (s *feedbackService) Search(ctx context.Context, filter dto.ChatLogFilter) ([]*dto.ChatLogResponse, error) {
	specs := []specification.Specification{specification.NewestFirst{}}
	if filter.SessionId != "" {
		specs = append(specs, specification.BySessionID{SessionID: filter.SessionId})
	}
	if filter.RatedOnly {
		specs = append(specs, specification.Rated{})
	}
	if filter.Limit > 0 {
		page := max(filter.Page, 1)
		specs = append(specs, specification.Pagination{Limit: filter.Limit, Offset: (page - 1) * filter.Limit})
	}

	logs, err := s.findAll(ctx, specs...)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.ChatLogResponse, len(logs))
	for i, l := range logs {
		res[i] = toChatLogResponse(l)
	}
	return res, nil
}

func (s *feedbackService) Get(ctx context.Context, logId uint) (*dto.ChatLogResponse, error) {
	log, err := s.uowFactory.NewUnitOfWork(ctx).ChatLogRepository().FindOne(ctx, specification.ByID{ID: logId})
	if err != nil {
		return nil, fmt.Errorf("failed to load chat log: %w", err)
	}
	if log == nil {
		return nil, ErrChatLogNotFound
	}
	return toChatLogResponse(log), nil
}

func toChatLogResponse(l *entity.ChatLog) *dto.ChatLogResponse {
	return &dto.ChatLogResponse{
		Id:              l.Id,
		Timestamp:       l.Timestamp,
		UserQuestion:    l.UserQuestion,
		AiResponse:      l.AiResponse,
		Rating:          l.Rating,
		FeedbackComment: l.FeedbackComment,
		SessionId:       l.SessionId,
	}
}

func (s *feedbackService) findAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatLog, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	logs, err := uow.ChatLogRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat logs: %w", err)
	}
	return logs, nil
}

func (s *feedbackService) Stats(ctx context.Context) (*dto.ChatLogStatsResponse, error) {
	repo := s.uowFactory.NewUnitOfWork(ctx).ChatLogRepository()

	total, err := repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count chat logs: %w", err)
	}
	rated, err := repo.Count(ctx, specification.Rated{})
	if err != nil {
		return nil, fmt.Errorf("failed to count rated chat logs: %w", err)
	}
	avg, err := repo.AverageRating(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to average ratings: %w", err)
	}
	stamps, err := repo.Timestamps(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load timestamps: %w", err)
	}

	return &dto.ChatLogStatsResponse{
		Total:         total,
		Rated:         rated,
		AverageRating: avg,
		Daily:         dailyCounts(stamps),
	}, nil
}

func dailyCounts(stamps []time.Time) []dto.DailyCountResponse {
	counts := map[string]int64{}
	for _, ts := range stamps {
		counts[ts.In(time.Local).Format("2006-01-02")]++
	}

	days := make([]string, 0, len(counts))
	for day := range counts {
		days = append(days, day)
	}
	sort.Strings(days)

	res := make([]dto.DailyCountResponse, len(days))
	for i, day := range days {
		res[i] = dto.DailyCountResponse{Date: day, Count: counts[day]}
	}
	return res
}

// ExportCSV writes every record newest first, prefixed with a UTF-8 BOM.
func (s *feedbackService) ExportCSV(ctx context.Context, w io.Writer) error {
	logs, err := s.findAll(ctx, specification.NewestFirst{})
	if err != nil {
		return err
	}

	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, l := range logs {
		rating, comment := "", ""
		if l.Rating != nil {
			rating = strconv.Itoa(*l.Rating)
		}
		if l.FeedbackComment != nil {
			comment = *l.FeedbackComment
		}
		if err := cw.Write([]string{
			strconv.FormatUint(uint64(l.Id), 10),
			l.Timestamp.Format("2006-01-02 15:04:05"),
			l.UserQuestion,
			l.AiResponse,
			rating,
			comment,
			l.SessionId,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportFilename names an export taken at t.
func ExportFilename(t time.Time) string {
	return fmt.Sprintf("chat_logs_%s.csv", t.Format("20060102_1504"))
}
