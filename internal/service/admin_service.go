package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"court-advisor-be/internal/dto"
	"court-advisor-be/internal/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	adminModule = "ADMIN"
	AdminRole   = "admin"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type IAdminService interface {
	Login(ctx context.Context, req dto.AdminLoginRequest) (*dto.AdminLoginResponse, error)

	// Feedback records
	GetChatLogs(ctx context.Context, filter dto.ChatLogFilter) ([]*dto.ChatLogResponse, error)
	GetChatLog(ctx context.Context, logId uint) (*dto.ChatLogResponse, error)
	GetChatLogStats(ctx context.Context) (*dto.ChatLogStatsResponse, error)
	ExportChatLogs(ctx context.Context, w io.Writer) (filename string, err error)

	// Logs
	GetSystemLogs(ctx context.Context, page, limit int, level string) ([]*dto.LogListResponse, error)
	GetLogDetail(ctx context.Context, logId string) (*dto.LogDetailResponse, error)
}

type AdminSettings struct {
	Password  string
	JWTSecret string
	TokenTTL  time.Duration
}

type adminService struct {
	feedback     IFeedbackService
	logger       logger.ILogger
	passwordHash []byte
	secret       []byte
	tokenTTL     time.Duration
	now          func() time.Time
}

// NewAdminService hashes the shared admin password once so the plain value
// is not kept in memory for comparisons.
func NewAdminService(feedback IFeedbackService, logger logger.ILogger, settings AdminSettings) (IAdminService, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(settings.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash admin password: %w", err)
	}
	if settings.TokenTTL <= 0 {
		settings.TokenTTL = 8 * time.Hour
	}
	return &adminService{
		feedback:     feedback,
		logger:       logger,
		passwordHash: hash,
		secret:       []byte(settings.JWTSecret),
		tokenTTL:     settings.TokenTTL,
		now:          time.Now,
	}, nil
}

func (s *adminService) Login(ctx context.Context, req dto.AdminLoginRequest) (*dto.AdminLoginResponse, error) {
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(req.Password)); err != nil {
		s.logger.Warn(adminModule, "Admin login rejected", nil)
		return nil, ErrInvalidCredentials
	}

	expiresAt := s.now().Add(s.tokenTTL)
	claims := jwt.MapClaims{
		"sub":  AdminRole,
		"role": AdminRole,
		"exp":  expiresAt.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}

	s.logger.Info(adminModule, "Admin logged in", nil)
	return &dto.AdminLoginResponse{Token: signed, ExpiresAt: expiresAt}, nil
}

func (s *adminService) GetChatLogs(ctx context.Context, filter dto.ChatLogFilter) ([]*dto.ChatLogResponse, error) {
	return s.feedback.Search(ctx, filter)
}

func (s *adminService) GetChatLog(ctx context.Context, logId uint) (*dto.ChatLogResponse, error) {
	return s.feedback.Get(ctx, logId)
}

func (s *adminService) GetChatLogStats(ctx context.Context) (*dto.ChatLogStatsResponse, error) {
	return s.feedback.Stats(ctx)
}

func (s *adminService) ExportChatLogs(ctx context.Context, w io.Writer) (string, error) {
	filename := ExportFilename(s.now())
	if err := s.feedback.ExportCSV(ctx, w); err != nil {
		return "", err
	}
	s.logger.Info(adminModule, "Chat logs exported", map[string]interface{}{"filename": filename})
	return filename, nil
}

func (s *adminService) GetSystemLogs(ctx context.Context, page, limit int, level string) ([]*dto.LogListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}

	logs, err := s.logger.GetLogs(level, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.LogListResponse, 0, len(logs))
	for _, l := range logs {
		res = append(res, &dto.LogListResponse{
			Id:        l.Id,
			Level:     l.Level,
			Module:    l.Module,
			Message:   l.Message,
			Timestamp: l.Timestamp,
		})
	}
	return res, nil
}

func (s *adminService) GetLogDetail(ctx context.Context, logId string) (*dto.LogDetailResponse, error) {
	l, err := s.logger.GetLogById(logId)
	if err != nil {
		return nil, err
	}

	return &dto.LogDetailResponse{
		LogListResponse: dto.LogListResponse{
			Id:        logId,
			Level:     l.Level,
			Module:    l.Module,
			Message:   l.Message,
			Timestamp: l.Timestamp,
		},
		Details: l.Details,
	}, nil
}
