package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"court-advisor-be/internal/dto"
	"court-advisor-be/internal/pkg/logger"
	"court-advisor-be/pkg/conversation"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdminService(t *testing.T) (*adminService, IFeedbackService) {
	t.Helper()
	feedback := NewFeedbackService(newTestFactory(t), nil, logger.NewNopLogger())
	svc, err := NewAdminService(feedback, logger.NewNopLogger(), AdminSettings{
		Password:  "admin",
		JWTSecret: "test-secret",
		TokenTTL:  time.Hour,
	})
	require.NoError(t, err)
	return svc.(*adminService), feedback
}

func TestAdminService_Login(t *testing.T) {
	svc, _ := newTestAdminService(t)

	_, err := svc.Login(context.Background(), dto.AdminLoginRequest{Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	res, err := svc.Login(context.Background(), dto.AdminLoginRequest{Password: "admin"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), res.ExpiresAt, time.Minute)

	token, err := jwt.Parse(res.Token, func(*jwt.Token) (interface{}, error) { return []byte("test-secret"), nil })
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, AdminRole, claims["role"])
}

func TestAdminService_ExportUsesTimestampedName(t *testing.T) {
	svc, feedback := newTestAdminService(t)
	svc.now = func() time.Time { return time.Date(2026, 10, 17, 14, 7, 0, 0, time.UTC) }

	_, err := feedback.Record(context.Background(), conversation.LogEntry{Question: "q", Answer: "a"})
	require.NoError(t, err)

	var buf bytes.Buffer
	name, err := svc.ExportChatLogs(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, "chat_logs_20261017_1407.csv", name)
	assert.Contains(t, buf.String(), "user_question")
}

func TestAdminService_SystemLogsOnNopLogger(t *testing.T) {
	svc, _ := newTestAdminService(t)

	logs, err := svc.GetSystemLogs(context.Background(), 0, 0, "")
	require.NoError(t, err)
	assert.Empty(t, logs)

	_, err = svc.GetLogDetail(context.Background(), "abc")
	assert.ErrorIs(t, err, logger.ErrLogNotFound)
}
