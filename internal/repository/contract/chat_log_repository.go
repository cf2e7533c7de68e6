package contract

import (
	"context"
	"time"

	"court-advisor-be/internal/entity"
	"court-advisor-be/internal/repository/specification"
)

type ChatLogRepository interface {
	Create(ctx context.Context, log *entity.ChatLog) error
	// UpdateRating reports whether a record with the id exists. The comment is
	// only written when non-empty.
	UpdateRating(ctx context.Context, id uint, rating int, comment string) (bool, error)
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatLog, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatLog, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	AverageRating(ctx context.Context) (*float64, error)
	Timestamps(ctx context.Context) ([]time.Time, error)
}
