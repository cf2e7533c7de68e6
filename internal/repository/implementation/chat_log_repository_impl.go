package implementation

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"court-advisor-be/internal/entity"
	"court-advisor-be/internal/mapper"
	"court-advisor-be/internal/model"
	"court-advisor-be/internal/repository/contract"
	"court-advisor-be/internal/repository/specification"

	"gorm.io/gorm"
)

type ChatLogRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatLogMapper
}

func NewChatLogRepository(db *gorm.DB) contract.ChatLogRepository {
	return &ChatLogRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatLogMapper(),
	}
}

func (r *ChatLogRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ChatLogRepositoryImpl) Create(ctx context.Context, log *entity.ChatLog) error {
	m := r.mapper.ToModel(log)
	m.Id = 0
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*log = *r.mapper.ToEntity(m)
	return nil
}

func (r *ChatLogRepositoryImpl) UpdateRating(ctx context.Context, id uint, rating int, comment string) (bool, error) {
	updates := map[string]interface{}{"rating": rating}
	if comment != "" {
		updates["feedback_comment"] = comment
	}

	result := r.db.WithContext(ctx).Model(&model.ChatLog{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	// Some drivers report zero rows when the values are unchanged.
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.ChatLog{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *ChatLogRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatLog, error) {
	var m model.ChatLog
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *ChatLogRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatLog, error) {
	var models []*model.ChatLog
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *ChatLogRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.ChatLog{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ChatLogRepositoryImpl) AverageRating(ctx context.Context) (*float64, error) {
	var avg sql.NullFloat64
	err := r.db.WithContext(ctx).Model(&model.ChatLog{}).
		Select("AVG(rating)").
		Where("rating IS NOT NULL").
		Scan(&avg).Error
	if err != nil {
		return nil, err
	}
	if !avg.Valid {
		return nil, nil
	}
	return &avg.Float64, nil
}

// Timestamps returns every record's timestamp; per-day bucketing happens in
// the caller so it works the same on SQLite and Postgres.
func (r *ChatLogRepositoryImpl) Timestamps(ctx context.Context) ([]time.Time, error) {
	var stamps []time.Time
	if err := r.db.WithContext(ctx).Model(&model.ChatLog{}).Order("timestamp ASC").Pluck("timestamp", &stamps).Error; err != nil {
		return nil, err
	}
	return stamps, nil
}
