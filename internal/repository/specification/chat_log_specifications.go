package specification

import "gorm.io/gorm"

type BySessionID struct {
	SessionID string
}

func (s BySessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("session_id = ?", s.SessionID)
}

// Rated keeps only records that carry a rating.
type Rated struct{}

func (s Rated) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("rating IS NOT NULL")
}

// NewestFirst orders by timestamp descending; id breaks ties so records
// written within the same clock tick keep insertion order reversed.
type NewestFirst struct{}

func (s NewestFirst) Apply(db *gorm.DB) *gorm.DB {
	return db.Order("timestamp DESC").Order("id DESC")
}
