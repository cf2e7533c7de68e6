package specification

import "gorm.io/gorm"

// Specification narrows or orders a chat log query. Repositories apply them
// in the order given.
type Specification interface {
	Apply(db *gorm.DB) *gorm.DB
}

// ByID matches one record by primary key.
type ByID struct {
	ID uint
}

func (s ByID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id = ?", s.ID)
}

// Pagination limits the result window. Use it after an ordering spec.
type Pagination struct {
	Limit  int
	Offset int
}

func (s Pagination) Apply(db *gorm.DB) *gorm.DB {
	return db.Limit(s.Limit).Offset(s.Offset)
}
