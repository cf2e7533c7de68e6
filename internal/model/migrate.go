package model

import "gorm.io/gorm"

// AutoMigrate creates missing tables and adds missing columns in place.
// Existing rows are left untouched.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&ChatLog{})
}
