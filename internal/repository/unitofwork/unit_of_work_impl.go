package unitofwork

import (
	"context"
	"errors"

	"court-advisor-be/internal/repository/contract"
	"court-advisor-be/internal/repository/implementation"

	"gorm.io/gorm"
)

var (
	ErrTransactionActive = errors.New("transaction already started")
	ErrNoTransaction     = errors.New("no active transaction")
)

type gormFactory struct {
	db *gorm.DB
}

func NewRepositoryFactory(db *gorm.DB) RepositoryFactory {
	return &gormFactory{db: db}
}

func (f *gormFactory) NewUnitOfWork(ctx context.Context) UnitOfWork {
	return &gormUnitOfWork{db: f.db}
}

type gormUnitOfWork struct {
	db *gorm.DB
	tx *gorm.DB
}

func (u *gormUnitOfWork) conn() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

func (u *gormUnitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return ErrTransactionActive
	}
	tx := u.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	u.tx = tx
	return nil
}

func (u *gormUnitOfWork) Commit() error {
	if u.tx == nil {
		return ErrNoTransaction
	}
	err := u.tx.Commit().Error
	u.tx = nil
	return err
}

// Rollback after Commit returns ErrNoTransaction, so `defer uow.Rollback()`
// is safe on the success path.
func (u *gormUnitOfWork) Rollback() error {
	if u.tx == nil {
		return ErrNoTransaction
	}
	err := u.tx.Rollback().Error
	u.tx = nil
	return err
}

func (u *gormUnitOfWork) ChatLogRepository() contract.ChatLogRepository {
	return implementation.NewChatLogRepository(u.conn())
}
