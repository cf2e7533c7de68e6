package unitofwork

import (
	"context"

	"court-advisor-be/internal/repository/contract"
)

// UnitOfWork scopes chat log access to one operation. Outside Begin/Commit
// every call runs on its own; inside, they share one transaction.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ChatLogRepository() contract.ChatLogRepository
}

// RepositoryFactory hands out a fresh UnitOfWork per operation.
type RepositoryFactory interface {
	NewUnitOfWork(ctx context.Context) UnitOfWork
}
