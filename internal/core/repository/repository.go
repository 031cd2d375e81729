package repository

import (
	"context"
	"errors"
	"time"

	"github.com/wfg/transaction-webhook-service/internal/core/models"
)

var (
	// ErrTransactionNotFound - записи с таким transaction_id нет
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrDuplicateTransaction - нарушение уникальности transaction_id при вставке
	ErrDuplicateTransaction = errors.New("transaction already exists")
)

type TransactionRepository interface {
	Create(ctx context.Context, transaction *models.Transaction) error
	GetByTransactionID(ctx context.Context, transactionID string) (*models.Transaction, error)
	MarkProcessed(ctx context.Context, transactionID string, processedAt time.Time) (bool, error)
}
