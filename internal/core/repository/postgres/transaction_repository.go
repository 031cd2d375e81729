package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/wfg/transaction-webhook-service/internal/core/logger"
	"github.com/wfg/transaction-webhook-service/internal/core/models"
	"github.com/wfg/transaction-webhook-service/internal/core/repository"
)

// pqUniqueViolation - код ошибки PostgreSQL для нарушения unique constraint
const pqUniqueViolation = "23505"

type postgresTransactionRepo struct {
	db  *sqlx.DB
	log logger.Logger
}

func NewPostgresTransactionRepo(db *sqlx.DB, log logger.Logger) repository.TransactionRepository {
	return &postgresTransactionRepo{
		db:  db,
		log: log,
	}
}

func (r *postgresTransactionRepo) Create(ctx context.Context, transaction *models.Transaction) error {
	const query = `INSERT INTO transactions
		(id, transaction_id, source_account, destination_account, amount, currency, status, created_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		transaction.ID,
		transaction.TransactionID,
		transaction.SourceAccount,
		transaction.DestinationAccount,
		transaction.Amount,
		transaction.Currency,
		transaction.Status,
		transaction.CreatedAt,
		transaction.ProcessedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			r.log.Info("Duplicate transaction insert",
				logger.StringField("transaction_id", transaction.TransactionID))
			return repository.ErrDuplicateTransaction
		}
		return fmt.Errorf("create transaction: %w", err)
	}

	return nil
}

func (r *postgresTransactionRepo) GetByTransactionID(ctx context.Context, transactionID string) (*models.Transaction, error) {
	var transaction models.Transaction
	const query = `SELECT id, transaction_id, source_account, destination_account, amount, currency, status, created_at, processed_at
		FROM transactions WHERE transaction_id = $1`

	err := r.db.GetContext(ctx, &transaction, query, transactionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", repository.ErrTransactionNotFound, transactionID)
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}

	return &transaction, nil
}

// MarkProcessed переводит запись PROCESSING -> PROCESSED одним условным UPDATE.
// Повторный вызов или вызов для неизвестного id - no-op, вернет false.
func (r *postgresTransactionRepo) MarkProcessed(ctx context.Context, transactionID string, processedAt time.Time) (bool, error) {
	const query = `
		UPDATE transactions
		SET status = $1, processed_at = $2
		WHERE transaction_id = $3 AND status = $4
	`
	result, err := r.db.ExecContext(ctx, query,
		models.StatusProcessed,
		processedAt,
		transactionID,
		models.StatusProcessing,
	)
	if err != nil {
		return false, fmt.Errorf("mark processed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark processed rows affected: %w", err)
	}

	return affected == 1, nil
}
