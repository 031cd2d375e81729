package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wfg/transaction-webhook-service/internal/core/models"
	"github.com/wfg/transaction-webhook-service/internal/core/repository"
)

// MemoryTransactionRepo is an in-memory TransactionRepository used in tests.
// The map plays the role of the unique constraint on transaction_id.
type MemoryTransactionRepo struct {
	mu           sync.Mutex
	transactions map[string]models.Transaction

	// FailWith makes every call return this error. Test hook for the
	// store-unreachable paths.
	FailWith error
}

func NewMemoryTransactionRepo() *MemoryTransactionRepo {
	return &MemoryTransactionRepo{
		transactions: make(map[string]models.Transaction),
	}
}

func (m *MemoryTransactionRepo) Create(ctx context.Context, transaction *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return m.FailWith
	}

	if _, exists := m.transactions[transaction.TransactionID]; exists {
		return repository.ErrDuplicateTransaction
	}

	m.transactions[transaction.TransactionID] = *transaction
	return nil
}

func (m *MemoryTransactionRepo) GetByTransactionID(ctx context.Context, transactionID string) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return nil, m.FailWith
	}

	transaction, exists := m.transactions[transactionID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", repository.ErrTransactionNotFound, transactionID)
	}

	copied := transaction
	return &copied, nil
}

func (m *MemoryTransactionRepo) MarkProcessed(ctx context.Context, transactionID string, processedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return false, m.FailWith
	}

	transaction, exists := m.transactions[transactionID]
	if !exists || transaction.Status != models.StatusProcessing {
		return false, nil
	}

	transaction.Status = models.StatusProcessed
	transaction.ProcessedAt = &processedAt
	m.transactions[transactionID] = transaction
	return true, nil
}

// Len returns the number of stored records.
func (m *MemoryTransactionRepo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transactions)
}

var _ repository.TransactionRepository = (*MemoryTransactionRepo)(nil)
