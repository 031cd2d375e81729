package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wfg/transaction-webhook-service/internal/core/logger"
	"github.com/wfg/transaction-webhook-service/internal/core/models"
	"github.com/wfg/transaction-webhook-service/internal/core/repository"
)

type TransactionUsecase interface {
	IngestWebhook(ctx context.Context, payload models.TransactionWebhook) (bool, *models.Transaction, error)
	MarkProcessed(ctx context.Context, transactionID string) (bool, error)
	Lookup(ctx context.Context, transactionID string) (*models.Transaction, error)
}

type transactionUsecase struct {
	repo repository.TransactionRepository
	log  logger.Logger
}

func NewTransactionUsecase(repo repository.TransactionRepository, log logger.Logger) TransactionUsecase {
	return &transactionUsecase{repo: repo, log: log}
}

// IngestWebhook идемпотентно принимает вебхук. Возвращает created=false
// и существующую запись при повторной доставке - это штатный случай,
// не ошибка. Гонку одновременных доставок разрешает unique constraint
// хранилища: проигравшая вставка превращается в duplicate-found.
func (uc *transactionUsecase) IngestWebhook(ctx context.Context, payload models.TransactionWebhook) (bool, *models.Transaction, error) {
	uc.logStart(payload)

	existing, err := uc.findExisting(ctx, payload.TransactionID)
	if err != nil {
		return false, nil, err
	}
	if existing != nil {
		return false, existing, nil
	}

	transaction := &models.Transaction{
		ID:                 uuid.New(),
		TransactionID:      payload.TransactionID,
		SourceAccount:      payload.SourceAccount,
		DestinationAccount: payload.DestinationAccount,
		Amount:             payload.Amount,
		Currency:           payload.Currency,
		Status:             models.StatusProcessing,
		CreatedAt:          time.Now().UTC(),
		ProcessedAt:        nil,
	}

	if err := uc.repo.Create(ctx, transaction); err != nil {
		if errors.Is(err, repository.ErrDuplicateTransaction) {
			// Вставку выиграла конкурентная доставка того же вебхука
			return uc.resolveLostRace(ctx, payload.TransactionID)
		}
		uc.log.Error("Transaction insert failed",
			logger.StringField("transaction_id", payload.TransactionID),
			logger.ErrorField("error", err))
		return false, nil, fmt.Errorf("ingest webhook: %w", err)
	}

	return true, transaction, nil
}

// MarkProcessed переводит запись в PROCESSED и проставляет processed_at.
// Идемпотентен: для отсутствующей или уже обработанной записи - no-op, false.
func (uc *transactionUsecase) MarkProcessed(ctx context.Context, transactionID string) (bool, error) {
	transitioned, err := uc.repo.MarkProcessed(ctx, transactionID, time.Now().UTC())
	if err != nil {
		uc.log.Error("Mark processed failed",
			logger.StringField("transaction_id", transactionID),
			logger.ErrorField("error", err))
		return false, fmt.Errorf("mark processed: %w", err)
	}

	if !transitioned {
		uc.log.Warn("Mark processed skipped",
			logger.StringField("transaction_id", transactionID))
	}

	return transitioned, nil
}

func (uc *transactionUsecase) Lookup(ctx context.Context, transactionID string) (*models.Transaction, error) {
	transaction, err := uc.repo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, ErrTransactionNotFound
		}
		uc.log.Error("Transaction lookup failed",
			logger.StringField("transaction_id", transactionID),
			logger.ErrorField("error", err))
		return nil, fmt.Errorf("lookup transaction: %w", err)
	}
	return transaction, nil
}

func (uc *transactionUsecase) logStart(payload models.TransactionWebhook) {
	uc.log.Info("Ingesting transaction webhook",
		logger.StringField("transaction_id", payload.TransactionID),
		logger.StringField("source_account", payload.SourceAccount),
		logger.StringField("destination_account", payload.DestinationAccount),
		logger.StringField("amount", payload.Amount.String()),
		logger.StringField("currency", payload.Currency))
}

func (uc *transactionUsecase) findExisting(ctx context.Context, transactionID string) (*models.Transaction, error) {
	existing, err := uc.repo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, nil
		}
		uc.log.Error("Transaction pre-check failed",
			logger.StringField("transaction_id", transactionID),
			logger.ErrorField("error", err))
		return nil, fmt.Errorf("ingest webhook: %w", err)
	}
	return existing, nil
}

func (uc *transactionUsecase) resolveLostRace(ctx context.Context, transactionID string) (bool, *models.Transaction, error) {
	existing, err := uc.repo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return false, nil, fmt.Errorf("ingest webhook: re-fetch after duplicate: %w", err)
	}
	return false, existing, nil
}
