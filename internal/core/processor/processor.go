package processor

import (
	"context"
	"sync"
	"time"

	"github.com/wfg/transaction-webhook-service/internal/core/logger"
	"github.com/wfg/transaction-webhook-service/internal/core/models/events"
	"github.com/wfg/transaction-webhook-service/internal/core/usecase"
)

// EventPublisher publishes completion events. May be nil when eventing
// is not configured.
type EventPublisher interface {
	Publish(topic string, event any) error
}

const processedTopic = "transaction_processed"

// markProcessedTimeout ограничивает обращение к хранилищу после паузы,
// но не саму паузу.
const markProcessedTimeout = 10 * time.Second

// Processor имитирует отложенный сигнал завершения от внешней системы.
// Каждая принятая транзакция получает свою fire-and-forget горутину:
// пула нет, persistent-очереди нет, при завершении процесса ожидающие
// задачи теряются.
type Processor struct {
	ledger    usecase.TransactionUsecase
	publisher EventPublisher
	delay     time.Duration
	log       logger.Logger
	wg        sync.WaitGroup
}

func NewProcessor(ledger usecase.TransactionUsecase, publisher EventPublisher, delay time.Duration, log logger.Logger) *Processor {
	return &Processor{
		ledger:    ledger,
		publisher: publisher,
		delay:     delay,
		log:       log,
	}
}

// Schedule регистрирует отложенную обработку транзакции и сразу
// возвращается. Задача живет дольше запроса, который её породила;
// её ошибки логируются и никуда не распространяются.
func (p *Processor) Schedule(transactionID string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(transactionID)
	}()
}

func (p *Processor) run(transactionID string) {
	time.Sleep(p.delay)

	// Контекст свой: запрос, породивший задачу, давно завершен
	ctx, cancel := context.WithTimeout(context.Background(), markProcessedTimeout)
	defer cancel()

	transitioned, err := p.ledger.MarkProcessed(ctx, transactionID)
	if err != nil {
		p.log.Error("Deferred processing failed",
			logger.StringField("transaction_id", transactionID),
			logger.ErrorField("error", err))
		return
	}

	if !transitioned {
		p.log.Warn("Deferred processing found nothing to transition",
			logger.StringField("transaction_id", transactionID))
		return
	}

	p.log.Info("Transaction processed",
		logger.StringField("transaction_id", transactionID))

	p.publishProcessed(ctx, transactionID)
}

func (p *Processor) publishProcessed(ctx context.Context, transactionID string) {
	if p.publisher == nil {
		return
	}

	transaction, err := p.ledger.Lookup(ctx, transactionID)
	if err != nil {
		p.log.Error("Processed event lookup failed",
			logger.StringField("transaction_id", transactionID),
			logger.ErrorField("error", err))
		return
	}

	event := events.TransactionProcessed{
		TransactionID:      transaction.TransactionID,
		SourceAccount:      transaction.SourceAccount,
		DestinationAccount: transaction.DestinationAccount,
		Amount:             transaction.Amount,
		Currency:           transaction.Currency,
		ProcessedAt:        *transaction.ProcessedAt,
	}

	if err := p.publisher.Publish(processedTopic, event); err != nil {
		p.log.Error("Processed event publish failed",
			logger.StringField("transaction_id", transactionID),
			logger.ErrorField("error", err))
	}
}

// Wait блокирует до завершения всех запланированных задач. Используется в тестах.
func (p *Processor) Wait() {
	p.wg.Wait()
}
