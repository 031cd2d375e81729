package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionStatus определяет жизненный цикл транзакции
type TransactionStatus string

const (
	// StatusProcessing - транзакция принята, ожидает завершения
	StatusProcessing TransactionStatus = "PROCESSING"
	// StatusProcessed - завершение подтверждено, состояние финальное
	StatusProcessed TransactionStatus = "PROCESSED"
)

// Transaction представляет запись о транзакции из вебхука.
// TransactionID - внешний идентификатор, уникальный на всю систему;
// ID - суррогатный ключ хранилища.
type Transaction struct {
	ID                 uuid.UUID         `json:"-" db:"id"`
	TransactionID      string            `json:"transactionId" db:"transaction_id"`
	SourceAccount      string            `json:"sourceAccount" db:"source_account"`
	DestinationAccount string            `json:"destinationAccount" db:"destination_account"`
	Amount             decimal.Decimal   `json:"amount" db:"amount"`
	Currency           string            `json:"currency" db:"currency"`
	Status             TransactionStatus `json:"status" db:"status"`
	CreatedAt          time.Time         `json:"createdAt" db:"created_at"`
	ProcessedAt        *time.Time        `json:"processedAt" db:"processed_at"`
}

// TransactionWebhook представляет входящий платёж от внешней системы
type TransactionWebhook struct {
	TransactionID      string          `json:"transactionId"`
	SourceAccount      string          `json:"sourceAccount"`
	DestinationAccount string          `json:"destinationAccount"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
}

// TransactionView - снимок записи для ответа статусного эндпоинта.
// Amount отдается числом, как его прислал вебхук.
type TransactionView struct {
	TransactionID      string     `json:"transactionId"`
	SourceAccount      string     `json:"sourceAccount"`
	DestinationAccount string     `json:"destinationAccount"`
	Amount             float64    `json:"amount"`
	Currency           string     `json:"currency"`
	Status             string     `json:"status"`
	CreatedAt          time.Time  `json:"createdAt"`
	ProcessedAt        *time.Time `json:"processedAt"`
}

func (t *Transaction) View() TransactionView {
	amount, _ := t.Amount.Float64()
	return TransactionView{
		TransactionID:      t.TransactionID,
		SourceAccount:      t.SourceAccount,
		DestinationAccount: t.DestinationAccount,
		Amount:             amount,
		Currency:           t.Currency,
		Status:             string(t.Status),
		CreatedAt:          t.CreatedAt,
		ProcessedAt:        t.ProcessedAt,
	}
}
