package events

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionProcessed struct {
	TransactionID      string          `json:"transaction_id"`
	SourceAccount      string          `json:"source_account"`
	DestinationAccount string          `json:"destination_account"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	ProcessedAt        time.Time       `json:"processed_at"`
}
