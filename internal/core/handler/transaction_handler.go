package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/wfg/transaction-webhook-service/internal/core/logger"
	"github.com/wfg/transaction-webhook-service/internal/core/models"
	"github.com/wfg/transaction-webhook-service/internal/core/usecase"
)

type TransactionHandler struct {
	usecase   usecase.TransactionUsecase
	processor Scheduler
	log       logger.Logger
}

// Scheduler планирует отложенную обработку принятой транзакции
type Scheduler interface {
	Schedule(transactionID string)
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

const (
	messageAccepted      = "accepted"
	messageAlreadyExists = "already exists"
)

func NewTransactionHandler(usecase usecase.TransactionUsecase, processor Scheduler, log logger.Logger) *TransactionHandler {
	return &TransactionHandler{usecase: usecase, processor: processor, log: log}
}

func (h *TransactionHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/v1/webhooks/transactions", h.ReceiveWebhook).Methods("POST")
	router.HandleFunc("/v1/transactions/{transaction_id}", h.GetTransaction).Methods("GET")
}

// ReceiveWebhook принимает вебхук и отвечает 202 до истечения задержки
// обработки. Повторная доставка отличается только текстом сообщения.
func (h *TransactionHandler) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := h.decodeWebhook(w, r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if validationErr := h.validateWebhook(payload); validationErr != nil {
		h.log.Warn(validationErr.Message, validationErr.Fields...)
		respondWithError(w, http.StatusBadRequest, validationErr.Message)
		return
	}

	created, transaction, err := h.ingest(r.Context(), payload)
	if err != nil {
		h.log.Error("Failed to ingest webhook",
			logger.StringField("transaction_id", payload.TransactionID),
			logger.ErrorField("error", err))
		respondWithError(w, http.StatusInternalServerError, "Failed to process webhook")
		return
	}

	if !created {
		respondWithJSON(w, http.StatusAccepted, MessageResponse{Message: messageAlreadyExists})
		return
	}

	h.processor.Schedule(transaction.TransactionID)

	h.log.Info("Webhook accepted",
		logger.StringField("transaction_id", transaction.TransactionID))
	respondWithJSON(w, http.StatusAccepted, MessageResponse{Message: messageAccepted})
}

// GetTransaction возвращает текущий снимок записи массивом из одного
// элемента, без синхронизации с выполняющейся отложенной обработкой.
func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	transactionID := mux.Vars(r)["transaction_id"]

	transaction, err := h.usecase.Lookup(r.Context(), transactionID)
	if err != nil {
		h.handleLookupError(w, transactionID, err)
		return
	}

	respondWithJSON(w, http.StatusOK, []models.TransactionView{transaction.View()})
}

type ValidationError struct {
	Message string
	Fields  []logger.Field
}

func (h *TransactionHandler) decodeWebhook(w http.ResponseWriter, r *http.Request) (models.TransactionWebhook, error) {
	var payload models.TransactionWebhook
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.log.Warn("Failed to decode webhook body", logger.ErrorField("error", err))
		return payload, fmt.Errorf("invalid request payload")
	}
	defer r.Body.Close()
	return payload, nil
}

func (h *TransactionHandler) validateWebhook(payload models.TransactionWebhook) *ValidationError {
	if payload.TransactionID == "" {
		return &ValidationError{Message: "transactionId is required"}
	}
	if payload.SourceAccount == "" || payload.DestinationAccount == "" {
		return &ValidationError{
			Message: "sourceAccount and destinationAccount are required",
			Fields:  []logger.Field{logger.StringField("transaction_id", payload.TransactionID)},
		}
	}
	if payload.Currency == "" {
		return &ValidationError{
			Message: "currency is required",
			Fields:  []logger.Field{logger.StringField("transaction_id", payload.TransactionID)},
		}
	}
	if payload.Amount.LessThan(decimal.Zero) {
		return &ValidationError{
			Message: "amount must be non-negative",
			Fields: []logger.Field{
				logger.StringField("transaction_id", payload.TransactionID),
				logger.StringField("amount", payload.Amount.String()),
			},
		}
	}
	return nil
}

func (h *TransactionHandler) ingest(ctx context.Context, payload models.TransactionWebhook) (bool, *models.Transaction, error) {
	return h.usecase.IngestWebhook(ctx, payload)
}

func (h *TransactionHandler) handleLookupError(w http.ResponseWriter, transactionID string, err error) {
	if errors.Is(err, usecase.ErrTransactionNotFound) {
		h.log.Warn("Transaction not found", logger.StringField("transaction_id", transactionID))
		respondWithError(w, http.StatusNotFound, "Transaction not found")
		return
	}

	h.log.Error("Failed to look up transaction",
		logger.StringField("transaction_id", transactionID),
		logger.ErrorField("error", err))
	respondWithError(w, http.StatusInternalServerError, "Failed to look up transaction")
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Internal Server Error"}`)) // Fallback response
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
