package handler_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfg/transaction-webhook-service/internal/core/handler"
	"github.com/wfg/transaction-webhook-service/internal/core/logger"
	"github.com/wfg/transaction-webhook-service/internal/core/models"
	"github.com/wfg/transaction-webhook-service/internal/core/processor"
	"github.com/wfg/transaction-webhook-service/internal/core/repository/memory"
	"github.com/wfg/transaction-webhook-service/internal/core/usecase"
)

type countingScheduler struct {
	mu    sync.Mutex
	calls []string
}

func (c *countingScheduler) Schedule(transactionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, transactionID)
}

func (c *countingScheduler) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func newTestRouter(repo *memory.MemoryTransactionRepo, scheduler handler.Scheduler) *mux.Router {
	log := logger.NewNopLogger()
	uc := usecase.NewTransactionUsecase(repo, log)
	h := handler.NewTransactionHandler(uc, scheduler, log)

	router := mux.NewRouter()
	h.RegisterRoutes(router)
	handler.NewHealthHandler().RegisterRoutes(router)
	return router
}

const webhookBody = `{"transactionId":"tx-1","sourceAccount":"A","destinationAccount":"B","amount":100.0,"currency":"USD"}`

func postWebhook(t *testing.T, router *mux.Router, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/transactions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func getTransaction(t *testing.T, router *mux.Router, transactionID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/v1/transactions/"+transactionID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeRecords(t *testing.T, rec *httptest.ResponseRecorder) []models.TransactionView {
	t.Helper()
	var records []models.TransactionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	return records
}

func TestWebhookLifecycle(t *testing.T) {
	repo := memory.NewMemoryTransactionRepo()
	log := logger.NewNopLogger()
	uc := usecase.NewTransactionUsecase(repo, log)
	p := processor.NewProcessor(uc, nil, 20*time.Millisecond, log)

	router := mux.NewRouter()
	handler.NewTransactionHandler(uc, p, log).RegisterRoutes(router)

	// Первая доставка принимается
	rec := postWebhook(t, router, webhookBody)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"message":"accepted"}`, rec.Body.String())

	// До истечения задержки запись в PROCESSING
	rec = getTransaction(t, router, "tx-1")
	require.Equal(t, http.StatusOK, rec.Code)
	records := decodeRecords(t, rec)
	require.Len(t, records, 1)
	assert.Equal(t, "PROCESSING", records[0].Status)
	assert.Nil(t, records[0].ProcessedAt)
	assert.Equal(t, 100.0, records[0].Amount)
	assert.Equal(t, "USD", records[0].Currency)

	// Повторная доставка - 202 с другим текстом, записей по-прежнему одна
	rec = postWebhook(t, router, webhookBody)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"message":"already exists"}`, rec.Body.String())
	assert.Equal(t, 1, repo.Len())

	// После задержки запись обработана
	p.Wait()

	rec = getTransaction(t, router, "tx-1")
	require.Equal(t, http.StatusOK, rec.Code)
	records = decodeRecords(t, rec)
	require.Len(t, records, 1)
	assert.Equal(t, "PROCESSED", records[0].Status)
	require.NotNil(t, records[0].ProcessedAt)
	assert.False(t, records[0].ProcessedAt.Before(records[0].CreatedAt))
}

func TestWebhookConcurrentDeliveriesScheduleOnce(t *testing.T) {
	repo := memory.NewMemoryTransactionRepo()
	scheduler := &countingScheduler{}
	router := newTestRouter(repo, scheduler)

	const goroutines = 50

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			rec := postWebhook(t, router, webhookBody)
			assert.Equal(t, http.StatusAccepted, rec.Code)
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, repo.Len(), "exactly one stored record")
	assert.Equal(t, 1, scheduler.count(), "exactly one scheduled deferred task")
}

func TestWebhookValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"transactionId":`},
		{"missing transaction id", `{"sourceAccount":"A","destinationAccount":"B","amount":1,"currency":"USD"}`},
		{"missing accounts", `{"transactionId":"tx-1","amount":1,"currency":"USD"}`},
		{"missing currency", `{"transactionId":"tx-1","sourceAccount":"A","destinationAccount":"B","amount":1}`},
		{"negative amount", `{"transactionId":"tx-1","sourceAccount":"A","destinationAccount":"B","amount":-1,"currency":"USD"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := memory.NewMemoryTransactionRepo()
			scheduler := &countingScheduler{}
			router := newTestRouter(repo, scheduler)

			rec := postWebhook(t, router, tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, 0, repo.Len())
			assert.Equal(t, 0, scheduler.count())
		})
	}
}

func TestWebhookZeroAmountAccepted(t *testing.T) {
	repo := memory.NewMemoryTransactionRepo()
	router := newTestRouter(repo, &countingScheduler{})

	rec := postWebhook(t, router, `{"transactionId":"tx-0","sourceAccount":"A","destinationAccount":"B","amount":0,"currency":"USD"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, repo.Len())
}

func TestWebhookStoreFailureFailsRequest(t *testing.T) {
	repo := memory.NewMemoryTransactionRepo()
	repo.FailWith = errors.New("connection refused")
	scheduler := &countingScheduler{}
	router := newTestRouter(repo, scheduler)

	rec := postWebhook(t, router, webhookBody)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 0, scheduler.count(), "nothing scheduled when persistence failed")
}

func TestGetTransactionNotFound(t *testing.T) {
	router := newTestRouter(memory.NewMemoryTransactionRepo(), &countingScheduler{})

	rec := getTransaction(t, router, "tx-missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(memory.NewMemoryTransactionRepo(), &countingScheduler{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var health handler.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "HEALTHY", health.Status)

	_, err := time.Parse(time.RFC3339, health.CurrentTime)
	assert.NoError(t, err)
}
