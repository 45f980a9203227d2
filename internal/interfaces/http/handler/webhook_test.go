package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	billingapp "github.com/rentledger/backend/internal/application/billing"
	"github.com/rentledger/backend/internal/domain/billing"
	"github.com/rentledger/backend/internal/domain/shared/valueobject"
)

type webhookHandlerFixture struct {
	invoiceRepo *MockInvoiceRepository
	periodRepo  *MockRentPeriodRepository
	attemptRepo *MockPaymentAttemptRepository
	gateway     *MockPaymentGateway
	idemStore   *MockIdempotencyStore
	handler     *WebhookHandler
}

func setupWebhookHandler() *webhookHandlerFixture {
	f := &webhookHandlerFixture{
		invoiceRepo: new(MockInvoiceRepository),
		periodRepo:  new(MockRentPeriodRepository),
		attemptRepo: new(MockPaymentAttemptRepository),
		gateway:     new(MockPaymentGateway),
		idemStore:   new(MockIdempotencyStore),
	}

	ledger := billingapp.NewLedgerService(billingapp.LedgerServiceConfig{
		InvoiceRepo: f.invoiceRepo,
		PeriodRepo:  f.periodRepo,
		AttemptRepo: f.attemptRepo,
	})
	reconciliation := billingapp.NewReconciliationService(billingapp.ReconciliationServiceConfig{
		AttemptRepo: f.attemptRepo,
		PeriodRepo:  f.periodRepo,
		Ledger:      ledger,
	})
	webhookService := billingapp.NewWebhookService(billingapp.WebhookServiceConfig{
		Gateway:          f.gateway,
		Reconciliation:   reconciliation,
		IdempotencyStore: f.idemStore,
	})

	f.handler = NewWebhookHandler(webhookService)
	return f
}

func capturedWebhookBody(orderID, paymentID string) []byte {
	return []byte(fmt.Sprintf(`{
		"event": "payment.captured",
		"payload": {
			"payment": {
				"entity": {
					"id": %q,
					"order_id": %q,
					"status": "captured",
					"captured_at": 1767182400
				}
			}
		}
	}`, paymentID, orderID))
}

func postWebhook(router http.Handler, body []byte, signature, eventID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Razorpay-Signature", signature)
	}
	if eventID != "" {
		req.Header.Set("X-Razorpay-Event-Id", eventID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookHandler_PaymentCaptured(t *testing.T) {
	f := setupWebhookHandler()

	tenantID := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	inv := testInvoice(t, tenantID, 5000)
	ref := billing.NewInvoiceRef(inv.ID)

	attempt, err := billing.NewGatewayAttempt(tenantID, ref, uuid.New(),
		valueobject.NewMoneyINR(decimal.NewFromInt(5000)), "order_abc123")
	assert.NoError(t, err)

	body := capturedWebhookBody("order_abc123", "pay_xyz")

	f.gateway.On("VerifyWebhookSignature", body, "valid_sig").Return(nil)
	f.idemStore.On("MarkProcessed", mock.Anything, "evt_1", mock.Anything).Return(true, nil)
	f.attemptRepo.On("FindByGatewayOrderID", mock.Anything, "order_abc123").Return(attempt, nil)
	f.attemptRepo.On("TransitionIfPending", mock.Anything, attempt).Return(true, nil)
	f.attemptRepo.On("SumApprovedByLedgerEntry", mock.Anything, ref).Return(decimal.NewFromInt(5000), nil)
	f.invoiceRepo.On("FindByID", mock.Anything, inv.ID).Return(inv, nil)
	f.invoiceRepo.On("SaveWithLock", mock.Anything, inv).Return(nil)

	router := setupTestRouter()
	router.POST("/webhooks/gateway", f.handler.HandleGatewayWebhook)

	w := postWebhook(router, body, "valid_sig", "evt_1")

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data WebhookAckResponse `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "payment.captured", resp.Data.Event)
	assert.True(t, resp.Data.Handled)
	assert.False(t, resp.Data.Duplicate)
	f.gateway.AssertExpectations(t)
	f.attemptRepo.AssertExpectations(t)
}

func TestWebhookHandler_DuplicateDelivery(t *testing.T) {
	f := setupWebhookHandler()

	body := capturedWebhookBody("order_abc123", "pay_xyz")

	f.gateway.On("VerifyWebhookSignature", body, "valid_sig").Return(nil)
	f.idemStore.On("MarkProcessed", mock.Anything, "evt_1", mock.Anything).Return(false, nil)

	router := setupTestRouter()
	router.POST("/webhooks/gateway", f.handler.HandleGatewayWebhook)

	w := postWebhook(router, body, "valid_sig", "evt_1")

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data WebhookAckResponse `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Duplicate)
	assert.False(t, resp.Data.Handled)
	f.attemptRepo.AssertNotCalled(t, "FindByGatewayOrderID")
}

func TestWebhookHandler_BadSignature(t *testing.T) {
	f := setupWebhookHandler()

	body := capturedWebhookBody("order_abc123", "pay_xyz")

	f.gateway.On("VerifyWebhookSignature", body, "forged").Return(billing.ErrSignatureMismatch)

	router := setupTestRouter()
	router.POST("/webhooks/gateway", f.handler.HandleGatewayWebhook)

	w := postWebhook(router, body, "forged", "evt_1")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.idemStore.AssertNotCalled(t, "MarkProcessed")
}

func TestWebhookHandler_MissingSignatureHeader(t *testing.T) {
	f := setupWebhookHandler()

	router := setupTestRouter()
	router.POST("/webhooks/gateway", f.handler.HandleGatewayWebhook)

	w := postWebhook(router, capturedWebhookBody("order_abc123", "pay_xyz"), "", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.gateway.AssertNotCalled(t, "VerifyWebhookSignature")
}

func TestWebhookHandler_UnknownEventAcknowledged(t *testing.T) {
	f := setupWebhookHandler()

	body := []byte(`{"event": "refund.created", "payload": {}}`)

	f.gateway.On("VerifyWebhookSignature", body, "valid_sig").Return(nil)

	router := setupTestRouter()
	router.POST("/webhooks/gateway", f.handler.HandleGatewayWebhook)

	w := postWebhook(router, body, "valid_sig", "evt_2")

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data WebhookAckResponse `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "refund.created", resp.Data.Event)
	assert.False(t, resp.Data.Handled)
	f.attemptRepo.AssertNotCalled(t, "FindByGatewayOrderID")
}

func TestWebhookHandler_PaymentFailed_MarksPeriod(t *testing.T) {
	f := setupWebhookHandler()

	tenantID := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	period := testRentPeriod(t, tenantID)
	ref := billing.NewRentPeriodRef(period.ID)

	attempt, err := billing.NewGatewayAttempt(tenantID, ref, uuid.New(),
		valueobject.NewMoneyINR(decimal.NewFromInt(25000)), "order_fail1")
	assert.NoError(t, err)

	body := []byte(`{
		"event": "payment.failed",
		"payload": {
			"payment": {
				"entity": {
					"id": "pay_bad",
					"order_id": "order_fail1",
					"status": "failed",
					"error_description": "card declined"
				}
			}
		}
	}`)

	f.gateway.On("VerifyWebhookSignature", body, "valid_sig").Return(nil)
	f.idemStore.On("MarkProcessed", mock.Anything, "evt_3", mock.Anything).Return(true, nil)
	f.attemptRepo.On("FindByGatewayOrderID", mock.Anything, "order_fail1").Return(attempt, nil)
	f.attemptRepo.On("TransitionIfPending", mock.Anything, attempt).Return(true, nil)
	f.attemptRepo.On("SumApprovedByLedgerEntry", mock.Anything, ref).Return(decimal.Zero, nil)
	f.periodRepo.On("FindByID", mock.Anything, period.ID).Return(period, nil)
	f.periodRepo.On("SaveWithLock", mock.Anything, period).Return(nil)

	router := setupTestRouter()
	router.POST("/webhooks/gateway", f.handler.HandleGatewayWebhook)

	w := postWebhook(router, body, "valid_sig", "evt_3")

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data WebhookAckResponse `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Handled)
	assert.Equal(t, billing.AttemptStateFailed, attempt.State)
	f.periodRepo.AssertExpectations(t)
}
