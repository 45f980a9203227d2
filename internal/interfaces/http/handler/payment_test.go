package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	billingapp "github.com/rentledger/backend/internal/application/billing"
	"github.com/rentledger/backend/internal/domain/billing"
	"github.com/rentledger/backend/internal/domain/shared/valueobject"
)

type paymentHandlerFixture struct {
	invoiceRepo *MockInvoiceRepository
	periodRepo  *MockRentPeriodRepository
	attemptRepo *MockPaymentAttemptRepository
	gateway     *MockPaymentGateway
	handler     *PaymentHandler
}

func setupPaymentHandler() *paymentHandlerFixture {
	f := &paymentHandlerFixture{
		invoiceRepo: new(MockInvoiceRepository),
		periodRepo:  new(MockRentPeriodRepository),
		attemptRepo: new(MockPaymentAttemptRepository),
		gateway:     new(MockPaymentGateway),
	}

	ledger := billingapp.NewLedgerService(billingapp.LedgerServiceConfig{
		InvoiceRepo: f.invoiceRepo,
		PeriodRepo:  f.periodRepo,
		AttemptRepo: f.attemptRepo,
	})
	orderService := billingapp.NewOrderService(billingapp.OrderServiceConfig{
		InvoiceRepo: f.invoiceRepo,
		PeriodRepo:  f.periodRepo,
		AttemptRepo: f.attemptRepo,
		Ledger:      ledger,
		Gateway:     f.gateway,
	})
	reconciliation := billingapp.NewReconciliationService(billingapp.ReconciliationServiceConfig{
		AttemptRepo: f.attemptRepo,
		PeriodRepo:  f.periodRepo,
		Ledger:      ledger,
	})
	verification := billingapp.NewVerificationService(billingapp.VerificationServiceConfig{
		Gateway:        f.gateway,
		Reconciliation: reconciliation,
		AttemptRepo:    f.attemptRepo,
	})

	f.handler = NewPaymentHandler(orderService, verification, reconciliation)
	return f
}

// setupTestRouterWithUser pins the authenticated user so payer checks
// in the verification paths can be exercised deterministically.
func setupTestRouterWithUser(userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		setJWTContext(c, uuid.MustParse("00000000-0000-0000-0000-000000000001"), userID)
		c.Next()
	})
	return router
}

func TestPaymentHandler_CreateOrder_Success(t *testing.T) {
	f := setupPaymentHandler()

	tenantID := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	inv := testInvoice(t, tenantID, 5000)
	ref := billing.NewInvoiceRef(inv.ID)

	f.attemptRepo.On("SumApprovedByLedgerEntry", mock.Anything, ref).Return(decimal.Zero, nil)
	f.invoiceRepo.On("FindByID", mock.Anything, inv.ID).Return(inv, nil)
	f.gateway.On("CreateOrder", mock.Anything, mock.MatchedBy(func(req billing.CreateOrderRequest) bool {
		return req.AmountPaise == 500000 && req.Currency == "INR"
	})).Return(&billing.GatewayOrder{
		OrderID:     "order_abc123",
		AmountPaise: 500000,
		Currency:    "INR",
		Status:      billing.GatewayOrderStatusCreated,
	}, nil)
	f.attemptRepo.On("Save", mock.Anything, mock.AnythingOfType("*billing.PaymentAttempt")).Return(nil)

	router := setupTestRouter()
	router.POST("/payments/orders", f.handler.CreateOrder)

	reqBody := CreateOrderRequest{
		LedgerKind: "INVOICE",
		LedgerID:   inv.ID.String(),
	}
	body, _ := json.Marshal(reqBody)

	req := httptest.NewRequest(http.MethodPost, "/payments/orders", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Data OrderResponse `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "order_abc123", resp.Data.OrderID)
	assert.Equal(t, int64(500000), resp.Data.AmountPaise)
	assert.Equal(t, "INR", resp.Data.Currency)
	f.gateway.AssertExpectations(t)
	f.attemptRepo.AssertExpectations(t)
}

func TestPaymentHandler_CreateOrder_PartialAmount(t *testing.T) {
	f := setupPaymentHandler()

	tenantID := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	inv := testInvoice(t, tenantID, 5000)
	ref := billing.NewInvoiceRef(inv.ID)

	f.attemptRepo.On("SumApprovedByLedgerEntry", mock.Anything, ref).Return(decimal.Zero, nil)
	f.invoiceRepo.On("FindByID", mock.Anything, inv.ID).Return(inv, nil)
	f.gateway.On("CreateOrder", mock.Anything, mock.MatchedBy(func(req billing.CreateOrderRequest) bool {
		return req.AmountPaise == 200000
	})).Return(&billing.GatewayOrder{
		OrderID:     "order_partial",
		AmountPaise: 200000,
		Currency:    "INR",
		Status:      billing.GatewayOrderStatusCreated,
	}, nil)
	f.attemptRepo.On("Save", mock.Anything, mock.AnythingOfType("*billing.PaymentAttempt")).Return(nil)

	router := setupTestRouter()
	router.POST("/payments/orders", f.handler.CreateOrder)

	partial := 2000.0
	reqBody := CreateOrderRequest{
		LedgerKind: "INVOICE",
		LedgerID:   inv.ID.String(),
		Amount:     &partial,
	}
	body, _ := json.Marshal(reqBody)

	req := httptest.NewRequest(http.MethodPost, "/payments/orders", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	f.gateway.AssertExpectations(t)
}

func TestPaymentHandler_CreateOrder_AlreadySettled(t *testing.T) {
	f := setupPaymentHandler()

	tenantID := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	inv := testInvoice(t, tenantID, 5000)
	ref := billing.NewInvoiceRef(inv.ID)

	f.attemptRepo.On("SumApprovedByLedgerEntry", mock.Anything, ref).Return(decimal.NewFromInt(5000), nil)
	f.invoiceRepo.On("FindByID", mock.Anything, inv.ID).Return(inv, nil)

	router := setupTestRouter()
	router.POST("/payments/orders", f.handler.CreateOrder)

	reqBody := CreateOrderRequest{
		LedgerKind: "INVOICE",
		LedgerID:   inv.ID.String(),
	}
	body, _ := json.Marshal(reqBody)

	req := httptest.NewRequest(http.MethodPost, "/payments/orders", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	f.gateway.AssertNotCalled(t, "CreateOrder")
}

func TestPaymentHandler_CreateOrder_GatewayUnavailable(t *testing.T) {
	f := setupPaymentHandler()

	tenantID := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	inv := testInvoice(t, tenantID, 5000)
	ref := billing.NewInvoiceRef(inv.ID)

	f.attemptRepo.On("SumApprovedByLedgerEntry", mock.Anything, ref).Return(decimal.Zero, nil)
	f.invoiceRepo.On("FindByID", mock.Anything, inv.ID).Return(inv, nil)
	f.gateway.On("CreateOrder", mock.Anything, mock.Anything).Return(nil, billing.ErrGatewayUnavailable)

	router := setupTestRouter()
	router.POST("/payments/orders", f.handler.CreateOrder)

	reqBody := CreateOrderRequest{
		LedgerKind: "INVOICE",
		LedgerID:   inv.ID.String(),
	}
	body, _ := json.Marshal(reqBody)

	req := httptest.NewRequest(http.MethodPost, "/payments/orders", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	f.attemptRepo.AssertNotCalled(t, "Save")
}

func TestPaymentHandler_VerifyCheckout_Success(t *testing.T) {
	f := setupPaymentHandler()

	tenantID := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	payerID := uuid.New()
	inv := testInvoice(t, tenantID, 5000)
	ref := billing.NewInvoiceRef(inv.ID)

	attempt, err := billing.NewGatewayAttempt(tenantID, ref, payerID,
		valueobject.NewMoneyINR(decimal.NewFromInt(5000)), "order_abc123")
	assert.NoError(t, err)

	f.gateway.On("VerifyCheckoutSignature", "order_abc123", "pay_xyz", "valid_sig").Return(nil)
	f.attemptRepo.On("FindByGatewayOrderID", mock.Anything, "order_abc123").Return(attempt, nil)
	f.attemptRepo.On("TransitionIfPending", mock.Anything, attempt).Return(true, nil)
	f.attemptRepo.On("SumApprovedByLedgerEntry", mock.Anything, ref).Return(decimal.NewFromInt(5000), nil)
	f.invoiceRepo.On("FindByID", mock.Anything, inv.ID).Return(inv, nil)
	f.invoiceRepo.On("SaveWithLock", mock.Anything, inv).Return(nil)

	router := setupTestRouterWithUser(payerID)
	router.POST("/payments/verify", f.handler.VerifyCheckout)

	reqBody := VerifyCheckoutRequest{
		OrderID:   "order_abc123",
		PaymentID: "pay_xyz",
		Signature: "valid_sig",
	}
	body, _ := json.Marshal(reqBody)

	req := httptest.NewRequest(http.MethodPost, "/payments/verify", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data ReconcileResultResponse `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "APPROVED", resp.Data.AttemptState)
	assert.Equal(t, "PAID", resp.Data.LedgerStatus)
	assert.False(t, resp.Data.AlreadyReconciled)
	f.gateway.AssertExpectations(t)
	f.attemptRepo.AssertExpectations(t)
}

func TestPaymentHandler_VerifyCheckout_BadSignature(t *testing.T) {
	f := setupPaymentHandler()

	f.gateway.On("VerifyCheckoutSignature", "order_abc123", "pay_xyz", "forged").
		Return(billing.ErrSignatureMismatch)

	router := setupTestRouterWithUser(uuid.New())
	router.POST("/payments/verify", f.handler.VerifyCheckout)

	reqBody := VerifyCheckoutRequest{
		OrderID:   "order_abc123",
		PaymentID: "pay_xyz",
		Signature: "forged",
	}
	body, _ := json.Marshal(reqBody)

	req := httptest.NewRequest(http.MethodPost, "/payments/verify", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.attemptRepo.AssertNotCalled(t, "FindByGatewayOrderID")
}

func TestPaymentHandler_PollOrder_NotYetPaid(t *testing.T) {
	f := setupPaymentHandler()

	tenantID := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	payerID := uuid.New()
	ref := billing.NewInvoiceRef(uuid.New())

	attempt, err := billing.NewGatewayAttempt(tenantID, ref, payerID,
		valueobject.NewMoneyINR(decimal.NewFromInt(5000)), "order_abc123")
	assert.NoError(t, err)

	f.attemptRepo.On("FindByGatewayOrderID", mock.Anything, "order_abc123").Return(attempt, nil)
	f.gateway.On("FetchOrder", mock.Anything, "order_abc123").Return(&billing.GatewayOrder{
		OrderID:     "order_abc123",
		AmountPaise: 500000,
		AmountPaid:  0,
		Currency:    "INR",
		Status:      billing.GatewayOrderStatusCreated,
	}, nil)
	f.gateway.On("FetchOrderPayments", mock.Anything, "order_abc123").
		Return([]billing.GatewayPayment{}, nil)

	router := setupTestRouterWithUser(payerID)
	router.POST("/payments/orders/:orderId/poll", f.handler.PollOrder)

	req := httptest.NewRequest(http.MethodPost, "/payments/orders/order_abc123/poll", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data PollOrderResponse `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Data.Verified)
	assert.Nil(t, resp.Data.Result)
	f.attemptRepo.AssertNotCalled(t, "TransitionIfPending")
}

func TestPaymentHandler_RecordManualPayment_Success(t *testing.T) {
	f := setupPaymentHandler()

	tenantID := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	inv := testInvoice(t, tenantID, 5000)
	ref := billing.NewInvoiceRef(inv.ID)
	payerID := uuid.New()

	f.attemptRepo.On("Save", mock.Anything, mock.AnythingOfType("*billing.PaymentAttempt")).Return(nil)
	f.attemptRepo.On("SumApprovedByLedgerEntry", mock.Anything, ref).Return(decimal.NewFromInt(5000), nil)
	f.invoiceRepo.On("FindByID", mock.Anything, inv.ID).Return(inv, nil)
	f.invoiceRepo.On("SaveWithLock", mock.Anything, inv).Return(nil)

	router := setupTestRouter()
	router.POST("/payments/manual", f.handler.RecordManualPayment)

	reqBody := RecordManualPaymentRequest{
		LedgerKind: "INVOICE",
		LedgerID:   inv.ID.String(),
		PayerID:    payerID.String(),
		Amount:     5000,
		Method:     "CASH",
		PaidAt:     time.Now().Format(time.RFC3339),
	}
	body, _ := json.Marshal(reqBody)

	req := httptest.NewRequest(http.MethodPost, "/payments/manual", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Data ReconcileResultResponse `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "APPROVED", resp.Data.AttemptState)
	assert.Equal(t, "PAID", resp.Data.LedgerStatus)
	f.attemptRepo.AssertExpectations(t)
	f.invoiceRepo.AssertExpectations(t)
}

func TestPaymentHandler_RecordManualPayment_RejectsOnlineMethod(t *testing.T) {
	f := setupPaymentHandler()

	router := setupTestRouter()
	router.POST("/payments/manual", f.handler.RecordManualPayment)

	reqBody := RecordManualPaymentRequest{
		LedgerKind: "INVOICE",
		LedgerID:   uuid.New().String(),
		PayerID:    uuid.New().String(),
		Amount:     5000,
		Method:     "ONLINE",
	}
	body, _ := json.Marshal(reqBody)

	req := httptest.NewRequest(http.MethodPost, "/payments/manual", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.attemptRepo.AssertNotCalled(t, "Save")
}
