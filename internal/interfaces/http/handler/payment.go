package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	billingapp "github.com/rentledger/backend/internal/application/billing"
	"github.com/rentledger/backend/internal/domain/billing"
	"github.com/rentledger/backend/internal/domain/shared/valueobject"
)

// PaymentHandler handles payment order, verification and manual
// settlement API endpoints
type PaymentHandler struct {
	BaseHandler
	orderService        *billingapp.OrderService
	verificationService *billingapp.VerificationService
	reconciliation      *billingapp.ReconciliationService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(
	orderService *billingapp.OrderService,
	verificationService *billingapp.VerificationService,
	reconciliation *billingapp.ReconciliationService,
) *PaymentHandler {
	return &PaymentHandler{
		orderService:        orderService,
		verificationService: verificationService,
		reconciliation:      reconciliation,
	}
}

// ===================== Request/Response DTOs =====================

// CreateOrderRequest asks for a gateway order against a ledger entry
// @Description Create payment order request
type CreateOrderRequest struct {
	LedgerKind string   `json:"ledger_kind" binding:"required,oneof=INVOICE RENT_PERIOD"`
	LedgerID   string   `json:"ledger_id" binding:"required,uuid"`
	Amount     *float64 `json:"amount" binding:"omitempty,gt=0"`
}

// OrderResponse is the checkout handle returned to the paying client
// @Description Payment order response
type OrderResponse struct {
	OrderID     string  `json:"order_id" example:"order_NXhj4aZsmFkW2b"`
	AttemptID   string  `json:"attempt_id"`
	Amount      float64 `json:"amount" example:"25000.00"`
	AmountPaise int64   `json:"amount_paise" example:"2500000"`
	Currency    string  `json:"currency" example:"INR"`
}

// VerifyCheckoutRequest carries the proof the checkout widget hands back
// @Description Verify checkout proof request
type VerifyCheckoutRequest struct {
	OrderID   string `json:"order_id" binding:"required"`
	PaymentID string `json:"payment_id" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// RecordManualPaymentRequest records an offline payment against a ledger entry
// @Description Record manual payment request
type RecordManualPaymentRequest struct {
	LedgerKind string  `json:"ledger_kind" binding:"required,oneof=INVOICE RENT_PERIOD"`
	LedgerID   string  `json:"ledger_id" binding:"required,uuid"`
	PayerID    string  `json:"payer_id" binding:"required,uuid"`
	Amount     float64 `json:"amount" binding:"required,gt=0"`
	Method     string  `json:"method" binding:"required,oneof=CASH CHEQUE BANK_TRANSFER OTHER"`
	PaidAt     string  `json:"paid_at" binding:"omitempty"`
}

// ReconcileResultResponse reports the ledger state after a settlement
// @Description Reconciliation result response
type ReconcileResultResponse struct {
	AttemptID         string  `json:"attempt_id"`
	AttemptState      string  `json:"attempt_state" example:"APPROVED"`
	LedgerKind        string  `json:"ledger_kind" example:"RENT_PERIOD"`
	LedgerEntryID     string  `json:"ledger_entry_id"`
	LedgerStatus      string  `json:"ledger_status" example:"PAID"`
	TotalPaid         float64 `json:"total_paid" example:"25000.00"`
	Outstanding       float64 `json:"outstanding" example:"0.00"`
	AlreadyReconciled bool    `json:"already_reconciled"`
}

// PollOrderResponse reports a manual verification poll
type PollOrderResponse struct {
	Verified bool                     `json:"verified"`
	Result   *ReconcileResultResponse `json:"result,omitempty"`
}

func toReconcileResultResponse(r *billing.ReconcileResult) *ReconcileResultResponse {
	if r == nil {
		return nil
	}
	return &ReconcileResultResponse{
		AttemptID:         r.AttemptID.String(),
		AttemptState:      string(r.AttemptState),
		LedgerKind:        string(r.LedgerKind),
		LedgerEntryID:     r.LedgerEntryID.String(),
		LedgerStatus:      r.LedgerStatus,
		TotalPaid:         r.TotalPaid.InexactFloat64(),
		Outstanding:       r.Outstanding.InexactFloat64(),
		AlreadyReconciled: r.AlreadyReconciled,
	}
}

func parseLedgerRef(kind, id string) (billing.LedgerRef, error) {
	entryID, err := uuid.Parse(id)
	if err != nil {
		return billing.LedgerRef{}, err
	}
	if billing.LedgerKind(kind) == billing.LedgerKindInvoice {
		return billing.NewInvoiceRef(entryID), nil
	}
	return billing.NewRentPeriodRef(entryID), nil
}

// ===================== Endpoints =====================

// CreateOrder godoc
// @Summary      Create a payment order
// @Description  Creates a gateway order for the outstanding balance of an invoice or rent period. A partial amount may be requested as long as it does not exceed the outstanding balance. Rent period late fees are refreshed before the amount is computed.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        request body CreateOrderRequest true "Order details"
// @Success      201 {object} dto.Response{data=OrderResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /payments/orders [post]
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	payerID, err := getUserID(c)
	if err != nil {
		h.BadRequest(c, "Invalid user ID")
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	ref, err := parseLedgerRef(req.LedgerKind, req.LedgerID)
	if err != nil {
		h.BadRequest(c, "Invalid ledger entry ID format")
		return
	}

	var requested *valueobject.Money
	if req.Amount != nil {
		amount := valueobject.NewMoneyINR(decimal.NewFromFloat(*req.Amount))
		requested = &amount
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), tenantID, ref, payerID, requested)
	if err != nil {
		h.handleBillingError(c, err)
		return
	}

	h.Created(c, OrderResponse{
		OrderID:     order.OrderID,
		AttemptID:   order.AttemptID.String(),
		Amount:      order.Amount.InexactFloat64(),
		AmountPaise: order.AmountPaise,
		Currency:    order.Currency,
	})
}

// VerifyCheckout godoc
// @Summary      Verify a checkout proof
// @Description  Verifies the signature the checkout widget returned and settles the matching payment attempt. Safe to call more than once.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        request body VerifyCheckoutRequest true "Checkout proof"
// @Success      200 {object} dto.Response{data=ReconcileResultResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /payments/verify [post]
func (h *PaymentHandler) VerifyCheckout(c *gin.Context) {
	payerID, err := getUserID(c)
	if err != nil {
		h.BadRequest(c, "Invalid user ID")
		return
	}

	var req VerifyCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.verificationService.VerifyCheckoutProof(c.Request.Context(), payerID, billing.CheckoutProof{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	})
	if err != nil {
		h.handleBillingError(c, err)
		return
	}

	h.Success(c, toReconcileResultResponse(result))
}

// PollOrder godoc
// @Summary      Poll a payment order
// @Description  Asks the gateway whether an order has been paid, settling the attempt when it has. Returns verified=false when payment is still outstanding.
// @Tags         payments
// @Produce      json
// @Param        orderId path string true "Gateway order ID"
// @Success      200 {object} dto.Response{data=PollOrderResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /payments/orders/{orderId}/poll [post]
func (h *PaymentHandler) PollOrder(c *gin.Context) {
	payerID, err := getUserID(c)
	if err != nil {
		h.BadRequest(c, "Invalid user ID")
		return
	}

	orderID := c.Param("orderId")
	if orderID == "" {
		h.BadRequest(c, "Missing order ID")
		return
	}

	poll, err := h.verificationService.PollOrder(c.Request.Context(), payerID, orderID)
	if err != nil {
		h.handleBillingError(c, err)
		return
	}

	h.Success(c, PollOrderResponse{
		Verified: poll.Verified,
		Result:   toReconcileResultResponse(poll.Result),
	})
}

// RecordManualPayment godoc
// @Summary      Record a manual payment
// @Description  Records an offline payment (cash, cheque, bank transfer) against a ledger entry as an already-approved attempt
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        request body RecordManualPaymentRequest true "Payment details"
// @Success      201 {object} dto.Response{data=ReconcileResultResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /payments/manual [post]
func (h *PaymentHandler) RecordManualPayment(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	recordedBy, err := getUserID(c)
	if err != nil {
		h.BadRequest(c, "Invalid user ID")
		return
	}

	var req RecordManualPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	ref, err := parseLedgerRef(req.LedgerKind, req.LedgerID)
	if err != nil {
		h.BadRequest(c, "Invalid ledger entry ID format")
		return
	}

	var paidAt time.Time
	if req.PaidAt != "" {
		paidAt, err = parseDateTime(req.PaidAt)
		if err != nil {
			h.BadRequest(c, "Invalid paid_at date format")
			return
		}
	}

	result, err := h.reconciliation.RecordManualPayment(
		c.Request.Context(),
		tenantID,
		ref,
		uuid.MustParse(req.PayerID),
		valueobject.NewMoneyINR(decimal.NewFromFloat(req.Amount)),
		billing.PaymentMethod(req.Method),
		recordedBy,
		paidAt,
	)
	if err != nil {
		h.handleBillingError(c, err)
		return
	}

	h.Created(c, toReconcileResultResponse(result))
}
