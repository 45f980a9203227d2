package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Payment Gateway Errors
// ---------------------------------------------------------------------------

var (
	// Order creation errors
	ErrGatewayInvalidAmount   = errors.New("gateway: invalid order amount")
	ErrGatewayInvalidReceipt  = errors.New("gateway: invalid order receipt")
	ErrGatewayInvalidCurrency = errors.New("gateway: invalid order currency")

	// Gateway errors
	ErrGatewayNotConfigured   = errors.New("gateway: not configured")
	ErrGatewayUnavailable     = errors.New("gateway: temporarily unavailable")
	ErrGatewayRequestFailed   = errors.New("gateway: request failed")
	ErrGatewayInvalidResponse = errors.New("gateway: invalid response")
	ErrGatewayOrderNotFound   = errors.New("gateway: order not found")

	// Verification errors
	ErrSignatureMismatch = errors.New("gateway: signature mismatch")
	ErrMissingSecret     = errors.New("gateway: signing secret not configured")
)

// GatewayOrderStatus is the order lifecycle state reported by the gateway
type GatewayOrderStatus string

const (
	GatewayOrderStatusCreated   GatewayOrderStatus = "created"
	GatewayOrderStatusAttempted GatewayOrderStatus = "attempted"
	GatewayOrderStatusPaid      GatewayOrderStatus = "paid"
)

// GatewayPaymentStatus is the payment lifecycle state reported by the gateway
type GatewayPaymentStatus string

const (
	GatewayPaymentStatusCreated    GatewayPaymentStatus = "created"
	GatewayPaymentStatusAuthorized GatewayPaymentStatus = "authorized"
	GatewayPaymentStatusCaptured   GatewayPaymentStatus = "captured"
	GatewayPaymentStatusFailed     GatewayPaymentStatus = "failed"
	GatewayPaymentStatusRefunded   GatewayPaymentStatus = "refunded"
)

// IsCaptured returns true when the payment has terminally succeeded
func (s GatewayPaymentStatus) IsCaptured() bool {
	return s == GatewayPaymentStatusCaptured
}

// CreateOrderRequest carries what the gateway needs to open an order.
// AmountPaise is in the smallest currency unit, as the wire demands.
type CreateOrderRequest struct {
	AmountPaise int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

// Validate checks the order creation request
func (r *CreateOrderRequest) Validate() error {
	if r.AmountPaise <= 0 {
		return ErrGatewayInvalidAmount
	}
	if r.Receipt == "" {
		return ErrGatewayInvalidReceipt
	}
	if r.Currency == "" {
		return ErrGatewayInvalidCurrency
	}
	return nil
}

// GatewayOrder is the gateway's view of an order
type GatewayOrder struct {
	OrderID     string
	AmountPaise int64
	AmountPaid  int64
	Currency    string
	Receipt     string
	Status      GatewayOrderStatus
	CreatedAt   time.Time
}

// IsPaid reports whether the gateway considers the order settled,
// either by status or by the paid amount covering the order amount.
func (o *GatewayOrder) IsPaid() bool {
	return o.Status == GatewayOrderStatusPaid || (o.AmountPaise > 0 && o.AmountPaid >= o.AmountPaise)
}

// GatewayPayment is the gateway's view of one payment against an order
type GatewayPayment struct {
	PaymentID   string
	OrderID     string
	AmountPaise int64
	Status      GatewayPaymentStatus
	Method      string
	CapturedAt  *time.Time
	ErrorReason string
}

// PaymentGateway is the outbound port to the payment provider. The
// adapter is constructed once at startup and handed to the services
// that need it; nothing holds a process-global instance.
type PaymentGateway interface {
	// CreateOrder opens a new order for the given amount
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*GatewayOrder, error)

	// FetchOrder retrieves the current state of an order
	FetchOrder(ctx context.Context, orderID string) (*GatewayOrder, error)

	// FetchOrderPayments retrieves all payments made against an order
	FetchOrderPayments(ctx context.Context, orderID string) ([]GatewayPayment, error)

	// VerifyWebhookSignature checks the HMAC signature of a raw webhook
	// body in constant time
	VerifyWebhookSignature(body []byte, signature string) error

	// VerifyCheckoutSignature checks the client-side proof signature
	// computed over "orderID|paymentID"
	VerifyCheckoutSignature(orderID, paymentID, signature string) error
}

// CheckoutProof is the client-submitted evidence of a completed
// checkout: the gateway signs orderID|paymentID with the key secret.
type CheckoutProof struct {
	OrderID   string
	PaymentID string
	Signature string
}

// SettlementEvidence carries what reconciliation knows about how an
// attempt settled, regardless of which channel reported it.
type SettlementEvidence struct {
	GatewayPaymentID string
	GatewaySignature string
	PaidAt           time.Time
	FailureReason    string
}

// ReconcileOutcome is the verdict a verification channel feeds into the
// reconciliation engine.
type ReconcileOutcome string

const (
	ReconcileOutcomeApproved ReconcileOutcome = "APPROVED"
	ReconcileOutcomeFailed   ReconcileOutcome = "FAILED"
)

// ReconcileResult reports the converged state after a reconcile call.
// Replays and races return the same result as the first delivery.
type ReconcileResult struct {
	AttemptID         uuid.UUID       `json:"attempt_id"`
	AttemptState      AttemptState    `json:"attempt_state"`
	LedgerKind        LedgerKind      `json:"ledger_kind"`
	LedgerEntryID     uuid.UUID       `json:"ledger_entry_id"`
	LedgerStatus      string          `json:"ledger_status"`
	TotalPaid         decimal.Decimal `json:"total_paid"`
	Outstanding       decimal.Decimal `json:"outstanding"`
	AlreadyReconciled bool            `json:"already_reconciled"`
}
