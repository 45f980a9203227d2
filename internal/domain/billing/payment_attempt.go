package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rentledger/backend/internal/domain/shared"
	"github.com/rentledger/backend/internal/domain/shared/valueobject"
)

// LedgerKind discriminates which ledger entry a payment attempt targets
type LedgerKind string

const (
	LedgerKindInvoice    LedgerKind = "INVOICE"
	LedgerKindRentPeriod LedgerKind = "RENT_PERIOD"
)

// IsValid checks if the kind is a valid LedgerKind
func (k LedgerKind) IsValid() bool {
	return k == LedgerKindInvoice || k == LedgerKindRentPeriod
}

// LedgerRef identifies a ledger entry of either kind
type LedgerRef struct {
	Kind LedgerKind
	ID   uuid.UUID
}

// NewInvoiceRef returns a LedgerRef pointing at an invoice
func NewInvoiceRef(id uuid.UUID) LedgerRef {
	return LedgerRef{Kind: LedgerKindInvoice, ID: id}
}

// NewRentPeriodRef returns a LedgerRef pointing at a rent period
func NewRentPeriodRef(id uuid.UUID) LedgerRef {
	return LedgerRef{Kind: LedgerKindRentPeriod, ID: id}
}

// AttemptState represents the lifecycle state of a payment attempt
type AttemptState string

const (
	AttemptStatePending  AttemptState = "PENDING"  // Order created, awaiting the gateway verdict
	AttemptStateApproved AttemptState = "APPROVED" // Funds captured; counts toward the ledger
	AttemptStateFailed   AttemptState = "FAILED"   // Declined or abandoned; never leaves this state
)

// IsValid checks if the state is a valid AttemptState
func (s AttemptState) IsValid() bool {
	switch s {
	case AttemptStatePending, AttemptStateApproved, AttemptStateFailed:
		return true
	}
	return false
}

// String returns the string representation of AttemptState
func (s AttemptState) String() string {
	return string(s)
}

// IsTerminal returns true once the attempt can no longer change state
func (s AttemptState) IsTerminal() bool {
	return s == AttemptStateApproved || s == AttemptStateFailed
}

// PaymentMethod is how the money moved
type PaymentMethod string

const (
	PaymentMethodOnline       PaymentMethod = "ONLINE"
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodCheque       PaymentMethod = "CHEQUE"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodOther        PaymentMethod = "OTHER"
)

// IsValid checks if the method is a valid PaymentMethod
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodOnline, PaymentMethodCash, PaymentMethodCheque,
		PaymentMethodBankTransfer, PaymentMethodOther:
		return true
	}
	return false
}

// AttemptSource is who initiated the attempt
type AttemptSource string

const (
	AttemptSourceGateway  AttemptSource = "GATEWAY"  // Online checkout through the payment gateway
	AttemptSourceResident AttemptSource = "RESIDENT" // Resident-submitted proof, verified server side
	AttemptSourceAdmin    AttemptSource = "ADMIN"    // Staff-recorded offline payment
)

// IsValid checks if the source is a valid AttemptSource
func (s AttemptSource) IsValid() bool {
	switch s {
	case AttemptSourceGateway, AttemptSourceResident, AttemptSourceAdmin:
		return true
	}
	return false
}

// PaymentAttempt records one try at settling a ledger entry. Gateway
// attempts are born PENDING and move exactly once to APPROVED or
// FAILED; admin-recorded offline payments are born APPROVED.
type PaymentAttempt struct {
	shared.TenantAggregateRoot
	LedgerKind       LedgerKind      `json:"ledger_kind"`
	LedgerEntryID    uuid.UUID       `json:"ledger_entry_id"`
	PayerID          uuid.UUID       `json:"payer_id"`
	Amount           decimal.Decimal `json:"amount"`
	Method           PaymentMethod   `json:"method"`
	Source           AttemptSource   `json:"source"`
	State            AttemptState    `json:"state"`
	GatewayOrderID   string          `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string          `json:"gateway_payment_id,omitempty"`
	GatewaySignature string          `json:"gateway_signature,omitempty"`
	FailureReason    string          `json:"failure_reason,omitempty"`
	RecordedBy       *uuid.UUID      `json:"recorded_by,omitempty"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
}

// NewGatewayAttempt creates a PENDING attempt bound to a gateway order
func NewGatewayAttempt(
	tenantID uuid.UUID,
	ref LedgerRef,
	payerID uuid.UUID,
	amount valueobject.Money,
	gatewayOrderID string,
) (*PaymentAttempt, error) {
	if !ref.Kind.IsValid() || ref.ID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_LEDGER_REF", "Ledger entry reference is not valid")
	}
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Attempt amount must be positive")
	}
	if gatewayOrderID == "" {
		return nil, shared.NewDomainError("INVALID_ORDER_ID", "Gateway order ID cannot be empty")
	}

	return &PaymentAttempt{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		LedgerKind:          ref.Kind,
		LedgerEntryID:       ref.ID,
		PayerID:             payerID,
		Amount:              amount.Amount(),
		Method:              PaymentMethodOnline,
		Source:              AttemptSourceGateway,
		State:               AttemptStatePending,
		GatewayOrderID:      gatewayOrderID,
	}, nil
}

// NewManualAttempt creates an APPROVED attempt for an offline payment
// recorded by staff. It has no pending phase: the money has already
// been handed over.
func NewManualAttempt(
	tenantID uuid.UUID,
	ref LedgerRef,
	payerID uuid.UUID,
	amount valueobject.Money,
	method PaymentMethod,
	recordedBy uuid.UUID,
	paidAt time.Time,
) (*PaymentAttempt, error) {
	if !ref.Kind.IsValid() || ref.ID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_LEDGER_REF", "Ledger entry reference is not valid")
	}
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Attempt amount must be positive")
	}
	if !method.IsValid() || method == PaymentMethodOnline {
		return nil, shared.NewDomainError("INVALID_METHOD", "Manual payments require an offline payment method")
	}
	if recordedBy == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_RECORDER", "Recording user ID cannot be empty")
	}

	a := &PaymentAttempt{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		LedgerKind:          ref.Kind,
		LedgerEntryID:       ref.ID,
		PayerID:             payerID,
		Amount:              amount.Amount(),
		Method:              method,
		Source:              AttemptSourceAdmin,
		State:               AttemptStateApproved,
		RecordedBy:          &recordedBy,
		PaidAt:              &paidAt,
	}
	a.AddDomainEvent(NewPaymentAttemptSettledEvent(a))
	return a, nil
}

// LedgerRef returns the ledger entry this attempt targets
func (a *PaymentAttempt) LedgerRef() LedgerRef {
	return LedgerRef{Kind: a.LedgerKind, ID: a.LedgerEntryID}
}

// AmountMoney returns the attempt amount as Money
func (a *PaymentAttempt) AmountMoney() valueobject.Money {
	return valueobject.NewMoneyINR(a.Amount)
}

// Approve transitions the attempt from PENDING to APPROVED with the
// gateway evidence. The persistence layer enforces the same guard as a
// conditional update; this method is the in-memory mirror of it.
func (a *PaymentAttempt) Approve(gatewayPaymentID, gatewaySignature string, paidAt time.Time) error {
	if a.State != AttemptStatePending {
		return shared.NewDomainError("INVALID_STATE", "Only a pending attempt can be approved")
	}
	a.State = AttemptStateApproved
	a.GatewayPaymentID = gatewayPaymentID
	a.GatewaySignature = gatewaySignature
	a.PaidAt = &paidAt
	a.UpdatedAt = time.Now()
	a.IncrementVersion()
	a.AddDomainEvent(NewPaymentAttemptSettledEvent(a))
	return nil
}

// Fail transitions the attempt from PENDING to FAILED. FAILED is
// terminal: a payer who wants to retry gets a fresh attempt.
func (a *PaymentAttempt) Fail(reason string) error {
	if a.State != AttemptStatePending {
		return shared.NewDomainError("INVALID_STATE", "Only a pending attempt can be failed")
	}
	a.State = AttemptStateFailed
	a.FailureReason = reason
	a.UpdatedAt = time.Now()
	a.IncrementVersion()
	a.AddDomainEvent(NewPaymentAttemptFailedEvent(a))
	return nil
}
