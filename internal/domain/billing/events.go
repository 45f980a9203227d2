package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rentledger/backend/internal/domain/shared"
	"github.com/rentledger/backend/internal/domain/shared/valueobject"
)

// Event type names used for bus subscriptions
const (
	EventTypeInvoiceCreated        = "InvoiceCreated"
	EventTypeInvoicePaid           = "InvoicePaid"
	EventTypeRentPeriodOpened      = "RentPeriodOpened"
	EventTypeRentPeriodPaid        = "RentPeriodPaid"
	EventTypePaymentAttemptSettled = "PaymentAttemptSettled"
	EventTypePaymentAttemptFailed  = "PaymentAttemptFailed"
)

// InvoiceCreatedEvent is raised when a new ad-hoc invoice is created
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	UnitID        uuid.UUID       `json:"unit_id"`
	PropertyID    uuid.UUID       `json:"property_id"`
	Amount        decimal.Decimal `json:"amount"`
	DueDate       time.Time       `json:"due_date"`
}

// EventType returns the event type name
func (e *InvoiceCreatedEvent) EventType() string {
	return EventTypeInvoiceCreated
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCreated, "Invoice", inv.ID, inv.TenantID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		UnitID:          inv.UnitID,
		PropertyID:      inv.PropertyID,
		Amount:          inv.Amount,
		DueDate:         inv.DueDate,
	}
}

// InvoicePaidEvent is raised the first time an invoice derives PAID
type InvoicePaidEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	UnitID        uuid.UUID       `json:"unit_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
}

// EventType returns the event type name
func (e *InvoicePaidEvent) EventType() string {
	return EventTypeInvoicePaid
}

// NewInvoicePaidEvent creates a new InvoicePaidEvent
func NewInvoicePaidEvent(inv *Invoice, totalPaid valueobject.Money) *InvoicePaidEvent {
	return &InvoicePaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoicePaid, "Invoice", inv.ID, inv.TenantID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		UnitID:          inv.UnitID,
		TotalAmount:     inv.Amount,
		PaidAmount:      totalPaid.Amount(),
	}
}

// RentPeriodOpenedEvent is raised when a new rent period is opened
type RentPeriodOpenedEvent struct {
	shared.BaseDomainEvent
	PeriodID      uuid.UUID       `json:"period_id"`
	ResidentID    uuid.UUID       `json:"resident_id"`
	PeriodMonth   int             `json:"period_month"`
	PeriodYear    int             `json:"period_year"`
	BaseAmount    decimal.Decimal `json:"base_amount"`
	IsFirstPeriod bool            `json:"is_first_period"`
	IsProrated    bool            `json:"is_prorated"`
	DueDate       time.Time       `json:"due_date"`
}

// EventType returns the event type name
func (e *RentPeriodOpenedEvent) EventType() string {
	return EventTypeRentPeriodOpened
}

// NewRentPeriodOpenedEvent creates a new RentPeriodOpenedEvent
func NewRentPeriodOpenedEvent(p *RentPeriod) *RentPeriodOpenedEvent {
	return &RentPeriodOpenedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRentPeriodOpened, "RentPeriod", p.ID, p.TenantID),
		PeriodID:        p.ID,
		ResidentID:      p.ResidentID,
		PeriodMonth:     p.PeriodMonth,
		PeriodYear:      p.PeriodYear,
		BaseAmount:      p.BaseAmount,
		IsFirstPeriod:   p.IsFirstPeriod,
		IsProrated:      p.IsProrated,
		DueDate:         p.DueDate,
	}
}

// RentPeriodPaidEvent is raised the first time a period derives PAID
type RentPeriodPaidEvent struct {
	shared.BaseDomainEvent
	PeriodID    uuid.UUID       `json:"period_id"`
	ResidentID  uuid.UUID       `json:"resident_id"`
	PeriodMonth int             `json:"period_month"`
	PeriodYear  int             `json:"period_year"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	PaidAmount  decimal.Decimal `json:"paid_amount"`
}

// EventType returns the event type name
func (e *RentPeriodPaidEvent) EventType() string {
	return EventTypeRentPeriodPaid
}

// NewRentPeriodPaidEvent creates a new RentPeriodPaidEvent
func NewRentPeriodPaidEvent(p *RentPeriod, totalPaid valueobject.Money) *RentPeriodPaidEvent {
	return &RentPeriodPaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRentPeriodPaid, "RentPeriod", p.ID, p.TenantID),
		PeriodID:        p.ID,
		ResidentID:      p.ResidentID,
		PeriodMonth:     p.PeriodMonth,
		PeriodYear:      p.PeriodYear,
		TotalAmount:     p.TotalAmount().Amount(),
		PaidAmount:      totalPaid.Amount(),
	}
}

// PaymentAttemptSettledEvent is raised exactly once per attempt, on its
// first transition to APPROVED. Downstream side effects (receipt
// rendering, notifications) subscribe to this.
type PaymentAttemptSettledEvent struct {
	shared.BaseDomainEvent
	AttemptID        uuid.UUID       `json:"attempt_id"`
	LedgerKind       LedgerKind      `json:"ledger_kind"`
	LedgerEntryID    uuid.UUID       `json:"ledger_entry_id"`
	PayerID          uuid.UUID       `json:"payer_id"`
	Amount           decimal.Decimal `json:"amount"`
	Method           PaymentMethod   `json:"method"`
	Source           AttemptSource   `json:"source"`
	GatewayOrderID   string          `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string          `json:"gateway_payment_id,omitempty"`
}

// EventType returns the event type name
func (e *PaymentAttemptSettledEvent) EventType() string {
	return EventTypePaymentAttemptSettled
}

// NewPaymentAttemptSettledEvent creates a new PaymentAttemptSettledEvent
func NewPaymentAttemptSettledEvent(a *PaymentAttempt) *PaymentAttemptSettledEvent {
	return &PaymentAttemptSettledEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypePaymentAttemptSettled, "PaymentAttempt", a.ID, a.TenantID),
		AttemptID:        a.ID,
		LedgerKind:       a.LedgerKind,
		LedgerEntryID:    a.LedgerEntryID,
		PayerID:          a.PayerID,
		Amount:           a.Amount,
		Method:           a.Method,
		Source:           a.Source,
		GatewayOrderID:   a.GatewayOrderID,
		GatewayPaymentID: a.GatewayPaymentID,
	}
}

// PaymentAttemptFailedEvent is raised on the first transition to FAILED
type PaymentAttemptFailedEvent struct {
	shared.BaseDomainEvent
	AttemptID      uuid.UUID       `json:"attempt_id"`
	LedgerKind     LedgerKind      `json:"ledger_kind"`
	LedgerEntryID  uuid.UUID       `json:"ledger_entry_id"`
	PayerID        uuid.UUID       `json:"payer_id"`
	Amount         decimal.Decimal `json:"amount"`
	GatewayOrderID string          `json:"gateway_order_id,omitempty"`
	FailureReason  string          `json:"failure_reason,omitempty"`
}

// EventType returns the event type name
func (e *PaymentAttemptFailedEvent) EventType() string {
	return EventTypePaymentAttemptFailed
}

// NewPaymentAttemptFailedEvent creates a new PaymentAttemptFailedEvent
func NewPaymentAttemptFailedEvent(a *PaymentAttempt) *PaymentAttemptFailedEvent {
	return &PaymentAttemptFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentAttemptFailed, "PaymentAttempt", a.ID, a.TenantID),
		AttemptID:       a.ID,
		LedgerKind:      a.LedgerKind,
		LedgerEntryID:   a.LedgerEntryID,
		PayerID:         a.PayerID,
		Amount:          a.Amount,
		GatewayOrderID:  a.GatewayOrderID,
		FailureReason:   a.FailureReason,
	}
}
