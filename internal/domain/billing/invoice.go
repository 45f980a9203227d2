package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rentledger/backend/internal/domain/shared"
	"github.com/rentledger/backend/internal/domain/shared/valueobject"
)

// InvoiceStatus represents the derived settlement status of an ad-hoc invoice
type InvoiceStatus string

const (
	InvoiceStatusPending       InvoiceStatus = "PENDING"        // No payments, not past due
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID" // Some approved payments, balance remains
	InvoiceStatusPaid          InvoiceStatus = "PAID"           // Approved payments cover the amount
	InvoiceStatusOverdue       InvoiceStatus = "OVERDUE"        // No payments and past the due date
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusPartiallyPaid, InvoiceStatusPaid, InvoiceStatusOverdue:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsSettled returns true when no further payment is expected
func (s InvoiceStatus) IsSettled() bool {
	return s == InvoiceStatusPaid
}

// Invoice is an ad-hoc billing entry raised against a unit, outside the
// recurring rent cycle (damages, utilities, adjustments). Its status is
// never stored authoritatively by callers: it is derived from the sum
// of approved payment attempts and the due date.
type Invoice struct {
	shared.TenantAggregateRoot
	InvoiceNumber string          `json:"invoice_number"`
	UnitID        uuid.UUID       `json:"unit_id"`
	PropertyID    uuid.UUID       `json:"property_id"`
	Amount        decimal.Decimal `json:"amount"`
	PeriodMonth   int             `json:"period_month"`
	PeriodYear    int             `json:"period_year"`
	DueDate       time.Time       `json:"due_date"`
	Status        InvoiceStatus   `json:"status"`
	Notes         string          `json:"notes"`
	PaidAt        *time.Time      `json:"paid_at"`
}

// NewInvoice creates a new ad-hoc invoice in PENDING status
func NewInvoice(
	tenantID uuid.UUID,
	invoiceNumber string,
	unitID uuid.UUID,
	propertyID uuid.UUID,
	amount valueobject.Money,
	periodMonth int,
	periodYear int,
	dueDate time.Time,
	notes string,
) (*Invoice, error) {
	if invoiceNumber == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	if unitID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_UNIT", "Unit ID cannot be empty")
	}
	if propertyID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PROPERTY", "Property ID cannot be empty")
	}
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Invoice amount must be positive")
	}
	if periodMonth < 1 || periodMonth > 12 {
		return nil, shared.NewDomainError("INVALID_PERIOD", "Period month must be between 1 and 12")
	}
	if periodYear < 2000 {
		return nil, shared.NewDomainError("INVALID_PERIOD", "Period year is not valid")
	}
	if dueDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_DUE_DATE", "Due date cannot be empty")
	}

	inv := &Invoice{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		InvoiceNumber:       invoiceNumber,
		UnitID:              unitID,
		PropertyID:          propertyID,
		Amount:              amount.Amount(),
		PeriodMonth:         periodMonth,
		PeriodYear:          periodYear,
		DueDate:             dueDate,
		Status:              InvoiceStatusPending,
		Notes:               notes,
	}

	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv))

	return inv, nil
}

// TotalAmount returns the full amount due on the invoice
func (inv *Invoice) TotalAmount() valueobject.Money {
	return valueobject.NewMoneyINR(inv.Amount)
}

// DeriveStatus computes the settlement status from the sum of approved
// payments. Pure: it does not mutate the invoice.
func (inv *Invoice) DeriveStatus(totalPaid valueobject.Money, now time.Time) InvoiceStatus {
	paid := totalPaid.Amount()
	switch {
	case paid.GreaterThanOrEqual(inv.Amount):
		return InvoiceStatusPaid
	case paid.IsPositive():
		return InvoiceStatusPartiallyPaid
	case now.After(inv.DueDate):
		return InvoiceStatusOverdue
	default:
		return InvoiceStatusPending
	}
}

// ApplyDerivedStatus writes the derived status back onto the invoice.
// Returns true when the status actually changed.
func (inv *Invoice) ApplyDerivedStatus(totalPaid valueobject.Money, now time.Time) bool {
	next := inv.DeriveStatus(totalPaid, now)
	if next == inv.Status {
		return false
	}

	inv.Status = next
	if next == InvoiceStatusPaid && inv.PaidAt == nil {
		paidAt := now
		inv.PaidAt = &paidAt
		inv.AddDomainEvent(NewInvoicePaidEvent(inv, totalPaid))
	}
	inv.UpdatedAt = now
	inv.IncrementVersion()
	return true
}

// Outstanding returns the remaining balance, floored at zero
func (inv *Invoice) Outstanding(totalPaid valueobject.Money) valueobject.Money {
	rest := inv.Amount.Sub(totalPaid.Amount())
	if rest.IsNegative() {
		rest = decimal.Zero
	}
	return valueobject.NewMoneyINR(rest)
}

// UpdateNotes replaces the free-form notes on the invoice
func (inv *Invoice) UpdateNotes(notes string, now time.Time) {
	inv.Notes = notes
	inv.UpdatedAt = now
	inv.IncrementVersion()
}
