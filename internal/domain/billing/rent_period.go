package billing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rentledger/backend/internal/domain/shared"
	"github.com/rentledger/backend/internal/domain/shared/valueobject"
)

// PeriodStatus represents the settlement status of a recurring rent period
type PeriodStatus string

const (
	PeriodStatusPending  PeriodStatus = "PENDING"  // Awaiting payment
	PeriodStatusPaid     PeriodStatus = "PAID"     // Approved payments cover the total
	PeriodStatusFailed   PeriodStatus = "FAILED"   // Payment attempt failed, nothing collected
	PeriodStatusRefunded PeriodStatus = "REFUNDED" // Reserved; refunds are handled out of band
)

// IsValid checks if the status is a valid PeriodStatus
func (s PeriodStatus) IsValid() bool {
	switch s {
	case PeriodStatusPending, PeriodStatusPaid, PeriodStatusFailed, PeriodStatusRefunded:
		return true
	}
	return false
}

// String returns the string representation of PeriodStatus
func (s PeriodStatus) String() string {
	return string(s)
}

// ChargeItem is a single labelled one-time charge
type ChargeItem struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// OneTimeCharges carries the move-in extras billed on a resident's
// first period only. Stored as JSONB within the period row.
type OneTimeCharges struct {
	Deposit    decimal.Decimal `json:"deposit"`
	JoiningFee decimal.Decimal `json:"joining_fee"`
	Items      []ChargeItem    `json:"items,omitempty"`
}

// Total sums all one-time charge components
func (c OneTimeCharges) Total() decimal.Decimal {
	total := c.Deposit.Add(c.JoiningFee)
	for _, item := range c.Items {
		total = total.Add(item.Amount)
	}
	return total
}

// IsZero returns true when no one-time charges are present
func (c OneTimeCharges) IsZero() bool {
	return c.Total().IsZero()
}

// Value implements driver.Valuer interface for GORM to store as JSONB
func (c OneTimeCharges) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (c *OneTimeCharges) Scan(value interface{}) error {
	if value == nil {
		*c = OneTimeCharges{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan OneTimeCharges: unsupported type")
	}

	if len(bytes) == 0 {
		*c = OneTimeCharges{}
		return nil
	}

	return json.Unmarshal(bytes, c)
}

// RentPeriod is one month of rent owed by a resident. The base rent,
// accrued late fee and one-time charges are kept as separate columns;
// the amount due is always computed from them, never stored.
type RentPeriod struct {
	shared.TenantAggregateRoot
	ResidentID     uuid.UUID       `json:"resident_id"`
	PropertyID     uuid.UUID       `json:"property_id"`
	UnitID         uuid.UUID       `json:"unit_id"`
	PeriodMonth    int             `json:"period_month"`
	PeriodYear     int             `json:"period_year"`
	WindowStart    time.Time       `json:"window_start"`
	WindowEnd      time.Time       `json:"window_end"`
	DueDate        time.Time       `json:"due_date"`
	BaseAmount     decimal.Decimal `json:"base_amount"`
	LateFeeAmount  decimal.Decimal `json:"late_fee_amount"`
	OneTimeCharges OneTimeCharges  `json:"one_time_charges"`
	IsFirstPeriod  bool            `json:"is_first_period"`
	IsProrated     bool            `json:"is_prorated"`
	Status         PeriodStatus    `json:"status"`
	PaidAt         *time.Time      `json:"paid_at"`
}

// NewRentPeriod creates a new rent period in PENDING status
func NewRentPeriod(
	tenantID uuid.UUID,
	residentID uuid.UUID,
	propertyID uuid.UUID,
	unitID uuid.UUID,
	periodMonth int,
	periodYear int,
	terms PeriodTerms,
	oneTime OneTimeCharges,
	isFirstPeriod bool,
) (*RentPeriod, error) {
	if residentID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_RESIDENT", "Resident ID cannot be empty")
	}
	if propertyID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PROPERTY", "Property ID cannot be empty")
	}
	if periodMonth < 1 || periodMonth > 12 {
		return nil, shared.NewDomainError("INVALID_PERIOD", "Period month must be between 1 and 12")
	}
	if periodYear < 2000 {
		return nil, shared.NewDomainError("INVALID_PERIOD", "Period year is not valid")
	}
	if terms.BaseAmount.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Base rent amount must be positive")
	}
	if !isFirstPeriod && !oneTime.IsZero() {
		return nil, shared.NewDomainError("INVALID_CHARGES", "One-time charges are only allowed on the first period")
	}

	p := &RentPeriod{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ResidentID:          residentID,
		PropertyID:          propertyID,
		UnitID:              unitID,
		PeriodMonth:         periodMonth,
		PeriodYear:          periodYear,
		WindowStart:         terms.WindowStart,
		WindowEnd:           terms.WindowEnd,
		DueDate:             terms.DueDate,
		BaseAmount:          terms.BaseAmount.Amount(),
		LateFeeAmount:       decimal.Zero,
		OneTimeCharges:      oneTime,
		IsFirstPeriod:       isFirstPeriod,
		IsProrated:          terms.IsProrated,
		Status:              PeriodStatusPending,
	}

	p.AddDomainEvent(NewRentPeriodOpenedEvent(p))

	return p, nil
}

// TotalAmount returns the full amount currently due on the period:
// base rent plus accrued late fee plus one-time charges.
func (p *RentPeriod) TotalAmount() valueobject.Money {
	return valueobject.NewMoneyINR(p.BaseAmount.Add(p.LateFeeAmount).Add(p.OneTimeCharges.Total()))
}

// SetLateFee overwrites the accrued late fee. Called when an order is
// created so the charged amount matches what the payer was quoted.
func (p *RentPeriod) SetLateFee(fee valueobject.Money, now time.Time) error {
	if fee.IsNegative() {
		return shared.NewDomainError("INVALID_AMOUNT", "Late fee cannot be negative")
	}
	if p.Status == PeriodStatusPaid {
		return shared.NewDomainError("INVALID_STATE", "Cannot change late fee on a paid period")
	}
	if fee.Amount().Equal(p.LateFeeAmount) {
		return nil
	}
	p.LateFeeAmount = fee.Amount()
	p.UpdatedAt = now
	p.IncrementVersion()
	return nil
}

// DeriveStatus computes the settlement status from the sum of approved
// payments. Periods only self-derive PAID and PENDING; FAILED is set
// explicitly by reconciliation and REFUNDED never derives.
func (p *RentPeriod) DeriveStatus(totalPaid valueobject.Money) PeriodStatus {
	if totalPaid.Amount().GreaterThanOrEqual(p.TotalAmount().Amount()) {
		return PeriodStatusPaid
	}
	if p.Status == PeriodStatusFailed && totalPaid.IsZero() {
		return PeriodStatusFailed
	}
	return PeriodStatusPending
}

// ApplyDerivedStatus writes the derived status back onto the period.
// Returns true when the status actually changed.
func (p *RentPeriod) ApplyDerivedStatus(totalPaid valueobject.Money, now time.Time) bool {
	next := p.DeriveStatus(totalPaid)
	if next == p.Status {
		return false
	}

	p.Status = next
	if next == PeriodStatusPaid && p.PaidAt == nil {
		paidAt := now
		p.PaidAt = &paidAt
		p.AddDomainEvent(NewRentPeriodPaidEvent(p, totalPaid))
	}
	p.UpdatedAt = now
	p.IncrementVersion()
	return true
}

// MarkFailed records that an attempt failed while nothing has been
// collected on the period yet.
func (p *RentPeriod) MarkFailed(now time.Time) error {
	if p.Status == PeriodStatusPaid {
		return shared.NewDomainError("INVALID_STATE", "Cannot mark a paid period as failed")
	}
	if p.Status == PeriodStatusFailed {
		return nil
	}
	p.Status = PeriodStatusFailed
	p.UpdatedAt = now
	p.IncrementVersion()
	return nil
}

// Outstanding returns the remaining balance, floored at zero
func (p *RentPeriod) Outstanding(totalPaid valueobject.Money) valueobject.Money {
	rest := p.TotalAmount().Amount().Sub(totalPaid.Amount())
	if rest.IsNegative() {
		rest = decimal.Zero
	}
	return valueobject.NewMoneyINR(rest)
}
