package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rentledger/backend/internal/domain/billing"
	"github.com/rentledger/backend/internal/domain/shared"
)

// InvoiceModel is the persistence model for the ad-hoc Invoice aggregate root.
type InvoiceModel struct {
	TenantAggregateModel
	InvoiceNumber string                `gorm:"type:varchar(50);not null;uniqueIndex:idx_invoice_tenant_number,priority:2"`
	UnitID        uuid.UUID             `gorm:"type:uuid;not null;index;uniqueIndex:idx_invoice_tenant_unit_period,priority:2"`
	PropertyID    uuid.UUID             `gorm:"type:uuid;not null;index"`
	Amount        decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	PeriodMonth   int                   `gorm:"not null;uniqueIndex:idx_invoice_tenant_unit_period,priority:3"`
	PeriodYear    int                   `gorm:"not null;uniqueIndex:idx_invoice_tenant_unit_period,priority:4"`
	DueDate       time.Time             `gorm:"not null;index"`
	Status        billing.InvoiceStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	Notes         string                `gorm:"type:text"`
	PaidAt        *time.Time
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice entity.
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	return &billing.Invoice{
		TenantAggregateRoot: shared.TenantAggregateRoot{
			BaseAggregateRoot: shared.BaseAggregateRoot{
				BaseEntity: shared.BaseEntity{
					ID:        m.ID,
					CreatedAt: m.CreatedAt,
					UpdatedAt: m.UpdatedAt,
				},
				Version: m.Version,
			},
			TenantID:  m.TenantID,
			CreatedBy: m.CreatedBy,
		},
		InvoiceNumber: m.InvoiceNumber,
		UnitID:        m.UnitID,
		PropertyID:    m.PropertyID,
		Amount:        m.Amount,
		PeriodMonth:   m.PeriodMonth,
		PeriodYear:    m.PeriodYear,
		DueDate:       m.DueDate,
		Status:        m.Status,
		Notes:         m.Notes,
		PaidAt:        m.PaidAt,
	}
}

// FromDomain populates the persistence model from a domain Invoice entity.
func (m *InvoiceModel) FromDomain(inv *billing.Invoice) {
	m.FromDomainTenantAggregateRoot(inv.TenantAggregateRoot)
	m.InvoiceNumber = inv.InvoiceNumber
	m.UnitID = inv.UnitID
	m.PropertyID = inv.PropertyID
	m.Amount = inv.Amount
	m.PeriodMonth = inv.PeriodMonth
	m.PeriodYear = inv.PeriodYear
	m.DueDate = inv.DueDate
	m.Status = inv.Status
	m.Notes = inv.Notes
	m.PaidAt = inv.PaidAt
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice.
func InvoiceModelFromDomain(inv *billing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// RentPeriodModel is the persistence model for the RentPeriod aggregate root.
// One-time charges are stored as JSONB within the row.
type RentPeriodModel struct {
	TenantAggregateModel
	ResidentID     uuid.UUID              `gorm:"type:uuid;not null;uniqueIndex:idx_period_tenant_resident_month,priority:2"`
	PropertyID     uuid.UUID              `gorm:"type:uuid;not null;index"`
	UnitID         uuid.UUID              `gorm:"type:uuid;not null;index"`
	PeriodMonth    int                    `gorm:"not null;uniqueIndex:idx_period_tenant_resident_month,priority:3"`
	PeriodYear     int                    `gorm:"not null;uniqueIndex:idx_period_tenant_resident_month,priority:4"`
	WindowStart    time.Time              `gorm:"not null"`
	WindowEnd      time.Time              `gorm:"not null"`
	DueDate        time.Time              `gorm:"not null;index"`
	BaseAmount     decimal.Decimal        `gorm:"type:decimal(18,4);not null"`
	LateFeeAmount  decimal.Decimal        `gorm:"type:decimal(18,4);not null"`
	OneTimeCharges billing.OneTimeCharges `gorm:"type:jsonb;default:'{}'"`
	IsFirstPeriod  bool                   `gorm:"not null;default:false"`
	IsProrated     bool                   `gorm:"not null;default:false"`
	Status         billing.PeriodStatus   `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	PaidAt         *time.Time
}

// TableName returns the table name for GORM
func (RentPeriodModel) TableName() string {
	return "rent_periods"
}

// ToDomain converts the persistence model to a domain RentPeriod entity.
func (m *RentPeriodModel) ToDomain() *billing.RentPeriod {
	return &billing.RentPeriod{
		TenantAggregateRoot: shared.TenantAggregateRoot{
			BaseAggregateRoot: shared.BaseAggregateRoot{
				BaseEntity: shared.BaseEntity{
					ID:        m.ID,
					CreatedAt: m.CreatedAt,
					UpdatedAt: m.UpdatedAt,
				},
				Version: m.Version,
			},
			TenantID:  m.TenantID,
			CreatedBy: m.CreatedBy,
		},
		ResidentID:     m.ResidentID,
		PropertyID:     m.PropertyID,
		UnitID:         m.UnitID,
		PeriodMonth:    m.PeriodMonth,
		PeriodYear:     m.PeriodYear,
		WindowStart:    m.WindowStart,
		WindowEnd:      m.WindowEnd,
		DueDate:        m.DueDate,
		BaseAmount:     m.BaseAmount,
		LateFeeAmount:  m.LateFeeAmount,
		OneTimeCharges: m.OneTimeCharges,
		IsFirstPeriod:  m.IsFirstPeriod,
		IsProrated:     m.IsProrated,
		Status:         m.Status,
		PaidAt:         m.PaidAt,
	}
}

// FromDomain populates the persistence model from a domain RentPeriod entity.
func (m *RentPeriodModel) FromDomain(p *billing.RentPeriod) {
	m.FromDomainTenantAggregateRoot(p.TenantAggregateRoot)
	m.ResidentID = p.ResidentID
	m.PropertyID = p.PropertyID
	m.UnitID = p.UnitID
	m.PeriodMonth = p.PeriodMonth
	m.PeriodYear = p.PeriodYear
	m.WindowStart = p.WindowStart
	m.WindowEnd = p.WindowEnd
	m.DueDate = p.DueDate
	m.BaseAmount = p.BaseAmount
	m.LateFeeAmount = p.LateFeeAmount
	m.OneTimeCharges = p.OneTimeCharges
	m.IsFirstPeriod = p.IsFirstPeriod
	m.IsProrated = p.IsProrated
	m.Status = p.Status
	m.PaidAt = p.PaidAt
}

// RentPeriodModelFromDomain creates a new persistence model from a domain RentPeriod.
func RentPeriodModelFromDomain(p *billing.RentPeriod) *RentPeriodModel {
	m := &RentPeriodModel{}
	m.FromDomain(p)
	return m
}

// PaymentAttemptModel is the persistence model for the PaymentAttempt aggregate root.
// The state column is the target of the conditional PENDING transition, so it is
// indexed together with the gateway order ID the verifiers look attempts up by.
type PaymentAttemptModel struct {
	TenantAggregateModel
	LedgerKind       billing.LedgerKind    `gorm:"type:varchar(20);not null;index:idx_attempt_ledger_entry,priority:1"`
	LedgerEntryID    uuid.UUID             `gorm:"type:uuid;not null;index:idx_attempt_ledger_entry,priority:2"`
	PayerID          uuid.UUID             `gorm:"type:uuid;not null;index"`
	Amount           decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	Method           billing.PaymentMethod `gorm:"type:varchar(20);not null"`
	Source           billing.AttemptSource `gorm:"type:varchar(20);not null;index"`
	State            billing.AttemptState  `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	GatewayOrderID   string                `gorm:"type:varchar(64);index"`
	GatewayPaymentID string                `gorm:"type:varchar(64)"`
	GatewaySignature string                `gorm:"type:varchar(128)"`
	FailureReason    string                `gorm:"type:varchar(500)"`
	RecordedBy       *uuid.UUID            `gorm:"type:uuid"`
	PaidAt           *time.Time
}

// TableName returns the table name for GORM
func (PaymentAttemptModel) TableName() string {
	return "payment_attempts"
}

// ToDomain converts the persistence model to a domain PaymentAttempt entity.
func (m *PaymentAttemptModel) ToDomain() *billing.PaymentAttempt {
	return &billing.PaymentAttempt{
		TenantAggregateRoot: shared.TenantAggregateRoot{
			BaseAggregateRoot: shared.BaseAggregateRoot{
				BaseEntity: shared.BaseEntity{
					ID:        m.ID,
					CreatedAt: m.CreatedAt,
					UpdatedAt: m.UpdatedAt,
				},
				Version: m.Version,
			},
			TenantID:  m.TenantID,
			CreatedBy: m.CreatedBy,
		},
		LedgerKind:       m.LedgerKind,
		LedgerEntryID:    m.LedgerEntryID,
		PayerID:          m.PayerID,
		Amount:           m.Amount,
		Method:           m.Method,
		Source:           m.Source,
		State:            m.State,
		GatewayOrderID:   m.GatewayOrderID,
		GatewayPaymentID: m.GatewayPaymentID,
		GatewaySignature: m.GatewaySignature,
		FailureReason:    m.FailureReason,
		RecordedBy:       m.RecordedBy,
		PaidAt:           m.PaidAt,
	}
}

// FromDomain populates the persistence model from a domain PaymentAttempt entity.
func (m *PaymentAttemptModel) FromDomain(a *billing.PaymentAttempt) {
	m.FromDomainTenantAggregateRoot(a.TenantAggregateRoot)
	m.LedgerKind = a.LedgerKind
	m.LedgerEntryID = a.LedgerEntryID
	m.PayerID = a.PayerID
	m.Amount = a.Amount
	m.Method = a.Method
	m.Source = a.Source
	m.State = a.State
	m.GatewayOrderID = a.GatewayOrderID
	m.GatewayPaymentID = a.GatewayPaymentID
	m.GatewaySignature = a.GatewaySignature
	m.FailureReason = a.FailureReason
	m.RecordedBy = a.RecordedBy
	m.PaidAt = a.PaidAt
}

// PaymentAttemptModelFromDomain creates a new persistence model from a domain PaymentAttempt.
func PaymentAttemptModelFromDomain(a *billing.PaymentAttempt) *PaymentAttemptModel {
	m := &PaymentAttemptModel{}
	m.FromDomain(a)
	return m
}
