package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rentledger/backend/internal/domain/shared"
)

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	shared.Filter
	UnitID      *uuid.UUID     // Filter by unit
	PropertyID  *uuid.UUID     // Filter by property
	Status      *InvoiceStatus // Filter by status
	PeriodMonth *int           // Filter by billing month
	PeriodYear  *int           // Filter by billing year
	DueFrom     *time.Time     // Filter by due date range start
	DueTo       *time.Time     // Filter by due date range end
}

// InvoiceRepository defines the interface for ad-hoc invoice persistence
type InvoiceRepository interface {
	// FindByID finds an invoice by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// FindByIDForTenant finds an invoice by ID for a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	// FindByUnitPeriod finds the invoice for a unit and billing month, if any
	FindByUnitPeriod(ctx context.Context, tenantID, unitID uuid.UUID, periodMonth, periodYear int) (*Invoice, error)

	// FindAllForTenant finds all invoices for a tenant with filtering
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter) ([]Invoice, error)

	// CountForTenant counts invoices matching the filter
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter) (int64, error)

	// Save creates or updates an invoice
	Save(ctx context.Context, invoice *Invoice) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, invoice *Invoice) error

	// GenerateInvoiceNumber generates the next invoice number for a tenant
	GenerateInvoiceNumber(ctx context.Context, tenantID uuid.UUID) (string, error)
}

// RentPeriodFilter defines filtering options for rent period queries
type RentPeriodFilter struct {
	shared.Filter
	ResidentID  *uuid.UUID    // Filter by resident
	PropertyID  *uuid.UUID    // Filter by property
	Status      *PeriodStatus // Filter by status
	PeriodMonth *int          // Filter by billing month
	PeriodYear  *int          // Filter by billing year
	FirstOnly   *bool         // Filter only first periods
}

// RentPeriodRepository defines the interface for rent period persistence
type RentPeriodRepository interface {
	// FindByID finds a rent period by ID
	FindByID(ctx context.Context, id uuid.UUID) (*RentPeriod, error)

	// FindByIDForTenant finds a rent period by ID for a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*RentPeriod, error)

	// FindByResidentPeriod finds the period for a resident and billing month, if any
	FindByResidentPeriod(ctx context.Context, tenantID, residentID uuid.UUID, periodMonth, periodYear int) (*RentPeriod, error)

	// FindAllForTenant finds all rent periods for a tenant with filtering
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter RentPeriodFilter) ([]RentPeriod, error)

	// CountForTenant counts rent periods matching the filter
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter RentPeriodFilter) (int64, error)

	// Save creates or updates a rent period
	Save(ctx context.Context, period *RentPeriod) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, period *RentPeriod) error
}

// AttemptFilter defines filtering options for payment attempt queries
type AttemptFilter struct {
	shared.Filter
	PayerID *uuid.UUID     // Filter by payer
	State   *AttemptState  // Filter by state
	Source  *AttemptSource // Filter by source
}

// PaymentAttemptRepository defines the interface for payment attempt persistence
type PaymentAttemptRepository interface {
	// FindByID finds a payment attempt by ID
	FindByID(ctx context.Context, id uuid.UUID) (*PaymentAttempt, error)

	// FindByGatewayOrderID finds the attempt bound to a gateway order.
	// Gateway order IDs are globally unique so no tenant scope applies.
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*PaymentAttempt, error)

	// FindByLedgerEntry finds all attempts against a ledger entry
	FindByLedgerEntry(ctx context.Context, ref LedgerRef) ([]PaymentAttempt, error)

	// FindAllForTenant finds all attempts for a tenant with filtering
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter AttemptFilter) ([]PaymentAttempt, error)

	// SumApprovedByLedgerEntry sums the amounts of APPROVED attempts
	// against a ledger entry. This is the single source of totalPaid.
	SumApprovedByLedgerEntry(ctx context.Context, ref LedgerRef) (decimal.Decimal, error)

	// Save creates or updates a payment attempt
	Save(ctx context.Context, attempt *PaymentAttempt) error

	// TransitionIfPending atomically moves the attempt out of PENDING.
	// The update is conditional on the stored state still being PENDING;
	// it returns false without error when another writer got there
	// first. This is the idempotency guard for concurrent verification.
	TransitionIfPending(ctx context.Context, attempt *PaymentAttempt) (bool, error)
}
