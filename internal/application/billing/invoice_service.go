package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rentledger/backend/internal/domain/billing"
	"github.com/rentledger/backend/internal/domain/shared"
	"github.com/rentledger/backend/internal/domain/shared/valueobject"
)

// CreateInvoiceInput carries the fields needed to raise an ad-hoc invoice
type CreateInvoiceInput struct {
	UnitID      uuid.UUID
	PropertyID  uuid.UUID
	Amount      valueobject.Money
	PeriodMonth int
	PeriodYear  int
	DueDate     time.Time
	Notes       string
}

// InvoiceService manages ad-hoc invoices raised against units
type InvoiceService struct {
	invoiceRepo billing.InvoiceRepository
	ledger      *LedgerService
	logger      *zap.Logger
}

// InvoiceServiceConfig holds configuration for the invoice service
type InvoiceServiceConfig struct {
	InvoiceRepo billing.InvoiceRepository
	Ledger      *LedgerService
	Logger      *zap.Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(config InvoiceServiceConfig) *InvoiceService {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &InvoiceService{
		invoiceRepo: config.InvoiceRepo,
		ledger:      config.Ledger,
		logger:      logger,
	}
}

// CreateInvoice raises a new ad-hoc invoice. At most one invoice may
// exist per unit and billing month.
func (s *InvoiceService) CreateInvoice(ctx context.Context, tenantID uuid.UUID, input CreateInvoiceInput) (*billing.Invoice, error) {
	existing, err := s.invoiceRepo.FindByUnitPeriod(ctx, tenantID, input.UnitID, input.PeriodMonth, input.PeriodYear)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("check existing invoice: %w", err)
	}
	if existing != nil {
		return nil, shared.NewDomainError("ALREADY_EXISTS",
			fmt.Sprintf("An invoice already exists for this unit in %d-%02d", input.PeriodYear, input.PeriodMonth))
	}

	number, err := s.invoiceRepo.GenerateInvoiceNumber(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("generate invoice number: %w", err)
	}

	inv, err := billing.NewInvoice(tenantID, number, input.UnitID, input.PropertyID,
		input.Amount, input.PeriodMonth, input.PeriodYear, input.DueDate, input.Notes)
	if err != nil {
		return nil, err
	}

	if err := s.invoiceRepo.Save(ctx, inv); err != nil {
		return nil, fmt.Errorf("save invoice: %w", err)
	}

	s.ledger.publishEvents(ctx, inv.GetDomainEvents())
	inv.ClearDomainEvents()

	s.logger.Info("invoice created",
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("unit_id", input.UnitID.String()),
		zap.String("amount", input.Amount.String()))

	return inv, nil
}

// GetInvoice fetches an invoice with its status refreshed from the
// attempt ledger.
func (s *InvoiceService) GetInvoice(ctx context.Context, tenantID, id uuid.UUID) (*billing.Invoice, *LedgerSnapshot, error) {
	inv, err := s.invoiceRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, nil, err
	}

	snapshot, err := s.ledger.Recalc(ctx, billing.NewInvoiceRef(inv.ID))
	if err != nil {
		return nil, nil, err
	}
	inv.Status = billing.InvoiceStatus(snapshot.Status)

	return inv, snapshot, nil
}

// ListInvoices returns invoices for a tenant with pagination
func (s *InvoiceService) ListInvoices(ctx context.Context, tenantID uuid.UUID, filter billing.InvoiceFilter) (shared.Paginated[billing.Invoice], error) {
	invoices, err := s.invoiceRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return shared.Paginated[billing.Invoice]{}, err
	}
	total, err := s.invoiceRepo.CountForTenant(ctx, tenantID, filter)
	if err != nil {
		return shared.Paginated[billing.Invoice]{}, err
	}

	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = shared.DefaultFilter().PageSize
	}
	return shared.NewPaginated(invoices, total, page, pageSize), nil
}
