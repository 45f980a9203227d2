package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rentledger/backend/internal/domain/billing"
	"github.com/rentledger/backend/internal/domain/shared"
	"github.com/rentledger/backend/internal/domain/shared/valueobject"
)

func newInvoiceService(invoiceRepo *MockInvoiceRepository, periodRepo *MockRentPeriodRepository, attemptRepo *MockPaymentAttemptRepository) *InvoiceService {
	return NewInvoiceService(InvoiceServiceConfig{
		InvoiceRepo: invoiceRepo,
		Ledger:      newLedgerWith(invoiceRepo, periodRepo, attemptRepo),
		Logger:      newTestLogger(),
	})
}

func TestCreateInvoice_Success(t *testing.T) {
	invoiceRepo := new(MockInvoiceRepository)
	service := newInvoiceService(invoiceRepo, new(MockRentPeriodRepository), new(MockPaymentAttemptRepository))

	ctx := context.Background()
	tenantID := uuid.New()
	unitID := uuid.New()

	invoiceRepo.On("FindByUnitPeriod", ctx, tenantID, unitID, 6, 2025).Return(nil, shared.ErrNotFound)
	invoiceRepo.On("GenerateInvoiceNumber", ctx, tenantID).Return("INV-202506-00042", nil)
	invoiceRepo.On("Save", ctx, mock.AnythingOfType("*billing.Invoice")).Return(nil)

	inv, err := service.CreateInvoice(ctx, tenantID, CreateInvoiceInput{
		UnitID:      unitID,
		PropertyID:  uuid.New(),
		Amount:      valueobject.NewMoneyINR(decimal.NewFromInt(3500)),
		PeriodMonth: 6,
		PeriodYear:  2025,
		DueDate:     time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
		Notes:       "broken geyser repair",
	})

	require.NoError(t, err)
	assert.Equal(t, "INV-202506-00042", inv.InvoiceNumber)
	assert.Equal(t, billing.InvoiceStatusPending, inv.Status)
	assert.Equal(t, "broken geyser repair", inv.Notes)
	invoiceRepo.AssertExpectations(t)
}

func TestCreateInvoice_DuplicateUnitPeriodRejected(t *testing.T) {
	invoiceRepo := new(MockInvoiceRepository)
	service := newInvoiceService(invoiceRepo, new(MockRentPeriodRepository), new(MockPaymentAttemptRepository))

	ctx := context.Background()
	tenantID := uuid.New()
	unitID := uuid.New()
	existing := createTestInvoiceFor(1000, time.Now())

	invoiceRepo.On("FindByUnitPeriod", ctx, tenantID, unitID, 6, 2025).Return(existing, nil)

	_, err := service.CreateInvoice(ctx, tenantID, CreateInvoiceInput{
		UnitID:      unitID,
		PropertyID:  uuid.New(),
		Amount:      valueobject.NewMoneyINR(decimal.NewFromInt(3500)),
		PeriodMonth: 6,
		PeriodYear:  2025,
		DueDate:     time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
	})

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "ALREADY_EXISTS", domainErr.Code)
	invoiceRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestCreateInvoice_InvalidAmountRejected(t *testing.T) {
	invoiceRepo := new(MockInvoiceRepository)
	service := newInvoiceService(invoiceRepo, new(MockRentPeriodRepository), new(MockPaymentAttemptRepository))

	ctx := context.Background()
	tenantID := uuid.New()
	unitID := uuid.New()

	invoiceRepo.On("FindByUnitPeriod", ctx, tenantID, unitID, 6, 2025).Return(nil, shared.ErrNotFound)
	invoiceRepo.On("GenerateInvoiceNumber", ctx, tenantID).Return("INV-202506-00043", nil)

	_, err := service.CreateInvoice(ctx, tenantID, CreateInvoiceInput{
		UnitID:      unitID,
		PropertyID:  uuid.New(),
		Amount:      valueobject.ZeroINR(),
		PeriodMonth: 6,
		PeriodYear:  2025,
		DueDate:     time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
	})

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_AMOUNT", domainErr.Code)
}

func TestGetInvoice_DerivesOverdueWhenUnpaidPastDue(t *testing.T) {
	invoiceRepo := new(MockInvoiceRepository)
	attemptRepo := new(MockPaymentAttemptRepository)
	service := newInvoiceService(invoiceRepo, new(MockRentPeriodRepository), attemptRepo)

	ctx := context.Background()
	inv := createTestInvoiceFor(5000, time.Now().Add(-48*time.Hour))
	ref := billing.NewInvoiceRef(inv.ID)

	invoiceRepo.On("FindByIDForTenant", ctx, inv.TenantID, inv.ID).Return(inv, nil)
	attemptRepo.On("SumApprovedByLedgerEntry", ctx, ref).Return(decimal.Zero, nil)
	invoiceRepo.On("FindByID", ctx, inv.ID).Return(inv, nil)
	invoiceRepo.On("SaveWithLock", ctx, inv).Return(nil)

	got, snapshot, err := service.GetInvoice(ctx, inv.TenantID, inv.ID)

	require.NoError(t, err)
	assert.Equal(t, billing.InvoiceStatusOverdue, got.Status)
	assert.Equal(t, decimal.NewFromInt(5000).String(), snapshot.Outstanding.String())
}

func TestListInvoices_DefaultsPagination(t *testing.T) {
	invoiceRepo := new(MockInvoiceRepository)
	service := newInvoiceService(invoiceRepo, new(MockRentPeriodRepository), new(MockPaymentAttemptRepository))

	ctx := context.Background()
	tenantID := uuid.New()
	filter := billing.InvoiceFilter{}

	invoiceRepo.On("FindAllForTenant", ctx, tenantID, filter).Return([]billing.Invoice{*createTestInvoiceFor(1000, time.Now())}, nil)
	invoiceRepo.On("CountForTenant", ctx, tenantID, filter).Return(int64(1), nil)

	page, err := service.ListInvoices(ctx, tenantID, filter)

	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
	assert.Len(t, page.Items, 1)
}
