package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/rentledger/backend/internal/domain/billing"
	"github.com/rentledger/backend/internal/domain/shared"
)

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	// Add test authentication middleware that sets JWT context values
	// Uses a default test tenant and user ID for all requests
	router.Use(func(c *gin.Context) {
		setJWTContext(c, uuid.MustParse("00000000-0000-0000-0000-000000000001"), uuid.New())
		c.Next()
	})
	return router
}

// MockInvoiceRepository implements billing.InvoiceRepository for testing
type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*billing.Invoice, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByUnitPeriod(ctx context.Context, tenantID, unitID uuid.UUID, periodMonth, periodYear int) (*billing.Invoice, error) {
	args := m.Called(ctx, tenantID, unitID, periodMonth, periodYear)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter billing.InvoiceFilter) ([]billing.Invoice, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter billing.InvoiceFilter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockInvoiceRepository) Save(ctx context.Context, invoice *billing.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) SaveWithLock(ctx context.Context, invoice *billing.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) GenerateInvoiceNumber(ctx context.Context, tenantID uuid.UUID) (string, error) {
	args := m.Called(ctx, tenantID)
	return args.String(0), args.Error(1)
}

// MockRentPeriodRepository implements billing.RentPeriodRepository for testing
type MockRentPeriodRepository struct {
	mock.Mock
}

func (m *MockRentPeriodRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.RentPeriod, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.RentPeriod), args.Error(1)
}

func (m *MockRentPeriodRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*billing.RentPeriod, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.RentPeriod), args.Error(1)
}

func (m *MockRentPeriodRepository) FindByResidentPeriod(ctx context.Context, tenantID, residentID uuid.UUID, periodMonth, periodYear int) (*billing.RentPeriod, error) {
	args := m.Called(ctx, tenantID, residentID, periodMonth, periodYear)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.RentPeriod), args.Error(1)
}

func (m *MockRentPeriodRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter billing.RentPeriodFilter) ([]billing.RentPeriod, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.RentPeriod), args.Error(1)
}

func (m *MockRentPeriodRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter billing.RentPeriodFilter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRentPeriodRepository) Save(ctx context.Context, period *billing.RentPeriod) error {
	args := m.Called(ctx, period)
	return args.Error(0)
}

func (m *MockRentPeriodRepository) SaveWithLock(ctx context.Context, period *billing.RentPeriod) error {
	args := m.Called(ctx, period)
	return args.Error(0)
}

// MockPaymentAttemptRepository implements billing.PaymentAttemptRepository for testing
type MockPaymentAttemptRepository struct {
	mock.Mock
}

func (m *MockPaymentAttemptRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.PaymentAttempt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.PaymentAttempt), args.Error(1)
}

func (m *MockPaymentAttemptRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*billing.PaymentAttempt, error) {
	args := m.Called(ctx, gatewayOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.PaymentAttempt), args.Error(1)
}

func (m *MockPaymentAttemptRepository) FindByLedgerEntry(ctx context.Context, ref billing.LedgerRef) ([]billing.PaymentAttempt, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.PaymentAttempt), args.Error(1)
}

func (m *MockPaymentAttemptRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter billing.AttemptFilter) ([]billing.PaymentAttempt, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.PaymentAttempt), args.Error(1)
}

func (m *MockPaymentAttemptRepository) SumApprovedByLedgerEntry(ctx context.Context, ref billing.LedgerRef) (decimal.Decimal, error) {
	args := m.Called(ctx, ref)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockPaymentAttemptRepository) Save(ctx context.Context, attempt *billing.PaymentAttempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}

func (m *MockPaymentAttemptRepository) TransitionIfPending(ctx context.Context, attempt *billing.PaymentAttempt) (bool, error) {
	args := m.Called(ctx, attempt)
	return args.Bool(0), args.Error(1)
}

// MockPaymentGateway implements billing.PaymentGateway for testing
type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) CreateOrder(ctx context.Context, req billing.CreateOrderRequest) (*billing.GatewayOrder, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.GatewayOrder), args.Error(1)
}

func (m *MockPaymentGateway) FetchOrder(ctx context.Context, orderID string) (*billing.GatewayOrder, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.GatewayOrder), args.Error(1)
}

func (m *MockPaymentGateway) FetchOrderPayments(ctx context.Context, orderID string) ([]billing.GatewayPayment, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.GatewayPayment), args.Error(1)
}

func (m *MockPaymentGateway) VerifyWebhookSignature(body []byte, signature string) error {
	args := m.Called(body, signature)
	return args.Error(0)
}

func (m *MockPaymentGateway) VerifyCheckoutSignature(orderID, paymentID, signature string) error {
	args := m.Called(orderID, paymentID, signature)
	return args.Error(0)
}

// MockEventPublisher implements shared.EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// MockIdempotencyStore implements shared.IdempotencyStore for testing
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, eventID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
