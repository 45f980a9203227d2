package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rentledger/backend/internal/domain/billing"
	"github.com/rentledger/backend/internal/domain/shared"
	"github.com/rentledger/backend/internal/domain/shared/valueobject"
)

var (
	// ErrAlreadySettled is returned when the ledger entry has no outstanding balance
	ErrAlreadySettled = errors.New("order: ledger entry already settled")
	// ErrInvalidAmount is returned when the requested charge amount is not positive
	ErrInvalidAmount = errors.New("order: invalid requested amount")
)

// OrderResponse is what the checkout client needs to start a payment
type OrderResponse struct {
	OrderID     string          `json:"order_id"`
	AttemptID   uuid.UUID       `json:"attempt_id"`
	Amount      decimal.Decimal `json:"amount"`
	AmountPaise int64           `json:"amount_paise"`
	Currency    string          `json:"currency"`
}

// OrderService brokers gateway orders for ledger entries. The gateway
// adapter is injected at construction; a nil gateway means online
// payments are disabled and order creation fails cleanly.
type OrderService struct {
	invoiceRepo billing.InvoiceRepository
	periodRepo  billing.RentPeriodRepository
	attemptRepo billing.PaymentAttemptRepository
	ledger      *LedgerService
	gateway     billing.PaymentGateway
	policy      billing.ChargePolicy
	logger      *zap.Logger
}

// OrderServiceConfig holds configuration for the order service
type OrderServiceConfig struct {
	InvoiceRepo billing.InvoiceRepository
	PeriodRepo  billing.RentPeriodRepository
	AttemptRepo billing.PaymentAttemptRepository
	Ledger      *LedgerService
	Gateway     billing.PaymentGateway
	Policy      billing.ChargePolicy
	Logger      *zap.Logger
}

// NewOrderService creates a new OrderService
func NewOrderService(config OrderServiceConfig) *OrderService {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := config.Policy
	if policy.PerDiemLateFee.IsZero() && policy.GraceLastDay == 0 {
		policy = billing.DefaultChargePolicy()
	}

	return &OrderService{
		invoiceRepo: config.InvoiceRepo,
		periodRepo:  config.PeriodRepo,
		attemptRepo: config.AttemptRepo,
		ledger:      config.Ledger,
		gateway:     config.Gateway,
		policy:      policy,
		logger:      logger,
	}
}

// CreateOrder opens a gateway order to settle a ledger entry and binds
// a PENDING attempt to it. The outstanding balance is recomputed first;
// for rent periods the late fee is brought up to date and frozen so the
// payer is charged exactly what was quoted. requestedAmount, when
// non-nil, allows a partial payment capped at the outstanding balance.
func (s *OrderService) CreateOrder(
	ctx context.Context,
	tenantID uuid.UUID,
	ref billing.LedgerRef,
	payerID uuid.UUID,
	requestedAmount *valueobject.Money,
) (*OrderResponse, error) {
	if s.gateway == nil {
		return nil, billing.ErrGatewayNotConfigured
	}

	var unitID, propertyID uuid.UUID
	switch ref.Kind {
	case billing.LedgerKindRentPeriod:
		period, err := s.refreshLateFee(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		unitID = period.UnitID
		propertyID = period.PropertyID
	case billing.LedgerKindInvoice:
		inv, err := s.invoiceRepo.FindByID(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("find invoice: %w", err)
		}
		unitID = inv.UnitID
		propertyID = inv.PropertyID
	}

	snapshot, err := s.ledger.Snapshot(ctx, ref)
	if err != nil {
		return nil, err
	}
	outstanding := valueobject.NewMoneyINR(snapshot.Outstanding)
	if !outstanding.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrAlreadySettled, ref.ID)
	}

	charge := outstanding
	if requestedAmount != nil {
		if !requestedAmount.IsPositive() {
			return nil, ErrInvalidAmount
		}
		over, cmpErr := requestedAmount.GreaterThan(outstanding)
		if cmpErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, cmpErr)
		}
		if !over {
			charge = *requestedAmount
		}
	}

	order, err := s.gateway.CreateOrder(ctx, billing.CreateOrderRequest{
		AmountPaise: charge.Paise(),
		Currency:    string(charge.Currency()),
		Receipt:     orderReceipt(ref),
		Notes: map[string]string{
			"ledger_kind":     string(ref.Kind),
			"ledger_entry_id": ref.ID.String(),
			"payer_id":        payerID.String(),
			"unit_id":         unitID.String(),
			"property_id":     propertyID.String(),
		},
	})
	if err != nil {
		// No attempt row exists yet, so a gateway failure leaves no
		// trace to clean up.
		return nil, fmt.Errorf("create gateway order: %w", err)
	}

	attempt, err := billing.NewGatewayAttempt(tenantID, ref, payerID, charge, order.OrderID)
	if err != nil {
		return nil, err
	}
	if err := s.attemptRepo.Save(ctx, attempt); err != nil {
		return nil, fmt.Errorf("save attempt: %w", err)
	}

	s.logger.Info("gateway order created",
		zap.String("gateway_order_id", order.OrderID),
		zap.String("ledger_kind", string(ref.Kind)),
		zap.String("ledger_entry_id", ref.ID.String()),
		zap.String("amount", charge.String()))

	return &OrderResponse{
		OrderID:     order.OrderID,
		AttemptID:   attempt.ID,
		Amount:      charge.Amount(),
		AmountPaise: charge.Paise(),
		Currency:    string(charge.Currency()),
	}, nil
}

// refreshLateFee recomputes the period's late fee as of now and
// persists it before the charge amount is fixed. The loaded period is
// returned so the caller does not fetch it twice.
func (s *OrderService) refreshLateFee(ctx context.Context, periodID uuid.UUID) (*billing.RentPeriod, error) {
	period, err := s.periodRepo.FindByID(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("find rent period: %w", err)
	}
	if period.Status == billing.PeriodStatusPaid {
		return period, nil
	}

	now := time.Now()
	fee := billing.LateFee(now, period.PeriodYear, time.Month(period.PeriodMonth), s.policy.GraceLastDay, s.policy.PerDiemLateFee)
	if fee.Amount().Equal(period.LateFeeAmount) {
		return period, nil
	}

	if err := period.SetLateFee(fee, now); err != nil {
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) && domainErr.Code == "INVALID_STATE" {
			return period, nil
		}
		return nil, err
	}
	if err := s.periodRepo.SaveWithLock(ctx, period); err != nil {
		return nil, fmt.Errorf("save late fee: %w", err)
	}
	return period, nil
}

func orderReceipt(ref billing.LedgerRef) string {
	return strings.ToLower(string(ref.Kind)) + "-" + ref.ID.String()
}
