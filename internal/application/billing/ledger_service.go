package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rentledger/backend/internal/domain/billing"
	"github.com/rentledger/backend/internal/domain/shared"
	"github.com/rentledger/backend/internal/domain/shared/valueobject"
)

// LedgerSnapshot is the converged view of a ledger entry after a
// recalculation pass.
type LedgerSnapshot struct {
	Ref         billing.LedgerRef
	Status      string
	TotalAmount decimal.Decimal
	TotalPaid   decimal.Decimal
	Outstanding decimal.Decimal
	DueDate     time.Time
	// Changed reports whether the recalculation wrote a new status.
	// Snapshot always leaves it false.
	Changed bool
}

// LedgerService recalculates derived ledger state. Recalc is the only
// place invoice and period statuses are written: it sums approved
// attempts and folds the result back onto the entry. Running it twice,
// or from two verification channels at once, converges on the same
// state because the inputs are the same.
type LedgerService struct {
	invoiceRepo    billing.InvoiceRepository
	periodRepo     billing.RentPeriodRepository
	attemptRepo    billing.PaymentAttemptRepository
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// LedgerServiceConfig holds configuration for the ledger service
type LedgerServiceConfig struct {
	InvoiceRepo    billing.InvoiceRepository
	PeriodRepo     billing.RentPeriodRepository
	AttemptRepo    billing.PaymentAttemptRepository
	EventPublisher shared.EventPublisher
	Logger         *zap.Logger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(config LedgerServiceConfig) *LedgerService {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &LedgerService{
		invoiceRepo:    config.InvoiceRepo,
		periodRepo:     config.PeriodRepo,
		attemptRepo:    config.AttemptRepo,
		eventPublisher: config.EventPublisher,
		logger:         logger,
	}
}

// TotalPaid sums the approved attempt amounts against a ledger entry
func (s *LedgerService) TotalPaid(ctx context.Context, ref billing.LedgerRef) (valueobject.Money, error) {
	sum, err := s.attemptRepo.SumApprovedByLedgerEntry(ctx, ref)
	if err != nil {
		return valueobject.ZeroINR(), fmt.Errorf("sum approved attempts: %w", err)
	}
	return valueobject.NewMoneyINR(sum), nil
}

// Recalc recomputes a ledger entry's paid total and derived status and
// persists the status when it changed. Idempotent and lock free.
func (s *LedgerService) Recalc(ctx context.Context, ref billing.LedgerRef) (*LedgerSnapshot, error) {
	totalPaid, err := s.TotalPaid(ctx, ref)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	switch ref.Kind {
	case billing.LedgerKindInvoice:
		return s.recalcInvoice(ctx, ref, totalPaid, now)
	case billing.LedgerKindRentPeriod:
		return s.recalcPeriod(ctx, ref, totalPaid, now)
	default:
		return nil, shared.NewDomainError("INVALID_LEDGER_REF", "Unknown ledger entry kind")
	}
}

func (s *LedgerService) recalcInvoice(ctx context.Context, ref billing.LedgerRef, totalPaid valueobject.Money, now time.Time) (*LedgerSnapshot, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("find invoice: %w", err)
	}

	changed := inv.ApplyDerivedStatus(totalPaid, now)
	if changed {
		if err := s.invoiceRepo.SaveWithLock(ctx, inv); err != nil {
			return nil, fmt.Errorf("save invoice: %w", err)
		}
		s.publishEvents(ctx, inv.GetDomainEvents())
		inv.ClearDomainEvents()
	}

	return &LedgerSnapshot{
		Ref:         ref,
		Status:      inv.Status.String(),
		TotalAmount: inv.Amount,
		TotalPaid:   totalPaid.Amount(),
		Outstanding: inv.Outstanding(totalPaid).Amount(),
		DueDate:     inv.DueDate,
		Changed:     changed,
	}, nil
}

func (s *LedgerService) recalcPeriod(ctx context.Context, ref billing.LedgerRef, totalPaid valueobject.Money, now time.Time) (*LedgerSnapshot, error) {
	period, err := s.periodRepo.FindByID(ctx, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("find rent period: %w", err)
	}

	changed := period.ApplyDerivedStatus(totalPaid, now)
	if changed {
		if err := s.periodRepo.SaveWithLock(ctx, period); err != nil {
			return nil, fmt.Errorf("save rent period: %w", err)
		}
		s.publishEvents(ctx, period.GetDomainEvents())
		period.ClearDomainEvents()
	}

	return &LedgerSnapshot{
		Ref:         ref,
		Status:      period.Status.String(),
		TotalAmount: period.TotalAmount().Amount(),
		TotalPaid:   totalPaid.Amount(),
		Outstanding: period.Outstanding(totalPaid).Amount(),
		DueDate:     period.DueDate,
		Changed:     changed,
	}, nil
}

// Snapshot returns the current view of a ledger entry without writing
// anything back.
func (s *LedgerService) Snapshot(ctx context.Context, ref billing.LedgerRef) (*LedgerSnapshot, error) {
	totalPaid, err := s.TotalPaid(ctx, ref)
	if err != nil {
		return nil, err
	}

	switch ref.Kind {
	case billing.LedgerKindInvoice:
		inv, err := s.invoiceRepo.FindByID(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("find invoice: %w", err)
		}
		return &LedgerSnapshot{
			Ref:         ref,
			Status:      inv.Status.String(),
			TotalAmount: inv.Amount,
			TotalPaid:   totalPaid.Amount(),
			Outstanding: inv.Outstanding(totalPaid).Amount(),
			DueDate:     inv.DueDate,
		}, nil
	case billing.LedgerKindRentPeriod:
		period, err := s.periodRepo.FindByID(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("find rent period: %w", err)
		}
		return &LedgerSnapshot{
			Ref:         ref,
			Status:      period.Status.String(),
			TotalAmount: period.TotalAmount().Amount(),
			TotalPaid:   totalPaid.Amount(),
			Outstanding: period.Outstanding(totalPaid).Amount(),
			DueDate:     period.DueDate,
		}, nil
	default:
		return nil, shared.NewDomainError("INVALID_LEDGER_REF", "Unknown ledger entry kind")
	}
}

// publishEvents pushes domain events to the bus; delivery problems are
// logged and swallowed because ledger state is already persisted.
func (s *LedgerService) publishEvents(ctx context.Context, events []shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish ledger events",
			zap.Int("count", len(events)),
			zap.Error(err))
	}
}
