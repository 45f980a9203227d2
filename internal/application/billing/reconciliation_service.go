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

var (
	// ErrAttemptNotFound is returned when no attempt matches the gateway order
	ErrAttemptNotFound = errors.New("reconcile: attempt not found for gateway order")
)

// ReconciliationService converges payment attempts and ledger entries
// onto the gateway's verdict. Every verification channel (webhook,
// client proof, manual poll, admin action) funnels into Reconcile, so
// duplicate and racing deliveries all land on the same final state.
type ReconciliationService struct {
	attemptRepo    billing.PaymentAttemptRepository
	periodRepo     billing.RentPeriodRepository
	ledger         *LedgerService
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// ReconciliationServiceConfig holds configuration for the reconciliation service
type ReconciliationServiceConfig struct {
	AttemptRepo    billing.PaymentAttemptRepository
	PeriodRepo     billing.RentPeriodRepository
	Ledger         *LedgerService
	EventPublisher shared.EventPublisher
	Logger         *zap.Logger
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(config ReconciliationServiceConfig) *ReconciliationService {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ReconciliationService{
		attemptRepo:    config.AttemptRepo,
		periodRepo:     config.PeriodRepo,
		ledger:         config.Ledger,
		eventPublisher: config.EventPublisher,
		logger:         logger,
	}
}

// Reconcile applies a settlement verdict to the attempt bound to the
// gateway order. Replays return the first delivery's result without
// side effects; concurrent deliveries are serialized by a conditional
// state transition at the store, so exactly one writer wins and the
// others read back the winner's state.
func (s *ReconciliationService) Reconcile(
	ctx context.Context,
	gatewayOrderID string,
	outcome billing.ReconcileOutcome,
	evidence billing.SettlementEvidence,
) (*billing.ReconcileResult, error) {
	attempt, err := s.attemptRepo.FindByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAttemptNotFound, gatewayOrderID)
		}
		return nil, fmt.Errorf("find attempt: %w", err)
	}

	// Terminal attempts are already reconciled; report the converged
	// state without touching anything.
	if attempt.State.IsTerminal() {
		s.logger.Debug("attempt already reconciled",
			zap.String("gateway_order_id", gatewayOrderID),
			zap.String("state", attempt.State.String()))
		return s.buildResult(ctx, attempt, true)
	}

	switch outcome {
	case billing.ReconcileOutcomeApproved:
		paidAt := evidence.PaidAt
		if paidAt.IsZero() {
			paidAt = time.Now()
		}
		if err := attempt.Approve(evidence.GatewayPaymentID, evidence.GatewaySignature, paidAt); err != nil {
			return nil, err
		}
	case billing.ReconcileOutcomeFailed:
		if err := attempt.Fail(evidence.FailureReason); err != nil {
			return nil, err
		}
	default:
		return nil, shared.NewDomainError("INVALID_OUTCOME", "Unknown reconcile outcome")
	}

	won, err := s.attemptRepo.TransitionIfPending(ctx, attempt)
	if err != nil {
		return nil, fmt.Errorf("transition attempt: %w", err)
	}
	if !won {
		// Another delivery got there first. Re-read and report its result.
		s.logger.Info("lost reconcile race, returning winner state",
			zap.String("gateway_order_id", gatewayOrderID))
		current, err := s.attemptRepo.FindByGatewayOrderID(ctx, gatewayOrderID)
		if err != nil {
			return nil, fmt.Errorf("reread attempt: %w", err)
		}
		return s.buildResult(ctx, current, true)
	}

	if outcome == billing.ReconcileOutcomeFailed {
		s.markPeriodFailedIfUnpaid(ctx, attempt)
	}

	snapshot, err := s.ledger.Recalc(ctx, attempt.LedgerRef())
	if err != nil {
		return nil, err
	}

	s.publishEvents(ctx, attempt.GetDomainEvents())
	attempt.ClearDomainEvents()

	s.logger.Info("attempt reconciled",
		zap.String("gateway_order_id", gatewayOrderID),
		zap.String("state", attempt.State.String()),
		zap.String("ledger_status", snapshot.Status))

	return &billing.ReconcileResult{
		AttemptID:         attempt.ID,
		AttemptState:      attempt.State,
		LedgerKind:        attempt.LedgerKind,
		LedgerEntryID:     attempt.LedgerEntryID,
		LedgerStatus:      snapshot.Status,
		TotalPaid:         snapshot.TotalPaid,
		Outstanding:       snapshot.Outstanding,
		AlreadyReconciled: false,
	}, nil
}

// RecordManualPayment records an offline payment collected by staff.
// The attempt is born APPROVED so the ledger recalculation picks it up
// immediately.
func (s *ReconciliationService) RecordManualPayment(
	ctx context.Context,
	tenantID uuid.UUID,
	ref billing.LedgerRef,
	payerID uuid.UUID,
	amount valueobject.Money,
	method billing.PaymentMethod,
	recordedBy uuid.UUID,
	paidAt time.Time,
) (*billing.ReconcileResult, error) {
	if paidAt.IsZero() {
		paidAt = time.Now()
	}

	attempt, err := billing.NewManualAttempt(tenantID, ref, payerID, amount, method, recordedBy, paidAt)
	if err != nil {
		return nil, err
	}

	if err := s.attemptRepo.Save(ctx, attempt); err != nil {
		return nil, fmt.Errorf("save manual attempt: %w", err)
	}

	snapshot, err := s.ledger.Recalc(ctx, ref)
	if err != nil {
		return nil, err
	}

	s.publishEvents(ctx, attempt.GetDomainEvents())
	attempt.ClearDomainEvents()

	s.logger.Info("manual payment recorded",
		zap.String("ledger_kind", string(ref.Kind)),
		zap.String("ledger_entry_id", ref.ID.String()),
		zap.String("amount", amount.String()),
		zap.String("recorded_by", recordedBy.String()))

	return &billing.ReconcileResult{
		AttemptID:         attempt.ID,
		AttemptState:      attempt.State,
		LedgerKind:        ref.Kind,
		LedgerEntryID:     ref.ID,
		LedgerStatus:      snapshot.Status,
		TotalPaid:         snapshot.TotalPaid,
		Outstanding:       snapshot.Outstanding,
		AlreadyReconciled: false,
	}, nil
}

// markPeriodFailedIfUnpaid flags a rent period FAILED when a gateway
// attempt fails and nothing has been collected yet. Best effort: a
// failure here never blocks the attempt transition that already
// happened. Returns true when the period status was written.
func (s *ReconciliationService) markPeriodFailedIfUnpaid(ctx context.Context, attempt *billing.PaymentAttempt) bool {
	if attempt.LedgerKind != billing.LedgerKindRentPeriod {
		return false
	}

	totalPaid, err := s.ledger.TotalPaid(ctx, attempt.LedgerRef())
	if err != nil || !totalPaid.IsZero() {
		return false
	}

	period, err := s.periodRepo.FindByID(ctx, attempt.LedgerEntryID)
	if err != nil {
		s.logger.Warn("failed to load period for failure marking", zap.Error(err))
		return false
	}
	if period.Status == billing.PeriodStatusFailed {
		return false
	}
	if err := period.MarkFailed(time.Now()); err != nil {
		return false
	}
	if err := s.periodRepo.SaveWithLock(ctx, period); err != nil {
		s.logger.Warn("failed to mark period failed", zap.Error(err))
		return false
	}
	return true
}

// buildResult reports the converged state of an already settled
// attempt. It recalculates rather than reads: when an earlier delivery
// transitioned the attempt but crashed before the ledger write, the
// stored status is stale, and the replay must finish the job. The
// settlement event is re-emitted only when the recalculation actually
// wrote something, so ordinary replays stay side-effect free.
func (s *ReconciliationService) buildResult(ctx context.Context, attempt *billing.PaymentAttempt, already bool) (*billing.ReconcileResult, error) {
	periodMarked := false
	if attempt.State == billing.AttemptStateFailed {
		periodMarked = s.markPeriodFailedIfUnpaid(ctx, attempt)
	}

	snapshot, err := s.ledger.Recalc(ctx, attempt.LedgerRef())
	if err != nil {
		return nil, err
	}

	if snapshot.Changed || periodMarked {
		switch attempt.State {
		case billing.AttemptStateApproved:
			s.publishEvents(ctx, []shared.DomainEvent{billing.NewPaymentAttemptSettledEvent(attempt)})
		case billing.AttemptStateFailed:
			s.publishEvents(ctx, []shared.DomainEvent{billing.NewPaymentAttemptFailedEvent(attempt)})
		}
	}

	return &billing.ReconcileResult{
		AttemptID:         attempt.ID,
		AttemptState:      attempt.State,
		LedgerKind:        attempt.LedgerKind,
		LedgerEntryID:     attempt.LedgerEntryID,
		LedgerStatus:      snapshot.Status,
		TotalPaid:         snapshot.TotalPaid,
		Outstanding:       snapshot.Outstanding,
		AlreadyReconciled: already,
	}, nil
}

func (s *ReconciliationService) publishEvents(ctx context.Context, events []shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish attempt events",
			zap.Int("count", len(events)),
			zap.Error(err))
	}
}
