package billing

import (
	"context"

	"go.uber.org/zap"

	"github.com/rentledger/backend/internal/domain/billing"
	"github.com/rentledger/backend/internal/domain/shared"
)

// SettlementEffectsHandler reacts to attempt settlement events with
// receipt rendering and payer notification. Both are fire-and-forget:
// errors are logged and never surface into the reconciliation path that
// published the event.
type SettlementEffectsHandler struct {
	attemptRepo billing.PaymentAttemptRepository
	receipts    billing.ReceiptRenderer
	notifier    billing.PaymentNotifier
	logger      *zap.Logger
}

var _ shared.EventHandler = (*SettlementEffectsHandler)(nil)

// SettlementEffectsConfig holds configuration for the settlement effects handler
type SettlementEffectsConfig struct {
	AttemptRepo billing.PaymentAttemptRepository
	Receipts    billing.ReceiptRenderer
	Notifier    billing.PaymentNotifier
	Logger      *zap.Logger
}

// NewSettlementEffectsHandler creates a new SettlementEffectsHandler
func NewSettlementEffectsHandler(config SettlementEffectsConfig) *SettlementEffectsHandler {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SettlementEffectsHandler{
		attemptRepo: config.AttemptRepo,
		receipts:    config.Receipts,
		notifier:    config.Notifier,
		logger:      logger,
	}
}

// EventTypes returns the event types this handler subscribes to
func (h *SettlementEffectsHandler) EventTypes() []string {
	return []string{
		billing.EventTypePaymentAttemptSettled,
		billing.EventTypePaymentAttemptFailed,
	}
}

// Handle dispatches a settlement event to the side-effect collaborators
func (h *SettlementEffectsHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *billing.PaymentAttemptSettledEvent:
		h.onSettled(ctx, e)
	case *billing.PaymentAttemptFailedEvent:
		h.onFailed(ctx, e)
	}
	return nil
}

func (h *SettlementEffectsHandler) onSettled(ctx context.Context, event *billing.PaymentAttemptSettledEvent) {
	attempt, err := h.attemptRepo.FindByID(ctx, event.AttemptID)
	if err != nil {
		h.logger.Warn("settled attempt not found for side effects",
			zap.String("attempt_id", event.AttemptID.String()),
			zap.Error(err))
		return
	}

	if h.receipts != nil {
		if err := h.receipts.RenderReceipt(ctx, attempt.TenantID, attempt); err != nil {
			h.logger.Warn("receipt rendering failed",
				zap.String("attempt_id", attempt.ID.String()),
				zap.Error(err))
		}
	}

	if h.notifier != nil {
		if err := h.notifier.NotifySettled(ctx, attempt.TenantID, attempt); err != nil {
			h.logger.Warn("settlement notification failed",
				zap.String("attempt_id", attempt.ID.String()),
				zap.Error(err))
		}
	}
}

func (h *SettlementEffectsHandler) onFailed(ctx context.Context, event *billing.PaymentAttemptFailedEvent) {
	if h.notifier == nil {
		return
	}

	attempt, err := h.attemptRepo.FindByID(ctx, event.AttemptID)
	if err != nil {
		h.logger.Warn("failed attempt not found for side effects",
			zap.String("attempt_id", event.AttemptID.String()),
			zap.Error(err))
		return
	}

	if err := h.notifier.NotifyFailed(ctx, attempt.TenantID, attempt); err != nil {
		h.logger.Warn("failure notification failed",
			zap.String("attempt_id", attempt.ID.String()),
			zap.Error(err))
	}
}
