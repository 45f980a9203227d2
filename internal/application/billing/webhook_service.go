package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rentledger/backend/internal/domain/billing"
	"github.com/rentledger/backend/internal/domain/shared"
)

// Webhook event names delivered by the gateway
const (
	webhookEventPaymentCaptured = "payment.captured"
	webhookEventPaymentFailed   = "payment.failed"
	webhookEventOrderPaid       = "order.paid"
)

var (
	// ErrWebhookInvalidPayload is returned when the webhook body is not parseable
	ErrWebhookInvalidPayload = errors.New("webhook: invalid payload")
)

// webhookEnvelope mirrors the gateway's webhook wire format
type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID         string `json:"id"`
				OrderID    string `json:"order_id"`
				Status     string `json:"status"`
				CapturedAt int64  `json:"captured_at"`
				ErrorDesc  string `json:"error_description"`
			} `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity struct {
				ID         string `json:"id"`
				Status     string `json:"status"`
				Amount     int64  `json:"amount"`
				AmountPaid int64  `json:"amount_paid"`
			} `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

// WebhookResult reports how a webhook delivery was handled
type WebhookResult struct {
	Event     string                   `json:"event"`
	Handled   bool                     `json:"handled"`
	Duplicate bool                     `json:"duplicate"`
	Result    *billing.ReconcileResult `json:"result,omitempty"`
}

// WebhookService ingests gateway webhook deliveries. Signature
// verification happens before anything else touches the body; only
// then is the payload parsed, deduplicated and routed into the
// reconciliation engine.
type WebhookService struct {
	gateway          billing.PaymentGateway
	reconciliation   *ReconciliationService
	idempotencyStore shared.IdempotencyStore
	idempotencyTTL   time.Duration
	logger           *zap.Logger
}

// WebhookServiceConfig holds configuration for the webhook service
type WebhookServiceConfig struct {
	Gateway          billing.PaymentGateway
	Reconciliation   *ReconciliationService
	IdempotencyStore shared.IdempotencyStore
	IdempotencyTTL   time.Duration
	Logger           *zap.Logger
}

// NewWebhookService creates a new WebhookService
func NewWebhookService(config WebhookServiceConfig) *WebhookService {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := config.IdempotencyTTL
	if ttl <= 0 {
		ttl = shared.DefaultIdempotencyConfig().TTL
	}

	return &WebhookService{
		gateway:          config.Gateway,
		reconciliation:   config.Reconciliation,
		idempotencyStore: config.IdempotencyStore,
		idempotencyTTL:   ttl,
		logger:           logger,
	}
}

// HandleWebhook verifies and processes one webhook delivery. eventID is
// the gateway's delivery identifier used for duplicate suppression; an
// empty eventID skips the dedup check and relies on the terminal-state
// guard in reconciliation instead.
func (s *WebhookService) HandleWebhook(ctx context.Context, rawBody []byte, signature, eventID string) (*WebhookResult, error) {
	if s.gateway == nil {
		return nil, billing.ErrGatewayNotConfigured
	}

	// Authenticity first: nothing is parsed, looked up or mutated on a
	// bad signature.
	if err := s.gateway.VerifyWebhookSignature(rawBody, signature); err != nil {
		return nil, err
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebhookInvalidPayload, err)
	}

	var outcome billing.ReconcileOutcome
	switch envelope.Event {
	case webhookEventPaymentCaptured, webhookEventOrderPaid:
		outcome = billing.ReconcileOutcomeApproved
	case webhookEventPaymentFailed:
		outcome = billing.ReconcileOutcomeFailed
	default:
		// Unknown events are acknowledged so the gateway stops retrying.
		s.logger.Debug("ignoring webhook event", zap.String("event", envelope.Event))
		return &WebhookResult{Event: envelope.Event}, nil
	}

	orderID := envelope.Payload.Payment.Entity.OrderID
	if orderID == "" {
		orderID = envelope.Payload.Order.Entity.ID
	}
	if orderID == "" {
		s.logger.Warn("webhook carried no order reference", zap.String("event", envelope.Event))
		return &WebhookResult{Event: envelope.Event}, nil
	}

	if eventID != "" && s.idempotencyStore != nil {
		fresh, err := s.idempotencyStore.MarkProcessed(ctx, eventID, s.idempotencyTTL)
		if err != nil {
			// Dedup store trouble must not drop deliveries; the
			// reconcile guard still makes replays harmless.
			s.logger.Warn("idempotency store unavailable, continuing", zap.Error(err))
		} else if !fresh {
			s.logger.Debug("duplicate webhook suppressed",
				zap.String("event_id", eventID),
				zap.String("event", envelope.Event))
			return &WebhookResult{Event: envelope.Event, Duplicate: true}, nil
		}
	}

	evidence := billing.SettlementEvidence{
		GatewayPaymentID: envelope.Payload.Payment.Entity.ID,
		FailureReason:    envelope.Payload.Payment.Entity.ErrorDesc,
	}
	if capturedAt := envelope.Payload.Payment.Entity.CapturedAt; capturedAt > 0 {
		evidence.PaidAt = time.Unix(capturedAt, 0)
	}

	result, err := s.reconciliation.Reconcile(ctx, orderID, outcome, evidence)
	if err != nil {
		if errors.Is(err, ErrAttemptNotFound) {
			// Orders created outside this system arrive here; a
			// verified webhook for an unknown order is acknowledged so
			// the gateway stops retrying a delivery we can never use.
			s.logger.Info("webhook for unknown order acknowledged",
				zap.String("gateway_order_id", orderID),
				zap.String("event", envelope.Event))
			return &WebhookResult{Event: envelope.Event}, nil
		}
		return nil, err
	}

	return &WebhookResult{Event: envelope.Event, Handled: true, Result: result}, nil
}
