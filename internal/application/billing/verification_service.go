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
)

// PollResult reports a manual verification poll. Verified is false
// when the gateway does not (yet) consider the order paid; the caller
// simply polls again later.
type PollResult struct {
	Verified bool                     `json:"verified"`
	Result   *billing.ReconcileResult `json:"result,omitempty"`
}

// VerificationService covers the client-initiated verification paths:
// the checkout proof a payer's browser brings back, and the manual
// poll that asks the gateway directly. Both feed the reconciliation
// engine; neither trusts the client beyond the verified signature.
type VerificationService struct {
	gateway        billing.PaymentGateway
	reconciliation *ReconciliationService
	attemptRepo    billing.PaymentAttemptRepository
	logger         *zap.Logger
}

// VerificationServiceConfig holds configuration for the verification service
type VerificationServiceConfig struct {
	Gateway        billing.PaymentGateway
	Reconciliation *ReconciliationService
	AttemptRepo    billing.PaymentAttemptRepository
	Logger         *zap.Logger
}

// NewVerificationService creates a new VerificationService
func NewVerificationService(config VerificationServiceConfig) *VerificationService {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &VerificationService{
		gateway:        config.Gateway,
		reconciliation: config.Reconciliation,
		attemptRepo:    config.AttemptRepo,
		logger:         logger,
	}
}

// VerifyCheckoutProof validates a client-submitted checkout proof and,
// when genuine, settles the attempt. A forged or stale signature is
// rejected before anything is mutated.
func (s *VerificationService) VerifyCheckoutProof(ctx context.Context, payerID uuid.UUID, proof billing.CheckoutProof) (*billing.ReconcileResult, error) {
	if s.gateway == nil {
		return nil, billing.ErrGatewayNotConfigured
	}
	if proof.OrderID == "" || proof.PaymentID == "" || proof.Signature == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Order ID, payment ID and signature are required")
	}

	if err := s.gateway.VerifyCheckoutSignature(proof.OrderID, proof.PaymentID, proof.Signature); err != nil {
		s.logger.Warn("checkout proof rejected",
			zap.String("gateway_order_id", proof.OrderID),
			zap.Error(err))
		return nil, err
	}

	attempt, err := s.attemptRepo.FindByGatewayOrderID(ctx, proof.OrderID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAttemptNotFound, proof.OrderID)
		}
		return nil, fmt.Errorf("find attempt: %w", err)
	}
	if payerID != uuid.Nil && attempt.PayerID != payerID {
		return nil, shared.ErrForbidden
	}

	return s.reconciliation.Reconcile(ctx, proof.OrderID, billing.ReconcileOutcomeApproved, billing.SettlementEvidence{
		GatewayPaymentID: proof.PaymentID,
		GatewaySignature: proof.Signature,
		PaidAt:           time.Now(),
	})
}

// PollOrder asks the gateway for the current state of an order and
// settles the attempt when the gateway reports it paid: the order-level
// paid amount covering the order, an order status of paid, or any
// captured payment all count. An order the gateway does not yet show as
// paid, or a transient gateway failure, yields an unverified result and
// no state change; failure is never inferred from a poll.
func (s *VerificationService) PollOrder(ctx context.Context, payerID uuid.UUID, gatewayOrderID string) (*PollResult, error) {
	if s.gateway == nil {
		return nil, billing.ErrGatewayNotConfigured
	}
	if gatewayOrderID == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Gateway order ID is required")
	}

	attempt, err := s.attemptRepo.FindByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAttemptNotFound, gatewayOrderID)
		}
		return nil, fmt.Errorf("find attempt: %w", err)
	}
	if payerID != uuid.Nil && attempt.PayerID != payerID {
		return nil, shared.ErrForbidden
	}

	// Already settled: report the converged state without a network call.
	if attempt.State.IsTerminal() {
		result, err := s.reconciliation.Reconcile(ctx, gatewayOrderID, billing.ReconcileOutcomeApproved, billing.SettlementEvidence{})
		if err != nil {
			return nil, err
		}
		return &PollResult{Verified: attempt.State == billing.AttemptStateApproved, Result: result}, nil
	}

	order, err := s.gateway.FetchOrder(ctx, gatewayOrderID)
	if err != nil {
		s.logger.Info("order poll inconclusive",
			zap.String("gateway_order_id", gatewayOrderID),
			zap.Error(err))
		return &PollResult{Verified: false}, nil
	}

	evidence := billing.SettlementEvidence{}
	paid := order.IsPaid()

	payments, err := s.gateway.FetchOrderPayments(ctx, gatewayOrderID)
	if err != nil {
		s.logger.Debug("payment listing unavailable during poll",
			zap.String("gateway_order_id", gatewayOrderID),
			zap.Error(err))
	} else {
		for i := range payments {
			if payments[i].Status.IsCaptured() {
				paid = true
				evidence.GatewayPaymentID = payments[i].PaymentID
				if payments[i].CapturedAt != nil {
					evidence.PaidAt = *payments[i].CapturedAt
				}
				break
			}
		}
	}

	if !paid {
		return &PollResult{Verified: false}, nil
	}

	result, err := s.reconciliation.Reconcile(ctx, gatewayOrderID, billing.ReconcileOutcomeApproved, evidence)
	if err != nil {
		return nil, err
	}
	return &PollResult{Verified: true, Result: result}, nil
}
