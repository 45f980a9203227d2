package billing

import (
	"context"

	"github.com/google/uuid"
)

// ReceiptRenderer renders a settlement receipt document for a settled
// attempt. Implementations live outside this service; rendering is a
// fire-and-forget side effect and must never influence ledger state.
type ReceiptRenderer interface {
	RenderReceipt(ctx context.Context, tenantID uuid.UUID, attempt *PaymentAttempt) error
}

// PaymentNotifier informs the payer (and staff) that a payment settled
// or failed. Delivery failures are logged, never propagated.
type PaymentNotifier interface {
	NotifySettled(ctx context.Context, tenantID uuid.UUID, attempt *PaymentAttempt) error
	NotifyFailed(ctx context.Context, tenantID uuid.UUID, attempt *PaymentAttempt) error
}
