package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/rentledger/backend/internal/domain/billing"
	"github.com/rentledger/backend/internal/domain/shared"
	"github.com/rentledger/backend/internal/infrastructure/persistence/models"
)

// GormPaymentAttemptRepository implements PaymentAttemptRepository using GORM
type GormPaymentAttemptRepository struct {
	db *gorm.DB
}

// NewGormPaymentAttemptRepository creates a new GormPaymentAttemptRepository
func NewGormPaymentAttemptRepository(db *gorm.DB) *GormPaymentAttemptRepository {
	return &GormPaymentAttemptRepository{db: db}
}

// FindByID finds a payment attempt by its ID
func (r *GormPaymentAttemptRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.PaymentAttempt, error) {
	var model models.PaymentAttemptModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByGatewayOrderID finds the attempt bound to a gateway order
func (r *GormPaymentAttemptRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*billing.PaymentAttempt, error) {
	var model models.PaymentAttemptModel
	if err := r.db.WithContext(ctx).
		Where("gateway_order_id = ?", gatewayOrderID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByLedgerEntry finds all attempts against a ledger entry
func (r *GormPaymentAttemptRepository) FindByLedgerEntry(ctx context.Context, ref billing.LedgerRef) ([]billing.PaymentAttempt, error) {
	var attemptModels []models.PaymentAttemptModel
	if err := r.db.WithContext(ctx).
		Where("ledger_kind = ? AND ledger_entry_id = ?", ref.Kind, ref.ID).
		Order("created_at ASC").
		Find(&attemptModels).Error; err != nil {
		return nil, err
	}
	attempts := make([]billing.PaymentAttempt, len(attemptModels))
	for i, model := range attemptModels {
		attempts[i] = *model.ToDomain()
	}
	return attempts, nil
}

// FindAllForTenant finds all attempts for a tenant with filtering
func (r *GormPaymentAttemptRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter billing.AttemptFilter) ([]billing.PaymentAttempt, error) {
	var attemptModels []models.PaymentAttemptModel
	query := r.db.WithContext(ctx).Model(&models.PaymentAttemptModel{}).
		Where("tenant_id = ?", tenantID)
	query = r.applyAttemptFilter(query, filter)

	if err := query.Find(&attemptModels).Error; err != nil {
		return nil, err
	}
	attempts := make([]billing.PaymentAttempt, len(attemptModels))
	for i, model := range attemptModels {
		attempts[i] = *model.ToDomain()
	}
	return attempts, nil
}

// SumApprovedByLedgerEntry sums the amounts of APPROVED attempts against a ledger entry
func (r *GormPaymentAttemptRepository) SumApprovedByLedgerEntry(ctx context.Context, ref billing.LedgerRef) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&models.PaymentAttemptModel{}).
		Select("COALESCE(SUM(amount), 0) as total").
		Where("ledger_kind = ? AND ledger_entry_id = ? AND state = ?",
			ref.Kind, ref.ID, billing.AttemptStateApproved).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// Save creates or updates a payment attempt
func (r *GormPaymentAttemptRepository) Save(ctx context.Context, attempt *billing.PaymentAttempt) error {
	model := models.PaymentAttemptModelFromDomain(attempt)
	return r.db.WithContext(ctx).Save(model).Error
}

// TransitionIfPending atomically moves the attempt out of PENDING. The
// update is conditional on the stored row still being PENDING, so of
// two concurrent verifiers exactly one sees RowsAffected > 0. The
// in-memory attempt has already transitioned; only the outcome columns
// are written.
func (r *GormPaymentAttemptRepository) TransitionIfPending(ctx context.Context, attempt *billing.PaymentAttempt) (bool, error) {
	if !attempt.State.IsTerminal() {
		return false, shared.NewDomainError("INVALID_STATE", "Attempt must be in a terminal state to transition")
	}

	result := r.db.WithContext(ctx).
		Model(&models.PaymentAttemptModel{}).
		Where("id = ? AND state = ?", attempt.ID, billing.AttemptStatePending).
		Updates(map[string]interface{}{
			"state":              attempt.State,
			"gateway_payment_id": attempt.GatewayPaymentID,
			"gateway_signature":  attempt.GatewaySignature,
			"failure_reason":     attempt.FailureReason,
			"paid_at":            attempt.PaidAt,
			"updated_at":         attempt.UpdatedAt,
			"version":            attempt.Version,
		})

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// applyAttemptFilter applies filter options to the query
func (r *GormPaymentAttemptRepository) applyAttemptFilter(query *gorm.DB, filter billing.AttemptFilter) *gorm.DB {
	if filter.PayerID != nil {
		query = query.Where("payer_id = ?", *filter.PayerID)
	}
	if filter.State != nil {
		query = query.Where("state = ?", *filter.State)
	}
	if filter.Source != nil {
		query = query.Where("source = ?", *filter.Source)
	}

	// Apply pagination
	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	// Apply sorting with whitelist validation to prevent SQL injection
	sortField := ValidateSortField(filter.OrderBy, PaymentAttemptSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	query = query.Order(fmt.Sprintf("%s %s", sortField, sortOrder))

	return query
}

// Ensure GormPaymentAttemptRepository implements PaymentAttemptRepository
var _ billing.PaymentAttemptRepository = (*GormPaymentAttemptRepository)(nil)
