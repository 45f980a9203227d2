package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rentledger/backend/internal/domain/billing"
	"github.com/rentledger/backend/internal/domain/shared"
	"github.com/rentledger/backend/internal/infrastructure/persistence/models"
)

// GormRentPeriodRepository implements RentPeriodRepository using GORM
type GormRentPeriodRepository struct {
	db *gorm.DB
}

// NewGormRentPeriodRepository creates a new GormRentPeriodRepository
func NewGormRentPeriodRepository(db *gorm.DB) *GormRentPeriodRepository {
	return &GormRentPeriodRepository{db: db}
}

// FindByID finds a rent period by its ID
func (r *GormRentPeriodRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.RentPeriod, error) {
	var model models.RentPeriodModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForTenant finds a rent period by ID for a specific tenant
func (r *GormRentPeriodRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*billing.RentPeriod, error) {
	var model models.RentPeriodModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByResidentPeriod finds the period for a resident and billing month, if any
func (r *GormRentPeriodRepository) FindByResidentPeriod(ctx context.Context, tenantID, residentID uuid.UUID, periodMonth, periodYear int) (*billing.RentPeriod, error) {
	var model models.RentPeriodModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND resident_id = ? AND period_month = ? AND period_year = ?",
			tenantID, residentID, periodMonth, periodYear).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForTenant finds all rent periods for a tenant with filtering
func (r *GormRentPeriodRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter billing.RentPeriodFilter) ([]billing.RentPeriod, error) {
	var periodModels []models.RentPeriodModel
	query := r.db.WithContext(ctx).Model(&models.RentPeriodModel{}).
		Where("tenant_id = ?", tenantID)
	query = r.applyPeriodFilter(query, filter)

	if err := query.Find(&periodModels).Error; err != nil {
		return nil, err
	}
	periods := make([]billing.RentPeriod, len(periodModels))
	for i, model := range periodModels {
		periods[i] = *model.ToDomain()
	}
	return periods, nil
}

// CountForTenant counts rent periods matching the filter
func (r *GormRentPeriodRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter billing.RentPeriodFilter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.RentPeriodModel{}).
		Where("tenant_id = ?", tenantID)
	query = r.applyPeriodFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates a rent period
func (r *GormRentPeriodRepository) Save(ctx context.Context, period *billing.RentPeriod) error {
	model := models.RentPeriodModelFromDomain(period)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves with optimistic locking
func (r *GormRentPeriodRepository) SaveWithLock(ctx context.Context, period *billing.RentPeriod) error {
	model := models.RentPeriodModelFromDomain(period)
	result := r.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", period.ID, period.Version-1).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR", "The record has been modified by another transaction")
	}
	return nil
}

// applyPeriodFilter applies filter options to the query
func (r *GormRentPeriodRepository) applyPeriodFilter(query *gorm.DB, filter billing.RentPeriodFilter) *gorm.DB {
	query = r.applyPeriodFilterWithoutPagination(query, filter)

	// Apply pagination
	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	// Apply sorting with whitelist validation to prevent SQL injection
	if filter.OrderBy == "" {
		query = query.Order("period_year DESC, period_month DESC")
	} else {
		sortField := ValidateSortField(filter.OrderBy, RentPeriodSortFields, "due_date")
		sortOrder := ValidateSortOrder(filter.OrderDir)
		query = query.Order(fmt.Sprintf("%s %s", sortField, sortOrder))
	}

	return query
}

// applyPeriodFilterWithoutPagination applies filter options without pagination
func (r *GormRentPeriodRepository) applyPeriodFilterWithoutPagination(query *gorm.DB, filter billing.RentPeriodFilter) *gorm.DB {
	if filter.ResidentID != nil {
		query = query.Where("resident_id = ?", *filter.ResidentID)
	}
	if filter.PropertyID != nil {
		query = query.Where("property_id = ?", *filter.PropertyID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.PeriodMonth != nil {
		query = query.Where("period_month = ?", *filter.PeriodMonth)
	}
	if filter.PeriodYear != nil {
		query = query.Where("period_year = ?", *filter.PeriodYear)
	}
	if filter.FirstOnly != nil && *filter.FirstOnly {
		query = query.Where("is_first_period = ?", true)
	}

	return query
}

// Ensure GormRentPeriodRepository implements RentPeriodRepository
var _ billing.RentPeriodRepository = (*GormRentPeriodRepository)(nil)
