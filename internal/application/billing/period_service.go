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

// OpenFirstPeriodInput describes a resident's move-in
type OpenFirstPeriodInput struct {
	ResidentID  uuid.UUID
	PropertyID  uuid.UUID
	UnitID      uuid.UUID
	MoveInDate  time.Time
	MonthlyRent valueobject.Money
	OneTime     billing.OneTimeCharges
}

// OpenPeriodInput describes a regular monthly period opening
type OpenPeriodInput struct {
	ResidentID  uuid.UUID
	PropertyID  uuid.UUID
	UnitID      uuid.UUID
	PeriodMonth int
	PeriodYear  int
	MonthlyRent valueobject.Money
}

// PeriodService opens and serves recurring rent periods
type PeriodService struct {
	periodRepo billing.RentPeriodRepository
	ledger     *LedgerService
	policy     billing.ChargePolicy
	logger     *zap.Logger
}

// PeriodServiceConfig holds configuration for the period service
type PeriodServiceConfig struct {
	PeriodRepo billing.RentPeriodRepository
	Ledger     *LedgerService
	Policy     billing.ChargePolicy
	Logger     *zap.Logger
}

// NewPeriodService creates a new PeriodService
func NewPeriodService(config PeriodServiceConfig) *PeriodService {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := config.Policy
	if policy.PerDiemLateFee.IsZero() && policy.GraceLastDay == 0 {
		policy = billing.DefaultChargePolicy()
	}

	return &PeriodService{
		periodRepo: config.PeriodRepo,
		ledger:     config.Ledger,
		policy:     policy,
		logger:     logger,
	}
}

// OpenFirstPeriod opens the resident's opening period from the move-in
// date: full month when they arrive by the 5th, prorated (and due on
// the move-in date) otherwise, plus any one-time move-in charges.
func (s *PeriodService) OpenFirstPeriod(ctx context.Context, tenantID uuid.UUID, input OpenFirstPeriodInput) (*billing.RentPeriod, error) {
	month, year := int(input.MoveInDate.Month()), input.MoveInDate.Year()

	if err := s.ensureNoPeriod(ctx, tenantID, input.ResidentID, month, year); err != nil {
		return nil, err
	}

	terms := billing.FirstPeriodTerms(input.MoveInDate, input.MonthlyRent, s.policy)
	period, err := billing.NewRentPeriod(tenantID, input.ResidentID, input.PropertyID, input.UnitID,
		month, year, terms, input.OneTime, true)
	if err != nil {
		return nil, err
	}

	if err := s.periodRepo.Save(ctx, period); err != nil {
		return nil, fmt.Errorf("save rent period: %w", err)
	}

	s.ledger.publishEvents(ctx, period.GetDomainEvents())
	period.ClearDomainEvents()

	s.logger.Info("first rent period opened",
		zap.String("resident_id", input.ResidentID.String()),
		zap.Int("month", month),
		zap.Int("year", year),
		zap.Bool("prorated", period.IsProrated),
		zap.String("base_amount", period.BaseAmount.String()))

	return period, nil
}

// OpenPeriod opens a regular period for an existing resident
func (s *PeriodService) OpenPeriod(ctx context.Context, tenantID uuid.UUID, input OpenPeriodInput) (*billing.RentPeriod, error) {
	if err := s.ensureNoPeriod(ctx, tenantID, input.ResidentID, input.PeriodMonth, input.PeriodYear); err != nil {
		return nil, err
	}

	terms := billing.StandardPeriodTerms(input.PeriodYear, time.Month(input.PeriodMonth), input.MonthlyRent, s.policy, time.UTC)
	period, err := billing.NewRentPeriod(tenantID, input.ResidentID, input.PropertyID, input.UnitID,
		input.PeriodMonth, input.PeriodYear, terms, billing.OneTimeCharges{}, false)
	if err != nil {
		return nil, err
	}

	if err := s.periodRepo.Save(ctx, period); err != nil {
		return nil, fmt.Errorf("save rent period: %w", err)
	}

	s.ledger.publishEvents(ctx, period.GetDomainEvents())
	period.ClearDomainEvents()

	return period, nil
}

// GetPeriod fetches a period with its status refreshed from the
// attempt ledger and its late fee evaluated as of now.
func (s *PeriodService) GetPeriod(ctx context.Context, tenantID, id uuid.UUID) (*billing.RentPeriod, *LedgerSnapshot, error) {
	period, err := s.periodRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, nil, err
	}

	snapshot, err := s.ledger.Recalc(ctx, billing.NewRentPeriodRef(period.ID))
	if err != nil {
		return nil, nil, err
	}
	period.Status = billing.PeriodStatus(snapshot.Status)

	return period, snapshot, nil
}

// ListPeriods returns rent periods for a tenant with pagination
func (s *PeriodService) ListPeriods(ctx context.Context, tenantID uuid.UUID, filter billing.RentPeriodFilter) (shared.Paginated[billing.RentPeriod], error) {
	periods, err := s.periodRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return shared.Paginated[billing.RentPeriod]{}, err
	}
	total, err := s.periodRepo.CountForTenant(ctx, tenantID, filter)
	if err != nil {
		return shared.Paginated[billing.RentPeriod]{}, err
	}

	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = shared.DefaultFilter().PageSize
	}
	return shared.NewPaginated(periods, total, page, pageSize), nil
}

// QuoteLateFee evaluates the late fee a period would carry if charged
// right now, without persisting anything.
func (s *PeriodService) QuoteLateFee(ctx context.Context, tenantID, id uuid.UUID, evalDate time.Time) (valueobject.Money, error) {
	period, err := s.periodRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return valueobject.ZeroINR(), err
	}
	return billing.LateFee(evalDate, period.PeriodYear, time.Month(period.PeriodMonth),
		s.policy.GraceLastDay, s.policy.PerDiemLateFee), nil
}

func (s *PeriodService) ensureNoPeriod(ctx context.Context, tenantID, residentID uuid.UUID, month, year int) error {
	existing, err := s.periodRepo.FindByResidentPeriod(ctx, tenantID, residentID, month, year)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("check existing period: %w", err)
	}
	if existing != nil {
		return shared.NewDomainError("ALREADY_EXISTS",
			fmt.Sprintf("A rent period already exists for this resident in %d-%02d", year, month))
	}
	return nil
}
