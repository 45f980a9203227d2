package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	billingapp "github.com/rentledger/backend/internal/application/billing"
	"github.com/rentledger/backend/internal/domain/billing"
	"github.com/rentledger/backend/internal/domain/shared/valueobject"
	"github.com/rentledger/backend/internal/interfaces/http/dto"
)

// RentPeriodHandler handles recurring rent period API endpoints
type RentPeriodHandler struct {
	BaseHandler
	periodService *billingapp.PeriodService
}

// NewRentPeriodHandler creates a new RentPeriodHandler
func NewRentPeriodHandler(periodService *billingapp.PeriodService) *RentPeriodHandler {
	return &RentPeriodHandler{
		periodService: periodService,
	}
}

// ===================== Request/Response DTOs =====================

// ChargeItemRequest is a single labelled one-time charge
type ChargeItemRequest struct {
	Label  string  `json:"label" binding:"required"`
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

// OpenFirstPeriodRequest represents a resident's move-in
// @Description Open first rent period request
type OpenFirstPeriodRequest struct {
	ResidentID  string              `json:"resident_id" binding:"required,uuid"`
	PropertyID  string              `json:"property_id" binding:"required,uuid"`
	UnitID      string              `json:"unit_id" binding:"required,uuid"`
	MoveInDate  string              `json:"move_in_date" binding:"required"`
	MonthlyRent float64             `json:"monthly_rent" binding:"required,gt=0"`
	Deposit     float64             `json:"deposit" binding:"omitempty,gte=0"`
	JoiningFee  float64             `json:"joining_fee" binding:"omitempty,gte=0"`
	Items       []ChargeItemRequest `json:"items" binding:"omitempty,dive"`
}

// OpenPeriodRequest represents a regular monthly period opening
// @Description Open rent period request
type OpenPeriodRequest struct {
	ResidentID  string  `json:"resident_id" binding:"required,uuid"`
	PropertyID  string  `json:"property_id" binding:"required,uuid"`
	UnitID      string  `json:"unit_id" binding:"required,uuid"`
	PeriodMonth int     `json:"period_month" binding:"required,min=1,max=12"`
	PeriodYear  int     `json:"period_year" binding:"required,min=2000"`
	MonthlyRent float64 `json:"monthly_rent" binding:"required,gt=0"`
}

// OneTimeChargesResponse represents move-in extras in API responses
type OneTimeChargesResponse struct {
	Deposit    float64             `json:"deposit"`
	JoiningFee float64             `json:"joining_fee"`
	Items      []ChargeItemRequest `json:"items,omitempty"`
	Total      float64             `json:"total"`
}

// RentPeriodResponse represents a rent period in API responses
// @Description Rent period response
type RentPeriodResponse struct {
	ID             string                 `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	TenantID       string                 `json:"tenant_id"`
	ResidentID     string                 `json:"resident_id"`
	PropertyID     string                 `json:"property_id"`
	UnitID         string                 `json:"unit_id"`
	PeriodMonth    int                    `json:"period_month" example:"6"`
	PeriodYear     int                    `json:"period_year" example:"2026"`
	WindowStart    time.Time              `json:"window_start"`
	WindowEnd      time.Time              `json:"window_end"`
	DueDate        time.Time              `json:"due_date"`
	BaseAmount     float64                `json:"base_amount" example:"25000.00"`
	LateFeeAmount  float64                `json:"late_fee_amount" example:"0.00"`
	OneTimeCharges OneTimeChargesResponse `json:"one_time_charges"`
	TotalAmount    float64                `json:"total_amount" example:"25000.00"`
	IsFirstPeriod  bool                   `json:"is_first_period"`
	IsProrated     bool                   `json:"is_prorated"`
	Status         string                 `json:"status" example:"PENDING"`
	PaidAt         *time.Time             `json:"paid_at,omitempty"`
	TotalPaid      *float64               `json:"total_paid,omitempty"`
	Outstanding    *float64               `json:"outstanding,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
	Version        int                    `json:"version" example:"1"`
}

// LateFeeQuoteResponse represents a late fee quote in API responses
type LateFeeQuoteResponse struct {
	PeriodID string    `json:"period_id"`
	AsOf     time.Time `json:"as_of"`
	LateFee  float64   `json:"late_fee" example:"150.00"`
}

// ListPeriodsFilter represents query parameters for listing rent periods
type ListPeriodsFilter struct {
	dto.ListRequest
	ResidentID  string `form:"resident_id" binding:"omitempty,uuid"`
	PropertyID  string `form:"property_id" binding:"omitempty,uuid"`
	Status      string `form:"status" binding:"omitempty,oneof=PENDING PAID FAILED REFUNDED"`
	PeriodMonth int    `form:"period_month" binding:"omitempty,min=1,max=12"`
	PeriodYear  int    `form:"period_year" binding:"omitempty,min=2000"`
	FirstOnly   bool   `form:"first_only"`
}

func toRentPeriodResponse(p *billing.RentPeriod) RentPeriodResponse {
	items := make([]ChargeItemRequest, len(p.OneTimeCharges.Items))
	for i, item := range p.OneTimeCharges.Items {
		items[i] = ChargeItemRequest{Label: item.Label, Amount: item.Amount.InexactFloat64()}
	}
	return RentPeriodResponse{
		ID:            p.ID.String(),
		TenantID:      p.TenantID.String(),
		ResidentID:    p.ResidentID.String(),
		PropertyID:    p.PropertyID.String(),
		UnitID:        p.UnitID.String(),
		PeriodMonth:   p.PeriodMonth,
		PeriodYear:    p.PeriodYear,
		WindowStart:   p.WindowStart,
		WindowEnd:     p.WindowEnd,
		DueDate:       p.DueDate,
		BaseAmount:    p.BaseAmount.InexactFloat64(),
		LateFeeAmount: p.LateFeeAmount.InexactFloat64(),
		OneTimeCharges: OneTimeChargesResponse{
			Deposit:    p.OneTimeCharges.Deposit.InexactFloat64(),
			JoiningFee: p.OneTimeCharges.JoiningFee.InexactFloat64(),
			Items:      items,
			Total:      p.OneTimeCharges.Total().InexactFloat64(),
		},
		TotalAmount:   p.TotalAmount().Amount().InexactFloat64(),
		IsFirstPeriod: p.IsFirstPeriod,
		IsProrated:    p.IsProrated,
		Status:        p.Status.String(),
		PaidAt:        p.PaidAt,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
		Version:       p.Version,
	}
}

func toRentPeriodResponseWithLedger(p *billing.RentPeriod, snapshot *billingapp.LedgerSnapshot) RentPeriodResponse {
	resp := toRentPeriodResponse(p)
	totalPaid := snapshot.TotalPaid.InexactFloat64()
	outstanding := snapshot.Outstanding.InexactFloat64()
	resp.TotalPaid = &totalPaid
	resp.Outstanding = &outstanding
	return resp
}

// ===================== Endpoints =====================

// OpenFirstPeriod godoc
// @Summary      Open a resident's first rent period
// @Description  Opens the move-in period. Move-in on or before the 5th charges the full month; later move-ins are prorated by remaining days. One-time charges ride on this period only.
// @Tags         rent-periods
// @Accept       json
// @Produce      json
// @Param        request body OpenFirstPeriodRequest true "Move-in details"
// @Success      201 {object} dto.Response{data=RentPeriodResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /rent-periods/first [post]
func (h *RentPeriodHandler) OpenFirstPeriod(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req OpenFirstPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	moveIn, err := parseDateTime(req.MoveInDate)
	if err != nil {
		h.BadRequest(c, "Invalid move-in date format")
		return
	}

	items := make([]billing.ChargeItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = billing.ChargeItem{
			Label:  item.Label,
			Amount: decimal.NewFromFloat(item.Amount),
		}
	}

	period, err := h.periodService.OpenFirstPeriod(c.Request.Context(), tenantID, billingapp.OpenFirstPeriodInput{
		ResidentID:  uuid.MustParse(req.ResidentID),
		PropertyID:  uuid.MustParse(req.PropertyID),
		UnitID:      uuid.MustParse(req.UnitID),
		MoveInDate:  moveIn,
		MonthlyRent: valueobject.NewMoneyINR(decimal.NewFromFloat(req.MonthlyRent)),
		OneTime: billing.OneTimeCharges{
			Deposit:    decimal.NewFromFloat(req.Deposit),
			JoiningFee: decimal.NewFromFloat(req.JoiningFee),
			Items:      items,
		},
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, toRentPeriodResponse(period))
}

// OpenPeriod godoc
// @Summary      Open a regular rent period
// @Description  Opens a standard monthly period covering the full calendar month
// @Tags         rent-periods
// @Accept       json
// @Produce      json
// @Param        request body OpenPeriodRequest true "Period details"
// @Success      201 {object} dto.Response{data=RentPeriodResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /rent-periods [post]
func (h *RentPeriodHandler) OpenPeriod(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req OpenPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	period, err := h.periodService.OpenPeriod(c.Request.Context(), tenantID, billingapp.OpenPeriodInput{
		ResidentID:  uuid.MustParse(req.ResidentID),
		PropertyID:  uuid.MustParse(req.PropertyID),
		UnitID:      uuid.MustParse(req.UnitID),
		PeriodMonth: req.PeriodMonth,
		PeriodYear:  req.PeriodYear,
		MonthlyRent: valueobject.NewMoneyINR(decimal.NewFromFloat(req.MonthlyRent)),
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, toRentPeriodResponse(period))
}

// GetPeriod godoc
// @Summary      Get rent period by ID
// @Description  Retrieve a rent period with its current ledger-derived status and outstanding balance
// @Tags         rent-periods
// @Produce      json
// @Param        id path string true "Period ID" format(uuid)
// @Success      200 {object} dto.Response{data=RentPeriodResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /rent-periods/{id} [get]
func (h *RentPeriodHandler) GetPeriod(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	periodID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid period ID format")
		return
	}

	period, snapshot, err := h.periodService.GetPeriod(c.Request.Context(), tenantID, periodID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toRentPeriodResponseWithLedger(period, snapshot))
}

// ListPeriods godoc
// @Summary      List rent periods
// @Description  List rent periods for the tenant with filtering and pagination
// @Tags         rent-periods
// @Produce      json
// @Success      200 {object} dto.Response{data=[]RentPeriodResponse}
// @Security     BearerAuth
// @Router       /rent-periods [get]
func (h *RentPeriodHandler) ListPeriods(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var query ListPeriodsFilter
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := billing.RentPeriodFilter{}
	filter.Page = query.Page
	filter.PageSize = query.PageSize
	filter.OrderBy = query.OrderBy
	filter.OrderDir = query.OrderDir
	if query.ResidentID != "" {
		id := uuid.MustParse(query.ResidentID)
		filter.ResidentID = &id
	}
	if query.PropertyID != "" {
		id := uuid.MustParse(query.PropertyID)
		filter.PropertyID = &id
	}
	if query.Status != "" {
		status := billing.PeriodStatus(query.Status)
		filter.Status = &status
	}
	if query.PeriodMonth != 0 {
		filter.PeriodMonth = &query.PeriodMonth
	}
	if query.PeriodYear != 0 {
		filter.PeriodYear = &query.PeriodYear
	}
	if query.FirstOnly {
		firstOnly := true
		filter.FirstOnly = &firstOnly
	}

	page, err := h.periodService.ListPeriods(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	responses := make([]RentPeriodResponse, len(page.Items))
	for i := range page.Items {
		responses[i] = toRentPeriodResponse(&page.Items[i])
	}
	h.SuccessWithMeta(c, responses, page.Total, page.Page, page.PageSize)
}

// QuoteLateFee godoc
// @Summary      Quote the late fee on a period
// @Description  Computes what the late fee would be as of now without persisting anything
// @Tags         rent-periods
// @Produce      json
// @Param        id path string true "Period ID" format(uuid)
// @Success      200 {object} dto.Response{data=LateFeeQuoteResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /rent-periods/{id}/late-fee [get]
func (h *RentPeriodHandler) QuoteLateFee(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	periodID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid period ID format")
		return
	}

	now := time.Now()
	fee, err := h.periodService.QuoteLateFee(c.Request.Context(), tenantID, periodID, now)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, LateFeeQuoteResponse{
		PeriodID: periodID.String(),
		AsOf:     now,
		LateFee:  fee.Float64(),
	})
}
