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

// InvoiceHandler handles ad-hoc invoice API endpoints
type InvoiceHandler struct {
	BaseHandler
	invoiceService *billingapp.InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoiceService *billingapp.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
	}
}

// ===================== Request/Response DTOs =====================

// CreateInvoiceRequest represents the request to raise an ad-hoc invoice
// @Description Create invoice request
type CreateInvoiceRequest struct {
	UnitID      string  `json:"unit_id" binding:"required,uuid"`
	PropertyID  string  `json:"property_id" binding:"required,uuid"`
	Amount      float64 `json:"amount" binding:"required,gt=0"`
	PeriodMonth int     `json:"period_month" binding:"required,min=1,max=12"`
	PeriodYear  int     `json:"period_year" binding:"required,min=2000"`
	DueDate     string  `json:"due_date" binding:"required"`
	Notes       string  `json:"notes"`
}

// InvoiceResponse represents an invoice in API responses
// @Description Invoice response
type InvoiceResponse struct {
	ID            string     `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	TenantID      string     `json:"tenant_id" example:"550e8400-e29b-41d4-a716-446655440001"`
	InvoiceNumber string     `json:"invoice_number" example:"INV-202506-00001"`
	UnitID        string     `json:"unit_id" example:"550e8400-e29b-41d4-a716-446655440002"`
	PropertyID    string     `json:"property_id" example:"550e8400-e29b-41d4-a716-446655440003"`
	Amount        float64    `json:"amount" example:"5000.00"`
	PeriodMonth   int        `json:"period_month" example:"6"`
	PeriodYear    int        `json:"period_year" example:"2026"`
	DueDate       time.Time  `json:"due_date"`
	Status        string     `json:"status" example:"PENDING"`
	Notes         string     `json:"notes,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	TotalPaid     *float64   `json:"total_paid,omitempty"`
	Outstanding   *float64   `json:"outstanding,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Version       int        `json:"version" example:"1"`
}

// ListInvoicesFilter represents query parameters for listing invoices
type ListInvoicesFilter struct {
	dto.ListRequest
	UnitID      string `form:"unit_id" binding:"omitempty,uuid"`
	PropertyID  string `form:"property_id" binding:"omitempty,uuid"`
	Status      string `form:"status" binding:"omitempty,oneof=PENDING PARTIALLY_PAID PAID OVERDUE"`
	PeriodMonth int    `form:"period_month" binding:"omitempty,min=1,max=12"`
	PeriodYear  int    `form:"period_year" binding:"omitempty,min=2000"`
}

func toInvoiceResponse(inv *billing.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:            inv.ID.String(),
		TenantID:      inv.TenantID.String(),
		InvoiceNumber: inv.InvoiceNumber,
		UnitID:        inv.UnitID.String(),
		PropertyID:    inv.PropertyID.String(),
		Amount:        inv.Amount.InexactFloat64(),
		PeriodMonth:   inv.PeriodMonth,
		PeriodYear:    inv.PeriodYear,
		DueDate:       inv.DueDate,
		Status:        inv.Status.String(),
		Notes:         inv.Notes,
		PaidAt:        inv.PaidAt,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
		Version:       inv.Version,
	}
}

func toInvoiceResponseWithLedger(inv *billing.Invoice, snapshot *billingapp.LedgerSnapshot) InvoiceResponse {
	resp := toInvoiceResponse(inv)
	totalPaid := snapshot.TotalPaid.InexactFloat64()
	outstanding := snapshot.Outstanding.InexactFloat64()
	resp.TotalPaid = &totalPaid
	resp.Outstanding = &outstanding
	return resp
}

// ===================== Endpoints =====================

// CreateInvoice godoc
// @Summary      Raise an ad-hoc invoice
// @Description  Creates an invoice against a unit for out-of-cycle charges. At most one invoice per unit and billing month.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        request body CreateInvoiceRequest true "Invoice details"
// @Success      201 {object} dto.Response{data=InvoiceResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /invoices [post]
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	unitID, err := uuid.Parse(req.UnitID)
	if err != nil {
		h.BadRequest(c, "Invalid unit ID format")
		return
	}
	propertyID, err := uuid.Parse(req.PropertyID)
	if err != nil {
		h.BadRequest(c, "Invalid property ID format")
		return
	}
	dueDate, err := parseDateTime(req.DueDate)
	if err != nil {
		h.BadRequest(c, "Invalid due date format")
		return
	}

	invoice, err := h.invoiceService.CreateInvoice(c.Request.Context(), tenantID, billingapp.CreateInvoiceInput{
		UnitID:      unitID,
		PropertyID:  propertyID,
		Amount:      valueobject.NewMoneyINR(decimal.NewFromFloat(req.Amount)),
		PeriodMonth: req.PeriodMonth,
		PeriodYear:  req.PeriodYear,
		DueDate:     dueDate,
		Notes:       req.Notes,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, toInvoiceResponse(invoice))
}

// GetInvoice godoc
// @Summary      Get invoice by ID
// @Description  Retrieve an invoice with its current ledger-derived status and outstanding balance
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} dto.Response{data=InvoiceResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /invoices/{id} [get]
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	invoice, snapshot, err := h.invoiceService.GetInvoice(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toInvoiceResponseWithLedger(invoice, snapshot))
}

// ListInvoices godoc
// @Summary      List invoices
// @Description  List invoices for the tenant with filtering and pagination
// @Tags         invoices
// @Produce      json
// @Success      200 {object} dto.Response{data=[]InvoiceResponse}
// @Security     BearerAuth
// @Router       /invoices [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var query ListInvoicesFilter
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := billing.InvoiceFilter{}
	filter.Page = query.Page
	filter.PageSize = query.PageSize
	filter.OrderBy = query.OrderBy
	filter.OrderDir = query.OrderDir
	filter.Search = query.Search
	if query.UnitID != "" {
		id := uuid.MustParse(query.UnitID)
		filter.UnitID = &id
	}
	if query.PropertyID != "" {
		id := uuid.MustParse(query.PropertyID)
		filter.PropertyID = &id
	}
	if query.Status != "" {
		status := billing.InvoiceStatus(query.Status)
		filter.Status = &status
	}
	if query.PeriodMonth != 0 {
		filter.PeriodMonth = &query.PeriodMonth
	}
	if query.PeriodYear != 0 {
		filter.PeriodYear = &query.PeriodYear
	}

	page, err := h.invoiceService.ListInvoices(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	responses := make([]InvoiceResponse, len(page.Items))
	for i := range page.Items {
		responses[i] = toInvoiceResponse(&page.Items[i])
	}
	h.SuccessWithMeta(c, responses, page.Total, page.Page, page.PageSize)
}
