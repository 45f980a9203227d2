package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	billingapp "github.com/rentledger/backend/internal/application/billing"
)

// WebhookHandler receives gateway webhook deliveries. The route is
// unauthenticated; the signature header is the only trust anchor.
type WebhookHandler struct {
	BaseHandler
	webhookService *billingapp.WebhookService
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(webhookService *billingapp.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
	}
}

// WebhookAckResponse acknowledges a webhook delivery
type WebhookAckResponse struct {
	Event     string `json:"event" example:"payment.captured"`
	Handled   bool   `json:"handled"`
	Duplicate bool   `json:"duplicate"`
}

// HandleGatewayWebhook godoc
// @Summary      Receive a payment gateway webhook
// @Description  Verifies the delivery signature against the raw body, deduplicates by event ID and routes settlement events into reconciliation. Unrecognized event types are acknowledged without action so the gateway stops retrying them.
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Success      200 {object} dto.Response{data=WebhookAckResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /webhooks/gateway [post]
func (h *WebhookHandler) HandleGatewayWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.BadRequest(c, "Failed to read request body")
		return
	}

	signature := c.GetHeader("X-Razorpay-Signature")
	if signature == "" {
		h.BadRequest(c, "Missing signature header")
		return
	}
	eventID := c.GetHeader("X-Razorpay-Event-Id")

	result, err := h.webhookService.HandleWebhook(c.Request.Context(), body, signature, eventID)
	if err != nil {
		h.handleBillingError(c, err)
		return
	}

	h.Success(c, WebhookAckResponse{
		Event:     result.Event,
		Handled:   result.Handled,
		Duplicate: result.Duplicate,
	})
}
