package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	billingapp "github.com/rentledger/backend/internal/application/billing"
	"github.com/rentledger/backend/internal/domain/billing"
	"github.com/rentledger/backend/internal/interfaces/http/dto"
)

// handleBillingError maps the billing sentinel errors onto API error
// codes before falling back to the generic domain error handling.
func (h *BaseHandler) handleBillingError(c *gin.Context, err error) {
	requestID := getRequestID(c)

	respond := func(code string, message string) {
		c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, message, requestID))
	}

	switch {
	case errors.Is(err, billing.ErrGatewayOrderNotFound),
		errors.Is(err, billingapp.ErrAttemptNotFound):
		respond(dto.ErrCodeNotFound, "Resource not found")
	case errors.Is(err, billingapp.ErrAlreadySettled):
		respond(dto.ErrCodeAlreadySettled, "Ledger entry is already settled")
	case errors.Is(err, billingapp.ErrInvalidAmount),
		errors.Is(err, billing.ErrGatewayInvalidAmount):
		respond(dto.ErrCodeInvalidAmount, "Requested amount is invalid")
	case errors.Is(err, billing.ErrSignatureMismatch):
		respond(dto.ErrCodeSignatureMismatch, "Signature verification failed")
	case errors.Is(err, billing.ErrGatewayNotConfigured),
		errors.Is(err, billing.ErrMissingSecret):
		respond(dto.ErrCodeGatewayNotConfigured, "Payment gateway is not configured")
	case errors.Is(err, billing.ErrGatewayUnavailable),
		errors.Is(err, billing.ErrGatewayRequestFailed),
		errors.Is(err, billing.ErrGatewayInvalidResponse):
		respond(dto.ErrCodeGatewayUnavailable, "Payment gateway is unavailable")
	case errors.Is(err, billingapp.ErrWebhookInvalidPayload):
		respond(dto.ErrCodeInvalidInput, "Invalid webhook payload")
	default:
		h.HandleDomainError(c, err)
	}
}
