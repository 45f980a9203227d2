package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// Common allowed sort fields for entities with base fields
// These are the common fields present in most entities

// CommonSortFields contains fields common to most entities
var CommonSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
}

// InvoiceSortFields contains allowed sort fields for invoices
var InvoiceSortFields = map[string]bool{
	"id":             true,
	"created_at":     true,
	"updated_at":     true,
	"invoice_number": true,
	"unit_id":        true,
	"property_id":    true,
	"amount":         true,
	"period_month":   true,
	"period_year":    true,
	"due_date":       true,
	"status":         true,
	"paid_at":        true,
}

// RentPeriodSortFields contains allowed sort fields for rent periods
var RentPeriodSortFields = map[string]bool{
	"id":              true,
	"created_at":      true,
	"updated_at":      true,
	"resident_id":     true,
	"property_id":     true,
	"unit_id":         true,
	"period_month":    true,
	"period_year":     true,
	"window_start":    true,
	"window_end":      true,
	"due_date":        true,
	"base_amount":     true,
	"late_fee_amount": true,
	"status":          true,
	"paid_at":         true,
}

// PaymentAttemptSortFields contains allowed sort fields for payment attempts
var PaymentAttemptSortFields = map[string]bool{
	"id":               true,
	"created_at":       true,
	"updated_at":       true,
	"ledger_kind":      true,
	"payer_id":         true,
	"amount":           true,
	"method":           true,
	"source":           true,
	"state":            true,
	"gateway_order_id": true,
	"paid_at":          true,
}
