package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentledger/backend/internal/domain/shared"
	"github.com/rentledger/backend/internal/domain/shared/valueobject"
)

func createTestInvoice(t *testing.T) *Invoice {
	t.Helper()
	inv, err := NewInvoice(
		uuid.New(),
		"INV-202506-00001",
		uuid.New(),
		uuid.New(),
		valueobject.NewMoneyINR(decimal.NewFromInt(5000)),
		6, 2025,
		time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC),
		"window repair",
	)
	require.NoError(t, err)
	return inv
}

func TestNewInvoice(t *testing.T) {
	t.Run("creates pending invoice with creation event", func(t *testing.T) {
		inv := createTestInvoice(t)
		assert.Equal(t, InvoiceStatusPending, inv.Status)
		assert.Equal(t, 1, inv.Version)
		assert.Nil(t, inv.PaidAt)

		events := inv.GetDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventTypeInvoiceCreated, events[0].EventType())
	})

	t.Run("validation failures", func(t *testing.T) {
		amount := valueobject.NewMoneyINR(decimal.NewFromInt(5000))
		due := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)

		tests := []struct {
			name string
			fn   func() (*Invoice, error)
			code string
		}{
			{
				name: "empty invoice number",
				fn: func() (*Invoice, error) {
					return NewInvoice(uuid.New(), "", uuid.New(), uuid.New(), amount, 6, 2025, due, "")
				},
				code: "INVALID_INVOICE_NUMBER",
			},
			{
				name: "nil unit",
				fn: func() (*Invoice, error) {
					return NewInvoice(uuid.New(), "INV-1", uuid.Nil, uuid.New(), amount, 6, 2025, due, "")
				},
				code: "INVALID_UNIT",
			},
			{
				name: "zero amount",
				fn: func() (*Invoice, error) {
					return NewInvoice(uuid.New(), "INV-1", uuid.New(), uuid.New(), valueobject.ZeroINR(), 6, 2025, due, "")
				},
				code: "INVALID_AMOUNT",
			},
			{
				name: "month out of range",
				fn: func() (*Invoice, error) {
					return NewInvoice(uuid.New(), "INV-1", uuid.New(), uuid.New(), amount, 13, 2025, due, "")
				},
				code: "INVALID_PERIOD",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := tt.fn()
				require.Error(t, err)
				var domainErr *shared.DomainError
				require.ErrorAs(t, err, &domainErr)
				assert.Equal(t, tt.code, domainErr.Code)
			})
		}
	})
}

func TestInvoiceDeriveStatus(t *testing.T) {
	inv := createTestInvoice(t)
	beforeDue := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	afterDue := time.Date(2025, time.June, 16, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		totalPaid int64
		now       time.Time
		expected  InvoiceStatus
	}{
		{"nothing paid before due", 0, beforeDue, InvoiceStatusPending},
		{"nothing paid past due", 0, afterDue, InvoiceStatusOverdue},
		{"partial payment before due", 2000, beforeDue, InvoiceStatusPartiallyPaid},
		{"partial payment past due stays partial", 2000, afterDue, InvoiceStatusPartiallyPaid},
		{"exact payment", 5000, afterDue, InvoiceStatusPaid},
		{"overpayment", 6000, beforeDue, InvoiceStatusPaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paid := valueobject.NewMoneyINR(decimal.NewFromInt(tt.totalPaid))
			assert.Equal(t, tt.expected, inv.DeriveStatus(paid, tt.now))
		})
	}
}

func TestInvoiceApplyDerivedStatus(t *testing.T) {
	t.Run("records paid timestamp and event on first PAID", func(t *testing.T) {
		inv := createTestInvoice(t)
		inv.ClearDomainEvents()
		now := time.Date(2025, time.June, 12, 10, 0, 0, 0, time.UTC)

		changed := inv.ApplyDerivedStatus(valueobject.NewMoneyINR(decimal.NewFromInt(5000)), now)
		assert.True(t, changed)
		assert.Equal(t, InvoiceStatusPaid, inv.Status)
		require.NotNil(t, inv.PaidAt)
		assert.Equal(t, now, *inv.PaidAt)
		assert.Equal(t, 2, inv.Version)

		events := inv.GetDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventTypeInvoicePaid, events[0].EventType())
	})

	t.Run("no change reports false and bumps nothing", func(t *testing.T) {
		inv := createTestInvoice(t)
		now := time.Date(2025, time.June, 12, 0, 0, 0, 0, time.UTC)
		changed := inv.ApplyDerivedStatus(valueobject.ZeroINR(), now)
		assert.False(t, changed)
		assert.Equal(t, 1, inv.Version)
	})

	t.Run("reapplying PAID is idempotent", func(t *testing.T) {
		inv := createTestInvoice(t)
		now := time.Date(2025, time.June, 12, 0, 0, 0, 0, time.UTC)
		paid := valueobject.NewMoneyINR(decimal.NewFromInt(5000))

		assert.True(t, inv.ApplyDerivedStatus(paid, now))
		firstPaidAt := *inv.PaidAt
		assert.False(t, inv.ApplyDerivedStatus(paid, now.Add(time.Hour)))
		assert.Equal(t, firstPaidAt, *inv.PaidAt)
	})
}

func TestInvoiceOutstanding(t *testing.T) {
	inv := createTestInvoice(t)

	out := inv.Outstanding(valueobject.NewMoneyINR(decimal.NewFromInt(2000)))
	assert.True(t, out.Amount().Equal(decimal.NewFromInt(3000)))

	// Overpayment floors at zero rather than going negative.
	out = inv.Outstanding(valueobject.NewMoneyINR(decimal.NewFromInt(9000)))
	assert.True(t, out.IsZero())
}
