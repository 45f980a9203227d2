package valueobject

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	t.Run("creates money with valid amount and currency", func(t *testing.T) {
		m, err := NewMoney(decimal.NewFromFloat(100.50), INR)
		require.NoError(t, err)
		assert.Equal(t, INR, m.Currency())
		assert.True(t, m.Amount().Equal(decimal.NewFromFloat(100.50)))
	})

	t.Run("returns error for empty currency", func(t *testing.T) {
		_, err := NewMoney(decimal.NewFromFloat(100), "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "currency cannot be empty")
	})
}

func TestNewMoneyFromString(t *testing.T) {
	t.Run("valid string", func(t *testing.T) {
		m, err := NewMoneyFromString("123.45", INR)
		require.NoError(t, err)
		assert.True(t, m.Amount().Equal(decimal.NewFromFloat(123.45)))
	})

	t.Run("invalid string", func(t *testing.T) {
		_, err := NewMoneyFromString("not-a-number", INR)
		assert.Error(t, err)
	})
}

func TestNewMoneyINR(t *testing.T) {
	m := NewMoneyINR(decimal.NewFromFloat(50.00))
	assert.Equal(t, INR, m.Currency())
	assert.True(t, m.Amount().Equal(decimal.NewFromFloat(50.00)))
}

func TestPaiseConversion(t *testing.T) {
	tests := []struct {
		name   string
		rupees string
		paise  int64
	}{
		{"whole rupees", "7500", 750000},
		{"with paise", "7500.50", 750050},
		{"sub-paise rounds", "10.005", 1001},
		{"zero", "0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMoneyFromString(tt.rupees, INR)
			require.NoError(t, err)
			assert.Equal(t, tt.paise, m.Paise())
		})
	}

	t.Run("round trips from paise", func(t *testing.T) {
		m := NewMoneyFromPaise(750050)
		assert.True(t, m.Amount().Equal(decimal.NewFromFloat(7500.50)))
		assert.Equal(t, int64(750050), m.Paise())
	})
}

func TestMoneyArithmetic(t *testing.T) {
	t.Run("add with same currency", func(t *testing.T) {
		a := NewMoneyINRFromFloat(100)
		b := NewMoneyINRFromFloat(50.25)
		sum, err := a.Add(b)
		require.NoError(t, err)
		assert.True(t, sum.Amount().Equal(decimal.NewFromFloat(150.25)))
	})

	t.Run("add with mismatched currency fails", func(t *testing.T) {
		a := NewMoneyINRFromFloat(100)
		b, _ := NewMoney(decimal.NewFromInt(100), USD)
		_, err := a.Add(b)
		assert.Error(t, err)
	})

	t.Run("subtract", func(t *testing.T) {
		a := NewMoneyINRFromFloat(100)
		b := NewMoneyINRFromFloat(150)
		diff, err := a.Subtract(b)
		require.NoError(t, err)
		assert.True(t, diff.IsNegative())
	})

	t.Run("multiply by int", func(t *testing.T) {
		m := NewMoneyINRFromFloat(50).MultiplyByInt(3)
		assert.True(t, m.Amount().Equal(decimal.NewFromInt(150)))
	})

	t.Run("must add panics on currency mismatch", func(t *testing.T) {
		a := NewMoneyINRFromFloat(1)
		b, _ := NewMoney(decimal.NewFromInt(1), USD)
		assert.Panics(t, func() { a.MustAdd(b) })
	})
}

func TestMoneyComparison(t *testing.T) {
	a := NewMoneyINRFromFloat(100)
	b := NewMoneyINRFromFloat(200)

	lt, err := a.LessThan(b)
	require.NoError(t, err)
	assert.True(t, lt)

	gte, err := b.GreaterThanOrEqual(a)
	require.NoError(t, err)
	assert.True(t, gte)

	assert.True(t, a.Equals(NewMoneyINRFromFloat(100)))
	assert.False(t, a.Equals(b))

	usd, _ := NewMoney(decimal.NewFromInt(100), USD)
	_, err = a.LessThan(usd)
	assert.Error(t, err)
}

func TestMoneyPredicates(t *testing.T) {
	assert.True(t, ZeroINR().IsZero())
	assert.True(t, NewMoneyINRFromFloat(1).IsPositive())
	assert.True(t, NewMoneyINRFromFloat(1).Negate().IsNegative())
}

func TestMoneyString(t *testing.T) {
	m := NewMoneyINRFromFloat(7500.5)
	assert.Equal(t, "7500.50 INR", m.String())
	assert.Equal(t, "7500.50", m.StringFixed(2))
}

func TestMoneyJSON(t *testing.T) {
	t.Run("marshal", func(t *testing.T) {
		m := NewMoneyINRFromFloat(99.99)
		data, err := json.Marshal(m)
		require.NoError(t, err)
		assert.JSONEq(t, `{"amount":"99.99","currency":"INR"}`, string(data))
	})

	t.Run("unmarshal", func(t *testing.T) {
		var m Money
		err := json.Unmarshal([]byte(`{"amount":"123.45","currency":"INR"}`), &m)
		require.NoError(t, err)
		assert.Equal(t, INR, m.Currency())
		assert.True(t, m.Amount().Equal(decimal.NewFromFloat(123.45)))
	})

	t.Run("unmarshal invalid amount", func(t *testing.T) {
		var m Money
		err := json.Unmarshal([]byte(`{"amount":"abc","currency":"INR"}`), &m)
		assert.Error(t, err)
	})
}

func TestMoneyDatabase(t *testing.T) {
	t.Run("value", func(t *testing.T) {
		m := NewMoneyINRFromFloat(42.42)
		v, err := m.Value()
		require.NoError(t, err)
		assert.Equal(t, "42.42", v)
	})

	t.Run("scan string", func(t *testing.T) {
		var m Money
		require.NoError(t, m.Scan("42.42"))
		assert.Equal(t, DefaultCurrency, m.Currency())
		assert.True(t, m.Amount().Equal(decimal.NewFromFloat(42.42)))
	})

	t.Run("scan nil", func(t *testing.T) {
		var m Money
		require.NoError(t, m.Scan(nil))
		assert.True(t, m.IsZero())
	})

	t.Run("scan unsupported type", func(t *testing.T) {
		var m Money
		assert.Error(t, m.Scan(42))
	})
}
