package orders

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSummarize(t *testing.T) {
	p := DefaultPricing()
	tests := []struct {
		subtotal string
		tax      string
		shipping string
		total    string
	}{
		{"120", "12", "0", "132"},
		{"80", "8", "10", "98"},
		{"100", "10", "10", "120"},
		{"100.01", "10", "0", "110.01"},
		{"33.33", "3.33", "10", "46.66"},
	}
	for _, tt := range tests {
		t.Run(tt.subtotal, func(t *testing.T) {
			s := p.Summarize(dec(tt.subtotal), decimal.Zero)
			assert.True(t, s.Tax.Equal(dec(tt.tax)), "tax %s", s.Tax)
			assert.True(t, s.Shipping.Equal(dec(tt.shipping)), "shipping %s", s.Shipping)
			assert.True(t, s.Total.Equal(dec(tt.total)), "total %s", s.Total)
			assert.True(t, s.Consistent())
		})
	}
}

func TestSummarize_Discount(t *testing.T) {
	s := DefaultPricing().Summarize(dec("50"), dec("5"))
	assert.True(t, s.Total.Equal(dec("60")))
	assert.True(t, s.Consistent())

	s.Total = s.Total.Add(decimal.NewFromInt(1))
	assert.False(t, s.Consistent())
}

func TestSubtotal(t *testing.T) {
	lines := []Line{
		{ProductID: "a", Quantity: 2, Price: dec("19.99")},
		{ProductID: "b", Quantity: 1, Price: dec("5.02")},
	}
	assert.True(t, Subtotal(lines).Equal(dec("45")))
	assert.True(t, Subtotal(nil).IsZero())
}
