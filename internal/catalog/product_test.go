package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestEffectivePrice(t *testing.T) {
	tests := []struct {
		name       string
		discounted decimal.NullDecimal
		want       string
	}{
		{"no discount", decimal.NullDecimal{}, "25"},
		{"discounted", decimal.NewNullDecimal(decimal.RequireFromString("19.99")), "19.99"},
		{"zero discount ignored", decimal.NewNullDecimal(decimal.Zero), "25"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Product{Price: decimal.NewFromInt(25), DiscountedPrice: tt.discounted}
			assert.Equal(t, tt.want, p.EffectivePrice().String())
		})
	}
}

func TestActive(t *testing.T) {
	assert.True(t, (&Product{Status: StatusActive}).Active())
	assert.False(t, (&Product{Status: StatusInactive}).Active())
	assert.False(t, (&Product{Status: StatusDiscontinued}).Active())
}
