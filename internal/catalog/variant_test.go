package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVariantKey(t *testing.T) {
	tests := []struct {
		name string
		in   Variant
		want VariantKey
	}{
		{"nil", nil, ""},
		{"empty values dropped", Variant{"size": ""}, ""},
		{"sorted", Variant{"size": "M", "color": "red"}, "color=red;size=M"},
		{"names normalized", Variant{" Color ": "red ", "SIZE": "M"}, "color=red;size=M"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Key())
		})
	}
}

func TestVariantKey_OrderIndependent(t *testing.T) {
	a := Variant{"size": "L", "color": "blue", "style": "slim"}
	b := Variant{"style": "slim", "color": "blue", "size": "L"}
	assert.Equal(t, a.Key(), b.Key())
}

func TestVariantKey_RoundTrip(t *testing.T) {
	k := Variant{"size": "M", "color": "red"}.Key()
	assert.Equal(t, k, k.Variant().Key())
	assert.Equal(t, Variant{}, VariantKey("").Variant())
}

func TestVariantKey_SeparatorsInValuesDoNotCollide(t *testing.T) {
	packed := Variant{"engraving": "A;size=XL"}
	split := Variant{"engraving": "A", "size": "XL"}

	assert.NotEqual(t, packed.Key(), split.Key())
	assert.Equal(t, VariantKey("engraving=A%3Bsize%3DXL"), packed.Key())
	assert.Equal(t, packed, packed.Key().Variant())
	assert.Equal(t, split, split.Key().Variant())
}

func TestVariantKey_EscapesPercent(t *testing.T) {
	v := Variant{"note": "100%3B", "a=b": "c"}
	k := v.Key()
	assert.Equal(t, VariantKey("a%3Db=c;note=100%253B"), k)
	assert.Equal(t, v, k.Variant())
}

func TestVariantKey_CollidingNamesAreDeterministic(t *testing.T) {
	v := Variant{"Size": "M", "size": "L", " SIZE ": "S"}
	for range 20 {
		assert.Equal(t, VariantKey("size=S"), v.Key())
	}
	assert.Error(t, v.Validate())
	assert.NoError(t, Variant{"size": "M", "color": "red"}.Validate())
	assert.NoError(t, Variant(nil).Validate())
}
