package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrice_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Price
		wantErr bool
	}{
		{"number", `9.99`, 9.99, false},
		{"integer", `10`, 10, false},
		{"numeric string", `"9.99"`, 9.99, false},
		{"padded string", `" 12.50 "`, 12.5, false},
		{"zero", `0`, 0, false},
		{"null", `null`, 0, true},
		{"word", `"free"`, 0, true},
		{"empty string", `""`, 0, true},
		{"NaN string", `"NaN"`, 0, true},
		{"Inf string", `"Inf"`, 0, true},
		{"bool", `true`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Price
			err := p.UnmarshalJSON([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, float64(tt.want), p.Float64(), 1e-9)
		})
	}
}

func TestPrice_EncodesAsNumber(t *testing.T) {
	data, err := json.Marshal(Product{Price: 9.99, Features: []string{}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"price":9.99`)

	data, err = json.Marshal(Product{Price: 10})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"price":10`)
}

func TestCreateProductRequest_PriceStringOrNumber(t *testing.T) {
	var fromString, fromNumber CreateProductRequest
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Luna","description":"d","price":"4.50"}`), &fromString))
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Luna","description":"d","price":4.5}`), &fromNumber))

	require.NotNil(t, fromString.Price)
	require.NotNil(t, fromNumber.Price)
	assert.Equal(t, *fromNumber.Price, *fromString.Price)

	var missing CreateProductRequest
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Luna","description":"d","price":null}`), &missing))
	assert.Nil(t, missing.Price)
}
