package sink

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyTemplate_Key(t *testing.T) {
	tests := []struct {
		template KeyTemplate
		item     string
		want     string
	}{
		{"yfinance-data/{key}.csv", "AAPL", "yfinance-data/AAPL.csv"},
		{"exchange-rates/{key}.csv", "USD", "exchange-rates/USD.csv"},
		{"coinmarketcap/{key}_crypto.csv", "top10", "coinmarketcap/top10_crypto.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.NoError(t, tt.template.Validate())
			assert.Equal(t, tt.want, tt.template.Key(tt.item))
		})
	}
}

func TestKeyTemplate_Validate(t *testing.T) {
	assert.EqualError(t, KeyTemplate("static.csv").Validate(), `key template "static.csv" must contain {key}`)
	assert.Error(t, KeyTemplate("").Validate())
}

func TestSinkError(t *testing.T) {
	err := NewPermissionDeniedError("a.csv", nil)
	assert.Equal(t, `permission_denied error storing "a.csv": permission denied`, err.Error())
	assert.Equal(t, KindPermissionDenied, KindOf(err))
	assert.Equal(t, KindUnavailable, KindOf(assert.AnError))
}
