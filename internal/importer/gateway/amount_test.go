package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBRLAmount(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1.234,56", 123456},
		{"R$ 1.234,56", 123456},
		{"R$49,90", 4990},
		{"100", 10000},
		{"0,005", 1},
		{"1.000.000,00", 100000000},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseBRLAmount(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseBRLAmount("R$ abc")
	assert.Error(t, err)
}
