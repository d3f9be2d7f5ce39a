package helpers

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecimalPointer(t *testing.T) {
	assert.Nil(t, DecimalPointer(decimal.RequireFromString("12.5"), false))

	p := DecimalPointer(decimal.RequireFromString("0.1234"), true)
	require.NotNil(t, p)
	assert.Equal(t, 0.1234, *p)

	q := DecimalPointer(decimal.RequireFromString("0.1234"), true)
	assert.NotSame(t, p, q)
}
