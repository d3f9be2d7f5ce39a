package provider

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleStatic() *Static {
	return &Static{
		Balances: Balances{"ETH": "2", "DOGE": "1000", "USD": "150.255", "XLM": "10"},
		Tickers: Tickers{
			"ETHUSD": {Last: "3000.50"},
			"XDGUSD": {Last: "0.1"},
			"SOLUSD": {Last: "100"},
		},
		Now: func() time.Time { return fixedNow },
	}
}

func TestPricesFromTickers(t *testing.T) {
	prices := PricesFromTickers(Tickers{
		"XXBTZUSD": {Last: "60000"},
		"XDGUSD":   {Last: "0.12"},
		"LINKUSD":  {Last: "15"},
		"XETHZUSD": {Last: "3000"},
		"EURUSD":   {Last: "bad"},
		"USDT":     {Last: "1"},
	})
	assert.Equal(t, "0.12", prices["DOGE"].String())
	assert.Equal(t, "15", prices["LINK"].String())
	// XETHZUSD only resolves through the known pair table
	assert.Equal(t, "3000", prices["ETH"].String())
	assert.Equal(t, "60000", prices["XXBTZ"].String())
	_, ok := prices["EUR"]
	assert.False(t, ok)
}

func TestBuildPortfolioSummary(t *testing.T) {
	s, err := sampleStatic().PortfolioSummary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6251.26, s.TotalUSD)
	assert.Equal(t, "2024-03-01T12:00:00.000Z", s.UpdatedAt)
	require.Len(t, s.Assets, 4)

	names := []string{}
	for _, a := range s.Assets {
		names = append(names, a.Asset)
	}
	assert.Equal(t, []string{"ETH", "USD", "DOGE", "XLM"}, names)

	assert.Equal(t, 6001.0, s.Assets[0].USDValue)
	require.NotNil(t, s.Assets[0].Price)
	assert.Equal(t, 3000.5, *s.Assets[0].Price)

	assert.Equal(t, 150.26, s.Assets[1].USDValue)
	require.NotNil(t, s.Assets[1].Price)
	assert.Equal(t, 1.0, *s.Assets[1].Price)

	assert.Nil(t, s.Assets[3].Price)
	assert.Equal(t, 0.0, s.Assets[3].USDValue)

	b, err := json.Marshal(s.Assets[3])
	require.NoError(t, err)
	assert.JSONEq(t, `{"asset":"XLM","quantity":10,"price":null,"usdValue":0}`, string(b))
}

func TestBuildPortfolioSummary_BadQuantity(t *testing.T) {
	_, err := BuildPortfolioSummary(Balances{"ETH": "lots"}, nil, fixedNow)
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "Failed to parse response: lots", err.Error())
	assert.True(t, IsProviderError(err))
}

func TestStatic(t *testing.T) {
	s := sampleStatic()
	ctx := context.Background()

	tickers, err := s.Ticker(ctx, []string{"ETHUSD", "NOPE"})
	require.NoError(t, err)
	assert.Len(t, tickers, 1)

	all, err := s.Ticker(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	b, err := s.Balance(ctx)
	require.NoError(t, err)
	b["ETH"] = "0"
	assert.Equal(t, "2", s.Balances["ETH"])

	s.Err = &Error{Provider: "static", Message: "Kraken API error: EGeneral:Internal error"}
	_, err = s.OpenOrders(ctx)
	assert.EqualError(t, err, "Kraken API error: EGeneral:Internal error")
	assert.True(t, IsProviderError(errors.Wrap(err, "getOpenOrders")))
	assert.False(t, IsProviderError(errors.New("other")))
}
