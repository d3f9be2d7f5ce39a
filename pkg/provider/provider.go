package provider

import (
	"context"
)

// Provider fetches account data from an exchange. Implementations return
// data already normalized to the field names below.
type Provider interface {
	Balance(ctx context.Context) (Balances, error)
	// Ticker returns market data for pairs. An empty list means the
	// provider's default pairs.
	Ticker(ctx context.Context, pairs []string) (Tickers, error)
	OpenOrders(ctx context.Context) ([]Order, error)
	TradeHistory(ctx context.Context) ([]Trade, error)
	PortfolioSummary(ctx context.Context) (*PortfolioSummary, error)
}

// Balances maps a cleaned asset name to its non-zero quantity.
type Balances map[string]string

// Tickers maps the pair name as reported by the exchange to its ticker.
type Tickers map[string]Ticker

type Ticker struct {
	Ask       string `json:"ask" yaml:"ask"`
	Bid       string `json:"bid" yaml:"bid"`
	Last      string `json:"last" yaml:"last"`
	Volume24h string `json:"volume24h" yaml:"volume24h"`
	High24h   string `json:"high24h" yaml:"high24h"`
	Low24h    string `json:"low24h" yaml:"low24h"`
	Open24h   string `json:"open24h" yaml:"open24h"`
}

type Order struct {
	ID        string `json:"id"`
	Pair      string `json:"pair"`
	Type      string `json:"type"`
	OrderType string `json:"orderType"`
	Price     string `json:"price"`
	Volume    string `json:"volume"`
	Status    string `json:"status"`
	OpenTime  string `json:"openTime"`
}

type Trade struct {
	ID        string `json:"id"`
	Pair      string `json:"pair"`
	Type      string `json:"type"`
	OrderType string `json:"orderType"`
	Price     string `json:"price"`
	Cost      string `json:"cost"`
	Fee       string `json:"fee"`
	Volume    string `json:"volume"`
	Time      string `json:"time"`
}

// PortfolioAsset is one holding valued in USD. Price is nil when no USD
// price is known for the asset.
type PortfolioAsset struct {
	Asset    string   `json:"asset"`
	Quantity float64  `json:"quantity"`
	Price    *float64 `json:"price"`
	USDValue float64  `json:"usdValue"`
}

type PortfolioSummary struct {
	TotalUSD  float64          `json:"totalUsd"`
	Assets    []PortfolioAsset `json:"assets"`
	UpdatedAt string           `json:"updatedAt"`
}

// TimeFormat renders timestamps the way the client widgets expect them
// (UTC, millisecond precision).
const TimeFormat = "2006-01-02T15:04:05.000Z"
