package provider

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/go-go-golems/kraken-agui/pkg/helpers"
)

// pairAssets names the base asset of pairs whose name does not reduce to the
// asset by cutting at "USD".
var pairAssets = map[string]string{
	"LINKUSD":  "LINK",
	"SOLUSD":   "SOL",
	"ETHUSD":   "ETH",
	"XETHZUSD": "ETH",
	"XDGUSD":   "DOGE",
	"XXDGZUSD": "DOGE",
}

var baseAliases = map[string]string{
	"XDOGE": "DOGE",
	"XDG":   "DOGE",
	"XXBT":  "BTC",
	"XETH":  "ETH",
}

// PricesFromTickers derives a USD price per asset from the last trade price
// of each USD-quoted pair.
func PricesFromTickers(tickers Tickers) map[string]decimal.Decimal {
	pairs := make([]string, 0, len(tickers))
	for p := range tickers {
		pairs = append(pairs, p)
	}
	sort.Strings(pairs)

	prices := map[string]decimal.Decimal{}
	for _, pair := range pairs {
		idx := strings.Index(pair, "USD")
		if idx <= 0 {
			continue
		}
		last, err := decimal.NewFromString(tickers[pair].Last)
		if err != nil {
			continue
		}
		base := pair[:idx]
		if alias, ok := baseAliases[base]; ok {
			base = alias
		}
		prices[base] = last
	}

	for _, pair := range pairs {
		asset, ok := pairAssets[pair]
		if !ok {
			continue
		}
		if p, ok := prices[asset]; ok && !p.IsZero() {
			continue
		}
		last, err := decimal.NewFromString(tickers[pair].Last)
		if err != nil {
			continue
		}
		prices[asset] = last
	}

	return prices
}

// BuildPortfolioSummary values balances at the ticker prices. USD counts at
// face value, assets without a price are valued at zero. Values are rounded
// to cents and sorted by value, largest first.
func BuildPortfolioSummary(balances Balances, tickers Tickers, now time.Time) (*PortfolioSummary, error) {
	prices := PricesFromTickers(tickers)

	total := decimal.Zero
	assets := make([]PortfolioAsset, 0, len(balances))
	for asset, amount := range balances {
		qty, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, &ParseError{Body: amount, Cause: err}
		}

		value := decimal.Zero
		p, known := prices[asset]
		known = known && !p.IsZero()
		switch {
		case asset == "USD":
			value = qty
			if !known {
				p, known = decimal.NewFromInt(1), true
			}
		case known:
			value = qty.Mul(p)
		}
		price := helpers.DecimalPointer(p, known)

		total = total.Add(value)
		assets = append(assets, PortfolioAsset{
			Asset:    asset,
			Quantity: qty.InexactFloat64(),
			Price:    price,
			USDValue: value.Round(2).InexactFloat64(),
		})
	}

	sort.SliceStable(assets, func(i, j int) bool {
		if assets[i].USDValue != assets[j].USDValue {
			return assets[i].USDValue > assets[j].USDValue
		}
		return assets[i].Asset < assets[j].Asset
	})

	return &PortfolioSummary{
		TotalUSD:  total.Round(2).InexactFloat64(),
		Assets:    assets,
		UpdatedAt: now.UTC().Format(TimeFormat),
	}, nil
}
