package kraken

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/go-go-golems/kraken-agui/pkg/provider"
)

// DefaultPairs are queried when a ticker request names no pairs.
var DefaultPairs = []string{"LINKUSD", "SOLUSD", "ETHUSD", "XDGUSD"}

// MaxTrades caps the trade history handed to the client.
const MaxTrades = 20

var assetNames = map[string]string{
	"XXLM": "XLM",
	"XXBT": "BTC",
	"XETH": "ETH",
	"XLTC": "LTC",
	"XXRP": "XRP",
	"XXDG": "DOGE",
	"ZUSD": "USD",
	"ZEUR": "EUR",
	"ZGBP": "GBP",
	"ZJPY": "JPY",
	"ZCAD": "CAD",
	"ZAUD": "AUD",
}

// CleanAssetName maps Kraken's legacy asset codes to common tickers.
func CleanAssetName(name string) string {
	if n, ok := assetNames[name]; ok {
		return n
	}
	return name
}

type RawTicker struct {
	A []string `json:"a" yaml:"a"`
	B []string `json:"b" yaml:"b"`
	C []string `json:"c" yaml:"c"`
	V []string `json:"v" yaml:"v"`
	H []string `json:"h" yaml:"h"`
	L []string `json:"l" yaml:"l"`
	O string   `json:"o" yaml:"o"`
}

type RawOrderDescr struct {
	Pair      string `json:"pair" yaml:"pair"`
	Type      string `json:"type" yaml:"type"`
	OrderType string `json:"ordertype" yaml:"ordertype"`
	Price     string `json:"price" yaml:"price"`
}

type RawOrder struct {
	Descr  RawOrderDescr `json:"descr" yaml:"descr"`
	Vol    string        `json:"vol" yaml:"vol"`
	Status string        `json:"status" yaml:"status"`
	OpenTm float64       `json:"opentm" yaml:"opentm"`
}

type RawTrade struct {
	Pair      string  `json:"pair" yaml:"pair"`
	Type      string  `json:"type" yaml:"type"`
	OrderType string  `json:"ordertype" yaml:"ordertype"`
	Price     string  `json:"price" yaml:"price"`
	Cost      string  `json:"cost" yaml:"cost"`
	Fee       string  `json:"fee" yaml:"fee"`
	Vol       string  `json:"vol" yaml:"vol"`
	Time      float64 `json:"time" yaml:"time"`
}

func at(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}
	return ""
}

// NormalizeBalance cleans asset names and drops zero (or unparseable)
// balances.
func NormalizeBalance(raw map[string]string) provider.Balances {
	ret := provider.Balances{}
	for k, v := range raw {
		d, err := decimal.NewFromString(v)
		if err != nil || !d.IsPositive() {
			continue
		}
		ret[CleanAssetName(k)] = d.String()
	}
	return ret
}

func NormalizeTickers(raw map[string]RawTicker) provider.Tickers {
	ret := provider.Tickers{}
	for pair, t := range raw {
		ret[pair] = provider.Ticker{
			Ask:       at(t.A, 0),
			Bid:       at(t.B, 0),
			Last:      at(t.C, 0),
			Volume24h: at(t.V, 1),
			High24h:   at(t.H, 1),
			Low24h:    at(t.L, 1),
			Open24h:   t.O,
		}
	}
	return ret
}

// NormalizeOrders flattens open orders, oldest first.
func NormalizeOrders(raw map[string]RawOrder) []provider.Order {
	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := raw[ids[i]], raw[ids[j]]
		if a.OpenTm != b.OpenTm {
			return a.OpenTm < b.OpenTm
		}
		return ids[i] < ids[j]
	})

	ret := make([]provider.Order, 0, len(ids))
	for _, id := range ids {
		o := raw[id]
		ret = append(ret, provider.Order{
			ID:        id,
			Pair:      o.Descr.Pair,
			Type:      o.Descr.Type,
			OrderType: o.Descr.OrderType,
			Price:     o.Descr.Price,
			Volume:    o.Vol,
			Status:    o.Status,
			OpenTime:  formatUnix(o.OpenTm),
		})
	}
	return ret
}

// NormalizeTrades flattens the trade history, newest first, keeping at most
// MaxTrades entries.
func NormalizeTrades(raw map[string]RawTrade) []provider.Trade {
	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := raw[ids[i]], raw[ids[j]]
		if a.Time != b.Time {
			return a.Time > b.Time
		}
		return ids[i] < ids[j]
	})
	if len(ids) > MaxTrades {
		ids = ids[:MaxTrades]
	}

	ret := make([]provider.Trade, 0, len(ids))
	for _, id := range ids {
		t := raw[id]
		ret = append(ret, provider.Trade{
			ID:        id,
			Pair:      t.Pair,
			Type:      t.Type,
			OrderType: t.OrderType,
			Price:     t.Price,
			Cost:      t.Cost,
			Fee:       t.Fee,
			Volume:    t.Vol,
			Time:      formatUnix(t.Time),
		})
	}
	return ret
}

func formatUnix(sec float64) string {
	whole, frac := math.Modf(sec)
	ms := int64(math.Round(frac * 1000))
	return time.Unix(int64(whole), ms*int64(time.Millisecond)).UTC().Format(provider.TimeFormat)
}
