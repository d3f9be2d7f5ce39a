package kraken

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/kraken-agui/pkg/provider"
)

const tickerBody = `{"error":[],"result":{
	"ETHUSD":{"a":["3001.0","1","1.000"],"b":["3000.0","2","2.000"],"c":["3000.50","0.1"],"v":["100","2500.5"],"h":["3100","3150"],"l":["2900","2850"],"o":"2950"},
	"XDGUSD":{"a":["0.11","1","1"],"b":["0.10","1","1"],"c":["0.1","5"],"v":["1","2"],"h":["1","2"],"l":["1","2"],"o":"0.09"}
}}`

const snapshotYAML = `
balance:
  XETH: "2.0000000000"
  XXDG: "1000"
  ZUSD: "150.255"
  XXBT: "0.0000000000"
open_orders:
  OB:
    descr: {pair: ETHUSD, type: sell, ordertype: limit, price: "3500"}
    vol: "0.5"
    status: open
    opentm: 1700000100
  OA:
    descr: {pair: XDGUSD, type: buy, ordertype: limit, price: "0.08"}
    vol: "100"
    status: open
    opentm: 1700000000.25
trades:
  T1: {pair: XETHZUSD, type: buy, ordertype: market, price: "2000", cost: "200", fee: "0.5", vol: "0.1", time: 1700000000}
  T2: {pair: XETHZUSD, type: sell, ordertype: limit, price: "2100", cost: "210", fee: "0.5", vol: "0.1", time: 1700000500}
`

func newTickerServer(t *testing.T, body string) (*httptest.Server, *url.Values) {
	var seen url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/0/public/Ticker", r.URL.Path)
		seen = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestTickerNormalization(t *testing.T) {
	srv, seen := newTickerServer(t, tickerBody)
	p := New(NewClient(WithBaseURL(srv.URL), WithRateLimit(0)))

	tickers, err := p.Ticker(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "LINKUSD,SOLUSD,ETHUSD,XDGUSD", seen.Get("pair"))

	assert.Equal(t, provider.Ticker{
		Ask:       "3001.0",
		Bid:       "3000.0",
		Last:      "3000.50",
		Volume24h: "2500.5",
		High24h:   "3150",
		Low24h:    "2850",
		Open24h:   "2950",
	}, tickers["ETHUSD"])

	_, err = p.Ticker(context.Background(), []string{"ETHUSD"})
	require.NoError(t, err)
	assert.Equal(t, "ETHUSD", seen.Get("pair"))
}

func TestClientErrors(t *testing.T) {
	srv, _ := newTickerServer(t, `{"error":["EQuery:Unknown asset pair","EGeneral:Invalid arguments"]}`)
	p := New(NewClient(WithBaseURL(srv.URL), WithRateLimit(0)))
	_, err := p.Ticker(context.Background(), []string{"NOPE"})
	var pe *provider.Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "Kraken API error: EQuery:Unknown asset pair, EGeneral:Invalid arguments", err.Error())

	srv2, _ := newTickerServer(t, `<html>bad gateway</html>`)
	p = New(NewClient(WithBaseURL(srv2.URL), WithRateLimit(0)))
	_, err = p.Ticker(context.Background(), nil)
	var parseErr *provider.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "Failed to parse response: <html>bad gateway</html>", err.Error())

	_, err = p.Balance(context.Background())
	assert.EqualError(t, err, "private endpoint Balance requires a request signer")
}

type headerSigner struct{}

func (headerSigner) Sign(req *http.Request, urlPath string, form url.Values) error {
	req.Header.Set("API-Key", "key")
	req.Header.Set("API-Sign", urlPath+":"+form.Get("nonce"))
	return nil
}

func TestPrivateEndpointUsesSigner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/0/private/Balance", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.NotEmpty(t, r.PostForm.Get("nonce"))
		assert.Equal(t, "key", r.Header.Get("API-Key"))
		assert.Equal(t, "/0/private/Balance:"+r.PostForm.Get("nonce"), r.Header.Get("API-Sign"))
		_, _ = w.Write([]byte(`{"error":[],"result":{"XXBT":"0.5000000000","ZEUR":"0.0000","ADA":"12.5"}}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(0), WithSigner(headerSigner{}))
	assert.True(t, c.HasSigner())
	b, err := New(c).Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, provider.Balances{"BTC": "0.5", "ADA": "12.5"}, b)
}

func TestSnapshotAccount(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "account.yaml")
	require.NoError(t, os.WriteFile(path, []byte(snapshotYAML), 0o600))

	acct, err := LoadSnapshot(path)
	require.NoError(t, err)

	srv, _ := newTickerServer(t, tickerBody)
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	p := New(
		NewClient(WithBaseURL(srv.URL), WithRateLimit(0)),
		WithAccount(acct),
		WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	orders, err := p.OpenOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, provider.Order{
		ID:        "OA",
		Pair:      "XDGUSD",
		Type:      "buy",
		OrderType: "limit",
		Price:     "0.08",
		Volume:    "100",
		Status:    "open",
		OpenTime:  "2023-11-14T22:13:20.250Z",
	}, orders[0])
	assert.Equal(t, "OB", orders[1].ID)

	trades, err := p.TradeHistory(ctx)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "T2", trades[0].ID)
	assert.Equal(t, "2023-11-14T22:21:40.000Z", trades[0].Time)
	assert.Equal(t, "0.1", trades[0].Volume)

	summary, err := p.PortfolioSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6251.26, summary.TotalUSD)
	assert.Equal(t, "2024-03-01T00:00:00.000Z", summary.UpdatedAt)
	require.Len(t, summary.Assets, 3)
	assert.Equal(t, "ETH", summary.Assets[0].Asset)
	assert.Equal(t, "USD", summary.Assets[1].Asset)
	assert.Equal(t, "DOGE", summary.Assets[2].Asset)

	_, err = ParseSnapshot([]byte("balance: [1, 2"))
	assert.Error(t, err)
}

func TestNormalizeTradesCapsHistory(t *testing.T) {
	raw := map[string]RawTrade{}
	for i := 0; i < 30; i++ {
		raw[string(rune('A'+i))] = RawTrade{Time: float64(1700000000 + i)}
	}
	trades := NormalizeTrades(raw)
	require.Len(t, trades, MaxTrades)
	assert.Equal(t, string(rune('A'+29)), trades[0].ID)
}

func TestCleanAssetName(t *testing.T) {
	assert.Equal(t, "BTC", CleanAssetName("XXBT"))
	assert.Equal(t, "DOGE", CleanAssetName("XXDG"))
	assert.Equal(t, "USD", CleanAssetName("ZUSD"))
	assert.Equal(t, "SOL", CleanAssetName("SOL"))
}
