package kraken

import (
	"context"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/kraken-agui/pkg/provider"
)

// Provider implements provider.Provider on top of the Kraken REST API.
// Market data always comes from the public API; account data comes from
// the configured Account.
type Provider struct {
	client       *Client
	account      Account
	defaultPairs []string
	now          func() time.Time
}

var _ provider.Provider = (*Provider)(nil)

type Option func(*Provider)

func WithAccount(a Account) Option {
	return func(p *Provider) {
		p.account = a
	}
}

func WithDefaultPairs(pairs []string) Option {
	return func(p *Provider) {
		if len(pairs) > 0 {
			p.defaultPairs = pairs
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

func New(client *Client, options ...Option) *Provider {
	ret := &Provider{
		client:       client,
		account:      NewAPIAccount(client),
		defaultPairs: DefaultPairs,
		now:          time.Now,
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

func (p *Provider) Balance(ctx context.Context) (provider.Balances, error) {
	raw, err := p.account.Balance(ctx)
	if err != nil {
		return nil, err
	}
	return NormalizeBalance(raw), nil
}

func (p *Provider) Ticker(ctx context.Context, pairs []string) (provider.Tickers, error) {
	if len(pairs) == 0 {
		pairs = p.defaultPairs
	}
	raw := map[string]RawTicker{}
	params := url.Values{"pair": []string{strings.Join(pairs, ",")}}
	if err := p.client.Public(ctx, "Ticker", params, &raw); err != nil {
		return nil, err
	}
	return NormalizeTickers(raw), nil
}

func (p *Provider) OpenOrders(ctx context.Context) ([]provider.Order, error) {
	raw, err := p.account.OpenOrders(ctx)
	if err != nil {
		return nil, err
	}
	return NormalizeOrders(raw), nil
}

func (p *Provider) TradeHistory(ctx context.Context) ([]provider.Trade, error) {
	raw, err := p.account.TradesHistory(ctx)
	if err != nil {
		return nil, err
	}
	return NormalizeTrades(raw), nil
}

// PortfolioSummary fetches balances and default-pair tickers concurrently
// and values the holdings.
func (p *Provider) PortfolioSummary(ctx context.Context) (*provider.PortfolioSummary, error) {
	var balances provider.Balances
	var tickers provider.Tickers

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		balances, err = p.Balance(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		tickers, err = p.Ticker(gctx, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return provider.BuildPortfolioSummary(balances, tickers, p.now())
}
