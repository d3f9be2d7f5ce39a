package toolbox

import (
	"context"

	"github.com/pkg/errors"

	"github.com/go-go-golems/kraken-agui/pkg/inference/tools"
	"github.com/go-go-golems/kraken-agui/pkg/provider"
)

const (
	ToolPortfolioSummary = "getPortfolioSummary"
	ToolBalance          = "getBalance"
	ToolTicker           = "getTicker"
	ToolOpenOrders       = "getOpenOrders"
	ToolTradeHistory     = "getTradeHistory"
)

// TickerArgs are the arguments of getTicker.
type TickerArgs struct {
	Pairs []string `json:"pairs,omitempty" jsonschema:"description=Trading pairs like LINKUSD\\, SOLUSD\\, ETHUSD\\, XDGUSD. If not specified\\, returns common pairs."`
}

type spec struct {
	name        string
	description string
	widget      string
	fn          interface{}
}

func accountTools(p provider.Provider) []spec {
	return []spec{
		{
			name:        ToolPortfolioSummary,
			description: "Get complete portfolio summary with total USD value, per-asset breakdown, and allocation. Use this when the user asks about their portfolio, holdings, total value, or wants an overview.",
			widget:      "showPortfolio",
			fn: func(ctx context.Context) (*provider.PortfolioSummary, error) {
				return p.PortfolioSummary(ctx)
			},
		},
		{
			name:        ToolBalance,
			description: "Get raw portfolio balances from Kraken. Use when user asks specifically about balances or how much of an asset they hold.",
			fn: func(ctx context.Context) (provider.Balances, error) {
				return p.Balance(ctx)
			},
		},
		{
			name:        ToolTicker,
			description: "Get current market prices for crypto assets. Use when user asks about prices, market data, or specific coin values.",
			widget:      "showPrices",
			fn: func(ctx context.Context, args TickerArgs) (provider.Tickers, error) {
				return p.Ticker(ctx, args.Pairs)
			},
		},
		{
			name:        ToolOpenOrders,
			description: "Get pending/open orders on Kraken. Use when user asks about open orders, pending orders, or limit orders.",
			widget:      "showOrders",
			fn: func(ctx context.Context) ([]provider.Order, error) {
				return p.OpenOrders(ctx)
			},
		},
		{
			name:        ToolTradeHistory,
			description: "Get recent trade history/fills from Kraken. Use when user asks about recent trades, fills, or transaction history.",
			widget:      "showTrades",
			fn: func(ctx context.Context) ([]provider.Trade, error) {
				return p.TradeHistory(ctx)
			},
		},
	}
}

// Register adds the account tools backed by p to reg, in catalog order.
func Register(reg tools.ToolRegistry, p provider.Provider) error {
	for _, s := range accountTools(p) {
		var opts []tools.ToolOption
		if s.widget != "" {
			opts = append(opts, tools.WithWidget(s.widget))
		}
		def, err := tools.NewToolFromFunc(s.name, s.description, s.fn, opts...)
		if err != nil {
			return errors.Wrapf(err, "could not create tool %s", s.name)
		}
		if err := reg.RegisterTool(s.name, *def); err != nil {
			return errors.Wrapf(err, "could not register tool %s", s.name)
		}
	}
	return nil
}

// NewRegistry returns a registry holding the account tools.
func NewRegistry(p provider.Provider) (*tools.InMemoryToolRegistry, error) {
	reg := tools.NewInMemoryToolRegistry()
	if err := Register(reg, p); err != nil {
		return nil, err
	}
	return reg, nil
}
