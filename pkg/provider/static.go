package provider

import (
	"context"
	"time"
)

// Static serves fixed account data. It is used by tests and by the CLI when
// no exchange is configured. Err, when set, is returned by every call.
type Static struct {
	Balances     Balances
	Tickers      Tickers
	DefaultPairs []string
	Orders       []Order
	Trades       []Trade
	Err          error
	Now          func() time.Time
}

var _ Provider = (*Static)(nil)

func (s *Static) Balance(ctx context.Context) (Balances, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	ret := Balances{}
	for k, v := range s.Balances {
		ret[k] = v
	}
	return ret, nil
}

func (s *Static) Ticker(ctx context.Context, pairs []string) (Tickers, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if len(pairs) == 0 {
		pairs = s.DefaultPairs
	}
	ret := Tickers{}
	if len(pairs) == 0 {
		for k, v := range s.Tickers {
			ret[k] = v
		}
		return ret, nil
	}
	for _, p := range pairs {
		if t, ok := s.Tickers[p]; ok {
			ret[p] = t
		}
	}
	return ret, nil
}

func (s *Static) OpenOrders(ctx context.Context) ([]Order, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]Order{}, s.Orders...), nil
}

func (s *Static) TradeHistory(ctx context.Context) ([]Trade, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]Trade{}, s.Trades...), nil
}

func (s *Static) PortfolioSummary(ctx context.Context) (*PortfolioSummary, error) {
	balances, err := s.Balance(ctx)
	if err != nil {
		return nil, err
	}
	tickers, err := s.Ticker(ctx, nil)
	if err != nil {
		return nil, err
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return BuildPortfolioSummary(balances, tickers, now())
}
