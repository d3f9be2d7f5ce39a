package kraken

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Account is the source of private account data, in Kraken's raw shapes.
type Account interface {
	Balance(ctx context.Context) (map[string]string, error)
	OpenOrders(ctx context.Context) (map[string]RawOrder, error)
	TradesHistory(ctx context.Context) (map[string]RawTrade, error)
}

// apiAccount reads account data from the private REST endpoints.
type apiAccount struct {
	client *Client
}

func NewAPIAccount(c *Client) Account {
	return &apiAccount{client: c}
}

func (a *apiAccount) Balance(ctx context.Context) (map[string]string, error) {
	ret := map[string]string{}
	if err := a.client.Private(ctx, "Balance", nil, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}

func (a *apiAccount) OpenOrders(ctx context.Context) (map[string]RawOrder, error) {
	var res struct {
		Open map[string]RawOrder `json:"open"`
	}
	if err := a.client.Private(ctx, "OpenOrders", nil, &res); err != nil {
		return nil, err
	}
	return res.Open, nil
}

func (a *apiAccount) TradesHistory(ctx context.Context) (map[string]RawTrade, error) {
	var res struct {
		Trades map[string]RawTrade `json:"trades"`
		Count  int                 `json:"count"`
	}
	if err := a.client.Private(ctx, "TradesHistory", nil, &res); err != nil {
		return nil, err
	}
	return res.Trades, nil
}

// SnapshotAccount serves account data recorded in a YAML file, for running
// without private API credentials.
type SnapshotAccount struct {
	Balances map[string]string   `yaml:"balance"`
	Orders   map[string]RawOrder `yaml:"open_orders"`
	Trades   map[string]RawTrade `yaml:"trades"`
}

func ParseSnapshot(b []byte) (*SnapshotAccount, error) {
	ret := &SnapshotAccount{}
	if err := yaml.Unmarshal(b, ret); err != nil {
		return nil, errors.Wrap(err, "could not parse account snapshot")
	}
	return ret, nil
}

func LoadSnapshot(path string) (*SnapshotAccount, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read account snapshot %s", path)
	}
	return ParseSnapshot(b)
}

func (s *SnapshotAccount) Balance(ctx context.Context) (map[string]string, error) {
	return s.Balances, nil
}

func (s *SnapshotAccount) OpenOrders(ctx context.Context) (map[string]RawOrder, error) {
	return s.Orders, nil
}

func (s *SnapshotAccount) TradesHistory(ctx context.Context) (map[string]RawTrade, error) {
	return s.Trades, nil
}
