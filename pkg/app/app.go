package app

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/kraken-agui/pkg/compose"
	"github.com/go-go-golems/kraken-agui/pkg/conversation"
	"github.com/go-go-golems/kraken-agui/pkg/inference/engine"
	"github.com/go-go-golems/kraken-agui/pkg/inference/tools"
	"github.com/go-go-golems/kraken-agui/pkg/provider"
	"github.com/go-go-golems/kraken-agui/pkg/provider/kraken"
	"github.com/go-go-golems/kraken-agui/pkg/run"
	"github.com/go-go-golems/kraken-agui/pkg/selector"
	"github.com/go-go-golems/kraken-agui/pkg/settings"
	"github.com/go-go-golems/kraken-agui/pkg/steps/ai/openai"
	"github.com/go-go-golems/kraken-agui/pkg/toolbox"
)

// App holds the long-lived collaborators shared by every run.
type App struct {
	Settings    *settings.Settings
	Provider    provider.Provider
	Registry    *tools.InMemoryToolRegistry
	Engine      engine.Engine
	Coordinator *run.Coordinator
}

type Option func(*builder)

type builder struct {
	provider     provider.Provider
	engine       engine.Engine
	toolObserver tools.ResultCallback
	runObserver  run.Observer
}

// WithProvider replaces the Kraken provider, mostly for tests.
func WithProvider(p provider.Provider) Option {
	return func(b *builder) { b.provider = p }
}

// WithEngine replaces the OpenAI engine.
func WithEngine(e engine.Engine) Option {
	return func(b *builder) { b.engine = e }
}

func WithToolObserver(cb tools.ResultCallback) Option {
	return func(b *builder) { b.toolObserver = cb }
}

func WithRunObserver(o run.Observer) Option {
	return func(b *builder) { b.runObserver = o }
}

// Build wires the provider, the tool registry, the reasoning engine and the
// run coordinator according to s. The engine is only created when the
// deployment mode calls the reasoning service.
func Build(s *settings.Settings, options ...Option) (*App, error) {
	b := &builder{}
	for _, o := range options {
		o(b)
	}

	ret := &App{Settings: s, Provider: b.provider, Engine: b.engine}

	if ret.Provider == nil {
		p, err := NewKrakenProvider(s.Kraken)
		if err != nil {
			return nil, err
		}
		ret.Provider = p
	}

	reg, err := toolbox.NewRegistry(ret.Provider)
	if err != nil {
		return nil, errors.Wrap(err, "could not register account tools")
	}
	ret.Registry = reg

	if ret.Engine == nil && s.NeedsModel() {
		e, err := openai.NewOpenAIEngine(s.OpenAI, s.Tools)
		if err != nil {
			return nil, errors.Wrap(err, "could not create reasoning engine")
		}
		ret.Engine = e
	}

	mode := s.Mode()
	sel, err := ret.newSelector()
	if err != nil {
		return nil, err
	}

	var execOpts []tools.ExecutorOption
	if b.toolObserver != nil {
		execOpts = append(execOpts, tools.WithObserver(b.toolObserver))
	}

	opts := []run.Option{
		run.WithMode(mode),
		run.WithSelector(sel),
		run.WithExecutor(tools.NewExecutor(s.Tools, execOpts...)),
	}
	if b.runObserver != nil {
		opts = append(opts, run.WithObserver(b.runObserver))
	}
	if ret.Engine != nil {
		narrator := compose.NewModelNarrator(ret.Engine)
		if mode.Narrator == compose.NarratorModel {
			opts = append(opts, run.WithNarrator(narrator))
		}
		opts = append(opts, run.WithSecondPass(narrator))
	}

	c, err := run.NewCoordinator(reg, opts...)
	if err != nil {
		return nil, err
	}
	ret.Coordinator = c

	log.Info().
		Str("strategy", mode.Strategy).
		Str("output", mode.Output).
		Str("narrator", mode.Narrator).
		Bool("second_pass", mode.SecondPass).
		Str("error_style", mode.ErrorStyle).
		Strs("tools", tools.Names(reg)).
		Msg("assistant configured")
	return ret, nil
}

func (a *App) newSelector() (selector.Selector, error) {
	s := a.Settings
	if s.Selector.Strategy == selector.StrategyHeuristic {
		rs := &selector.RuleSet{Rules: selector.DefaultRules(), DefaultTool: s.Selector.DefaultTool}
		if s.Selector.RulesFile != "" {
			loaded, err := selector.LoadRules(s.Selector.RulesFile)
			if err != nil {
				return nil, err
			}
			rs = loaded
		}
		for _, r := range rs.Rules {
			if !a.Registry.HasTool(r.Tool) {
				return nil, errors.Errorf("selector rule refers to unknown tool %s", r.Tool)
			}
		}
		return selector.NewHeuristicSelectorFromRuleSet(rs), nil
	}

	if a.Engine == nil {
		return nil, errors.New("model selection needs a reasoning engine")
	}
	counter, err := conversation.NewTokenCounter(s.OpenAI.Model)
	if err != nil {
		return nil, err
	}
	return selector.NewModelSelector(a.Engine, a.Registry,
		selector.WithToolConfig(s.Tools),
		selector.WithHistoryBudget(counter, s.OpenAI.MaxHistoryTokens),
	), nil
}

// NewKrakenProvider builds the Kraken provider. Private endpoints are
// served from the account snapshot file when one is configured.
func NewKrakenProvider(s settings.KrakenSettings) (*kraken.Provider, error) {
	clientOpts := []kraken.ClientOption{kraken.WithRateLimit(s.RateLimit)}
	if s.BaseURL != "" {
		clientOpts = append(clientOpts, kraken.WithBaseURL(s.BaseURL))
	}
	client := kraken.NewClient(clientOpts...)
	var opts []kraken.Option
	if len(s.DefaultPairs) > 0 {
		opts = append(opts, kraken.WithDefaultPairs(s.DefaultPairs))
	}
	if s.AccountFile != "" {
		acct, err := kraken.LoadSnapshot(s.AccountFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, kraken.WithAccount(acct))
	} else {
		log.Warn().Msg("no kraken.account_file configured and no request signer available, private account tools will fail")
	}
	return kraken.New(client, opts...), nil
}
