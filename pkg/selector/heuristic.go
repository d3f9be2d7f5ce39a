package selector

import (
	"context"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/kraken-agui/pkg/inference/tools"
)

// NoMatchText is the reply when no rule matches and there is no default
// tool.
const NoMatchText = "I couldn't match that request to an account tool."

// Rule selects Tool when the utterance contains any of Keywords.
type Rule struct {
	Keywords []string `yaml:"keywords"`
	Tool     string   `yaml:"tool"`
}

// RuleSet is the on-disk form of the heuristic rules.
type RuleSet struct {
	Rules       []Rule `yaml:"rules"`
	DefaultTool string `yaml:"default_tool"`
}

func DefaultRules() []Rule {
	return []Rule{
		{Keywords: []string{"portfolio", "holdings", "worth", "total"}, Tool: "getPortfolioSummary"},
		{Keywords: []string{"price", "ticker", "market", "quote"}, Tool: "getTicker"},
		{Keywords: []string{"order", "pending", "limit"}, Tool: "getOpenOrders"},
		{Keywords: []string{"trade", "history", "fill"}, Tool: "getTradeHistory"},
		{Keywords: []string{"balance"}, Tool: "getBalance"},
	}
}

const DefaultTool = "getPortfolioSummary"

func ParseRules(b []byte) (*RuleSet, error) {
	rs := &RuleSet{}
	if err := yaml.Unmarshal(b, rs); err != nil {
		return nil, errors.Wrap(err, "could not parse selector rules")
	}
	for i, r := range rs.Rules {
		if r.Tool == "" {
			return nil, errors.Errorf("rule %d has no tool", i)
		}
		if len(r.Keywords) == 0 {
			return nil, errors.Errorf("rule %d (%s) has no keywords", i, r.Tool)
		}
	}
	return rs, nil
}

func LoadRules(path string) (*RuleSet, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read selector rules %s", path)
	}
	return ParseRules(b)
}

// HeuristicSelector picks at most one tool by keyword matching on the
// latest user utterance. The first matching rule wins.
type HeuristicSelector struct {
	rules       []Rule
	defaultTool string
}

// NewHeuristicSelector copies rules, lowercasing keywords. An empty
// defaultTool selects no tool when nothing matches.
func NewHeuristicSelector(rules []Rule, defaultTool string) *HeuristicSelector {
	ret := &HeuristicSelector{defaultTool: defaultTool}
	for _, r := range rules {
		kws := make([]string, 0, len(r.Keywords))
		for _, k := range r.Keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				kws = append(kws, k)
			}
		}
		ret.rules = append(ret.rules, Rule{Keywords: kws, Tool: r.Tool})
	}
	return ret
}

func NewHeuristicSelectorFromRuleSet(rs *RuleSet) *HeuristicSelector {
	return NewHeuristicSelector(rs.Rules, rs.DefaultTool)
}

// Match returns the tool for utterance, or "" if none applies.
func (s *HeuristicSelector) Match(utterance string) string {
	text := strings.ToLower(utterance)
	for _, r := range s.rules {
		for _, k := range r.Keywords {
			if strings.Contains(text, k) {
				return r.Tool
			}
		}
	}
	return s.defaultTool
}

func (s *HeuristicSelector) Select(ctx context.Context, req *Request) (*Selection, error) {
	utterance := req.Utterance()
	tool := s.Match(utterance)
	log.Debug().Str("utterance", utterance).Str("tool", tool).Msg("heuristic tool match")

	if tool == "" {
		return &Selection{Text: NoMatchText}, nil
	}
	return &Selection{
		Calls: []tools.ToolCall{{
			ID:        newCallID(),
			Name:      tool,
			Arguments: emptyArguments(),
		}},
	}, nil
}

var _ Selector = (*HeuristicSelector)(nil)
