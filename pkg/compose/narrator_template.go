package compose

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/iancoleman/strcase"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const portfolioTemplate = `Portfolio total: ${{ money .totalUsd }}
{{- range .assets }}
- {{ .asset }}: {{ .quantity }}{{ if .price }} @ ${{ .price }}{{ end }} = ${{ money .usdValue }} ({{ share .usdValue $.totalUsd }}%)
{{- end }}`

const balanceTemplate = `Balances:
{{- range $asset, $qty := . }}
- {{ $asset }}: {{ $qty }}
{{- else }} none{{ end }}`

const tickerTemplate = `Market prices:
{{- range $pair, $t := . }}
- {{ $pair }}: last {{ $t.last }} (bid {{ $t.bid }}, ask {{ $t.ask }}, 24h range {{ $t.low24h }} to {{ $t.high24h }})
{{- end }}`

const ordersTemplate = `Open orders: {{ len . }}
{{- range . }}
- {{ .type | upper }} {{ .volume }} {{ .pair }} @ {{ .price }} ({{ .orderType }}, {{ .status }})
{{- end }}`

const tradesTemplate = `Recent trades: {{ len . }}
{{- range . }}
- {{ .time }} {{ .type | upper }} {{ .volume }} {{ .pair }} @ {{ .price }} (cost {{ .cost }}, fee {{ .fee }})
{{- end }}`

const genericTemplate = `{{ humanize .name | title }}:
{{ toPrettyJson .data }}`

// DefaultTemplates are the narration templates of the account tools, keyed
// by tool name.
var DefaultTemplates = map[string]string{
	"getPortfolioSummary": portfolioTemplate,
	"getBalance":          balanceTemplate,
	"getTicker":           tickerTemplate,
	"getOpenOrders":       ordersTemplate,
	"getTradeHistory":     tradesTemplate,
}

// TemplateNarrator renders each outcome with a per-tool text/template.
// Templates see the tool result as decoded JSON, so fields are addressed by
// their wire names.
type TemplateNarrator struct {
	templates map[string]*template.Template
	generic   *template.Template
}

func funcMap() template.FuncMap {
	fm := sprig.TxtFuncMap()
	fm["humanize"] = func(s string) string {
		return strcase.ToDelimited(s, ' ')
	}
	fm["money"] = func(v interface{}) string {
		return toDecimal(v).StringFixed(2)
	}
	fm["share"] = func(part, total interface{}) string {
		t := toDecimal(total)
		if t.IsZero() {
			return "0.0"
		}
		return toDecimal(part).Div(t).Mul(decimal.NewFromInt(100)).StringFixed(1)
	}
	return fm
}

func toDecimal(v interface{}) decimal.Decimal {
	switch x := v.(type) {
	case float64:
		return decimal.NewFromFloat(x)
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		if err == nil {
			return d
		}
	case string:
		d, err := decimal.NewFromString(x)
		if err == nil {
			return d
		}
	case int:
		return decimal.NewFromInt(int64(x))
	}
	return decimal.Zero
}

// NewTemplateNarrator parses templates (tool name to template text). Tools
// without a template are rendered generically.
func NewTemplateNarrator(templates map[string]string) (*TemplateNarrator, error) {
	ret := &TemplateNarrator{templates: map[string]*template.Template{}}
	for name, text := range templates {
		t, err := template.New(name).Funcs(funcMap()).Parse(text)
		if err != nil {
			return nil, errors.Wrapf(err, "could not parse narration template for %s", name)
		}
		ret.templates[name] = t
	}
	g, err := template.New("generic").Funcs(funcMap()).Parse(genericTemplate)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse generic narration template")
	}
	ret.generic = g
	return ret, nil
}

func (n *TemplateNarrator) Narrate(ctx context.Context, in NarrationInput) (string, error) {
	parts := make([]string, 0, len(in.Outcomes))
	for _, o := range in.Outcomes {
		if o.Failed() {
			msg := "unknown error"
			if o.Result != nil && o.Result.Error != "" {
				msg = o.Result.Error
			}
			parts = append(parts, "Could not run "+o.Call.Name+": "+msg)
			continue
		}
		s, err := n.render(o.Call.Name, o.Result.Result)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "\n\n"), nil
}

func (n *TemplateNarrator) render(tool string, result interface{}) (string, error) {
	b, err := json.Marshal(result)
	if err != nil {
		return "", errors.Wrapf(err, "could not serialize result of %s", tool)
	}
	var data interface{}
	if err := json.Unmarshal(b, &data); err != nil {
		return "", errors.Wrapf(err, "could not decode result of %s", tool)
	}

	var buf bytes.Buffer
	t, ok := n.templates[tool]
	if ok {
		err = t.Execute(&buf, data)
	} else {
		err = n.generic.Execute(&buf, map[string]interface{}{"name": tool, "data": data})
	}
	if err != nil {
		return "", errors.Wrapf(err, "could not render narration for %s", tool)
	}
	return strings.TrimSpace(buf.String()), nil
}

var _ Narrator = (*TemplateNarrator)(nil)
