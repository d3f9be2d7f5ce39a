package kraken

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/go-go-golems/kraken-agui/pkg/provider"
)

const (
	DefaultBaseURL = "https://api.kraken.com"
	ProviderName   = "kraken"
)

// RequestSigner authenticates requests to private endpoints. form already
// carries the nonce when Sign is called.
type RequestSigner interface {
	Sign(req *http.Request, urlPath string, form url.Values) error
}

// Client talks to the Kraken REST API. Calls are throttled by a token
// bucket; private calls need a RequestSigner.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	signer     RequestSigner
}

type ClientOption func(*Client)

func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit caps requests per second. A value <= 0 disables throttling.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

func WithSigner(s RequestSigner) ClientOption {
	return func(c *Client) {
		c.signer = s
	}
}

func NewClient(options ...ClientOption) *Client {
	ret := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(1), 1),
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

func (c *Client) HasSigner() bool {
	return c.signer != nil
}

type envelope struct {
	Error  []string        `json:"error"`
	Result json.RawMessage `json:"result"`
}

// Public calls /0/public/<endpoint> and decodes the result into out.
func (c *Client) Public(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	urlPath := "/0/public/" + endpoint
	u := c.baseURL + urlPath
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.Wrapf(err, "could not create request for %s", endpoint)
	}
	return c.do(ctx, req, endpoint, out)
}

// Private calls /0/private/<endpoint> with a nonce-carrying form body signed
// by the configured RequestSigner.
func (c *Client) Private(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	if c.signer == nil {
		return errors.Errorf("private endpoint %s requires a request signer", endpoint)
	}
	urlPath := "/0/private/" + endpoint
	form := url.Values{}
	for k, v := range params {
		form[k] = v
	}
	form.Set("nonce", strconv.FormatInt(time.Now().UnixMilli(), 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+urlPath, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrapf(err, "could not create request for %s", endpoint)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if err := c.signer.Sign(req, urlPath, form); err != nil {
		return errors.Wrapf(err, "could not sign request for %s", endpoint)
	}
	return c.do(ctx, req, endpoint, out)
}

func (c *Client) do(ctx context.Context, req *http.Request, endpoint string, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "kraken request %s failed", endpoint)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "could not read kraken response for %s", endpoint)
	}

	log.Debug().
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("kraken request")

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return &provider.ParseError{Provider: ProviderName, Body: string(body), Cause: err}
	}
	if len(env.Error) > 0 {
		return &provider.Error{
			Provider: ProviderName,
			Message:  "Kraken API error: " + strings.Join(env.Error, ", "),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return &provider.ParseError{Provider: ProviderName, Body: string(body), Cause: err}
	}
	return nil
}
