// Package client is a typed HTTP client for the order API.
package client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/kart-orders/internal/domain/order"
	"github.com/xenking/kart-orders/internal/domain/product"
	"github.com/xenking/kart-orders/internal/wire"
)

// Scope selects which orders ListOrders returns.
type Scope string

const (
	// ScopeCustomer lists the caller's own orders.
	ScopeCustomer Scope = "customer"
	// ScopeOperator lists every order and requires operator credentials.
	ScopeOperator Scope = "operator"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its transport is still
// wrapped with otelhttp.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithBearerToken authenticates as the subject of a session token.
func WithBearerToken(token string) Option {
	return func(cl *Client) {
		cl.authorize = func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
	}
}

// WithAPIKey authenticates with an operator console API key.
func WithAPIKey(key string) Option {
	return func(cl *Client) {
		cl.authorize = func(r *http.Request) { r.Header.Set("api_key", key) }
	}
}

// WithTracerProvider sets the tracer provider of the client transport.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cl *Client) { cl.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider of the client transport.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(cl *Client) { cl.meterProvider = mp }
}

// Client calls the order API. Non-2xx responses are returned as *wire.Error.
type Client struct {
	base      *url.URL
	http      *http.Client
	authorize func(*http.Request)

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// New creates a Client for the API rooted at baseURL, e.g.
// "http://localhost:8080/api".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("base url %q must be absolute", baseURL)
	}

	c := &Client{
		base:      u,
		http:      &http.Client{},
		authorize: func(*http.Request) {},
	}
	for _, o := range opts {
		o(c)
	}

	transport := c.http.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	var otelOpts []otelhttp.Option
	if c.tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(c.tracerProvider))
	}
	if c.meterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(c.meterProvider))
	}
	instrumented := *c.http
	instrumented.Transport = otelhttp.NewTransport(transport, otelOpts...)
	c.http = &instrumented

	return c, nil
}

// Products returns the catalog.
func (c *Client) Products(ctx context.Context) ([]product.Product, error) {
	var out []product.Product
	err := c.do(ctx, http.MethodGet, "/products", nil, nil, nil, func(d *jx.Decoder) error {
		var err error
		out, err = wire.DecodeProducts(d)
		return err
	})
	return out, err
}

// Quote prices a cart without placing an order.
func (c *Client) Quote(ctx context.Context, req order.QuoteRequest) (*order.Quote, error) {
	var out *order.Quote
	err := c.do(ctx, http.MethodPost, "/cart/quote", nil, nil,
		func(e *jx.Encoder) { wire.EncodeQuoteRequest(e, req) },
		func(d *jx.Decoder) error {
			var err error
			out, err = wire.DecodeQuote(d)
			return err
		})
	return out, err
}

// PlaceOrder places an order. A non-empty idempotencyKey makes retries
// return the first order instead of charging again.
func (c *Client) PlaceOrder(ctx context.Context, req wire.PlaceOrder, idempotencyKey string) (*order.Order, error) {
	var header http.Header
	if idempotencyKey != "" {
		header = http.Header{"Idempotency-Key": []string{idempotencyKey}}
	}
	return c.orderCall(ctx, http.MethodPost, "/orders", nil, header, req.Encode)
}

// ListOrders returns orders in the given scope, newest first.
func (c *Client) ListOrders(ctx context.Context, scope Scope) ([]order.Order, error) {
	var out []order.Order
	q := url.Values{"scope": []string{string(scope)}}
	err := c.do(ctx, http.MethodGet, "/orders", q, nil, nil, func(d *jx.Decoder) error {
		var err error
		out, err = wire.DecodeOrders(d)
		return err
	})
	return out, err
}

// Order returns a single order.
func (c *Client) Order(ctx context.Context, id string) (*order.Order, error) {
	return c.orderCall(ctx, http.MethodGet, "/orders/"+url.PathEscape(id), nil, nil, nil)
}

// History returns the status changes of an order, oldest first.
func (c *Client) History(ctx context.Context, id string) ([]order.StatusChange, error) {
	var out []order.StatusChange
	err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(id)+"/history", nil, nil, nil,
		func(d *jx.Decoder) error {
			var err error
			out, err = wire.DecodeHistory(d)
			return err
		})
	return out, err
}

// Transition moves an order to target.
func (c *Client) Transition(ctx context.Context, id string, target order.Status) (*order.Order, error) {
	return c.orderCall(ctx, http.MethodPatch, "/orders/"+url.PathEscape(id)+"/status", nil, nil,
		func(e *jx.Encoder) { wire.EncodeTransition(e, target) })
}

func (c *Client) orderCall(
	ctx context.Context,
	method, path string,
	query url.Values,
	header http.Header,
	body func(*jx.Encoder),
) (*order.Order, error) {
	var out order.Order
	err := c.do(ctx, method, path, query, header, body, func(d *jx.Decoder) error {
		var err error
		out, err = wire.DecodeOrder(d)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(
	ctx context.Context,
	method, path string,
	query url.Values,
	header http.Header,
	body func(*jx.Encoder),
	decode func(*jx.Decoder) error,
) error {
	u := c.base.JoinPath(path)
	u.RawQuery = query.Encode()

	var rd io.Reader
	if body != nil {
		e := jx.GetEncoder()
		defer jx.PutEncoder(e)
		body(e)
		rd = bytes.NewReader(e.Bytes())
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr, err := wire.DecodeError(jx.DecodeBytes(data))
		if err != nil || apiErr.Code == 0 {
			return &wire.Error{Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return apiErr
	}
	if err := decode(jx.DecodeBytes(data)); err != nil {
		return errors.Wrapf(err, "decode %s %s", method, path)
	}
	return nil
}

// IsStatus reports whether err is an API error with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *wire.Error
	return errors.As(err, &apiErr) && apiErr.Code == status
}
