// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package kassal is a client for the Kassal grocery product API. Every
// request goes through the rolling-window limiter the client was built
// with, so one limiter shared across clients caps the combined rate.
package kassal

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"nutricompare/internal/apperrors"
	"nutricompare/internal/metrics"
	"nutricompare/internal/ratelimit"
)

const (
	DefaultBaseURL = "https://kassal.app/api/v1"
	DefaultTimeout = 15 * time.Second

	// MaxPageSize is the largest page the product search accepts.
	MaxPageSize = 100

	maxBodyBytes = 32 << 20

	opSearch = "search"
	opDetail = "detail"
)

// Options configures a Client.
type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration     // per request, excluding limiter waits
	Limiter *ratelimit.Window // nil disables limiting
}

// Client performs authenticated, rate-limited calls to the product API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	limiter *ratelimit.Window
}

// New creates a client. Missing options fall back to the public API URL
// and a 15 second timeout.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: opts.Limiter,
	}
}

// Configured reports whether the client has an API token.
func (c *Client) Configured() bool {
	return c != nil && c.token != ""
}

// Page is one page of product search results.
type Page struct {
	Items []json.RawMessage
	Next  string
}

// HasNext reports whether the API advertised a following page.
func (p *Page) HasNext() bool {
	return p.Next != ""
}

type pageEnvelope struct {
	Data  []json.RawMessage `json:"data"`
	Links struct {
		Next *string `json:"next"`
	} `json:"links"`
}

// SearchProducts fetches one page of the products in categoryID. Pages
// start at 1.
func (c *Client) SearchProducts(ctx context.Context, categoryID string, page, size int) (*Page, error) {
	if _, err := strconv.Atoi(categoryID); err != nil {
		return nil, fmt.Errorf("search products: category id %q: %w", categoryID, apperrors.ErrValidation)
	}
	if size <= 0 || size > MaxPageSize {
		size = MaxPageSize
	}

	q := url.Values{}
	q.Set("category_id", categoryID)
	q.Set("size", strconv.Itoa(size))
	q.Set("page", strconv.Itoa(page))

	body, err := c.get(ctx, opSearch, "/products", q)
	if err != nil {
		return nil, err
	}

	var env pageEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &apperrors.UpstreamError{Op: opSearch, Err: fmt.Errorf("decode page: %w", err)}
	}
	p := &Page{Items: env.Data}
	if env.Links.Next != nil {
		p.Next = *env.Links.Next
	}
	return p, nil
}

// ProductDetail fetches the full record of a single product.
func (c *Client) ProductDetail(ctx context.Context, productID string) (json.RawMessage, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, fmt.Errorf("product detail: %w", apperrors.ErrValidation)
	}

	body, err := c.get(ctx, opDetail, "/products/"+url.PathEscape(productID), nil)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, &apperrors.UpstreamError{Op: opDetail, Err: fmt.Errorf("product %s: invalid JSON", productID)}
	}
	return body, nil
}

// get waits for the limiter, performs the request and returns the decoded
// body of a 200 response. Context errors are returned unwrapped so callers
// can tell cancellation from an upstream failure.
func (c *Client) get(ctx context.Context, op, path string, query url.Values) ([]byte, error) {
	if c.limiter != nil {
		start := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		metrics.LimiterWait.Observe(time.Since(start).Seconds())
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("kassal request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "br, gzip")

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.UpstreamDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(op, metrics.Status(0)).Inc()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &apperrors.UpstreamError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	metrics.UpstreamRequests.WithLabelValues(op, metrics.Status(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &apperrors.UpstreamError{Op: op, Status: resp.StatusCode}
	}

	reader, err := decodedBody(resp)
	if err != nil {
		return nil, &apperrors.UpstreamError{Op: op, Err: err}
	}
	defer reader.Close()

	body, err := io.ReadAll(io.LimitReader(reader, maxBodyBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &apperrors.UpstreamError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}

type brotliReadCloser struct {
	br *brotli.Reader
	rc io.ReadCloser
}

func (b *brotliReadCloser) Read(p []byte) (int, error) { return b.br.Read(p) }
func (b *brotliReadCloser) Close() error               { return b.rc.Close() }

// decodedBody unwraps the response according to its Content-Encoding.
// Setting Accept-Encoding by hand turns off the transport's transparent
// gzip handling, so both encodings are handled here.
func decodedBody(resp *http.Response) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "br":
		return &brotliReadCloser{br: brotli.NewReader(resp.Body), rc: resp.Body}, nil
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		return gz, nil
	default:
		return io.NopCloser(resp.Body), nil
	}
}
