// Package shopping talks to the upstream shopping service: product catalog,
// checkout session creation, and post-purchase detail lookup. Every request
// carries a fresh x-req-id for cross-service tracing.
package shopping

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/throwingafit/storefront/internal/cart"
)

// CheckoutProduct is one line sent to checkout session creation.
type CheckoutProduct struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// CheckoutSession is the upstream response for a created session.
type CheckoutSession struct {
	CheckoutURL string `json:"checkoutUrl"`
	SessionID   string `json:"sessionId"`
}

// Product is one catalog entry.
type Product struct {
	ID          string          `json:"id"`
	CreatedAt   string          `json:"createdAt"`
	UpdatedAt   string          `json:"updatedAt"`
	ProjectID   string          `json:"projectId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       int64           `json:"price"` // cents
	Currency    string          `json:"currency"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	Images      *string         `json:"images"`
	Config      json.RawMessage `json:"productConfig"`
}

// PurchaseDetail describes what a completed session bought.
type PurchaseDetail struct {
	Type        string `json:"type"`
	DownloadURL string `json:"downloadUrl,omitempty"`
	ExpiresAt   string `json:"expirsAt,omitempty"`
}

// UpstreamError is a non-2xx reply from the shopping service, passed
// through so gateway callers see the service's own message and code.
type UpstreamError struct {
	Status  int
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("shopping service: %d %s (%s)", e.Status, e.Message, e.Code)
}

// Client calls the shopping service.
type Client struct {
	baseURL   string
	projectID string
	origin    string
	http      *http.Client
	log       *slog.Logger
}

// Config carries the shopping service settings.
type Config struct {
	BaseURL   string
	ProjectID string
	Origin    string // public origin of this gateway, forwarded for redirects
	Timeout   time.Duration
	Logger    *slog.Logger
}

// NewClient builds a shopping client. Timeout defaults to 15 seconds.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		projectID: cfg.ProjectID,
		origin:    cfg.Origin,
		http:      &http.Client{Timeout: cfg.Timeout},
		log:       cfg.Logger,
	}
}

// ProductsFromCart converts cart lines to checkout products, dropping
// non-positive quantities. Duplicate ids are already merged by the cart.
func ProductsFromCart(items []cart.Item) []CheckoutProduct {
	var products []CheckoutProduct
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		products = append(products, CheckoutProduct{ProductID: item.ID, Quantity: item.Quantity})
	}
	return products
}

// CreateCheckoutSession opens a payment session for the given products.
// customerEmail may be empty for guest checkout.
func (c *Client) CreateCheckoutSession(ctx context.Context, products []CheckoutProduct, customerEmail, successURL, cancelURL string) (*CheckoutSession, error) {
	body := map[string]any{
		"projectId":  c.projectID,
		"products":   products,
		"successUrl": successURL,
		"cancelUrl":  cancelURL,
	}
	if customerEmail != "" {
		body["customerEmail"] = customerEmail
	}

	var session CheckoutSession
	if err := c.post(ctx, "/api/payment/create-checkout-session", body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Products returns the active catalog for this project.
func (c *Client) Products(ctx context.Context) ([]Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/products?projectId=%s", c.baseURL, c.projectID), nil)
	if err != nil {
		return nil, fmt.Errorf("build products request: %w", err)
	}
	c.setHeaders(req)

	var products []Product
	if err := c.do(req, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// PurchaseDetail resolves what a completed checkout session bought.
func (c *Client) PurchaseDetail(ctx context.Context, sessionID string) (*PurchaseDetail, error) {
	body := map[string]any{
		"projectId": c.projectID,
		"sessionId": sessionID,
	}
	var detail PurchaseDetail
	if err := c.post(ctx, "/api/products/purchase-detail", body, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req)
	return c.do(req, out)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-req-id", uuid.NewString())
	if c.origin != "" {
		req.Header.Set("x-worker-origin", c.origin)
	}
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call shopping service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		upstream := &UpstreamError{Status: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err := json.Unmarshal(data, upstream); err != nil || upstream.Message == "" {
			upstream.Message = strings.TrimSpace(string(data))
		}
		c.log.Error("shopping service error", "status", resp.StatusCode, "path", req.URL.Path, "code", upstream.Code)
		return upstream
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode shopping response: %w", err)
	}
	return nil
}
