// Package exchange implements the Polymarket CLOB REST and user-WebSocket
// clients.
//
// The REST client (Client) talks to the CLOB API for order management:
//   - GetOrderBook(s):    GET  /book, /books        — fetch L2 book(s)
//   - GetPrice:           GET  /price                — best price for a side
//   - GetTickSize/NegRisk GET  /tick-size, /neg-risk — per-token market rules
//   - SubmitOrder:        POST /order                — multi-path fall-through submit
//   - PostOrders:         POST /orders                — batch-place signed orders
//   - CancelOrders:       DELETE /order               — cancel by ID
//   - CancelMarketOrders: DELETE /cancel-market-orders — cancel one market's orders
//   - GetOpenOrders:      GET  /data/orders           — list resting orders
//   - DeriveAPIKey:       GET  /auth/derive-api-key  — bootstrap L2 creds from L1 wallet
//
// Book/price/tick-size/neg-risk reads, order placement, and cancellation
// are rate-limited via per-category token buckets; GetOpenOrders and
// DeriveAPIKey are not. Requests on the shared REST client are retried on
// 5xx errors; SubmitOrder goes through SubmitPath, which falls through to
// the next path instead of retrying. Trading requests carry L2 HMAC
// headers, DeriveAPIKey carries L1 headers, and the public reads carry none.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"btcupdown/internal/config"
	"btcupdown/pkg/types"
)

// Client is the Polymarket CLOB REST API client.
type Client struct {
	http    *resty.Client
	auth    *Auth
	rl      *RateLimiter
	submit  *SubmitPath
	dryRun  bool
	logger  *slog.Logger
}

// Auth returns the client's credentials, for components (the user WS feed)
// that need to authenticate against the same account outside the REST path.
func (c *Client) Auth() *Auth { return c.auth }

// NewClient creates a REST client with rate limiting, retry, and a
// low-latency transport (pooled idle connections, short connect timeout).
func NewClient(cfg config.Config, auth *Auth, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.API.CLOBBaseURL).
		SetTransport(lowLatencyTransport()).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:   httpClient,
		auth:   auth,
		rl:     NewRateLimiter(),
		submit: NewSubmitPath(cfg, auth, logger),
		dryRun: cfg.DryRun,
		logger: logger,
	}
}

// GetOrderBook fetches the order book for a single token.
func (c *Client) GetOrderBook(ctx context.Context, tokenID string) (*types.BookResponse, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}

	var result types.BookResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("token_id", tokenID).
		SetResult(&result).
		Get("/book")
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get book: status %d: %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}

// GetOrderBooks fetches the order books for several tokens in one call.
func (c *Client) GetOrderBooks(ctx context.Context, tokenIDs []string) ([]types.BookResponse, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}

	var result []types.BookResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("token_ids", joinComma(tokenIDs)).
		SetResult(&result).
		Get("/books")
	if err != nil {
		return nil, fmt.Errorf("get books: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get books: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result, nil
}

// GetPrice fetches the best price for a token on the given side.
func (c *Client) GetPrice(ctx context.Context, tokenID string, side types.Side) (string, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return "", err
	}

	var result struct {
		Price string `json:"price"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"token_id": tokenID, "side": string(side)}).
		SetResult(&result).
		Get("/price")
	if err != nil {
		return "", fmt.Errorf("get price: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("get price: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result.Price, nil
}

// GetTickSize fetches the minimum price increment for a token.
func (c *Client) GetTickSize(ctx context.Context, tokenID string) (types.TickSize, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return "", err
	}

	var result struct {
		MinimumTickSize string `json:"minimum_tick_size"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("token_id", tokenID).
		SetResult(&result).
		Get("/tick-size")
	if err != nil {
		return "", fmt.Errorf("get tick size: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("get tick size: status %d: %s", resp.StatusCode(), resp.String())
	}
	return types.TickSize(result.MinimumTickSize), nil
}

// GetNegRisk reports whether a token belongs to a neg-risk market.
func (c *Client) GetNegRisk(ctx context.Context, tokenID string) (bool, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return false, err
	}

	var result struct {
		NegRisk bool `json:"neg_risk"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("token_id", tokenID).
		SetResult(&result).
		Get("/neg-risk")
	if err != nil {
		return false, fmt.Errorf("get neg risk: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return false, fmt.Errorf("get neg risk: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result.NegRisk, nil
}

// GetOpenOrders lists resting orders, optionally scoped to one market.
func (c *Client) GetOpenOrders(ctx context.Context, conditionID string) ([]types.OpenOrder, error) {
	req := c.http.R().SetContext(ctx)
	if conditionID != "" {
		req = req.SetQueryParam("market", conditionID)
	}
	headers, err := c.auth.L2Headers("GET", "/data/orders", "")
	if err != nil {
		return nil, fmt.Errorf("l2 headers: %w", err)
	}

	var result []types.OpenOrder
	resp, err := req.SetHeaders(headers).SetResult(&result).Get("/data/orders")
	if err != nil {
		return nil, fmt.Errorf("get open orders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get open orders: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result, nil
}

// SubmitOrder submits one signed order through the multi-path fall-through
// chain (residential proxy -> unblocker -> direct), logging a timing
// breakdown for the attempt that succeeds.
func (c *Client) SubmitOrder(ctx context.Context, order types.SignedOrder, owner string) (*types.OrderResponse, error) {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would submit order", "token_id", order.TokenID, "side", order.Side)
		return &types.OrderResponse{Success: true, OrderID: "dry-run", Status: "live"}, nil
	}
	if err := c.rl.Order.Wait(ctx); err != nil {
		return nil, err
	}

	payload := types.OrderPayload{Order: order, Owner: owner, OrderType: types.OrderTypeGTC}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}
	headers, err := c.auth.L2Headers("POST", "/order", string(body))
	if err != nil {
		return nil, fmt.Errorf("l2 headers: %w", err)
	}

	var result types.OrderResponse
	if err := c.submit.Do(ctx, "/order", headers, body, &result); err != nil {
		return nil, fmt.Errorf("submit order: %w", err)
	}
	return &result, nil
}

// PostOrders places up to 15 signed orders in a single batch.
func (c *Client) PostOrders(ctx context.Context, orders []types.SignedOrder, owner string) ([]types.OrderResponse, error) {
	if len(orders) == 0 {
		return nil, nil
	}
	if len(orders) > 15 {
		return nil, fmt.Errorf("batch limit is 15 orders, got %d", len(orders))
	}
	if c.dryRun {
		c.logger.Info("DRY-RUN: would post orders", "count", len(orders))
		results := make([]types.OrderResponse, len(orders))
		for i := range orders {
			results[i] = types.OrderResponse{Success: true, OrderID: fmt.Sprintf("dry-run-%d", i), Status: "live"}
		}
		return results, nil
	}
	if err := c.rl.Order.Wait(ctx); err != nil {
		return nil, err
	}

	payloads := make([]types.OrderPayload, len(orders))
	for i, o := range orders {
		payloads[i] = types.OrderPayload{Order: o, Owner: owner, OrderType: types.OrderTypeGTC}
	}

	body, err := json.Marshal(payloads)
	if err != nil {
		return nil, fmt.Errorf("marshal orders: %w", err)
	}
	headers, err := c.auth.L2Headers("POST", "/orders", string(body))
	if err != nil {
		return nil, fmt.Errorf("l2 headers: %w", err)
	}

	var results []types.OrderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(payloads).
		SetResult(&results).
		Post("/orders")
	if err != nil {
		return nil, fmt.Errorf("post orders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("post orders: status %d: %s", resp.StatusCode(), resp.String())
	}
	return results, nil
}

// CancelOrders cancels multiple orders by ID.
func (c *Client) CancelOrders(ctx context.Context, orderIDs []string) (*types.CancelResponse, error) {
	if len(orderIDs) == 0 {
		return &types.CancelResponse{}, nil
	}
	if c.dryRun {
		c.logger.Info("DRY-RUN: would cancel orders", "count", len(orderIDs))
		return &types.CancelResponse{Canceled: orderIDs}, nil
	}
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return nil, err
	}

	payload := struct {
		OrderIDs []string `json:"orderIDs"`
	}{OrderIDs: orderIDs}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal cancel request: %w", err)
	}
	headers, err := c.auth.L2Headers("DELETE", "/order", string(body))
	if err != nil {
		return nil, fmt.Errorf("l2 headers: %w", err)
	}

	var result types.CancelResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(json.RawMessage(body)).
		SetResult(&result).
		Delete("/order")
	if err != nil {
		return nil, fmt.Errorf("cancel orders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("cancel orders: status %d: %s", resp.StatusCode(), resp.String())
	}

	c.logger.Info("orders cancelled", "count", len(result.Canceled))
	return &result, nil
}

// CancelMarketOrders cancels all resting orders for a market. Idempotent on
// the server — calling it twice produces the same terminal state.
func (c *Client) CancelMarketOrders(ctx context.Context, conditionID string) (*types.CancelResponse, error) {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would cancel market orders", "market", conditionID)
		return &types.CancelResponse{}, nil
	}
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return nil, err
	}

	body := fmt.Sprintf(`{"market":"%s"}`, conditionID)
	headers, err := c.auth.L2Headers("DELETE", "/cancel-market-orders", body)
	if err != nil {
		return nil, fmt.Errorf("l2 headers: %w", err)
	}

	var result types.CancelResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(json.RawMessage(body)).
		SetResult(&result).
		Delete("/cancel-market-orders")
	if err != nil {
		return nil, fmt.Errorf("cancel market orders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("cancel market orders: status %d: %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}

// DeriveAPIKey derives L2 API credentials via L1 authentication.
func (c *Client) DeriveAPIKey(ctx context.Context) (*Credentials, error) {
	headers, err := c.auth.L1Headers(0)
	if err != nil {
		return nil, fmt.Errorf("l1 headers: %w", err)
	}

	var result Credentials
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetResult(&result).
		Get("/auth/derive-api-key")
	if err != nil {
		return nil, fmt.Errorf("derive api key: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("derive api key: status %d: %s", resp.StatusCode(), resp.String())
	}

	c.auth.SetCredentials(result)
	c.logger.Info("API key derived", "api_key", result.ApiKey)
	return &result, nil
}

func joinComma(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}
