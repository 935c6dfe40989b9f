package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"shopify-order-sync/internal/apperror"
	"shopify-order-sync/internal/config"
	"shopify-order-sync/internal/model"
	"shopify-order-sync/internal/ratelimit"
)

type ShopifyClient interface {
	// GetOrder fetches the current state of an order from the store's Admin
	// API. It returns the decoded order and its raw JSON.
	GetOrder(ctx context.Context, store *model.Store, orderID string) (*model.Order, []byte, error)
}

type shopifyClientImpl struct {
	httpClient *http.Client
	apiVersion string
	limiter    *ratelimit.Limiter
	// baseURL overrides https://<shop domain>, for tests.
	baseURL string
}

func NewShopifyClient(cfg *config.Shopify, limiter *ratelimit.Limiter) ShopifyClient {
	return &shopifyClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		apiVersion: cfg.APIVersion,
		limiter:    limiter,
	}
}

func (c *shopifyClientImpl) storeURL(store *model.Store) string {
	if c.baseURL != "" {
		return strings.TrimRight(c.baseURL, "/")
	}
	return "https://" + store.ShopDomain
}

func (c *shopifyClientImpl) GetOrder(ctx context.Context, store *model.Store, orderID string) (*model.Order, []byte, error) {
	if store.AccessToken == "" {
		return nil, nil, apperror.New(apperror.CodeConfiguration, "store %s has no access token", store.ID)
	}

	if err := c.limiter.WaitIfNeeded(ctx, store.ID, model.APIRest, 1); err != nil {
		return nil, nil, fmt.Errorf("wait for rate limit: %w", err)
	}

	url := fmt.Sprintf("%s/admin/api/%s/orders/%s.json", c.storeURL(store), c.apiVersion, orderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("X-Shopify-Access-Token", store.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read shopify response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil, apperror.New(apperror.CodeNotFound, "order %s not found on %s", orderID, store.ShopDomain)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, fmt.Errorf("shopify error %d: %s", resp.StatusCode, string(body))
	}

	var envelope struct {
		Order json.RawMessage `json:"order"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, nil, fmt.Errorf("decode shopify response: %w", err)
	}
	if len(envelope.Order) == 0 {
		return nil, nil, fmt.Errorf("shopify response has no order")
	}

	order, err := model.ParseOrder(envelope.Order)
	if err != nil {
		return nil, nil, fmt.Errorf("decode shopify order: %w", err)
	}
	return order, envelope.Order, nil
}
