package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"shopify-order-sync/internal/config"

	"golang.org/x/time/rate"
)

type ShipStationClient interface {
	// CancelShipment voids the label of a shipment.
	CancelShipment(ctx context.Context, shipmentID string) error
}

type shipStationClientImpl struct {
	httpClient *http.Client
	baseApiURL string
	apiKey     string
	limiter    *rate.Limiter
}

func NewShipStationClient(cfg *config.ShipStation) ShipStationClient {
	rps := cfg.RPS
	if rps <= 0 {
		rps = 1
	}
	return &shipStationClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseApiURL: cfg.BaseURL,
		apiKey:     cfg.APIKey,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (c *shipStationClientImpl) CancelShipment(ctx context.Context, shipmentID string) error {
	if c.apiKey == "" {
		return fmt.Errorf("shipstation api key not configured")
	}
	id, err := strconv.ParseInt(shipmentID, 10, 64)
	if err != nil {
		return fmt.Errorf("parse shipment id %q: %w", shipmentID, err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for shipstation limiter: %w", err)
	}

	body, err := json.Marshal(map[string]int64{"shipmentId": id})
	if err != nil {
		return fmt.Errorf("marshal req payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseApiURL+"/shipments/voidlabel",
		bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("shipstation error %d: %s", resp.StatusCode, string(b))
	}

	var result struct {
		Approved bool   `json:"approved"`
		Message  string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode shipstation response: %w", err)
	}
	if !result.Approved {
		return fmt.Errorf("shipstation refused to void shipment %s: %s", shipmentID, result.Message)
	}
	return nil
}
