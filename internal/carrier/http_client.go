package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"marketplace/internal/domain"
)

// HTTPClient talks to the carrier's REST API. The tracking number itself is
// generated locally (the carrier accepts client-assigned references), so
// shipment creation survives a slow carrier: registration is fire-and-log.
type HTTPClient struct {
	baseURL string
	prefix  string
	client  *http.Client
	logger  *zap.Logger
}

func NewHTTPClient(baseURL, prefix string, l *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		prefix:  prefix,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  l,
	}
}

func (c *HTTPClient) CreateShipment(ctx context.Context, order *domain.Order) (string, error) {
	trackingNumber := NewTrackingNumber(c.prefix)

	body := map[string]interface{}{
		"reference":      trackingNumber,
		"order_id":       order.ID,
		"declared_value": order.Amount,
		"description":    order.Title,
	}
	if err := c.post(ctx, "/shipments", body, nil); err != nil {
		return "", fmt.Errorf("register shipment with carrier: %w", err)
	}

	c.logger.Info("Shipment registered with carrier",
		zap.String("order_id", order.ID),
		zap.String("tracking_number", trackingNumber))
	return trackingNumber, nil
}

func (c *HTTPClient) CreateLabel(ctx context.Context, shipment *domain.Shipment) (string, error) {
	var resp struct {
		LabelURL string `json:"label_url"`
	}
	body := map[string]string{"tracking_number": shipment.TrackingNumber}
	if err := c.post(ctx, "/labels", body, &resp); err != nil {
		return "", fmt.Errorf("create label for %s: %w", shipment.TrackingNumber, err)
	}
	return resp.LabelURL, nil
}

func (c *HTTPClient) FetchTracking(ctx context.Context, trackingNumber string) (*TrackingInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/tracking/"+trackingNumber, nil)
	if err != nil {
		return nil, fmt.Errorf("build tracking request: %w", err)
	}
	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch tracking for %s: %w", trackingNumber, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("carrier tracking returned status %d", res.StatusCode)
	}
	info := &TrackingInfo{}
	if err := json.NewDecoder(res.Body).Decode(info); err != nil {
		return nil, fmt.Errorf("decode tracking response: %w", err)
	}
	return info, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		return fmt.Errorf("carrier returned status %d", res.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
