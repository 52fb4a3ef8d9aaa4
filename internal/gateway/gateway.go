package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// PaymentGateway is the opaque outbound surface toward the payment
// provider. Request signing and provider-specific envelopes live behind it.
type PaymentGateway interface {
	Refund(ctx context.Context, providerPaymentID string, amount float64) error
}

type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

func NewHTTPGateway(baseURL, apiKey string, l *zap.Logger) *HTTPGateway {
	return &HTTPGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  l,
	}
}

func (g *HTTPGateway) Refund(ctx context.Context, providerPaymentID string, amount float64) error {
	payload, err := json.Marshal(map[string]interface{}{
		"payment_id": providerPaymentID,
		"amount":     amount,
	})
	if err != nil {
		return fmt.Errorf("marshal refund request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/refunds", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build refund request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	res, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("refund request for payment %s: %w", providerPaymentID, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		return fmt.Errorf("gateway refund returned status %d", res.StatusCode)
	}

	g.logger.Info("Refund issued",
		zap.String("provider_payment_id", providerPaymentID),
		zap.Float64("amount", amount))
	return nil
}
