package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPSender posts message batches to the push provider's REST endpoint.
type HTTPSender struct {
	url    string
	token  string
	client *http.Client
	logger *zap.Logger
}

func NewHTTPSender(url, token string, l *zap.Logger) *HTTPSender {
	return &HTTPSender{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: l,
	}
}

func (s *HTTPSender) Send(ctx context.Context, messages []Message) ([]Ticket, error) {
	if len(messages) == 0 {
		return nil, nil
	}
	if len(messages) > MaxBatchSize {
		return nil, fmt.Errorf("batch of %d exceeds transport limit of %d", len(messages), MaxBatchSize)
	}

	payload, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("marshal push batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	res, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("push send: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		return nil, fmt.Errorf("push provider returned status %d", res.StatusCode)
	}

	var body struct {
		Data []Ticket `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode push tickets: %w", err)
	}

	s.logger.Debug("Push batch sent",
		zap.Int("messages", len(messages)),
		zap.Int("tickets", len(body.Data)))
	return body.Data, nil
}
