package position

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RateSource supplies the current SOL/USD exchange rate.
type RateSource interface {
	SOLUSDRate(ctx context.Context) (float64, error)
}

const rateTTL = 2 * time.Minute

// HTTPRateSource reads the rate from a simple-price endpoint and caches
// it for two minutes. On refresh failure a stale rate keeps serving.
type HTTPRateSource struct {
	url    string
	http   *http.Client
	logger *zap.Logger

	mu        sync.Mutex
	rate      float64
	fetchedAt time.Time
}

func NewHTTPRateSource(url string, logger *zap.Logger) *HTTPRateSource {
	return &HTTPRateSource{
		url:    url,
		http:   &http.Client{Timeout: 5 * time.Second},
		logger: logger.Named("solusd"),
	}
}

func (s *HTTPRateSource) SOLUSDRate(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rate > 0 && time.Since(s.fetchedAt) < rateTTL {
		return s.rate, nil
	}

	rate, err := s.fetch(ctx)
	if err != nil {
		if s.rate > 0 {
			s.logger.Warn("rate refresh failed, serving stale", zap.Error(err))
			return s.rate, nil
		}
		return 0, err
	}

	s.rate = rate
	s.fetchedAt = time.Now()
	return rate, nil
}

func (s *HTTPRateSource) fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return 0, err
	}
	res, err := s.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("rate endpoint returned %d", res.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<16))
	if err != nil {
		return 0, err
	}

	var payload struct {
		Solana struct {
			USD float64 `json:"usd"`
		} `json:"solana"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("decode rate response: %w", err)
	}
	if payload.Solana.USD <= 0 {
		return 0, fmt.Errorf("rate endpoint returned non-positive rate")
	}
	return payload.Solana.USD, nil
}
