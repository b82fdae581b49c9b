package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// RawTick is one historical price point as returned by the venue's public
// REST API, before mapping into a settlement ReferenceTick.
type RawTick struct {
	TimestampMs int64   `json:"t"`
	Bid         float64 `json:"b,string"`
	Ask         float64 `json:"a,string"`
	Last        float64 `json:"p,string"`
}

// BackfillClient fetches historical reference price data ahead of a run.
// It is the only network-touching piece of the oracle package — once
// backfill completes and is written into a dataset bundle, the hermetic
// core never calls out again.
type BackfillClient struct {
	http    *resty.Client
	limiter *TokenBucket
	logger  *slog.Logger
}

// NewBackfillClient creates a client against baseURL with the teacher's
// retry-on-5xx policy, throttled to 5 requests/sec with a burst of 10.
func NewBackfillClient(baseURL string, logger *slog.Logger) *BackfillClient {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Accept", "application/json")

	return &BackfillClient{
		http:    httpClient,
		limiter: NewTokenBucket(10, 5),
		logger:  logger.With("component", "oracle.backfill"),
	}
}

// FetchRange fetches raw reference ticks for symbol within [startMs, endMs).
func (c *BackfillClient) FetchRange(ctx context.Context, symbol string, startMs, endMs int64) ([]RawTick, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("oracle: backfill rate limit: %w", err)
	}
	var result []RawTick
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":    symbol,
			"startTime": fmt.Sprintf("%d", startMs),
			"endTime":   fmt.Sprintf("%d", endMs),
		}).
		SetResult(&result).
		Get("/klines")
	if err != nil {
		return nil, fmt.Errorf("oracle: backfill request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("oracle: backfill status %d: %s", resp.StatusCode(), resp.String())
	}
	c.logger.Info("backfilled reference ticks", "symbol", symbol, "count", len(result))
	return result, nil
}
