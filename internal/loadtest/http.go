package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"github.com/arxon-dev/topicperf/internal/domain/model"
	"github.com/arxon-dev/topicperf/pkg/logger"
)

// Submission results.
const (
	resultAccepted  = "accepted"
	resultDuplicate = "duplicate"
	resultThrottled = "throttled"
	resultFailed    = "failed"
)

// maxThrottleRetries bounds resubmissions of one outcome after 429s.
const maxThrottleRetries = 20

var errThrottled = errors.New("throttled")

// Client is a small JSON client for the topicperf API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a Client with the given per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request body: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if out != nil && resp.StatusCode < http.StatusBadRequest {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	code, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnhealthy, err)
	}
	if code != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, code)
	}
	return nil
}

// Performance fetches one (subject, topic) record.
func (c *Client) Performance(ctx context.Context, subjectID, topic string) (model.PerformanceRecord, error) {
	var rec model.PerformanceRecord
	path := "/performance/" + url.PathEscape(subjectID) + "/" + url.PathEscape(topic)
	code, err := c.do(ctx, http.MethodGet, path, nil, &rec)
	if err != nil {
		return rec, err
	}
	if code != http.StatusOK {
		return rec, fmt.Errorf("get %s: status %d", path, code)
	}
	return rec, nil
}

// Ranking fetches GET /ranking?limit=n.
func (c *Client) Ranking(ctx context.Context, n int) ([]model.RankingEntry, error) {
	var entries []model.RankingEntry
	code, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/ranking?limit=%d", n), nil, &entries)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, fmt.Errorf("get ranking: status %d", code)
	}
	return entries, nil
}

// submit posts one outcome, backing off while the server reports a full queue.
func (c *Client) submit(ctx context.Context, o model.Outcome) string {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = time.Second

	result, err := backoff.Retry(ctx, func() (string, error) {
		code, err := c.do(ctx, http.MethodPost, "/outcomes", o, nil)
		if err != nil {
			return resultFailed, backoff.Permanent(err)
		}
		switch code {
		case http.StatusAccepted:
			return resultAccepted, nil
		case http.StatusConflict:
			return resultDuplicate, nil
		case http.StatusTooManyRequests, http.StatusServiceUnavailable:
			return resultThrottled, errThrottled
		default:
			return resultFailed, backoff.Permanent(fmt.Errorf("status %d", code))
		}
	}, backoff.WithBackOff(b), backoff.WithMaxTries(maxThrottleRetries))
	if err != nil {
		if errors.Is(err, errThrottled) {
			return resultThrottled
		}
		return resultFailed
	}
	return result
}

// Submit posts every outcome with config.Workers concurrent requests and
// reports which ones the server accepted.
func Submit(ctx context.Context, config *Config, client *Client, outcomes []model.Outcome, stats *Stats) ([]bool, error) {
	log := logger.Get()
	log.Info(ctx, "submitting outcomes", logger.Int("outcomes", len(outcomes)), logger.Int("workers", config.Workers))

	var submitted, accepted, duplicate, throttled, failed atomic.Int64
	ok := make([]bool, len(outcomes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Workers)
	for i, o := range outcomes {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			n := submitted.Add(1)
			switch client.submit(gctx, o) {
			case resultAccepted:
				ok[i] = true
				accepted.Add(1)
			case resultDuplicate:
				duplicate.Add(1)
			case resultThrottled:
				throttled.Add(1)
			default:
				failed.Add(1)
			}
			if config.Verbose && n%1000 == 0 {
				log.Info(gctx, "progress",
					logger.Int("submitted", int(n)),
					logger.Int("failed", int(failed.Load())))
			}
			return nil
		})
	}
	err := g.Wait()

	stats.Submitted = int(submitted.Load())
	stats.Accepted = int(accepted.Load())
	stats.Duplicate = int(duplicate.Load())
	stats.Throttled = int(throttled.Load())
	stats.Failed = int(failed.Load())

	log.Info(ctx, "submission completed",
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("throttled", stats.Throttled),
		logger.Int("failed", stats.Failed))
	return ok, err
}
