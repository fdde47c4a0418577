package providers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

// RateLimiter is a token bucket holding at most rpm tokens and refilling rpm
// tokens per minute.
type RateLimiter struct {
	mu       sync.Mutex
	rpm      int
	tokens   float64
	updated  time.Time
	consumed int64
	last429  time.Time
}

// RateLimiterStatus is the limiter state reported by the health endpoint.
type RateLimiterStatus struct {
	TokensAvailable int       `json:"tokens_available"`
	TokensLimit     int       `json:"tokens_limit"`
	TotalConsumed   int64     `json:"total_consumed"`
	Last429Time     time.Time `json:"last_429_time,omitempty"`
}

// DefaultRPM is used when a provider does not configure a rate limit.
const DefaultRPM = 60

// NewRateLimiter creates a full bucket. A non-positive rpm selects DefaultRPM.
func NewRateLimiter(rpm int) *RateLimiter {
	if rpm <= 0 {
		rpm = DefaultRPM
	}
	return &RateLimiter{rpm: rpm, tokens: float64(rpm), updated: time.Now()}
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refill()
		if r.tokens >= 1 {
			r.tokens--
			r.consumed++
			r.mu.Unlock()
			return nil
		}
		wait := time.Duration((1 - r.tokens) * float64(time.Minute) / float64(r.rpm))
		r.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Record429 empties the bucket after the provider reports rate limiting.
func (r *RateLimiter) Record429() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last429 = time.Now()
	r.tokens = 0
}

// Status returns the current limiter state.
func (r *RateLimiter) Status() RateLimiterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refill()
	return RateLimiterStatus{
		TokensAvailable: int(r.tokens),
		TokensLimit:     r.rpm,
		TotalConsumed:   r.consumed,
		Last429Time:     r.last429,
	}
}

// refill must be called with mu held.
func (r *RateLimiter) refill() {
	now := time.Now()
	r.tokens = min(r.tokens+now.Sub(r.updated).Minutes()*float64(r.rpm), float64(r.rpm))
	r.updated = now
}

// RateLimitedClient gates every Chat call on a shared RateLimiter.
type RateLimitedClient struct {
	client  LLMClient
	limiter *RateLimiter
}

// WithRateLimit wraps client so each request consumes one token from limiter.
func WithRateLimit(client LLMClient, limiter *RateLimiter) *RateLimitedClient {
	return &RateLimitedClient{client: client, limiter: limiter}
}

// Name returns the wrapped client's name.
func (c *RateLimitedClient) Name() string {
	return c.client.Name()
}

// Chat waits for a token, then forwards the request.
func (c *RateLimitedClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	result, err := c.client.Chat(ctx, req)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests {
		c.limiter.Record429()
	}
	return result, err
}

var _ LLMClient = (*RateLimitedClient)(nil)
