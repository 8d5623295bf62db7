// Adaptive rate-limiting middleware for llm.Client, grounded on
// features/model/middleware/ratelimit.go's AdaptiveRateLimiter: a
// token-bucket budget sized in tokens-per-minute that backs off on
// ErrRateLimited and probes upward on sustained success (AIMD), with an
// optional rmap-backed cluster-wide budget so multiple processes sharing a
// provider key converge on one effective limit.
package llm

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	minTPM           = 1000
	backoffFactor    = 0.5
	probeIncrement   = 0.1
	probeInterval    = 30 * time.Second
	avgCharsPerToken = 3
	responseTokenPad = 500
)

// ClusterMap is the subset of *rmap.Map used for cluster-wide budget
// coordination, narrowed so tests can substitute a fake.
type ClusterMap interface {
	Get(key string) (string, bool)
	SetIfNotExists(ctx context.Context, key, value string) (bool, error)
	TestAndSet(ctx context.Context, key, test, value string) (string, error)
}

// RateLimiterOptions configures an AdaptiveRateLimiter.
type RateLimiterOptions struct {
	// InitialTPM is the starting tokens-per-minute budget.
	InitialTPM int
	// Cluster, if non-nil, coordinates the effective budget across
	// processes sharing this rmap.Map under Key.
	Cluster ClusterMap
	Key     string
}

// AdaptiveRateLimiter wraps an llm.Client with an adaptive token-bucket
// budget. It halves the budget on ErrRateLimited and nudges it back up
// after a window without errors.
type AdaptiveRateLimiter struct {
	mu        sync.Mutex
	limiter   *rate.Limiter
	tpm       float64
	lastProbe time.Time
	cluster   ClusterMap
	key       string
}

// NewAdaptiveRateLimiter constructs a limiter with the given starting
// budget. A zero InitialTPM defaults to 60000 (a conservative default
// shared-tier budget). When Cluster and Key are set, the budget is seeded
// into the map under Key here, unless Key already holds a value.
func NewAdaptiveRateLimiter(opt RateLimiterOptions) *AdaptiveRateLimiter {
	tpm := float64(opt.InitialTPM)
	if tpm <= 0 {
		tpm = 60000
	}
	l := &AdaptiveRateLimiter{
		limiter:   rate.NewLimiter(rate.Limit(tpm/60.0), int(tpm)),
		tpm:       tpm,
		lastProbe: time.Time{},
		cluster:   opt.Cluster,
		key:       opt.Key,
	}
	if l.cluster != nil && l.key != "" {
		if _, ok := l.cluster.Get(l.key); !ok {
			_, _ = l.cluster.SetIfNotExists(context.Background(), l.key, strconv.FormatFloat(tpm, 'f', 0, 64))
		}
	}
	return l
}

// Middleware wraps a Client with adaptive rate limiting.
func (l *AdaptiveRateLimiter) Middleware() func(Client) Client {
	return func(next Client) Client {
		return &limitedClient{next: next, limiter: l}
	}
}

type limitedClient struct {
	next    Client
	limiter *AdaptiveRateLimiter
}

func (c *limitedClient) Complete(ctx context.Context, req Request) (Response, error) {
	if err := c.limiter.wait(ctx, req); err != nil {
		return Response{}, err
	}
	resp, err := c.next.Complete(ctx, req)
	c.limiter.observe(err)
	return resp, err
}

func (c *limitedClient) Stream(ctx context.Context, req Request) (Streamer, error) {
	if err := c.limiter.wait(ctx, req); err != nil {
		return nil, err
	}
	s, err := c.next.Stream(ctx, req)
	c.limiter.observe(err)
	return s, err
}

// wait blocks until the local budget admits the request's estimated token
// cost, first adopting the cluster-wide budget when it is lower.
func (l *AdaptiveRateLimiter) wait(ctx context.Context, req Request) error {
	l.refreshFromCluster()
	n := estimateTokens(req)
	return l.limiter.WaitN(ctx, n)
}

// observe records the outcome of a completed call: backoff on rate-limit
// errors, probe upward after a quiet interval.
func (l *AdaptiveRateLimiter) observe(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err != nil && isRateLimitErr(err) {
		l.backoffLocked()
		return
	}
	if time.Since(l.lastProbe) >= probeInterval {
		l.probeLocked()
	}
}

func (l *AdaptiveRateLimiter) backoffLocked() {
	l.tpm = maxFloat(l.tpm*backoffFactor, minTPM)
	l.applyLocked()
	l.publishLocked()
}

func (l *AdaptiveRateLimiter) probeLocked() {
	l.tpm = l.tpm * (1 + probeIncrement)
	l.lastProbe = time.Now()
	l.applyLocked()
	l.publishLocked()
}

func (l *AdaptiveRateLimiter) applyLocked() {
	l.limiter.SetLimit(rate.Limit(l.tpm / 60.0))
	l.limiter.SetBurst(int(l.tpm))
}

// publishLocked best-effort compare-and-swaps the shared budget to the new
// value. A lost race just means a sibling's own observation wins instead;
// the next refreshFromCluster call reconciles either way.
func (l *AdaptiveRateLimiter) publishLocked() {
	if l.cluster == nil || l.key == "" {
		return
	}
	cur, ok := l.cluster.Get(l.key)
	if !ok {
		_, _ = l.cluster.SetIfNotExists(context.Background(), l.key, strconv.FormatFloat(l.tpm, 'f', 0, 64))
		return
	}
	_, _ = l.cluster.TestAndSet(context.Background(), l.key, cur, strconv.FormatFloat(l.tpm, 'f', 0, 64))
}

// refreshFromCluster adopts the cluster-wide budget if another process has
// published a lower value, so a sibling's backoff is honored everywhere.
func (l *AdaptiveRateLimiter) refreshFromCluster() {
	if l.cluster == nil || l.key == "" {
		return
	}
	raw, ok := l.cluster.Get(l.key)
	if !ok {
		return
	}
	shared, err := strconv.ParseFloat(raw, 64)
	if err != nil || shared <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if shared < l.tpm {
		l.tpm = shared
		l.applyLocked()
	}
}

// estimateTokens heuristically sizes a request in tokens: message text
// length over avgCharsPerToken, plus a fixed pad for the response.
func estimateTokens(req Request) int {
	chars := 0
	for _, m := range req.Messages {
		for _, p := range m.Parts {
			switch v := p.(type) {
			case TextPart:
				chars += len(v.Text)
			case ToolResultPart:
				chars += len(v.Content)
			}
		}
	}
	n := chars/avgCharsPerToken + responseTokenPad
	if n < 1 {
		n = 1
	}
	return n
}

func isRateLimitErr(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
