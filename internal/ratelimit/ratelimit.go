package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var ErrBudgetExhausted = errors.New("daily AI request budget exhausted")

// AIRateLimiter paces AI requests per minute and caps them per day.
type AIRateLimiter struct {
	mu          sync.Mutex
	counts      map[string]int
	totalCount  int
	maxTotal    int // 0 = unlimited
	resetTime   time.Time
	cacheHits   int
	cacheMisses int

	limiter *rate.Limiter
	now     func() time.Time
	log     *slog.Logger
}

// NewAIRateLimiter creates a limiter allowing maxTotal requests a day and
// perMinute requests a minute. Zero disables either limit.
func NewAIRateLimiter(maxTotal, perMinute int, log *slog.Logger) *AIRateLimiter {
	if log == nil {
		log = slog.Default()
	}
	limit := rate.Inf
	burst := 1
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
		burst = perMinute
	}
	return &AIRateLimiter{
		counts:    make(map[string]int),
		maxTotal:  maxTotal,
		resetTime: time.Now().Add(24 * time.Hour),
		limiter:   rate.NewLimiter(limit, burst),
		now:       time.Now,
		log:       log,
	}
}

// CanUse reports whether the daily budget has room left.
func (rl *AIRateLimiter) CanUse() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.checkReset()
	return rl.maxTotal == 0 || rl.totalCount < rl.maxTotal
}

// Use takes one request from the daily budget for provider and waits for a
// per-minute slot. The budget is given back if the wait is cancelled.
func (rl *AIRateLimiter) Use(ctx context.Context, provider string) error {
	rl.mu.Lock()
	rl.checkReset()
	if rl.maxTotal > 0 && rl.totalCount >= rl.maxTotal {
		rl.mu.Unlock()
		rl.log.Warn("AI rate limit reached", "provider", provider, "used", rl.totalCount, "limit", rl.maxTotal)
		return ErrBudgetExhausted
	}
	rl.counts[provider]++
	rl.totalCount++
	rl.cacheMisses++
	used, limit := rl.totalCount, rl.maxTotal
	rl.mu.Unlock()

	if err := rl.limiter.Wait(ctx); err != nil {
		rl.mu.Lock()
		rl.counts[provider]--
		rl.totalCount--
		rl.cacheMisses--
		rl.mu.Unlock()
		return err
	}

	rl.log.Debug("AI usage", "provider", provider, "total", used, "limit", limit)
	return nil
}

// RecordCacheHit records a request answered without calling the provider.
func (rl *AIRateLimiter) RecordCacheHit() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.cacheHits++
}

func (rl *AIRateLimiter) cacheHitRate() float64 {
	total := rl.cacheHits + rl.cacheMisses
	if total == 0 {
		return 0
	}
	return float64(rl.cacheHits) / float64(total) * 100
}

// GetStats returns current rate limiter statistics
func (rl *AIRateLimiter) GetStats() map[string]interface{} {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	providers := make(map[string]int, len(rl.counts))
	for k, v := range rl.counts {
		providers[k] = v
	}
	return map[string]interface{}{
		"providers":      providers,
		"total_used":     rl.totalCount,
		"total_limit":    rl.maxTotal,
		"cache_hits":     rl.cacheHits,
		"cache_misses":   rl.cacheMisses,
		"cache_hit_rate": rl.cacheHitRate(),
		"reset_time":     rl.resetTime.Format(time.RFC3339),
	}
}

// checkReset resets counters if reset time has passed
func (rl *AIRateLimiter) checkReset() {
	now := rl.now()
	if now.After(rl.resetTime) {
		rl.log.Info("resetting AI rate limiter counters", "total_used", rl.totalCount)
		rl.counts = make(map[string]int)
		rl.totalCount = 0
		rl.cacheHits = 0
		rl.cacheMisses = 0
		rl.resetTime = now.Add(24 * time.Hour)
	}
}
