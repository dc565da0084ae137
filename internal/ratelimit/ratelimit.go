package ratelimit

import (
	"fmt"
	"log/slog"
	"sync"
)

// AIRateLimiter caps the classifier requests one run may spend, per provider
// and in total. A limit of 0 means unlimited.
type AIRateLimiter struct {
	mu       sync.Mutex
	counts   map[string]int
	limits   map[string]int
	total    int
	maxTotal int
	denied   int
}

// NewAIRateLimiter creates a limiter with per-provider limits and a total cap.
func NewAIRateLimiter(limits map[string]int, maxTotal int) *AIRateLimiter {
	l := make(map[string]int, len(limits))
	for k, v := range limits {
		l[k] = v
	}
	return &AIRateLimiter{
		counts:   make(map[string]int),
		limits:   l,
		maxTotal: maxTotal,
	}
}

// Use records one request for provider, or returns an error if a limit is
// already reached.
func (rl *AIRateLimiter) Use(provider string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if err := rl.check(provider); err != nil {
		rl.denied++
		return err
	}

	rl.counts[provider]++
	rl.total++

	slog.Debug("AI usage", "provider", provider, "used", rl.counts[provider], "limit", rl.limits[provider], "total", rl.total, "total_limit", rl.maxTotal)
	return nil
}

func (rl *AIRateLimiter) check(provider string) error {
	if limit := rl.limits[provider]; limit > 0 && rl.counts[provider] >= limit {
		return fmt.Errorf("%s rate limit reached (%d/%d)", provider, rl.counts[provider], limit)
	}
	if rl.maxTotal > 0 && rl.total >= rl.maxTotal {
		return fmt.Errorf("total AI rate limit reached (%d/%d)", rl.total, rl.maxTotal)
	}
	return nil
}

// GetStats returns current limiter statistics.
func (rl *AIRateLimiter) GetStats() map[string]interface{} {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	stats := map[string]interface{}{
		"total_used":  rl.total,
		"total_limit": rl.maxTotal,
		"denied":      rl.denied,
	}
	for provider, n := range rl.counts {
		stats[provider+"_used"] = n
		stats[provider+"_limit"] = rl.limits[provider]
	}
	return stats
}
