package ratelimit

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/quizstat/internal/monitoring"
	"golang.org/x/time/rate"
)

// Config holds rate limiter configuration
type Config struct {
	PerMinute int           // sustained requests per minute per client
	Burst     int           // bucket size; defaults to PerMinute
	IdleTTL   time.Duration // buckets unused this long are dropped
}

// DefaultConfig returns default rate limiting configuration
func DefaultConfig() Config {
	return Config{
		PerMinute: 60,
		Burst:     10,
		IdleTTL:   10 * time.Minute,
	}
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client key in memory.
type RateLimiter struct {
	config  Config
	metrics *monitoring.Metrics
	now     func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewRateLimiter creates a limiter and starts its idle-bucket sweeper; call
// Close to stop it.
func NewRateLimiter(config Config, metrics *monitoring.Metrics) *RateLimiter {
	if config.PerMinute <= 0 {
		config.PerMinute = DefaultConfig().PerMinute
	}
	if config.Burst <= 0 {
		config.Burst = config.PerMinute
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = DefaultConfig().IdleTTL
	}

	rl := &RateLimiter{
		config:  config,
		metrics: metrics,
		now:     time.Now,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Allow takes one token from key's bucket.
func (rl *RateLimiter) Allow(key string) Result {
	now := rl.now()

	rl.mu.Lock()
	b, ok := rl.buckets[key]
	if !ok {
		perSecond := rate.Limit(float64(rl.config.PerMinute) / 60)
		b = &bucket{limiter: rate.NewLimiter(perSecond, rl.config.Burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	rl.mu.Unlock()

	res := Result{Limit: rl.config.PerMinute}
	if b.limiter.AllowN(now, 1) {
		res.Allowed = true
	} else {
		r := b.limiter.ReserveN(now, 1)
		res.RetryAfter = r.DelayFrom(now)
		r.CancelAt(now)
	}

	if tokens := int(b.limiter.TokensAt(now)); tokens > 0 {
		res.Remaining = tokens
	}
	return res
}

// Size is the number of live buckets.
func (rl *RateLimiter) Size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// Close stops the sweeper. It is safe to call more than once.
func (rl *RateLimiter) Close() {
	rl.once.Do(func() {
		close(rl.stop)
		<-rl.done
	})
}

func (rl *RateLimiter) sweep() {
	defer close(rl.done)
	ticker := time.NewTicker(rl.config.IdleTTL)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			if n := rl.evictIdle(); n > 0 {
				slog.Debug("Evicted idle rate limit buckets", "count", n)
			}
		}
	}
}

func (rl *RateLimiter) evictIdle() int {
	cutoff := rl.now().Add(-rl.config.IdleTTL)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	n := 0
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
			n++
		}
	}
	return n
}

// Stats returns rate limiter statistics
func (rl *RateLimiter) Stats() map[string]interface{} {
	return map[string]interface{}{
		"per_minute": rl.config.PerMinute,
		"burst":      rl.config.Burst,
		"buckets":    rl.Size(),
	}
}
