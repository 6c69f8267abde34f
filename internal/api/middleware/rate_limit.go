package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"cardsheets/internal/pkg/errors"
	"cardsheets/internal/platform/config"
)

const (
	LimitAPIRead  = "api_read"
	LimitAPIWrite = "api_write"
	LimitSignup   = "signup"
)

type RateLimiter struct {
	store  *sync.Map // map[string]*Bucket
	limits map[string]int
	now    func() time.Time
	done   chan struct{}
	once   sync.Once
}

type Bucket struct {
	tokens     int
	lastRefill time.Time
	lastAccess time.Time
	mu         sync.Mutex
}

func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		store: &sync.Map{},
		limits: map[string]int{
			LimitAPIRead:  cfg.APIReadPerMinute,
			LimitAPIWrite: cfg.APIWritePerMinute,
			LimitSignup:   cfg.SignupPerMinute,
		},
		now:  time.Now,
		done: make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Close stops the cleanup loop.
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.done) })
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			now := rl.now()
			rl.store.Range(func(key, value interface{}) bool {
				bucket := value.(*Bucket)
				bucket.mu.Lock()
				if now.Sub(bucket.lastAccess) > 10*time.Minute {
					rl.store.Delete(key)
				}
				bucket.mu.Unlock()
				return true
			})
		}
	}
}

// Allow takes one token from the bucket for key. Buckets refill at limit
// tokens per minute.
func (rl *RateLimiter) Allow(key string, limit int) bool {
	now := rl.now()

	val, _ := rl.store.LoadOrStore(key, &Bucket{
		tokens:     limit,
		lastRefill: now,
		lastAccess: now,
	})

	bucket := val.(*Bucket)
	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	bucket.lastAccess = now

	elapsed := now.Sub(bucket.lastRefill)
	refillTokens := int(elapsed.Seconds() * float64(limit) / 60.0)
	if refillTokens > 0 {
		bucket.tokens += refillTokens
		if bucket.tokens > limit {
			bucket.tokens = limit
		}
		bucket.lastRefill = now
	}

	if bucket.tokens > 0 {
		bucket.tokens--
		return true
	}

	return false
}

// Limit keys requests by business when a tenant or token is known and by
// client IP otherwise.
func (rl *RateLimiter) Limit(limitType string) func(http.HandlerFunc) http.HandlerFunc {
	limit := rl.limits[limitType]
	if limit <= 0 {
		limit = 100
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r) + ":" + limitType
			if tenant := TenantFrom(r.Context()); tenant != nil {
				key = tenant.BusinessID + ":" + limitType
			} else if claims := ClaimsFrom(r.Context()); claims != nil && claims.BusinessID != "" {
				key = claims.BusinessID + ":" + limitType
			}

			if !rl.Allow(key, limit) {
				w.Header().Set("Retry-After", "60")
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
				errors.WriteError(w, http.StatusTooManyRequests, errors.ErrCodeRateLimitExceeded, "Rate limit exceeded", nil)
				return
			}

			next(w, r)
		}
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
