package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"storefront/internal/identity"
	"storefront/internal/logger"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Rate Limit Tiers
const (
	// Checkout / merge (Strict)
	limitStrict = rate.Limit(2)
	burstStrict = 5

	// General (Default)
	limitGeneral = rate.Limit(10)
	burstGeneral = 20

	// Internal / trusted services
	limitInternal = rate.Limit(100)
	burstInternal = 200
)

const (
	visitorIdleTTL  = 3 * time.Minute
	cleanupInterval = time.Minute
)

// visitor holds the rate limiter and the last time it was seen.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter throttles requests per cart owner, so a guest and the account
// they later sign in to keep separate quotas.
type Limiter struct {
	internalKey string
	strictPaths map[string]bool

	mu       sync.Mutex
	visitors map[string]*visitor
	now      func() time.Time
}

// NewLimiter builds a limiter. Requests carrying internalKey in
// X-Service-Auth get the internal tier; POSTs to strictPaths get the strict one.
func NewLimiter(internalKey string, strictPaths ...string) *Limiter {
	l := &Limiter{
		internalKey: internalKey,
		strictPaths: make(map[string]bool, len(strictPaths)),
		visitors:    make(map[string]*visitor),
		now:         time.Now,
	}
	for _, p := range strictPaths {
		l.strictPaths[p] = true
	}
	return l
}

// Run evicts idle visitors until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

func (l *Limiter) cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, v := range l.visitors {
		if l.now().Sub(v.lastSeen) > visitorIdleTTL {
			delete(l.visitors, key)
			removed++
		}
	}
	return removed
}

func (l *Limiter) getVisitor(key string, r rate.Limit, b int) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, exists := l.visitors[key]
	if !exists {
		limiter := rate.NewLimiter(r, b)
		l.visitors[key] = &visitor{limiter, l.now()}
		return limiter
	}

	v.lastSeen = l.now()
	return v.limiter
}

// Middleware must run after the identity resolver.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, burst, tier := l.resolveRateTier(r)
		key := visitorKey(r) + ":" + tier

		if !l.getVisitor(key, limit, burst).Allow() {
			logger.FromCtx(r.Context()).Warn("rate limited",
				zap.String("tier", tier),
				zap.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", "1")
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func visitorKey(r *http.Request) string {
	if owner, ok := identity.FromContext(r.Context()); ok {
		return owner.String()
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	return "ip:" + ip
}

func (l *Limiter) resolveRateTier(r *http.Request) (rate.Limit, int, string) {
	if l.internalKey != "" && r.Header.Get("X-Service-Auth") == l.internalKey {
		return limitInternal, burstInternal, "internal"
	}

	if r.Method == http.MethodPost && l.strictPaths[r.URL.Path] {
		return limitStrict, burstStrict, "strict"
	}

	return limitGeneral, burstGeneral, "general"
}
