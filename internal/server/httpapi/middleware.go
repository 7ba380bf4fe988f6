package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dvoronkov/lockbox/internal/common"
	"golang.org/x/time/rate"
)

type ctxKey string

const (
	identityIDKey ctxKey = "identityID"
	userNameKey   ctxKey = "userName"
)

// identityFromContext returns the authenticated identity id, if any.
func identityFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(identityIDKey).(string)
	return id, ok
}

// authMiddleware verifies the bearer session token and stores the identity
// reference in the request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(common.AuthorizationHeaderName)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}

		claims, err := s.sessions.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), identityIDKey, claims.IdentityID)
		ctx = context.WithValue(ctx, userNameKey, claims.UserName)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ipLimiter tracks a token-bucket limiter per client address. Entries for
// clients that have gone quiet are swept periodically; without eviction the
// map grows by one entry per address ever seen.
type ipLimiter struct {
	mu      sync.Mutex
	clients map[string]*ipClient
	rps     rate.Limit
	burst   int
	maxIdle time.Duration
}

type ipClient struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newIPLimiter(rps float64, burst int) *ipLimiter {
	return &ipLimiter{
		clients: make(map[string]*ipClient),
		rps:     rate.Limit(rps),
		burst:   burst,
		maxIdle: 10 * time.Minute,
	}
}

func (l *ipLimiter) limiterFor(addr string) *rate.Limiter {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.clients[host]
	if !ok {
		c = &ipClient{lim: rate.NewLimiter(l.rps, l.burst)}
		l.clients[host] = c
	}
	c.lastSeen = time.Now()
	return c.lim
}

// sweep drops limiters for clients idle longer than maxIdle and reports how
// many were evicted. An evicted client that returns simply gets a fresh,
// full bucket.
func (l *ipLimiter) sweep() int {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for host, c := range l.clients {
		if now.Sub(c.lastSeen) > l.maxIdle {
			delete(l.clients, host)
			removed++
		}
	}
	return removed
}

// run sweeps idle clients periodically until ctx is cancelled.
func (l *ipLimiter) run(ctx context.Context) {
	ticker := time.NewTicker(l.maxIdle / 5)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *ipLimiter) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// rateLimitMiddleware bounds how fast a single client can drive the ceremony
// endpoints. Ceremonies are cheap to begin but each one costs a registry slot
// and a signature verification to finish.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.limiterFor(r.RemoteAddr).Allow() {
			writeError(w, http.StatusTooManyRequests, msgTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
