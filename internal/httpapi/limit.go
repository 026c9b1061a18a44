package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// gate caps concurrent measurements. Callers that cannot enter are
// rejected, never queued.
type gate struct {
	mu       sync.Mutex
	inFlight int
	max      int
}

func newGate(max int) *gate {
	g := &gate{}
	g.setMax(max)
	return g
}

func (g *gate) setMax(max int) {
	if max < 1 {
		max = 1
	}
	g.mu.Lock()
	g.max = max
	g.mu.Unlock()
}

func (g *gate) tryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight >= g.max {
		return false
	}
	g.inFlight++
	return true
}

func (g *gate) release() {
	g.mu.Lock()
	if g.inFlight > 0 {
		g.inFlight--
	}
	g.mu.Unlock()
}

const limiterIdle = 10 * time.Minute

// clientLimiter is a token bucket per client IP.
type clientLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*clientEntry
	now     func() time.Time
}

type clientEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

func newClientLimiter(perSec float64, burst int) *clientLimiter {
	l := &clientLimiter{clients: make(map[string]*clientEntry), now: time.Now}
	l.setLimit(perSec, burst)
	return l
}

// setLimit changes the rate for all clients and forgets existing buckets.
func (l *clientLimiter) setLimit(perSec float64, burst int) {
	if burst < 1 {
		burst = 1
	}
	lim := rate.Inf
	if perSec > 0 {
		lim = rate.Limit(perSec)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim == l.limit && burst == l.burst {
		return
	}
	l.limit, l.burst = lim, burst
	clear(l.clients)
}

func (l *clientLimiter) allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	e, ok := l.clients[key]
	if !ok {
		if len(l.clients) > 1024 {
			l.sweepLocked(now)
		}
		e = &clientEntry{lim: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = e
	}
	e.seen = now
	l.mu.Unlock()
	return e.lim.AllowN(now, 1)
}

func (l *clientLimiter) sweepLocked(now time.Time) {
	for k, e := range l.clients {
		if now.Sub(e.seen) > limiterIdle {
			delete(l.clients, k)
		}
	}
}

func (l *clientLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, slow down."})
			return
		}
		c.Next()
	}
}
