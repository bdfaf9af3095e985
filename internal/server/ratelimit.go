package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// limiters idle this long are dropped on the next sweep
const limiterIdleTTL = 10 * time.Minute

type ownerEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type ownerLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*ownerEntry
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newOwnerLimiter(limit rate.Limit, burst int) *ownerLimiter {
	return &ownerLimiter{
		limiters: make(map[string]*ownerEntry),
		limit:    limit,
		burst:    burst,
		idleTTL:  limiterIdleTTL,
		now:      time.Now,
	}
}

func (o *ownerLimiter) get(ownerID string) *rate.Limiter {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := o.now()
	if now.Sub(o.lastSweep) >= o.idleTTL {
		o.sweep(now)
	}
	e, ok := o.limiters[ownerID]
	if !ok {
		e = &ownerEntry{limiter: rate.NewLimiter(o.limit, o.burst)}
		o.limiters[ownerID] = e
	}
	e.lastSeen = now
	return e.limiter
}

func (o *ownerLimiter) sweep(now time.Time) {
	for id, e := range o.limiters {
		if now.Sub(e.lastSeen) >= o.idleTTL {
			delete(o.limiters, id)
		}
	}
	o.lastSweep = now
}

// RateLimit throttles each owner independently. It must run after
// RequireAuth. rps <= 0 disables it.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst <= 0 {
		burst = 1
	}
	o := newOwnerLimiter(rate.Limit(rps), burst)
	return func(c *gin.Context) {
		if !o.get(OwnerID(c)).Allow() {
			RespondError(c, http.StatusTooManyRequests, "rate_limited", errors.New("too many requests"))
			return
		}
		c.Next()
	}
}
