package signal

import (
	"sync"
	"time"

	"github.com/dkeye/RoomChat/internal/domain"
	"golang.org/x/time/rate"
)

// ConnRateLimiter gives every connection its own token bucket: limit events
// per interval, with bursts of up to limit.
type ConnRateLimiter struct {
	mu       sync.Mutex
	limiters map[domain.ConnID]*rate.Limiter
	every    rate.Limit
	burst    int
	now      func() time.Time
}

func NewConnRateLimiter(limit int, interval time.Duration) *ConnRateLimiter {
	return &ConnRateLimiter{
		limiters: make(map[domain.ConnID]*rate.Limiter),
		every:    rate.Every(interval / time.Duration(limit)),
		burst:    limit,
		now:      time.Now,
	}
}

func (rl *ConnRateLimiter) Allow(cid domain.ConnID) bool {
	rl.mu.Lock()
	lim, ok := rl.limiters[cid]
	if !ok {
		lim = rate.NewLimiter(rl.every, rl.burst)
		rl.limiters[cid] = lim
	}
	now := rl.now()
	rl.mu.Unlock()

	return lim.AllowN(now, 1)
}

// Forget drops the bucket of a closed connection.
func (rl *ConnRateLimiter) Forget(cid domain.ConnID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.limiters, cid)
}
