package httpserver

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ParticipantLimiter keeps one token bucket per participant for mutating
// routes. Idle buckets are swept lazily.
type ParticipantLimiter struct {
	mu        sync.Mutex
	perMinute int
	entries   map[string]*limiterEntry
	lastSweep time.Time
	now       func() time.Time
	OnLimited func()
}

// NewParticipantLimiter allows perMinute mutations per participant with a
// burst of the same size. A non-positive perMinute disables limiting.
func NewParticipantLimiter(perMinute int) *ParticipantLimiter {
	return &ParticipantLimiter{
		perMinute: perMinute,
		entries:   make(map[string]*limiterEntry),
		now:       time.Now,
	}
}

func (l *ParticipantLimiter) Allow(participantID string) bool {
	if l == nil || l.perMinute <= 0 {
		return true
	}
	l.mu.Lock()
	now := l.now()
	if now.Sub(l.lastSweep) > limiterIdleTTL {
		for id, entry := range l.entries {
			if now.Sub(entry.lastSeen) > limiterIdleTTL {
				delete(l.entries, id)
			}
		}
		l.lastSweep = now
	}
	entry, ok := l.entries[participantID]
	if !ok {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.perMinute),
		}
		l.entries[participantID] = entry
	}
	entry.lastSeen = now
	allowed := entry.limiter.AllowN(now, 1)
	l.mu.Unlock()

	if !allowed && l.OnLimited != nil {
		l.OnLimited()
	}
	return allowed
}

// RetryAfter is the refill interval of one token, rounded up to a second.
func (l *ParticipantLimiter) RetryAfter() time.Duration {
	if l == nil || l.perMinute <= 0 {
		return 0
	}
	interval := time.Minute / time.Duration(l.perMinute)
	if interval < time.Second {
		return time.Second
	}
	return interval.Round(time.Second)
}
