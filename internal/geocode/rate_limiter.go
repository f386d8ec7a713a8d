package geocode

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

var (
	ErrRateLimited     = eris.New("geocode: caller rate limited")
	ErrBudgetExhausted = eris.New("geocode: daily budget exhausted")
)

// Limiter gates provider calls. Allow consumes one unit for caller or
// returns one of the sentinel errors above.
type Limiter interface {
	Allow(caller string) error
}

// KeyedLimiter holds a token bucket per caller plus one process-wide daily
// budget of new locations. State lives in memory only.
type KeyedLimiter struct {
	mu        sync.Mutex
	perMinute int
	limiters  map[string]*rate.Limiter

	dailyLimit int
	day        string
	used       int

	now func() time.Time
}

func NewKeyedLimiter(perMinute, dailyLimit int) *KeyedLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &KeyedLimiter{
		perMinute:  perMinute,
		limiters:   map[string]*rate.Limiter{},
		dailyLimit: dailyLimit,
		now:        time.Now,
	}
}

func (l *KeyedLimiter) Allow(caller string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	day := now.UTC().Format("2006-01-02")
	if day != l.day {
		l.day = day
		l.used = 0
	}
	if l.dailyLimit > 0 && l.used >= l.dailyLimit {
		return ErrBudgetExhausted
	}

	lim, ok := l.limiters[caller]
	if !ok {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.perMinute)
		l.limiters[caller] = lim
	}
	if !lim.AllowN(now, 1) {
		return ErrRateLimited
	}

	l.used++
	return nil
}
