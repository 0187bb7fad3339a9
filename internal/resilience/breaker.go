package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrBreakerOpen is returned without calling the service while the breaker
// is open.
var ErrBreakerOpen = eris.New("resilience: breaker open")

// Breaker stops calling a service after Threshold consecutive failures and
// lets a single probe through once Cooldown has elapsed.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	failures int
	openedAt time.Time
	open     bool
	probing  bool
}

// NewBreaker returns a closed breaker. Non-positive arguments fall back to
// five failures and a 30s cooldown.
func NewBreaker(name string, threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{name: name, threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Allow reports whether a call may proceed. After the cooldown exactly one
// caller is let through until it reports its result.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return nil
	}
	if b.probing || b.now().Sub(b.openedAt) < b.cooldown {
		return eris.Wrapf(ErrBreakerOpen, "%s", b.name)
	}
	b.probing = true
	return nil
}

// Record feeds a call's outcome back into the breaker. Only failures that
// count against the service should be passed as non-nil.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		if b.open {
			zap.L().Info("breaker closed", zap.String("service", b.name))
		}
		b.failures = 0
		b.open = false
		b.probing = false
		return
	}

	b.failures++
	if b.probing || b.failures >= b.threshold {
		if !b.open || b.probing {
			zap.L().Warn("breaker opened",
				zap.String("service", b.name),
				zap.Int("failures", b.failures),
				zap.Error(err),
			)
		}
		b.open = true
		b.probing = false
		b.openedAt = b.now()
	}
}

// Open reports whether the breaker is currently rejecting calls.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open && b.now().Sub(b.openedAt) < b.cooldown
}
