// internal/writer/breaker.go
package writer

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/tamzrod/ble-fixture/internal/status"
)

// Default breaker settings.
const (
	DefaultBreakerFailures uint32        = 3
	DefaultBreakerCooldown time.Duration = 30 * time.Second
)

// ErrSkipped is returned while the breaker is open and writes are not attempted.
var ErrSkipped = errors.New("status writer: endpoint unavailable, write skipped")

// BreakerConfig tunes GuardedWriter. Zero values take the defaults.
type BreakerConfig struct {
	// Failures is the number of consecutive failed writes that opens the breaker.
	Failures uint32
	// Cooldown is how long writes are skipped before one probe is let through.
	Cooldown time.Duration
}

// GuardedWriter stops calling an unreachable PLC after repeated failures so
// each publish does not wait out a network timeout. Skipped snapshots are
// never replayed; the inner writer re-asserts the full block on the first
// write that gets through.
type GuardedWriter struct {
	inner   StatusWriter
	breaker *gobreaker.CircuitBreaker[struct{}]
}

var _ StatusWriter = (*GuardedWriter)(nil)

func NewGuardedWriter(inner StatusWriter, cfg BreakerConfig, log zerolog.Logger) *GuardedWriter {
	failures := cfg.Failures
	if failures == 0 {
		failures = DefaultBreakerFailures
	}
	cooldown := cfg.Cooldown
	if cooldown == 0 {
		cooldown = DefaultBreakerCooldown
	}

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "status",
		MaxRequests: 1, // one probe while half-open
		Timeout:     cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Stringer("from", from).
				Stringer("to", to).
				Msg("status breaker state change")
		},
	})

	return &GuardedWriter{inner: inner, breaker: cb}
}

func (g *GuardedWriter) WriteStatus(s status.Snapshot) error {
	_, err := g.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, g.inner.WriteStatus(s)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrSkipped, err)
	}
	return err
}

// State reports the breaker state.
func (g *GuardedWriter) State() gobreaker.State {
	return g.breaker.State()
}
