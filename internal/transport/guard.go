// Package transport paces and protects delivery to the chat platform.
//
// Guard wraps any domain.Transport. Sends are paced by a token bucket, and a
// rate-limit answer from the platform blocks all traffic until the wait has
// elapsed. The wait is persisted so a restarted process keeps honoring it.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/domain"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/config"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/kvstore"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/types"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/retry"
)

const (
	floodWaitKey   = "transport:flood_wait"
	floodWaitField = "until"
)

// Guard is a rate-limit aware domain.Transport.
type Guard struct {
	next        domain.Transport
	store       kvstore.Store
	limiter     *rate.Limiter
	maxAttempts int
	logger      types.Logger
	metrics     types.Metrics

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu           sync.Mutex
	blockedUntil time.Time
}

// GuardOption customizes a Guard.
type GuardOption func(*Guard)

// WithGuardClock replaces the clock and sleeper, for tests.
func WithGuardClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) GuardOption {
	return func(g *Guard) {
		g.now = now
		g.sleep = sleep
	}
}

// NewGuard wraps next. store may be nil, in which case waits are kept in
// memory only.
func NewGuard(next domain.Transport, store kvstore.Store, cfg config.TransportConfig, logger types.Logger, metrics types.Metrics, opts ...GuardOption) *Guard {
	limit := rate.Inf
	if cfg.MessagesPerSecond > 0 {
		limit = rate.Limit(cfg.MessagesPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	attempts := cfg.MaxSendAttempts
	if attempts <= 0 {
		attempts = 1
	}

	g := &Guard{
		next:        next,
		store:       store,
		limiter:     rate.NewLimiter(limit, burst),
		maxAttempts: attempts,
		logger:      logger,
		metrics:     metrics,
		now:         time.Now,
		sleep:       retry.Sleep,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Restore loads a persisted flood wait.
func (g *Guard) Restore(ctx context.Context) error {
	if g.store == nil {
		return nil
	}

	rec, err := g.store.Read(ctx, floodWaitKey)
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read flood wait: %w", err)
	}

	until, err := time.Parse(time.RFC3339Nano, string(rec[floodWaitField]))
	if err != nil {
		return fmt.Errorf("failed to parse flood wait: %w", err)
	}

	g.mu.Lock()
	if until.After(g.blockedUntil) {
		g.blockedUntil = until
	}
	g.mu.Unlock()

	if until.After(g.now()) {
		g.logger.Warn(ctx, "Restored active flood wait", types.Fields{
			"until": until.Format(time.RFC3339),
		})
	}
	return nil
}

// BlockedFor returns the remaining flood wait, or zero.
func (g *Guard) BlockedFor() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	if d := g.blockedUntil.Sub(g.now()); d > 0 {
		return d
	}
	return 0
}

// Send waits out any flood wait, then sends p. A rate-limit answer is
// honored and the send retried up to the configured attempts.
func (g *Guard) Send(ctx context.Context, chatID int64, p domain.Payload) (domain.ArtifactRef, error) {
	var ref domain.ArtifactRef
	err := g.do(ctx, "send", func(ctx context.Context) error {
		var err error
		ref, err = g.next.Send(ctx, chatID, p)
		return err
	})
	return ref, err
}

// Forward waits out any flood wait, then forwards messageIDs.
func (g *Guard) Forward(ctx context.Context, destChatID, srcChatID int64, messageIDs []int) ([]domain.ArtifactRef, error) {
	var refs []domain.ArtifactRef
	err := g.do(ctx, "forward", func(ctx context.Context) error {
		var err error
		refs, err = g.next.Forward(ctx, destChatID, srcChatID, messageIDs)
		return err
	})
	return refs, err
}

// Edit refuses with domain.ErrBlocked while a flood wait is active. Status
// edits are superseded by later ones, so they are never queued behind a wait.
func (g *Guard) Edit(ctx context.Context, chatID int64, messageID int, text string) error {
	if g.BlockedFor() > 0 {
		return domain.ErrBlocked
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}

	err := g.next.Edit(ctx, chatID, messageID, text)
	if rl, ok := domain.AsRateLimit(err); ok {
		g.block(ctx, "edit", rl.RetryAfter)
	}
	return err
}

func (g *Guard) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if wait := g.BlockedFor(); wait > 0 {
			g.logger.Info(ctx, "Waiting for flood wait to elapse", types.Fields{
				"operation": op,
				"wait":      wait.String(),
			})
			if sErr := g.sleep(ctx, wait); sErr != nil {
				return sErr
			}
		}
		if wErr := g.limiter.Wait(ctx); wErr != nil {
			return wErr
		}

		err = fn(ctx)
		rl, ok := domain.AsRateLimit(err)
		if !ok {
			if err != nil {
				g.metrics.RecordError("transport."+op, "failed")
			} else {
				g.metrics.RecordSuccess("transport." + op)
			}
			return err
		}
		g.block(ctx, op, rl.RetryAfter)
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, g.maxAttempts, err)
}

func (g *Guard) block(ctx context.Context, op string, wait time.Duration) {
	until := g.now().Add(wait)

	g.mu.Lock()
	if until.After(g.blockedUntil) {
		g.blockedUntil = until
	}
	g.mu.Unlock()

	g.metrics.RecordError("transport."+op, "rate_limited")
	g.metrics.RecordRetry("flood_wait")
	g.logger.Warn(ctx, "Transport rate limited", types.Fields{
		"operation": op,
		"wait":      wait.String(),
	})

	if g.store == nil {
		return
	}
	rec := kvstore.Record{floodWaitField: []byte(until.UTC().Format(time.RFC3339Nano))}
	if err := g.store.Replace(ctx, floodWaitKey, rec); err != nil {
		g.logger.Error(ctx, "Failed to persist flood wait", err, nil)
	}
}
