// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package guard provides per-account admission control for authentication flows.
package guard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/clientauth/internal/domain/clientauth/model"
	"github.com/ManuGH/clientauth/internal/log"
	"github.com/ManuGH/clientauth/internal/metrics"
)

const (
	defaultKeyPrefix = "clientauth:flow:"
	defaultLeaseTTL  = 15 * time.Minute
	releaseTimeout   = 5 * time.Second
)

// LeaseStore is the admission set. TryAcquire must be an atomic check-and-insert.
type LeaseStore interface {
	TryAcquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, owner string) error
	Held(ctx context.Context, key string) (bool, error)
}

// Guard admits at most one live flow per account.
type Guard struct {
	leases    LeaseStore
	ttl       time.Duration
	keyPrefix string
	logger    zerolog.Logger
}

// Option configures a Guard.
type Option func(*Guard)

// WithLeaseTTL sets the lease lifetime for backends that expire leases.
// It must exceed the overall flow timeout.
func WithLeaseTTL(ttl time.Duration) Option {
	return func(g *Guard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithKeyPrefix namespaces lease keys, e.g. per deployment on a shared Redis.
func WithKeyPrefix(prefix string) Option {
	return func(g *Guard) {
		if prefix != "" {
			g.keyPrefix = prefix
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(g *Guard) {
		g.logger = l
	}
}

// New creates a guard over leases. A nil store selects the in-memory backend.
func New(leases LeaseStore, opts ...Option) *Guard {
	if leases == nil {
		leases = NewMemoryLeases()
	}
	g := &Guard{
		leases:    leases,
		ttl:       defaultLeaseTTL,
		keyPrefix: defaultKeyPrefix,
		logger:    log.WithComponent("guard"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Guard) key(id model.AccountID) string {
	return g.keyPrefix + string(id.Normalize())
}

// TryAdmit admits a flow for id. A live flow for the same account yields an error
// matching model.ErrAlreadyInProgress.
func (g *Guard) TryAdmit(ctx context.Context, id model.AccountID) (*Handle, error) {
	key := g.key(id)
	owner := uuid.NewString()

	ok, err := g.leases.TryAcquire(ctx, key, owner, g.ttl)
	if err != nil {
		metrics.RecordAdmission("error")
		return nil, fmt.Errorf("admit account %s: %w", id, err)
	}
	if !ok {
		metrics.RecordAdmission("rejected")
		g.logger.Info().
			Str(log.FieldEvent, "guard.rejected").
			Str(log.FieldAccountID, string(id)).
			Msg("flow already in progress for account")
		return nil, fmt.Errorf("%w: account %s", model.ErrAlreadyInProgress, id)
	}

	metrics.RecordAdmission("admitted")
	return &Handle{guard: g, key: key, owner: owner, account: id}, nil
}

// Active reports whether id currently holds an admission.
func (g *Guard) Active(ctx context.Context, id model.AccountID) (bool, error) {
	return g.leases.Held(ctx, g.key(id))
}

// Handle is an admitted flow. Release must run on every terminal transition.
type Handle struct {
	guard   *Guard
	key     string
	owner   string
	account model.AccountID

	once sync.Once
	err  error
}

// AccountID returns the admitted account.
func (h *Handle) AccountID() model.AccountID {
	return h.account
}

// Owner returns the lease owner token.
func (h *Handle) Owner() string {
	return h.owner
}

// Release drops the admission. It is idempotent and does not depend on the
// flow's context, which is usually already cancelled by the time it runs.
func (h *Handle) Release() error {
	h.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := h.guard.leases.Release(ctx, h.key, h.owner); err != nil {
			h.err = fmt.Errorf("release admission for account %s: %w", h.account, err)
			h.guard.logger.Error().Err(err).
				Str(log.FieldEvent, "guard.release_failed").
				Str(log.FieldAccountID, string(h.account)).
				Msg("failed to release admission")
		}
	})
	return h.err
}
