// Package reaper implements the periodic expiry sweep for slot leases and
// handoff tokens. Expired records are already inert on every foreground path;
// the sweep only formalizes their state and, for slots, frees ceiling
// capacity. A failed sweep is logged and retried on the next tick, never
// surfaced to any caller.
package reaper

import (
	"context"
	"log/slog"
	"time"

	"github.com/allisson/handoff/internal/database"
)

// Config holds reaper configuration.
type Config struct {
	Interval  time.Duration
	BatchSize int
}

// ExpiryLedger is the slice of a use case the reaper needs. Satisfied by the
// ledger and token use cases.
type ExpiryLedger interface {
	ReapExpired(ctx context.Context, limit int) (int64, error)
}

// Reaper periodically reaps expired slot leases and handoff tokens.
type Reaper struct {
	config    Config
	txManager database.TxManager
	slots     ExpiryLedger
	tokens    ExpiryLedger
	logger    *slog.Logger
}

// NewReaper creates a new Reaper with the provided dependencies.
func NewReaper(
	config Config,
	txManager database.TxManager,
	slots ExpiryLedger,
	tokens ExpiryLedger,
	logger *slog.Logger,
) *Reaper {
	return &Reaper{
		config:    config,
		txManager: txManager,
		slots:     slots,
		tokens:    tokens,
		logger:    logger,
	}
}

// Start runs the sweep loop until the context is canceled.
func (r *Reaper) Start(ctx context.Context) error {
	if r.logger != nil {
		r.logger.Info("starting expiry reaper",
			slog.Duration("interval", r.config.Interval),
			slog.Int("batch_size", r.config.BatchSize),
		)
	}

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if r.logger != nil {
				r.logger.Info("stopping expiry reaper")
			}
			return ctx.Err()
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep reaps one batch of expired slots and one batch of expired tokens, each
// in its own transaction so a failure in one ledger never blocks the other.
// Errors are logged and swallowed; the next tick tries again.
func (r *Reaper) Sweep(ctx context.Context) {
	if reaped, err := r.sweepSlots(ctx); err != nil {
		r.logger.Error("slot sweep failed", slog.Any("error", err))
	} else if reaped > 0 {
		r.logger.Info("reaped expired slots", slog.Int64("count", reaped))
	}

	if reaped, err := r.sweepTokens(ctx); err != nil {
		r.logger.Error("token sweep failed", slog.Any("error", err))
	} else if reaped > 0 {
		r.logger.Info("reaped expired tokens", slog.Int64("count", reaped))
	}
}

func (r *Reaper) sweepSlots(ctx context.Context) (int64, error) {
	var reaped int64
	err := r.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		reaped, err = r.slots.ReapExpired(ctx, r.config.BatchSize)
		return err
	})
	return reaped, err
}

func (r *Reaper) sweepTokens(ctx context.Context) (int64, error) {
	var reaped int64
	err := r.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		reaped, err = r.tokens.ReapExpired(ctx, r.config.BatchSize)
		return err
	})
	return reaped, err
}
