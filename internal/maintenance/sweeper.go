// Package maintenance runs the periodic display-number consistency sweep.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// parallelism caps how many restaurants are swept at once.
const parallelism = 4

// Allocator is the part of the order-number service the sweeper drives.
type Allocator interface {
	ListRestaurantIDs(ctx context.Context) ([]int64, error)
	ReclaimSlots(ctx context.Context, restaurantID int64) (int, error)
	CleanupOrphanedSlots(ctx context.Context, restaurantID int64) (int, error)
}

// Result summarises one sweep.
type Result struct {
	Restaurants int
	Reclaimed   int
	Orphans     int
}

// Sweeper frees orphaned and expired slots for every restaurant, independent
// of the allocation path.
type Sweeper struct {
	alloc    Allocator
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper constructs a Sweeper that runs every interval.
func NewSweeper(alloc Allocator, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{alloc: alloc, interval: interval, logger: logger}
}

// SweepOnce sweeps every restaurant once. A failure for one restaurant does
// not stop the others; the first error is returned after all have run.
func (s *Sweeper) SweepOnce(ctx context.Context) (Result, error) {
	ids, err := s.alloc.ListRestaurantIDs(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("sweep: %w", err)
	}

	reclaimed := make([]int, len(ids))
	orphans := make([]int, len(ids))

	var g errgroup.Group
	g.SetLimit(parallelism)
	for i, id := range ids {
		g.Go(func() error {
			n, err := s.alloc.CleanupOrphanedSlots(ctx, id)
			if err != nil {
				return fmt.Errorf("restaurant %d: %w", id, err)
			}
			orphans[i] = n

			n, err = s.alloc.ReclaimSlots(ctx, id)
			if err != nil {
				return fmt.Errorf("restaurant %d: %w", id, err)
			}
			reclaimed[i] = n
			return nil
		})
	}
	err = g.Wait()

	res := Result{Restaurants: len(ids)}
	for i := range ids {
		res.Reclaimed += reclaimed[i]
		res.Orphans += orphans[i]
	}
	if err != nil {
		return res, fmt.Errorf("sweep: %w", err)
	}
	return res, nil
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("slot maintenance started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("slot maintenance stopped")
			return
		case <-ticker.C:
			started := time.Now()
			res, err := s.SweepOnce(ctx)
			if err != nil {
				s.logger.Error("slot maintenance sweep failed", "error", err)
			}
			s.logger.Info("slot maintenance sweep finished",
				"restaurants", res.Restaurants,
				"reclaimed", res.Reclaimed,
				"orphans", res.Orphans,
				"duration", time.Since(started))
		}
	}
}
