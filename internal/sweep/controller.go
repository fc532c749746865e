// Package sweep runs periodic full passes over the token population,
// reconciling each token against the market feeds through a bounded worker
// pool.
package sweep

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/token-pulse/internal/config"
	apperrors "github.com/token-pulse/internal/errors"
	"github.com/token-pulse/internal/logging"
	"github.com/token-pulse/internal/market"
	"github.com/token-pulse/internal/storage"
	"github.com/token-pulse/internal/types"
)

// Controller orchestrates market sweeps
type Controller struct {
	store   storage.Store
	updater *market.Updater
	config  config.SweepConfig
}

// NewController creates a sweep controller
func NewController(store storage.Store, updater *market.Updater, cfg config.SweepConfig) *Controller {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	if cfg.MaxErrors <= 0 {
		cfg.MaxErrors = 50
	}
	return &Controller{store: store, updater: updater, config: cfg}
}

// Run performs one sweep over the stored tokens. Cancellation stops the
// sweep between tokens; the report covers whatever completed.
func (c *Controller) Run(ctx context.Context) (*types.SweepReport, error) {
	started := time.Now()
	logger := logging.FromContext(ctx).WithComponent("sweep")

	keys, err := c.store.ListTokenKeys(ctx, &storage.TokenKeyFilter{
		Limit:           c.config.Limit,
		OrderByActivity: !c.config.Shuffle,
	})
	if err != nil {
		return nil, err
	}
	if c.config.Shuffle {
		rand.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	}

	report := &types.SweepReport{Total: len(keys), StartedAt: started}
	if len(keys) == 0 {
		report.Duration = time.Since(started)
		return report, nil
	}

	logger.WithFields(map[string]interface{}{
		"tokens":      len(keys),
		"concurrency": c.config.Concurrency,
	}).Info("sweep started")

	keyCh := make(chan types.TokenKey)
	p := newPacer(c.config.MinDelay, c.config.MaxDelay)

	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < c.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for key := range keyCh {
				if err := p.Wait(ctx); err != nil {
					return
				}
				outcome, err := c.updater.Reconcile(ctx, key)

				mu.Lock()
				switch outcome {
				case market.OutcomeReconciled:
					report.Reconciled++
				case market.OutcomeNotFound:
					report.NotFound++
				default:
					report.Failed++
					if err != nil && len(report.Errors) < c.config.MaxErrors {
						report.Errors = append(report.Errors, types.SweepError{
							Chain:    key.Chain,
							Contract: key.Contract,
							Message:  err.Error(),
						})
					}
				}
				mu.Unlock()

				if err != nil && apperrors.IsRateLimited(err) {
					p.RecordRateLimit()
				} else if err == nil {
					p.RecordSuccess()
				}
			}
		}()
	}

feeding:
	for _, key := range keys {
		select {
		case keyCh <- key:
		case <-ctx.Done():
			break feeding
		}
	}
	close(keyCh)
	wg.Wait()

	report.Duration = time.Since(started)
	logger.WithFields(map[string]interface{}{
		"reconciled": report.Reconciled,
		"not_found":  report.NotFound,
		"failed":     report.Failed,
		"duration":   report.Duration.String(),
	}).Info("sweep finished")

	return report, nil
}

// RunForever runs sweeps on the configured interval until the context ends.
// Each sweep starts only after the previous one finished, so sweeps never
// overlap.
func (c *Controller) RunForever(ctx context.Context) {
	logger := logging.FromContext(ctx).WithComponent("sweep")

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		if _, err := c.Run(ctx); err != nil && ctx.Err() == nil {
			logger.WithError(err).Error("sweep failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
