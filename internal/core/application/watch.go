package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ark-network/swapd/internal/core/domain"
	"github.com/ark-network/swapd/internal/core/ports"
	"github.com/ark-network/swapd/internal/ledger/watcher"
	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

// startWatches spawns one watch loop per side of an accepted swap. It is a
// no-op if the swap is already watched.
func (s *service) startWatches(swap *domain.Swap) {
	if !swap.Communication.IsAccepted() || swap.IsFinal() {
		return
	}
	ctx, ok := s.watches.push(s.ctx, swap.Id)
	if !ok {
		return
	}

	for _, side := range []domain.Side{domain.Alpha, domain.Beta} {
		s.wg.Add(1)
		go s.watchSide(ctx, swap.Id, side)
	}
}

// watchSide follows the HTLC of one side through its lifecycle, recording
// every observed transition, until it is final or the watch is dropped.
func (s *service) watchSide(ctx context.Context, swapId string, side domain.Side) {
	defer s.wg.Done()

	for {
		entry, err := s.stateStore.Get(ctx, swapId)
		if err != nil {
			if ctx.Err() == nil {
				log.WithError(err).Warnf("failed to get swap %s", swapId)
			}
			return
		}
		swap := &entry.Swap
		if swap.IsFinal() || swap.LedgerState(side).IsClosed() {
			return
		}

		var update ledgerUpdate
		b := s.newBackOff()
		op := func() error {
			started := time.Now()
			u, err := s.observeNext(ctx, swap, side)
			if err != nil {
				if errors.Is(err, watcher.ErrInternal) {
					return backoff.Permanent(err)
				}
				if ctx.Err() == nil {
					log.WithError(err).Warnf("%s watch of swap %s failed, retrying", side, swapId)
				}
				// The retry timeout only bounds consecutive failures.
				if time.Since(started) > b.InitialInterval {
					b.Reset()
				}
				return err
			}
			update = u
			return nil
		}
		if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.markStalled(swapId, side, err)
			return
		}

		record := func() error {
			err := s.recordUpdate(ctx, swapId, side, update)
			// Sides are watched concurrently, a spend may be observed before
			// the funding of the other side is recorded.
			if err != nil && !errors.Is(err, domain.ErrLedgerNotFunded) {
				return backoff.Permanent(err)
			}
			return err
		}
		if err := backoff.Retry(record, backoff.WithContext(s.newBackOff(), ctx)); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.markStalled(swapId, side, err)
			return
		}
	}
}

// observeNext blocks until the transaction moving the HTLC out of its
// current state shows up on chain.
func (s *service) observeNext(
	ctx context.Context, swap *domain.Swap, side domain.Side,
) (ledgerUpdate, error) {
	params, err := swap.HtlcParams(side)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", watcher.ErrInternal, err)
	}
	ledger, err := s.htlcLedger(params.Asset)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", watcher.ErrInternal, err)
	}
	state := swap.LedgerState(side)
	start := swap.StartingTimestamp

	switch state.State {
	case domain.NotDeployed:
		return ledger.watchDeployment(ctx, params, start)
	case domain.Deployed:
		return ledger.watchFunding(ctx, params, state, start)
	case domain.Funded, domain.IncorrectlyFunded:
		return watchSpend(ctx, ledger, params, state, start)
	default:
		return nil, fmt.Errorf("%w: nothing to watch in state %s", watcher.ErrInternal, state.State)
	}
}

// watchSpend races the redeem and refund watches of a funded HTLC, the first
// spend found wins. Incorrectly funded HTLCs are watched too since their
// coins still have to be refunded.
func watchSpend(
	ctx context.Context, ledger htlcLedger,
	params domain.HtlcParams, state domain.LedgerState, start int64,
) (ledgerUpdate, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		update ledgerUpdate
		err    error
	}
	chResults := make(chan result, 2)
	go func() {
		update, err := ledger.watchRedeem(ctx, params, state, start)
		chResults <- result{update, err}
	}()
	go func() {
		update, err := ledger.watchRefund(ctx, params, state, start)
		chResults <- result{update, err}
	}()

	res := <-chResults
	return res.update, res.err
}

// recordUpdate applies the observed transition to the latest state of the
// swap, persists the resulting events and replaces the state store entry.
func (s *service) recordUpdate(
	ctx context.Context, swapId string, side domain.Side, update ledgerUpdate,
) error {
	swap, err := s.applyChanges(ctx, swapId, func(swap *domain.Swap) error {
		return update(swap, side)
	})
	if err != nil {
		return err
	}

	log.Infof(
		"swap %s: %s ledger is %s", swapId, side, swap.LedgerState(side).State,
	)
	if swap.IsFinal() {
		s.watches.pop(swapId)
	}
	return nil
}

func (s *service) markStalled(swapId string, side domain.Side, cause error) {
	log.WithError(cause).Warnf("%s watch of swap %s stalled", side, swapId)

	reason := fmt.Sprintf("%s watch: %s", side, cause)
	if _, err := s.stateStore.Update(
		context.Background(), swapId,
		func(entry ports.SwapEntry) (ports.SwapEntry, error) {
			entry.Stalled = true
			entry.StallReason = reason
			return entry, nil
		},
	); err != nil {
		log.WithError(err).Warnf("failed to mark swap %s as stalled", swapId)
	}
}

func (s *service) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if s.watchCfg.PollInterval > 0 {
		b.InitialInterval = s.watchCfg.PollInterval
	}
	b.MaxElapsedTime = s.watchCfg.RetryTimeout
	b.Reset()
	return b
}
