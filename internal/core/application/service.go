package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ark-network/swapd/internal/core/domain"
	"github.com/ark-network/swapd/internal/core/ports"
	"github.com/ark-network/swapd/internal/ledger/watcher"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const actionsBufferSize = 128

type service struct {
	rootSeed    domain.RootSeed
	ledgers     LedgersConfig
	watchCfg    WatchConfig
	htlcLedgers map[domain.AssetKind]htlcLedger

	scheduler   ports.SchedulerService
	repoManager ports.RepoManager
	stateStore  ports.StateStore

	// applyLock serializes every write to the event store.
	applyLock *sync.Mutex
	watches   *watchesMap

	lock      *sync.RWMutex
	stopped   bool
	chActions chan SwapAction

	ctx    context.Context
	cancel context.CancelFunc
	wg     *sync.WaitGroup
}

func NewService(
	rootSeed domain.RootSeed, ledgers LedgersConfig, watchCfg WatchConfig,
	bitcoinConnector ports.BitcoinConnector, ethereumConnector ports.EthereumConnector,
	scheduler ports.SchedulerService, repoManager ports.RepoManager,
	stateStore ports.StateStore,
) (Service, error) {
	if rootSeed == (domain.RootSeed{}) {
		return nil, fmt.Errorf("missing root seed")
	}
	if bitcoinConnector == nil {
		return nil, fmt.Errorf("missing bitcoin connector")
	}
	if ethereumConnector == nil {
		return nil, fmt.Errorf("missing ethereum connector")
	}
	if scheduler == nil {
		return nil, fmt.Errorf("missing scheduler")
	}
	if repoManager == nil {
		return nil, fmt.Errorf("missing repo manager")
	}
	if stateStore == nil {
		return nil, fmt.Errorf("missing state store")
	}

	cfg := watcher.Config{
		PollInterval: watchCfg.PollInterval,
		SeenLimit:    watchCfg.SeenBlocksLimit,
	}
	btc := &bitcoinLedger{bitcoinConnector, cfg}
	eth := &ethereumLedger{ethereumConnector, cfg}

	ctx, cancel := context.WithCancel(context.Background())
	svc := &service{
		rootSeed: rootSeed,
		ledgers:  ledgers,
		watchCfg: watchCfg,
		htlcLedgers: map[domain.AssetKind]htlcLedger{
			domain.BitcoinAsset: btc,
			domain.EtherAsset:   eth,
			domain.Erc20Asset:   eth,
		},
		scheduler:   scheduler,
		repoManager: repoManager,
		stateStore:  stateStore,
		applyLock:   &sync.Mutex{},
		watches:     newWatchesMap(),
		lock:        &sync.RWMutex{},
		chActions:   make(chan SwapAction, actionsBufferSize),
		ctx:         ctx,
		cancel:      cancel,
		wg:          &sync.WaitGroup{},
	}

	repoManager.Events().RegisterEventsHandler(
		func(swap *domain.Swap) {
			svc.updateProjection(swap)
		},
	)

	return svc, nil
}

// Start restores the swaps that are still in progress and resumes watching
// their HTLCs.
func (s *service) Start() error {
	s.scheduler.Start()

	ctx := context.Background()
	swaps, err := s.repoManager.Swaps().GetActiveSwaps(ctx)
	if err != nil {
		return fmt.Errorf("failed to get active swaps: %s", err)
	}

	for _, projected := range swaps {
		swap, err := s.repoManager.Events().Load(ctx, projected.Id)
		if err != nil {
			return fmt.Errorf("failed to load swap %s: %s", projected.Id, err)
		}
		if err := s.stateStore.Add(ctx, ports.SwapEntry{Swap: *swap}); err != nil {
			return fmt.Errorf("failed to restore swap %s: %s", swap.Id, err)
		}
		s.resume(swap)
		s.publishNextAction(swap)
	}

	log.Infof("restored %d active swap(s)", len(swaps))
	return nil
}

func (s *service) Stop() {
	s.cancel()
	s.watches.popAll()
	s.wg.Wait()
	s.scheduler.Stop()
	log.Debug("stopped scheduler")

	s.lock.Lock()
	s.stopped = true
	close(s.chActions)
	s.lock.Unlock()

	s.repoManager.Close()
	log.Debug("closed connections to db")
	s.stateStore.Close()
	log.Debug("closed state store")
}

func (s *service) Propose(ctx context.Context, req ProposeRequest) (string, error) {
	if err := s.checkSwapType(
		req.AlphaLedger, req.BetaLedger, req.AlphaAsset, req.BetaAsset,
	); err != nil {
		return "", err
	}

	id := uuid.New().String()
	seed := s.rootSeed.SwapSeed(id)

	alphaLedger, err := s.htlcLedger(req.AlphaAsset)
	if err != nil {
		return "", err
	}
	betaLedger, err := s.htlcLedger(req.BetaAsset)
	if err != nil {
		return "", err
	}
	refundIdentity, err := resolveIdentity(
		alphaLedger, req.AlphaLedger.Kind, seed, true, req.AlphaLedgerRefundIdentity,
	)
	if err != nil {
		return "", fmt.Errorf("invalid alpha ledger refund identity: %w", err)
	}
	redeemIdentity, err := resolveIdentity(
		betaLedger, req.BetaLedger.Kind, seed, false, req.BetaLedgerRedeemIdentity,
	)
	if err != nil {
		return "", fmt.Errorf("invalid beta ledger redeem identity: %w", err)
	}

	request := domain.Request{
		SwapId:                    id,
		AlphaLedger:               req.AlphaLedger,
		BetaLedger:                req.BetaLedger,
		AlphaAsset:                req.AlphaAsset,
		BetaAsset:                 req.BetaAsset,
		AlphaLedgerRefundIdentity: refundIdentity,
		BetaLedgerRedeemIdentity:  redeemIdentity,
		AlphaExpiry:               req.AlphaExpiry,
		BetaExpiry:                req.BetaExpiry,
		SecretHash:                seed.DeriveSecret().Hash(),
	}
	swap, err := domain.NewSwap(domain.Alice, request)
	if err != nil {
		return "", err
	}
	if err := s.addSwap(ctx, swap); err != nil {
		return "", err
	}

	log.Infof("proposed swap %s: %s for %s", id, req.AlphaAsset, req.BetaAsset)
	return id, nil
}

func (s *service) ReceiveProposal(ctx context.Context, req domain.Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if err := s.checkSwapType(
		req.AlphaLedger, req.BetaLedger, req.AlphaAsset, req.BetaAsset,
	); err != nil {
		return "", err
	}

	swap, err := domain.NewSwap(domain.Bob, req)
	if err != nil {
		return "", err
	}
	if err := s.addSwap(ctx, swap); err != nil {
		return "", err
	}

	log.Infof("received swap %s: %s for %s", req.SwapId, req.AlphaAsset, req.BetaAsset)
	return req.SwapId, nil
}

func (s *service) Accept(
	ctx context.Context, swapId string, req AcceptRequest,
) (*domain.Accept, error) {
	swap, err := s.applyChanges(ctx, swapId, func(swap *domain.Swap) error {
		accept := domain.Accept{
			SwapId:                    swap.Id,
			AlphaLedgerRedeemIdentity: req.AlphaLedgerRedeemIdentity,
			BetaLedgerRefundIdentity:  req.BetaLedgerRefundIdentity,
		}

		if swap.Role == domain.Bob {
			seed := s.rootSeed.SwapSeed(swap.Id)
			request := swap.Communication.Request
			alphaLedger, err := s.htlcLedger(request.AlphaAsset)
			if err != nil {
				return err
			}
			betaLedger, err := s.htlcLedger(request.BetaAsset)
			if err != nil {
				return err
			}
			if accept.AlphaLedgerRedeemIdentity, err = resolveIdentity(
				alphaLedger, request.AlphaLedger.Kind, seed, false,
				req.AlphaLedgerRedeemIdentity,
			); err != nil {
				return fmt.Errorf("invalid alpha ledger redeem identity: %w", err)
			}
			if accept.BetaLedgerRefundIdentity, err = resolveIdentity(
				betaLedger, request.BetaLedger.Kind, seed, true,
				req.BetaLedgerRefundIdentity,
			); err != nil {
				return fmt.Errorf("invalid beta ledger refund identity: %w", err)
			}
		}

		_, err := swap.Accept(accept)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.resume(swap)

	log.Infof("swap %s accepted", swapId)
	accept := *swap.Communication.Accept
	return &accept, nil
}

func (s *service) Decline(ctx context.Context, swapId string, decline domain.Decline) error {
	if _, err := s.applyChanges(ctx, swapId, func(swap *domain.Swap) error {
		_, err := swap.Decline(decline)
		return err
	}); err != nil {
		return err
	}

	log.Infof("swap %s declined", swapId)
	return nil
}

func (s *service) CurrentState(ctx context.Context, swapId string) (*SwapState, error) {
	entry, err := s.getEntry(ctx, swapId)
	if err != nil {
		return nil, err
	}
	swap := entry.Swap
	return &SwapState{
		SwapId:            swap.Id,
		Role:              swap.Role,
		StartingTimestamp: swap.StartingTimestamp,
		Communication:     swap.Communication,
		AlphaLedgerState:  swap.AlphaLedgerState,
		BetaLedgerState:   swap.BetaLedgerState,
		Stalled:           entry.Stalled,
		StallReason:       entry.StallReason,
	}, nil
}

func (s *service) NextAction(ctx context.Context, swapId string) (*Action, error) {
	entry, err := s.getEntry(ctx, swapId)
	if err != nil {
		return nil, err
	}
	return s.nextAction(&entry.Swap, time.Now())
}

func (s *service) GetActionsChannel() <-chan SwapAction {
	return s.chActions
}

// getEntry returns the live state of the swap, or its last projection if the
// swap is not in progress anymore since the last restart.
func (s *service) getEntry(ctx context.Context, swapId string) (*ports.SwapEntry, error) {
	entry, err := s.stateStore.Get(ctx, swapId)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, domain.ErrSwapNotFound) {
		return nil, err
	}

	swap, err := s.repoManager.Swaps().GetSwap(ctx, swapId)
	if err != nil {
		return nil, err
	}
	return &ports.SwapEntry{Swap: *swap}, nil
}

func (s *service) addSwap(ctx context.Context, swap *domain.Swap) error {
	s.applyLock.Lock()
	defer s.applyLock.Unlock()

	if _, err := s.repoManager.Events().Load(ctx, swap.Id); err == nil {
		return fmt.Errorf("%w: %s", ErrSwapExists, swap.Id)
	} else if !errors.Is(err, domain.ErrSwapNotFound) {
		return err
	}

	saved, err := s.repoManager.Events().Save(ctx, swap.Id, swap.Events()...)
	if err != nil {
		return fmt.Errorf("failed to save swap %s: %s", swap.Id, err)
	}
	return s.stateStore.Add(ctx, ports.SwapEntry{Swap: *saved})
}

// applyChanges runs fn on the latest state of the swap, persists the events
// it raised and replaces the live state with the result. Every successful
// change publishes the next action of the local node, if any.
func (s *service) applyChanges(
	ctx context.Context, swapId string, fn func(swap *domain.Swap) error,
) (*domain.Swap, error) {
	s.applyLock.Lock()
	defer s.applyLock.Unlock()

	entry, err := s.stateStore.Get(ctx, swapId)
	if err != nil {
		return nil, err
	}
	swap := &entry.Swap
	before := len(swap.Events())

	if err := fn(swap); err != nil {
		return nil, err
	}
	changes := swap.Events()[before:]
	if len(changes) <= 0 {
		return swap, nil
	}

	saved, err := s.repoManager.Events().Save(ctx, swapId, changes...)
	if err != nil {
		return nil, fmt.Errorf("failed to save events of swap %s: %s", swapId, err)
	}
	if _, err := s.stateStore.Update(
		ctx, swapId, func(entry ports.SwapEntry) (ports.SwapEntry, error) {
			entry.Swap = *saved
			return entry, nil
		},
	); err != nil {
		return nil, fmt.Errorf("failed to update state of swap %s: %s", swapId, err)
	}

	s.publishNextAction(saved)
	return saved, nil
}

// resume starts watching an accepted swap and schedules the re-evaluation of
// its next action once each expiry has passed.
func (s *service) resume(swap *domain.Swap) {
	if !swap.Communication.IsAccepted() || swap.IsFinal() {
		return
	}

	s.startWatches(swap)

	for _, side := range []domain.Side{domain.Alpha, domain.Beta} {
		at := int64(swap.Expiry(side)) + 1
		if !s.scheduler.AfterNow(at) {
			continue
		}
		swapId := swap.Id
		if err := s.scheduler.ScheduleTaskOnce(at, func() {
			s.onExpiry(swapId)
		}); err != nil {
			log.WithError(err).Warnf("failed to schedule %s expiry of swap %s", side, swapId)
		}
	}
}

func (s *service) onExpiry(swapId string) {
	entry, err := s.stateStore.Get(s.ctx, swapId)
	if err != nil {
		log.WithError(err).Warnf("failed to get swap %s on expiry", swapId)
		return
	}
	s.publishNextAction(&entry.Swap)
}

func (s *service) publishNextAction(swap *domain.Swap) {
	action, err := s.nextAction(swap, time.Now())
	if err != nil {
		log.WithError(err).Warnf("failed to derive next action of swap %s", swap.Id)
		return
	}
	if action == nil {
		return
	}

	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.stopped {
		return
	}
	select {
	case s.chActions <- SwapAction{SwapId: swap.Id, Action: *action}:
		log.Debugf("swap %s: next action %s on %s ledger", swap.Id, action.Type, action.Side)
	default:
		log.Warnf("actions channel full, dropped %s action of swap %s", action.Type, swap.Id)
	}
}

// updateProjection keeps the swap repository in sync with the event store.
// Events of the same swap may be published out of order, older versions are
// discarded.
func (s *service) updateProjection(swap *domain.Swap) {
	ctx := context.Background()
	stored, err := s.repoManager.Swaps().GetSwap(ctx, swap.Id)
	if err == nil && stored.Version > swap.Version {
		return
	}
	if err := s.repoManager.Swaps().AddOrUpdateSwap(ctx, *swap); err != nil {
		log.WithError(err).Warnf("failed to update projection of swap %s", swap.Id)
		return
	}
	log.Debugf("updated projection of swap %s at version %d", swap.Id, swap.Version)
}
