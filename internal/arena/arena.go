// Package arena implements the wager engine: events, bets, peer calls and
// settlement. Every public operation runs as one database transaction; the
// row locks taken inside it are the only ordering the engine relies on.
package arena

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/maincard-gg/card-arena/internal/adapter"
	"github.com/maincard-gg/card-arena/internal/capability"
	"github.com/maincard-gg/card-arena/internal/delegated"
	"github.com/maincard-gg/card-arena/internal/domain"
	"github.com/maincard-gg/card-arena/internal/ledger"
	"github.com/maincard-gg/card-arena/internal/logger"
	"github.com/maincard-gg/card-arena/internal/messaging"
	"github.com/maincard-gg/card-arena/internal/store"
	"github.com/maincard-gg/card-arena/internal/store/schema"
)

// LifePolicy decides how many lives a settlement consumes. The default
// charges one life per loss and none per win; deployments can swap it
// without touching the engine.
type LifePolicy func(won bool, livesRemaining int) int

// DefaultLifePolicy charges one life on a loss
func DefaultLifePolicy(won bool, _ int) int {
	if won {
		return 0
	}
	return 1
}

// Config holds the engine game rules
type Config struct {
	// EngineAccount holds staked cards and mints ledger rewards
	EngineAccount common.Address
	// Cooloff is the minimum gap between a card's settlement and its next
	// stake
	Cooloff time.Duration
	// DefaultOdds is the odds multiplier substituted when a bet passes zero
	DefaultOdds uint32
	// RewardByLives maps the card's lives at settlement to the base reward
	// for a win at default odds
	RewardByLives map[int]int64
	// DemoMinStakeAge gates staking a demo card, mirroring the transfer rule
	DemoMinStakeAge time.Duration
	// LifePolicy is consulted on every settlement; nil means
	// DefaultLifePolicy
	LifePolicy LifePolicy
}

// Service is the wager engine
type Service struct {
	store     store.Store
	ledger    ledger.Ledger
	publisher messaging.Publisher
	clock     adapter.Clock
	cfg       Config
}

// NewService creates the wager engine
func NewService(s store.Store, l ledger.Ledger, p messaging.Publisher, clock adapter.Clock, cfg Config) *Service {
	if cfg.LifePolicy == nil {
		cfg.LifePolicy = DefaultLifePolicy
	}
	if p == nil {
		p = messaging.NopPublisher{}
	}
	return &Service{store: s, ledger: l, publisher: p, clock: clock, cfg: cfg}
}

// CreateEvent registers a wager event under a caller-assigned id;
// administrator capability required
func (s *Service) CreateEvent(ctx context.Context, caller common.Address, eventID uint64, opensForBetsUntil time.Time, descriptorHash string) error {
	err := s.store.Atomically(ctx, func(tx store.Store) error {
		if err := capability.Require(ctx, tx, caller, domain.CapabilityAdministrator); err != nil {
			return err
		}

		existing, err := tx.GetWagerEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrDuplicateEvent
		}

		return tx.CreateWagerEvent(ctx, &schema.WagerEvent{
			ID:                eventID,
			OpensForBetsUntil: opensForBetsUntil,
			DescriptorHash:    descriptorHash,
			Result:            domain.OutcomeUnset,
			CreatedAt:         s.clock.Now(),
		})
	})
	if err != nil {
		return err
	}

	s.publish(ctx, domain.ArenaEvent{
		Type:      domain.ArenaEventCreated,
		EventID:   eventID,
		Timestamp: s.clock.Now(),
	})
	return nil
}

// MakeBet stakes one card on one event
func (s *Service) MakeBet(ctx context.Context, caller common.Address, eventID, assetID uint64, choice domain.Outcome, odds uint32) error {
	err := s.store.Atomically(ctx, func(tx store.Store) error {
		return s.makeBet(ctx, tx, caller, eventID, assetID, choice, odds, nil)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, domain.ArenaEvent{
		Type:      domain.ArenaEventWagerPlaced,
		EventID:   eventID,
		AssetID:   assetID,
		Account:   domain.AddressKey(caller),
		Timestamp: s.clock.Now(),
	})
	return nil
}

// MakeBetsDelegated places a batch of bets authorized by one signature.
// The batch is all-or-nothing: any failing leg rolls back every leg and the
// nonce consumption.
func (s *Service) MakeBetsDelegated(ctx context.Context, signer common.Address, legs []delegated.BetLeg, nonce uint64, sig []byte) error {
	err := s.store.Atomically(ctx, func(tx store.Store) error {
		if err := consumeSignedNonce(ctx, tx, signer, nonce); err != nil {
			return err
		}
		if err := delegated.Verify(signer, delegated.BetBatchDigest(legs, nonce), sig); err != nil {
			return err
		}
		for _, leg := range legs {
			if err := s.makeBet(ctx, tx, signer, leg.EventID, leg.AssetID, leg.Choice, leg.Odds, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, leg := range legs {
		s.publish(ctx, domain.ArenaEvent{
			Type:      domain.ArenaEventWagerPlaced,
			EventID:   leg.EventID,
			AssetID:   leg.AssetID,
			Account:   domain.AddressKey(signer),
			Timestamp: s.clock.Now(),
		})
	}
	return nil
}

// SetEventResult posts the outcome of an event exactly once; settler
// capability required. Results are accepted only after the betting window
// has closed.
func (s *Service) SetEventResult(ctx context.Context, caller common.Address, eventID uint64, outcome domain.Outcome) error {
	err := s.store.Atomically(ctx, func(tx store.Store) error {
		if err := capability.Require(ctx, tx, caller, domain.CapabilitySettler); err != nil {
			return err
		}
		if !outcome.Valid() {
			return domain.ErrOutcomeInvalid
		}

		event, err := tx.GetWagerEventForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if event == nil {
			return domain.ErrEventNotFound
		}

		switch event.State(s.clock.Now()) {
		case domain.EventOpen:
			return domain.ErrEventStillOpen
		case domain.EventSettled:
			return domain.ErrEventAlreadySettled
		}

		now := s.clock.Now()
		event.Result = outcome
		event.ResultPostedAt = &now
		return tx.SaveWagerEvent(ctx, event)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, domain.ArenaEvent{
		Type:      domain.ArenaEventResultPosted,
		EventID:   eventID,
		Outcome:   outcome,
		Timestamp: s.clock.Now(),
	})
	return nil
}

// TakeCard returns a staked card to its staker. Before the event settles
// this is an early withdrawal with no scoring; after settlement it applies
// the win/lose consequences and credits any reward.
func (s *Service) TakeCard(ctx context.Context, caller common.Address, assetID uint64) error {
	var settled domain.ArenaEvent
	err := s.store.Atomically(ctx, func(tx store.Store) error {
		wager, err := tx.GetWagerByAssetIDForUpdate(ctx, assetID)
		if err != nil {
			return err
		}
		if wager == nil {
			return domain.ErrWagerNotFound
		}
		// The staker claims, regardless of who owns the card while it is
		// in engine custody
		if wager.Staker != domain.AddressKey(caller) {
			return domain.ErrNotStaker
		}

		asset, err := tx.GetAssetForUpdate(ctx, assetID)
		if err != nil {
			return err
		}
		if asset == nil {
			return domain.ErrAssetNotFound
		}

		event, err := tx.GetWagerEvent(ctx, wager.EventID)
		if err != nil {
			return err
		}
		if event == nil {
			return domain.ErrEventNotFound
		}

		if event.State(s.clock.Now()) != domain.EventSettled {
			return s.withdrawEarly(ctx, tx, wager, asset)
		}

		reward, err := s.settle(ctx, tx, wager, asset, event)
		if err != nil {
			return err
		}
		settled = domain.ArenaEvent{
			Type:      domain.ArenaEventWagerSettled,
			EventID:   event.ID,
			AssetID:   assetID,
			Account:   wager.Staker,
			Outcome:   event.Result,
			Reward:    reward,
			Timestamp: s.clock.Now(),
		}
		return nil
	})
	if err != nil {
		return err
	}

	if settled.Type != "" {
		s.publish(ctx, settled)
	}
	return nil
}

// CreateCall opens a peer duel on an event by staking the creator's card
func (s *Service) CreateCall(ctx context.Context, caller common.Address, eventID, assetID uint64, choice domain.Outcome, odds uint32) (string, error) {
	var callID string
	err := s.store.Atomically(ctx, func(tx store.Store) error {
		var err error
		callID, err = s.createCall(ctx, tx, caller, eventID, assetID, choice, odds)
		return err
	})
	if err != nil {
		return "", err
	}
	return callID, nil
}

// CreateCallDelegated is the signature-authorized variant of CreateCall
func (s *Service) CreateCallDelegated(ctx context.Context, signer common.Address, eventID, assetID uint64, choice domain.Outcome, odds uint32, nonce uint64, sig []byte) (string, error) {
	var callID string
	err := s.store.Atomically(ctx, func(tx store.Store) error {
		if err := consumeSignedNonce(ctx, tx, signer, nonce); err != nil {
			return err
		}
		if err := delegated.Verify(signer, delegated.CreateCallDigest(eventID, assetID, choice, odds, nonce), sig); err != nil {
			return err
		}
		var err error
		callID, err = s.createCall(ctx, tx, signer, eventID, assetID, choice, odds)
		return err
	})
	if err != nil {
		return "", err
	}
	return callID, nil
}

// AcceptCall closes entry on an open call by staking the acceptor's card on
// the opposite prediction
func (s *Service) AcceptCall(ctx context.Context, caller common.Address, callID string, assetID uint64, choice domain.Outcome) error {
	return s.store.Atomically(ctx, func(tx store.Store) error {
		return s.acceptCall(ctx, tx, caller, callID, assetID, choice)
	})
}

// AcceptCallDelegated is the signature-authorized variant of AcceptCall
func (s *Service) AcceptCallDelegated(ctx context.Context, signer common.Address, callID string, assetID uint64, choice domain.Outcome, nonce uint64, sig []byte) error {
	return s.store.Atomically(ctx, func(tx store.Store) error {
		if err := consumeSignedNonce(ctx, tx, signer, nonce); err != nil {
			return err
		}
		if err := delegated.Verify(signer, delegated.AcceptCallDigest(callID, assetID, choice, nonce), sig); err != nil {
			return err
		}
		return s.acceptCall(ctx, tx, signer, callID, assetID, choice)
	})
}

// GetEvent returns an event together with its derived state
func (s *Service) GetEvent(ctx context.Context, eventID uint64) (*schema.WagerEvent, domain.EventState, error) {
	event, err := s.store.GetWagerEvent(ctx, eventID)
	if err != nil {
		return nil, "", err
	}
	if event == nil {
		return nil, "", domain.ErrEventNotFound
	}
	return event, event.State(s.clock.Now()), nil
}

// ListWagersByStaker returns the account's open wagers with the total count
func (s *Service) ListWagersByStaker(ctx context.Context, staker common.Address, limit, offset int) ([]schema.Wager, int64, error) {
	key := domain.AddressKey(staker)
	wagers, err := s.store.ListWagersByStaker(ctx, key, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountWagersByStaker(ctx, key)
	if err != nil {
		return nil, 0, err
	}
	return wagers, total, nil
}

// ListCallsByParticipant returns calls the account created or accepted
func (s *Service) ListCallsByParticipant(ctx context.Context, address common.Address, limit, offset int) ([]schema.Call, int64, error) {
	key := domain.AddressKey(address)
	calls, err := s.store.ListCallsByParticipant(ctx, key, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountCallsByParticipant(ctx, key)
	if err != nil {
		return nil, 0, err
	}
	return calls, total, nil
}

// GetNonce returns the next nonce a delegated payload for the account must
// be signed over
func (s *Service) GetNonce(ctx context.Context, address common.Address) (uint64, error) {
	return s.store.GetNonce(ctx, domain.AddressKey(address))
}

// makeBet validates and records one wager inside the caller's transaction.
// callID is non-nil when the bet is a call leg.
func (s *Service) makeBet(ctx context.Context, tx store.Store, caller common.Address, eventID, assetID uint64, choice domain.Outcome, odds uint32, callID *string) error {
	if !choice.Valid() {
		return domain.ErrOutcomeInvalid
	}

	event, err := tx.GetWagerEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if event == nil {
		return domain.ErrEventNotFound
	}
	now := s.clock.Now()
	if event.State(now) != domain.EventOpen {
		return domain.ErrEventNotOpen
	}

	asset, err := tx.GetAssetForUpdate(ctx, assetID)
	if err != nil {
		return err
	}
	if asset == nil {
		return domain.ErrAssetNotFound
	}
	if asset.Owner != domain.AddressKey(caller) {
		return domain.ErrNotOwner
	}
	if asset.CustodyState != domain.CustodyFreeStanding {
		return domain.ErrAssetAlreadyStaked
	}
	if asset.LivesRemaining <= 0 {
		return domain.ErrNoLivesRemaining
	}
	if asset.Rarity == domain.RarityDemo && now.Sub(asset.MintedAt) < s.cfg.DemoMinStakeAge {
		return domain.ErrDemoTransferRestricted
	}
	if asset.LastSettledAt != nil && now.Sub(*asset.LastSettledAt) < s.cfg.Cooloff {
		return domain.ErrCooloffActive
	}

	if odds == 0 {
		odds = s.cfg.DefaultOdds
	}

	asset.Owner = domain.AddressKey(s.cfg.EngineAccount)
	asset.CustodyState = domain.CustodyStaked
	if err := tx.SaveAsset(ctx, asset); err != nil {
		return err
	}

	return tx.CreateWager(ctx, &schema.Wager{
		EventID:  eventID,
		AssetID:  assetID,
		Staker:   domain.AddressKey(caller),
		Choice:   choice,
		Odds:     odds,
		CallID:   callID,
		PlacedAt: now,
	})
}

// withdrawEarly releases the card with no scoring. Call legs cannot leave
// once the call has its acceptor; an unaccepted call is torn down with its
// creator leg.
func (s *Service) withdrawEarly(ctx context.Context, tx store.Store, wager *schema.Wager, asset *schema.Asset) error {
	if wager.CallID != nil {
		call, err := tx.GetCallForUpdate(ctx, *wager.CallID)
		if err != nil {
			return err
		}
		if call != nil {
			if call.Accepted() {
				return domain.ErrCallLocked
			}
			if err := tx.DeleteCall(ctx, call.ID); err != nil {
				return err
			}
		}
	}

	asset.Owner = wager.Staker
	asset.CustodyState = domain.CustodyFreeStanding
	if err := tx.SaveAsset(ctx, asset); err != nil {
		return err
	}
	return tx.DeleteWager(ctx, wager.ID)
}

// settle applies the win/lose consequences of a settled event and returns
// the card to its staker. Returns the reward credited, zero on a loss.
func (s *Service) settle(ctx context.Context, tx store.Store, wager *schema.Wager, asset *schema.Asset, event *schema.WagerEvent) (int64, error) {
	won := wager.Choice == event.Result

	var reward int64
	if won {
		asset.ConsequentWins++
		reward = s.rewardFor(asset.LivesRemaining, wager.Odds)
		if err := s.ledger.Credit(ctx, tx, s.cfg.EngineAccount, common.HexToAddress(wager.Staker), reward); err != nil {
			return 0, err
		}
	} else {
		asset.ConsequentWins = 0
		asset.LivesRemaining -= s.cfg.LifePolicy(won, asset.LivesRemaining)
		if asset.LivesRemaining < 0 {
			asset.LivesRemaining = 0
		}
	}

	now := s.clock.Now()
	asset.TotalWagers++
	asset.LastSettledAt = &now
	asset.Owner = wager.Staker
	asset.CustodyState = domain.CustodyFreeStanding
	if err := tx.SaveAsset(ctx, asset); err != nil {
		return 0, err
	}

	if err := tx.DeleteWager(ctx, wager.ID); err != nil {
		return 0, err
	}

	// A call row lives until its last leg is claimed
	if wager.CallID != nil {
		remaining, err := tx.CountWagersByCallID(ctx, *wager.CallID)
		if err != nil {
			return 0, err
		}
		if remaining == 0 {
			if err := tx.DeleteCall(ctx, *wager.CallID); err != nil {
				return 0, err
			}
		}
	}

	logger.InfoCtx(ctx, "Settled wager",
		zap.Uint64("event_id", event.ID),
		zap.Uint64("asset_id", asset.ID),
		zap.Bool("won", won),
		zap.Int64("reward", reward),
	)
	return reward, nil
}

// rewardFor computes the reward for a win: the base for the card's lives at
// settlement scaled by the recorded odds
func (s *Service) rewardFor(livesRemaining int, odds uint32) int64 {
	base := s.cfg.RewardByLives[livesRemaining]
	if base == 0 || s.cfg.DefaultOdds == 0 {
		return base
	}
	return base * int64(odds) / int64(s.cfg.DefaultOdds)
}

func (s *Service) createCall(ctx context.Context, tx store.Store, caller common.Address, eventID, assetID uint64, choice domain.Outcome, odds uint32) (string, error) {
	if odds == 0 {
		odds = s.cfg.DefaultOdds
	}

	callID := ulid.MustNew(ulid.Timestamp(s.clock.Now()), rand.Reader).String()
	call := &schema.Call{
		ID:             callID,
		EventID:        eventID,
		CreatorStaker:  domain.AddressKey(caller),
		CreatorAssetID: assetID,
		CreatorChoice:  choice,
		Odds:           odds,
		CreatedAt:      s.clock.Now(),
	}

	if err := s.makeBet(ctx, tx, caller, eventID, assetID, choice, odds, &callID); err != nil {
		return "", err
	}
	if err := tx.CreateCall(ctx, call); err != nil {
		return "", err
	}
	return callID, nil
}

func (s *Service) acceptCall(ctx context.Context, tx store.Store, caller common.Address, callID string, assetID uint64, choice domain.Outcome) error {
	call, err := tx.GetCallForUpdate(ctx, callID)
	if err != nil {
		return err
	}
	if call == nil {
		return domain.ErrCallNotFound
	}
	if call.Accepted() {
		return domain.ErrCallAlreadyAccepted
	}
	key := domain.AddressKey(caller)
	if call.CreatorStaker == key {
		return domain.ErrCallSelfAccept
	}
	if choice == call.CreatorChoice {
		return domain.ErrCallSameChoice
	}

	if err := s.makeBet(ctx, tx, caller, call.EventID, assetID, choice, call.Odds, &callID); err != nil {
		return err
	}

	now := s.clock.Now()
	call.AcceptorStaker = &key
	call.AcceptorAssetID = &assetID
	call.AcceptorChoice = &choice
	call.AcceptedAt = &now
	return tx.SaveCall(ctx, call)
}

// publish emits an arena event after the transaction committed. Delivery is
// best effort; failures are logged, never surfaced, and never unwind state.
func (s *Service) publish(ctx context.Context, event domain.ArenaEvent) {
	if err := s.publisher.PublishArenaEvent(ctx, event); err != nil {
		logger.WarnCtx(ctx, "Failed to publish arena event",
			zap.String("type", string(event.Type)),
			zap.Uint64("event_id", event.EventID),
			zap.Error(err),
		)
	}
}

func consumeSignedNonce(ctx context.Context, tx store.Store, signer common.Address, claimed uint64) error {
	consumed, err := tx.ConsumeNonce(ctx, domain.AddressKey(signer))
	if err != nil {
		return err
	}
	if consumed != claimed {
		return domain.ErrStaleNonce
	}
	return nil
}
