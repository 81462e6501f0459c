// Package dto holds the REST request and response shapes and their mapping
// from the storage models.
package dto

import (
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/maincard-gg/card-arena/internal/delegated"
	"github.com/maincard-gg/card-arena/internal/domain"
	"github.com/maincard-gg/card-arena/internal/store/schema"
)

// AssetResponse represents a card
type AssetResponse struct {
	ID             uint64              `json:"id"`
	Owner          string              `json:"owner"`
	Rarity         string              `json:"rarity"`
	LivesRemaining int                 `json:"lives_remaining"`
	ConsequentWins int                 `json:"consequent_wins"`
	TotalWagers    int                 `json:"total_wagers"`
	PartnerID      uint32              `json:"partner_id"`
	CustodyState   domain.CustodyState `json:"custody_state"`
	LastSettledAt  *time.Time          `json:"last_settled_at,omitempty"`
	MintedAt       time.Time           `json:"minted_at"`
}

// MapAssetToDTO maps a schema.Asset to AssetResponse
func MapAssetToDTO(asset *schema.Asset) AssetResponse {
	return AssetResponse{
		ID:             asset.ID,
		Owner:          asset.Owner,
		Rarity:         asset.Rarity.String(),
		LivesRemaining: asset.LivesRemaining,
		ConsequentWins: asset.ConsequentWins,
		TotalWagers:    asset.TotalWagers,
		PartnerID:      asset.PartnerID,
		CustodyState:   asset.CustodyState,
		LastSettledAt:  asset.LastSettledAt,
		MintedAt:       asset.MintedAt,
	}
}

// AssetListResponse represents a paginated list of cards
type AssetListResponse struct {
	Items  []AssetResponse `json:"items"`
	Offset int             `json:"offset"`
	Total  int64           `json:"total"`
}

// EventResponse represents a wager event with its derived state
type EventResponse struct {
	ID                uint64            `json:"id"`
	OpensForBetsUntil time.Time         `json:"opens_for_bets_until"`
	DescriptorHash    string            `json:"descriptor_hash"`
	State             domain.EventState `json:"state"`
	Result            domain.Outcome    `json:"result,omitempty"`
	ResultPostedAt    *time.Time        `json:"result_posted_at,omitempty"`
}

// MapEventToDTO maps a schema.WagerEvent to EventResponse
func MapEventToDTO(event *schema.WagerEvent, state domain.EventState) EventResponse {
	return EventResponse{
		ID:                event.ID,
		OpensForBetsUntil: event.OpensForBetsUntil,
		DescriptorHash:    event.DescriptorHash,
		State:             state,
		Result:            event.Result,
		ResultPostedAt:    event.ResultPostedAt,
	}
}

// WagerResponse represents an open wager
type WagerResponse struct {
	EventID  uint64         `json:"event_id"`
	AssetID  uint64         `json:"asset_id"`
	Staker   string         `json:"staker"`
	Choice   domain.Outcome `json:"choice"`
	Odds     uint32         `json:"odds"`
	CallID   *string        `json:"call_id,omitempty"`
	PlacedAt time.Time      `json:"placed_at"`
}

// MapWagerToDTO maps a schema.Wager to WagerResponse
func MapWagerToDTO(wager *schema.Wager) WagerResponse {
	return WagerResponse{
		EventID:  wager.EventID,
		AssetID:  wager.AssetID,
		Staker:   wager.Staker,
		Choice:   wager.Choice,
		Odds:     wager.Odds,
		CallID:   wager.CallID,
		PlacedAt: wager.PlacedAt,
	}
}

// WagerListResponse represents a paginated list of wagers
type WagerListResponse struct {
	Items  []WagerResponse `json:"items"`
	Offset int             `json:"offset"`
	Total  int64           `json:"total"`
}

// CallResponse represents a peer duel
type CallResponse struct {
	ID              string          `json:"id"`
	EventID         uint64          `json:"event_id"`
	CreatorStaker   string          `json:"creator_staker"`
	CreatorAssetID  uint64          `json:"creator_asset_id"`
	CreatorChoice   domain.Outcome  `json:"creator_choice"`
	Odds            uint32          `json:"odds"`
	AcceptorStaker  *string         `json:"acceptor_staker,omitempty"`
	AcceptorAssetID *uint64         `json:"acceptor_asset_id,omitempty"`
	AcceptorChoice  *domain.Outcome `json:"acceptor_choice,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	AcceptedAt      *time.Time      `json:"accepted_at,omitempty"`
}

// MapCallToDTO maps a schema.Call to CallResponse
func MapCallToDTO(call *schema.Call) CallResponse {
	return CallResponse{
		ID:              call.ID,
		EventID:         call.EventID,
		CreatorStaker:   call.CreatorStaker,
		CreatorAssetID:  call.CreatorAssetID,
		CreatorChoice:   call.CreatorChoice,
		Odds:            call.Odds,
		AcceptorStaker:  call.AcceptorStaker,
		AcceptorAssetID: call.AcceptorAssetID,
		AcceptorChoice:  call.AcceptorChoice,
		CreatedAt:       call.CreatedAt,
		AcceptedAt:      call.AcceptedAt,
	}
}

// CallListResponse represents a paginated list of calls
type CallListResponse struct {
	Items  []CallResponse `json:"items"`
	Offset int            `json:"offset"`
	Total  int64          `json:"total"`
}

// NonceResponse carries the next delegated nonce for an account
type NonceResponse struct {
	Address string `json:"address"`
	Nonce   uint64 `json:"nonce"`
}

// BalanceResponse carries the ledger balance of an account
type BalanceResponse struct {
	Address string `json:"address"`
	Amount  int64  `json:"amount"`
}

// MintRequest is the body of POST /assets/mint
type MintRequest struct {
	Caller    string `json:"caller" binding:"required"`
	To        string `json:"to" binding:"required"`
	Rarity    uint8  `json:"rarity"`
	PartnerID uint32 `json:"partner_id"`
}

// Validate validates the mint request
func (r *MintRequest) Validate() error {
	if !domain.IsHexAddress(r.Caller) {
		return errors.New("caller must be a hex address")
	}
	if !domain.IsHexAddress(r.To) {
		return errors.New("to must be a hex address")
	}
	return nil
}

// MintPaidRequest is the body of POST /assets/mint/paid
type MintPaidRequest struct {
	Buyer   string `json:"buyer" binding:"required"`
	Rarity  uint8  `json:"rarity"`
	Payment int64  `json:"payment"`
}

// Validate validates the paid mint request
func (r *MintPaidRequest) Validate() error {
	if !domain.IsHexAddress(r.Buyer) {
		return errors.New("buyer must be a hex address")
	}
	if r.Payment < 0 {
		return errors.New("payment must not be negative")
	}
	return nil
}

// MergeRequest is the body of POST /assets/merge
type MergeRequest struct {
	Caller  string `json:"caller" binding:"required"`
	AssetA  uint64 `json:"asset_a" binding:"required"`
	AssetB  uint64 `json:"asset_b" binding:"required"`
	Payment int64  `json:"payment"`
}

// Validate validates the merge request
func (r *MergeRequest) Validate() error {
	if !domain.IsHexAddress(r.Caller) {
		return errors.New("caller must be a hex address")
	}
	if r.AssetA == r.AssetB {
		return errors.New("cannot merge an asset with itself")
	}
	if r.Payment < 0 {
		return errors.New("payment must not be negative")
	}
	return nil
}

// BurnRequest is the body of POST /assets/:id/burn
type BurnRequest struct {
	Caller string `json:"caller" binding:"required"`
}

// Validate validates the burn request
func (r *BurnRequest) Validate() error {
	if !domain.IsHexAddress(r.Caller) {
		return errors.New("caller must be a hex address")
	}
	return nil
}

// TransferRequest is the body of POST /assets/:id/transfer.
// Nonce and Signature are set only on the delegated variant.
type TransferRequest struct {
	From      string  `json:"from" binding:"required"`
	To        string  `json:"to" binding:"required"`
	Nonce     *uint64 `json:"nonce,omitempty"`
	Signature string  `json:"signature,omitempty"`
}

// Validate validates the transfer request
func (r *TransferRequest) Validate() error {
	if !domain.IsHexAddress(r.From) {
		return errors.New("from must be a hex address")
	}
	if !domain.IsHexAddress(r.To) {
		return errors.New("to must be a hex address")
	}
	return validateDelegatedFields(r.Nonce, r.Signature)
}

// Delegated reports whether the request carries a signature
func (r *TransferRequest) Delegated() bool {
	return r.Nonce != nil
}

// RestoreLifeRequest is the body of POST /assets/:id/restore-life
type RestoreLifeRequest struct {
	Caller    string  `json:"caller" binding:"required"`
	Payment   int64   `json:"payment"`
	Nonce     *uint64 `json:"nonce,omitempty"`
	Signature string  `json:"signature,omitempty"`
}

// Validate validates the restore-life request
func (r *RestoreLifeRequest) Validate() error {
	if !domain.IsHexAddress(r.Caller) {
		return errors.New("caller must be a hex address")
	}
	if r.Payment < 0 {
		return errors.New("payment must not be negative")
	}
	return validateDelegatedFields(r.Nonce, r.Signature)
}

// Delegated reports whether the request carries a signature
func (r *RestoreLifeRequest) Delegated() bool {
	return r.Nonce != nil
}

// SetTariffRequest is the body of PUT /tariffs
type SetTariffRequest struct {
	Caller string `json:"caller" binding:"required"`
	Kind   string `json:"kind" binding:"required"`
	Rarity uint8  `json:"rarity"`
	Amount int64  `json:"amount"`
}

// Validate validates the tariff request
func (r *SetTariffRequest) Validate() error {
	if !domain.IsHexAddress(r.Caller) {
		return errors.New("caller must be a hex address")
	}
	switch domain.TariffKind(r.Kind) {
	case domain.TariffMint, domain.TariffUpgrade, domain.TariffRestoreLife:
	default:
		return errors.New("kind must be one of mint, upgrade, restore_life")
	}
	if r.Amount < 0 {
		return errors.New("amount must not be negative")
	}
	return nil
}

// CreateEventRequest is the body of POST /events
type CreateEventRequest struct {
	Caller            string    `json:"caller" binding:"required"`
	EventID           uint64    `json:"event_id" binding:"required"`
	OpensForBetsUntil time.Time `json:"opens_for_bets_until" binding:"required"`
	DescriptorHash    string    `json:"descriptor_hash" binding:"required"`
}

// Validate validates the create-event request
func (r *CreateEventRequest) Validate() error {
	if !domain.IsHexAddress(r.Caller) {
		return errors.New("caller must be a hex address")
	}
	return nil
}

// BetRequest is the body of POST /wagers
type BetRequest struct {
	Caller  string `json:"caller" binding:"required"`
	EventID uint64 `json:"event_id" binding:"required"`
	AssetID uint64 `json:"asset_id" binding:"required"`
	Choice  uint8  `json:"choice" binding:"required"`
	Odds    uint32 `json:"odds"`
}

// Validate validates the bet request
func (r *BetRequest) Validate() error {
	if !domain.IsHexAddress(r.Caller) {
		return errors.New("caller must be a hex address")
	}
	if !domain.Outcome(r.Choice).Valid() {
		return errors.New("choice is not a valid outcome")
	}
	return nil
}

// BetBatchRequest is the body of POST /wagers/delegated
type BetBatchRequest struct {
	Signer    string             `json:"signer" binding:"required"`
	Legs      []delegated.BetLeg `json:"legs" binding:"required"`
	Nonce     uint64             `json:"nonce"`
	Signature string             `json:"signature" binding:"required"`
}

// Validate validates the delegated bet batch
func (r *BetBatchRequest) Validate() error {
	if !domain.IsHexAddress(r.Signer) {
		return errors.New("signer must be a hex address")
	}
	if len(r.Legs) == 0 {
		return errors.New("legs must not be empty")
	}
	return validateSignature(r.Signature)
}

// SetResultRequest is the body of POST /events/:id/result
type SetResultRequest struct {
	Caller  string `json:"caller" binding:"required"`
	Outcome uint8  `json:"outcome" binding:"required"`
}

// Validate validates the set-result request
func (r *SetResultRequest) Validate() error {
	if !domain.IsHexAddress(r.Caller) {
		return errors.New("caller must be a hex address")
	}
	return nil
}

// TakeCardRequest is the body of POST /wagers/:asset_id/take
type TakeCardRequest struct {
	Caller string `json:"caller" binding:"required"`
}

// Validate validates the take-card request
func (r *TakeCardRequest) Validate() error {
	if !domain.IsHexAddress(r.Caller) {
		return errors.New("caller must be a hex address")
	}
	return nil
}

// CreateCallRequest is the body of POST /calls
type CreateCallRequest struct {
	Caller    string  `json:"caller" binding:"required"`
	EventID   uint64  `json:"event_id" binding:"required"`
	AssetID   uint64  `json:"asset_id" binding:"required"`
	Choice    uint8   `json:"choice" binding:"required"`
	Odds      uint32  `json:"odds"`
	Nonce     *uint64 `json:"nonce,omitempty"`
	Signature string  `json:"signature,omitempty"`
}

// Validate validates the create-call request
func (r *CreateCallRequest) Validate() error {
	if !domain.IsHexAddress(r.Caller) {
		return errors.New("caller must be a hex address")
	}
	if !domain.Outcome(r.Choice).Valid() {
		return errors.New("choice is not a valid outcome")
	}
	return validateDelegatedFields(r.Nonce, r.Signature)
}

// Delegated reports whether the request carries a signature
func (r *CreateCallRequest) Delegated() bool {
	return r.Nonce != nil
}

// AcceptCallRequest is the body of POST /calls/:id/accept
type AcceptCallRequest struct {
	Caller    string  `json:"caller" binding:"required"`
	AssetID   uint64  `json:"asset_id" binding:"required"`
	Choice    uint8   `json:"choice" binding:"required"`
	Nonce     *uint64 `json:"nonce,omitempty"`
	Signature string  `json:"signature,omitempty"`
}

// Validate validates the accept-call request
func (r *AcceptCallRequest) Validate() error {
	if !domain.IsHexAddress(r.Caller) {
		return errors.New("caller must be a hex address")
	}
	if !domain.Outcome(r.Choice).Valid() {
		return errors.New("choice is not a valid outcome")
	}
	return validateDelegatedFields(r.Nonce, r.Signature)
}

// Delegated reports whether the request carries a signature
func (r *AcceptCallRequest) Delegated() bool {
	return r.Nonce != nil
}

// GrantCapabilityRequest is the body of POST /capabilities
type GrantCapabilityRequest struct {
	Caller     string `json:"caller" binding:"required"`
	Grantee    string `json:"grantee" binding:"required"`
	Capability string `json:"capability" binding:"required"`
}

// Validate validates the capability grant request
func (r *GrantCapabilityRequest) Validate() error {
	if !domain.IsHexAddress(r.Caller) {
		return errors.New("caller must be a hex address")
	}
	if !domain.IsHexAddress(r.Grantee) {
		return errors.New("grantee must be a hex address")
	}
	return nil
}

// DecodeSignature decodes a 0x-prefixed hex signature
func DecodeSignature(s string) ([]byte, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, errors.New("signature must be hex encoded")
	}
	if len(sig) != delegated.SignatureLength {
		return nil, errors.New("signature must be 65 bytes")
	}
	return sig, nil
}

func validateSignature(s string) error {
	_, err := DecodeSignature(s)
	return err
}

// validateDelegatedFields checks nonce and signature are provided together
func validateDelegatedFields(nonce *uint64, signature string) error {
	if nonce == nil && signature == "" {
		return nil
	}
	if nonce == nil || signature == "" {
		return errors.New("nonce and signature must be provided together")
	}
	return validateSignature(signature)
}
