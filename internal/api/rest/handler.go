package rest

import (
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/maincard-gg/card-arena/internal/api/rest/dto"
	"github.com/maincard-gg/card-arena/internal/arena"
	"github.com/maincard-gg/card-arena/internal/capability"
	"github.com/maincard-gg/card-arena/internal/domain"
	"github.com/maincard-gg/card-arena/internal/ledger"
	"github.com/maincard-gg/card-arena/internal/registry"
	"github.com/maincard-gg/card-arena/internal/store"
)

// Handler defines the interface for REST API handlers
type Handler interface {
	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)

	// GetAsset retrieves a card by id
	// GET /api/v1/assets/:id
	GetAsset(c *gin.Context)

	// ListAccountAssets retrieves an account's cards
	// GET /api/v1/accounts/:address/assets?limit=<limit>&offset=<offset>
	ListAccountAssets(c *gin.Context)

	// GetAccountNonce retrieves the next delegated nonce for an account
	// GET /api/v1/accounts/:address/nonce
	GetAccountNonce(c *gin.Context)

	// GetAccountBalance retrieves an account's ledger balance
	// GET /api/v1/accounts/:address/balance
	GetAccountBalance(c *gin.Context)

	// ListAccountWagers retrieves an account's open wagers
	// GET /api/v1/accounts/:address/wagers?limit=<limit>&offset=<offset>
	ListAccountWagers(c *gin.Context)

	// ListAccountCalls retrieves calls an account participates in
	// GET /api/v1/accounts/:address/calls?limit=<limit>&offset=<offset>
	ListAccountCalls(c *gin.Context)

	// Mint issues a card by capability
	// POST /api/v1/assets/mint
	Mint(c *gin.Context)

	// MintPaid issues a card against payment
	// POST /api/v1/assets/mint/paid
	MintPaid(c *gin.Context)

	// Merge merges two cards into one of the next tier
	// POST /api/v1/assets/merge
	Merge(c *gin.Context)

	// Burn destroys a card
	// POST /api/v1/assets/:id/burn
	Burn(c *gin.Context)

	// Transfer moves a card between accounts, directly or by signature
	// POST /api/v1/assets/:id/transfer
	Transfer(c *gin.Context)

	// RestoreLife restores one life to a card, directly or by signature
	// POST /api/v1/assets/:id/restore-life
	RestoreLife(c *gin.Context)

	// SetTariff updates a configured price
	// PUT /api/v1/tariffs
	SetTariff(c *gin.Context)

	// GetEvent retrieves a wager event with its derived state
	// GET /api/v1/events/:id
	GetEvent(c *gin.Context)

	// CreateEvent registers a wager event
	// POST /api/v1/events
	CreateEvent(c *gin.Context)

	// SetEventResult posts an event result exactly once
	// POST /api/v1/events/:id/result
	SetEventResult(c *gin.Context)

	// MakeBet stakes a card on an event
	// POST /api/v1/wagers
	MakeBet(c *gin.Context)

	// MakeBetsDelegated places a signature-authorized bet batch
	// POST /api/v1/wagers/delegated
	MakeBetsDelegated(c *gin.Context)

	// TakeCard claims a staked card back
	// POST /api/v1/wagers/:asset_id/take
	TakeCard(c *gin.Context)

	// CreateCall opens a peer duel
	// POST /api/v1/calls
	CreateCall(c *gin.Context)

	// AcceptCall closes entry on an open call
	// POST /api/v1/calls/:id/accept
	AcceptCall(c *gin.Context)

	// GrantCapability grants a capability to an account
	// POST /api/v1/capabilities
	GrantCapability(c *gin.Context)

	// RevokeCapability removes a capability from an account
	// DELETE /api/v1/capabilities
	RevokeCapability(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	registry *registry.Service
	arena    *arena.Service
	ledger   ledger.Ledger
	store    store.Store
}

// NewHandler creates a new REST API handler
func NewHandler(reg *registry.Service, eng *arena.Service, led ledger.Ledger, st store.Store) Handler {
	return &handler{
		registry: reg,
		arena:    eng,
		ledger:   led,
		store:    st,
	}
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// GetAsset retrieves a card by id
func (h *handler) GetAsset(c *gin.Context) {
	assetID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	asset, err := h.registry.GetAsset(c.Request.Context(), assetID)
	if err != nil {
		respondOperationError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MapAssetToDTO(asset))
}

// ListAccountAssets retrieves an account's cards
func (h *handler) ListAccountAssets(c *gin.Context) {
	address, ok := parseAddressParam(c)
	if !ok {
		return
	}
	params, err := ParsePagination(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	assets, total, err := h.registry.ListAssetsByOwner(c.Request.Context(), address, params.Limit, params.Offset)
	if err != nil {
		respondOperationError(c, err)
		return
	}

	items := make([]dto.AssetResponse, 0, len(assets))
	for i := range assets {
		items = append(items, dto.MapAssetToDTO(&assets[i]))
	}
	c.JSON(http.StatusOK, dto.AssetListResponse{Items: items, Offset: params.Offset, Total: total})
}

// GetAccountNonce retrieves the next delegated nonce for an account
func (h *handler) GetAccountNonce(c *gin.Context) {
	address, ok := parseAddressParam(c)
	if !ok {
		return
	}

	nonce, err := h.arena.GetNonce(c.Request.Context(), address)
	if err != nil {
		respondOperationError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NonceResponse{
		Address: domain.AddressKey(address),
		Nonce:   nonce,
	})
}

// GetAccountBalance retrieves an account's ledger balance
func (h *handler) GetAccountBalance(c *gin.Context) {
	address, ok := parseAddressParam(c)
	if !ok {
		return
	}

	amount, err := h.ledger.BalanceOf(c.Request.Context(), h.store, address)
	if err != nil {
		respondOperationError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.BalanceResponse{
		Address: domain.AddressKey(address),
		Amount:  amount,
	})
}

// ListAccountWagers retrieves an account's open wagers
func (h *handler) ListAccountWagers(c *gin.Context) {
	address, ok := parseAddressParam(c)
	if !ok {
		return
	}
	params, err := ParsePagination(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	wagers, total, err := h.arena.ListWagersByStaker(c.Request.Context(), address, params.Limit, params.Offset)
	if err != nil {
		respondOperationError(c, err)
		return
	}

	items := make([]dto.WagerResponse, 0, len(wagers))
	for i := range wagers {
		items = append(items, dto.MapWagerToDTO(&wagers[i]))
	}
	c.JSON(http.StatusOK, dto.WagerListResponse{Items: items, Offset: params.Offset, Total: total})
}

// ListAccountCalls retrieves calls an account participates in
func (h *handler) ListAccountCalls(c *gin.Context) {
	address, ok := parseAddressParam(c)
	if !ok {
		return
	}
	params, err := ParsePagination(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	calls, total, err := h.arena.ListCallsByParticipant(c.Request.Context(), address, params.Limit, params.Offset)
	if err != nil {
		respondOperationError(c, err)
		return
	}

	items := make([]dto.CallResponse, 0, len(calls))
	for i := range calls {
		items = append(items, dto.MapCallToDTO(&calls[i]))
	}
	c.JSON(http.StatusOK, dto.CallListResponse{Items: items, Offset: params.Offset, Total: total})
}

// Mint issues a card by capability
func (h *handler) Mint(c *gin.Context) {
	var req dto.MintRequest
	if !bindAndValidate(c, &req, req.Validate) {
		return
	}

	assetID, err := h.registry.Mint(
		c.Request.Context(),
		common.HexToAddress(req.Caller),
		common.HexToAddress(req.To),
		domain.Rarity(req.Rarity),
		req.PartnerID,
	)
	if err != nil {
		respondOperationError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"asset_id": assetID})
}

// MintPaid issues a card against payment
func (h *handler) MintPaid(c *gin.Context) {
	var req dto.MintPaidRequest
	if !bindAndValidate(c, &req, req.Validate) {
		return
	}

	assetID, err := h.registry.MintPaid(
		c.Request.Context(),
		common.HexToAddress(req.Buyer),
		domain.Rarity(req.Rarity),
		req.Payment,
	)
	if err != nil {
		respondOperationError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"asset_id": assetID})
}

// Merge merges two cards into one of the next tier
func (h *handler) Merge(c *gin.Context) {
	var req dto.MergeRequest
	if !bindAndValidate(c, &req, req.Validate) {
		return
	}

	assetID, err := h.registry.Merge(
		c.Request.Context(),
		common.HexToAddress(req.Caller),
		req.AssetA,
		req.AssetB,
		req.Payment,
	)
	if err != nil {
		respondOperationError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"asset_id": assetID})
}

// Burn destroys a card
func (h *handler) Burn(c *gin.Context) {
	assetID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	var req dto.BurnRequest
	if !bindAndValidate(c, &req, req.Validate) {
		return
	}

	if err := h.registry.Burn(c.Request.Context(), common.HexToAddress(req.Caller), assetID); err != nil {
		respondOperationError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Transfer moves a card between accounts, directly or by signature
func (h *handler) Transfer(c *gin.Context) {
	assetID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	var req dto.TransferRequest
	if !bindAndValidate(c, &req, req.Validate) {
		return
	}

	from := common.HexToAddress(req.From)
	to := common.HexToAddress(req.To)

	var err error
	if req.Delegated() {
		var sig []byte
		sig, err = dto.DecodeSignature(req.Signature)
		if err != nil {
			respondValidationError(c, err.Error())
			return
		}
		err = h.registry.TransferDelegated(c.Request.Context(), from, to, assetID, *req.Nonce, sig)
	} else {
		err = h.registry.Transfer(c.Request.Context(), from, to, assetID)
	}
	if err != nil {
		respondOperationError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// RestoreLife restores one life to a card, directly or by signature
func (h *handler) RestoreLife(c *gin.Context) {
	assetID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	var req dto.RestoreLifeRequest
	if !bindAndValidate(c, &req, req.Validate) {
		return
	}

	caller := common.HexToAddress(req.Caller)

	var err error
	if req.Delegated() {
		var sig []byte
		sig, err = dto.DecodeSignature(req.Signature)
		if err != nil {
			respondValidationError(c, err.Error())
			return
		}
		err = h.registry.RestoreLifeDelegated(c.Request.Context(), caller, assetID, req.Payment, *req.Nonce, sig)
	} else {
		err = h.registry.RestoreLife(c.Request.Context(), caller, assetID, req.Payment)
	}
	if err != nil {
		respondOperationError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SetTariff updates a configured price
func (h *handler) SetTariff(c *gin.Context) {
	var req dto.SetTariffRequest
	if !bindAndValidate(c, &req, req.Validate) {
		return
	}

	err := h.registry.SetTariff(
		c.Request.Context(),
		common.HexToAddress(req.Caller),
		domain.TariffKind(req.Kind),
		domain.Rarity(req.Rarity),
		req.Amount,
	)
	if err != nil {
		respondOperationError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetEvent retrieves a wager event with its derived state
func (h *handler) GetEvent(c *gin.Context) {
	eventID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	event, state, err := h.arena.GetEvent(c.Request.Context(), eventID)
	if err != nil {
		respondOperationError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MapEventToDTO(event, state))
}

// CreateEvent registers a wager event
func (h *handler) CreateEvent(c *gin.Context) {
	var req dto.CreateEventRequest
	if !bindAndValidate(c, &req, req.Validate) {
		return
	}

	err := h.arena.CreateEvent(
		c.Request.Context(),
		common.HexToAddress(req.Caller),
		req.EventID,
		req.OpensForBetsUntil,
		req.DescriptorHash,
	)
	if err != nil {
		respondOperationError(c, err)
		return
	}

	c.Status(http.StatusCreated)
}

// SetEventResult posts an event result exactly once
func (h *handler) SetEventResult(c *gin.Context) {
	eventID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	var req dto.SetResultRequest
	if !bindAndValidate(c, &req, req.Validate) {
		return
	}

	err := h.arena.SetEventResult(
		c.Request.Context(),
		common.HexToAddress(req.Caller),
		eventID,
		domain.Outcome(req.Outcome),
	)
	if err != nil {
		respondOperationError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// MakeBet stakes a card on an event
func (h *handler) MakeBet(c *gin.Context) {
	var req dto.BetRequest
	if !bindAndValidate(c, &req, req.Validate) {
		return
	}

	err := h.arena.MakeBet(
		c.Request.Context(),
		common.HexToAddress(req.Caller),
		req.EventID,
		req.AssetID,
		domain.Outcome(req.Choice),
		req.Odds,
	)
	if err != nil {
		respondOperationError(c, err)
		return
	}

	c.Status(http.StatusCreated)
}

// MakeBetsDelegated places a signature-authorized bet batch
func (h *handler) MakeBetsDelegated(c *gin.Context) {
	var req dto.BetBatchRequest
	if !bindAndValidate(c, &req, req.Validate) {
		return
	}

	sig, err := dto.DecodeSignature(req.Signature)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	err = h.arena.MakeBetsDelegated(
		c.Request.Context(),
		common.HexToAddress(req.Signer),
		req.Legs,
		req.Nonce,
		sig,
	)
	if err != nil {
		respondOperationError(c, err)
		return
	}

	c.Status(http.StatusCreated)
}

// TakeCard claims a staked card back
func (h *handler) TakeCard(c *gin.Context) {
	assetID, ok := parseUintParam(c, "asset_id")
	if !ok {
		return
	}
	var req dto.TakeCardRequest
	if !bindAndValidate(c, &req, req.Validate) {
		return
	}

	if err := h.arena.TakeCard(c.Request.Context(), common.HexToAddress(req.Caller), assetID); err != nil {
		respondOperationError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// CreateCall opens a peer duel
func (h *handler) CreateCall(c *gin.Context) {
	var req dto.CreateCallRequest
	if !bindAndValidate(c, &req, req.Validate) {
		return
	}

	caller := common.HexToAddress(req.Caller)
	choice := domain.Outcome(req.Choice)

	var callID string
	var err error
	if req.Delegated() {
		var sig []byte
		sig, err = dto.DecodeSignature(req.Signature)
		if err != nil {
			respondValidationError(c, err.Error())
			return
		}
		callID, err = h.arena.CreateCallDelegated(c.Request.Context(), caller, req.EventID, req.AssetID, choice, req.Odds, *req.Nonce, sig)
	} else {
		callID, err = h.arena.CreateCall(c.Request.Context(), caller, req.EventID, req.AssetID, choice, req.Odds)
	}
	if err != nil {
		respondOperationError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"call_id": callID})
}

// AcceptCall closes entry on an open call
func (h *handler) AcceptCall(c *gin.Context) {
	callID := c.Param("id")
	if callID == "" {
		respondBadRequest(c, "Call id is required")
		return
	}
	var req dto.AcceptCallRequest
	if !bindAndValidate(c, &req, req.Validate) {
		return
	}

	caller := common.HexToAddress(req.Caller)
	choice := domain.Outcome(req.Choice)

	var err error
	if req.Delegated() {
		var sig []byte
		sig, err = dto.DecodeSignature(req.Signature)
		if err != nil {
			respondValidationError(c, err.Error())
			return
		}
		err = h.arena.AcceptCallDelegated(c.Request.Context(), caller, callID, req.AssetID, choice, *req.Nonce, sig)
	} else {
		err = h.arena.AcceptCall(c.Request.Context(), caller, callID, req.AssetID, choice)
	}
	if err != nil {
		respondOperationError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GrantCapability grants a capability to an account
func (h *handler) GrantCapability(c *gin.Context) {
	var req dto.GrantCapabilityRequest
	if !bindAndValidate(c, &req, req.Validate) {
		return
	}

	err := h.store.Atomically(c.Request.Context(), func(tx store.Store) error {
		return capability.Grant(
			c.Request.Context(),
			tx,
			common.HexToAddress(req.Caller),
			common.HexToAddress(req.Grantee),
			domain.Capability(req.Capability),
		)
	})
	if err != nil {
		respondOperationError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// RevokeCapability removes a capability from an account
func (h *handler) RevokeCapability(c *gin.Context) {
	var req dto.GrantCapabilityRequest
	if !bindAndValidate(c, &req, req.Validate) {
		return
	}

	err := h.store.Atomically(c.Request.Context(), func(tx store.Store) error {
		return capability.Revoke(
			c.Request.Context(),
			tx,
			common.HexToAddress(req.Caller),
			common.HexToAddress(req.Grantee),
			domain.Capability(req.Capability),
		)
	})
	if err != nil {
		respondOperationError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// bindAndValidate binds the JSON body and runs its Validate method
func bindAndValidate(c *gin.Context, req any, validate func() error) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return false
	}
	if err := validate(); err != nil {
		respondValidationError(c, err.Error())
		return false
	}
	return true
}

// parseUintParam parses a numeric path parameter, responding on failure
func parseUintParam(c *gin.Context, name string) (uint64, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		respondBadRequest(c, "Invalid "+name+" parameter")
		return 0, false
	}
	return v, true
}

// parseAddressParam parses the :address path parameter, responding on failure
func parseAddressParam(c *gin.Context) (common.Address, bool) {
	raw := c.Param("address")
	if !domain.IsHexAddress(raw) {
		respondBadRequest(c, "Invalid address parameter")
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}
