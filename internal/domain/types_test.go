package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRarityLadder(t *testing.T) {
	next, ok := RarityRegular.Next()
	assert.True(t, ok)
	assert.Equal(t, RarityRare, next)

	next, ok = RarityLegendary.Next()
	assert.True(t, ok)
	assert.Equal(t, RarityMythic, next)

	// The top tier does not upgrade
	_, ok = RarityMythic.Next()
	assert.False(t, ok)

	assert.True(t, RarityRegular.IsTradeable())
	assert.True(t, RarityMythic.IsTradeable())
	assert.False(t, RarityDemo.IsTradeable())
}

func TestOutcomeValid(t *testing.T) {
	assert.False(t, OutcomeUnset.Valid())
	assert.True(t, OutcomeFirstWon.Valid())
	assert.True(t, OutcomeSecondWon.Valid())
	assert.False(t, Outcome(1).Valid())
	assert.False(t, Outcome(3).Valid())
}

func TestDeriveEventState(t *testing.T) {
	deadline := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	// Open strictly before the deadline
	state := DeriveEventState(deadline.Add(-time.Second), deadline, OutcomeUnset)
	assert.Equal(t, EventOpen, state)

	// At the deadline betting is closed
	state = DeriveEventState(deadline, deadline, OutcomeUnset)
	assert.Equal(t, EventAwaitingResult, state)

	state = DeriveEventState(deadline.Add(time.Hour), deadline, OutcomeUnset)
	assert.Equal(t, EventAwaitingResult, state)

	// A posted result is terminal regardless of the clock
	state = DeriveEventState(deadline.Add(-time.Hour), deadline, OutcomeFirstWon)
	assert.Equal(t, EventSettled, state)
}

func TestCapabilityValid(t *testing.T) {
	assert.True(t, CapabilityMinter.Valid())
	assert.True(t, CapabilityAdministrator.Valid())
	assert.False(t, Capability("superuser").Valid())
}

func TestAddressKey(t *testing.T) {
	a := "0xAbCd000000000000000000000000000000001234"
	assert.True(t, IsHexAddress(a))
}

func TestDomainErrorClasses(t *testing.T) {
	de, ok := AsDomainError(ErrCooloffActive)
	assert.True(t, ok)
	assert.Equal(t, ClassTiming, de.Class)
	assert.Equal(t, "cooloff_active", de.Code)

	de, ok = AsDomainError(ErrInsufficientPayment)
	assert.True(t, ok)
	assert.Equal(t, ClassEconomic, de.Class)

	_, ok = AsDomainError(assert.AnError)
	assert.False(t, ok)
}
