package delegated

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maincard-gg/card-arena/internal/domain"
)

func TestVerifyBetBatch(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := crypto.PubkeyToAddress(key.PublicKey)

	legs := []BetLeg{
		{EventID: 1, AssetID: 10, Choice: domain.OutcomeFirstWon, Odds: 100},
		{EventID: 2, AssetID: 11, Choice: domain.OutcomeSecondWon, Odds: 150},
	}

	d := BetBatchDigest(legs, 7)
	sig, err := Sign(d, key)
	require.NoError(t, err)

	assert.NoError(t, Verify(signer, d, sig))
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := crypto.PubkeyToAddress(key.PublicKey)

	legs := []BetLeg{{EventID: 1, AssetID: 10, Choice: domain.OutcomeFirstWon, Odds: 100}}
	sig, err := Sign(BetBatchDigest(legs, 0), key)
	require.NoError(t, err)

	// Changed choice
	tampered := []BetLeg{{EventID: 1, AssetID: 10, Choice: domain.OutcomeSecondWon, Odds: 100}}
	err = Verify(signer, BetBatchDigest(tampered, 0), sig)
	assert.ErrorIs(t, err, domain.ErrBadSignature)

	// Changed nonce
	err = Verify(signer, BetBatchDigest(legs, 1), sig)
	assert.ErrorIs(t, err, domain.ErrBadSignature)
}

func TestVerifyRejectsWrongSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	otherKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	other := crypto.PubkeyToAddress(otherKey.PublicKey)

	d := TransferDigest(other, other, 5, 0)
	sig, err := Sign(d, key)
	require.NoError(t, err)

	err = Verify(other, d, sig)
	assert.ErrorIs(t, err, domain.ErrBadSignature)
}

func TestVerifyRejectsMalformedSignature(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := crypto.PubkeyToAddress(key.PublicKey)

	d := RestoreLifeDigest(1, 10, 0)
	err = Verify(signer, d, []byte{0x01, 0x02})
	assert.ErrorIs(t, err, domain.ErrBadSignature)
}

func TestRecoverNormalizesRecoveryID(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := crypto.PubkeyToAddress(key.PublicKey)

	d := AcceptCallDigest("01ARZ3NDEKTSV4RRFFQ69G5FAV", 3, domain.OutcomeSecondWon, 4)
	sig, err := Sign(d, key)
	require.NoError(t, err)

	// Wallet-style signatures carry V as 27/28
	walletSig := make([]byte, len(sig))
	copy(walletSig, sig)
	walletSig[64] += 27

	recovered, err := Recover(d, walletSig)
	require.NoError(t, err)
	assert.Equal(t, signer, recovered)
}

func TestDigestsDifferByOperation(t *testing.T) {
	// The same numeric fields must produce different digests per operation,
	// so a signature for one operation cannot authorize another
	createCall := CreateCallDigest(1, 2, domain.OutcomeFirstWon, 100, 3)
	legs := []BetLeg{{EventID: 1, AssetID: 2, Choice: domain.OutcomeFirstWon, Odds: 100}}
	bet := BetBatchDigest(legs, 3)
	assert.NotEqual(t, createCall, bet)

	restore := RestoreLifeDigest(1, 2, 3)
	assert.NotEqual(t, createCall, restore)
	assert.NotEqual(t, bet, restore)
}
