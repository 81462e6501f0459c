// Package delegated implements the replay-protected signature scheme shared
// by every component that accepts relayer-submitted operations.
//
// A client packs the operation payload fields in a fixed order, appends the
// account nonce, hashes the packed bytes with keccak256 and signs the digest
// as an Ethereum personal message. The server recomputes the same digest,
// recovers the signer from the signature and compares it to the claimed
// account. The nonce makes every signature single-use.
package delegated

import (
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/maincard-gg/card-arena/internal/domain"
)

// SignatureLength is the expected [R || S || V] signature size
const SignatureLength = 65

// BetLeg is one (event, asset, choice) triple of a delegated bet batch
type BetLeg struct {
	EventID uint64         `json:"event_id"`
	AssetID uint64         `json:"asset_id"`
	Choice  domain.Outcome `json:"choice"`
	Odds    uint32         `json:"odds"`
}

// packUint appends v as a 32-byte big-endian word, mirroring how the
// original payloads pack uint256 values
func packUint(buf []byte, v uint64) []byte {
	var word [32]byte
	binary.BigEndian.PutUint64(word[24:], v)
	return append(buf, word[:]...)
}

// packAddress appends the 20 address bytes
func packAddress(buf []byte, a common.Address) []byte {
	return append(buf, a.Bytes()...)
}

// Operation tags keep payloads with identical field layouts from producing
// the same digest, so a signature authorizes exactly one operation kind
const (
	tagBet         = "bet"
	tagCreateCall  = "call:create"
	tagAcceptCall  = "call:accept"
	tagRestoreLife = "restore"
	tagTransfer    = "transfer"
)

// digest hashes packed payload bytes and wraps them as an Ethereum personal
// message, which is what wallet signers produce
func digest(packed []byte) common.Hash {
	inner := crypto.Keccak256Hash(packed)
	return crypto.Keccak256Hash(
		[]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(inner))),
		inner.Bytes(),
	)
}

// BetBatchDigest computes the digest a signer must sign to authorize a batch
// of bets. Field order: (eventID, assetID, choice, odds) per leg, then nonce.
func BetBatchDigest(legs []BetLeg, nonce uint64) common.Hash {
	buf := make([]byte, 0, len(tagBet)+(len(legs)*4+1)*32)
	buf = append(buf, tagBet...)
	for _, leg := range legs {
		buf = packUint(buf, leg.EventID)
		buf = packUint(buf, leg.AssetID)
		buf = packUint(buf, uint64(leg.Choice))
		buf = packUint(buf, uint64(leg.Odds))
	}
	buf = packUint(buf, nonce)
	return digest(buf)
}

// CreateCallDigest computes the digest authorizing call creation.
// Field order: eventID, assetID, choice, odds, nonce.
func CreateCallDigest(eventID, assetID uint64, choice domain.Outcome, odds uint32, nonce uint64) common.Hash {
	buf := make([]byte, 0, len(tagCreateCall)+5*32)
	buf = append(buf, tagCreateCall...)
	buf = packUint(buf, eventID)
	buf = packUint(buf, assetID)
	buf = packUint(buf, uint64(choice))
	buf = packUint(buf, uint64(odds))
	buf = packUint(buf, nonce)
	return digest(buf)
}

// AcceptCallDigest computes the digest authorizing call acceptance.
// Field order: callID bytes, assetID, choice, nonce.
func AcceptCallDigest(callID string, assetID uint64, choice domain.Outcome, nonce uint64) common.Hash {
	buf := make([]byte, 0, len(tagAcceptCall)+len(callID)+3*32)
	buf = append(buf, tagAcceptCall...)
	buf = append(buf, []byte(callID)...)
	buf = packUint(buf, assetID)
	buf = packUint(buf, uint64(choice))
	buf = packUint(buf, nonce)
	return digest(buf)
}

// RestoreLifeDigest computes the digest authorizing a delegated life
// restoration. Field order: assetID, payment, nonce.
func RestoreLifeDigest(assetID uint64, payment int64, nonce uint64) common.Hash {
	buf := make([]byte, 0, len(tagRestoreLife)+3*32)
	buf = append(buf, tagRestoreLife...)
	buf = packUint(buf, assetID)
	buf = packUint(buf, uint64(payment))
	buf = packUint(buf, nonce)
	return digest(buf)
}

// TransferDigest computes the digest authorizing a delegated transfer.
// Field order: from, to, assetID, nonce.
func TransferDigest(from, to common.Address, assetID, nonce uint64) common.Hash {
	buf := make([]byte, 0, len(tagTransfer)+2*20+2*32)
	buf = append(buf, tagTransfer...)
	buf = packAddress(buf, from)
	buf = packAddress(buf, to)
	buf = packUint(buf, assetID)
	buf = packUint(buf, nonce)
	return digest(buf)
}

// Recover returns the address that produced sig over the digest
func Recover(d common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", SignatureLength, len(sig))
	}

	// Wallets emit V as 27/28; secp256k1 recovery wants 0/1
	norm := make([]byte, SignatureLength)
	copy(norm, sig)
	if norm[64] >= 27 {
		norm[64] -= 27
	}

	pub, err := crypto.SigToPub(d.Bytes(), norm)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Verify checks that sig over the digest was produced by the claimed signer.
// Any mismatch is reported as domain.ErrBadSignature so callers fail closed
// without leaking which part of the check missed.
func Verify(signer common.Address, d common.Hash, sig []byte) error {
	recovered, err := Recover(d, sig)
	if err != nil {
		return domain.ErrBadSignature
	}
	if recovered != signer {
		return domain.ErrBadSignature
	}
	return nil
}

// Sign produces a signature accepted by Verify. Used by tests and by clients
// constructing delegated payloads.
func Sign(d common.Hash, key *ecdsa.PrivateKey) ([]byte, error) {
	return crypto.Sign(d.Bytes(), key)
}
