package raydium

import (
	"crypto/sha256"
	"errors"

	"filippo.io/edwards25519"
	"github.com/gagliardetto/solana-go"
)

// ErrNoViableBump is returned when no bump seed yields an off-curve address.
var ErrNoViableBump = errors.New("no viable bump seed")

const pdaMarker = "ProgramDerivedAddress"

// FindProgramAddress derives a program address and its bump seed.
// Bumps are tried from 255 down; the first hash that is not an ed25519
// point wins.
func FindProgramAddress(seeds [][]byte, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	for bump := byte(255); bump > 0; bump-- {
		data := make([]byte, 0, 64)
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, bump)
		data = append(data, programID[:]...)
		data = append(data, pdaMarker...)

		hash := sha256.Sum256(data)
		if !IsOnCurve(hash[:]) {
			return solana.PublicKeyFromBytes(hash[:]), bump, nil
		}
	}
	return solana.PublicKey{}, 0, ErrNoViableBump
}

// IsOnCurve reports whether b is a valid compressed ed25519 point.
// Wallet signers must be on the curve; program addresses must not.
func IsOnCurve(b []byte) bool {
	if len(b) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// AuthorityAddress returns the pool vault authority PDA.
func AuthorityAddress() (solana.PublicKey, error) {
	addr, _, err := FindProgramAddress([][]byte{[]byte(AuthoritySeed)}, ProgramID)
	return addr, err
}

// AssociatedTokenAddress returns the associated token account of owner
// for mint under the given token program.
func AssociatedTokenAddress(owner, mint, tokenProgram solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := FindProgramAddress([][]byte{owner[:], tokenProgram[:], mint[:]}, AssociatedTokenProgramID)
	return addr, err
}
