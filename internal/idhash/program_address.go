package idhash

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"

	"solana-token-ledger/internal/domain"
)

// Seed limits for program-derived addresses.
const (
	MaxSeeds      = 16
	MaxSeedLength = 32
)

const pdaMarker = "ProgramDerivedAddress"

// ErrNoViableBump is returned when every bump seed yields an on-curve point.
var ErrNoViableBump = errors.New("unable to find a viable program address bump seed")

// CreateProgramAddress hashes seeds and program into an address.
// Formula: SHA256(seed_0 | ... | seed_n | program | "ProgramDerivedAddress").
// The result must not be a valid ed25519 point so that no private key exists for it.
func CreateProgramAddress(seeds [][]byte, program domain.Address) (domain.Address, error) {
	if len(seeds) > MaxSeeds {
		return domain.Address{}, fmt.Errorf("too many seeds: %d", len(seeds))
	}

	h := sha256.New()
	for _, s := range seeds {
		if len(s) > MaxSeedLength {
			return domain.Address{}, fmt.Errorf("seed too long: %d bytes", len(s))
		}
		h.Write(s)
	}
	h.Write(program[:])
	h.Write([]byte(pdaMarker))

	var addr domain.Address
	copy(addr[:], h.Sum(nil))

	if IsOnCurve(addr) {
		return domain.Address{}, fmt.Errorf("derived address %s is on curve", addr)
	}
	return addr, nil
}

// FindProgramAddress searches bump seeds from 255 down and returns the first
// off-curve address together with its bump.
func FindProgramAddress(seeds [][]byte, program domain.Address) (domain.Address, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, program)
		if err == nil {
			return addr, uint8(bump), nil
		}
	}
	return domain.Address{}, 0, ErrNoViableBump
}

// IsOnCurve reports whether a decodes to a point on the ed25519 curve.
func IsOnCurve(a domain.Address) bool {
	_, err := new(edwards25519.Point).SetBytes(a[:])
	return err == nil
}
