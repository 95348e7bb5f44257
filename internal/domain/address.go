package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// AddressLength is the byte length of an ed25519 public key.
const AddressLength = 32

// ErrInvalidAddress is returned when a string does not decode to a 32-byte address.
var ErrInvalidAddress = errors.New("invalid address")

// Address identifies a mint, token account, owner or authority.
// Rendered as base58, the same encoding Solana uses for public keys.
type Address [AddressLength]byte

// ParseAddress decodes a base58 address.
func ParseAddress(s string) (Address, error) {
	var a Address
	if s == "" {
		return a, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return a, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != AddressLength {
		return a, fmt.Errorf("%w: decoded length %d", ErrInvalidAddress, len(raw))
	}
	copy(a[:], raw)
	return a, nil
}

// MustParseAddress is ParseAddress for constants; it panics on bad input.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AddressFromBytes copies b into an Address. b must be 32 bytes.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressLength {
		return a, fmt.Errorf("%w: length %d", ErrInvalidAddress, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// String returns the base58 form.
func (a Address) String() string {
	return base58.Encode(a[:])
}

// IsZero reports whether a is the all-zero address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Bytes returns a copy of the raw key bytes.
func (a Address) Bytes() []byte {
	b := make([]byte, AddressLength)
	copy(b, a[:])
	return b
}

// Compare orders addresses by their raw bytes. It is the stable lock order.
func (a Address) Compare(b Address) int {
	return bytes.Compare(a[:], b[:])
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// OptionalAddress is either Some(address) or None.
// Used for every nullable authority so that "no authority" is never a sentinel.
type OptionalAddress struct {
	addr  Address
	valid bool
}

// Some wraps a present address.
func Some(a Address) OptionalAddress {
	return OptionalAddress{addr: a, valid: true}
}

// None is the absent address.
func None() OptionalAddress {
	return OptionalAddress{}
}

// Get returns the address and whether it is present.
func (o OptionalAddress) Get() (Address, bool) {
	return o.addr, o.valid
}

// IsSome reports whether an address is present.
func (o OptionalAddress) IsSome() bool {
	return o.valid
}

// Is reports whether o holds exactly a.
func (o OptionalAddress) Is(a Address) bool {
	return o.valid && o.addr == a
}

// Ptr returns a pointer copy of the address, or nil for None.
func (o OptionalAddress) Ptr() *Address {
	if !o.valid {
		return nil
	}
	a := o.addr
	return &a
}

// OptionalFromPtr converts a nullable pointer into an OptionalAddress.
func OptionalFromPtr(p *Address) OptionalAddress {
	if p == nil {
		return None()
	}
	return Some(*p)
}

// String returns the base58 address or "none".
func (o OptionalAddress) String() string {
	if !o.valid {
		return "none"
	}
	return o.addr.String()
}

// MarshalJSON renders None as null.
func (o OptionalAddress) MarshalJSON() ([]byte, error) {
	if !o.valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.addr.String())
}

// UnmarshalJSON accepts null or a base58 string.
func (o *OptionalAddress) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = None()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	a, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*o = Some(a)
	return nil
}
