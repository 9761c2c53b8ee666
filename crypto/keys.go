package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix is the human-readable part of a bech32 account address.
type AddressPrefix string

// DefaultPrefix is used for accounts and contracts on the marketplace chain.
const DefaultPrefix AddressPrefix = "nft"

const addressLength = 20

var (
	ErrEmptyAddress    = errors.New("crypto: empty address")
	ErrInvalidAddress  = errors.New("crypto: invalid address")
	ErrUnexpectedHRP   = errors.New("crypto: unexpected address prefix")
	ErrAddressLength   = errors.New("crypto: address must be 20 bytes")
	ErrNilPrivateKey   = errors.New("crypto: nil private key")
	ErrEmptyContractID = errors.New("crypto: empty contract label")
)

// Address is a 20-byte account identifier rendered as bech32.
type Address struct {
	prefix AddressPrefix
	bytes  []byte
}

// NewAddress wraps raw bytes. The slice must be exactly 20 bytes.
func NewAddress(prefix AddressPrefix, b []byte) (Address, error) {
	if len(b) != addressLength {
		return Address{}, ErrAddressLength
	}
	return Address{prefix: prefix, bytes: append([]byte(nil), b...)}, nil
}

// MustAddress is NewAddress for inputs known to be well formed.
func MustAddress(prefix AddressPrefix, b []byte) Address {
	addr, err := NewAddress(prefix, b)
	if err != nil {
		panic(err)
	}
	return addr
}

func (a Address) String() string {
	if len(a.bytes) == 0 {
		return ""
	}
	conv, err := bech32.ConvertBits(a.bytes, 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (a Address) Bytes() []byte {
	return append([]byte(nil), a.bytes...)
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

// IsZero reports whether the address carries no bytes.
func (a Address) IsZero() bool { return len(a.bytes) == 0 }

func DecodeAddress(addrStr string) (Address, error) {
	trimmed := strings.TrimSpace(addrStr)
	if trimmed == "" {
		return Address{}, ErrEmptyAddress
	}
	prefix, decoded, err := bech32.Decode(trimmed)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return NewAddress(AddressPrefix(prefix), conv)
}

// ValidateAddress checks that addr is a well-formed bech32 address carrying
// the expected prefix and returns its canonical lower-case form.
func ValidateAddress(prefix AddressPrefix, addr string) (string, error) {
	decoded, err := DecodeAddress(addr)
	if err != nil {
		return "", err
	}
	if prefix != "" && decoded.Prefix() != prefix {
		return "", fmt.Errorf("%w: got %q want %q", ErrUnexpectedHRP, decoded.Prefix(), prefix)
	}
	return decoded.String(), nil
}

// ContractAddress derives a deterministic contract address from a label such
// as the chain id and contract name.
func ContractAddress(prefix AddressPrefix, label string) (Address, error) {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" {
		return Address{}, ErrEmptyContractID
	}
	digest := crypto.Keccak256([]byte("contract:" + trimmed))
	return NewAddress(prefix, digest[len(digest)-addressLength:])
}

// --- Key Management ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

type PublicKey struct {
	*ecdsa.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

// Address derives the account address for the public key under prefix.
func (k *PublicKey) Address(prefix AddressPrefix) Address {
	return MustAddress(prefix, crypto.PubkeyToAddress(*k.PublicKey).Bytes())
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}
