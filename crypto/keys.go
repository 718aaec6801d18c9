// Package crypto provides the fixed-width key and hash types used on the
// GNUnet service bus. Keys are treated as opaque 32-byte values with a
// well-known wire layout; this client derives public keys and hashes but
// never signs or verifies.
package crypto

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base32"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
)

// Sizes of the fixed-width wire encodings.
const (
	KeySize  = 32
	HashSize = sha512.Size
)

// encoding is GNUnet's base32 variant: the RFC 4648 hex-extended alphabet,
// upper case, without padding.
var encoding = base32.NewEncoding("0123456789ABCDEFGHIJKLMNOPQRSTUV").WithPadding(base32.NoPadding)

// EcdsaPrivateKey is a private zone/identity key.
type EcdsaPrivateKey struct {
	d [KeySize]byte
}

// EcdsaPublicKey is the public half of an EcdsaPrivateKey.
type EcdsaPublicKey struct {
	q [KeySize]byte
}

// HashCode is the SHA-512 hash of a public key. It identifies an ego and,
// more generally, anything the daemons address by hash.
type HashCode [HashSize]byte

// PeerIdentity is the public key identifying a peer on the network.
type PeerIdentity [KeySize]byte

// AnonymousPrivateKey returns the global, well-known anonymous key.
func AnonymousPrivateKey() EcdsaPrivateKey {
	var k EcdsaPrivateKey
	k.d[0] = 1
	return k
}

// PrivateKeyFromBytes builds a private key from its 32-byte wire encoding.
func PrivateKeyFromBytes(b []byte) (EcdsaPrivateKey, error) {
	var k EcdsaPrivateKey
	if len(b) != KeySize {
		return k, fmt.Errorf("private key must be %d bytes, got %d", KeySize, len(b))
	}
	copy(k.d[:], b)
	return k, nil
}

// PublicKeyFromBytes builds a public key from its 32-byte wire encoding.
func PublicKeyFromBytes(b []byte) (EcdsaPublicKey, error) {
	var pk EcdsaPublicKey
	if len(b) != KeySize {
		return pk, fmt.Errorf("public key must be %d bytes, got %d", KeySize, len(b))
	}
	copy(pk.q[:], b)
	return pk, nil
}

// PublicKeyFromString parses the base32 string form produced by String.
func PublicKeyFromString(s string) (EcdsaPublicKey, error) {
	b, err := encoding.DecodeString(s)
	if err != nil {
		return EcdsaPublicKey{}, fmt.Errorf("decode public key: %w", err)
	}
	return PublicKeyFromBytes(b)
}

// PeerIdentityFromBytes builds a peer identity from its wire encoding.
func PeerIdentityFromBytes(b []byte) (PeerIdentity, error) {
	var p PeerIdentity
	if len(b) != KeySize {
		return p, fmt.Errorf("peer identity must be %d bytes, got %d", KeySize, len(b))
	}
	copy(p[:], b)
	return p, nil
}

// Public derives the public key.
func (k EcdsaPrivateKey) Public() EcdsaPublicKey {
	q, err := curve25519.X25519(k.d[:], curve25519.Basepoint)
	if err != nil {
		// Cannot happen for the fixed basepoint; a failure here is a
		// local invariant violation, not remote input.
		panic(fmt.Sprintf("crypto: public key derivation failed: %v", err))
	}
	var pk EcdsaPublicKey
	copy(pk.q[:], q)
	return pk
}

// Serialize writes the 32-byte wire encoding.
func (k EcdsaPrivateKey) Serialize(w io.Writer) error {
	_, err := w.Write(k.d[:])
	return err
}

// Bytes returns a copy of the wire encoding.
func (k EcdsaPrivateKey) Bytes() []byte {
	b := make([]byte, KeySize)
	copy(b, k.d[:])
	return b
}

// Equal reports whether two private keys hold the same scalar.
func (k EcdsaPrivateKey) Equal(other EcdsaPrivateKey) bool {
	return subtle.ConstantTimeCompare(k.d[:], other.d[:]) == 1
}

// DeserializePrivateKey reads a private key from its wire encoding.
func DeserializePrivateKey(r io.Reader) (EcdsaPrivateKey, error) {
	var k EcdsaPrivateKey
	if _, err := io.ReadFull(r, k.d[:]); err != nil {
		return k, fmt.Errorf("read private key: %w", err)
	}
	return k, nil
}

// Hash returns the SHA-512 hash of the public key's wire encoding.
func (pk EcdsaPublicKey) Hash() HashCode {
	return HashCode(sha512.Sum512(pk.q[:]))
}

// Serialize writes the 32-byte wire encoding.
func (pk EcdsaPublicKey) Serialize(w io.Writer) error {
	_, err := w.Write(pk.q[:])
	return err
}

// Bytes returns a copy of the wire encoding.
func (pk EcdsaPublicKey) Bytes() []byte {
	b := make([]byte, KeySize)
	copy(b, pk.q[:])
	return b
}

// Equal reports whether two public keys are the same point.
func (pk EcdsaPublicKey) Equal(other EcdsaPublicKey) bool {
	return pk.q == other.q
}

func (pk EcdsaPublicKey) String() string {
	return encoding.EncodeToString(pk.q[:])
}

// DeserializePublicKey reads a public key from its wire encoding.
func DeserializePublicKey(r io.Reader) (EcdsaPublicKey, error) {
	var pk EcdsaPublicKey
	if _, err := io.ReadFull(r, pk.q[:]); err != nil {
		return pk, fmt.Errorf("read public key: %w", err)
	}
	return pk, nil
}

func (h HashCode) String() string {
	return encoding.EncodeToString(h[:])
}

func (p PeerIdentity) String() string {
	return encoding.EncodeToString(p[:])
}
