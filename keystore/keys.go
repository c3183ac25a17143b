package keystore

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"

	"github.com/smartcontractkit/chainlink-hedera/hapi"
)

type KeyType int

const (
	KeyTypeEd25519 KeyType = iota
	KeyTypeECDSASecp256k1
)

func (t KeyType) String() string {
	if t == KeyTypeECDSASecp256k1 {
		return "ecdsa_secp256k1"
	}
	return "ed25519"
}

// DER prefixes of PKCS#8 private keys and SPKI public keys as exported by the
// network tooling.
var (
	ed25519PrivateKeyPrefix = mustDecodeHex("302e020100300506032b657004220420")
	ecdsaPrivateKeyPrefix   = mustDecodeHex("3030020100300706052b8104000a04220420")
	ed25519PublicKeyPrefix  = mustDecodeHex("302a300506032b6570032100")
	ecdsaPublicKeyPrefix    = mustDecodeHex("302d300706052b8104000a032200")
)

var ErrInvalidKey = errors.New("invalid key")

// PrivateKey signs transaction body bytes.
type PrivateKey interface {
	PublicKey() PublicKey
	Sign(message []byte) ([]byte, error)
	Type() KeyType
}

// PublicKey is a raw ed25519 key or a compressed secp256k1 key.
type PublicKey struct {
	KeyType KeyType
	Bytes   []byte
}

// String returns the raw key in hex, which is also its keystore account id.
func (p PublicKey) String() string {
	return hex.EncodeToString(p.Bytes)
}

func (p PublicKey) Equal(other PublicKey) bool {
	return p.KeyType == other.KeyType && bytes.Equal(p.Bytes, other.Bytes)
}

// SignaturePair wraps sig into the wire pair for this key.
func (p PublicKey) SignaturePair(sig []byte) hapi.SignaturePair {
	pair := hapi.SignaturePair{PubKeyPrefix: p.Bytes}
	if p.KeyType == KeyTypeECDSASecp256k1 {
		pair.ECDSASecp256k1 = sig
	} else {
		pair.Ed25519 = sig
	}
	return pair
}

// Verify checks sig over message.
func (p PublicKey) Verify(message, sig []byte) bool {
	if p.KeyType == KeyTypeECDSASecp256k1 {
		if len(sig) != 64 {
			return false
		}
		return crypto.VerifySignature(p.Bytes, keccak256(message), sig)
	}
	return len(p.Bytes) == ed25519.PublicKeySize && ed25519.Verify(ed25519.PublicKey(p.Bytes), message, sig)
}

// ParsePublicKey accepts a hex raw or DER encoded key. A raw 32 byte key is
// ed25519 and a raw 33 byte key is compressed secp256k1.
func ParsePublicKey(s string) (PublicKey, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	switch {
	case bytes.HasPrefix(b, ed25519PublicKeyPrefix):
		b = b[len(ed25519PublicKeyPrefix):]
	case bytes.HasPrefix(b, ecdsaPublicKeyPrefix):
		b = b[len(ecdsaPublicKeyPrefix):]
	}
	switch len(b) {
	case ed25519.PublicKeySize:
		return PublicKey{KeyType: KeyTypeEd25519, Bytes: b}, nil
	case 33:
		if _, err := crypto.DecompressPubkey(b); err != nil {
			return PublicKey{}, fmt.Errorf("%w: %w", ErrInvalidKey, err)
		}
		return PublicKey{KeyType: KeyTypeECDSASecp256k1, Bytes: b}, nil
	}
	return PublicKey{}, fmt.Errorf("%w: unexpected public key length %d", ErrInvalidKey, len(b))
}

type ed25519Key struct {
	key ed25519.PrivateKey
}

func (k *ed25519Key) PublicKey() PublicKey {
	return PublicKey{KeyType: KeyTypeEd25519, Bytes: []byte(k.key.Public().(ed25519.PublicKey))}
}

func (k *ed25519Key) Sign(message []byte) ([]byte, error) {
	return ed25519.Sign(k.key, message), nil
}

func (k *ed25519Key) Type() KeyType { return KeyTypeEd25519 }

type ecdsaKey struct {
	key *ecdsa.PrivateKey
}

func (k *ecdsaKey) PublicKey() PublicKey {
	return PublicKey{KeyType: KeyTypeECDSASecp256k1, Bytes: crypto.CompressPubkey(&k.key.PublicKey)}
}

// Sign signs the keccak256 digest of message and drops the recovery id.
func (k *ecdsaKey) Sign(message []byte) ([]byte, error) {
	sig, err := crypto.Sign(keccak256(message), k.key)
	if err != nil {
		return nil, err
	}
	return sig[:64], nil
}

func (k *ecdsaKey) Type() KeyType { return KeyTypeECDSASecp256k1 }

func GenerateEd25519() (PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &ed25519Key{key: priv}, nil
}

func GenerateECDSA() (PrivateKey, error) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &ecdsaKey{key: priv}, nil
}

// Ed25519FromSeed builds an ed25519 key from its 32 byte seed.
func Ed25519FromSeed(seed []byte) (PrivateKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: ed25519 seed must be %d bytes", ErrInvalidKey, ed25519.SeedSize)
	}
	return &ed25519Key{key: ed25519.NewKeyFromSeed(seed)}, nil
}

// ECDSAFromBytes builds a secp256k1 key from its 32 byte scalar.
func ECDSAFromBytes(d []byte) (PrivateKey, error) {
	priv, err := crypto.ToECDSA(d)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return &ecdsaKey{key: priv}, nil
}

// FromECDSA wraps an existing secp256k1 key.
func FromECDSA(priv *ecdsa.PrivateKey) PrivateKey {
	return &ecdsaKey{key: priv}
}

// ParsePrivateKey accepts hex DER encoded keys of either type. A raw 32 byte
// hex key is ambiguous and read as ed25519; use ParseECDSAPrivateKey for raw
// secp256k1 keys.
func ParsePrivateKey(s string) (PrivateKey, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	switch {
	case bytes.HasPrefix(b, ecdsaPrivateKeyPrefix):
		return ECDSAFromBytes(b[len(ecdsaPrivateKeyPrefix):])
	case bytes.HasPrefix(b, ed25519PrivateKeyPrefix):
		return Ed25519FromSeed(b[len(ed25519PrivateKeyPrefix):])
	case len(b) == ed25519.SeedSize:
		return Ed25519FromSeed(b)
	case len(b) == ed25519.PrivateKeySize:
		return Ed25519FromSeed(b[:ed25519.SeedSize])
	}
	return nil, fmt.Errorf("%w: unexpected private key length %d", ErrInvalidKey, len(b))
}

// ParseECDSAPrivateKey reads a raw hex secp256k1 key.
func ParseECDSAPrivateKey(s string) (PrivateKey, error) {
	priv, err := crypto.HexToECDSA(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return &ecdsaKey{key: priv}, nil
}

func keccak256(message []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(message)
	return h.Sum(nil)
}

func mustDecodeHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}
