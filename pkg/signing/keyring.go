// Package signing provides the Ed25519 keyring used to sign audit records.
package signing

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/Mindburn-Labs/conclave/pkg/canon"
)

// KeyProvider defines the interface for cryptographic signing operations.
// This allows swapping the in-memory backend for an HSM, Vault, or Cloud KMS.
type KeyProvider interface {
	Sign(msg []byte) ([]byte, error)
	PublicKey() ed25519.PublicKey
}

// MemoryKeyProvider is an in-memory implementation for development and
// tests.
type MemoryKeyProvider struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

func NewMemoryKeyProvider() (*MemoryKeyProvider, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &MemoryKeyProvider{pub: pub, priv: priv}, nil
}

// NewMemoryKeyProviderFromSeed builds a deterministic provider from a
// 32-byte seed.
func NewMemoryKeyProviderFromSeed(seed []byte) (*MemoryKeyProvider, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &MemoryKeyProvider{
		pub:  priv.Public().(ed25519.PublicKey),
		priv: priv,
	}, nil
}

func (m *MemoryKeyProvider) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(m.priv, msg), nil
}

func (m *MemoryKeyProvider) PublicKey() ed25519.PublicKey {
	return m.pub
}

// Keyring signs canonicalized values with its provider key.
type Keyring struct {
	provider KeyProvider
}

// NewKeyring wraps a provider. A nil provider falls back to a fresh
// in-memory key.
func NewKeyring(p KeyProvider) *Keyring {
	if p == nil {
		p, _ = NewMemoryKeyProvider()
	}
	return &Keyring{provider: p}
}

// Sign serializes data to its canonical JSON form and signs it, so logically
// equal values always verify against the same signature input.
func (k *Keyring) Sign(data any) ([]byte, error) {
	msg, err := canon.JCS(data)
	if err != nil {
		return nil, err
	}
	return k.provider.Sign(msg)
}

// SignBytes signs a raw message.
func (k *Keyring) SignBytes(msg []byte) ([]byte, error) {
	return k.provider.Sign(msg)
}

func (k *Keyring) PublicKey() ed25519.PublicKey {
	return k.provider.PublicKey()
}

// Verify checks a signature produced by Sign.
func (k *Keyring) Verify(data any, sig []byte) bool {
	msg, err := canon.JCS(data)
	if err != nil {
		return false
	}
	return ed25519.Verify(k.provider.PublicKey(), msg, sig)
}

// VerifyBytes checks a signature over a raw message.
func (k *Keyring) VerifyBytes(msg, sig []byte) bool {
	return ed25519.Verify(k.provider.PublicKey(), msg, sig)
}

// DeriveForDomain derives a domain-separated keyring using HKDF-SHA256 over
// the master key's seed, with the domain as info. Each domain gets a unique,
// deterministic keypair. Only memory-backed keyrings can derive; HSM-backed
// providers must derive inside the HSM.
func (k *Keyring) DeriveForDomain(domain string) (*Keyring, error) {
	if domain == "" {
		return nil, errors.New("domain must not be empty")
	}
	master, ok := k.provider.(*MemoryKeyProvider)
	if !ok {
		return nil, errors.New("key derivation requires a memory-backed provider")
	}

	reader := hkdf.New(sha256.New, master.priv.Seed(), nil, []byte(domain))
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(reader, seed); err != nil {
		return nil, fmt.Errorf("derive key for domain %q: %w", domain, err)
	}

	derived, err := NewMemoryKeyProviderFromSeed(seed)
	if err != nil {
		return nil, err
	}
	return &Keyring{provider: derived}, nil
}
