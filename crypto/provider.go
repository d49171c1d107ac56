// Package crypto is a stateless facade over the primitives the bootstrap
// channel needs: X25519 Diffie-Hellman, an HKDF-style key derivation
// function, an AEAD (XChaCha20-Poly1305), and HMAC-SHA256. It mirrors the
// shape of the teacher's crypto/keys ECDH helpers and core/session key
// derivation, generalized into one small interface the handshake state
// machine drives directly.
package crypto

import (
	"crypto/ecdh"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// KeyPair is an ephemeral X25519 key pair. The private half is single-use:
// ComputeSharedSecret consumes it and any further call fails.
type KeyPair struct {
	mu      sync.Mutex
	priv    *ecdh.PrivateKey
	pub     *ecdh.PublicKey
	used    bool
}

// GenerateDHKeyPair returns a fresh ephemeral X25519 key pair.
func GenerateDHKeyPair() (*KeyPair, error) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate dh keypair: %w", err)
	}
	return &KeyPair{priv: priv, pub: priv.PublicKey()}, nil
}

// PublicBytes returns the 32-byte public key to place on the wire.
func (k *KeyPair) PublicBytes() []byte {
	return k.pub.Bytes()
}

// String never exposes key material, even under %v/%+v in a log line or a
// panic backtrace (spec design note: secret material must be
// non-printable).
func (k *KeyPair) String() string {
	return "crypto.KeyPair{<redacted>}"
}

// GoString satisfies fmt's %#v hook with the same redaction as String.
func (k *KeyPair) GoString() string {
	return k.String()
}

// ComputeSharedSecret performs the X25519 exchange against peerPublic and
// consumes the private key: a second call returns an error. The returned
// secret is the raw 32-byte ECDH output; callers must run it through
// DeriveKey before using it for anything.
func (k *KeyPair) ComputeSharedSecret(peerPublic []byte) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.used {
		return nil, fmt.Errorf("ephemeral private key already consumed")
	}

	peerPub, err := ecdh.X25519().NewPublicKey(peerPublic)
	if err != nil {
		return nil, fmt.Errorf("parse peer public key: %w", err)
	}

	secret, err := k.priv.ECDH(peerPub)
	if err != nil {
		return nil, fmt.Errorf("compute shared secret: %w", err)
	}

	k.used = true
	k.priv = nil
	return secret, nil
}

// DeriveKey runs HKDF-Extract-then-Expand over sharedSecret, with salt and
// info as the usual HKDF parameters. Distinct info strings are guaranteed
// to yield independent key streams even from the same (secret, salt) pair.
func DeriveKey(sharedSecret, salt, info []byte, length int) ([]byte, error) {
	r := hkdf.New(sha256.New, sharedSecret, salt, info)
	out := make([]byte, length)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return out, nil
}

// Encrypt seals plaintext under key (must be 32 bytes) using
// XChaCha20-Poly1305 with aad as additional authenticated data. The
// returned payload is nonce (24 bytes) ‖ ciphertext ‖ tag, with a fresh
// random nonce drawn per call.
func Encrypt(key, plaintext, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("new aead: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	out := aead.Seal(nonce, nonce, plaintext, aad)
	return out, nil
}

// Decrypt reverses Encrypt, splitting the leading nonce from payload and
// verifying+opening the remainder against aad. Any tag mismatch is
// reported as ErrAeadFailure.
func Decrypt(key, payload, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("new aead: %w", err)
	}
	if len(payload) < aead.NonceSize() {
		return nil, fmt.Errorf("%w: payload shorter than nonce", ErrAeadFailure)
	}
	nonce, ciphertext := payload[:aead.NonceSize()], payload[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAeadFailure, err)
	}
	return plaintext, nil
}

// HMAC computes HMAC-SHA256(key, data).
func HMAC(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// VerifyHMAC recomputes HMAC-SHA256(key, data) and compares it against tag
// in constant time.
func VerifyHMAC(key, data, tag []byte) error {
	expected := HMAC(key, data)
	if !hmac.Equal(expected, tag) {
		return ErrHMACMismatch
	}
	return nil
}
