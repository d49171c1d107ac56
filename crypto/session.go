package crypto

import (
	"bytes"
	"crypto/hmac"
	"fmt"

	"github.com/j-hartshorn/resonance-sub000/identity"
)

const (
	sessionKeyLength = chacha20poly1305KeySize
	// chacha20poly1305KeySize avoids importing the cipher package here just
	// for its key-size constant.
	chacha20poly1305KeySize = 32
)

// SessionKeys holds the three keys a Phase-1 secure channel needs once the
// DH exchange has completed: one to encrypt outbound datagrams, one to
// decrypt inbound ones, and one to authenticate the handshake's AuthTag.
type SessionKeys struct {
	SendKey []byte
	RecvKey []byte
	MACKey  []byte
}

// DeriveSessionKeys derives SessionKeys from the raw ECDH shared secret.
// Both peers derive the same "encryption", "decryption", and "hmac" keys
// from the identical (sharedSecret, salt) pair — HKDF is symmetric, so
// there is nothing to negotiate up to this point. What makes the two
// sides' sockets agree on which key to use for which direction is the
// label swap: the peer with the lexicographically lower PeerId keeps
// "encryption" as its send key and "decryption" as its recv key; the peer
// with the higher PeerId swaps them. Both sides converge on mirrored
// keys without any further round-trip.
func DeriveSessionKeys(sharedSecret, salt []byte, selfId, peerId identity.PeerId) (*SessionKeys, error) {
	encKey, err := DeriveKey(sharedSecret, salt, []byte("encryption"), sessionKeyLength)
	if err != nil {
		return nil, fmt.Errorf("derive session keys: %w", err)
	}
	decKey, err := DeriveKey(sharedSecret, salt, []byte("decryption"), sessionKeyLength)
	if err != nil {
		return nil, fmt.Errorf("derive session keys: %w", err)
	}
	macKey, err := DeriveKey(sharedSecret, salt, []byte("hmac"), sessionKeyLength)
	if err != nil {
		return nil, fmt.Errorf("derive session keys: %w", err)
	}

	if bytes.Compare(selfId.Bytes(), peerId.Bytes()) < 0 {
		return &SessionKeys{SendKey: encKey, RecvKey: decKey, MACKey: macKey}, nil
	}
	return &SessionKeys{SendKey: decKey, RecvKey: encKey, MACKey: macKey}, nil
}

// Direction tags distinguish the two AAD contexts a given RoomId can bind,
// so a ciphertext recorded in one direction can never be replayed as if it
// were sent in the other.
const (
	DirectionInitiatorToResponder byte = 0x01
	DirectionResponderToInitiator byte = 0x02
)

// BuildAAD returns the additional authenticated data bound into every
// Phase-1 AEAD call: the room's raw identifier bytes followed by a single
// direction tag (resolves the AuthTag/AAD-binding open question: the AAD
// binds RoomId plus direction, not just RoomId alone).
func BuildAAD(roomId identity.RoomId, direction byte) []byte {
	aad := make([]byte, 0, 17)
	aad = append(aad, roomId.Bytes()...)
	aad = append(aad, direction)
	return aad
}

// AuthTag computes the handshake authentication tag binding both
// ephemeral public keys to macKey, in canonical (lexicographically
// smaller-first) order so both peers compute the identical tag regardless
// of who initiated.
func AuthTag(macKey, pubA, pubB []byte) []byte {
	first, second := pubA, pubB
	if bytes.Compare(pubA, pubB) > 0 {
		first, second = pubB, pubA
	}
	data := make([]byte, 0, len(first)+len(second))
	data = append(data, first...)
	data = append(data, second...)
	return HMAC(macKey, data)
}

// VerifyAuthTag recomputes AuthTag over (pubA, pubB) and compares it
// against tag in constant time.
func VerifyAuthTag(macKey, pubA, pubB, tag []byte) error {
	expected := AuthTag(macKey, pubA, pubB)
	if !hmac.Equal(expected, tag) {
		return ErrHMACMismatch
	}
	return nil
}
