package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j-hartshorn/resonance-sub000/identity"
)

func TestDeriveSessionKeys_MirrorAcrossPeers(t *testing.T) {
	shared := []byte("an ecdh shared secret, 32+ bytes long for hkdf")
	salt := []byte("handshake salt")

	var alice, bob identity.PeerId
	for {
		alice = identity.NewPeerId()
		bob = identity.NewPeerId()
		if alice != bob {
			break
		}
	}

	aliceKeys, err := DeriveSessionKeys(shared, salt, alice, bob)
	require.NoError(t, err)
	bobKeys, err := DeriveSessionKeys(shared, salt, bob, alice)
	require.NoError(t, err)

	// Each side's send key must equal the other side's recv key, and vice
	// versa: that's what lets them talk without negotiating who is who.
	assert.Equal(t, aliceKeys.SendKey, bobKeys.RecvKey)
	assert.Equal(t, aliceKeys.RecvKey, bobKeys.SendKey)
	assert.NotEqual(t, aliceKeys.SendKey, aliceKeys.RecvKey)
	assert.Equal(t, aliceKeys.MACKey, bobKeys.MACKey)
}

func TestBuildAAD_BindsRoomAndDirection(t *testing.T) {
	room := identity.NewRoomId()

	out := BuildAAD(room, DirectionInitiatorToResponder)
	back := BuildAAD(room, DirectionResponderToInitiator)

	assert.Len(t, out, 17)
	assert.NotEqual(t, out, back)
	assert.Equal(t, room.Bytes(), out[:16])
}

func TestAuthTag_OrderIndependent(t *testing.T) {
	macKey := []byte("handshake mac key")
	pubA := []byte{0x01, 0x02, 0x03}
	pubB := []byte{0x04, 0x05, 0x06}

	tagForward := AuthTag(macKey, pubA, pubB)
	tagReverse := AuthTag(macKey, pubB, pubA)

	assert.Equal(t, tagForward, tagReverse)
	assert.NoError(t, VerifyAuthTag(macKey, pubA, pubB, tagForward))
	assert.NoError(t, VerifyAuthTag(macKey, pubB, pubA, tagForward))
}

func TestAuthTag_TamperedKeyFailsVerification(t *testing.T) {
	macKey := []byte("handshake mac key")
	pubA := []byte{0x01, 0x02, 0x03}
	pubB := []byte{0x04, 0x05, 0x06}

	tag := AuthTag(macKey, pubA, pubB)

	otherB := []byte{0x04, 0x05, 0x07}
	assert.ErrorIs(t, VerifyAuthTag(macKey, pubA, otherB, tag), ErrHMACMismatch)
}
