/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package keywrap

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"testing"

	"github.com/google/tink/go/subtle/random"
	"github.com/stretchr/testify/require"
)

func TestAESKWRoundTrip(t *testing.T) {
	for _, kekSize := range []int{16, 24, 32} {
		kek := random.GetRandomBytes(uint32(kekSize))
		cek := random.GetRandomBytes(32)

		encryptedKey, err := WrapAESKW(kek, cek)
		require.NoError(t, err)
		require.Len(t, encryptedKey, len(cek)+8)

		unwrapped, err := UnwrapAESKW(kek, encryptedKey)
		require.NoError(t, err)
		require.Equal(t, cek, unwrapped)

		_, err = UnwrapAESKW(random.GetRandomBytes(uint32(kekSize)), encryptedKey)
		require.Error(t, err)
	}
}

func TestAESKWRFC3394Vector(t *testing.T) {
	// RFC 3394 section 4.1: 128-bit key data with a 128-bit KEK.
	kek, err := hex.DecodeString("000102030405060708090A0B0C0D0E0F")
	require.NoError(t, err)

	keyData, err := hex.DecodeString("00112233445566778899AABBCCDDEEFF")
	require.NoError(t, err)

	expected, err := hex.DecodeString("1FA68B0A8112B447AEF34BD8FB5A7B829D3E862371D2CFE5")
	require.NoError(t, err)

	wrapped, err := WrapAESKW(kek, keyData)
	require.NoError(t, err)
	require.Equal(t, expected, wrapped)

	unwrapped, err := UnwrapAESKW(kek, wrapped)
	require.NoError(t, err)
	require.Equal(t, keyData, unwrapped)
}

func TestAESGCMKWRoundTrip(t *testing.T) {
	kek := random.GetRandomBytes(32)
	cek := random.GetRandomBytes(48)

	encryptedKey, iv, tag, err := WrapAESGCMKW(kek, cek)
	require.NoError(t, err)
	require.Len(t, iv, gcmKWIVSize)
	require.Len(t, tag, gcmKWTagSize)
	require.Len(t, encryptedKey, len(cek))

	unwrapped, err := UnwrapAESGCMKW(kek, encryptedKey, iv, tag)
	require.NoError(t, err)
	require.Equal(t, cek, unwrapped)

	badTag := append([]byte{}, tag...)
	badTag[0] ^= 0x01

	_, err = UnwrapAESGCMKW(kek, encryptedKey, iv, badTag)
	require.Error(t, err)
}

func TestRSARoundTrip(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	cek := random.GetRandomBytes(32)

	t.Run("RSA1_5", func(t *testing.T) {
		encryptedKey, err := WrapRSA15(&priv.PublicKey, cek)
		require.NoError(t, err)

		unwrapped, err := UnwrapRSA15(priv, encryptedKey)
		require.NoError(t, err)
		require.Equal(t, cek, unwrapped)
	})

	t.Run("RSA-OAEP", func(t *testing.T) {
		encryptedKey, err := WrapRSAOAEP(&priv.PublicKey, cek)
		require.NoError(t, err)

		unwrapped, err := UnwrapRSAOAEP(priv, encryptedKey)
		require.NoError(t, err)
		require.Equal(t, cek, unwrapped)
	})

	t.Run("RSA-OAEP-256", func(t *testing.T) {
		encryptedKey, err := WrapRSAOAEP256(&priv.PublicKey, cek)
		require.NoError(t, err)

		unwrapped, err := UnwrapRSAOAEP256(priv, encryptedKey)
		require.NoError(t, err)
		require.Equal(t, cek, unwrapped)

		// hash mismatch between wrap and unwrap must not decrypt.
		_, err = UnwrapRSAOAEP(priv, encryptedKey)
		require.Error(t, err)
	})
}
