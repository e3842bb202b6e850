/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package contentenc

import (
	"bytes"
	"testing"

	"github.com/google/tink/go/subtle/random"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	for _, alg := range Algorithms() {
		c, err := Resolve(alg)
		require.NoError(t, err)
		require.Equal(t, alg, c.Algorithm())
		require.True(t, IsSupported(alg))
	}

	_, err := Resolve("A512GCM")
	require.EqualError(t, err, "contentenc: content encryption algorithm 'A512GCM' not supported")
	require.False(t, IsSupported("A512GCM"))
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	payloads := map[string][]byte{
		"empty":  {},
		"1 byte": {0x42},
		"text":   []byte("The true sign of intelligence is not knowledge but imagination."),
		"binary": random.GetRandomBytes(1024),
		"1 MiB":  random.GetRandomBytes(1 << 20),
	}

	for _, alg := range Algorithms() {
		alg := alg

		t.Run(string(alg), func(t *testing.T) {
			c, err := Resolve(alg)
			require.NoError(t, err)

			cek := GenerateCEK(c)
			require.Len(t, cek, c.KeySize())

			iv := GenerateIV(c)
			require.Len(t, iv, c.IVSize())

			aad := []byte("extra authenticated data")

			for name, payload := range payloads {
				ct, tag, err := c.Encrypt(payload, cek, iv, aad)
				require.NoError(t, err, name)
				require.NotEmpty(t, tag, name)

				pt, err := c.Decrypt(ct, cek, iv, tag, aad)
				require.NoError(t, err, name)
				require.True(t, bytes.Equal(payload, pt), name)
			}
		})
	}
}

func TestDecryptAuthenticationFailure(t *testing.T) {
	for _, alg := range Algorithms() {
		alg := alg

		t.Run(string(alg), func(t *testing.T) {
			c, err := Resolve(alg)
			require.NoError(t, err)

			cek := GenerateCEK(c)
			iv := GenerateIV(c)
			payload := []byte("tamper me")

			ct, tag, err := c.Encrypt(payload, cek, iv, nil)
			require.NoError(t, err)

			t.Run("flipped ciphertext bit", func(t *testing.T) {
				badCT := append([]byte{}, ct...)
				badCT[0] ^= 0x01

				_, err := c.Decrypt(badCT, cek, iv, tag, nil)
				require.ErrorIs(t, err, ErrAuthentication)
			})

			t.Run("flipped tag bit", func(t *testing.T) {
				badTag := append([]byte{}, tag...)
				badTag[len(badTag)-1] ^= 0x01

				_, err := c.Decrypt(ct, cek, iv, badTag, nil)
				require.ErrorIs(t, err, ErrAuthentication)
			})

			t.Run("wrong aad", func(t *testing.T) {
				_, err := c.Decrypt(ct, cek, iv, tag, []byte("other aad"))
				require.ErrorIs(t, err, ErrAuthentication)
			})

			t.Run("wrong key", func(t *testing.T) {
				_, err := c.Decrypt(ct, GenerateCEK(c), iv, tag, nil)
				require.ErrorIs(t, err, ErrAuthentication)
			})
		})
	}
}

func TestInvalidKeyAndIVSizes(t *testing.T) {
	for _, alg := range Algorithms() {
		alg := alg

		t.Run(string(alg), func(t *testing.T) {
			c, err := Resolve(alg)
			require.NoError(t, err)

			_, _, err = c.Encrypt(nil, random.GetRandomBytes(uint32(c.KeySize()+1)), GenerateIV(c), nil)
			require.Error(t, err)
			require.Contains(t, err.Error(), "invalid CEK size")

			_, _, err = c.Encrypt(nil, GenerateCEK(c), random.GetRandomBytes(uint32(c.IVSize()-1)), nil)
			require.Error(t, err)
			require.Contains(t, err.Error(), "invalid IV size")

			_, err = c.Decrypt(nil, GenerateCEK(c), random.GetRandomBytes(uint32(c.IVSize()+3)), nil, nil)
			require.Error(t, err)
			require.Contains(t, err.Error(), "invalid IV size")
		})
	}
}
