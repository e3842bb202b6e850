/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package jose

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderPrecedence(t *testing.T) {
	protected := Headers{
		HeaderAlgorithm:  "from-protected",
		HeaderEncryption: "enc-protected",
	}
	unprotected := Headers{
		HeaderAlgorithm:  "from-unprotected",
		HeaderEncryption: "enc-unprotected",
		HeaderJWKSetURL:  "https://example.com/keys",
	}
	recipient := Headers{
		HeaderAlgorithm:  "from-recipient",
		HeaderEncryption: "enc-recipient",
	}

	t.Run("recipient wins for per-recipient fields", func(t *testing.T) {
		alg, err := resolveAlg(protected, unprotected, recipient)
		require.NoError(t, err)
		require.Equal(t, KeyAlg("from-recipient"), alg)

		alg, err = resolveAlg(protected, unprotected, nil)
		require.NoError(t, err)
		require.Equal(t, KeyAlg("from-protected"), alg)

		alg, err = resolveAlg(nil, unprotected, nil)
		require.NoError(t, err)
		require.Equal(t, KeyAlg("from-unprotected"), alg)
	})

	t.Run("protected wins for envelope-wide fields", func(t *testing.T) {
		enc, err := resolveEnc(protected, unprotected, recipient)
		require.NoError(t, err)
		require.Equal(t, EncAlg("enc-protected"), enc)

		enc, err = resolveEnc(nil, unprotected, recipient)
		require.NoError(t, err)
		require.Equal(t, EncAlg("enc-recipient"), enc)

		enc, err = resolveEnc(nil, unprotected, nil)
		require.NoError(t, err)
		require.Equal(t, EncAlg("enc-unprotected"), enc)
	})

	t.Run("missing values error", func(t *testing.T) {
		_, err := resolveAlg(nil, nil, nil)
		require.ErrorIs(t, err, ErrMissingKeyAlgorithm)

		_, err = resolveEnc(nil, nil, nil)
		require.ErrorIs(t, err, ErrMissingEncryptionAlgorithm)
	})

	t.Run("fallthrough to unprotected", func(t *testing.T) {
		jku, ok := resolveString(HeaderJWKSetURL, protected, unprotected, recipient)
		require.True(t, ok)
		require.Equal(t, "https://example.com/keys", jku)
	})
}

func TestResolveInt(t *testing.T) {
	// JSON numbers arrive as float64, caller-built headers as int.
	count, ok := resolveInt(HeaderP2C, Headers{HeaderP2C: float64(4096)}, nil, nil)
	require.True(t, ok)
	require.Equal(t, 4096, count)

	count, ok = resolveInt(HeaderP2C, nil, nil, Headers{HeaderP2C: 1000})
	require.True(t, ok)
	require.Equal(t, 1000, count)

	_, ok = resolveInt(HeaderP2C, Headers{HeaderP2C: "not-a-number"}, nil, nil)
	require.False(t, ok)
}

func TestMergeHeadersDoesNotMutate(t *testing.T) {
	base := Headers{"a": 1}
	extra := Headers{"a": 2, "b": 3}

	merged := mergeHeaders(base, extra)
	require.Equal(t, 2, merged["a"])
	require.Equal(t, 3, merged["b"])
	require.Equal(t, 1, base["a"])
	require.NotContains(t, base, "b")
}
