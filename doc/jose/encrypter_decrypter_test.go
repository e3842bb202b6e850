/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package jose

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	gojose "github.com/go-jose/go-jose/v3"
	"github.com/google/tink/go/subtle/random"
	"github.com/stretchr/testify/require"

	"github.com/strandsec/jose-go/crypto/contentenc"
	"github.com/strandsec/jose-go/doc/jose/jwk"
	"github.com/strandsec/jose-go/doc/jose/jwk/jwksupport"
	"github.com/strandsec/jose-go/doc/jose/kidresolver"
)

func symJWK(keyBytes []byte, kid string) *jwk.JWK {
	return &jwk.JWK{
		JSONWebKey: gojose.JSONWebKey{Key: keyBytes, KeyID: kid},
		Kty:        "oct",
	}
}

func ecJWK(t *testing.T, kid string) *jwk.JWK {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	return &jwk.JWK{
		JSONWebKey: gojose.JSONWebKey{Key: priv, KeyID: kid},
		Kty:        "EC",
		Crv:        "P-256",
	}
}

func rsaJWK(t *testing.T, kid string) *jwk.JWK {
	t.Helper()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	return &jwk.JWK{
		JSONWebKey: gojose.JSONWebKey{Key: priv, KeyID: kid},
		Kty:        "RSA",
	}
}

func x25519JWK(t *testing.T, kid string) *jwk.JWK {
	t.Helper()

	key, err := jwksupport.JWKFromX25519PrivateKey(random.GetRandomBytes(32))
	require.NoError(t, err)

	key.KeyID = kid

	return key
}

// testRecipient bundles a recipient configuration with the decrypter that can
// open envelopes addressed to it.
type testRecipient struct {
	name      string
	recipient *RecipientKey
	decrypter *JWEDecrypt
	encOpts   []EncryptOption
}

func allTestRecipients(t *testing.T) []testRecipient {
	t.Helper()

	var out []testRecipient

	kek16 := symJWK(random.GetRandomBytes(16), "")
	kek24 := symJWK(random.GetRandomBytes(24), "")
	kek32 := symJWK(random.GetRandomBytes(32), "")

	for _, alg := range []KeyAlg{A128KW, A128GCMKW} {
		out = append(out, testRecipient{
			name:      string(alg),
			recipient: &RecipientKey{Alg: alg, Key: kek16},
			decrypter: NewJWEDecrypt(kek16),
		})
	}

	for _, alg := range []KeyAlg{A192KW, A192GCMKW} {
		out = append(out, testRecipient{
			name:      string(alg),
			recipient: &RecipientKey{Alg: alg, Key: kek24},
			decrypter: NewJWEDecrypt(kek24),
		})
	}

	for _, alg := range []KeyAlg{A256KW, A256GCMKW} {
		out = append(out, testRecipient{
			name:      string(alg),
			recipient: &RecipientKey{Alg: alg, Key: kek32},
			decrypter: NewJWEDecrypt(kek32),
		})
	}

	rsaKey := rsaJWK(t, "")
	for _, alg := range []KeyAlg{RSA15, RSAOAEP, RSAOAEP256} {
		out = append(out, testRecipient{
			name:      string(alg),
			recipient: &RecipientKey{Alg: alg, Key: rsaKey},
			decrypter: NewJWEDecrypt(rsaKey),
		})
	}

	password := []byte("correct horse battery staple")
	for _, alg := range []KeyAlg{PBES2HS256A128KW, PBES2HS384A192KW, PBES2HS512A256KW} {
		out = append(out, testRecipient{
			name:      string(alg),
			recipient: &RecipientKey{Alg: alg, Password: password},
			decrypter: NewJWEDecrypt(nil, WithPassword(password)),
		})
	}

	ecKey := ecJWK(t, "ec-recipient")
	for _, alg := range []KeyAlg{ECDHES, ECDHESA128KW, ECDHESA192KW, ECDHESA256KW} {
		out = append(out, testRecipient{
			name:      string(alg),
			recipient: &RecipientKey{Alg: alg, Key: ecKey},
			decrypter: NewJWEDecrypt(ecKey),
		})
	}

	senderKey := ecJWK(t, "ec-sender")
	for _, alg := range []KeyAlg{ECDH1PU, ECDH1PUA128KW, ECDH1PUA192KW, ECDH1PUA256KW} {
		out = append(out, testRecipient{
			name:      string(alg),
			recipient: &RecipientKey{Alg: alg, Key: ecKey},
			decrypter: NewJWEDecrypt(ecKey, WithSenderPublicKey(senderKey.Public())),
			encOpts:   []EncryptOption{WithSenderKey(senderKey, "ec-sender")},
		})
	}

	return out
}

// pairSupported mirrors the encrypter's alg/enc compatibility rules.
func pairSupported(alg KeyAlg, enc EncAlg) bool {
	family, _ := alg.Family()
	if family == FamilyECDH1PU && alg != ECDH1PU {
		switch enc {
		case A128CBCHS256, A192CBCHS384, A256CBCHS512:
			return true
		default:
			return false
		}
	}

	return true
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	payload := []byte("it was the best of times, it was the worst of times")
	aad := []byte{0x00, 0x01, 0x02, 0xfd, 0xfe, 0xff}

	encAlgs := []EncAlg{
		A128GCM, A192GCM, A256GCM,
		A128CBCHS256, A192CBCHS384, A256CBCHS512,
		C20P, XC20P,
	}

	recipients := allTestRecipients(t)

	for _, enc := range encAlgs {
		for _, tr := range recipients {
			if !pairSupported(tr.recipient.Alg, enc) {
				continue
			}

			t.Run(string(enc)+"/"+tr.name, func(t *testing.T) {
				rec := *tr.recipient

				encrypter, err := NewJWEEncrypt(enc, []*RecipientKey{&rec}, tr.encOpts...)
				require.NoError(t, err)

				jwe, err := encrypter.EncryptWithAuthData(payload, aad)
				require.NoError(t, err)

				got, err := tr.decrypter.Decrypt(jwe)
				require.NoError(t, err)
				require.Equal(t, payload, got)
			})
		}
	}
}

func TestDirectRoundTrip(t *testing.T) {
	payloads := map[string][]byte{
		"empty":    {},
		"one byte": {0x42},
		"text":     []byte("direct encryption round trip"),
		"1MB":      random.GetRandomBytes(1 << 20),
	}

	for _, enc := range []EncAlg{A128GCM, A256GCM, A128CBCHS256, A256CBCHS512, C20P, XC20P} {
		cipher, err := contentenc.Resolve(contentenc.Algorithm(enc))
		require.NoError(t, err)

		sharedKey := symJWK(random.GetRandomBytes(uint32(cipher.KeySize())), "")

		for name, payload := range payloads {
			t.Run(string(enc)+"/"+name, func(t *testing.T) {
				encrypter, err := NewJWEEncrypt(enc, []*RecipientKey{{Alg: Dir, Key: sharedKey}})
				require.NoError(t, err)

				jwe, err := encrypter.Encrypt(payload)
				require.NoError(t, err)
				require.Empty(t, jwe.Recipients[0].EncryptedKey)

				got, err := NewJWEDecrypt(sharedKey).Decrypt(jwe)
				require.NoError(t, err)
				require.Equal(t, payload, got)
			})
		}
	}
}

func TestX25519RoundTrip(t *testing.T) {
	recKey := x25519JWK(t, "okp-recipient")
	senderKey := x25519JWK(t, "okp-sender")

	t.Run("ECDH-ES+A256KW with XC20P", func(t *testing.T) {
		encrypter, err := NewJWEEncrypt(XC20P, []*RecipientKey{{Alg: ECDHESA256KW, Key: recKey}})
		require.NoError(t, err)

		payload := []byte("x25519 anoncrypt")

		jwe, err := encrypter.Encrypt(payload)
		require.NoError(t, err)

		got, err := NewJWEDecrypt(recKey).Decrypt(jwe)
		require.NoError(t, err)
		require.Equal(t, payload, got)
	})

	t.Run("ECDH-1PU+A256KW with A256CBC-HS512", func(t *testing.T) {
		encrypter, err := NewJWEEncrypt(A256CBCHS512,
			[]*RecipientKey{{Alg: ECDH1PUA256KW, Key: recKey}},
			WithSenderKey(senderKey, "okp-sender"))
		require.NoError(t, err)

		payload := []byte("x25519 authcrypt")

		jwe, err := encrypter.Encrypt(payload)
		require.NoError(t, err)

		got, err := NewJWEDecrypt(recKey, WithSenderPublicKey(senderKey.Public())).Decrypt(jwe)
		require.NoError(t, err)
		require.Equal(t, payload, got)
	})
}

func TestKnownDirVectorPrefix(t *testing.T) {
	cek := []byte{
		177, 161, 244, 128, 84, 143, 225, 115, 63, 180, 3, 255, 107, 154,
		212, 246, 138, 7, 110, 91, 112, 46, 34, 105, 47, 130, 203, 46, 122,
		234, 64, 252,
	}
	iv := []byte{227, 197, 117, 252, 2, 219, 233, 68, 180, 225, 77, 219}
	plaintext := []byte(`{"iss":"joe","exp":1300819380,"http://example.com/is_root":true}`)

	encrypter, err := NewJWEEncrypt(A256GCM,
		[]*RecipientKey{{Alg: Dir, Key: symJWK(cek, "")}},
		WithIV(iv))
	require.NoError(t, err)

	jwe, err := encrypter.Encrypt(plaintext)
	require.NoError(t, err)

	compact, err := jwe.CompactSerialize(json.Marshal)
	require.NoError(t, err)

	// {"alg":"dir","enc":"A256GCM"} with sorted keys.
	require.True(t, strings.HasPrefix(compact, "eyJhbGciOiJkaXIiLCJlbmMiOiJBMjU2R0NNIn0.."),
		"unexpected compact prefix: %s", compact)

	parsed, err := Deserialize(compact)
	require.NoError(t, err)

	got, err := NewJWEDecrypt(symJWK(cek, "")).Decrypt(parsed)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestTamperDetection(t *testing.T) {
	kek := symJWK(random.GetRandomBytes(32), "")

	encrypter, err := NewJWEEncrypt(A256GCM, []*RecipientKey{{Alg: A256KW, Key: kek}})
	require.NoError(t, err)

	payload := []byte("tamper with me")

	jwe, err := encrypter.Encrypt(payload)
	require.NoError(t, err)

	serialized, err := jwe.Serialize(json.Marshal)
	require.NoError(t, err)

	decrypter := NewJWEDecrypt(kek)

	t.Run("valid decrypts", func(t *testing.T) {
		parsed, err := Deserialize(serialized)
		require.NoError(t, err)

		got, err := decrypter.Decrypt(parsed)
		require.NoError(t, err)
		require.Equal(t, payload, got)
	})

	t.Run("flipped ciphertext bit", func(t *testing.T) {
		parsed, err := Deserialize(serialized)
		require.NoError(t, err)

		ct := []byte(parsed.Ciphertext)
		ct[0] ^= 0x01
		parsed.Ciphertext = string(ct)

		_, err = decrypter.Decrypt(parsed)
		require.ErrorIs(t, err, contentenc.ErrAuthentication)
	})

	t.Run("flipped tag bit", func(t *testing.T) {
		parsed, err := Deserialize(serialized)
		require.NoError(t, err)

		tag := []byte(parsed.Tag)
		tag[0] ^= 0x01
		parsed.Tag = string(tag)

		_, err = decrypter.Decrypt(parsed)
		require.ErrorIs(t, err, contentenc.ErrAuthentication)
	})

	t.Run("altered protected header", func(t *testing.T) {
		parsed, err := Deserialize(serialized)
		require.NoError(t, err)

		orig := parsed.OrigProtectedHeaders
		altered := []byte(orig)

		if altered[0] == 'e' {
			altered[0] = 'f'
		} else {
			altered[0] = 'e'
		}

		parsed.OrigProtectedHeaders = string(altered)

		_, err = decrypter.Decrypt(parsed)
		require.ErrorIs(t, err, contentenc.ErrAuthentication)
	})
}

func TestGCMKWIVPrecedence(t *testing.T) {
	gcmKEK := symJWK(random.GetRandomBytes(16), "gcm-1")
	kwKEK := symJWK(random.GetRandomBytes(32), "kw-1")

	t.Run("recipient header IV wins over protected", func(t *testing.T) {
		// a bogus protected "iv" must be ignored in favor of the recipient's.
		bogusIV := base64.RawURLEncoding.EncodeToString(random.GetRandomBytes(12))

		encrypter, err := NewJWEEncrypt(A256GCM,
			[]*RecipientKey{
				{Alg: A128GCMKW, Key: gcmKEK},
				{Alg: A256KW, Key: kwKEK},
			},
			WithProtectedHeaders(Headers{HeaderIV: bogusIV}))
		require.NoError(t, err)

		payload := []byte("precedence check")

		jwe, err := encrypter.Encrypt(payload)
		require.NoError(t, err)

		got, err := NewJWEDecrypt(gcmKEK).Decrypt(jwe)
		require.NoError(t, err)
		require.Equal(t, payload, got)
	})

	t.Run("wrong recipient header IV breaks unwrap", func(t *testing.T) {
		encrypter, err := NewJWEEncrypt(A256GCM, []*RecipientKey{{Alg: A128GCMKW, Key: gcmKEK}})
		require.NoError(t, err)

		jwe, err := encrypter.Encrypt([]byte("precedence check"))
		require.NoError(t, err)

		// correct iv/tag live in the protected header; a conflicting
		// recipient header value must take precedence and fail the unwrap.
		jwe.Recipients[0].Header = Headers{
			HeaderIV: base64.RawURLEncoding.EncodeToString(random.GetRandomBytes(12)),
		}

		_, err = NewJWEDecrypt(gcmKEK).Decrypt(jwe)
		require.Error(t, err)
	})
}

func TestMultiRecipient(t *testing.T) {
	rsaKey := rsaJWK(t, "rsa-1")
	kwKey := symJWK(random.GetRandomBytes(32), "kw-1")
	password := []byte("multi recipient password")

	encrypter, err := NewJWEEncrypt(A256GCM, []*RecipientKey{
		{Alg: RSAOAEP, Key: rsaKey},
		{Alg: A256KW, Key: kwKey},
		{Alg: PBES2HS512A256KW, Password: password},
	})
	require.NoError(t, err)

	payload := []byte("one ciphertext, three recipients")

	jwe, err := encrypter.Encrypt(payload)
	require.NoError(t, err)
	require.Len(t, jwe.Recipients, 3)

	serialized, err := jwe.Serialize(json.Marshal)
	require.NoError(t, err)
	require.Contains(t, serialized, `"recipients"`)

	parsed, err := Deserialize(serialized)
	require.NoError(t, err)

	decrypters := []*JWEDecrypt{
		NewJWEDecrypt(rsaKey),
		NewJWEDecrypt(kwKey),
		NewJWEDecrypt(nil, WithPassword(password), WithTryAllRecipients()),
	}

	for _, decrypter := range decrypters {
		got, err := decrypter.Decrypt(parsed)
		require.NoError(t, err)
		require.Equal(t, payload, got)
	}

	// the CEK and content encryption are shared: one ciphertext/iv/tag for
	// all recipients, only the encrypted keys differ.
	require.NotEqual(t, parsed.Recipients[0].EncryptedKey, parsed.Recipients[1].EncryptedKey)
	require.NotEmpty(t, parsed.Ciphertext)
	require.NotEmpty(t, parsed.IV)
	require.NotEmpty(t, parsed.Tag)
}

func TestMultiRecipientRejectsCEKDeterminingAlgs(t *testing.T) {
	kwKey := symJWK(random.GetRandomBytes(32), "kw-1")
	dirKey := symJWK(random.GetRandomBytes(32), "dir-1")

	_, err := NewJWEEncrypt(A256GCM, []*RecipientKey{
		{Alg: Dir, Key: dirKey},
		{Alg: A256KW, Key: kwKey},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "determines the CEK")
}

func TestPBES2Hardening(t *testing.T) {
	password := []byte("a strong passphrase")
	recipients := []*RecipientKey{{Alg: PBES2HS512A256KW, Password: password}}

	t.Run("iteration count below 1000 rejected", func(t *testing.T) {
		_, err := NewJWEEncrypt(A256GCM, recipients, WithPBES2Count(500))
		require.ErrorIs(t, err, ErrInvalidIterationCount)
	})

	t.Run("salt below 8 bytes rejected", func(t *testing.T) {
		_, err := NewJWEEncrypt(A256GCM, recipients, WithPBES2Salt(random.GetRandomBytes(4)))
		require.ErrorIs(t, err, ErrInvalidSaltLength)
	})

	t.Run("boundary values accepted", func(t *testing.T) {
		encrypter, err := NewJWEEncrypt(A256GCM, recipients,
			WithPBES2Count(1000), WithPBES2Salt(random.GetRandomBytes(8)))
		require.NoError(t, err)

		payload := []byte("boundary")

		jwe, err := encrypter.Encrypt(payload)
		require.NoError(t, err)

		got, err := NewJWEDecrypt(nil, WithPassword(password)).Decrypt(jwe)
		require.NoError(t, err)
		require.Equal(t, payload, got)
	})
}

func TestCompression(t *testing.T) {
	kek := symJWK(random.GetRandomBytes(32), "")

	encrypter, err := NewJWEEncrypt(A256GCM,
		[]*RecipientKey{{Alg: A256KW, Key: kek}},
		WithCompression())
	require.NoError(t, err)

	payload := []byte(strings.Repeat("compressible payload ", 1000))

	jwe, err := encrypter.Encrypt(payload)
	require.NoError(t, err)
	require.Equal(t, CompressionAlgDeflate, jwe.ProtectedHeaders[HeaderCompression])
	require.Less(t, len(jwe.Ciphertext), len(payload))

	got, err := NewJWEDecrypt(kek).Decrypt(jwe)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestECDH1PUWithKIDResolver(t *testing.T) {
	recKey := ecJWK(t, "rec-1")
	senderKey := ecJWK(t, "sender-1")

	encrypter, err := NewJWEEncrypt(A256CBCHS512,
		[]*RecipientKey{{Alg: ECDH1PUA256KW, Key: recKey}},
		WithSenderKey(senderKey, "sender-1"))
	require.NoError(t, err)

	payload := []byte("authcrypt with resolver")

	jwe, err := encrypter.Encrypt(payload)
	require.NoError(t, err)

	skid, ok := jwe.ProtectedHeaders.SenderKeyID()
	require.True(t, ok)
	require.Equal(t, "sender-1", skid)

	resolver := kidresolver.NewSetResolver(senderKey.Public())

	got, err := NewJWEDecrypt(recKey, WithKIDResolvers(resolver)).Decrypt(jwe)
	require.NoError(t, err)
	require.Equal(t, payload, got)

	t.Run("missing sender key fails", func(t *testing.T) {
		_, err := NewJWEDecrypt(recKey).Decrypt(jwe)
		require.ErrorIs(t, err, ErrMissingSenderKey)
	})
}

func TestComposedAADOption(t *testing.T) {
	kek := symJWK(random.GetRandomBytes(32), "")

	// base64url-looking aad would normally pass through; the option forces
	// composition and decrypt recovers via its composed retry.
	aad := []byte(base64.RawURLEncoding.EncodeToString([]byte("external aad")))

	encrypter, err := NewJWEEncrypt(A256GCM,
		[]*RecipientKey{{Alg: A256KW, Key: kek}},
		WithComposedAAD())
	require.NoError(t, err)

	payload := []byte("composed aad")

	jwe, err := encrypter.EncryptWithAuthData(payload, aad)
	require.NoError(t, err)

	got, err := NewJWEDecrypt(kek).Decrypt(jwe)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestRecipientMatchingByKID(t *testing.T) {
	kek1 := symJWK(random.GetRandomBytes(32), "kek-1")
	kek2 := symJWK(random.GetRandomBytes(32), "kek-2")

	encrypter, err := NewJWEEncrypt(A256GCM, []*RecipientKey{
		{Alg: A256KW, Key: kek1},
		{Alg: A256KW, Key: kek2},
	})
	require.NoError(t, err)

	payload := []byte("kid matching")

	jwe, err := encrypter.Encrypt(payload)
	require.NoError(t, err)

	got, err := NewJWEDecrypt(kek2).Decrypt(jwe)
	require.NoError(t, err)
	require.Equal(t, payload, got)

	t.Run("no matching recipient", func(t *testing.T) {
		other := symJWK(random.GetRandomBytes(32), "kek-3")

		_, err := NewJWEDecrypt(other).Decrypt(jwe)
		require.ErrorIs(t, err, ErrRecipientNotFound)
	})
}

func TestMissingParameterErrors(t *testing.T) {
	kek := symJWK(random.GetRandomBytes(32), "")

	t.Run("unsupported enc", func(t *testing.T) {
		_, err := NewJWEEncrypt(EncAlg("A999GCM"), []*RecipientKey{{Alg: A256KW, Key: kek}})

		var unsupportedErr *UnsupportedAlgorithmsError

		require.ErrorAs(t, err, &unsupportedErr)
		require.Equal(t, "encryption", unsupportedErr.Op)
	})

	t.Run("no recipients", func(t *testing.T) {
		_, err := NewJWEEncrypt(A256GCM, nil)
		require.ErrorIs(t, err, ErrNoRecipients)
	})

	t.Run("missing key alg", func(t *testing.T) {
		_, err := NewJWEEncrypt(A256GCM, []*RecipientKey{{Key: kek}})
		require.ErrorIs(t, err, ErrMissingKeyAlgorithm)
	})

	t.Run("missing pbes2 password", func(t *testing.T) {
		_, err := NewJWEEncrypt(A256GCM, []*RecipientKey{{Alg: PBES2HS512A256KW}})
		require.ErrorIs(t, err, ErrMissingPassword)
	})

	t.Run("missing 1pu sender key", func(t *testing.T) {
		_, err := NewJWEEncrypt(A256CBCHS512, []*RecipientKey{{Alg: ECDH1PUA256KW, Key: ecJWK(t, "")}})
		require.ErrorIs(t, err, ErrMissingSenderKey)
	})

	t.Run("decrypt pbes2 without password", func(t *testing.T) {
		password := []byte("pw for encrypt")

		encrypter, err := NewJWEEncrypt(A256GCM, []*RecipientKey{{Alg: PBES2HS512A256KW, Password: password}})
		require.NoError(t, err)

		jwe, err := encrypter.Encrypt([]byte("payload"))
		require.NoError(t, err)

		_, err = NewJWEDecrypt(nil).Decrypt(jwe)
		require.ErrorIs(t, err, ErrMissingPassword)
	})
}
