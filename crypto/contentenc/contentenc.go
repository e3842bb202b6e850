/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package contentenc holds the JWE content encryption registry: one AEAD
// cipher per "enc" algorithm as defined in RFC 7518 section 5 (AES-GCM and
// AES-CBC-HMAC families) and draft-amringer-jose-chacha (C20P, XC20P).
package contentenc

import (
	"errors"
	"fmt"

	"github.com/google/tink/go/subtle/random"
)

// Algorithm is a JWE content encryption ("enc" header) algorithm identifier.
type Algorithm string

const (
	// A128GCM for AES128-GCM content encryption.
	A128GCM = Algorithm("A128GCM")
	// A192GCM for AES192-GCM content encryption.
	A192GCM = Algorithm("A192GCM")
	// A256GCM for AES256-GCM content encryption.
	A256GCM = Algorithm("A256GCM")
	// A128CBCHS256 for AES128-CBC+HMAC-SHA256 content encryption.
	A128CBCHS256 = Algorithm("A128CBC-HS256")
	// A192CBCHS384 for AES192-CBC+HMAC-SHA384 content encryption.
	A192CBCHS384 = Algorithm("A192CBC-HS384")
	// A256CBCHS512 for AES256-CBC+HMAC-SHA512 content encryption.
	A256CBCHS512 = Algorithm("A256CBC-HS512")
	// C20P for ChaCha20-Poly1305 content encryption.
	C20P = Algorithm("C20P")
	// XC20P for XChaCha20-Poly1305 content encryption.
	XC20P = Algorithm("XC20P")
)

// ErrAuthentication is returned on any decryption failure. It deliberately
// does not distinguish a wrong key from tampered ciphertext or AAD.
var ErrAuthentication = errors.New("message authentication failed")

// Cipher is the uniform contract a content encryption algorithm implements.
type Cipher interface {
	// Algorithm returns the "enc" identifier of this cipher.
	Algorithm() Algorithm

	// KeySize returns the required CEK size in bytes.
	KeySize() int

	// IVSize returns the required IV size in bytes.
	IVSize() int

	// Encrypt encrypts plaintext with cek/iv binding aad, returning the
	// ciphertext and the authentication tag separately.
	Encrypt(plaintext, cek, iv, aad []byte) (ciphertext, tag []byte, err error)

	// Decrypt reverses Encrypt, failing with ErrAuthentication when the tag
	// does not verify.
	Decrypt(ciphertext, cek, iv, tag, aad []byte) ([]byte, error)
}

// immutable after init, safe for concurrent reads.
var ciphers = map[Algorithm]Cipher{ //nolint:gochecknoglobals
	A128GCM:      &aesGCM{alg: A128GCM, keySize: 16},
	A192GCM:      &aesGCM{alg: A192GCM, keySize: 24},
	A256GCM:      &aesGCM{alg: A256GCM, keySize: 32},
	A128CBCHS256: &aesCBCHMAC{alg: A128CBCHS256, keySize: 32},
	A192CBCHS384: &aesCBCHMAC{alg: A192CBCHS384, keySize: 48},
	A256CBCHS512: &aesCBCHMAC{alg: A256CBCHS512, keySize: 64},
	C20P:         &chaChaPoly{alg: C20P, ivSize: 12},
	XC20P:        &chaChaPoly{alg: XC20P, ivSize: 24},
}

// Resolve returns the Cipher registered for alg.
func Resolve(alg Algorithm) (Cipher, error) {
	c, ok := ciphers[alg]
	if !ok {
		return nil, fmt.Errorf("contentenc: content encryption algorithm '%s' not supported", alg)
	}

	return c, nil
}

// IsSupported reports whether alg has a registered Cipher.
func IsSupported(alg Algorithm) bool {
	_, ok := ciphers[alg]

	return ok
}

// Algorithms returns the registered algorithm identifiers, for error reporting.
func Algorithms() []Algorithm {
	out := make([]Algorithm, 0, len(ciphers))
	for alg := range ciphers {
		out = append(out, alg)
	}

	return out
}

// GenerateCEK returns a fresh random content encryption key for c.
func GenerateCEK(c Cipher) []byte {
	return random.GetRandomBytes(uint32(c.KeySize()))
}

// GenerateIV returns a fresh random IV for c.
func GenerateIV(c Cipher) []byte {
	return random.GetRandomBytes(uint32(c.IVSize()))
}

func validateKeyIV(c Cipher, cek, iv []byte) error {
	if len(cek) != c.KeySize() {
		return fmt.Errorf("%s: invalid CEK size %d, want %d", c.Algorithm(), len(cek), c.KeySize())
	}

	if len(iv) != c.IVSize() {
		return fmt.Errorf("%s: invalid IV size %d, want %d", c.Algorithm(), len(iv), c.IVSize())
	}

	return nil
}
