/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package keywrap holds the JWE key wrapping registry: AES-KW (RFC 3394),
// AES-GCM-KW and the RSA key encryption modes of RFC 7518 section 4.
package keywrap

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // SHA-1 is mandated by RSA-OAEP (RFC 7518 section 4.3)
	"crypto/sha256"
	"fmt"
	"hash"

	josecipher "github.com/go-jose/go-jose/v3/cipher"
	"github.com/google/tink/go/subtle/random"
)

const (
	gcmKWIVSize  = 12
	gcmKWTagSize = 16
)

// WrapAESKW wraps cek under kek using deterministic AES key wrap.
func WrapAESKW(kek, cek []byte) ([]byte, error) {
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, fmt.Errorf("wrapAESKW: %w", err)
	}

	encryptedKey, err := josecipher.KeyWrap(block, cek)
	if err != nil {
		return nil, fmt.Errorf("wrapAESKW: %w", err)
	}

	return encryptedKey, nil
}

// UnwrapAESKW unwraps encryptedKey with kek, reversing WrapAESKW.
func UnwrapAESKW(kek, encryptedKey []byte) ([]byte, error) {
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, fmt.Errorf("unwrapAESKW: %w", err)
	}

	cek, err := josecipher.KeyUnwrap(block, encryptedKey)
	if err != nil {
		return nil, fmt.Errorf("unwrapAESKW: %w", err)
	}

	return cek, nil
}

// WrapAESGCMKW wraps cek under kek with AES-GCM using a freshly generated IV.
// The returned iv and tag must be transported in the JWE header ("iv"/"tag"
// parameters) for the recipient to unwrap.
func WrapAESGCMKW(kek, cek []byte) (encryptedKey, iv, tag []byte, err error) {
	aead, err := newGCM(kek)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("wrapAESGCMKW: %w", err)
	}

	iv = random.GetRandomBytes(gcmKWIVSize)

	sealed := aead.Seal(nil, iv, cek, nil)
	tagIdx := len(sealed) - gcmKWTagSize

	return sealed[:tagIdx], iv, sealed[tagIdx:], nil
}

// UnwrapAESGCMKW unwraps encryptedKey with kek and the iv/tag carried in the
// JWE header.
func UnwrapAESGCMKW(kek, encryptedKey, iv, tag []byte) ([]byte, error) {
	aead, err := newGCM(kek)
	if err != nil {
		return nil, fmt.Errorf("unwrapAESGCMKW: %w", err)
	}

	sealed := make([]byte, 0, len(encryptedKey)+len(tag))
	sealed = append(sealed, encryptedKey...)
	sealed = append(sealed, tag...)

	cek, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("unwrapAESGCMKW: %w", err)
	}

	return cek, nil
}

func newGCM(kek []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, err
	}

	return cipher.NewGCM(block)
}

// WrapRSA15 encrypts cek under pub with RSAES-PKCS1-v1_5.
func WrapRSA15(pub *rsa.PublicKey, cek []byte) ([]byte, error) {
	encryptedKey, err := rsa.EncryptPKCS1v15(rand.Reader, pub, cek)
	if err != nil {
		return nil, fmt.Errorf("wrapRSA15: %w", err)
	}

	return encryptedKey, nil
}

// UnwrapRSA15 decrypts encryptedKey with priv, reversing WrapRSA15.
func UnwrapRSA15(priv *rsa.PrivateKey, encryptedKey []byte) ([]byte, error) {
	cek, err := rsa.DecryptPKCS1v15(rand.Reader, priv, encryptedKey)
	if err != nil {
		return nil, fmt.Errorf("unwrapRSA15: %w", err)
	}

	return cek, nil
}

// WrapRSAOAEP encrypts cek under pub with RSAES-OAEP using SHA-1 (RSA-OAEP).
func WrapRSAOAEP(pub *rsa.PublicKey, cek []byte) ([]byte, error) {
	return wrapOAEP(pub, cek, sha1.New)
}

// UnwrapRSAOAEP decrypts encryptedKey with priv, reversing WrapRSAOAEP.
func UnwrapRSAOAEP(priv *rsa.PrivateKey, encryptedKey []byte) ([]byte, error) {
	return unwrapOAEP(priv, encryptedKey, sha1.New)
}

// WrapRSAOAEP256 encrypts cek under pub with RSAES-OAEP using SHA-256
// (RSA-OAEP-256).
func WrapRSAOAEP256(pub *rsa.PublicKey, cek []byte) ([]byte, error) {
	return wrapOAEP(pub, cek, sha256.New)
}

// UnwrapRSAOAEP256 decrypts encryptedKey with priv, reversing WrapRSAOAEP256.
func UnwrapRSAOAEP256(priv *rsa.PrivateKey, encryptedKey []byte) ([]byte, error) {
	return unwrapOAEP(priv, encryptedKey, sha256.New)
}

func wrapOAEP(pub *rsa.PublicKey, cek []byte, newHash func() hash.Hash) ([]byte, error) {
	encryptedKey, err := rsa.EncryptOAEP(newHash(), rand.Reader, pub, cek, nil)
	if err != nil {
		return nil, fmt.Errorf("wrapRSAOAEP: %w", err)
	}

	return encryptedKey, nil
}

func unwrapOAEP(priv *rsa.PrivateKey, encryptedKey []byte, newHash func() hash.Hash) ([]byte, error) {
	cek, err := rsa.DecryptOAEP(newHash(), rand.Reader, priv, encryptedKey, nil)
	if err != nil {
		return nil, fmt.Errorf("unwrapRSAOAEP: %w", err)
	}

	return cek, nil
}
