/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package jwksupport provides builders creating JWKs from opaque Go keys.
package jwksupport

import (
	"fmt"

	"github.com/go-jose/go-jose/v3"
	"github.com/google/uuid"
	"golang.org/x/crypto/curve25519"

	"github.com/strandsec/jose-go/doc/jose/jwk"
)

// JWKFromKey creates a JWK from an opaque key struct, e.g. *ecdsa.PublicKey,
// *ecdsa.PrivateKey, *rsa.PublicKey, *rsa.PrivateKey or a symmetric []byte
// ("oct") key.
func JWKFromKey(opaqueKey interface{}) (*jwk.JWK, error) {
	key := &jwk.JWK{
		JSONWebKey: jose.JSONWebKey{
			Key: opaqueKey,
		},
	}

	// marshal/unmarshal to get all JWK's fields other than Key filled.
	keyBytes, err := key.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("create JWK: %w", err)
	}

	err = key.UnmarshalJSON(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("create JWK: %w", err)
	}

	return key, nil
}

// JWKFromX25519Key builds a public OKP/X25519 JWK from raw public key bytes.
// JWKFromKey cannot be used for X25519 raw keys as it would produce an "oct"
// key; this builder presets the curve and key type.
func JWKFromX25519Key(pubKey []byte) (*jwk.JWK, error) {
	if len(pubKey) != curve25519.ScalarSize {
		return nil, fmt.Errorf("create X25519 JWK: invalid key size %d", len(pubKey))
	}

	return &jwk.JWK{
		JSONWebKey: jose.JSONWebKey{
			Key: pubKey,
		},
		Kty: "OKP",
		Crv: "X25519",
	}, nil
}

// JWKFromX25519PrivateKey builds a private OKP/X25519 JWK from the private
// scalar, computing the public key bytes.
func JWKFromX25519PrivateKey(privKey []byte) (*jwk.JWK, error) {
	pubKey, err := curve25519.X25519(privKey, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("create X25519 JWK: %w", err)
	}

	key, err := JWKFromX25519Key(pubKey)
	if err != nil {
		return nil, err
	}

	key.D = privKey

	return key, nil
}

// JWKFromSymmetricKey builds an "oct" JWK carrying raw symmetric key bytes.
// A random kid is assigned when kid is empty so the key can be matched as a
// JWE recipient.
func JWKFromSymmetricKey(keyBytes []byte, kid string) (*jwk.JWK, error) {
	if len(keyBytes) == 0 {
		return nil, fmt.Errorf("create symmetric JWK: empty key")
	}

	if kid == "" {
		kid = uuid.New().String()
	}

	return &jwk.JWK{
		JSONWebKey: jose.JSONWebKey{
			Key:   keyBytes,
			KeyID: kid,
		},
		Kty: "oct",
	}, nil
}
