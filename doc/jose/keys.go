/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package jose

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"fmt"

	"github.com/strandsec/jose-go/doc/jose/jwk"
)

// The accessors below extract typed key material from a JWK, accepting a
// private key wherever a public one is needed.

func symmetricKeyBytes(key *jwk.JWK) ([]byte, error) {
	if key == nil {
		return nil, ErrMissingRecipientKey
	}

	if key.IsX25519() {
		return nil, fmt.Errorf("jose: expected a symmetric key, got an X25519 key")
	}

	keyBytes, ok := key.Key.([]byte)
	if !ok || len(keyBytes) == 0 {
		return nil, fmt.Errorf("jose: expected a symmetric key, got %T", key.Key)
	}

	return keyBytes, nil
}

func rsaPublicKey(key *jwk.JWK) (*rsa.PublicKey, error) {
	if key == nil {
		return nil, ErrMissingRecipientKey
	}

	switch k := key.Key.(type) {
	case *rsa.PublicKey:
		return k, nil
	case *rsa.PrivateKey:
		return &k.PublicKey, nil
	default:
		return nil, fmt.Errorf("jose: expected an RSA key, got %T", key.Key)
	}
}

func rsaPrivateKey(key *jwk.JWK) (*rsa.PrivateKey, error) {
	if key == nil {
		return nil, ErrMissingRecipientKey
	}

	k, ok := key.Key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("jose: expected an RSA private key, got %T", key.Key)
	}

	return k, nil
}

func ecPublicKey(key *jwk.JWK) (*ecdsa.PublicKey, error) {
	if key == nil {
		return nil, ErrMissingRecipientKey
	}

	switch k := key.Key.(type) {
	case *ecdsa.PublicKey:
		return k, nil
	case *ecdsa.PrivateKey:
		return &k.PublicKey, nil
	default:
		return nil, fmt.Errorf("jose: expected an EC key, got %T", key.Key)
	}
}

func ecPrivateKey(key *jwk.JWK) (*ecdsa.PrivateKey, error) {
	if key == nil {
		return nil, ErrMissingRecipientKey
	}

	k, ok := key.Key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("jose: expected an EC private key, got %T", key.Key)
	}

	return k, nil
}

func x25519PublicKey(key *jwk.JWK) ([]byte, error) {
	if key == nil {
		return nil, ErrMissingRecipientKey
	}

	if !key.IsX25519() {
		return nil, fmt.Errorf("jose: expected an X25519 key, got kty '%s'", key.Kty)
	}

	keyBytes, ok := key.Key.([]byte)
	if !ok || len(keyBytes) == 0 {
		return nil, fmt.Errorf("jose: X25519 key has no public bytes")
	}

	return keyBytes, nil
}

func x25519PrivateKey(key *jwk.JWK) ([]byte, error) {
	if key == nil {
		return nil, ErrMissingRecipientKey
	}

	if !key.IsX25519() {
		return nil, fmt.Errorf("jose: expected an X25519 key, got kty '%s'", key.Kty)
	}

	if len(key.D) == 0 {
		return nil, fmt.Errorf("jose: X25519 key has no private scalar")
	}

	return key.D, nil
}
