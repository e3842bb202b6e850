/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package jwk provides the JSON Web Key (RFC 7517) representation used as the
// key parameter throughout the JWE code. It wraps go-jose's JSONWebKey and
// adds the OKP/X25519 key type (RFC 8037) that go-jose does not marshal.
package jwk

import (
	"crypto"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-jose/go-jose/v3"
)

const (
	okpKty    = "OKP"
	x25519Crv = "X25519"
)

// JWK is a JSON Web Key. For OKP/X25519 keys, Key holds the raw public key
// bytes and D the private scalar; all other key types are delegated to the
// embedded go-jose JSONWebKey.
type JWK struct {
	jose.JSONWebKey

	Kty string
	Crv string

	// D is the private scalar of an OKP key, nil for public keys.
	D []byte
}

type okpJSON struct {
	Crv string `json:"crv"`
	D   string `json:"d,omitempty"`
	Kid string `json:"kid,omitempty"`
	Kty string `json:"kty"`
	X   string `json:"x"`
}

type headerJSON struct {
	Kty string `json:"kty"`
	Crv string `json:"crv,omitempty"`
}

// IsX25519 reports whether the key is an OKP key on curve X25519.
func (j *JWK) IsX25519() bool {
	return j.Kty == okpKty && j.Crv == x25519Crv
}

// MarshalJSON serializes the key to its JSON representation.
func (j *JWK) MarshalJSON() ([]byte, error) {
	if j.IsX25519() {
		return j.marshalX25519()
	}

	return j.JSONWebKey.MarshalJSON()
}

func (j *JWK) marshalX25519() ([]byte, error) {
	x, ok := j.Key.([]byte)
	if !ok || len(x) == 0 {
		return nil, errors.New("marshal JWK: invalid X25519 key")
	}

	raw := okpJSON{
		Crv: x25519Crv,
		Kid: j.KeyID,
		Kty: okpKty,
		X:   base64.RawURLEncoding.EncodeToString(x),
	}

	if len(j.D) > 0 {
		raw.D = base64.RawURLEncoding.EncodeToString(j.D)
	}

	return json.Marshal(raw)
}

// UnmarshalJSON deserializes the key from its JSON representation.
func (j *JWK) UnmarshalJSON(jwkBytes []byte) error {
	var header headerJSON

	err := json.Unmarshal(jwkBytes, &header)
	if err != nil {
		return fmt.Errorf("unmarshal JWK: %w", err)
	}

	if header.Kty == okpKty && header.Crv == x25519Crv {
		return j.unmarshalX25519(jwkBytes)
	}

	err = j.JSONWebKey.UnmarshalJSON(jwkBytes)
	if err != nil {
		return fmt.Errorf("unmarshal JWK: %w", err)
	}

	j.Kty = header.Kty
	j.Crv = header.Crv

	return nil
}

func (j *JWK) unmarshalX25519(jwkBytes []byte) error {
	var raw okpJSON

	err := json.Unmarshal(jwkBytes, &raw)
	if err != nil {
		return fmt.Errorf("unmarshal X25519 JWK: %w", err)
	}

	x, err := base64.RawURLEncoding.DecodeString(raw.X)
	if err != nil {
		return fmt.Errorf("unmarshal X25519 JWK: decode x: %w", err)
	}

	j.Key = x
	j.KeyID = raw.Kid
	j.Kty = okpKty
	j.Crv = x25519Crv

	if raw.D != "" {
		d, err := base64.RawURLEncoding.DecodeString(raw.D)
		if err != nil {
			return fmt.Errorf("unmarshal X25519 JWK: decode d: %w", err)
		}

		j.D = d
	}

	return nil
}

// Public returns the public part of the key. The receiver is returned
// unchanged when it is already public.
func (j *JWK) Public() *JWK {
	if j.IsX25519() {
		pub := *j
		pub.D = nil
		pub.JSONWebKey.Key = j.Key

		return &pub
	}

	pubJWK := j.JSONWebKey.Public()

	return &JWK{
		JSONWebKey: pubJWK,
		Kty:        j.Kty,
		Crv:        j.Crv,
	}
}

// Thumbprint computes the RFC 7638 thumbprint of the key's canonical form,
// using the RFC 8037 required members for OKP keys.
func (j *JWK) Thumbprint(hash crypto.Hash) ([]byte, error) {
	if j.IsX25519() {
		x, ok := j.Key.([]byte)
		if !ok || len(x) == 0 {
			return nil, errors.New("thumbprint: invalid X25519 key")
		}

		canonical := fmt.Sprintf(`{"crv":%q,"kty":%q,"x":%q}`,
			x25519Crv, okpKty, base64.RawURLEncoding.EncodeToString(x))

		h := hash.New()
		h.Write([]byte(canonical))

		return h.Sum(nil), nil
	}

	return j.JSONWebKey.Thumbprint(hash)
}
