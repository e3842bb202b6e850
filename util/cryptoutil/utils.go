/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package cryptoutil contains shared byte-level helpers for the JOSE key
// derivation code.
package cryptoutil

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// Curve25519KeySize is the size in bytes of an X25519 public or private key.
const Curve25519KeySize = 32

// LengthPrefix returns the data prefixed with its 32-bit big-endian length,
// the encoding ConcatKDF (NIST SP 800-56A) uses for its context fields.
func LengthPrefix(data []byte) []byte {
	out := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(out, uint32(len(data)))
	copy(out[4:], data)

	return out
}

// DeriveECDHX25519 does a X25519 DH key agreement between fromPrivKey and toPubKey
// and returns the resulting shared secret.
func DeriveECDHX25519(fromPrivKey, toPubKey []byte) ([]byte, error) {
	if len(fromPrivKey) != Curve25519KeySize || len(toPubKey) != Curve25519KeySize {
		return nil, errors.New("deriveECDHX25519: keys must be 32 bytes")
	}

	z, err := curve25519.X25519(fromPrivKey, toPubKey)
	if err != nil {
		return nil, fmt.Errorf("deriveECDHX25519: %w", err)
	}

	return z, nil
}
