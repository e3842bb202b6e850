/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package keyderivation holds the PBES2 key derivation of RFC 7518
// section 4.8: PBKDF2 with an algorithm-name-prefixed salt.
package keyderivation

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// PBES2 derives a key-encryption key of keySize bytes from password. The
// PBKDF2 salt is UTF8(alg) || 0x00 || saltInput and the PRF is the HMAC-SHA2
// named by the algorithm's HSxxx segment.
func PBES2(alg string, password, saltInput []byte, count, keySize int) ([]byte, error) {
	prf, err := prfForAlg(alg)
	if err != nil {
		return nil, fmt.Errorf("pbes2: %w", err)
	}

	salt := make([]byte, 0, len(alg)+1+len(saltInput))
	salt = append(salt, []byte(alg)...)
	salt = append(salt, 0x00)
	salt = append(salt, saltInput...)

	return pbkdf2.Key(password, salt, count, keySize, prf), nil
}

func prfForAlg(alg string) (func() hash.Hash, error) {
	switch {
	case strings.Contains(alg, "HS256"):
		return sha256.New, nil
	case strings.Contains(alg, "HS384"):
		return sha512.New384, nil
	case strings.Contains(alg, "HS512"):
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("no PRF for algorithm '%s'", alg)
	}
}
