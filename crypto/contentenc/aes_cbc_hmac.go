/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package contentenc

import (
	"crypto/aes"
	"fmt"

	josecipher "github.com/go-jose/go-jose/v3/cipher"
)

const aesCBCIVSize = 16

// aesCBCHMAC implements the AES_CBC_HMAC_SHA2 composite AEAD of RFC 7518
// section 5.2 on top of go-jose's cipher package. The CEK is the HMAC key
// followed by the AES key, each half the total key size.
type aesCBCHMAC struct {
	alg     Algorithm
	keySize int
}

func (a *aesCBCHMAC) Algorithm() Algorithm {
	return a.alg
}

func (a *aesCBCHMAC) KeySize() int {
	return a.keySize
}

func (a *aesCBCHMAC) IVSize() int {
	return aesCBCIVSize
}

func (a *aesCBCHMAC) Encrypt(plaintext, cek, iv, aad []byte) ([]byte, []byte, error) {
	// CBC's correctness degrades silently with a wrong IV length, check it
	// here instead of relying on the primitive.
	if err := validateKeyIV(a, cek, iv); err != nil {
		return nil, nil, err
	}

	aead, err := josecipher.NewCBCHMAC(cek, aes.NewCipher)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", a.alg, err)
	}

	sealed := aead.Seal(nil, iv, plaintext, aad)
	tagIdx := len(sealed) - aead.Overhead()

	return sealed[:tagIdx], sealed[tagIdx:], nil
}

func (a *aesCBCHMAC) Decrypt(ciphertext, cek, iv, tag, aad []byte) ([]byte, error) {
	if err := validateKeyIV(a, cek, iv); err != nil {
		return nil, err
	}

	aead, err := josecipher.NewCBCHMAC(cek, aes.NewCipher)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.alg, err)
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, iv, sealed, aad)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.alg, ErrAuthentication)
	}

	return plaintext, nil
}
