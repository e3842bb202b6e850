/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package contentenc

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

const (
	aesGCMIVSize  = 12
	aesGCMTagSize = 16
)

type aesGCM struct {
	alg     Algorithm
	keySize int
}

func (a *aesGCM) Algorithm() Algorithm {
	return a.alg
}

func (a *aesGCM) KeySize() int {
	return a.keySize
}

func (a *aesGCM) IVSize() int {
	return aesGCMIVSize
}

func (a *aesGCM) newAEAD(cek []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.alg, err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.alg, err)
	}

	return aead, nil
}

func (a *aesGCM) Encrypt(plaintext, cek, iv, aad []byte) ([]byte, []byte, error) {
	if err := validateKeyIV(a, cek, iv); err != nil {
		return nil, nil, err
	}

	aead, err := a.newAEAD(cek)
	if err != nil {
		return nil, nil, err
	}

	sealed := aead.Seal(nil, iv, plaintext, aad)
	tagIdx := len(sealed) - aesGCMTagSize

	return sealed[:tagIdx], sealed[tagIdx:], nil
}

func (a *aesGCM) Decrypt(ciphertext, cek, iv, tag, aad []byte) ([]byte, error) {
	if err := validateKeyIV(a, cek, iv); err != nil {
		return nil, err
	}

	aead, err := a.newAEAD(cek)
	if err != nil {
		return nil, err
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
