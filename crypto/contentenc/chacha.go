/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package contentenc

import (
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

type chaChaPoly struct {
	alg    Algorithm
	ivSize int
}

func (c *chaChaPoly) Algorithm() Algorithm {
	return c.alg
}

func (c *chaChaPoly) KeySize() int {
	return chacha20poly1305.KeySize
}

func (c *chaChaPoly) IVSize() int {
	return c.ivSize
}

func (c *chaChaPoly) newAEAD(cek []byte) (cipher.AEAD, error) {
	var (
		aead cipher.AEAD
		err  error
	)

	if c.alg == XC20P {
		aead, err = chacha20poly1305.NewX(cek)
	} else {
		aead, err = chacha20poly1305.New(cek)
	}

	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.alg, err)
	}

	return aead, nil
}

func (c *chaChaPoly) Encrypt(plaintext, cek, iv, aad []byte) ([]byte, []byte, error) {
	if err := validateKeyIV(c, cek, iv); err != nil {
		return nil, nil, err
	}

	aead, err := c.newAEAD(cek)
	if err != nil {
		return nil, nil, err
	}

	sealed := aead.Seal(nil, iv, plaintext, aad)
	tagIdx := len(sealed) - aead.Overhead()

	return sealed[:tagIdx], sealed[tagIdx:], nil
}

func (c *chaChaPoly) Decrypt(ciphertext, cek, iv, tag, aad []byte) ([]byte, error) {
	if err := validateKeyIV(c, cek, iv); err != nil {
		return nil, err
	}

	aead, err := c.newAEAD(cek)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, iv, sealed, aad)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.alg, ErrAuthentication)
	}

	return plaintext, nil
}
