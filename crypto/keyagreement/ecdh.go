/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package keyagreement holds the JWE key agreement registry: ECDH-ES
// (RFC 7518 section 4.6) and ECDH-1PU (draft-madden-jose-ecdh-1pu-04) over
// NIST P curves and X25519, with ConcatKDF (NIST SP 800-56A) key derivation.
package keyagreement

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"encoding/binary"
	"errors"
	"fmt"

	josecipher "github.com/go-jose/go-jose/v3/cipher"

	"github.com/strandsec/jose-go/util/cryptoutil"
)

const byteSize = 8

// DeriveES derives a key of keySize bytes for ECDH-ES on a NIST P curve:
// one ECDH computation between priv and pub, run through ConcatKDF with
// algID as AlgorithmID and apu/apv as the party info fields.
func DeriveES(algID string, apu, apv []byte, priv *ecdsa.PrivateKey, pub *ecdsa.PublicKey,
	keySize int) ([]byte, error) {
	if err := validateECKeys(priv, pub); err != nil {
		return nil, fmt.Errorf("deriveES: %w", err)
	}

	return josecipher.DeriveECDHES(algID, apu, apv, priv, pub, keySize), nil
}

// DeriveESX25519 is DeriveES for OKP (X25519) keys.
func DeriveESX25519(algID string, apu, apv, priv, pub []byte, keySize int) ([]byte, error) {
	z, err := cryptoutil.DeriveECDHX25519(priv, pub)
	if err != nil {
		return nil, fmt.Errorf("deriveESX25519: %w", err)
	}

	return concatKDF(algID, z, apu, apv, nil, keySize), nil
}

// DeriveSender1PU derives the sender-side ECDH-1PU key: Ze from the ephemeral
// key and the recipient key, Zs from the sender's static key and the recipient
// key, then ConcatKDF over Ze || Zs. For the key-wrapping variants tag is the
// content authentication tag and is folded into SuppPubInfo; the direct
// variant passes an empty tag.
func DeriveSender1PU(algID string, apu, apv, tag []byte, ephPriv, senderPriv *ecdsa.PrivateKey,
	recPub *ecdsa.PublicKey, keySize int) ([]byte, error) {
	if err := validateECKeys(ephPriv, recPub); err != nil {
		return nil, fmt.Errorf("deriveSender1PU: %w", err)
	}

	if err := validateECKeys(senderPriv, recPub); err != nil {
		return nil, fmt.Errorf("deriveSender1PU: %w", err)
	}

	ze := deriveECDH(ephPriv, recPub)
	zs := deriveECDH(senderPriv, recPub)

	return derive1PU(algID, ze, zs, apu, apv, tag, keySize), nil
}

// DeriveRecipient1PU derives the recipient-side ECDH-1PU key, mirroring
// DeriveSender1PU with the recipient's static private key.
func DeriveRecipient1PU(algID string, apu, apv, tag []byte, ephPub, senderPub *ecdsa.PublicKey,
	recPriv *ecdsa.PrivateKey, keySize int) ([]byte, error) {
	if err := validateECKeys(recPriv, ephPub); err != nil {
		return nil, fmt.Errorf("deriveRecipient1PU: %w", err)
	}

	if err := validateECKeys(recPriv, senderPub); err != nil {
		return nil, fmt.Errorf("deriveRecipient1PU: %w", err)
	}

	ze := deriveECDH(recPriv, ephPub)
	zs := deriveECDH(recPriv, senderPub)

	return derive1PU(algID, ze, zs, apu, apv, tag, keySize), nil
}

// DeriveSender1PUX25519 is DeriveSender1PU for OKP (X25519) keys.
func DeriveSender1PUX25519(algID string, apu, apv, tag, ephPriv, senderPriv, recPub []byte,
	keySize int) ([]byte, error) {
	ze, err := cryptoutil.DeriveECDHX25519(ephPriv, recPub)
	if err != nil {
		return nil, fmt.Errorf("deriveSender1PUX25519: %w", err)
	}

	zs, err := cryptoutil.DeriveECDHX25519(senderPriv, recPub)
	if err != nil {
		return nil, fmt.Errorf("deriveSender1PUX25519: %w", err)
	}

	return derive1PU(algID, ze, zs, apu, apv, tag, keySize), nil
}

// DeriveRecipient1PUX25519 is DeriveRecipient1PU for OKP (X25519) keys.
func DeriveRecipient1PUX25519(algID string, apu, apv, tag, ephPub, senderPub, recPriv []byte,
	keySize int) ([]byte, error) {
	ze, err := cryptoutil.DeriveECDHX25519(recPriv, ephPub)
	if err != nil {
		return nil, fmt.Errorf("deriveRecipient1PUX25519: %w", err)
	}

	zs, err := cryptoutil.DeriveECDHX25519(recPriv, senderPub)
	if err != nil {
		return nil, fmt.Errorf("deriveRecipient1PUX25519: %w", err)
	}

	return derive1PU(algID, ze, zs, apu, apv, tag, keySize), nil
}

func validateECKeys(priv *ecdsa.PrivateKey, pub *ecdsa.PublicKey) error {
	if priv == nil || pub == nil {
		return errors.New("nil EC key")
	}

	if priv.Curve != pub.Curve {
		return errors.New("keys are not on the same curve")
	}

	if !priv.Curve.IsOnCurve(pub.X, pub.Y) {
		return errors.New("public key is not on the curve")
	}

	return nil
}

// deriveECDH computes the raw ECDH shared secret Z, zero-padded to the
// curve's coordinate size. big.Int strips leading zero bytes, and a short Z
// breaks the KDF input.
func deriveECDH(priv *ecdsa.PrivateKey, pub *ecdsa.PublicKey) []byte {
	z, _ := priv.Curve.ScalarMult(pub.X, pub.Y, priv.D.Bytes())
	zBytes := z.Bytes()

	octSize := coordinateSize(priv.Curve.Params().P.BitLen())
	if len(zBytes) != octSize {
		zBytes = append(bytes.Repeat([]byte{0}, octSize-len(zBytes)), zBytes...)
	}

	return zBytes
}

func coordinateSize(bitLen int) int {
	size := bitLen / byteSize

	if bitLen%byteSize != 0 {
		size++
	}

	return size
}

func derive1PU(algID string, ze, zs, apu, apv, tag []byte, keySize int) []byte {
	z := append([]byte{}, ze...)
	z = append(z, zs...)

	return concatKDF(algID, z, apu, apv, tag, keySize)
}

func concatKDF(algID string, z, apu, apv, tag []byte, keySize int) []byte {
	algIDInfo := cryptoutil.LengthPrefix([]byte(algID))
	ptyUInfo := cryptoutil.LengthPrefix(apu)
	ptyVInfo := cryptoutil.LengthPrefix(apv)

	supPubInfo := make([]byte, 4)
	binary.BigEndian.PutUint32(supPubInfo, uint32(keySize)*byteSize)

	if len(tag) > 0 {
		// the 1PU key-wrapping variants append the length-prefixed content
		// authentication tag to SuppPubInfo (draft-madden-jose-ecdh-1pu-04
		// section 2.3).
		supPubInfo = append(supPubInfo, cryptoutil.LengthPrefix(tag)...)
	}

	reader := josecipher.NewConcatKDF(crypto.SHA256, z, algIDInfo, ptyUInfo, ptyVInfo, supPubInfo, []byte{})

	derived := make([]byte, keySize)
	_, _ = reader.Read(derived) //nolint:errcheck // ConcatKDF's Read() never returns an error

	return derived
}
