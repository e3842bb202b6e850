/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package jose

import (
	"github.com/strandsec/jose-go/crypto/contentenc"
)

// EncAlg represents the JWE content encryption algorithm.
type EncAlg string

const (
	// A128GCM for AES128-GCM content encryption.
	A128GCM = EncAlg(contentenc.A128GCM)
	// A192GCM for AES192-GCM content encryption.
	A192GCM = EncAlg(contentenc.A192GCM)
	// A256GCM for AES256-GCM content encryption.
	A256GCM = EncAlg(contentenc.A256GCM)
	// A128CBCHS256 for A128CBC-HS256 (AES128-CBC+HMAC-SHA256) content encryption.
	A128CBCHS256 = EncAlg(contentenc.A128CBCHS256)
	// A192CBCHS384 for A192CBC-HS384 (AES192-CBC+HMAC-SHA384) content encryption.
	A192CBCHS384 = EncAlg(contentenc.A192CBCHS384)
	// A256CBCHS512 for A256CBC-HS512 (AES256-CBC+HMAC-SHA512) content encryption.
	A256CBCHS512 = EncAlg(contentenc.A256CBCHS512)
	// C20P for ChaCha20-Poly1305 content encryption.
	C20P = EncAlg(contentenc.C20P)
	// XC20P for XChaCha20-Poly1305 content encryption.
	XC20P = EncAlg(contentenc.XC20P)
)

// KeyAlg represents the JWE key management algorithm.
type KeyAlg string

const (
	// RSA15 for RSAES-PKCS1-v1_5 key encryption.
	RSA15 = KeyAlg("RSA1_5")
	// RSAOAEP for RSAES-OAEP (SHA-1) key encryption.
	RSAOAEP = KeyAlg("RSA-OAEP")
	// RSAOAEP256 for RSAES-OAEP (SHA-256) key encryption.
	RSAOAEP256 = KeyAlg("RSA-OAEP-256")
	// A128KW for AES128 key wrapping.
	A128KW = KeyAlg("A128KW")
	// A192KW for AES192 key wrapping.
	A192KW = KeyAlg("A192KW")
	// A256KW for AES256 key wrapping.
	A256KW = KeyAlg("A256KW")
	// Dir for direct use of a shared symmetric key as the CEK.
	Dir = KeyAlg("dir")
	// ECDHES for direct ECDH-ES key agreement.
	ECDHES = KeyAlg("ECDH-ES")
	// ECDHESA128KW for ECDH-ES key agreement with AES128 key wrapping.
	ECDHESA128KW = KeyAlg("ECDH-ES+A128KW")
	// ECDHESA192KW for ECDH-ES key agreement with AES192 key wrapping.
	ECDHESA192KW = KeyAlg("ECDH-ES+A192KW")
	// ECDHESA256KW for ECDH-ES key agreement with AES256 key wrapping.
	ECDHESA256KW = KeyAlg("ECDH-ES+A256KW")
	// A128GCMKW for AES128-GCM key wrapping.
	A128GCMKW = KeyAlg("A128GCMKW")
	// A192GCMKW for AES192-GCM key wrapping.
	A192GCMKW = KeyAlg("A192GCMKW")
	// A256GCMKW for AES256-GCM key wrapping.
	A256GCMKW = KeyAlg("A256GCMKW")
	// PBES2HS256A128KW for PBES2 (HMAC-SHA256) password based key derivation
	// with AES128 key wrapping.
	PBES2HS256A128KW = KeyAlg("PBES2-HS256+A128KW")
	// PBES2HS384A192KW for PBES2 (HMAC-SHA384) password based key derivation
	// with AES192 key wrapping.
	PBES2HS384A192KW = KeyAlg("PBES2-HS384+A192KW")
	// PBES2HS512A256KW for PBES2 (HMAC-SHA512) password based key derivation
	// with AES256 key wrapping.
	PBES2HS512A256KW = KeyAlg("PBES2-HS512+A256KW")
	// ECDH1PU for direct ECDH-1PU (one-pass unified) key agreement.
	ECDH1PU = KeyAlg("ECDH-1PU")
	// ECDH1PUA128KW for ECDH-1PU key agreement with AES128 key wrapping.
	ECDH1PUA128KW = KeyAlg("ECDH-1PU+A128KW")
	// ECDH1PUA192KW for ECDH-1PU key agreement with AES192 key wrapping.
	ECDH1PUA192KW = KeyAlg("ECDH-1PU+A192KW")
	// ECDH1PUA256KW for ECDH-1PU key agreement with AES256 key wrapping.
	ECDH1PUA256KW = KeyAlg("ECDH-1PU+A256KW")
)

// KeyFamily identifies the key management implementation of a KeyAlg. Each
// algorithm belongs to exactly one family.
type KeyFamily int

// Key management families.
const (
	FamilyUnknown KeyFamily = iota
	FamilyRSA
	FamilyAESKW
	FamilyAESGCMKW
	FamilyDirect
	FamilyECDHES
	FamilyECDH1PU
	FamilyPBES2
)

type keyAlgInfo struct {
	family KeyFamily
	// kwSize is the AES key wrap KEK size in bytes for algorithms ending in
	// a key wrap step, 0 for direct modes.
	kwSize int
}

// immutable after init, safe for concurrent reads.
var keyAlgs = map[KeyAlg]keyAlgInfo{ //nolint:gochecknoglobals
	RSA15:            {family: FamilyRSA},
	RSAOAEP:          {family: FamilyRSA},
	RSAOAEP256:       {family: FamilyRSA},
	A128KW:           {family: FamilyAESKW, kwSize: 16},
	A192KW:           {family: FamilyAESKW, kwSize: 24},
	A256KW:           {family: FamilyAESKW, kwSize: 32},
	A128GCMKW:        {family: FamilyAESGCMKW, kwSize: 16},
	A192GCMKW:        {family: FamilyAESGCMKW, kwSize: 24},
	A256GCMKW:        {family: FamilyAESGCMKW, kwSize: 32},
	Dir:              {family: FamilyDirect},
	ECDHES:           {family: FamilyECDHES},
	ECDHESA128KW:     {family: FamilyECDHES, kwSize: 16},
	ECDHESA192KW:     {family: FamilyECDHES, kwSize: 24},
	ECDHESA256KW:     {family: FamilyECDHES, kwSize: 32},
	ECDH1PU:          {family: FamilyECDH1PU},
	ECDH1PUA128KW:    {family: FamilyECDH1PU, kwSize: 16},
	ECDH1PUA192KW:    {family: FamilyECDH1PU, kwSize: 24},
	ECDH1PUA256KW:    {family: FamilyECDH1PU, kwSize: 32},
	PBES2HS256A128KW: {family: FamilyPBES2, kwSize: 16},
	PBES2HS384A192KW: {family: FamilyPBES2, kwSize: 24},
	PBES2HS512A256KW: {family: FamilyPBES2, kwSize: 32},
}

// Family returns the key management family of a.
func (a KeyAlg) Family() (KeyFamily, bool) {
	info, ok := keyAlgs[a]

	return info.family, ok
}

// kwKeySize returns the KEK size in bytes of the algorithm's AES key wrap
// step, 0 for direct modes.
func (a KeyAlg) kwKeySize() int {
	return keyAlgs[a].kwSize
}

// determinesCEK reports whether the algorithm fixes the CEK from the
// recipient's key material instead of wrapping a random CEK: such algorithms
// produce no encrypted key and cannot share an envelope with other
// recipients.
func (a KeyAlg) determinesCEK() bool {
	switch a {
	case Dir, ECDHES, ECDH1PU:
		return true
	default:
		return false
	}
}

// KeyAlgorithms returns the supported key management algorithms.
func KeyAlgorithms() []KeyAlg {
	out := make([]KeyAlg, 0, len(keyAlgs))
	for alg := range keyAlgs {
		out = append(out, alg)
	}

	return out
}

// EncAlgorithms returns the supported content encryption algorithms.
func EncAlgorithms() []EncAlg {
	algs := contentenc.Algorithms()

	out := make([]EncAlg, 0, len(algs))
	for _, alg := range algs {
		out = append(out, EncAlg(alg))
	}

	return out
}
