/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package jose

import (
	"errors"
	"fmt"
	"sort"
)

// Missing-parameter errors. Each names exactly the field whose absence made
// the operation fail.
var (
	// ErrMissingKeyAlgorithm is returned when no header supplies the key
	// management algorithm.
	ErrMissingKeyAlgorithm = errors.New("jose: missing key management algorithm 'alg' header")

	// ErrMissingEncryptionAlgorithm is returned when no header supplies the
	// content encryption algorithm.
	ErrMissingEncryptionAlgorithm = errors.New("jose: missing content encryption algorithm 'enc' header")

	// ErrMissingRecipientKey is returned when the recipient key required by
	// the key management algorithm is absent or of the wrong type.
	ErrMissingRecipientKey = errors.New("jose: missing recipient key")

	// ErrMissingSenderKey is returned when an authenticated (ECDH-1PU)
	// algorithm is used without a sender key.
	ErrMissingSenderKey = errors.New("jose: missing sender key")

	// ErrMissingSharedKey is returned when 'dir' key management is used
	// without a shared symmetric key.
	ErrMissingSharedKey = errors.New("jose: missing shared symmetric key")

	// ErrMissingPassword is returned when a PBES2 algorithm is used without
	// a password.
	ErrMissingPassword = errors.New("jose: missing password")

	// ErrMissingEncryptedKey is returned on decrypt when the recipient entry
	// carries no encrypted key although the algorithm requires one.
	ErrMissingEncryptedKey = errors.New("jose: missing encrypted key")

	// ErrMissingIV is returned when a required initialization vector is
	// absent (content IV, or the key wrap 'iv' header of AxxxGCMKW).
	ErrMissingIV = errors.New("jose: missing initialization vector")

	// ErrMissingTag is returned when a required authentication tag is absent
	// (content tag, or the key wrap 'tag' header of AxxxGCMKW).
	ErrMissingTag = errors.New("jose: missing authentication tag")

	// ErrMissingEphemeralKey is returned when a key agreement algorithm
	// finds no 'epk' header.
	ErrMissingEphemeralKey = errors.New("jose: missing ephemeral public key 'epk' header")

	// ErrMissingSaltInput is returned when PBES2 finds no 'p2s' header.
	ErrMissingSaltInput = errors.New("jose: missing PBES2 salt input 'p2s' header")

	// ErrMissingIterationCount is returned when PBES2 finds no 'p2c' header.
	ErrMissingIterationCount = errors.New("jose: missing PBES2 iteration count 'p2c' header")
)

// Policy-violation errors, enforced on encrypt only.
var (
	// ErrInvalidIterationCount is returned when the PBES2 iteration count is
	// below the minimum of 1000.
	ErrInvalidIterationCount = errors.New("jose: PBES2 iteration count below the minimum of 1000")

	// ErrInvalidSaltLength is returned when the PBES2 salt input is shorter
	// than 8 bytes.
	ErrInvalidSaltLength = errors.New("jose: PBES2 salt input shorter than the minimum of 8 bytes")
)

// Structural errors.
var (
	// ErrInvalidCompactJWE is returned when a compact serialization does not
	// have exactly five segments.
	ErrInvalidCompactJWE = errors.New("jose: invalid compact JWE: must have five segments")

	// ErrNoRecipients is returned when an operation is attempted on a JWE
	// with no recipients.
	ErrNoRecipients = errors.New("jose: no recipients")

	// ErrRecipientNotFound is returned when no recipient entry matches the
	// decryption key (and tryAllRecipients is not set or exhausted).
	ErrRecipientNotFound = errors.New("jose: no recipient found for the given key")
)

// UnsupportedAlgorithmsError is returned when the requested alg/enc
// combination is outside the supported sets. It carries the attempted values
// and the full supported sets for actionable diagnostics.
type UnsupportedAlgorithmsError struct {
	Op  string // "encryption" or "decryption"
	Alg KeyAlg
	Enc EncAlg
}

func (e *UnsupportedAlgorithmsError) Error() string {
	algs := KeyAlgorithms()
	sort.Slice(algs, func(i, j int) bool { return algs[i] < algs[j] })

	encs := EncAlgorithms()
	sort.Slice(encs, func(i, j int) bool { return encs[i] < encs[j] })

	return fmt.Sprintf("jose: %s with alg '%s' and enc '%s' not supported (supported alg: %v, enc: %v)",
		e.Op, e.Alg, e.Enc, algs, encs)
}

// internalError signals a registry misconfiguration: an algorithm claims
// support but its capability is not wired. This is a programmer error, not a
// caller input error.
func internalError(capability string, alg KeyAlg) error {
	return fmt.Errorf("jose: internal error: %s not available for '%s'", capability, alg)
}
