/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package kidresolver provides key ID resolution, used to look up the sender
// public key referenced by a JWE 'skid' header.
package kidresolver

import (
	"fmt"

	"github.com/strandsec/jose-go/doc/jose/jwk"
)

// KIDResolver helps resolve a key ID into a public key.
type KIDResolver interface {
	// Resolve returns the public key the given kid references.
	Resolve(kid string) (*jwk.JWK, error)
}

// SetResolver resolves key IDs against a fixed set of known keys.
type SetResolver struct {
	keys map[string]*jwk.JWK
}

// NewSetResolver builds a SetResolver over the given keys. Keys without a kid
// are skipped.
func NewSetResolver(keys ...*jwk.JWK) *SetResolver {
	byKID := make(map[string]*jwk.JWK, len(keys))

	for _, key := range keys {
		if key != nil && key.KeyID != "" {
			byKID[key.KeyID] = key
		}
	}

	return &SetResolver{keys: byKID}
}

// Resolve returns the key registered under kid.
func (r *SetResolver) Resolve(kid string) (*jwk.JWK, error) {
	key, ok := r.keys[kid]
	if !ok {
		return nil, fmt.Errorf("kidresolver: no key found for kid '%s'", kid)
	}

	return key, nil
}
