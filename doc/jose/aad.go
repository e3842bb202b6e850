/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package jose

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// ComputeAAD builds the Additional Authenticated Data fed to the content
// encryption AEAD: the ASCII bytes of the base64url protected header,
// optionally extended with '.' and the base64url caller AAD.
//
// Two pass-through cases keep the builder idempotent:
//   - aad already of the composed form "<b64>.<b64>" is returned unchanged;
//   - aad that is itself a bare base64url string is returned unchanged, it is
//     treated as already encoded.
func ComputeAAD(protectedB64 string, aad []byte) []byte {
	if len(aad) == 0 {
		return []byte(protectedB64)
	}

	if IsComposedAAD(aad) || isBase64URL(aad) {
		return aad
	}

	return composeAAD(protectedB64, aad)
}

// composeAAD builds "<protectedB64>.<b64(aad)>" unconditionally, with no
// pass-through heuristics.
func composeAAD(protectedB64 string, aad []byte) []byte {
	if len(aad) == 0 {
		return []byte(protectedB64)
	}

	encLen := base64.RawURLEncoding.EncodedLen(len(aad))
	out := make([]byte, 0, len(protectedB64)+1+encLen)

	out = append(out, protectedB64...)
	out = append(out, '.')

	aadEncoded := make([]byte, encLen)
	base64.RawURLEncoding.Encode(aadEncoded, aad)

	return append(out, aadEncoded...)
}

// IsComposedAAD reports whether aad has the composed form
// "<b64 header>.<b64 extra>" with both segments decodable and a non-empty
// header segment.
func IsComposedAAD(aad []byte) bool {
	i := bytes.IndexByte(aad, '.')
	if i <= 0 || bytes.IndexByte(aad[i+1:], '.') >= 0 {
		return false
	}

	return isBase64URL(aad[:i]) && isBase64URL(aad[i+1:])
}

// ValidateComposedHeader checks that the header segment of a composed AAD is
// exactly protectedB64. A mismatch means the AAD was built over a different
// protected header (header substitution).
func ValidateComposedHeader(aad []byte, protectedB64 string) error {
	i := bytes.IndexByte(aad, '.')
	if i < 0 {
		return fmt.Errorf("validate aad: not a composed aad")
	}

	if string(aad[:i]) != protectedB64 {
		return fmt.Errorf("validate aad: header segment does not match the protected header")
	}

	return nil
}

func isBase64URL(s []byte) bool {
	if len(s) == 0 {
		return false
	}

	_, err := base64.RawURLEncoding.DecodeString(string(s))

	return err == nil
}

// serializeProtected marshals the protected header and returns its base64url
// serialization. Map marshaling sorts keys, so equal headers always produce
// the same bytes, which matters because the AAD is computed over them.
func serializeProtected(headers Headers) (string, error) {
	if len(headers) == 0 {
		return "", nil
	}

	fields := make(map[string]json.RawMessage, len(headers))

	for k, v := range headers {
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("serialize protected header field '%s': %w", k, err)
		}

		fields[k] = b
	}

	b, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("serialize protected headers: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}
