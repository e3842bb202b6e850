/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package jose

import (
	"encoding/base64"
	"fmt"

	"github.com/strandsec/jose-go/doc/jose/jwk"
)

// resolveHeader returns the value of name as seen by one recipient, applying
// the per-recipient precedence: recipient header, then protected, then
// unprotected.
func resolveHeader(name string, protected, unprotected, recipient Headers) (interface{}, bool) {
	for _, h := range []Headers{recipient, protected, unprotected} {
		if h == nil {
			continue
		}

		if v, ok := h[name]; ok {
			return v, true
		}
	}

	return nil, false
}

// resolveEnvelopeHeader returns the value of name for headers whose meaning is
// envelope-wide ('enc' and 'zip'): protected wins over recipient, which wins
// over unprotected. A recipient entry cannot override the protected content
// encryption of the whole envelope.
func resolveEnvelopeHeader(name string, protected, unprotected, recipient Headers) (interface{}, bool) {
	for _, h := range []Headers{protected, recipient, unprotected} {
		if h == nil {
			continue
		}

		if v, ok := h[name]; ok {
			return v, true
		}
	}

	return nil, false
}

// resolveString resolves name to a string with per-recipient precedence.
func resolveString(name string, protected, unprotected, recipient Headers) (string, bool) {
	raw, ok := resolveHeader(name, protected, unprotected, recipient)
	if !ok {
		return "", false
	}

	s, ok := raw.(string)

	return s, ok
}

// resolveBytes resolves name to raw bytes; the header value is expected to be
// a base64url (no padding) string.
func resolveBytes(name string, protected, unprotected, recipient Headers) ([]byte, error) {
	s, ok := resolveString(name, protected, unprotected, recipient)
	if !ok {
		return nil, nil
	}

	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("resolveBytes: header '%s' is not base64url: %w", name, err)
	}

	return b, nil
}

// resolveInt resolves name to an int. JSON numbers deserialize as float64,
// but a caller-built header may hold a native int.
func resolveInt(name string, protected, unprotected, recipient Headers) (int, bool) {
	raw, ok := resolveHeader(name, protected, unprotected, recipient)
	if !ok {
		return 0, false
	}

	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// resolveJWK resolves name to a JWK with per-recipient precedence.
func resolveJWK(name string, protected, unprotected, recipient Headers) (*jwk.JWK, bool) {
	raw, ok := resolveHeader(name, protected, unprotected, recipient)
	if !ok {
		return nil, false
	}

	return Headers{name: raw}.jwkValue(name)
}

// resolveAlg resolves the key management algorithm for one recipient.
func resolveAlg(protected, unprotected, recipient Headers) (KeyAlg, error) {
	s, ok := resolveString(HeaderAlgorithm, protected, unprotected, recipient)
	if !ok || s == "" {
		return "", ErrMissingKeyAlgorithm
	}

	return KeyAlg(s), nil
}

// resolveEnc resolves the envelope content encryption algorithm.
func resolveEnc(protected, unprotected, recipient Headers) (EncAlg, error) {
	s, ok := resolveEnvelopeHeader(HeaderEncryption, protected, unprotected, recipient)
	if !ok {
		return "", ErrMissingEncryptionAlgorithm
	}

	enc, ok := s.(string)
	if !ok || enc == "" {
		return "", ErrMissingEncryptionAlgorithm
	}

	return EncAlg(enc), nil
}

// resolveZip resolves the envelope compression algorithm, empty when absent.
func resolveZip(protected, unprotected, recipient Headers) string {
	raw, ok := resolveEnvelopeHeader(HeaderCompression, protected, unprotected, recipient)
	if !ok {
		return ""
	}

	zip, _ := raw.(string)

	return zip
}

// mergeHeaders returns a new Headers holding base overlaid with extra. Both
// inputs are left untouched.
func mergeHeaders(base, extra Headers) Headers {
	out := make(Headers, len(base)+len(extra))

	for k, v := range base {
		out[k] = v
	}

	for k, v := range extra {
		out[k] = v
	}

	return out
}
