/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package jose

import (
	"encoding/json"
	"fmt"

	"github.com/strandsec/jose-go/doc/jose/jwk"
)

// IANA registered JOSE headers (https://tools.ietf.org/html/rfc7516#section-4.1)
const (
	// HeaderAlgorithm identifies the cryptographic algorithm used to encrypt
	// or determine the value of the CEK.
	HeaderAlgorithm = "alg" // string

	// HeaderEncryption identifies the JWE content encryption algorithm.
	HeaderEncryption = "enc" // string

	// HeaderCompression identifies the compression algorithm applied to the
	// plaintext before encryption.
	HeaderCompression = "zip" // string

	// HeaderJWKSetURL is a URI that refers to a resource for a set of
	// JSON-encoded public keys, one of which corresponds to the public key to
	// which the JWE was encrypted.
	HeaderJWKSetURL = "jku" // string

	// HeaderJSONWebKey is the public key to which the JWE was encrypted.
	HeaderJSONWebKey = "jwk" // JSON

	// HeaderKeyID is a hint which references the public key to which the JWE
	// was encrypted.
	HeaderKeyID = "kid" // string

	// HeaderSenderKeyID is a hint which references the (sender) public key
	// used in the JWE key derivation/wrapping to encrypt the CEK.
	HeaderSenderKeyID = "skid" // string

	// HeaderX509URL is a URI that refers to a resource for the X.509 public
	// key certificate or certificate chain corresponding to the public key to
	// which the JWE was encrypted.
	HeaderX509URL = "x5u" // string

	// HeaderX509CertificateChain contains the X.509 public key certificate or
	// certificate chain corresponding to the public key to which the JWE was
	// encrypted.
	HeaderX509CertificateChain = "x5c" // array

	// HeaderX509CertificateDigestSha1 is a base64url-encoded SHA-1 thumbprint
	// of the DER encoding of the X.509 certificate corresponding to the
	// public key to which the JWE was encrypted.
	HeaderX509CertificateDigestSha1 = "x5t" // string

	// HeaderX509CertificateDigestSha256 is a base64url-encoded SHA-256
	// thumbprint of the DER encoding of the X.509 certificate corresponding
	// to the public key to which the JWE was encrypted.
	HeaderX509CertificateDigestSha256 = "x5t#S256" // string

	// HeaderType declares the media type of this complete JWE.
	HeaderType = "typ" // string

	// HeaderContentType declares the media type of the secured content (the
	// plaintext).
	HeaderContentType = "cty" // string

	// HeaderCritical indicates extensions to this JWE header specification
	// and/or JWA that MUST be understood and processed.
	HeaderCritical = "crit" // array
)

// JWE key agreement and key derivation headers
// (https://tools.ietf.org/html/rfc7518).
const (
	// HeaderEPK is the ephemeral public key used by key agreement algorithms
	// to wrap/unwrap the CEK for a recipient.
	HeaderEPK = "epk" // JSON

	// HeaderAPU is the agreement PartyUInfo of key agreement algorithms.
	HeaderAPU = "apu" // string (base64url)

	// HeaderAPV is the agreement PartyVInfo of key agreement algorithms.
	HeaderAPV = "apv" // string (base64url)

	// HeaderIV is the initialization vector of key wrapping algorithms that
	// carry their own IV (AxxxGCMKW).
	HeaderIV = "iv" // string (base64url)

	// HeaderTag is the authentication tag of key wrapping algorithms that
	// carry their own tag (AxxxGCMKW).
	HeaderTag = "tag" // string (base64url)

	// HeaderP2S is the PBES2 salt input.
	HeaderP2S = "p2s" // string (base64url)

	// HeaderP2C is the PBES2 PBKDF2 iteration count.
	HeaderP2C = "p2c" // integer
)

// CompressionAlgDeflate is the DEF (DEFLATE) "zip" header value.
const CompressionAlgDeflate = "DEF"

// Headers represents JOSE headers.
type Headers map[string]interface{}

// KeyID gets the Key ID from JOSE headers.
func (h Headers) KeyID() (string, bool) {
	return h.stringValue(HeaderKeyID)
}

// SenderKeyID gets the sender Key ID from JOSE headers.
func (h Headers) SenderKeyID() (string, bool) {
	return h.stringValue(HeaderSenderKeyID)
}

// Algorithm gets the key management algorithm from JOSE headers.
func (h Headers) Algorithm() (string, bool) {
	return h.stringValue(HeaderAlgorithm)
}

// Encryption gets the content encryption algorithm from JOSE headers.
func (h Headers) Encryption() (string, bool) {
	return h.stringValue(HeaderEncryption)
}

// Compression gets the compression algorithm from JOSE headers.
func (h Headers) Compression() (string, bool) {
	return h.stringValue(HeaderCompression)
}

// Type gets the envelope media type from JOSE headers.
func (h Headers) Type() (string, bool) {
	return h.stringValue(HeaderType)
}

// ContentType gets the payload content type from JOSE headers.
func (h Headers) ContentType() (string, bool) {
	return h.stringValue(HeaderContentType)
}

func (h Headers) stringValue(key string) (string, bool) {
	raw, ok := h[key]
	if !ok {
		return "", false
	}

	str, ok := raw.(string)

	return str, ok
}

// JWK gets the embedded recipient key from JOSE headers.
func (h Headers) JWK() (*jwk.JWK, bool) {
	return h.jwkValue(HeaderJSONWebKey)
}

// EPK gets the ephemeral public key from JOSE headers.
func (h Headers) EPK() (*jwk.JWK, bool) {
	return h.jwkValue(HeaderEPK)
}

func (h Headers) jwkValue(key string) (*jwk.JWK, bool) {
	jwkRaw, ok := h[key]
	if !ok {
		return nil, false
	}

	if jwkKey, ok := jwkRaw.(*jwk.JWK); ok {
		return jwkKey, true
	}

	var jwkKey jwk.JWK

	err := convertMapToValue(jwkRaw, &jwkKey)
	if err != nil {
		return nil, false
	}

	return &jwkKey, true
}

// convertMapToValue converts a generic JSON value (as produced by
// deserialization into map[string]interface{}) into the given typed value.
func convertMapToValue(raw, v interface{}) error {
	mapBytes, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("convert to value: %w", err)
	}

	return json.Unmarshal(mapBytes, v)
}
