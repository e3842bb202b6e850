/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package jose

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// JSONWebEncryption represents a JWE as defined in
// https://tools.ietf.org/html/rfc7516. The AAD, IV, Ciphertext, Tag and
// per-recipient EncryptedKey fields hold raw (unencoded) bytes; base64url
// encoding happens at serialization time only.
type JSONWebEncryption struct {
	ProtectedHeaders Headers
	// OrigProtectedHeaders is the exact base64url protected header as
	// received on the wire. Decryption recomputes the AAD over these bytes,
	// never over a re-serialization of ProtectedHeaders.
	OrigProtectedHeaders string
	UnprotectedHeaders   Headers
	Recipients           []*Recipient
	AAD                  string
	IV                   string
	Ciphertext           string
	Tag                  string
}

// Recipient is a single recipient of a JWE: its per-recipient header and the
// CEK encrypted for it (empty for CEK-determining algorithms).
type Recipient struct {
	Header       Headers
	EncryptedKey string
}

// rawJSONWebEncryption is the JSON wire form, covering both the general
// serialization (Recipients) and the flattened one (Header/EncryptedKey
// hoisted to the top level).
type rawJSONWebEncryption struct {
	Protected    string            `json:"protected,omitempty"`
	Unprotected  json.RawMessage   `json:"unprotected,omitempty"`
	Recipients   []json.RawMessage `json:"recipients,omitempty"`
	Header       json.RawMessage   `json:"header,omitempty"`
	EncryptedKey string            `json:"encrypted_key,omitempty"`
	AAD          string            `json:"aad,omitempty"`
	IV           string            `json:"iv,omitempty"`
	Ciphertext   string            `json:"ciphertext"`
	Tag          string            `json:"tag,omitempty"`
}

type rawRecipient struct {
	Header       json.RawMessage `json:"header,omitempty"`
	EncryptedKey string          `json:"encrypted_key,omitempty"`
}

var errEmptyCiphertext = errors.New("jose: ciphertext cannot be empty")

type marshalFunc func(interface{}) ([]byte, error)

// Serialize serializes the JWE into the JSON serialization defined in
// https://tools.ietf.org/html/rfc7516#section-7.2: flattened when the JWE has
// a single recipient, general otherwise.
func (e *JSONWebEncryption) Serialize(marshal marshalFunc) (string, error) {
	if e.Ciphertext == "" {
		return "", errEmptyCiphertext
	}

	b64Protected, unprotected, err := e.prepareHeaders(marshal)
	if err != nil {
		return "", err
	}

	raw := rawJSONWebEncryption{
		Protected:   b64Protected,
		Unprotected: unprotected,
		AAD:         base64.RawURLEncoding.EncodeToString([]byte(e.AAD)),
		IV:          base64.RawURLEncoding.EncodeToString([]byte(e.IV)),
		Ciphertext:  base64.RawURLEncoding.EncodeToString([]byte(e.Ciphertext)),
		Tag:         base64.RawURLEncoding.EncodeToString([]byte(e.Tag)),
	}

	switch len(e.Recipients) {
	case 0:
		return "", ErrNoRecipients
	case 1:
		// flattened form
		rawRec, errRec := marshalRecipient(e.Recipients[0], marshal)
		if errRec != nil {
			return "", errRec
		}

		raw.Header = rawRec.Header
		raw.EncryptedKey = rawRec.EncryptedKey
	default:
		for _, recipient := range e.Recipients {
			rawRec, errRec := marshalRecipient(recipient, marshal)
			if errRec != nil {
				return "", errRec
			}

			recJSON, errRec := marshal(rawRec)
			if errRec != nil {
				return "", errRec
			}

			raw.Recipients = append(raw.Recipients, recJSON)
		}
	}

	serialized, err := marshal(raw)
	if err != nil {
		return "", err
	}

	return string(serialized), nil
}

func (e *JSONWebEncryption) prepareHeaders(marshal marshalFunc) (string, json.RawMessage, error) {
	b64Protected := e.OrigProtectedHeaders

	if b64Protected == "" && len(e.ProtectedHeaders) > 0 {
		var err error

		b64Protected, err = serializeProtected(e.ProtectedHeaders)
		if err != nil {
			return "", nil, err
		}
	}

	var unprotected json.RawMessage

	if len(e.UnprotectedHeaders) > 0 {
		unprotectedJSON, err := marshal(e.UnprotectedHeaders)
		if err != nil {
			return "", nil, err
		}

		unprotected = unprotectedJSON
	}

	return b64Protected, unprotected, nil
}

func marshalRecipient(recipient *Recipient, marshal marshalFunc) (*rawRecipient, error) {
	raw := &rawRecipient{}

	if recipient.EncryptedKey != "" {
		raw.EncryptedKey = base64.RawURLEncoding.EncodeToString([]byte(recipient.EncryptedKey))
	}

	if len(recipient.Header) > 0 {
		headerJSON, err := marshal(recipient.Header)
		if err != nil {
			return nil, err
		}

		raw.Header = headerJSON
	}

	return raw, nil
}

// CompactSerialize serializes the JWE into the 5-segment compact form. The
// JWE must have exactly one recipient with no per-recipient header, no
// unprotected headers and no AAD, as the compact form cannot carry them.
func (e *JSONWebEncryption) CompactSerialize(marshal marshalFunc) (string, error) {
	if len(e.Recipients) != 1 {
		return "", errors.New("jose: compact serialization requires exactly one recipient")
	}

	if len(e.Recipients[0].Header) > 0 || len(e.UnprotectedHeaders) > 0 {
		return "", errors.New("jose: compact serialization does not support recipient or unprotected headers")
	}

	if e.AAD != "" {
		return "", errors.New("jose: compact serialization does not support AAD")
	}

	if e.Ciphertext == "" {
		return "", errEmptyCiphertext
	}

	b64Protected, _, err := e.prepareHeaders(marshal)
	if err != nil {
		return "", err
	}

	encryptedKey := base64.RawURLEncoding.EncodeToString([]byte(e.Recipients[0].EncryptedKey))
	iv := base64.RawURLEncoding.EncodeToString([]byte(e.IV))
	ciphertext := base64.RawURLEncoding.EncodeToString([]byte(e.Ciphertext))
	tag := base64.RawURLEncoding.EncodeToString([]byte(e.Tag))

	return fmt.Sprintf("%s.%s.%s.%s.%s", b64Protected, encryptedKey, iv, ciphertext, tag), nil
}
