/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package jose

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

const compactSegments = 5

// Deserialize deserializes the given serialization of a JWE into a
// JSONWebEncryption. It accepts the compact serialization and both JSON
// serializations (general and flattened).
func Deserialize(serialization string) (*JSONWebEncryption, error) {
	if strings.HasPrefix(strings.TrimSpace(serialization), "{") {
		return deserializeJSON(serialization)
	}

	return deserializeCompact(serialization)
}

func deserializeCompact(serialization string) (*JSONWebEncryption, error) {
	segments := strings.Split(serialization, ".")
	if len(segments) != compactSegments {
		return nil, ErrInvalidCompactJWE
	}

	rawJWE := rawJSONWebEncryption{
		Protected:    segments[0],
		EncryptedKey: segments[1],
		IV:           segments[2],
		Ciphertext:   segments[3],
		Tag:          segments[4],
	}

	return buildJWE(&rawJWE)
}

func deserializeJSON(serialization string) (*JSONWebEncryption, error) {
	rawJWE := &rawJSONWebEncryption{}

	err := json.Unmarshal([]byte(serialization), rawJWE)
	if err != nil {
		return nil, fmt.Errorf("deserialize JWE: %w", err)
	}

	return buildJWE(rawJWE)
}

func buildJWE(raw *rawJSONWebEncryption) (*JSONWebEncryption, error) {
	protectedHeaders, err := parseProtected(raw.Protected)
	if err != nil {
		return nil, err
	}

	var unprotectedHeaders Headers

	if len(raw.Unprotected) > 0 {
		err = json.Unmarshal(raw.Unprotected, &unprotectedHeaders)
		if err != nil {
			return nil, fmt.Errorf("deserialize JWE: unprotected headers: %w", err)
		}
	}

	recipients, err := parseRecipients(raw)
	if err != nil {
		return nil, err
	}

	aad, err := decodeSegment("aad", raw.AAD)
	if err != nil {
		return nil, err
	}

	iv, err := decodeSegment("iv", raw.IV)
	if err != nil {
		return nil, err
	}

	ciphertext, err := decodeSegment("ciphertext", raw.Ciphertext)
	if err != nil {
		return nil, err
	}

	tag, err := decodeSegment("tag", raw.Tag)
	if err != nil {
		return nil, err
	}

	return &JSONWebEncryption{
		ProtectedHeaders:     protectedHeaders,
		OrigProtectedHeaders: raw.Protected,
		UnprotectedHeaders:   unprotectedHeaders,
		Recipients:           recipients,
		AAD:                  string(aad),
		IV:                   string(iv),
		Ciphertext:           string(ciphertext),
		Tag:                  string(tag),
	}, nil
}

func parseProtected(b64Protected string) (Headers, error) {
	if b64Protected == "" {
		return nil, nil
	}

	protectedJSON, err := base64.RawURLEncoding.DecodeString(b64Protected)
	if err != nil {
		return nil, fmt.Errorf("deserialize JWE: protected headers are not base64url: %w", err)
	}

	var headers Headers

	err = json.Unmarshal(protectedJSON, &headers)
	if err != nil {
		return nil, fmt.Errorf("deserialize JWE: protected headers are not JSON: %w", err)
	}

	return headers, nil
}

func parseRecipients(raw *rawJSONWebEncryption) ([]*Recipient, error) {
	if len(raw.Recipients) > 0 {
		recipients := make([]*Recipient, 0, len(raw.Recipients))

		for _, recJSON := range raw.Recipients {
			var rawRec rawRecipient

			err := json.Unmarshal(recJSON, &rawRec)
			if err != nil {
				return nil, fmt.Errorf("deserialize JWE: recipient: %w", err)
			}

			recipient, err := buildRecipient(&rawRec)
			if err != nil {
				return nil, err
			}

			recipients = append(recipients, recipient)
		}

		return recipients, nil
	}

	// flattened serialization, or compact where the recipient data is hoisted.
	recipient, err := buildRecipient(&rawRecipient{
		Header:       raw.Header,
		EncryptedKey: raw.EncryptedKey,
	})
	if err != nil {
		return nil, err
	}

	return []*Recipient{recipient}, nil
}

func buildRecipient(raw *rawRecipient) (*Recipient, error) {
	recipient := &Recipient{}

	if len(raw.Header) > 0 {
		err := json.Unmarshal(raw.Header, &recipient.Header)
		if err != nil {
			return nil, fmt.Errorf("deserialize JWE: recipient header: %w", err)
		}
	}

	encryptedKey, err := decodeSegment("encrypted_key", raw.EncryptedKey)
	if err != nil {
		return nil, err
	}

	recipient.EncryptedKey = string(encryptedKey)

	return recipient, nil
}

func decodeSegment(name, b64 string) ([]byte, error) {
	if b64 == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("deserialize JWE: '%s' is not base64url: %w", name, err)
	}

	return decoded, nil
}
