/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package jose

import (
	"bytes"
	"crypto"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/strandsec/jose-go/crypto/contentenc"
	"github.com/strandsec/jose-go/crypto/keyagreement"
	"github.com/strandsec/jose-go/crypto/keyderivation"
	"github.com/strandsec/jose-go/crypto/keywrap"
	"github.com/strandsec/jose-go/doc/jose/jwk"
	"github.com/strandsec/jose-go/doc/jose/kidresolver"
)

// Decrypter interface to Decrypt JWE messages.
type Decrypter interface {
	// Decrypt a deserialized JWE, extracts the corresponding recipient key to
	// decrypt the plaintext and returns it.
	Decrypt(jwe *JSONWebEncryption) ([]byte, error)
}

// JWEDecrypt decrypts a JWE with the configured recipient key material.
type JWEDecrypt struct {
	key       *jwk.JWK
	senderKey *jwk.JWK
	password  []byte
	tryAll    bool
	resolvers []kidresolver.KIDResolver
}

// DecryptOption customizes a JWEDecrypt.
type DecryptOption func(*JWEDecrypt)

// WithPassword sets the password for the PBES2 algorithms.
func WithPassword(password []byte) DecryptOption {
	return func(jd *JWEDecrypt) {
		jd.password = password
	}
}

// WithSenderPublicKey sets the sender public key required by the
// authenticated ECDH-1PU algorithms.
func WithSenderPublicKey(senderKey *jwk.JWK) DecryptOption {
	return func(jd *JWEDecrypt) {
		jd.senderKey = senderKey
	}
}

// WithTryAllRecipients makes Decrypt attempt every recipient entry in order
// and accept the first that decrypts, instead of matching the recipient by
// key metadata. Fallback for callers whose keys carry no usable kid/x5t.
func WithTryAllRecipients() DecryptOption {
	return func(jd *JWEDecrypt) {
		jd.tryAll = true
	}
}

// WithKIDResolvers sets resolvers used to look up the sender public key from
// the envelope's 'skid' header when no explicit sender key is configured.
func WithKIDResolvers(resolvers ...kidresolver.KIDResolver) DecryptOption {
	return func(jd *JWEDecrypt) {
		jd.resolvers = resolvers
	}
}

// NewJWEDecrypt creates a JWEDecrypt for the given recipient key. The key may
// be nil for password-only (PBES2) decryption.
func NewJWEDecrypt(key *jwk.JWK, opts ...DecryptOption) *JWEDecrypt {
	jd := &JWEDecrypt{key: key}

	for _, opt := range opts {
		opt(jd)
	}

	return jd
}

// Decrypt decrypts the JWE and returns the plaintext.
func (jd *JWEDecrypt) Decrypt(jwe *JSONWebEncryption) ([]byte, error) {
	if jwe == nil || len(jwe.Recipients) == 0 {
		return nil, ErrNoRecipients
	}

	if jd.tryAll {
		for _, recipient := range jwe.Recipients {
			plaintext, err := jd.decryptRecipient(jwe, recipient)
			if err == nil {
				return plaintext, nil
			}
		}

		return nil, ErrRecipientNotFound
	}

	recipient, err := jd.matchRecipient(jwe)
	if err != nil {
		return nil, err
	}

	return jd.decryptRecipient(jwe, recipient)
}

// matchRecipient locates the recipient entry addressed to jd.key by, in
// order: key thumbprint against the recipient kid, key thumbprint against an
// embedded recipient jwk's thumbprint, x5u, x5t#S256, x5t, then plain kid
// equality.
func (jd *JWEDecrypt) matchRecipient(jwe *JSONWebEncryption) (*Recipient, error) {
	if len(jwe.Recipients) == 1 {
		return jwe.Recipients[0], nil
	}

	if jd.key == nil {
		return nil, ErrRecipientNotFound
	}

	matchers := []func(*Recipient) bool{
		jd.matchThumbprintKID(jwe),
		jd.matchEmbeddedJWK(jwe),
		jd.matchStringHeader(jwe, HeaderX509URL, jd.keyX5U()),
		jd.matchStringHeader(jwe, HeaderX509CertificateDigestSha256,
			base64.RawURLEncoding.EncodeToString(jd.key.CertificateThumbprintSHA256)),
		jd.matchStringHeader(jwe, HeaderX509CertificateDigestSha1,
			base64.RawURLEncoding.EncodeToString(jd.key.CertificateThumbprintSHA1)),
		jd.matchStringHeader(jwe, HeaderKeyID, jd.key.KeyID),
	}

	for _, match := range matchers {
		for _, recipient := range jwe.Recipients {
			if match(recipient) {
				return recipient, nil
			}
		}
	}

	return nil, ErrRecipientNotFound
}

func (jd *JWEDecrypt) matchThumbprintKID(jwe *JSONWebEncryption) func(*Recipient) bool {
	thumbprint, err := jd.key.Thumbprint(crypto.SHA256)
	if err != nil {
		return func(*Recipient) bool { return false }
	}

	tp := base64.RawURLEncoding.EncodeToString(thumbprint)

	return func(recipient *Recipient) bool {
		kid, ok := resolveString(HeaderKeyID, jwe.ProtectedHeaders, jwe.UnprotectedHeaders, recipient.Header)

		return ok && kid == tp
	}
}

func (jd *JWEDecrypt) matchEmbeddedJWK(jwe *JSONWebEncryption) func(*Recipient) bool {
	thumbprint, err := jd.key.Thumbprint(crypto.SHA256)
	if err != nil {
		return func(*Recipient) bool { return false }
	}

	return func(recipient *Recipient) bool {
		embedded, ok := resolveJWK(HeaderJSONWebKey, jwe.ProtectedHeaders, jwe.UnprotectedHeaders,
			recipient.Header)
		if !ok {
			return false
		}

		embeddedTP, err := embedded.Thumbprint(crypto.SHA256)
		if err != nil {
			return false
		}

		return bytes.Equal(thumbprint, embeddedTP)
	}
}

func (jd *JWEDecrypt) matchStringHeader(jwe *JSONWebEncryption, name, want string) func(*Recipient) bool {
	return func(recipient *Recipient) bool {
		if want == "" {
			return false
		}

		got, ok := resolveString(name, jwe.ProtectedHeaders, jwe.UnprotectedHeaders, recipient.Header)

		return ok && got == want
	}
}

func (jd *JWEDecrypt) keyX5U() string {
	if jd.key.CertificatesURL == nil {
		return ""
	}

	return jd.key.CertificatesURL.String()
}

func (jd *JWEDecrypt) decryptRecipient(jwe *JSONWebEncryption, recipient *Recipient) ([]byte, error) {
	protected := jwe.ProtectedHeaders
	unprotected := jwe.UnprotectedHeaders

	alg, err := resolveAlg(protected, unprotected, recipient.Header)
	if err != nil {
		return nil, err
	}

	enc, err := resolveEnc(protected, unprotected, recipient.Header)
	if err != nil {
		return nil, err
	}

	cipher, err := contentenc.Resolve(contentenc.Algorithm(enc))
	if err != nil {
		return nil, &UnsupportedAlgorithmsError{Op: "decryption", Alg: alg, Enc: enc}
	}

	family, ok := alg.Family()
	if !ok {
		return nil, &UnsupportedAlgorithmsError{Op: "decryption", Alg: alg, Enc: enc}
	}

	if len(jwe.IV) == 0 {
		return nil, ErrMissingIV
	}

	if len(jwe.Tag) == 0 {
		return nil, ErrMissingTag
	}

	cek, err := jd.recoverCEK(family, alg, cipher, jwe, recipient)
	if err != nil {
		return nil, err
	}

	payload, err := jd.decryptContent(cipher, jwe, cek)
	if err != nil {
		return nil, err
	}

	if resolveZip(protected, unprotected, recipient.Header) == CompressionAlgDeflate {
		payload, err = inflate(payload)
		if err != nil {
			return nil, fmt.Errorf("jwedecrypt: %w", err)
		}
	}

	return payload, nil
}

func (jd *JWEDecrypt) decryptContent(cipher contentenc.Cipher, jwe *JSONWebEncryption,
	cek []byte) ([]byte, error) {
	aad := []byte(jwe.AAD)
	authData := ComputeAAD(jwe.OrigProtectedHeaders, aad)

	payload, err := cipher.Decrypt([]byte(jwe.Ciphertext), cek, []byte(jwe.IV), []byte(jwe.Tag), authData)
	if err == nil {
		return payload, nil
	}

	// the AAD pass-through heuristics may have skipped composition that the
	// encrypter forced; retry once with the unconditionally composed form.
	composed := composeAAD(jwe.OrigProtectedHeaders, aad)
	if errors.Is(err, contentenc.ErrAuthentication) && !bytes.Equal(authData, composed) {
		payload, retryErr := cipher.Decrypt([]byte(jwe.Ciphertext), cek, []byte(jwe.IV),
			[]byte(jwe.Tag), composed)
		if retryErr == nil {
			return payload, nil
		}
	}

	return nil, fmt.Errorf("jwedecrypt: %w", err)
}

func (jd *JWEDecrypt) recoverCEK(family KeyFamily, alg KeyAlg, cipher contentenc.Cipher,
	jwe *JSONWebEncryption, recipient *Recipient) ([]byte, error) {
	switch family {
	case FamilyDirect:
		if jd.key == nil {
			return nil, ErrMissingSharedKey
		}

		cek, err := symmetricKeyBytes(jd.key)
		if err != nil {
			return nil, fmt.Errorf("jwedecrypt: shared key: %w", err)
		}

		return cek, nil
	case FamilyRSA:
		return jd.recoverRSA(alg, recipient)
	case FamilyAESKW:
		return jd.recoverAESKW(alg, recipient)
	case FamilyAESGCMKW:
		return jd.recoverAESGCMKW(alg, jwe, recipient)
	case FamilyPBES2:
		return jd.recoverPBES2(alg, jwe, recipient)
	case FamilyECDHES:
		return jd.recoverECDHES(alg, cipher, jwe, recipient)
	case FamilyECDH1PU:
		return jd.recoverECDH1PU(alg, cipher, jwe, recipient)
	default:
		return nil, internalError("CEK recovery", alg)
	}
}

func (jd *JWEDecrypt) recoverRSA(alg KeyAlg, recipient *Recipient) ([]byte, error) {
	priv, err := rsaPrivateKey(jd.key)
	if err != nil {
		return nil, fmt.Errorf("jwedecrypt: %w", err)
	}

	if recipient.EncryptedKey == "" {
		return nil, ErrMissingEncryptedKey
	}

	encryptedKey := []byte(recipient.EncryptedKey)

	var cek []byte

	switch alg {
	case RSA15:
		cek, err = keywrap.UnwrapRSA15(priv, encryptedKey)
	case RSAOAEP:
		cek, err = keywrap.UnwrapRSAOAEP(priv, encryptedKey)
	case RSAOAEP256:
		cek, err = keywrap.UnwrapRSAOAEP256(priv, encryptedKey)
	default:
		return nil, internalError("RSA key unwrapping", alg)
	}

	if err != nil {
		return nil, fmt.Errorf("jwedecrypt: %w", err)
	}

	return cek, nil
}

func (jd *JWEDecrypt) recoverAESKW(alg KeyAlg, recipient *Recipient) ([]byte, error) {
	kek, err := symmetricKeyBytes(jd.key)
	if err != nil {
		return nil, fmt.Errorf("jwedecrypt: %w", err)
	}

	if len(kek) != alg.kwKeySize() {
		return nil, fmt.Errorf("jwedecrypt: KEK size %d does not match '%s'", len(kek), alg)
	}

	if recipient.EncryptedKey == "" {
		return nil, ErrMissingEncryptedKey
	}

	cek, err := keywrap.UnwrapAESKW(kek, []byte(recipient.EncryptedKey))
	if err != nil {
		return nil, fmt.Errorf("jwedecrypt: %w", err)
	}

	return cek, nil
}

func (jd *JWEDecrypt) recoverAESGCMKW(alg KeyAlg, jwe *JSONWebEncryption,
	recipient *Recipient) ([]byte, error) {
	kek, err := symmetricKeyBytes(jd.key)
	if err != nil {
		return nil, fmt.Errorf("jwedecrypt: %w", err)
	}

	if len(kek) != alg.kwKeySize() {
		return nil, fmt.Errorf("jwedecrypt: KEK size %d does not match '%s'", len(kek), alg)
	}

	if recipient.EncryptedKey == "" {
		return nil, ErrMissingEncryptedKey
	}

	iv, err := resolveBytes(HeaderIV, jwe.ProtectedHeaders, jwe.UnprotectedHeaders, recipient.Header)
	if err != nil {
		return nil, fmt.Errorf("jwedecrypt: %w", err)
	}

	if len(iv) == 0 {
		return nil, ErrMissingIV
	}

	tag, err := resolveBytes(HeaderTag, jwe.ProtectedHeaders, jwe.UnprotectedHeaders, recipient.Header)
	if err != nil {
		return nil, fmt.Errorf("jwedecrypt: %w", err)
	}

	if len(tag) == 0 {
		return nil, ErrMissingTag
	}

	cek, err := keywrap.UnwrapAESGCMKW(kek, []byte(recipient.EncryptedKey), iv, tag)
	if err != nil {
		return nil, fmt.Errorf("jwedecrypt: %w", err)
	}

	return cek, nil
}

func (jd *JWEDecrypt) recoverPBES2(alg KeyAlg, jwe *JSONWebEncryption,
	recipient *Recipient) ([]byte, error) {
	if len(jd.password) == 0 {
		return nil, ErrMissingPassword
	}

	if recipient.EncryptedKey == "" {
		return nil, ErrMissingEncryptedKey
	}

	saltInput, err := resolveBytes(HeaderP2S, jwe.ProtectedHeaders, jwe.UnprotectedHeaders, recipient.Header)
	if err != nil {
		return nil, fmt.Errorf("jwedecrypt: %w", err)
	}

	if len(saltInput) == 0 {
		return nil, ErrMissingSaltInput
	}

	count, ok := resolveInt(HeaderP2C, jwe.ProtectedHeaders, jwe.UnprotectedHeaders, recipient.Header)
	if !ok {
		return nil, ErrMissingIterationCount
	}

	kek, err := keyderivation.PBES2(string(alg), jd.password, saltInput, count, alg.kwKeySize())
	if err != nil {
		return nil, fmt.Errorf("jwedecrypt: %w", err)
	}

	cek, err := keywrap.UnwrapAESKW(kek, []byte(recipient.EncryptedKey))
	if err != nil {
		return nil, fmt.Errorf("jwedecrypt: %w", err)
	}

	return cek, nil
}

// agreementParams extracts the epk/apu/apv parameters of a key agreement
// recipient.
func (jd *JWEDecrypt) agreementParams(jwe *JSONWebEncryption,
	recipient *Recipient) (*jwk.JWK, []byte, []byte, error) {
	epk, ok := resolveJWK(HeaderEPK, jwe.ProtectedHeaders, jwe.UnprotectedHeaders, recipient.Header)
	if !ok {
		return nil, nil, nil, ErrMissingEphemeralKey
	}

	apu, err := resolveBytes(HeaderAPU, jwe.ProtectedHeaders, jwe.UnprotectedHeaders, recipient.Header)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("jwedecrypt: %w", err)
	}

	apv, err := resolveBytes(HeaderAPV, jwe.ProtectedHeaders, jwe.UnprotectedHeaders, recipient.Header)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("jwedecrypt: %w", err)
	}

	return epk, apu, apv, nil
}

func (jd *JWEDecrypt) recoverECDHES(alg KeyAlg, cipher contentenc.Cipher, jwe *JSONWebEncryption,
	recipient *Recipient) ([]byte, error) {
	epk, apu, apv, err := jd.agreementParams(jwe, recipient)
	if err != nil {
		return nil, err
	}

	algID, keySize := string(alg), alg.kwKeySize()
	if alg == ECDHES {
		// bare mode: the derived key is the CEK, keyed by the enc name.
		algID, keySize = string(cipher.Algorithm()), cipher.KeySize()
	}

	derived, err := jd.deriveESKey(algID, apu, apv, epk, keySize)
	if err != nil {
		return nil, err
	}

	if alg == ECDHES {
		return derived, nil
	}

	if recipient.EncryptedKey == "" {
		return nil, ErrMissingEncryptedKey
	}

	cek, err := keywrap.UnwrapAESKW(derived, []byte(recipient.EncryptedKey))
	if err != nil {
		return nil, fmt.Errorf("jwedecrypt: %w", err)
	}

	return cek, nil
}

func (jd *JWEDecrypt) recoverECDH1PU(alg KeyAlg, cipher contentenc.Cipher, jwe *JSONWebEncryption,
	recipient *Recipient) ([]byte, error) {
	epk, apu, apv, err := jd.agreementParams(jwe, recipient)
	if err != nil {
		return nil, err
	}

	senderKey, err := jd.resolveSenderKey(jwe, recipient)
	if err != nil {
		return nil, err
	}

	var (
		algID   string
		keySize int
		tag     []byte
	)

	if alg == ECDH1PU {
		// direct mode: enc name as algorithm ID, no tag in the KDF.
		algID, keySize = string(cipher.Algorithm()), cipher.KeySize()
	} else {
		algID, keySize = string(alg), alg.kwKeySize()
		tag = []byte(jwe.Tag)
	}

	derived, err := jd.derive1PUKey(algID, apu, apv, tag, epk, senderKey, keySize)
	if err != nil {
		return nil, err
	}

	if alg == ECDH1PU {
		return derived, nil
	}

	if recipient.EncryptedKey == "" {
		return nil, ErrMissingEncryptedKey
	}

	cek, err := keywrap.UnwrapAESKW(derived, []byte(recipient.EncryptedKey))
	if err != nil {
		return nil, fmt.Errorf("jwedecrypt: %w", err)
	}

	return cek, nil
}

func (jd *JWEDecrypt) resolveSenderKey(jwe *JSONWebEncryption, recipient *Recipient) (*jwk.JWK, error) {
	if jd.senderKey != nil {
		return jd.senderKey, nil
	}

	skid, ok := resolveString(HeaderSenderKeyID, jwe.ProtectedHeaders, jwe.UnprotectedHeaders,
		recipient.Header)
	if !ok || skid == "" {
		return nil, ErrMissingSenderKey
	}

	for _, resolver := range jd.resolvers {
		senderKey, err := resolver.Resolve(skid)
		if err == nil {
			return senderKey, nil
		}
	}

	return nil, ErrMissingSenderKey
}

func (jd *JWEDecrypt) deriveESKey(algID string, apu, apv []byte, epk *jwk.JWK,
	keySize int) ([]byte, error) {
	if jd.key != nil && jd.key.IsX25519() {
		recPriv, err := x25519PrivateKey(jd.key)
		if err != nil {
			return nil, fmt.Errorf("jwedecrypt: %w", err)
		}

		ephPub, err := x25519PublicKey(epk)
		if err != nil {
			return nil, fmt.Errorf("jwedecrypt: epk: %w", err)
		}

		derived, err := keyagreement.DeriveESX25519(algID, apu, apv, recPriv, ephPub, keySize)
		if err != nil {
			return nil, fmt.Errorf("jwedecrypt: %w", err)
		}

		return derived, nil
	}

	recPriv, err := ecPrivateKey(jd.key)
	if err != nil {
		return nil, fmt.Errorf("jwedecrypt: %w", err)
	}

	ephPub, err := ecPublicKey(epk)
	if err != nil {
		return nil, fmt.Errorf("jwedecrypt: epk: %w", err)
	}

	derived, err := keyagreement.DeriveES(algID, apu, apv, recPriv, ephPub, keySize)
	if err != nil {
		return nil, fmt.Errorf("jwedecrypt: %w", err)
	}

	return derived, nil
}

func (jd *JWEDecrypt) derive1PUKey(algID string, apu, apv, tag []byte, epk, senderKey *jwk.JWK,
	keySize int) ([]byte, error) {
	if jd.key != nil && jd.key.IsX25519() {
		recPriv, err := x25519PrivateKey(jd.key)
		if err != nil {
			return nil, fmt.Errorf("jwedecrypt: %w", err)
		}

		ephPub, err := x25519PublicKey(epk)
		if err != nil {
			return nil, fmt.Errorf("jwedecrypt: epk: %w", err)
		}

		senderPub, err := x25519PublicKey(senderKey)
		if err != nil {
			return nil, fmt.Errorf("jwedecrypt: sender key: %w", err)
		}

		derived, err := keyagreement.DeriveRecipient1PUX25519(algID, apu, apv, tag, ephPub, senderPub,
			recPriv, keySize)
		if err != nil {
			return nil, fmt.Errorf("jwedecrypt: %w", err)
		}

		return derived, nil
	}

	recPriv, err := ecPrivateKey(jd.key)
	if err != nil {
		return nil, fmt.Errorf("jwedecrypt: %w", err)
	}

	ephPub, err := ecPublicKey(epk)
	if err != nil {
		return nil, fmt.Errorf("jwedecrypt: epk: %w", err)
	}

	senderPub, err := ecPublicKey(senderKey)
	if err != nil {
		return nil, fmt.Errorf("jwedecrypt: sender key: %w", err)
	}

	derived, err := keyagreement.DeriveRecipient1PU(algID, apu, apv, tag, ephPub, senderPub,
		recPriv, keySize)
	if err != nil {
		return nil, fmt.Errorf("jwedecrypt: %w", err)
	}

	return derived, nil
}
