/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package jose

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/google/tink/go/subtle/random"

	"github.com/strandsec/jose-go/crypto/contentenc"
	"github.com/strandsec/jose-go/crypto/keyagreement"
	"github.com/strandsec/jose-go/crypto/keyderivation"
	"github.com/strandsec/jose-go/crypto/keywrap"
	"github.com/strandsec/jose-go/doc/jose/jwk"
	"github.com/strandsec/jose-go/doc/jose/jwk/jwksupport"
	"github.com/strandsec/jose-go/util/cryptoutil"
)

const (
	defaultPBES2Count    = 4096
	minPBES2Count        = 1000
	minPBES2SaltLen      = 8
	generatedPBES2Salt   = 16
	singleRecipientCount = 1
)

// Encrypter builds JWE envelopes.
type Encrypter interface {
	// Encrypt encrypts plaintext for the configured recipients and returns a
	// JSONWebEncryption ready to serialize.
	Encrypt(plaintext []byte) (*JSONWebEncryption, error)

	// EncryptWithAuthData is Encrypt with additional authenticated data bound
	// into the envelope.
	EncryptWithAuthData(plaintext, aad []byte) (*JSONWebEncryption, error)
}

// RecipientKey pairs one recipient's key management algorithm with its key
// material. Key carries the recipient public key (or the shared symmetric key
// for 'dir', AxxxKW and AxxxGCMKW); Password replaces Key for the PBES2
// algorithms. Headers holds optional extra per-recipient headers (apu, apv,
// kid overrides).
type RecipientKey struct {
	Alg      KeyAlg
	Key      *jwk.JWK
	Password []byte
	Headers  Headers
}

// JWEEncrypt encrypts a plaintext and its AAD into a JWE for one or more
// recipients.
type JWEEncrypt struct {
	encAlg     EncAlg
	cipher     contentenc.Cipher
	recipients []*RecipientKey

	senderKey *jwk.JWK
	skid      string

	typ string
	cty string
	zip string

	cek []byte
	iv  []byte

	pbes2Count int
	pbes2Salt  []byte

	composedAAD bool

	protectedHeaders   Headers
	unprotectedHeaders Headers
}

// EncryptOption customizes a JWEEncrypt.
type EncryptOption func(*JWEEncrypt)

// WithSenderKey sets the sender's private key and key id, required for the
// authenticated ECDH-1PU algorithms. The skid is written into the protected
// headers.
func WithSenderKey(senderKey *jwk.JWK, skid string) EncryptOption {
	return func(je *JWEEncrypt) {
		je.senderKey = senderKey
		je.skid = skid
	}
}

// WithType sets the envelope media type ("typ" header).
func WithType(typ string) EncryptOption {
	return func(je *JWEEncrypt) {
		je.typ = typ
	}
}

// WithContentType sets the payload content type ("cty" header).
func WithContentType(cty string) EncryptOption {
	return func(je *JWEEncrypt) {
		je.cty = cty
	}
}

// WithCompression enables DEFLATE compression of the payload before
// encryption ("zip":"DEF").
func WithCompression() EncryptOption {
	return func(je *JWEEncrypt) {
		je.zip = CompressionAlgDeflate
	}
}

// WithCEK overrides the generated content encryption key. Intended for test
// vectors; production callers should rely on fresh randomness per call.
func WithCEK(cek []byte) EncryptOption {
	return func(je *JWEEncrypt) {
		je.cek = cek
	}
}

// WithIV overrides the generated content encryption IV. Intended for test
// vectors; reusing an IV across calls breaks AEAD security.
func WithIV(iv []byte) EncryptOption {
	return func(je *JWEEncrypt) {
		je.iv = iv
	}
}

// WithComposedAAD forces the caller AAD to be composed with the protected
// header even when it already looks like base64url or composed data,
// bypassing the pass-through heuristics.
func WithComposedAAD() EncryptOption {
	return func(je *JWEEncrypt) {
		je.composedAAD = true
	}
}

// WithPBES2Count sets the PBES2 PBKDF2 iteration count (default 4096,
// minimum 1000).
func WithPBES2Count(count int) EncryptOption {
	return func(je *JWEEncrypt) {
		je.pbes2Count = count
	}
}

// WithPBES2Salt sets the PBES2 salt input instead of generating a random one
// (minimum 8 bytes).
func WithPBES2Salt(saltInput []byte) EncryptOption {
	return func(je *JWEEncrypt) {
		je.pbes2Salt = saltInput
	}
}

// WithProtectedHeaders adds extra protected headers to the envelope.
func WithProtectedHeaders(headers Headers) EncryptOption {
	return func(je *JWEEncrypt) {
		je.protectedHeaders = headers
	}
}

// WithUnprotectedHeaders sets the shared unprotected headers of the envelope.
func WithUnprotectedHeaders(headers Headers) EncryptOption {
	return func(je *JWEEncrypt) {
		je.unprotectedHeaders = headers
	}
}

// NewJWEEncrypt creates a JWEEncrypt for the given content encryption
// algorithm and recipients.
func NewJWEEncrypt(encAlg EncAlg, recipients []*RecipientKey, opts ...EncryptOption) (*JWEEncrypt, error) {
	cipher, err := contentenc.Resolve(contentenc.Algorithm(encAlg))
	if err != nil {
		return nil, &UnsupportedAlgorithmsError{Op: "encryption", Enc: encAlg}
	}

	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	je := &JWEEncrypt{
		encAlg:     encAlg,
		cipher:     cipher,
		recipients: recipients,
		pbes2Count: defaultPBES2Count,
	}

	for _, opt := range opts {
		opt(je)
	}

	if err := je.validate(); err != nil {
		return nil, err
	}

	return je, nil
}

func (je *JWEEncrypt) validate() error {
	multi := len(je.recipients) > singleRecipientCount

	for _, rec := range je.recipients {
		if rec.Alg == "" {
			return ErrMissingKeyAlgorithm
		}

		family, ok := rec.Alg.Family()
		if !ok {
			return &UnsupportedAlgorithmsError{Op: "encryption", Alg: rec.Alg, Enc: je.encAlg}
		}

		if rec.Alg.determinesCEK() {
			if multi {
				return fmt.Errorf("jweencrypt: alg '%s' determines the CEK and cannot share a "+
					"multi-recipient envelope", rec.Alg)
			}

			if len(je.cek) > 0 {
				return fmt.Errorf("jweencrypt: alg '%s' determines the CEK, an explicit CEK cannot be used",
					rec.Alg)
			}
		}

		if family == FamilyECDH1PU && rec.Alg != ECDH1PU {
			// the 1PU key-wrapping variants feed the content tag into the
			// KDF and are only defined over the CBC+HMAC encodings
			// (draft-madden-jose-ecdh-1pu-04 section 2.1).
			switch je.encAlg {
			case A128CBCHS256, A192CBCHS384, A256CBCHS512:
			default:
				return fmt.Errorf("jweencrypt: alg '%s' requires an AES-CBC+HMAC content encryption "+
					"algorithm, got '%s'", rec.Alg, je.encAlg)
			}
		}

		if err := je.validateRecipientInputs(rec, family); err != nil {
			return err
		}
	}

	if je.pbes2Count < minPBES2Count {
		return ErrInvalidIterationCount
	}

	if je.pbes2Salt != nil && len(je.pbes2Salt) < minPBES2SaltLen {
		return ErrInvalidSaltLength
	}

	return nil
}

func (je *JWEEncrypt) validateRecipientInputs(rec *RecipientKey, family KeyFamily) error {
	switch family {
	case FamilyPBES2:
		if len(rec.Password) == 0 {
			return ErrMissingPassword
		}
	case FamilyDirect:
		if rec.Key == nil {
			return ErrMissingSharedKey
		}
	case FamilyECDH1PU:
		if je.senderKey == nil || je.skid == "" {
			return ErrMissingSenderKey
		}

		if rec.Key == nil {
			return ErrMissingRecipientKey
		}
	default:
		if rec.Key == nil {
			return ErrMissingRecipientKey
		}
	}

	return nil
}

// recipientState tracks one recipient through the encrypt pipeline.
type recipientState struct {
	rec     *RecipientKey
	family  KeyFamily
	headers Headers

	encryptedKey []byte

	// epk holds the ephemeral key used for this recipient's key agreement.
	epk *ephemeralKey
	apu []byte
	apv []byte

	// deferred marks ECDH-1PU key-wrap recipients, whose KDF consumes the
	// content authentication tag and therefore runs after content encryption.
	deferred bool
}

type ephemeralKey struct {
	ecPriv  *ecdsa.PrivateKey
	okpPriv []byte
	pub     *jwk.JWK
}

// Encrypt encrypts plaintext and returns a JSONWebEncryption.
func (je *JWEEncrypt) Encrypt(plaintext []byte) (*JSONWebEncryption, error) {
	return je.EncryptWithAuthData(plaintext, nil)
}

// EncryptWithAuthData encrypts plaintext with additional authenticated data
// and returns a JSONWebEncryption.
func (je *JWEEncrypt) EncryptWithAuthData(plaintext, aad []byte) (*JSONWebEncryption, error) {
	protectedHeaders := je.baseProtectedHeaders()

	states, err := je.newRecipientStates()
	if err != nil {
		return nil, err
	}

	cek, err := je.determineCEK(states)
	if err != nil {
		return nil, err
	}

	for _, state := range states {
		if err = je.wrapForRecipient(state, cek); err != nil {
			return nil, err
		}
	}

	multi := len(states) > singleRecipientCount
	if !multi {
		// single recipient envelopes carry all recipient metadata in the
		// protected headers so the compact serialization is possible.
		protectedHeaders = mergeHeaders(protectedHeaders, states[0].headers)
		states[0].headers = nil
	}

	protectedB64, err := serializeProtected(protectedHeaders)
	if err != nil {
		return nil, fmt.Errorf("jweencrypt: %w", err)
	}

	authData := ComputeAAD(protectedB64, aad)
	if je.composedAAD {
		authData = composeAAD(protectedB64, aad)
	}

	payload := plaintext

	if je.zip == CompressionAlgDeflate {
		payload, err = deflate(plaintext)
		if err != nil {
			return nil, fmt.Errorf("jweencrypt: %w", err)
		}
	}

	iv := je.iv
	if len(iv) == 0 {
		iv = contentenc.GenerateIV(je.cipher)
	}

	ciphertext, tag, err := je.cipher.Encrypt(payload, cek, iv, authData)
	if err != nil {
		return nil, fmt.Errorf("jweencrypt: %w", err)
	}

	for _, state := range states {
		if !state.deferred {
			continue
		}

		if err = je.wrap1PU(state, cek, tag); err != nil {
			return nil, err
		}
	}

	recipients := make([]*Recipient, 0, len(states))
	for _, state := range states {
		recipients = append(recipients, &Recipient{
			Header:       state.headers,
			EncryptedKey: string(state.encryptedKey),
		})
	}

	return &JSONWebEncryption{
		ProtectedHeaders:     protectedHeaders,
		OrigProtectedHeaders: protectedB64,
		UnprotectedHeaders:   je.unprotectedHeaders,
		Recipients:           recipients,
		AAD:                  string(aad),
		IV:                   string(iv),
		Ciphertext:           string(ciphertext),
		Tag:                  string(tag),
	}, nil
}

func (je *JWEEncrypt) baseProtectedHeaders() Headers {
	headers := mergeHeaders(nil, je.protectedHeaders)
	headers[HeaderEncryption] = string(je.encAlg)

	if je.typ != "" {
		headers[HeaderType] = je.typ
	}

	if je.cty != "" {
		headers[HeaderContentType] = je.cty
	}

	if je.skid != "" {
		headers[HeaderSenderKeyID] = je.skid
	}

	if je.zip != "" {
		headers[HeaderCompression] = je.zip
	}

	return headers
}

func (je *JWEEncrypt) newRecipientStates() ([]*recipientState, error) {
	// ECDH-1PU derives all recipients' keys from one ephemeral key, bound to
	// the sender; it is generated once per envelope.
	var epk1PU *ephemeralKey

	states := make([]*recipientState, 0, len(je.recipients))

	for _, rec := range je.recipients {
		family, _ := rec.Alg.Family()

		state := &recipientState{
			rec:     rec,
			family:  family,
			headers: mergeHeaders(nil, rec.Headers),
		}

		state.headers[HeaderAlgorithm] = string(rec.Alg)

		if rec.Key != nil && rec.Key.KeyID != "" {
			if _, ok := state.headers[HeaderKeyID]; !ok {
				state.headers[HeaderKeyID] = rec.Key.KeyID
			}
		}

		if family == FamilyECDH1PU {
			if epk1PU == nil {
				var err error

				epk1PU, err = newEphemeralKey(rec.Key)
				if err != nil {
					return nil, err
				}
			}

			state.epk = epk1PU
		}

		states = append(states, state)
	}

	return states, nil
}

func (je *JWEEncrypt) determineCEK(states []*recipientState) ([]byte, error) {
	state := states[0]

	if !state.rec.Alg.determinesCEK() {
		if len(je.cek) > 0 {
			return je.cek, nil
		}

		return contentenc.GenerateCEK(je.cipher), nil
	}

	switch state.rec.Alg {
	case Dir:
		cek, err := symmetricKeyBytes(state.rec.Key)
		if err != nil {
			return nil, fmt.Errorf("jweencrypt: shared key: %w", err)
		}

		if len(cek) != je.cipher.KeySize() {
			return nil, fmt.Errorf("jweencrypt: dir key size %d does not match '%s'", len(cek), je.encAlg)
		}

		return cek, nil
	case ECDHES:
		// bare ECDH-ES: the derived key is the CEK, keyed by the enc name.
		var err error

		state.epk, err = newEphemeralKey(state.rec.Key)
		if err != nil {
			return nil, err
		}

		if err = je.prepareAgreementHeaders(state); err != nil {
			return nil, err
		}

		return je.deriveESKey(state, string(je.encAlg), je.cipher.KeySize())
	case ECDH1PU:
		// bare ECDH-1PU: like bare ES but authenticated; the KDF tag input
		// stays empty in this mode.
		if err := je.prepareAgreementHeaders(state); err != nil {
			return nil, err
		}

		return je.derive1PUKey(state, string(je.encAlg), nil, je.cipher.KeySize())
	default:
		return nil, internalError("CEK determination", state.rec.Alg)
	}
}

func (je *JWEEncrypt) wrapForRecipient(state *recipientState, cek []byte) error {
	switch state.family {
	case FamilyDirect:
		// CEK is the shared key, nothing to transport.
		return nil
	case FamilyRSA:
		return je.wrapRSA(state, cek)
	case FamilyAESKW:
		return je.wrapAESKW(state, cek)
	case FamilyAESGCMKW:
		return je.wrapAESGCMKW(state, cek)
	case FamilyPBES2:
		return je.wrapPBES2(state, cek)
	case FamilyECDHES:
		if state.rec.Alg == ECDHES {
			return nil // CEK already derived
		}

		return je.wrapECDHES(state, cek)
	case FamilyECDH1PU:
		if state.rec.Alg == ECDH1PU {
			return nil // CEK already derived
		}

		// the KDF consumes the content tag; emit the agreement headers now so
		// they are part of the AAD, wrap after encryption.
		if err := je.prepareAgreementHeaders(state); err != nil {
			return err
		}

		state.deferred = true

		return nil
	default:
		return internalError("key wrapping", state.rec.Alg)
	}
}

func (je *JWEEncrypt) wrapRSA(state *recipientState, cek []byte) error {
	pub, err := rsaPublicKey(state.rec.Key)
	if err != nil {
		return fmt.Errorf("jweencrypt: %w", err)
	}

	switch state.rec.Alg {
	case RSA15:
		state.encryptedKey, err = keywrap.WrapRSA15(pub, cek)
	case RSAOAEP:
		state.encryptedKey, err = keywrap.WrapRSAOAEP(pub, cek)
	case RSAOAEP256:
		state.encryptedKey, err = keywrap.WrapRSAOAEP256(pub, cek)
	default:
		return internalError("RSA key wrapping", state.rec.Alg)
	}

	if err != nil {
		return fmt.Errorf("jweencrypt: %w", err)
	}

	return nil
}

func (je *JWEEncrypt) wrapAESKW(state *recipientState, cek []byte) error {
	kek, err := symmetricKeyBytes(state.rec.Key)
	if err != nil {
		return fmt.Errorf("jweencrypt: %w", err)
	}

	if len(kek) != state.rec.Alg.kwKeySize() {
		return fmt.Errorf("jweencrypt: KEK size %d does not match '%s'", len(kek), state.rec.Alg)
	}

	state.encryptedKey, err = keywrap.WrapAESKW(kek, cek)
	if err != nil {
		return fmt.Errorf("jweencrypt: %w", err)
	}

	return nil
}

func (je *JWEEncrypt) wrapAESGCMKW(state *recipientState, cek []byte) error {
	kek, err := symmetricKeyBytes(state.rec.Key)
	if err != nil {
		return fmt.Errorf("jweencrypt: %w", err)
	}

	if len(kek) != state.rec.Alg.kwKeySize() {
		return fmt.Errorf("jweencrypt: KEK size %d does not match '%s'", len(kek), state.rec.Alg)
	}

	encryptedKey, iv, tag, err := keywrap.WrapAESGCMKW(kek, cek)
	if err != nil {
		return fmt.Errorf("jweencrypt: %w", err)
	}

	state.encryptedKey = encryptedKey
	state.headers[HeaderIV] = base64.RawURLEncoding.EncodeToString(iv)
	state.headers[HeaderTag] = base64.RawURLEncoding.EncodeToString(tag)

	return nil
}

func (je *JWEEncrypt) wrapPBES2(state *recipientState, cek []byte) error {
	saltInput := je.pbes2Salt
	if saltInput == nil {
		saltInput = random.GetRandomBytes(generatedPBES2Salt)
	}

	kek, err := keyderivation.PBES2(string(state.rec.Alg), state.rec.Password, saltInput,
		je.pbes2Count, state.rec.Alg.kwKeySize())
	if err != nil {
		return fmt.Errorf("jweencrypt: %w", err)
	}

	state.encryptedKey, err = keywrap.WrapAESKW(kek, cek)
	if err != nil {
		return fmt.Errorf("jweencrypt: %w", err)
	}

	state.headers[HeaderP2S] = base64.RawURLEncoding.EncodeToString(saltInput)
	state.headers[HeaderP2C] = je.pbes2Count

	return nil
}

func (je *JWEEncrypt) wrapECDHES(state *recipientState, cek []byte) error {
	var err error

	state.epk, err = newEphemeralKey(state.rec.Key)
	if err != nil {
		return err
	}

	if err = je.prepareAgreementHeaders(state); err != nil {
		return err
	}

	kek, err := je.deriveESKey(state, string(state.rec.Alg), state.rec.Alg.kwKeySize())
	if err != nil {
		return err
	}

	state.encryptedKey, err = keywrap.WrapAESKW(kek, cek)
	if err != nil {
		return fmt.Errorf("jweencrypt: %w", err)
	}

	return nil
}

func (je *JWEEncrypt) wrap1PU(state *recipientState, cek, tag []byte) error {
	kek, err := je.derive1PUKey(state, string(state.rec.Alg), tag, state.rec.Alg.kwKeySize())
	if err != nil {
		return err
	}

	state.encryptedKey, err = keywrap.WrapAESKW(kek, cek)
	if err != nil {
		return fmt.Errorf("jweencrypt: %w", err)
	}

	return nil
}

// prepareAgreementHeaders emits the epk/apu/apv headers of a key agreement
// recipient and captures the raw party info for the KDF.
func (je *JWEEncrypt) prepareAgreementHeaders(state *recipientState) error {
	apu, err := resolveBytes(HeaderAPU, nil, nil, state.headers)
	if err != nil {
		return fmt.Errorf("jweencrypt: %w", err)
	}

	if apu == nil && je.skid != "" {
		apu = []byte(je.skid)
		state.headers[HeaderAPU] = base64.RawURLEncoding.EncodeToString(apu)
	}

	apv, err := resolveBytes(HeaderAPV, nil, nil, state.headers)
	if err != nil {
		return fmt.Errorf("jweencrypt: %w", err)
	}

	if apv == nil && state.rec.Key != nil && state.rec.Key.KeyID != "" {
		apv = []byte(state.rec.Key.KeyID)
		state.headers[HeaderAPV] = base64.RawURLEncoding.EncodeToString(apv)
	}

	state.apu = apu
	state.apv = apv
	state.headers[HeaderEPK] = state.epk.pub

	return nil
}

func (je *JWEEncrypt) deriveESKey(state *recipientState, algID string, keySize int) ([]byte, error) {
	if state.rec.Key.IsX25519() {
		recPub, err := x25519PublicKey(state.rec.Key)
		if err != nil {
			return nil, fmt.Errorf("jweencrypt: %w", err)
		}

		kek, err := keyagreement.DeriveESX25519(algID, state.apu, state.apv, state.epk.okpPriv, recPub, keySize)
		if err != nil {
			return nil, fmt.Errorf("jweencrypt: %w", err)
		}

		return kek, nil
	}

	recPub, err := ecPublicKey(state.rec.Key)
	if err != nil {
		return nil, fmt.Errorf("jweencrypt: %w", err)
	}

	kek, err := keyagreement.DeriveES(algID, state.apu, state.apv, state.epk.ecPriv, recPub, keySize)
	if err != nil {
		return nil, fmt.Errorf("jweencrypt: %w", err)
	}

	return kek, nil
}

func (je *JWEEncrypt) derive1PUKey(state *recipientState, algID string, tag []byte, keySize int) ([]byte, error) {
	if state.rec.Key.IsX25519() {
		recPub, err := x25519PublicKey(state.rec.Key)
		if err != nil {
			return nil, fmt.Errorf("jweencrypt: %w", err)
		}

		senderPriv, err := x25519PrivateKey(je.senderKey)
		if err != nil {
			return nil, fmt.Errorf("jweencrypt: sender key: %w", err)
		}

		kek, err := keyagreement.DeriveSender1PUX25519(algID, state.apu, state.apv, tag,
			state.epk.okpPriv, senderPriv, recPub, keySize)
		if err != nil {
			return nil, fmt.Errorf("jweencrypt: %w", err)
		}

		return kek, nil
	}

	recPub, err := ecPublicKey(state.rec.Key)
	if err != nil {
		return nil, fmt.Errorf("jweencrypt: %w", err)
	}

	senderPriv, err := ecPrivateKey(je.senderKey)
	if err != nil {
		return nil, fmt.Errorf("jweencrypt: sender key: %w", err)
	}

	kek, err := keyagreement.DeriveSender1PU(algID, state.apu, state.apv, tag,
		state.epk.ecPriv, senderPriv, recPub, keySize)
	if err != nil {
		return nil, fmt.Errorf("jweencrypt: %w", err)
	}

	return kek, nil
}

// newEphemeralKey generates an ephemeral key on the recipient key's curve.
func newEphemeralKey(recKey *jwk.JWK) (*ephemeralKey, error) {
	if recKey == nil {
		return nil, ErrMissingRecipientKey
	}

	if recKey.IsX25519() {
		okpPriv := random.GetRandomBytes(cryptoutil.Curve25519KeySize)

		pub, err := jwksupport.JWKFromX25519PrivateKey(okpPriv)
		if err != nil {
			return nil, fmt.Errorf("jweencrypt: ephemeral key: %w", err)
		}

		return &ephemeralKey{okpPriv: okpPriv, pub: pub.Public()}, nil
	}

	recPub, err := ecPublicKey(recKey)
	if err != nil {
		return nil, fmt.Errorf("jweencrypt: ephemeral key: %w", err)
	}

	ecPriv, err := ecdsa.GenerateKey(recPub.Curve, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("jweencrypt: ephemeral key: %w", err)
	}

	pub, err := jwksupport.JWKFromKey(&ecPriv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("jweencrypt: ephemeral key: %w", err)
	}

	return &ephemeralKey{ecPriv: ecPriv, pub: pub}, nil
}
