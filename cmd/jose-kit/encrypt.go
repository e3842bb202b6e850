/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/strandsec/jose-go/doc/jose"
	"github.com/strandsec/jose-go/doc/jose/jwk"
)

func newEncryptCmd() *cobra.Command {
	var (
		alg       string
		enc       string
		keyPaths  []string
		password  string
		senderKey string
		skid      string
		aad       string
		compact   bool
		compress  bool
		in        string
		out       string
	)

	cmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a payload into a JWE",
		Long: "Encrypt a payload for one or more recipient keys, producing the compact " +
			"serialization (single recipient) or the JSON serialization.",
		RunE: func(cmd *cobra.Command, args []string) error {
			plaintext, err := readInput(in)
			if err != nil {
				return err
			}

			recipients, err := buildRecipients(jose.KeyAlg(alg), keyPaths, password)
			if err != nil {
				return err
			}

			var opts []jose.EncryptOption

			if senderKey != "" {
				sender, err := readJWK(senderKey)
				if err != nil {
					return err
				}

				if skid == "" {
					skid = sender.KeyID
				}

				opts = append(opts, jose.WithSenderKey(sender, skid))
			}

			if compress {
				opts = append(opts, jose.WithCompression())
			}

			encrypter, err := jose.NewJWEEncrypt(jose.EncAlg(enc), recipients, opts...)
			if err != nil {
				return err
			}

			envelope, err := encrypter.EncryptWithAuthData(plaintext, []byte(aad))
			if err != nil {
				return err
			}

			serialized, err := serializeEnvelope(envelope, compact)
			if err != nil {
				return err
			}

			log.WithFields(log.Fields{"alg": alg, "enc": enc, "recipients": len(recipients)}).
				Debug("encrypted")

			return writeOutput(out, []byte(serialized+"\n"))
		},
	}

	cmd.Flags().StringVar(&alg, "alg", string(jose.A256KW), "key management algorithm")
	cmd.Flags().StringVar(&enc, "enc", string(jose.A256GCM), "content encryption algorithm")
	cmd.Flags().StringArrayVar(&keyPaths, "key", nil, "recipient JWK file (repeatable)")
	cmd.Flags().StringVar(&password, "password", "", "password for the PBES2 algorithms")
	cmd.Flags().StringVar(&senderKey, "sender-key", "", "sender private JWK file for ECDH-1PU")
	cmd.Flags().StringVar(&skid, "skid", "", "sender key id (defaults to the sender JWK kid)")
	cmd.Flags().StringVar(&aad, "aad", "", "additional authenticated data")
	cmd.Flags().BoolVar(&compact, "compact", false, "emit the compact serialization")
	cmd.Flags().BoolVar(&compress, "zip", false, "DEFLATE-compress the payload before encryption")
	cmd.Flags().StringVar(&in, "in", "", "payload file (default stdin)")
	cmd.Flags().StringVar(&out, "out", "", "output file (default stdout)")

	return cmd
}

func buildRecipients(alg jose.KeyAlg, keyPaths []string, password string) ([]*jose.RecipientKey, error) {
	var recipients []*jose.RecipientKey

	for _, path := range keyPaths {
		key, err := readJWK(path)
		if err != nil {
			return nil, err
		}

		recipients = append(recipients, &jose.RecipientKey{Alg: alg, Key: key})
	}

	if password != "" {
		recipients = append(recipients, &jose.RecipientKey{Alg: alg, Password: []byte(password)})
	}

	if len(recipients) == 0 {
		return nil, fmt.Errorf("encrypt: at least one --key or --password is required")
	}

	return recipients, nil
}

func serializeEnvelope(envelope *jose.JSONWebEncryption, compact bool) (string, error) {
	if compact {
		return envelope.CompactSerialize(json.Marshal)
	}

	return envelope.Serialize(json.Marshal)
}

func readJWK(path string) (*jwk.JWK, error) {
	keyBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read JWK '%s': %w", path, err)
	}

	key := &jwk.JWK{}
	if err := key.UnmarshalJSON(keyBytes); err != nil {
		return nil, fmt.Errorf("read JWK '%s': %w", path, err)
	}

	return key, nil
}

func readInput(path string) ([]byte, error) {
	if path == "" {
		return io.ReadAll(os.Stdin)
	}

	return os.ReadFile(path)
}
