/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/strandsec/jose-go/doc/jose"
)

func newDecryptCmd() *cobra.Command {
	var (
		keyPath   string
		password  string
		senderKey string
		tryAll    bool
		in        string
		out       string
	)

	cmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt a JWE",
		Long:  "Decrypt a JWE in compact or JSON serialization and write the plaintext.",
		RunE: func(cmd *cobra.Command, args []string) error {
			serialized, err := readInput(in)
			if err != nil {
				return err
			}

			envelope, err := jose.Deserialize(strings.TrimSpace(string(serialized)))
			if err != nil {
				return err
			}

			var opts []jose.DecryptOption

			if password != "" {
				opts = append(opts, jose.WithPassword([]byte(password)))
			}

			if senderKey != "" {
				sender, err := readJWK(senderKey)
				if err != nil {
					return err
				}

				opts = append(opts, jose.WithSenderPublicKey(sender.Public()))
			}

			if tryAll {
				opts = append(opts, jose.WithTryAllRecipients())
			}

			var decrypter *jose.JWEDecrypt

			if keyPath != "" {
				key, err := readJWK(keyPath)
				if err != nil {
					return err
				}

				decrypter = jose.NewJWEDecrypt(key, opts...)
			} else {
				decrypter = jose.NewJWEDecrypt(nil, opts...)
			}

			plaintext, err := decrypter.Decrypt(envelope)
			if err != nil {
				return err
			}

			log.WithField("recipients", len(envelope.Recipients)).Debug("decrypted")

			return writeOutput(out, plaintext)
		},
	}

	cmd.Flags().StringVar(&keyPath, "key", "", "recipient private JWK file")
	cmd.Flags().StringVar(&password, "password", "", "password for the PBES2 algorithms")
	cmd.Flags().StringVar(&senderKey, "sender-key", "", "sender JWK file for ECDH-1PU")
	cmd.Flags().BoolVar(&tryAll, "try-all", false, "attempt every recipient entry in order")
	cmd.Flags().StringVar(&in, "in", "", "JWE file (default stdin)")
	cmd.Flags().StringVar(&out, "out", "", "output file (default stdout)")

	return cmd
}
