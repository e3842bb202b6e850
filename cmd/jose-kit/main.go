/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// jose-kit is a command line tool for JWE encryption: it generates JWK key
// material and encrypts/decrypts payloads using the compact or JSON
// serializations.
package main

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "jose-kit",
	Short:        "JWE encryption toolkit",
	Long:         "jose-kit generates JWK keys and encrypts/decrypts JWE envelopes (RFC 7516).",
	SilenceUsage: true,
}

func main() {
	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})

	rootCmd.AddCommand(newKeygenCmd(), newEncryptCmd(), newDecryptCmd())

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Fatal("command failed")
	}
}
