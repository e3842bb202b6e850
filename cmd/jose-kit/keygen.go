/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"os"

	"github.com/google/tink/go/subtle/random"
	"github.com/spf13/cobra"

	"github.com/strandsec/jose-go/doc/jose/jwk"
	"github.com/strandsec/jose-go/doc/jose/jwk/jwksupport"
	"github.com/strandsec/jose-go/util/cryptoutil"
)

func newKeygenCmd() *cobra.Command {
	var (
		kty  string
		crv  string
		bits int
		kid  string
		out  string
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a JWK",
		Long:  "Generate a JWK of the given key type and write it as JSON.",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := generateKey(kty, crv, bits, kid)
			if err != nil {
				return err
			}

			keyBytes, err := key.MarshalJSON()
			if err != nil {
				return fmt.Errorf("keygen: %w", err)
			}

			return writeOutput(out, append(keyBytes, '\n'))
		},
	}

	cmd.Flags().StringVar(&kty, "kty", "oct", "key type: oct, EC, RSA or OKP")
	cmd.Flags().StringVar(&crv, "crv", "P-256", "curve for EC keys: P-256, P-384 or P-521")
	cmd.Flags().IntVar(&bits, "bits", 256, "key size in bits for oct and RSA keys")
	cmd.Flags().StringVar(&kid, "kid", "", "key id to embed in the JWK")
	cmd.Flags().StringVar(&out, "out", "", "output file (default stdout)")

	return cmd
}

func generateKey(kty, crv string, bits int, kid string) (*jwk.JWK, error) {
	switch kty {
	case "oct":
		return jwksupport.JWKFromSymmetricKey(random.GetRandomBytes(uint32(bits/8)), kid) //nolint:gosec
	case "EC":
		curve, err := curveByName(crv)
		if err != nil {
			return nil, err
		}

		priv, err := ecdsa.GenerateKey(curve, rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("keygen: %w", err)
		}

		key, err := jwksupport.JWKFromKey(priv)
		if err != nil {
			return nil, err
		}

		key.KeyID = kid

		return key, nil
	case "RSA":
		priv, err := rsa.GenerateKey(rand.Reader, bits)
		if err != nil {
			return nil, fmt.Errorf("keygen: %w", err)
		}

		key, err := jwksupport.JWKFromKey(priv)
		if err != nil {
			return nil, err
		}

		key.KeyID = kid

		return key, nil
	case "OKP":
		key, err := jwksupport.JWKFromX25519PrivateKey(random.GetRandomBytes(cryptoutil.Curve25519KeySize))
		if err != nil {
			return nil, err
		}

		key.KeyID = kid

		return key, nil
	default:
		return nil, fmt.Errorf("keygen: unknown key type '%s'", kty)
	}
}

func curveByName(crv string) (elliptic.Curve, error) {
	switch crv {
	case "P-256":
		return elliptic.P256(), nil
	case "P-384":
		return elliptic.P384(), nil
	case "P-521":
		return elliptic.P521(), nil
	default:
		return nil, fmt.Errorf("keygen: unknown curve '%s'", crv)
	}
}

func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)

		return err
	}

	return os.WriteFile(path, data, 0o600)
}
