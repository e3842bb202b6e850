/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package jose

import (
	"bytes"
	"compress/flate"
	"fmt"
	"io"
)

// maxDecompressedSize caps inflate output at 32 MiB. A hostile "zip":"DEF"
// payload can otherwise expand far beyond its ciphertext size.
const maxDecompressedSize = 32 << 20

func deflate(payload []byte) ([]byte, error) {
	var buf bytes.Buffer

	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}

	if _, err = w.Write(payload); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}

	if err = w.Close(); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}

	return buf.Bytes(), nil
}

func inflate(compressed []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close() //nolint:errcheck

	payload, err := io.ReadAll(io.LimitReader(r, maxDecompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}

	if len(payload) > maxDecompressedSize {
		return nil, fmt.Errorf("inflate: decompressed payload exceeds %d bytes", maxDecompressedSize)
	}

	return payload, nil
}
