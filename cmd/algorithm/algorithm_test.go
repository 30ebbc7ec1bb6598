// Copyright (c) 2024-2026 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package algorithm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlgorithmCommand_PrintsSummaryAndExitsZero(t *testing.T) {
	is := assert.New(t)

	cmd := NewAlgorithmCommand()
	var outBuf bytes.Buffer
	cmd.SetOut(&outBuf)

	err := cmd.Execute()
	is.NoError(err)

	output := outBuf.String()
	is.Contains(output, "Argon2id")
	is.Contains(output, "XChaCha20-Poly1305")
	is.Contains(output, "Fisher-Yates")
	is.Contains(output, "JPEG")
	is.Contains(output, "PNG")
	is.Contains(output, "WebP")
}
