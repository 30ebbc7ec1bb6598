// Copyright (c) 2024-2026 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package version

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersion(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	v := Version()
	is.NotNil(v)
}

func TestGitCommitID(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	v := GitCommitID()
	is.NotNil(v)
}

func TestSemverVersion(t *testing.T) {
	is := assert.New(t)

	v, err := SemverVersion()
	is.NoError(err)
	is.NotNil(v)
}

func TestVersionCommand_Defaults(t *testing.T) {
	is := assert.New(t)

	version = "v0.0.0-unset"
	gitCommitID = ""

	cmd := NewVersionCommand()

	var outBuf bytes.Buffer
	cmd.SetOut(&outBuf)

	err := cmd.Execute()
	is.NoError(err, "Expected no error on version command with default values")

	output := strings.TrimSpace(outBuf.String())
	lines := strings.Split(output, "\n")
	is.Contains(lines[0], "version: v0.0.0-unset")
	is.Contains(lines[1], "commit:")
}

func TestVersionCommand_CustomValues(t *testing.T) {
	is := assert.New(t)

	version = "v1.0.0-test"
	gitCommitID = "abcdef1234567890"

	cmd := NewVersionCommand()

	var outBuf bytes.Buffer
	cmd.SetOut(&outBuf)

	err := cmd.Execute()
	is.NoError(err, "Expected no error on version command with custom values")

	output := strings.TrimSpace(outBuf.String())
	lines := strings.Split(output, "\n")
	is.Contains(lines[0], "version: v1.0.0-test")
	is.Contains(lines[1], "commit: abcdef1234567890")
}
