// Copyright (c) 2024-2026 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

//go:build !unix

package secbuf

// lockMemory is a no-op on platforms without an mlock equivalent wired up.
func lockMemory(data []byte) bool {
	return false
}

func unlockMemory(data []byte) {}
