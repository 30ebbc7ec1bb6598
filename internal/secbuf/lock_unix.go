// Copyright (c) 2024-2026 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

//go:build unix

package secbuf

import "golang.org/x/sys/unix"

// lockMemory locks data's pages into physical memory so the password
// never reaches swap. It is best-effort: failure (e.g. insufficient
// privilege, or a platform with RLIMIT_MEMLOCK exhausted) is not fatal.
func lockMemory(data []byte) bool {
	return unix.Mlock(data) == nil
}

func unlockMemory(data []byte) {
	_ = unix.Munlock(data)
}
