// Copyright (c) 2024-2026 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

//go:build !unix

package imageio

import (
	"os"
	"time"
)

// accessTime falls back to mod time on platforms without a portable way
// to read last-access time from os.FileInfo.
func accessTime(info os.FileInfo) time.Time {
	return info.ModTime()
}
