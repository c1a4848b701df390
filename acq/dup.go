// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

import "bytes"

// IsDuplicate reports whether block is byte-for-byte identical to one of the
// recent blocks. A nil recent block is an empty slot and never matches.
func IsDuplicate(block, recentA, recentB []byte) bool {
	return same(block, recentA) || same(block, recentB)
}

func same(block, recent []byte) bool {
	if recent == nil || len(block) != len(recent) {
		return false
	}
	return bytes.Equal(block, recent)
}
