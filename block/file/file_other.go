// Copyright 2026 The Thinfat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build !linux

package file

import "syscall"

func ioctlBlockGetSize(fd uintptr) (int64, error) {
	return 0, syscall.ENOTSUP
}
