// Copyright 2026 The Thinfat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package fsinfo describes the FAT32-exclusive FSInfo sector, which caches
// the free-cluster count and the next-free-cluster hint.
package fsinfo

import (
	"github.com/pkg/errors"

	"github.com/thinfat/thinfat/bitops"
	"github.com/thinfat/thinfat/block"
)

const (
	leadSigOffset   = 0
	innerSigOffset  = 484
	freeCountOffset = 488
	nextFreeOffset  = 492
	finalSigOffset  = 508

	leadSig  = 0x41615252
	innerSig = 0x61417272
	finalSig = 0xAA550000

	// Unknown describes a free count or next-free hint which is not known.
	Unknown = 0xFFFFFFFF
)

// ErrInvalid indicates the sector does not carry the FSInfo signatures.
var ErrInvalid = errors.New("fsinfo: invalid signature")

// validate verifies the three FSInfo signatures.
func validate(buf []byte) error {
	if s := bitops.GetLE32(buf[leadSigOffset:]); s != leadSig {
		return errors.Wrapf(ErrInvalid, "lead signature %08x", s)
	}
	if s := bitops.GetLE32(buf[innerSigOffset:]); s != innerSig {
		return errors.Wrapf(ErrInvalid, "struct signature %08x", s)
	}
	if s := bitops.GetLE32(buf[finalSigOffset:]); s != finalSig {
		return errors.Wrapf(ErrInvalid, "trailing signature %08x", s)
	}
	return nil
}

// ReadHints decodes the free-cluster count and next-free hint from an FSInfo
// sector. Either value may be Unknown.
func ReadHints(buf []byte) (freeCount, nextFree uint32, err error) {
	if len(buf) < block.BlockSize {
		return 0, 0, errors.Wrap(ErrInvalid, "short buffer")
	}
	if err := validate(buf); err != nil {
		return 0, 0, err
	}
	return bitops.GetLE32(buf[freeCountOffset:]), bitops.GetLE32(buf[nextFreeOffset:]), nil
}

// SetHints updates the free-cluster count and next-free hint in an FSInfo
// sector buffer.
func SetHints(buf []byte, freeCount, nextFree uint32) {
	bitops.PutLE32(buf[freeCountOffset:], freeCount)
	bitops.PutLE32(buf[nextFreeOffset:], nextFree)
}

// Format initializes buf as a fresh FSInfo sector carrying the given hints.
func Format(buf []byte, freeCount, nextFree uint32) {
	for i := range buf[:block.BlockSize] {
		buf[i] = 0
	}
	bitops.PutLE32(buf[leadSigOffset:], leadSig)
	bitops.PutLE32(buf[innerSigOffset:], innerSig)
	bitops.PutLE32(buf[finalSigOffset:], finalSig)
	SetHints(buf, freeCount, nextFree)
}
