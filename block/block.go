// Copyright 2026 The Thinfat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package block describes the interface to a 512-byte block device, such as
// an SD card on an SPI bus or a disk image in a file.
package block

// BlockSize is the size of a single device block in bytes. FAT media used by
// this library is always addressed in 512-byte blocks.
const BlockSize = 512

// Idx is the absolute index of a block on the device.
type Idx uint32

// Offset returns the byte offset of the block on the device.
func (i Idx) Offset() int64 {
	return int64(i) * BlockSize
}

// Device is the interface to the backing storage.
//
// Implementations are addressed in whole blocks: buffers passed to ReadBlocks
// and WriteBlocks are always a multiple of BlockSize long, and transfers never
// cross the end of the device. Implementations do not need to be safe for
// concurrent use; the volume manager serializes all access.
type Device interface {
	// ReadBlocks reads len(p)/BlockSize contiguous blocks starting at "start"
	// into p.
	ReadBlocks(p []byte, start Idx) error

	// WriteBlocks writes len(p)/BlockSize contiguous blocks starting at
	// "start" from p.
	WriteBlocks(p []byte, start Idx) error

	// NumBlocks returns the total number of blocks on the device.
	NumBlocks() uint32
}
