// Copyright 2026 The Thinfat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package fake provides a fake in-memory implementation of block.Device.
package fake

import (
	"github.com/pkg/errors"

	"github.com/thinfat/thinfat/block"
)

var (
	// ErrBlockSize indicates that a transfer buffer is not a multiple of the
	// block size.
	ErrBlockSize = errors.New("buffer is not a multiple of the block size")

	// ErrOutOfBounds indicates that the requested block range is out of
	// bounds.
	ErrOutOfBounds = errors.New("block range is out of bounds")
)

// Device implements block.Device using a []byte.
type Device []byte

// New returns a zero-filled fake device holding numBlocks blocks.
func New(numBlocks uint32) Device {
	return make(Device, int64(numBlocks)*block.BlockSize)
}

func (d Device) check(p []byte, start block.Idx) error {
	if len(p)%block.BlockSize != 0 {
		return errors.Wrap(ErrBlockSize, "len(p)")
	}

	if start.Offset()+int64(len(p)) > int64(len(d)) {
		return errors.Wrapf(ErrOutOfBounds, "[%v, %v)", start.Offset(), start.Offset()+int64(len(p)))
	}

	return nil
}

// ReadBlocks implements block.Device.ReadBlocks for Device.
func (d Device) ReadBlocks(p []byte, start block.Idx) error {
	if err := d.check(p, start); err != nil {
		return err
	}

	copy(p, d[start.Offset():])
	return nil
}

// WriteBlocks implements block.Device.WriteBlocks for Device.
func (d Device) WriteBlocks(p []byte, start block.Idx) error {
	if err := d.check(p, start); err != nil {
		return err
	}

	copy(d[start.Offset():], p)
	return nil
}

// NumBlocks implements block.Device.NumBlocks for Device.
func (d Device) NumBlocks() uint32 {
	return uint32(int64(len(d)) / block.BlockSize)
}
