// Copyright 2026 The Thinfat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package file implements the block.Device interface backed by a traditional
// file, such as a disk image or (on linux) a raw block device node.
package file

import (
	"os"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/thinfat/thinfat/block"
)

// ErrOutOfBounds indicates that the requested block range is out of bounds.
var ErrOutOfBounds = errors.New("block range is out of bounds")

// File represents a block device backed by a file on a traditional file
// system.
type File struct {
	f    *os.File
	size int64
}

func getSize(f *os.File, info os.FileInfo) int64 {
	if info.Mode()&os.ModeDevice != 0 {
		if size, err := ioctlBlockGetSize(f.Fd()); err == nil {
			return size
		}
	}

	// If the file is a block device but the ioctl failed for some reason or
	// if the file is a regular file, just fall back to using the size
	// reported by Stat().
	return info.Size()
}

// New creates and returns a new File, using f as the backing store. The size
// of the device is the size of f rounded down to a whole number of blocks.
// New does not close f if an error occurs.
func New(f *os.File) (*File, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, &os.PathError{
			Op:   "New",
			Path: f.Name(),
			Err:  err,
		}
	}

	size := getSize(f, info)
	size -= size % block.BlockSize

	if glog.V(2) {
		glog.Info("File name: ", info.Name())
		glog.Info("     size: ", size)
		glog.Info("     mode: ", info.Mode())
	}

	return &File{
		f:    f,
		size: size,
	}, nil
}

func (f *File) check(p []byte, start block.Idx) error {
	if len(p)%block.BlockSize != 0 {
		return errors.Errorf("len(p) (%v) is not a multiple of the block size", len(p))
	}
	if start.Offset()+int64(len(p)) > f.size {
		return errors.Wrapf(ErrOutOfBounds, "[%v, %v)", start.Offset(), start.Offset()+int64(len(p)))
	}
	return nil
}

// ReadBlocks implements block.Device.ReadBlocks for File.
func (f *File) ReadBlocks(p []byte, start block.Idx) error {
	if err := f.check(p, start); err != nil {
		return err
	}

	_, err := f.f.ReadAt(p, start.Offset())
	return err
}

// WriteBlocks implements block.Device.WriteBlocks for File.
func (f *File) WriteBlocks(p []byte, start block.Idx) error {
	if err := f.check(p, start); err != nil {
		return err
	}

	_, err := f.f.WriteAt(p, start.Offset())
	return err
}

// NumBlocks implements block.Device.NumBlocks for File.
func (f *File) NumBlocks() uint32 {
	return uint32(f.size / block.BlockSize)
}

// Sync commits buffered writes to stable storage.
func (f *File) Sync() error {
	return f.f.Sync()
}

// Close syncs and closes the backing file. The File must not be used after
// Close is called.
func (f *File) Close() error {
	if err := f.f.Sync(); err != nil {
		f.f.Close()
		return err
	}
	return f.f.Close()
}
