// Copyright 2026 The Thinfat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package thinfat

import (
	"github.com/pkg/errors"

	"github.com/thinfat/thinfat/direntry"
	"github.com/thinfat/thinfat/fat"
)

// Errors returned by the public API. Device errors are returned wrapped with
// context; everything else is one of the sentinels below, matchable with
// errors.Is.
var (
	// ErrFormat indicates an unrecognized partition table, boot record, or
	// FSInfo sector. The volume is not registered.
	ErrFormat = errors.New("thinfat: unrecognized filesystem format")

	// ErrCorruptFilesystem indicates a structurally impossible on-disk
	// state: a bad or free cluster mid-chain, a cyclic chain, or a chain
	// shorter than a file's recorded size. Malformed LFN runs in a directory
	// are skipped during iteration and do not produce this error.
	ErrCorruptFilesystem = fat.ErrCorrupt

	// ErrDeviceFull indicates there are no free clusters left.
	ErrDeviceFull = fat.ErrNoSpace

	// ErrReadOnly indicates a mutation through a read-only handle or volume.
	ErrReadOnly = fat.ErrReadOnly

	// ErrInvalidFilename indicates a name with disallowed characters, an
	// unsupported length, or codepoints outside the BMP.
	ErrInvalidFilename = direntry.ErrInvalidName

	// ErrNotFound indicates a directory or file lookup miss.
	ErrNotFound = errors.New("thinfat: no such file or directory")

	// ErrAlreadyExists indicates a create-new against an existing entry.
	ErrAlreadyExists = errors.New("thinfat: entry already exists")

	// ErrNotADirectory indicates a directory operation on a file entry.
	ErrNotADirectory = errors.New("thinfat: not a directory")

	// ErrIsADirectory indicates a file operation on a directory entry.
	ErrIsADirectory = errors.New("thinfat: is a directory")

	// ErrDirectoryFull indicates a directory that cannot hold another entry.
	// Only the fixed FAT16 root directory can become permanently full.
	ErrDirectoryFull = errors.New("thinfat: directory is full")

	// ErrBadHandle indicates a closed or stale handle.
	ErrBadHandle = errors.New("thinfat: bad handle")

	// ErrInvalidOffset indicates a seek before the start of a file, an offset
	// or write beyond the 4 GiB FAT file-size limit, or an unknown seek
	// origin.
	ErrInvalidOffset = errors.New("thinfat: invalid offset")

	// ErrFileAlreadyOpen indicates an open that conflicts with an existing
	// open of the same file (either of the two is writable), or an attempt to
	// delete a file that is open in any mode.
	ErrFileAlreadyOpen = errors.New("thinfat: file is already open for writing")

	// ErrVolumeStillInUse indicates the volume has open directory or file
	// handles.
	ErrVolumeStillInUse = errors.New("thinfat: volume still in use")

	// ErrDirectoryStillInUse indicates the directory has open child handles.
	ErrDirectoryStillInUse = errors.New("thinfat: directory still in use")

	// ErrVolumeAlreadyOpen indicates the partition is already registered.
	ErrVolumeAlreadyOpen = errors.New("thinfat: volume already open")

	// Capacity errors: the corresponding fixed slot array is exhausted.
	ErrTooManyOpenVolumes = errors.New("thinfat: too many open volumes")
	ErrTooManyOpenDirs    = errors.New("thinfat: too many open directories")
	ErrTooManyOpenFiles   = errors.New("thinfat: too many open files")
)

// wrapFormat converts a partition or boot-record decoding failure into
// ErrFormat, keeping the detail text.
func wrapFormat(err error) error {
	if err == nil {
		return nil
	}
	return errors.WithMessage(ErrFormat, err.Error())
}
