// Copyright 2026 The Thinfat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package thinfat

import (
	"github.com/thinfat/thinfat/block"
	"github.com/thinfat/thinfat/bootrecord"
	"github.com/thinfat/thinfat/fat"
)

// Compile-time capacities of the handle manager. All bookkeeping lives in
// fixed arrays of this size; no operation allocates per open handle.
const (
	// MaxVolumes is the maximum number of simultaneously open volumes.
	MaxVolumes = 4

	// MaxOpenDirs is the maximum number of simultaneously open directories.
	MaxOpenDirs = 4

	// MaxOpenFiles is the maximum number of simultaneously open files.
	MaxOpenFiles = 4
)

// VolumeIdx selects a primary partition of the device, 0 through 3.
type VolumeIdx int

// VolumeHandle refers to an open volume. Handles combine a slot index with a
// generation number, so a handle becomes permanently stale once closed.
type VolumeHandle struct {
	idx uint8
	gen uint32
}

// DirHandle refers to an open directory.
type DirHandle struct {
	idx uint8
	gen uint32
}

// FileHandle refers to an open file.
type FileHandle struct {
	idx uint8
	gen uint32
}

// volumeSlot is the registry entry for an open volume.
type volumeSlot struct {
	open bool
	gen  uint32

	partIdx   VolumeIdx
	partStart block.Idx // First absolute block of the partition.
	br        *bootrecord.Bootrecord
	fat       *fat.Table
	readonly  bool

	// Status bits observed at mount time.
	wasDirty  bool
	hardError bool
}

// dirSlot is the registry entry for an open directory.
type dirSlot struct {
	open bool
	gen  uint32

	volume VolumeHandle

	// parent is the directory handle this one was opened from; the zero
	// handle for root directories. A directory with open children cannot be
	// closed.
	parent DirHandle

	// cluster is the first cluster of the directory, or rootDirCluster for
	// the volume root (covering both the FAT16 reserved-region root and the
	// FAT32 root chain).
	cluster uint32
}

// rootDirCluster is the in-slot sentinel for "this directory is the root".
// On disk, cluster 0 in a ".." entry likewise means "the root directory".
const rootDirCluster = 0

// clusterPos caches the most recently touched cluster of an open file, so
// sequential access does not re-walk the chain from the start.
type clusterPos struct {
	valid   bool
	cluster uint32 // Cluster number.
	index   uint32 // Its zero-based index within the chain.
}

// fileSlot is the registry entry for an open file.
type fileSlot struct {
	open bool
	gen  uint32

	volume VolumeHandle

	// parentDir is the directory handle the file was opened from.
	parentDir DirHandle

	mode Mode

	startCluster uint32 // 0 for a file with no allocation.
	numClusters  uint32 // Length of the allocated chain.
	size         uint32
	offset       uint32

	// Location of the file's 8.3 directory entry, for the close-time flush
	// of size, first cluster, and modification stamp.
	entryBlock  block.Idx // Absolute device block.
	entryOffset uint32    // Byte offset of the entry within the block.

	dirty bool // Entry metadata must be flushed on close.

	pos clusterPos
}

// sameFile reports whether the slot names the given on-disk file. The
// directory entry location identifies a file uniquely even before its first
// cluster is allocated.
func (f *fileSlot) sameFile(volume VolumeHandle, entryBlock block.Idx, entryOffset uint32) bool {
	return f.volume == volume && f.entryBlock == entryBlock && f.entryOffset == entryOffset
}
