// Copyright 2026 The Thinfat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package bootrecord describes the first sector of a FAT partition, which
// holds the BIOS Parameter Block and the rest of the filesystem geometry.
package bootrecord

import (
	"unsafe"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/thinfat/thinfat/block"
)

const (
	// NumReservedClusters describes how many cluster numbers are reserved
	// (FAT[0] and FAT[1]).
	NumReservedClusters uint32 = 2

	// Size is the size of a bootrecord in bytes.
	Size = block.BlockSize
)

// ErrInvalidFormat indicates that the boot sector does not describe a
// supported FAT16 or FAT32 filesystem.
var ErrInvalidFormat = errors.New("bootrecord: unsupported or invalid format")

// Bootrecord describes the decoded boot record, independent of FAT type.
// All sector values are relative to the start of the partition.
type Bootrecord struct {
	t FATType

	totalSectors      uint32
	sectorsPerCluster uint32
	numUsableClusters uint32
	sectorsPerFAT     uint32
	reservedSectors   uint32
	numFATs           uint32
	firstDataSector   uint32
	mirroringActive   bool
	primaryFAT        uint32
	label             string

	// FAT32 exclusive
	rootCluster  uint32
	fsInfoSector uint32

	// FAT16 exclusive
	numRootEntriesMax uint32
	rootStartSector   uint32
}

// Parse decodes and validates the boot record held in the first 512 bytes of
// a partition. It returns an error if buf does not describe a supported FAT16
// or FAT32 filesystem.
func Parse(buf []byte) (*Bootrecord, error) {
	if len(buf) < Size {
		return nil, errors.Wrapf(ErrInvalidFormat, "need %d bytes, got %d", Size, len(buf))
	}

	// One of these is valid, the other is not; guess from the size class and
	// keep validating under that assumption.
	small := *(*brSmall)(unsafe.Pointer(&buf[0]))
	large := *(*brLarge)(unsafe.Pointer(&buf[0]))

	var br *Bootrecord
	if large.bpb.guessFATType() {
		// Probably FAT32.
		if err := large.Validate(); err != nil {
			return nil, err
		}
		glog.V(1).Info("Loading a FAT32 bootrecord")
		br = &Bootrecord{
			t:               FAT32,
			firstDataSector: large.FirstDataSector(),
			sectorsPerFAT:   large.bpbExtended.SectorsPerFAT32(),
			rootCluster:     large.bpbExtended.RootCluster(),
			label:           large.suffix.label(),
		}
		br.fill(&large.bpb)
		br.mirroringActive, br.primaryFAT = large.bpbExtended.MirroringInfo()

		if fsInfo := large.bpbExtended.FsInfoSector(); 0 < fsInfo && fsInfo < br.reservedSectors {
			// Only use the FSInfo sector if it is inside the reserved region.
			br.fsInfoSector = fsInfo
		}
		if !br.ClusterInValidRange(br.rootCluster) {
			return nil, errors.Wrap(ErrInvalidFormat, "invalid root cluster")
		}
	} else {
		// Probably FAT16.
		if err := small.Validate(); err != nil {
			return nil, err
		}
		glog.V(1).Info("Loading a FAT16 bootrecord")
		br = &Bootrecord{
			t:               FAT16,
			firstDataSector: small.FirstDataSector(),
			sectorsPerFAT:   small.bpb.SectorsPerFAT16(),
			label:           small.suffix.label(),
			// Mirroring is always active on FAT16.
			mirroringActive:   true,
			numRootEntriesMax: small.bpb.NumRootEntries(),
		}
		br.fill(&small.bpb)
		br.rootStartSector = br.reservedSectors + br.numFATs*br.sectorsPerFAT
	}

	return br, nil
}

func (b *Bootrecord) fill(bpb *bpbShared) {
	b.totalSectors = bpb.TotalSectors()
	b.sectorsPerCluster = bpb.SectorsPerCluster()
	b.numUsableClusters = bpb.TotalClusters(b.firstDataSector)
	b.reservedSectors = bpb.NumSectorsReserved()
	b.numFATs = bpb.NumFATs()
}

// Type returns the type of the underlying Bootrecord.
func (b *Bootrecord) Type() FATType {
	return b.t
}

// FATEntrySize returns the size (in bytes) of a single entry in the FAT.
func (b *Bootrecord) FATEntrySize() uint32 {
	switch b.t {
	case FAT32:
		return 4
	case FAT16:
		return 2
	default:
		panic("Not supported")
	}
}

// SectorsPerCluster returns the number of sectors in a single cluster.
func (b *Bootrecord) SectorsPerCluster() uint32 {
	return b.sectorsPerCluster
}

// ClusterSize returns the size of a single cluster in bytes.
func (b *Bootrecord) ClusterSize() uint32 {
	return b.sectorsPerCluster * block.BlockSize
}

// NumFATs returns the number of FAT copies on the volume.
func (b *Bootrecord) NumFATs() uint32 {
	return b.numFATs
}

// TotalSectors returns the number of sectors allocated to the filesystem.
func (b *Bootrecord) TotalSectors() uint32 {
	return b.totalSectors
}

// NumUsableClusters returns the number of data clusters on the volume.
func (b *Bootrecord) NumUsableClusters() uint32 {
	return b.numUsableClusters
}

// VolumeLabel returns the label recorded in the boot sector, or "".
func (b *Bootrecord) VolumeLabel() string {
	return b.label
}

// ClusterInValidRange checks that the cluster number addresses a data
// cluster. It does not access the FAT entry for the cluster.
func (b *Bootrecord) ClusterInValidRange(cluster uint32) bool {
	minCluster := NumReservedClusters
	maxCluster := minCluster + b.numUsableClusters
	return minCluster <= cluster && cluster < maxCluster
}

// MirroringInfo describes if mirroring is necessary.
//
// If mirroring is active, returns "true": every FAT copy must be updated on
// write. If mirroring is disabled, returns "false" along with the single
// active FAT.
func (b *Bootrecord) MirroringInfo() (active bool, numFATs, primary uint32) {
	return b.mirroringActive, b.numFATs, b.primaryFAT
}

// FATEntryLocation returns the partition-relative sector and the byte offset
// within that sector of a cluster's entry in the given FAT copy.
func (b *Bootrecord) FATEntryLocation(indexFAT, cluster uint32) (sector block.Idx, offset uint32) {
	byteOffset := cluster * b.FATEntrySize()
	sector = block.Idx(b.reservedSectors + indexFAT*b.sectorsPerFAT + byteOffset/block.BlockSize)
	return sector, byteOffset % block.BlockSize
}

// ClusterStartSector returns the partition-relative sector at which the
// cluster's data begins.
func (b *Bootrecord) ClusterStartSector(cluster uint32) block.Idx {
	return block.Idx((cluster-NumReservedClusters)*b.sectorsPerCluster + b.firstDataSector)
}

// RootCluster returns the cluster number of the root directory. Panics unless
// the filesystem is FAT32; the FAT16 root does not live in a cluster.
func (b *Bootrecord) RootCluster() uint32 {
	if b.t != FAT32 {
		panic("Root cluster does not exist outside FAT32")
	}
	return b.rootCluster
}

// RootReservedInfo provides the location of the fixed root directory region
// on FAT16 filesystems.
func (b *Bootrecord) RootReservedInfo() (startSector block.Idx, numRootEntriesMax uint32) {
	if b.t != FAT16 {
		panic("Root is not in the reserved region for FAT32")
	}
	return block.Idx(b.rootStartSector), b.numRootEntriesMax
}

// FsInfoSector returns the partition-relative sector of the FSInfo structure,
// or false if the volume does not carry one.
func (b *Bootrecord) FsInfoSector() (block.Idx, bool) {
	if b.fsInfoSector == 0 {
		return 0, false
	}
	return block.Idx(b.fsInfoSector), true
}
