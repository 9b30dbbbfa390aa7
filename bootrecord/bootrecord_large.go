// Copyright 2026 The Thinfat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package bootrecord

import (
	"github.com/pkg/errors"

	"github.com/thinfat/thinfat/bitops"
)

// FAT32-exclusive BPB extension.
type bpbExtended struct {
	sectorsPerFAT32  [4]uint8  // Sectors for ONE FAT
	extFlags         [2]uint8  // Mirroring behavior
	fsVersion        [2]uint8  // Must be zero
	rootCluster      [4]uint8  // First cluster of the root directory
	fsInfoSector     [2]uint8  // Sector of the FSInfo structure, within the reserved region
	backupBootSector [2]uint8  // Sector of the bootsector backup, usually 6
	reserved         [12]uint8 // Zero
}

const (
	// extFlags bit 7: if set, mirroring is disabled and bits 0-3 select the
	// one active FAT.
	mirrorDisabledFlag = 0x0080
	activeFATMask      = 0x000F
)

func (b *bpbExtended) SectorsPerFAT32() uint32 {
	return bitops.GetLE32(b.sectorsPerFAT32[:])
}

func (b *bpbExtended) RootCluster() uint32 {
	return bitops.GetLE32(b.rootCluster[:])
}

func (b *bpbExtended) FsInfoSector() uint32 {
	return uint32(bitops.GetLE16(b.fsInfoSector[:]))
}

// MirroringInfo describes if mirroring is active.
//
// If mirroring is active, all FATs need to be updated on write. If mirroring
// is disabled, only the single active FAT is used.
func (b *bpbExtended) MirroringInfo() (active bool, primary uint32) {
	flags := bitops.GetLE16(b.extFlags[:])
	if flags&mirrorDisabledFlag != 0 {
		return false, uint32(flags & activeFATMask)
	}
	return true, 0
}

// brLarge is the layout of a FAT32 bootsector.
type brLarge struct {
	prefix      bootsectorPrefix
	bpb         bpbShared
	bpbExtended bpbExtended
	suffix      bootsectorSuffix
	bootCode    [420]uint8
	signature   [2]uint8
}

// FirstDataSector returns the partition-relative sector at which cluster 2
// begins.
func (b *brLarge) FirstDataSector() uint32 {
	return b.bpb.NumSectorsReserved() + b.bpb.NumFATs()*b.bpbExtended.SectorsPerFAT32()
}

// Validate verifies that the bootsector describes a FAT32 filesystem.
func (b *brLarge) Validate() error {
	if err := b.prefix.validate(); err != nil {
		return err
	}
	if err := bootSectorSignatureValid(b.signature[:]); err != nil {
		return err
	}
	if err := b.bpb.validate(true); err != nil {
		return err
	}

	if b.bpbExtended.SectorsPerFAT32() == 0 {
		return errors.Wrap(ErrInvalidFormat, "FAT32 must set sectorsPerFAT32 to something other than zero")
	}
	if v := bitops.GetLE16(b.bpbExtended.fsVersion[:]); v != 0 {
		return errors.Wrapf(ErrInvalidFormat, "unknown FAT32 version: %d", v)
	}

	totalClusters := b.bpb.TotalClusters(b.FirstDataSector())
	if totalClusters < minClustersFAT32 {
		return errors.Wrapf(ErrInvalidFormat, "%d clusters is too few for FAT32", totalClusters)
	}
	return nil
}
