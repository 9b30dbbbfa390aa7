// Copyright 2026 The Thinfat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package bootrecord

import (
	"github.com/pkg/errors"
)

// brSmall is the layout of a FAT16 bootsector.
type brSmall struct {
	prefix    bootsectorPrefix
	bpb       bpbShared
	suffix    bootsectorSuffix
	bootCode  [448]uint8
	signature [2]uint8
}

// FirstDataSector returns the partition-relative sector at which cluster 2
// begins. On FAT16 the fixed root directory region precedes the data region.
func (b *brSmall) FirstDataSector() uint32 {
	return b.bpb.NumSectorsReserved() +
		b.bpb.NumFATs()*b.bpb.SectorsPerFAT16() +
		b.RootDirSectors()
}

// RootDirSectors returns the number of sectors occupied by the fixed root
// directory region.
func (b *brSmall) RootDirSectors() uint32 {
	bytesPerSec := b.bpb.BytesPerSec()
	return (b.bpb.NumRootEntries()*32 + bytesPerSec - 1) / bytesPerSec
}

// Validate verifies that the bootsector describes a FAT16 filesystem.
func (b *brSmall) Validate() error {
	if err := b.prefix.validate(); err != nil {
		return err
	}
	if err := bootSectorSignatureValid(b.signature[:]); err != nil {
		return err
	}
	if err := b.bpb.validate(false); err != nil {
		return err
	}

	totalClusters := b.bpb.TotalClusters(b.FirstDataSector())
	if totalClusters < minClustersFAT16 {
		return errors.Wrapf(ErrInvalidFormat, "%d clusters describes a FAT12 filesystem, which is unsupported", totalClusters)
	} else if totalClusters >= minClustersFAT32 {
		return errors.Wrapf(ErrInvalidFormat, "%d clusters is too many for FAT16", totalClusters)
	}
	return nil
}
