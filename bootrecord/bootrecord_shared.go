// Copyright 2026 The Thinfat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package bootrecord

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/thinfat/thinfat/bitops"
	"github.com/thinfat/thinfat/block"
)

const (
	bootSig         = 0xAA55
	bootSigExtended = 0x29
)

// FATType describes the type of filesystem described by the boot record.
type FATType int

// Identify the type of filesystem described by this boot record.
const (
	FATInvalid FATType = 0
	FAT16      FATType = 16
	FAT32      FATType = 32
)

// Thresholds from the FAT specification: a volume with fewer than 4085
// clusters is FAT12, one with fewer than 65525 is FAT16, anything larger is
// FAT32.
const (
	minClustersFAT16 = 4085
	minClustersFAT32 = 65525
)

func bootSectorSignatureValid(sig []uint8) error {
	s := bitops.GetLE16(sig)
	if s != bootSig {
		return errors.Wrapf(ErrInvalidFormat, "expected boot signature %04x, but got %04x", bootSig, s)
	}
	return nil
}

// Shared beginning of the bootsector.
type bootsectorPrefix struct {
	jmpBoot [3]uint8 // Jump instruction 0xEB__90 or 0xE9____
	oemName [8]uint8 // Informal name of the system which formatted the volume
}

func (b *bootsectorPrefix) validate() error {
	if b.jmpBoot[0] == 0xE9 {
		return nil
	}
	if b.jmpBoot[0] == 0xEB && b.jmpBoot[2] == 0x90 {
		return nil
	}
	return errors.Wrap(ErrInvalidFormat, "invalid jmpBoot instruction")
}

// Shared BPB fields between FAT16 and FAT32.
type bpbShared struct {
	bytesPerSec        [2]uint8 // Must be 512 for this library
	sectorsPerCluster  uint8    // Must be a power of 2 between 1 and 128
	numSectorsReserved [2]uint8 // FAT16: 1. FAT32: usually 32
	numFATs            uint8    // Greater than or equal to 1. Usually 2
	numRootEntries     [2]uint8 // FAT16: root directory entries. FAT32: 0
	totalSectors16     [2]uint8 // FAT16: sector count, if < 0x10000. FAT32: always 0
	media              uint8    // Media descriptor
	sectorsPerFAT16    [2]uint8 // FAT16: sectors for ONE FAT. FAT32: 0
	sectorsPerTrack    [2]uint8 // Geometry info
	numHeads           [2]uint8 // Geometry info
	numSectorsHidden   [4]uint8 // Hidden sectors preceding the partition
	totalSectors32     [4]uint8 // FAT16: sector count if >= 0x10000. FAT32: sector count
}

func (b *bpbShared) BytesPerSec() uint32 {
	return uint32(bitops.GetLE16(b.bytesPerSec[:]))
}
func (b *bpbShared) SectorsPerCluster() uint32 {
	return uint32(b.sectorsPerCluster)
}
func (b *bpbShared) NumSectorsReserved() uint32 {
	return uint32(bitops.GetLE16(b.numSectorsReserved[:]))
}
func (b *bpbShared) NumFATs() uint32 {
	return uint32(b.numFATs)
}
func (b *bpbShared) NumRootEntries() uint32 {
	return uint32(bitops.GetLE16(b.numRootEntries[:]))
}
func (b *bpbShared) TotalSectors16() uint32 {
	return uint32(bitops.GetLE16(b.totalSectors16[:]))
}
func (b *bpbShared) SectorsPerFAT16() uint32 {
	return uint32(bitops.GetLE16(b.sectorsPerFAT16[:]))
}
func (b *bpbShared) TotalSectors() uint32 {
	if ts16 := b.TotalSectors16(); ts16 != 0 {
		return ts16
	}
	return bitops.GetLE32(b.totalSectors32[:])
}

// guessFATType guesses the size class of the filesystem without verifying
// correctness: a zero sectorsPerFAT16 implies FAT32.
func (b *bpbShared) guessFATType() bool {
	return b.SectorsPerFAT16() == 0
}

func (b *bpbShared) TotalClusters(firstDataSector uint32) uint32 {
	totalSectors := b.TotalSectors()
	if totalSectors < firstDataSector {
		return 0
	}
	return (totalSectors - firstDataSector) / b.SectorsPerCluster()
}

// validate checks the shared BPB fields. The "large" argument is true if the
// filesystem is FAT32. For a detailed description of the requirements, see
// pages 9-13 of "FAT: General Overview of On-Disk Format".
func (b *bpbShared) validate(large bool) error {
	if bytesPerSec := b.BytesPerSec(); bytesPerSec != block.BlockSize {
		return errors.Wrapf(ErrInvalidFormat, "bytes/sector: %d (only %d is supported)", bytesPerSec, block.BlockSize)
	}

	sectorsPerCluster := uint32(b.sectorsPerCluster)
	switch sectorsPerCluster {
	case 1, 2, 4, 8, 16, 32, 64, 128:
	default:
		return errors.Wrapf(ErrInvalidFormat, "sectors/cluster invalid: %d", sectorsPerCluster)
	}

	numSectorsReserved := b.NumSectorsReserved()
	if numSectorsReserved == 0 {
		return errors.Wrap(ErrInvalidFormat, "reserved sector count cannot be zero")
	}

	if b.NumFATs() == 0 {
		return errors.Wrap(ErrInvalidFormat, "numFATs cannot be zero")
	}

	numRootEntries := b.NumRootEntries()
	if large && numRootEntries != 0 {
		return errors.Wrap(ErrInvalidFormat, "FAT32 must set numRootEntries to zero")
	} else if !large {
		if numRootEntries == 0 {
			return errors.Wrap(ErrInvalidFormat, "FAT16 must have at least one root entry")
		} else if numRootEntries*32%b.BytesPerSec() != 0 {
			// "For FAT12 and FAT16 volumes, this value should always specify
			// a count that when multiplied by 32 results in an even multiple
			// of BPB_BytsPerSec".
			return errors.Wrap(ErrInvalidFormat, "numRootEntries * 32 must be an even multiple of bytes per sector")
		}
	}

	// totalSectors16 and totalSectors32 should be evaluated together.
	totalSectors16 := b.TotalSectors16()
	totalSectors32 := bitops.GetLE32(b.totalSectors32[:])
	if large {
		if totalSectors16 != 0 {
			return errors.Wrap(ErrInvalidFormat, "FAT32 must set totalSectors16 to zero")
		} else if totalSectors32 == 0 {
			return errors.Wrap(ErrInvalidFormat, "FAT32 must set totalSectors32 to something other than zero")
		}
	} else {
		if totalSectors16 == 0 && totalSectors32 == 0 {
			return errors.Wrap(ErrInvalidFormat, "FAT16 must set either totalSectors16 or totalSectors32, not neither")
		} else if totalSectors16 != 0 && totalSectors32 != 0 {
			return errors.Wrap(ErrInvalidFormat, "FAT16 must set at most one of totalSectors16 or totalSectors32, not both")
		}
	}

	sectorsPerFAT16 := b.SectorsPerFAT16()
	if large && sectorsPerFAT16 != 0 {
		return errors.Wrap(ErrInvalidFormat, "FAT32 must set sectorsPerFAT16 to zero")
	} else if !large && sectorsPerFAT16 == 0 {
		return errors.Wrap(ErrInvalidFormat, "FAT16 must set sectorsPerFAT16 to something other than zero")
	}
	return nil
}

// Shared bootsector fields between FAT16 and FAT32, at different offsets.
type bootsectorSuffix struct {
	driveNumber uint8     // Drive number for INT 13h
	reserved1   uint8     // Zero
	extBootSig  uint8     // bootSigExtended if the following fields are valid
	volumeID    [4]uint8  // Volume serial number
	volumeLabel [11]uint8 // Volume label
	fsType      [8]uint8  // Informal FS type string
}

// label returns the trimmed volume label, or "" if the extended boot
// signature marks the field as absent.
func (b *bootsectorSuffix) label() string {
	if b.extBootSig != bootSigExtended {
		return ""
	}
	return strings.TrimRight(string(b.volumeLabel[:]), " ")
}
