// Copyright 2026 The Thinfat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package mbr decodes the Master Boot Record partition table found in the
// first block of a device.
package mbr

import (
	"github.com/pkg/errors"

	"github.com/thinfat/thinfat/bitops"
	"github.com/thinfat/thinfat/block"
)

const (
	// Size is the size of the MBR in bytes.
	Size = 512

	tableOffset     = 446
	entrySize       = 16
	signatureOffset = 510
	signature       = 0xAA55

	// NumPartitions is the number of primary partition slots in the MBR.
	NumPartitions = 4

	entryStatusOffset = 0
	entryTypeOffset   = 4
	entryLBAOffset    = 8
	entryLengthOffset = 12
)

// Partition type bytes recognized as FAT.
const (
	TypeFAT16       = 0x04 // FAT16, less than 32 MiB
	TypeFAT16Big    = 0x06 // FAT16, 32 MiB or larger
	TypeFAT32       = 0x0B // FAT32 with CHS addressing
	TypeFAT32LBA    = 0x0C // FAT32 with LBA addressing
	TypeFAT16LBA    = 0x0E // FAT16 with LBA addressing
	TypeEmpty       = 0x00
	TypeGPTProtect  = 0xEE
	TypeLinuxNative = 0x83
)

var (
	// ErrNoSignature indicates that block 0 does not carry the 0x55AA boot
	// signature, so no partition table is present.
	ErrNoSignature = errors.New("mbr: missing boot signature")

	// ErrNotFAT indicates that the requested partition's type byte is not a
	// recognized FAT16 or FAT32 type.
	ErrNotFAT = errors.New("mbr: partition type is not FAT16 or FAT32")

	// ErrNoPartition indicates that the requested partition slot is empty or
	// out of range.
	ErrNoPartition = errors.New("mbr: no such partition")
)

// Partition describes one entry of the partition table.
type Partition struct {
	Type   uint8     // Partition type byte.
	Start  block.Idx // First absolute block of the partition.
	Length uint32    // Number of blocks in the partition.
}

// IsFAT reports whether the partition's type byte is a recognized FAT16 or
// FAT32 type.
func (p Partition) IsFAT() bool {
	switch p.Type {
	case TypeFAT16, TypeFAT16Big, TypeFAT16LBA, TypeFAT32, TypeFAT32LBA:
		return true
	default:
		return false
	}
}

// Table holds the four decoded primary partition entries.
type Table struct {
	Partitions [NumPartitions]Partition
}

// Decode interprets buf as an MBR and returns its partition table. buf must
// hold the first block of the device.
func Decode(buf []byte) (*Table, error) {
	if len(buf) < Size {
		return nil, errors.Errorf("mbr: need %d bytes, got %d", Size, len(buf))
	}
	if bitops.GetLE16(buf[signatureOffset:]) != signature {
		return nil, ErrNoSignature
	}

	t := &Table{}
	for i := 0; i < NumPartitions; i++ {
		entry := buf[tableOffset+i*entrySize:]
		t.Partitions[i] = Partition{
			Type:   entry[entryTypeOffset],
			Start:  block.Idx(bitops.GetLE32(entry[entryLBAOffset:])),
			Length: bitops.GetLE32(entry[entryLengthOffset:]),
		}
	}
	return t, nil
}

// FATPartition returns the decoded partition at index idx if it carries a
// recognized FAT type byte.
func (t *Table) FATPartition(idx int) (Partition, error) {
	if idx < 0 || NumPartitions <= idx {
		return Partition{}, errors.Wrapf(ErrNoPartition, "index %d", idx)
	}
	p := t.Partitions[idx]
	if p.Type == TypeEmpty || p.Length == 0 {
		return Partition{}, errors.Wrapf(ErrNoPartition, "index %d", idx)
	}
	if !p.IsFAT() {
		return Partition{}, errors.Wrapf(ErrNotFAT, "type 0x%02X", p.Type)
	}
	return p, nil
}
