// Copyright 2026 The Thinfat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package direntry encodes and decodes the 32-byte FAT directory entries,
// including the VFAT long-filename extension entries and the 8.3 short-name
// rules.
package direntry

import (
	"time"
)

const (
	// EntrySize is the size of a directory entry (both long and short
	// versions).
	EntrySize = 32
)

// Special values for the first name byte of an entry.
const (
	charLastFree = 0x00 // This entry is free and all following entries are free.
	charE5       = 0x05 // The real first name character is 0xE5; the entry is NOT free.
	charFree     = 0xE5 // This entry is free.
)

// Attribute bits.
const (
	AttrReadOnly  = 0x01
	AttrHidden    = 0x02
	AttrSystem    = 0x04
	AttrVolume    = 0x08
	AttrDirectory = 0x10
	AttrArchive   = 0x20

	// AttrLongname marks a VFAT long-filename entry.
	AttrLongname = AttrReadOnly | AttrHidden | AttrSystem | AttrVolume

	// AttrLongnameMask selects the bits compared against AttrLongname.
	AttrLongnameMask = AttrLongname | AttrDirectory | AttrArchive
)

// Entry is a decoded logical directory entry: one short entry plus the long
// name assembled from any preceding LFN entries.
type Entry struct {
	Name         string    // Long name if present, otherwise the 8.3 rendering.
	ShortName    [11]byte  // Raw 8.3 name bytes.
	Attributes   uint8     // Attribute bits of the short entry.
	FirstCluster uint32    // First cluster of the file, or 0 for an empty file.
	Size         uint32    // Size in bytes. Zero for directories.
	MTime        time.Time // Last modification stamp.
	CTime        time.Time // Creation stamp.
}

// IsDir reports whether the entry names a directory.
func (e *Entry) IsDir() bool {
	return e.Attributes&AttrDirectory != 0
}

// IsVolumeLabel reports whether the entry is the volume-label entry.
func (e *Entry) IsVolumeLabel() bool {
	return e.Attributes&AttrVolume != 0 && e.Attributes&AttrLongnameMask != AttrLongname
}
