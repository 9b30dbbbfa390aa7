// Copyright 2026 The Thinfat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package direntry

import (
	"unicode/utf16"
	"unsafe"

	"github.com/thinfat/thinfat/bitops"
)

const (
	// longLastEntry flags the highest-ordered LFN entry of a run, which is
	// stored first on disk.
	longLastEntry = 0x40

	longOrdinalMask = 0x3F

	// longDirentLen is the number of UCS-2 units stored per LFN entry.
	longDirentLen = 13

	// LongnameMaxLen is the maximum length of a long filename in UCS-2 units.
	LongnameMaxLen = 255

	// maxLongDirentries is the maximum number of LFN entries per run.
	maxLongDirentries = (LongnameMaxLen + longDirentLen - 1) / longDirentLen
)

// longDirentry describes an on-disk long-filename entry. The 13 UCS-2 units
// of the name fragment are split across three runs.
type longDirentry struct {
	count      uint8     // Ordinal of this entry, possibly flagged with longLastEntry
	name1      [10]uint8 // UCS-2 units 0-4
	attributes uint8     // Always AttrLongname
	reserved1  uint8     // Zero
	chksum     uint8     // Checksum of the associated short name
	name2      [12]uint8 // UCS-2 units 5-10
	reserved2  [2]uint8  // Zero ("first cluster", unused by LFN)
	name3      [4]uint8  // UCS-2 units 11-12
}

// Long is a view over the 32 bytes of a long-filename entry.
type Long struct {
	d *longDirentry
}

// LongAt returns a Long view over buf, which must hold at least EntrySize
// bytes. The view aliases buf.
func LongAt(buf []byte) Long {
	if len(buf) < EntrySize {
		panic("Buffer is smaller than a dirent")
	}
	return Long{(*longDirentry)(unsafe.Pointer(&buf[0]))}
}

// Ordinal returns the 1-based sequence number of this entry within its run.
func (l Long) Ordinal() uint8 {
	return l.d.count & longOrdinalMask
}

// IsLast reports whether this entry is the highest-ordered entry of its run.
func (l Long) IsLast() bool {
	return l.d.count&longLastEntry != 0
}

// Checksum returns the stored checksum of the associated short name.
func (l Long) Checksum() uint8 {
	return l.d.chksum
}

// SetFree marks the entry slot deleted.
func (l Long) SetFree() {
	l.d.count = charFree
}

// units appends the 13 UCS-2 units of this entry to dst.
func (l Long) units(dst []uint16) []uint16 {
	for i := 0; i < len(l.d.name1); i += 2 {
		dst = append(dst, bitops.GetLE16(l.d.name1[i:]))
	}
	for i := 0; i < len(l.d.name2); i += 2 {
		dst = append(dst, bitops.GetLE16(l.d.name2[i:]))
	}
	for i := 0; i < len(l.d.name3); i += 2 {
		dst = append(dst, bitops.GetLE16(l.d.name3[i:]))
	}
	return dst
}

// LongNameBuffer assembles a long name from the LFN entries preceding a short
// entry, in the order they appear on disk (descending ordinals).
type LongNameBuffer struct {
	units    [maxLongDirentries * longDirentLen]uint16
	total    uint8 // Ordinal of the flagged last entry; 0 if no run is active.
	expected uint8 // Next expected ordinal, counting down.
	checksum uint8
}

// Reset discards any partially assembled run.
func (b *LongNameBuffer) Reset() {
	b.total = 0
	b.expected = 0
}

// Add feeds the next LFN entry of the directory to the assembler. Entries
// that break the required descending ordinal sequence or change checksums
// mid-run discard the accumulated state, mirroring how FAT drivers treat
// orphaned LFN fragments.
func (b *LongNameBuffer) Add(l Long) {
	ord := l.Ordinal()
	if ord == 0 || ord > maxLongDirentries {
		b.Reset()
		return
	}

	if l.IsLast() {
		b.total = ord
		b.expected = ord
		b.checksum = l.Checksum()
	} else if b.total == 0 || ord != b.expected || l.Checksum() != b.checksum {
		b.Reset()
		return
	}

	l.units(b.units[(ord-1)*longDirentLen : (ord-1)*longDirentLen])
	b.expected = ord - 1
}

// Take returns the assembled long name for the short entry whose raw name is
// shortName, and resets the buffer. It returns "" if no complete run with a
// matching checksum was assembled.
func (b *LongNameBuffer) Take(shortName []uint8) string {
	defer b.Reset()
	if b.total == 0 || b.expected != 0 {
		return ""
	}
	if Checksum(shortName) != b.checksum {
		return ""
	}

	n := int(b.total) * longDirentLen
	units := b.units[:n]
	// The name is terminated by 0x0000 and padded with 0xFFFF.
	for i, u := range units {
		if u == 0x0000 || u == 0xFFFF {
			units = units[:i]
			break
		}
	}
	return string(utf16.Decode(units))
}

// NumLongSlots returns how many LFN entries are needed to store the name.
func NumLongSlots(nameUCS2 []uint16) int {
	return (len(nameUCS2) + longDirentLen - 1) / longDirentLen
}

// EncodeLong produces the LFN entries for nameUCS2 in on-disk order:
// descending ordinals, the first carrying the longLastEntry flag. chksum is
// the checksum of the short name the run belongs to.
func EncodeLong(nameUCS2 []uint16, chksum uint8) [][EntrySize]byte {
	numSlots := NumLongSlots(nameUCS2)
	slots := make([][EntrySize]byte, numSlots)

	for i := 0; i < numSlots; i++ {
		ord := numSlots - i // On-disk order is highest ordinal first.
		slot := &slots[i]
		slot[0] = uint8(ord)
		if i == 0 {
			slot[0] |= longLastEntry
		}
		slot[11] = AttrLongname
		slot[13] = chksum

		// The byte offsets of the 13 UCS-2 units within the entry.
		offsets := [longDirentLen]int{1, 3, 5, 7, 9, 14, 16, 18, 20, 22, 24, 28, 30}
		base := (ord - 1) * longDirentLen
		for u := 0; u < longDirentLen; u++ {
			var v uint16
			switch {
			case base+u < len(nameUCS2):
				v = nameUCS2[base+u]
			case base+u == len(nameUCS2):
				v = 0x0000 // NULL terminator directly after the name.
			default:
				v = 0xFFFF // Padding after the terminator.
			}
			bitops.PutLE16(slot[offsets[u]:], v)
		}
	}
	return slots
}
