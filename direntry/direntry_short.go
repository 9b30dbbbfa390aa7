// Copyright 2026 The Thinfat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package direntry

import (
	"time"
	"unsafe"

	"github.com/thinfat/thinfat/bitops"
)

// Format of the time fields.
const (
	timeSecondMask  = 0x1F // seconds divided by 2
	timeSecondShift = 0
	timeMinuteMask  = 0x7E0
	timeMinuteShift = 5
	timeHourMask    = 0xF800
	timeHourShift   = 11
)

// Format of the date fields.
const (
	dateDayMask    = 0x1F
	dateDayShift   = 0
	dateMonthMask  = 0x1E0
	dateMonthShift = 5
	dateYearMask   = 0xFE00 // year - 1980
	dateYearShift  = 9
)

// shortDirentry describes an on-disk short directory entry.
type shortDirentry struct {
	dosName         [11]uint8 // Filename, blank filled
	attributes      uint8     // File attributes
	reserved        uint8     // Windows NT specific VFAT lower case flags
	createHundredth uint8     // Hundredth of seconds in CTime (optional)
	createTime      [2]uint8  // Create time (optional)
	createDate      [2]uint8  // Create date (optional)
	accessDate      [2]uint8  // Access date (optional)
	clustHi         [2]uint8  // High bytes of cluster number (0 for FAT16)
	writeTime       [2]uint8  // Last update time
	writeDate       [2]uint8  // Last update date
	clustLo         [2]uint8  // Starting cluster of file
	fileSize        [4]uint8  // Size of file in bytes
}

// Short is a view over the 32 bytes of a short directory entry.
type Short struct {
	d *shortDirentry
}

// ShortAt returns a Short view over buf, which must hold at least EntrySize
// bytes. The view aliases buf.
func ShortAt(buf []byte) Short {
	if len(buf) < EntrySize {
		panic("Buffer is smaller than a dirent")
	}
	return Short{(*shortDirentry)(unsafe.Pointer(&buf[0]))}
}

// IsFree reports whether the entry slot is unused.
func (s Short) IsFree() bool {
	return s.d.dosName[0] == charFree || s.IsLastFree()
}

// IsLastFree reports whether the entry slot is unused and terminates the
// directory: every following slot is also unused.
func (s Short) IsLastFree() bool {
	return s.d.dosName[0] == charLastFree
}

// SetFree marks the entry slot deleted.
func (s Short) SetFree() {
	s.d.dosName[0] = charFree
}

// IsLongname reports whether the slot actually holds a long-filename entry.
func (s Short) IsLongname() bool {
	return s.d.attributes&AttrLongnameMask == AttrLongname
}

// NameRaw returns the 11 raw bytes of the 8.3 name.
func (s Short) NameRaw() []uint8 {
	return s.d.dosName[:]
}

// SetNameRaw stores the 11 raw bytes of the 8.3 name.
func (s Short) SetNameRaw(name []uint8) {
	if len(name) != dosNameLen {
		panic("Invalid name length")
	}
	copy(s.d.dosName[:], name)
}

// Name returns the 8.3 name rendered as a string ("FOO.TXT"), or "" for a
// free slot.
func (s Short) Name() string {
	return shortNameToString(s.d.dosName[:])
}

// Attributes returns the attribute bits.
func (s Short) Attributes() uint8 {
	return s.d.attributes
}

// SetAttributes stores the attribute bits.
func (s Short) SetAttributes(attr uint8) {
	s.d.attributes = attr
}

// Cluster returns the entry's first cluster number.
func (s Short) Cluster() uint32 {
	return uint32(bitops.GetLE16(s.d.clustHi[:]))<<16 | uint32(bitops.GetLE16(s.d.clustLo[:]))
}

// SetCluster stores the entry's first cluster number.
func (s Short) SetCluster(cluster uint32) {
	bitops.PutLE16(s.d.clustHi[:], uint16(cluster>>16))
	bitops.PutLE16(s.d.clustLo[:], uint16(cluster))
}

// Size returns the file size in bytes.
func (s Short) Size() uint32 {
	return bitops.GetLE32(s.d.fileSize[:])
}

// SetSize stores the file size in bytes.
func (s Short) SetSize(size uint32) {
	bitops.PutLE32(s.d.fileSize[:], size)
}

func decodeStamp(date, tim uint16) time.Time {
	year := int((date&dateYearMask)>>dateYearShift) + 1980
	month := time.Month((date & dateMonthMask) >> dateMonthShift)
	day := int((date & dateDayMask) >> dateDayShift)
	hour := int((tim & timeHourMask) >> timeHourShift)
	minute := int((tim & timeMinuteMask) >> timeMinuteShift)
	second := int((tim&timeSecondMask)>>timeSecondShift) * 2

	if month == 0 || day == 0 {
		return time.Time{}
	}
	return time.Date(year, month, day, hour, minute, second, 0, time.UTC)
}

func encodeStamp(t time.Time) (date, tim uint16) {
	if t.Year() < 1980 {
		t = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	} else if t.Year() > 2107 {
		// FAT stops tracking time after the year 2107.
		t = time.Date(2107, 12, 31, 23, 59, 58, 0, time.UTC)
	}

	date |= (uint16(t.Year()-1980) << dateYearShift) & dateYearMask
	date |= (uint16(t.Month()) << dateMonthShift) & dateMonthMask
	date |= (uint16(t.Day()) << dateDayShift) & dateDayMask
	tim |= (uint16(t.Hour()) << timeHourShift) & timeHourMask
	tim |= (uint16(t.Minute()) << timeMinuteShift) & timeMinuteMask
	tim |= (uint16(t.Second()/2) << timeSecondShift) & timeSecondMask
	return date, tim
}

// MTime returns the last-modified stamp.
func (s Short) MTime() time.Time {
	return decodeStamp(bitops.GetLE16(s.d.writeDate[:]), bitops.GetLE16(s.d.writeTime[:]))
}

// SetMTime stores the last-modified stamp.
func (s Short) SetMTime(t time.Time) {
	date, tim := encodeStamp(t)
	bitops.PutLE16(s.d.writeDate[:], date)
	bitops.PutLE16(s.d.writeTime[:], tim)
}

// CTime returns the creation stamp.
func (s Short) CTime() time.Time {
	return decodeStamp(bitops.GetLE16(s.d.createDate[:]), bitops.GetLE16(s.d.createTime[:]))
}

// SetCTime stores the creation stamp.
func (s Short) SetCTime(t time.Time) {
	date, tim := encodeStamp(t)
	bitops.PutLE16(s.d.createDate[:], date)
	bitops.PutLE16(s.d.createTime[:], tim)
}

// SetATime stores the last-access date. FAT keeps no access time of day.
func (s Short) SetATime(t time.Time) {
	date, _ := encodeStamp(t)
	bitops.PutLE16(s.d.accessDate[:], date)
}

// Clear zeroes the whole entry slot.
func (s Short) Clear() {
	*s.d = shortDirentry{}
}

// Decode assembles the logical Entry for this slot, attaching longName if the
// preceding LFN run produced one.
func (s Short) Decode(longName string) Entry {
	e := Entry{
		Name:         longName,
		Attributes:   s.d.attributes,
		FirstCluster: s.Cluster(),
		Size:         s.Size(),
		MTime:        s.MTime(),
		CTime:        s.CTime(),
	}
	copy(e.ShortName[:], s.d.dosName[:])
	if e.Name == "" {
		e.Name = s.Name()
	}
	return e
}
