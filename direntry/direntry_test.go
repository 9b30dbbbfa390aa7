// Copyright 2026 The Thinfat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package direntry

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestChecksum(t *testing.T) {
	// Checksums verified against the reference algorithm in the FAT
	// specification.
	tests := []struct {
		name string
		want uint8
	}{
		{"ALONGF~1TXT", checksumRef("ALONGF~1TXT")},
		{"README  TXT", checksumRef("README  TXT")},
		{"A          ", checksumRef("A          ")},
	}
	for _, tt := range tests {
		if got := Checksum([]byte(tt.name)); got != tt.want {
			t.Errorf("Checksum(%q) = %#x; want %#x", tt.name, got, tt.want)
		}
	}
}

// checksumRef is an independent transliteration of the documented algorithm.
func checksumRef(name string) uint8 {
	var sum uint8
	for i := 0; i < len(name); i++ {
		if sum&1 != 0 {
			sum = 0x80 + (sum >> 1) + name[i]
		} else {
			sum = (sum >> 1) + name[i]
		}
	}
	return sum
}

func TestShortNameRendering(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"README  TXT", "README.TXT"},
		{"NOEXT      ", "NOEXT"},
		{"A       B  ", "A.B"},
		{".          ", "."},
		{"..         ", ".."},
	}
	for _, tt := range tests {
		if got := shortNameToString([]byte(tt.raw)); got != tt.want {
			t.Errorf("shortNameToString(%q) = %q; want %q", tt.raw, got, tt.want)
		}
	}
}

func noCollision([11]byte) (bool, error) { return false, nil }

func TestMakeShortName(t *testing.T) {
	tests := []struct {
		name       string
		want       string
		longNeeded bool
	}{
		{"README.TXT", "README  TXT", false},
		{"A Long Filename.txt", "ALONGF~1TXT", true},
		{"lower.txt", "LOWER~1 TXT", true},
		{"VeryLongBase.TXT", "VERYLO~1TXT", true},
		{"NOEXT", "NOEXT      ", false},
	}
	for _, tt := range tests {
		short, longNeeded, err := MakeShortName(tt.name, noCollision)
		if err != nil {
			t.Errorf("MakeShortName(%q): %v", tt.name, err)
			continue
		}
		if string(short[:]) != tt.want {
			t.Errorf("MakeShortName(%q) = %q; want %q", tt.name, short, tt.want)
		}
		if longNeeded != tt.longNeeded {
			t.Errorf("MakeShortName(%q) longNeeded = %v; want %v", tt.name, longNeeded, tt.longNeeded)
		}
	}
}

func TestMakeShortNameCollisions(t *testing.T) {
	taken := map[string]bool{"ALONGF~1TXT": true, "ALONGF~2TXT": true}
	short, longNeeded, err := MakeShortName("A Long Filename.txt", func(s [11]byte) (bool, error) {
		return taken[string(s[:])], nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if string(short[:]) != "ALONGF~3TXT" {
		t.Errorf("short = %q; want ALONGF~3TXT", short)
	}
	if !longNeeded {
		t.Error("longNeeded = false; want true")
	}
}

func TestMakeShortNameInvalid(t *testing.T) {
	for _, name := range []string{"", "   ", "...", "bad:colon", "bad\x01ctl", "question?"} {
		if _, _, err := MakeShortName(name, noCollision); err == nil {
			t.Errorf("MakeShortName(%q) succeeded; want error", name)
		}
	}
}

func TestToUCS2(t *testing.T) {
	if _, err := ToUCS2("emoji-\U0001F600.txt"); err == nil {
		t.Error("non-BMP codepoint accepted")
	}
	if _, err := ToUCS2("bad*star"); err == nil {
		t.Error("disallowed character accepted")
	}
	units, err := ToUCS2("Grüße.txt")
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 9 {
		t.Errorf("len(units) = %d; want 9", len(units))
	}
}

func TestEncodeLongLayout(t *testing.T) {
	units, err := ToUCS2("A Long Filename.txt")
	if err != nil {
		t.Fatal(err)
	}
	sum := Checksum([]byte("ALONGF~1TXT"))
	slots := EncodeLong(units, sum)
	if len(slots) != 2 {
		t.Fatalf("len(slots) = %d; want 2", len(slots))
	}
	if slots[0][0] != 0x42 {
		t.Errorf("first slot sequence = %#x; want 0x42", slots[0][0])
	}
	if slots[1][0] != 0x01 {
		t.Errorf("second slot sequence = %#x; want 0x01", slots[1][0])
	}
	for i, slot := range slots {
		if slot[11] != AttrLongname {
			t.Errorf("slot %d attributes = %#x; want %#x", i, slot[11], AttrLongname)
		}
		if slot[13] != sum {
			t.Errorf("slot %d checksum = %#x; want %#x", i, slot[13], sum)
		}
	}
}

func TestLongNameRoundtrip(t *testing.T) {
	names := []string{
		"A Long Filename.txt",
		"exactly13char",            // One full LFN entry, no terminator.
		"ends-at-twenty-six-chars!", // 25 units: the terminator takes the last unit, no padding.
		"Grüße und Umlaute.dat",
	}
	for _, name := range names {
		units, err := ToUCS2(name)
		if err != nil {
			t.Fatalf("ToUCS2(%q): %v", name, err)
		}
		short, _, err := MakeShortName(name, noCollision)
		if err != nil {
			t.Fatalf("MakeShortName(%q): %v", name, err)
		}
		slots := EncodeLong(units, Checksum(short[:]))

		var buf LongNameBuffer
		for _, slot := range slots {
			s := slot
			buf.Add(LongAt(s[:]))
		}
		if got := buf.Take(short[:]); got != name {
			t.Errorf("assembled %q; want %q", got, name)
		}
	}
}

func TestLongNameBufferRejectsBrokenRuns(t *testing.T) {
	units, _ := ToUCS2("A Long Filename.txt")
	short, _, _ := MakeShortName("A Long Filename.txt", noCollision)
	slots := EncodeLong(units, Checksum(short[:]))

	// Feeding only the tail of the run must not produce a name.
	var buf LongNameBuffer
	s := slots[1]
	buf.Add(LongAt(s[:]))
	if got := buf.Take(short[:]); got != "" {
		t.Errorf("partial run assembled %q; want \"\"", got)
	}

	// A checksum mismatch must not produce a name.
	for _, slot := range slots {
		s := slot
		buf.Add(LongAt(s[:]))
	}
	wrong := [11]byte{'X', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '}
	if got := buf.Take(wrong[:]); got != "" {
		t.Errorf("checksum mismatch assembled %q; want \"\"", got)
	}
}

func TestShortEntryAccessors(t *testing.T) {
	raw := make([]byte, EntrySize)
	s := ShortAt(raw)
	s.SetNameRaw([]byte("README  TXT"))
	s.SetAttributes(AttrArchive)
	s.SetCluster(0x00120034)
	s.SetSize(54321)
	stamp := time.Date(2026, time.August, 6, 12, 30, 42, 0, time.UTC)
	s.SetMTime(stamp)

	if got := s.Name(); got != "README.TXT" {
		t.Errorf("Name = %q", got)
	}
	if got := s.Cluster(); got != 0x00120034 {
		t.Errorf("Cluster = %#x", got)
	}
	if got := s.Size(); got != 54321 {
		t.Errorf("Size = %d", got)
	}
	// FAT stamps have two-second resolution.
	want := time.Date(2026, time.August, 6, 12, 30, 42, 0, time.UTC)
	if got := s.MTime(); !got.Equal(want) {
		t.Errorf("MTime = %v; want %v", got, want)
	}

	e := s.Decode("")
	wantEntry := Entry{
		Name:         "README.TXT",
		Attributes:   AttrArchive,
		FirstCluster: 0x00120034,
		Size:         54321,
		MTime:        want,
	}
	copy(wantEntry.ShortName[:], "README  TXT")
	if diff := cmp.Diff(wantEntry, e); diff != "" {
		t.Errorf("Decode mismatch (-want +got):\n%s", diff)
	}
}

func TestFreeMarkers(t *testing.T) {
	raw := make([]byte, EntrySize)
	s := ShortAt(raw)
	if !s.IsLastFree() || !s.IsFree() {
		t.Error("zeroed entry should be last-free and free")
	}
	s.SetNameRaw([]byte("README  TXT"))
	if s.IsFree() {
		t.Error("named entry reported free")
	}
	s.SetFree()
	if !s.IsFree() || s.IsLastFree() {
		t.Error("deleted entry should be free but not last-free")
	}
}
