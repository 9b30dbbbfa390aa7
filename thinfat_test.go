// Copyright 2026 The Thinfat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package thinfat_test

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/thinfat/thinfat"
	"github.com/thinfat/thinfat/block"
	"github.com/thinfat/thinfat/direntry"
	"github.com/thinfat/thinfat/testutil"
)

const readmeContents = "Hello, World!\nThis is a test.\nMore text follows here.\n"

func mount(t *testing.T, img *testutil.Image) (*thinfat.VolumeManager, thinfat.VolumeHandle) {
	t.Helper()
	mgr := thinfat.New(img.Dev, thinfat.ClockFunc(func() time.Time {
		return time.Date(2026, time.August, 6, 12, 30, 42, 0, time.UTC)
	}))
	vol, err := mgr.OpenVolume(0)
	if err != nil {
		t.Fatal("OpenVolume: ", err)
	}
	return mgr, vol
}

func TestReadFileFAT16(t *testing.T) {
	img := testutil.Format(testutil.DefaultFAT16())
	img.AddRootFile("README.TXT", []byte(readmeContents))

	mgr, vol := mount(t, img)
	root, err := mgr.OpenRootDir(vol)
	if err != nil {
		t.Fatal("OpenRootDir: ", err)
	}
	f, err := mgr.OpenFileInDir(root, "README.TXT", thinfat.ModeReadOnly)
	if err != nil {
		t.Fatal("OpenFileInDir: ", err)
	}

	buf := make([]byte, 32)
	n, err := mgr.Read(f, buf)
	if err != nil {
		t.Fatal("Read: ", err)
	}
	if n != 32 {
		t.Fatalf("Read returned %d bytes; want 32", n)
	}
	if got, want := string(buf), readmeContents[:32]; got != want {
		t.Errorf("Read = %q; want %q", got, want)
	}
	if eof, err := mgr.IsEOF(f); err != nil || eof {
		t.Errorf("IsEOF = %v, %v; want false, nil", eof, err)
	}

	if err := mgr.CloseFile(f); err != nil {
		t.Fatal("CloseFile: ", err)
	}
	if err := mgr.CloseDir(root); err != nil {
		t.Fatal("CloseDir: ", err)
	}
	if err := mgr.CloseVolume(vol); err != nil {
		t.Fatal("CloseVolume: ", err)
	}
}

func pattern(n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte(i % 16)
	}
	return buf
}

func roundtrip(t *testing.T, img *testutil.Image) {
	t.Helper()
	contents := pattern(4096)

	mgr, vol := mount(t, img)
	root, err := mgr.OpenRootDir(vol)
	if err != nil {
		t.Fatal("OpenRootDir: ", err)
	}

	f, err := mgr.OpenFileInDir(root, "TEST.BIN", thinfat.ModeReadWriteCreate)
	if err != nil {
		t.Fatal("create: ", err)
	}
	if n, err := mgr.Write(f, contents); err != nil || n != len(contents) {
		t.Fatalf("Write = %d, %v; want %d, nil", n, err, len(contents))
	}
	if err := mgr.CloseFile(f); err != nil {
		t.Fatal("CloseFile: ", err)
	}

	// Remount so nothing survives in memory only.
	if err := mgr.CloseDir(root); err != nil {
		t.Fatal("CloseDir: ", err)
	}
	if err := mgr.CloseVolume(vol); err != nil {
		t.Fatal("CloseVolume: ", err)
	}
	mgr, vol = mount(t, img)
	root, err = mgr.OpenRootDir(vol)
	if err != nil {
		t.Fatal("OpenRootDir: ", err)
	}

	f, err = mgr.OpenFileInDir(root, "TEST.BIN", thinfat.ModeReadOnly)
	if err != nil {
		t.Fatal("reopen: ", err)
	}
	if size, err := mgr.FileLength(f); err != nil || size != 4096 {
		t.Fatalf("FileLength = %d, %v; want 4096, nil", size, err)
	}
	back := make([]byte, 5000)
	n, err := mgr.Read(f, back)
	if err != nil {
		t.Fatal("Read: ", err)
	}
	if n != len(contents) {
		t.Fatalf("Read = %d bytes; want %d", n, len(contents))
	}
	if diff := cmp.Diff(contents, back[:n]); diff != "" {
		t.Errorf("contents mismatch (-want +got):\n%s", diff)
	}
	if err := mgr.CloseFile(f); err != nil {
		t.Fatal("CloseFile: ", err)
	}
}

func TestRoundtripFAT16(t *testing.T) {
	roundtrip(t, testutil.Format(testutil.DefaultFAT16()))
}

func TestRoundtripFAT32(t *testing.T) {
	roundtrip(t, testutil.Format(testutil.DefaultFAT32()))
}

func TestTruncate(t *testing.T) {
	img := testutil.Format(testutil.DefaultFAT16())
	mgr, vol := mount(t, img)
	root, err := mgr.OpenRootDir(vol)
	if err != nil {
		t.Fatal(err)
	}

	f, err := mgr.OpenFileInDir(root, "TEST.BIN", thinfat.ModeReadWriteCreate)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.Write(f, pattern(4096)); err != nil {
		t.Fatal(err)
	}
	if err := mgr.CloseFile(f); err != nil {
		t.Fatal(err)
	}

	// 4096 bytes in 2048-byte clusters is a two-cluster chain.
	freeBefore, err := mgr.FreeClusters(vol)
	if err != nil {
		t.Fatal(err)
	}

	f, err = mgr.OpenFileInDir(root, "TEST.BIN", thinfat.ModeReadWriteTruncate)
	if err != nil {
		t.Fatal(err)
	}
	if err := mgr.CloseFile(f); err != nil {
		t.Fatal(err)
	}

	f, err = mgr.OpenFileInDir(root, "TEST.BIN", thinfat.ModeReadOnly)
	if err != nil {
		t.Fatal(err)
	}
	if size, err := mgr.FileLength(f); err != nil || size != 0 {
		t.Fatalf("size after truncate = %d, %v; want 0, nil", size, err)
	}
	if err := mgr.CloseFile(f); err != nil {
		t.Fatal(err)
	}

	// The first cluster stays allocated; only the second was freed.
	freeAfter, err := mgr.FreeClusters(vol)
	if err != nil {
		t.Fatal(err)
	}
	if freeAfter != freeBefore+1 {
		t.Errorf("free clusters after truncate = %d; want %d", freeAfter, freeBefore+1)
	}
}

func TestLFNCreate(t *testing.T) {
	img := testutil.Format(testutil.DefaultFAT16())
	mgr, vol := mount(t, img)
	root, err := mgr.OpenRootDir(vol)
	if err != nil {
		t.Fatal(err)
	}
	if err := mgr.MakeDirInDir(root, "SUB"); err != nil {
		t.Fatal("MakeDirInDir: ", err)
	}
	sub, err := mgr.OpenDir(root, "SUB")
	if err != nil {
		t.Fatal("OpenDir: ", err)
	}

	f, err := mgr.OpenFileInDir(sub, "A Long Filename.txt", thinfat.ModeReadWriteCreate)
	if err != nil {
		t.Fatal("create: ", err)
	}
	if err := mgr.CloseFile(f); err != nil {
		t.Fatal(err)
	}

	// The long name must round-trip through iteration (which verifies the
	// stored checksum), backed by the expected generated short name.
	var names, shorts []string
	if err := mgr.IterateDir(sub, func(e *direntry.Entry) {
		names = append(names, e.Name)
		shorts = append(shorts, string(e.ShortName[:]))
	}); err != nil {
		t.Fatal("IterateDir: ", err)
	}
	if diff := cmp.Diff([]string{".", "..", "A Long Filename.txt"}, names); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
	if shorts[2] != "ALONGF~1TXT" {
		t.Errorf("short name = %q; want %q", shorts[2], "ALONGF~1TXT")
	}

	// Verify the raw on-disk layout: two LFN entries (sequence 0x42, 0x01)
	// directly before the 8.3 entry, all carrying the matching checksum.
	entry, err := mgr.StatInDir(root, "SUB")
	if err != nil {
		t.Fatal(err)
	}
	raw := make([]byte, block.BlockSize)
	if err := img.Dev.ReadBlocks(raw, img.ClusterBlock(entry.FirstCluster)); err != nil {
		t.Fatal(err)
	}
	// Slots 0 and 1 are "." and "..".
	want := direntry.Checksum([]byte("ALONGF~1TXT"))
	if got := raw[2*32]; got != 0x42 {
		t.Errorf("first LFN sequence byte = %#x; want 0x42", got)
	}
	if got := raw[3*32]; got != 0x01 {
		t.Errorf("second LFN sequence byte = %#x; want 0x01", got)
	}
	for slot := 2; slot <= 3; slot++ {
		if got := raw[slot*32+13]; got != want {
			t.Errorf("slot %d checksum = %#x; want %#x", slot, got, want)
		}
	}
	if got := string(raw[4*32:4*32+11]); got != "ALONGF~1TXT" {
		t.Errorf("8.3 entry name = %q; want %q", got, "ALONGF~1TXT")
	}
}

func TestShortNameCollision(t *testing.T) {
	img := testutil.Format(testutil.DefaultFAT16())
	mgr, vol := mount(t, img)
	root, err := mgr.OpenRootDir(vol)
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"A Long Filename.txt", "A Long Filename 2.txt"} {
		f, err := mgr.OpenFileInDir(root, name, thinfat.ModeReadWriteCreate)
		if err != nil {
			t.Fatalf("create %q: %v", name, err)
		}
		if err := mgr.CloseFile(f); err != nil {
			t.Fatal(err)
		}
	}

	shorts := map[string]string{}
	if err := mgr.IterateDir(root, func(e *direntry.Entry) {
		shorts[e.Name] = string(e.ShortName[:])
	}); err != nil {
		t.Fatal(err)
	}
	if got := shorts["A Long Filename.txt"]; got != "ALONGF~1TXT" {
		t.Errorf("first short name = %q; want ALONGF~1TXT", got)
	}
	if got := shorts["A Long Filename 2.txt"]; got != "ALONGF~2TXT" {
		t.Errorf("second short name = %q; want ALONGF~2TXT", got)
	}
}

func TestDirectorySpanningIteration(t *testing.T) {
	if testing.Short() {
		t.Skip("large FAT32 image")
	}
	img := testutil.Format(testutil.DefaultFAT32())
	mgr, vol := mount(t, img)
	root, err := mgr.OpenRootDir(vol)
	if err != nil {
		t.Fatal(err)
	}

	// 500 entries span many 512-byte clusters of the FAT32 root chain.
	const numFiles = 500
	for i := 0; i < numFiles; i++ {
		name := fmt.Sprintf("F%07d.TXT", i)
		f, err := mgr.OpenFileInDir(root, name, thinfat.ModeReadWriteCreate)
		if err != nil {
			t.Fatalf("create %q: %v", name, err)
		}
		if err := mgr.CloseFile(f); err != nil {
			t.Fatal(err)
		}
	}

	seen := map[string]int{}
	count := 0
	if err := mgr.IterateDir(root, func(e *direntry.Entry) {
		seen[e.Name]++
		count++
	}); err != nil {
		t.Fatal(err)
	}
	if count != numFiles {
		t.Errorf("iterated %d entries; want %d", count, numFiles)
	}
	for name, n := range seen {
		if n != 1 {
			t.Errorf("entry %q seen %d times", name, n)
		}
	}
}

func TestChainExtension(t *testing.T) {
	cfg := testutil.DefaultFAT16()
	cfg.SectorsPerCluster = 8 // 4096-byte clusters
	img := testutil.Format(cfg)
	mgr, vol := mount(t, img)
	root, err := mgr.OpenRootDir(vol)
	if err != nil {
		t.Fatal(err)
	}

	freeBefore, err := mgr.FreeClusters(vol)
	if err != nil {
		t.Fatal(err)
	}

	f, err := mgr.OpenFileInDir(root, "BIG.BIN", thinfat.ModeReadWriteCreate)
	if err != nil {
		t.Fatal(err)
	}
	if n, err := mgr.Write(f, pattern(9000)); err != nil || n != 9000 {
		t.Fatalf("Write = %d, %v; want 9000, nil", n, err)
	}
	if size, err := mgr.FileLength(f); err != nil || size != 9000 {
		t.Fatalf("FileLength = %d, %v; want 9000, nil", size, err)
	}
	if err := mgr.CloseFile(f); err != nil {
		t.Fatal(err)
	}

	freeAfter, err := mgr.FreeClusters(vol)
	if err != nil {
		t.Fatal(err)
	}
	if freeBefore-freeAfter != 3 {
		t.Errorf("9000 bytes consumed %d clusters; want 3", freeBefore-freeAfter)
	}
}

func TestFreeClusterConservation(t *testing.T) {
	img := testutil.Format(testutil.DefaultFAT16())
	mgr, vol := mount(t, img)
	root, err := mgr.OpenRootDir(vol)
	if err != nil {
		t.Fatal(err)
	}

	freeBefore, err := mgr.FreeClusters(vol)
	if err != nil {
		t.Fatal(err)
	}
	fatBefore := snapshotFATs(img)

	f, err := mgr.OpenFileInDir(root, "TEMP.BIN", thinfat.ModeReadWriteCreate)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.Write(f, pattern(10000)); err != nil {
		t.Fatal(err)
	}
	if err := mgr.CloseFile(f); err != nil {
		t.Fatal(err)
	}
	if err := mgr.DeleteFileInDir(root, "TEMP.BIN"); err != nil {
		t.Fatal(err)
	}

	freeAfter, err := mgr.FreeClusters(vol)
	if err != nil {
		t.Fatal(err)
	}
	if freeAfter != freeBefore {
		t.Errorf("free clusters = %d; want %d", freeAfter, freeBefore)
	}
	if diff := cmp.Diff(fatBefore, snapshotFATs(img)); diff != "" {
		t.Errorf("FAT contents did not return to the pre-create state (-want +got):\n%s", diff)
	}
}

// snapshotFATs copies both FAT regions, skipping only the first block of the
// first copy (its FAT[1] carries the dirty bit). The second copy's FAT[1] is
// included; the dirty bit does not change between snapshots of one mount.
func snapshotFATs(img *testutil.Image) []byte {
	size := int64(2*img.SectorsPerFAT-1) * block.BlockSize
	buf := make([]byte, size)
	img.Dev.ReadBlocks(buf, img.FATStart+1)
	return buf
}

// Both FAT copies must agree after any mutation.
func TestFATMirrorConsistency(t *testing.T) {
	img := testutil.Format(testutil.DefaultFAT16())
	mgr, vol := mount(t, img)
	root, err := mgr.OpenRootDir(vol)
	if err != nil {
		t.Fatal(err)
	}
	f, err := mgr.OpenFileInDir(root, "DATA.BIN", thinfat.ModeReadWriteCreate)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.Write(f, pattern(9000)); err != nil {
		t.Fatal(err)
	}
	if err := mgr.CloseFile(f); err != nil {
		t.Fatal(err)
	}
	if err := mgr.CloseDir(root); err != nil {
		t.Fatal(err)
	}
	if err := mgr.CloseVolume(vol); err != nil {
		t.Fatal(err)
	}

	fatSize := int64(img.SectorsPerFAT) * block.BlockSize
	fat0 := make([]byte, fatSize)
	fat1 := make([]byte, fatSize)
	img.Dev.ReadBlocks(fat0, img.FATStart)
	img.Dev.ReadBlocks(fat1, img.FATStart+block.Idx(img.SectorsPerFAT))
	if !bytes.Equal(fat0, fat1) {
		t.Error("FAT copies differ after mutation")
	}
}

func TestReadOnlyOpenIsBitIdentical(t *testing.T) {
	img := testutil.Format(testutil.DefaultFAT16())
	img.AddRootFile("README.TXT", []byte(readmeContents))

	before := make([]byte, len(img.Dev))
	copy(before, img.Dev)

	mgr := thinfat.New(img.Dev, nil)
	vol, err := mgr.OpenVolumeReadOnly(0)
	if err != nil {
		t.Fatal(err)
	}
	root, err := mgr.OpenRootDir(vol)
	if err != nil {
		t.Fatal(err)
	}
	f, err := mgr.OpenFileInDir(root, "README.TXT", thinfat.ModeReadOnly)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 16)
	if _, err := mgr.Read(f, buf); err != nil {
		t.Fatal(err)
	}
	if err := mgr.CloseFile(f); err != nil {
		t.Fatal(err)
	}
	if err := mgr.CloseDir(root); err != nil {
		t.Fatal(err)
	}
	if err := mgr.CloseVolume(vol); err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(before, img.Dev) {
		t.Error("read-only session modified the device")
	}
}

func TestAtMostOneWriter(t *testing.T) {
	img := testutil.Format(testutil.DefaultFAT16())
	img.AddRootFile("README.TXT", []byte(readmeContents))
	mgr, vol := mount(t, img)
	root, err := mgr.OpenRootDir(vol)
	if err != nil {
		t.Fatal(err)
	}

	w, err := mgr.OpenFileInDir(root, "README.TXT", thinfat.ModeReadWriteAppend)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.OpenFileInDir(root, "README.TXT", thinfat.ModeReadWriteAppend); !errors.Is(err, thinfat.ErrFileAlreadyOpen) {
		t.Errorf("second writable open = %v; want ErrFileAlreadyOpen", err)
	}
	if _, err := mgr.OpenFileInDir(root, "README.TXT", thinfat.ModeReadOnly); !errors.Is(err, thinfat.ErrFileAlreadyOpen) {
		t.Errorf("read open of a written file = %v; want ErrFileAlreadyOpen", err)
	}
	if err := mgr.CloseFile(w); err != nil {
		t.Fatal(err)
	}

	// Two read-only opens may coexist.
	r1, err := mgr.OpenFileInDir(root, "README.TXT", thinfat.ModeReadOnly)
	if err != nil {
		t.Fatal(err)
	}
	r2, err := mgr.OpenFileInDir(root, "README.TXT", thinfat.ModeReadOnly)
	if err != nil {
		t.Fatal(err)
	}
	mgr.CloseFile(r1)
	mgr.CloseFile(r2)
}

func TestDoubleCloseIsBadHandle(t *testing.T) {
	img := testutil.Format(testutil.DefaultFAT16())
	img.AddRootFile("README.TXT", []byte(readmeContents))
	mgr, vol := mount(t, img)
	root, err := mgr.OpenRootDir(vol)
	if err != nil {
		t.Fatal(err)
	}
	f, err := mgr.OpenFileInDir(root, "README.TXT", thinfat.ModeReadOnly)
	if err != nil {
		t.Fatal(err)
	}
	if err := mgr.CloseFile(f); err != nil {
		t.Fatal(err)
	}
	if err := mgr.CloseFile(f); !errors.Is(err, thinfat.ErrBadHandle) {
		t.Errorf("double close = %v; want ErrBadHandle", err)
	}
}

func TestHandleCapacity(t *testing.T) {
	img := testutil.Format(testutil.DefaultFAT16())
	mgr, vol := mount(t, img)
	root, err := mgr.OpenRootDir(vol)
	if err != nil {
		t.Fatal(err)
	}

	var handles []thinfat.FileHandle
	for i := 0; i < thinfat.MaxOpenFiles; i++ {
		f, err := mgr.OpenFileInDir(root, fmt.Sprintf("FILE%d.BIN", i), thinfat.ModeReadWriteCreate)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		handles = append(handles, f)
	}
	if _, err := mgr.OpenFileInDir(root, "ONEMORE.BIN", thinfat.ModeReadWriteCreate); !errors.Is(err, thinfat.ErrTooManyOpenFiles) {
		t.Errorf("over-capacity open = %v; want ErrTooManyOpenFiles", err)
	}
	for _, h := range handles {
		if err := mgr.CloseFile(h); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSeekPastEndThenWrite(t *testing.T) {
	img := testutil.Format(testutil.DefaultFAT16())
	mgr, vol := mount(t, img)
	root, err := mgr.OpenRootDir(vol)
	if err != nil {
		t.Fatal(err)
	}
	f, err := mgr.OpenFileInDir(root, "SPARSE.BIN", thinfat.ModeReadWriteCreate)
	if err != nil {
		t.Fatal(err)
	}

	// Seeking past the end does not extend the file.
	if err := mgr.SeekFromStart(f, 5000); err != nil {
		t.Fatal(err)
	}
	if size, _ := mgr.FileLength(f); size != 0 {
		t.Errorf("size after seek = %d; want 0", size)
	}

	// The next write does. The bytes in the gap are unspecified; only the
	// written range is checked.
	if _, err := mgr.Write(f, []byte("tail")); err != nil {
		t.Fatal(err)
	}
	if size, _ := mgr.FileLength(f); size != 5004 {
		t.Errorf("size after write = %d; want 5004", size)
	}
	if err := mgr.SeekFromStart(f, 5000); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 4)
	if n, err := mgr.Read(f, buf); err != nil || n != 4 {
		t.Fatalf("Read = %d, %v; want 4, nil", n, err)
	}
	if string(buf) != "tail" {
		t.Errorf("read back %q; want %q", buf, "tail")
	}
	if err := mgr.CloseFile(f); err != nil {
		t.Fatal(err)
	}
}

func TestDirectoryLifetimes(t *testing.T) {
	img := testutil.Format(testutil.DefaultFAT16())
	mgr, vol := mount(t, img)
	root, err := mgr.OpenRootDir(vol)
	if err != nil {
		t.Fatal(err)
	}
	if err := mgr.MakeDirInDir(root, "SUB"); err != nil {
		t.Fatal(err)
	}
	sub, err := mgr.OpenDir(root, "SUB")
	if err != nil {
		t.Fatal(err)
	}

	// A directory with open children cannot be closed; neither can the
	// volume while handles remain.
	if err := mgr.CloseDir(root); !errors.Is(err, thinfat.ErrDirectoryStillInUse) {
		t.Errorf("CloseDir(root) = %v; want ErrDirectoryStillInUse", err)
	}
	if err := mgr.CloseVolume(vol); !errors.Is(err, thinfat.ErrVolumeStillInUse) {
		t.Errorf("CloseVolume = %v; want ErrVolumeStillInUse", err)
	}

	if err := mgr.CloseDir(sub); err != nil {
		t.Fatal(err)
	}
	if err := mgr.CloseDir(root); err != nil {
		t.Fatal(err)
	}
	if err := mgr.CloseVolume(vol); err != nil {
		t.Fatal(err)
	}

	if _, _, err := mgr.Free(); err != nil {
		t.Fatal("Free: ", err)
	}
}

func TestDeleteOpenFile(t *testing.T) {
	img := testutil.Format(testutil.DefaultFAT16())
	mgr, vol := mount(t, img)
	root, err := mgr.OpenRootDir(vol)
	if err != nil {
		t.Fatal(err)
	}
	f, err := mgr.OpenFileInDir(root, "HELD.BIN", thinfat.ModeReadWriteCreate)
	if err != nil {
		t.Fatal(err)
	}
	if err := mgr.DeleteFileInDir(root, "HELD.BIN"); !errors.Is(err, thinfat.ErrFileAlreadyOpen) {
		t.Errorf("delete of open file = %v; want ErrFileAlreadyOpen", err)
	}
	if err := mgr.CloseFile(f); err != nil {
		t.Fatal(err)
	}
	if err := mgr.DeleteFileInDir(root, "HELD.BIN"); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.StatInDir(root, "HELD.BIN"); !errors.Is(err, thinfat.ErrNotFound) {
		t.Errorf("stat after delete = %v; want ErrNotFound", err)
	}
}

func TestSubdirectoriesAndChangeDir(t *testing.T) {
	img := testutil.Format(testutil.DefaultFAT16())
	mgr, vol := mount(t, img)
	root, err := mgr.OpenRootDir(vol)
	if err != nil {
		t.Fatal(err)
	}
	if err := mgr.MakeDirInDir(root, "A"); err != nil {
		t.Fatal(err)
	}

	dir, err := mgr.OpenRootDir(vol)
	if err != nil {
		t.Fatal(err)
	}
	if err := mgr.ChangeDir(dir, "A"); err != nil {
		t.Fatal(err)
	}
	if err := mgr.MakeDirInDir(dir, "B"); err != nil {
		t.Fatal(err)
	}
	if err := mgr.ChangeDir(dir, "B"); err != nil {
		t.Fatal(err)
	}

	f, err := mgr.OpenFileInDir(dir, "DEEP.TXT", thinfat.ModeReadWriteCreate)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.Write(f, []byte("deep")); err != nil {
		t.Fatal(err)
	}
	if err := mgr.CloseFile(f); err != nil {
		t.Fatal(err)
	}

	// Walk back up through "..": B -> A -> root.
	if err := mgr.ChangeDir(dir, ".."); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.StatInDir(dir, "B"); err != nil {
		t.Errorf("after cd ..: B not found: %v", err)
	}
	if err := mgr.ChangeDir(dir, ".."); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.StatInDir(dir, "A"); err != nil {
		t.Errorf("after second cd ..: A not found: %v", err)
	}

	if err := mgr.CloseDir(dir); err != nil {
		t.Fatal(err)
	}
}

func TestFAT16RootDirectoryFull(t *testing.T) {
	if testing.Short() {
		t.Skip("fills the whole root directory")
	}
	img := testutil.Format(testutil.DefaultFAT16())
	mgr, vol := mount(t, img)
	root, err := mgr.OpenRootDir(vol)
	if err != nil {
		t.Fatal(err)
	}

	// The FAT16 root holds 512 fixed entries and cannot grow.
	for i := 0; i < 512; i++ {
		name := fmt.Sprintf("R%07d.BIN", i)
		f, err := mgr.OpenFileInDir(root, name, thinfat.ModeReadWriteCreate)
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if err := mgr.CloseFile(f); err != nil {
			t.Fatal(err)
		}
	}
	_, err = mgr.OpenFileInDir(root, "OVERFLOW.BIN", thinfat.ModeReadWriteCreate)
	if !errors.Is(err, thinfat.ErrDirectoryFull) {
		t.Errorf("513th root entry = %v; want ErrDirectoryFull", err)
	}
}

func TestWrapperRoundtrip(t *testing.T) {
	img := testutil.Format(testutil.DefaultFAT16())
	mgr := thinfat.New(img.Dev, nil)

	vol, err := mgr.Volume(0)
	if err != nil {
		t.Fatal(err)
	}
	root, err := vol.Root()
	if err != nil {
		t.Fatal(err)
	}
	f, err := root.File("HELLO.TXT", thinfat.ModeReadWriteCreate)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte("hello wrappers")); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 14)
	if _, err := f.Read(buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "hello wrappers" {
		t.Errorf("read back %q", buf)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if err := root.Close(); err != nil {
		t.Fatal(err)
	}
	if err := vol.Close(); err != nil {
		t.Fatal(err)
	}
}
