// Copyright 2026 The Thinfat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package thinfat

import (
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/thinfat/thinfat/block"
	"github.com/thinfat/thinfat/bootrecord"
	"github.com/thinfat/thinfat/direntry"
	"github.com/thinfat/thinfat/fat"
)

const entriesPerBlock = block.BlockSize / direntry.EntrySize

// entryLoc names one 32-byte directory entry slot on the device.
type entryLoc struct {
	blk block.Idx // Absolute device block.
	off uint32    // Byte offset of the entry within the block.
}

// foundEntry is the result of a directory search: the decoded entry, the
// location of its short entry, and the locations of any LFN entries, in the
// order they appear on disk.
type foundEntry struct {
	entry   direntry.Entry
	loc     entryLoc
	lfnLocs []entryLoc
}

// forEachRawEntry visits every 32-byte entry slot of the directory in storage
// order, including free slots, until fn reports done. dirCluster may be
// rootDirCluster. The raw slice aliases the block cache and is only valid for
// the duration of the call.
func (m *VolumeManager) forEachRawEntry(v *volumeSlot, dirCluster uint32, fn func(loc entryLoc, raw []byte) (done bool, err error)) error {
	if dirCluster == rootDirCluster && v.br.Type() == bootrecord.FAT16 {
		// The FAT16 root directory is a fixed block range with a fixed entry
		// count, not a cluster chain.
		startSector, numEntries := v.br.RootReservedInfo()
		for i := uint32(0); i < numEntries; i++ {
			blk := v.partStart + startSector + block.Idx(i/entriesPerBlock)
			off := (i % entriesPerBlock) * direntry.EntrySize
			buf, err := m.cache.Block(blk)
			if err != nil {
				return err
			}
			done, err := fn(entryLoc{blk: blk, off: off}, buf[off:off+direntry.EntrySize])
			if err != nil || done {
				return err
			}
		}
		return nil
	}

	cluster := dirCluster
	if cluster == rootDirCluster {
		cluster = v.br.RootCluster()
	}

	spc := v.br.SectorsPerCluster()
	for steps := uint32(0); ; steps++ {
		if steps > v.br.NumUsableClusters() {
			return errors.Wrapf(ErrCorruptFilesystem, "cyclic directory at cluster %#x", dirCluster)
		}
		for s := uint32(0); s < spc; s++ {
			blk := v.partStart + v.br.ClusterStartSector(cluster) + block.Idx(s)
			for off := uint32(0); off < block.BlockSize; off += direntry.EntrySize {
				buf, err := m.cache.Block(blk)
				if err != nil {
					return err
				}
				done, err := fn(entryLoc{blk: blk, off: off}, buf[off:off+direntry.EntrySize])
				if err != nil || done {
					return err
				}
			}
		}
		next, more, err := v.fat.Next(cluster)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
		cluster = next
	}
}

// findInDir scans the directory for a logical entry answering to name.
func (m *VolumeManager) findInDir(v *volumeSlot, dirCluster uint32, name string) (*foundEntry, error) {
	var lfnBuf direntry.LongNameBuffer
	var lfnLocs []entryLoc
	var found *foundEntry

	err := m.forEachRawEntry(v, dirCluster, func(loc entryLoc, raw []byte) (bool, error) {
		s := direntry.ShortAt(raw)
		switch {
		case s.IsLastFree():
			return true, nil
		case s.IsFree():
			lfnBuf.Reset()
			lfnLocs = lfnLocs[:0]
		case s.IsLongname():
			l := direntry.LongAt(raw)
			if l.IsLast() {
				lfnLocs = lfnLocs[:0]
			}
			lfnBuf.Add(l)
			lfnLocs = append(lfnLocs, loc)
		default:
			long := lfnBuf.Take(s.NameRaw())
			e := s.Decode(long)
			if e.IsVolumeLabel() {
				lfnLocs = lfnLocs[:0]
				return false, nil
			}
			if direntry.NameMatches(&e, name) {
				found = &foundEntry{
					entry:   e,
					loc:     loc,
					lfnLocs: append([]entryLoc{}, lfnLocs...),
				}
				return true, nil
			}
			lfnLocs = lfnLocs[:0]
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, errors.Wrapf(ErrNotFound, "%q", name)
	}
	return found, nil
}

// shortNameExists reports whether any entry of the directory already carries
// the exact 11-byte short name.
func (m *VolumeManager) shortNameExists(v *volumeSlot, dirCluster uint32) func(short [11]byte) (bool, error) {
	return func(short [11]byte) (bool, error) {
		taken := false
		err := m.forEachRawEntry(v, dirCluster, func(loc entryLoc, raw []byte) (bool, error) {
			s := direntry.ShortAt(raw)
			if s.IsLastFree() {
				return true, nil
			}
			if s.IsFree() || s.IsLongname() {
				return false, nil
			}
			nameRaw := s.NameRaw()
			for i := 0; i < len(short); i++ {
				if nameRaw[i] != short[i] {
					return false, nil
				}
			}
			taken = true
			return true, nil
		})
		return taken, err
	}
}

// extendDir grows a directory chain by one zeroed cluster, so entry iteration
// keeps terminating. The fixed FAT16 root cannot grow.
func (m *VolumeManager) extendDir(v *volumeSlot, dirCluster uint32) error {
	if dirCluster == rootDirCluster && v.br.Type() == bootrecord.FAT16 {
		return ErrDirectoryFull
	}

	cluster := dirCluster
	if cluster == rootDirCluster {
		cluster = v.br.RootCluster()
	}

	// Walk to the chain tail.
	for steps := uint32(0); ; steps++ {
		if steps > v.br.NumUsableClusters() {
			return errors.Wrapf(ErrCorruptFilesystem, "cyclic directory at cluster %#x", dirCluster)
		}
		next, more, err := v.fat.Next(cluster)
		if err != nil {
			return err
		}
		if !more {
			break
		}
		cluster = next
	}

	newCluster, err := v.fat.Extend(cluster)
	if err != nil {
		return err
	}
	return m.zeroCluster(v, newCluster)
}

// zeroCluster clears every block of a cluster without reading it first.
func (m *VolumeManager) zeroCluster(v *volumeSlot, cluster uint32) error {
	start := v.partStart + v.br.ClusterStartSector(cluster)
	for s := uint32(0); s < v.br.SectorsPerCluster(); s++ {
		if _, err := m.cache.BlockFresh(start + block.Idx(s)); err != nil {
			return err
		}
	}
	return nil
}

// createEntry writes a new logical directory entry (LFN run plus short entry)
// for name into the directory, with the given attributes and first cluster.
// It returns the location of the short entry.
func (m *VolumeManager) createEntry(v *volumeSlot, dirCluster uint32, name string, attr uint8, firstCluster uint32) (entryLoc, error) {
	short, longNeeded, err := direntry.MakeShortName(name, m.shortNameExists(v, dirCluster))
	if err != nil {
		return entryLoc{}, err
	}

	var lfnSlots [][direntry.EntrySize]byte
	if longNeeded {
		units, err := direntry.ToUCS2(name)
		if err != nil {
			return entryLoc{}, err
		}
		lfnSlots = direntry.EncodeLong(units, direntry.Checksum(short[:]))
	}
	need := len(lfnSlots) + 1

	glog.V(2).Infof("Creating %q as %q with %d entry slots", name, string(short[:]), need)

	// Find a contiguous run of free entry slots, growing the directory until
	// one exists. A grown cluster adds at least 16 slots, so at most two
	// growth rounds are ever needed for the longest possible name.
	var run []entryLoc
	for attempt := 0; ; attempt++ {
		run = run[:0]
		err := m.forEachRawEntry(v, dirCluster, func(loc entryLoc, raw []byte) (bool, error) {
			if direntry.ShortAt(raw).IsFree() {
				run = append(run, loc)
				return len(run) == need, nil
			}
			run = run[:0]
			return false, nil
		})
		if err != nil {
			return entryLoc{}, err
		}
		if len(run) == need {
			break
		}
		if attempt == 2 {
			return entryLoc{}, ErrDirectoryFull
		}
		if err := m.extendDir(v, dirCluster); err != nil {
			return entryLoc{}, err
		}
	}

	// Write the LFN entries in on-disk order, then the short entry.
	for i := range lfnSlots {
		buf, err := m.cache.BlockForWrite(run[i].blk)
		if err != nil {
			return entryLoc{}, err
		}
		copy(buf[run[i].off:run[i].off+direntry.EntrySize], lfnSlots[i][:])
	}

	shortLoc := run[need-1]
	buf, err := m.cache.BlockForWrite(shortLoc.blk)
	if err != nil {
		return entryLoc{}, err
	}
	now := m.clock.Now()
	s := direntry.ShortAt(buf[shortLoc.off : shortLoc.off+direntry.EntrySize])
	s.Clear()
	s.SetNameRaw(short[:])
	s.SetAttributes(attr)
	s.SetCluster(firstCluster)
	s.SetSize(0)
	s.SetCTime(now)
	s.SetMTime(now)
	s.SetATime(now)

	return shortLoc, nil
}

// writeDotEntries seeds the first block of a fresh subdirectory cluster with
// its "." and ".." entries. parentCluster is 0 when the parent is the root.
func (m *VolumeManager) writeDotEntries(v *volumeSlot, cluster, parentCluster uint32) error {
	blk := v.partStart + v.br.ClusterStartSector(cluster)
	buf, err := m.cache.BlockForWrite(blk)
	if err != nil {
		return err
	}
	now := m.clock.Now()

	dot := direntry.ShortAt(buf[0:direntry.EntrySize])
	dot.Clear()
	dot.SetNameRaw([]byte(".          "))
	dot.SetAttributes(direntry.AttrDirectory)
	dot.SetCluster(cluster)
	dot.SetCTime(now)
	dot.SetMTime(now)

	dotdot := direntry.ShortAt(buf[direntry.EntrySize : 2*direntry.EntrySize])
	dotdot.Clear()
	dotdot.SetNameRaw([]byte("..         "))
	dotdot.SetAttributes(direntry.AttrDirectory)
	dotdot.SetCluster(parentCluster)
	dotdot.SetCTime(now)
	dotdot.SetMTime(now)

	return nil
}

// OpenRootDir opens the root directory of the volume.
func (m *VolumeManager) OpenRootDir(h VolumeHandle) (DirHandle, error) {
	if _, err := m.volumeSlotFor(h); err != nil {
		return DirHandle{}, err
	}
	return m.registerDir(h, DirHandle{}, rootDirCluster)
}

func (m *VolumeManager) registerDir(volume VolumeHandle, parent DirHandle, cluster uint32) (DirHandle, error) {
	for i := range m.dirs {
		if !m.dirs[i].open {
			m.dirs[i] = dirSlot{
				open:    true,
				gen:     m.generation(),
				volume:  volume,
				parent:  parent,
				cluster: cluster,
			}
			return DirHandle{idx: uint8(i), gen: m.dirs[i].gen}, nil
		}
	}
	return DirHandle{}, ErrTooManyOpenDirs
}

// lookupDir resolves name within the directory to a directory cluster.
func (m *VolumeManager) lookupDir(v *volumeSlot, d *dirSlot, name string) (uint32, error) {
	if name == "." {
		return d.cluster, nil
	}
	found, err := m.findInDir(v, d.cluster, name)
	if err != nil {
		return 0, err
	}
	if !found.entry.IsDir() {
		return 0, errors.Wrapf(ErrNotADirectory, "%q", name)
	}
	// A ".." entry whose cluster is 0 names the root directory, which is
	// exactly the rootDirCluster sentinel.
	return found.entry.FirstCluster, nil
}

// OpenDir opens the named subdirectory of an open directory. Opening the same
// directory through several handles is permitted.
func (m *VolumeManager) OpenDir(h DirHandle, name string) (DirHandle, error) {
	d, err := m.dirSlotFor(h)
	if err != nil {
		return DirHandle{}, err
	}
	v, err := m.volumeSlotFor(d.volume)
	if err != nil {
		return DirHandle{}, err
	}
	cluster, err := m.lookupDir(v, d, name)
	if err != nil {
		return DirHandle{}, err
	}
	return m.registerDir(d.volume, h, cluster)
}

// ChangeDir re-points an open directory handle at the named subdirectory,
// in place.
func (m *VolumeManager) ChangeDir(h DirHandle, name string) error {
	d, err := m.dirSlotFor(h)
	if err != nil {
		return err
	}
	v, err := m.volumeSlotFor(d.volume)
	if err != nil {
		return err
	}
	if err := m.checkNoChildren(h); err != nil {
		return err
	}
	cluster, err := m.lookupDir(v, d, name)
	if err != nil {
		return err
	}
	d.cluster = cluster
	return nil
}

// CloseDir releases a directory handle. A directory with open children
// (files or subdirectories opened from it) cannot be closed.
func (m *VolumeManager) CloseDir(h DirHandle) error {
	d, err := m.dirSlotFor(h)
	if err != nil {
		return err
	}
	if err := m.checkNoChildren(h); err != nil {
		return err
	}
	d.open = false
	return nil
}

func (m *VolumeManager) checkNoChildren(h DirHandle) error {
	for i := range m.dirs {
		if m.dirs[i].open && m.dirs[i].parent == h {
			return ErrDirectoryStillInUse
		}
	}
	for i := range m.files {
		if m.files[i].open && m.files[i].parentDir == h {
			return ErrDirectoryStillInUse
		}
	}
	return nil
}

// IterateDir calls the visitor once for every logical entry of the directory,
// in storage order. Deleted entries, LFN fragments and the volume label are
// skipped. The visitor must not call back into the manager.
func (m *VolumeManager) IterateDir(h DirHandle, visit func(*direntry.Entry)) error {
	d, err := m.dirSlotFor(h)
	if err != nil {
		return err
	}
	v, err := m.volumeSlotFor(d.volume)
	if err != nil {
		return err
	}

	var lfnBuf direntry.LongNameBuffer
	return m.forEachRawEntry(v, d.cluster, func(loc entryLoc, raw []byte) (bool, error) {
		s := direntry.ShortAt(raw)
		switch {
		case s.IsLastFree():
			return true, nil
		case s.IsFree():
			lfnBuf.Reset()
		case s.IsLongname():
			lfnBuf.Add(direntry.LongAt(raw))
		default:
			e := s.Decode(lfnBuf.Take(s.NameRaw()))
			if !e.IsVolumeLabel() {
				visit(&e)
			}
		}
		return false, nil
	})
}

// StatInDir returns the decoded directory entry for the named file or
// subdirectory.
func (m *VolumeManager) StatInDir(h DirHandle, name string) (*direntry.Entry, error) {
	d, err := m.dirSlotFor(h)
	if err != nil {
		return nil, err
	}
	v, err := m.volumeSlotFor(d.volume)
	if err != nil {
		return nil, err
	}
	found, err := m.findInDir(v, d.cluster, name)
	if err != nil {
		return nil, err
	}
	return &found.entry, nil
}

// MakeDirInDir creates a named subdirectory, seeding its first cluster with
// "." and ".." entries.
func (m *VolumeManager) MakeDirInDir(h DirHandle, name string) error {
	d, err := m.dirSlotFor(h)
	if err != nil {
		return err
	}
	v, err := m.volumeSlotFor(d.volume)
	if err != nil {
		return err
	}
	if v.readonly {
		return ErrReadOnly
	}

	if _, err := m.findInDir(v, d.cluster, name); err == nil {
		return errors.Wrapf(ErrAlreadyExists, "%q", name)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	cluster, err := v.fat.Extend(fat.Free)
	if err != nil {
		return err
	}
	if err := m.zeroCluster(v, cluster); err != nil {
		return err
	}
	if err := m.writeDotEntries(v, cluster, d.cluster); err != nil {
		return err
	}

	if _, err := m.createEntry(v, d.cluster, name, direntry.AttrDirectory, cluster); err != nil {
		// Creating the entry failed; the fresh cluster would leak without
		// being returned to the free pool.
		v.fat.FreeChain(cluster)
		return err
	}
	return m.cache.Flush()
}

// DeleteFileInDir removes the named file from the directory and frees its
// cluster chain. Directories cannot be deleted.
func (m *VolumeManager) DeleteFileInDir(h DirHandle, name string) error {
	d, err := m.dirSlotFor(h)
	if err != nil {
		return err
	}
	v, err := m.volumeSlotFor(d.volume)
	if err != nil {
		return err
	}
	if v.readonly {
		return ErrReadOnly
	}

	found, err := m.findInDir(v, d.cluster, name)
	if err != nil {
		return err
	}
	if found.entry.IsDir() {
		return errors.Wrapf(ErrIsADirectory, "%q", name)
	}
	for i := range m.files {
		if m.files[i].open && m.files[i].sameFile(d.volume, found.loc.blk, found.loc.off) {
			return ErrFileAlreadyOpen
		}
	}

	// Mark the short entry and every LFN entry deleted.
	for _, loc := range append(found.lfnLocs, found.loc) {
		buf, err := m.cache.BlockForWrite(loc.blk)
		if err != nil {
			return err
		}
		direntry.ShortAt(buf[loc.off : loc.off+direntry.EntrySize]).SetFree()
	}

	if found.entry.FirstCluster != fat.Free {
		if err := v.fat.FreeChain(found.entry.FirstCluster); err != nil {
			return err
		}
	}
	return m.cache.Flush()
}
