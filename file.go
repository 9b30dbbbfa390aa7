// Copyright 2026 The Thinfat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package thinfat

import (
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/thinfat/thinfat/block"
	"github.com/thinfat/thinfat/direntry"
	"github.com/thinfat/thinfat/fat"
)

// maxFileSize is the fundamental FAT limit on file sizes.
const maxFileSize = 0xFFFFFFFF

// OpenFileInDir opens or creates the named file in an open directory,
// according to mode.
func (m *VolumeManager) OpenFileInDir(h DirHandle, name string, mode Mode) (FileHandle, error) {
	d, err := m.dirSlotFor(h)
	if err != nil {
		return FileHandle{}, err
	}
	v, err := m.volumeSlotFor(d.volume)
	if err != nil {
		return FileHandle{}, err
	}
	if v.readonly && mode.writable() {
		return FileHandle{}, ErrReadOnly
	}

	slot := -1
	for i := range m.files {
		if !m.files[i].open {
			slot = i
			break
		}
	}
	if slot < 0 {
		return FileHandle{}, ErrTooManyOpenFiles
	}

	var loc entryLoc
	var firstCluster, size uint32

	found, err := m.findInDir(v, d.cluster, name)
	switch {
	case err == nil:
		if mode == ModeReadWriteCreate {
			return FileHandle{}, errors.Wrapf(ErrAlreadyExists, "%q", name)
		}
		if found.entry.IsDir() {
			return FileHandle{}, errors.Wrapf(ErrIsADirectory, "%q", name)
		}
		loc = found.loc
		firstCluster = found.entry.FirstCluster
		size = found.entry.Size
	case errors.Is(err, ErrNotFound) && mode.creates():
		loc, err = m.createEntry(v, d.cluster, name, direntry.AttrArchive, fat.Free)
		if err != nil {
			return FileHandle{}, err
		}
		if err := m.cache.Flush(); err != nil {
			return FileHandle{}, err
		}
	default:
		return FileHandle{}, err
	}

	// At most one writer per file; any number of readers otherwise.
	for i := range m.files {
		f := &m.files[i]
		if f.open && f.sameFile(d.volume, loc.blk, loc.off) {
			if mode.writable() || f.mode.writable() {
				return FileHandle{}, ErrFileAlreadyOpen
			}
		}
	}

	f := &m.files[slot]
	*f = fileSlot{
		open:         true,
		gen:          m.generation(),
		volume:       d.volume,
		parentDir:    h,
		mode:         mode,
		startCluster: firstCluster,
		size:         size,
		entryBlock:   loc.blk,
		entryOffset:  loc.off,
	}
	if f.numClusters, err = v.fat.ChainLength(f.startCluster); err != nil {
		f.open = false
		return FileHandle{}, err
	}

	if mode.truncates() {
		if err := m.truncate(v, f); err != nil {
			f.open = false
			return FileHandle{}, err
		}
	}
	if mode.appends() {
		f.offset = f.size
	}

	glog.V(1).Infof("Opened %q (%s): %d bytes in %d clusters", name, mode, f.size, f.numClusters)
	return FileHandle{idx: uint8(slot), gen: f.gen}, nil
}

// truncate frees every cluster of the file except the first, which is left
// as a one-cluster chain, and resets the size to zero.
func (m *VolumeManager) truncate(v *volumeSlot, f *fileSlot) error {
	if f.startCluster != fat.Free {
		next, more, err := v.fat.Next(f.startCluster)
		if err != nil {
			return err
		}
		if more {
			if err := v.fat.FreeChain(next); err != nil {
				return err
			}
			if err := v.fat.Set(v.fat.EOFValue(), f.startCluster); err != nil {
				return err
			}
		}
		f.numClusters = 1
	}
	f.size = 0
	f.offset = 0
	f.pos = clusterPos{}
	f.dirty = true
	return nil
}

// TruncateFile frees every cluster of the open file except the first and
// resets its size to zero, without closing the handle.
func (m *VolumeManager) TruncateFile(h FileHandle) error {
	f, err := m.fileSlotFor(h)
	if err != nil {
		return err
	}
	v, err := m.volumeSlotFor(f.volume)
	if err != nil {
		return err
	}
	if !f.mode.writable() {
		return ErrReadOnly
	}
	return m.truncate(v, f)
}

// walkTo returns the cluster holding the given cluster index of the file,
// reusing the slot's last-touched position for sequential access.
func (m *VolumeManager) walkTo(v *volumeSlot, f *fileSlot, index uint32) (uint32, error) {
	pos := f.pos
	if !pos.valid || pos.index > index {
		pos = clusterPos{valid: true, cluster: f.startCluster, index: 0}
	}
	for pos.index < index {
		next, more, err := v.fat.Next(pos.cluster)
		if err != nil {
			return 0, err
		}
		if !more {
			return 0, errors.Wrapf(ErrCorruptFilesystem, "chain ends at index %d, want %d", pos.index, index)
		}
		pos.cluster = next
		pos.index++
	}
	f.pos = pos
	return pos.cluster, nil
}

// blockFor maps a file byte offset to the absolute device block holding it
// and the byte offset within that block.
func (m *VolumeManager) blockFor(v *volumeSlot, f *fileSlot, offset uint32) (block.Idx, uint32, error) {
	clusterBytes := v.br.ClusterSize()
	cluster, err := m.walkTo(v, f, offset/clusterBytes)
	if err != nil {
		return 0, 0, err
	}
	sectorInCluster := (offset / block.BlockSize) % v.br.SectorsPerCluster()
	blk := v.partStart + v.br.ClusterStartSector(cluster) + block.Idx(sectorInCluster)
	return blk, offset % block.BlockSize, nil
}

// Read reads up to len(buf) bytes from the file at its current offset. At
// end of file it returns 0 bytes and a nil error; short reads happen only at
// end of file.
func (m *VolumeManager) Read(h FileHandle, buf []byte) (int, error) {
	f, err := m.fileSlotFor(h)
	if err != nil {
		return 0, err
	}
	v, err := m.volumeSlotFor(f.volume)
	if err != nil {
		return 0, err
	}

	if f.offset >= f.size {
		return 0, nil
	}
	limit := uint32(len(buf))
	if remaining := f.size - f.offset; remaining < limit {
		limit = remaining
	}

	n := uint32(0)
	for n < limit {
		blk, byteInBlock, err := m.blockFor(v, f, f.offset)
		if err != nil {
			return int(n), err
		}
		b, err := m.cache.Block(blk)
		if err != nil {
			return int(n), err
		}
		chunk := block.BlockSize - byteInBlock
		if limit-n < chunk {
			chunk = limit - n
		}
		copy(buf[n:], b[byteInBlock:byteInBlock+chunk])
		n += chunk
		f.offset += chunk
	}
	return int(n), nil
}

// Write writes len(buf) bytes to the file at its current offset, allocating
// clusters as needed. Writing past the current size extends the file; bytes
// between the old size and a seeked-past-end offset are left as they were on
// disk.
func (m *VolumeManager) Write(h FileHandle, buf []byte) (int, error) {
	f, err := m.fileSlotFor(h)
	if err != nil {
		return 0, err
	}
	v, err := m.volumeSlotFor(f.volume)
	if err != nil {
		return 0, err
	}
	if !f.mode.writable() {
		return 0, ErrReadOnly
	}
	if len(buf) == 0 {
		return 0, nil
	}
	if uint64(f.offset)+uint64(len(buf)) > maxFileSize {
		return 0, errors.Wrap(ErrInvalidOffset, "write exceeds the maximum file size")
	}
	end := f.offset + uint32(len(buf))

	// Grow the chain to cover the last byte of the write.
	clusterBytes := v.br.ClusterSize()
	if f.startCluster == fat.Free {
		cluster, err := v.fat.Extend(fat.Free)
		if err != nil {
			return 0, err
		}
		f.startCluster = cluster
		f.numClusters = 1
		f.pos = clusterPos{valid: true, cluster: cluster, index: 0}
		f.dirty = true
	}
	needed := (end + clusterBytes - 1) / clusterBytes
	for f.numClusters < needed {
		tail, err := m.walkTo(v, f, f.numClusters-1)
		if err != nil {
			return 0, err
		}
		if _, err := v.fat.Extend(tail); err != nil {
			return 0, err
		}
		f.numClusters++
		f.dirty = true
	}

	n := uint32(0)
	total := uint32(len(buf))
	for n < total {
		blk, byteInBlock, err := m.blockFor(v, f, f.offset)
		if err != nil {
			return int(n), err
		}
		chunk := block.BlockSize - byteInBlock
		if total-n < chunk {
			chunk = total - n
		}

		var b []byte
		if chunk == block.BlockSize {
			// The whole block is overwritten; skip the read half of the
			// read-modify-write cycle.
			b, err = m.cache.BlockFresh(blk)
		} else {
			b, err = m.cache.BlockForWrite(blk)
		}
		if err != nil {
			return int(n), err
		}
		copy(b[byteInBlock:byteInBlock+chunk], buf[n:n+chunk])
		n += chunk
		f.offset += chunk
		if f.offset > f.size {
			f.size = f.offset
		}
		f.dirty = true
	}
	return int(n), nil
}

// SeekFromStart sets the file offset. Seeking past the end is permitted and
// does not extend the file; a later write does.
func (m *VolumeManager) SeekFromStart(h FileHandle, offset uint32) error {
	f, err := m.fileSlotFor(h)
	if err != nil {
		return err
	}
	f.offset = offset
	return nil
}

// SeekFromCurrent moves the file offset by delta.
func (m *VolumeManager) SeekFromCurrent(h FileHandle, delta int32) error {
	f, err := m.fileSlotFor(h)
	if err != nil {
		return err
	}
	target := int64(f.offset) + int64(delta)
	if target < 0 {
		return ErrInvalidOffset
	}
	f.offset = uint32(target)
	return nil
}

// SeekFromEnd sets the file offset relative to the end of the file.
func (m *VolumeManager) SeekFromEnd(h FileHandle, delta int32) error {
	f, err := m.fileSlotFor(h)
	if err != nil {
		return err
	}
	target := int64(f.size) + int64(delta)
	if target < 0 {
		return ErrInvalidOffset
	}
	f.offset = uint32(target)
	return nil
}

// FileLength returns the file's size in bytes.
func (m *VolumeManager) FileLength(h FileHandle) (uint32, error) {
	f, err := m.fileSlotFor(h)
	if err != nil {
		return 0, err
	}
	return f.size, nil
}

// FileOffset returns the file's current offset.
func (m *VolumeManager) FileOffset(h FileHandle) (uint32, error) {
	f, err := m.fileSlotFor(h)
	if err != nil {
		return 0, err
	}
	return f.offset, nil
}

// IsEOF reports whether the file offset is at or past the end of the file.
func (m *VolumeManager) IsEOF(h FileHandle) (bool, error) {
	f, err := m.fileSlotFor(h)
	if err != nil {
		return false, err
	}
	return f.offset >= f.size, nil
}

// FlushFile writes the file's directory entry (size, first cluster,
// modification stamp) back to disk without closing the handle.
func (m *VolumeManager) FlushFile(h FileHandle) error {
	f, err := m.fileSlotFor(h)
	if err != nil {
		return err
	}
	v, err := m.volumeSlotFor(f.volume)
	if err != nil {
		return err
	}
	return m.flushEntry(v, f)
}

func (m *VolumeManager) flushEntry(v *volumeSlot, f *fileSlot) error {
	if !f.dirty {
		return nil
	}
	buf, err := m.cache.BlockForWrite(f.entryBlock)
	if err != nil {
		return err
	}
	s := direntry.ShortAt(buf[f.entryOffset : f.entryOffset+direntry.EntrySize])
	s.SetSize(f.size)
	s.SetCluster(f.startCluster)
	s.SetMTime(m.clock.Now())
	s.SetAttributes(s.Attributes() | direntry.AttrArchive)
	if err := m.cache.Flush(); err != nil {
		return err
	}
	f.dirty = false
	return nil
}

// CloseFile flushes the file's directory entry if it was written through this
// handle, and releases the slot. The slot is released even when the flush
// fails; the error is returned.
func (m *VolumeManager) CloseFile(h FileHandle) error {
	f, err := m.fileSlotFor(h)
	if err != nil {
		return err
	}

	var flushErr error
	if f.dirty {
		if v, err := m.volumeSlotFor(f.volume); err != nil {
			flushErr = err
		} else {
			flushErr = m.flushEntry(v, f)
		}
	}
	f.open = false
	return flushErr
}
