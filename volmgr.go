// Copyright 2026 The Thinfat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package thinfat

import (
	"github.com/golang/glog"

	"github.com/thinfat/thinfat/block"
	"github.com/thinfat/thinfat/blockcache"
	"github.com/thinfat/thinfat/bootrecord"
	"github.com/thinfat/thinfat/fat"
	"github.com/thinfat/thinfat/mbr"
)

// VolumeManager owns a block device and the fixed-capacity registries of
// open volumes, directories and files.
//
// The manager is not safe for concurrent use: every call completes before the
// next begins, and calling back into the manager from an IterateDir visitor
// is not allowed.
type VolumeManager struct {
	dev   block.Device
	clock Clock
	cache *blockcache.Cache

	volumes [MaxVolumes]volumeSlot
	dirs    [MaxOpenDirs]dirSlot
	files   [MaxOpenFiles]fileSlot

	nextGen uint32
}

// New returns a VolumeManager over the given device. A nil clock pins all
// recorded timestamps to the FAT epoch.
func New(dev block.Device, clock Clock) *VolumeManager {
	if clock == nil {
		clock = epochClock{}
	}
	return &VolumeManager{
		dev:   dev,
		clock: clock,
		cache: blockcache.New(dev),
	}
}

// Free flushes and tears down the manager, returning the device and clock to
// the caller. It fails with ErrVolumeStillInUse while any volume is open.
func (m *VolumeManager) Free() (block.Device, Clock, error) {
	for i := range m.volumes {
		if m.volumes[i].open {
			return nil, nil, ErrVolumeStillInUse
		}
	}
	if err := m.cache.Flush(); err != nil {
		return nil, nil, err
	}
	return m.dev, m.clock, nil
}

// generation returns the next handle generation. Generation 0 is never
// issued, so zero-valued handles are always stale.
func (m *VolumeManager) generation() uint32 {
	m.nextGen++
	return m.nextGen
}

func (m *VolumeManager) volumeSlotFor(h VolumeHandle) (*volumeSlot, error) {
	if int(h.idx) >= MaxVolumes {
		return nil, ErrBadHandle
	}
	v := &m.volumes[h.idx]
	if !v.open || v.gen != h.gen || h.gen == 0 {
		return nil, ErrBadHandle
	}
	return v, nil
}

func (m *VolumeManager) dirSlotFor(h DirHandle) (*dirSlot, error) {
	if int(h.idx) >= MaxOpenDirs {
		return nil, ErrBadHandle
	}
	d := &m.dirs[h.idx]
	if !d.open || d.gen != h.gen || h.gen == 0 {
		return nil, ErrBadHandle
	}
	return d, nil
}

func (m *VolumeManager) fileSlotFor(h FileHandle) (*fileSlot, error) {
	if int(h.idx) >= MaxOpenFiles {
		return nil, ErrBadHandle
	}
	f := &m.files[h.idx]
	if !f.open || f.gen != h.gen || h.gen == 0 {
		return nil, ErrBadHandle
	}
	return f, nil
}

// OpenVolume locates the given primary partition through the MBR, parses its
// boot record, and registers the volume for read-write access.
func (m *VolumeManager) OpenVolume(idx VolumeIdx) (VolumeHandle, error) {
	return m.openVolume(idx, false)
}

// OpenVolumeReadOnly is OpenVolume without write access: the FAT dirty bit is
// left untouched and every mutating call on the volume fails with
// ErrReadOnly.
func (m *VolumeManager) OpenVolumeReadOnly(idx VolumeIdx) (VolumeHandle, error) {
	return m.openVolume(idx, true)
}

func (m *VolumeManager) openVolume(idx VolumeIdx, readonly bool) (VolumeHandle, error) {
	glog.V(1).Infof("Opening volume %d (readonly=%v)", idx, readonly)

	slot := -1
	for i := range m.volumes {
		if m.volumes[i].open {
			if m.volumes[i].partIdx == idx {
				return VolumeHandle{}, ErrVolumeAlreadyOpen
			}
		} else if slot < 0 {
			slot = i
		}
	}
	if slot < 0 {
		return VolumeHandle{}, ErrTooManyOpenVolumes
	}

	// Block 0 holds the MBR. The superfloppy layout (a bare BPB at block 0)
	// is not supported.
	buf, err := m.cache.Block(0)
	if err != nil {
		return VolumeHandle{}, err
	}
	table, err := mbr.Decode(buf)
	if err != nil {
		return VolumeHandle{}, wrapFormat(err)
	}
	part, err := table.FATPartition(int(idx))
	if err != nil {
		return VolumeHandle{}, wrapFormat(err)
	}

	buf, err = m.cache.Block(part.Start)
	if err != nil {
		return VolumeHandle{}, err
	}
	br, err := bootrecord.Parse(buf)
	if err != nil {
		return VolumeHandle{}, wrapFormat(err)
	}

	ft, err := fat.Open(m.cache, br, part.Start, readonly)
	if err != nil {
		return VolumeHandle{}, err
	}

	v := &m.volumes[slot]
	*v = volumeSlot{
		open:      true,
		gen:       m.generation(),
		partIdx:   idx,
		partStart: part.Start,
		br:        br,
		fat:       ft,
		readonly:  readonly,
	}

	if dirty, err := v.fat.IsDirty(); err == nil && dirty {
		glog.Warningf("Volume %d was not dismounted cleanly", idx)
		v.wasDirty = true
	}
	if hard, err := v.fat.IsHardError(); err == nil && hard {
		glog.Warningf("Volume %d reports a prior hard I/O error", idx)
		v.hardError = true
	}

	if !readonly {
		// Mark the volume dirty while mounted, so an interrupted session is
		// visible to the next mount.
		if err := v.fat.SetDirty(true); err != nil {
			v.open = false
			return VolumeHandle{}, err
		}
		if err := m.cache.Flush(); err != nil {
			v.open = false
			return VolumeHandle{}, err
		}
	}

	return VolumeHandle{idx: uint8(slot), gen: v.gen}, nil
}

// CloseVolume flushes the volume's FSInfo hints, clears its dirty bit, and
// releases the slot. It fails with ErrVolumeStillInUse while directories or
// files on the volume are open.
func (m *VolumeManager) CloseVolume(h VolumeHandle) error {
	v, err := m.volumeSlotFor(h)
	if err != nil {
		return err
	}

	for i := range m.dirs {
		if m.dirs[i].open && m.dirs[i].volume == h {
			return ErrVolumeStillInUse
		}
	}
	for i := range m.files {
		if m.files[i].open && m.files[i].volume == h {
			return ErrVolumeStillInUse
		}
	}

	glog.V(1).Infof("Closing volume %d", v.partIdx)
	if !v.readonly {
		if err := v.fat.FlushInfo(); err != nil {
			v.open = false
			return err
		}
		if err := v.fat.SetDirty(false); err != nil {
			v.open = false
			return err
		}
	}
	err = m.cache.Flush()
	v.open = false
	return err
}

// VolumeLabel returns the label recorded in the volume's boot sector.
func (m *VolumeManager) VolumeLabel(h VolumeHandle) (string, error) {
	v, err := m.volumeSlotFor(h)
	if err != nil {
		return "", err
	}
	return v.br.VolumeLabel(), nil
}

// FatType reports whether the volume is FAT16 or FAT32.
func (m *VolumeManager) FatType(h VolumeHandle) (bootrecord.FATType, error) {
	v, err := m.volumeSlotFor(h)
	if err != nil {
		return bootrecord.FATInvalid, err
	}
	return v.br.Type(), nil
}

// VolumeStatus reports the mount-time status bits of the volume: whether the
// previous session ended without a clean dismount, and whether a hard I/O
// error has been recorded.
func (m *VolumeManager) VolumeStatus(h VolumeHandle) (wasDirty, hardError bool, err error) {
	v, err := m.volumeSlotFor(h)
	if err != nil {
		return false, false, err
	}
	return v.wasDirty, v.hardError, nil
}

// FreeClusters returns the number of free clusters on the volume. When the
// FSInfo hint is unknown it performs one full FAT scan and repairs the hint.
func (m *VolumeManager) FreeClusters(h VolumeHandle) (uint32, error) {
	v, err := m.volumeSlotFor(h)
	if err != nil {
		return 0, err
	}
	if count := v.fat.FreeCount(); count != 0xFFFFFFFF {
		return count, nil
	}
	glog.V(1).Info("Free-cluster hint unknown; scanning the FAT")
	return v.fat.CountFree()
}
