// Copyright 2026 The Thinfat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package fat contains the File Allocation Table used by the FAT filesystem:
// entry access, cluster-chain traversal, allocation and freeing.
//
// The table is not safe for concurrent use; the volume manager serializes all
// access.
package fat

import (
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/thinfat/thinfat/bitops"
	"github.com/thinfat/thinfat/block"
	"github.com/thinfat/thinfat/blockcache"
	"github.com/thinfat/thinfat/bootrecord"
	"github.com/thinfat/thinfat/fat/fsinfo"
)

var (
	// ErrNoSpace indicates there are no free clusters left on the volume.
	ErrNoSpace = errors.New("fat: no free clusters")

	// ErrInvalidCluster indicates an attempt to access the FAT with a cluster
	// number outside the data region.
	ErrInvalidCluster = errors.New("fat: invalid cluster")

	// ErrCorrupt indicates a structurally impossible FAT: a bad-cluster
	// marker in the middle of a chain, or a chain longer than the volume.
	ErrCorrupt = errors.New("fat: corrupt cluster chain")

	// ErrReadOnly indicates a mutation was attempted on a read-only table.
	ErrReadOnly = errors.New("fat: volume is read-only")
)

const (
	// Masks for usable cluster numbers.
	maskFAT16 = 0x0000FFFF
	maskFAT32 = 0x0FFFFFFF

	// An entry value of "eof..." or higher marks the end of a chain.
	eofFAT16 = 0x0000FFF8
	eofFAT32 = 0x0FFFFFF8

	// "BAD CLUSTER" indicates that this cluster is prone to disk errors.
	badFAT16 = 0x0000FFF7
	badFAT32 = 0x0FFFFFF7

	// The high bits of the entry at FAT[1] are reserved and contain special
	// values.
	dirtyBitFAT16 = 0x00008000 // 1: clean dismount. 0: volume was not dismounted properly.
	dirtyBitFAT32 = 0x08000000
	errorBitFAT16 = 0x00004000 // 1: no disk errors. 0: a disk I/O error was encountered.
	errorBitFAT32 = 0x04000000

	// Free is the entry value of an unallocated cluster.
	Free = 0
)

// Table provides access to the File Allocation Table of one volume.
type Table struct {
	cache     *blockcache.Cache
	br        *bootrecord.Bootrecord
	partStart block.Idx

	readonly bool
	mirror   bool   // Are we mirroring to multiple FATs?
	primary  uint32 // Which FAT are we using?
	numFATs  uint32

	// FSInfo values. freeCount may be fsinfo.Unknown; nextFree is always a
	// plausible scan start.
	fsInfoValid bool // A valid FSInfo sector exists on disk.
	freeCount   uint32
	nextFree    uint32
}

// Open prepares FAT access for a volume whose partition begins at partStart.
func Open(cache *blockcache.Cache, br *bootrecord.Bootrecord, partStart block.Idx, readonly bool) (*Table, error) {
	glog.V(1).Info("Opening FAT")
	mirror, numFATs, primary := br.MirroringInfo()
	t := &Table{
		cache:     cache,
		br:        br,
		partStart: partStart,
		readonly:  readonly,
		mirror:    mirror,
		primary:   primary,
		numFATs:   numFATs,
		freeCount: fsinfo.Unknown,
		nextFree:  bootrecord.NumReservedClusters,
	}

	// Gather the FSInfo hints (if they exist).
	if sector, ok := br.FsInfoSector(); ok {
		buf, err := cache.Block(partStart + sector)
		if err != nil {
			return nil, err
		}
		if freeCount, nextFree, err := fsinfo.ReadHints(buf); err == nil {
			t.fsInfoValid = true
			if freeCount != fsinfo.Unknown && freeCount <= br.NumUsableClusters() {
				t.freeCount = freeCount
			}
			if nextFree != fsinfo.Unknown && br.ClusterInValidRange(nextFree) {
				t.nextFree = nextFree
			}
		}
	}

	return t, nil
}

// EOFValue returns the FAT value that means "end of chain".
// Notably, any value at or above it also means EOF to FAT.
func (t *Table) EOFValue() uint32 {
	if t.br.Type() == bootrecord.FAT32 {
		return eofFAT32
	}
	return eofFAT16
}

// IsEOF describes if the entry value signifies "end of chain".
func (t *Table) IsEOF(e uint32) bool {
	if t.br.Type() == bootrecord.FAT32 {
		return e >= eofFAT32
	}
	return e >= eofFAT16
}

// IsFree describes if the entry value signifies "free cluster".
func (t *Table) IsFree(e uint32) bool {
	return e == Free
}

func (t *Table) isBad(e uint32) bool {
	if t.br.Type() == bootrecord.FAT32 {
		return e == badFAT32
	}
	return e == badFAT16
}

func (t *Table) clusterMask() uint32 {
	if t.br.Type() == bootrecord.FAT32 {
		return maskFAT32
	}
	return maskFAT16
}

func (t *Table) dirtyBit() uint32 {
	if t.br.Type() == bootrecord.FAT32 {
		return dirtyBitFAT32
	}
	return dirtyBitFAT16
}

func (t *Table) errorBit() uint32 {
	if t.br.Type() == bootrecord.FAT32 {
		return errorBitFAT32
	}
	return errorBitFAT16
}

// getRawEntry reads the full FAT entry for a cluster from the given FAT copy,
// without masking the reserved bits.
func (t *Table) getRawEntry(indexFAT, cluster uint32) (uint32, error) {
	sector, offset := t.br.FATEntryLocation(indexFAT, cluster)
	buf, err := t.cache.Block(t.partStart + sector)
	if err != nil {
		return 0, err
	}
	if t.br.Type() == bootrecord.FAT32 {
		return bitops.GetLE32(buf[offset:]), nil
	}
	return uint32(bitops.GetLE16(buf[offset:])), nil
}

// setRawEntry writes the full FAT entry for a cluster in the given FAT copy.
func (t *Table) setRawEntry(indexFAT, cluster, value uint32) error {
	sector, offset := t.br.FATEntryLocation(indexFAT, cluster)
	buf, err := t.cache.BlockForWrite(t.partStart + sector)
	if err != nil {
		return err
	}
	if t.br.Type() == bootrecord.FAT32 {
		bitops.PutLE32(buf[offset:], value)
	} else {
		bitops.PutLE16(buf[offset:], uint16(value))
	}
	return nil
}

// Get gets the value of a cluster entry. Can only be used to access clusters
// in the data region.
func (t *Table) Get(cluster uint32) (uint32, error) {
	if !t.br.ClusterInValidRange(cluster) {
		return 0, errors.Wrapf(ErrInvalidCluster, "get %#x", cluster)
	}
	entry, err := t.getRawEntry(t.primary, cluster)
	if err != nil {
		return 0, err
	}
	return entry & t.clusterMask(), nil
}

// Set sets the value of a cluster entry in every active FAT copy, preserving
// the reserved top bits of FAT32 entries.
func (t *Table) Set(value, cluster uint32) error {
	if t.readonly {
		return ErrReadOnly
	}
	if !t.br.ClusterInValidRange(cluster) {
		return errors.Wrapf(ErrInvalidCluster, "set %#x", cluster)
	} else if value == cluster {
		// A cluster pointing at itself creates a trivial loop.
		return errors.Wrapf(ErrInvalidCluster, "set %#x to itself", cluster)
	}

	glog.V(2).Infof("Setting cluster %#x to value %#x", cluster, value)

	// Write the primary first. Only an error on the primary fails the
	// operation.
	old, err := t.getRawEntry(t.primary, cluster)
	if err != nil {
		return err
	}
	if t.isBad(old & t.clusterMask()) {
		return errors.Wrapf(ErrInvalidCluster, "cluster %#x is marked bad", cluster)
	}
	raw := (old &^ t.clusterMask()) | (value & t.clusterMask())
	if err := t.setRawEntry(t.primary, cluster, raw); err != nil {
		return err
	}

	// Track the free-cluster count (when it is known).
	freeBefore := t.IsFree(old & t.clusterMask())
	freeAfter := t.IsFree(value)
	if t.freeCount != fsinfo.Unknown {
		if freeBefore && !freeAfter {
			t.freeCount--
		} else if !freeBefore && freeAfter {
			t.freeCount++
		}
	}

	if t.mirror {
		// Mirroring mandates writing every FAT copy. Errors on the backup
		// copies are ignored; the primary already holds the authoritative
		// value.
		for indexFAT := uint32(0); indexFAT < t.numFATs; indexFAT++ {
			if indexFAT != t.primary {
				t.setRawEntry(indexFAT, cluster, raw)
			}
		}
	}
	return nil
}

// Next steps one link down a cluster chain. It returns ok == false when the
// current cluster is the end of the chain.
func (t *Table) Next(cluster uint32) (next uint32, ok bool, err error) {
	entry, err := t.Get(cluster)
	if err != nil {
		return 0, false, err
	}
	if t.IsEOF(entry) {
		return 0, false, nil
	}
	if t.isBad(entry) || t.IsFree(entry) || !t.br.ClusterInValidRange(entry) {
		return 0, false, errors.Wrapf(ErrCorrupt, "entry %#x follows cluster %#x", entry, cluster)
	}
	return entry, true, nil
}

// Allocate finds a free cluster, marks it end-of-chain, and returns it. The
// search starts from the next-free hint and wraps around the data region
// once.
func (t *Table) Allocate() (uint32, error) {
	if t.readonly {
		return 0, ErrReadOnly
	}

	glog.V(2).Infof("Allocating from %#x", t.nextFree)
	minCluster := bootrecord.NumReservedClusters
	maxCluster := minCluster + t.br.NumUsableClusters()
	if !t.br.ClusterInValidRange(t.nextFree) {
		t.nextFree = minCluster
	}

	isFreeAt := func(cluster uint32) (bool, error) {
		entry, err := t.Get(cluster)
		if err != nil {
			return false, err
		}
		return t.IsFree(entry), nil
	}

	claim := func(cluster uint32) (uint32, error) {
		if err := t.Set(t.EOFValue(), cluster); err != nil {
			return 0, err
		}
		t.nextFree = cluster + 1
		return cluster, nil
	}

	start := t.nextFree
	for cluster := start; cluster < maxCluster; cluster++ {
		if free, err := isFreeAt(cluster); err != nil {
			return 0, err
		} else if free {
			return claim(cluster)
		}
	}
	for cluster := minCluster; cluster < start; cluster++ {
		if free, err := isFreeAt(cluster); err != nil {
			return 0, err
		} else if free {
			return claim(cluster)
		}
	}
	return 0, ErrNoSpace
}

// Extend allocates a new cluster and links it after the given chain tail.
// With tail == 0 (an empty chain) the new cluster starts its own chain.
func (t *Table) Extend(tail uint32) (uint32, error) {
	cluster, err := t.Allocate()
	if err != nil {
		return 0, err
	}
	if tail != Free {
		if err := t.Set(cluster, tail); err != nil {
			return 0, err
		}
	}
	return cluster, nil
}

// FreeChain walks the chain from start and frees every cluster in it. The
// walk is bounded by the number of clusters on the volume; exceeding the
// bound reports a cycle.
func (t *Table) FreeChain(start uint32) error {
	if t.readonly {
		return ErrReadOnly
	}

	glog.V(2).Infof("Freeing chain from %#x", start)
	cluster := start
	for steps := uint32(0); ; steps++ {
		if steps > t.br.NumUsableClusters() {
			return errors.Wrapf(ErrCorrupt, "cyclic chain from %#x", start)
		}
		next, more, err := t.Next(cluster)
		if err != nil {
			return err
		}
		if err := t.Set(Free, cluster); err != nil {
			return err
		}
		if !more {
			return nil
		}
		cluster = next
	}
}

// ChainLength walks the chain from start and returns its length in clusters.
// A start of 0 describes the empty chain.
func (t *Table) ChainLength(start uint32) (uint32, error) {
	if start == Free {
		return 0, nil
	}
	length := uint32(1)
	cluster := start
	for {
		if length > t.br.NumUsableClusters() {
			return 0, errors.Wrapf(ErrCorrupt, "cyclic chain from %#x", start)
		}
		next, more, err := t.Next(cluster)
		if err != nil {
			return 0, err
		}
		if !more {
			return length, nil
		}
		cluster = next
		length++
	}
}

// FreeCount returns the known number of free clusters, or fsinfo.Unknown.
func (t *Table) FreeCount() uint32 {
	return t.freeCount
}

// NextFree returns the next-free-cluster search hint.
func (t *Table) NextFree() uint32 {
	return t.nextFree
}

// CountFree scans the whole FAT, repairs the in-memory free count, and
// returns it.
func (t *Table) CountFree() (uint32, error) {
	minCluster := bootrecord.NumReservedClusters
	maxCluster := minCluster + t.br.NumUsableClusters()
	count := uint32(0)
	for cluster := minCluster; cluster < maxCluster; cluster++ {
		entry, err := t.Get(cluster)
		if err != nil {
			return 0, err
		}
		if t.IsFree(entry) {
			count++
		}
	}
	t.freeCount = count
	return count, nil
}

// FlushInfo writes the FSInfo hints back to disk. It is a no-op for volumes
// without a valid FSInfo sector.
func (t *Table) FlushInfo() error {
	if t.readonly || !t.fsInfoValid {
		return nil
	}
	sector, ok := t.br.FsInfoSector()
	if !ok {
		return nil
	}
	buf, err := t.cache.BlockForWrite(t.partStart + sector)
	if err != nil {
		return err
	}
	fsinfo.SetHints(buf, t.freeCount, t.nextFree)
	return t.cache.Flush()
}

// SetDirty flips the clean-shutdown bit at FAT[1]. Mounting a writable volume
// marks it dirty; a clean unmount marks it clean again.
func (t *Table) SetDirty(dirty bool) error {
	if t.readonly {
		return ErrReadOnly
	}
	v, err := t.getRawEntry(t.primary, 1)
	if err != nil {
		return err
	}
	if dirty {
		// Clearing the bit marks the volume as dirty.
		v &^= t.dirtyBit()
	} else {
		v |= t.dirtyBit()
	}
	if err := t.setRawEntry(t.primary, 1, v); err != nil {
		return err
	}
	if t.mirror {
		for indexFAT := uint32(0); indexFAT < t.numFATs; indexFAT++ {
			if indexFAT != t.primary {
				t.setRawEntry(indexFAT, 1, v)
			}
		}
	}
	return nil
}

// IsDirty returns true if the volume was not dismounted properly.
func (t *Table) IsDirty() (bool, error) {
	v, err := t.getRawEntry(t.primary, 1)
	if err != nil {
		return false, err
	}
	return v&t.dirtyBit() == 0, nil
}

// IsHardError returns true if a disk I/O error occurred the last time the
// volume was mounted.
func (t *Table) IsHardError() (bool, error) {
	v, err := t.getRawEntry(t.primary, 1)
	if err != nil {
		return false, err
	}
	return v&t.errorBit() == 0, nil
}
