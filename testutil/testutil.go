// Copyright 2026 The Thinfat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package testutil formats small FAT16 and FAT32 volumes inside in-memory
// fake devices, so tests need neither fixture files nor an external mkfs.
package testutil

import (
	"strings"

	"github.com/thinfat/thinfat/bitops"
	"github.com/thinfat/thinfat/block"
	"github.com/thinfat/thinfat/block/fake"
)

// Config selects the geometry of a formatted test volume.
type Config struct {
	FAT32             bool
	PartStart         uint32 // First block of the partition.
	SectorsPerCluster uint32
	NumClusters       uint32 // Data clusters. FAT16: 4085..65524. FAT32: >= 65525.
	Label             string
}

// DefaultFAT16 is a small FAT16 volume: 2 KiB clusters, ~8 MiB of data.
func DefaultFAT16() Config {
	return Config{
		PartStart:         64,
		SectorsPerCluster: 4,
		NumClusters:       4100,
		Label:             "THINFAT16",
	}
}

// DefaultFAT32 is the smallest sensible FAT32 volume: 512-byte clusters,
// ~32 MiB of data.
func DefaultFAT32() Config {
	return Config{
		FAT32:             true,
		PartStart:         64,
		SectorsPerCluster: 1,
		NumClusters:       65600,
		Label:             "THINFAT32",
	}
}

const (
	numFATs        = 2
	rootEntries16  = 512 // FAT16 root directory entries (32 blocks).
	reserved16     = 1
	reserved32     = 32
	fsInfoSector32 = 1
	rootCluster32  = 2
)

// Image is a formatted in-memory volume plus the geometry needed to poke at
// it directly.
type Image struct {
	Dev fake.Device
	Cfg Config

	SectorsPerFAT uint32
	FATStart      block.Idx // Absolute block of the first FAT.
	RootStart     block.Idx // FAT16 only: absolute block of the root region.
	DataStart     block.Idx // Absolute block of cluster 2.

	nextCluster uint32 // Next never-allocated cluster, for seeding files.
	rootUsed    uint32 // Root entries consumed by seeded files.
}

// Format builds a fresh MBR-partitioned volume according to cfg.
func Format(cfg Config) *Image {
	img := &Image{Cfg: cfg, nextCluster: 2}

	fatEntrySize := uint32(2)
	reserved := uint32(reserved16)
	rootBlocks := uint32(rootEntries16 * 32 / block.BlockSize)
	if cfg.FAT32 {
		fatEntrySize = 4
		reserved = reserved32
		rootBlocks = 0
		img.nextCluster = rootCluster32 + 1
	}

	img.SectorsPerFAT = (fatEntrySize*(cfg.NumClusters+2) + block.BlockSize - 1) / block.BlockSize
	totalSectors := reserved + numFATs*img.SectorsPerFAT + rootBlocks + cfg.NumClusters*cfg.SectorsPerCluster

	img.Dev = fake.New(cfg.PartStart + totalSectors)
	img.FATStart = block.Idx(cfg.PartStart + reserved)
	img.RootStart = block.Idx(cfg.PartStart + reserved + numFATs*img.SectorsPerFAT)
	img.DataStart = img.RootStart + block.Idx(rootBlocks)

	img.writeMBR(totalSectors)
	img.writeBootSector(totalSectors, reserved)
	img.initFAT()
	if cfg.FAT32 {
		img.writeFSInfo()
		// The FAT32 root directory is an ordinary one-cluster chain.
		img.setFATEntry(rootCluster32, 0x0FFFFFFF)
	}
	return img
}

func (img *Image) writeMBR(totalSectors uint32) {
	var buf [block.BlockSize]byte
	entry := buf[446:]
	ptype := byte(0x06) // FAT16, 32 MiB or larger
	if img.Cfg.FAT32 {
		ptype = 0x0C // FAT32 with LBA addressing
	}
	entry[4] = ptype
	bitops.PutLE32(entry[8:], img.Cfg.PartStart)
	bitops.PutLE32(entry[12:], totalSectors)
	buf[510] = 0x55
	buf[511] = 0xAA
	img.Dev.WriteBlocks(buf[:], 0)
}

func paddedLabel(label string) []byte {
	if len(label) > 11 {
		label = label[:11]
	}
	return []byte(label + strings.Repeat(" ", 11-len(label)))
}

func (img *Image) writeBootSector(totalSectors, reserved uint32) {
	var buf [block.BlockSize]byte
	copy(buf[0:], []byte{0xEB, 0x3C, 0x90})
	copy(buf[3:], "THINFAT ")
	bitops.PutLE16(buf[11:], block.BlockSize)
	buf[13] = byte(img.Cfg.SectorsPerCluster)
	bitops.PutLE16(buf[14:], uint16(reserved))
	buf[16] = numFATs
	buf[21] = 0xF8 // Media descriptor: fixed disk
	bitops.PutLE16(buf[24:], 32) // Sectors per track
	bitops.PutLE16(buf[26:], 64) // Heads
	bitops.PutLE32(buf[28:], img.Cfg.PartStart)

	if img.Cfg.FAT32 {
		bitops.PutLE32(buf[32:], totalSectors)
		bitops.PutLE32(buf[36:], img.SectorsPerFAT)
		bitops.PutLE32(buf[44:], rootCluster32)
		bitops.PutLE16(buf[48:], fsInfoSector32)
		bitops.PutLE16(buf[50:], 6) // Backup boot sector
		buf[64] = 0x80
		buf[66] = 0x29
		bitops.PutLE32(buf[67:], 0x1234ABCD)
		copy(buf[71:], paddedLabel(img.Cfg.Label))
		copy(buf[82:], "FAT32   ")
	} else {
		bitops.PutLE16(buf[17:], rootEntries16)
		if totalSectors < 0x10000 {
			bitops.PutLE16(buf[19:], uint16(totalSectors))
		} else {
			bitops.PutLE32(buf[32:], totalSectors)
		}
		bitops.PutLE16(buf[22:], uint16(img.SectorsPerFAT))
		buf[36] = 0x80
		buf[38] = 0x29
		bitops.PutLE32(buf[39:], 0x1234ABCD)
		copy(buf[43:], paddedLabel(img.Cfg.Label))
		copy(buf[54:], "FAT16   ")
	}
	buf[510] = 0x55
	buf[511] = 0xAA
	img.Dev.WriteBlocks(buf[:], block.Idx(img.Cfg.PartStart))
}

// initFAT seeds FAT[0] and FAT[1] in both FAT copies: the media descriptor
// and the all-bits-set clean-shutdown entry.
func (img *Image) initFAT() {
	if img.Cfg.FAT32 {
		img.setFATEntry(0, 0x0FFFFFF8)
		img.setFATEntry(1, 0xFFFFFFFF)
	} else {
		img.setFATEntry(0, 0xFFF8)
		img.setFATEntry(1, 0xFFFF)
	}
}

func (img *Image) writeFSInfo() {
	var buf [block.BlockSize]byte
	bitops.PutLE32(buf[0:], 0x41615252)
	bitops.PutLE32(buf[484:], 0x61417272)
	bitops.PutLE32(buf[488:], img.Cfg.NumClusters-1) // Root cluster is taken.
	bitops.PutLE32(buf[492:], rootCluster32+1)
	bitops.PutLE32(buf[508:], 0xAA550000)
	img.Dev.WriteBlocks(buf[:], block.Idx(img.Cfg.PartStart+fsInfoSector32))
}

// setFATEntry pokes one entry in every FAT copy.
func (img *Image) setFATEntry(cluster, value uint32) {
	entrySize := uint32(2)
	if img.Cfg.FAT32 {
		entrySize = 4
	}
	for copyIdx := uint32(0); copyIdx < numFATs; copyIdx++ {
		off := cluster * entrySize
		blk := img.FATStart + block.Idx(copyIdx*img.SectorsPerFAT+off/block.BlockSize)
		var buf [block.BlockSize]byte
		img.Dev.ReadBlocks(buf[:], blk)
		if img.Cfg.FAT32 {
			bitops.PutLE32(buf[off%block.BlockSize:], value)
		} else {
			bitops.PutLE16(buf[off%block.BlockSize:], uint16(value))
		}
		img.Dev.WriteBlocks(buf[:], blk)
	}
}

// ClusterBlock returns the absolute block of the first sector of a cluster.
func (img *Image) ClusterBlock(cluster uint32) block.Idx {
	return img.DataStart + block.Idx((cluster-2)*img.Cfg.SectorsPerCluster)
}

// AddRootFile seeds a file directly into the FAT16 root directory. name must
// already be a legal upper-case 8.3 name like "README.TXT". It exists so
// read tests do not depend on the write path under test.
func (img *Image) AddRootFile(name string, contents []byte) {
	if img.Cfg.FAT32 {
		panic("AddRootFile only seeds FAT16 images")
	}

	// Allocate a chain of sequential clusters and write the contents.
	clusterBytes := img.Cfg.SectorsPerCluster * block.BlockSize
	firstCluster := uint32(0)
	prev := uint32(0)
	for off := uint32(0); off < uint32(len(contents)); off += clusterBytes {
		cluster := img.nextCluster
		img.nextCluster++
		if firstCluster == 0 {
			firstCluster = cluster
		}
		if prev != 0 {
			img.setFATEntry(prev, cluster)
		}
		img.setFATEntry(cluster, 0xFFFF)
		prev = cluster

		chunk := contents[off:]
		if uint32(len(chunk)) > clusterBytes {
			chunk = chunk[:clusterBytes]
		}
		buf := make([]byte, clusterBytes)
		copy(buf, chunk)
		img.Dev.WriteBlocks(buf, img.ClusterBlock(cluster))
	}

	// Write the 8.3 directory entry.
	var short [11]byte
	for i := range short {
		short[i] = ' '
	}
	dot := strings.LastIndexByte(name, '.')
	if dot < 0 {
		copy(short[:8], name)
	} else {
		copy(short[:8], name[:dot])
		copy(short[8:], name[dot+1:])
	}

	var entry [32]byte
	copy(entry[0:11], short[:])
	entry[11] = 0x20 // Archive
	bitops.PutLE16(entry[26:], uint16(firstCluster))
	bitops.PutLE32(entry[28:], uint32(len(contents)))

	blk := img.RootStart + block.Idx(img.rootUsed/16)
	var buf [block.BlockSize]byte
	img.Dev.ReadBlocks(buf[:], blk)
	copy(buf[(img.rootUsed%16)*32:], entry[:])
	img.Dev.WriteBlocks(buf[:], blk)
	img.rootUsed++
}
