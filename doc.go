// Copyright 2026 The Thinfat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package thinfat reads and writes files on FAT16 and FAT32 block devices,
// such as SD cards, without requiring an operating system or a growable heap.
//
// A VolumeManager owns one block.Device and fixed-capacity registries of
// open volumes, directories and files, addressed by opaque generation-checked
// handles. All I/O funnels through a single-sector scratch cache, so the
// memory footprint is constant regardless of the workload.
//
// The library understands the MBR partition table, FAT16 and FAT32 boot
// records, the FSInfo sector, and VFAT long filenames. It does not support
// FAT12, exFAT, or the partitionless "superfloppy" layout.
package thinfat
