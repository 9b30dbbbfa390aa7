// Copyright 2026 The Thinfat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// fatdump prints the layout and directory tree of a FAT16/FAT32 disk image
// or block device.
//
// Usage:
//
//	fatdump --volume 0 --depth 3 sdcard.img
package main

import (
	goflag "flag"
	"fmt"
	"os"
	"strings"

	"github.com/golang/glog"
	"github.com/spf13/pflag"

	"github.com/thinfat/thinfat"
	blockfile "github.com/thinfat/thinfat/block/file"
	"github.com/thinfat/thinfat/direntry"
)

var (
	volumeIdx = pflag.Int("volume", 0, "partition index to open (0-3)")
	depth     = pflag.Int("depth", 3, "directory recursion depth")
)

func main() {
	pflag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	pflag.Parse()

	if pflag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: fatdump [flags] <image-or-device>")
		os.Exit(2)
	}

	if err := run(pflag.Arg(0)); err != nil {
		glog.Exit(err)
	}
}

func run(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dev, err := blockfile.New(f)
	if err != nil {
		return err
	}

	mgr := thinfat.New(dev, nil)
	vol, err := mgr.OpenVolumeReadOnly(thinfat.VolumeIdx(*volumeIdx))
	if err != nil {
		return err
	}
	defer mgr.CloseVolume(vol)

	fatType, err := mgr.FatType(vol)
	if err != nil {
		return err
	}
	label, err := mgr.VolumeLabel(vol)
	if err != nil {
		return err
	}
	free, err := mgr.FreeClusters(vol)
	if err != nil {
		return err
	}
	wasDirty, hardError, err := mgr.VolumeStatus(vol)
	if err != nil {
		return err
	}

	fmt.Printf("volume %d: FAT%d label=%q free_clusters=%d", *volumeIdx, fatType, label, free)
	if wasDirty {
		fmt.Print(" (dirty)")
	}
	if hardError {
		fmt.Print(" (hard-error)")
	}
	fmt.Println()

	root, err := mgr.OpenRootDir(vol)
	if err != nil {
		return err
	}
	defer mgr.CloseDir(root)
	return listDir(mgr, root, "/", 0)
}

func listDir(mgr *thinfat.VolumeManager, dir thinfat.DirHandle, prefix string, level int) error {
	var names []string
	var dirs []string
	err := mgr.IterateDir(dir, func(e *direntry.Entry) {
		if e.Name == "." || e.Name == ".." {
			return
		}
		if e.IsDir() {
			dirs = append(dirs, e.Name)
			names = append(names, fmt.Sprintf("%s%s/", prefix, e.Name))
		} else {
			names = append(names, fmt.Sprintf("%s%s\t%d", prefix, e.Name, e.Size))
		}
	})
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Println(strings.Repeat("  ", level) + n)
	}

	if level >= *depth {
		return nil
	}
	for _, name := range dirs {
		sub, err := mgr.OpenDir(dir, name)
		if err != nil {
			return err
		}
		err = listDir(mgr, sub, prefix+name+"/", level+1)
		if cerr := mgr.CloseDir(sub); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}
	return nil
}
