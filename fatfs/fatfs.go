// Copyright 2026 The Thinfat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package fatfs presents one open thinfat volume as an afero.Fs, so code
// written against the afero filesystem abstraction can operate on FAT images
// and SD cards.
//
// Paths are slash-separated and resolved relative to the volume root. Rename
// and permission operations are not supported by the underlying filesystem.
package fatfs

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/thinfat/thinfat"
	"github.com/thinfat/thinfat/direntry"
)

// ErrUnsupported is returned for operations FAT cannot express, such as
// Rename, Chmod and Chown.
var ErrUnsupported = errors.New("fatfs: operation not supported")

// Fs implements afero.Fs over an open volume.
type Fs struct {
	m   *thinfat.VolumeManager
	vol thinfat.VolumeHandle
}

var _ afero.Fs = (*Fs)(nil)

// New wraps an open volume as an afero.Fs.
func New(m *thinfat.VolumeManager, vol thinfat.VolumeHandle) *Fs {
	return &Fs{m: m, vol: vol}
}

// Name returns the name of this filesystem.
func (f *Fs) Name() string {
	return "fatfs"
}

func splitPath(name string) []string {
	name = strings.Trim(name, "/")
	if name == "" || name == "." {
		return nil
	}
	return strings.Split(name, "/")
}

// openParent walks to the directory containing the last path segment and
// returns its handle plus the segment. The caller closes the handle.
func (f *Fs) openParent(name string) (thinfat.DirHandle, string, error) {
	segments := splitPath(name)
	dir, err := f.m.OpenRootDir(f.vol)
	if err != nil {
		return thinfat.DirHandle{}, "", err
	}
	if len(segments) == 0 {
		return dir, ".", nil
	}
	for _, seg := range segments[:len(segments)-1] {
		if err := f.m.ChangeDir(dir, seg); err != nil {
			f.m.CloseDir(dir)
			return thinfat.DirHandle{}, "", err
		}
	}
	return dir, segments[len(segments)-1], nil
}

// OpenFile opens the named file or directory with os.O_* flags.
func (f *Fs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	dir, base, err := f.openParent(name)
	if err != nil {
		return nil, err
	}

	// Directories can only be opened for reading.
	if base == "." {
		return &file{fs: f, dir: dir, path: name, isDir: true}, nil
	}
	if entry, err := f.m.StatInDir(dir, base); err == nil && entry.IsDir() {
		if flag&(os.O_WRONLY|os.O_RDWR) != 0 {
			f.m.CloseDir(dir)
			return nil, thinfat.ErrIsADirectory
		}
		if err := f.m.ChangeDir(dir, base); err != nil {
			f.m.CloseDir(dir)
			return nil, err
		}
		return &file{fs: f, dir: dir, path: name, isDir: true}, nil
	}

	mode := modeFromFlags(flag)
	fh, err := f.m.OpenFileInDir(dir, base, mode)
	if err != nil {
		f.m.CloseDir(dir)
		return nil, err
	}
	if flag&os.O_APPEND == 0 {
		if err := f.m.SeekFromStart(fh, 0); err != nil {
			f.m.CloseFile(fh)
			f.m.CloseDir(dir)
			return nil, err
		}
	}
	return &file{fs: f, dir: dir, fh: fh, path: name, writable: mode != thinfat.ModeReadOnly}, nil
}

func modeFromFlags(flag int) thinfat.Mode {
	writable := flag&(os.O_WRONLY|os.O_RDWR) != 0
	create := flag&os.O_CREATE != 0
	truncate := flag&os.O_TRUNC != 0
	exclusive := flag&os.O_EXCL != 0

	switch {
	case !writable:
		return thinfat.ModeReadOnly
	case create && exclusive:
		return thinfat.ModeReadWriteCreate
	case create && truncate:
		return thinfat.ModeReadWriteCreateOrTruncate
	case create:
		return thinfat.ModeReadWriteCreateOrAppend
	case truncate:
		return thinfat.ModeReadWriteTruncate
	default:
		return thinfat.ModeReadWriteAppend
	}
}

// Open opens the named file or directory for reading.
func (f *Fs) Open(name string) (afero.File, error) {
	return f.OpenFile(name, os.O_RDONLY, 0)
}

// Create creates or truncates the named file.
func (f *Fs) Create(name string) (afero.File, error) {
	return f.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0)
}

// Mkdir creates the named directory.
func (f *Fs) Mkdir(name string, perm os.FileMode) error {
	dir, base, err := f.openParent(name)
	if err != nil {
		return err
	}
	defer f.m.CloseDir(dir)
	if base == "." {
		return thinfat.ErrAlreadyExists
	}
	return f.m.MakeDirInDir(dir, base)
}

// MkdirAll creates the named directory and any missing parents.
func (f *Fs) MkdirAll(path string, perm os.FileMode) error {
	segments := splitPath(path)
	dir, err := f.m.OpenRootDir(f.vol)
	if err != nil {
		return err
	}
	defer f.m.CloseDir(dir)
	for _, seg := range segments {
		if err := f.m.MakeDirInDir(dir, seg); err != nil && !errors.Is(err, thinfat.ErrAlreadyExists) {
			return err
		}
		if err := f.m.ChangeDir(dir, seg); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes the named file. Directories cannot be removed.
func (f *Fs) Remove(name string) error {
	dir, base, err := f.openParent(name)
	if err != nil {
		return err
	}
	defer f.m.CloseDir(dir)
	if base == "." {
		return thinfat.ErrIsADirectory
	}
	return f.m.DeleteFileInDir(dir, base)
}

// RemoveAll deletes the named file. Recursive directory removal is not
// supported.
func (f *Fs) RemoveAll(path string) error {
	err := f.Remove(path)
	if errors.Is(err, thinfat.ErrNotFound) {
		return nil
	}
	return err
}

// Rename is not supported by the underlying filesystem.
func (f *Fs) Rename(oldname, newname string) error {
	return errors.Wrapf(ErrUnsupported, "rename %q", oldname)
}

// Stat returns file info for the named file or directory.
func (f *Fs) Stat(name string) (os.FileInfo, error) {
	dir, base, err := f.openParent(name)
	if err != nil {
		return nil, err
	}
	defer f.m.CloseDir(dir)
	if base == "." {
		return dirInfo{name: "/"}, nil
	}
	entry, err := f.m.StatInDir(dir, base)
	if err != nil {
		return nil, err
	}
	return entryInfo{entry: *entry}, nil
}

// Chmod is not supported; FAT stores no permission bits.
func (f *Fs) Chmod(name string, mode os.FileMode) error {
	return errors.Wrapf(ErrUnsupported, "chmod %q", name)
}

// Chown is not supported; FAT stores no ownership.
func (f *Fs) Chown(name string, uid, gid int) error {
	return errors.Wrapf(ErrUnsupported, "chown %q", name)
}

// Chtimes is not supported through this adapter; stamps are maintained by the
// write path.
func (f *Fs) Chtimes(name string, atime time.Time, mtime time.Time) error {
	return errors.Wrapf(ErrUnsupported, "chtimes %q", name)
}

var _ os.FileInfo = entryInfo{}

// entryInfo adapts a directory entry to os.FileInfo.
type entryInfo struct {
	entry direntry.Entry
}

func (e entryInfo) Name() string { return e.entry.Name }
func (e entryInfo) Size() int64  { return int64(e.entry.Size) }
func (e entryInfo) Mode() os.FileMode {
	if e.IsDir() {
		return os.ModeDir | 0o755
	}
	return 0o644
}
func (e entryInfo) ModTime() time.Time { return e.entry.MTime }
func (e entryInfo) IsDir() bool        { return e.entry.IsDir() }
func (e entryInfo) Sys() interface{}   { return e.entry }

// dirInfo is the FileInfo for the root directory, which has no entry of its
// own.
type dirInfo struct{ name string }

func (d dirInfo) Name() string       { return d.name }
func (d dirInfo) Size() int64        { return 0 }
func (d dirInfo) Mode() os.FileMode  { return os.ModeDir | 0o755 }
func (d dirInfo) ModTime() time.Time { return time.Time{} }
func (d dirInfo) IsDir() bool        { return true }
func (d dirInfo) Sys() interface{}   { return nil }
