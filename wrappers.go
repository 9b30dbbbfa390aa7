// Copyright 2026 The Thinfat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package thinfat

import (
	"io"

	"github.com/thinfat/thinfat/direntry"
)

// The wrapper types tie a handle to its manager so callers can release
// resources with a plain Close, and so files satisfy the standard io
// interfaces. The raw handle API remains available for callers juggling more
// handles than the wrappers make convenient.

// Volume wraps a VolumeHandle.
type Volume struct {
	m *VolumeManager
	h VolumeHandle
}

// Volume opens a partition and wraps its handle.
func (m *VolumeManager) Volume(idx VolumeIdx) (*Volume, error) {
	h, err := m.OpenVolume(idx)
	if err != nil {
		return nil, err
	}
	return &Volume{m: m, h: h}, nil
}

// Handle returns the raw volume handle.
func (v *Volume) Handle() VolumeHandle {
	return v.h
}

// Root opens the volume's root directory.
func (v *Volume) Root() (*Dir, error) {
	h, err := v.m.OpenRootDir(v.h)
	if err != nil {
		return nil, err
	}
	return &Dir{m: v.m, h: h}, nil
}

// Label returns the volume label.
func (v *Volume) Label() (string, error) {
	return v.m.VolumeLabel(v.h)
}

// Close releases the volume.
func (v *Volume) Close() error {
	return v.m.CloseVolume(v.h)
}

// Dir wraps a DirHandle.
type Dir struct {
	m *VolumeManager
	h DirHandle
}

// Handle returns the raw directory handle.
func (d *Dir) Handle() DirHandle {
	return d.h
}

// Open opens a named subdirectory.
func (d *Dir) Open(name string) (*Dir, error) {
	h, err := d.m.OpenDir(d.h, name)
	if err != nil {
		return nil, err
	}
	return &Dir{m: d.m, h: h}, nil
}

// Make creates a named subdirectory.
func (d *Dir) Make(name string) error {
	return d.m.MakeDirInDir(d.h, name)
}

// Iterate visits every entry of the directory.
func (d *Dir) Iterate(visit func(*direntry.Entry)) error {
	return d.m.IterateDir(d.h, visit)
}

// File opens or creates a named file in the directory.
func (d *Dir) File(name string, mode Mode) (*File, error) {
	h, err := d.m.OpenFileInDir(d.h, name, mode)
	if err != nil {
		return nil, err
	}
	return &File{m: d.m, h: h}, nil
}

// Delete removes a named file from the directory.
func (d *Dir) Delete(name string) error {
	return d.m.DeleteFileInDir(d.h, name)
}

// Close releases the directory.
func (d *Dir) Close() error {
	return d.m.CloseDir(d.h)
}

// File wraps a FileHandle and implements io.Reader, io.Writer, io.Seeker and
// io.Closer.
type File struct {
	m *VolumeManager
	h FileHandle
}

// Handle returns the raw file handle.
func (f *File) Handle() FileHandle {
	return f.h
}

// Read implements io.Reader. At end of file it returns io.EOF.
func (f *File) Read(p []byte) (int, error) {
	n, err := f.m.Read(f.h, p)
	if err != nil {
		return n, err
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write implements io.Writer.
func (f *File) Write(p []byte) (int, error) {
	return f.m.Write(f.h, p)
}

// Seek implements io.Seeker.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	var err error
	switch whence {
	case io.SeekStart:
		if offset < 0 || offset > maxFileSize {
			return 0, ErrInvalidOffset
		}
		err = f.m.SeekFromStart(f.h, uint32(offset))
	case io.SeekCurrent:
		err = f.m.SeekFromCurrent(f.h, int32(offset))
	case io.SeekEnd:
		err = f.m.SeekFromEnd(f.h, int32(offset))
	default:
		return 0, ErrInvalidOffset
	}
	if err != nil {
		return 0, err
	}
	pos, err := f.m.FileOffset(f.h)
	return int64(pos), err
}

// Length returns the file's size in bytes.
func (f *File) Length() (uint32, error) {
	return f.m.FileLength(f.h)
}

// Close flushes the file's metadata and releases the handle.
func (f *File) Close() error {
	return f.m.CloseFile(f.h)
}
