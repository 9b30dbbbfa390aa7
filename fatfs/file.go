// Copyright 2026 The Thinfat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package fatfs

import (
	"io"
	"os"
	"path"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/thinfat/thinfat"
	"github.com/thinfat/thinfat/direntry"
)

// file implements afero.File over a thinfat file or directory handle. It
// holds the parent directory handle open for the lifetime of the file, which
// also pins the volume.
type file struct {
	fs   *Fs
	dir  thinfat.DirHandle
	fh   thinfat.FileHandle
	path string

	isDir    bool
	writable bool
	closed   bool

	// Directory listing state for Readdir.
	listing []os.FileInfo
	listPos int
}

var _ afero.File = (*file)(nil)

func (f *file) Close() error {
	if f.closed {
		return afero.ErrFileClosed
	}
	f.closed = true

	var err error
	if !f.isDir {
		err = f.fs.m.CloseFile(f.fh)
	}
	if cerr := f.fs.m.CloseDir(f.dir); err == nil {
		err = cerr
	}
	return err
}

func (f *file) Name() string {
	return path.Base("/" + f.path)
}

func (f *file) Read(p []byte) (int, error) {
	if f.closed {
		return 0, afero.ErrFileClosed
	}
	if f.isDir {
		return 0, thinfat.ErrIsADirectory
	}
	n, err := f.fs.m.Read(f.fh, p)
	if err != nil {
		return n, err
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (f *file) ReadAt(p []byte, off int64) (int, error) {
	if f.closed {
		return 0, afero.ErrFileClosed
	}
	if f.isDir {
		return 0, thinfat.ErrIsADirectory
	}

	// The handle keeps one shared offset; save and restore it around the
	// positioned read.
	saved, err := f.fs.m.FileOffset(f.fh)
	if err != nil {
		return 0, err
	}
	if off < 0 || off > int64(^uint32(0)) {
		return 0, thinfat.ErrInvalidOffset
	}
	if err := f.fs.m.SeekFromStart(f.fh, uint32(off)); err != nil {
		return 0, err
	}
	n, err := f.fs.m.Read(f.fh, p)
	if rerr := f.fs.m.SeekFromStart(f.fh, saved); err == nil {
		err = rerr
	}
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *file) Write(p []byte) (int, error) {
	if f.closed {
		return 0, afero.ErrFileClosed
	}
	if f.isDir {
		return 0, thinfat.ErrIsADirectory
	}
	return f.fs.m.Write(f.fh, p)
}

func (f *file) WriteAt(p []byte, off int64) (int, error) {
	if f.closed {
		return 0, afero.ErrFileClosed
	}
	if f.isDir {
		return 0, thinfat.ErrIsADirectory
	}
	saved, err := f.fs.m.FileOffset(f.fh)
	if err != nil {
		return 0, err
	}
	if off < 0 || off > int64(^uint32(0)) {
		return 0, thinfat.ErrInvalidOffset
	}
	if err := f.fs.m.SeekFromStart(f.fh, uint32(off)); err != nil {
		return 0, err
	}
	n, err := f.fs.m.Write(f.fh, p)
	if rerr := f.fs.m.SeekFromStart(f.fh, saved); err == nil {
		err = rerr
	}
	return n, err
}

func (f *file) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, afero.ErrFileClosed
	}
	if f.isDir {
		return 0, thinfat.ErrIsADirectory
	}

	var err error
	switch whence {
	case io.SeekStart:
		if offset < 0 || offset > int64(^uint32(0)) {
			return 0, thinfat.ErrInvalidOffset
		}
		err = f.fs.m.SeekFromStart(f.fh, uint32(offset))
	case io.SeekCurrent:
		err = f.fs.m.SeekFromCurrent(f.fh, int32(offset))
	case io.SeekEnd:
		err = f.fs.m.SeekFromEnd(f.fh, int32(offset))
	default:
		return 0, thinfat.ErrInvalidOffset
	}
	if err != nil {
		return 0, err
	}
	pos, err := f.fs.m.FileOffset(f.fh)
	return int64(pos), err
}

// load reads the directory once, caching the listing for successive Readdir
// calls.
func (f *file) load() error {
	if f.listing != nil {
		return nil
	}
	var infos []os.FileInfo
	err := f.fs.m.IterateDir(f.dir, func(e *direntry.Entry) {
		if e.Name == "." || e.Name == ".." {
			return
		}
		infos = append(infos, entryInfo{entry: *e})
	})
	if err != nil {
		return err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })
	f.listing = infos
	return nil
}

func (f *file) Readdir(count int) ([]os.FileInfo, error) {
	if f.closed {
		return nil, afero.ErrFileClosed
	}
	if !f.isDir {
		return nil, thinfat.ErrNotADirectory
	}
	if err := f.load(); err != nil {
		return nil, err
	}

	if count <= 0 {
		rest := f.listing[f.listPos:]
		f.listPos = len(f.listing)
		return rest, nil
	}
	if f.listPos >= len(f.listing) {
		return nil, io.EOF
	}
	end := f.listPos + count
	if end > len(f.listing) {
		end = len(f.listing)
	}
	out := f.listing[f.listPos:end]
	f.listPos = end
	return out, nil
}

func (f *file) Readdirnames(count int) ([]string, error) {
	infos, err := f.Readdir(count)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name()
	}
	return names, nil
}

func (f *file) Stat() (os.FileInfo, error) {
	if f.closed {
		return nil, afero.ErrFileClosed
	}
	return f.fs.Stat(f.path)
}

func (f *file) Sync() error {
	if f.closed {
		return afero.ErrFileClosed
	}
	if f.isDir {
		return nil
	}
	return f.fs.m.FlushFile(f.fh)
}

func (f *file) Truncate(size int64) error {
	if f.closed {
		return afero.ErrFileClosed
	}
	if f.isDir {
		return thinfat.ErrIsADirectory
	}
	if size != 0 {
		return errors.Wrap(ErrUnsupported, "truncate to a non-zero size")
	}
	return f.fs.m.TruncateFile(f.fh)
}

func (f *file) WriteString(s string) (int, error) {
	return f.Write([]byte(s))
}
