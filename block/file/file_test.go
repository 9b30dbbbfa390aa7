// Copyright 2026 The Thinfat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package file

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/thinfat/thinfat/block"
	"github.com/thinfat/thinfat/block/blocktest"
)

const numBlocks = 1024

func setUp(t *testing.T) (*File, []byte, *rand.Rand) {
	t.Helper()
	seed := time.Now().UnixNano()
	t.Log("Seed is", seed)
	r := rand.New(rand.NewSource(seed))

	buf := make([]byte, numBlocks*block.BlockSize)
	r.Read(buf)

	path := filepath.Join(t.TempDir(), "image.bin")
	if err := os.WriteFile(path, buf, 0o600); err != nil {
		t.Fatal(err)
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })

	dev, err := New(f)
	if err != nil {
		t.Fatal(err)
	}
	return dev, buf, r
}

func TestReadBlocks(t *testing.T) {
	dev, buf, r := setUp(t)
	blocktest.ReadBlocks(t, dev, r, buf)
}

func TestWriteBlocks(t *testing.T) {
	dev, buf, r := setUp(t)
	blocktest.WriteBlocks(t, dev, r, buf)
}

func TestErrorPaths(t *testing.T) {
	dev, _, _ := setUp(t)
	blocktest.ErrorPaths(t, dev)
}

func TestSizeRoundsDownToWholeBlocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragged.bin")
	if err := os.WriteFile(path, make([]byte, 3*block.BlockSize+100), 0o600); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	dev, err := New(f)
	if err != nil {
		t.Fatal(err)
	}
	if got := dev.NumBlocks(); got != 3 {
		t.Errorf("NumBlocks = %d; want 3", got)
	}
}
