// Copyright 2026 The Thinfat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package blocktest provides a test library for exercising implementations of
// the block.Device interface.
package blocktest

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/thinfat/thinfat/block"
)

const numIterations = 100

// ReadBlocks tests the block.Device.ReadBlocks implementation. buf must be a
// []byte with the same contents as dev.
func ReadBlocks(t *testing.T, dev block.Device, r *rand.Rand, buf []byte) {
	numBlocks := int64(dev.NumBlocks())

	if int64(len(buf)) != numBlocks*block.BlockSize {
		t.Fatalf("len(buf) = %v; want %v", len(buf), numBlocks*block.BlockSize)
	}

	// Read a random number of blocks from a random block.
	for i := 0; i < numIterations; i++ {
		start := r.Int63n(numBlocks)
		count := r.Int63n(numBlocks - start)
		if count == 0 {
			count = 1
		}
		off := start * block.BlockSize

		expected := buf[off : off+count*block.BlockSize]
		actual := make([]byte, count*block.BlockSize)

		if err := dev.ReadBlocks(actual, block.Idx(start)); err != nil {
			t.Errorf("Error reading %v blocks from block %v: %v", count, start, err)
			continue
		}

		if !bytes.Equal(actual, expected) {
			t.Errorf("Mismatched contents for %v block read from block %v", count, start)
		}
	}
}

// WriteBlocks tests the block.Device.WriteBlocks implementation. buf must be
// a []byte with the same contents as dev; it is updated alongside the device.
func WriteBlocks(t *testing.T, dev block.Device, r *rand.Rand, buf []byte) {
	numBlocks := int64(dev.NumBlocks())

	if int64(len(buf)) != numBlocks*block.BlockSize {
		t.Fatalf("len(buf) = %v; want %v", len(buf), numBlocks*block.BlockSize)
	}

	// Write a random number of blocks to a random block.
	for i := 0; i < numIterations; i++ {
		start := r.Int63n(numBlocks)
		count := r.Int63n(numBlocks - start)
		if count == 0 {
			count = 1
		}
		off := start * block.BlockSize

		expected := make([]byte, count*block.BlockSize)
		r.Read(expected)

		if err := dev.WriteBlocks(expected, block.Idx(start)); err != nil {
			t.Errorf("Error writing %v blocks at block %v: %v", count, start, err)
			continue
		}

		copy(buf[off:], expected)
	}

	actual := make([]byte, numBlocks*block.BlockSize)
	if err := dev.ReadBlocks(actual, 0); err != nil {
		t.Error("Error reading contents of device: ", err)
	}
	if !bytes.Equal(actual, buf) {
		t.Error("Device contents differ from expected contents")
	}
}

// ErrorPaths tests that block.Device implementations return errors when
// clients attempt transfers with invalid arguments.
func ErrorPaths(t *testing.T, dev block.Device) {
	// len(p) is not a multiple of the block size.
	p := make([]byte, block.BlockSize-1)
	if err := dev.ReadBlocks(p, 0); err == nil {
		t.Error("dev.ReadBlocks returned a nil error for an unaligned len(p)")
	}
	if err := dev.WriteBlocks(p, 0); err == nil {
		t.Error("dev.WriteBlocks returned a nil error for an unaligned len(p)")
	}

	// Range is out of bounds.
	start := block.Idx(dev.NumBlocks() - 1)
	p = make([]byte, 2*block.BlockSize)
	if err := dev.ReadBlocks(p, start); err == nil {
		t.Error("dev.ReadBlocks returned a nil error for an out of bounds range")
	}
	if err := dev.WriteBlocks(p, start); err == nil {
		t.Error("dev.WriteBlocks returned a nil error for an out of bounds range")
	}
}
