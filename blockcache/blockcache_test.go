// Copyright 2026 The Thinfat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package blockcache

import (
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"

	"github.com/thinfat/thinfat/block"
	"github.com/thinfat/thinfat/block/fake"
	"github.com/thinfat/thinfat/block/mock"
)

func TestReadThrough(t *testing.T) {
	dev := fake.New(8)
	for i := range dev {
		dev[i] = byte(i)
	}
	c := New(dev)

	buf, err := c.Block(2)
	if err != nil {
		t.Fatal(err)
	}
	for i, b := range buf {
		if want := byte(2*block.BlockSize + i); b != want {
			t.Fatalf("buf[%d] = %#x; want %#x", i, b, want)
		}
	}
}

func TestWriteBack(t *testing.T) {
	dev := fake.New(8)
	c := New(dev)

	buf, err := c.BlockForWrite(3)
	if err != nil {
		t.Fatal(err)
	}
	buf[0] = 0xAB

	// Not yet on the device: the cache still holds the dirty block.
	if dev[3*block.BlockSize] != 0 {
		t.Fatal("dirty block reached the device before flush")
	}

	// Fetching a different block forces the store.
	if _, err := c.Block(0); err != nil {
		t.Fatal(err)
	}
	if dev[3*block.BlockSize] != 0xAB {
		t.Error("dirty block was not stored on eviction")
	}
}

func TestFlush(t *testing.T) {
	dev := fake.New(8)
	c := New(dev)

	buf, err := c.BlockForWrite(1)
	if err != nil {
		t.Fatal(err)
	}
	buf[10] = 0x42
	if err := c.Flush(); err != nil {
		t.Fatal(err)
	}
	if dev[block.BlockSize+10] != 0x42 {
		t.Error("Flush did not store the dirty block")
	}

	// A second flush with nothing dirty performs no device I/O; exercised
	// below with the mock.
	if err := c.Flush(); err != nil {
		t.Fatal(err)
	}
}

func TestBlockFresh(t *testing.T) {
	dev := fake.New(8)
	for i := range dev {
		dev[i] = 0xFF
	}
	c := New(dev)

	buf, err := c.BlockFresh(5)
	if err != nil {
		t.Fatal(err)
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("fresh buf[%d] = %#x; want 0", i, b)
		}
	}
	if err := c.Flush(); err != nil {
		t.Fatal(err)
	}
	if dev[5*block.BlockSize] != 0 {
		t.Error("fresh block was not stored")
	}
}

func TestCachedFetchAvoidsDeviceReads(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	dev := mock.NewMockDevice(ctrl)

	// Exactly one device read for two fetches of the same block.
	dev.EXPECT().ReadBlocks(gomock.Any(), block.Idx(4)).Return(nil).Times(1)

	c := New(dev)
	if _, err := c.Block(4); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Block(4); err != nil {
		t.Fatal(err)
	}
}

func TestReadErrorPropagates(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	dev := mock.NewMockDevice(ctrl)

	devErr := errors.New("SPI bus timeout")
	dev.EXPECT().ReadBlocks(gomock.Any(), block.Idx(7)).Return(devErr).Times(1)

	c := New(dev)
	if _, err := c.Block(7); !errors.Is(err, devErr) {
		t.Errorf("Block = %v; want the device error", err)
	}

	// After a failed fetch, the cache must not serve stale contents.
	dev.EXPECT().ReadBlocks(gomock.Any(), block.Idx(7)).Return(nil).Times(1)
	if _, err := c.Block(7); err != nil {
		t.Errorf("retry after failure: %v", err)
	}
}

func TestWriteErrorPropagates(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	dev := mock.NewMockDevice(ctrl)

	devErr := errors.New("card removed")
	dev.EXPECT().ReadBlocks(gomock.Any(), block.Idx(1)).Return(nil).Times(1)
	dev.EXPECT().WriteBlocks(gomock.Any(), block.Idx(1)).Return(devErr).Times(1)

	c := New(dev)
	if _, err := c.BlockForWrite(1); err != nil {
		t.Fatal(err)
	}
	if err := c.Flush(); !errors.Is(err, devErr) {
		t.Errorf("Flush = %v; want the device error", err)
	}
}
