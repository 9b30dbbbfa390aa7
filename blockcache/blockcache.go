// Copyright 2026 The Thinfat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package blockcache provides the single-sector scratch buffer that sits
// between the filesystem engine and a block.Device.
//
// The cache holds exactly one block at a time. Fetching a different block
// first stores the current block if it has been modified, so a flush is
// never lost to eviction. All engine reads and writes, including
// read-modify-write cycles on partial sectors, go through this buffer.
package blockcache

import (
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/thinfat/thinfat/block"
)

// Cache is a one-block cache over a block.Device.
type Cache struct {
	dev     block.Device
	buf     [block.BlockSize]byte
	current block.Idx
	valid   bool
	dirty   bool
}

// New returns a Cache over dev with no block loaded.
func New(dev block.Device) *Cache {
	return &Cache{dev: dev}
}

// Device returns the underlying block device.
func (c *Cache) Device() block.Device {
	return c.dev
}

// fetch loads the requested block into the buffer, storing the previously
// cached block first if it is dirty.
func (c *Cache) fetch(idx block.Idx) error {
	if c.valid && c.current == idx {
		return nil
	}

	if err := c.Flush(); err != nil {
		return err
	}

	if glog.V(2) {
		glog.Infof("Fetching block %d from the device", idx)
	}
	if err := c.dev.ReadBlocks(c.buf[:], idx); err != nil {
		c.valid = false
		return errors.Wrapf(err, "blockcache: read block %d", idx)
	}
	c.current = idx
	c.valid = true
	return nil
}

// Block returns the contents of the requested block for reading. The returned
// slice aliases the cache buffer and is only valid until the next call on the
// cache.
func (c *Cache) Block(idx block.Idx) ([]byte, error) {
	if err := c.fetch(idx); err != nil {
		return nil, err
	}
	return c.buf[:], nil
}

// BlockForWrite returns the contents of the requested block and marks the
// buffer dirty, for read-modify-write cycles. The modified buffer is written
// back on the next fetch of a different block or on Flush.
func (c *Cache) BlockForWrite(idx block.Idx) ([]byte, error) {
	if err := c.fetch(idx); err != nil {
		return nil, err
	}
	c.dirty = true
	return c.buf[:], nil
}

// BlockFresh returns a zeroed buffer for the requested block and marks it
// dirty, without reading the device. Used when the previous contents of the
// block are irrelevant, such as newly allocated directory clusters.
func (c *Cache) BlockFresh(idx block.Idx) ([]byte, error) {
	if !(c.valid && c.current == idx) {
		if err := c.Flush(); err != nil {
			return nil, err
		}
	}
	for i := range c.buf {
		c.buf[i] = 0
	}
	c.current = idx
	c.valid = true
	c.dirty = true
	return c.buf[:], nil
}

// Flush writes the cached block back to the device if it has been modified.
func (c *Cache) Flush() error {
	if !c.dirty {
		return nil
	}

	if glog.V(2) {
		glog.Infof("Storing block %d to the device", c.current)
	}
	if err := c.dev.WriteBlocks(c.buf[:], c.current); err != nil {
		return errors.Wrapf(err, "blockcache: write block %d", c.current)
	}
	c.dirty = false
	return nil
}

// Discard drops the cached block without writing it back. Only used on
// unrecoverable error paths.
func (c *Cache) Discard() {
	c.valid = false
	c.dirty = false
}
