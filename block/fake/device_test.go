// Copyright 2026 The Thinfat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package fake

import (
	"math/rand"
	"testing"
	"time"

	"github.com/thinfat/thinfat/block/blocktest"
)

const numBlocks = 2048

func setUp(t *testing.T) (Device, []byte, *rand.Rand) {
	seed := time.Now().UnixNano()
	t.Log("Seed is", seed)
	r := rand.New(rand.NewSource(seed))

	dev := New(numBlocks)
	r.Read(dev)

	buf := make([]byte, len(dev))
	copy(buf, dev)

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
