// Copyright 2026 The Thinfat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package thinfat

// Mode selects how OpenFileInDir opens or creates a file.
type Mode int

const (
	// ModeReadOnly opens an existing file for reading.
	ModeReadOnly Mode = iota

	// ModeReadWriteAppend opens an existing file with the offset at EOF.
	ModeReadWriteAppend

	// ModeReadWriteTruncate opens an existing file and truncates it to zero
	// length.
	ModeReadWriteTruncate

	// ModeReadWriteCreate creates a new file, failing if it exists.
	ModeReadWriteCreate

	// ModeReadWriteCreateOrAppend creates the file if absent, otherwise
	// appends.
	ModeReadWriteCreateOrAppend

	// ModeReadWriteCreateOrTruncate creates the file if absent, otherwise
	// truncates it.
	ModeReadWriteCreateOrTruncate
)

// writable reports whether the mode permits writes.
func (m Mode) writable() bool {
	return m != ModeReadOnly
}

// creates reports whether the mode may create a missing file.
func (m Mode) creates() bool {
	switch m {
	case ModeReadWriteCreate, ModeReadWriteCreateOrAppend, ModeReadWriteCreateOrTruncate:
		return true
	default:
		return false
	}
}

// truncates reports whether the mode truncates an existing file on open.
func (m Mode) truncates() bool {
	return m == ModeReadWriteTruncate || m == ModeReadWriteCreateOrTruncate
}

// appends reports whether the mode starts with the offset at EOF.
func (m Mode) appends() bool {
	return m == ModeReadWriteAppend || m == ModeReadWriteCreateOrAppend
}

func (m Mode) String() string {
	switch m {
	case ModeReadOnly:
		return "ReadOnly"
	case ModeReadWriteAppend:
		return "ReadWriteAppend"
	case ModeReadWriteTruncate:
		return "ReadWriteTruncate"
	case ModeReadWriteCreate:
		return "ReadWriteCreate"
	case ModeReadWriteCreateOrAppend:
		return "ReadWriteCreateOrAppend"
	case ModeReadWriteCreateOrTruncate:
		return "ReadWriteCreateOrTruncate"
	default:
		return "Unknown"
	}
}
