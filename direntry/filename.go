// Copyright 2026 The Thinfat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package direntry

import (
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/pkg/errors"
)

const (
	cBad = 0 // Characters disallowed in both short and long filenames.
	cLng = 1 // Characters legal in long names but not in short names.
	cSkp = 2 // '.' or ' '. Handled separately during conversion.

	dosBaseNameLen = 8
	dosExtNameLen  = 3
	dosNameLen     = dosBaseNameLen + dosExtNameLen

	maxASCII = '\u007F' // Highest ASCII value (DEL), never valid in a name
)

// ErrInvalidName indicates a filename which cannot be stored: disallowed
// characters, too long, or codepoints outside the Basic Multilingual Plane.
var ErrInvalidName = errors.New("direntry: invalid filename")

// asciiFilter classifies ASCII characters [0, 0x7F] for filename purposes.
// Values > cSkp are the character to store in a short name (lowercase letters
// fold to uppercase).
var asciiFilter = [128]byte{
	cBad, cBad, cBad, cBad, cBad, cBad, cBad, cBad, /* 00-07 */
	cBad, cBad, cBad, cBad, cBad, cBad, cBad, cBad, /* 08-0f */
	cBad, cBad, cBad, cBad, cBad, cBad, cBad, cBad, /* 10-17 */
	cBad, cBad, cBad, cBad, cBad, cBad, cBad, cBad, /* 18-1f */
	cSkp, 0x21, cBad, 0x23, 0x24, 0x25, 0x26, 0x27, /* 20-27 */
	0x28, 0x29, cBad, cLng, cLng, 0x2d, cSkp, cBad, /* 28-2f */
	0x30, 0x31, 0x32, 0x33, 0x34, 0x35, 0x36, 0x37, /* 30-37 */
	0x38, 0x39, cBad, cLng, cBad, cLng, cBad, cBad, /* 38-3f */
	0x40, 0x41, 0x42, 0x43, 0x44, 0x45, 0x46, 0x47, /* 40-47 */
	0x48, 0x49, 0x4a, 0x4b, 0x4c, 0x4d, 0x4e, 0x4f, /* 48-4f */
	0x50, 0x51, 0x52, 0x53, 0x54, 0x55, 0x56, 0x57, /* 50-57 */
	0x58, 0x59, 0x5a, cLng, cBad, cLng, 0x5e, 0x5f, /* 58-5f */
	0x60, 0x41, 0x42, 0x43, 0x44, 0x45, 0x46, 0x47, /* 60-67 */
	0x48, 0x49, 0x4a, 0x4b, 0x4c, 0x4d, 0x4e, 0x4f, /* 68-6f */
	0x50, 0x51, 0x52, 0x53, 0x54, 0x55, 0x56, 0x57, /* 70-77 */
	0x58, 0x59, 0x5a, 0x7b, cBad, 0x7d, 0x7e, cBad, /* 78-7f */
}

// Checksum computes the rolling checksum of an 11-byte short name, stored in
// every LFN entry that references it.
func Checksum(name []uint8) uint8 {
	if len(name) != dosNameLen {
		panic("Checksumming invalid short name")
	}
	var sum uint8
	for i := 0; i < dosNameLen; i++ {
		sum = ((sum & 1) << 7) + (sum >> 1) + name[i]
	}
	return sum
}

// shortNameToString renders the 11 raw bytes of an 8.3 name as "BASE.EXT".
func shortNameToString(nameDOS []byte) string {
	switch string(nameDOS) {
	case ".          ":
		return "."
	case "..         ":
		return ".."
	}

	buf := make([]byte, 0, dosNameLen+1)
	for i := 0; i < dosBaseNameLen && nameDOS[i] != ' '; i++ {
		c := nameDOS[i]
		if i == 0 {
			switch c {
			case charE5:
				// 0xE5 is reserved to mean "free entry"; 0x05 escapes it.
				c = charFree
			case charLastFree, charFree:
				// Free entries have no filename.
				return ""
			}
		}
		buf = append(buf, c)
	}

	if nameDOS[dosBaseNameLen] != ' ' {
		buf = append(buf, '.')
		for i := dosBaseNameLen; i < dosNameLen && nameDOS[i] != ' '; i++ {
			buf = append(buf, nameDOS[i])
		}
	}
	return string(buf)
}

// ToUCS2 converts a filename to the UCS-2 units stored in LFN entries. It
// rejects empty names, names longer than 255 units, disallowed characters,
// and codepoints outside the Basic Multilingual Plane.
func ToUCS2(name string) ([]uint16, error) {
	if name == "" {
		return nil, errors.Wrap(ErrInvalidName, "empty name")
	}
	runes := make([]rune, 0, len(name))
	for _, r := range name {
		if r <= maxASCII {
			switch asciiFilter[r] {
			case cBad:
				return nil, errors.Wrapf(ErrInvalidName, "character %q", r)
			}
		} else if r > 0xFFFF {
			return nil, errors.Wrapf(ErrInvalidName, "codepoint %U is outside the BMP", r)
		}
		runes = append(runes, r)
	}
	units := utf16.Encode(runes)
	if len(units) > LongnameMaxLen {
		return nil, errors.Wrapf(ErrInvalidName, "%d UCS-2 units", len(units))
	}
	return units, nil
}

// shortBasis converts any storable name into the base and extension of its
// 8.3 basis name ("." and ".." are passed through). It reports lossy == true
// when the name cannot be represented exactly and a long name plus a
// generated tail are required.
func shortBasis(name string) (base, ext []byte, lossy bool, err error) {
	// "." and ".." do not follow the usual conversion rules.
	if name == "." {
		return []byte{'.'}, nil, false, nil
	}
	if name == ".." {
		return []byte{'.', '.'}, nil, false, nil
	}

	// Trailing spaces and dots are ignored in both short and long names.
	name = strings.TrimRight(name, " .")
	if name == "" {
		return nil, nil, false, errors.Wrap(ErrInvalidName, "name is all spaces and dots")
	}

	// Split on the LAST dot: everything after it is the extension.
	dot := strings.LastIndexByte(name, '.')
	basePart := name
	extPart := ""
	if dot >= 0 {
		basePart, extPart = name[:dot], name[dot+1:]
	}

	convert := func(part string) ([]byte, bool, error) {
		out := make([]byte, 0, len(part))
		lossy := false
		for _, r := range part {
			if r > maxASCII {
				// Short names are ASCII-only; the character survives only in
				// the long name.
				lossy = true
				out = append(out, '_')
				continue
			}
			c := asciiFilter[r]
			switch c {
			case cBad:
				return nil, false, errors.Wrapf(ErrInvalidName, "character %q", r)
			case cLng:
				lossy = true
				out = append(out, '_')
			case cSkp:
				// Spaces and embedded dots are dropped from short names.
				lossy = true
			default:
				if c != byte(r) {
					// Lowercase folded to uppercase.
					lossy = true
				}
				out = append(out, c)
			}
		}
		return out, lossy, nil
	}

	baseConv, lossyBase, err := convert(basePart)
	if err != nil {
		return nil, nil, false, err
	}
	extConv, lossyExt, err := convert(extPart)
	if err != nil {
		return nil, nil, false, err
	}
	if len(baseConv) == 0 {
		// Names like ".profile" have an empty basis and always need a tail.
		lossyBase = true
	}

	lossy = lossyBase || lossyExt
	if len(baseConv) > dosBaseNameLen {
		baseConv = baseConv[:dosBaseNameLen]
		lossy = true
	}
	if len(extConv) > dosExtNameLen {
		extConv = extConv[:dosExtNameLen]
		lossy = true
	}
	return baseConv, extConv, lossy, nil
}

func composeDOSName(base, ext []byte) [dosNameLen]byte {
	var name [dosNameLen]byte
	for i := range name {
		name[i] = ' '
	}
	copy(name[:dosBaseNameLen], base)
	copy(name[dosBaseNameLen:], ext)
	if name[0] == charFree {
		// 'E5' is reserved for free slots; '05' marks a real 0xE5 byte.
		name[0] = charE5
	}
	return name
}

// MakeShortName implements the basis-name and numeric-tail generation
// algorithms: it converts name to an 8.3 short name, appending the lowest
// "~N" tail that does not collide according to "exists". It reports
// longNeeded == true when LFN entries must accompany the short entry.
func MakeShortName(name string, exists func(short [dosNameLen]byte) (bool, error)) (short [dosNameLen]byte, longNeeded bool, err error) {
	base, ext, lossy, err := shortBasis(name)
	if err != nil {
		return short, false, err
	}

	if !lossy {
		short = composeDOSName(base, ext)
		if taken, err := exists(short); err != nil {
			return short, false, err
		} else if !taken {
			return short, false, nil
		}
		// An exact 8.3 name that collides still gets a numeric tail; the
		// caller reports the collision separately if the names are equal.
	}

	for gen := 1; gen < 1000000; gen++ {
		gentext := strconv.Itoa(gen)
		tildeIndex := dosBaseNameLen - (len(gentext) + 1)
		if tildeIndex < 0 {
			break
		}
		tailBase := base
		if len(tailBase) > tildeIndex {
			tailBase = tailBase[:tildeIndex]
		}
		tailBase = append(append(append([]byte{}, tailBase...), '~'), gentext...)

		short = composeDOSName(tailBase, ext)
		if taken, err := exists(short); err != nil {
			return short, false, err
		} else if !taken {
			return short, true, nil
		}
	}
	return short, false, errors.Wrap(ErrInvalidName, "no free numeric tail")
}

// NeedsLong reports whether storing name requires LFN entries in addition to
// the generated short entry.
func NeedsLong(name string) (bool, error) {
	_, _, lossy, err := shortBasis(name)
	return lossy, err
}

// asciiFoldEqual compares two names case-insensitively for ASCII letters and
// exactly for everything else, the comparison FAT performs on long names.
func asciiFoldEqual(a, b string) bool {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) != len(rb) {
		return false
	}
	fold := func(r rune) rune {
		if 'a' <= r && r <= 'z' {
			return r - 'a' + 'A'
		}
		return r
	}
	for i := range ra {
		if fold(ra[i]) != fold(rb[i]) {
			return false
		}
	}
	return true
}

// NameMatches reports whether a directory entry answers to the query name:
// either its long name compares equal (ASCII case-insensitive, non-ASCII
// exact) or its 8.3 rendering does.
func NameMatches(e *Entry, query string) bool {
	if asciiFoldEqual(e.Name, query) {
		return true
	}
	return asciiFoldEqual(shortNameToString(e.ShortName[:]), query)
}
