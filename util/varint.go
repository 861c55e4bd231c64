// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package util

// Varint64MaximumBytes - maximum possible number of bytes in Varint64
const Varint64MaximumBytes = 9

// ToVarint64 - convert a 64 bit unsigned integer to Varint64
//
// the first eight bytes carry 7 bits each with the top bit as the
// extension flag, a ninth byte (if needed) carries the full 8 bits
func ToVarint64(value uint64) []byte {
	result := make([]byte, 0, Varint64MaximumBytes)
	for i := 0; i < Varint64MaximumBytes-1; i += 1 {
		if value < 0x80 {
			return append(result, byte(value))
		}
		result = append(result, byte(value)|0x80)
		value >>= 7
	}
	return append(result, byte(value))
}

// FromVarint64 - convert an array of up to Varint64MaximumBytes to a uint64
//
// also return the number of bytes used as second value
// returns 0, 0 if varint64 buffer is truncated
func FromVarint64(buffer []byte) (uint64, int) {
	result := uint64(0)
	shift := uint(0)
	for count := 0; count < len(buffer) && count < Varint64MaximumBytes; count += 1 {
		b := uint64(buffer[count])
		if Varint64MaximumBytes-1 == count {
			return result | b<<shift, count + 1
		}
		result |= (b & 0x7f) << shift
		if 0 == b&0x80 {
			return result, count + 1
		}
		shift += 7
	}
	return 0, 0
}

// ClippedVarint64 - return a positive clipped value as an int
// any value outside the range minimum..maximum is an error
func ClippedVarint64(buffer []byte, minimum int, maximum int) (int, int) {
	if minimum < 0 || maximum < 0 || minimum >= maximum {
		return 0, 0
	}

	value, count := FromVarint64(buffer)
	if 0 == count || value > uint64(maximum) {
		return 0, 0
	}
	iValue := int(value)
	if iValue < minimum {
		return 0, 0
	}
	return iValue, count
}
