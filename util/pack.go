// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package util

import (
	"time"

	"github.com/bitmark-inc/offlined/fault"
)

// maximum length of any single packed field
const maxFieldLength = 1 << 20

// AppendUint64 - append a Varint64 to a buffer
func AppendUint64(buffer []byte, value uint64) []byte {
	return append(buffer, ToVarint64(value)...)
}

// AppendBytes - append a field prefixed by Varint64(length)
func AppendBytes(buffer []byte, data []byte) []byte {
	buffer = AppendUint64(buffer, uint64(len(data)))
	return append(buffer, data...)
}

// AppendString - append a string prefixed by Varint64(length)
func AppendString(buffer []byte, s string) []byte {
	return AppendBytes(buffer, []byte(s))
}

// AppendTime - append a timestamp as Varint64(unix nanoseconds)
//
// times before the epoch are not representable and pack as zero,
// which unpacks as the zero time
func AppendTime(buffer []byte, t time.Time) []byte {
	if t.IsZero() || t.Year() < 1970 {
		return AppendUint64(buffer, 0)
	}
	ns := t.UnixNano()
	if ns < 0 {
		ns = 0
	}
	return AppendUint64(buffer, uint64(ns))
}

// Unpacker - sequential reader for buffers built with the Append functions
type Unpacker struct {
	buffer []byte
	n      int
}

// NewUnpacker - start reading from the beginning of a buffer
func NewUnpacker(buffer []byte) *Unpacker {
	return &Unpacker{
		buffer: buffer,
	}
}

// Uint64 - read the next Varint64
func (u *Unpacker) Uint64() (uint64, error) {
	value, count := FromVarint64(u.buffer[u.n:])
	if 0 == count {
		return 0, fault.ErrInvalidPacket
	}
	u.n += count
	return value, nil
}

// Bytes - read the next length prefixed field
//
// the result is a copy so the original buffer may be reused
func (u *Unpacker) Bytes() ([]byte, error) {
	length, count := ClippedVarint64(u.buffer[u.n:], 0, maxFieldLength)
	if 0 == count {
		return nil, fault.ErrInvalidPacket
	}
	start := u.n + count
	if start+length > len(u.buffer) {
		return nil, fault.ErrInvalidPacket
	}
	data := make([]byte, length)
	copy(data, u.buffer[start:start+length])
	u.n = start + length
	return data, nil
}

// String - read the next length prefixed string
func (u *Unpacker) String() (string, error) {
	b, err := u.Bytes()
	if nil != err {
		return "", err
	}
	return string(b), nil
}

// Time - read the next timestamp
func (u *Unpacker) Time() (time.Time, error) {
	ns, err := u.Uint64()
	if nil != err {
		return time.Time{}, err
	}
	if 0 == ns {
		return time.Time{}, nil
	}
	return time.Unix(0, int64(ns)).UTC(), nil
}

// Fixed - read exactly n raw bytes
func (u *Unpacker) Fixed(n int) ([]byte, error) {
	if n < 0 || u.n+n > len(u.buffer) {
		return nil, fault.ErrInvalidPacket
	}
	data := make([]byte, n)
	copy(data, u.buffer[u.n:u.n+n])
	u.n += n
	return data, nil
}

// Offset - number of bytes consumed so far
func (u *Unpacker) Offset() int {
	return u.n
}

// Remaining - number of bytes not yet consumed
func (u *Unpacker) Remaining() int {
	return len(u.buffer) - u.n
}
