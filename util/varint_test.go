// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package util_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/offlined/util"
)

var varint64Tests = []struct {
	value   uint64
	encoded []byte
}{
	{0, []byte{0x00}},
	{1, []byte{0x01}},
	{127, []byte{0x7f}},
	{128, []byte{0x80, 0x01}},
	{137, []byte{0x89, 0x01}},
	{16383, []byte{0xff, 0x7f}},
	{16384, []byte{0x80, 0x80, 0x01}},
	{0x7fffffffffffffff, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x7f}},
	{0x8000000000000000, []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80}},
	{0xffffffffffffffff, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}},
}

func TestVarint64(t *testing.T) {
	for i, item := range varint64Tests {
		if result := util.ToVarint64(item.value); !bytes.Equal(result, item.encoded) {
			t.Errorf("%d: ToVarint64(%x) -> %x  expected: %x", i, item.value, result, item.encoded)
		}
		value, count := util.FromVarint64(append(item.encoded, 0xff, 0x97))
		if value != item.value || count != len(item.encoded) {
			t.Errorf("%d: FromVarint64(%x) -> %d, %d  expected: %d, %d", i, item.encoded, value, count, item.value, len(item.encoded))
		}
	}
}

func TestTruncatedVarint64(t *testing.T) {
	for i, b := range [][]byte{{}, {0x80}, {0xff, 0xff}} {
		if value, count := util.FromVarint64(b); 0 != value || 0 != count {
			t.Errorf("%d: truncated %x -> %d, %d", i, b, value, count)
		}
	}
}

func TestClippedVarint64(t *testing.T) {
	value, count := util.ClippedVarint64([]byte{0x05}, 1, 10)
	assert.Equal(t, 5, value)
	assert.Equal(t, 1, count)

	_, count = util.ClippedVarint64([]byte{0x0b}, 1, 10)
	assert.Equal(t, 0, count, "value above maximum")

	_, count = util.ClippedVarint64([]byte{0x00}, 1, 10)
	assert.Equal(t, 0, count, "value below minimum")
}

func TestPackUnpack(t *testing.T) {
	when := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)

	buffer := util.AppendUint64(nil, 300)
	buffer = util.AppendString(buffer, "token-id")
	buffer = util.AppendBytes(buffer, []byte{1, 2, 3})
	buffer = util.AppendTime(buffer, when)

	u := util.NewUnpacker(buffer)
	n, err := u.Uint64()
	assert.Nil(t, err)
	assert.Equal(t, uint64(300), n)

	s, err := u.String()
	assert.Nil(t, err)
	assert.Equal(t, "token-id", s)

	b, err := u.Bytes()
	assert.Nil(t, err)
	assert.Equal(t, []byte{1, 2, 3}, b)

	ts, err := u.Time()
	assert.Nil(t, err)
	assert.True(t, when.Equal(ts), "time mismatch")
	assert.Equal(t, 0, u.Remaining())
}

func TestUnpackTruncatedField(t *testing.T) {
	buffer := util.AppendString(nil, "abcdef")
	u := util.NewUnpacker(buffer[:4])
	_, err := u.String()
	assert.NotNil(t, err, "truncated field must fail")
}
