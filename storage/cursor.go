// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/bitmark-inc/offlined/fault"
)

// FetchCursor - cursor structure
type FetchCursor struct {
	pool     *PoolHandle
	maxRange util.Range
}

// NewFetchCursor - initialise a cursor to the start of a key range
func (p *PoolHandle) NewFetchCursor() *FetchCursor {
	return &FetchCursor{
		pool:     p,
		maxRange: *p.fullRange(),
	}
}

// Seek - move cursor to specific key position
func (cursor *FetchCursor) Seek(key []byte) *FetchCursor {
	cursor.maxRange.Start = cursor.pool.prefixKey(key)
	return cursor
}

// Fetch - return some elements starting from key
//
// the cursor advances past the last element returned
func (cursor *FetchCursor) Fetch(count int) ([]Element, error) {
	if nil == cursor {
		return nil, fault.ErrMissingParameters
	}
	if count <= 0 {
		return nil, fault.ErrInvalidCount
	}

	cursor.pool.database.RLock()
	defer cursor.pool.database.RUnlock()
	db, err := cursor.pool.database.handle()
	if nil != err {
		return nil, err
	}

	iter := db.NewIterator(&cursor.maxRange, nil)

	results := make([]Element, 0, count)
iterating:
	for iter.Next() {
		results = append(results, copyElement(iter.Key(), iter.Value()))
		if len(results) >= count {
			break iterating
		}
	}
	iter.Release()
	err = iter.Error()

	if n := len(results); n > 0 {
		// smallest key strictly after the last one returned
		next := cursor.pool.prefixKey(results[n-1].Key)
		cursor.maxRange.Start = append(next, 0x00)
	}
	return results, err
}

// Map - run a function on all elements in the range
func (cursor *FetchCursor) Map(f func(key []byte, value []byte) error) error {
	if nil == cursor {
		return fault.ErrMissingParameters
	}

	cursor.pool.database.RLock()
	defer cursor.pool.database.RUnlock()
	db, err := cursor.pool.database.handle()
	if nil != err {
		return err
	}

	iter := db.NewIterator(&cursor.maxRange, nil)

iterating:
	for iter.Next() {
		e := copyElement(iter.Key(), iter.Value())
		err = f(e.Key, e.Value)
		if nil != err {
			break iterating
		}
	}
	iter.Release()
	if nil == err {
		err = iter.Error()
	}
	return err
}

// contents of iterator slices must not be modified, and are
// only valid until the next call to Next
func copyElement(key []byte, value []byte) Element {
	dataKey := make([]byte, len(key)-1) // strip the prefix
	copy(dataKey, key[1:])              // ...

	dataValue := make([]byte, len(value))
	copy(dataValue, value)

	return Element{
		Key:   dataKey,
		Value: dataValue,
	}
}
