// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	ldb_util "github.com/syndtr/goleveldb/leveldb/util"
)

// PoolHandle - access to one prefixed table
type PoolHandle struct {
	prefix   byte
	limit    []byte
	database *Database
}

// Element - a binary data item
type Element struct {
	Key   []byte
	Value []byte
}

// prepend the prefix onto the key
func (p *PoolHandle) prefixKey(key []byte) []byte {
	prefixedKey := make([]byte, 1, len(key)+1)
	prefixedKey[0] = p.prefix
	return append(prefixedKey, key...)
}

// Put - store a key/value bytes pair to the database
func (p *PoolHandle) Put(key []byte, value []byte) error {
	p.database.RLock()
	defer p.database.RUnlock()
	db, err := p.database.handle()
	if nil != err {
		return err
	}
	return db.Put(p.prefixKey(key), value, nil)
}

// PutN - store a uint64 as an 8 byte big endian record
func (p *PoolHandle) PutN(key []byte, value uint64) error {
	buffer := make([]byte, 8)
	binary.BigEndian.PutUint64(buffer, value)
	return p.Put(key, buffer)
}

// Delete - remove a key from the database
func (p *PoolHandle) Delete(key []byte) error {
	p.database.RLock()
	defer p.database.RUnlock()
	db, err := p.database.handle()
	if nil != err {
		return err
	}
	return db.Delete(p.prefixKey(key), nil)
}

// Get - read a value for a given key
//
// a missing key returns nil data and no error
func (p *PoolHandle) Get(key []byte) ([]byte, error) {
	p.database.RLock()
	defer p.database.RUnlock()
	db, err := p.database.handle()
	if nil != err {
		return nil, err
	}
	value, err := db.Get(p.prefixKey(key), nil)
	if leveldb.ErrNotFound == err {
		return nil, nil
	}
	return value, err
}

// GetN - read a record and decode first 8 bytes as big endian uint64
//
// second parameter is false if record was not found
func (p *PoolHandle) GetN(key []byte) (uint64, bool, error) {
	buffer, err := p.Get(key)
	if nil != err || nil == buffer {
		return 0, false, err
	}
	if len(buffer) < 8 {
		p.database.log.Errorf("pool.GetN truncated record for: %x: %x", key, buffer)
		return 0, false, fmt.Errorf("pool.GetN truncated record for: %x", key)
	}
	return binary.BigEndian.Uint64(buffer[:8]), true, nil
}

// Has - check if a key exists
func (p *PoolHandle) Has(key []byte) (bool, error) {
	p.database.RLock()
	defer p.database.RUnlock()
	db, err := p.database.handle()
	if nil != err {
		return false, err
	}
	return db.Has(p.prefixKey(key), nil)
}

// Filter - all elements accepted by the predicate, in key order
func (p *PoolHandle) Filter(accept func(Element) bool) ([]Element, error) {
	results := make([]Element, 0)
	err := p.NewFetchCursor().Map(func(key []byte, value []byte) error {
		e := Element{Key: key, Value: value}
		if nil == accept || accept(e) {
			results = append(results, e)
		}
		return nil
	})
	return results, err
}

// Count - number of elements in the pool
func (p *PoolHandle) Count() (int, error) {
	n := 0
	err := p.NewFetchCursor().Map(func(key []byte, value []byte) error {
		n += 1
		return nil
	})
	return n, err
}

func (p *PoolHandle) fullRange() *ldb_util.Range {
	return &ldb_util.Range{
		Start: []byte{p.prefix}, // Start of key range, included in the range
		Limit: p.limit,          // Limit of key range, excluded from the range
	}
}
