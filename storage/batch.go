// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"encoding/binary"

	"github.com/syndtr/goleveldb/leveldb"
)

// Batch - a set of writes applied atomically by Commit
type Batch struct {
	database *Database
	batch    *leveldb.Batch
}

// NewBatch - start an empty batch
func (d *Database) NewBatch() *Batch {
	return &Batch{
		database: d,
		batch:    new(leveldb.Batch),
	}
}

// Put - queue a key/value write
func (b *Batch) Put(handle *PoolHandle, key []byte, value []byte) {
	b.batch.Put(handle.prefixKey(key), value)
}

// PutN - queue a uint64 write
func (b *Batch) PutN(handle *PoolHandle, key []byte, value uint64) {
	buffer := make([]byte, 8)
	binary.BigEndian.PutUint64(buffer, value)
	b.Put(handle, key, buffer)
}

// Delete - queue a key removal
func (b *Batch) Delete(handle *PoolHandle, key []byte) {
	b.batch.Delete(handle.prefixKey(key))
}

// Len - number of queued operations
func (b *Batch) Len() int {
	return b.batch.Len()
}

// Commit - write every queued operation or none of them
//
// an empty batch is a no-op
func (b *Batch) Commit() error {
	b.database.RLock()
	defer b.database.RUnlock()
	db, err := b.database.handle()
	if nil != err {
		return err
	}
	if 0 == b.batch.Len() {
		return nil
	}
	err = db.Write(b.batch, nil)
	b.batch.Reset()
	return err
}
