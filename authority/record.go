// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package authority

import (
	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/storage"
	"github.com/bitmark-inc/offlined/transaction"
)

// Record - keep a wallet's completed offline transactions for audit
//
// every transaction must be completed and carry valid signatures, one
// bad transaction rejects the batch.  Returns the number not already
// recorded.
func (a *Authority) Record(walletId string, txs []*transaction.Transaction) (int, error) {
	if "" == walletId || 0 == len(txs) {
		return 0, fault.ErrMissingParameters
	}

	for _, tx := range txs {
		if nil == tx || transaction.Completed != tx.Status {
			return 0, fault.ErrInvalidTransaction
		}
		if err := tx.VerifySender(); nil != err {
			return 0, err
		}
		if transaction.Transfer == tx.Type {
			if err := tx.VerifyReceiver(); nil != err {
				return 0, err
			}
		}
	}

	a.Lock()
	defer a.Unlock()

	batch := a.db.NewBatch()
	for _, tx := range txs {
		key := recordKey(walletId, tx.Id)
		found, err := a.db.Pool.Synchronised.Has(key)
		if nil != err {
			return 0, err
		}
		if found {
			continue
		}
		batch.Put(a.db.Pool.Synchronised, key, tx.Pack())
	}
	n := batch.Len()
	if 0 == n {
		return 0, nil
	}
	if err := batch.Commit(); nil != err {
		a.log.Errorf("record: commit error: %s", err)
		return 0, err
	}
	a.log.Infof("record: %d transactions  wallet: %s", n, walletId)
	return n, nil
}

// Recorded - the transactions recorded for a wallet
func (a *Authority) Recorded(walletId string) ([]*transaction.Transaction, error) {
	prefix := string(recordKey(walletId, ""))
	elements, err := a.db.Pool.Synchronised.Filter(func(e storage.Element) bool {
		return len(e.Key) >= len(prefix) && string(e.Key[:len(prefix)]) == prefix
	})
	if nil != err {
		return nil, err
	}
	txs := make([]*transaction.Transaction, 0, len(elements))
	for _, e := range elements {
		tx, err := transaction.Unpack(e.Value)
		if nil != err {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func recordKey(walletId string, txId string) []byte {
	return []byte(walletId + "\x00" + txId)
}
