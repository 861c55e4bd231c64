// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"time"

	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/token"
	"github.com/bitmark-inc/offlined/transaction"
)

// CheckUnspent - every id is stored, undivided and unspent
func (w *Wallet) CheckUnspent(ids []string) error {
	for _, id := range ids {
		t, err := w.get(id)
		if nil != err {
			return err
		}
		if t.IsSpent {
			return fault.ErrAlreadySpentToken
		}
		if t.IsDivided() {
			return fault.ErrTokenDivided
		}
	}
	return nil
}

// CompleteOutgoing - mark the transaction's tokens spent and store tx
// in one batch
//
// tx must already carry its completed status.  On any error nothing
// is written.
func (w *Wallet) CompleteOutgoing(tx *transaction.Transaction, now time.Time) error {
	if transaction.Outgoing != tx.Direction || 0 == len(tx.TokenIds) {
		return fault.ErrInvalidTransaction
	}

	unlock := w.locks.lock(tx.TokenIds...)
	defer unlock()

	tokens := make([]*token.OfflineToken, 0, len(tx.TokenIds))
	for _, id := range tx.TokenIds {
		if owner, ok := w.reservedBy(id); ok && owner != tx.Id {
			return fault.ErrTokenInUse
		}
		t, err := w.get(id)
		if nil != err {
			return err
		}
		if t.IsSpent {
			return fault.ErrAlreadySpentToken
		}
		if t.IsDivided() {
			return fault.ErrTokenDivided
		}
		tokens = append(tokens, t)
	}
	if token.TotalAmount(tokens) < tx.Amount {
		return fault.ErrInvalidTransaction
	}

	batch := w.db.NewBatch()
	for _, t := range tokens {
		t.MarkSpent(now)
		batch.Put(w.db.Pool.Tokens, []byte(t.Id), t.Pack())
	}
	batch.Put(w.db.Pool.Transactions, []byte(tx.Id), tx.Pack())
	if err := batch.Commit(); nil != err {
		w.log.Errorf("complete: %s  commit error: %s", tx.Id, err)
		return err
	}

	w.Release(tx.Id)
	w.log.Infof("spent: %d tokens  amount: %d  tx: %s", len(tokens), tx.Amount, tx.Id)
	return nil
}

// ReceiveIncoming - store received tokens and tx in one batch
//
// a token id already known to the wallet is a double spend
func (w *Wallet) ReceiveIncoming(tx *transaction.Transaction, tokens []*token.OfflineToken, now time.Time) error {
	if transaction.Incoming != tx.Direction || 0 == len(tokens) {
		return fault.ErrInvalidTransaction
	}

	unlock := w.locks.lock(token.Ids(tokens)...)
	defer unlock()

	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t.Id]; ok {
			return fault.ErrDoubleSpendDetected
		}
		seen[t.Id] = struct{}{}

		if err := w.Validate(t, now); nil != err {
			return err
		}
		if t.IsDivided() {
			return fault.ErrTokenDivided
		}
		found, err := w.Has(t.Id)
		if nil != err {
			return err
		}
		if found {
			w.log.Warnf("receive: tx: %s  token: %s already known", tx.Id, t.Id)
			return fault.ErrDoubleSpendDetected
		}
	}
	if token.TotalAmount(tokens) < tx.Amount {
		return fault.ErrInvalidTransaction
	}

	batch := w.db.NewBatch()
	for _, t := range tokens {
		batch.Put(w.db.Pool.Tokens, []byte(t.Id), t.Pack())
	}
	batch.Put(w.db.Pool.Transactions, []byte(tx.Id), tx.Pack())
	if err := batch.Commit(); nil != err {
		w.log.Errorf("receive: %s  commit error: %s", tx.Id, err)
		return err
	}
	w.log.Infof("received: %d tokens  amount: %d  tx: %s", len(tokens), tx.Amount, tx.Id)
	return nil
}
