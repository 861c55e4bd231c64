// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"time"

	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/token"
)

// Divide - split a stored token, the parent stays in the store with
// its division records and is no longer spendable
func (w *Wallet) Divide(id string, paymentAmount uint64, now time.Time) (*token.OfflineToken, *token.OfflineToken, error) {
	return w.divide(id, paymentAmount, now, "")
}

func (w *Wallet) divide(id string, paymentAmount uint64, now time.Time, txId string) (*token.OfflineToken, *token.OfflineToken, error) {
	unlock := w.locks.lock(id)
	defer unlock()

	if owner, ok := w.reservedBy(id); ok && owner != txId {
		return nil, nil, fault.ErrTokenInUse
	}

	t, err := w.get(id)
	if nil != err {
		return nil, nil, err
	}

	payment, change, err := token.Divide(t, w.Issuer(), w.holder, paymentAmount, now)
	if nil != err {
		return nil, nil, err
	}
	if nil == change && payment.Id == t.Id {
		return payment, nil, nil
	}

	batch := w.db.NewBatch()
	batch.Put(w.db.Pool.Tokens, []byte(t.Id), t.Pack())
	batch.Put(w.db.Pool.Tokens, []byte(payment.Id), payment.Pack())
	if nil != change {
		batch.Put(w.db.Pool.Tokens, []byte(change.Id), change.Pack())
	}
	if err := batch.Commit(); nil != err {
		return nil, nil, err
	}

	if nil != change {
		w.log.Debugf("divided: %s  payment: %s (%d)  change: %s (%d)", t.Id, payment.Id, payment.Amount, change.Id, change.Amount)
	} else {
		w.log.Debugf("divided: %s  payment: %s (%d)", t.Id, payment.Id, payment.Amount)
	}
	return payment, change, nil
}

// Select - reserve tokens worth exactly amount for a transaction
//
// a single token of the exact amount is preferred, otherwise the
// smallest token covering the remainder, otherwise the largest token
// and continue.  Any excess in the final token is split off as change.
func (w *Wallet) Select(txId string, amount uint64, now time.Time) ([]*token.OfflineToken, error) {
	if 0 == amount {
		return nil, fault.ErrZeroAmount
	}
	if "" == txId {
		return nil, fault.ErrMissingParameters
	}

	available, err := w.Available(now)
	if nil != err {
		return nil, err
	}
	if token.TotalAmount(available) < amount {
		return nil, fault.ErrInsufficientBalance
	}

	chosen := choose(available, amount)
	if err := w.reserve(txId, token.Ids(chosen)); nil != err {
		return nil, err
	}

	total := token.TotalAmount(chosen)
	if total > amount {
		last := chosen[len(chosen)-1]
		excess := total - amount
		payment, _, err := w.divide(last.Id, last.Amount-excess, now, txId)
		if nil != err {
			w.Release(txId)
			return nil, err
		}
		w.Lock()
		delete(w.reserved, last.Id)
		w.reserved[payment.Id] = txId
		w.Unlock()
		chosen[len(chosen)-1] = payment
	}

	w.log.Debugf("selected: %d tokens  amount: %d  for: %s", len(chosen), amount, txId)
	return chosen, nil
}

// available is ordered largest first
func choose(available []*token.OfflineToken, amount uint64) []*token.OfflineToken {
	for _, t := range available {
		if t.Amount == amount {
			return []*token.OfflineToken{t}
		}
	}

	chosen := make([]*token.OfflineToken, 0, 4)
	pool := append([]*token.OfflineToken(nil), available...)
	remaining := amount
	for remaining > 0 && 0 != len(pool) {
		// smallest token covering the remainder
		cover := -1
		for i, t := range pool {
			if t.Amount >= remaining {
				cover = i
			}
		}
		if cover >= 0 {
			chosen = append(chosen, pool[cover])
			return chosen
		}
		chosen = append(chosen, pool[0])
		remaining -= pool[0].Amount
		pool = pool[1:]
	}
	return chosen
}

// Reserve - hold tokens for a transaction
func (w *Wallet) Reserve(txId string, ids []string) error {
	return w.reserve(txId, ids)
}

func (w *Wallet) reserve(txId string, ids []string) error {
	w.Lock()
	defer w.Unlock()
	for _, id := range ids {
		if owner, ok := w.reserved[id]; ok && owner != txId {
			return fault.ErrTokenInUse
		}
	}
	for _, id := range ids {
		w.reserved[id] = txId
	}
	return nil
}

// Release - drop all reservations of a transaction
func (w *Wallet) Release(txId string) {
	w.Lock()
	defer w.Unlock()
	for id, owner := range w.reserved {
		if owner == txId {
			delete(w.reserved, id)
		}
	}
}

func (w *Wallet) reservedBy(id string) (string, bool) {
	w.RLock()
	defer w.RUnlock()
	owner, ok := w.reserved[id]
	return owner, ok
}
