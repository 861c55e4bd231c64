// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package settlement

import (
	"context"
	"errors"
	"sync"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/storage"
	"github.com/bitmark-inc/offlined/token"
	"github.com/bitmark-inc/offlined/transaction"
	"github.com/bitmark-inc/offlined/util"
)

// queue key prefixes
const (
	redemptionPrefix = 'r'
	recordPrefix     = 's'
)

// largest number of transactions in one synchronise call
const maxSynchroniseBatch = 100

// Listener - told the outcome of each queued redemption
type Listener interface {
	Settled(txId string, receipt *Receipt, failure error)
}

// Queue - persistent settlement queue of one wallet
type Queue struct {
	log      *logger.L
	db       *storage.Database
	client   Client
	walletId string

	// serialises drains
	sync.Mutex

	listenerLock sync.RWMutex
	listener     Listener
}

// NewQueue - queue stored in db and drained to client
func NewQueue(db *storage.Database, client Client, walletId string) *Queue {
	return &Queue{
		log:      logger.New("settlement"),
		db:       db,
		client:   client,
		walletId: walletId,
	}
}

// SetListener - receiver of redemption outcomes
func (q *Queue) SetListener(listener Listener) {
	q.listenerLock.Lock()
	q.listener = listener
	q.listenerLock.Unlock()
}

func (q *Queue) notify(txId string, receipt *Receipt, failure error) {
	q.listenerLock.RLock()
	listener := q.listener
	q.listenerLock.RUnlock()
	if nil != listener {
		listener.Settled(txId, receipt, failure)
	}
}

// Submit - queue a redemption of tokens
func (q *Queue) Submit(ctx context.Context, tx *transaction.Transaction, tokens []*token.OfflineToken) error {
	if nil == tx || 0 == len(tokens) {
		return fault.ErrMissingParameters
	}
	buffer := util.AppendUint64(nil, uint64(len(tokens)))
	for _, t := range tokens {
		buffer = util.AppendBytes(buffer, t.Pack())
	}
	if err := q.db.Pool.SettlementQueue.Put(queueKey(redemptionPrefix, tx.Id), buffer); nil != err {
		return err
	}
	q.log.Infof("queued redemption: %s  tokens: %d", tx.Id, len(tokens))
	return nil
}

// Record - queue a completed transaction for synchronisation
func (q *Queue) Record(tx *transaction.Transaction) error {
	if nil == tx || transaction.Completed != tx.Status {
		return fault.ErrInvalidTransaction
	}
	return q.db.Pool.SettlementQueue.Put(queueKey(recordPrefix, tx.Id), tx.Pack())
}

// Pending - queued redemptions and records
func (q *Queue) Pending() (int, int, error) {
	redemptions := 0
	records := 0
	err := q.db.Pool.SettlementQueue.NewFetchCursor().Map(func(key []byte, value []byte) error {
		if 0 == len(key) {
			return nil
		}
		switch key[0] {
		case redemptionPrefix:
			redemptions += 1
		case recordPrefix:
			records += 1
		}
		return nil
	})
	return redemptions, records, err
}

// Drain - submit everything queued
//
// stops at the first unavailable or transport error leaving the rest
// queued.  A redemption rejected by the authority is removed and its
// failure reported.  Returns the number of redemptions settled.
func (q *Queue) Drain(ctx context.Context) (int, error) {
	q.Lock()
	defer q.Unlock()

	elements, err := q.db.Pool.SettlementQueue.Filter(nil)
	if nil != err {
		return 0, err
	}

	settled := 0
	records := make([]storage.Element, 0, len(elements))
	for _, e := range elements {
		if 0 == len(e.Key) {
			continue
		}
		switch e.Key[0] {
		case redemptionPrefix:
			ok, err := q.redeem(ctx, string(e.Key[1:]), e)
			if nil != err {
				return settled, err
			}
			if ok {
				settled += 1
			}
		case recordPrefix:
			records = append(records, e)
		default:
			q.log.Warnf("unknown queue key: %q", e.Key)
		}
	}

	for len(records) > 0 {
		n := len(records)
		if n > maxSynchroniseBatch {
			n = maxSynchroniseBatch
		}
		if err := q.synchronise(ctx, records[:n]); nil != err {
			return settled, err
		}
		records = records[n:]
	}
	return settled, nil
}

// unavailable or cancelled: keep the entry and stop
func stopDrain(err error) bool {
	return fault.IsRetryable(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (q *Queue) redeem(ctx context.Context, txId string, e storage.Element) (bool, error) {
	tokens, err := unpackTokens(e.Value)
	if nil != err {
		q.log.Errorf("redemption: %s  unpack error: %s", txId, err)
		q.remove(e.Key)
		q.notify(txId, nil, err)
		return false, nil
	}

	// an acknowledged token is never submitted again
	remaining := make([]*token.OfflineToken, 0, len(tokens))
	for _, t := range tokens {
		redeemed, err := q.db.Pool.Redeemed.Has([]byte(t.Id))
		if nil != err {
			return false, err
		}
		if !redeemed {
			remaining = append(remaining, t)
		}
	}
	if 0 == len(remaining) {
		q.log.Infof("redemption: %s  already acknowledged", txId)
		q.remove(e.Key)
		return false, nil
	}

	receipt, err := q.client.Redeem(ctx, remaining, q.walletId)
	if nil != err {
		if stopDrain(err) {
			q.log.Infof("redemption: %s  deferred: %s", txId, err)
			return false, err
		}
		q.log.Errorf("redemption: %s  rejected: %s", txId, err)
		q.remove(e.Key)
		q.notify(txId, nil, err)
		return false, nil
	}

	batch := q.db.NewBatch()
	batch.Delete(q.db.Pool.SettlementQueue, e.Key)
	for _, t := range remaining {
		batch.Put(q.db.Pool.Redeemed, []byte(t.Id), []byte(receipt.TransactionHash))
	}
	if err := batch.Commit(); nil != err {
		return false, err
	}
	q.log.Infof("redemption: %s  settled hash: %s  balance: %d", txId, receipt.TransactionHash, receipt.NewBalance)
	q.notify(txId, receipt, nil)
	return true, nil
}

func (q *Queue) synchronise(ctx context.Context, elements []storage.Element) error {
	txs := make([]*transaction.Transaction, 0, len(elements))
	for _, e := range elements {
		tx, err := transaction.Unpack(e.Value)
		if nil != err {
			q.log.Errorf("record: %q  unpack error: %s", e.Key, err)
			q.remove(e.Key)
			continue
		}
		txs = append(txs, tx)
	}
	if 0 == len(txs) {
		return nil
	}

	err := q.client.Synchronise(ctx, q.walletId, txs)
	if nil != err && stopDrain(err) {
		return err
	}
	if nil != err {
		q.log.Errorf("synchronise: %d transactions  rejected: %s", len(txs), err)
	} else {
		q.log.Infof("synchronised: %d transactions", len(txs))
	}

	batch := q.db.NewBatch()
	for _, e := range elements {
		batch.Delete(q.db.Pool.SettlementQueue, e.Key)
	}
	return batch.Commit()
}

func (q *Queue) remove(key []byte) {
	if err := q.db.Pool.SettlementQueue.Delete(key); nil != err {
		q.log.Errorf("remove: %q  error: %s", key, err)
	}
}

func queueKey(prefix byte, txId string) []byte {
	return append([]byte{prefix}, txId...)
}

func unpackTokens(buffer []byte) ([]*token.OfflineToken, error) {
	u := util.NewUnpacker(buffer)
	count, err := u.Uint64()
	if nil != err {
		return nil, err
	}
	if 0 == count || count > uint64(u.Remaining()) {
		return nil, fault.ErrInvalidCount
	}
	tokens := make([]*token.OfflineToken, 0, count)
	for i := uint64(0); i < count; i += 1 {
		packed, err := u.Bytes()
		if nil != err {
			return nil, err
		}
		t, err := token.Unpack(packed)
		if nil != err {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, nil
}
