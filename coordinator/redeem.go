// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coordinator

import (
	"context"
	"time"

	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/messagebus"
	"github.com/bitmark-inc/offlined/settlement"
	"github.com/bitmark-inc/offlined/token"
	"github.com/bitmark-inc/offlined/transaction"
)

// Redeem - hand whole tokens back to the issuer
//
// the tokens are spent locally at once and the transaction stays
// Pending until settlement reports through Settled
func (c *Coordinator) Redeem(ctx context.Context, tokenIds []string) (*transaction.Transaction, error) {
	settler := c.getSettler()
	if nil == settler {
		return nil, fault.ErrSettlementUnavailable
	}
	issuer := c.wallet.Issuer()
	if nil == issuer {
		return nil, fault.ErrMissingParameters
	}
	if 0 == len(tokenIds) {
		return nil, fault.ErrMissingParameters
	}

	tokens := make([]*token.OfflineToken, 0, len(tokenIds))
	for _, id := range tokenIds {
		t, err := c.wallet.Get(id)
		if nil != err {
			return nil, err
		}
		tokens = append(tokens, t)
	}

	now := time.Now()
	txId := transaction.NewId()
	if err := c.wallet.Reserve(txId, tokenIds); nil != err {
		return nil, err
	}
	tx, err := transaction.NewWithId(txId, transaction.Redemption, transaction.Outgoing, c.holder.Account().String(), issuer.String(), token.TotalAmount(tokens), tokenIds, now)
	if nil != err {
		c.wallet.Release(txId)
		return nil, err
	}
	if err := c.save(tx); nil != err {
		c.wallet.Release(txId)
		return nil, err
	}

	if err := c.withdraw(tx); nil != err {
		return tx, c.abort(tx, err, false)
	}

	if err := settler.Submit(ctx, tx, tokens); nil != err {
		// tokens are already out of the wallet, the queue entry is the
		// only record of their value
		c.log.Criticalf("tx: %s  settlement submit error: %s", tx.Id, err)
		return tx, err
	}
	c.log.Infof("redeem: %d tokens  amount: %d  tx: %s", len(tokens), tx.Amount, tx.Id)
	c.requestDrain(tx)
	return tx, nil
}

func (c *Coordinator) withdraw(tx *transaction.Transaction) error {
	if err := tx.SignAsSender(c.holder); nil != err {
		return err
	}
	if err := c.advance(tx, transaction.Signed); nil != err {
		return err
	}
	if err := c.advance(tx, transaction.Verifying); nil != err {
		return err
	}
	if err := c.wallet.CheckUnspent(tx.TokenIds); nil != err {
		return err
	}

	pending := tx.Clone()
	now := time.Now()
	if err := pending.SetStatus(transaction.Pending, now); nil != err {
		return err
	}
	if err := c.wallet.CompleteOutgoing(pending, now); nil != err {
		return err
	}
	*tx = *pending
	return nil
}

// Settled - result of a queued redemption
func (c *Coordinator) Settled(txId string, receipt *settlement.Receipt, failure error) {
	tx, err := c.Transaction(txId)
	if nil != err {
		c.log.Errorf("settled: tx: %s  error: %s", txId, err)
		return
	}
	if transaction.Redemption != tx.Type || transaction.Pending != tx.Status {
		c.log.Warnf("settled: tx: %s  type: %s  status: %s  ignored", txId, tx.Type, tx.Status)
		return
	}

	now := time.Now()
	if nil != failure {
		err = tx.Fail(failure, now)
	} else {
		err = tx.SetStatus(transaction.Completed, now)
	}
	if nil != err {
		c.log.Errorf("settled: tx: %s  error: %s", txId, err)
		return
	}
	if err := c.save(tx); nil != err {
		c.log.Errorf("settled: tx: %s  save error: %s", txId, err)
		return
	}

	if nil != failure {
		c.log.Errorf("settled: tx: %s  failed: %s", txId, failure)
		return
	}
	c.publish(messagebus.Settled, tx)
	if nil != receipt {
		if err := c.wallet.Synchronised(receipt.NewBalance, now); nil != err {
			c.log.Errorf("settled: tx: %s  state error: %s", txId, err)
		}
		c.log.Infof("settled: tx: %s  hash: %s  balance: %d", txId, receipt.TransactionHash, receipt.NewBalance)
	}
}
