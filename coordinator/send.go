// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/packet"
	"github.com/bitmark-inc/offlined/token"
	"github.com/bitmark-inc/offlined/transaction"
)

// Pay - send amount to the session's device, dividing a token if the
// wallet holds no exact cover
func (c *Coordinator) Pay(ctx context.Context, session Session, amount uint64, metadata map[string]string) (*transaction.Transaction, error) {
	receiver := session.RemoteDevice()
	if nil == receiver {
		return nil, fault.ErrNotConnected
	}
	if 0 == amount {
		return nil, fault.ErrZeroAmount
	}

	now := time.Now()
	txId := transaction.NewId()
	tokens, err := c.wallet.Select(txId, amount, now)
	if nil != err {
		return nil, err
	}

	tx, err := transaction.NewWithId(txId, transaction.Transfer, transaction.Outgoing, c.holder.Account().String(), receiver.String(), amount, token.Ids(tokens), now)
	if nil != err {
		c.wallet.Release(txId)
		return nil, err
	}
	for k, v := range metadata {
		tx.Metadata[k] = v
	}
	return c.send(ctx, session, tx, tokens)
}

// Transfer - send specific whole tokens
func (c *Coordinator) Transfer(ctx context.Context, session Session, tokenIds []string, metadata map[string]string) (*transaction.Transaction, error) {
	receiver := session.RemoteDevice()
	if nil == receiver {
		return nil, fault.ErrNotConnected
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

	tx, err := transaction.NewWithId(txId, transaction.Transfer, transaction.Outgoing, c.holder.Account().String(), receiver.String(), token.TotalAmount(tokens), tokenIds, now)
	if nil != err {
		c.wallet.Release(txId)
		return nil, err
	}
	for k, v := range metadata {
		tx.Metadata[k] = v
	}
	return c.send(ctx, session, tx, tokens)
}

// Retry - send a retryable failed transfer again under the same id
func (c *Coordinator) Retry(ctx context.Context, session Session, txId string) (*transaction.Transaction, error) {
	tx, err := c.Transaction(txId)
	if nil != err {
		return nil, err
	}
	if transaction.Outgoing != tx.Direction || transaction.Transfer != tx.Type {
		return nil, fault.ErrInvalidTransaction
	}
	if nil == session.RemoteDevice() || session.RemoteDevice().String() != tx.ReceiverId {
		return nil, fault.ErrWrongSender
	}
	if err := tx.Retry(time.Now()); nil != err {
		return nil, err
	}

	tokens := make([]*token.OfflineToken, 0, len(tx.TokenIds))
	for _, id := range tx.TokenIds {
		t, err := c.wallet.Get(id)
		if nil != err {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	if err := c.wallet.Reserve(tx.Id, tx.TokenIds); nil != err {
		return nil, err
	}
	c.log.Infof("retry: tx: %s", tx.Id)
	return c.send(ctx, session, tx, tokens)
}

// Cancel - abort an outgoing transaction that has not completed
func (c *Coordinator) Cancel(txId string) error {
	c.Lock()
	f, ok := c.inflight[txId]
	if ok {
		f.cancelled = true
		f.cancel()
	}
	c.Unlock()
	if ok {
		return nil
	}

	tx, err := c.Transaction(txId)
	if nil != err {
		return err
	}
	if err := tx.Cancel(time.Now()); nil != err {
		return err
	}
	if transaction.Outgoing == tx.Direction {
		c.wallet.Release(tx.Id)
	}
	return c.save(tx)
}

// drive an Initiated outgoing transfer to Completed or Failed
func (c *Coordinator) send(ctx context.Context, session Session, tx *transaction.Transaction, tokens []*token.OfflineToken) (*transaction.Transaction, error) {
	c.Attach(session)

	ctx, f := c.startFlight(ctx, tx.Id)
	defer c.endFlight(tx.Id)

	responses := c.awaitResponse(tx.Id)
	defer c.stopResponse(tx.Id)

	if err := c.save(tx); nil != err {
		c.wallet.Release(tx.Id)
		return tx, err
	}

	if err := c.deliver(ctx, session, tx, tokens, responses); nil != err {
		return tx, c.abort(tx, err, f.wasCancelled(c))
	}
	c.log.Infof("paid: %d  to: %s  tx: %s", tx.Amount, tx.ReceiverId, tx.Id)
	return tx, nil
}

func (c *Coordinator) deliver(ctx context.Context, session Session, tx *transaction.Transaction, tokens []*token.OfflineToken, responses <-chan *packet.PaymentResponseMessage) error {
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
	if err := c.checkRecent(tx); nil != err {
		return err
	}

	if err := c.advance(tx, transaction.Pending); nil != err {
		return err
	}
	err := session.Send(ctx, &packet.TokenTransferMessage{Transaction: tx, Tokens: tokens})
	if nil != err {
		return transportError(err)
	}

	response, err := c.waitResponse(ctx, session, responses)
	if nil != err {
		return err
	}
	if !response.Accepted {
		return fmt.Errorf("%w: %s", fault.ErrRemoteRejected, response.Reason)
	}
	tx.ReceiverSignature = response.ReceiverSignature
	if err := tx.VerifyReceiver(); nil != err {
		return err
	}

	// tokens flip to spent in the same batch that stores Completed
	now := time.Now()
	completed := tx.Clone()
	if err := completed.SetStatus(transaction.Completed, now); nil != err {
		return err
	}
	if err := c.wallet.CompleteOutgoing(completed, now); nil != err {
		return err
	}
	*tx = *completed

	c.remember(tx)
	c.record(tx)
	return nil
}

func (c *Coordinator) waitResponse(ctx context.Context, session Session, responses <-chan *packet.PaymentResponseMessage) (*packet.PaymentResponseMessage, error) {
	timer := time.NewTimer(c.config.ResponseTimeout)
	defer timer.Stop()

	select {
	case response := <-responses:
		return response, nil
	case <-timer.C:
		return nil, fault.ErrTimeout
	case <-session.Done():
		return nil, fault.ErrSessionClosed
	case <-ctx.Done():
		return nil, transportError(ctx.Err())
	}
}

// a deadline on the caller's context is a timeout, retryable like any
// other transport failure
func transportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fault.ErrTimeout
	}
	return err
}

func (c *Coordinator) startFlight(ctx context.Context, txId string) (context.Context, *flight) {
	ctx, cancel := context.WithCancel(ctx)
	f := &flight{cancel: cancel}
	c.Lock()
	c.inflight[txId] = f
	c.Unlock()
	return ctx, f
}

func (c *Coordinator) endFlight(txId string) {
	c.Lock()
	if f, ok := c.inflight[txId]; ok {
		f.cancel()
		delete(c.inflight, txId)
	}
	c.Unlock()
}

func (f *flight) wasCancelled(c *Coordinator) bool {
	c.Lock()
	defer c.Unlock()
	return f.cancelled
}

func (c *Coordinator) awaitResponse(txId string) <-chan *packet.PaymentResponseMessage {
	ch := make(chan *packet.PaymentResponseMessage, 1)
	c.Lock()
	c.waiting[txId] = ch
	c.Unlock()
	return ch
}

func (c *Coordinator) stopResponse(txId string) {
	c.Lock()
	delete(c.waiting, txId)
	c.Unlock()
}

// route a response to the transfer waiting for it
func (c *Coordinator) response(m *packet.PaymentResponseMessage) {
	c.Lock()
	ch, ok := c.waiting[m.TransactionId]
	c.Unlock()
	if !ok {
		c.log.Warnf("response for unknown tx: %s", m.TransactionId)
		return
	}
	select {
	case ch <- m:
	default:
		c.log.Warnf("duplicate response for tx: %s", m.TransactionId)
	}
}
