// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coordinator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/packet"
	"github.com/bitmark-inc/offlined/token"
	"github.com/bitmark-inc/offlined/transaction"
)

// metadata keys of a payment made for a request
const (
	RequestIdKey   = "requestId"
	DescriptionKey = "description"
)

// Attach - serve the session's incoming messages until it closes,
// at most once per session
func (c *Coordinator) Attach(session Session) {
	c.Lock()
	if _, ok := c.served[session]; ok {
		c.Unlock()
		return
	}
	c.served[session] = struct{}{}
	c.Unlock()

	go func() {
		c.Serve(context.Background(), session)
		c.Lock()
		delete(c.served, session)
		c.Unlock()
	}()
}

// Serve - process incoming messages until the session or ctx ends
func (c *Coordinator) Serve(ctx context.Context, session Session) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-session.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		m, err := session.Receive(ctx)
		if nil != err {
			c.log.Debugf("peer: %s  serve stopped: %s", session.RemoteId(), err)
			return
		}
		c.dispatch(ctx, session, m)
	}
}

func (c *Coordinator) dispatch(ctx context.Context, session Session, m packet.Message) {
	switch m := m.(type) {

	case *packet.TokenTransferMessage:
		response := c.receive(session, m)
		if err := session.Send(ctx, response); nil != err {
			c.log.Errorf("tx: %s  response error: %s", response.TransactionId, err)
		}

	case *packet.PaymentResponseMessage:
		c.response(m)

	case *packet.PaymentRequestMessage:
		c.request(ctx, session, m)

	default:
		c.log.Warnf("peer: %s  unexpected message: %s", session.RemoteId(), m.Type())
	}
}

// Request - ask the session's device to pay amount to this device
func (c *Coordinator) Request(ctx context.Context, session Session, amount uint64, description string) (string, error) {
	if 0 == amount {
		return "", fault.ErrZeroAmount
	}
	c.Attach(session)
	m := &packet.PaymentRequestMessage{
		RequestId:   uuid.New().String(),
		ReceiverId:  c.holder.Account().String(),
		Amount:      amount,
		Description: description,
	}
	if err := session.Send(ctx, m); nil != err {
		return "", err
	}
	c.log.Infof("requested: %d  from: %s  request: %s", amount, session.RemoteId(), m.RequestId)
	return m.RequestId, nil
}

// pay an approved request in the background
func (c *Coordinator) request(ctx context.Context, session Session, m *packet.PaymentRequestMessage) {
	remote := session.RemoteDevice()
	if nil == remote || remote.String() != m.ReceiverId {
		c.log.Warnf("request: %s  receiver: %s is not the session device", m.RequestId, m.ReceiverId)
		return
	}

	c.Lock()
	handler := c.handler
	c.Unlock()
	if nil == handler || !handler(session.RemoteId(), m) {
		c.log.Infof("request: %s  amount: %d  declined", m.RequestId, m.Amount)
		return
	}

	metadata := map[string]string{RequestIdKey: m.RequestId}
	if "" != m.Description {
		metadata[DescriptionKey] = m.Description
	}
	go func() {
		if _, err := c.Pay(ctx, session, m.Amount, metadata); nil != err {
			c.log.Errorf("request: %s  pay error: %s", m.RequestId, err)
		}
	}()
}

// the receiver's side of a transfer, always produces a response
func (c *Coordinator) receive(session Session, m *packet.TokenTransferMessage) *packet.PaymentResponseMessage {
	tx := m.Transaction
	tx.Direction = transaction.Incoming
	tx.Status = transaction.Initiated
	tx.UpdatedAt = time.Now().UTC()

	response := &packet.PaymentResponseMessage{
		TransactionId: tx.Id,
	}

	stored, err := c.Transaction(tx.Id)
	switch {
	case nil != err && !fault.IsErrNotFound(err):
		response.Reason = err.Error()
		return response

	case nil == err && transaction.Incoming != stored.Direction:
		response.Reason = fault.ErrInvalidTransaction.Error()
		return response

	case nil == err && transaction.Completed == stored.Status:
		// the sender did not get the first response
		c.log.Infof("tx: %s  already received", tx.Id)
		response.Accepted = true
		response.ReceiverSignature = stored.ReceiverSignature
		return response

	case nil == err && !(transaction.Failed == stored.Status && stored.Retryable):
		response.Reason = stored.FailureReason
		if "" == response.Reason {
			response.Reason = fault.ErrTokenInUse.Error()
		}
		return response
	}

	if err := c.accept(session, tx, m.Tokens); nil != err {
		c.abort(tx, err, false)
		response.Reason = err.Error()
		return response
	}
	response.Accepted = true
	response.ReceiverSignature = tx.ReceiverSignature
	c.log.Infof("received: %d  from: %s  tx: %s", tx.Amount, tx.SenderId, tx.Id)
	return response
}

func (c *Coordinator) accept(session Session, tx *transaction.Transaction, tokens []*token.OfflineToken) error {
	if transaction.Transfer != tx.Type {
		return fault.ErrInvalidTransaction
	}
	if tx.ReceiverId != c.holder.Account().String() {
		return fault.ErrInvalidTransaction
	}
	remote := session.RemoteDevice()
	if nil == remote || remote.String() != tx.SenderId {
		return fault.ErrWrongSender
	}
	if err := tx.VerifySender(); nil != err {
		return err
	}
	if !sameIds(tx.TokenIds, token.Ids(tokens)) || token.TotalAmount(tokens) != tx.Amount {
		return fault.ErrInvalidTransaction
	}
	if err := c.save(tx); nil != err {
		return err
	}

	if err := tx.SignAsReceiver(c.holder); nil != err {
		return err
	}
	if err := c.advance(tx, transaction.Signed); nil != err {
		return err
	}
	if err := c.advance(tx, transaction.Verifying); nil != err {
		return err
	}
	if err := c.checkRecent(tx); nil != err {
		return err
	}
	if err := c.advance(tx, transaction.Pending); nil != err {
		return err
	}

	now := time.Now()
	completed := tx.Clone()
	if err := completed.SetStatus(transaction.Completed, now); nil != err {
		return err
	}
	if err := c.wallet.ReceiveIncoming(completed, tokens, now); nil != err {
		return err
	}
	*tx = *completed

	c.remember(tx)
	c.record(tx)
	return nil
}

func sameIds(a []string, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
