// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coordinator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/packet"
	"github.com/bitmark-inc/offlined/transaction"
)

func TestPayEndToEnd(t *testing.T) {
	issuer := newKey(t)
	alice := newDevice(t, issuer, Config{})
	defer alice.close()
	bob := newDevice(t, issuer, Config{})
	defer bob.close()
	alice.fund(t, issuer, 100)

	settler := &fakeSettler{}
	alice.coord.SetSettler(settler)

	aliceSession, bobSession := connect(t, alice, bob)
	defer aliceSession.Close()
	defer bobSession.Close()

	tx, err := alice.coord.Pay(context.Background(), aliceSession, 30, map[string]string{"note": "lunch"})
	require.Nil(t, err, "pay")
	assert.Equal(t, transaction.Completed, tx.Status, "status")
	assert.Nil(t, tx.VerifySender(), "sender signature")
	assert.Nil(t, tx.VerifyReceiver(), "receiver signature")
	assert.Equal(t, uint64(70), alice.balance(t), "sender balance")

	stored, err := alice.coord.Transaction(tx.Id)
	require.Nil(t, err, "stored")
	assert.Equal(t, transaction.Completed, stored.Status, "stored status")
	assert.Equal(t, transaction.Outgoing, stored.Direction, "stored direction")

	received, err := bob.coord.Transaction(tx.Id)
	require.Nil(t, err, "received")
	assert.Equal(t, transaction.Incoming, received.Direction, "direction")
	assert.Equal(t, transaction.Completed, received.Status, "received status")
	assert.Equal(t, "lunch", received.Metadata["note"], "metadata")
	assert.Equal(t, uint64(30), bob.balance(t), "receiver balance")

	_, recorded := settler.counts()
	assert.Equal(t, 1, recorded, "recorded for synchronisation")

	assert.Equal(t, fault.ErrInvalidStateChange, alice.coord.Cancel(tx.Id), "cancel completed")
}

func TestSpentTokenCannotBeSentAgain(t *testing.T) {
	issuer := newKey(t)
	alice := newDevice(t, issuer, Config{})
	defer alice.close()
	bob := newDevice(t, issuer, Config{})
	defer bob.close()
	original := alice.fund(t, issuer, 100)[0]

	aliceSession, bobSession := connect(t, alice, bob)
	defer aliceSession.Close()
	defer bobSession.Close()

	tx, err := alice.coord.Pay(context.Background(), aliceSession, 30, nil)
	require.Nil(t, err, "pay")
	require.Equal(t, 1, len(tx.TokenIds), "one payment token")

	again, err := alice.coord.Transfer(context.Background(), aliceSession, tx.TokenIds, nil)
	assert.Equal(t, fault.ErrAlreadySpentToken, err, "second spend")
	assert.Equal(t, transaction.Failed, again.Status, "second status")
	assert.False(t, again.Retryable, "second retryable")

	_, err = alice.coord.Transfer(context.Background(), aliceSession, []string{original.Id}, nil)
	assert.Equal(t, fault.ErrTokenDivided, err, "divided parent")

	assert.Equal(t, uint64(70), alice.balance(t), "sender balance")
	assert.Equal(t, uint64(30), bob.balance(t), "receiver balance")
}

func TestPayInsufficientBalance(t *testing.T) {
	issuer := newKey(t)
	alice := newDevice(t, issuer, Config{})
	defer alice.close()
	alice.fund(t, issuer, 10)

	session := newFakeSession(newKey(t), nil)
	defer session.close()

	_, err := alice.coord.Pay(context.Background(), session, 11, nil)
	assert.Equal(t, fault.ErrInsufficientBalance, err, "pay")
	_, err = alice.coord.Pay(context.Background(), session, 0, nil)
	assert.Equal(t, fault.ErrZeroAmount, err, "zero")
	assert.Equal(t, 0, len(session.messages()), "nothing sent")
}

func TestPayRejected(t *testing.T) {
	issuer := newKey(t)
	alice := newDevice(t, issuer, Config{})
	defer alice.close()
	alice.fund(t, issuer, 100)

	session := newFakeSession(newKey(t), func(m packet.Message) []packet.Message {
		transfer := m.(*packet.TokenTransferMessage)
		return []packet.Message{
			&packet.PaymentResponseMessage{
				TransactionId: transfer.Transaction.Id,
				Reason:        "no thanks",
			},
		}
	})
	defer session.close()

	tx, err := alice.coord.Pay(context.Background(), session, 40, nil)
	assert.True(t, errors.Is(err, fault.ErrRemoteRejected), "error: %v", err)
	assert.Equal(t, transaction.Failed, tx.Status, "status")
	assert.False(t, tx.Retryable, "retryable")
	assert.Contains(t, tx.FailureReason, "no thanks", "reason")
	assert.Equal(t, uint64(100), alice.balance(t), "tokens released")

	stored, err := alice.coord.Transaction(tx.Id)
	require.Nil(t, err, "stored")
	assert.Equal(t, transaction.Failed, stored.Status, "stored status")

	_, err = alice.coord.Retry(context.Background(), session, tx.Id)
	assert.Equal(t, fault.ErrNotRetryable, err, "retry")
}

func TestPayBadReceiverSignature(t *testing.T) {
	issuer := newKey(t)
	alice := newDevice(t, issuer, Config{})
	defer alice.close()
	alice.fund(t, issuer, 100)

	session := newFakeSession(newKey(t), acceptAll(newKey(t)))
	defer session.close()

	tx, err := alice.coord.Pay(context.Background(), session, 100, nil)
	assert.Equal(t, fault.ErrInvalidSignature, err, "pay")
	assert.Equal(t, transaction.Failed, tx.Status, "status")
	assert.Equal(t, uint64(100), alice.balance(t), "tokens released")
}

func TestPayCommitFailureIsNotCompleted(t *testing.T) {
	issuer := newKey(t)
	alice := newDevice(t, issuer, Config{})
	defer alice.close()
	alice.fund(t, issuer, 100)

	bobKey := newKey(t)
	accept := acceptAll(bobKey)

	// the tokens are spent behind the coordinator's back while the
	// receiver is signing
	session := newFakeSession(bobKey, func(m packet.Message) []packet.Message {
		transfer := m.(*packet.TokenTransferMessage)
		for _, tok := range transfer.Tokens {
			spent := tok.Clone()
			spent.MarkSpent(time.Now())
			require.Nil(t, alice.db.Pool.Tokens.Put([]byte(spent.Id), spent.Pack()), "spend")
		}
		return accept(m)
	})
	defer session.close()

	tx, err := alice.coord.Pay(context.Background(), session, 100, nil)
	assert.Equal(t, fault.ErrAlreadySpentToken, err, "pay")

	stored, err := alice.coord.Transaction(tx.Id)
	require.Nil(t, err, "stored")
	assert.Equal(t, transaction.Failed, stored.Status, "never completed")
}

func TestPayTimeoutThenRetry(t *testing.T) {
	issuer := newKey(t)
	alice := newDevice(t, issuer, Config{ResponseTimeout: 100 * time.Millisecond})
	defer alice.close()
	alice.fund(t, issuer, 100)

	bobKey := newKey(t)
	accept := acceptAll(bobKey)
	var answering int32
	session := newFakeSession(bobKey, func(m packet.Message) []packet.Message {
		if 0 == atomic.LoadInt32(&answering) {
			return nil
		}
		return accept(m)
	})
	defer session.close()

	tx, err := alice.coord.Pay(context.Background(), session, 25, nil)
	assert.Equal(t, fault.ErrTimeout, err, "pay")
	assert.Equal(t, transaction.Failed, tx.Status, "status")
	assert.True(t, tx.Retryable, "retryable")
	assert.Equal(t, uint64(100), alice.balance(t), "tokens released")

	atomic.StoreInt32(&answering, 1)
	retried, err := alice.coord.Retry(context.Background(), session, tx.Id)
	require.Nil(t, err, "retry")
	assert.Equal(t, tx.Id, retried.Id, "same id")
	assert.Equal(t, transaction.Completed, retried.Status, "status")
	assert.Equal(t, uint64(75), alice.balance(t), "balance")
}

func TestPayCancelled(t *testing.T) {
	issuer := newKey(t)
	alice := newDevice(t, issuer, Config{ResponseTimeout: 10 * time.Second})
	defer alice.close()
	alice.fund(t, issuer, 100)

	session := newFakeSession(newKey(t), nil)
	defer session.close()

	result := make(chan error, 1)
	go func() {
		_, err := alice.coord.Pay(context.Background(), session, 60, nil)
		result <- err
	}()

	require.Eventually(t, func() bool {
		return 1 == len(session.messages())
	}, 2*time.Second, 10*time.Millisecond, "transfer sent")
	txId := session.messages()[0].(*packet.TokenTransferMessage).Transaction.Id

	require.Nil(t, alice.coord.Cancel(txId), "cancel")
	select {
	case err := <-result:
		assert.True(t, errors.Is(err, context.Canceled), "error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("pay did not return")
	}

	stored, err := alice.coord.Transaction(txId)
	require.Nil(t, err, "stored")
	assert.Equal(t, transaction.Cancelled, stored.Status, "status")
	assert.Equal(t, uint64(100), alice.balance(t), "tokens released")
}

func TestPaySessionClosed(t *testing.T) {
	issuer := newKey(t)
	alice := newDevice(t, issuer, Config{})
	defer alice.close()
	alice.fund(t, issuer, 100)

	session := newFakeSession(newKey(t), nil)
	session.close()

	tx, err := alice.coord.Pay(context.Background(), session, 10, nil)
	assert.Equal(t, fault.ErrSessionClosed, err, "pay")
	assert.True(t, tx.Retryable, "retryable")
}
