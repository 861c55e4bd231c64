// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/packet"
	"github.com/bitmark-inc/offlined/transaction"
)

func TestReceiveIsIdempotent(t *testing.T) {
	issuer := newKey(t)
	alice := newDevice(t, issuer, Config{})
	defer alice.close()
	bob := newDevice(t, issuer, Config{})
	defer bob.close()
	alice.fund(t, issuer, 100)

	encoded := signedTransfer(t, alice, bob.key.Account(), 30)
	session := newFakeSession(alice.key, nil)
	defer session.close()

	first := bob.coord.receive(session, decodeTransfer(t, encoded))
	require.True(t, first.Accepted, "first: %s", first.Reason)

	again := bob.coord.receive(session, decodeTransfer(t, encoded))
	assert.True(t, again.Accepted, "again: %s", again.Reason)
	assert.Equal(t, first.TransactionId, again.TransactionId, "id")
	assert.Equal(t, first.ReceiverSignature, again.ReceiverSignature, "signature")
	assert.Equal(t, uint64(30), bob.balance(t), "credited once")

	stored, err := bob.coord.Transaction(first.TransactionId)
	require.Nil(t, err, "stored")
	assert.Equal(t, transaction.Completed, stored.Status, "status")
	assert.Nil(t, stored.VerifyReceiver(), "receiver signature")
}

func TestReceiveRejections(t *testing.T) {
	issuer := newKey(t)
	alice := newDevice(t, issuer, Config{})
	defer alice.close()
	bob := newDevice(t, issuer, Config{})
	defer bob.close()
	alice.fund(t, issuer, 10, 20, 30)

	items := []struct {
		title  string
		remote bool
		modify func(m *packet.TokenTransferMessage)
		reason error
	}{
		{
			title:  "not from the session device",
			remote: false,
			modify: func(m *packet.TokenTransferMessage) {},
			reason: fault.ErrWrongSender,
		},
		{
			title:  "tampered after signing",
			remote: true,
			modify: func(m *packet.TokenTransferMessage) {
				m.Transaction.Metadata["extra"] = "value"
			},
			reason: fault.ErrInvalidSignature,
		},
		{
			title:  "tokens do not match",
			remote: true,
			modify: func(m *packet.TokenTransferMessage) {
				m.Tokens = m.Tokens[:0]
			},
			reason: fault.ErrInvalidTransaction,
		},
	}

	for i, item := range items {
		amount := uint64(10 * (i + 1))
		m := decodeTransfer(t, signedTransfer(t, alice, bob.key.Account(), amount))
		item.modify(m)

		remote := alice.key
		if !item.remote {
			remote = newKey(t)
		}
		session := newFakeSession(remote, nil)

		response := bob.coord.receive(session, m)
		session.close()

		assert.False(t, response.Accepted, "%d: %s accepted", i, item.title)
		assert.Equal(t, item.reason.Error(), response.Reason, "%d: %s reason", i, item.title)

		stored, err := bob.coord.Transaction(m.Transaction.Id)
		require.Nil(t, err, "%d: %s stored", i, item.title)
		assert.Equal(t, transaction.Failed, stored.Status, "%d: %s status", i, item.title)
	}
	assert.Equal(t, uint64(0), bob.balance(t), "nothing credited")
}

func TestReceiveNotAddressedHere(t *testing.T) {
	issuer := newKey(t)
	alice := newDevice(t, issuer, Config{})
	defer alice.close()
	bob := newDevice(t, issuer, Config{})
	defer bob.close()
	alice.fund(t, issuer, 10)

	m := decodeTransfer(t, signedTransfer(t, alice, newKey(t).Account(), 10))
	session := newFakeSession(alice.key, nil)
	defer session.close()

	response := bob.coord.receive(session, m)
	assert.False(t, response.Accepted, "accepted")
	assert.Equal(t, fault.ErrInvalidTransaction.Error(), response.Reason, "reason")
}

func TestReceiveDuplicateWithinWindow(t *testing.T) {
	issuer := newKey(t)
	alice := newDevice(t, issuer, Config{})
	defer alice.close()
	bob := newDevice(t, issuer, Config{DuplicateWindow: time.Minute})
	defer bob.close()
	alice.fund(t, issuer, 30, 30)

	session := newFakeSession(alice.key, nil)
	defer session.close()

	first := bob.coord.receive(session, decodeTransfer(t, signedTransfer(t, alice, bob.key.Account(), 30)))
	require.True(t, first.Accepted, "first: %s", first.Reason)

	second := bob.coord.receive(session, decodeTransfer(t, signedTransfer(t, alice, bob.key.Account(), 30)))
	assert.False(t, second.Accepted, "second accepted")
	assert.Equal(t, fault.ErrDoubleSpendDetected.Error(), second.Reason, "reason")
	assert.Equal(t, uint64(30), bob.balance(t), "credited once")
}

func TestReceiveKnownToken(t *testing.T) {
	issuer := newKey(t)
	alice := newDevice(t, issuer, Config{})
	defer alice.close()
	bob := newDevice(t, issuer, Config{DuplicateWindow: -1})
	defer bob.close()
	alice.fund(t, issuer, 30)

	session := newFakeSession(alice.key, nil)
	defer session.close()

	first := decodeTransfer(t, signedTransfer(t, alice, bob.key.Account(), 30))
	response := bob.coord.receive(session, first)
	require.True(t, response.Accepted, "first: %s", response.Reason)

	// the sender never marked the token spent and sends it again
	alice.wallet.Release(first.Transaction.Id)
	second := decodeTransfer(t, signedTransfer(t, alice, bob.key.Account(), 30))
	require.NotEqual(t, first.Transaction.Id, second.Transaction.Id, "different transaction")
	require.Equal(t, first.Transaction.TokenIds, second.Transaction.TokenIds, "same token")

	response = bob.coord.receive(session, second)
	assert.False(t, response.Accepted, "second accepted")
	assert.Equal(t, fault.ErrDoubleSpendDetected.Error(), response.Reason, "reason")
	assert.Equal(t, uint64(30), bob.balance(t), "credited once")
}

func TestPaymentRequest(t *testing.T) {
	issuer := newKey(t)
	alice := newDevice(t, issuer, Config{})
	defer alice.close()
	bob := newDevice(t, issuer, Config{})
	defer bob.close()
	alice.fund(t, issuer, 100)

	alice.coord.SetRequestHandler(func(peerId string, request *packet.PaymentRequestMessage) bool {
		return request.Amount <= 50
	})

	aliceSession, bobSession := connect(t, alice, bob)
	defer aliceSession.Close()
	defer bobSession.Close()

	requestId, err := bob.coord.Request(context.Background(), bobSession, 25, "coffee")
	require.Nil(t, err, "request")

	paid := func() []*transaction.Transaction {
		txs, _ := alice.coord.Transactions(func(tx *transaction.Transaction) bool {
			return requestId == tx.Metadata[RequestIdKey] && transaction.Completed == tx.Status
		})
		return txs
	}
	require.Eventually(t, func() bool {
		return 1 == len(paid())
	}, 5*time.Second, 20*time.Millisecond, "request paid")

	tx := paid()[0]
	assert.Equal(t, uint64(25), tx.Amount, "amount")
	assert.Equal(t, "coffee", tx.Metadata[DescriptionKey], "description")
	assert.Equal(t, uint64(25), bob.balance(t), "receiver balance")

	_, err = bob.coord.Request(context.Background(), bobSession, 80, "too much")
	require.Nil(t, err, "second request")
	assert.Never(t, func() bool {
		balance, _ := bob.wallet.Balance(time.Now())
		return 25 != balance
	}, 300*time.Millisecond, 20*time.Millisecond, "declined request paid")

	_, err = bob.coord.Request(context.Background(), bobSession, 0, "")
	assert.Equal(t, fault.ErrZeroAmount, err, "zero")
}
