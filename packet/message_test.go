// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package packet_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/offlined/account"
	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/packet"
	"github.com/bitmark-inc/offlined/token"
	"github.com/bitmark-inc/offlined/transaction"
)

func TestTokenTransferMessage(t *testing.T) {
	issuer, err := account.NewPrivateKey()
	require.Nil(t, err)
	sender, err := account.NewPrivateKey()
	require.Nil(t, err)
	receiver, err := account.NewPrivateKey()
	require.Nil(t, err)

	now := time.Now().UTC()
	tok := &token.OfflineToken{
		Id:        token.NewId(),
		Amount:    100,
		Issuer:    issuer.Account(),
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
	tok.Signature, err = issuer.Sign(tok.SigningPayload())
	require.Nil(t, err)

	tx, err := transaction.New(transaction.Transfer, transaction.Outgoing,
		sender.Account().String(), receiver.Account().String(),
		100, []string{tok.Id}, now)
	require.Nil(t, err)
	require.Nil(t, tx.SignAsSender(sender))

	m := &packet.TokenTransferMessage{
		Transaction: tx,
		Tokens:      []*token.OfflineToken{tok},
	}
	decoded, err := packet.Decode(packet.TokenTransfer, packet.Encode(m))
	require.Nil(t, err)

	transfer, ok := decoded.(*packet.TokenTransferMessage)
	require.True(t, ok)
	assert.Equal(t, tx.Id, transfer.Transaction.Id)
	assert.Nil(t, transfer.Transaction.VerifySender(), "sender signature survives")
	require.Len(t, transfer.Tokens, 1)
	assert.Nil(t, token.Validate(transfer.Tokens[0], issuer.Account(), now))
}

func TestMessageRoundTrip(t *testing.T) {
	device, err := account.NewPrivateKey()
	require.Nil(t, err)

	challenge := make([]byte, packet.ChallengeSize)
	signature, err := device.Sign(packet.HandshakePayload(challenge, 1))
	require.Nil(t, err)

	messages := []packet.Message{
		&packet.HandshakeMessage{Challenge: challenge, Version: 1, Device: device.Account()},
		&packet.HandshakeReplyMessage{Version: 2, Device: device.Account(), Signature: signature, Challenge: challenge},
		&packet.HandshakeConfirmMessage{Signature: signature},
		&packet.PaymentRequestMessage{RequestId: "r1", ReceiverId: device.Account().String(), Amount: 25, Description: "tea"},
		&packet.PaymentResponseMessage{TransactionId: "t1", Accepted: true, ReceiverSignature: signature},
		&packet.PaymentResponseMessage{TransactionId: "t2", Accepted: false, ReceiverSignature: []byte{}, Reason: "double spend"},
		&packet.AcknowledgmentMessage{MessageId: 12},
		&packet.ErrorMessage{MessageId: 13, Reason: "bad"},
		&packet.PingMessage{Nonce: 99},
		&packet.PongMessage{Nonce: 99},
	}

	for _, m := range messages {
		decoded, err := packet.Decode(m.Type(), packet.Encode(m))
		require.Nil(t, err, m.Type().String())
		assert.Equal(t, m.Type(), decoded.Type())
		assert.Equal(t, packet.Encode(m), packet.Encode(decoded), m.Type().String())
	}
}

func TestDecodeRejects(t *testing.T) {
	device, err := account.NewPrivateKey()
	require.Nil(t, err)

	_, err = packet.Decode(packet.Type(0), nil)
	assert.Equal(t, fault.ErrInvalidPacketType, err)

	short := &packet.HandshakeMessage{Challenge: []byte{1, 2, 3}, Version: 1}
	_, err = packet.Decode(packet.Handshake, packet.Encode(short))
	assert.Equal(t, fault.ErrInvalidPacket, err)

	noChallenge := &packet.HandshakeReplyMessage{Version: 1, Device: device.Account(), Signature: []byte{1}}
	_, err = packet.Decode(packet.HandshakeReply, packet.Encode(noChallenge))
	assert.Equal(t, fault.ErrInvalidPacket, err, "reply without challenge")

	trailing := append(packet.Encode(&packet.PingMessage{Nonce: 1}), 0x00)
	_, err = packet.Decode(packet.Ping, trailing)
	assert.Equal(t, fault.ErrInvalidPacket, err)
}
