// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package packet

import (
	"github.com/bitmark-inc/offlined/account"
	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/token"
	"github.com/bitmark-inc/offlined/transaction"
	"github.com/bitmark-inc/offlined/util"
)

// ChallengeSize - bytes of random challenge in a handshake
const ChallengeSize = 32

// largest token list in one transfer
const maxTransferTokens = 256

// Message - the closed set of payloads; only this package can add
// implementations
type Message interface {
	Type() Type
	pack() []byte
}

// HandshakeMessage - initiator hello
type HandshakeMessage struct {
	Challenge []byte
	Version   uint64
	Device    *account.Account
}

// HandshakeReplyMessage - responder proof of key possession and a
// challenge for the initiator
type HandshakeReplyMessage struct {
	Version   uint64
	Device    *account.Account
	Signature account.Signature
	Challenge []byte
}

// HandshakeConfirmMessage - initiator proof of key possession
type HandshakeConfirmMessage struct {
	Signature account.Signature
}

// TokenTransferMessage - the transfer envelope
//
// the transaction carries id, amounts, token ids, timestamp and the
// sender signature
type TokenTransferMessage struct {
	Transaction *transaction.Transaction
	Tokens      []*token.OfflineToken
}

// PaymentRequestMessage - payee asks for an amount
type PaymentRequestMessage struct {
	RequestId   string
	ReceiverId  string
	Amount      uint64
	Description string
}

// PaymentResponseMessage - payee verdict on a transfer
type PaymentResponseMessage struct {
	TransactionId     string
	Accepted          bool
	ReceiverSignature account.Signature
	Reason            string
}

// AcknowledgmentMessage - every chunk of a message arrived
type AcknowledgmentMessage struct {
	MessageId uint64
}

// ErrorMessage - peer could not process a message
type ErrorMessage struct {
	MessageId uint64
	Reason    string
}

// PingMessage - liveness check
type PingMessage struct {
	Nonce uint64
}

// PongMessage - liveness reply
type PongMessage struct {
	Nonce uint64
}

func (m *HandshakeMessage) Type() Type       { return Handshake }
func (m *HandshakeReplyMessage) Type() Type  { return HandshakeReply }
func (m *HandshakeConfirmMessage) Type() Type { return HandshakeConfirm }
func (m *TokenTransferMessage) Type() Type   { return TokenTransfer }
func (m *PaymentRequestMessage) Type() Type  { return PaymentRequest }
func (m *PaymentResponseMessage) Type() Type { return PaymentResponse }
func (m *AcknowledgmentMessage) Type() Type  { return Acknowledgment }
func (m *ErrorMessage) Type() Type           { return Error }
func (m *PingMessage) Type() Type            { return Ping }
func (m *PongMessage) Type() Type            { return Pong }

// Encode - message payload bytes
func Encode(m Message) []byte {
	return m.pack()
}

// HandshakePayload - the bytes each side signs over the other's
// challenge
func HandshakePayload(challenge []byte, version uint64) []byte {
	buffer := util.AppendBytes([]byte("offline-handshake"), challenge)
	return util.AppendUint64(buffer, version)
}

func (m *HandshakeMessage) pack() []byte {
	buffer := util.AppendBytes(nil, m.Challenge)
	buffer = util.AppendUint64(buffer, m.Version)
	return util.AppendBytes(buffer, m.Device.Bytes())
}

func (m *HandshakeReplyMessage) pack() []byte {
	buffer := util.AppendUint64(nil, m.Version)
	buffer = util.AppendBytes(buffer, m.Device.Bytes())
	buffer = util.AppendBytes(buffer, m.Signature)
	return util.AppendBytes(buffer, m.Challenge)
}

func (m *HandshakeConfirmMessage) pack() []byte {
	return util.AppendBytes(nil, m.Signature)
}

func (m *TokenTransferMessage) pack() []byte {
	buffer := util.AppendBytes(nil, m.Transaction.Payload())
	buffer = util.AppendBytes(buffer, m.Transaction.SenderSignature)
	buffer = util.AppendUint64(buffer, uint64(len(m.Tokens)))
	for _, t := range m.Tokens {
		buffer = util.AppendBytes(buffer, t.Pack())
	}
	return buffer
}

func (m *PaymentRequestMessage) pack() []byte {
	buffer := util.AppendString(nil, m.RequestId)
	buffer = util.AppendString(buffer, m.ReceiverId)
	buffer = util.AppendUint64(buffer, m.Amount)
	return util.AppendString(buffer, m.Description)
}

func (m *PaymentResponseMessage) pack() []byte {
	buffer := util.AppendString(nil, m.TransactionId)
	accepted := uint64(0)
	if m.Accepted {
		accepted = 1
	}
	buffer = util.AppendUint64(buffer, accepted)
	buffer = util.AppendBytes(buffer, m.ReceiverSignature)
	return util.AppendString(buffer, m.Reason)
}

func (m *AcknowledgmentMessage) pack() []byte {
	return util.AppendUint64(nil, m.MessageId)
}

func (m *ErrorMessage) pack() []byte {
	buffer := util.AppendUint64(nil, m.MessageId)
	return util.AppendString(buffer, m.Reason)
}

func (m *PingMessage) pack() []byte {
	return util.AppendUint64(nil, m.Nonce)
}

func (m *PongMessage) pack() []byte {
	return util.AppendUint64(nil, m.Nonce)
}

// Decode - rebuild a message from a reassembled payload
func Decode(kind Type, payload []byte) (Message, error) {
	u := util.NewUnpacker(payload)
	var m Message
	var err error

	switch kind {
	case Handshake:
		m, err = decodeHandshake(u)
	case HandshakeReply:
		m, err = decodeHandshakeReply(u)
	case HandshakeConfirm:
		signature, e := u.Bytes()
		m, err = &HandshakeConfirmMessage{Signature: signature}, e
	case TokenTransfer:
		m, err = decodeTokenTransfer(u)
	case PaymentRequest:
		m, err = decodePaymentRequest(u)
	case PaymentResponse:
		m, err = decodePaymentResponse(u)
	case Acknowledgment:
		id, e := u.Uint64()
		m, err = &AcknowledgmentMessage{MessageId: id}, e
	case Error:
		m, err = decodeError(u)
	case Ping:
		nonce, e := u.Uint64()
		m, err = &PingMessage{Nonce: nonce}, e
	case Pong:
		nonce, e := u.Uint64()
		m, err = &PongMessage{Nonce: nonce}, e
	default:
		return nil, fault.ErrInvalidPacketType
	}
	if nil != err {
		return nil, err
	}
	if 0 != u.Remaining() {
		return nil, fault.ErrInvalidPacket
	}
	return m, nil
}

func decodeHandshake(u *util.Unpacker) (Message, error) {
	challenge, err := u.Bytes()
	if nil != err {
		return nil, err
	}
	if ChallengeSize != len(challenge) {
		return nil, fault.ErrInvalidPacket
	}
	version, err := u.Uint64()
	if nil != err {
		return nil, err
	}
	device, err := unpackAccount(u)
	if nil != err {
		return nil, err
	}
	return &HandshakeMessage{
		Challenge: challenge,
		Version:   version,
		Device:    device,
	}, nil
}

func decodeHandshakeReply(u *util.Unpacker) (Message, error) {
	version, err := u.Uint64()
	if nil != err {
		return nil, err
	}
	device, err := unpackAccount(u)
	if nil != err {
		return nil, err
	}
	signature, err := u.Bytes()
	if nil != err {
		return nil, err
	}
	challenge, err := u.Bytes()
	if nil != err {
		return nil, err
	}
	if ChallengeSize != len(challenge) {
		return nil, fault.ErrInvalidPacket
	}
	return &HandshakeReplyMessage{
		Version:   version,
		Device:    device,
		Signature: signature,
		Challenge: challenge,
	}, nil
}

func decodeTokenTransfer(u *util.Unpacker) (Message, error) {
	payload, err := u.Bytes()
	if nil != err {
		return nil, err
	}
	tx, err := transaction.FromPayload(payload)
	if nil != err {
		return nil, err
	}
	if tx.SenderSignature, err = u.Bytes(); nil != err {
		return nil, err
	}

	count, err := u.Uint64()
	if nil != err {
		return nil, err
	}
	if 0 == count || count > maxTransferTokens {
		return nil, fault.ErrInvalidCount
	}
	tokens := make([]*token.OfflineToken, count)
	for i := range tokens {
		packed, err := u.Bytes()
		if nil != err {
			return nil, err
		}
		if tokens[i], err = token.Unpack(packed); nil != err {
			return nil, err
		}
	}
	return &TokenTransferMessage{
		Transaction: tx,
		Tokens:      tokens,
	}, nil
}

func decodePaymentRequest(u *util.Unpacker) (Message, error) {
	m := &PaymentRequestMessage{}
	var err error
	if m.RequestId, err = u.String(); nil != err {
		return nil, err
	}
	if m.ReceiverId, err = u.String(); nil != err {
		return nil, err
	}
	if m.Amount, err = u.Uint64(); nil != err {
		return nil, err
	}
	if m.Description, err = u.String(); nil != err {
		return nil, err
	}
	return m, nil
}

func decodePaymentResponse(u *util.Unpacker) (Message, error) {
	m := &PaymentResponseMessage{}
	var err error
	if m.TransactionId, err = u.String(); nil != err {
		return nil, err
	}
	accepted, err := u.Uint64()
	if nil != err {
		return nil, err
	}
	m.Accepted = 0 != accepted
	if m.ReceiverSignature, err = u.Bytes(); nil != err {
		return nil, err
	}
	if m.Reason, err = u.String(); nil != err {
		return nil, err
	}
	return m, nil
}

func decodeError(u *util.Unpacker) (Message, error) {
	m := &ErrorMessage{}
	var err error
	if m.MessageId, err = u.Uint64(); nil != err {
		return nil, err
	}
	if m.Reason, err = u.String(); nil != err {
		return nil, err
	}
	return m, nil
}

func unpackAccount(u *util.Unpacker) (*account.Account, error) {
	b, err := u.Bytes()
	if nil != err {
		return nil, err
	}
	return account.AccountFromBytes(b)
}
