// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package transaction

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/bitmark-inc/offlined/account"
	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/util"
)

// Type - kind of transaction
type Type byte

// transaction kinds
const (
	Transfer   = Type('T')
	Redemption = Type('R')
	Purchase   = Type('P')
)

func (t Type) String() string {
	switch t {
	case Transfer:
		return "transfer"
	case Redemption:
		return "redemption"
	case Purchase:
		return "purchase"
	default:
		return "?"
	}
}

// Direction - whether value leaves or arrives at this device
type Direction byte

// transaction directions
const (
	Outgoing = Direction('O')
	Incoming = Direction('I')
)

func (d Direction) String() string {
	switch d {
	case Outgoing:
		return "outgoing"
	case Incoming:
		return "incoming"
	default:
		return "?"
	}
}

// signature payload tag
const payloadTag = 0x03

// Transaction - local record of a value transfer
//
// sender and receiver are base58 account strings
type Transaction struct {
	Id                string            `json:"id"`
	Type              Type              `json:"type"`
	SenderId          string            `json:"senderId"`
	ReceiverId        string            `json:"receiverId"`
	Amount            uint64            `json:"amount"`
	Status            Status            `json:"status"`
	TokenIds          []string          `json:"tokenIds"`
	SenderSignature   account.Signature `json:"senderSignature,omitempty"`
	ReceiverSignature account.Signature `json:"receiverSignature,omitempty"`
	Timestamp         time.Time         `json:"timestamp"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	Direction         Direction         `json:"direction"`
	FailureReason     string            `json:"failureReason,omitempty"`
	Retryable         bool              `json:"retryable"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// NewId - a fresh transaction id
func NewId() string {
	return uuid.New().String()
}

// New - start a transaction in the Initiated state
func New(kind Type, direction Direction, senderId string, receiverId string, amount uint64, tokenIds []string, now time.Time) (*Transaction, error) {
	return NewWithId(NewId(), kind, direction, senderId, receiverId, amount, tokenIds, now)
}

// NewWithId - as New, for an id already used to reserve tokens
func NewWithId(id string, kind Type, direction Direction, senderId string, receiverId string, amount uint64, tokenIds []string, now time.Time) (*Transaction, error) {
	if "" == id {
		return nil, fault.ErrMissingParameters
	}
	if 0 == amount {
		return nil, fault.ErrZeroAmount
	}
	if "" == senderId || "" == receiverId || 0 == len(tokenIds) {
		return nil, fault.ErrMissingParameters
	}
	return &Transaction{
		Id:         id,
		Type:       kind,
		SenderId:   senderId,
		ReceiverId: receiverId,
		Amount:     amount,
		Status:     Initiated,
		TokenIds:   append([]string(nil), tokenIds...),
		Timestamp:  now.UTC(),
		Metadata:   make(map[string]string),
		Direction:  direction,
		UpdatedAt:  now.UTC(),
	}, nil
}

// Payload - canonical bytes signed by sender and receiver
func (tx *Transaction) Payload() []byte {
	buffer := []byte{payloadTag}
	buffer = util.AppendString(buffer, tx.Id)
	buffer = util.AppendUint64(buffer, uint64(tx.Type))
	buffer = util.AppendString(buffer, tx.SenderId)
	buffer = util.AppendString(buffer, tx.ReceiverId)
	buffer = util.AppendUint64(buffer, tx.Amount)
	buffer = util.AppendUint64(buffer, uint64(len(tx.TokenIds)))
	for _, id := range tx.TokenIds {
		buffer = util.AppendString(buffer, id)
	}
	buffer = util.AppendTime(buffer, tx.Timestamp)
	return packMetadata(buffer, tx.Metadata)
}

// SetStatus - move to a new state
func (tx *Transaction) SetStatus(newStatus Status, now time.Time) error {
	if !tx.Status.CanChangeTo(newStatus) {
		return fault.ErrInvalidStateChange
	}
	if Failed == tx.Status && !tx.Retryable {
		return fault.ErrNotRetryable
	}
	tx.Status = newStatus
	tx.UpdatedAt = now.UTC()
	return nil
}

// Fail - record the reason and whether a retry may help
func (tx *Transaction) Fail(reason error, now time.Time) error {
	if err := tx.SetStatus(Failed, now); nil != err {
		return err
	}
	if nil == reason {
		reason = fault.ErrValidation
	}
	tx.FailureReason = reason.Error()
	tx.Retryable = fault.IsRetryable(reason)
	return nil
}

// Cancel - initiator abort
func (tx *Transaction) Cancel(now time.Time) error {
	return tx.SetStatus(Cancelled, now)
}

// Retry - return a retryable failure to Initiated
//
// signatures are discarded as the transaction must be signed again
func (tx *Transaction) Retry(now time.Time) error {
	if Failed != tx.Status {
		return fault.ErrInvalidStateChange
	}
	if !tx.Retryable {
		return fault.ErrNotRetryable
	}
	if err := tx.SetStatus(Initiated, now); nil != err {
		return err
	}
	tx.FailureReason = ""
	tx.Retryable = false
	tx.SenderSignature = nil
	tx.ReceiverSignature = nil
	return nil
}

// SignAsSender - attach the sender signature
func (tx *Transaction) SignAsSender(signer account.Signer) error {
	if signer.Account().String() != tx.SenderId {
		return fault.ErrWrongSender
	}
	signature, err := signer.Sign(tx.Payload())
	if nil != err {
		return fault.ErrSigningFailed
	}
	tx.SenderSignature = signature
	return nil
}

// SignAsReceiver - attach the receiver signature
func (tx *Transaction) SignAsReceiver(signer account.Signer) error {
	if signer.Account().String() != tx.ReceiverId {
		return fault.ErrWrongSender
	}
	signature, err := signer.Sign(tx.Payload())
	if nil != err {
		return fault.ErrSigningFailed
	}
	tx.ReceiverSignature = signature
	return nil
}

// VerifySender - check the sender signature
func (tx *Transaction) VerifySender() error {
	return verify(tx.SenderId, tx.Payload(), tx.SenderSignature)
}

// VerifyReceiver - check the receiver signature
func (tx *Transaction) VerifyReceiver() error {
	return verify(tx.ReceiverId, tx.Payload(), tx.ReceiverSignature)
}

func verify(id string, payload []byte, signature account.Signature) error {
	if 0 == len(signature) {
		return fault.ErrInvalidSignature
	}
	a, err := account.AccountFromBase58(id)
	if nil != err {
		return fault.ErrInvalidSignature
	}
	return a.CheckSignature(payload, signature)
}

// Clone - deep copy
func (tx *Transaction) Clone() *Transaction {
	c := *tx
	c.TokenIds = append([]string(nil), tx.TokenIds...)
	c.SenderSignature = append(account.Signature(nil), tx.SenderSignature...)
	c.ReceiverSignature = append(account.Signature(nil), tx.ReceiverSignature...)
	c.Metadata = make(map[string]string, len(tx.Metadata))
	for k, v := range tx.Metadata {
		c.Metadata[k] = v
	}
	return &c
}

// metadata in key order so the payload is canonical
func packMetadata(buffer []byte, metadata map[string]string) []byte {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	buffer = util.AppendUint64(buffer, uint64(len(keys)))
	for _, k := range keys {
		buffer = util.AppendString(buffer, k)
		buffer = util.AppendString(buffer, metadata[k])
	}
	return buffer
}
