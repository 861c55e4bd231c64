// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package transaction

import (
	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/util"
)

// limits on packed list lengths
const (
	maxTokenIds      = 1024
	maxMetadataItems = 64
)

// Pack - storage form: the signed payload followed by local state
func (tx *Transaction) Pack() []byte {
	buffer := tx.Payload()
	buffer = util.AppendBytes(buffer, tx.SenderSignature)
	buffer = util.AppendBytes(buffer, tx.ReceiverSignature)
	buffer = util.AppendUint64(buffer, uint64(tx.Status))
	buffer = util.AppendUint64(buffer, uint64(tx.Direction))
	buffer = util.AppendString(buffer, tx.FailureReason)
	retryable := uint64(0)
	if tx.Retryable {
		retryable = 1
	}
	buffer = util.AppendUint64(buffer, retryable)
	return util.AppendTime(buffer, tx.UpdatedAt)
}

// Unpack - decode a packed transaction
func Unpack(buffer []byte) (*Transaction, error) {
	if 0 == len(buffer) || payloadTag != buffer[0] {
		return nil, fault.ErrInvalidTransaction
	}
	u := util.NewUnpacker(buffer[1:])
	tx, err := UnpackPayload(u)
	if nil != err {
		return nil, err
	}

	if tx.SenderSignature, err = u.Bytes(); nil != err {
		return nil, err
	}
	if tx.ReceiverSignature, err = u.Bytes(); nil != err {
		return nil, err
	}
	status, err := u.Uint64()
	if nil != err {
		return nil, err
	}
	tx.Status = Status(status)
	direction, err := u.Uint64()
	if nil != err {
		return nil, err
	}
	tx.Direction = Direction(direction)
	if tx.FailureReason, err = u.String(); nil != err {
		return nil, err
	}
	retryable, err := u.Uint64()
	if nil != err {
		return nil, err
	}
	tx.Retryable = 0 != retryable
	if tx.UpdatedAt, err = u.Time(); nil != err {
		return nil, err
	}
	if 0 != u.Remaining() {
		return nil, fault.ErrInvalidTransaction
	}
	return tx, nil
}

// UnpackPayload - decode the signed fields, after the tag byte
func UnpackPayload(u *util.Unpacker) (*Transaction, error) {
	tx := &Transaction{
		Status: Initiated,
	}
	var err error

	if tx.Id, err = u.String(); nil != err {
		return nil, err
	}
	kind, err := u.Uint64()
	if nil != err {
		return nil, err
	}
	tx.Type = Type(kind)
	if tx.SenderId, err = u.String(); nil != err {
		return nil, err
	}
	if tx.ReceiverId, err = u.String(); nil != err {
		return nil, err
	}
	if tx.Amount, err = u.Uint64(); nil != err {
		return nil, err
	}
	count, err := u.Uint64()
	if nil != err {
		return nil, err
	}
	if count > maxTokenIds {
		return nil, fault.ErrInvalidCount
	}
	tx.TokenIds = make([]string, count)
	for i := range tx.TokenIds {
		if tx.TokenIds[i], err = u.String(); nil != err {
			return nil, err
		}
	}
	if tx.Timestamp, err = u.Time(); nil != err {
		return nil, err
	}

	count, err = u.Uint64()
	if nil != err {
		return nil, err
	}
	if count > maxMetadataItems {
		return nil, fault.ErrInvalidCount
	}
	tx.Metadata = make(map[string]string, count)
	for i := uint64(0); i < count; i += 1 {
		k, err := u.String()
		if nil != err {
			return nil, err
		}
		v, err := u.String()
		if nil != err {
			return nil, err
		}
		tx.Metadata[k] = v
	}
	return tx, nil
}

// MarshalText - transaction type as text
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText - text to transaction type
func (t *Type) UnmarshalText(s []byte) error {
	for _, kind := range []Type{Transfer, Redemption, Purchase} {
		if kind.String() == string(s) {
			*t = kind
			return nil
		}
	}
	return fault.ErrInvalidTransaction
}

// MarshalText - direction as text
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText - text to direction
func (d *Direction) UnmarshalText(s []byte) error {
	for _, direction := range []Direction{Outgoing, Incoming} {
		if direction.String() == string(s) {
			*d = direction
			return nil
		}
	}
	return fault.ErrInvalidTransaction
}

// FromPayload - decode the bytes produced by Payload
func FromPayload(payload []byte) (*Transaction, error) {
	if 0 == len(payload) || payloadTag != payload[0] {
		return nil, fault.ErrInvalidTransaction
	}
	u := util.NewUnpacker(payload[1:])
	tx, err := UnpackPayload(u)
	if nil != err {
		return nil, err
	}
	if 0 != u.Remaining() {
		return nil, fault.ErrInvalidTransaction
	}
	return tx, nil
}
