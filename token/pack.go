// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package token

import (
	"github.com/bitmark-inc/offlined/account"
	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/util"
)

// limit on the number of division records in one list
const maxDivisions = 1024

// Pack - binary form used by storage and by transfer envelopes
func (t *OfflineToken) Pack() []byte {
	buffer := util.AppendString(nil, t.Id)
	buffer = util.AppendUint64(buffer, t.Amount)
	buffer = util.AppendBytes(buffer, t.Issuer.Bytes())
	buffer = util.AppendTime(buffer, t.IssuedAt)
	buffer = util.AppendTime(buffer, t.ExpiresAt)
	buffer = util.AppendBytes(buffer, t.Signature)

	spent := uint64(0)
	if t.IsSpent {
		spent = 1
	}
	buffer = util.AppendUint64(buffer, spent)
	buffer = util.AppendTime(buffer, t.SpentAt)

	buffer = packDivisions(buffer, t.Divisions)

	if nil == t.Origin {
		return util.AppendUint64(buffer, 0)
	}
	buffer = util.AppendUint64(buffer, 1)
	buffer = util.AppendString(buffer, t.Origin.TokenId)
	buffer = util.AppendUint64(buffer, t.Origin.Amount)
	return packDivisions(buffer, t.Origin.Chain)
}

func packDivisions(buffer []byte, divisions []Division) []byte {
	buffer = util.AppendUint64(buffer, uint64(len(divisions)))
	for i := range divisions {
		d := &divisions[i]
		buffer = util.AppendString(buffer, d.ParentId)
		buffer = util.AppendUint64(buffer, d.Sequence)
		buffer = util.AppendUint64(buffer, d.Amount)
		buffer = util.AppendTime(buffer, d.Timestamp)
		buffer = util.AppendBytes(buffer, d.Holder.Bytes())
		buffer = util.AppendBytes(buffer, d.Signature)
	}
	return buffer
}

// Unpack - decode a packed token
func Unpack(buffer []byte) (*OfflineToken, error) {
	u := util.NewUnpacker(buffer)
	t, err := UnpackFrom(u)
	if nil != err {
		return nil, err
	}
	if 0 != u.Remaining() {
		return nil, fault.ErrInvalidPacket
	}
	return t, nil
}

// UnpackFrom - decode the next token from a stream of packed fields
func UnpackFrom(u *util.Unpacker) (*OfflineToken, error) {
	t := &OfflineToken{}
	var err error

	if t.Id, err = u.String(); nil != err {
		return nil, err
	}
	if t.Amount, err = u.Uint64(); nil != err {
		return nil, err
	}
	if t.Issuer, err = unpackAccount(u); nil != err {
		return nil, err
	}
	if t.IssuedAt, err = u.Time(); nil != err {
		return nil, err
	}
	if t.ExpiresAt, err = u.Time(); nil != err {
		return nil, err
	}
	signature, err := u.Bytes()
	if nil != err {
		return nil, err
	}
	t.Signature = signature

	spent, err := u.Uint64()
	if nil != err {
		return nil, err
	}
	t.IsSpent = 0 != spent
	if t.SpentAt, err = u.Time(); nil != err {
		return nil, err
	}

	if t.Divisions, err = unpackDivisions(u); nil != err {
		return nil, err
	}

	hasOrigin, err := u.Uint64()
	if nil != err {
		return nil, err
	}
	switch hasOrigin {
	case 0:
	case 1:
		origin := &Origin{}
		if origin.TokenId, err = u.String(); nil != err {
			return nil, err
		}
		if origin.Amount, err = u.Uint64(); nil != err {
			return nil, err
		}
		if origin.Chain, err = unpackDivisions(u); nil != err {
			return nil, err
		}
		t.Origin = origin
	default:
		return nil, fault.ErrInvalidPacket
	}
	return t, nil
}

func unpackDivisions(u *util.Unpacker) ([]Division, error) {
	count, err := u.Uint64()
	if nil != err {
		return nil, err
	}
	if count > maxDivisions {
		return nil, fault.ErrInvalidCount
	}
	if 0 == count {
		return nil, nil
	}
	divisions := make([]Division, count)
	for i := range divisions {
		d := &divisions[i]
		if d.ParentId, err = u.String(); nil != err {
			return nil, err
		}
		if d.Sequence, err = u.Uint64(); nil != err {
			return nil, err
		}
		if d.Amount, err = u.Uint64(); nil != err {
			return nil, err
		}
		if d.Timestamp, err = u.Time(); nil != err {
			return nil, err
		}
		if d.Holder, err = unpackAccount(u); nil != err {
			return nil, err
		}
		signature, err := u.Bytes()
		if nil != err {
			return nil, err
		}
		d.Signature = signature
	}
	return divisions, nil
}

func unpackAccount(u *util.Unpacker) (*account.Account, error) {
	b, err := u.Bytes()
	if nil != err {
		return nil, err
	}
	return account.AccountFromBytes(b)
}
