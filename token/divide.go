// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package token

import (
	"time"

	"github.com/bitmark-inc/offlined/account"
	"github.com/bitmark-inc/offlined/fault"
)

// Divide - split a token into a payment claim and a change claim
//
// paying the whole amount returns a copy of the token itself and no
// change.  Otherwise two division records signed by the holder are
// appended to t, so the caller must hold the token's lock and persist
// t afterwards.
func Divide(t *OfflineToken, issuer *account.Account, holder account.Signer, paymentAmount uint64, now time.Time) (*OfflineToken, *OfflineToken, error) {
	if err := Validate(t, issuer, now); nil != err {
		return nil, nil, err
	}
	if 0 == paymentAmount {
		return nil, nil, fault.ErrZeroAmount
	}
	if paymentAmount > t.Amount {
		return nil, nil, fault.ErrAmountExceedsToken
	}
	if t.DividedAmount()+paymentAmount > t.Amount {
		return nil, nil, fault.ErrDivisionExceedsToken
	}

	if paymentAmount == t.Amount && !t.IsDivided() {
		return t.Clone(), nil, nil
	}

	changeAmount := t.Amount - t.DividedAmount() - paymentAmount
	timestamp := now.UTC()

	paymentRecord, err := makeDivision(t, holder, uint64(len(t.Divisions)), paymentAmount, timestamp)
	if nil != err {
		return nil, nil, err
	}
	records := []Division{*paymentRecord}

	if changeAmount > 0 {
		changeRecord, err := makeDivision(t, holder, uint64(len(t.Divisions))+1, changeAmount, timestamp)
		if nil != err {
			return nil, nil, err
		}
		records = append(records, *changeRecord)
	}

	t.Divisions = append(t.Divisions, records...)

	payment := subClaim(t, &records[0])
	var change *OfflineToken
	if len(records) > 1 {
		change = subClaim(t, &records[1])
	}
	return payment, change, nil
}

func makeDivision(t *OfflineToken, holder account.Signer, sequence uint64, amount uint64, timestamp time.Time) (*Division, error) {
	d := &Division{
		ParentId:  t.Id,
		Sequence:  sequence,
		Amount:    amount,
		Timestamp: timestamp,
		Holder:    holder.Account(),
	}
	signature, err := holder.Sign(d.Payload())
	if nil != err {
		return nil, fault.ErrSigningFailed
	}
	d.Signature = signature
	return d, nil
}

func subClaim(parent *OfflineToken, record *Division) *OfflineToken {
	chain := []Division{}
	if nil != parent.Origin {
		chain = append(chain, cloneDivisions(parent.Origin.Chain)...)
	}
	chain = append(chain, cloneDivisions([]Division{*record})...)

	return &OfflineToken{
		Id:        record.DerivedId(),
		Amount:    record.Amount,
		Issuer:    parent.Issuer,
		IssuedAt:  parent.IssuedAt,
		ExpiresAt: parent.ExpiresAt,
		Signature: append([]byte(nil), parent.Signature...),
		Origin: &Origin{
			TokenId: parent.RootId(),
			Amount:  parent.RootAmount(),
			Chain:   chain,
		},
	}
}
