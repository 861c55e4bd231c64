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

// Validate - check a token is usable at the given time
//
// expiry is checked first, then the spent flag, then every signature.
// the token is never modified
func Validate(t *OfflineToken, issuer *account.Account, now time.Time) error {
	if nil == t || nil == issuer {
		return fault.ErrValidation
	}
	if "" == t.Id || 0 == t.Amount || nil == t.Issuer {
		return fault.ErrValidation
	}
	if t.IsExpired(now) {
		return fault.ErrExpiredToken
	}
	if t.IsSpent {
		return fault.ErrAlreadySpentToken
	}
	return VerifySignatures(t, issuer)
}

// VerifySignatures - issuer signature, division chain and divisions
// taken from the token
func VerifySignatures(t *OfflineToken, issuer *account.Account) error {
	if nil == t.Issuer || !issuer.Equal(t.Issuer) {
		return fault.ErrInvalidSignature
	}
	if err := issuer.CheckSignature(t.SigningPayload(), t.Signature); nil != err {
		return fault.ErrInvalidSignature
	}

	if nil != t.Origin {
		if err := verifyChain(t); nil != err {
			return err
		}
	}

	total := uint64(0)
	for i := range t.Divisions {
		d := &t.Divisions[i]
		if d.ParentId != t.Id || d.Sequence != uint64(i) || 0 == d.Amount {
			return fault.ErrInvalidDivision
		}
		if err := checkDivisionSignature(d); nil != err {
			return err
		}
		total += d.Amount
		if total > t.Amount || total < d.Amount {
			return fault.ErrDivisionExceedsToken
		}
	}
	return nil
}

// walk from the root to this claim
func verifyChain(t *OfflineToken) error {
	chain := t.Origin.Chain
	if 0 == len(chain) || "" == t.Origin.TokenId || 0 == t.Origin.Amount {
		return fault.ErrInvalidDivision
	}

	parentId := t.Origin.TokenId
	parentAmount := t.Origin.Amount
	for i := range chain {
		d := &chain[i]
		if d.ParentId != parentId || 0 == d.Amount || d.Amount > parentAmount {
			return fault.ErrInvalidDivision
		}
		if err := checkDivisionSignature(d); nil != err {
			return err
		}
		parentId = d.DerivedId()
		parentAmount = d.Amount
	}

	if parentId != t.Id || parentAmount != t.Amount {
		return fault.ErrInvalidDivision
	}
	return nil
}

func checkDivisionSignature(d *Division) error {
	if nil == d.Holder {
		return fault.ErrInvalidSignature
	}
	if err := d.Holder.CheckSignature(d.Payload(), d.Signature); nil != err {
		return fault.ErrInvalidSignature
	}
	return nil
}
