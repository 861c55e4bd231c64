// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package authority

import (
	"context"
	"encoding/hex"
	"sort"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/token"
	"github.com/bitmark-inc/offlined/util"
)

// Redeem - convert tokens into settled balance
//
// the batch is all-or-nothing: any token that fails full signature
// validation, was already redeemed or would take any claim on its
// path from the issued root over that claim's amount rejects every
// token.
//
// a batch whose tokens were all redeemed before by the same wallet is
// a resubmission after a lost reply and gets the stored receipt back
func (a *Authority) Redeem(ctx context.Context, tokens []*token.OfflineToken, walletId string) (*Receipt, error) {
	if 0 == len(tokens) || "" == walletId {
		return nil, fault.ErrMissingParameters
	}
	if err := ctx.Err(); nil != err {
		return nil, err
	}

	a.Lock()
	defer a.Unlock()

	receipt, err := a.previousRedemption(tokens, walletId)
	if nil != err || nil != receipt {
		return receipt, err
	}

	issuer := a.key.Account()
	now := time.Now()

	seen := make(map[string]struct{}, len(tokens))
	budget := make(map[string]uint64)
	total := uint64(0)

	for _, t := range tokens {
		if nil == t {
			return nil, fault.ErrValidation
		}
		if _, ok := seen[t.Id]; ok {
			return nil, fault.ErrDuplicateToken
		}
		seen[t.Id] = struct{}{}

		if err := token.Validate(t, issuer, now); nil != err {
			a.log.Warnf("redeem: token: %s  error: %s", t.Id, err)
			return nil, err
		}
		if t.IsDivided() {
			return nil, fault.ErrTokenDivided
		}

		redeemed, err := a.db.Pool.Redeemed.Has([]byte(t.Id))
		if nil != err {
			return nil, err
		}
		if redeemed {
			a.log.Warnf("redeem: token: %s already redeemed", t.Id)
			return nil, fault.ErrAlreadyRedeemed
		}

		// a claim and anything divided from it share one budget, so
		// redeeming both a sub-claim and a claim carved from it fails
		for _, claim := range t.Lineage() {
			used, ok := budget[claim.Id]
			if !ok {
				used, _, err = a.db.Pool.ClaimBudget.GetN([]byte(claim.Id))
				if nil != err {
					return nil, err
				}
			}
			used += t.Amount
			if used > claim.Amount || used < t.Amount {
				a.log.Warnf("redeem: token: %s  claim: %s  redeemed: %d exceeds: %d", t.Id, claim.Id, used, claim.Amount)
				return nil, fault.ErrDoubleSpendDetected
			}
			budget[claim.Id] = used
		}
		total += t.Amount
	}

	balance, err := a.balance(walletId)
	if nil != err {
		return nil, err
	}
	balance += total

	hash := transactionHash(tokens, walletId, now)
	record := packRedemption(walletId, hash)

	batch := a.db.NewBatch()
	for _, t := range tokens {
		batch.Put(a.db.Pool.Redeemed, []byte(t.Id), record)
	}
	for claimId, used := range budget {
		batch.PutN(a.db.Pool.ClaimBudget, []byte(claimId), used)
	}
	batch.PutN(a.db.Pool.Balances, []byte(walletId), balance)
	if err := batch.Commit(); nil != err {
		a.log.Errorf("redeem: commit error: %s", err)
		return nil, err
	}

	a.log.Infof("redeem: %d tokens  amount: %d  wallet: %s  hash: %s", len(tokens), total, walletId, hash)
	return &Receipt{
		TransactionHash: hash,
		NewBalance:      balance,
	}, nil
}

// receipt of an earlier identical redemption, nil if any token is new
// or was redeemed by another wallet.  Must hold the lock
func (a *Authority) previousRedemption(tokens []*token.OfflineToken, walletId string) (*Receipt, error) {
	hash := ""
	for _, t := range tokens {
		if nil == t {
			return nil, nil
		}
		data, err := a.db.Pool.Redeemed.Get([]byte(t.Id))
		if nil != err {
			return nil, err
		}
		if nil == data {
			return nil, nil
		}
		redeemer, h, err := unpackRedemption(data)
		if nil != err {
			return nil, err
		}
		if redeemer != walletId {
			return nil, nil
		}
		if "" == hash {
			hash = h
		}
	}

	balance, err := a.balance(walletId)
	if nil != err {
		return nil, err
	}
	a.log.Infof("redeem: %d tokens  wallet: %s  resubmitted  hash: %s", len(tokens), walletId, hash)
	return &Receipt{
		TransactionHash: hash,
		NewBalance:      balance,
	}, nil
}

// IsRedeemed - true if the token id has been accepted
func (a *Authority) IsRedeemed(tokenId string) (bool, error) {
	return a.db.Pool.Redeemed.Has([]byte(tokenId))
}

func packRedemption(walletId string, hash string) []byte {
	buffer := util.AppendString(nil, walletId)
	return util.AppendString(buffer, hash)
}

func unpackRedemption(buffer []byte) (string, string, error) {
	u := util.NewUnpacker(buffer)
	walletId, err := u.String()
	if nil != err {
		return "", "", err
	}
	hash, err := u.String()
	if nil != err {
		return "", "", err
	}
	return walletId, hash, nil
}

func transactionHash(tokens []*token.OfflineToken, walletId string, now time.Time) string {
	ids := token.Ids(tokens)
	sort.Strings(ids)

	buffer := util.AppendString(nil, walletId)
	buffer = util.AppendTime(buffer, now)
	for _, id := range ids {
		buffer = util.AppendString(buffer, id)
	}
	digest := sha3.Sum256(buffer)
	return hex.EncodeToString(digest[:])
}
