// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package authority

import (
	"context"
	"time"

	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/token"
)

// Issue - create one token debiting the user's settled balance
//
// nothing is debited unless the token was signed
func (a *Authority) Issue(ctx context.Context, userId string, amount uint64) (*token.OfflineToken, error) {
	tokens, err := a.issue(ctx, userId, []uint64{amount})
	if nil != err {
		return nil, err
	}
	return tokens[0], nil
}

// IssueBatch - issue amount split into denominations
func (a *Authority) IssueBatch(ctx context.Context, userId string, walletAddress string, amount uint64) ([]*token.OfflineToken, error) {
	amounts, err := a.split(amount)
	if nil != err {
		return nil, err
	}
	tokens, err := a.issue(ctx, userId, amounts)
	if nil != err {
		return nil, err
	}
	a.log.Infof("issued: %d tokens for: %s  wallet: %s", len(tokens), userId, walletAddress)
	return tokens, nil
}

func (a *Authority) issue(ctx context.Context, userId string, amounts []uint64) ([]*token.OfflineToken, error) {
	if "" == userId {
		return nil, fault.ErrMissingParameters
	}
	total := uint64(0)
	for _, amount := range amounts {
		if 0 == amount {
			return nil, fault.ErrZeroAmount
		}
		total += amount
	}
	if err := ctx.Err(); nil != err {
		return nil, err
	}

	a.Lock()
	defer a.Unlock()

	balance, err := a.balance(userId)
	if nil != err {
		return nil, err
	}
	if balance < total {
		a.log.Warnf("issue: %d for: %s  balance only: %d", total, userId, balance)
		return nil, fault.ErrInsufficientBalance
	}

	issuer := a.key.Account()
	now := time.Now().UTC()
	tokens := make([]*token.OfflineToken, 0, len(amounts))
	for _, amount := range amounts {
		t := &token.OfflineToken{
			Id:        token.NewId(),
			Amount:    amount,
			Issuer:    issuer,
			IssuedAt:  now,
			ExpiresAt: now.Add(a.ttl),
		}
		signature, err := a.key.Sign(t.SigningPayload())
		if nil != err {
			a.log.Errorf("issue: sign error: %s", err)
			return nil, fault.ErrSigningFailed
		}
		t.Signature = signature
		tokens = append(tokens, t)
	}

	if err := a.db.Pool.Balances.PutN([]byte(userId), balance-total); nil != err {
		return nil, err
	}
	a.log.Debugf("issue: %d for: %s  new balance: %d", total, userId, balance-total)
	return tokens, nil
}

// greedy split, largest denomination first
func (a *Authority) split(amount uint64) ([]uint64, error) {
	if 0 == amount {
		return nil, fault.ErrZeroAmount
	}
	a.Lock()
	denominations := a.denominations
	a.Unlock()

	amounts := make([]uint64, 0, 8)
	remaining := amount
	for _, d := range denominations {
		for d > 0 && remaining >= d {
			amounts = append(amounts, d)
			remaining -= d
			if len(amounts) > maxBatchTokens {
				return nil, fault.ErrInvalidCount
			}
		}
	}
	if 0 != remaining {
		return nil, fault.ErrInvalidAmount
	}
	return amounts, nil
}
