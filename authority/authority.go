// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package authority

import (
	"context"
	"sync"
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/offlined/account"
	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/storage"
	"github.com/bitmark-inc/offlined/token"
)

// DefaultTTL - lifetime of an issued token
const DefaultTTL = 30 * 24 * time.Hour

// largest number of tokens in one batch issue
const maxBatchTokens = 100

// DefaultDenominations - split used by IssueBatch, largest first
var DefaultDenominations = []uint64{10000, 5000, 2000, 1000, 500, 200, 100, 50, 20, 10, 5, 2, 1}

// Receipt - result of a successful redemption
type Receipt struct {
	TransactionHash string `json:"transactionHash"`
	NewBalance      uint64 `json:"newBalance"`
}

// Authority - the trusted issuer
//
// a single mutex serialises every balance change so a token can be
// issued or redeemed exactly once
type Authority struct {
	sync.Mutex

	log           *logger.L
	key           account.Signer
	db            *storage.Database
	ttl           time.Duration
	denominations []uint64
}

// New - create an authority signing with key and keeping balances in db
func New(key account.Signer, db *storage.Database, ttl time.Duration) *Authority {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Authority{
		log:           logger.New("authority"),
		key:           key,
		db:            db,
		ttl:           ttl,
		denominations: DefaultDenominations,
	}
}

// SetDenominations - replace the split used by IssueBatch
func (a *Authority) SetDenominations(denominations []uint64) {
	a.Lock()
	defer a.Unlock()
	a.denominations = denominations
}

// PublicKey - the key every token must verify against
func (a *Authority) PublicKey(ctx context.Context) (*account.Account, error) {
	if err := ctx.Err(); nil != err {
		return nil, err
	}
	return a.key.Account(), nil
}

// Deposit - credit a settled balance
func (a *Authority) Deposit(userId string, amount uint64) (uint64, error) {
	if 0 == amount {
		return 0, fault.ErrZeroAmount
	}
	a.Lock()
	defer a.Unlock()

	balance, err := a.balance(userId)
	if nil != err {
		return 0, err
	}
	balance += amount
	if err := a.db.Pool.Balances.PutN([]byte(userId), balance); nil != err {
		return 0, err
	}
	a.log.Infof("deposit: %d to: %s  balance: %d", amount, userId, balance)
	return balance, nil
}

// Balance - current settled balance of a user
func (a *Authority) Balance(userId string) (uint64, error) {
	a.Lock()
	defer a.Unlock()
	return a.balance(userId)
}

func (a *Authority) balance(userId string) (uint64, error) {
	balance, _, err := a.db.Pool.Balances.GetN([]byte(userId))
	return balance, err
}

// Validate - check a token against the authority key
func (a *Authority) Validate(t *token.OfflineToken) error {
	return token.Validate(t, a.key.Account(), time.Now())
}
