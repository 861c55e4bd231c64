// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package settlement

import (
	"context"
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/offlined/token"
	"github.com/bitmark-inc/offlined/wallet"
)

// Recharger - keeps the wallet above its recharge threshold
type Recharger struct {
	log    *logger.L
	wallet *wallet.Wallet
	client Client
	userId string
}

// NewRecharger - issue tokens for userId into w through client
func NewRecharger(w *wallet.Wallet, client Client, userId string) *Recharger {
	return &Recharger{
		log:    logger.New("recharge"),
		wallet: w,
		client: client,
		userId: userId,
	}
}

// Check - request the configured amount when the available balance is
// below the threshold, returns the amount added
func (r *Recharger) Check(ctx context.Context, now time.Time) (uint64, error) {
	state, err := r.wallet.State()
	if nil != err {
		return 0, err
	}
	if 0 == state.RechargeThreshold || 0 == state.RechargeAmount {
		return 0, nil
	}

	balance, err := r.wallet.Balance(now)
	if nil != err {
		return 0, err
	}
	if balance >= state.RechargeThreshold {
		return 0, nil
	}

	r.log.Infof("balance: %d below: %d  requesting: %d", balance, state.RechargeThreshold, state.RechargeAmount)
	tokens, err := r.client.Issue(ctx, r.userId, r.wallet.Holder().String(), state.RechargeAmount)
	if nil != err {
		r.log.Warnf("recharge error: %s", err)
		return 0, err
	}
	if err := r.wallet.Add(tokens, now); nil != err {
		r.log.Errorf("recharge: store error: %s", err)
		return 0, err
	}
	return token.TotalAmount(tokens), nil
}
