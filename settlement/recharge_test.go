// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package settlement_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/settlement"
	"github.com/bitmark-inc/offlined/wallet"
)

func TestRecharge(t *testing.T) {
	f := setup(t)
	defer f.teardown()
	ctx := context.Background()

	_, err := f.authority.Deposit(userId, 1000)
	require.Nil(t, err, "deposit")

	r := settlement.NewRecharger(f.wallet, f.client, userId)

	amount, err := r.Check(ctx, time.Now())
	require.Nil(t, err, "disabled")
	assert.Equal(t, uint64(0), amount, "disabled amount")

	require.Nil(t, f.wallet.SetState(&wallet.State{RechargeThreshold: 50, RechargeAmount: 200}), "state")

	amount, err = r.Check(ctx, time.Now())
	require.Nil(t, err, "below threshold")
	assert.Equal(t, uint64(200), amount, "recharged")

	balance, err := f.wallet.Balance(time.Now())
	require.Nil(t, err, "balance")
	assert.Equal(t, uint64(200), balance, "wallet balance")

	amount, err = r.Check(ctx, time.Now())
	require.Nil(t, err, "above threshold")
	assert.Equal(t, uint64(0), amount, "not recharged")

	settled, err := f.authority.Balance(userId)
	require.Nil(t, err, "settled")
	assert.Equal(t, uint64(800), settled, "debited once")
}

func TestRechargeOffline(t *testing.T) {
	f := setup(t)
	defer f.teardown()

	require.Nil(t, f.wallet.SetState(&wallet.State{RechargeThreshold: 50, RechargeAmount: 200}), "state")
	f.client.SetOnline(false)

	r := settlement.NewRecharger(f.wallet, f.client, userId)
	_, err := r.Check(context.Background(), time.Now())
	assert.Equal(t, fault.ErrSettlementUnavailable, err, "offline")
}
