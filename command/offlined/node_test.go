// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bitmark-inc/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/packet"
	"github.com/bitmark-inc/offlined/transaction"
)

const localConfiguration = `
return {
   data_directory = ".",
   identity = { password = "device-password" },
   issuer = { public_key_file = variables.issuer },
   payment = { auto_approve_limit = 50 },
   settlement = {
      mode = "local",
      user_id = "alice",
      recharge_threshold = 100,
      recharge_amount = 300,
      authority = {
         password = "authority-password",
         deposit = 1000,
         denominations = { 100 },
      },
   },
}
`

// a node in local settlement mode with freshly generated keys
func newLocalNode(t *testing.T, withIssuerFile bool) *node {
	dir, fileName := writeConfiguration(t, localConfiguration)

	deviceKey := filepath.Join(dir, deviceKeyFilename)
	authorityKey := filepath.Join(dir, authorityKeyFilename)
	authorityPublic := filepath.Join(dir, authorityPublicFilename)
	require.NoError(t, makeIdentity("device", "device-password", deviceKey, ""), "device identity")
	require.NoError(t, makeIdentity("authority", "authority-password", authorityKey, authorityPublic), "authority identity")
	assert.Equal(t, fault.ErrKeyFileAlreadyExists, makeIdentity("device", "x", deviceKey, ""), "no overwrite")

	variables := map[string]string{}
	if withIssuerFile {
		variables["issuer"] = authorityPublicFilename
	}
	config, err := getConfiguration(fileName, variables)
	require.NoError(t, err, "configuration")

	n, err := openNode(logger.New("test"), config)
	require.NoError(t, err, "open node")
	t.Cleanup(n.close)
	return n
}

func TestNodeLocalSettlement(t *testing.T) {
	n := newLocalNode(t, false)

	require.NotNil(t, n.wallet.Issuer(), "issuer from the settlement service")
	issuer, err := n.keys.IssuerPublicKey(context.Background())
	require.NoError(t, err, "issuer key")
	assert.True(t, issuer.Equal(n.wallet.Issuer()), "same issuer")

	state, err := n.wallet.State()
	require.NoError(t, err, "state")
	assert.Equal(t, uint64(100), state.RechargeThreshold, "threshold")
	assert.Equal(t, uint64(300), state.RechargeAmount, "amount")

	ctx := context.Background()
	amount, err := n.recharger.Check(ctx, time.Now())
	require.NoError(t, err, "recharge")
	assert.Equal(t, uint64(300), amount, "recharged")

	tokens, err := n.wallet.Available(time.Now())
	require.NoError(t, err, "available")
	require.Len(t, tokens, 3, "denominations of 100")

	tx, err := n.coordinator.Redeem(ctx, []string{tokens[0].Id})
	require.NoError(t, err, "redeem")
	assert.Equal(t, transaction.Pending, tx.Status, "pending until drained")

	settled, err := n.queue.Drain(ctx)
	require.NoError(t, err, "drain")
	assert.Equal(t, 1, settled, "settled")

	tx, err = n.coordinator.Transaction(tx.Id)
	require.NoError(t, err, "stored")
	assert.Equal(t, transaction.Completed, tx.Status, "completed by settlement")

	state, err = n.wallet.State()
	require.NoError(t, err, "state")
	assert.Equal(t, uint64(800), state.SettledBalance, "1000 deposit - 300 issued + 100 redeemed")
}

func TestNodeIssuerFile(t *testing.T) {
	n := newLocalNode(t, true)

	issuer, err := readIssuer(n.config.Issuer.PublicKeyFile)
	require.NoError(t, err, "read issuer")
	assert.True(t, issuer.Equal(n.wallet.Issuer()), "issuer from file")
}

func TestNodeApprove(t *testing.T) {
	n := newLocalNode(t, false)

	assert.True(t, n.approve("kiosk", &packet.PaymentRequestMessage{RequestId: "r1", Amount: 50}), "at limit")
	assert.False(t, n.approve("kiosk", &packet.PaymentRequestMessage{RequestId: "r2", Amount: 51}), "over limit")
}

func TestNodeMetrics(t *testing.T) {
	n := newLocalNode(t, false)
	registerNodeMetrics(n)

	_, err := n.recharger.Check(context.Background(), time.Now())
	require.NoError(t, err, "recharge")

	var buffer bytes.Buffer
	require.NoError(t, writeMetrics(&buffer, n.registry), "write")
	text := buffer.String()
	assert.Contains(t, text, "offline_wallet_available_balance 300", "balance gauge")
	assert.Contains(t, text, "offline_transaction_pending 0", "pending gauge")
	assert.Contains(t, text, "offline_settlement_queued_redemptions 0", "queue gauge")
}
