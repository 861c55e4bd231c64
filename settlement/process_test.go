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

	"github.com/bitmark-inc/offlined/background"
	"github.com/bitmark-inc/offlined/messagebus"
	"github.com/bitmark-inc/offlined/settlement"
)

func TestProcessDrainsOnReconnect(t *testing.T) {
	f := setup(t)
	defer f.teardown()

	queue := settlement.NewQueue(f.deviceDb, f.client, "wallet-1")
	tokens := f.issue(t, 40)
	require.Nil(t, queue.Submit(context.Background(), f.redemption(t, tokens), tokens), "submit")

	f.client.SetOnline(false)
	events := f.broadcast.Chan(4)
	p := settlement.NewProcess(queue, nil, events, nil, time.Hour)
	processes := background.Start(background.Processes{p}, nil)
	defer processes.Stop()

	f.client.SetOnline(true)
	assert.Eventually(t, func() bool {
		redemptions, _, err := queue.Pending()
		return nil == err && 0 == redemptions
	}, 2*time.Second, 10*time.Millisecond, "drained after reconnect")

	balance, err := f.authority.Balance("wallet-1")
	require.Nil(t, err, "balance")
	assert.Equal(t, uint64(40), balance, "credited")
}

func TestProcessDrainsOnRequest(t *testing.T) {
	f := setup(t)
	defer f.teardown()

	queue := settlement.NewQueue(f.deviceDb, f.client, "wallet-2")
	requests := messagebus.NewQueue(4)
	p := settlement.NewProcess(queue, nil, nil, requests.Chan(), time.Hour)
	processes := background.Start(background.Processes{p}, nil)
	defer processes.Stop()

	tokens := f.issue(t, 25)
	tx := f.redemption(t, tokens)
	require.Nil(t, queue.Submit(context.Background(), tx, tokens), "submit")
	require.True(t, requests.Send(messagebus.Drain, []byte(tx.Id)), "request")

	assert.Eventually(t, func() bool {
		redemptions, _, err := queue.Pending()
		return nil == err && 0 == redemptions
	}, 2*time.Second, 10*time.Millisecond, "drained on request")
}
