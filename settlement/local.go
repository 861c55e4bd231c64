// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package settlement

import (
	"context"
	"sync"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/offlined/account"
	"github.com/bitmark-inc/offlined/authority"
	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/messagebus"
	"github.com/bitmark-inc/offlined/token"
	"github.com/bitmark-inc/offlined/transaction"
)

// LocalClient - an in-process authority with a switchable
// connectivity flag
type LocalClient struct {
	log       *logger.L
	authority *authority.Authority
	broadcast *messagebus.BroadcastQueue

	sync.RWMutex
	online bool
}

// NewLocalClient - client of a, connectivity changes are announced on
// broadcast if not nil
func NewLocalClient(a *authority.Authority, broadcast *messagebus.BroadcastQueue) *LocalClient {
	return &LocalClient{
		log:       logger.New("settlement-client"),
		authority: a,
		broadcast: broadcast,
		online:    true,
	}
}

// SetOnline - change connectivity
func (c *LocalClient) SetOnline(online bool) {
	c.Lock()
	changed := c.online != online
	c.online = online
	c.Unlock()

	if !changed {
		return
	}
	c.log.Infof("online: %t", online)
	if nil == c.broadcast {
		return
	}
	if online {
		c.broadcast.Send(messagebus.Online)
	} else {
		c.broadcast.Send(messagebus.Offline)
	}
}

// Online - current connectivity
func (c *LocalClient) Online() bool {
	c.RLock()
	defer c.RUnlock()
	return c.online
}

func (c *LocalClient) check(ctx context.Context) error {
	if err := ctx.Err(); nil != err {
		return err
	}
	if !c.Online() {
		return fault.ErrSettlementUnavailable
	}
	return nil
}

// Issue - tokens for amount split into denominations
func (c *LocalClient) Issue(ctx context.Context, userId string, walletAddress string, amount uint64) ([]*token.OfflineToken, error) {
	if err := c.check(ctx); nil != err {
		return nil, err
	}
	return c.authority.IssueBatch(ctx, userId, walletAddress, amount)
}

// Redeem - credit the wallet with the tokens
func (c *LocalClient) Redeem(ctx context.Context, tokens []*token.OfflineToken, walletId string) (*Receipt, error) {
	if err := c.check(ctx); nil != err {
		return nil, err
	}
	receipt, err := c.authority.Redeem(ctx, tokens, walletId)
	if nil != err {
		return nil, err
	}
	return &Receipt{
		TransactionHash: receipt.TransactionHash,
		NewBalance:      receipt.NewBalance,
	}, nil
}

// IssuerPublicKey - the key tokens are signed with
func (c *LocalClient) IssuerPublicKey(ctx context.Context) (*account.Account, error) {
	if err := c.check(ctx); nil != err {
		return nil, err
	}
	return c.authority.PublicKey(ctx)
}

// Synchronise - report completed transactions
func (c *LocalClient) Synchronise(ctx context.Context, walletId string, txs []*transaction.Transaction) error {
	if err := c.check(ctx); nil != err {
		return err
	}
	_, err := c.authority.Record(walletId, txs)
	return err
}
