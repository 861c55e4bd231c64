// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package settlement

import (
	"context"

	"github.com/bitmark-inc/offlined/account"
	"github.com/bitmark-inc/offlined/token"
	"github.com/bitmark-inc/offlined/transaction"
)

// Receipt - authority answer to a redemption
type Receipt struct {
	TransactionHash string `json:"transactionHash"`
	NewBalance      uint64 `json:"newBalance"`
}

//go:generate mockgen -source=client.go -destination=mocks/client.go -package=mocks

// Client - the settlement backend
//
// any method may return fault.ErrSettlementUnavailable while offline
type Client interface {
	Issue(ctx context.Context, userId string, walletAddress string, amount uint64) ([]*token.OfflineToken, error)
	Redeem(ctx context.Context, tokens []*token.OfflineToken, walletId string) (*Receipt, error)
	IssuerPublicKey(ctx context.Context) (*account.Account, error)
	Synchronise(ctx context.Context, walletId string, txs []*transaction.Transaction) error
}
