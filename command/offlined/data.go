// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bitmark-inc/exitwithstatus"
	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/offlined/peer"
	"github.com/bitmark-inc/offlined/token"
	"github.com/bitmark-inc/offlined/transaction"
)

const (
	commandTimeout  = 2 * time.Minute
	discoverTimeout = 5 * time.Second
)

// data command handler
//
// these operate on the database of a node that is not running its
// background processes, networked commands open the link for the
// duration of the command
func processDataCommand(log *logger.L, arguments []string, n *node) bool {

	if 0 == len(arguments) {
		return false
	}
	command := arguments[0]
	arguments = arguments[1:]

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	now := time.Now()

	switch command {
	case "start", "run":
		return false

	case "balance":
		balance, err := n.wallet.Balance(now)
		if nil != err {
			exitwithstatus.Message("balance error: %s", err)
		}
		state, err := n.wallet.State()
		if nil != err {
			exitwithstatus.Message("state error: %s", err)
		}
		redemptions, records := 0, 0
		if nil != n.queue {
			redemptions, records, err = n.queue.Pending()
			if nil != err {
				exitwithstatus.Message("settlement queue error: %s", err)
			}
		}
		printJson("", struct {
			Available          uint64    `json:"available"`
			SettledBalance     uint64    `json:"settledBalance"`
			LastSync           time.Time `json:"lastSync"`
			RechargeThreshold  uint64    `json:"rechargeThreshold"`
			RechargeAmount     uint64    `json:"rechargeAmount"`
			QueuedRedemptions  int       `json:"queuedRedemptions"`
			QueuedTransactions int       `json:"queuedTransactions"`
		}{
			Available:          balance,
			SettledBalance:     state.SettledBalance,
			LastSync:           state.LastSync,
			RechargeThreshold:  state.RechargeThreshold,
			RechargeAmount:     state.RechargeAmount,
			QueuedRedemptions:  redemptions,
			QueuedTransactions: records,
		})

	case "tokens":
		var tokens []*token.OfflineToken
		var err error
		if len(arguments) > 0 && "all" == arguments[0] {
			tokens, err = n.wallet.List(nil)
		} else {
			tokens, err = n.wallet.Available(now)
		}
		if nil != err {
			exitwithstatus.Message("tokens error: %s", err)
		}
		printJson("", tokens)

	case "transactions":
		var filter func(*transaction.Transaction) bool
		if len(arguments) > 0 {
			status := strings.ToLower(arguments[0])
			filter = func(tx *transaction.Transaction) bool {
				return strings.ToLower(tx.Status.String()) == status
			}
		}
		txs, err := n.coordinator.Transactions(filter)
		if nil != err {
			exitwithstatus.Message("transactions error: %s", err)
		}
		printJson("", txs)

	case "tx":
		requireArguments(command, arguments, 1)
		tx, err := n.coordinator.Transaction(arguments[0])
		if nil != err {
			exitwithstatus.Message("tx: %s  error: %s", arguments[0], err)
		}
		printJson("", tx)

	case "pay":
		requireArguments(command, arguments, 2)
		amount := parseAmount(arguments[1])
		metadata := make(map[string]string)
		for _, kv := range arguments[2:] {
			s := strings.SplitN(kv, "=", 2)
			if 2 != len(s) {
				exitwithstatus.Message("metadata: %q is not KEY=VALUE", kv)
			}
			metadata[s[0]] = s[1]
		}
		s := connectPeer(ctx, n, arguments[0])
		tx, err := n.coordinator.Pay(ctx, s, amount, metadata)
		reportTransaction(log, "pay", tx, err)

	case "transfer":
		requireArguments(command, arguments, 2)
		s := connectPeer(ctx, n, arguments[0])
		tx, err := n.coordinator.Transfer(ctx, s, arguments[1:], nil)
		reportTransaction(log, "transfer", tx, err)

	case "request":
		requireArguments(command, arguments, 2)
		amount := parseAmount(arguments[1])
		description := strings.Join(arguments[2:], " ")
		s := connectPeer(ctx, n, arguments[0])
		requestId, err := n.coordinator.Request(ctx, s, amount, description)
		if nil != err {
			exitwithstatus.Message("request error: %s", err)
		}
		printJson("", map[string]string{"requestId": requestId})

	case "retry":
		requireArguments(command, arguments, 2)
		s := connectPeer(ctx, n, arguments[0])
		tx, err := n.coordinator.Retry(ctx, s, arguments[1])
		reportTransaction(log, "retry", tx, err)

	case "cancel":
		requireArguments(command, arguments, 1)
		if err := n.coordinator.Cancel(arguments[0]); nil != err {
			exitwithstatus.Message("cancel error: %s", err)
		}
		tx, err := n.coordinator.Transaction(arguments[0])
		reportTransaction(log, "cancel", tx, err)

	case "divide":
		requireArguments(command, arguments, 2)
		payment, change, err := n.wallet.Divide(arguments[0], parseAmount(arguments[1]), now)
		if nil != err {
			exitwithstatus.Message("divide error: %s", err)
		}
		printJson("", []*token.OfflineToken{payment, change})

	case "discover":
		if err := n.startNetwork(); nil != err {
			exitwithstatus.Message("network error: %s", err)
		}
		ids, err := n.manager.Discover(ctx, discoverTimeout)
		if nil != err {
			exitwithstatus.Message("discover error: %s", err)
		}
		printJson("", ids)

	case "redeem":
		requireArguments(command, arguments, 1)
		tx, err := n.coordinator.Redeem(ctx, arguments)
		if nil == err && nil != n.queue {
			if _, drainErr := n.queue.Drain(ctx); nil != drainErr {
				log.Warnf("drain error: %s", drainErr)
			}
			tx, err = n.coordinator.Transaction(tx.Id)
		}
		reportTransaction(log, "redeem", tx, err)

	case "drain":
		if nil == n.queue {
			exitwithstatus.Message("settlement mode: %q has no queue", n.config.Settlement.Mode)
		}
		settled, err := n.queue.Drain(ctx)
		if nil != err {
			exitwithstatus.Message("drain error after: %d  error: %s", settled, err)
		}
		printJson("", map[string]int{"settled": settled})

	case "recharge":
		if nil == n.recharger {
			exitwithstatus.Message("settlement mode: %q cannot recharge", n.config.Settlement.Mode)
		}
		amount, err := n.recharger.Check(ctx, now)
		if nil != err {
			exitwithstatus.Message("recharge error: %s", err)
		}
		printJson("", map[string]uint64{"recharged": amount})

	case "cleanup":
		removed, err := n.wallet.CleanupExpired(now)
		if nil != err {
			exitwithstatus.Message("cleanup error: %s", err)
		}
		printJson("", map[string]int{"removed": removed})

	case "metrics":
		registerNodeMetrics(n)
		if err := writeMetrics(os.Stdout, n.registry); nil != err {
			exitwithstatus.Message("metrics error: %s", err)
		}

	default:
		exitwithstatus.Message("error: no such command: %q", command)
	}

	return true
}

func requireArguments(command string, arguments []string, count int) {
	if len(arguments) < count {
		exitwithstatus.Message("%s: requires %d arguments, %d were given", command, count, len(arguments))
	}
}

func parseAmount(s string) uint64 {
	amount, err := strconv.ParseUint(s, 10, 64)
	if nil != err || 0 == amount {
		exitwithstatus.Message("amount: %q is not a positive integer", s)
	}
	return amount
}

// open the link and an authenticated session to peerId
func connectPeer(ctx context.Context, n *node, peerId string) *peer.Session {
	if err := n.startNetwork(); nil != err {
		exitwithstatus.Message("network error: %s", err)
	}
	s, err := n.session(ctx, peerId)
	if nil != err {
		exitwithstatus.Message("connect: %s  error: %s", peerId, err)
	}
	return s
}

// the transaction is displayed even on failure since it records the
// failure reason and whether a retry is possible
func reportTransaction(log *logger.L, title string, tx *transaction.Transaction, err error) {
	if nil != tx {
		printJson("", tx)
	}
	if nil != err {
		log.Errorf("%s error: %s", title, err)
		exitwithstatus.Message("%s error: %s", title, err)
	}
}
