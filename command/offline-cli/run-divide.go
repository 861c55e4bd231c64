// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli"

	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/token"
)

// the updated parent is printed with the new claims since its division
// records must replace the stored copy
func runDivide(c *cli.Context) error {

	m := c.App.Metadata["config"].(*metadata)

	fileName, err := checkFileName(c.String("file"))
	if nil != err {
		return err
	}
	keyFileName, err := checkFileName(c.String("key"))
	if nil != err {
		return err
	}
	issuer, err := checkIssuer(c.String("issuer"))
	if nil != err {
		return err
	}
	amount := c.Uint64("amount")
	if 0 == amount {
		return fault.ErrZeroAmount
	}

	t, err := readToken(fileName)
	if nil != err {
		return err
	}

	_, holder, err := decryptKeyFile(m, keyFileName)
	if nil != err {
		return err
	}

	payment, change, err := token.Divide(t, issuer, holder, amount, time.Now())
	if nil != err {
		return err
	}

	if m.verbose {
		fmt.Fprintf(m.e, "token: %s\n", t.Id)
		fmt.Fprintf(m.e, "payment: %s  amount: %d\n", payment.Id, payment.Amount)
		if nil != change {
			fmt.Fprintf(m.e, "change: %s  amount: %d\n", change.Id, change.Amount)
		}
	}

	return printJson(m.w, struct {
		Token   *token.OfflineToken `json:"token"`
		Payment *token.OfflineToken `json:"payment"`
		Change  *token.OfflineToken `json:"change,omitempty"`
	}{
		Token:   t,
		Payment: payment,
		Change:  change,
	})
}
