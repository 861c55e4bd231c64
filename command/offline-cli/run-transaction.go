// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"io/ioutil"

	"github.com/urfave/cli"

	"github.com/bitmark-inc/offlined/transaction"
)

func runTransaction(c *cli.Context) error {

	m := c.App.Metadata["config"].(*metadata)

	fileName, err := checkFileName(c.String("file"))
	if nil != err {
		return err
	}

	data, err := ioutil.ReadFile(fileName)
	if nil != err {
		return err
	}
	tx := &transaction.Transaction{}
	if err := json.Unmarshal(data, tx); nil != err {
		return err
	}

	if m.verbose {
		fmt.Fprintf(m.e, "transaction: %s\n", tx.Id)
		fmt.Fprintf(m.e, "payload: %x\n", tx.Payload())
	}

	out := struct {
		Id               string `json:"id"`
		Type             string `json:"type"`
		Status           string `json:"status"`
		Amount           uint64 `json:"amount"`
		Sender           string `json:"sender"`
		Receiver         string `json:"receiver"`
		SenderVerified   bool   `json:"senderVerified"`
		ReceiverVerified bool   `json:"receiverVerified"`
	}{
		Id:               tx.Id,
		Type:             tx.Type.String(),
		Status:           tx.Status.String(),
		Amount:           tx.Amount,
		Sender:           tx.SenderId,
		Receiver:         tx.ReceiverId,
		SenderVerified:   nil == tx.VerifySender(),
		ReceiverVerified: nil == tx.VerifyReceiver(),
	}
	return printJson(m.w, out)
}
