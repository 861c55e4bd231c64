// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"time"

	"github.com/urfave/cli"

	"github.com/bitmark-inc/offlined/token"
)

type tokenReport struct {
	Id         string    `json:"id"`
	Amount     uint64    `json:"amount"`
	RootId     string    `json:"rootId"`
	RootAmount uint64    `json:"rootAmount"`
	Divisions  int       `json:"divisions"`
	Divided    uint64    `json:"divided"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Expired    bool      `json:"expired"`
	Spent      bool      `json:"spent"`
	Valid      bool      `json:"valid"`
	Error      string    `json:"error,omitempty"`
}

func runToken(c *cli.Context) error {

	m := c.App.Metadata["config"].(*metadata)

	fileName, err := checkFileName(c.String("file"))
	if nil != err {
		return err
	}
	issuer, err := checkIssuer(c.String("issuer"))
	if nil != err {
		return err
	}

	now := time.Now()
	if at := c.String("at"); "" != at {
		now, err = time.Parse(time.RFC3339, at)
		if nil != err {
			return err
		}
	}

	t, err := readToken(fileName)
	if nil != err {
		return err
	}

	if m.verbose {
		fmt.Fprintf(m.e, "token: %s\n", t.Id)
		fmt.Fprintf(m.e, "issuer: %s\n", issuer)
		fmt.Fprintf(m.e, "at: %s\n", now.UTC().Format(time.RFC3339))
	}

	report := tokenReport{
		Id:         t.Id,
		Amount:     t.Amount,
		RootId:     t.RootId(),
		RootAmount: t.RootAmount(),
		Divisions:  len(t.Divisions),
		Divided:    t.DividedAmount(),
		ExpiresAt:  t.ExpiresAt,
		Expired:    t.IsExpired(now),
		Spent:      t.IsSpent,
	}
	if err := token.Validate(t, issuer, now); nil != err {
		report.Error = err.Error()
	} else {
		report.Valid = true
	}
	return printJson(m.w, report)
}

func readToken(fileName string) (*token.OfflineToken, error) {
	data, err := ioutil.ReadFile(fileName)
	if nil != err {
		return nil, err
	}
	t := &token.OfflineToken{}
	if err := json.Unmarshal(data, t); nil != err {
		return nil, err
	}
	return t, nil
}
