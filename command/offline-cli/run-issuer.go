// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	"github.com/urfave/cli"

	"github.com/bitmark-inc/offlined/account"
	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/util"
)

func runIssuer(c *cli.Context) error {

	m := c.App.Metadata["config"].(*metadata)

	fileName, err := checkFileName(c.String("file"))
	if nil != err {
		return err
	}
	output, err := checkFileName(c.String("output"))
	if nil != err {
		return err
	}
	if util.EnsureFileExists(output) {
		return fault.ErrKeyFileAlreadyExists
	}

	_, privateKey, err := decryptKeyFile(m, fileName)
	if nil != err {
		return err
	}

	issuer := privateKey.Account().String()
	if err := ioutil.WriteFile(output, []byte(issuer+"\n"), 0644); nil != err {
		return err
	}

	if m.verbose {
		fmt.Fprintf(m.e, "issuer: %s\n", issuer)
	}

	return printJson(m.w, struct {
		Issuer string `json:"issuer"`
		File   string `json:"file"`
	}{
		Issuer: issuer,
		File:   output,
	})
}

// an issuer is given either as a base58 account or the name of a file
// holding one
func checkIssuer(s string) (*account.Account, error) {
	if "" == s {
		return nil, ErrIssuerIsRequired
	}
	if data, err := ioutil.ReadFile(s); nil == err {
		return account.AccountFromBase58(strings.TrimSpace(string(data)))
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	return account.AccountFromBase58(s)
}

func checkFileName(fileName string) (string, error) {
	if "" == fileName {
		return "", ErrFileNameIsRequired
	}
	return fileName, nil
}
