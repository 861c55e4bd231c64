// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/urfave/cli"

	"github.com/bitmark-inc/offlined/keypair"
)

func runGenerate(c *cli.Context) error {

	m := c.App.Metadata["config"].(*metadata)

	fileName, err := checkFileName(c.String("file"))
	if nil != err {
		return err
	}

	password, err := newPassword(m)
	if nil != err {
		return err
	}

	keyFile, _, err := keypair.New(c.String("name"), c.String("description"), password)
	if nil != err {
		return err
	}
	if err := keyFile.Write(fileName); nil != err {
		return err
	}

	if m.verbose {
		fmt.Fprintf(m.e, "file: %s\n", fileName)
		fmt.Fprintf(m.e, "account: %s\n", keyFile.Account)
	}

	return printJson(m.w, struct {
		Name    string `json:"name"`
		Account string `json:"account"`
		File    string `json:"file"`
	}{
		Name:    keyFile.Name,
		Account: keyFile.Account.String(),
		File:    fileName,
	})
}
