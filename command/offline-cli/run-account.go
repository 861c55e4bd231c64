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

func runAccount(c *cli.Context) error {

	m := c.App.Metadata["config"].(*metadata)

	fileName, err := checkFileName(c.String("file"))
	if nil != err {
		return err
	}

	out := struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		Account     string `json:"account"`
		Verified    bool   `json:"verified,omitempty"`
	}{}

	var keyFile *keypair.KeyFile
	if c.Bool("check") {
		keyFile, _, err = decryptKeyFile(m, fileName)
		out.Verified = nil == err
	} else {
		keyFile, err = keypair.Read(fileName)
	}
	if nil != err {
		return err
	}

	if m.verbose {
		fmt.Fprintf(m.e, "file: %s\n", fileName)
	}

	out.Name = keyFile.Name
	out.Description = keyFile.Description
	out.Account = keyFile.Account.String()
	return printJson(m.w, out)
}
