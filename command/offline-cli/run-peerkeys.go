// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"github.com/urfave/cli"

	"github.com/bitmark-inc/offlined/zmqutil"
)

func runPeerKeys(c *cli.Context) error {

	m := c.App.Metadata["config"].(*metadata)

	publicFile, err := checkFileName(c.String("public"))
	if nil != err {
		return err
	}
	privateFile, err := checkFileName(c.String("private"))
	if nil != err {
		return err
	}

	if err := zmqutil.MakeKeyPair(publicFile, privateFile); nil != err {
		return err
	}

	return printJson(m.w, struct {
		Public  string `json:"public"`
		Private string `json:"private"`
	}{
		Public:  publicFile,
		Private: privateFile,
	})
}
