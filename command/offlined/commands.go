// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/bitmark-inc/exitwithstatus"

	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/keypair"
	"github.com/bitmark-inc/offlined/util"
	"github.com/bitmark-inc/offlined/zmqutil"
)

const (
	peerPublicKeyFilename  = "peer.public"
	peerPrivateKeyFilename = "peer.private"

	deviceKeyFilename = "device.key"

	authorityKeyFilename    = "authority.key"
	authorityPublicFilename = "authority.public"
)

// setup command handler
//
// commands that run to create key files these commands cannot access
// any internal database or states or the configuration file
func processSetupCommand(program string, arguments []string) bool {

	command := "help"
	if len(arguments) > 0 {
		command = arguments[0]
		arguments = arguments[1:]
	}

	switch command {
	case "gen-peer-identity", "peer":
		publicKeyFilename := getFilenameWithDirectory(arguments, peerPublicKeyFilename)
		privateKeyFilename := getFilenameWithDirectory(arguments, peerPrivateKeyFilename)
		err := zmqutil.MakeKeyPair(publicKeyFilename, privateKeyFilename)
		if nil != err {
			fmt.Printf("generate private key: %q and public key: %q error: %s\n", privateKeyFilename, publicKeyFilename, err)
			exitwithstatus.Exit(1)
		}
		fmt.Printf("generated private key: %q and public key: %q\n", privateKeyFilename, publicKeyFilename)

	case "gen-device-identity", "device":
		if len(arguments) < 1 {
			exitwithstatus.Message("missing password argument")
		}
		password := arguments[0]
		keyFilename := getFilenameWithDirectory(arguments[1:], deviceKeyFilename)

		if err := makeIdentity("device", password, keyFilename, ""); nil != err {
			fmt.Printf("generate device identity: %q error: %s\n", keyFilename, err)
			exitwithstatus.Exit(1)
		}
		fmt.Printf("generated device identity: %q\n", keyFilename)

	case "gen-authority-identity", "authority":
		if len(arguments) < 1 {
			exitwithstatus.Message("missing password argument")
		}
		password := arguments[0]
		keyFilename := getFilenameWithDirectory(arguments[1:], authorityKeyFilename)
		publicFilename := getFilenameWithDirectory(arguments[1:], authorityPublicFilename)

		if err := makeIdentity("authority", password, keyFilename, publicFilename); nil != err {
			fmt.Printf("generate authority identity: %q error: %s\n", keyFilename, err)
			exitwithstatus.Exit(1)
		}
		fmt.Printf("generated authority identity: %q and issuer public key: %q\n", keyFilename, publicFilename)

	case "start", "run":
		return false // continue processing

	case "config-test", "cfg", "account":
		return false // defer processing until configuration is read

	case "balance", "tokens", "transactions", "tx", "pay", "transfer", "request", "retry", "cancel", "redeem", "divide", "drain", "cleanup", "recharge", "discover", "metrics":
		return false // defer processing until database is loaded

	case "version", "v":
		fmt.Printf("%s\n", version)
		return true

	default:
		switch command {
		case "help", "h", "?":
		case "", " ":
			fmt.Printf("error: missing command\n")
		default:
			fmt.Printf("error: no such command: %q\n", command)
		}
		fmt.Printf("usage: %s [--help] [--verbose] [--quiet] --config-file=FILE [[command|help] arguments...]\n", program)

		fmt.Printf("supported commands:\n\n")
		fmt.Printf("  help                                  (h)         - display this message\n\n")
		fmt.Printf("  version                               (v)         - display version sting\n\n")

		fmt.Printf("  gen-peer-identity [DIR]               (peer)      - create private key in: %q\n", "DIR/"+peerPrivateKeyFilename)
		fmt.Printf("                                                      and the public key in: %q\n", "DIR/"+peerPublicKeyFilename)
		fmt.Printf("\n")

		fmt.Printf("  gen-device-identity PASSWORD [DIR]    (device)    - create encrypted key in: %q\n", "DIR/"+deviceKeyFilename)
		fmt.Printf("\n")

		fmt.Printf("  gen-authority-identity PASSWORD [DIR] (authority) - create encrypted key in: %q\n", "DIR/"+authorityKeyFilename)
		fmt.Printf("                                                      and issuer public key in: %q\n", "DIR/"+authorityPublicFilename)
		fmt.Printf("\n")

		fmt.Printf("  start                                 (run)       - just run the program, same as no arguments\n")
		fmt.Printf("                                                      for convienience when passing script arguments\n")
		fmt.Printf("\n")

		fmt.Printf("  config-test                           (cfg)       - just check the configuration file\n")
		fmt.Printf("  account                                           - display the device account\n")
		fmt.Printf("\n")

		fmt.Printf("  balance                                           - available balance and settlement state\n")
		fmt.Printf("  tokens [all]                                      - list available tokens, or every stored token\n")
		fmt.Printf("  transactions [STATUS]                             - list transactions\n")
		fmt.Printf("  tx TXID                                           - display one transaction\n")
		fmt.Printf("\n")

		fmt.Printf("  pay PEER AMOUNT [KEY=VALUE...]                    - pay a connected peer\n")
		fmt.Printf("  transfer PEER TOKEN...                            - send specific whole tokens\n")
		fmt.Printf("  request PEER AMOUNT [DESCRIPTION]                 - ask a peer for a payment\n")
		fmt.Printf("  retry PEER TXID                                   - resend a failed transfer\n")
		fmt.Printf("  cancel TXID                                       - cancel a transaction that has not completed\n")
		fmt.Printf("  divide TOKEN AMOUNT                               - split a token\n")
		fmt.Printf("  discover                                          - list reachable peers\n")
		fmt.Printf("\n")

		fmt.Printf("  redeem TOKEN...                                   - return tokens to the issuer\n")
		fmt.Printf("  drain                                             - submit queued settlement items\n")
		fmt.Printf("  recharge                                          - request tokens if below threshold\n")
		fmt.Printf("  cleanup                                           - remove expired tokens\n")
		fmt.Printf("  metrics                                           - print the current metrics\n")
		fmt.Printf("\n")

		exitwithstatus.Exit(1)
	}

	// indicate processing complete and prefform normal exit from main
	return true
}

// configuration commands
// these require the configuration file but not the database
func processConfigCommand(arguments []string, options *Configuration) bool {

	if 0 == len(arguments) {
		return false
	}

	switch arguments[0] {
	case "config-test", "cfg":
		printJson("configuration", options)
		return true

	case "account":
		keyFile, err := keypair.Read(options.Identity.KeyFile)
		if nil != err {
			exitwithstatus.Message("identity: %q  error: %s", options.Identity.KeyFile, err)
		}
		printJson("", struct {
			Name    string `json:"name"`
			Account string `json:"account"`
		}{
			Name:    keyFile.Name,
			Account: keyFile.Account.String(),
		})
		return true
	}
	return false
}

// create an encrypted key file and optionally the matching issuer
// public key file
func makeIdentity(name string, password string, keyFilename string, publicFilename string) error {
	if util.EnsureFileExists(keyFilename) {
		return fault.ErrKeyFileAlreadyExists
	}
	if "" != publicFilename && util.EnsureFileExists(publicFilename) {
		return fault.ErrKeyFileAlreadyExists
	}

	keyFile, privateKey, err := keypair.New(name, "", password)
	if nil != err {
		return err
	}
	if err := keyFile.Write(keyFilename); nil != err {
		return err
	}
	if "" == publicFilename {
		return nil
	}
	err = ioutil.WriteFile(publicFilename, []byte(privateKey.Account().String()+"\n"), 0644)
	if nil != err {
		os.Remove(keyFilename)
	}
	return err
}

func getFilenameWithDirectory(arguments []string, name string) string {
	directory := "."
	if len(arguments) >= 1 {
		directory = arguments[0]
	}
	return filepath.Join(directory, name)
}
