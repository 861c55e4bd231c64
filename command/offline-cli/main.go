// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli"
)

type metadata struct {
	password string
	verbose  bool
	e        io.Writer
	w        io.Writer
}

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "zero" // do not change this value

func main() {
	app := newApp(os.Stdout, os.Stderr)
	err := app.Run(os.Args)
	if nil != err {
		fmt.Fprintf(app.ErrWriter, "terminated with error: %s\n", err)
		os.Exit(1)
	}
}

func newApp(w io.Writer, e io.Writer) *cli.App {

	app := cli.NewApp()
	app.Name = "offline-cli"
	app.Usage = "key, token and transaction tools for offline payment devices"
	app.Version = version
	app.HideVersion = true

	app.Writer = w
	app.ErrWriter = e

	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "verbose, v",
			Usage: " verbose result",
		},
		cli.StringFlag{
			Name:  "password, p",
			Value: "",
			Usage: " key file `PASSWORD` [prompt if not given]",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:      "generate",
			Usage:     "create an encrypted device or authority key file",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "file, f",
					Value: "",
					Usage: "*key `FILE` to create",
				},
				cli.StringFlag{
					Name:  "name, n",
					Value: "device",
					Usage: " key `NAME`",
				},
				cli.StringFlag{
					Name:  "description, d",
					Value: "",
					Usage: " free text `DESCRIPTION`",
				},
			},
			Action: runGenerate,
		},
		{
			Name:      "account",
			Usage:     "display the account of a key file",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "file, f",
					Value: "",
					Usage: "*key `FILE`",
				},
				cli.BoolFlag{
					Name:  "check, c",
					Usage: " decrypt to verify the password",
				},
			},
			Action: runAccount,
		},
		{
			Name:      "issuer",
			Usage:     "write the issuer public key file of an authority key",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "file, f",
					Value: "",
					Usage: "*authority key `FILE`",
				},
				cli.StringFlag{
					Name:  "output, o",
					Value: "",
					Usage: "*issuer public key `FILE` to create",
				},
			},
			Action: runIssuer,
		},
		{
			Name:      "peer-keys",
			Usage:     "create a CURVE key pair for encrypted peering",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "public, u",
					Value: "",
					Usage: "*public key `FILE`",
				},
				cli.StringFlag{
					Name:  "private, r",
					Value: "",
					Usage: "*private key `FILE`",
				},
			},
			Action: runPeerKeys,
		},
		{
			Name:      "token",
			Usage:     "check a token exported as JSON",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "file, f",
					Value: "",
					Usage: "*token JSON `FILE`",
				},
				cli.StringFlag{
					Name:  "issuer, i",
					Value: "",
					Usage: "*issuer `ACCOUNT` or public key file",
				},
				cli.StringFlag{
					Name:  "at, a",
					Value: "",
					Usage: " validate at `TIME` (RFC3339) [now]",
				},
			},
			Action: runToken,
		},
		{
			Name:      "divide",
			Usage:     "split a token held by a key file",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "file, f",
					Value: "",
					Usage: "*token JSON `FILE`",
				},
				cli.StringFlag{
					Name:  "key, k",
					Value: "",
					Usage: "*holder key `FILE`",
				},
				cli.StringFlag{
					Name:  "issuer, i",
					Value: "",
					Usage: "*issuer `ACCOUNT` or public key file",
				},
				cli.Uint64Flag{
					Name:  "amount, a",
					Value: 0,
					Usage: "*payment `AMOUNT`",
				},
			},
			Action: runDivide,
		},
		{
			Name:      "transaction",
			Usage:     "verify the signatures of a transaction exported as JSON",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "file, f",
					Value: "",
					Usage: "*transaction JSON `FILE`",
				},
			},
			Action: runTransaction,
		},
		{
			Name:  "version",
			Usage: "display offline-cli version",
			Action: func(c *cli.Context) error {
				fmt.Fprintf(c.App.Writer, "%s\n", version)
				return nil
			},
		},
	}

	// read the global flags
	app.Before = func(c *cli.Context) error {

		e := c.App.ErrWriter
		verbose := c.GlobalBool("verbose")
		if verbose {
			fmt.Fprintf(e, "verbose: %v\n", verbose)
		}

		c.App.Metadata["config"] = &metadata{
			password: c.GlobalString("password"),
			verbose:  verbose,
			e:        e,
			w:        c.App.Writer,
		}
		return nil
	}

	return app
}
