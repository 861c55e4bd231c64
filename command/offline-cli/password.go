// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"os"

	"golang.org/x/crypto/ssh/terminal"

	"github.com/bitmark-inc/offlined/account"
	"github.com/bitmark-inc/offlined/keypair"
)

const minimumPasswordLength = 8

var passwordConsole *terminal.Terminal

func getTerminal() (*terminal.Terminal, int, *terminal.State, error) {
	oldState, err := terminal.MakeRaw(0)
	if nil != err {
		return nil, 0, nil, err
	}

	if nil != passwordConsole {
		return passwordConsole, 0, oldState, nil
	}

	tmpIO, err := os.OpenFile("/dev/tty", os.O_RDWR, os.ModePerm)
	if nil != err {
		terminal.Restore(0, oldState)
		return nil, 0, nil, err
	}

	passwordConsole = terminal.NewTerminal(tmpIO, "offline-cli: ")

	return passwordConsole, 0, oldState, nil
}

func readPassword(prompt string) (string, error) {
	console, fd, state, err := getTerminal()
	if nil != err {
		return "", err
	}
	defer terminal.Restore(fd, state)
	return console.ReadPassword(prompt)
}

// password for a new key file, asked twice if not on the command line
func newPassword(m *metadata) (string, error) {
	password := m.password
	if "" == password {
		p, err := readPassword("Set key file password(length >= 8): ")
		if nil != err {
			return "", err
		}
		verify, err := readPassword("Verify password: ")
		if nil != err {
			return "", err
		}
		if p != verify {
			return "", ErrPasswordMismatch
		}
		password = p
	}
	if len(password) < minimumPasswordLength {
		return "", ErrInvalidPasswordLength
	}
	return password, nil
}

// decrypt a key file with the global password or a prompted one
func decryptKeyFile(m *metadata, fileName string) (*keypair.KeyFile, *account.PrivateKey, error) {
	keyFile, err := keypair.Read(fileName)
	if nil != err {
		return nil, nil, err
	}

	password := m.password
	if "" == password {
		password, err = readPassword("password: ")
		if nil != err {
			return nil, nil, err
		}
	}

	privateKey, err := keyFile.Decrypt(password)
	if nil != err {
		return nil, nil, err
	}
	return keyFile, privateKey, nil
}
