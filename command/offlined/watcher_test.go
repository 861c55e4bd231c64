// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/offlined/account"
	"github.com/bitmark-inc/offlined/background"
)

func writeIssuer(t *testing.T, fileName string) *account.Account {
	key, err := account.NewPrivateKey()
	require.NoError(t, err, "key")
	require.NoError(t, ioutil.WriteFile(fileName, []byte(key.Account().String()+"\n"), 0644), "write issuer")
	return key.Account()
}

func TestIssuerWatcher(t *testing.T) {
	dir, err := ioutil.TempDir("", "watcher")
	require.NoError(t, err, "temp dir")
	defer os.RemoveAll(dir)

	fileName := filepath.Join(dir, "issuer.public")
	writeIssuer(t, fileName)

	var lock sync.Mutex
	var current *account.Account
	w, err := newIssuerWatcher(fileName, func(issuer *account.Account) {
		lock.Lock()
		current = issuer
		lock.Unlock()
	})
	require.NoError(t, err, "watcher")

	processes := background.Start(background.Processes{w}, nil)
	defer processes.Stop()

	// unrelated files in the directory are ignored
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "other"), []byte("x"), 0644), "other file")

	next := writeIssuer(t, fileName)
	assert.Eventually(t, func() bool {
		lock.Lock()
		defer lock.Unlock()
		return nil != current && current.Equal(next)
	}, 2*time.Second, 10*time.Millisecond, "reloaded")

	// garbage keeps the current key
	require.NoError(t, ioutil.WriteFile(fileName, []byte("not an account"), 0644), "garbage")
	time.Sleep(100 * time.Millisecond)
	lock.Lock()
	assert.True(t, current.Equal(next), "unchanged")
	lock.Unlock()
}

func TestIssuerWatcherMissingFile(t *testing.T) {
	_, err := newIssuerWatcher("/nonexistent/issuer.public", func(*account.Account) {})
	assert.Error(t, err, "missing file")
}
