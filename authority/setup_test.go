// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package authority_test

import (
	"fmt"
	"os"
	"testing"

	"github.com/bitmark-inc/logger"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/offlined/account"
	"github.com/bitmark-inc/offlined/authority"
	"github.com/bitmark-inc/offlined/storage"
)

const testingDirName = "testing"

func TestMain(m *testing.M) {
	os.RemoveAll(testingDirName)
	_ = os.Mkdir(testingDirName, 0700)

	logging := logger.Configuration{
		Directory: testingDirName,
		File:      "testing.log",
		Size:      1048576,
		Count:     10,
		Console:   false,
		Levels: map[string]string{
			logger.DefaultTag: "critical",
		},
	}
	if err := logger.Initialise(logging); nil != err {
		panic(fmt.Sprintf("logger initialization failed: %s", err))
	}

	rc := m.Run()
	logger.Finalise()
	os.RemoveAll(testingDirName)
	os.Exit(rc)
}

type fixture struct {
	db        *storage.Database
	key       *account.PrivateKey
	authority *authority.Authority
}

func setup(t *testing.T) *fixture {
	db, err := storage.OpenInMemory()
	require.Nil(t, err, "open database")
	key, err := account.NewPrivateKey()
	require.Nil(t, err, "authority key")
	return &fixture{
		db:        db,
		key:       key,
		authority: authority.New(key, db, authority.DefaultTTL),
	}
}

func (f *fixture) teardown() {
	f.db.Close()
}
