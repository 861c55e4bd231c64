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
	"testing"

	"github.com/bitmark-inc/logger"
	"github.com/stretchr/testify/require"
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

// a data directory holding offlined.conf with the given content
func writeConfiguration(t *testing.T, content string) (string, string) {
	dir, err := ioutil.TempDir("", "offlined")
	require.NoError(t, err, "temp dir")
	t.Cleanup(func() { os.RemoveAll(dir) })

	fileName := filepath.Join(dir, "offlined.conf")
	require.NoError(t, ioutil.WriteFile(fileName, []byte(content), 0600), "write configuration")
	return dir, fileName
}
