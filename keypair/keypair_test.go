// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keypair_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/keypair"
)

func TestEncryptDecrypt(t *testing.T) {
	keyFile, privateKey, err := keypair.New("device", "test device", "s3cret")
	require.Nil(t, err, "new key file")

	recovered, err := keyFile.Decrypt("s3cret")
	require.Nil(t, err, "decrypt")
	assert.True(t, privateKey.Account().Equal(recovered.Account()))
	assert.Equal(t, privateKey.Bytes(), recovered.Bytes())
}

func TestWrongPassword(t *testing.T) {
	keyFile, _, err := keypair.New("device", "", "s3cret")
	require.Nil(t, err)

	_, err = keyFile.Decrypt("not the password")
	assert.Equal(t, fault.ErrWrongPassword, err)
}

func TestWriteRead(t *testing.T) {
	dir, err := ioutil.TempDir("", "keypair")
	require.Nil(t, err)
	defer os.RemoveAll(dir)

	keyFile, _, err := keypair.New("device", "", "pw")
	require.Nil(t, err)

	filename := filepath.Join(dir, "device.json")
	require.Nil(t, keyFile.Write(filename))
	assert.NotNil(t, keyFile.Write(filename), "overwrite must fail")

	loaded, err := keypair.Read(filename)
	require.Nil(t, err)
	assert.Equal(t, keyFile.Salt, loaded.Salt)
	assert.True(t, keyFile.Account.Equal(loaded.Account))

	_, err = loaded.Decrypt("pw")
	assert.Nil(t, err)
}
