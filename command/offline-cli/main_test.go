// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/offlined/account"
	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/token"
	"github.com/bitmark-inc/offlined/transaction"
)

const testPassword = "correct horse battery"

func testDirectory(t *testing.T) string {
	dir, err := ioutil.TempDir("", "offline-cli")
	require.Nil(t, err, "temporary directory")
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

// run the application and return whatever it wrote to its writer
func run(t *testing.T, arguments ...string) ([]byte, error) {
	var w, e bytes.Buffer
	app := newApp(&w, &e)
	err := app.Run(append([]string{"offline-cli"}, arguments...))
	return w.Bytes(), err
}

func writeJSON(t *testing.T, fileName string, item interface{}) {
	data, err := json.Marshal(item)
	require.Nil(t, err, "marshal")
	require.Nil(t, ioutil.WriteFile(fileName, data, 0600), "write")
}

func issueToken(t *testing.T, issuer *account.PrivateKey, amount uint64, expiresAt time.Time) *token.OfflineToken {
	issuedAt := time.Now().UTC().Truncate(time.Second)
	id := token.NewId()
	signature, err := issuer.Sign(token.IssuerPayload(id, amount, issuer.Account(), issuedAt, expiresAt))
	require.Nil(t, err, "sign")
	return &token.OfflineToken{
		Id:        id,
		Amount:    amount,
		Issuer:    issuer.Account(),
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
		Signature: signature,
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	assert.Nil(t, err, "version")
	assert.Equal(t, version+"\n", string(out), "version text")
}

func TestGenerateAndAccount(t *testing.T) {
	dir := testDirectory(t)
	fileName := filepath.Join(dir, "device.key")

	out, err := run(t, "--password", testPassword, "generate", "--file", fileName, "--name", "till-1")
	require.Nil(t, err, "generate")

	generated := struct {
		Name    string `json:"name"`
		Account string `json:"account"`
	}{}
	require.Nil(t, json.Unmarshal(out, &generated), "generate output")
	assert.Equal(t, "till-1", generated.Name, "name")

	out, err = run(t, "--password", testPassword, "account", "--file", fileName, "--check")
	require.Nil(t, err, "account")
	shown := struct {
		Account  string `json:"account"`
		Verified bool   `json:"verified"`
	}{}
	require.Nil(t, json.Unmarshal(out, &shown), "account output")
	assert.Equal(t, generated.Account, shown.Account, "account")
	assert.True(t, shown.Verified, "password verified")

	_, err = run(t, "--password", "wrong password", "account", "--file", fileName, "--check")
	assert.Equal(t, fault.ErrWrongPassword, err, "wrong password")

	_, err = run(t, "--password", testPassword, "generate", "--file", fileName)
	assert.NotNil(t, err, "existing key file is not overwritten")
}

func TestGenerateRejectsShortPassword(t *testing.T) {
	dir := testDirectory(t)
	_, err := run(t, "--password", "short", "generate", "--file", filepath.Join(dir, "device.key"))
	assert.Equal(t, ErrInvalidPasswordLength, err, "short password")
}

func TestMissingFileName(t *testing.T) {
	_, err := run(t, "account")
	assert.Equal(t, ErrFileNameIsRequired, err, "missing file")
}

func TestIssuer(t *testing.T) {
	dir := testDirectory(t)
	keyFile := filepath.Join(dir, "authority.key")
	publicFile := filepath.Join(dir, "authority.public")

	_, err := run(t, "--password", testPassword, "generate", "--file", keyFile, "--name", "authority")
	require.Nil(t, err, "generate")

	_, err = run(t, "--password", testPassword, "issuer", "--file", keyFile, "--output", publicFile)
	require.Nil(t, err, "issuer")

	issuer, err := checkIssuer(publicFile)
	require.Nil(t, err, "read issuer file")

	direct, err := checkIssuer(issuer.String())
	require.Nil(t, err, "parse issuer account")
	assert.True(t, issuer.Equal(direct), "same issuer")

	_, err = run(t, "--password", testPassword, "issuer", "--file", keyFile, "--output", publicFile)
	assert.Equal(t, fault.ErrKeyFileAlreadyExists, err, "existing issuer file")
}

func TestToken(t *testing.T) {
	dir := testDirectory(t)
	issuer, err := account.NewPrivateKey()
	require.Nil(t, err, "issuer key")
	other, err := account.NewPrivateKey()
	require.Nil(t, err, "other key")

	expiresAt := time.Now().UTC().Truncate(time.Second).Add(time.Hour)
	tokenFile := filepath.Join(dir, "token.json")
	writeJSON(t, tokenFile, issueToken(t, issuer, 100, expiresAt))

	out, err := run(t, "token", "--file", tokenFile, "--issuer", issuer.Account().String())
	require.Nil(t, err, "token")
	report := tokenReport{}
	require.Nil(t, json.Unmarshal(out, &report), "token output")
	assert.True(t, report.Valid, "valid token")
	assert.Equal(t, uint64(100), report.RootAmount, "root amount")

	out, err = run(t, "token", "--file", tokenFile, "--issuer", issuer.Account().String(), "--at", expiresAt.Add(time.Minute).Format(time.RFC3339))
	require.Nil(t, err, "token at expiry")
	report = tokenReport{}
	require.Nil(t, json.Unmarshal(out, &report), "token output")
	assert.False(t, report.Valid, "expired token")
	assert.True(t, report.Expired, "expired flag")
	assert.Equal(t, fault.ErrExpiredToken.Error(), report.Error, "expiry error")

	out, err = run(t, "token", "--file", tokenFile, "--issuer", other.Account().String())
	require.Nil(t, err, "token with wrong issuer")
	report = tokenReport{}
	require.Nil(t, json.Unmarshal(out, &report), "token output")
	assert.False(t, report.Valid, "untrusted issuer")

	_, err = run(t, "token", "--file", tokenFile)
	assert.Equal(t, ErrIssuerIsRequired, err, "missing issuer")
}

func TestDivide(t *testing.T) {
	dir := testDirectory(t)
	issuer, err := account.NewPrivateKey()
	require.Nil(t, err, "issuer key")

	keyFile := filepath.Join(dir, "device.key")
	_, err = run(t, "--password", testPassword, "generate", "--file", keyFile)
	require.Nil(t, err, "generate")

	tokenFile := filepath.Join(dir, "token.json")
	writeJSON(t, tokenFile, issueToken(t, issuer, 100, time.Now().Add(time.Hour)))

	out, err := run(t, "--password", testPassword, "divide", "--file", tokenFile, "--key", keyFile, "--issuer", issuer.Account().String(), "--amount", "30")
	require.Nil(t, err, "divide")

	result := struct {
		Token   *token.OfflineToken `json:"token"`
		Payment *token.OfflineToken `json:"payment"`
		Change  *token.OfflineToken `json:"change"`
	}{}
	require.Nil(t, json.Unmarshal(out, &result), "divide output")
	require.NotNil(t, result.Change, "change")
	assert.Equal(t, uint64(30), result.Payment.Amount, "payment amount")
	assert.Equal(t, uint64(70), result.Change.Amount, "change amount")
	assert.Equal(t, 2, len(result.Token.Divisions), "division records")

	now := time.Now()
	assert.Nil(t, token.Validate(result.Payment, issuer.Account(), now), "payment validates")
	assert.Nil(t, token.Validate(result.Change, issuer.Account(), now), "change validates")

	_, err = run(t, "--password", testPassword, "divide", "--file", tokenFile, "--key", keyFile, "--issuer", issuer.Account().String(), "--amount", "300")
	assert.Equal(t, fault.ErrAmountExceedsToken, err, "too large")
}

func TestTransaction(t *testing.T) {
	dir := testDirectory(t)
	sender, err := account.NewPrivateKey()
	require.Nil(t, err, "sender key")
	receiver, err := account.NewPrivateKey()
	require.Nil(t, err, "receiver key")

	tx, err := transaction.New(transaction.Transfer, transaction.Outgoing, sender.Account().String(), receiver.Account().String(), 25, []string{token.NewId()}, time.Now())
	require.Nil(t, err, "new transaction")
	require.Nil(t, tx.SignAsSender(sender), "sender signature")
	require.Nil(t, tx.SignAsReceiver(receiver), "receiver signature")

	fileName := filepath.Join(dir, "tx.json")
	writeJSON(t, fileName, tx)

	verified := struct {
		SenderVerified   bool `json:"senderVerified"`
		ReceiverVerified bool `json:"receiverVerified"`
	}{}

	out, err := run(t, "transaction", "--file", fileName)
	require.Nil(t, err, "transaction")
	require.Nil(t, json.Unmarshal(out, &verified), "transaction output")
	assert.True(t, verified.SenderVerified, "sender")
	assert.True(t, verified.ReceiverVerified, "receiver")

	tx.Amount = 2500
	writeJSON(t, fileName, tx)

	out, err = run(t, "transaction", "--file", fileName)
	require.Nil(t, err, "altered transaction")
	require.Nil(t, json.Unmarshal(out, &verified), "transaction output")
	assert.False(t, verified.SenderVerified, "altered sender")
	assert.False(t, verified.ReceiverVerified, "altered receiver")
}

func TestPeerKeys(t *testing.T) {
	dir := testDirectory(t)
	publicFile := filepath.Join(dir, "peer.public")
	privateFile := filepath.Join(dir, "peer.private")

	_, err := run(t, "peer-keys", "--public", publicFile, "--private", privateFile)
	require.Nil(t, err, "peer-keys")
	assert.FileExists(t, publicFile, "public key")
	assert.FileExists(t, privateFile, "private key")
}
