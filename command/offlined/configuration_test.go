// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/offlined/coordinator"
	"github.com/bitmark-inc/offlined/settlement"
)

const fullConfiguration = `
local M = {}

M.data_directory = "."
M.pidfile = "offlined.pid"

M.identity = {
   key_file = "keys/device.key",
   password = variables.password,
}

M.issuer = {
   public_key_file = "issuer.public",
}

M.peering = {
   listen = "tcp://127.0.0.1:2136",
   connect = {
      { id = "kiosk", address = "tcp://127.0.0.1:2137" },
   },
   chunk_size = 256,
   retry_backoff = 250,
   ack_timeout = 4,
   write_rate = 20,
}

M.payment = {
   duplicate_window = -1,
   response_timeout = 12,
   auto_approve_limit = 500,
}

M.settlement = {
   mode = "LOCAL",
   user_id = "alice",
   drain_interval = 30,
   recharge_threshold = 100,
   recharge_amount = 1000,
   authority = {
      deposit = 5000,
      token_lifetime = 48,
      denominations = { 500, 100, 10, 1 },
   },
}

M.metrics = {
   file = "offlined.prom",
}

M.logging = {
   size = 2048,
   count = 3,
   levels = { main = "debug" },
}

return M
`

func TestGetConfiguration(t *testing.T) {
	dir, fileName := writeConfiguration(t, fullConfiguration)

	config, err := getConfiguration(fileName, map[string]string{"password": "secret"})
	require.NoError(t, err, "configuration")

	assert.Equal(t, filepath.Clean(dir), config.DataDirectory, "data directory")
	assert.Equal(t, filepath.Join(dir, "offlined.pid"), config.PidFile, "pid file")
	assert.Equal(t, filepath.Join(dir, "keys", "device.key"), config.Identity.KeyFile, "identity")
	assert.Equal(t, "secret", config.Identity.Password, "password")
	assert.Equal(t, filepath.Join(dir, "issuer.public"), config.Issuer.PublicKeyFile, "issuer")
	assert.Equal(t, filepath.Join(dir, "data", "wallet.leveldb"), config.Database.Name, "database")
	assert.Equal(t, filepath.Join(dir, "data", "authority.leveldb"), config.Settlement.Authority.Database, "authority database")
	assert.Equal(t, filepath.Join(dir, "offlined.prom"), config.Metrics.File, "metrics")
	assert.Equal(t, settlementLocal, config.Settlement.Mode, "mode lower cased")
	assert.Equal(t, []uint64{500, 100, 10, 1}, config.Settlement.Authority.Denominations, "denominations")

	require.Len(t, config.Peering.Connect, 1, "peers")
	assert.Equal(t, "kiosk", config.Peering.Connect[0].Id, "peer id")
	assert.Equal(t, "", config.Peering.Connect[0].PublicKey, "blank public key stays blank")

	info, err := os.Stat(filepath.Join(dir, "log"))
	require.NoError(t, err, "log directory created")
	assert.True(t, info.IsDir(), "log directory")

	p := config.peerConfig()
	assert.Equal(t, 256, p.ChunkSize, "chunk size")
	assert.Equal(t, defaultMaxRetries, p.MaxRetries, "default retries")
	assert.Equal(t, 250*time.Millisecond, p.RetryBackoff, "backoff")
	assert.Equal(t, 4*time.Second, p.AckTimeout, "ack timeout")
	assert.Equal(t, time.Duration(0), p.PingInterval, "unset takes peer default")
	assert.Equal(t, float64(20), p.WriteRate, "write rate")

	c := config.coordinatorConfig()
	assert.True(t, c.DuplicateWindow < 0, "window disabled")
	assert.Equal(t, 12*time.Second, c.ResponseTimeout, "response timeout")

	assert.Equal(t, 30*time.Second, config.drainInterval(), "drain interval")
	assert.Equal(t, 48*time.Hour, config.tokenLifetime(), "token lifetime")
	assert.Equal(t, defaultMetricsInterval*time.Second, config.metricsInterval(), "metrics interval")
	assert.Equal(t, "debug", config.Logging.Levels["main"], "log level")
}

func TestGetConfigurationDefaults(t *testing.T) {
	_, fileName := writeConfiguration(t, `return { data_directory = "." }`)

	config, err := getConfiguration(fileName, nil)
	require.NoError(t, err, "configuration")

	assert.Equal(t, settlementNone, config.Settlement.Mode, "mode")
	assert.Equal(t, "", config.PidFile, "no pid file")
	assert.Equal(t, "", config.Issuer.PublicKeyFile, "no issuer file")
	assert.Equal(t, uint64(0), config.Payment.AutoApproveLimit, "requests refused")
	assert.Equal(t, coordinator.Config{}, config.coordinatorConfig(), "coordinator defaults")
	assert.Equal(t, settlement.DefaultDrainInterval, config.drainInterval(), "drain interval")
	assert.Equal(t, time.Duration(0), config.tokenLifetime(), "authority default lifetime")
}

func TestGetConfigurationErrors(t *testing.T) {
	items := []struct {
		title  string
		script string
	}{
		{"no data directory", `return {}`},
		{"home data directory", `return { data_directory = "~" }`},
		{"missing data directory", `return { data_directory = "/nonexistent/offlined" }`},
		{"unknown settlement", `return { data_directory = ".", settlement = { mode = "remote" } }`},
		{"local without user", `return { data_directory = ".", settlement = { mode = "local" } }`},
		{"peer without address", `return { data_directory = ".", peering = { connect = { { id = "x" } } } }`},
		{"database path", `return { data_directory = ".", database = { name = "a/b.leveldb" } }`},
		{"log file path", `return { data_directory = ".", logging = { file = "x/offlined.log" } }`},
	}

	for _, item := range items {
		_, fileName := writeConfiguration(t, item.script)
		_, err := getConfiguration(fileName, nil)
		assert.Error(t, err, item.title)
	}
}
