// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/offlined/configuration"
	"github.com/bitmark-inc/offlined/coordinator"
	"github.com/bitmark-inc/offlined/peer"
	"github.com/bitmark-inc/offlined/settlement"
	"github.com/bitmark-inc/offlined/util"
)

// basic defaults (directories and files are relative to the "DataDirectory" from Configuration file)
const (
	defaultDataDirectory = "" // this will error; use "." for the same directory as the config file

	defaultIdentityFile       = "device.key"
	defaultPeerPublicKeyFile  = "peer.public"
	defaultPeerPrivateKeyFile = "peer.private"

	defaultLevelDBDirectory  = "data"
	defaultDatabase          = "wallet.leveldb"
	defaultAuthorityDatabase = "authority.leveldb"
	defaultAuthorityKeyFile  = "authority.key"

	defaultLogDirectory = "log"
	defaultLogFile      = "offlined.log"
	defaultLogCount     = 10          //  number of log files retained
	defaultLogSize      = 1024 * 1024 // rotate when <logfile> exceeds this size

	defaultMaxRetries      = 3
	defaultMetricsInterval = 60 // seconds
)

// settlement modes
const (
	settlementNone  = "none"
	settlementLocal = "local"
)

// to hold log levels
type LoglevelMap map[string]string

// path expanded or calculated defaults
var (
	defaultLogLevels = LoglevelMap{
		"main":            "info",
		logger.DefaultTag: "critical",
	}
)

type DatabaseType struct {
	Directory string `gluamapper:"directory" json:"directory"`
	Name      string `gluamapper:"name" json:"name"`
}

// password may be read from the environment by the Lua script
type IdentityType struct {
	KeyFile  string `gluamapper:"key_file" json:"key_file"`
	Password string `gluamapper:"password" json:"-"`
}

// public key file holds the issuer account in base58, it is watched and
// reloaded when it changes
type IssuerType struct {
	PublicKeyFile string `gluamapper:"public_key_file" json:"public_key_file"`
}

// CURVE public key file of the remote, blank for plain TCP
type Connection struct {
	Id        string `gluamapper:"id" json:"id"`
	Address   string `gluamapper:"address" json:"address"`
	PublicKey string `gluamapper:"public_key" json:"public_key"`
}

// timeouts in seconds except retry_backoff in milliseconds
type PeerType struct {
	Id                string       `gluamapper:"id" json:"id"`
	Listen            string       `gluamapper:"listen" json:"listen"`
	Curve             bool         `gluamapper:"curve" json:"curve"`
	PrivateKey        string       `gluamapper:"private_key" json:"private_key"`
	PublicKey         string       `gluamapper:"public_key" json:"public_key"`
	Connect           []Connection `gluamapper:"connect" json:"connect"`
	ChunkSize         int          `gluamapper:"chunk_size" json:"chunk_size"`
	MaxRetries        int          `gluamapper:"max_retries" json:"max_retries"`
	RetryBackoff      int          `gluamapper:"retry_backoff" json:"retry_backoff"`
	AckTimeout        int          `gluamapper:"ack_timeout" json:"ack_timeout"`
	HandshakeTimeout  int          `gluamapper:"handshake_timeout" json:"handshake_timeout"`
	ReassemblyTimeout int          `gluamapper:"reassembly_timeout" json:"reassembly_timeout"`
	PingInterval      int          `gluamapper:"ping_interval" json:"ping_interval"`
	PingTimeout       int          `gluamapper:"ping_timeout" json:"ping_timeout"`
	WriteRate         float64      `gluamapper:"write_rate" json:"write_rate"`
	WriteBurst        int          `gluamapper:"write_burst" json:"write_burst"`
}

// durations in seconds, a negative duplicate window disables the check
type PaymentType struct {
	DuplicateWindow  int    `gluamapper:"duplicate_window" json:"duplicate_window"`
	ResponseTimeout  int    `gluamapper:"response_timeout" json:"response_timeout"`
	AutoApproveLimit uint64 `gluamapper:"auto_approve_limit" json:"auto_approve_limit"`
}

// in-process authority used when settlement mode is "local"
type AuthorityType struct {
	KeyFile       string   `gluamapper:"key_file" json:"key_file"`
	Password      string   `gluamapper:"password" json:"-"`
	Database      string   `gluamapper:"database" json:"database"`
	Deposit       uint64   `gluamapper:"deposit" json:"deposit"`
	TokenLifetime int      `gluamapper:"token_lifetime" json:"token_lifetime"` // hours
	Denominations []uint64 `gluamapper:"denominations" json:"denominations"`
}

type SettlementType struct {
	Mode              string        `gluamapper:"mode" json:"mode"`
	UserId            string        `gluamapper:"user_id" json:"user_id"`
	DrainInterval     int           `gluamapper:"drain_interval" json:"drain_interval"`
	RechargeThreshold uint64        `gluamapper:"recharge_threshold" json:"recharge_threshold"`
	RechargeAmount    uint64        `gluamapper:"recharge_amount" json:"recharge_amount"`
	Authority         AuthorityType `gluamapper:"authority" json:"authority"`
}

// text exposition of the prometheus registry written every interval seconds
type MetricsType struct {
	File     string `gluamapper:"file" json:"file"`
	Interval int    `gluamapper:"interval" json:"interval"`
}

type Configuration struct {
	DataDirectory string               `gluamapper:"data_directory" json:"data_directory"`
	PidFile       string               `gluamapper:"pidfile" json:"pidfile"`
	Database      DatabaseType         `gluamapper:"database" json:"database"`
	Identity      IdentityType         `gluamapper:"identity" json:"identity"`
	Issuer        IssuerType           `gluamapper:"issuer" json:"issuer"`
	Peering       PeerType             `gluamapper:"peering" json:"peering"`
	Payment       PaymentType          `gluamapper:"payment" json:"payment"`
	Settlement    SettlementType       `gluamapper:"settlement" json:"settlement"`
	Metrics       MetricsType          `gluamapper:"metrics" json:"metrics"`
	Logging       logger.Configuration `gluamapper:"logging" json:"logging"`
}

// will read decode and verify the configuration
func getConfiguration(configurationFileName string, variables map[string]string) (*Configuration, error) {

	configurationFileName, err := filepath.Abs(filepath.Clean(configurationFileName))
	if nil != err {
		return nil, err
	}

	// absolute path to the main directory
	dataDirectory, _ := filepath.Split(configurationFileName)

	levels := make(map[string]string, len(defaultLogLevels))
	for k, v := range defaultLogLevels {
		levels[k] = v
	}

	options := &Configuration{

		DataDirectory: defaultDataDirectory,
		PidFile:       "", // no PidFile by default

		Database: DatabaseType{
			Directory: defaultLevelDBDirectory,
			Name:      defaultDatabase,
		},

		Identity: IdentityType{
			KeyFile: defaultIdentityFile,
		},

		Peering: PeerType{
			PublicKey:  defaultPeerPublicKeyFile,
			PrivateKey: defaultPeerPrivateKeyFile,
			MaxRetries: defaultMaxRetries,
		},

		Settlement: SettlementType{
			Mode: settlementNone,
			Authority: AuthorityType{
				KeyFile:  defaultAuthorityKeyFile,
				Database: defaultAuthorityDatabase,
			},
		},

		Metrics: MetricsType{
			Interval: defaultMetricsInterval,
		},

		Logging: logger.Configuration{
			Directory: defaultLogDirectory,
			File:      defaultLogFile,
			Size:      defaultLogSize,
			Count:     defaultLogCount,
			Levels:    levels,
		},
	}

	if err := configuration.ParseConfigurationFile(configurationFileName, options, variables); err != nil {
		return nil, err
	}

	options.Settlement.Mode = strings.ToLower(options.Settlement.Mode)
	switch options.Settlement.Mode {
	case settlementNone:
	case settlementLocal:
		if "" == options.Settlement.UserId {
			return nil, fmt.Errorf("Settlement: user_id is required for mode: %q", options.Settlement.Mode)
		}
	default:
		return nil, fmt.Errorf("Settlement: mode: %q is not supported", options.Settlement.Mode)
	}

	for i, c := range options.Peering.Connect {
		if "" == c.Id || "" == c.Address {
			return nil, fmt.Errorf("Peering: connect[%d] requires both id and address", i+1)
		}
	}

	// ensure absolute data directory
	if "" == options.DataDirectory || "~" == options.DataDirectory {
		return nil, fmt.Errorf("Path: %q is not a valid directory", options.DataDirectory)
	} else if "." == options.DataDirectory {
		options.DataDirectory = dataDirectory // same directory as the configuration file
	}
	options.DataDirectory = filepath.Clean(options.DataDirectory)

	// this directory must exist - i.e. must be created prior to running
	if fileInfo, err := os.Stat(options.DataDirectory); nil != err {
		return nil, err
	} else if !fileInfo.IsDir() {
		return nil, fmt.Errorf("Path: %q is not a directory", options.DataDirectory)
	}

	// force all relevant items to be absolute paths
	// if not, assign them to the data directory
	mustBeAbsolute := []*string{
		&options.Database.Directory,
		&options.Identity.KeyFile,
		&options.Peering.PublicKey,
		&options.Peering.PrivateKey,
		&options.Settlement.Authority.KeyFile,
		&options.Logging.Directory,
	}
	for _, f := range mustBeAbsolute {
		*f = util.EnsureAbsolute(options.DataDirectory, *f)
	}

	// optional absolute paths i.e. blank or an absolute path
	optionalAbsolute := []*string{
		&options.PidFile,
		&options.Issuer.PublicKeyFile,
		&options.Metrics.File,
	}
	for i := range options.Peering.Connect {
		optionalAbsolute = append(optionalAbsolute, &options.Peering.Connect[i].PublicKey)
	}
	for _, f := range optionalAbsolute {
		if "" != *f {
			*f = util.EnsureAbsolute(options.DataDirectory, *f)
		}
	}

	// fail if any of these are not simple file names i.e. must
	// not contain path seperator, then add the correct directory
	// prefix, file item is first and corresponding directory is
	// second (or nil if no prefix can be added)
	mustNotBePaths := [][2]*string{
		{&options.Database.Name, &options.Database.Directory},
		{&options.Settlement.Authority.Database, &options.Database.Directory},
		{&options.Logging.File, nil},
	}
	for _, f := range mustNotBePaths {
		switch filepath.Dir(*f[0]) {
		case "", ".":
			if nil != f[1] {
				*f[0] = util.EnsureAbsolute(*f[1], *f[0])
			}
		default:
			return nil, fmt.Errorf("Files: %q is not plain name", *f[0])
		}
	}

	// make absolute and create directories if they do not already exist
	for _, d := range []*string{
		&options.Database.Directory,
		&options.Logging.Directory,
	} {
		*d = util.EnsureAbsolute(options.DataDirectory, *d)
		if err := os.MkdirAll(*d, 0700); nil != err {
			return nil, err
		}
	}

	// done
	return options, nil
}

// transport settings, zero values take the peer package defaults
func (c *Configuration) peerConfig() peer.Config {
	p := c.Peering
	return peer.Config{
		ChunkSize:         p.ChunkSize,
		MaxRetries:        p.MaxRetries,
		RetryBackoff:      configuration.Milliseconds(p.RetryBackoff, 0),
		AckTimeout:        configuration.Seconds(p.AckTimeout, 0),
		HandshakeTimeout:  configuration.Seconds(p.HandshakeTimeout, 0),
		ReassemblyTimeout: configuration.Seconds(p.ReassemblyTimeout, 0),
		PingInterval:      configuration.Seconds(p.PingInterval, 0),
		PingTimeout:       configuration.Seconds(p.PingTimeout, 0),
		WriteRate:         p.WriteRate,
		WriteBurst:        p.WriteBurst,
	}
}

func (c *Configuration) coordinatorConfig() coordinator.Config {
	window := configuration.Seconds(c.Payment.DuplicateWindow, 0)
	if c.Payment.DuplicateWindow < 0 {
		window = -1
	}
	return coordinator.Config{
		DuplicateWindow: window,
		ResponseTimeout: configuration.Seconds(c.Payment.ResponseTimeout, 0),
	}
}

func (c *Configuration) drainInterval() time.Duration {
	return configuration.Seconds(c.Settlement.DrainInterval, settlement.DefaultDrainInterval)
}

func (c *Configuration) tokenLifetime() time.Duration {
	if c.Settlement.Authority.TokenLifetime <= 0 {
		return 0
	}
	return time.Duration(c.Settlement.Authority.TokenLifetime) * time.Hour
}

func (c *Configuration) metricsInterval() time.Duration {
	return configuration.Seconds(c.Metrics.Interval, defaultMetricsInterval*time.Second)
}
