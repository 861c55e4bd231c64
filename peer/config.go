// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import (
	"time"

	"github.com/bitmark-inc/offlined/packet"
)

// ProtocolVersion - version this build speaks
const ProtocolVersion = 1

// Config - session tuning
type Config struct {
	ChunkSize         int
	MaxRetries        int
	RetryBackoff      time.Duration
	AckTimeout        time.Duration
	HandshakeTimeout  time.Duration
	ReassemblyTimeout time.Duration
	PingInterval      time.Duration
	PingTimeout       time.Duration
	WriteRate         float64 // packets per second
	WriteBurst        int
	Version           uint64
	SupportedVersions []uint64
}

// DefaultConfig - values for a short range radio link
func DefaultConfig() Config {
	return Config{
		ChunkSize:         packet.DefaultChunkSize,
		MaxRetries:        3,
		RetryBackoff:      100 * time.Millisecond,
		AckTimeout:        10 * time.Second,
		HandshakeTimeout:  5 * time.Second,
		ReassemblyTimeout: packet.DefaultReassemblyTimeout,
		PingInterval:      15 * time.Second,
		PingTimeout:       5 * time.Second,
		WriteRate:         200,
		WriteBurst:        16,
		Version:           ProtocolVersion,
		SupportedVersions: []uint64{ProtocolVersion},
	}
}

// zero fields take their default
func (c Config) normalise() Config {
	d := DefaultConfig()
	if c.ChunkSize <= 0 {
		c.ChunkSize = d.ChunkSize
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = d.RetryBackoff
	}
	if c.AckTimeout <= 0 {
		c.AckTimeout = d.AckTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.ReassemblyTimeout <= 0 {
		c.ReassemblyTimeout = d.ReassemblyTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = d.PingTimeout
	}
	if c.WriteRate <= 0 {
		c.WriteRate = d.WriteRate
	}
	if c.WriteBurst <= 0 {
		c.WriteBurst = d.WriteBurst
	}
	if 0 == c.Version {
		c.Version = d.Version
	}
	if 0 == len(c.SupportedVersions) {
		c.SupportedVersions = []uint64{c.Version}
	}
	return c
}

func (c Config) supports(version uint64) bool {
	for _, v := range c.SupportedVersions {
		if v == version {
			return true
		}
	}
	return false
}
