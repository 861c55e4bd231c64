// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package account

import (
	"crypto/rand"

	"golang.org/x/crypto/ed25519"

	"github.com/bitmark-inc/offlined/fault"
)

// Signer - anything able to produce signatures for an account
//
// the authority signing key may live in an HSM so signing can fail
type Signer interface {
	Account() *Account
	Sign(message []byte) (Signature, error)
}

// PrivateKey - an ed25519 signing key
type PrivateKey struct {
	privateKey ed25519.PrivateKey
	account    *Account
}

// NewPrivateKey - generate a random key
func NewPrivateKey() (*PrivateKey, error) {
	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if nil != err {
		return nil, err
	}
	return PrivateKeyFromBytes(privateKey)
}

// PrivateKeyFromBytes - accepts either a 64 byte private key or a 32 byte seed
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	var privateKey ed25519.PrivateKey
	switch len(b) {
	case ed25519.PrivateKeySize:
		privateKey = make(ed25519.PrivateKey, ed25519.PrivateKeySize)
		copy(privateKey, b)
	case ed25519.SeedSize:
		privateKey = ed25519.NewKeyFromSeed(b)
	default:
		return nil, fault.ErrInvalidKeyLength
	}

	publicKey := privateKey.Public().(ed25519.PublicKey)
	account, err := FromPublicKey(publicKey)
	if nil != err {
		return nil, err
	}
	return &PrivateKey{
		privateKey: privateKey,
		account:    account,
	}, nil
}

// Account - the public side of the key
func (privateKey *PrivateKey) Account() *Account {
	return privateKey.account
}

// Sign - sign a message
func (privateKey *PrivateKey) Sign(message []byte) (Signature, error) {
	if nil == privateKey || ed25519.PrivateKeySize != len(privateKey.privateKey) {
		return nil, fault.ErrSigningFailed
	}
	return ed25519.Sign(privateKey.privateKey, message), nil
}

// Bytes - raw private key, for key file storage only
func (privateKey *PrivateKey) Bytes() []byte {
	b := make([]byte, len(privateKey.privateKey))
	copy(b, privateKey.privateKey)
	return b
}
