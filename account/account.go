// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package account

import (
	"bytes"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/ed25519"
	"golang.org/x/crypto/sha3"

	"github.com/bitmark-inc/offlined/fault"
)

// enumeration of supported key algorithms
const (
	// zero is never a valid algorithm
	Nothing = iota
	ED25519 = iota
	// end of list (one greater than last item)
	algorithmLimit = iota
)

// miscellaneous constants
const (
	checksumLength = 4

	// bits in key code starting from LSB
	publicKeyCode = 0x01

	algorithmShift = 4 // shift 4 bits to get algorithm
)

// Account - the public identity of an issuer, a token holder or a device
type Account struct {
	PublicKey []byte
}

// AccountFromBase58 - converts a Base58 encoded string and returns an account
func AccountFromBase58(accountBase58Encoded string) (*Account, error) {
	accountDecoded, err := base58.Decode(accountBase58Encoded)
	if nil != err || len(accountDecoded) <= checksumLength {
		return nil, fault.ErrNotPublicKey
	}

	checksumStart := len(accountDecoded) - checksumLength
	checksum := sha3.Sum256(accountDecoded[:checksumStart])
	if !bytes.Equal(checksum[:checksumLength], accountDecoded[checksumStart:]) {
		return nil, fault.ErrChecksumMismatch
	}

	return AccountFromBytes(accountDecoded[:checksumStart])
}

// AccountFromBytes - converts a key variant prefixed public key into an account
func AccountFromBytes(accountBytes []byte) (*Account, error) {
	if 0 == len(accountBytes) {
		return nil, fault.ErrNotPublicKey
	}

	keyVariant := accountBytes[0]
	if keyVariant&publicKeyCode != publicKeyCode {
		return nil, fault.ErrNotPublicKey
	}

	keyAlgorithm := int(keyVariant >> algorithmShift)
	if keyAlgorithm >= algorithmLimit || ED25519 != keyAlgorithm {
		return nil, fault.ErrInvalidKeyType
	}

	publicKey := accountBytes[1:]
	if ed25519.PublicKeySize != len(publicKey) {
		return nil, fault.ErrInvalidKeyLength
	}
	return FromPublicKey(publicKey)
}

// FromPublicKey - wrap a raw ed25519 public key
func FromPublicKey(publicKey []byte) (*Account, error) {
	if ed25519.PublicKeySize != len(publicKey) {
		return nil, fault.ErrInvalidKeyLength
	}
	account := &Account{
		PublicKey: make([]byte, ed25519.PublicKeySize),
	}
	copy(account.PublicKey, publicKey)
	return account, nil
}

// CheckSignature - verify the signature of a message
func (account *Account) CheckSignature(message []byte, signature Signature) error {
	if nil == account || ed25519.PublicKeySize != len(account.PublicKey) {
		return fault.ErrInvalidSignature
	}
	if ed25519.SignatureSize != len(signature) {
		return fault.ErrInvalidSignature
	}
	if !ed25519.Verify(account.PublicKey, message, signature) {
		return fault.ErrInvalidSignature
	}
	return nil
}

// Bytes - key variant followed by the public key
func (account *Account) Bytes() []byte {
	if nil == account {
		return nil
	}
	keyVariant := byte(ED25519<<algorithmShift) | publicKeyCode
	return append([]byte{keyVariant}, account.PublicKey...)
}

// String - base58 encoding of the key with a checksum
func (account *Account) String() string {
	if nil == account {
		return ""
	}
	buffer := account.Bytes()
	checksum := sha3.Sum256(buffer)
	buffer = append(buffer, checksum[:checksumLength]...)
	return base58.Encode(buffer)
}

// Equal - true if both accounts hold the same key
func (account *Account) Equal(other *Account) bool {
	if nil == account || nil == other {
		return false
	}
	return bytes.Equal(account.PublicKey, other.PublicKey)
}

// MarshalText - convert an account to its Base58 JSON form
func (account Account) MarshalText() ([]byte, error) {
	return []byte(account.String()), nil
}

// UnmarshalText - convert Base58 text into an account
func (account *Account) UnmarshalText(s []byte) error {
	a, err := AccountFromBase58(string(s))
	if nil != err {
		return err
	}
	account.PublicKey = a.PublicKey
	return nil
}
