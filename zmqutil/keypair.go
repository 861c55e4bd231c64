// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package zmqutil

import (
	"encoding/hex"
	"io/ioutil"
	"os"
	"strings"

	zmq "github.com/pebbe/zmq4"

	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/util"
)

const (
	taggedPublic  = "PUBLIC:"
	taggedPrivate = "PRIVATE:"
	publicLength  = 32
	privateLength = 32
)

// MakeKeyPair - create a CURVE keypair and write each half to its
// own file
func MakeKeyPair(publicKeyFileName string, privateKeyFileName string) error {
	if util.EnsureFileExists(publicKeyFileName) {
		return fault.ErrKeyFileAlreadyExists
	}
	if util.EnsureFileExists(privateKeyFileName) {
		return fault.ErrKeyFileAlreadyExists
	}

	// keys are returned Z85 encoded and stored as hex
	publicKey, privateKey, err := zmq.NewCurveKeypair()
	if nil != err {
		return err
	}

	publicKey = taggedPublic + hex.EncodeToString([]byte(zmq.Z85decode(publicKey))) + "\n"
	privateKey = taggedPrivate + hex.EncodeToString([]byte(zmq.Z85decode(privateKey))) + "\n"

	if err = ioutil.WriteFile(publicKeyFileName, []byte(publicKey), 0666); nil != err {
		return err
	}
	if err = ioutil.WriteFile(privateKeyFileName, []byte(privateKey), 0600); nil != err {
		os.Remove(publicKeyFileName)
		return err
	}
	return nil
}

// ReadPublicKeyFile - load a tagged public key file
func ReadPublicKeyFile(fileName string) ([]byte, error) {
	data, err := ioutil.ReadFile(fileName)
	if nil != err {
		return nil, err
	}
	return ReadPublicKey(string(data))
}

// ReadPrivateKeyFile - load a tagged private key file
func ReadPrivateKeyFile(fileName string) ([]byte, error) {
	data, err := ioutil.ReadFile(fileName)
	if nil != err {
		return nil, err
	}
	return ReadPrivateKey(string(data))
}

// ReadPublicKey - decode a tagged public key
func ReadPublicKey(key string) ([]byte, error) {
	data, private, err := ParseKey(key)
	if nil != err {
		return nil, err
	}
	if private {
		return nil, fault.ErrInvalidPublicKeyFile
	}
	return data, nil
}

// ReadPrivateKey - decode a tagged private key
func ReadPrivateKey(key string) ([]byte, error) {
	data, private, err := ParseKey(key)
	if nil != err {
		return nil, err
	}
	if !private {
		return nil, fault.ErrInvalidPrivateKeyFile
	}
	return data, nil
}

// ParseKey - decode either kind of tagged key, the flag is true for a
// private key
func ParseKey(data string) ([]byte, bool, error) {
	s := strings.TrimSpace(data)
	switch {
	case strings.HasPrefix(s, taggedPrivate):
		h, err := hex.DecodeString(s[len(taggedPrivate):])
		if nil != err {
			return nil, false, err
		}
		if privateLength != len(h) {
			return nil, false, fault.ErrInvalidPrivateKeyFile
		}
		return h, true, nil

	case strings.HasPrefix(s, taggedPublic):
		h, err := hex.DecodeString(s[len(taggedPublic):])
		if nil != err {
			return nil, false, err
		}
		if publicLength != len(h) {
			return nil, false, fault.ErrInvalidPublicKeyFile
		}
		return h, false, nil

	default:
		return nil, false, fault.ErrInvalidPublicKeyFile
	}
}

// PublicKeyOf - derive the CURVE public key of a private key
func PublicKeyOf(privateKey []byte) ([]byte, error) {
	if privateLength != len(privateKey) {
		return nil, fault.ErrInvalidPrivateKeyFile
	}
	public, err := zmq.AuthCurvePublic(zmq.Z85encode(string(privateKey)))
	if nil != err {
		return nil, err
	}
	return []byte(zmq.Z85decode(public)), nil
}
