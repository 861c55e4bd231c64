// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keypair

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"io/ioutil"
	"os"

	"github.com/bitmark-inc/go-argon2"

	"github.com/bitmark-inc/offlined/account"
	"github.com/bitmark-inc/offlined/fault"
)

const (
	saltSize       = 32
	privateKeySize = 64
	keyFileMode    = 0600
)

// KeyFile - on-disk form of a device identity
type KeyFile struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Account     *account.Account `json:"account"`
	PrivateKey  string           `json:"private_key"`
	Salt        string           `json:"salt"`
}

// New - generate a fresh device key and wrap it in a key file
func New(name string, description string, password string) (*KeyFile, *account.PrivateKey, error) {
	privateKey, err := account.NewPrivateKey()
	if nil != err {
		return nil, nil, err
	}
	keyFile, err := Encrypt(name, description, privateKey, password)
	if nil != err {
		return nil, nil, err
	}
	return keyFile, privateKey, nil
}

// Encrypt - protect an existing private key with a password
func Encrypt(name string, description string, privateKey *account.PrivateKey, password string) (*KeyFile, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); nil != err {
		return nil, err
	}

	key, err := generateKey(password, salt)
	if nil != err {
		return nil, err
	}

	ciphertext, err := encryptPrivateKey(privateKey.Bytes(), key)
	if nil != err {
		return nil, err
	}

	return &KeyFile{
		Name:        name,
		Description: description,
		Account:     privateKey.Account(),
		PrivateKey:  hex.EncodeToString(ciphertext),
		Salt:        hex.EncodeToString(salt),
	}, nil
}

// Decrypt - recover the private key
//
// a wrong password is detected by the regenerated public key not
// matching the stored account
func (keyFile *KeyFile) Decrypt(password string) (*account.PrivateKey, error) {
	if nil == keyFile.Account {
		return nil, fault.ErrMissingParameters
	}
	salt, err := hex.DecodeString(keyFile.Salt)
	if nil != err {
		return nil, err
	}
	key, err := generateKey(password, salt)
	if nil != err {
		return nil, err
	}

	ciphertext, err := hex.DecodeString(keyFile.PrivateKey)
	if nil != err {
		return nil, err
	}
	plaintext, err := decryptPrivateKey(ciphertext, key)
	if nil != err {
		return nil, err
	}

	privateKey, err := account.PrivateKeyFromBytes(plaintext[:32])
	if nil != err {
		return nil, err
	}
	if !privateKey.Account().Equal(keyFile.Account) {
		return nil, fault.ErrWrongPassword
	}
	return privateKey, nil
}

// Read - load a key file
func Read(filename string) (*KeyFile, error) {
	b, err := ioutil.ReadFile(filename)
	if nil != err {
		return nil, err
	}
	keyFile := &KeyFile{}
	if err := json.Unmarshal(b, keyFile); nil != err {
		return nil, err
	}
	return keyFile, nil
}

// Write - save a key file, refusing to overwrite
func (keyFile *KeyFile) Write(filename string) error {
	b, err := json.MarshalIndent(keyFile, "", "  ")
	if nil != err {
		return err
	}
	fh, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_EXCL, keyFileMode)
	if nil != err {
		return err
	}
	defer fh.Close()
	_, err = fh.Write(append(b, '\n'))
	return err
}

func generateKey(password string, salt []byte) ([]byte, error) {
	ctx := &argon2.Context{
		Iterations:  5,
		Memory:      1 << 16,
		Parallelism: 4,
		HashLen:     32,
		Mode:        argon2.ModeArgon2i,
		Version:     argon2.Version13,
	}
	return argon2.Hash(ctx, []byte(password), salt)
}

func encryptPrivateKey(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if nil != err {
		return nil, err
	}
	if privateKeySize != len(plaintext) {
		return nil, fault.ErrInvalidKeyLength
	}

	ciphertext := make([]byte, aes.BlockSize+privateKeySize)
	iv := ciphertext[:aes.BlockSize]
	if _, err := io.ReadFull(rand.Reader, iv); nil != err {
		return nil, err
	}
	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(ciphertext[aes.BlockSize:], plaintext)
	return ciphertext, nil
}

func decryptPrivateKey(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if nil != err {
		return nil, err
	}
	if aes.BlockSize+privateKeySize != len(ciphertext) {
		return nil, fault.ErrInvalidKeyLength
	}

	iv := ciphertext[:aes.BlockSize]
	plaintext := make([]byte, privateKeySize)
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(plaintext, ciphertext[aes.BlockSize:])
	return plaintext, nil
}
