// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fault

import (
	"errors"
)

// GenericError - error base
type GenericError string

// to allow for different classes of errors
type ExistsError GenericError
type InvalidError GenericError
type NotFoundError GenericError
type ProcessError GenericError
type TransportError GenericError
type SettlementError GenericError

// common errors - keep in alphabetic order
var (
	ErrAlreadyRedeemed         = ExistsError("token already redeemed")
	ErrAlreadySpentToken       = InvalidError("token already spent")
	ErrAmountExceedsToken      = InvalidError("amount exceeds token value")
	ErrChecksumMismatch        = InvalidError("checksum mismatch")
	ErrConnectionFailed        = TransportError("connection failed")
	ErrDatabaseIsNotSet        = ProcessError("database is not set")
	ErrDivisionExceedsToken    = InvalidError("divisions exceed token value")
	ErrDoubleSpendDetected     = InvalidError("double spend detected")
	ErrDuplicateToken          = ExistsError("duplicate token in request")
	ErrExpiredToken            = InvalidError("token expired")
	ErrHandshakeFailed         = TransportError("handshake failed")
	ErrInsufficientBalance     = InvalidError("insufficient balance")
	ErrInvalidAmount           = InvalidError("invalid amount")
	ErrInvalidChecksum         = InvalidError("invalid packet checksum")
	ErrInvalidCount            = InvalidError("invalid count")
	ErrInvalidDivision         = InvalidError("invalid division record")
	ErrInvalidKeyLength        = InvalidError("invalid key length")
	ErrInvalidKeyType          = InvalidError("invalid key type")
	ErrInvalidPacket           = InvalidError("invalid packet")
	ErrInvalidPrivateKeyFile   = InvalidError("invalid private key file")
	ErrInvalidPublicKeyFile    = InvalidError("invalid public key file")
	ErrInvalidPacketType       = InvalidError("invalid packet type")
	ErrInvalidSignature        = InvalidError("invalid signature")
	ErrInvalidStructPointer    = InvalidError("invalid struct pointer")
	ErrInvalidStateChange      = InvalidError("invalid transaction state change")
	ErrInvalidTransaction      = InvalidError("invalid transaction")
	ErrKeyFileAlreadyExists    = ExistsError("key file already exists")
	ErrMessageTooLarge         = InvalidError("message too large")
	ErrMissingParameters       = InvalidError("missing parameters")
	ErrNotConnected            = TransportError("not connected")
	ErrNotFoundPeer            = NotFoundError("peer not found")
	ErrNotFoundToken           = NotFoundError("token not found")
	ErrNotFoundTransaction     = NotFoundError("transaction not found")
	ErrNotPublicKey            = InvalidError("not a public key")
	ErrNotRetryable            = InvalidError("transaction failure is not retryable")
	ErrReassemblyTimeout       = TransportError("reassembly timeout")
	ErrRemoteRejected          = InvalidError("peer rejected transaction")
	ErrSessionClosed           = TransportError("session closed")
	ErrSettlementUnavailable   = SettlementError("settlement unavailable")
	ErrSigningFailed           = ProcessError("signing failed")
	ErrTimeout                 = TransportError("timeout")
	ErrTokenDivided            = InvalidError("token has been divided")
	ErrTokenInUse              = InvalidError("token is reserved by another transaction")
	ErrTransmissionFailed      = TransportError("transmission failed")
	ErrUnexpectedMessage       = InvalidError("unexpected message")
	ErrUnsupportedVersion      = InvalidError("unsupported protocol version")
	ErrValidation              = InvalidError("validation failed")
	ErrWrongPassword           = InvalidError("wrong password")
	ErrWrongSender             = InvalidError("transaction sender does not match signer")
	ErrZeroAmount              = InvalidError("amount must be greater than zero")
)

// the error interface base method
func (e GenericError) Error() string { return string(e) }

// the error interface methods
func (e ExistsError) Error() string     { return string(e) }
func (e InvalidError) Error() string    { return string(e) }
func (e NotFoundError) Error() string   { return string(e) }
func (e ProcessError) Error() string    { return string(e) }
func (e TransportError) Error() string  { return string(e) }
func (e SettlementError) Error() string { return string(e) }

// determine the class of an error, wrapped errors are unwrapped
func IsErrExists(e error) bool     { var t ExistsError; return errors.As(e, &t) }
func IsErrInvalid(e error) bool    { var t InvalidError; return errors.As(e, &t) }
func IsErrNotFound(e error) bool   { var t NotFoundError; return errors.As(e, &t) }
func IsErrProcess(e error) bool    { var t ProcessError; return errors.As(e, &t) }
func IsErrTransport(e error) bool  { var t TransportError; return errors.As(e, &t) }
func IsErrSettlement(e error) bool { var t SettlementError; return errors.As(e, &t) }

// IsRetryable - transport and settlement failures may be retried,
// validation and signature failures are terminal
func IsRetryable(e error) bool {
	if nil == e {
		return false
	}
	return IsErrTransport(e) || IsErrSettlement(e)
}
