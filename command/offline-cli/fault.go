// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"github.com/bitmark-inc/offlined/fault"
)

// common errors - keep in alphabetic order
const (
	ErrFileNameIsRequired    = fault.InvalidError("file name is required")
	ErrInvalidPasswordLength = fault.InvalidError("invalid password length")
	ErrIssuerIsRequired      = fault.InvalidError("issuer is required")
	ErrPasswordMismatch      = fault.InvalidError("password mismatch")
)
