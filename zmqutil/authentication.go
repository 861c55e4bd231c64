// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package zmqutil

import (
	"sync"

	zmq "github.com/pebbe/zmq4"
)

// to ensure only one auth start
var oneTimeAuthStart sync.Once
var authStartError error

// StartAuthentication - initialise the ZMQ security subsystem
//
// only needed when CURVE keys are in use
func StartAuthentication() error {
	oneTimeAuthStart.Do(func() {
		zmq.AuthSetVerbose(false)
		authStartError = zmq.AuthStart()
	})
	return authStartError
}
