// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package zmqutil

import (
	"strings"
	"time"

	zmq "github.com/pebbe/zmq4"

	"github.com/bitmark-inc/offlined/fault"
)

const (
	heartbeatInterval = 15 * time.Second
	heartbeatTimeout  = 60 * time.Second
	heartbeatTTL      = 120 * time.Second
)

// ZAP domain of CURVE server sockets
const zapDomain = "offlined"

// canonical tcp endpoint and whether it is IPv6
func canonicalAddress(address string) (string, bool) {
	address = strings.TrimPrefix(address, "tcp://")
	v6 := strings.HasPrefix(address, "[")
	return "tcp://" + address, v6
}

// create the ROUTER socket that accepts inbound sessions
func newServerSocket(privateKey []byte, v6 bool) (*zmq.Socket, error) {
	socket, err := zmq.NewSocket(zmq.ROUTER)
	if nil != err {
		return nil, err
	}

	if nil != privateKey {
		if err = StartAuthentication(); nil != err {
			goto failure
		}

		// allow any client to connect
		zmq.AuthCurveAdd(zapDomain, zmq.CURVE_ALLOW_ANY)

		if err = socket.SetCurveServer(1); nil != err {
			goto failure
		}
		if err = socket.SetCurveSecretkey(string(privateKey)); nil != err {
			goto failure
		}
		if err = socket.SetZapDomain(zapDomain); nil != err {
			goto failure
		}
	}

	if err = socket.SetIpv6(v6); nil != err {
		goto failure
	}
	if err = socket.SetLinger(0); nil != err {
		goto failure
	}

	// heartbeat
	if err = socket.SetHeartbeatIvl(heartbeatInterval); nil != err {
		goto failure
	}
	if err = socket.SetHeartbeatTimeout(heartbeatTimeout); nil != err {
		goto failure
	}
	if err = socket.SetHeartbeatTtl(heartbeatTTL); nil != err {
		goto failure
	}
	return socket, nil

failure:
	socket.Close()
	return nil, err
}

// create a DEALER socket identified as the local device
func newClientSocket(identity string, privateKey []byte, serverPublicKey []byte, v6 bool) (*zmq.Socket, error) {
	if nil != privateKey && publicLength != len(serverPublicKey) {
		return nil, fault.ErrInvalidPublicKeyFile
	}

	var publicKey []byte
	socket, err := zmq.NewSocket(zmq.DEALER)
	if nil != err {
		return nil, err
	}

	if nil != privateKey {
		if publicKey, err = PublicKeyOf(privateKey); nil != err {
			goto failure
		}
		if err = socket.SetCurveServer(0); nil != err {
			goto failure
		}
		if err = socket.SetCurvePublickey(string(publicKey)); nil != err {
			goto failure
		}
		if err = socket.SetCurveSecretkey(string(privateKey)); nil != err {
			goto failure
		}

		// destination identity is its public key
		if err = socket.SetCurveServerkey(string(serverPublicKey)); nil != err {
			goto failure
		}
	}

	if err = socket.SetIdentity(identity); nil != err {
		goto failure
	}
	if err = socket.SetIpv6(v6); nil != err {
		goto failure
	}
	if err = socket.SetLinger(0); nil != err {
		goto failure
	}
	if err = socket.SetHeartbeatIvl(heartbeatInterval); nil != err {
		goto failure
	}
	if err = socket.SetHeartbeatTimeout(heartbeatTimeout); nil != err {
		goto failure
	}
	if err = socket.SetHeartbeatTtl(heartbeatTTL); nil != err {
		goto failure
	}
	return socket, nil

failure:
	socket.Close()
	return nil, err
}
