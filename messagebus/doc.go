// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package messagebus - in-process events between the transport,
// settlement and background processes
//
// a Queue has a single consumer; a BroadcastQueue copies every message
// to each listener registered at the time it is sent.
package messagebus
