// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package packet - framing of messages exchanged between devices
//
// wire format of one packet:
//
//   varint(type) ++ varint(message id) ++ varint(sequence) ++
//   varint(total) ++ varint(length) ++ payload ++ checksum
//
// checksum is CRC-64/ECMA of all preceding bytes as 8 bytes big
// endian.  A message is encoded then split into chunks that share a
// message id; the receiver reassembles them in sequence order.
package packet
