// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package packet

import (
	"github.com/bitmark-inc/offlined/fault"
)

// chunking limits
const (
	DefaultChunkSize = 512
	MaxChunks        = 4096
)

// Chunk - split a payload into packets of at most chunkSize bytes
//
// an empty payload still produces one packet
func Chunk(kind Type, messageId uint64, payload []byte, chunkSize int) ([]*Packet, error) {
	if !kind.IsValid() {
		return nil, fault.ErrInvalidPacketType
	}
	if chunkSize <= 0 {
		return nil, fault.ErrInvalidCount
	}

	total := (len(payload) + chunkSize - 1) / chunkSize
	if 0 == total {
		total = 1
	}
	if total > MaxChunks {
		return nil, fault.ErrMessageTooLarge
	}

	packets := make([]*Packet, total)
	for i := 0; i < total; i += 1 {
		start := i * chunkSize
		end := start + chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		chunk := make([]byte, end-start)
		copy(chunk, payload[start:end])
		packets[i] = &Packet{
			Type:           kind,
			MessageId:      messageId,
			SequenceNumber: uint64(i),
			TotalPackets:   uint64(total),
			Payload:        chunk,
		}
	}
	return packets, nil
}
