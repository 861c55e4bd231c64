// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package packet

import (
	"encoding/binary"
	"hash/crc64"

	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/util"
)

// Type - kind of message carried
type Type byte

// packet types
const (
	Handshake        = Type(1)
	HandshakeReply   = Type(2)
	TokenTransfer    = Type(3)
	PaymentRequest   = Type(4)
	PaymentResponse  = Type(5)
	Acknowledgment   = Type(6)
	Error            = Type(7)
	Ping             = Type(8)
	Pong             = Type(9)
	HandshakeConfirm = Type(10)
	typeLimit        = Type(11)
)

func (t Type) String() string {
	switch t {
	case Handshake:
		return "handshake"
	case HandshakeReply:
		return "handshakeReply"
	case TokenTransfer:
		return "tokenTransfer"
	case PaymentRequest:
		return "paymentRequest"
	case PaymentResponse:
		return "paymentResponse"
	case Acknowledgment:
		return "acknowledgment"
	case Error:
		return "error"
	case Ping:
		return "ping"
	case Pong:
		return "pong"
	case HandshakeConfirm:
		return "handshakeConfirm"
	default:
		return "unknown"
	}
}

// IsValid - a known packet type
func (t Type) IsValid() bool {
	return t > 0 && t < typeLimit
}

const checksumSize = 8

// MaxPacketSize - bound on a single encoded packet
const MaxPacketSize = 64 * 1024

var crcTable = crc64.MakeTable(crc64.ECMA)

// Packet - one chunk of a message
type Packet struct {
	Type           Type
	MessageId      uint64
	SequenceNumber uint64
	TotalPackets   uint64
	Payload        []byte
}

// Pack - encode with trailing checksum
func (p *Packet) Pack() []byte {
	buffer := util.AppendUint64(nil, uint64(p.Type))
	buffer = util.AppendUint64(buffer, p.MessageId)
	buffer = util.AppendUint64(buffer, p.SequenceNumber)
	buffer = util.AppendUint64(buffer, p.TotalPackets)
	buffer = util.AppendBytes(buffer, p.Payload)

	checksum := make([]byte, checksumSize)
	binary.BigEndian.PutUint64(checksum, crc64.Checksum(buffer, crcTable))
	return append(buffer, checksum...)
}

// Unpack - decode and verify a packet
func Unpack(buffer []byte) (*Packet, error) {
	if len(buffer) <= checksumSize {
		return nil, fault.ErrInvalidPacket
	}
	if len(buffer) > MaxPacketSize {
		return nil, fault.ErrMessageTooLarge
	}

	n := len(buffer) - checksumSize
	expected := binary.BigEndian.Uint64(buffer[n:])
	if crc64.Checksum(buffer[:n], crcTable) != expected {
		return nil, fault.ErrInvalidChecksum
	}

	u := util.NewUnpacker(buffer[:n])
	kind, err := u.Uint64()
	if nil != err {
		return nil, err
	}
	p := &Packet{
		Type: Type(kind),
	}
	if kind >= uint64(typeLimit) || !p.Type.IsValid() {
		return nil, fault.ErrInvalidPacketType
	}
	if p.MessageId, err = u.Uint64(); nil != err {
		return nil, err
	}
	if p.SequenceNumber, err = u.Uint64(); nil != err {
		return nil, err
	}
	if p.TotalPackets, err = u.Uint64(); nil != err {
		return nil, err
	}
	if p.Payload, err = u.Bytes(); nil != err {
		return nil, err
	}
	if 0 != u.Remaining() {
		return nil, fault.ErrInvalidPacket
	}
	if 0 == p.TotalPackets || p.SequenceNumber >= p.TotalPackets || p.TotalPackets > MaxChunks {
		return nil, fault.ErrInvalidPacket
	}
	return p, nil
}
