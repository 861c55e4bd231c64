// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package packet

import (
	"sync"
	"time"

	"github.com/bitmark-inc/offlined/fault"
)

// DefaultReassemblyTimeout - partial messages older than this are discarded
const DefaultReassemblyTimeout = 30 * time.Second

// DefaultMaxPartials - incomplete messages buffered per peer
const DefaultMaxPartials = 32

type partial struct {
	kind    Type
	total   uint64
	chunks  map[uint64][]byte
	started time.Time
}

// Reassembler - buffers chunks of one peer's messages
type Reassembler struct {
	sync.Mutex
	timeout  time.Duration
	limit    int
	partials map[uint64]*partial
	evicted  []uint64
}

// NewReassembler - create an empty reassembler holding at most limit
// incomplete messages
func NewReassembler(timeout time.Duration, limit int) *Reassembler {
	if timeout <= 0 {
		timeout = DefaultReassemblyTimeout
	}
	if limit <= 0 {
		limit = DefaultMaxPartials
	}
	return &Reassembler{
		timeout:  timeout,
		limit:    limit,
		partials: make(map[uint64]*partial),
	}
}

// Add - buffer a chunk, returns the full payload once every chunk of
// its message has arrived
//
// duplicate chunks are ignored.  A chunk disagreeing with earlier
// chunks on type or total discards the message.  Starting a message
// when the limit is reached discards the oldest incomplete one.
func (r *Reassembler) Add(p *Packet, now time.Time) ([]byte, bool, error) {
	if 0 == p.TotalPackets || p.SequenceNumber >= p.TotalPackets {
		return nil, false, fault.ErrInvalidPacket
	}

	r.Lock()
	defer r.Unlock()

	buffer, ok := r.partials[p.MessageId]
	if !ok {
		if len(r.partials) >= r.limit {
			r.evictOldest()
		}
		buffer = &partial{
			kind:    p.Type,
			total:   p.TotalPackets,
			chunks:  make(map[uint64][]byte, p.TotalPackets),
			started: now,
		}
		r.partials[p.MessageId] = buffer
	}
	if buffer.kind != p.Type || buffer.total != p.TotalPackets {
		delete(r.partials, p.MessageId)
		return nil, false, fault.ErrInvalidPacket
	}

	if _, seen := buffer.chunks[p.SequenceNumber]; !seen {
		buffer.chunks[p.SequenceNumber] = p.Payload
	}
	if uint64(len(buffer.chunks)) < buffer.total {
		return nil, false, nil
	}

	size := 0
	for _, c := range buffer.chunks {
		size += len(c)
	}
	payload := make([]byte, 0, size)
	for i := uint64(0); i < buffer.total; i += 1 {
		payload = append(payload, buffer.chunks[i]...)
	}
	delete(r.partials, p.MessageId)
	return payload, true, nil
}

// must hold the lock
func (r *Reassembler) evictOldest() {
	oldest := uint64(0)
	var started time.Time
	found := false
	for id, buffer := range r.partials {
		if !found || buffer.started.Before(started) || (buffer.started.Equal(started) && id < oldest) {
			oldest = id
			started = buffer.started
			found = true
		}
	}
	if found {
		delete(r.partials, oldest)
		r.evicted = append(r.evicted, oldest)
	}
}

// Expire - discard messages started before now - timeout
//
// the result also holds messages evicted by Add since the last call
func (r *Reassembler) Expire(now time.Time) []uint64 {
	r.Lock()
	defer r.Unlock()

	expired := r.evicted
	r.evicted = nil
	if nil == expired {
		expired = make([]uint64, 0)
	}
	for id, buffer := range r.partials {
		if now.Sub(buffer.started) >= r.timeout {
			expired = append(expired, id)
			delete(r.partials, id)
		}
	}
	return expired
}

// Reset - discard everything, used on disconnect
func (r *Reassembler) Reset() {
	r.Lock()
	r.partials = make(map[uint64]*partial)
	r.evicted = nil
	r.Unlock()
}

// Pending - number of incomplete messages
func (r *Reassembler) Pending() int {
	r.Lock()
	defer r.Unlock()
	return len(r.partials)
}
