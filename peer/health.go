// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import (
	"time"

	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/packet"
)

// discard stalled reassembly and ping idle sessions
func (s *Session) health() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return

		case now := <-ticker.C:
			if expired := s.reassembler.Expire(now); 0 != len(expired) {
				s.metrics.expired(len(expired))
				s.log.Warnf("from: %s  discarded %d incomplete messages", s.RemoteId(), len(expired))
				s.abandoned(expired)
			}

			if Connected != s.State() || now.Sub(s.LastSeen()) < s.config.PingInterval {
				continue
			}
			if !s.ping() {
				s.log.Warnf("no pong from: %s", s.RemoteId())
				s.close()
				return
			}
		}
	}
}

// report each discarded message to the remote as a reassembly timeout
func (s *Session) abandoned(messageIds []uint64) {
	for _, id := range messageIds {
		err := s.post(&packet.ErrorMessage{
			MessageId: id,
			Reason:    fault.ErrReassemblyTimeout.Error(),
		})
		if nil != err {
			s.log.Debugf("reassembly timeout for: %d to: %s  error: %s", id, s.RemoteId(), err)
			return
		}
	}
}

// true if the remote answered within the ping timeout
func (s *Session) ping() bool {
	// discard any late pong
	select {
	case <-s.pong:
	default:
	}

	nonce := s.newMessageId()
	if err := s.post(&packet.PingMessage{Nonce: nonce}); nil != err {
		s.log.Debugf("ping: %s  error: %s", s.RemoteId(), err)
		return false
	}

	timer := time.NewTimer(s.config.PingTimeout)
	defer timer.Stop()

	for {
		select {
		case n := <-s.pong:
			if n == nonce {
				return true
			}
		case <-timer.C:
			return false
		case <-s.ctx.Done():
			return true
		}
	}
}
