// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/bitmark-inc/offlined/account"
	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/packet"
)

// Initiate - challenge the remote to prove its device key, then prove
// ours against the challenge in its reply
//
// on failure the session is closed, there is no retry
func (s *Session) Initiate(ctx context.Context) error {
	err := s.initiate(ctx)
	s.metrics.handshake("initiator", err)
	if nil != err {
		s.log.Warnf("handshake with: %s  error: %s", s.RemoteId(), err)
		s.Close()
		return err
	}
	s.log.Infof("connected to: %s  device: %s", s.RemoteId(), s.RemoteDevice())
	return nil
}

func (s *Session) initiate(ctx context.Context) error {
	s.setState(Connecting)

	challenge, err := newChallenge()
	if nil != err {
		return err
	}

	hello := &packet.HandshakeMessage{
		Challenge: challenge,
		Version:   s.config.Version,
		Device:    s.device.Account(),
	}
	if err := s.post(hello); nil != err {
		return fmt.Errorf("%w: %s", fault.ErrHandshakeFailed, err)
	}

	m, err := s.awaitHandshake(ctx)
	if nil != err {
		return err
	}

	switch reply := m.(type) {
	case *packet.HandshakeReplyMessage:
		if !s.config.supports(reply.Version) {
			return fault.ErrUnsupportedVersion
		}
		if nil == reply.Device {
			return fault.ErrHandshakeFailed
		}
		err := reply.Device.CheckSignature(packet.HandshakePayload(challenge, reply.Version), reply.Signature)
		if nil != err {
			return fault.ErrHandshakeFailed
		}

		signature, err := s.device.Sign(packet.HandshakePayload(reply.Challenge, s.config.Version))
		if nil != err {
			return fault.ErrSigningFailed
		}
		s.authenticated(reply.Device)

		// connected only once the responder has checked the signature
		confirm := &packet.HandshakeConfirmMessage{Signature: signature}
		if err := s.exchange(ctx, confirm, s.config.HandshakeTimeout); nil != err {
			return fmt.Errorf("%w: %s", fault.ErrHandshakeFailed, err)
		}
		s.connected()
		return nil

	case *packet.ErrorMessage:
		return fmt.Errorf("%w: %s", fault.ErrHandshakeFailed, reply.Reason)

	default:
		return fault.ErrHandshakeFailed
	}
}

// Respond - answer the initiator's challenge and require it to
// answer one in return
//
// on failure the session is closed
func (s *Session) Respond(ctx context.Context) error {
	err := s.respond(ctx)
	s.metrics.handshake("responder", err)
	if nil != err {
		s.log.Warnf("handshake from: %s  error: %s", s.RemoteId(), err)
		s.Close()
		return err
	}
	s.log.Infof("accepted: %s  device: %s", s.RemoteId(), s.RemoteDevice())
	return nil
}

func (s *Session) respond(ctx context.Context) error {
	s.setState(Connecting)

	m, err := s.awaitHandshake(ctx)
	if nil != err {
		return err
	}

	hello, ok := m.(*packet.HandshakeMessage)
	if !ok || nil == hello.Device || packet.ChallengeSize != len(hello.Challenge) {
		s.reject(0, fault.ErrHandshakeFailed)
		return fault.ErrHandshakeFailed
	}
	if !s.config.supports(hello.Version) {
		s.reject(0, fault.ErrUnsupportedVersion)
		return fault.ErrUnsupportedVersion
	}

	signature, err := s.device.Sign(packet.HandshakePayload(hello.Challenge, s.config.Version))
	if nil != err {
		return fault.ErrSigningFailed
	}
	challenge, err := newChallenge()
	if nil != err {
		return err
	}
	reply := &packet.HandshakeReplyMessage{
		Version:   s.config.Version,
		Device:    s.device.Account(),
		Signature: signature,
		Challenge: challenge,
	}
	if err := s.post(reply); nil != err {
		return fmt.Errorf("%w: %s", fault.ErrHandshakeFailed, err)
	}

	id, m, err := s.awaitHandshakeStep(ctx)
	if nil != err {
		return err
	}
	confirm, ok := m.(*packet.HandshakeConfirmMessage)
	if !ok {
		s.reject(id, fault.ErrHandshakeFailed)
		return fault.ErrHandshakeFailed
	}
	err = hello.Device.CheckSignature(packet.HandshakePayload(challenge, hello.Version), confirm.Signature)
	if nil != err {
		s.log.Warnf("handshake from: %s  claimed device: %s  bad signature", s.RemoteId(), hello.Device)
		s.reject(id, fault.ErrHandshakeFailed)
		return fault.ErrHandshakeFailed
	}

	s.authenticated(hello.Device)
	s.connected()
	if err := s.post(&packet.AcknowledgmentMessage{MessageId: id}); nil != err {
		return fmt.Errorf("%w: %s", fault.ErrHandshakeFailed, err)
	}
	return nil
}

func newChallenge() ([]byte, error) {
	challenge := make([]byte, packet.ChallengeSize)
	if _, err := rand.Read(challenge); nil != err {
		return nil, fault.ErrHandshakeFailed
	}
	return challenge, nil
}

func (s *Session) awaitHandshake(ctx context.Context) (packet.Message, error) {
	_, m, err := s.awaitHandshakeStep(ctx)
	return m, err
}

// next handshake message and the id it arrived under
func (s *Session) awaitHandshakeStep(ctx context.Context) (uint64, packet.Message, error) {
	timer := time.NewTimer(s.config.HandshakeTimeout)
	defer timer.Stop()

	select {
	case h := <-s.handshake:
		return h.id, h.m, nil
	case <-timer.C:
		return 0, nil, fmt.Errorf("%w: %s", fault.ErrHandshakeFailed, fault.ErrTimeout)
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	case <-s.ctx.Done():
		select {
		case h := <-s.handshake:
			return h.id, h.m, nil
		default:
		}
		return 0, nil, fault.ErrSessionClosed
	}
}

func (s *Session) reject(messageId uint64, reason error) {
	s.post(&packet.ErrorMessage{MessageId: messageId, Reason: reason.Error()})
}

// remote device key is proven
func (s *Session) authenticated(remote *account.Account) {
	s.Lock()
	if !s.closed {
		s.remote = remote
	}
	s.Unlock()
}

func (s *Session) connected() {
	s.setState(Connected)
}
