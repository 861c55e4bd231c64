// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bitmark-inc/logger"
	"golang.org/x/time/rate"

	"github.com/bitmark-inc/offlined/account"
	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/packet"
)

// State - session lifecycle
type State int

// session states
const (
	Disconnected State = iota
	Connecting   State = iota
	Connected    State = iota
)

func (state State) String() string {
	switch state {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	default:
		return "*Unknown*"
	}
}

// inbound messages waiting for Receive
const incomingQueueSize = 16

// Session - the packet protocol over one Conn
type Session struct {
	log         *logger.L
	conn        Conn
	config      Config
	metrics     *Metrics
	device      account.Signer
	limiter     *rate.Limiter
	reassembler *packet.Reassembler
	nextId      uint64 // atomic
	writeLock   sync.Mutex

	sync.Mutex
	state    State
	closed   bool
	remote   *account.Account
	pending  map[uint64]chan error
	lastSeen time.Time
	onClose  []func(*Session)

	handshake chan handshakeMessage
	pong      chan uint64
	incoming  chan packet.Message

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewSession - start the reader and health loops on conn
//
// the session must complete Initiate or Respond before Send is allowed
func NewSession(conn Conn, device account.Signer, config Config, metrics *Metrics) *Session {
	config = config.normalise()
	if nil == metrics {
		metrics = NewMetrics(nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		log:         logger.New("session"),
		conn:        conn,
		config:      config,
		metrics:     metrics,
		device:      device,
		limiter:     rate.NewLimiter(rate.Limit(config.WriteRate), config.WriteBurst),
		reassembler: packet.NewReassembler(config.ReassemblyTimeout, packet.DefaultMaxPartials),
		state:       Disconnected,
		pending:     make(map[uint64]chan error),
		lastSeen:    time.Now(),
		handshake:   make(chan handshakeMessage, 1),
		pong:        make(chan uint64, 1),
		incoming:    make(chan packet.Message, incomingQueueSize),
		ctx:         ctx,
		cancel:      cancel,
	}

	s.wg.Add(2)
	go s.reader()
	go s.health()
	return s
}

// RemoteId - link level id of the remote device
func (s *Session) RemoteId() string {
	return s.conn.RemoteId()
}

// RemoteDevice - device key proven during the handshake
func (s *Session) RemoteDevice() *account.Account {
	s.Lock()
	defer s.Unlock()
	return s.remote
}

// State - current lifecycle state
func (s *Session) State() State {
	s.Lock()
	defer s.Unlock()
	return s.state
}

// LastSeen - time of the most recent inbound packet
func (s *Session) LastSeen() time.Time {
	s.Lock()
	defer s.Unlock()
	return s.lastSeen
}

// Done - closed when the session ends
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// OnClose - register a function run once the session is closed
func (s *Session) OnClose(f func(*Session)) {
	s.Lock()
	if !s.closed {
		s.onClose = append(s.onClose, f)
		s.Unlock()
		return
	}
	s.Unlock()
	f(s)
}

func (s *Session) setState(state State) {
	s.Lock()
	if !s.closed {
		s.state = state
	}
	s.Unlock()
}

func (s *Session) touch(now time.Time) {
	s.Lock()
	s.lastSeen = now
	s.Unlock()
}

func (s *Session) newMessageId() uint64 {
	return atomic.AddUint64(&s.nextId, 1)
}

// Send - deliver a message and wait for its acknowledgement
//
// cancelling ctx aborts only this send
func (s *Session) Send(ctx context.Context, m packet.Message) error {
	if !acknowledged(m.Type()) {
		return fault.ErrUnexpectedMessage
	}
	if Connected != s.State() {
		return fault.ErrNotConnected
	}

	return s.exchange(ctx, m, s.config.AckTimeout)
}

// transmit a message and wait up to timeout for the remote to
// acknowledge or reject it
func (s *Session) exchange(ctx context.Context, m packet.Message, timeout time.Duration) error {
	id := s.newMessageId()
	ack := make(chan error, 1)
	s.Lock()
	s.pending[id] = ack
	s.Unlock()
	defer func() {
		s.Lock()
		delete(s.pending, id)
		s.Unlock()
	}()

	if err := s.transmit(ctx, id, m); nil != err {
		s.log.Warnf("send: %s to: %s  error: %s", m.Type(), s.RemoteId(), err)
		return err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-ack:
		return err
	case <-timer.C:
		s.log.Warnf("send: %s to: %s  no acknowledgement", m.Type(), s.RemoteId())
		return fault.ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return fault.ErrSessionClosed
	}
}

// Receive - next inbound transfer, payment request or response
func (s *Session) Receive(ctx context.Context) (packet.Message, error) {
	select {
	case m := <-s.incoming:
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.ctx.Done():
		return nil, fault.ErrSessionClosed
	}
}

// Close - end the session and release the connection
//
// pending sends fail with ErrSessionClosed and partial messages are
// discarded
func (s *Session) Close() error {
	err := s.close()
	s.wg.Wait()
	return err
}

// for use by the session's own goroutines
func (s *Session) close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		err = s.conn.Close()

		s.Lock()
		s.closed = true
		s.state = Disconnected
		pending := s.pending
		s.pending = make(map[uint64]chan error)
		callbacks := s.onClose
		s.onClose = nil
		s.Unlock()

		for _, ack := range pending {
			select {
			case ack <- fault.ErrSessionClosed:
			default:
			}
		}
		s.reassembler.Reset()

		for _, f := range callbacks {
			f(s)
		}
		s.log.Infof("closed: %s", s.RemoteId())
	})
	return err
}

// send without waiting for an acknowledgement
func (s *Session) post(m packet.Message) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.config.AckTimeout)
	defer cancel()
	return s.transmit(ctx, s.newMessageId(), m)
}

func (s *Session) transmit(ctx context.Context, id uint64, m packet.Message) error {
	packets, err := packet.Chunk(m.Type(), id, packet.Encode(m), s.config.ChunkSize)
	if nil != err {
		return err
	}
	for _, p := range packets {
		if err := s.write(ctx, p); nil != err {
			return err
		}
	}
	return nil
}

// write one packet, retrying with exponential backoff
func (s *Session) write(ctx context.Context, p *packet.Packet) error {
	frame := p.Pack()
	backoff := s.config.RetryBackoff

	var err error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt += 1 {
		if attempt > 0 {
			s.metrics.retry()
			timer := time.NewTimer(backoff)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-s.ctx.Done():
				timer.Stop()
				return fault.ErrSessionClosed
			}
			backoff *= 2
		}

		if err = s.limiter.Wait(ctx); nil != err {
			return err
		}

		s.writeLock.Lock()
		err = s.conn.Write(ctx, frame)
		s.writeLock.Unlock()

		if nil == err {
			s.metrics.sent(p.Type)
			return nil
		}
		if nil != ctx.Err() {
			return ctx.Err()
		}
		s.log.Debugf("write: %s attempt: %d  error: %s", p.Type, attempt, err)
	}
	return fmt.Errorf("%w: %s", fault.ErrTransmissionFailed, err)
}

func (s *Session) reader() {
	defer s.wg.Done()

	for {
		frame, err := s.conn.Read(s.ctx)
		if nil != err {
			if nil == s.ctx.Err() {
				s.log.Warnf("read from: %s  error: %s", s.RemoteId(), err)
			}
			s.close()
			return
		}
		s.receive(frame, time.Now())
	}
}

func (s *Session) receive(frame []byte, now time.Time) {
	p, err := packet.Unpack(frame)
	if nil != err {
		s.metrics.drop("invalid")
		s.log.Warnf("drop packet from: %s  error: %s", s.RemoteId(), err)
		return
	}
	s.metrics.received(p.Type)
	s.touch(now)

	payload, complete, err := s.reassembler.Add(p, now)
	if nil != err {
		s.metrics.drop("inconsistent")
		s.log.Warnf("discard message: %d from: %s  error: %s", p.MessageId, s.RemoteId(), err)
		return
	}
	if !complete {
		return
	}

	m, err := packet.Decode(p.Type, payload)
	if nil != err {
		s.metrics.drop("undecodable")
		s.post(&packet.ErrorMessage{
			MessageId: p.MessageId,
			Reason:    err.Error(),
		})
		return
	}
	s.dispatch(p.MessageId, m)
}

func (s *Session) dispatch(messageId uint64, m packet.Message) {
	switch m := m.(type) {

	case *packet.AcknowledgmentMessage:
		s.resolve(m.MessageId, nil)

	case *packet.ErrorMessage:
		if !s.resolve(m.MessageId, remoteError(m.Reason)) {
			s.toHandshake(messageId, m)
		}

	case *packet.PingMessage:
		s.post(&packet.PongMessage{Nonce: m.Nonce})

	case *packet.PongMessage:
		select {
		case s.pong <- m.Nonce:
		default:
		}

	case *packet.HandshakeMessage, *packet.HandshakeReplyMessage, *packet.HandshakeConfirmMessage:
		s.toHandshake(messageId, m)

	default:
		// nothing is accepted from a device that has not proven its key
		if nil == s.RemoteDevice() {
			s.metrics.drop("unauthenticated")
			s.post(&packet.ErrorMessage{
				MessageId: messageId,
				Reason:    fault.ErrNotConnected.Error(),
			})
			return
		}
		s.post(&packet.AcknowledgmentMessage{MessageId: messageId})
		select {
		case s.incoming <- m:
		case <-s.ctx.Done():
		}
	}
}

// message types the receiver acknowledges
func acknowledged(kind packet.Type) bool {
	switch kind {
	case packet.TokenTransfer, packet.PaymentRequest, packet.PaymentResponse:
		return true
	default:
		return false
	}
}

// complete a pending send, false if none was waiting
func (s *Session) resolve(messageId uint64, err error) bool {
	s.Lock()
	ack, ok := s.pending[messageId]
	s.Unlock()
	if !ok {
		return false
	}
	select {
	case ack <- err:
	default:
	}
	return true
}

// the error a Send returns for a remote's error reason; a message the
// remote could not reassemble in time may be sent again
func remoteError(reason string) error {
	if fault.ErrReassemblyTimeout.Error() == reason {
		return fault.ErrReassemblyTimeout
	}
	return fmt.Errorf("%w: %s", fault.ErrRemoteRejected, reason)
}

// a handshake step with the id it arrived under
type handshakeMessage struct {
	id uint64
	m  packet.Message
}

func (s *Session) toHandshake(messageId uint64, m packet.Message) {
	select {
	case s.handshake <- handshakeMessage{id: messageId, m: m}:
	default:
		s.metrics.drop("handshake")
	}
}
