// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/offlined/account"
	"github.com/bitmark-inc/offlined/fault"
)

// discovered ids buffered between the link and the manager
const discoveryQueueSize = 16

// Manager - registry of live sessions over one Link
type Manager struct {
	log     *logger.L
	link    Link
	device  account.Signer
	config  Config
	metrics *Metrics

	sync.RWMutex
	sessions map[string]*Session
}

// NewManager - sessions over link authenticated with device
func NewManager(link Link, device account.Signer, config Config, metrics *Metrics) *Manager {
	if nil == metrics {
		metrics = NewMetrics(nil)
	}
	return &Manager{
		log:      logger.New("peer"),
		link:     link,
		device:   device,
		config:   config.normalise(),
		metrics:  metrics,
		sessions: make(map[string]*Session),
	}
}

// Discover - ids of devices seen within timeout, each once, sorted
func (m *Manager) Discover(ctx context.Context, timeout time.Duration) ([]string, error) {
	discoverCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	found := make(chan string, discoveryQueueSize)
	result := make(chan error, 1)
	go func() {
		result <- m.link.Discover(discoverCtx, found)
	}()

	seen := make(map[string]struct{})
	ids := make([]string, 0, 4)
	add := func(id string) {
		if _, ok := seen[id]; ok || "" == id {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
		m.log.Debugf("discovered: %s", id)
	}

	for {
		select {
		case id := <-found:
			add(id)

		case err := <-result:
		drain:
			for {
				select {
				case id := <-found:
					add(id)
				default:
					break drain
				}
			}
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				err = nil
			}
			if nil == err {
				err = ctx.Err()
			}
			sort.Strings(ids)
			return ids, err
		}
	}
}

// Connect - open and authenticate a session to peerId
//
// an existing session is returned as is
func (m *Manager) Connect(ctx context.Context, peerId string) (*Session, error) {
	if s, err := m.Session(peerId); nil == err {
		return s, nil
	}

	conn, err := m.link.Connect(ctx, peerId)
	if nil != err {
		m.log.Warnf("connect: %s  error: %s", peerId, err)
		return nil, fmt.Errorf("%w: %s", fault.ErrConnectionFailed, err)
	}

	s := NewSession(conn, m.device, m.config, m.metrics)
	if err := s.Initiate(ctx); nil != err {
		return nil, err
	}
	m.register(s)
	return s, nil
}

// Accept - wait for an inbound connection and answer its handshake
func (m *Manager) Accept(ctx context.Context) (*Session, error) {
	conn, err := m.link.Accept(ctx)
	if nil != err {
		return nil, err
	}

	s := NewSession(conn, m.device, m.config, m.metrics)
	if err := s.Respond(ctx); nil != err {
		return nil, err
	}
	m.register(s)
	return s, nil
}

// Session - the live session to peerId
func (m *Manager) Session(peerId string) (*Session, error) {
	m.RLock()
	defer m.RUnlock()
	s, ok := m.sessions[peerId]
	if !ok {
		return nil, fault.ErrNotFoundPeer
	}
	return s, nil
}

// Sessions - ids of all live sessions, sorted
func (m *Manager) Sessions() []string {
	m.RLock()
	defer m.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Disconnect - close the session to peerId
func (m *Manager) Disconnect(peerId string) error {
	s, err := m.Session(peerId)
	if nil != err {
		return err
	}
	return s.Close()
}

// Close - close every session
func (m *Manager) Close() {
	m.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.RUnlock()

	for _, s := range sessions {
		s.Close()
	}
}

// a newer session to the same peer replaces the old one
func (m *Manager) register(s *Session) {
	id := s.RemoteId()

	m.Lock()
	old := m.sessions[id]
	m.sessions[id] = s
	m.metrics.sessions.Set(float64(len(m.sessions)))
	m.Unlock()

	s.OnClose(m.deregister)

	if nil != old && old != s {
		old.Close()
	}
}

func (m *Manager) deregister(s *Session) {
	m.Lock()
	defer m.Unlock()
	if current, ok := m.sessions[s.RemoteId()]; ok && current == s {
		delete(m.sessions, s.RemoteId())
		m.metrics.sessions.Set(float64(len(m.sessions)))
		m.log.Debugf("removed session: %s", s.RemoteId())
	}
}
