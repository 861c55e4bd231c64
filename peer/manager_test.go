// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/packet"
	"github.com/bitmark-inc/offlined/peer"
	"github.com/bitmark-inc/offlined/peer/mocks"
	"github.com/bitmark-inc/offlined/peer/peertest"
)

func TestManagerDiscover(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	link := mocks.NewMockLink(ctrl)
	link.EXPECT().Discover(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, found chan<- string) error {
		for _, id := range []string{"carol", "bob", "carol", "alice"} {
			found <- id
		}
		<-ctx.Done()
		return ctx.Err()
	})

	m := peer.NewManager(link, newKey(t), testConfig(), nil)
	start := time.Now()
	ids, err := m.Discover(context.Background(), 100*time.Millisecond)
	require.Nil(t, err, "discover")
	assert.Equal(t, []string{"alice", "bob", "carol"}, ids, "unique and sorted")
	assert.True(t, time.Since(start) < time.Second, "bounded by timeout")
}

func TestManagerDiscoverCancelled(t *testing.T) {
	network := peertest.NewNetwork()
	network.Link("bob")
	m := peer.NewManager(network.Link("alice"), newKey(t), testConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	ids, err := m.Discover(ctx, time.Minute)
	assert.Equal(t, context.Canceled, err, "discover")
	assert.Equal(t, []string{"bob"}, ids, "ids found before cancel")
}

func TestManagerConnectFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	link := mocks.NewMockLink(ctrl)
	link.EXPECT().Connect(gomock.Any(), "bob").Return(nil, errors.New("out of range"))

	m := peer.NewManager(link, newKey(t), testConfig(), nil)
	_, err := m.Connect(context.Background(), "bob")
	assert.True(t, errors.Is(err, fault.ErrConnectionFailed), "connect: %v", err)
	assert.Equal(t, 0, len(m.Sessions()), "nothing registered")
}

func TestManagerHandshakeFailureNotRegistered(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	conn := scriptedConn(t, ctrl, func(uint64, packet.Message) []packet.Message {
		return []packet.Message{&packet.ErrorMessage{Reason: "busy"}}
	})
	link := mocks.NewMockLink(ctrl)
	link.EXPECT().Connect(gomock.Any(), "bob").Return(conn, nil)

	m := peer.NewManager(link, newKey(t), testConfig(), nil)
	_, err := m.Connect(context.Background(), "bob")
	assert.True(t, errors.Is(err, fault.ErrHandshakeFailed), "connect: %v", err)
	_, err = m.Session("bob")
	assert.Equal(t, fault.ErrNotFoundPeer, err, "session")
}

func TestManagerConnectAccept(t *testing.T) {
	network := peertest.NewNetwork()
	registry := prometheus.NewRegistry()
	alice := peer.NewManager(network.Link("alice"), newKey(t), testConfig(), peer.NewMetrics(registry))
	bob := peer.NewManager(network.Link("bob"), newKey(t), testConfig(), nil)
	defer alice.Close()
	defer bob.Close()

	accepted := make(chan *peer.Session, 1)
	go func() {
		s, err := bob.Accept(context.Background())
		if nil == err {
			accepted <- s
		}
		close(accepted)
	}()

	s, err := alice.Connect(context.Background(), "bob")
	require.Nil(t, err, "connect")
	assert.Equal(t, "bob", s.RemoteId(), "remote id")

	bobSession, ok := <-accepted
	require.True(t, ok, "accepted")
	assert.Equal(t, "alice", bobSession.RemoteId(), "remote id")

	again, err := alice.Connect(context.Background(), "bob")
	require.Nil(t, err, "connect again")
	assert.True(t, s == again, "existing session reused")

	assert.Equal(t, []string{"bob"}, alice.Sessions(), "alice sessions")
	assert.Equal(t, []string{"alice"}, bob.Sessions(), "bob sessions")
	assert.Equal(t, 1.0, metricValue(t, registry, "offline_peer_sessions"), "session gauge")

	require.Nil(t, s.Send(context.Background(), &packet.PaymentRequestMessage{RequestId: "1", ReceiverId: "bob", Amount: 1}), "send")

	require.Nil(t, alice.Disconnect("bob"), "disconnect")
	_, err = alice.Session("bob")
	assert.Equal(t, fault.ErrNotFoundPeer, err, "removed")
	assert.Equal(t, fault.ErrNotFoundPeer, alice.Disconnect("bob"), "second disconnect")

	assert.Eventually(t, func() bool {
		return 0 == len(bob.Sessions())
	}, time.Second, 10*time.Millisecond, "bob sees the disconnect")
}
