// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package messagebus_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/offlined/messagebus"
)

func TestQueue(t *testing.T) {
	bus := messagebus.New(10)

	commands := []string{messagebus.Received, messagebus.Completed, messagebus.Settled}
	for _, command := range commands {
		assert.True(t, bus.Settlement.Send(command, []byte("tx")), "send: %s", command)
	}

	queue := bus.Settlement.Chan()
	for _, command := range commands {
		received := <-queue
		assert.Equal(t, command, received.Command, "command")
		assert.Equal(t, [][]byte{[]byte("tx")}, received.Parameters, "parameters")
	}
}

func TestQueueFull(t *testing.T) {
	queue := messagebus.NewQueue(1)
	assert.True(t, queue.Send("c1"), "first")
	assert.False(t, queue.Send("c2"), "second")
}

func TestBroadcast(t *testing.T) {
	b := messagebus.NewBroadcastQueue(10)
	commands := []string{"c1", "c2", "c3"}

	// nothing listening so these messages should be dropped
	for _, command := range commands {
		b.Send("ignored:" + command)
	}

	const listeners = 5
	var counts [listeners]int
	var wg sync.WaitGroup
	queues := make([]<-chan messagebus.Message, listeners)
	for i := range queues {
		queues[i] = b.Chan(0)
	}

	for i := 0; i < listeners; i += 1 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for _, command := range commands {
				received := <-queues[n]
				if received.Command == command {
					counts[n] += 1
				}
			}
		}(i)
	}

	for _, command := range commands {
		b.Send(command)
	}
	wg.Wait()

	for i, n := range counts {
		assert.Equal(t, len(commands), n, "listener[%d]", i)
	}
}

func TestBroadcastCache(t *testing.T) {
	b := messagebus.NewBroadcastQueue(10, messagebus.Online)
	queue := b.Chan(0)

	b.Send(messagebus.Online)
	b.Send(messagebus.Online)
	b.Send(messagebus.Offline)
	b.Send(messagebus.Offline)

	expected := []string{messagebus.Online, messagebus.Offline, messagebus.Offline}
	for _, command := range expected {
		select {
		case received := <-queue:
			assert.Equal(t, command, received.Command, "command")
		case <-time.After(time.Second):
			t.Fatalf("missing: %s", command)
		}
	}
	select {
	case received := <-queue:
		t.Errorf("unexpected: %s", received.Command)
	default:
	}

	b.DropCache(messagebus.Message{Command: messagebus.Online})
	b.Send(messagebus.Online)
	assert.Equal(t, messagebus.Online, (<-queue).Command, "after drop")
}

func TestBroadcastRelease(t *testing.T) {
	b := messagebus.NewBroadcastQueue(10)
	queue := b.Chan(1)
	b.Release(queue)
	b.Send("c1")

	select {
	case received := <-queue:
		t.Errorf("unexpected: %s", received.Command)
	default:
	}
}
