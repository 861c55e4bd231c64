// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package messagebus

import (
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// internal constants
const (
	defaultQueueSize = 1000
	cacheWindow      = 5 * time.Second
)

// event commands
const (
	Online    = "online"
	Offline   = "offline"
	Received  = "received"
	Completed = "completed"
	Settled   = "settled"
	Drain     = "drain"
)

// Message - a command and its parameters
type Message struct {
	Command    string
	Parameters [][]byte
}

// Bus - the queues of one process
//
// Settlement carries drain requests to the settlement process,
// Broadcast carries connectivity and transaction events
type Bus struct {
	Settlement *Queue
	Broadcast  *BroadcastQueue
}

// New - a bus whose queues buffer size messages
func New(size int) *Bus {
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Bus{
		Settlement: NewQueue(size),
		Broadcast:  NewBroadcastQueue(size, Online, Offline),
	}
}

// Queue - single consumer
type Queue struct {
	c chan Message
}

// NewQueue - queue buffering size messages
func NewQueue(size int) *Queue {
	return &Queue{
		c: make(chan Message, size),
	}
}

// Send - queue a message, false if the queue is full
func (queue *Queue) Send(command string, parameters ...[]byte) bool {
	select {
	case queue.c <- Message{Command: command, Parameters: parameters}:
		return true
	default:
		return false
	}
}

// Chan - channel to read from
func (queue *Queue) Chan() <-chan Message {
	return queue.c
}

// BroadcastQueue - every listener receives each message
//
// a repeat of a cacheable message within the cache window is dropped
type BroadcastQueue struct {
	sync.RWMutex
	listeners []chan Message
	size      int
	cacheable map[string]struct{}
	cache     *cache.Cache
}

// NewBroadcastQueue - listeners default to size buffers, repeats of
// the cacheable commands are suppressed
func NewBroadcastQueue(size int, cacheable ...string) *BroadcastQueue {
	b := &BroadcastQueue{
		size:      size,
		cacheable: make(map[string]struct{}, len(cacheable)),
		cache:     cache.New(cacheWindow, 2*cacheWindow),
	}
	for _, command := range cacheable {
		b.cacheable[command] = struct{}{}
	}
	return b
}

// Chan - register a listener, size 0 uses the queue default
func (b *BroadcastQueue) Chan(size int) <-chan Message {
	if size <= 0 {
		size = b.size
	}
	c := make(chan Message, size)
	b.Lock()
	b.listeners = append(b.listeners, c)
	b.Unlock()
	return c
}

// Release - stop delivering to a listener
func (b *BroadcastQueue) Release(listener <-chan Message) {
	b.Lock()
	defer b.Unlock()
	for i, c := range b.listeners {
		if (<-chan Message)(c) == listener {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			return
		}
	}
}

// Send - deliver to every current listener, a full listener misses
// the message
func (b *BroadcastQueue) Send(command string, parameters ...[]byte) {
	m := Message{
		Command:    command,
		Parameters: parameters,
	}

	if _, ok := b.cacheable[command]; ok {
		key := cacheKey(m)
		if _, found := b.cache.Get(key); found {
			return
		}
		b.cache.SetDefault(key, struct{}{})
	}

	b.RLock()
	defer b.RUnlock()
	for _, c := range b.listeners {
		select {
		case c <- m:
		default:
		}
	}
}

// DropCache - allow an identical message to be sent again at once
func (b *BroadcastQueue) DropCache(m Message) {
	b.cache.Delete(cacheKey(m))
}

func cacheKey(m Message) string {
	var s strings.Builder
	s.WriteString(m.Command)
	for _, p := range m.Parameters {
		s.WriteByte(0)
		s.Write(p)
	}
	return s.String()
}
