// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package background_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/offlined/background"
)

type ticker struct {
	ticks    int32
	args     interface{}
	finished bool
}

func (p *ticker) Run(args interface{}, shutdown <-chan struct{}) {
	p.args = args
	t := time.NewTicker(time.Millisecond)
	defer t.Stop()
loop:
	for {
		select {
		case <-shutdown:
			break loop
		case <-t.C:
			atomic.AddInt32(&p.ticks, 1)
		}
	}
	p.finished = true
}

func TestStartStop(t *testing.T) {
	p1 := &ticker{}
	p2 := &ticker{}

	processes := background.Start(background.Processes{p1, p2}, "arguments")
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&p1.ticks) > 2 && atomic.LoadInt32(&p2.ticks) > 2
	}, time.Second, 5*time.Millisecond, "processes running")
	processes.Stop()

	// Stop returns only after every Run has returned
	assert.True(t, p1.finished, "p1 finished")
	assert.True(t, p2.finished, "p2 finished")
	assert.Equal(t, "arguments", p1.args, "p1 args")
	assert.Equal(t, "arguments", p2.args, "p2 args")
}

func TestStopNil(t *testing.T) {
	var processes *background.T
	processes.Stop()
}
