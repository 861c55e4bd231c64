// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"time"

	"github.com/bitmark-inc/logger"
)

const (
	acceptBackoff   = time.Second
	connectInterval = 30 * time.Second
	connectTimeout  = 10 * time.Second
)

// answers inbound sessions and keeps sessions to the configured peers
type peering struct {
	log  *logger.L
	node *node
}

func newPeering(n *node) *peering {
	return &peering{
		log:  logger.New("peering"),
		node: n,
	}
}

// Run - background.Process
func (p *peering) Run(args interface{}, shutdown <-chan struct{}) {
	p.log.Info("starting…")

	ctx, cancel := context.WithCancel(context.Background())
	accepted := make(chan struct{})
	go func() {
		p.accept(ctx)
		close(accepted)
	}()

	p.connectAll(ctx)
	ticker := time.NewTicker(connectInterval)

loop:
	for {
		select {
		case <-shutdown:
			break loop
		case <-ticker.C:
			p.connectAll(ctx)
		}
	}

	ticker.Stop()
	cancel()
	<-accepted
	p.log.Info("stopped")
}

func (p *peering) accept(ctx context.Context) {
	for {
		s, err := p.node.manager.Accept(ctx)
		if nil != ctx.Err() {
			return
		}
		if nil != err {
			p.log.Warnf("accept error: %s", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(acceptBackoff):
			}
			continue
		}
		p.log.Infof("accepted: %s  device: %s", s.RemoteId(), s.RemoteDevice())
		p.node.coordinator.Attach(s)
	}
}

// open any missing session, existing ones are reused by the manager
func (p *peering) connectAll(ctx context.Context) {
	for _, c := range p.node.config.Peering.Connect {
		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		_, err := p.node.session(connectCtx, c.Id)
		cancel()
		if nil != err {
			p.log.Debugf("connect: %s  error: %s", c.Id, err)
		}
	}
}
