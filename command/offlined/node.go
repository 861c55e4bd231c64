// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"io/ioutil"
	"strings"
	"time"

	"github.com/bitmark-inc/logger"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bitmark-inc/offlined/account"
	"github.com/bitmark-inc/offlined/authority"
	"github.com/bitmark-inc/offlined/coordinator"
	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/keypair"
	"github.com/bitmark-inc/offlined/messagebus"
	"github.com/bitmark-inc/offlined/packet"
	"github.com/bitmark-inc/offlined/peer"
	"github.com/bitmark-inc/offlined/settlement"
	"github.com/bitmark-inc/offlined/storage"
	"github.com/bitmark-inc/offlined/wallet"
	"github.com/bitmark-inc/offlined/zmqutil"
)

const (
	busQueueSize   = 100
	issuerFetchTTL = time.Hour
	startupTimeout = 10 * time.Second
)

// everything one device runs
type node struct {
	log    *logger.L
	config *Configuration

	device      *account.PrivateKey
	db          *storage.Database
	wallet      *wallet.Wallet
	coordinator *coordinator.Coordinator
	bus         *messagebus.Bus
	registry    *prometheus.Registry

	// settlement, nil in mode "none"
	authorityDb *storage.Database
	client      *settlement.LocalClient
	keys        *settlement.KeyCache
	queue       *settlement.Queue
	recharger   *settlement.Recharger

	// network, nil until startNetwork
	link    *zmqutil.Link
	manager *peer.Manager
}

// open storage and build the wallet, coordinator and settlement
func openNode(log *logger.L, config *Configuration) (*node, error) {
	n := &node{
		log:      log,
		config:   config,
		bus:      messagebus.New(busQueueSize),
		registry: prometheus.NewRegistry(),
	}

	device, err := readIdentity(config.Identity.KeyFile, config.Identity.Password)
	if nil != err {
		log.Criticalf("identity: %q  error: %s", config.Identity.KeyFile, err)
		return nil, err
	}
	n.device = device
	log.Infof("device: %s", device.Account())

	log.Info("initialise storage")
	n.db, err = storage.Open(config.Database.Name, false)
	if nil != err {
		log.Criticalf("storage: %q  error: %s", config.Database.Name, err)
		return nil, err
	}

	if settlementLocal == config.Settlement.Mode {
		if err := n.openAuthority(); nil != err {
			n.close()
			return nil, err
		}
	}

	issuer, err := n.issuer()
	if nil != err {
		n.close()
		return nil, err
	}
	if nil == issuer {
		log.Warn("no issuer configured: tokens cannot be validated")
	} else {
		log.Infof("issuer: %s", issuer)
	}

	n.wallet = wallet.New(n.db, device, issuer)
	if err := n.applyRecharge(); nil != err {
		n.close()
		return nil, err
	}

	n.coordinator = coordinator.New(n.db, n.wallet, device, config.coordinatorConfig())
	n.coordinator.SetBus(n.bus)
	n.coordinator.SetRequestHandler(n.approve)

	if nil != n.client {
		n.queue = settlement.NewQueue(n.db, n.client, config.Settlement.UserId)
		n.queue.SetListener(n.coordinator)
		n.coordinator.SetSettler(n.queue)
		n.recharger = settlement.NewRecharger(n.wallet, n.client, config.Settlement.UserId)
	}

	return n, nil
}

// the in-process authority of a bench deployment
func (n *node) openAuthority() error {
	c := n.config.Settlement
	key, err := readIdentity(c.Authority.KeyFile, c.Authority.Password)
	if nil != err {
		n.log.Criticalf("authority key: %q  error: %s", c.Authority.KeyFile, err)
		return err
	}
	n.authorityDb, err = storage.Open(c.Authority.Database, false)
	if nil != err {
		n.log.Criticalf("authority storage: %q  error: %s", c.Authority.Database, err)
		return err
	}

	a := authority.New(key, n.authorityDb, n.config.tokenLifetime())
	if len(c.Authority.Denominations) > 0 {
		a.SetDenominations(c.Authority.Denominations)
	}

	balance, err := a.Balance(c.UserId)
	if nil != err {
		return err
	}
	if 0 == balance && c.Authority.Deposit > 0 {
		if _, err := a.Deposit(c.UserId, c.Authority.Deposit); nil != err {
			return err
		}
		n.log.Infof("user: %s  initial deposit: %d", c.UserId, c.Authority.Deposit)
	}

	n.client = settlement.NewLocalClient(a, n.bus.Broadcast)
	n.keys = settlement.NewKeyCache(n.client, issuerFetchTTL)
	return nil
}

// the configured issuer file takes precedence over the settlement
// service
func (n *node) issuer() (*account.Account, error) {
	if "" != n.config.Issuer.PublicKeyFile {
		issuer, err := readIssuer(n.config.Issuer.PublicKeyFile)
		if nil != err {
			n.log.Criticalf("issuer: %q  error: %s", n.config.Issuer.PublicKeyFile, err)
		}
		return issuer, err
	}
	if nil == n.keys {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()
	return n.keys.IssuerPublicKey(ctx)
}

// configured recharge settings replace the stored ones
func (n *node) applyRecharge() error {
	state, err := n.wallet.State()
	if nil != err {
		return err
	}
	state.RechargeThreshold = n.config.Settlement.RechargeThreshold
	state.RechargeAmount = n.config.Settlement.RechargeAmount
	return n.wallet.SetState(state)
}

// payment requests up to the configured limit are paid without asking
func (n *node) approve(peerId string, request *packet.PaymentRequestMessage) bool {
	limit := n.config.Payment.AutoApproveLimit
	if request.Amount > limit {
		n.log.Warnf("request: %s from: %s  amount: %d exceeds limit: %d", request.RequestId, peerId, request.Amount, limit)
		return false
	}
	n.log.Infof("request: %s from: %s  amount: %d approved", request.RequestId, peerId, request.Amount)
	return true
}

// bind the link and create the session manager
func (n *node) startNetwork() error {
	config := n.config.Peering

	id := config.Id
	if "" == id {
		id = n.device.Account().String()
	}
	linkConfig := zmqutil.Config{
		Id:     id,
		Listen: config.Listen,
	}

	if config.Curve {
		if err := zmqutil.StartAuthentication(); nil != err {
			n.log.Criticalf("zmq.AuthStart: error: %s", err)
			return err
		}
		privateKey, err := zmqutil.ReadPrivateKeyFile(config.PrivateKey)
		if nil != err {
			n.log.Criticalf("read private key file: %q  error: %s", config.PrivateKey, err)
			return err
		}
		linkConfig.PrivateKey = privateKey
	}

	for _, c := range config.Connect {
		remote := zmqutil.Peer{
			Id:      c.Id,
			Address: c.Address,
		}
		if config.Curve {
			if "" == c.PublicKey {
				n.log.Criticalf("peer: %s  CURVE public key is required", c.Id)
				return fault.ErrMissingParameters
			}
			publicKey, err := zmqutil.ReadPublicKeyFile(c.PublicKey)
			if nil != err {
				n.log.Criticalf("peer: %s  public key file: %q  error: %s", c.Id, c.PublicKey, err)
				return err
			}
			remote.PublicKey = publicKey
		}
		linkConfig.Peers = append(linkConfig.Peers, remote)
	}

	link, err := zmqutil.NewLink(linkConfig)
	if nil != err {
		n.log.Criticalf("link error: %s", err)
		return err
	}
	n.link = link
	n.manager = peer.NewManager(link, n.device, n.config.peerConfig(), peer.NewMetrics(n.registry))
	return nil
}

// connect to a configured peer and start serving its messages
func (n *node) session(ctx context.Context, peerId string) (*peer.Session, error) {
	if nil == n.manager {
		return nil, fault.ErrNotConnected
	}
	s, err := n.manager.Connect(ctx, peerId)
	if nil != err {
		return nil, err
	}
	n.coordinator.Attach(s)
	return s, nil
}

func (n *node) close() {
	if nil != n.manager {
		n.manager.Close()
	}
	if nil != n.link {
		n.link.Close()
	}
	if nil != n.authorityDb {
		n.authorityDb.Close()
	}
	if nil != n.db {
		n.db.Close()
	}
}

// decrypt a key file
func readIdentity(fileName string, password string) (*account.PrivateKey, error) {
	keyFile, err := keypair.Read(fileName)
	if nil != err {
		return nil, err
	}
	return keyFile.Decrypt(password)
}

// an issuer file holds one base58 account
func readIssuer(fileName string) (*account.Account, error) {
	data, err := ioutil.ReadFile(fileName)
	if nil != err {
		return nil, err
	}
	return account.AccountFromBase58(strings.TrimSpace(string(data)))
}
