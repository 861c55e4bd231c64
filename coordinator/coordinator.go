// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coordinator

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/bitmark-inc/logger"
	"github.com/patrickmn/go-cache"

	"github.com/bitmark-inc/offlined/account"
	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/messagebus"
	"github.com/bitmark-inc/offlined/packet"
	"github.com/bitmark-inc/offlined/storage"
	"github.com/bitmark-inc/offlined/token"
	"github.com/bitmark-inc/offlined/transaction"
	"github.com/bitmark-inc/offlined/wallet"
)

// defaults
const (
	DefaultDuplicateWindow = 10 * time.Second
	DefaultResponseTimeout = 30 * time.Second
)

// Session - the part of a peer session the coordinator uses
type Session interface {
	RemoteId() string
	RemoteDevice() *account.Account
	Send(ctx context.Context, m packet.Message) error
	Receive(ctx context.Context) (packet.Message, error)
	Done() <-chan struct{}
}

// Settler - hands redemptions and completed transfers to settlement
type Settler interface {
	Submit(ctx context.Context, tx *transaction.Transaction, tokens []*token.OfflineToken) error
	Record(tx *transaction.Transaction) error
}

// RequestHandler - decide whether to pay a remote payment request
type RequestHandler func(peerId string, request *packet.PaymentRequestMessage) bool

// Config - coordinator settings
type Config struct {
	// completed transactions with the same sender, receiver and
	// amount within this window are rejected, negative disables
	DuplicateWindow time.Duration

	// wait for the receiver's payment response
	ResponseTimeout time.Duration
}

// in-flight outgoing transaction
type flight struct {
	cancel    context.CancelFunc
	cancelled bool
}

// Coordinator - transactions of one device
type Coordinator struct {
	log     *logger.L
	db      *storage.Database
	wallet  *wallet.Wallet
	holder  account.Signer
	config  Config
	recent  *cache.Cache
	settler Settler
	handler RequestHandler
	bus     *messagebus.Bus

	sync.Mutex
	served   map[Session]struct{}
	waiting  map[string]chan *packet.PaymentResponseMessage
	inflight map[string]*flight
}

// New - coordinator for the wallet's holder
func New(db *storage.Database, w *wallet.Wallet, holder account.Signer, config Config) *Coordinator {
	if 0 == config.DuplicateWindow {
		config.DuplicateWindow = DefaultDuplicateWindow
	}
	if config.ResponseTimeout <= 0 {
		config.ResponseTimeout = DefaultResponseTimeout
	}

	var recent *cache.Cache
	if config.DuplicateWindow > 0 {
		recent = cache.New(config.DuplicateWindow, 2*config.DuplicateWindow)
	}

	return &Coordinator{
		log:      logger.New("coordinator"),
		db:       db,
		wallet:   w,
		holder:   holder,
		config:   config,
		recent:   recent,
		served:   make(map[Session]struct{}),
		waiting:  make(map[string]chan *packet.PaymentResponseMessage),
		inflight: make(map[string]*flight),
	}
}

// SetSettler - where redemptions and completed transfers go
func (c *Coordinator) SetSettler(settler Settler) {
	c.Lock()
	c.settler = settler
	c.Unlock()
}

// SetRequestHandler - approve incoming payment requests, requests are
// ignored when no handler is set
func (c *Coordinator) SetRequestHandler(handler RequestHandler) {
	c.Lock()
	c.handler = handler
	c.Unlock()
}

// SetBus - publish completed, received and settled transactions
func (c *Coordinator) SetBus(bus *messagebus.Bus) {
	c.Lock()
	c.bus = bus
	c.Unlock()
}

func (c *Coordinator) getSettler() Settler {
	c.Lock()
	defer c.Unlock()
	return c.settler
}

// Transaction - a stored transaction
func (c *Coordinator) Transaction(id string) (*transaction.Transaction, error) {
	packed, err := c.db.Pool.Transactions.Get([]byte(id))
	if nil != err {
		return nil, err
	}
	if nil == packed {
		return nil, fault.ErrNotFoundTransaction
	}
	return transaction.Unpack(packed)
}

// Transactions - stored transactions accepted by filter, nil accepts all
func (c *Coordinator) Transactions(filter func(*transaction.Transaction) bool) ([]*transaction.Transaction, error) {
	elements, err := c.db.Pool.Transactions.Filter(nil)
	if nil != err {
		return nil, err
	}
	txs := make([]*transaction.Transaction, 0, len(elements))
	for _, e := range elements {
		tx, err := transaction.Unpack(e.Value)
		if nil != err {
			c.log.Errorf("transaction: %q  unpack error: %s", e.Key, err)
			continue
		}
		if nil == filter || filter(tx) {
			txs = append(txs, tx)
		}
	}
	return txs, nil
}

func (c *Coordinator) save(tx *transaction.Transaction) error {
	return c.db.Pool.Transactions.Put([]byte(tx.Id), tx.Pack())
}

// move to the next state and persist it
func (c *Coordinator) advance(tx *transaction.Transaction, status transaction.Status) error {
	if err := tx.SetStatus(status, time.Now()); nil != err {
		return err
	}
	return c.save(tx)
}

// record the failure or cancellation, release the tokens
func (c *Coordinator) abort(tx *transaction.Transaction, reason error, cancelled bool) error {
	now := time.Now()
	if cancelled {
		if err := tx.Cancel(now); nil != err {
			c.log.Errorf("tx: %s  cancel from: %s  error: %s", tx.Id, tx.Status, err)
		}
	} else if err := tx.Fail(reason, now); nil != err {
		c.log.Errorf("tx: %s  fail from: %s  error: %s", tx.Id, tx.Status, err)
	}
	if transaction.Outgoing == tx.Direction {
		c.wallet.Release(tx.Id)
	}
	if err := c.save(tx); nil != err {
		c.log.Errorf("tx: %s  save error: %s", tx.Id, err)
	}
	c.log.Warnf("tx: %s  %s  reason: %s  retryable: %t", tx.Id, tx.Status, reason, tx.Retryable)
	return reason
}

// key of the duplicate window
func recentKey(tx *transaction.Transaction) string {
	return tx.SenderId + "|" + tx.ReceiverId + "|" + string(tx.Type) + "|" + strconv.FormatUint(tx.Amount, 10)
}

// reject a different transaction of the same parties and amount
// completed within the window
func (c *Coordinator) checkRecent(tx *transaction.Transaction) error {
	if nil == c.recent {
		return nil
	}
	if id, found := c.recent.Get(recentKey(tx)); found && id.(string) != tx.Id {
		c.log.Warnf("tx: %s  duplicates recent tx: %s", tx.Id, id)
		return fault.ErrDoubleSpendDetected
	}
	return nil
}

func (c *Coordinator) remember(tx *transaction.Transaction) {
	if nil != c.recent {
		c.recent.Set(recentKey(tx), tx.Id, cache.DefaultExpiration)
	}
}

// queue a completed transaction for synchronisation
func (c *Coordinator) record(tx *transaction.Transaction) {
	if transaction.Incoming == tx.Direction {
		c.publish(messagebus.Received, tx)
	} else {
		c.publish(messagebus.Completed, tx)
	}

	settler := c.getSettler()
	if nil == settler {
		return
	}
	if err := settler.Record(tx); nil != err {
		c.log.Errorf("tx: %s  record error: %s", tx.Id, err)
	}
}

// parameters: tx id, amount
func (c *Coordinator) publish(command string, tx *transaction.Transaction) {
	c.Lock()
	bus := c.bus
	c.Unlock()
	if nil == bus {
		return
	}
	bus.Broadcast.Send(command, []byte(tx.Id), []byte(strconv.FormatUint(tx.Amount, 10)))
}

// ask the settlement process to drain now
func (c *Coordinator) requestDrain(tx *transaction.Transaction) {
	c.Lock()
	bus := c.bus
	c.Unlock()
	if nil == bus {
		return
	}
	if !bus.Settlement.Send(messagebus.Drain, []byte(tx.Id)) {
		c.log.Warnf("tx: %s  settlement queue full", tx.Id)
	}
}
