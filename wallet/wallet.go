// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"sort"
	"sync"
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/offlined/account"
	"github.com/bitmark-inc/offlined/fault"
	"github.com/bitmark-inc/offlined/storage"
	"github.com/bitmark-inc/offlined/token"
)

// Wallet - tokens held by this device
type Wallet struct {
	log    *logger.L
	db     *storage.Database
	holder account.Signer
	locks  *lockTable

	sync.RWMutex
	issuer   *account.Account
	reserved map[string]string // token id -> transaction id
}

// New - wallet over db, dividing with holder and trusting issuer
func New(db *storage.Database, holder account.Signer, issuer *account.Account) *Wallet {
	return &Wallet{
		log:      logger.New("wallet"),
		db:       db,
		holder:   holder,
		locks:    newLockTable(),
		issuer:   issuer,
		reserved: make(map[string]string),
	}
}

// Holder - account of this device
func (w *Wallet) Holder() *account.Account {
	return w.holder.Account()
}

// Issuer - the pinned issuer key
func (w *Wallet) Issuer() *account.Account {
	w.RLock()
	defer w.RUnlock()
	return w.issuer
}

// SetIssuer - replace the pinned issuer key
func (w *Wallet) SetIssuer(issuer *account.Account) {
	w.Lock()
	w.issuer = issuer
	w.Unlock()
	w.log.Infof("issuer key: %s", issuer)
}

// Validate - check a token against the pinned issuer key
func (w *Wallet) Validate(t *token.OfflineToken, now time.Time) error {
	issuer := w.Issuer()
	if nil == issuer {
		return fault.ErrMissingParameters
	}
	return token.Validate(t, issuer, now)
}

// Add - store freshly issued tokens
func (w *Wallet) Add(tokens []*token.OfflineToken, now time.Time) error {
	if 0 == len(tokens) {
		return fault.ErrMissingParameters
	}
	unlock := w.locks.lock(token.Ids(tokens)...)
	defer unlock()

	batch := w.db.NewBatch()
	for _, t := range tokens {
		if err := w.Validate(t, now); nil != err {
			return err
		}
		found, err := w.db.Pool.Tokens.Has([]byte(t.Id))
		if nil != err {
			return err
		}
		if found {
			return fault.ErrDuplicateToken
		}
		batch.Put(w.db.Pool.Tokens, []byte(t.Id), t.Pack())
	}
	if err := batch.Commit(); nil != err {
		return err
	}
	w.log.Infof("added: %d tokens  amount: %d", len(tokens), token.TotalAmount(tokens))
	return nil
}

// Get - fetch one token
func (w *Wallet) Get(id string) (*token.OfflineToken, error) {
	return w.get(id)
}

func (w *Wallet) get(id string) (*token.OfflineToken, error) {
	packed, err := w.db.Pool.Tokens.Get([]byte(id))
	if nil != err {
		return nil, err
	}
	if nil == packed {
		return nil, fault.ErrNotFoundToken
	}
	return token.Unpack(packed)
}

// Has - true if the wallet has ever stored the token id
func (w *Wallet) Has(id string) (bool, error) {
	return w.db.Pool.Tokens.Has([]byte(id))
}

// List - tokens accepted by filter, nil filter lists everything
func (w *Wallet) List(filter func(*token.OfflineToken) bool) ([]*token.OfflineToken, error) {
	tokens := make([]*token.OfflineToken, 0)
	err := w.db.Pool.Tokens.NewFetchCursor().Map(func(key []byte, value []byte) error {
		t, err := token.Unpack(value)
		if nil != err {
			w.log.Errorf("token: %s  unpack error: %s", key, err)
			return err
		}
		if nil == filter || filter(t) {
			tokens = append(tokens, t)
		}
		return nil
	})
	if nil != err {
		return nil, err
	}
	return tokens, nil
}

// Available - tokens that can be spent now, largest first
//
// spent, expired, divided, reserved and invalid tokens are excluded
func (w *Wallet) Available(now time.Time) ([]*token.OfflineToken, error) {
	tokens, err := w.List(func(t *token.OfflineToken) bool {
		return !t.IsDivided() && !w.isReserved(t.Id) && nil == w.Validate(t, now)
	})
	if nil != err {
		return nil, err
	}
	sort.SliceStable(tokens, func(i, j int) bool {
		return tokens[i].Amount > tokens[j].Amount
	})
	return tokens, nil
}

// Balance - total value of available tokens
func (w *Wallet) Balance(now time.Time) (uint64, error) {
	tokens, err := w.Available(now)
	if nil != err {
		return 0, err
	}
	return token.TotalAmount(tokens), nil
}

// CleanupExpired - remove expired tokens not held by a transaction
func (w *Wallet) CleanupExpired(now time.Time) (int, error) {
	expired, err := w.List(func(t *token.OfflineToken) bool {
		return t.IsExpired(now) && !w.isReserved(t.Id)
	})
	if nil != err || 0 == len(expired) {
		return 0, err
	}

	ids := token.Ids(expired)
	unlock := w.locks.lock(ids...)
	defer unlock()

	batch := w.db.NewBatch()
	for _, id := range ids {
		batch.Delete(w.db.Pool.Tokens, []byte(id))
	}
	if err := batch.Commit(); nil != err {
		return 0, err
	}
	w.log.Infof("removed: %d expired tokens", len(ids))
	return len(ids), nil
}

func (w *Wallet) isReserved(id string) bool {
	w.RLock()
	defer w.RUnlock()
	_, ok := w.reserved[id]
	return ok
}
