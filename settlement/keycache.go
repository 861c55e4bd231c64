// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package settlement

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/bitmark-inc/offlined/account"
)

// DefaultKeyTTL - how long a fetched issuer key is trusted
const DefaultKeyTTL = time.Hour

const issuerKey = "issuer"

// KeyCache - issuer public key fetched from the client
//
// an expired key is still returned while the client is unreachable
type KeyCache struct {
	client Client
	cache  *cache.Cache

	sync.Mutex
	last *account.Account
}

// NewKeyCache - cache keys from client for ttl
func NewKeyCache(client Client, ttl time.Duration) *KeyCache {
	if ttl <= 0 {
		ttl = DefaultKeyTTL
	}
	return &KeyCache{
		client: client,
		cache:  cache.New(ttl, 2*ttl),
	}
}

// IssuerPublicKey - cached key, fetched when missing or expired
func (k *KeyCache) IssuerPublicKey(ctx context.Context) (*account.Account, error) {
	if issuer, found := k.cache.Get(issuerKey); found {
		return issuer.(*account.Account), nil
	}

	issuer, err := k.client.IssuerPublicKey(ctx)
	if nil != err {
		k.Lock()
		last := k.last
		k.Unlock()
		if nil != last {
			return last, nil
		}
		return nil, err
	}

	k.cache.SetDefault(issuerKey, issuer)
	k.Lock()
	k.last = issuer
	k.Unlock()
	return issuer, nil
}

// Invalidate - fetch again on next use
func (k *KeyCache) Invalidate() {
	k.cache.Delete(issuerKey)
}
