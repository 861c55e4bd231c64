// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"sort"
	"sync"
)

type tokenLock struct {
	sync.Mutex
	users int
}

// per token mutexes, created on demand and dropped when unused
type lockTable struct {
	sync.Mutex
	locks map[string]*tokenLock
}

func newLockTable() *lockTable {
	return &lockTable{
		locks: make(map[string]*tokenLock),
	}
}

// lock all the ids, returns the function that unlocks them
func (table *lockTable) lock(ids ...string) func() {
	sorted := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	held := make([]*tokenLock, 0, len(sorted))
	for _, id := range sorted {
		table.Lock()
		l, ok := table.locks[id]
		if !ok {
			l = &tokenLock{}
			table.locks[id] = l
		}
		l.users += 1
		table.Unlock()

		l.Lock()
		held = append(held, l)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i -= 1 {
			held[i].Unlock()
		}
		table.Lock()
		for i, id := range sorted {
			l := held[i]
			l.users -= 1
			if 0 == l.users {
				delete(table.locks, id)
			}
		}
		table.Unlock()
	}
}

func (table *lockTable) size() int {
	table.Lock()
	defer table.Unlock()
	return len(table.locks)
}
