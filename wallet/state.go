// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"time"

	"github.com/bitmark-inc/offlined/util"
)

var stateKey = []byte("state")

// State - settled balance mirror and recharge settings
type State struct {
	SettledBalance    uint64    `json:"settledBalance"`
	RechargeThreshold uint64    `json:"rechargeThreshold"`
	RechargeAmount    uint64    `json:"rechargeAmount"`
	LastSync          time.Time `json:"lastSync"`
}

// State - read the stored state, zero valued if never saved
func (w *Wallet) State() (*State, error) {
	packed, err := w.db.Pool.Wallet.Get(stateKey)
	if nil != err {
		return nil, err
	}
	state := &State{}
	if nil == packed {
		return state, nil
	}

	u := util.NewUnpacker(packed)
	if state.SettledBalance, err = u.Uint64(); nil != err {
		return nil, err
	}
	if state.RechargeThreshold, err = u.Uint64(); nil != err {
		return nil, err
	}
	if state.RechargeAmount, err = u.Uint64(); nil != err {
		return nil, err
	}
	if state.LastSync, err = u.Time(); nil != err {
		return nil, err
	}
	return state, nil
}

// SetState - store the state
func (w *Wallet) SetState(state *State) error {
	buffer := util.AppendUint64(nil, state.SettledBalance)
	buffer = util.AppendUint64(buffer, state.RechargeThreshold)
	buffer = util.AppendUint64(buffer, state.RechargeAmount)
	buffer = util.AppendTime(buffer, state.LastSync)
	return w.db.Pool.Wallet.Put(stateKey, buffer)
}

// Synchronised - record a settled balance reported by the authority
func (w *Wallet) Synchronised(balance uint64, now time.Time) error {
	state, err := w.State()
	if nil != err {
		return err
	}
	state.SettledBalance = balance
	state.LastSync = now.UTC()
	return w.SetState(state)
}
