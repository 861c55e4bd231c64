// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package transaction

import (
	"github.com/bitmark-inc/offlined/fault"
)

// Status - type for transaction state
type Status byte

// possible states for a transaction
const (
	Initiated = Status('I')
	Signed    = Status('S')
	Verifying = Status('V')
	Pending   = Status('P')
	Completed = Status('C')
	Failed    = Status('F')
	Cancelled = Status('X')
)

// CanChangeTo - check if a state transition is allowed
//
// Failed -> Initiated is permitted here, the caller must also check
// the failure was retryable
func (state Status) CanChangeTo(newState Status) bool {

	// exclude change to same state
	if state == newState {
		return false
	}

	switch state {
	case Initiated:
		return Signed == newState || Failed == newState || Cancelled == newState

	case Signed:
		return Verifying == newState || Failed == newState || Cancelled == newState

	case Verifying:
		return Pending == newState || Failed == newState || Cancelled == newState

	case Pending:
		return Completed == newState || Failed == newState || Cancelled == newState

	case Failed:
		return Initiated == newState

	default:
		return false
	}
}

// IsTerminal - no further change is possible without a retry
func (state Status) IsTerminal() bool {
	return Completed == state || Failed == state || Cancelled == state
}

func (state Status) String() string {
	s := "?"
	switch state {
	case Initiated:
		s = "Initiated"
	case Signed:
		s = "Signed"
	case Verifying:
		s = "Verifying"
	case Pending:
		s = "Pending"
	case Completed:
		s = "Completed"
	case Failed:
		s = "Failed"
	case Cancelled:
		s = "Cancelled"
	default:
	}
	return s
}

// all states, used for text conversion
var allStatus = []Status{Initiated, Signed, Verifying, Pending, Completed, Failed, Cancelled}

// MarshalText - convert state to text
func (state Status) MarshalText() ([]byte, error) {
	return []byte(state.String()), nil
}

// UnmarshalText - convert text to state
func (state *Status) UnmarshalText(s []byte) error {
	for _, st := range allStatus {
		if st.String() == string(s) {
			*state = st
			return nil
		}
	}
	return fault.ErrInvalidStateChange
}
