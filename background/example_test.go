// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package background_test

import (
	"fmt"

	"github.com/bitmark-inc/offlined/background"
)

type drainer struct{}

func (drainer) Run(args interface{}, shutdown <-chan struct{}) {
	fmt.Printf("draining: %s\n", args)
	<-shutdown
	fmt.Printf("stopped\n")
}

func Example() {
	processes := background.Start(background.Processes{drainer{}}, "settlement queue")
	processes.Stop()

	// Output:
	// draining: settlement queue
	// stopped
}
