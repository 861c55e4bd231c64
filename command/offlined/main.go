// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bitmark-inc/exitwithstatus"
	"github.com/bitmark-inc/getoptions"
	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/offlined/account"
	"github.com/bitmark-inc/offlined/background"
	"github.com/bitmark-inc/offlined/settlement"
)

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "zero" // do not change this value

// main program
func main() {
	// ensure exit handler is first
	defer exitwithstatus.Handler()

	flags := []getoptions.Option{
		{Long: "help", HasArg: getoptions.NO_ARGUMENT, Short: 'h'},
		{Long: "verbose", HasArg: getoptions.NO_ARGUMENT, Short: 'v'},
		{Long: "quiet", HasArg: getoptions.NO_ARGUMENT, Short: 'q'},
		{Long: "version", HasArg: getoptions.NO_ARGUMENT, Short: 'V'},
		{Long: "config-file", HasArg: getoptions.REQUIRED_ARGUMENT, Short: 'c'},
		{Long: "define", HasArg: getoptions.REQUIRED_ARGUMENT, Short: 'D'},
		{Long: "memory-stats", HasArg: getoptions.NO_ARGUMENT, Short: 'm'},
	}

	program, options, arguments, err := getoptions.GetOS(flags)
	if nil != err {
		exitwithstatus.Message("%s: getoptions error: %s", program, err)
	}

	if len(options["version"]) > 0 {
		processSetupCommand(program, []string{"version"})
		return
	}

	if len(options["help"]) > 0 {
		processSetupCommand(program, []string{"help"})
		return
	}

	// these commands do not require the configuration and
	// process data needed for initial setup
	if len(arguments) > 0 && processSetupCommand(program, arguments) {
		return
	}

	if 1 != len(options["config-file"]) {
		exitwithstatus.Message("%s: only one config-file option is required, %d were detected", program, len(options["config-file"]))
	}

	// values visible to the configuration script
	variables := make(map[string]string)
	for _, d := range options["define"] {
		s := strings.SplitN(d, "=", 2)
		if 2 != len(s) || "" == s[0] {
			exitwithstatus.Message("%s: define: %q is not NAME=VALUE", program, d)
		}
		variables[s[0]] = s[1]
	}

	// read options and parse the configuration file
	configurationFile := options["config-file"][0]
	theConfiguration, err := getConfiguration(configurationFile, variables)
	if nil != err {
		exitwithstatus.Message("%s: failed to read configuration from: %q  error: %s", program, configurationFile, err)
	}

	// these commands require the configuration and
	// perform enquiries on the configuration
	if len(arguments) > 0 && processConfigCommand(arguments, theConfiguration) {
		return
	}

	// start logging
	if err = logger.Initialise(theConfiguration.Logging); nil != err {
		exitwithstatus.Message("%s: logger setup failed with error: %s", program, err)
	}
	defer logger.Finalise()

	// create a logger channel for the main program
	log := logger.New("main")
	defer log.Info("finished")
	log.Info("starting…")
	log.Infof("version: %s", version)

	// ------------------
	// start of real main
	// ------------------

	// optional PID file
	// use if not running under a supervisor program like daemon(8)
	if "" != theConfiguration.PidFile {
		lockFile, err := os.OpenFile(theConfiguration.PidFile, os.O_WRONLY|os.O_EXCL|os.O_CREATE, os.ModeExclusive|0600)
		if err != nil {
			if os.IsExist(err) {
				exitwithstatus.Message("%s: another instance is already running", program)
			}
			exitwithstatus.Message("%s: PID file: %q creation failed, error: %s", program, theConfiguration.PidFile, err)
		}
		fmt.Fprintf(lockFile, "%d\n", os.Getpid())
		lockFile.Close()
		defer os.Remove(theConfiguration.PidFile)
	}

	log.Infof("database: %q", theConfiguration.Database.Name)
	log.Infof("settlement: %q", theConfiguration.Settlement.Mode)
	log.Debugf("%s = %#v", "Peering", theConfiguration.Peering)
	log.Debugf("%s = %#v", "Payment", theConfiguration.Payment)

	n, err := openNode(log, theConfiguration)
	if nil != err {
		exitwithstatus.Message("node initialise error: %s", err)
	}
	defer n.close()

	// these commands are allowed to access the internal database
	if len(arguments) > 0 && processDataCommand(log, arguments, n) {
		return
	}

	// start up the peering
	if err := n.startNetwork(); nil != err {
		log.Criticalf("network initialise error: %s", err)
		exitwithstatus.Message("network initialise error: %s", err)
	}

	processes := background.Processes{
		newEventLog(n.bus.Broadcast),
		newPeering(n),
	}

	if nil != n.queue {
		events := n.bus.Broadcast.Chan(eventQueueSize)
		defer n.bus.Broadcast.Release(events)
		processes = append(processes, settlement.NewProcess(n.queue, n.recharger, events, n.bus.Settlement.Chan(), theConfiguration.drainInterval()))
	}

	if "" != theConfiguration.Issuer.PublicKeyFile {
		watcher, err := newIssuerWatcher(theConfiguration.Issuer.PublicKeyFile, func(issuer *account.Account) {
			n.wallet.SetIssuer(issuer)
			if nil != n.keys {
				n.keys.Invalidate()
			}
		})
		if nil != err {
			log.Criticalf("issuer watcher error: %s", err)
			exitwithstatus.Message("issuer watcher error: %s", err)
		}
		processes = append(processes, watcher)
	}

	registerNodeMetrics(n)
	if "" != theConfiguration.Metrics.File {
		processes = append(processes, newMetricsWriter(theConfiguration.Metrics.File, n.registry, theConfiguration.metricsInterval()))
	}

	// if memory logging enabled
	if len(options["memory-stats"]) > 0 {
		processes = append(processes, &memstats{})
	}

	running := background.Start(processes, nil)

	// wait for CTRL-C before shutting down to allow manual testing
	if 0 == len(options["quiet"]) {
		fmt.Printf("\n\nWaiting for CTRL-C (SIGINT) or 'kill <pid>' (SIGTERM)…")
	}

	// turn Signals into channel messages
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	sig := <-ch
	log.Infof("received signal: %v", sig)
	if 0 == len(options["quiet"]) {
		fmt.Printf("\nreceived signal: %v\n", sig)
		fmt.Printf("\nshutting down…\n")
	}

	log.Info("shutting down…")
	running.Stop()
}
