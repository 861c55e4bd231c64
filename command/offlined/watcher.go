// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"

	"github.com/bitmark-inc/logger"
	"github.com/fsnotify/fsnotify"

	"github.com/bitmark-inc/offlined/account"
)

// reloads the issuer public key file when it is rewritten
//
// the directory is watched so that editors replacing the file by
// rename are also seen
type issuerWatcher struct {
	log      *logger.L
	filePath string
	watcher  *fsnotify.Watcher
	update   func(*account.Account)
}

func newIssuerWatcher(fileName string, update func(*account.Account)) (*issuerWatcher, error) {
	filePath, err := filepath.Abs(filepath.Clean(fileName))
	if nil != err {
		return nil, err
	}
	if _, err := os.Stat(filePath); nil != err {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if nil != err {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(filePath)); nil != err {
		watcher.Close()
		return nil, err
	}

	return &issuerWatcher{
		log:      logger.New("issuer-watcher"),
		filePath: filePath,
		watcher:  watcher,
		update:   update,
	}, nil
}

// Run - background.Process
func (w *issuerWatcher) Run(args interface{}, shutdown <-chan struct{}) {
	w.log.Infof("watching: %q", w.filePath)

loop:
	for {
		select {
		case <-shutdown:
			break loop

		case event, ok := <-w.watcher.Events:
			if !ok {
				break loop
			}
			if filepath.Clean(event.Name) != w.filePath {
				continue
			}
			w.log.Debugf("file event: %v", event)
			if watcherEventFileRemove(event) {
				w.log.Warnf("issuer file: %q removed, keeping current key", w.filePath)
				continue
			}
			if watcherEventFileChange(event) {
				w.reload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				break loop
			}
			w.log.Errorf("watcher error: %s", err)
		}
	}

	w.watcher.Close()
	w.log.Info("stopped")
}

func (w *issuerWatcher) reload() {
	issuer, err := readIssuer(w.filePath)
	if nil != err {
		// partially written files are retried on the next event
		w.log.Warnf("issuer file: %q  error: %s", w.filePath, err)
		return
	}
	w.log.Infof("issuer: %s", issuer)
	w.update(issuer)
}

func watcherEventFileRemove(event fsnotify.Event) bool {
	return event.Op&fsnotify.Remove == fsnotify.Remove
}

func watcherEventFileChange(event fsnotify.Event) bool {
	return event.Op&fsnotify.Write == fsnotify.Write ||
		event.Op&fsnotify.Create == fsnotify.Create ||
		event.Op&fsnotify.Rename == fsnotify.Rename
}
