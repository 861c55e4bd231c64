// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package configuration - parse a Lua configuration file
//
// most of base Lua is available such as reading files to set key data
// and getenv to extract environment supplied items.  The file must
// return a single table which is mapped onto the configuration
// structure using the "gluamapper" field tags.
//
// values supplied by the caller are visible to the script as the
// global table "variables" e.g.
//
//   local data_directory = variables.data_directory or "."
package configuration
