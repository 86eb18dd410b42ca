// Copyright 2026 The Tracedeck Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the tracedeck
// console.
//
// Configuration is loaded from a single YAML file specified by the
// TRACEDECK_CONFIG environment variable or the --config flag. Unlike
// server-side software, the console must be usable with no file at
// all, so every field has a working default and a missing file is not
// an error path the operator ever sees: no variable, no file, no
// problem.
package config
