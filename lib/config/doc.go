// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Patchline binaries.
//
// Configuration is loaded from a single YAML file specified by:
//   - the PATCHLINE_CONFIG environment variable, or
//   - the --config flag passed to the command.
//
// When neither names a file, built-in defaults apply. There is no
// automatic discovery of config files in dotted home directories: a
// binary either runs on defaults or on one explicitly named file, so
// the effective configuration is always auditable.
//
// Command-line flags override file values; the file overrides
// defaults.
package config
