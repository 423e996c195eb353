// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Patchline packages.
package testutil
