// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpu

import (
	"log/slog"

	"github.com/gogpu/quad"
)

// logger returns the package logger. The gpu package shares the root
// package's logger so quad.SetLogger configures both without an import
// cycle.
func logger() *slog.Logger { return quad.Logger() }
