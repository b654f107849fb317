// This file is part of dbgcore.
//
// dbgcore is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// dbgcore is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with dbgcore.  If not, see <https://www.gnu.org/licenses/>.

package cli

import (
	"context"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"

	"github.com/tracepit/dbgcore/dbglog"
)

// ringHandler is a slog.Handler that forwards every record into the
// core's dbglog ring buffer, so a record emitted via slog ends up in the
// same place tracee/patch/debuginfo log their own diagnostics - one
// buffer a front end can Tail() regardless of which layer produced the
// entry.
type ringHandler struct {
	attrs []slog.Attr
}

func (h *ringHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *ringHandler) Handle(_ context.Context, r slog.Record) error {
	dbglog.Logf(dbglog.Allow, "cli", "%s %s", r.Level, r.Message)
	return nil
}

func (h *ringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ringHandler{attrs: append(append([]slog.Attr{}, h.attrs...), attrs...)}
}

func (h *ringHandler) WithGroup(string) slog.Handler { return h }

// setupLogging fans every slog record out to stderr (text, for a human
// watching the terminal) and into the dbglog ring buffer (for Tail/Write
// diagnostics), then installs the result as the default logger.
func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	stderr := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	handler := slogmulti.Fanout(stderr, &ringHandler{})
	slog.SetDefault(slog.New(handler))
}
