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
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tracepit/dbgcore/breakpoint"
	"github.com/tracepit/dbgcore/dbgconfig"
	"github.com/tracepit/dbgcore/session"
)

var (
	breakAddr string
	fixedBias string
	maxStops  int
)

var runCmd = &cobra.Command{
	Use:   "run <executable>",
	Short: "Load an executable, arm an optional breakpoint, and run it",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&breakAddr, "break", "", "offline address to set a breakpoint at, e.g. 0x401020")
	runCmd.Flags().StringVar(&fixedBias, "bias", "", "fixed load bias override (hex), for non-ASLR targets")
	runCmd.Flags().IntVar(&maxStops, "max-stops", 10, "number of polls for a stop (5ms apart while none is pending); each stop found is printed and continued")
	viper.BindPFlag("break", runCmd.Flags().Lookup("break"))
	viper.BindPFlag("bias", runCmd.Flags().Lookup("bias"))
}

func runRun(cmd *cobra.Command, args []string) error {
	execPath := args[0]

	opts := dbgconfig.Options{ExecPath: execPath, Args: []string{execPath}}
	if v := viper.GetString("break"); v != "" {
		breakAddr = v
	}
	if v := viper.GetString("bias"); v != "" {
		fixedBias = v
	}
	if fixedBias != "" {
		bias, err := strconv.ParseUint(fixedBias, 0, 64)
		if err != nil {
			return fmt.Errorf("invalid --bias %q: %w", fixedBias, err)
		}
		opts.FixedBias = &bias
	}

	s, err := session.Open(opts)
	if err != nil {
		colorError.Fprintln(cmd.ErrOrStderr(), "open:", err)
		return err
	}
	defer s.Close()

	if breakAddr != "" {
		addr, err := strconv.ParseUint(breakAddr, 0, 64)
		if err != nil {
			return fmt.Errorf("invalid --break %q: %w", breakAddr, err)
		}
		s.AddBreakpoint(breakpoint.OfflineAddr(addr), 0)
		colorBreakpoint.Fprintf(cmd.OutOrStdout(), "breakpoint armed at %s\n", breakpoint.OfflineAddr(addr))
	}

	waitForDebugInfo(s)

	if err := s.StartRun(); err != nil {
		colorError.Fprintln(cmd.ErrOrStderr(), "start:", err)
		return err
	}
	colorSuccess.Fprintln(cmd.OutOrStdout(), "tracee started")

	printStops(cmd, s, maxStops)
	return nil
}

// waitForDebugInfo gives the background worker a brief window to finish
// its first DWARF/disassembly pass before the tracee starts, so the first
// printed stop already has symbol and source-line information. It is a
// best-effort wait, not a synchronization guarantee - Sync() is safe to
// call even if the snapshot never arrives.
func waitForDebugInfo(s *session.Session) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.Sync()
		if snap := s.Snapshot(); snap != nil && len(snap.AllSubprograms) > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// printStops polls the session max times. A poll that finds a stop prints
// the reconstructed stack and continues the tracee; a poll that finds none
// sleeps 5ms. Empty polls count toward max, so fewer than max stops may be
// printed.
func printStops(cmd *cobra.Command, s *session.Session, max int) {
	out := cmd.OutOrStdout()
	for i := 0; i < max; i++ {
		s.Sync()
		frames := s.Stack()
		if frames == nil {
			time.Sleep(5 * time.Millisecond)
			continue
		}

		colorHeader.Fprintln(out, "stack:")
		for depth, f := range frames {
			line := "?"
			if f.HasFile {
				line = strconv.Itoa(f.Location.Line)
			}
			colorAddr.Fprintf(out, "  #%d ", depth)
			colorInstr.Fprintf(out, "%s", f.Subprogram.Name)
			fmt.Fprintf(out, " at ")
			colorSourceLine.Fprintf(out, "line %s\n", line)
		}

		if err := s.ContinueRun(); err != nil {
			slog.Error("continue failed", "err", err)
			return
		}
	}
}
