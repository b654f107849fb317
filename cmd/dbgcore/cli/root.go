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

// Package cli is the cobra/viper command tree for the dbgcore harness.
// Nothing in the core packages imports this package - the "core has no
// CLI" boundary is enforced by dependency direction alone.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
)

// RootCmd is the base command. Execute() runs it.
var RootCmd = &cobra.Command{
	Use:   "dbgcore",
	Short: "A source-level debugger core for native Linux ELF/DWARF executables",
	Long: `dbgcore drives a traced process under ptrace, resolves DWARF debug info,
disassembles its text section, and reconstructs call stacks - exposed here
as a minimal command-line harness over the underlying Session API.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(verbose)
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.dbgcore.yaml)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug-level logging")

	RootCmd.AddCommand(runCmd)
	cobra.OnInitialize(initConfig)
}

// initConfig reads a config file and environment variables, mirroring the
// teacher's own cobra/viper wiring: a --config flag takes precedence over
// a discovered $HOME/.dbgcore.yaml, and DBGCORE_-prefixed environment
// variables override either.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".dbgcore")
	}

	viper.SetEnvPrefix("dbgcore")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "using config file:", viper.ConfigFileUsed())
	}
}
