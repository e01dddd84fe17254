// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package cmd implements the hdrstat command-line tool: a thin driver
// over the hdrhistogram package for feeding it values from the shell and
// inspecting the resulting distribution.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/hdrstat/internal/logctx"
)

var debug bool

var rootCmd = &cobra.Command{
	Use:   "hdrstat",
	Short: "Record and inspect HDR histogram distributions",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger := setupLogging(debug)
		cmd.SetContext(logctx.WithLogger(cmd.Context(), logger))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// Execute runs the root command; main.go's main calls it once the
// process bootstrap in main.go's init has run.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
