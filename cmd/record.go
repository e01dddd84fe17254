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

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/hdrstat/config"
	"github.com/cardinalhq/hdrstat/hdrhistogram"
	"github.com/cardinalhq/hdrstat/internal/logctx"
)

var (
	recordCSV          bool
	recordTicksPerHalf int32
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record one value per stdin line into a histogram and print its percentile distribution",
	RunE:  runRecord,
}

func init() {
	recordCmd.Flags().BoolVar(&recordCSV, "csv", false, "write the percentile distribution as CSV instead of plain text")
	recordCmd.Flags().Int32Var(&recordTicksPerHalf, "ticks-per-half-distance", 5, "percentile ticks per halving of the remaining distance to 100")
	rootCmd.AddCommand(recordCmd)
}

func runRecord(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	h, err := buildHistogram(cfg.Histogram)
	if err != nil {
		return fmt.Errorf("building histogram: %w", err)
	}

	n, err := feedValues(cmd.InOrStdin(), h, uint64(cfg.Histogram.ExpectedIntervalMillis))
	if err != nil {
		return err
	}
	logctx.FromContext(cmd.Context()).Info("recorded values", "count", n, "totalCount", h.TotalCount())

	out := cmd.OutOrStdout()
	if recordCSV {
		return h.WritePercentileDistributionCSV(out, recordTicksPerHalf, cfg.Histogram.ValueScale)
	}
	return h.WritePercentileDistribution(out, recordTicksPerHalf, cfg.Histogram.ValueScale)
}

func buildHistogram(hc config.HistogramConfig) (*hdrhistogram.Histogram, error) {
	return hdrhistogram.New(
		hdrhistogram.WithLowestDiscernibleValue(hc.LowestDiscernibleValue),
		hdrhistogram.WithHighestTrackableValue(hc.HighestTrackableValue),
		hdrhistogram.WithSignificantDigits(hc.SignificantDigits),
		hdrhistogram.WithAutoResize(hc.AutoResize),
		hdrhistogram.WithStorage(hdrhistogram.ParseStorageKind(hc.Storage)),
	)
}

// feedValues reads one unsigned integer per line from r and records each
// into h, applying coordinated-omission backfill when expectedInterval is
// nonzero. Blank lines and lines starting with # are skipped.
func feedValues(r io.Reader, h *hdrhistogram.Histogram, expectedInterval uint64) (int, error) {
	scanner := bufio.NewScanner(r)
	var n int
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		value, err := strconv.ParseUint(line, 10, 64)
		if err != nil {
			return n, fmt.Errorf("parsing value %q: %w", line, err)
		}
		if expectedInterval > 0 {
			if err := h.RecordValueWithExpectedInterval(value, expectedInterval); err != nil {
				return n, fmt.Errorf("recording %d: %w", value, err)
			}
		} else if err := h.RecordValue(value); err != nil {
			return n, fmt.Errorf("recording %d: %w", value, err)
		}
		n++
	}
	return n, scanner.Err()
}
