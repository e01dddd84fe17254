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

package hdrhistogram

import (
	"fmt"
	"io"
	"strconv"
)

// WritePercentileDistribution writes a plain-text percentile report: one
// right-aligned row per percentile tick (Value, Percentile, TotalCount,
// 1/(1-Percentile)), followed by #[-prefixed summary lines. valueScale
// divides every reported value, e.g. to print nanoseconds as
// milliseconds; 0 or negative falls back to 1 (no scaling).
func (h *Histogram) WritePercentileDistribution(w io.Writer, ticksPerHalfDistance int32, valueScale float64) error {
	if valueScale <= 0 {
		valueScale = 1
	}
	if _, err := fmt.Fprintf(w, "%12s %14s %10s %14s\n\n", "Value", "Percentile", "TotalCount", "1/(1-Percentile)"); err != nil {
		return err
	}

	it := h.Percentiles(ticksPerHalfDistance)
	for it.Next() {
		value := float64(it.ValueIteratedTo()) / valueScale
		percentile := it.PercentileIteratedTo() / 100.0
		if it.PercentileIteratedTo() >= 100 {
			if _, err := fmt.Fprintf(w, "%12.3f %14.12f %10d\n", value, percentile, it.TotalCountToThisValue()); err != nil {
				return err
			}
			continue
		}
		ratio := 1.0 / (1.0 - percentile)
		if _, err := fmt.Fprintf(w, "%12.3f %14.12f %10d %14.2f\n", value, percentile, it.TotalCountToThisValue(), ratio); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w,
		"\n#[Mean      = %12.3f, StdDeviation   = %12.3f]\n#[Max       = %12.3f, Total count    = %12d]\n#[Buckets   = %12d, SubBuckets     = %12d]\n",
		h.GetMean()/valueScale, h.GetStdDeviation()/valueScale, float64(h.Max())/valueScale, h.totalCount, h.layout.BucketCount(), h.layout.SubBucketCount())
	return err
}

// WritePercentileDistributionCSV writes the same report as
// WritePercentileDistribution in comma-separated form: a quoted header
// row and, for the 100th-percentile row, the literal ratio value
// "Infinity" rather than a divide-by-zero.
func (h *Histogram) WritePercentileDistributionCSV(w io.Writer, ticksPerHalfDistance int32, valueScale float64) error {
	if valueScale <= 0 {
		valueScale = 1
	}
	if _, err := fmt.Fprintf(w, "%q,%q,%q,%q\n", "Value", "Percentile", "TotalCount", "1/(1-Percentile)"); err != nil {
		return err
	}

	it := h.Percentiles(ticksPerHalfDistance)
	for it.Next() {
		value := float64(it.ValueIteratedTo()) / valueScale
		percentile := it.PercentileIteratedTo() / 100.0
		ratio := "Infinity"
		if it.PercentileIteratedTo() < 100 {
			ratio = strconv.FormatFloat(1.0/(1.0-percentile), 'f', 2, 64)
		}
		if _, err := fmt.Fprintf(w, "%.3f,%.12f,%d,%s\n", value, percentile, it.TotalCountToThisValue(), ratio); err != nil {
			return err
		}
	}
	return nil
}
