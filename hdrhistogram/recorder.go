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
	"time"

	"github.com/google/uuid"
)

// Recorder owns a pair of identically configured Histograms and flips
// which one is "active" on each snapshot, so a writer can keep recording
// without ever blocking on a reader draining the previous interval.
//
// Scheduling model assumed throughout: single writer, single reader,
// serialized by the host. GetIntervalHistogram's pointer swap is the
// only critical section; Recorder takes no lock of its own.
type Recorder struct {
	active     *Histogram
	inactive   *Histogram
	instanceID string
	cfg        histogramConfig
}

// NewRecorder builds a Recorder whose two Histograms share the options
// given (same range, precision, auto-resize and storage kind).
func NewRecorder(opts ...Option) (*Recorder, error) {
	cfg := defaultHistogramConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	id := uuid.NewString()
	active, err := newFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	inactive, err := newFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	active.recorderInstanceID = id
	inactive.recorderInstanceID = id
	active.startTimeStampMsec = time.Now().UnixMilli()

	return &Recorder{active: active, inactive: inactive, instanceID: id, cfg: cfg}, nil
}

// RecordValue delegates to the active Histogram.
func (r *Recorder) RecordValue(value uint64) error {
	return r.active.RecordValue(value)
}

// RecordValueWithCount delegates to the active Histogram.
func (r *Recorder) RecordValueWithCount(value uint64, count int64) error {
	return r.active.RecordValueWithCount(value, count)
}

// RecordValueWithExpectedInterval delegates to the active Histogram.
func (r *Recorder) RecordValueWithExpectedInterval(value, expectedInterval uint64) error {
	return r.active.RecordValueWithExpectedInterval(value, expectedInterval)
}

// GetIntervalHistogram snapshots the currently active Histogram and
// returns it, having flipped recording over to a freshly reset one.
//
// If recycled is non-nil it must have been produced by this same
// Recorder (an earlier call's return value, being handed back for
// reuse) — ErrRecorderMismatch otherwise. Passing nil reuses this
// Recorder's own standby Histogram instead of allocating one.
func (r *Recorder) GetIntervalHistogram(recycled *Histogram) (*Histogram, error) {
	if recycled != nil {
		if recycled.recorderInstanceID != r.instanceID {
			return nil, ErrRecorderMismatch
		}
		r.inactive = recycled
	}

	r.inactive.Reset()
	r.active, r.inactive = r.inactive, r.active

	now := time.Now().UnixMilli()
	r.active.startTimeStampMsec = now
	r.inactive.endTimeStampMsec = now
	return r.inactive, nil
}
