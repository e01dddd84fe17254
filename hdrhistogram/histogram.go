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

// Package hdrhistogram records latency-style measurements into a
// logarithmic-linear bucket layout so that percentile queries stay
// accurate across several orders of magnitude without the resolution
// (and memory) needed to track every value exactly.
package hdrhistogram

import (
	"fmt"
	"math"

	"github.com/hashicorp/go-multierror"
)

// StorageKind selects a Histogram's counts-array backing. Packed trades
// read/write speed for memory when most cells are expected to stay at
// zero; the dense kinds trade memory for speed.
type StorageKind int

const (
	StorageDense64 StorageKind = iota
	StorageDense32
	StoragePacked
)

func (k StorageKind) String() string {
	switch k {
	case StorageDense32:
		return "dense32"
	case StoragePacked:
		return "packed"
	default:
		return "dense64"
	}
}

// ParseStorageKind maps the config/CLI spelling of a storage kind onto a
// StorageKind, defaulting to StorageDense64 for anything unrecognized.
func ParseStorageKind(s string) StorageKind {
	switch s {
	case "dense32":
		return StorageDense32
	case "packed":
		return StoragePacked
	default:
		return StorageDense64
	}
}

// Option configures a Histogram at construction time. Each option
// mutates a private config struct rather than exposing it directly.
type Option func(*histogramConfig)

type histogramConfig struct {
	lowestDiscernibleValue uint64
	highestTrackableValue  uint64
	significantDigits      int
	autoResize             bool
	storage                StorageKind
}

func defaultHistogramConfig() histogramConfig {
	return histogramConfig{
		lowestDiscernibleValue: 1,
		highestTrackableValue:  1<<53 - 1,
		significantDigits:      3,
		autoResize:             false,
		storage:                StorageDense64,
	}
}

// WithLowestDiscernibleValue sets the smallest value the histogram can
// distinguish from zero. Default 1.
func WithLowestDiscernibleValue(v uint64) Option {
	return func(c *histogramConfig) { c.lowestDiscernibleValue = v }
}

// WithHighestTrackableValue sets the largest value guaranteed not to
// trigger an out-of-range error (absent auto-resize). Default 2^53-1.
func WithHighestTrackableValue(v uint64) Option {
	return func(c *histogramConfig) { c.highestTrackableValue = v }
}

// WithSignificantDigits sets the number of decimal digits of precision
// preserved at the top of each bucket, in [0,5]. Default 3.
func WithSignificantDigits(d int) Option {
	return func(c *histogramConfig) { c.significantDigits = d }
}

// WithAutoResize allows the histogram to grow its trackable range in
// place the first time it sees a value above highestTrackableValue,
// instead of returning ErrOutOfRange. Default false.
func WithAutoResize(b bool) Option {
	return func(c *histogramConfig) { c.autoResize = b }
}

// WithStorage selects the counts-array backing. Default StorageDense64.
func WithStorage(k StorageKind) Option {
	return func(c *histogramConfig) { c.storage = k }
}

// Histogram records measurements into a logarithmic-linear bucket
// layout and answers percentile, mean and standard-deviation queries
// over them.
type Histogram struct {
	layout      *BucketLayout
	store       countsStore
	storageKind StorageKind
	autoResize  bool

	totalCount      uint64
	maxValue        uint64
	minNonZeroValue uint64

	startTimeStampMsec int64
	endTimeStampMsec   int64
	tag                string

	// recorderInstanceID is set only on histograms owned by a Recorder.
	// Kept unexported: recycled-histogram safety must not be part of the
	// public interface.
	recorderInstanceID string
}

// New builds a Histogram from the given options, defaulting to
// lowestDiscernibleValue=1, highestTrackableValue=2^53-1,
// significantDigits=3, autoResize=false and dense 64-bit storage.
func New(opts ...Option) (*Histogram, error) {
	cfg := defaultHistogramConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return newFromConfig(cfg)
}

func newFromConfig(cfg histogramConfig) (*Histogram, error) {
	layout, err := newBucketLayout(cfg.lowestDiscernibleValue, cfg.highestTrackableValue, cfg.significantDigits)
	if err != nil {
		return nil, err
	}
	return &Histogram{
		layout:          layout,
		store:           newCountsStore(cfg.storage, layout.CountsArrayLength()),
		storageKind:     cfg.storage,
		autoResize:      cfg.autoResize,
		minNonZeroValue: math.MaxUint64,
		tag:             "no-tag",
	}, nil
}

func newCountsStore(kind StorageKind, length int32) countsStore {
	switch kind {
	case StorageDense32:
		return newDenseCounts32(length)
	case StoragePacked:
		return newPackedStore(length)
	default:
		return newDenseCounts64(length)
	}
}

// cloneEmpty returns a new, empty Histogram configured identically to h
// (same range, precision, auto-resize and storage kind), used by
// CopyCorrectedForCoordinatedOmission.
func (h *Histogram) cloneEmpty() (*Histogram, error) {
	return newFromConfig(histogramConfig{
		lowestDiscernibleValue: h.layout.LowestDiscernibleValue(),
		highestTrackableValue:  h.layout.HighestTrackableValue(),
		significantDigits:      h.layout.SignificantDigits(),
		autoResize:             h.autoResize,
		storage:                h.storageKind,
	})
}

func (h *Histogram) Layout() *BucketLayout    { return h.layout }
func (h *Histogram) TotalCount() uint64       { return h.totalCount }
func (h *Histogram) StorageKind() StorageKind { return h.storageKind }
func (h *Histogram) AutoResize() bool         { return h.autoResize }

func (h *Histogram) Max() uint64 {
	if h.totalCount == 0 {
		return 0
	}
	return h.layout.highestEquivalentValue(h.maxValue)
}

func (h *Histogram) MinNonZeroValue() uint64 {
	if h.minNonZeroValue == math.MaxUint64 {
		return 0
	}
	return h.minNonZeroValue
}

func (h *Histogram) Tag() string        { return h.tag }
func (h *Histogram) SetTag(tag string)  { h.tag = tag }

func (h *Histogram) StartTimeStampMsec() int64        { return h.startTimeStampMsec }
func (h *Histogram) SetStartTimeStampMsec(msec int64) { h.startTimeStampMsec = msec }
func (h *Histogram) EndTimeStampMsec() int64          { return h.endTimeStampMsec }
func (h *Histogram) SetEndTimeStampMsec(msec int64)   { h.endTimeStampMsec = msec }

// RecordValue records one occurrence of value.
func (h *Histogram) RecordValue(value uint64) error {
	return h.RecordValueWithCount(value, 1)
}

// RecordValueWithCount records count occurrences of value in a single
// step; it is equivalent to, but far cheaper than, calling RecordValue
// count times.
func (h *Histogram) RecordValueWithCount(value uint64, count int64) error {
	if count < 0 {
		return fmt.Errorf("%w: count must be >= 0, got %d", ErrInvalidArgument, count)
	}
	idx, err := h.indexForRecording(value)
	if err != nil {
		return err
	}
	h.store.add(idx, count)
	h.totalCount += uint64(count)
	if value > h.maxValue {
		h.maxValue = value
	}
	if value > 0 && value < h.minNonZeroValue {
		h.minNonZeroValue = value
	}
	return nil
}

// RecordValueWithExpectedInterval records value, then backfills synthetic
// recordings to correct for coordinated omission: sampling paused for an
// interval (e.g. by a stalled caller) makes every value in that gap look
// like one big latency spike at the sample that broke the pause, rather
// than a run of values evenly spaced by expectedInterval. A zero interval
// disables backfill entirely.
func (h *Histogram) RecordValueWithExpectedInterval(value uint64, expectedInterval uint64) error {
	if err := h.RecordValueWithCount(value, 1); err != nil {
		return err
	}
	if expectedInterval == 0 {
		return nil
	}
	for k := uint64(1); k*expectedInterval < value; k++ {
		synthetic := value - k*expectedInterval
		if synthetic < expectedInterval {
			break
		}
		if err := h.RecordValueWithCount(synthetic, 1); err != nil {
			return err
		}
	}
	return nil
}

// indexForRecording maps value to a counts-array index, growing the
// layout first if value is out of range and auto-resize is enabled.
func (h *Histogram) indexForRecording(value uint64) (int32, error) {
	if value > h.layout.HighestTrackableValue() {
		if !h.autoResize {
			return 0, fmt.Errorf("%w: value %d exceeds highest trackable value %d", ErrOutOfRange, value, h.layout.HighestTrackableValue())
		}
		if err := h.growToCover(value); err != nil {
			return 0, err
		}
	}
	return h.layout.indexOf(value), nil
}

// growToCover enlarges the layout's highestTrackableValue to the
// smallest value of the form lowestDiscernibleValue * subBucketCount *
// 2^k - 1 that covers value, then resizes the counts store to match.
// Existing cell indices are unaffected by the growth
// since subBucketCount and unitMagnitude never change, only bucketCount.
func (h *Histogram) growToCover(value uint64) error {
	lowest := h.layout.LowestDiscernibleValue()
	subBucketCount := uint64(h.layout.SubBucketCount())
	k := uint64(h.layout.BucketCount() - 1)
	for {
		newHighest := lowest*subBucketCount<<k - 1
		if newHighest >= value {
			newLayout, err := newBucketLayout(lowest, newHighest, h.layout.SignificantDigits())
			if err != nil {
				return err
			}
			h.store = h.store.resize(newLayout.CountsArrayLength())
			h.layout = newLayout
			return nil
		}
		k++
	}
}

// GetValueAtPercentile returns the highest value at or below which
// percentile p of recorded values fall. p is clamped to [0,100].
func (h *Histogram) GetValueAtPercentile(p float64) uint64 {
	if h.totalCount == 0 {
		return 0
	}
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	target := uint64(math.Ceil(p / 100 * float64(h.totalCount)))
	if target == 0 {
		target = 1 // percentile 0 reports the lowest recorded value
	}

	var cumulative uint64
	n := h.layout.CountsArrayLength()
	var idx int32
	for idx = 0; idx < n; idx++ {
		cumulative += uint64(h.store.get(idx))
		if cumulative >= target {
			break
		}
	}
	if idx >= n {
		idx = n - 1
	}
	value := h.layout.valueFromIndex(idx)
	return h.layout.highestEquivalentValue(value)
}

// GetMean returns the count-weighted average of every cell's median
// equivalent value.
func (h *Histogram) GetMean() float64 {
	if h.totalCount == 0 {
		return 0
	}
	var total float64
	n := h.layout.CountsArrayLength()
	for idx := int32(0); idx < n; idx++ {
		c := h.store.get(idx)
		if c == 0 {
			continue
		}
		v := h.layout.valueFromIndex(idx)
		total += float64(c) * float64(h.layout.medianEquivalentValue(v))
	}
	return total / float64(h.totalCount)
}

// GetStdDeviation returns the count-weighted standard deviation of every
// cell's median equivalent value around GetMean.
func (h *Histogram) GetStdDeviation() float64 {
	if h.totalCount == 0 {
		return 0
	}
	mean := h.GetMean()
	var sumSquares float64
	n := h.layout.CountsArrayLength()
	for idx := int32(0); idx < n; idx++ {
		c := h.store.get(idx)
		if c == 0 {
			continue
		}
		v := h.layout.valueFromIndex(idx)
		diff := float64(h.layout.medianEquivalentValue(v)) - mean
		sumSquares += float64(c) * diff * diff
	}
	return math.Sqrt(sumSquares / float64(h.totalCount))
}

// Add merges other's recorded values into h, replaying each of other's
// populated cells at its median equivalent value. Failures (typically
// ErrOutOfRange on a value above h's trackable range with auto-resize
// disabled) are aggregated across all of other's cells rather than
// aborting at the first one, so a caller sees the full set of cells that
// could not be merged.
func (h *Histogram) Add(other *Histogram) error {
	var errs *multierror.Error
	n := other.layout.CountsArrayLength()
	for idx := int32(0); idx < n; idx++ {
		c := other.store.get(idx)
		if c == 0 {
			continue
		}
		v := other.layout.valueFromIndex(idx)
		median := other.layout.medianEquivalentValue(v)
		if err := h.RecordValueWithCount(median, c); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	h.mergeTimestamps(other)
	return errs.ErrorOrNil()
}

// Subtract removes other's recorded values from h. A cell that would go
// negative, or a value outside h's trackable range, is reported via
// ErrSubtractionUnderflow and aggregated the same way Add aggregates
// ErrOutOfRange, leaving the rest of h's cells subtracted normally.
func (h *Histogram) Subtract(other *Histogram) error {
	var errs *multierror.Error
	n := other.layout.CountsArrayLength()
	for idx := int32(0); idx < n; idx++ {
		c := other.store.get(idx)
		if c == 0 {
			continue
		}
		v := other.layout.valueFromIndex(idx)
		median := other.layout.medianEquivalentValue(v)
		if median > h.layout.HighestTrackableValue() {
			errs = multierror.Append(errs, fmt.Errorf("%w: value %d exceeds highest trackable value %d", ErrSubtractionUnderflow, median, h.layout.HighestTrackableValue()))
			continue
		}
		selfIdx := h.layout.indexOf(median)
		if h.store.get(selfIdx) < c {
			errs = multierror.Append(errs, fmt.Errorf("%w: cell at %d would go negative (%d - %d)", ErrSubtractionUnderflow, median, h.store.get(selfIdx), c))
			continue
		}
		h.store.add(selfIdx, -c)
		h.totalCount -= uint64(c)
	}
	h.recomputeMinAndMax()
	return errs.ErrorOrNil()
}

// recomputeMinAndMax rebuilds maxValue and minNonZeroValue from the
// populated cells, needed after Subtract may have emptied the cells the
// old extremes lived in.
func (h *Histogram) recomputeMinAndMax() {
	h.maxValue = 0
	h.minNonZeroValue = math.MaxUint64
	n := h.layout.CountsArrayLength()
	for idx := int32(0); idx < n; idx++ {
		if h.store.get(idx) == 0 {
			continue
		}
		v := h.layout.valueFromIndex(idx)
		if v > 0 && v < h.minNonZeroValue {
			h.minNonZeroValue = v
		}
		high := h.layout.highestEquivalentValue(v)
		if high > h.maxValue {
			h.maxValue = high
		}
	}
}

func (h *Histogram) mergeTimestamps(other *Histogram) {
	if other.startTimeStampMsec != 0 && (h.startTimeStampMsec == 0 || other.startTimeStampMsec < h.startTimeStampMsec) {
		h.startTimeStampMsec = other.startTimeStampMsec
	}
	if other.endTimeStampMsec > h.endTimeStampMsec {
		h.endTimeStampMsec = other.endTimeStampMsec
	}
}

// Reset clears every recorded value and scalar statistic, leaving the
// histogram's range, precision, auto-resize and storage kind unchanged.
func (h *Histogram) Reset() {
	h.store.clear()
	h.totalCount = 0
	h.maxValue = 0
	h.minNonZeroValue = math.MaxUint64
	h.startTimeStampMsec = 0
	h.endTimeStampMsec = 0
	h.tag = "no-tag"
}

// CopyCorrectedForCoordinatedOmission returns a new histogram built by
// replaying every value h has recorded through
// RecordValueWithExpectedInterval, so the result has the backfill h
// itself never had the chance to apply.
func (h *Histogram) CopyCorrectedForCoordinatedOmission(expectedInterval uint64) (*Histogram, error) {
	out, err := h.cloneEmpty()
	if err != nil {
		return nil, err
	}
	n := h.layout.CountsArrayLength()
	for idx := int32(0); idx < n; idx++ {
		c := h.store.get(idx)
		if c == 0 {
			continue
		}
		v := h.layout.medianEquivalentValue(h.layout.valueFromIndex(idx))
		for i := int64(0); i < c; i++ {
			if err := out.RecordValueWithExpectedInterval(v, expectedInterval); err != nil {
				return nil, err
			}
		}
	}
	out.mergeTimestamps(h)
	return out, nil
}

// Equals reports whether h and other hold identical counts at every
// equivalent value range, regardless of how their storage is laid out.
func (h *Histogram) Equals(other *Histogram) bool {
	if h.totalCount != other.totalCount {
		return false
	}
	it := h.RecordedValues()
	otherValues := map[uint64]int64{}
	for it.Next() {
		otherValues[it.ValueIteratedTo()] += it.CountAtValueIteratedTo()
	}
	ot := other.RecordedValues()
	for ot.Next() {
		otherValues[ot.ValueIteratedTo()] -= ot.CountAtValueIteratedTo()
	}
	for _, remaining := range otherValues {
		if remaining != 0 {
			return false
		}
	}
	return true
}

// ValuesAreEquivalent reports whether a and b fall into the same
// equivalent value range under h's layout.
func (h *Histogram) ValuesAreEquivalent(a, b uint64) bool {
	return h.layout.lowestEquivalentValue(a) == h.layout.lowestEquivalentValue(b)
}

// ByteSize estimates the in-memory footprint of the histogram's counts
// store, for capacity planning. Dense stores report their full allocated
// array; PackedStore reports only the words it has actually allocated.
func (h *Histogram) ByteSize() int64 {
	switch s := h.store.(type) {
	case *denseCounts32:
		return int64(len(s.cells)) * 4
	case *denseCounts64:
		return int64(len(s.cells)) * 8
	case *packedStore:
		return int64(s.used) * 8
	default:
		return 0
	}
}
