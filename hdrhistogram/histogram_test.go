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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	h, err := New()
	require.NoError(t, err)
	assert.EqualValues(t, 1, h.Layout().LowestDiscernibleValue())
	assert.EqualValues(t, 1<<53-1, h.Layout().HighestTrackableValue())
	assert.Equal(t, 3, h.Layout().SignificantDigits())
	assert.False(t, h.AutoResize())
	assert.Equal(t, StorageDense64, h.StorageKind())
	assert.Equal(t, "no-tag", h.Tag())
}

func TestRecordValue_OutOfRangeWithoutAutoResize(t *testing.T) {
	h, err := New(WithHighestTrackableValue(1000))
	require.NoError(t, err)

	err = h.RecordValue(2000)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestRecordValue_AutoResizeGrowsRange(t *testing.T) {
	h, err := New(WithHighestTrackableValue(1000), WithAutoResize(true))
	require.NoError(t, err)

	require.NoError(t, h.RecordValue(1))
	require.NoError(t, h.RecordValue(1_000_000))

	assert.GreaterOrEqual(t, h.Layout().HighestTrackableValue(), uint64(1_000_000))
	assert.EqualValues(t, 2, h.TotalCount())
	assert.Equal(t, h.Layout().highestEquivalentValue(h.Layout().lowestEquivalentValue(1_000_000)), h.Max())
}

func TestInvariant_EquivalentValuesShareACell(t *testing.T) {
	h, err := New()
	require.NoError(t, err)
	require.NoError(t, h.RecordValue(100_000))

	low := h.Layout().lowestEquivalentValue(100_000)
	high := h.Layout().highestEquivalentValue(100_000)
	assert.Equal(t, h.GetValueAtPercentile(100), high)
	assert.LessOrEqual(t, low, uint64(100_000))
}

func TestInvariant_RoundTripSingleValue(t *testing.T) {
	h, err := New()
	require.NoError(t, err)
	require.NoError(t, h.RecordValue(54321))

	assert.Equal(t, h.Layout().highestEquivalentValue(54321), h.GetValueAtPercentile(100))
}

func TestScenario_S4_ThreeDistinctValues(t *testing.T) {
	h, err := New()
	require.NoError(t, err)
	require.NoError(t, h.RecordValue(25))
	require.NoError(t, h.RecordValue(50))
	require.NoError(t, h.RecordValue(75))

	assert.EqualValues(t, 3, h.TotalCount())
	assert.EqualValues(t, 50, h.GetMean())
	assert.EqualValues(t, 75, h.Max())
	assert.EqualValues(t, 25, h.MinNonZeroValue())

	sd := h.GetStdDeviation()
	assert.Greater(t, sd, 20.4124)
	assert.Less(t, sd, 20.4125)
}

func TestAdd_HeterogeneousLayouts(t *testing.T) {
	h1, err := New(WithSignificantDigits(2))
	require.NoError(t, err)
	h2, err := New(WithSignificantDigits(2), WithHighestTrackableValue(1024), WithAutoResize(true))
	require.NoError(t, err)

	require.NoError(t, h1.RecordValue(42000))
	require.NoError(t, h2.RecordValue(1000))

	require.NoError(t, h1.Add(h2))
	assert.EqualValues(t, 2, h1.TotalCount())
	assert.EqualValues(t, 215, uint64(h1.GetMean())/100)
}

func TestScenario_S5_CoordinatedOmissionBackfill(t *testing.T) {
	h, err := New()
	require.NoError(t, err)
	require.NoError(t, h.RecordValueWithExpectedInterval(207, 100))

	assert.EqualValues(t, 2, h.TotalCount())
	assert.EqualValues(t, 107, h.MinNonZeroValue())
	assert.EqualValues(t, 207, h.Max())
}

func TestRecordValueWithExpectedInterval_BackfillsExactBoundary(t *testing.T) {
	h, err := New()
	require.NoError(t, err)
	require.NoError(t, h.RecordValueWithExpectedInterval(300, 100))

	assert.EqualValues(t, 3, h.TotalCount())
	assert.EqualValues(t, 100, h.MinNonZeroValue())
	assert.EqualValues(t, 300, h.Max())

	seen := snapshotCells(t, h)
	for _, v := range []uint64{100, 200, 300} {
		assert.Contains(t, seen, h.Layout().highestEquivalentValue(v))
	}
}

func TestScenario_S6_CopyCorrectedForCoordinatedOmission(t *testing.T) {
	h, err := New()
	require.NoError(t, err)
	require.NoError(t, h.RecordValue(207))
	require.NoError(t, h.RecordValue(207))

	corrected1000, err := h.CopyCorrectedForCoordinatedOmission(1000)
	require.NoError(t, err)
	assert.EqualValues(t, 2, corrected1000.TotalCount())
	assert.EqualValues(t, 207, corrected1000.MinNonZeroValue())
	assert.EqualValues(t, 207, corrected1000.Max())

	corrected100, err := h.CopyCorrectedForCoordinatedOmission(100)
	require.NoError(t, err)
	assert.EqualValues(t, 4, corrected100.TotalCount())
	assert.EqualValues(t, 107, corrected100.MinNonZeroValue())
	assert.EqualValues(t, 207, corrected100.Max())
}

func TestAdd_MergesCountsAndTracksTimestamps(t *testing.T) {
	a, err := New()
	require.NoError(t, err)
	b, err := New()
	require.NoError(t, err)

	require.NoError(t, a.RecordValue(100))
	require.NoError(t, b.RecordValue(200))
	b.SetStartTimeStampMsec(10)
	b.SetEndTimeStampMsec(20)
	a.SetStartTimeStampMsec(50)
	a.SetEndTimeStampMsec(60)

	require.NoError(t, a.Add(b))
	assert.EqualValues(t, 2, a.TotalCount())
	assert.EqualValues(t, 10, a.StartTimeStampMsec())
	assert.EqualValues(t, 60, a.EndTimeStampMsec())
}

func TestAdd_AggregatesOutOfRangeFailures(t *testing.T) {
	a, err := New(WithHighestTrackableValue(1000))
	require.NoError(t, err)
	b, err := New(WithHighestTrackableValue(1_000_000))
	require.NoError(t, err)

	require.NoError(t, b.RecordValue(500))
	require.NoError(t, b.RecordValue(900_000))

	err = a.Add(b)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.EqualValues(t, 1, a.TotalCount())
}

func TestAddThenSubtract_RestoresOriginalDistribution(t *testing.T) {
	a, err := New()
	require.NoError(t, err)
	require.NoError(t, a.RecordValue(10))
	require.NoError(t, a.RecordValue(20))
	require.NoError(t, a.RecordValue(30))

	b, err := New()
	require.NoError(t, err)
	require.NoError(t, b.RecordValue(20))
	require.NoError(t, b.RecordValue(40))

	before := snapshotCells(t, a)

	require.NoError(t, a.Add(b))
	require.NoError(t, a.Subtract(b))

	assert.Equal(t, before, snapshotCells(t, a))
}

func TestSubtract_UnderflowIsReported(t *testing.T) {
	a, err := New()
	require.NoError(t, err)
	require.NoError(t, a.RecordValue(10))

	b, err := New()
	require.NoError(t, err)
	require.NoError(t, b.RecordValue(10))
	require.NoError(t, b.RecordValue(10))

	err = a.Subtract(b)
	assert.ErrorIs(t, err, ErrSubtractionUnderflow)
}

func TestReset_ClearsStateButKeepsConfiguration(t *testing.T) {
	h, err := New(WithAutoResize(true), WithStorage(StoragePacked))
	require.NoError(t, err)
	require.NoError(t, h.RecordValue(5))
	h.SetTag("interesting")

	h.Reset()

	assert.EqualValues(t, 0, h.TotalCount())
	assert.EqualValues(t, 0, h.Max())
	assert.EqualValues(t, 0, h.MinNonZeroValue())
	assert.Equal(t, "no-tag", h.Tag())
	assert.True(t, h.AutoResize())
	assert.Equal(t, StoragePacked, h.StorageKind())
}

func TestEquals_AcrossDifferentStorageKinds(t *testing.T) {
	dense, err := New(WithStorage(StorageDense64))
	require.NoError(t, err)
	packed, err := New(WithStorage(StoragePacked))
	require.NoError(t, err)

	for _, v := range []uint64{1, 2, 1000, 1000, 50_000} {
		require.NoError(t, dense.RecordValue(v))
		require.NoError(t, packed.RecordValue(v))
	}

	assert.True(t, dense.Equals(packed))
	require.NoError(t, packed.RecordValue(999_999))
	assert.False(t, dense.Equals(packed))
}

func TestValuesAreEquivalent(t *testing.T) {
	h, err := New()
	require.NoError(t, err)
	assert.True(t, h.ValuesAreEquivalent(100_000, 100_001))
	assert.False(t, h.ValuesAreEquivalent(1, 1_000_000))
}

func TestByteSize_ReflectsStorageKind(t *testing.T) {
	dense, err := New(WithStorage(StorageDense64))
	require.NoError(t, err)
	packed, err := New(WithStorage(StoragePacked))
	require.NoError(t, err)
	require.NoError(t, packed.RecordValue(5))

	assert.Equal(t, int64(dense.Layout().CountsArrayLength())*8, dense.ByteSize())
	assert.Greater(t, dense.ByteSize(), packed.ByteSize())
}

func TestInvariant_PrecisionBoundHoldsAcrossTheTrackableRange(t *testing.T) {
	// The 2*10^-d relative-error bound is a guarantee about the
	// logarithmic (multi-bucket) portion of the layout: within bucket 0
	// every cell has unit width regardless of d, so a v small enough to
	// still be in bucket 0 can see a *larger* relative error than the
	// bound (e.g. v=1 has a width-1 cell, 100% relative error). The
	// bound applies from the point a value leaves bucket 0 onward, i.e.
	// for v >= subBucketCount * lowestDiscernibleValue.
	for _, d := range []int{1, 2, 3, 4, 5} {
		h, err := New(WithSignificantDigits(d))
		require.NoError(t, err)

		bound := 2 * math.Pow10(-d)
		start := uint64(h.Layout().SubBucketCount()) * h.Layout().LowestDiscernibleValue()
		for v := start; v < 1<<24; v = v*2 + 1 {
			size := float64(h.Layout().sizeOfEquivalentValueRange(v))
			assert.LessOrEqualf(t, size/float64(v), bound, "d=%d v=%d", d, v)
		}
	}
}

func TestRecordValueWithCount_MatchesRepeatedRecordValue(t *testing.T) {
	counted, err := New()
	require.NoError(t, err)
	repeated, err := New()
	require.NoError(t, err)

	require.NoError(t, counted.RecordValueWithCount(12345, 37))
	for i := 0; i < 37; i++ {
		require.NoError(t, repeated.RecordValue(12345))
	}

	assert.True(t, counted.Equals(repeated))
	assert.Equal(t, repeated.TotalCount(), counted.TotalCount())
	assert.Equal(t, repeated.GetMean(), counted.GetMean())
	assert.Equal(t, repeated.Max(), counted.Max())
	assert.Equal(t, repeated.MinNonZeroValue(), counted.MinNonZeroValue())
}

func snapshotCells(t *testing.T, h *Histogram) map[uint64]int64 {
	t.Helper()
	out := map[uint64]int64{}
	it := h.RecordedValues()
	for it.Next() {
		out[it.ValueIteratedTo()] = it.CountAtValueIteratedTo()
	}
	return out
}
