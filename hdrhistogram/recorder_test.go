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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_SnapshotIsolatesFurtherRecording(t *testing.T) {
	r, err := NewRecorder()
	require.NoError(t, err)

	require.NoError(t, r.RecordValue(100))
	snap, err := r.GetIntervalHistogram(nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, snap.TotalCount())

	require.NoError(t, r.RecordValue(200))
	assert.EqualValues(t, 1, snap.TotalCount(), "snapshot must not see recordings made after it was taken")
}

func TestRecorder_RecycledHistogramIsReused(t *testing.T) {
	r, err := NewRecorder()
	require.NoError(t, err)

	require.NoError(t, r.RecordValue(1))
	first, err := r.GetIntervalHistogram(nil)
	require.NoError(t, err)

	require.NoError(t, r.RecordValue(2))
	second, err := r.GetIntervalHistogram(first)
	require.NoError(t, err)

	assert.EqualValues(t, 1, second.TotalCount())
	assert.NotSame(t, first, second)
}

func TestRecorder_RejectsForeignHistogram(t *testing.T) {
	r, err := NewRecorder()
	require.NoError(t, err)

	foreign, err := New()
	require.NoError(t, err)

	_, err = r.GetIntervalHistogram(foreign)
	assert.ErrorIs(t, err, ErrRecorderMismatch)
}

func TestRecorder_StampsIntervalTimestamps(t *testing.T) {
	r, err := NewRecorder()
	require.NoError(t, err)

	require.NoError(t, r.RecordValue(1))
	snap, err := r.GetIntervalHistogram(nil)
	require.NoError(t, err)

	assert.NotZero(t, snap.EndTimeStampMsec())
	assert.LessOrEqual(t, snap.StartTimeStampMsec(), snap.EndTimeStampMsec())
}
