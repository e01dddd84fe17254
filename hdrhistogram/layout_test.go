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

func TestNewBucketLayout_DefaultShape(t *testing.T) {
	l, err := newBucketLayout(1, 1<<53-1, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 2048, l.SubBucketCount())
	assert.EqualValues(t, 43, l.BucketCount())
	assert.EqualValues(t, 45056, l.CountsArrayLength())
}

func TestNewBucketLayout_RejectsBadArguments(t *testing.T) {
	_, err := newBucketLayout(1, 1<<53-1, 6)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = newBucketLayout(0, 100, 3)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = newBucketLayout(100, 100, 3)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestIndexOf_BoundaryTieBreak(t *testing.T) {
	l, err := newBucketLayout(1, 1<<53-1, 3)
	require.NoError(t, err)

	assert.EqualValues(t, 2000, l.indexOf(2000))
	assert.EqualValues(t, 2049, l.indexOf(2050))
}

func TestIndexOf_LargeLowestDiscernibleValue(t *testing.T) {
	l, err := newBucketLayout(2000, 1<<53-1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 15, l.indexOf(16000))
	assert.EqualValues(t, 4735, l.indexOf(1<<53-2))
}

func TestEquivalentValueRange_RoundTrips(t *testing.T) {
	l, err := newBucketLayout(1, 1<<53-1, 3)
	require.NoError(t, err)

	for _, v := range []uint64{1, 999, 1000, 1001, 1_000_000, 1 << 40} {
		low := l.lowestEquivalentValue(v)
		high := l.highestEquivalentValue(v)
		assert.LessOrEqual(t, low, v)
		assert.GreaterOrEqual(t, high, v)
		assert.Equal(t, low, l.lowestEquivalentValue(low))
		assert.Equal(t, high, l.highestEquivalentValue(low))
	}
}

func TestValueFromIndex_InvertsIndexOf(t *testing.T) {
	l, err := newBucketLayout(1, 1<<20, 3)
	require.NoError(t, err)

	for v := uint64(1); v < 1<<16; v += 37 {
		idx := l.indexOf(v)
		recovered := l.valueFromIndex(idx)
		assert.Equal(t, l.lowestEquivalentValue(v), recovered, "value %d", v)
	}
}
