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
	"math"
	"math/bits"
)

// BucketLayout computes the logarithmic-linear mapping between a
// recorded value and its slot in a counts array. It is immutable once
// built, except when a Histogram resizes it to cover a larger range.
type BucketLayout struct {
	lowestDiscernibleValue uint64
	highestTrackableValue  uint64
	significantDigits      int

	unitMagnitude               int32
	subBucketCountMagnitude     int32
	subBucketHalfCountMagnitude int32
	subBucketCount              int32
	subBucketHalfCount          int32
	subBucketMask               uint64
	bucketCount                 int32
	countsArrayLength           int32
}

// newBucketLayout validates its parameters and derives subBucketCount,
// bucketCount, and countsArrayLength.
func newBucketLayout(lowestDiscernibleValue, highestTrackableValue uint64, significantDigits int) (*BucketLayout, error) {
	if significantDigits < 0 || significantDigits > 5 {
		return nil, fmt.Errorf("%w: significantDigits must be in [0,5], got %d", ErrInvalidArgument, significantDigits)
	}
	if lowestDiscernibleValue < 1 {
		return nil, fmt.Errorf("%w: lowestDiscernibleValue must be >= 1, got %d", ErrInvalidArgument, lowestDiscernibleValue)
	}
	if highestTrackableValue < 2*lowestDiscernibleValue {
		return nil, fmt.Errorf("%w: highestTrackableValue (%d) must be >= 2*lowestDiscernibleValue (%d)", ErrInvalidArgument, highestTrackableValue, 2*lowestDiscernibleValue)
	}

	largestValueWithSingleUnitResolution := 2 * math.Pow10(significantDigits)
	subBucketCountMagnitude := int32(math.Ceil(math.Log2(largestValueWithSingleUnitResolution)))
	if subBucketCountMagnitude < 1 {
		subBucketCountMagnitude = 1
	}
	subBucketHalfCountMagnitude := subBucketCountMagnitude - 1

	unitMagnitude := int32(math.Floor(math.Log2(float64(lowestDiscernibleValue))))
	if unitMagnitude < 0 {
		unitMagnitude = 0
	}

	subBucketCount := int32(1) << uint(subBucketCountMagnitude)
	subBucketHalfCount := subBucketCount / 2
	subBucketMask := uint64(subBucketCount-1) << uint(unitMagnitude)

	bucketCount := bucketsNeeded(lowestDiscernibleValue, subBucketCount, highestTrackableValue)
	countsArrayLength := (bucketCount + 1) * subBucketHalfCount

	return &BucketLayout{
		lowestDiscernibleValue:      lowestDiscernibleValue,
		highestTrackableValue:       highestTrackableValue,
		significantDigits:           significantDigits,
		unitMagnitude:               unitMagnitude,
		subBucketCountMagnitude:     subBucketCountMagnitude,
		subBucketHalfCountMagnitude: subBucketHalfCountMagnitude,
		subBucketCount:              subBucketCount,
		subBucketHalfCount:          subBucketHalfCount,
		subBucketMask:               subBucketMask,
		bucketCount:                 bucketCount,
		countsArrayLength:           countsArrayLength,
	}, nil
}

// bucketsNeeded returns the smallest bucketCount such that
// lowestDiscernibleValue * subBucketCount * 2^(bucketCount-1) >= highestTrackableValue.
func bucketsNeeded(lowestDiscernibleValue uint64, subBucketCount int32, highestTrackableValue uint64) int32 {
	smallestUntrackable := lowestDiscernibleValue * uint64(subBucketCount)
	bucketCount := int32(1)
	for smallestUntrackable < highestTrackableValue {
		if smallestUntrackable > math.MaxUint64/2 {
			return bucketCount + 1
		}
		smallestUntrackable <<= 1
		bucketCount++
	}
	return bucketCount
}

func (l *BucketLayout) CountsArrayLength() int32 { return l.countsArrayLength }
func (l *BucketLayout) BucketCount() int32       { return l.bucketCount }
func (l *BucketLayout) SubBucketCount() int32    { return l.subBucketCount }
func (l *BucketLayout) LowestDiscernibleValue() uint64 { return l.lowestDiscernibleValue }
func (l *BucketLayout) HighestTrackableValue() uint64  { return l.highestTrackableValue }
func (l *BucketLayout) SignificantDigits() int         { return l.significantDigits }

// bucketBaseIdx returns the counts-array index of the first cell in
// bucketIndex's top half (the index a subBucketIndex of subBucketHalfCount
// maps to).
func (l *BucketLayout) bucketBaseIdx(bucketIndex int32) int32 {
	return (bucketIndex + 1) << uint(l.subBucketHalfCountMagnitude)
}

// getBucketIndex returns the lowest (most precise) bucket index able to
// represent value, via the number of powers of two value exceeds the
// largest value bucket 0 can hold.
func (l *BucketLayout) getBucketIndex(value uint64) int32 {
	pow2Ceiling := int32(64 - bits.LeadingZeros64(value|l.subBucketMask))
	bucketIndex := pow2Ceiling - l.unitMagnitude - (l.subBucketHalfCountMagnitude + 1)
	if bucketIndex < 0 {
		bucketIndex = 0
	}
	return bucketIndex
}

func (l *BucketLayout) getSubBucketIdx(value uint64, bucketIndex int32) int32 {
	return int32(value >> uint(int64(bucketIndex)+int64(l.unitMagnitude)))
}

// indexOf maps value to its counts-array slot. Tie-break: a value exactly
// on a bucket boundary maps into the higher (wider) bucket, because
// getBucketIndex always picks the smallest bucket whose subBucketMask
// fully covers the value.
func (l *BucketLayout) indexOf(value uint64) int32 {
	bucketIndex := l.getBucketIndex(value)
	subBucketIndex := l.getSubBucketIdx(value, bucketIndex)
	return l.bucketBaseIdx(bucketIndex) + subBucketIndex - l.subBucketHalfCount
}

func (l *BucketLayout) valueFromIndexes(bucketIndex, subBucketIndex int32) uint64 {
	return uint64(subBucketIndex) << uint(int64(bucketIndex)+int64(l.unitMagnitude))
}

// valueFromIndex is the inverse of indexOf: it recovers the low-end value
// of the cell at counts-array index idx.
func (l *BucketLayout) valueFromIndex(idx int32) uint64 {
	bucketIndex := (idx >> uint(l.subBucketHalfCountMagnitude)) - 1
	subBucketIndex := (idx & (l.subBucketHalfCount - 1)) + l.subBucketHalfCount
	if bucketIndex < 0 {
		subBucketIndex -= l.subBucketHalfCount
		bucketIndex = 0
	}
	return l.valueFromIndexes(bucketIndex, subBucketIndex)
}

// sizeOfEquivalentValueRange returns the width of the cell value falls
// into: within a bucket every cell has the same width, and that width
// doubles from one bucket to the next.
func (l *BucketLayout) sizeOfEquivalentValueRange(value uint64) uint64 {
	bucketIndex := l.getBucketIndex(value)
	subBucketIndex := l.getSubBucketIdx(value, bucketIndex)
	adjustedBucket := bucketIndex
	if subBucketIndex >= l.subBucketCount {
		adjustedBucket++
	}
	return uint64(1) << uint(int64(l.unitMagnitude)+int64(adjustedBucket))
}

func (l *BucketLayout) lowestEquivalentValue(value uint64) uint64 {
	bucketIndex := l.getBucketIndex(value)
	subBucketIndex := l.getSubBucketIdx(value, bucketIndex)
	return l.valueFromIndexes(bucketIndex, subBucketIndex)
}

func (l *BucketLayout) nextNonEquivalentValue(value uint64) uint64 {
	return l.lowestEquivalentValue(value) + l.sizeOfEquivalentValueRange(value)
}

func (l *BucketLayout) highestEquivalentValue(value uint64) uint64 {
	return l.nextNonEquivalentValue(value) - 1
}

func (l *BucketLayout) medianEquivalentValue(value uint64) uint64 {
	return l.lowestEquivalentValue(value) + l.sizeOfEquivalentValueRange(value)>>1
}
