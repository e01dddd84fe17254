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

import "math"

// baseIterator walks the counts array in ascending physical-index order,
// one cell per step, tracking the cumulative state every other iterator
// policy is built from. Cells tie-break to their highest equivalent
// value.
type baseIterator struct {
	h                       *Histogram
	idx                     int32
	countAtValueIteratedTo  int64
	totalCountToThisValue   uint64
	totalValueToThisValue   uint64
	valueIteratedTo         uint64
}

func newBaseIterator(h *Histogram) baseIterator {
	return baseIterator{h: h, idx: -1}
}

func (b *baseIterator) advance() bool {
	b.idx++
	if b.idx >= b.h.layout.CountsArrayLength() {
		return false
	}
	b.countAtValueIteratedTo = b.h.store.get(b.idx)
	b.totalCountToThisValue += uint64(b.countAtValueIteratedTo)
	low := b.h.layout.valueFromIndex(b.idx)
	b.totalValueToThisValue += uint64(b.countAtValueIteratedTo) * b.h.layout.medianEquivalentValue(low)
	b.valueIteratedTo = b.h.layout.highestEquivalentValue(low)
	return true
}

func (b *baseIterator) percentile() float64 {
	if b.h.totalCount == 0 {
		return 0
	}
	return 100 * float64(b.totalCountToThisValue) / float64(b.h.totalCount)
}

// ValueIteratedTo, CountAtValueIteratedTo, TotalCountToThisValue,
// TotalValueToThisValue and PercentileIteratedTo are the five fields
// every iterator step exposes.
func (b *baseIterator) ValueIteratedTo() uint64            { return b.valueIteratedTo }
func (b *baseIterator) CountAtValueIteratedTo() int64      { return b.countAtValueIteratedTo }
func (b *baseIterator) TotalCountToThisValue() uint64      { return b.totalCountToThisValue }
func (b *baseIterator) TotalValueToThisValue() uint64      { return b.totalValueToThisValue }
func (b *baseIterator) PercentileIteratedTo() float64      { return b.percentile() }

// AllValuesIterator visits every cell of the counts array, zero or not.
type AllValuesIterator struct{ base baseIterator }

func (h *Histogram) AllValues() *AllValuesIterator {
	return &AllValuesIterator{base: newBaseIterator(h)}
}

func (it *AllValuesIterator) Next() bool                       { return it.base.advance() }
func (it *AllValuesIterator) ValueIteratedTo() uint64           { return it.base.ValueIteratedTo() }
func (it *AllValuesIterator) CountAtValueIteratedTo() int64     { return it.base.CountAtValueIteratedTo() }
func (it *AllValuesIterator) TotalCountToThisValue() uint64     { return it.base.TotalCountToThisValue() }
func (it *AllValuesIterator) TotalValueToThisValue() uint64     { return it.base.TotalValueToThisValue() }
func (it *AllValuesIterator) PercentileIteratedTo() float64     { return it.base.PercentileIteratedTo() }

// RecordedValuesIterator skips cells with a zero count.
type RecordedValuesIterator struct{ base baseIterator }

func (h *Histogram) RecordedValues() *RecordedValuesIterator {
	return &RecordedValuesIterator{base: newBaseIterator(h)}
}

func (it *RecordedValuesIterator) Next() bool {
	for it.base.advance() {
		if it.base.countAtValueIteratedTo != 0 {
			return true
		}
	}
	return false
}
func (it *RecordedValuesIterator) ValueIteratedTo() uint64       { return it.base.ValueIteratedTo() }
func (it *RecordedValuesIterator) CountAtValueIteratedTo() int64 { return it.base.CountAtValueIteratedTo() }
func (it *RecordedValuesIterator) TotalCountToThisValue() uint64 { return it.base.TotalCountToThisValue() }
func (it *RecordedValuesIterator) TotalValueToThisValue() uint64 { return it.base.TotalValueToThisValue() }
func (it *RecordedValuesIterator) PercentileIteratedTo() float64 { return it.base.PercentileIteratedTo() }

// RangedIterator is a combinator over RecordedValuesIterator that only
// reports cells whose value falls within [low, high].
type RangedIterator struct {
	inner    RecordedValuesIterator
	low, high uint64
}

func (h *Histogram) RangedValues(low, high uint64) *RangedIterator {
	return &RangedIterator{inner: RecordedValuesIterator{base: newBaseIterator(h)}, low: low, high: high}
}

func (it *RangedIterator) Next() bool {
	for it.inner.Next() {
		if it.inner.ValueIteratedTo() < it.low {
			continue
		}
		if it.inner.ValueIteratedTo() > it.high {
			return false
		}
		return true
	}
	return false
}
func (it *RangedIterator) ValueIteratedTo() uint64       { return it.inner.ValueIteratedTo() }
func (it *RangedIterator) CountAtValueIteratedTo() int64 { return it.inner.CountAtValueIteratedTo() }
func (it *RangedIterator) TotalCountToThisValue() uint64 { return it.inner.TotalCountToThisValue() }
func (it *RangedIterator) TotalValueToThisValue() uint64 { return it.inner.TotalValueToThisValue() }
func (it *RangedIterator) PercentileIteratedTo() float64 { return it.inner.PercentileIteratedTo() }

// LinearIterator reports cumulative state every stepSize units of value,
// sub-stepping across a wide bucket so a cell spanning multiple steps is
// still reported once per step.
type LinearIterator struct {
	h                      *Histogram
	stepSize               uint64
	nextReportingLevel     uint64
	cumulativeCount        uint64
	cumulativeValue        uint64
	idx                    int32
	done                   bool
	valueIteratedTo        uint64
	countAtValueIteratedTo int64
}

func (h *Histogram) LinearValues(stepSize uint64) *LinearIterator {
	if stepSize == 0 {
		stepSize = 1
	}
	return &LinearIterator{h: h, stepSize: stepSize, nextReportingLevel: stepSize, idx: -1}
}

func (it *LinearIterator) Next() bool {
	if it.done {
		return false
	}
	// A cell wider than stepSize is reported again, with no further count,
	// for each remaining step it covers before the walk moves on.
	if it.idx >= 0 && it.valueIteratedTo >= it.nextReportingLevel {
		it.countAtValueIteratedTo = 0
		it.nextReportingLevel += it.stepSize
		return true
	}
	n := it.h.layout.CountsArrayLength()
	var stepCount int64
	for {
		if it.idx+1 >= n {
			it.done = true
			if stepCount == 0 {
				return false
			}
			it.countAtValueIteratedTo = stepCount
			return true
		}
		it.idx++
		c := it.h.store.get(it.idx)
		low := it.h.layout.valueFromIndex(it.idx)
		high := it.h.layout.highestEquivalentValue(low)
		stepCount += c
		it.cumulativeCount += uint64(c)
		it.cumulativeValue += uint64(c) * it.h.layout.medianEquivalentValue(low)
		if high >= it.nextReportingLevel || it.idx == n-1 {
			it.valueIteratedTo = high
			it.countAtValueIteratedTo = stepCount
			it.nextReportingLevel += it.stepSize
			if it.idx == n-1 {
				it.done = true
			}
			return true
		}
	}
}

func (it *LinearIterator) ValueIteratedTo() uint64       { return it.valueIteratedTo }
func (it *LinearIterator) CountAtValueIteratedTo() int64 { return it.countAtValueIteratedTo }
func (it *LinearIterator) TotalCountToThisValue() uint64 { return it.cumulativeCount }
func (it *LinearIterator) TotalValueToThisValue() uint64 { return it.cumulativeValue }
func (it *LinearIterator) PercentileIteratedTo() float64 {
	if it.h.totalCount == 0 {
		return 0
	}
	return 100 * float64(it.cumulativeCount) / float64(it.h.totalCount)
}

// LogarithmicIterator is LinearIterator's cousin: the reporting threshold
// multiplies by base each step instead of advancing by a fixed stride.
type LogarithmicIterator struct {
	h                      *Histogram
	logBase                float64
	nextReportingLevel     float64
	cumulativeCount        uint64
	cumulativeValue        uint64
	idx                    int32
	done                   bool
	valueIteratedTo        uint64
	countAtValueIteratedTo int64
}

func (h *Histogram) LogarithmicValues(firstStepSize uint64, base float64) *LogarithmicIterator {
	if firstStepSize == 0 {
		firstStepSize = 1
	}
	if base <= 1 {
		base = 2
	}
	return &LogarithmicIterator{h: h, logBase: base, nextReportingLevel: float64(firstStepSize), idx: -1}
}

func (it *LogarithmicIterator) Next() bool {
	if it.done {
		return false
	}
	n := it.h.layout.CountsArrayLength()
	var stepCount int64
	for {
		if it.idx+1 >= n {
			it.done = true
			if stepCount == 0 {
				return false
			}
			it.countAtValueIteratedTo = stepCount
			return true
		}
		it.idx++
		c := it.h.store.get(it.idx)
		low := it.h.layout.valueFromIndex(it.idx)
		high := it.h.layout.highestEquivalentValue(low)
		stepCount += c
		it.cumulativeCount += uint64(c)
		it.cumulativeValue += uint64(c) * it.h.layout.medianEquivalentValue(low)
		if float64(high) >= it.nextReportingLevel || it.idx == n-1 {
			it.valueIteratedTo = high
			it.countAtValueIteratedTo = stepCount
			it.nextReportingLevel *= it.logBase
			if it.idx == n-1 {
				it.done = true
			}
			return true
		}
	}
}

func (it *LogarithmicIterator) ValueIteratedTo() uint64       { return it.valueIteratedTo }
func (it *LogarithmicIterator) CountAtValueIteratedTo() int64 { return it.countAtValueIteratedTo }
func (it *LogarithmicIterator) TotalCountToThisValue() uint64 { return it.cumulativeCount }
func (it *LogarithmicIterator) TotalValueToThisValue() uint64 { return it.cumulativeValue }
func (it *LogarithmicIterator) PercentileIteratedTo() float64 {
	if it.h.totalCount == 0 {
		return 0
	}
	return 100 * float64(it.cumulativeCount) / float64(it.h.totalCount)
}

// PercentileIterator advances through percentiles geometrically densely
// as p approaches 100: every halving of the remaining distance to 100 is
// subdivided into ticksPerHalfDistance ticks. A single cell whose count
// spans several ticks emits once per tick before the walk advances to
// the next populated cell.
type PercentileIterator struct {
	base                   baseIterator
	ticksPerHalfDistance   int32
	percentileToIterateTo  float64
	needAdvance            bool
	seenLast               bool
	percentile             float64
}

func (h *Histogram) Percentiles(ticksPerHalfDistance int32) *PercentileIterator {
	if ticksPerHalfDistance < 1 {
		ticksPerHalfDistance = 1
	}
	return &PercentileIterator{
		base:                 newBaseIterator(h),
		ticksPerHalfDistance: ticksPerHalfDistance,
		needAdvance:          true,
	}
}

func (it *PercentileIterator) Next() bool {
	h := it.base.h
	if h.totalCount == 0 {
		return false
	}
	// Once every count has been consumed, exactly one closing step at the
	// 100th percentile remains, whatever percentileToIterateTo has crept
	// up to. Checking here, before emitting any further tick at the final
	// cell, is what bounds the walk: the tick sequence alone approaches
	// 100 asymptotically and would never cross it.
	if it.base.idx >= 0 && it.base.totalCountToThisValue >= h.totalCount {
		if it.seenLast {
			return false
		}
		it.seenLast = true
		it.percentile = 100
		return true
	}
	for {
		if it.needAdvance {
			if !it.base.advance() {
				if it.seenLast {
					return false
				}
				it.seenLast = true
				it.percentile = 100
				return true
			}
			if it.base.countAtValueIteratedTo == 0 {
				continue
			}
			it.needAdvance = false
		}

		current := it.base.percentile()
		if it.percentileToIterateTo <= current {
			it.percentile = it.percentileToIterateTo
			halfDistance := math.Trunc(math.Pow(2, math.Trunc(math.Log2(100.0/(100.0-it.percentileToIterateTo)))+1))
			ticks := float64(it.ticksPerHalfDistance) * halfDistance
			it.percentileToIterateTo += 100.0 / ticks
			return true
		}
		it.needAdvance = true
	}
}

func (it *PercentileIterator) ValueIteratedTo() uint64       { return it.base.ValueIteratedTo() }
func (it *PercentileIterator) CountAtValueIteratedTo() int64 { return it.base.CountAtValueIteratedTo() }
func (it *PercentileIterator) TotalCountToThisValue() uint64 { return it.base.TotalCountToThisValue() }
func (it *PercentileIterator) TotalValueToThisValue() uint64 { return it.base.TotalValueToThisValue() }
func (it *PercentileIterator) PercentileIteratedTo() float64 { return it.percentile }
