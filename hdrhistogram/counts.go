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

// countsStore is the capability every counts backing store implements,
// whatever its physical layout (flat 32-bit array, flat 64-bit array, or
// PackedStore's byte trie). Histogram talks to its counts only through
// this interface, so storage kind is a runtime choice, not a compile-time
// one.
type countsStore interface {
	get(index int32) int64
	increment(index int32) int64
	add(index int32, delta int64) int64
	set(index int32, value int64)
	clear()
	length() int32
	resize(newLength int32) countsStore
}

// denseCounts32 is a flat array of 32-bit cells. It is the most compact
// dense representation, at the cost of overflowing (wrapping) past
// ~2.1 billion recordings of a single value.
type denseCounts32 struct {
	cells []int32
}

func newDenseCounts32(length int32) *denseCounts32 {
	return &denseCounts32{cells: make([]int32, length)}
}

func (d *denseCounts32) get(index int32) int64 { return int64(d.cells[index]) }

func (d *denseCounts32) increment(index int32) int64 {
	d.cells[index]++
	return int64(d.cells[index])
}

func (d *denseCounts32) add(index int32, delta int64) int64 {
	d.cells[index] += int32(delta)
	return int64(d.cells[index])
}

func (d *denseCounts32) set(index int32, value int64) {
	d.cells[index] = int32(value)
}

func (d *denseCounts32) clear() {
	for i := range d.cells {
		d.cells[i] = 0
	}
}

func (d *denseCounts32) length() int32 { return int32(len(d.cells)) }

func (d *denseCounts32) resize(newLength int32) countsStore {
	grown := newDenseCounts32(newLength)
	copy(grown.cells, d.cells)
	return grown
}

// denseCounts64 is a flat array of 64-bit cells, sized so totalCount-scale
// recordings of a single value never wrap.
type denseCounts64 struct {
	cells []int64
}

func newDenseCounts64(length int32) *denseCounts64 {
	return &denseCounts64{cells: make([]int64, length)}
}

func (d *denseCounts64) get(index int32) int64 { return d.cells[index] }

func (d *denseCounts64) increment(index int32) int64 {
	d.cells[index]++
	return d.cells[index]
}

func (d *denseCounts64) add(index int32, delta int64) int64 {
	d.cells[index] += delta
	return d.cells[index]
}

func (d *denseCounts64) set(index int32, value int64) {
	d.cells[index] = value
}

func (d *denseCounts64) clear() {
	for i := range d.cells {
		d.cells[i] = 0
	}
}

func (d *denseCounts64) length() int32 { return int32(len(d.cells)) }

func (d *denseCounts64) resize(newLength int32) countsStore {
	grown := newDenseCounts64(newLength)
	copy(grown.cells, d.cells)
	return grown
}
